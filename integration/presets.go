package integration

import (
	"fmt"
	"time"
)

// Package integration assembles the FlagWars runtime: the engine, the USDC
// ledger, the contract boundary, the off-chain mirrors and the receipt
// poller. Presets bundle the runtime knobs into named profiles so the CLI
// can switch between a throwaway simulation and a fully mirrored run without
// a dozen flags.
//
// Usage:
//   cfg := integration.LitePreset()    // fake rules, nothing on disk
//   cfg := integration.FullPreset()    // main rules, audit log, large caches
//   cfg := integration.ArchivePreset() // keeps every receipt
//
// Each preset returns a PresetConfig that NodeConfig carries into NewNode.

// PresetConfig captures the runtime parameters that vary across profiles.
// Engine economics are not part of it; they come from flagwars.Rules.
type PresetConfig struct {
	Name           string        // identifier used by --preset
	Rules          string        // rules preset name: main, test or fake
	ReceiptCache   int           // receipts retained for lookup, 0 keeps all
	ReadModelCache int           // entries per read model table
	WarmParallel   int           // concurrent loads when warming the read model
	Audit          bool          // write every event to the SQLite audit log
	PollInterval   time.Duration // receipt poll pacing
	PollAttempts   int           // receipt poll attempts before giving up
}

func DefaultPreset() PresetConfig {

	return PresetConfig{
		Name:           "default",
		Rules:          "main",
		ReceiptCache:   4096,
		ReadModelCache: 1024,
		WarmParallel:   4,
		Audit:          true,
		PollInterval:   500 * time.Millisecond,
		PollAttempts:   20,
	}
}

// LitePreset returns an in-memory profile for local simulation and tests.
// Windows and cooldowns run on the shortened fake rules and nothing is
// written to disk.
func LitePreset() PresetConfig {
	cfg := DefaultPreset()
	cfg.Name = "lite"
	cfg.Rules = "fake"
	cfg.ReceiptCache = 256
	cfg.ReadModelCache = 128
	cfg.WarmParallel = 1
	cfg.Audit = false
	cfg.PollInterval = 10 * time.Millisecond
	cfg.PollAttempts = 5
	return cfg
}

// FullPreset returns the production profile: main rules, audit log on and
// large caches.
func FullPreset() PresetConfig {
	cfg := DefaultPreset()
	cfg.Name = "full"
	cfg.ReceiptCache = 65536
	cfg.ReadModelCache = 8192
	cfg.WarmParallel = 8
	return cfg
}

// ArchivePreset returns a profile that never evicts receipts, for replays
// and analytics over a whole run.
func ArchivePreset() PresetConfig {
	cfg := FullPreset()
	cfg.Name = "archive"
	cfg.ReceiptCache = 0
	return cfg
}

// GetPresetByName looks a preset up by its identifier.
//
// Example:
//
//	preset, err := integration.GetPresetByName("lite")
//	if err != nil {
//	    log.Fatal(err)
//	}
func GetPresetByName(name string) (PresetConfig, error) {
	switch name {
	case "lite":
		return LitePreset(), nil
	case "full":
		return FullPreset(), nil
	case "archive":
		return ArchivePreset(), nil
	case "default":
		return DefaultPreset(), nil
	default:
		return PresetConfig{}, fmt.Errorf("unknown preset: %q (valid: lite, full, archive, default)", name)
	}
}

// ApplyPreset merges preset into target. Non-zero preset fields override;
// Audit is always applied.
func ApplyPreset(target *PresetConfig, preset PresetConfig) {
	if preset.Rules != "" {
		target.Rules = preset.Rules
	}
	if preset.ReceiptCache > 0 {
		target.ReceiptCache = preset.ReceiptCache
	}
	if preset.ReadModelCache > 0 {
		target.ReadModelCache = preset.ReadModelCache
	}
	if preset.WarmParallel > 0 {
		target.WarmParallel = preset.WarmParallel
	}
	if preset.PollInterval > 0 {
		target.PollInterval = preset.PollInterval
	}
	if preset.PollAttempts > 0 {
		target.PollAttempts = preset.PollAttempts
	}
	target.Audit = preset.Audit
	if preset.Name != "" {
		target.Name = preset.Name
	}
}
