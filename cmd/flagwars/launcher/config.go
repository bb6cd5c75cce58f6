// This file maps the CLI context and the optional TOML file to the launcher
// config, and builds the logger and node config from it.

package launcher

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/evalphobia/logrus_sentry"
	"github.com/pelletier/go-toml/v2"
	"github.com/sirupsen/logrus"
	"gopkg.in/urfave/cli.v1"

	"github.com/archslayer/flagbase111-sub000/flagwars"
	"github.com/archslayer/flagbase111-sub000/integration"
	"github.com/archslayer/flagbase111-sub000/inter"
)

// Config aggregates everything the launcher needs.
type Config struct {
	Node    NodeConfig    `toml:"node"`
	Logging LoggingConfig `toml:"logging"`
}

type NodeConfig struct {
	DataDir     string `toml:"datadir"`
	Preset      string `toml:"preset"`
	Rules       string `toml:"rules"`
	GenesisTime int64  `toml:"genesis_time"`

	// Cache and audit overrides. Zero values and a nil Audit keep the
	// preset's choice.
	ReceiptCache   int   `toml:"receipt_cache"`
	ReadModelCache int   `toml:"readmodel_cache"`
	Audit          *bool `toml:"audit"`

	SnapshotIn  string `toml:"snapshot_in"`
	SnapshotOut string `toml:"snapshot_out"`
}

type LoggingConfig struct {
	Verbosity int    `toml:"verbosity"`
	Format    string `toml:"format"`
	Color     bool   `toml:"color"`
	SentryDSN string `toml:"sentry_dsn"`
}

// -----------------------------------------------------------------------------
// Default config + builders
// -----------------------------------------------------------------------------

func defaultConfig() Config {
	d := DefaultConfig()
	return Config{
		Node: NodeConfig{
			DataDir:     resolvePath(d.Node.DataDir),
			Preset:      d.Node.Preset,
			Rules:       d.Node.Rules,
			GenesisTime: d.Node.GenesisTime,
		},
		Logging: LoggingConfig{
			Verbosity: d.Logging.Verbosity,
			Format:    d.Logging.Format,
			Color:     d.Logging.Color,
			SentryDSN: d.Logging.SentryDSN,
		},
	}
}

// MakeAllConfigs merges defaults, the config file and CLI overrides into a
// single config struct.
func MakeAllConfigs(ctx *cli.Context) (Config, error) {
	cfg := defaultConfig()

	if file := ctx.GlobalString("config"); file != "" {
		if err := loadConfigFile(file, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to load config file %s: %w", file, err)
		}
	}

	applyCLIOverrides(ctx, &cfg)

	if _, err := integration.GetPresetByName(cfg.Node.Preset); err != nil {
		return Config{}, err
	}
	if cfg.Logging.Verbosity < 0 || cfg.Logging.Verbosity > 5 {
		return Config{}, fmt.Errorf("log verbosity %d out of range 0-5", cfg.Logging.Verbosity)
	}
	switch cfg.Logging.Format {
	case "text", "json":
	default:
		return Config{}, fmt.Errorf("unknown log format %q", cfg.Logging.Format)
	}
	return cfg, nil
}

// -----------------------------------------------------------------------------
// Config-file / CLI wiring
// -----------------------------------------------------------------------------

func loadConfigFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		return err
	}
	cfg.Node.DataDir = resolvePath(cfg.Node.DataDir)
	return nil
}

// isSet reports whether a flag was given either before or after the command
// name.
func isSet(ctx *cli.Context, name string) bool {
	return ctx.IsSet(name) || ctx.GlobalIsSet(name)
}

func applyCLIOverrides(ctx *cli.Context, cfg *Config) {
	if isSet(ctx, "datadir") {
		cfg.Node.DataDir = resolvePath(ctx.GlobalString("datadir"))
	}
	if isSet(ctx, "preset") {
		cfg.Node.Preset = ctx.GlobalString("preset")
	}
	if isSet(ctx, "rules") {
		cfg.Node.Rules = ctx.GlobalString("rules")
	}
	if isSet(ctx, "genesis.time") {
		cfg.Node.GenesisTime = ctx.GlobalInt64("genesis.time")
	}
	if isSet(ctx, "cache.receipts") {
		cfg.Node.ReceiptCache = ctx.GlobalInt("cache.receipts")
	}
	if isSet(ctx, "cache.readmodel") {
		cfg.Node.ReadModelCache = ctx.GlobalInt("cache.readmodel")
	}
	if ctx.GlobalBool("audit") {
		on := true
		cfg.Node.Audit = &on
	}
	if ctx.GlobalBool("noaudit") {
		off := false
		cfg.Node.Audit = &off
	}
	if isSet(ctx, "snapshot.in") {
		cfg.Node.SnapshotIn = ctx.GlobalString("snapshot.in")
	}
	if isSet(ctx, "snapshot.out") {
		cfg.Node.SnapshotOut = ctx.GlobalString("snapshot.out")
	}

	if isSet(ctx, "log.format") {
		cfg.Logging.Format = ctx.GlobalString("log.format")
	}
	if isSet(ctx, "log.verbosity") {
		cfg.Logging.Verbosity = ctx.GlobalInt("log.verbosity")
	}
	if isSet(ctx, "log.color") {
		cfg.Logging.Color = ctx.GlobalBool("log.color")
	}
	if isSet(ctx, "sentry.dsn") {
		cfg.Logging.SentryDSN = ctx.GlobalString("sentry.dsn")
	}
}

// -----------------------------------------------------------------------------
// Builders
// -----------------------------------------------------------------------------

var verbosityLevels = []logrus.Level{
	logrus.FatalLevel,
	logrus.ErrorLevel,
	logrus.WarnLevel,
	logrus.InfoLevel,
	logrus.DebugLevel,
	logrus.TraceLevel,
}

// MakeLogger builds the process logger. With a Sentry DSN configured, error,
// fatal and panic entries are reported there as well.
func MakeLogger(cfg LoggingConfig, out io.Writer) (*logrus.Logger, error) {
	log := logrus.New()
	log.SetOutput(out)
	log.SetLevel(verbosityLevels[cfg.Verbosity])
	switch cfg.Format {
	case "json":
		log.SetFormatter(&logrus.JSONFormatter{})
	default:
		log.SetFormatter(&logrus.TextFormatter{
			ForceColors:   cfg.Color,
			DisableColors: !cfg.Color,
			FullTimestamp: true,
		})
	}

	if cfg.SentryDSN != "" {
		hook, err := logrus_sentry.NewSentryHook(cfg.SentryDSN, []logrus.Level{
			logrus.PanicLevel,
			logrus.FatalLevel,
			logrus.ErrorLevel,
		})
		if err != nil {
			return nil, fmt.Errorf("sentry hook: %w", err)
		}
		hook.Timeout = 5 * time.Second
		hook.StacktraceConfiguration.Enable = true
		log.AddHook(hook)
	}
	return log, nil
}

// ResolveRules returns the configured rules: the preset's rules, a named rules
// preset, or a rules file layered over the preset's rules.
func (c Config) ResolveRules() (flagwars.Rules, error) {
	preset, err := integration.GetPresetByName(c.Node.Preset)
	if err != nil {
		return flagwars.Rules{}, err
	}
	base, err := flagwars.RulesByName(preset.Rules)
	if err != nil {
		return flagwars.Rules{}, err
	}
	if c.Node.Rules == "" {
		return base, nil
	}
	if r, err := flagwars.RulesByName(c.Node.Rules); err == nil {
		return r, nil
	}
	return flagwars.LoadRules(resolvePath(c.Node.Rules), base)
}

// MakeNodeConfig builds the runtime config. genesis is used as the simulated
// start time when none is configured; zero leaves the node on wall time.
func (c Config) MakeNodeConfig(log logrus.FieldLogger, genesis int64) (integration.NodeConfig, error) {
	preset, err := integration.GetPresetByName(c.Node.Preset)
	if err != nil {
		return integration.NodeConfig{}, err
	}
	integration.ApplyPreset(&preset, integration.PresetConfig{
		ReceiptCache:   c.Node.ReceiptCache,
		ReadModelCache: c.Node.ReadModelCache,
		Audit:          preset.Audit,
	})
	if c.Node.Audit != nil {
		preset.Audit = *c.Node.Audit
	}
	rules, err := c.ResolveRules()
	if err != nil {
		return integration.NodeConfig{}, err
	}
	if c.Node.GenesisTime != 0 {
		genesis = c.Node.GenesisTime
	}
	if genesis < 0 {
		return integration.NodeConfig{}, fmt.Errorf("negative genesis time %d", genesis)
	}
	if preset.Audit {
		if err := ensureDir(c.Node.DataDir); err != nil {
			return integration.NodeConfig{}, err
		}
	}
	return integration.NodeConfig{
		Preset:      preset,
		Rules:       rules,
		DataDir:     c.Node.DataDir,
		GenesisTime: inter.Timestamp(genesis),
		Logger:      log,
	}, nil
}

// -----------------------------------------------------------------------------
// Helpers
// -----------------------------------------------------------------------------

func ensureDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create datadir %s: %w", dir, err)
	}
	return nil
}

func resolvePath(p string) string {
	if p == "" {
		return p
	}
	if strings.HasPrefix(p, "~") {
		return filepath.Join(GuessHomeDir(), strings.TrimPrefix(p, "~"))
	}
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(GuessWorkDir(), p)
}

func GuessWorkDir() string {
	if wd, err := os.Getwd(); err == nil {
		return wd
	}
	return "."
}

func GuessHomeDir() string {
	if dir, err := os.UserHomeDir(); err == nil {
		return dir
	}
	return "."
}

func GuessProjectRoot() string {
	cwd, err := os.Getwd()
	if err != nil {
		return "."
	}
	dir := cwd
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return cwd
		}
		dir = parent
	}
}
