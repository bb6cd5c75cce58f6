package launcher_test

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"gopkg.in/urfave/cli.v1"

	"github.com/archslayer/flagbase111-sub000/cmd/flagwars/launcher"
	"github.com/archslayer/flagbase111-sub000/flags"
	"github.com/archslayer/flagbase111-sub000/flagwars"
)

// helper to run MakeAllConfigs with a synthetic CLI context.

func runConfigFromArgs(t *testing.T, args []string) (launcher.Config, error) {

	t.Helper()

	app := cli.NewApp()

	app.HideHelp = true
	app.HideVersion = true

	app.Flags = append(app.Flags, flags.CommonFlags()...)
	app.Flags = append(app.Flags, flags.NodeFlags()...)

	var (
		got    launcher.Config
		cfgErr error
	)

	app.Action = func(c *cli.Context) error {
		got, cfgErr = launcher.MakeAllConfigs(c)
		return nil
	}

	if err := app.Run(append([]string{"flagwars"}, args...)); err != nil {
		t.Fatalf("app.Run failed: %v", err)
	}
	return got, cfgErr
}

// TestMakeAllConfigs_flagOverrides verifies that the flags we declare
// override the matching fields of the aggregated Config struct.
func TestMakeAllConfigs_flagOverrides(t *testing.T) {

	projectRoot := launcher.GuessProjectRoot()

	tests := []struct {
		name string
		args []string
		want func(t *testing.T, cfg launcher.Config)
	}{
		{
			name: "defaults",
			args: nil,
			want: func(t *testing.T, cfg launcher.Config) {
				if cfg.Node.Preset != "default" {
					t.Fatalf("Preset = %q, want default", cfg.Node.Preset)
				}
				if !strings.HasSuffix(cfg.Node.DataDir, ".flagwars") {
					t.Fatalf("DataDir = %q, want ~/.flagwars", cfg.Node.DataDir)
				}
				if cfg.Node.Audit != nil {
					t.Fatalf("Audit = %v, want preset choice", *cfg.Node.Audit)
				}
				if cfg.Logging.Verbosity != 3 || cfg.Logging.Format != "text" {
					t.Fatalf("Logging = %+v", cfg.Logging)
				}
			},
		},
		{
			name: "datadir and preset",
			args: []string{"--datadir", projectRoot + "/sim/node-data", "--preset", "lite", "--rules", "test"},
			want: func(t *testing.T, cfg launcher.Config) {
				if cfg.Node.DataDir != filepath.Join(projectRoot, "sim", "node-data") {
					t.Fatalf("DataDir = %q", cfg.Node.DataDir)
				}
				if cfg.Node.Preset != "lite" || cfg.Node.Rules != "test" {
					t.Fatalf("Preset/Rules = %q/%q, want lite/test", cfg.Node.Preset, cfg.Node.Rules)
				}
			},
		},
		{
			name: "relative datadir",
			args: []string{"--datadir", "data"},
			want: func(t *testing.T, cfg launcher.Config) {
				if cfg.Node.DataDir != filepath.Join(launcher.GuessWorkDir(), "data") {
					t.Fatalf("DataDir = %q", cfg.Node.DataDir)
				}
			},
		},
		{
			name: "caches and clock",
			args: []string{"--cache.receipts", "12", "--cache.readmodel", "34", "--genesis.time", "1700000000"},
			want: func(t *testing.T, cfg launcher.Config) {
				if cfg.Node.ReceiptCache != 12 || cfg.Node.ReadModelCache != 34 {
					t.Fatalf("caches = %d/%d, want 12/34", cfg.Node.ReceiptCache, cfg.Node.ReadModelCache)
				}
				if cfg.Node.GenesisTime != 1_700_000_000 {
					t.Fatalf("GenesisTime = %d", cfg.Node.GenesisTime)
				}
			},
		},
		{
			name: "audit off",
			args: []string{"--noaudit"},
			want: func(t *testing.T, cfg launcher.Config) {
				if cfg.Node.Audit == nil || *cfg.Node.Audit {
					t.Fatalf("Audit = %v, want false", cfg.Node.Audit)
				}
			},
		},
		{
			name: "logging",
			args: []string{"--log.format", "json", "--log.verbosity", "5", "--log.color"},
			want: func(t *testing.T, cfg launcher.Config) {
				if cfg.Logging.Format != "json" || cfg.Logging.Verbosity != 5 || !cfg.Logging.Color {
					t.Fatalf("Logging = %+v", cfg.Logging)
				}
			},
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			cfg, err := runConfigFromArgs(t, test.args)
			if err != nil {
				t.Fatalf("MakeAllConfigs: %v", err)
			}
			test.want(t, cfg)
			t.Logf("args = %#v", test.args)
		})
	}
}

func TestMakeAllConfigs_rejects(t *testing.T) {
	for _, args := range [][]string{
		{"--preset", "mainnet"},
		{"--log.verbosity", "9"},
		{"--log.format", "xml"},
		{"--config", "/nonexistent/flagwars.toml"},
	} {
		if _, err := runConfigFromArgs(t, args); err == nil {
			t.Errorf("MakeAllConfigs(%v) succeeded", args)
		}
	}
}

func TestMakeAllConfigs_configFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "flagwars.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[node]
datadir = "/var/lib/flagwars"
preset = "full"
readmodel_cache = 99
audit = false

[logging]
verbosity = 4
format = "json"
`), 0o644))

	cfg, err := runConfigFromArgs(t, []string{"--config", path, "--preset", "archive"})
	require.NoError(t, err)
	require.Equal(t, "/var/lib/flagwars", cfg.Node.DataDir)
	require.Equal(t, "archive", cfg.Node.Preset, "flags win over the file")
	require.Equal(t, 99, cfg.Node.ReadModelCache)
	require.NotNil(t, cfg.Node.Audit)
	require.False(t, *cfg.Node.Audit)
	require.Equal(t, 4, cfg.Logging.Verbosity)

	bad := filepath.Join(dir, "bad.toml")
	require.NoError(t, os.WriteFile(bad, []byte("[node]\ncolour = \"red\"\n"), 0o644))
	_, err = runConfigFromArgs(t, []string{"--config", bad})
	require.Error(t, err)
}

func TestConfig_resolveRules(t *testing.T) {
	cfg, err := runConfigFromArgs(t, []string{"--preset", "lite"})
	require.NoError(t, err)
	rules, err := cfg.ResolveRules()
	require.NoError(t, err)
	require.Equal(t, "fake", rules.Name, "the preset's rules")

	cfg.Node.Rules = "test"
	rules, err = cfg.ResolveRules()
	require.NoError(t, err)
	require.Equal(t, flagwars.TestChainID, rules.ChainID)

	path := filepath.Join(t.TempDir(), "cheap.yaml")
	require.NoError(t, os.WriteFile(path, []byte("fees: {buy_fee_bps: 10, sell_fee_bps: 100}\n"), 0o644))
	cfg.Node.Rules = path
	rules, err = cfg.ResolveRules()
	require.NoError(t, err)
	require.Equal(t, "cheap", rules.Name)
	require.Equal(t, uint64(100), rules.Fees.SellFeeBps)
	require.Equal(t, flagwars.FakeChainID, rules.ChainID, "layered over the preset's rules")

	cfg.Node.Rules = filepath.Join(t.TempDir(), "missing.yaml")
	_, err = cfg.ResolveRules()
	require.Error(t, err)
}

func TestConfig_makeNodeConfig(t *testing.T) {
	cfg, err := runConfigFromArgs(t, []string{"--preset", "full", "--datadir", t.TempDir(), "--cache.readmodel", "7", "--noaudit"})
	require.NoError(t, err)

	nc, err := cfg.MakeNodeConfig(logrus.New(), 1_700_000_000)
	require.NoError(t, err)
	require.Equal(t, "full", nc.Preset.Name)
	require.Equal(t, 7, nc.Preset.ReadModelCache)
	require.False(t, nc.Preset.Audit)
	require.EqualValues(t, 1_700_000_000, nc.GenesisTime)
	require.Equal(t, "main", nc.Rules.Name)

	cfg.Node.GenesisTime = 42
	nc, err = cfg.MakeNodeConfig(logrus.New(), 1_700_000_000)
	require.NoError(t, err)
	require.EqualValues(t, 42, nc.GenesisTime, "configured time wins")
}

func TestMakeLogger(t *testing.T) {
	var buf bytes.Buffer
	log, err := launcher.MakeLogger(launcher.LoggingConfig{Verbosity: 2, Format: "json"}, &buf)
	require.NoError(t, err)
	require.Equal(t, logrus.WarnLevel, log.GetLevel())

	log.Info("hidden")
	log.WithField("country", 7).Warn("shown")
	require.NotContains(t, buf.String(), "hidden")
	require.Contains(t, buf.String(), `"country":7`)
	require.Contains(t, buf.String(), `"msg":"shown"`)

	log, err = launcher.MakeLogger(launcher.LoggingConfig{Verbosity: 5, Format: "text"}, &buf)
	require.NoError(t, err)
	require.Equal(t, logrus.TraceLevel, log.GetLevel())
}
