package launcher

// Defaults bundles the baseline configuration values the launcher uses before
// the config file and flags override them.

type Defaults struct {
	Node    NodeDefaults
	Logging LoggingDefaults
}

// NodeDefaults captures the runtime settings.

type NodeDefaults struct {
	DataDir     string //	Filesystem root for the audit database and snapshots. Changing it keeps separate simulations isolated.
	Preset      string //	Runtime preset (default, lite, full, archive); picks rules, cache sizes and whether the audit log is written.
	Rules       string //	Empty keeps the preset's rules. Otherwise a preset name (main, test, fake) or a rules file layered over the preset's rules.
	GenesisTime int64  //	Unix time a simulated clock starts at. Zero lets simulations use the scenario start, then wall time.
}

// LoggingDefaults controls log verbosity/format.
type LoggingDefaults struct {
	Verbosity int    //	Log level numeric (0=fatal, 1=error, 2=warn, 3=info, 4=debug, 5=trace).
	Format    string //	Log output format (text vs json).
	Color     bool   //	Whether to use ANSI color codes in logs (helpful on terminals, best disabled when piping to files).
	SentryDSN string //	Sentry project DSN; when set, error, fatal and panic entries are also reported there.
}

// DefaultConfig returns a fully populated Defaults instance.

func DefaultConfig() Defaults {
	return Defaults{
		Node: NodeDefaults{
			DataDir: "~/.flagwars",
			Preset:  "default",
		},
		Logging: LoggingDefaults{
			Verbosity: 3,
			Format:    "text",
			Color:     true,
		},
	}
}
