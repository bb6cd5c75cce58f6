package flags

import (
	"gopkg.in/urfave/cli.v1"
)

// NodeFlags holds knobs of the engine runtime: rules, preset, clock, caches
// and mirrors.

func NodeFlags() []cli.Flag {
	return []cli.Flag{
		cli.StringFlag{
			Name:  "rules",
			Usage: "Rules preset (main|test|fake) or path to a .yaml, .toml or .json rules file",
		},
		cli.StringFlag{
			Name:  "preset",
			Usage: "Runtime preset (default|lite|full|archive)",
			Value: "default",
		},
		cli.Int64Flag{
			Name:  "genesis.time",
			Usage: "Unix time a simulated clock starts at (0 follows wall time)",
		},
		cli.BoolFlag{
			Name:  "audit",
			Usage: "Write every event to the SQLite audit log in the datadir",
		},
		cli.BoolFlag{
			Name:  "noaudit",
			Usage: "Disable the audit log even if the preset enables it",
		},
		cli.IntFlag{
			Name:  "cache.receipts",
			Usage: "Receipts retained for lookup (0 keeps all)",
		},
		cli.IntFlag{
			Name:  "cache.readmodel",
			Usage: "Entries per read model table",
		},
		cli.StringFlag{
			Name:  "snapshot.in",
			Usage: "Snapshot file to restore before running",
		},
		cli.StringFlag{
			Name:  "snapshot.out",
			Usage: "Snapshot file to write after running",
		},
	}
}
