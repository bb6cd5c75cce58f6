package launcher

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"gopkg.in/urfave/cli.v1"

	"github.com/archslayer/flagbase111-sub000/attackfee"
	"github.com/archslayer/flagbase111-sub000/flags"
	"github.com/archslayer/flagbase111-sub000/integration"
	"github.com/archslayer/flagbase111-sub000/inter"
	"github.com/archslayer/flagbase111-sub000/pricing"
	"github.com/archslayer/flagbase111-sub000/snapshot"
	"github.com/archslayer/flagbase111-sub000/usdc"
)

// NewApp assembles the CLI with its flags and commands.
func NewApp() *cli.App {
	app := flags.NewApp()
	app.Flags = append(app.Flags, flags.CommonFlags()...)
	app.Flags = append(app.Flags, flags.NodeFlags()...)
	app.Commands = []cli.Command{
		{
			Name:      "rules",
			Usage:     "Print the active rules, or validate a rules file",
			ArgsUsage: "[file]",
			Action:    rulesCommand,
		},
		{
			Name:   "quote",
			Usage:  "Quote a buy or sell against a bonding curve",
			Flags:  flags.QueryFlags(),
			Action: quoteCommand,
		},
		{
			Name:   "tier",
			Usage:  "Show the attack fee tier for a price",
			Flags:  flags.QueryFlags(),
			Action: tierCommand,
		},
		{
			Name:      "simulate",
			Usage:     "Run a YAML scenario against a fresh engine",
			ArgsUsage: "<scenario.yaml>",
			Action:    simulateCommand,
		},
		{
			Name:      "inspect",
			Usage:     "Summarize a state snapshot",
			ArgsUsage: "[snapshot]",
			Action:    inspectCommand,
		},
	}
	return app
}

// Launch runs the CLI with the given process arguments.
func Launch(args []string) error {
	return NewApp().Run(args)
}

func rulesCommand(ctx *cli.Context) error {
	cfg, err := MakeAllConfigs(ctx)
	if err != nil {
		return err
	}
	if ctx.NArg() > 0 {
		cfg.Node.Rules = ctx.Args().First()
	}
	rules, err := cfg.ResolveRules()
	if err != nil {
		return err
	}
	fmt.Fprintln(ctx.App.Writer, rules.String())
	return nil
}

func quoteCommand(ctx *cli.Context) error {
	cfg, err := MakeAllConfigs(ctx)
	if err != nil {
		return err
	}
	rules, err := cfg.ResolveRules()
	if err != nil {
		return err
	}
	price8, err := usdc.ParsePrice8(ctx.String("price"))
	if err != nil {
		return err
	}
	n := ctx.Uint64("amount")

	var (
		q     pricing.Quote
		after uint64
	)
	switch side := ctx.String("side"); side {
	case "buy":
		if q, err = pricing.QuoteBuy(price8, ctx.Uint64("kappa8"), n, rules.Fees.BuyFeeBps); err != nil {
			return err
		}
		after, err = pricing.PriceAfterBuy(price8, ctx.Uint64("kappa8"), n)
	case "sell":
		floor8, perr := usdc.ParsePrice8(ctx.String("floor"))
		if perr != nil {
			return perr
		}
		if q, err = pricing.QuoteSell(price8, ctx.Uint64("lambda8"), n, rules.Fees.SellFeeBps); err != nil {
			return err
		}
		after, err = pricing.PriceAfterSell(price8, ctx.Uint64("lambda8"), n, floor8)
	default:
		return fmt.Errorf("unknown side %q", side)
	}
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(ctx.App.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "gross\t%s\n", usdc.Format(q.Gross6))
	fmt.Fprintf(w, "fee\t%s\n", usdc.Format(q.Fee6))
	fmt.Fprintf(w, "net\t%s\n", usdc.Format(q.Net6))
	fmt.Fprintf(w, "price after\t%s\n", usdc.FormatPrice8(after))
	return w.Flush()
}

func tierCommand(ctx *cli.Context) error {
	cfg, err := MakeAllConfigs(ctx)
	if err != nil {
		return err
	}
	rules, err := cfg.ResolveRules()
	if err != nil {
		return err
	}
	price8, err := usdc.ParsePrice8(ctx.String("price"))
	if err != nil {
		return err
	}
	tier, i := attackfee.Resolve(price8, rules.AttackTiers)
	fmt.Fprintf(ctx.App.Writer, "tier %d: fee %s USDC, delta %s\n", i+1, usdc.Format(tier.Fee6), usdc.FormatPrice8(tier.Delta8))
	return nil
}

func simulateCommand(ctx *cli.Context) error {
	if ctx.NArg() != 1 {
		return fmt.Errorf("simulate takes one scenario file")
	}
	cfg, err := MakeAllConfigs(ctx)
	if err != nil {
		return err
	}
	log, err := MakeLogger(cfg.Logging, os.Stderr)
	if err != nil {
		return err
	}
	s, err := integration.LoadScenario(ctx.Args().First())
	if err != nil {
		return err
	}
	start := s.Start
	if start == 0 {
		start = time.Now().Unix()
	}
	nodeCfg, err := cfg.MakeNodeConfig(log, start)
	if err != nil {
		return err
	}
	node, err := integration.NewNode(nodeCfg)
	if err != nil {
		return err
	}
	defer node.Close()

	results, runErr := s.Run(context.Background(), node)
	printResults(ctx, results)
	if runErr != nil {
		return runErr
	}
	if cfg.Node.SnapshotOut != "" {
		if err := node.SaveSnapshot(cfg.Node.SnapshotOut); err != nil {
			return err
		}
		log.WithField("path", cfg.Node.SnapshotOut).Info("Snapshot written")
	}
	return nil
}

func printResults(ctx *cli.Context, results []integration.StepResult) {
	w := tabwriter.NewWriter(ctx.App.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "#\top\tuser\tresult\tblock\tevents")
	for _, res := range results {
		status := "ok"
		if res.Err != nil {
			status = inter.ErrorKind(res.Err)
		}
		block, events := "-", "-"
		if r := res.Receipt; r != nil {
			block = fmt.Sprint(r.Block)
			events = ""
			for i, ev := range r.Events {
				if i > 0 {
					events += ","
				}
				events += ev.Kind().String()
			}
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n", res.Index, res.Step.Op, res.Step.User, status, block, events)
	}
	w.Flush()
}

func inspectCommand(ctx *cli.Context) error {
	cfg, err := MakeAllConfigs(ctx)
	if err != nil {
		return err
	}
	path := cfg.Node.SnapshotIn
	if ctx.NArg() > 0 {
		path = ctx.Args().First()
	}
	if path == "" {
		return fmt.Errorf("no snapshot given")
	}
	s, err := snapshot.Load(path)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(ctx.App.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "rules\t%s (chain %d)\n", s.Rules, s.ChainID)
	fmt.Fprintf(w, "block\t%d\n", s.State.Block)
	fmt.Fprintf(w, "holders\t%d\n", len(s.State.Holdings))
	fmt.Fprintln(w)
	fmt.Fprintln(w, "id\tname\tprice\treserve")
	for _, c := range s.State.Countries {
		fmt.Fprintf(w, "%d\t%s\t%s\t%d\n", c.ID, c.Name, usdc.FormatPrice8(c.Price8), c.Reserve)
	}
	return w.Flush()
}
