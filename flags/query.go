package flags

import (
	"gopkg.in/urfave/cli.v1"
)

// QueryFlags describe a country and an order for the offline quote and
// tier commands. Prices are decimal USDC strings.

func QueryFlags() []cli.Flag {
	return []cli.Flag{
		cli.StringFlag{
			Name:  "price",
			Usage: "Current country price in USDC (e.g. 5.00)",
			Value: "5.00",
		},
		cli.Uint64Flag{
			Name:  "kappa8",
			Usage: "Buy slope in price8 units per token",
			Value: 55000,
		},
		cli.Uint64Flag{
			Name:  "lambda8",
			Usage: "Sell slope in price8 units per token",
			Value: 55000,
		},
		cli.StringFlag{
			Name:  "floor",
			Usage: "Price floor in USDC",
			Value: "0.01",
		},
		cli.Uint64Flag{
			Name:  "amount",
			Usage: "Whole tokens to trade",
			Value: 1,
		},
		cli.StringFlag{
			Name:  "side",
			Usage: "Order side (buy|sell)",
			Value: "buy",
		},
	}
}
