package flags

import (
	"os"

	cli "gopkg.in/urfave/cli.v1"
)

func NewApp() *cli.App {

	app := cli.NewApp()
	app.Name = "flagwars"
	app.Usage = "FlagWars economic engine simulator"
	app.Version = "0.1.0"
	app.Writer = os.Stdout
	return app

}
