package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

var version = "dev"

func main() {
	app := &cli.App{
		Name:    "dunning",
		Usage:   "Compliance-gated outreach service for resident balances",
		Version: version,
		Commands: []*cli.Command{
			serveCommand(),
			migrateCommand(),
			importCommand(),
			callCommand(),
			tokenCommand(),
		},
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
