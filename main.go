package main

import (
	"context"
	"os"

	"github.com/acrylic/rights/config"
	"github.com/urfave/cli/v3"
)

func main() {
	a := &app{log: config.NewLogger(nil, "info")}

	root := &cli.Command{
		Name:  "rights",
		Usage: "Split sheets, signature requests and catalog tracks",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file",
				Sources: cli.EnvVars("RIGHTS_CONFIG"),
			},
		},
		Commands: a.commands(),
	}

	if err := root.Run(context.Background(), os.Args); err != nil {
		a.log.Fatal("application error", "err", err)
	}
}
