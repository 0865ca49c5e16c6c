/*
Copyright © 2023 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"github.com/urfave/cli/v2"
)

func RootApp() *cli.App {
	return &cli.App{
		Name:  "neuyz",
		Usage: "Feeds for the NEU graduate admissions site",
		Description: `Serves RSS, Atom and JSON feeds for the announcement lists on the
		Northeastern University graduate admissions site (yz.neu.edu.cn).

		Each feed is built on request: the listing page of a category is fetched,
		every listed article is resolved concurrently and its body is rewritten
		into feed-safe HTML. Article pages are memoized in an in-memory cache.

		Flags can generally be set via environment variables, e.g.:

		--config => NEUYZ_CONFIG=config/site.toml
		--port => NEUYZ_PORT=3000
		`,
		Commands: []*cli.Command{
			serveCmd(),
			fetchCmd(),
			categoriesCmd(),
		},
		Action: func(ctx *cli.Context) error {
			// Show help if no command is specified
			return ctx.App.Run([]string{"", "help"})
		},
	}
}
