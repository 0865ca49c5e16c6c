/*
Copyright © 2023 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"neuyz/server"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

// fetchCmd represents the fetch command
func fetchCmd() *cli.Command {
	return &cli.Command{
		Name:      "fetch",
		Usage:     "Print one feed to the command line",
		ArgsUsage: "<type>",
		Description: `Builds the feed for a single category and prints it to stdout.

The type is a category name such as master1 or a raw section code.
Output is RSS unless --format says otherwise.

Prints all other log messages to stderr.`,
		Flags: append(siteFlags(),
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Value:   "rss",
				Usage:   "Output format (rss, atom, json, jsonfeed)",
			},
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Maximum number of items. 0 means all",
			},
		),
		Action: func(ctx *cli.Context) error {
			// Keep stdout for the feed
			log.SetOutput(os.Stderr)

			if err := setupLogging(ctx.String("log-level")); err != nil {
				return err
			}

			category := ctx.Args().First()
			if category == "" {
				return errors.New("please specify a category type")
			}

			site, err := loadSite(ctx)
			if err != nil {
				return err
			}

			builder, _, err := newBuilder(ctx, site)
			if err != nil {
				return err
			}

			feed, err := builder.Build(ctx.Context, category, ctx.Int("limit"))
			if err != nil {
				return err
			}

			format := ctx.String("format")
			if format == "json" {
				out, err := json.MarshalIndent(feed, "", "  ")
				if err != nil {
					return err
				}
				fmt.Println(string(out))
				return nil
			}

			body, _, err := server.Render(feed, format)
			if err != nil {
				return err
			}
			fmt.Println(body)
			return nil
		},
	}
}
