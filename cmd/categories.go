/*
Copyright © 2023 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/urfave/cli/v2"
)

// categoriesCmd represents the categories command
func categoriesCmd() *cli.Command {
	return &cli.Command{
		Name:  "categories",
		Usage: "List the configured categories",
		Flags: siteFlags(),
		Action: func(ctx *cli.Context) error {
			site, err := loadSite(ctx)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "TYPE\tCODE\tLABEL")
			for _, name := range site.CategoryNames() {
				fmt.Fprintf(w, "%s\t%s\t%s\n", name, site.Categories[name], site.Labels[name])
			}
			return w.Flush()
		},
	}
}
