/*
Copyright © 2023 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"neuyz/server"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

// serveCmd represents the serve command
func serveCmd() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the admissions feeds",
		Description: `Starts the HTTP server on the specified or default port.

Feeds are served on /neu/yz/:type where type is one of the configured
category names or a raw section code. Use ?format=atom, ?format=json or
?format=jsonfeed for other output formats and ?limit=N to cap the item count.`,
		Flags: append(siteFlags(),
			&cli.StringFlag{
				Name:    "host",
				Aliases: []string{"o"},
				Value:   "0.0.0.0",
				Usage:   "Host to bind the HTTP server to",
				EnvVars: []string{"NEUYZ_HOST"},
			},
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Value:   3000,
				Usage:   "Port to bind the HTTP server to",
				EnvVars: []string{"NEUYZ_PORT"},
			},
			&cli.DurationFlag{
				Name:    "route-cache-ttl",
				Value:   5 * time.Minute,
				Usage:   "How long rendered feeds are served from the response cache. 0 disables it",
				EnvVars: []string{"NEUYZ_ROUTE_CACHE_TTL"},
			},
		),
		Action: func(ctx *cli.Context) error {
			if err := setupLogging(ctx.String("log-level")); err != nil {
				return err
			}

			site, err := loadSite(ctx)
			if err != nil {
				return err
			}

			builder, articles, err := newBuilder(ctx, site)
			if err != nil {
				return err
			}

			app := server.Server(&server.ServerConfig{
				Builder:       builder,
				Articles:      articles,
				RouteCacheTTL: ctx.Duration("route-cache-ttl"),
			})

			// Graceful shutdown
			sigs := make(chan os.Signal, 1)
			signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
			done := make(chan struct{})

			go func() {
				<-sigs
				log.Info("Gracefully shutting down...")
				if err := app.ShutdownWithTimeout(30 * time.Second); err != nil {
					log.WithError(err).Error("Error shutting down server")
				}
				close(done)
			}()

			addr := fmt.Sprintf("%s:%d", ctx.String("host"), ctx.Int("port"))
			log.WithFields(log.Fields{
				"addr":       addr,
				"origin":     site.Origin,
				"categories": site.CategoryNames(),
			}).Info("Starting server")

			if err := app.Listen(addr); err != nil {
				return err
			}

			<-done
			log.Info("Done!")
			return nil
		},
	}
}
