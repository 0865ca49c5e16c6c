package cmd

import (
	"fmt"
	"time"

	"neuyz/cache"
	"neuyz/config"
	"neuyz/feeds"
	"neuyz/fetch"
	"neuyz/models"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

// Flags shared by every command that builds feeds
func siteFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Path to a site configuration file. The built-in table is used when empty",
			EnvVars: []string{"NEUYZ_CONFIG"},
		},
		&cli.StringFlag{
			Name:    "log-level",
			Value:   "info",
			Usage:   "Log level (trace, debug, info, warn, error)",
			EnvVars: []string{"NEUYZ_LOG_LEVEL"},
		},
		&cli.DurationFlag{
			Name:    "cache-ttl",
			Value:   time.Hour,
			Usage:   "How long resolved articles are kept in memory",
			EnvVars: []string{"NEUYZ_CACHE_TTL"},
		},
		&cli.IntFlag{
			Name:    "cache-size",
			Value:   1024,
			Usage:   "Maximum number of resolved articles kept in memory",
			EnvVars: []string{"NEUYZ_CACHE_SIZE"},
		},
	}
}

func setupLogging(level string) error {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}
	log.SetLevel(lvl)
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	return nil
}

func loadSite(ctx *cli.Context) (*config.Site, error) {
	cfg, err := config.LoadConfig(ctx.String("config"))
	if err != nil {
		return nil, err
	}
	return cfg.SiteConfig()
}

// newBuilder wires the fetcher, article cache and feed builder from the command flags
func newBuilder(ctx *cli.Context, site *config.Site) (*feeds.Builder, *cache.Cache[models.ArticleDetail], error) {
	articles := cache.New[models.ArticleDetail](ctx.Int("cache-size"), ctx.Duration("cache-ttl"))
	fetcher := fetch.NewHTTPFetcher(site.Timeout, site.UserAgent)

	builder, err := feeds.NewBuilder(site, fetcher, articles)
	if err != nil {
		return nil, nil, err
	}
	return builder, articles, nil
}
