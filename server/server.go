package server

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"neuyz/cache"
	"neuyz/feeds"
	"neuyz/fetch"
	"neuyz/models"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	fibercache "github.com/gofiber/fiber/v2/middleware/cache"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	gorillafeeds "github.com/gorilla/feeds"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

type ServerConfig struct {

	// Builds feeds for a category
	Builder *feeds.Builder

	// Article cache, exposed on /stats
	Articles *cache.Cache[models.ArticleDetail]

	// How long rendered responses are served from the router cache. Zero disables it.
	RouteCacheTTL time.Duration
}

const (
	formatRSS      = "rss"
	formatAtom     = "atom"
	formatJSON     = "json"
	formatJSONFeed = "jsonfeed"
)

// Returns a fiber.App instance serving the admissions feeds
func Server(config *ServerConfig) *fiber.App {

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	// Middleware to track the latency of each request
	app.Use(func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		log.WithFields(log.Fields{
			"method":  c.Method(),
			"route":   c.Route().Path,
			"path":    c.Path(),
			"status":  c.Response().StatusCode(),
			"latency": time.Since(start),
		}).Info("Request")
		return err
	})

	app.Use(requestid.New(requestid.ConfigDefault))
	app.Use(compress.New())

	// Feed readers running in the browser fetch feeds cross-origin
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,HEAD,OPTIONS",
	}))

	if config.RouteCacheTTL > 0 {
		app.Use(fibercache.New(fibercache.Config{
			Next: func(c *fiber.Ctx) bool {
				if c.Method() != fiber.MethodGet {
					return true
				}
				// Only cache feed responses
				return !strings.HasPrefix(c.Path(), "/neu/yz/")
			},
			Expiration:   config.RouteCacheTTL,
			CacheControl: true,
			KeyGenerator: func(c *fiber.Ctx) string {
				// Include the query parameters in the cache key
				return c.Request().URI().String()
			},
		}))
	}

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":    "healthy",
			"timestamp": time.Now().Format(time.RFC3339),
		})
	})

	app.Get("/stats", func(c *fiber.Ctx) error {
		stats := fiber.Map{}
		if config.Articles != nil {
			stats["articles"] = config.Articles.Stats()
		}
		return c.JSON(stats)
	})

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	// Describe the route and its category table
	app.Get("/neu/yz", func(c *fiber.Ctx) error {
		return c.JSON(config.Builder.Route())
	})

	app.Get("/neu/yz/:type", func(c *fiber.Ctx) error {
		category := c.Params("type")
		format := strings.ToLower(c.Query("format", formatRSS))
		limit := c.QueryInt("limit", 0)

		if !validFormat(format) {
			return c.Status(http.StatusBadRequest).SendString("Invalid format")
		}

		feed, err := config.Builder.Build(c.UserContext(), category, limit)
		if err != nil {
			log.WithFields(log.Fields{
				"category": category,
				"error":    err,
			}).Error("Error building feed")

			var statusErr *fetch.StatusError
			if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound {
				return c.Status(http.StatusNotFound).SendString("Feed source not found")
			}
			return c.Status(http.StatusBadGateway).SendString("Error building feed")
		}

		log.WithFields(log.Fields{
			"category": category,
			"count":    len(feed.Items),
			"format":   format,
		}).Info("Built feed")

		if format == formatJSON {
			return c.JSON(feed)
		}

		body, contentType, err := Render(feed, format)
		if err != nil {
			log.WithFields(log.Fields{
				"error": err,
			}).Error("Error rendering feed")
			return c.Status(http.StatusInternalServerError).SendString("Error rendering feed")
		}
		c.Set(fiber.HeaderContentType, contentType)
		return c.SendString(body)
	})

	return app
}

func validFormat(format string) bool {
	switch format {
	case formatRSS, formatAtom, formatJSON, formatJSONFeed:
		return true
	}
	return false
}

// Render serializes a feed as rss, atom or jsonfeed and returns the body with its content type
func Render(feed *models.FeedResult, format string) (string, string, error) {
	out := &gorillafeeds.Feed{
		Title:       feed.Title,
		Link:        &gorillafeeds.Link{Href: feed.Link},
		Description: feed.Description,
		Updated:     latest(feed.Items),
	}
	for _, item := range feed.Items {
		out.Items = append(out.Items, &gorillafeeds.Item{
			Title:       item.Title,
			Link:        &gorillafeeds.Link{Href: item.Link},
			Description: item.Description,
			Author:      &gorillafeeds.Author{Name: item.Author},
			Id:          item.GUID,
			Created:     item.PubDate,
		})
	}

	switch format {
	case formatAtom:
		body, err := out.ToAtom()
		return body, "application/atom+xml; charset=utf-8", err
	case formatJSONFeed:
		body, err := out.ToJSON()
		return body, "application/feed+json; charset=utf-8", err
	case formatRSS:
		body, err := out.ToRss()
		return body, "application/rss+xml; charset=utf-8", err
	default:
		return "", "", fmt.Errorf("unsupported feed format %q", format)
	}
}

// latest returns the newest publish date, or now for feeds without dates
func latest(items []models.FeedItem) time.Time {
	var newest time.Time
	for _, item := range items {
		if item.PubDate.After(newest) {
			newest = item.PubDate
		}
	}
	if newest.IsZero() {
		return time.Now()
	}
	return newest
}
