package feeds

import (
	"context"
	"fmt"
	"html"
	"net/url"
	"strings"

	"neuyz/cache"
	"neuyz/config"
	"neuyz/models"
	"neuyz/sanitize"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const (
	articleDateSelector   = ".arti_update"
	articleAuthorSelector = ".arti_publisher"
	articleBodySelector   = ".entry"

	downloadLinkText = "点击进入下载地址传送门～"
)

// Builder turns a category into a feed by reading the listing page and
// resolving every listed article concurrently
type Builder struct {
	site      *config.Site
	origin    *url.URL
	fetcher   Fetcher
	articles  *cache.Cache[models.ArticleDetail]
	sanitizer *sanitize.Sanitizer
}

type resolver func(ctx context.Context, stub models.ArticleStub) (models.FeedItem, error)

func NewBuilder(site *config.Site, fetcher Fetcher, articles *cache.Cache[models.ArticleDetail]) (*Builder, error) {
	origin, err := url.Parse(site.Origin)
	if err != nil {
		return nil, fmt.Errorf("invalid site origin %q: %w", site.Origin, err)
	}
	sanitizer, err := sanitize.New(site.Origin)
	if err != nil {
		return nil, err
	}
	return &Builder{
		site:      site,
		origin:    origin,
		fetcher:   fetcher,
		articles:  articles,
		sanitizer: sanitizer,
	}, nil
}

// Resolve maps a category name to its section code. Names that are not in
// the table are returned unchanged with ok=false and used as the code directly.
func (b *Builder) Resolve(category string) (code string, ok bool) {
	if code, ok := b.site.Categories[category]; ok {
		return code, true
	}
	return category, false
}

// Build produces the feed for a category. A limit above zero caps the number
// of articles resolved. Any failed article fetch fails the whole feed.
func (b *Builder) Build(ctx context.Context, category string, limit int) (*models.FeedResult, error) {
	code, named := b.Resolve(category)

	log.WithFields(log.Fields{
		"category": category,
		"code":     code,
		"named":    named,
	}).Info("Building feed")

	pageTitle, stubs, err := b.FetchListing(ctx, code)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(stubs) > limit {
		stubs = stubs[:limit]
	}

	resolve := b.resolveGeneral
	if code == b.site.DownloadCode {
		resolve = b.resolveDownload
	}

	items, err := resolveAll(ctx, stubs, resolve)
	if err != nil {
		return nil, err
	}

	return &models.FeedResult{
		Title:       pageTitle + b.site.TitleSuffix,
		Description: pageTitle,
		Link:        b.site.Origin,
		Items:       items,
	}, nil
}

// resolveAll resolves every stub concurrently and keeps listing order
func resolveAll(ctx context.Context, stubs []models.ArticleStub, resolve resolver) ([]models.FeedItem, error) {
	items := make([]models.FeedItem, len(stubs))
	g, gctx := errgroup.WithContext(ctx)
	for i, stub := range stubs {
		i, stub := i, stub
		g.Go(func() error {
			item, err := resolve(gctx, stub)
			if err != nil {
				return err
			}
			items[i] = item
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return items, nil
}

func (b *Builder) resolveGeneral(ctx context.Context, stub models.ArticleStub) (models.FeedItem, error) {
	detail, err := b.Article(ctx, stub.URL)
	if err != nil {
		return models.FeedItem{}, err
	}
	return models.FeedItem{
		Title:       stub.Title,
		Link:        stub.URL,
		Description: detail.Description,
		PubDate:     ParseDate(detail.Date),
		Author:      detail.Author,
		GUID:        itemGUID(stub.URL),
	}, nil
}

func (b *Builder) resolveDownload(ctx context.Context, stub models.ArticleStub) (models.FeedItem, error) {
	item := models.FeedItem{
		Title:   stub.Title,
		Link:    stub.URL,
		PubDate: ParseDate(stub.PublishDate),
		Author:  b.site.OfficeLabel,
		GUID:    itemGUID(stub.URL),
	}

	if IsDownloadableFile(stub.URL) {
		item.Description = fileDescription(stub.Title, stub.URL)
		return item, nil
	}

	detail, err := b.Article(ctx, stub.URL)
	if err != nil {
		return models.FeedItem{}, err
	}
	item.Description = detail.Description
	return item, nil
}

// Article returns the date, author and sanitized body of an article page.
// Results are memoized per URL.
func (b *Builder) Article(ctx context.Context, link string) (models.ArticleDetail, error) {
	return b.articles.TryGet(ctx, link, func(ctx context.Context) (models.ArticleDetail, error) {
		body, err := b.fetcher.Fetch(ctx, link)
		if err != nil {
			return models.ArticleDetail{}, fmt.Errorf("fetching article: %w", err)
		}
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
		if err != nil {
			return models.ArticleDetail{}, fmt.Errorf("parsing article %s: %w", link, err)
		}
		return b.parseArticle(doc), nil
	})
}

func (b *Builder) parseArticle(doc *goquery.Document) models.ArticleDetail {
	date, _ := ExtractDate(doc.Find(articleDateSelector).First().Text())
	author, _ := ExtractAuthor(doc.Find(articleAuthorSelector).First().Text())
	return models.ArticleDetail{
		Description: b.sanitizer.Entry(doc, articleBodySelector),
		Date:        date,
		Author:      author,
	}
}

func fileDescription(title, link string) string {
	return fmt.Sprintf(`<p>%s</p><br/><a href="%s">%s</a>`,
		html.EscapeString(title), html.EscapeString(link), downloadLinkText)
}

// itemGUID derives a stable identifier from the article link
func itemGUID(link string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(link)).String()
}
