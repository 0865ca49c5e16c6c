package feeds

import (
	"context"
	"fmt"
	"strings"

	"neuyz/models"
	"neuyz/sanitize"

	"github.com/PuerkitoBio/goquery"
	log "github.com/sirupsen/logrus"
)

const (
	listingItemSelector  = "div.col_news_list ul.wp_article_list li"
	listingTitleSelector = "span.Article_Title > a"
	listingDateSelector  = "span.Article_PublishDate"
)

// ListingURL returns the first listing page of a section
func (b *Builder) ListingURL(code string) string {
	return fmt.Sprintf("%s/%s/list.htm", strings.TrimRight(b.site.Origin, "/"), code)
}

// FetchListing reads the first listing page of a section and returns its
// page title and article stubs in page order. Only the first page is read.
func (b *Builder) FetchListing(ctx context.Context, code string) (string, []models.ArticleStub, error) {
	listingURL := b.ListingURL(code)
	body, err := b.fetcher.Fetch(ctx, listingURL)
	if err != nil {
		return "", nil, fmt.Errorf("fetching listing: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return "", nil, fmt.Errorf("parsing listing %s: %w", listingURL, err)
	}

	title := strings.TrimSpace(doc.Find("title").First().Text())
	withDate := code == b.site.DownloadCode

	var stubs []models.ArticleStub
	doc.Find(listingItemSelector).Each(func(i int, li *goquery.Selection) {
		stub, ok := b.parseStub(li, withDate)
		if !ok {
			log.WithFields(log.Fields{
				"listing": listingURL,
				"index":   i,
			}).Warn("Skipping listing entry without title or link")
			return
		}
		stubs = append(stubs, stub)
	})

	return title, stubs, nil
}

func (b *Builder) parseStub(li *goquery.Selection, withDate bool) (models.ArticleStub, bool) {
	a := li.Find(listingTitleSelector).First()

	href, _ := a.Attr("href")
	href = strings.TrimSpace(href)
	title, _ := a.Attr("title")
	title = strings.TrimSpace(title)
	if title == "" {
		title = strings.TrimSpace(a.Text())
	}
	if href == "" || title == "" {
		return models.ArticleStub{}, false
	}

	stub := models.ArticleStub{
		Title: title,
		URL:   sanitize.ResolveURL(b.origin, href),
	}
	if withDate {
		stub.PublishDate = strings.TrimSpace(li.Find(listingDateSelector).First().Text())
	}
	return stub, true
}
