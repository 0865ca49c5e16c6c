package server_test

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"neuyz/cache"
	"neuyz/config"
	"neuyz/feeds"
	"neuyz/fetch"
	"neuyz/models"
	"neuyz/server"

	"github.com/gofiber/fiber/v2"
	"github.com/mmcdole/gofeed"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const listing = `<html><head><title>硕士公告</title></head><body>
<div class="col_news_list"><ul class="wp_article_list">
<li><span class="Article_Title"><a href="/2024/1101/c5932a1/page.htm" title="Admission notice">Admission notice</a></span></li>
<li><span class="Article_Title"><a href="/2024/1020/c5932a2/page.htm" title="Interview schedule">Interview schedule</a></span></li>
</ul></div></body></html>`

const downloadListing = `<html><head><title>下载中心</title></head><body>
<div class="col_news_list"><ul class="wp_article_list">
<li><span class="Article_Title"><a href="/_upload/form.docx" title="Application form">Application form</a></span><span class="Article_PublishDate">2024-10-09</span></li>
</ul></div></body></html>`

func article(date, body string) string {
	return fmt.Sprintf(`<html><body><span class="arti_publisher">发布者：研招办</span>
<span class="arti_update">发布时间：%s</span><div class="entry">%s</div></body></html>`, date, body)
}

type upstream struct {
	mu     sync.Mutex
	hits   map[string]int
	pages  map[string]string
	status map[string]int
}

func newUpstream(t *testing.T) (*upstream, *httptest.Server) {
	u := &upstream{
		hits: make(map[string]int),
		pages: map[string]string{
			"/5932/list.htm":              listing,
			"/5792/list.htm":              downloadListing,
			"/2024/1101/c5932a1/page.htm": article("2024-11-01", `<div><p class="x">First <span>body</span></p></div>`),
			"/2024/1020/c5932a2/page.htm": article("2024-10-20", `<p>Second body</p>`),
		},
		status: make(map[string]int),
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u.mu.Lock()
		u.hits[r.URL.Path]++
		page, ok := u.pages[r.URL.Path]
		status := u.status[r.URL.Path]
		u.mu.Unlock()
		if status != 0 {
			w.WriteHeader(status)
			return
		}
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		io.WriteString(w, page)
	}))
	t.Cleanup(srv.Close)
	return u, srv
}

func (u *upstream) count(path string) int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.hits[path]
}

func newApp(t *testing.T, origin string, routeTTL time.Duration) *fiber.App {
	t.Helper()
	cfg := config.Default()
	cfg.Site.Origin = origin
	site, err := cfg.SiteConfig()
	require.NoError(t, err)

	articles := cache.New[models.ArticleDetail](64, time.Hour)
	builder, err := feeds.NewBuilder(site, fetch.NewHTTPFetcher(5*time.Second, "neuyz-test"), articles)
	require.NoError(t, err)

	return server.Server(&server.ServerConfig{
		Builder:       builder,
		Articles:      articles,
		RouteCacheTTL: routeTTL,
	})
}

func get(t *testing.T, app *fiber.App, target string) (*http.Response, string) {
	t.Helper()
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, target, nil), -1)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body)
}

func TestRSSFeed(t *testing.T) {
	_, up := newUpstream(t)
	app := newApp(t, up.URL, 0)

	resp, body := get(t, app, "/neu/yz/master1")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "application/rss+xml")

	parsed, err := gofeed.NewParser().ParseString(body)
	require.NoError(t, err)
	assert.Equal(t, "硕士公告-东北大学研究生招生信息网", parsed.Title)
	assert.Equal(t, "硕士公告", parsed.Description)
	require.Len(t, parsed.Items, 2)

	first := parsed.Items[0]
	assert.Equal(t, "Admission notice", first.Title)
	assert.Equal(t, up.URL+"/2024/1101/c5932a1/page.htm", first.Link)
	assert.Equal(t, "<p>First body</p>", first.Description)
	require.NotNil(t, first.PublishedParsed)
	assert.Equal(t, time.Date(2024, 10, 31, 16, 0, 0, 0, time.UTC), first.PublishedParsed.UTC())

	assert.Equal(t, "Interview schedule", parsed.Items[1].Title)
}

func TestAtomFeed(t *testing.T) {
	_, up := newUpstream(t)
	app := newApp(t, up.URL, 0)

	resp, body := get(t, app, "/neu/yz/master1?format=atom")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "application/atom+xml")

	parsed, err := gofeed.NewParser().ParseString(body)
	require.NoError(t, err)
	assert.Equal(t, "atom", parsed.FeedType)
	require.Len(t, parsed.Items, 2)
	assert.Equal(t, up.URL+"/2024/1101/c5932a1/page.htm", parsed.Items[0].Link)
}

func TestJSONFeed(t *testing.T) {
	_, up := newUpstream(t)
	app := newApp(t, up.URL, 0)

	resp, body := get(t, app, "/neu/yz/download?format=json")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var feed models.FeedResult
	require.NoError(t, json.Unmarshal([]byte(body), &feed))
	assert.Equal(t, "下载中心-东北大学研究生招生信息网", feed.Title)
	assert.Equal(t, up.URL, feed.Link)
	require.Len(t, feed.Items, 1)
	assert.Equal(t, "研招办", feed.Items[0].Author)
	assert.Contains(t, feed.Items[0].Description, up.URL+"/_upload/form.docx")
}

func TestLimit(t *testing.T) {
	u, up := newUpstream(t)
	app := newApp(t, up.URL, 0)

	resp, body := get(t, app, "/neu/yz/master1?format=json&limit=1")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var feed models.FeedResult
	require.NoError(t, json.Unmarshal([]byte(body), &feed))
	require.Len(t, feed.Items, 1)
	assert.Equal(t, 0, u.count("/2024/1020/c5932a2/page.htm"))
}

func TestUnknownCategoryNotFound(t *testing.T) {
	_, up := newUpstream(t)
	app := newApp(t, up.URL, 0)

	resp, _ := get(t, app, "/neu/yz/9999")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestUpstreamFailure(t *testing.T) {
	u, up := newUpstream(t)
	u.pages["/5945/list.htm"] = `<html><head><title>博士公告</title></head><body>
<div class="col_news_list"><ul class="wp_article_list">
<li><span class="Article_Title"><a href="/broken.htm" title="Broken">Broken</a></span></li>
</ul></div></body></html>`
	u.status["/broken.htm"] = http.StatusBadGateway
	app := newApp(t, up.URL, 0)

	resp, _ := get(t, app, "/neu/yz/phd1")
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
}

func TestInvalidFormat(t *testing.T) {
	_, up := newUpstream(t)
	app := newApp(t, up.URL, 0)

	resp, _ := get(t, app, "/neu/yz/master1?format=yaml")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRouteCache(t *testing.T) {
	u, up := newUpstream(t)
	app := newApp(t, up.URL, time.Minute)

	first, firstBody := get(t, app, "/neu/yz/master1")
	require.Equal(t, http.StatusOK, first.StatusCode)
	second, secondBody := get(t, app, "/neu/yz/master1")
	require.Equal(t, http.StatusOK, second.StatusCode)

	assert.Equal(t, firstBody, secondBody)
	assert.Equal(t, "hit", second.Header.Get("X-Cache"))
	assert.Equal(t, 1, u.count("/5932/list.htm"))
}

func TestArticleCacheAcrossRequests(t *testing.T) {
	u, up := newUpstream(t)
	app := newApp(t, up.URL, 0)

	resp, _ := get(t, app, "/neu/yz/master1")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = get(t, app, "/neu/yz/master1?format=atom")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	assert.Equal(t, 2, u.count("/5932/list.htm"))
	assert.Equal(t, 1, u.count("/2024/1101/c5932a1/page.htm"))
	assert.Equal(t, 1, u.count("/2024/1020/c5932a2/page.htm"))
}

func TestRouteDescription(t *testing.T) {
	_, up := newUpstream(t)
	app := newApp(t, up.URL, 0)

	resp, body := get(t, app, "/neu/yz")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var route feeds.Route
	require.NoError(t, json.Unmarshal([]byte(body), &route))
	assert.Equal(t, "/neu/yz/master1", route.Example)
	assert.Len(t, route.Types, 5)
}

func TestHealthAndStats(t *testing.T) {
	_, up := newUpstream(t)
	app := newApp(t, up.URL, 0)

	resp, _ := get(t, app, "/healthz")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := get(t, app, "/stats")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `"articles"`)

	resp, body = get(t, app, "/metrics")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "go_goroutines")
}

func TestRender(t *testing.T) {
	feed := &models.FeedResult{
		Title:       "t",
		Description: "d",
		Link:        "http://yz.neu.edu.cn",
		Items: []models.FeedItem{
			{Title: "a", Link: "http://yz.neu.edu.cn/a.htm", Description: "<p>a</p>", GUID: "1"},
		},
	}

	for _, format := range []string{"rss", "atom", "jsonfeed"} {
		t.Run(format, func(t *testing.T) {
			body, contentType, err := server.Render(feed, format)
			require.NoError(t, err)
			assert.NotEmpty(t, contentType)

			parsed, err := gofeed.NewParser().ParseString(body)
			require.NoError(t, err)
			require.Len(t, parsed.Items, 1)
			assert.Equal(t, "a", parsed.Items[0].Title)
		})
	}
}

func TestRenderUnknownFormat(t *testing.T) {
	_, _, err := server.Render(&models.FeedResult{Title: "t"}, "yaml")
	assert.Error(t, err)
}

func TestCORS(t *testing.T) {
	_, up := newUpstream(t)
	app := newApp(t, up.URL, 0)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("Origin", "http://reader.example")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}
