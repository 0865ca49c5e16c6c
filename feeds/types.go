// Package feeds builds admission notice feeds from the listing and article pages
package feeds

import (
	"context"
	"sort"
	"strings"
)

// Fetcher retrieves the raw HTML of a page
type Fetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// RadarRule maps a page on the site to the matching feed path
type RadarRule struct {
	Source []string `json:"source"`
	Target string   `json:"target"`
}

// CategoryInfo describes one named category of the route
type CategoryInfo struct {
	Name  string `json:"name"`
	Code  string `json:"code"`
	Label string `json:"label,omitempty"`
}

// Route describes the feed endpoint
type Route struct {
	Path        string            `json:"path"`
	Example     string            `json:"example"`
	Name        string            `json:"name"`
	URL         string            `json:"url"`
	Categories  []string          `json:"categories"`
	Maintainers []string          `json:"maintainers"`
	Parameters  map[string]string `json:"parameters"`
	Radar       []RadarRule       `json:"radar"`
	Types       []CategoryInfo    `json:"types"`
}

// Route returns the endpoint description including the configured category table
func (b *Builder) Route() Route {
	host := strings.TrimPrefix(strings.TrimPrefix(b.site.Origin, "https://"), "http://")

	types := make([]CategoryInfo, 0, len(b.site.Categories))
	for name, code := range b.site.Categories {
		types = append(types, CategoryInfo{Name: name, Code: code, Label: b.site.Labels[name]})
	}
	sort.Slice(types, func(i, j int) bool { return types[i].Name < types[j].Name })

	return Route{
		Path:        "/yz/:type",
		Example:     "/neu/yz/master1",
		Name:        "研究生招生信息网",
		URL:         host,
		Categories:  []string{"university"},
		Maintainers: []string{"paintstar"},
		Parameters:  map[string]string{"type": "分类id,见下表"},
		Radar: []RadarRule{
			{Source: []string{host + "/:type/list.htm"}, Target: "/yz/:type"},
		},
		Types: types,
	}
}
