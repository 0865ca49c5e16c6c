package config

import (
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/samber/lo"
)

// TomlCategory maps a named category to the site's section code
type TomlCategory struct {
	Name  string `toml:"name"`
	Code  string `toml:"code"`
	Label string `toml:"label,omitempty"`
}

// TomlSite represents the site configuration
type TomlSite struct {
	Origin           string         `toml:"origin"`
	TitleSuffix      string         `toml:"title_suffix"`
	OfficeLabel      string         `toml:"office_label"`
	DownloadCategory string         `toml:"download_category"`
	UserAgent        string         `toml:"user_agent,omitempty"`
	Timeout          string         `toml:"timeout,omitempty"`
	Categories       []TomlCategory `toml:"categories"`
}

// TomlConfig represents the top-level configuration
type TomlConfig struct {
	Site TomlSite `toml:"site"`
}

// Site is the validated runtime configuration for the admissions site
type Site struct {
	Origin       string
	TitleSuffix  string
	OfficeLabel  string
	DownloadCode string
	UserAgent    string
	Timeout      time.Duration
	Categories   map[string]string
	Labels       map[string]string
}

const defaultUserAgent = "Mozilla/5.0 (compatible; neuyz/1.0; +http://yz.neu.edu.cn)"

// Default returns the built-in site table.
func Default() *TomlConfig {
	return &TomlConfig{
		Site: TomlSite{
			Origin:           "http://yz.neu.edu.cn",
			TitleSuffix:      "-东北大学研究生招生信息网",
			OfficeLabel:      "研招办",
			DownloadCategory: "download",
			UserAgent:        defaultUserAgent,
			Timeout:          "30s",
			Categories: []TomlCategory{
				{Name: "master1", Code: "5932", Label: "硕士公告"},
				{Name: "master2", Code: "5933", Label: "硕士简章"},
				{Name: "phd1", Code: "5945", Label: "博士公告"},
				{Name: "phd2", Code: "5946", Label: "博士简章"},
				{Name: "download", Code: "5792", Label: "下载中心"},
			},
		},
	}
}

// LoadConfig reads a TOML file on top of the defaults. An empty path returns the defaults.
func LoadConfig(path string) (*TomlConfig, error) {
	config := Default()
	if path == "" {
		return config, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	// A file that lists categories replaces the built-in table entirely
	config.Site.Categories = nil
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}
	if len(config.Site.Categories) == 0 {
		config.Site.Categories = Default().Site.Categories
	}

	return config, nil
}

// SiteConfig validates the TOML site section and builds the runtime view of it
func (c *TomlConfig) SiteConfig() (*Site, error) {
	s := c.Site
	if s.Origin == "" {
		return nil, fmt.Errorf("site origin must be set")
	}

	timeout := 30 * time.Second
	if s.Timeout != "" {
		d, err := time.ParseDuration(s.Timeout)
		if err != nil {
			return nil, fmt.Errorf("invalid site timeout %q: %w", s.Timeout, err)
		}
		timeout = d
	}

	categories := make(map[string]string, len(s.Categories))
	labels := make(map[string]string, len(s.Categories))
	for _, cat := range s.Categories {
		if cat.Name == "" || cat.Code == "" {
			return nil, fmt.Errorf("category entries need both name and code")
		}
		if _, dup := categories[cat.Name]; dup {
			return nil, fmt.Errorf("duplicate category %q", cat.Name)
		}
		categories[cat.Name] = cat.Code
		labels[cat.Name] = cat.Label
	}

	downloadCode, ok := categories[s.DownloadCategory]
	if !ok {
		return nil, fmt.Errorf("download category %q is not in the category table", s.DownloadCategory)
	}

	userAgent := s.UserAgent
	if userAgent == "" {
		userAgent = defaultUserAgent
	}

	return &Site{
		Origin:       s.Origin,
		TitleSuffix:  s.TitleSuffix,
		OfficeLabel:  s.OfficeLabel,
		DownloadCode: downloadCode,
		UserAgent:    userAgent,
		Timeout:      timeout,
		Categories:   categories,
		Labels:       labels,
	}, nil
}

// CategoryNames returns the configured category names in sorted order
func (s *Site) CategoryNames() []string {
	names := lo.Keys(s.Categories)
	sort.Strings(names)
	return names
}
