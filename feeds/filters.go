package feeds

import (
	"net/url"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/samber/lo"
)

// Extensions of links that point at a file rather than an article page
var downloadExtensions = []string{"pdf", "doc", "docx", "xls", "xlsx", "zip", "rar", "7z"}

var (
	datePattern   = regexp.MustCompile(`(?P<date>\d{4}-\d{2}-\d{2})`)
	authorPattern = regexp.MustCompile(`(?s)^(?:[^:：]*[:：])?\s*(?P<author>.*?)\s*$`)
)

// Publish dates on the site are Beijing time
var siteZone = time.FixedZone("CST", 8*60*60)

var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006/01/02",
	"2006.01.02",
	"2006年01月02日",
}

// IsDownloadableFile reports whether link points at a file by its path extension.
// The check is case-insensitive and ignores query string and fragment.
func IsDownloadableFile(link string) bool {
	p := link
	if u, err := url.Parse(link); err == nil {
		p = u.Path
	}
	ext := strings.TrimPrefix(path.Ext(p), ".")
	if ext == "" {
		return false
	}
	return lo.Contains(downloadExtensions, strings.ToLower(ext))
}

// ExtractDate returns the first YYYY-MM-DD date found in text
func ExtractDate(text string) (string, bool) {
	return namedMatch(datePattern, text, "date")
}

// ExtractAuthor strips a leading label such as "发布者：" from text
func ExtractAuthor(text string) (string, bool) {
	return namedMatch(authorPattern, strings.TrimSpace(text), "author")
}

func namedMatch(re *regexp.Regexp, text, group string) (string, bool) {
	m := re.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	v := strings.TrimSpace(m[re.SubexpIndex(group)])
	return v, v != ""
}

// ParseDate reads a site date in the UTC+8 zone. Unparseable input yields the zero time.
func ParseDate(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, s, siteZone); err == nil {
			return t
		}
	}
	// Listing cells sometimes carry extra text around the date
	if d, ok := ExtractDate(s); ok {
		if t, err := time.ParseInLocation("2006-01-02", d, siteZone); err == nil {
			return t
		}
	}
	return time.Time{}
}
