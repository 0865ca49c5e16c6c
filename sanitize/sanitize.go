// Package sanitize rewrites article bodies into feed-safe HTML.
//
// The body is walked once and a new fragment is written out; nodes of the
// parsed document are never replaced in place. Each element is handled by
// the first matching rule:
//
//	.wp_pdf_player                    -> paragraph linking to pdfsrc
//	.wp_video_player with sudy-wp-src -> <video> with width/height from the style
//	span                              -> its text content
//	div                               -> its children
//	p                                 -> without style and class
//	img                               -> src and alt only
//
// A pdf widget inside a paragraph is written as inline text and link, and
// inside a link as plain text, so that the output parses back to itself.
// Video widgets missing their source attribute are written out unchanged.
package sanitize

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

const (
	pdfPlayerClass   = "wp_pdf_player"
	videoPlayerClass = "wp_video_player"
	pdfSourceAttr    = "pdfsrc"
	videoSourceAttr  = "sudy-wp-src"

	defaultVideoWidth  = "600"
	defaultVideoHeight = "400"

	videoStyle       = "max-width: 100%;margin-left: auto;margin-right: auto;"
	pdfLinkPrefix    = "点击进入文件传送门～："
	pdfLinkText      = "查看文件"
	videoUnsupported = "您的浏览器不支持 video 标签。"
)

var (
	widthPattern  = regexp.MustCompile(`width:\s*(?P<px>\d+)px`)
	heightPattern = regexp.MustCompile(`height:\s*(?P<px>\d+)px`)
)

// Elements that never have an end tag
var voidElements = map[string]bool{
	"area": true, "base": true, "br": true, "col": true, "embed": true,
	"hr": true, "img": true, "input": true, "link": true, "meta": true,
	"param": true, "source": true, "track": true, "wbr": true,
}

// Elements whose first newline is dropped by the parser
var leadingNewlineElements = map[string]bool{
	"pre": true, "listing": true, "textarea": true,
}

// Elements whose text children are written without escaping
var rawTextElements = map[string]bool{
	"script": true, "style": true, "xmp": true, "iframe": true,
	"noembed": true, "noframes": true, "plaintext": true,
}

type Sanitizer struct {
	origin *url.URL
}

// New returns a Sanitizer resolving widget sources against origin
func New(origin string) (*Sanitizer, error) {
	u, err := url.Parse(origin)
	if err != nil {
		return nil, err
	}
	return &Sanitizer{origin: u}, nil
}

// Entry sanitizes the first element matching selector in doc.
// A missing or empty element yields an empty string.
func (s *Sanitizer) Entry(doc *goquery.Document, selector string) string {
	entry := doc.Find(selector).First()
	if entry.Length() == 0 {
		return ""
	}
	return s.Children(entry.Get(0))
}

// Children sanitizes the children of n and returns them as HTML
func (s *Sanitizer) Children(n *html.Node) string {
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		s.write(&b, c, n)
	}
	return strings.TrimSpace(b.String())
}

// Fragment parses an HTML fragment as body content and sanitizes it
func (s *Sanitizer) Fragment(fragment string) (string, error) {
	body := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(strings.NewReader(fragment), body)
	if err != nil {
		return "", err
	}
	for _, n := range nodes {
		body.AppendChild(n)
	}
	return s.Children(body), nil
}

// write renders n. root is the element being sanitized; ancestors above it
// are not part of the output.
func (s *Sanitizer) write(b *strings.Builder, n, root *html.Node) {
	switch n.Type {
	case html.TextNode:
		if n.Parent != nil && n.Parent.Type == html.ElementNode && rawTextElements[n.Parent.Data] {
			b.WriteString(n.Data)
			return
		}
		b.WriteString(html.EscapeString(n.Data))
	case html.CommentNode:
		b.WriteString("<!--")
		b.WriteString(n.Data)
		b.WriteString("-->")
	case html.ElementNode:
		s.writeElement(b, n, root)
	case html.DocumentNode:
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			s.write(b, c, root)
		}
	}
}

func (s *Sanitizer) writeElement(b *strings.Builder, n, root *html.Node) {
	switch {
	case hasClass(n, pdfPlayerClass):
		src, _ := attr(n, pdfSourceAttr)
		href := ResolveURL(s.origin, src)
		switch {
		case hasAncestor(n, root, "a"):
			b.WriteString(html.EscapeString(pdfLinkPrefix + href))
		case hasAncestor(n, root, "p"):
			for _, c := range pdfLinkContent(href) {
				s.write(b, c, nil)
			}
		default:
			s.write(b, pdfLink(href), nil)
		}
	case hasClass(n, videoPlayerClass):
		src, ok := attr(n, videoSourceAttr)
		if !ok || src == "" {
			writeUnchanged(b, n)
			return
		}
		style, _ := attr(n, "style")
		width := firstMatch(widthPattern, style, defaultVideoWidth)
		height := firstMatch(heightPattern, style, defaultVideoHeight)
		s.write(b, videoElement(ResolveURL(s.origin, src), width, height), nil)
	case n.Data == "span":
		b.WriteString(html.EscapeString(textContent(n)))
	case n.Data == "div":
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			s.write(b, c, root)
		}
	case n.Data == "p":
		s.writeTag(b, n, root, withoutAttrs(n.Attr, "style", "class"))
	case n.Data == "img":
		src, _ := attr(n, "src")
		alt, _ := attr(n, "alt")
		s.writeTag(b, n, root, []html.Attribute{{Key: "src", Val: src}, {Key: "alt", Val: alt}})
	default:
		s.writeTag(b, n, root, n.Attr)
	}
}

func (s *Sanitizer) writeTag(b *strings.Builder, n, root *html.Node, attrs []html.Attribute) {
	b.WriteByte('<')
	b.WriteString(n.Data)
	for _, a := range attrs {
		b.WriteByte(' ')
		if a.Namespace != "" {
			b.WriteString(a.Namespace)
			b.WriteByte(':')
		}
		b.WriteString(a.Key)
		b.WriteString(`="`)
		b.WriteString(html.EscapeString(a.Val))
		b.WriteByte('"')
	}
	if voidElements[n.Data] {
		b.WriteString(" />")
		return
	}
	b.WriteByte('>')
	if leadingNewlineElements[n.Data] {
		if c := n.FirstChild; c != nil && c.Type == html.TextNode && strings.HasPrefix(c.Data, "\n") {
			b.WriteByte('\n')
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		s.write(b, c, root)
	}
	b.WriteString("</")
	b.WriteString(n.Data)
	b.WriteByte('>')
}

// writeUnchanged renders a dead widget as the parser saw it
func writeUnchanged(b *strings.Builder, n *html.Node) {
	_ = html.Render(b, n)
}

func pdfLink(href string) *html.Node {
	p := element("p")
	for _, c := range pdfLinkContent(href) {
		p.AppendChild(c)
	}
	return p
}

// pdfLinkContent is the inline part of the pdf paragraph
func pdfLinkContent(href string) []*html.Node {
	a := element("a", html.Attribute{Key: "href", Val: href})
	a.AppendChild(text(pdfLinkText))
	return []*html.Node{text(pdfLinkPrefix), a}
}

func videoElement(src, width, height string) *html.Node {
	video := element("video",
		html.Attribute{Key: "controls"},
		html.Attribute{Key: "width", Val: width},
		html.Attribute{Key: "height", Val: height},
		html.Attribute{Key: "style", Val: videoStyle},
	)
	video.AppendChild(element("source",
		html.Attribute{Key: "src", Val: src},
		html.Attribute{Key: "type", Val: "video/mp4"},
	))
	video.AppendChild(text(videoUnsupported))
	return video
}

func element(tag string, attrs ...html.Attribute) *html.Node {
	return &html.Node{Type: html.ElementNode, Data: tag, DataAtom: atom.Lookup([]byte(tag)), Attr: attrs}
}

func text(data string) *html.Node {
	return &html.Node{Type: html.TextNode, Data: data}
}

func textContent(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		b.WriteString(textContent(c))
	}
	return b.String()
}

// hasAncestor reports whether an element named tag sits between n and root
func hasAncestor(n, root *html.Node, tag string) bool {
	for a := n.Parent; a != nil && a != root; a = a.Parent {
		if a.Type == html.ElementNode && a.Data == tag {
			return true
		}
	}
	return false
}

func attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

func hasClass(n *html.Node, class string) bool {
	classes, ok := attr(n, "class")
	if !ok {
		return false
	}
	for _, c := range strings.Fields(classes) {
		if c == class {
			return true
		}
	}
	return false
}

func withoutAttrs(attrs []html.Attribute, drop ...string) []html.Attribute {
	kept := make([]html.Attribute, 0, len(attrs))
outer:
	for _, a := range attrs {
		for _, d := range drop {
			if a.Namespace == "" && a.Key == d {
				continue outer
			}
		}
		kept = append(kept, a)
	}
	return kept
}

func firstMatch(re *regexp.Regexp, s, fallback string) string {
	m := re.FindStringSubmatch(s)
	if m == nil {
		return fallback
	}
	return m[re.SubexpIndex("px")]
}

// ResolveURL makes ref absolute against base. Refs that fail to parse are appended to base as-is.
func ResolveURL(base *url.URL, ref string) string {
	ref = strings.TrimSpace(ref)
	u, err := url.Parse(ref)
	if err != nil {
		return strings.TrimRight(base.String(), "/") + ref
	}
	return base.ResolveReference(u).String()
}
