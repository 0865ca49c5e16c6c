package models

import "time"

// ArticleStub is one entry read from a listing page
type ArticleStub struct {
	Title string `json:"title"`
	URL   string `json:"url"`

	// Only populated for the download category, where the listing carries the date
	PublishDate string `json:"publishDate,omitempty"`
}

// ArticleDetail holds what is extracted from an article page
type ArticleDetail struct {
	Description string `json:"description"`
	Date        string `json:"date"`
	Author      string `json:"author"`
}

// FeedItem is a single entry of the produced feed
type FeedItem struct {
	Title       string    `json:"title"`
	Link        string    `json:"link"`
	Description string    `json:"description"`
	PubDate     time.Time `json:"pubDate"`
	Author      string    `json:"author"`
	GUID        string    `json:"guid"`
}

type FeedResult struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Link        string     `json:"link"`
	Items       []FeedItem `json:"item"`
}
