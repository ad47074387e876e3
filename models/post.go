package models

import (
	"strings"
	"time"
)

// DefaultSubreddit is recorded on posts when the source does not report one.
const DefaultSubreddit = "UNIFI"

// Post represents one unit of community content ingested from the source
type Post struct {
	ID          string    `json:"id" db:"id"`
	Title       string    `json:"title" db:"title"`
	Body        string    `json:"selftext" db:"selftext"`
	Author      string    `json:"author" db:"author"`
	CreatedUTC  int64     `json:"created_utc" db:"created_utc"`
	Score       int       `json:"score" db:"score"`
	NumComments int       `json:"num_comments" db:"num_comments"`
	URL         string    `json:"url" db:"url"`
	Permalink   string    `json:"permalink" db:"permalink"`
	Subreddit   string    `json:"subreddit" db:"subreddit"`
	FetchedAt   time.Time `json:"fetched_at" db:"fetched_at"`
	Processed   bool      `json:"processed" db:"processed"`
}

// Text returns the lower-cased title and body used for classification
func (p *Post) Text() string {
	return strings.ToLower(p.Title + " " + p.Body)
}

// CreatedAt converts the upstream epoch seconds into a time value
func (p *Post) CreatedAt() time.Time {
	return time.Unix(p.CreatedUTC, 0).UTC()
}
