package source

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"firmware-risk-scanner/logging"
	"firmware-risk-scanner/models"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const (
	DefaultAPIBaseURL = "https://oauth.reddit.com"
	DefaultTokenURL   = "https://www.reddit.com/api/v1/access_token"
	DefaultUserAgent  = "firmware-risk-scanner/1.0"
	DefaultTimeout    = 30 * time.Second
)

// RedditConfig holds the Reddit API credentials and endpoints
type RedditConfig struct {
	ClientID     string
	ClientSecret string
	UserAgent    string
	Subreddit    string
	BaseURL      string
	TokenURL     string
	Timeout      time.Duration
}

// RedditClient reads the newest posts of one subreddit through the OAuth API
type RedditClient struct {
	httpClient *http.Client
	baseURL    string
	subreddit  string
	userAgent  string
}

type listingResponse struct {
	Data struct {
		After    string `json:"after"`
		Children []struct {
			Kind string      `json:"kind"`
			Data redditEntry `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

type redditEntry struct {
	ID           string  `json:"id"`
	Title        string  `json:"title"`
	Selftext     string  `json:"selftext"`
	SelftextHTML string  `json:"selftext_html"`
	Author       string  `json:"author"`
	CreatedUTC   float64 `json:"created_utc"`
	Score        int     `json:"score"`
	NumComments  int     `json:"num_comments"`
	URL          string  `json:"url"`
	Permalink    string  `json:"permalink"`
	Subreddit    string  `json:"subreddit"`
}

// userAgentTransport stamps every request, token requests included
type userAgentTransport struct {
	base      http.RoundTripper
	userAgent string
}

func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())
	clone.Header.Set("User-Agent", t.userAgent)
	return t.base.RoundTrip(clone)
}

// NewRedditClient creates a client using the OAuth2 client-credentials grant.
// Tokens are cached and refreshed before they expire.
func NewRedditClient(cfg RedditConfig) (*RedditClient, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, fmt.Errorf("reddit client id and secret are required")
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.Subreddit == "" {
		cfg.Subreddit = models.DefaultSubreddit
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultAPIBaseURL
	}
	if cfg.TokenURL == "" {
		cfg.TokenURL = DefaultTokenURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	base := &http.Client{
		Timeout:   cfg.Timeout,
		Transport: &userAgentTransport{base: http.DefaultTransport, userAgent: cfg.UserAgent},
	}

	credentials := &clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     cfg.TokenURL,
		AuthStyle:    oauth2.AuthStyleInHeader,
	}

	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, base)
	httpClient := credentials.Client(ctx)
	httpClient.Timeout = cfg.Timeout

	return &RedditClient{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		subreddit:  cfg.Subreddit,
		userAgent:  cfg.UserAgent,
	}, nil
}

// FetchRecentPosts returns up to limit of the newest posts, walking the
// listing in pages of at most MaxPageSize
func (c *RedditClient) FetchRecentPosts(ctx context.Context, limit int) ([]*models.Post, error) {
	if limit <= 0 {
		limit = MaxPageSize
	}

	log.Printf("Fetching %d recent posts from r/%s", limit, c.subreddit)

	var posts []*models.Post
	after := ""
	for len(posts) < limit {
		pageSize := limit - len(posts)
		if pageSize > MaxPageSize {
			pageSize = MaxPageSize
		}

		page, next, err := c.fetchPage(ctx, pageSize, after)
		if err != nil {
			return nil, err
		}
		posts = append(posts, page...)
		logging.Debugf("Fetched page of %d posts from r/%s (after=%q, next=%q)", len(page), c.subreddit, after, next)

		if next == "" || len(page) == 0 {
			break
		}
		after = next
	}

	if len(posts) > limit {
		posts = posts[:limit]
	}

	log.Printf("Successfully fetched %d posts", len(posts))
	return posts, nil
}

func (c *RedditClient) fetchPage(ctx context.Context, limit int, after string) ([]*models.Post, string, error) {
	params := url.Values{}
	params.Set("limit", strconv.Itoa(limit))
	params.Set("sort", "new")
	params.Set("t", "week")
	if after != "" {
		params.Set("after", after)
	}

	endpoint := fmt.Sprintf("%s/r/%s/new?%s", c.baseURL, url.PathEscape(c.subreddit), params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("failed to fetch posts: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, "", fmt.Errorf("reddit API returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var listing listingResponse
	if err := json.NewDecoder(resp.Body).Decode(&listing); err != nil {
		return nil, "", fmt.Errorf("failed to decode listing: %w", err)
	}

	posts := make([]*models.Post, 0, len(listing.Data.Children))
	for _, child := range listing.Data.Children {
		if child.Kind != "" && child.Kind != "t3" {
			continue
		}
		posts = append(posts, child.Data.toPost(c.subreddit))
	}

	return posts, listing.Data.After, nil
}

func (e redditEntry) toPost(defaultSubreddit string) *models.Post {
	body := e.Selftext
	if body == "" && e.SelftextHTML != "" {
		body = htmlToText(e.SelftextHTML)
	}

	subreddit := e.Subreddit
	if subreddit == "" {
		subreddit = defaultSubreddit
	}

	return &models.Post{
		ID:          e.ID,
		Title:       e.Title,
		Body:        body,
		Author:      e.Author,
		CreatedUTC:  int64(e.CreatedUTC),
		Score:       e.Score,
		NumComments: e.NumComments,
		URL:         e.URL,
		Permalink:   e.Permalink,
		Subreddit:   subreddit,
	}
}

// htmlToText flattens the entity-escaped selftext_html Reddit sends
func htmlToText(escaped string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html.UnescapeString(escaped)))
	if err != nil {
		return ""
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}
