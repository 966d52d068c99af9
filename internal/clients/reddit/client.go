package reddit

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"lead-engine/internal/observability"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	tokenURL  = "https://www.reddit.com/api/v1/access_token"
	searchURL = "https://oauth.reddit.com/r/%s/search"
	userAgent = "lead-engine/1.0"

	// Fixed pacing between subreddit requests. Reddit rate limits are
	// handled by sleeping and moving on, never by retrying.
	interRequestSleep = 1 * time.Second
	rateLimitSleep    = 2 * time.Second
)

// Post is a raw submission returned by the Reddit search API.
type Post struct {
	ID          string
	Author      string
	Title       string
	SelfText    string
	Subreddit   string
	Permalink   string
	Score       int
	NumComments int
	UpvoteRatio float64
	CreatedUTC  float64
}

type Client struct {
	httpClient   *http.Client
	clientID     string
	clientSecret string
	logger       *observability.Logger

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

func New(clientID, clientSecret string, logger *observability.Logger) *Client {
	return &Client{
		httpClient:   &http.Client{Timeout: 10 * time.Second},
		clientID:     clientID,
		clientSecret: clientSecret,
		logger:       logger,
	}
}

// Configured reports whether the client has credentials. An unconfigured
// client contributes no posts.
func (c *Client) Configured() bool {
	return c.clientID != "" && c.clientSecret != ""
}

// Search queries each subreddit for the given keywords and concatenates the
// results. Per-subreddit failures are logged and skipped so one bad
// subreddit does not lose the rest of the batch.
func (c *Client) Search(ctx context.Context, keywords, subreddits []string, limitPerSubreddit int) ([]Post, error) {
	if !c.Configured() {
		return nil, fmt.Errorf("reddit client is not configured")
	}

	query := strings.Join(keywords, " OR ")
	var posts []Post
	for i, subreddit := range subreddits {
		if i > 0 {
			select {
			case <-time.After(interRequestSleep):
			case <-ctx.Done():
				return posts, ctx.Err()
			}
		}

		found, err := c.searchSubreddit(ctx, subreddit, query, limitPerSubreddit)
		if err != nil {
			sctx := observability.WithFields(ctx, observability.Field{Key: "subreddit", Value: subreddit})
			c.logger.Error(sctx, "subreddit search failed", err)
			continue
		}
		posts = append(posts, found...)
	}
	return posts, nil
}

func (c *Client) searchSubreddit(ctx context.Context, subreddit, query string, limit int) ([]Post, error) {
	token, err := c.accessToken(ctx)
	if err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("sort", "new")
	params.Set("t", "week")
	params.Set("restrict_sr", "1")
	params.Set("limit", strconv.Itoa(limit))

	endpoint := fmt.Sprintf(searchURL, url.PathEscape(subreddit)) + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build search request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		// Back off briefly so the next subreddit has a chance.
		time.Sleep(rateLimitSleep)
		return nil, fmt.Errorf("rate limited searching r/%s", subreddit)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search returned status %d for r/%s", resp.StatusCode, subreddit)
	}

	var listing struct {
		Data struct {
			Children []struct {
				Data struct {
					ID          string  `json:"id"`
					Author      string  `json:"author"`
					Title       string  `json:"title"`
					SelfText    string  `json:"selftext"`
					Subreddit   string  `json:"subreddit"`
					Permalink   string  `json:"permalink"`
					Score       int     `json:"score"`
					NumComments int     `json:"num_comments"`
					UpvoteRatio float64 `json:"upvote_ratio"`
					CreatedUTC  float64 `json:"created_utc"`
				} `json:"data"`
			} `json:"children"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&listing); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}

	posts := make([]Post, 0, len(listing.Data.Children))
	for _, child := range listing.Data.Children {
		posts = append(posts, Post{
			ID:          child.Data.ID,
			Author:      child.Data.Author,
			Title:       child.Data.Title,
			SelfText:    child.Data.SelfText,
			Subreddit:   child.Data.Subreddit,
			Permalink:   "https://reddit.com" + child.Data.Permalink,
			Score:       child.Data.Score,
			NumComments: child.Data.NumComments,
			UpvoteRatio: child.Data.UpvoteRatio,
			CreatedUTC:  child.Data.CreatedUTC,
		})
	}
	return posts, nil
}

func (c *Client) accessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && time.Now().Before(c.tokenExpiry) {
		return c.token, nil
	}

	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to build token request: %w", err)
	}
	req.SetBasicAuth(c.clientID, c.clientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("token request returned status %d: %s", resp.StatusCode, string(body))
	}

	var tokenResp struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		return "", fmt.Errorf("failed to decode token response: %w", err)
	}
	if tokenResp.AccessToken == "" {
		return "", fmt.Errorf("token response contained no access token")
	}

	c.token = tokenResp.AccessToken
	// Refresh a minute early to avoid using a token at the edge of expiry.
	c.tokenExpiry = time.Now().Add(time.Duration(tokenResp.ExpiresIn)*time.Second - time.Minute)
	return c.token, nil
}
