package twitter

import (
	"context"
	"encoding/json"
	"fmt"
	"lead-engine/internal/observability"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const searchURL = "https://api.twitter.com/2/tweets/search/recent"

// Tweet is a raw result from the Twitter v2 recent search API with its
// author expanded.
type Tweet struct {
	ID             string
	AuthorID       string
	AuthorUsername string
	Text           string
	LikeCount      int
	ReplyCount     int
	RetweetCount   int
	CreatedAt      time.Time
}

type Client struct {
	httpClient  *http.Client
	bearerToken string
	logger      *observability.Logger
}

func New(bearerToken string, logger *observability.Logger) *Client {
	return &Client{
		httpClient:  &http.Client{Timeout: 10 * time.Second},
		bearerToken: bearerToken,
		logger:      logger,
	}
}

// Configured reports whether the client has a bearer token. An
// unconfigured client contributes no tweets.
func (c *Client) Configured() bool {
	return c.bearerToken != ""
}

// Search runs a recent search for the given keywords, excluding retweets
// and limiting to English tweets.
func (c *Client) Search(ctx context.Context, keywords []string, maxResults int) ([]Tweet, error) {
	if !c.Configured() {
		return nil, fmt.Errorf("twitter client is not configured")
	}
	if maxResults < 10 {
		maxResults = 10
	}
	if maxResults > 100 {
		maxResults = 100
	}

	query := "(" + strings.Join(keywords, " OR ") + ") -is:retweet lang:en"
	params := url.Values{}
	params.Set("query", query)
	params.Set("max_results", strconv.Itoa(maxResults))
	params.Set("tweet.fields", "author_id,created_at,public_metrics")
	params.Set("expansions", "author_id")
	params.Set("user.fields", "username")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build search request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.bearerToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search returned status %d", resp.StatusCode)
	}

	var result struct {
		Data []struct {
			ID            string    `json:"id"`
			AuthorID      string    `json:"author_id"`
			Text          string    `json:"text"`
			CreatedAt     time.Time `json:"created_at"`
			PublicMetrics struct {
				LikeCount    int `json:"like_count"`
				ReplyCount   int `json:"reply_count"`
				RetweetCount int `json:"retweet_count"`
			} `json:"public_metrics"`
		} `json:"data"`
		Includes struct {
			Users []struct {
				ID       string `json:"id"`
				Username string `json:"username"`
			} `json:"users"`
		} `json:"includes"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}

	usernames := make(map[string]string, len(result.Includes.Users))
	for _, user := range result.Includes.Users {
		usernames[user.ID] = user.Username
	}

	tweets := make([]Tweet, 0, len(result.Data))
	for _, t := range result.Data {
		tweets = append(tweets, Tweet{
			ID:             t.ID,
			AuthorID:       t.AuthorID,
			AuthorUsername: usernames[t.AuthorID],
			Text:           t.Text,
			LikeCount:      t.PublicMetrics.LikeCount,
			ReplyCount:     t.PublicMetrics.ReplyCount,
			RetweetCount:   t.PublicMetrics.RetweetCount,
			CreatedAt:      t.CreatedAt,
		})
	}
	return tweets, nil
}
