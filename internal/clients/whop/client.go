package whop

import (
	"context"
	"encoding/json"
	"fmt"
	"lead-engine/internal/observability"
	"net/http"
	"net/url"
	"time"
)

// CommunityMember is a member record returned by the Whop API.
type CommunityMember struct {
	ID             string     `json:"id"`
	Email          string     `json:"email"`
	Username       string     `json:"username"`
	FullName       string     `json:"full_name"`
	Status         string     `json:"status"`
	Tier           string     `json:"tier"`
	SubscriptionID string     `json:"subscription_id"`
	MonthlyRevenue float64    `json:"monthly_revenue"`
	JoinedAt       time.Time  `json:"joined_at"`
	LastLogin      *time.Time `json:"last_login"`
	LastMessage    *time.Time `json:"last_message"`
	TotalMessages  int        `json:"total_messages"`
}

type Client struct {
	httpClient *http.Client
	baseURL    string
	logger     *observability.Logger
}

func New(baseURL string, logger *observability.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		baseURL:    baseURL,
		logger:     logger,
	}
}

// ListCommunityMembers fetches all members of a community. The API key is
// per-tenant, so it is passed per call rather than held by the client.
func (c *Client) ListCommunityMembers(ctx context.Context, apiKey, communityID string) ([]CommunityMember, error) {
	endpoint := fmt.Sprintf("%s/communities/%s/members", c.baseURL, url.PathEscape(communityID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build members request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("members request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("members request returned status %d", resp.StatusCode)
	}

	var result struct {
		Data []CommunityMember `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode members response: %w", err)
	}
	return result.Data, nil
}

// GetMemberActivity fetches activity data for a single member.
func (c *Client) GetMemberActivity(ctx context.Context, apiKey, memberID string) (CommunityMember, error) {
	endpoint := fmt.Sprintf("%s/members/%s/activity", c.baseURL, url.PathEscape(memberID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return CommunityMember{}, fmt.Errorf("failed to build activity request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return CommunityMember{}, fmt.Errorf("activity request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return CommunityMember{}, fmt.Errorf("activity request returned status %d", resp.StatusCode)
	}

	var member CommunityMember
	if err := json.NewDecoder(resp.Body).Decode(&member); err != nil {
		return CommunityMember{}, fmt.Errorf("failed to decode activity response: %w", err)
	}
	return member, nil
}
