// Package reddit adapts the platform contract to the Reddit OAuth API
// using a script-app password grant.
package reddit

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"debatebot/internal/config"
	"debatebot/internal/platform"
)

const (
	DefaultBaseURL = "https://oauth.reddit.com"
	DefaultAuthURL = "https://www.reddit.com/api/v1/access_token"
)

type Client struct {
	cfg        config.RedditConfig
	BaseURL    string
	AuthURL    string
	HTTPClient *http.Client

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

func NewClient(cfg config.RedditConfig) *Client {
	return &Client{
		cfg:        cfg,
		BaseURL:    DefaultBaseURL,
		AuthURL:    DefaultAuthURL,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

var _ platform.Client = (*Client)(nil)

func (c *Client) ensureToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && time.Until(c.tokenExpiry) > time.Minute {
		return c.token, nil
	}

	form := url.Values{}
	form.Set("grant_type", "password")
	form.Set("username", c.cfg.Username)
	form.Set("password", c.cfg.Password)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.AuthURL,
		strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("build token request: %w", err)
	}
	req.SetBasicAuth(c.cfg.ClientID, c.cfg.ClientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", c.cfg.UserAgent)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("token request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: token status %d", platform.ErrAuth, resp.StatusCode)
	}

	var tok struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
		Error       string `json:"error,omitempty"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return "", fmt.Errorf("decode token: %w", err)
	}
	if tok.Error != "" || tok.AccessToken == "" {
		return "", fmt.Errorf("%w: %s", platform.ErrAuth, tok.Error)
	}

	c.token = tok.AccessToken
	c.tokenExpiry = time.Now().Add(time.Duration(tok.ExpiresIn) * time.Second)
	return c.token, nil
}

func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	token, err := c.ensureToken(ctx)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("User-Agent", c.cfg.UserAgent)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if err := statusError(resp.StatusCode); err != nil {
		return nil, err
	}
	return body, nil
}

// FetchNewItems returns the newest top-level posts from the subreddit.
func (c *Client) FetchNewItems(ctx context.Context, source string, limit int) ([]platform.Item, error) {
	body, err := c.get(ctx, fmt.Sprintf("/r/%s/new.json?limit=%d", url.PathEscape(source), limit))
	if err != nil {
		return nil, err
	}

	var listing thingListing
	if err := json.Unmarshal(body, &listing); err != nil {
		return nil, fmt.Errorf("decode listing: %w", err)
	}

	items := make([]platform.Item, 0, len(listing.Data.Children))
	for _, child := range listing.Data.Children {
		items = append(items, child.Data.toItem(""))
	}
	return items, nil
}

// FetchReplies returns every comment in the thread created after since.
// The thread is walked depth first so nested replies are included.
func (c *Client) FetchReplies(ctx context.Context, threadID string, since time.Time) ([]platform.Item, error) {
	article := strings.TrimPrefix(threadID, "t3_")
	body, err := c.get(ctx, fmt.Sprintf("/comments/%s.json?limit=100", url.PathEscape(article)))
	if err != nil {
		return nil, err
	}

	// The endpoint returns two listings: the post itself, then the tree.
	var listings []thingListing
	if err := json.Unmarshal(body, &listings); err != nil {
		return nil, fmt.Errorf("decode thread: %w", err)
	}
	if len(listings) < 2 {
		return nil, nil
	}

	var items []platform.Item
	collectComments(listings[1].Data.Children, since, &items)
	sort.Slice(items, func(i, j int) bool {
		return items[i].CreatedAt.Before(items[j].CreatedAt)
	})
	return items, nil
}

func collectComments(children []thing, since time.Time, out *[]platform.Item) {
	for _, child := range children {
		if child.Kind != "t1" {
			continue
		}
		item := child.Data.toItem(child.Data.ParentID)
		if item.CreatedAt.After(since) {
			*out = append(*out, item)
		}
		if nested := child.Data.repliesListing(); nested != nil {
			collectComments(nested.Data.Children, since, out)
		}
	}
}

// SubmitReply posts text under parentID and returns the new comment's
// fullname.
func (c *Client) SubmitReply(ctx context.Context, parentID, text string) (string, error) {
	token, err := c.ensureToken(ctx)
	if err != nil {
		return "", err
	}

	form := url.Values{}
	form.Set("api_type", "json")
	form.Set("thing_id", parentID)
	form.Set("text", text)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/api/comment",
		strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("build comment request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("submit reply: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read comment response: %w", err)
	}
	if err := statusError(resp.StatusCode); err != nil {
		return "", err
	}

	var out struct {
		JSON struct {
			Errors [][]any `json:"errors"`
			Data   struct {
				Things []thing `json:"things"`
			} `json:"data"`
		} `json:"json"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("decode comment response: %w", err)
	}
	if len(out.JSON.Errors) > 0 {
		if code, ok := out.JSON.Errors[0][0].(string); ok && code == "RATELIMIT" {
			return "", fmt.Errorf("%w: %v", platform.ErrRateLimited, out.JSON.Errors[0])
		}
		return "", fmt.Errorf("comment rejected: %v", out.JSON.Errors[0])
	}
	if len(out.JSON.Data.Things) == 0 {
		return "", fmt.Errorf("comment response missing created thing")
	}
	return out.JSON.Data.Things[0].Data.Name, nil
}

func statusError(code int) error {
	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return fmt.Errorf("%w: status %d", platform.ErrAuth, code)
	case code == http.StatusNotFound:
		return fmt.Errorf("%w: status %d", platform.ErrNotFound, code)
	case code == http.StatusTooManyRequests:
		return fmt.Errorf("%w: status %d", platform.ErrRateLimited, code)
	case code >= 400:
		return fmt.Errorf("unexpected status %d", code)
	}
	return nil
}
