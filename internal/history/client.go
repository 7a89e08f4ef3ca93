package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2/clientcredentials"

	"pacelab/internal/config"
	"pacelab/internal/store"
)

// pageSize is the page length used when a query asks for every activity
const pageSize = 200

// ErrUnavailable is returned when the history API cannot be reached or fails server-side
var ErrUnavailable = errors.New("history store unavailable")

var errNotFound = errors.New("not found")

// Client reads activity history from a remote history API
type Client struct {
	baseURL     string
	httpClient  *http.Client
	rateLimiter *RateLimiter
}

// NewClient creates a client for baseURL. httpClient is expected to attach credentials.
func NewClient(baseURL string, httpClient *http.Client, limiter *RateLimiter) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if limiter == nil {
		limiter = NewRateLimiter(0)
	}
	return &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		httpClient:  httpClient,
		rateLimiter: limiter,
	}
}

// NewFromConfig creates a client that authenticates with the OAuth2
// client-credentials grant
func NewFromConfig(ctx context.Context, cfg config.HistoryConfig) *Client {
	cc := clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     cfg.TokenURL,
		Scopes:       cfg.Scopes,
	}
	return NewClient(cfg.BaseURL, cc.Client(ctx), NewRateLimiter(cfg.RequestsPerSecond))
}

// ListActivities fetches activities matching q. A zero Limit pages through
// every match. With a Limit, short server pages are followed while the server
// reports more rows, so callers only see a short page at the end of the data.
func (c *Client) ListActivities(ctx context.Context, q store.ActivityQuery) ([]store.Activity, error) {
	if q.Limit > 0 {
		return c.listLimited(ctx, q)
	}

	var all []store.Activity
	q.Limit = pageSize
	for {
		page, err := c.listPage(ctx, q)
		if err != nil {
			return nil, fmt.Errorf("fetching activities at offset %d: %w", q.Offset, err)
		}
		all = append(all, toActivities(page.Activities)...)
		if !page.HasMore || len(page.Activities) == 0 {
			break
		}
		q.Offset += len(page.Activities)
	}
	return all, nil
}

func (c *Client) listLimited(ctx context.Context, q store.ActivityQuery) ([]store.Activity, error) {
	limit := q.Limit
	var acts []store.Activity
	for len(acts) < limit {
		q.Limit = limit - len(acts)
		page, err := c.listPage(ctx, q)
		if err != nil {
			return nil, err
		}
		acts = append(acts, toActivities(page.Activities)...)
		if !page.HasMore || len(page.Activities) == 0 {
			break
		}
		q.Offset += len(page.Activities)
	}
	if len(acts) > limit {
		acts = acts[:limit]
	}
	return acts, nil
}

func (c *Client) listPage(ctx context.Context, q store.ActivityQuery) (*activityPage, error) {
	params := url.Values{}
	if q.UserID != nil {
		params.Set("user_id", strconv.FormatInt(*q.UserID, 10))
	}
	if !q.From.IsZero() {
		params.Set("from", q.From.UTC().Format(time.RFC3339))
	}
	if !q.To.IsZero() {
		params.Set("to", q.To.UTC().Format(time.RFC3339))
	}
	if q.RunsOnly {
		params.Set("runs_only", "true")
	}
	params.Set("limit", strconv.Itoa(q.Limit))
	params.Set("offset", strconv.Itoa(q.Offset))

	var page activityPage
	if err := c.getJSON(ctx, "/v1/activities", params, &page); err != nil {
		return nil, fmt.Errorf("listing activities: %w", err)
	}
	return &page, nil
}

// GetUser fetches an athlete profile
func (c *Client) GetUser(ctx context.Context, id int64) (*store.User, error) {
	var rec userRecord
	err := c.getJSON(ctx, fmt.Sprintf("/v1/users/%d", id), nil, &rec)
	if errors.Is(err, errNotFound) {
		return nil, store.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("fetching user %d: %w", id, err)
	}

	u := &store.User{ID: rec.ID, Name: rec.Name}
	if rec.BirthDate != "" {
		bd, err := time.Parse("2006-01-02", rec.BirthDate)
		if err != nil {
			return nil, fmt.Errorf("parsing birth date for user %d: %w", id, err)
		}
		u.BirthDate = &bd
	}
	return u, nil
}

// GetStreams fetches the time-series samples of an activity
func (c *Client) GetStreams(ctx context.Context, activityID int64) ([]store.StreamPoint, error) {
	params := url.Values{}
	params.Set("keys", "time,velocity_smooth,heartrate,distance")
	params.Set("key_by_type", "true")

	var streams Streams
	err := c.getJSON(ctx, fmt.Sprintf("/v1/activities/%d/streams", activityID), params, &streams)
	if errors.Is(err, errNotFound) {
		return nil, store.ErrActivityNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("fetching streams for activity %d: %w", activityID, err)
	}
	return streams.Points(activityID), nil
}

// RateLimitRemaining returns the last server-reported request quota, or -1 if unknown
func (c *Client) RateLimitRemaining() int {
	return c.rateLimiter.Remaining()
}

func (c *Client) getJSON(ctx context.Context, path string, params url.Values, out any) error {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return err
	}

	reqURL := c.baseURL + path
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	c.rateLimiter.UpdateFromHeaders(resp.Header)

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return errNotFound
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%w: API error %d: %s", ErrUnavailable, resp.StatusCode, string(body))
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("API error %d: %s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

func toActivities(records []activityRecord) []store.Activity {
	acts := make([]store.Activity, len(records))
	for i, r := range records {
		acts[i] = r.toStore()
	}
	return acts
}
