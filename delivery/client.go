package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/deckbridge/deckbridge/logging"
)

// Fixed REST paths on the dashboard.
const (
	// RespondPath accepts text replies and status pushes (bearer-authenticated).
	RespondPath = "/api/messages/respond"
	// CardsPath creates interactive cards (bearer-authenticated).
	CardsPath = "/api/cards"
	// LivenessPath is the unauthenticated liveness probe.
	LivenessPath = "/up"
)

const defaultRequestTimeout = 15 * time.Second

// Card is an interactive card provisioned on the dashboard.
type Card struct {
	Type     string         `json:"type"`
	Prompt   string         `json:"prompt"`
	Message  string         `json:"message,omitempty"`
	Options  []string       `json:"options"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// CardResult is the normalized outcome of a card creation attempt.
type CardResult struct {
	OK     bool
	CardID string
	Error  string
}

// ClientOptions holds overrides passed to NewClient.
type ClientOptions struct {
	// HTTPClient overrides the default client (15s timeout).
	HTTPClient *http.Client
	// Logger receives upstream error logs; defaults to NoOp.
	Logger logging.Logger
}

// Client is the bearer-authenticated REST client for the dashboard's
// fallback surface.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	logger  logging.Logger
}

// NewClient constructs a Client for the given dashboard base URL and token.
func NewClient(baseURL, token string, optFns ...func(o *ClientOptions)) *Client {
	opts := ClientOptions{
		HTTPClient: &http.Client{Timeout: defaultRequestTimeout},
		Logger:     logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    opts.HTTPClient,
		logger:  opts.Logger,
	}
}

// Respond posts a text reply to the respond endpoint.
func (c *Client) Respond(ctx context.Context, content string, metadata map[string]any) error {
	body := map[string]any{"content": content}
	if metadata != nil {
		body["metadata"] = metadata
	}

	resp, err := c.post(ctx, RespondPath, body)
	if err != nil {
		return fmt.Errorf("respond: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		text, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("respond: dashboard returned %d: %s", resp.StatusCode, strings.TrimSpace(string(text)))
	}
	return nil
}

// RespondStatus pushes a status snapshot through the respond endpoint, used
// when the cable cannot carry it. The snapshot travels in the metadata.
func (c *Client) RespondStatus(ctx context.Context, status any) error {
	return c.Respond(ctx, "", map[string]any{"status_data": status})
}

// CreateCard provisions a card and returns the normalized result: the
// assigned identifier on success, the upstream error text on rejection, the
// transport error on network failure. It never returns a Go error; callers
// branch on CardResult.OK.
func (c *Client) CreateCard(ctx context.Context, card Card) CardResult {
	resp, err := c.post(ctx, CardsPath, card)
	if err != nil {
		c.logger.Warn("delivery: card request failed", "error", err)
		return CardResult{Error: err.Error()}
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn("delivery: card creation rejected", "status", resp.StatusCode)
		return CardResult{Error: strings.TrimSpace(string(body))}
	}

	// The dashboard reports the assigned identifier as either id or card_id.
	var created struct {
		ID     any `json:"id"`
		CardID any `json:"card_id"`
	}
	result := CardResult{OK: true}
	if err := json.Unmarshal(body, &created); err == nil {
		switch {
		case created.CardID != nil:
			result.CardID = fmt.Sprint(created.CardID)
		case created.ID != nil:
			result.CardID = fmt.Sprint(created.ID)
		}
	}
	return result
}

// Alive probes the unauthenticated liveness endpoint.
func (c *Client) Alive(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+LivenessPath, nil)
	if err != nil {
		return false
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

func (c *Client) post(ctx context.Context, path string, payload any) (*http.Response, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)
	return c.http.Do(req)
}
