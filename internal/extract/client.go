// Package extract turns booking text into reservation payloads by asking a
// hosted language model. It fails closed: any response it cannot parse is
// an error, never a partial guess.
package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/pkordes/itinerary/internal/domain"
)

const (
	DefaultURL       = "https://api.anthropic.com/v1/messages"
	DefaultModel     = "claude-sonnet-4-20250514"
	DefaultTimeout   = 90 * time.Second
	defaultMaxTokens = 8192
	apiVersion       = "2023-06-01"

	// logLimit caps how much of a bad response is logged.
	logLimit = 2000
)

// ErrUnparseable is returned when the model's reply is not a JSON array of objects.
var ErrUnparseable = errors.New("extraction response is not a reservation list")

// Config configures a Client.
type Config struct {
	APIKey  string
	URL     string
	Model   string
	Timeout time.Duration
	// HTTPClient overrides the client used for requests; tests point it at httptest.
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Client calls the Messages API. It implements service.Extractor.
type Client struct {
	apiKey string
	url    string
	model  string
	http   *http.Client
	log    *slog.Logger
}

// New builds a Client, filling defaults for empty fields.
func New(cfg Config) *Client {
	if cfg.URL == "" {
		cfg.URL = DefaultURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Client{apiKey: cfg.APIKey, url: cfg.URL, model: cfg.Model, http: cfg.HTTPClient, log: cfg.Logger}
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type request struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	Messages  []message `json:"messages"`
}

type response struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// Extract sends text to the model and parses the reservations it returns.
// An empty array is a valid answer and yields no payloads.
func (c *Client) Extract(ctx context.Context, text string) ([]domain.Payload, error) {
	if c.apiKey == "" {
		return nil, errors.New("extract: no API key configured")
	}
	body, err := json.Marshal(request{
		Model:     c.model,
		MaxTokens: defaultMaxTokens,
		Messages:  []message{{Role: "user", Content: prompt + text}},
	})
	if err != nil {
		return nil, fmt.Errorf("extract: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("extract: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", apiVersion)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("extract: call model: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("extract: read response: %w", err)
	}

	var r response
	if err := json.Unmarshal(raw, &r); err != nil || resp.StatusCode/100 != 2 {
		c.log.Warn("model call failed", slog.Int("status", resp.StatusCode), slog.String("body", clip(string(raw))))
		if r.Error != nil {
			return nil, fmt.Errorf("extract: model returned %d: %s", resp.StatusCode, r.Error.Message)
		}
		return nil, fmt.Errorf("extract: model returned %d", resp.StatusCode)
	}

	var reply strings.Builder
	for _, block := range r.Content {
		if block.Type == "text" {
			reply.WriteString(block.Text)
		}
	}

	payloads, err := Parse(reply.String())
	if err != nil {
		c.log.Warn("unparseable extraction reply", slog.String("reply", clip(reply.String())))
		return nil, err
	}
	return payloads, nil
}

// Parse reads the model's reply: a JSON array of objects, optionally wrapped
// in a markdown fence. A single object is accepted as a one-element list.
func Parse(reply string) ([]domain.Payload, error) {
	s := strings.TrimSpace(stripFence(reply))
	if s == "" {
		return nil, ErrUnparseable
	}

	var list []domain.Payload
	if err := json.Unmarshal([]byte(s), &list); err == nil {
		out := list[:0]
		for _, p := range list {
			if len(p) > 0 {
				out = append(out, p)
			}
		}
		return out, nil
	}

	var single domain.Payload
	if err := json.Unmarshal([]byte(s), &single); err == nil && len(single) > 0 {
		return []domain.Payload{single}, nil
	}
	return nil, ErrUnparseable
}

// stripFence returns the body of the first ``` fence, dropping a language tag.
func stripFence(s string) string {
	start := strings.Index(s, "```")
	if start < 0 {
		return s
	}
	rest := s[start+3:]
	if nl := strings.IndexByte(rest, '\n'); nl >= 0 && !strings.ContainsAny(rest[:nl], "[{") {
		rest = rest[nl+1:]
	}
	if end := strings.Index(rest, "```"); end >= 0 {
		rest = rest[:end]
	}
	return rest
}

func clip(s string) string {
	if len(s) <= logLimit {
		return s
	}
	return s[:logLimit] + "…"
}
