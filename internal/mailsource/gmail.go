// Package mailsource feeds booking confirmations from a mailbox into the
// ingestion pipeline.
package mailsource

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

// Message is one mailbox message reduced to what extraction needs.
type Message struct {
	ID         string
	From       string
	Subject    string
	Body       string
	ReceivedAt time.Time
}

// Mailbox lists and fetches messages.
type Mailbox interface {
	List(ctx context.Context, query string, max int64) ([]string, error)
	Get(ctx context.Context, id string) (Message, error)
}

// OAuthConfig holds the installed-app credentials and the long-lived
// refresh token of the mailbox being scanned.
type OAuthConfig struct {
	ClientID     string
	ClientSecret string
	RefreshToken string
}

// Gmail reads a Gmail mailbox with a read-only scope.
type Gmail struct {
	svc *gmail.Service
}

// NewGmail builds a Gmail mailbox. The access token is refreshed on first use.
func NewGmail(ctx context.Context, cfg OAuthConfig) (*Gmail, error) {
	oc := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Endpoint:     google.Endpoint,
		Scopes:       []string{gmail.GmailReadonlyScope},
	}
	ts := oc.TokenSource(ctx, &oauth2.Token{RefreshToken: cfg.RefreshToken, Expiry: time.Now()})
	return NewGmailWithOptions(ctx, option.WithTokenSource(ts))
}

// NewGmailWithOptions builds a Gmail mailbox from raw client options; tests
// use it to point the client at a local server.
func NewGmailWithOptions(ctx context.Context, opts ...option.ClientOption) (*Gmail, error) {
	svc, err := gmail.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("mailsource.NewGmail: %w", err)
	}
	return &Gmail{svc: svc}, nil
}

// List returns the ids of messages matching query, newest first.
func (g *Gmail) List(ctx context.Context, query string, max int64) ([]string, error) {
	resp, err := g.svc.Users.Messages.List("me").Q(query).MaxResults(max).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("mailsource.Gmail.List: %w", err)
	}
	ids := make([]string, 0, len(resp.Messages))
	for _, m := range resp.Messages {
		ids = append(ids, m.Id)
	}
	return ids, nil
}

// Get fetches a full message and flattens its body to text.
func (g *Gmail) Get(ctx context.Context, id string) (Message, error) {
	msg, err := g.svc.Users.Messages.Get("me", id).Format("full").Context(ctx).Do()
	if err != nil {
		return Message{}, fmt.Errorf("mailsource.Gmail.Get: %w", err)
	}
	return convert(msg), nil
}

func convert(msg *gmail.Message) Message {
	out := Message{ID: msg.Id, ReceivedAt: time.UnixMilli(msg.InternalDate).UTC()}
	if msg.Payload == nil {
		return out
	}
	for _, h := range msg.Payload.Headers {
		switch strings.ToLower(h.Name) {
		case "from":
			out.From = h.Value
		case "subject":
			out.Subject = h.Value
		}
	}
	out.Body = Body(msg.Payload)
	return out
}

// Body flattens a MIME tree to text. Plain parts are preferred; an HTML part
// is converted to markdown only when no plain text was found.
func Body(part *gmail.MessagePart) string {
	plain, html := collect(part)
	if strings.TrimSpace(plain) != "" {
		return strings.TrimSpace(plain)
	}
	if html == "" {
		return ""
	}
	md, err := htmltomarkdown.ConvertString(html)
	if err != nil {
		return strings.TrimSpace(html)
	}
	return strings.TrimSpace(md)
}

func collect(part *gmail.MessagePart) (plain, html string) {
	if part == nil {
		return "", ""
	}
	if part.Filename == "" && part.Body != nil && part.Body.Data != "" {
		data := decode(part.Body.Data)
		switch {
		case strings.HasPrefix(part.MimeType, "text/html"):
			html += data
		case part.MimeType == "" || strings.HasPrefix(part.MimeType, "text/"):
			plain += data
		}
	}
	for _, p := range part.Parts {
		pl, h := collect(p)
		plain += pl
		html += h
	}
	return plain, html
}

// decode reads Gmail's base64url body data, padded or not.
func decode(s string) string {
	if b, err := base64.URLEncoding.DecodeString(s); err == nil {
		return string(b)
	}
	if b, err := base64.RawURLEncoding.DecodeString(s); err == nil {
		return string(b)
	}
	return ""
}
