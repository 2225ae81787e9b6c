package email

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"github.com/angelmondragon/smokeshop-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/smokeshop-backend/pkg/errors"
)

const (
	defaultBaseURL        = "https://api.sendgrid.com/v3"
	responseBodyReadLimit = 1024
)

var (
	errAPIKeyRequired = errors.New("sendgrid api key is required")
	errFromRequired   = errors.New("sendgrid from email is required")
)

// Message is a rendered transactional email.
type Message struct {
	To       string
	ToName   string
	Subject  string
	HTML     string
	Text     string
	Template string
}

// Sender delivers rendered messages.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Client posts messages to the SendGrid v3 mail/send endpoint.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	fromEmail  string
	fromName   string
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithBaseURL overrides the SendGrid API base URL.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		if trimmed := strings.TrimSpace(baseURL); trimmed != "" {
			c.baseURL = trimmed
		}
	}
}

// NewClient builds a SendGrid client from configuration.
func NewClient(cfg config.SendgridConfig, opts ...Option) (*Client, error) {
	key := strings.TrimSpace(cfg.APIKey)
	if key == "" {
		return nil, errAPIKeyRequired
	}
	from := strings.TrimSpace(cfg.DefaultFrom)
	if from == "" {
		return nil, errFromRequired
	}
	if _, err := mail.ParseAddress(from); err != nil {
		return nil, fmt.Errorf("invalid sendgrid from email: %w", err)
	}
	client := &Client{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		baseURL:    defaultBaseURL,
		apiKey:     key,
		fromEmail:  from,
		fromName:   strings.TrimSpace(cfg.FromName),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client, nil
}

type sendGridAddress struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type sendGridContent struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type sendGridRequest struct {
	Personalizations []struct {
		To []sendGridAddress `json:"to"`
	} `json:"personalizations"`
	From       sendGridAddress   `json:"from"`
	Subject    string            `json:"subject"`
	Content    []sendGridContent `json:"content"`
	Categories []string          `json:"categories,omitempty"`
}

// Send delivers the message. SendGrid answers 202 on acceptance.
func (c *Client) Send(ctx context.Context, msg Message) error {
	if c == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "email client not configured")
	}
	to := strings.TrimSpace(msg.To)
	if _, err := mail.ParseAddress(to); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid recipient")
	}
	if strings.TrimSpace(msg.Subject) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "subject is required")
	}

	payload := sendGridRequest{
		From:    sendGridAddress{Email: c.fromEmail, Name: c.fromName},
		Subject: msg.Subject,
	}
	payload.Personalizations = append(payload.Personalizations, struct {
		To []sendGridAddress `json:"to"`
	}{To: []sendGridAddress{{Email: to, Name: msg.ToName}}})
	if msg.Text != "" {
		payload.Content = append(payload.Content, sendGridContent{Type: "text/plain", Value: msg.Text})
	}
	if msg.HTML != "" {
		payload.Content = append(payload.Content, sendGridContent{Type: "text/html", Value: msg.HTML})
	}
	if len(payload.Content) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "message body is required")
	}
	if msg.Template != "" {
		payload.Categories = []string{msg.Template}
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "marshal email")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(c.baseURL, "/")+"/mail/send", bytes.NewReader(raw))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build email request")
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "send email")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
		return pkgerrors.Wrap(pkgerrors.CodeDependency, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))), "sendgrid rejected email")
	}
	return nil
}
