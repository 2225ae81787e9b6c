package shippo

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/angelmondragon/smokeshop-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/smokeshop-backend/pkg/errors"
)

const (
	defaultBaseURL           = "https://api.goshippo.com"
	defaultRequestsPerSecond = 5
	responseBodyReadLimit    = 2048
	labelFileType            = "PDF_4x6"
	transactionStatusSuccess = "SUCCESS"
	transactionStatusQueued  = "QUEUED"
	transactionStatusWaiting = "WAITING"
)

var errTokenRequired = errors.New("shippo api token is required")

// Client wraps the Shippo REST endpoints used for quoting and label purchase.
// Outbound calls share a token-bucket limiter so bursts of checkouts stay
// under the account's request quota.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
	limiter    *rate.Limiter
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

// WithBaseURL overrides the API base URL.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		if trimmed := strings.TrimSpace(baseURL); trimmed != "" {
			c.baseURL = trimmed
		}
	}
}

// WithRateLimit overrides the outbound request rate. Non-positive values
// disable throttling.
func WithRateLimit(perSecond float64) Option {
	return func(c *Client) {
		if perSecond <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		burst := int(perSecond)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// NewClient builds a Shippo client for the provided API token.
func NewClient(token string, opts ...Option) (*Client, error) {
	trimmed := strings.TrimSpace(token)
	if trimmed == "" {
		return nil, errTokenRequired
	}
	client := &Client{
		httpClient: &http.Client{Timeout: 20 * time.Second},
		baseURL:    defaultBaseURL,
		token:      trimmed,
		limiter:    rate.NewLimiter(rate.Limit(defaultRequestsPerSecond), defaultRequestsPerSecond),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client, nil
}

// NewClientFromConfig wires the client from environment configuration.
func NewClientFromConfig(cfg config.ShippoConfig) (*Client, error) {
	return NewClient(cfg.APIToken, WithBaseURL(cfg.BaseURL), WithRateLimit(cfg.RequestsPerS))
}

// CreateShipment requests live rates for a parcel between two addresses.
func (c *Client) CreateShipment(ctx context.Context, req ShipmentRequest) (*Shipment, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "shippo client not configured")
	}
	if len(req.Parcels) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one parcel is required")
	}
	if strings.TrimSpace(req.AddressTo.Street1) == "" || strings.TrimSpace(req.AddressTo.Zip) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "destination street and zip are required")
	}
	req.Async = false

	var shipment Shipment
	if err := c.do(ctx, http.MethodPost, "shipments/", req, &shipment); err != nil {
		return nil, err
	}
	return &shipment, nil
}

// PurchaseLabel buys the label for a previously quoted rate.
func (c *Client) PurchaseLabel(ctx context.Context, rateID string) (*Transaction, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "shippo client not configured")
	}
	rateID = strings.TrimSpace(rateID)
	if rateID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "rate id is required")
	}

	body := transactionRequest{Rate: rateID, LabelFileType: labelFileType, Async: false}
	var txn Transaction
	if err := c.do(ctx, http.MethodPost, "transactions/", body, &txn); err != nil {
		return nil, err
	}

	switch strings.ToUpper(txn.Status) {
	case transactionStatusSuccess:
		return &txn, nil
	case transactionStatusQueued, transactionStatusWaiting:
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "label purchase still processing").
			WithDetails(map[string]any{"transaction_id": txn.ObjectID})
	default:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "label purchase failed").
			WithDetails(map[string]any{"transaction_id": txn.ObjectID, "messages": txn.MessageText()})
	}
}

func (c *Client) do(ctx context.Context, method, path string, payload any, dest any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "shippo rate limiter")
	}

	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "marshal shippo request")
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.buildURL(path), body)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build shippo request")
	}
	req.Header.Set("Authorization", "ShippoToken "+c.token)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute shippo request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
		cause := fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
		code := pkgerrors.CodeDependency
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests && resp.StatusCode != http.StatusUnauthorized {
			code = pkgerrors.CodeValidation
		}
		return pkgerrors.Wrap(code, cause, "shippo request failed")
	}

	if dest == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode shippo response")
	}
	return nil
}

func (c *Client) buildURL(path string) string {
	return fmt.Sprintf("%s/%s", strings.TrimRight(c.baseURL, "/"), strings.TrimLeft(path, "/"))
}
