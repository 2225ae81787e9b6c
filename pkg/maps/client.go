package maps

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	pkgerrors "github.com/angelmondragon/smokeshop-backend/pkg/errors"
)

const (
	defaultBaseURL              = "https://places.googleapis.com/v1"
	autocompleteFieldMask       = "suggestions.placePrediction.placeId,suggestions.placePrediction.text"
	placeResolveFieldMask       = "id,formattedAddress,addressComponents"
	errorBodyReadLimit    int64 = 1024
)

// DefaultRegionCodes are the countries the store ships to when none are configured.
var DefaultRegionCodes = []string{"US"}

// deliverableTypes keeps autocomplete to places a carrier can deliver to.
var deliverableTypes = []string{"street_address", "premise", "subpremise"}

var errAPIKeyRequired = errors.New("google maps api key is required")

// Client looks up shipping addresses through the Google Places API. Lookups
// are restricted to the countries the store ships to.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	regions    map[string]struct{}
	regionList []string
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

// WithBaseURL overrides the Places base URL.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		if trimmed := strings.TrimSpace(baseURL); trimmed != "" {
			c.baseURL = trimmed
		}
	}
}

// WithRegionCodes sets the ISO country codes suggestions and resolved places
// must fall in. Blank codes are ignored.
func WithRegionCodes(codes ...string) Option {
	return func(c *Client) {
		c.setRegions(codes)
	}
}

// NewClient builds the Places client for the given API key.
func NewClient(apiKey string, opts ...Option) (*Client, error) {
	trimmedKey := strings.TrimSpace(apiKey)
	if trimmedKey == "" {
		return nil, errAPIKeyRequired
	}

	client := &Client{
		apiKey:     trimmedKey,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	if len(client.regionList) == 0 {
		client.setRegions(DefaultRegionCodes)
	}
	return client, nil
}

func (c *Client) setRegions(codes []string) {
	c.regions = map[string]struct{}{}
	c.regionList = nil
	for _, code := range codes {
		code = strings.ToUpper(strings.TrimSpace(code))
		if code == "" {
			continue
		}
		if _, dup := c.regions[code]; dup {
			continue
		}
		c.regions[code] = struct{}{}
		c.regionList = append(c.regionList, code)
	}
}

// AutocompleteRequest is a partial address typed by the buyer. An empty
// IncludedRegionCodes searches every shipping country.
type AutocompleteRequest struct {
	Input               string
	IncludedRegionCodes []string
	LanguageCode        string
}

// AutocompleteSuggestion is one candidate address.
type AutocompleteSuggestion struct {
	PlaceID     string
	Description string
}

// PlaceDetails is the resolved form of a suggestion.
type PlaceDetails struct {
	PlaceID           string
	FormattedAddress  string
	AddressComponents []AddressComponent
}

// AddressComponent is one labelled piece of a resolved address.
type AddressComponent struct {
	LongName  string
	ShortName string
	Types     []string
}

// Country returns the ISO code of the place's country component.
func (p PlaceDetails) Country() string {
	for _, comp := range p.AddressComponents {
		if hasType(comp, "country") {
			return strings.ToUpper(comp.ShortName)
		}
	}
	return ""
}

type autocompletePayload struct {
	Input                string   `json:"input"`
	IncludedRegionCodes  []string `json:"includedRegionCodes"`
	IncludedPrimaryTypes []string `json:"includedPrimaryTypes"`
	LanguageCode         string   `json:"languageCode,omitempty"`
}

type autocompleteResponse struct {
	Suggestions []struct {
		Prediction struct {
			PlaceID string `json:"placeId"`
			Text    struct {
				Text string `json:"text"`
			} `json:"text"`
		} `json:"placePrediction"`
	} `json:"suggestions"`
}

type placeResponse struct {
	ID                string `json:"id"`
	FormattedAddress  string `json:"formattedAddress"`
	AddressComponents []struct {
		LongText  string   `json:"longText"`
		ShortText string   `json:"shortText"`
		Types     []string `json:"types"`
	} `json:"addressComponents"`
}

// Autocomplete suggests deliverable street addresses for partial input.
func (c *Client) Autocomplete(ctx context.Context, req AutocompleteRequest) ([]AutocompleteSuggestion, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "google maps client not configured")
	}
	input := strings.TrimSpace(req.Input)
	if input == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "autocomplete input is required")
	}
	regions, err := c.searchRegions(req.IncludedRegionCodes)
	if err != nil {
		return nil, err
	}

	var resp autocompleteResponse
	payload := autocompletePayload{
		Input:                input,
		IncludedRegionCodes:  regions,
		IncludedPrimaryTypes: deliverableTypes,
		LanguageCode:         strings.TrimSpace(req.LanguageCode),
	}
	if err := c.do(ctx, http.MethodPost, "places:autocomplete", autocompleteFieldMask, payload, &resp); err != nil {
		return nil, err
	}

	suggestions := make([]AutocompleteSuggestion, 0, len(resp.Suggestions))
	for _, s := range resp.Suggestions {
		if s.Prediction.PlaceID == "" {
			continue
		}
		suggestions = append(suggestions, AutocompleteSuggestion{
			PlaceID:     s.Prediction.PlaceID,
			Description: s.Prediction.Text.Text,
		})
	}
	return suggestions, nil
}

// ResolvePlace loads the address components for a suggestion. Places outside
// the shipping countries are rejected.
func (c *Client) ResolvePlace(ctx context.Context, placeID string) (*PlaceDetails, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "google maps client not configured")
	}
	trimmed := strings.TrimSpace(placeID)
	if trimmed == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "place ID is required")
	}

	var resp placeResponse
	if err := c.do(ctx, http.MethodGet, "places/"+url.PathEscape(trimmed), placeResolveFieldMask, nil, &resp); err != nil {
		return nil, err
	}

	details := &PlaceDetails{
		PlaceID:           resp.ID,
		FormattedAddress:  resp.FormattedAddress,
		AddressComponents: make([]AddressComponent, 0, len(resp.AddressComponents)),
	}
	for _, comp := range resp.AddressComponents {
		details.AddressComponents = append(details.AddressComponents, AddressComponent{
			LongName:  comp.LongText,
			ShortName: comp.ShortText,
			Types:     comp.Types,
		})
	}
	if country := details.Country(); country != "" {
		if _, ok := c.regions[country]; !ok {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "we do not ship to this country").
				WithDetails(map[string]any{"country": country})
		}
	}
	return details, nil
}

// searchRegions narrows the requested countries to the shipping countries.
func (c *Client) searchRegions(requested []string) ([]string, error) {
	if len(requested) == 0 {
		return c.regionList, nil
	}
	out := make([]string, 0, len(requested))
	for _, code := range requested {
		code = strings.ToUpper(strings.TrimSpace(code))
		if _, ok := c.regions[code]; ok {
			out = append(out, code)
		}
	}
	if len(out) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "we do not ship to this country").
			WithDetails(map[string]any{"country": strings.Join(requested, ",")})
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, method, path, fieldMask string, body any, dest any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "marshal places request")
		}
		reader = bytes.NewReader(payload)
	}

	endpoint := strings.TrimRight(c.baseURL, "/") + "/" + strings.TrimLeft(path, "/")
	httpReq, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build places request")
	}
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	httpReq.Header.Set("X-Goog-Api-Key", c.apiKey)
	httpReq.Header.Set("X-Goog-FieldMask", fieldMask)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "places request")
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return pkgerrors.New(pkgerrors.CodeNotFound, "place not found")
	case resp.StatusCode != http.StatusOK:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyReadLimit))
		return pkgerrors.Wrap(pkgerrors.CodeDependency, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))), "places request failed")
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode places response")
	}
	return nil
}
