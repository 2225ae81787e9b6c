package shippo

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Address is the Shippo address object.
type Address struct {
	Name    string `json:"name"`
	Street1 string `json:"street1"`
	Street2 string `json:"street2,omitempty"`
	City    string `json:"city"`
	State   string `json:"state"`
	Zip     string `json:"zip"`
	Country string `json:"country"`
	Phone   string `json:"phone,omitempty"`
	Email   string `json:"email,omitempty"`
}

// Parcel dimensions are decimal strings as Shippo expects.
type Parcel struct {
	Length       string `json:"length"`
	Width        string `json:"width"`
	Height       string `json:"height"`
	DistanceUnit string `json:"distance_unit"`
	Weight       string `json:"weight"`
	MassUnit     string `json:"mass_unit"`
}

// ShipmentRequest is the POST /shipments payload.
type ShipmentRequest struct {
	AddressFrom Address  `json:"address_from"`
	AddressTo   Address  `json:"address_to"`
	Parcels     []Parcel `json:"parcels"`
	Async       bool     `json:"async"`
}

// ServiceLevel names the carrier product of a rate.
type ServiceLevel struct {
	Name  string `json:"name"`
	Token string `json:"token"`
}

// Rate is one carrier quote for a shipment.
type Rate struct {
	ObjectID      string       `json:"object_id"`
	Amount        string       `json:"amount"`
	Currency      string       `json:"currency"`
	Provider      string       `json:"provider"`
	ServiceLevel  ServiceLevel `json:"servicelevel"`
	EstimatedDays *int         `json:"estimated_days"`
	DurationTerms string       `json:"duration_terms"`
}

// AmountCents converts the decimal amount string into integer cents.
func (r Rate) AmountCents() (int64, error) {
	amount, err := decimal.NewFromString(strings.TrimSpace(r.Amount))
	if err != nil {
		return 0, fmt.Errorf("parse rate amount %q: %w", r.Amount, err)
	}
	if amount.IsNegative() {
		return 0, fmt.Errorf("negative rate amount %q", r.Amount)
	}
	return amount.Shift(2).Round(0).IntPart(), nil
}

// Message is a provider diagnostic attached to shipments and transactions.
type Message struct {
	Source string `json:"source"`
	Code   string `json:"code"`
	Text   string `json:"text"`
}

// Shipment is the POST /shipments response.
type Shipment struct {
	ObjectID string    `json:"object_id"`
	Status   string    `json:"status"`
	Rates    []Rate    `json:"rates"`
	Messages []Message `json:"messages"`
}

type transactionRequest struct {
	Rate          string `json:"rate"`
	LabelFileType string `json:"label_file_type"`
	Async         bool   `json:"async"`
}

// Transaction is a purchased label.
type Transaction struct {
	ObjectID            string    `json:"object_id"`
	Status              string    `json:"status"`
	Rate                string    `json:"rate"`
	TrackingNumber      string    `json:"tracking_number"`
	TrackingURLProvider string    `json:"tracking_url_provider"`
	LabelURL            string    `json:"label_url"`
	Messages            []Message `json:"messages"`
}

// MessageText joins provider diagnostics into one line.
func (t Transaction) MessageText() string {
	parts := make([]string, 0, len(t.Messages))
	for _, m := range t.Messages {
		if text := strings.TrimSpace(m.Text); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, "; ")
}
