package square

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	sq "github.com/square/square-go-sdk"
)

// CustomerCreateParams defines the payload to create a Square customer.
type CustomerCreateParams struct {
	Email          string
	PhoneNumber    string
	GivenName      string
	FamilyName     string
	CompanyName    string
	ReferenceID    string
	Address        *sq.Address
	Note           string
	IdempotencyKey string
}

func (p CustomerCreateParams) toSquareRequest(idempotencyKey string) *sq.CreateCustomerRequest {
	req := &sq.CreateCustomerRequest{
		IdempotencyKey: ptrString(idempotencyKey),
	}
	if trimmed := strings.TrimSpace(p.Email); trimmed != "" {
		req.EmailAddress = ptrString(trimmed)
	}
	if trimmed := strings.TrimSpace(p.PhoneNumber); trimmed != "" {
		req.PhoneNumber = ptrString(trimmed)
	}
	if trimmed := strings.TrimSpace(p.GivenName); trimmed != "" {
		req.GivenName = ptrString(trimmed)
	}
	if trimmed := strings.TrimSpace(p.FamilyName); trimmed != "" {
		req.FamilyName = ptrString(trimmed)
	}
	if trimmed := strings.TrimSpace(p.CompanyName); trimmed != "" {
		req.CompanyName = ptrString(trimmed)
	}
	if trimmed := strings.TrimSpace(p.ReferenceID); trimmed != "" {
		req.ReferenceID = ptrString(trimmed)
	}
	if p.Address != nil {
		req.Address = p.Address
	}
	if trimmed := strings.TrimSpace(p.Note); trimmed != "" {
		req.Note = ptrString(trimmed)
	}
	return req
}

// PaymentCreateParams encapsulates the inputs for a Square payment.
type PaymentCreateParams struct {
	AmountCents       int64
	Currency          string
	LocationID        string
	CustomerID        string
	SourceID          string
	VerificationToken string
	BuyerEmail        string
	IdempotencyKey    string
	Note              string
	ReferenceID       string
}

func (p PaymentCreateParams) toSquareRequest(idempotencyKey string) *sq.CreatePaymentRequest {
	autocomplete := true
	req := &sq.CreatePaymentRequest{
		IdempotencyKey:    idempotencyKey,
		LocationID:        ptrString(p.LocationID),
		CustomerID:        ptrString(p.CustomerID),
		SourceID:          p.SourceID,
		VerificationToken: ptrString(p.VerificationToken),
		BuyerEmailAddress: ptrString(p.BuyerEmail),
		Autocomplete:      &autocomplete,
	}
	if p.AmountCents > 0 {
		req.AmountMoney = moneyPtr(p.AmountCents, p.Currency)
	}
	if trimmed := strings.TrimSpace(p.Note); trimmed != "" {
		req.Note = ptrString(trimmed)
	}
	if trimmed := strings.TrimSpace(p.ReferenceID); trimmed != "" {
		req.ReferenceID = ptrString(trimmed)
	}
	return req
}

func ptrString(value string) *string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return &value
}

func int64Ptr(value int64) *int64 {
	return &value
}

func currencyPtr(code string) *sq.Currency {
	trimmed := strings.ToUpper(strings.TrimSpace(code))
	if trimmed == "" {
		trimmed = "USD"
	}
	c := sq.Currency(trimmed)
	return &c
}

func moneyPtr(amount int64, currency string) *sq.Money {
	if amount == 0 {
		return nil
	}
	return &sq.Money{
		Amount:   int64Ptr(amount),
		Currency: currencyPtr(currency),
	}
}

// PaymentIdempotencyKey derives the gateway key for charging orderID with a
// given card token. Retrying the same token reuses the key so the processor
// returns the original payment instead of charging twice; a new token after a
// decline yields a fresh key. Square caps keys at 45 characters.
func PaymentIdempotencyKey(orderID, sourceID string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(orderID) + "|" + strings.TrimSpace(sourceID)))
	return "ord_" + hex.EncodeToString(sum[:])[:40]
}
