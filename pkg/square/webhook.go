package square

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"strings"

	sq "github.com/square/square-go-sdk"

	pkgerrors "github.com/angelmondragon/smokeshop-backend/pkg/errors"
)

// SignatureHeader carries the HMAC Square attaches to webhook deliveries.
const SignatureHeader = "x-square-hmacsha256-signature"

// WebhookEvent is the envelope of a Square notification.
type WebhookEvent struct {
	MerchantID string `json:"merchant_id"`
	Type       string `json:"type"`
	EventID    string `json:"event_id"`
	CreatedAt  string `json:"created_at"`
	Data       struct {
		Type   string          `json:"type"`
		ID     string          `json:"id"`
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

// Payment decodes data.object.payment for payment.* events.
func (e WebhookEvent) Payment() (*sq.Payment, error) {
	var wrapper struct {
		Payment *sq.Payment `json:"payment"`
	}
	if len(e.Data.Object) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "webhook event has no object")
	}
	if err := json.Unmarshal(e.Data.Object, &wrapper); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode square payment")
	}
	if wrapper.Payment == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "webhook event has no payment")
	}
	return wrapper.Payment, nil
}

// ParseWebhookEvent verifies the signature and decodes the envelope.
func (c *Client) ParseWebhookEvent(body []byte, signature string) (WebhookEvent, error) {
	var event WebhookEvent
	if !VerifyWebhookSignature(c.SigningSecret(), c.notificationURL, body, signature) {
		return event, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid square signature")
	}
	if err := json.Unmarshal(body, &event); err != nil {
		return event, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode square webhook")
	}
	return event, nil
}

// VerifyWebhookSignature checks a base64 HMAC-SHA256 of notificationURL+body.
func VerifyWebhookSignature(key, notificationURL string, body []byte, signature string) bool {
	key = strings.TrimSpace(key)
	signature = strings.TrimSpace(signature)
	if key == "" || signature == "" {
		return false
	}
	expected := SignWebhook(key, notificationURL, body)
	return hmac.Equal([]byte(expected), []byte(signature))
}

// SignWebhook computes the signature Square would send for body.
func SignWebhook(key, notificationURL string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(key))
	mac.Write([]byte(notificationURL))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
