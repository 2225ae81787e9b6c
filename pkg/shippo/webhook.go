package shippo

import (
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// EventTrackUpdated is the only webhook event the storefront subscribes to.
const EventTrackUpdated = "track_updated"

// TrackingStatus is the latest carrier scan.
type TrackingStatus struct {
	Status        string     `json:"status"`
	StatusDetails string     `json:"status_details"`
	StatusDate    *time.Time `json:"status_date"`
}

// TrackData is the data block of a track_updated webhook.
type TrackData struct {
	Carrier        string         `json:"carrier"`
	TrackingNumber string         `json:"tracking_number"`
	TrackingStatus TrackingStatus `json:"tracking_status"`
}

// WebhookEvent is the envelope Shippo posts to the webhook URL.
type WebhookEvent struct {
	Event string    `json:"event"`
	Test  bool      `json:"test"`
	Data  TrackData `json:"data"`
}

// ParseWebhookEvent decodes a webhook body.
func ParseWebhookEvent(body []byte) (WebhookEvent, error) {
	var event WebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return WebhookEvent{}, fmt.Errorf("decode shippo webhook: %w", err)
	}
	event.Event = strings.TrimSpace(event.Event)
	event.Data.TrackingNumber = strings.TrimSpace(event.Data.TrackingNumber)
	return event, nil
}

// DedupeKey identifies one tracking scan so replays are ignored.
func (e WebhookEvent) DedupeKey() string {
	date := ""
	if e.Data.TrackingStatus.StatusDate != nil {
		date = e.Data.TrackingStatus.StatusDate.UTC().Format(time.RFC3339)
	}
	return strings.Join([]string{e.Data.TrackingNumber, strings.ToUpper(e.Data.TrackingStatus.Status), date}, "|")
}

// VerifyWebhookToken compares the query-string token in constant time. An
// empty expected token rejects every request.
func VerifyWebhookToken(expected, provided string) bool {
	expected = strings.TrimSpace(expected)
	if expected == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(expected), []byte(strings.TrimSpace(provided))) == 1
}
