package shippo

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseWebhookEvent(t *testing.T) {
	body := []byte(`{"event":"track_updated","test":false,"data":{"carrier":"usps","tracking_number":" 9400 ","tracking_status":{"status":"TRANSIT","status_details":"Arrived at facility","status_date":"2026-10-01T12:30:00Z"}}}`)

	event, err := ParseWebhookEvent(body)
	require.NoError(t, err)
	require.Equal(t, EventTrackUpdated, event.Event)
	require.Equal(t, "9400", event.Data.TrackingNumber)
	require.Equal(t, "TRANSIT", event.Data.TrackingStatus.Status)
	require.Equal(t, "9400|TRANSIT|2026-10-01T12:30:00Z", event.DedupeKey())
}

func TestParseWebhookEventRejectsGarbage(t *testing.T) {
	_, err := ParseWebhookEvent([]byte("not json"))
	require.Error(t, err)
}

func TestVerifyWebhookToken(t *testing.T) {
	require.True(t, VerifyWebhookToken("secret", "secret"))
	require.False(t, VerifyWebhookToken("secret", "other"))
	require.False(t, VerifyWebhookToken("", ""))
}
