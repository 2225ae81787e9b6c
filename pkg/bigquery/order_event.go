package bigquery

import (
	"time"

	"cloud.google.com/go/bigquery"
)

// OrderEventRow is one order lifecycle fact in the warehouse.
type OrderEventRow struct {
	EventID       string
	EventType     string
	OrderID       string
	Email         string
	Status        string
	TotalCents    int64
	SubtotalCents int64
	ShippingCents int64
	Currency      string
	ItemCount     int
	Reason        string
	OccurredAt    time.Time
}

// Save implements bigquery.ValueSaver. EventID doubles as the streaming
// insert ID so redelivered messages are deduplicated by BigQuery.
func (r *OrderEventRow) Save() (map[string]bigquery.Value, string, error) {
	row := map[string]bigquery.Value{
		"event_id":       r.EventID,
		"event_type":     r.EventType,
		"order_id":       r.OrderID,
		"email":          r.Email,
		"status":         r.Status,
		"total_cents":    r.TotalCents,
		"subtotal_cents": r.SubtotalCents,
		"shipping_cents": r.ShippingCents,
		"currency":       r.Currency,
		"item_count":     r.ItemCount,
		"occurred_at":    r.OccurredAt.UTC(),
	}
	if r.Reason != "" {
		row["reason"] = r.Reason
	}
	return row, r.EventID, nil
}
