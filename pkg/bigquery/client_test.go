package bigquery

import (
	"testing"
	"time"

	"github.com/angelmondragon/smokeshop-backend/pkg/config"
)

func TestConfiguredTables(t *testing.T) {
	tables := configuredTables(config.BigQueryConfig{OrdersTable: " order_events "})
	if len(tables) != 1 || tables[0] != "order_events" {
		t.Fatalf("expected order_events, got %v", tables)
	}
	if tables := configuredTables(config.BigQueryConfig{}); len(tables) != 0 {
		t.Fatalf("expected no tables, got %v", tables)
	}
}

func TestClientOptionsPrioritizesJSON(t *testing.T) {
	gcp := config.GCPConfig{
		CredentialsJSON:        `{"dummy": "value"}`,
		ApplicationCredentials: "/tmp/creds",
	}

	opts := clientOptions(gcp)
	if len(opts) != 1 {
		t.Fatalf("expected 1 option, got %d", len(opts))
	}
}

func TestClientOptionsWithFile(t *testing.T) {
	gcp := config.GCPConfig{
		ApplicationCredentials: "/tmp/creds",
	}

	opts := clientOptions(gcp)
	if len(opts) != 1 {
		t.Fatalf("expected 1 option when using credentials file, got %d", len(opts))
	}
}

func TestClientOptionsEmpty(t *testing.T) {
	gcp := config.GCPConfig{}

	opts := clientOptions(gcp)
	if len(opts) != 0 {
		t.Fatalf("expected 0 options when no credentials provided, got %d", len(opts))
	}
}

func TestOrderEventRowSaveUsesEventIDAsInsertID(t *testing.T) {
	row := &OrderEventRow{
		EventID:    "evt-1",
		EventType:  "order_paid",
		OrderID:    "order-1",
		TotalCents: 2599,
		OccurredAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	values, insertID, err := row.Save()
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if insertID != "evt-1" {
		t.Fatalf("unexpected insert id %q", insertID)
	}
	if values["total_cents"] != int64(2599) {
		t.Fatalf("unexpected total %v", values["total_cents"])
	}
	if _, ok := values["reason"]; ok {
		t.Fatal("expected empty reason to be omitted")
	}
}
