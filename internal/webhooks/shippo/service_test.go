package shippowebhook

import (
	"context"
	"testing"

	"github.com/angelmondragon/smokeshop-backend/pkg/db/models"
	"github.com/angelmondragon/smokeshop-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/smokeshop-backend/pkg/errors"
	"github.com/angelmondragon/smokeshop-backend/pkg/shippo"
)

type stubTracking struct {
	events []shippo.WebhookEvent
	err    error
}

func (s *stubTracking) ApplyTracking(_ context.Context, event shippo.WebhookEvent) (*models.Shipment, bool, error) {
	if s.err != nil {
		return nil, false, s.err
	}
	s.events = append(s.events, event)
	return &models.Shipment{Status: enums.ParseCarrierTrackingStatus(event.Data.TrackingStatus.Status)}, true, nil
}

type memoryGuard struct {
	seen map[string]bool
}

func (g *memoryGuard) CheckAndMark(_ context.Context, key string) (bool, error) {
	if g.seen[key] {
		return true, nil
	}
	g.seen[key] = true
	return false, nil
}

func (g *memoryGuard) Delete(_ context.Context, key string) error {
	delete(g.seen, key)
	return nil
}

const deliveredBody = `{"event":"track_updated","test":false,"data":{"carrier":"usps","tracking_number":"9400100000000000000001","tracking_status":{"status":"DELIVERED","status_details":"Delivered to mailbox","status_date":"2026-05-01T15:04:05Z"}}}`

func TestHandleRejectsBadToken(t *testing.T) {
	tracking := &stubTracking{}
	svc, err := NewService("secret", tracking, &memoryGuard{seen: map[string]bool{}}, nil)
	if err != nil {
		t.Fatalf("NewService() error: %v", err)
	}
	if err := svc.Handle(context.Background(), "wrong", []byte(deliveredBody)); !pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}

	open, _ := NewService("", tracking, &memoryGuard{seen: map[string]bool{}}, nil)
	if err := open.Handle(context.Background(), "", []byte(deliveredBody)); !pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized) {
		t.Fatalf("expected unconfigured token to reject, got %v", err)
	}
	if len(tracking.events) != 0 {
		t.Fatal("nothing should be applied")
	}
}

func TestHandleDedupesScans(t *testing.T) {
	tracking := &stubTracking{}
	svc, _ := NewService("secret", tracking, &memoryGuard{seen: map[string]bool{}}, nil)

	for i := 0; i < 2; i++ {
		if err := svc.Handle(context.Background(), "secret", []byte(deliveredBody)); err != nil {
			t.Fatalf("Handle() error: %v", err)
		}
	}
	if len(tracking.events) != 1 {
		t.Fatalf("expected one applied scan, got %d", len(tracking.events))
	}
	if tracking.events[0].Data.TrackingStatus.StatusDetails != "Delivered to mailbox" {
		t.Fatalf("unexpected event %+v", tracking.events[0])
	}
}

func TestHandleReleasesGuardOnFailure(t *testing.T) {
	guard := &memoryGuard{seen: map[string]bool{}}
	tracking := &stubTracking{err: pkgerrors.New(pkgerrors.CodeInternal, "db down")}
	svc, _ := NewService("secret", tracking, guard, nil)

	if err := svc.Handle(context.Background(), "secret", []byte(deliveredBody)); err == nil {
		t.Fatal("expected error")
	}
	if len(guard.seen) != 0 {
		t.Fatal("expected guard released for retry")
	}
}

func TestHandleValidatesBody(t *testing.T) {
	svc, _ := NewService("secret", &stubTracking{}, &memoryGuard{seen: map[string]bool{}}, nil)
	if err := svc.Handle(context.Background(), "secret", []byte("not json")); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if err := svc.Handle(context.Background(), "secret", []byte(`{"event":"transaction_created"}`)); err != nil {
		t.Fatalf("other events should be ignored: %v", err)
	}
}
