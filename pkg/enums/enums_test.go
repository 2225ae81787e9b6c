package enums

import "testing"

func TestOrderStatusTransitions(t *testing.T) {
	cases := []struct {
		from, to OrderStatus
		allowed  bool
	}{
		{OrderStatusPendingPayment, OrderStatusPaid, true},
		{OrderStatusPendingPayment, OrderStatusPaymentFailed, true},
		{OrderStatusPendingPayment, OrderStatusReconciled, true},
		{OrderStatusPaymentFailed, OrderStatusPendingPayment, true},
		{OrderStatusPaymentFailed, OrderStatusReconciled, true},
		{OrderStatusReconciled, OrderStatusPaid, true},
		{OrderStatusReconciled, OrderStatusPendingPayment, false},
		{OrderStatusPaid, OrderStatusPaymentFailed, false},
		{OrderStatusPaid, OrderStatusReconciled, false},
	}
	for _, tc := range cases {
		if got := tc.from.CanTransitionTo(tc.to); got != tc.allowed {
			t.Fatalf("%s -> %s: expected %v got %v", tc.from, tc.to, tc.allowed, got)
		}
	}
}

func TestParseCarrierTrackingStatus(t *testing.T) {
	if got := ParseCarrierTrackingStatus("DELIVERED"); got != ShipmentStatusDelivered {
		t.Fatalf("unexpected status %s", got)
	}
	if got := ParseCarrierTrackingStatus("PRE_TRANSIT"); got != ShipmentStatusPreTransit {
		t.Fatalf("unexpected status %s", got)
	}
	if got := ParseCarrierTrackingStatus("weird"); got != ShipmentStatusUnknown {
		t.Fatalf("unexpected status %s", got)
	}
	if ShipmentStatusPreTransit.NotifiesCustomer() {
		t.Fatalf("pre transit should not notify")
	}
	if !ShipmentStatusDelivered.NotifiesCustomer() {
		t.Fatalf("delivered should notify")
	}
}

func TestParseUserRole(t *testing.T) {
	role, err := ParseUserRole(" Admin ")
	if err != nil || role != UserRoleAdmin {
		t.Fatalf("expected admin role, got %q (%v)", role, err)
	}
	if _, err := ParseUserRole("vendor"); err == nil {
		t.Fatalf("expected error for unknown role")
	}
}

func TestGatewayPaymentStatus(t *testing.T) {
	if !ParseGatewayPaymentStatus("completed").IsCaptured() {
		t.Fatalf("completed should be captured")
	}
	if !ParseGatewayPaymentStatus("FAILED").IsTerminalFailure() {
		t.Fatalf("failed should be terminal")
	}
	if ParseGatewayPaymentStatus("PENDING").IsCaptured() {
		t.Fatalf("pending should not be captured")
	}
}
