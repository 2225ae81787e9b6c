package enums

import (
	"fmt"
	"strings"
)

// ShipmentStatus mirrors the carrier tracking lifecycle of an order parcel.
type ShipmentStatus string

const (
	ShipmentStatusAwaitingLabel  ShipmentStatus = "awaiting_label"
	ShipmentStatusLabelPurchased ShipmentStatus = "label_purchased"
	ShipmentStatusPreTransit     ShipmentStatus = "pre_transit"
	ShipmentStatusTransit        ShipmentStatus = "transit"
	ShipmentStatusDelivered      ShipmentStatus = "delivered"
	ShipmentStatusReturned       ShipmentStatus = "returned"
	ShipmentStatusFailure        ShipmentStatus = "failure"
	ShipmentStatusUnknown        ShipmentStatus = "unknown"
)

var validShipmentStatuses = []ShipmentStatus{
	ShipmentStatusAwaitingLabel,
	ShipmentStatusLabelPurchased,
	ShipmentStatusPreTransit,
	ShipmentStatusTransit,
	ShipmentStatusDelivered,
	ShipmentStatusReturned,
	ShipmentStatusFailure,
	ShipmentStatusUnknown,
}

// String implements fmt.Stringer.
func (s ShipmentStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known ShipmentStatus.
func (s ShipmentStatus) IsValid() bool {
	for _, candidate := range validShipmentStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// NotifiesCustomer reports whether reaching this status warrants an email.
func (s ShipmentStatus) NotifiesCustomer() bool {
	switch s {
	case ShipmentStatusTransit, ShipmentStatusDelivered, ShipmentStatusReturned, ShipmentStatusFailure:
		return true
	default:
		return false
	}
}

// ParseCarrierTrackingStatus maps carrier tracking statuses (PRE_TRANSIT,
// TRANSIT, DELIVERED, RETURNED, FAILURE, UNKNOWN) onto ShipmentStatus.
func ParseCarrierTrackingStatus(value string) ShipmentStatus {
	candidate := ShipmentStatus(strings.ToLower(strings.TrimSpace(value)))
	switch candidate {
	case ShipmentStatusPreTransit, ShipmentStatusTransit, ShipmentStatusDelivered, ShipmentStatusReturned, ShipmentStatusFailure:
		return candidate
	default:
		return ShipmentStatusUnknown
	}
}

// ParseShipmentStatus converts raw input into a ShipmentStatus.
func ParseShipmentStatus(value string) (ShipmentStatus, error) {
	for _, candidate := range validShipmentStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid shipment status %q", value)
}
