package enums

import "strings"

// GatewayPaymentStatus is the payment status reported by the card processor.
type GatewayPaymentStatus string

const (
	GatewayPaymentApproved  GatewayPaymentStatus = "APPROVED"
	GatewayPaymentPending   GatewayPaymentStatus = "PENDING"
	GatewayPaymentCompleted GatewayPaymentStatus = "COMPLETED"
	GatewayPaymentCanceled  GatewayPaymentStatus = "CANCELED"
	GatewayPaymentFailed    GatewayPaymentStatus = "FAILED"
)

// ParseGatewayPaymentStatus normalizes the processor status string.
func ParseGatewayPaymentStatus(value string) GatewayPaymentStatus {
	return GatewayPaymentStatus(strings.ToUpper(strings.TrimSpace(value)))
}

// String implements fmt.Stringer.
func (s GatewayPaymentStatus) String() string {
	return string(s)
}

// IsCaptured reports whether funds were authorized or captured.
func (s GatewayPaymentStatus) IsCaptured() bool {
	return s == GatewayPaymentApproved || s == GatewayPaymentCompleted
}

// IsTerminalFailure reports whether the payment can no longer succeed.
func (s GatewayPaymentStatus) IsTerminalFailure() bool {
	return s == GatewayPaymentCanceled || s == GatewayPaymentFailed
}
