package email

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFormatCents(t *testing.T) {
	require.Equal(t, "$12.34", FormatCents(1234))
	require.Equal(t, "$0.05", FormatCents(5))
	require.Equal(t, "$100.00", FormatCents(10000))
}

func TestRenderOrderConfirmation(t *testing.T) {
	msg, err := RenderOrderConfirmation(OrderConfirmation{
		StoreName:     "Cloud Nine",
		Email:         "jane@example.com",
		Name:          "Jane",
		OrderID:       "ord-1",
		Lines:         []OrderLine{{Name: "Geek Bar Pulse", Quantity: 2, UnitPriceCents: 1999}},
		SubtotalCents: 3998,
		ShippingCents: 745,
		TotalCents:    4743,
	})
	require.NoError(t, err)
	require.Equal(t, "jane@example.com", msg.To)
	require.Equal(t, "Cloud Nine order confirmation", msg.Subject)
	require.Equal(t, TemplateOrderConfirmation, msg.Template)
	require.Contains(t, msg.HTML, "Geek Bar Pulse")
	require.Contains(t, msg.HTML, "$47.43")
	require.Contains(t, msg.Text, "$47.43")
}

func TestRenderEscapesUserInput(t *testing.T) {
	msg, err := RenderShipmentStatus(ShipmentStatus{
		Email:         "jane@example.com",
		Name:          "<script>alert(1)</script>",
		OrderID:       "ord-1",
		Status:        "delivered",
		Carrier:       "usps",
		StatusDetails: "Left at front door",
	})
	require.NoError(t, err)
	require.False(t, strings.Contains(msg.HTML, "<script>"))
	require.Equal(t, "Your order was delivered", msg.Subject)
}

func TestRenderPasswordResetAndPaymentFailed(t *testing.T) {
	reset, err := RenderPasswordReset(PasswordReset{Email: "a@example.com", ResetURL: "https://shop.test/reset-password?token=abc", ExpiresIn: "1h0m0s"})
	require.NoError(t, err)
	require.Contains(t, reset.HTML, "https://shop.test/reset-password?token=abc")
	require.Equal(t, "Reset your Smoke Shop password", reset.Subject)

	failed, err := RenderPaymentFailed(PaymentFailed{Email: "a@example.com", OrderID: "ord-9", TotalCents: 500, Reason: "CARD_DECLINED", CheckoutURL: "https://shop.test/checkout"})
	require.NoError(t, err)
	require.Contains(t, failed.HTML, "CARD_DECLINED")
	require.Contains(t, failed.HTML, "$5.00")
}
