package email

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"strings"

	"github.com/shopspring/decimal"
)

//go:embed templates/*.html
var templateFS embed.FS

const (
	TemplateOrderConfirmation = "order_confirmation"
	TemplatePaymentFailed     = "payment_failed"
	TemplateShipmentStatus    = "shipment_status"
	TemplatePasswordReset     = "password_reset"
)

var templates = template.Must(template.New("email").Funcs(template.FuncMap{
	"money": FormatCents,
}).ParseFS(templateFS, "templates/*.html"))

// FormatCents renders integer cents as a dollar amount.
func FormatCents(cents int64) string {
	return "$" + decimal.New(cents, -2).StringFixed(2)
}

// OrderLine is one purchased product in an order email.
type OrderLine struct {
	Name           string
	Quantity       int
	UnitPriceCents int64
}

// OrderConfirmation is the data for the paid-order email.
type OrderConfirmation struct {
	StoreName      string
	Email          string
	Name           string
	OrderID        string
	Lines          []OrderLine
	SubtotalCents  int64
	ShippingCents  int64
	TotalCents     int64
	TrackingNumber string
	TrackingURL    string
}

// PaymentFailed is the data for the declined-payment email.
type PaymentFailed struct {
	StoreName   string
	Email       string
	OrderID     string
	TotalCents  int64
	Reason      string
	CheckoutURL string
}

// ShipmentStatus is the data for carrier tracking updates.
type ShipmentStatus struct {
	StoreName      string
	Email          string
	Name           string
	OrderID        string
	Status         string
	Carrier        string
	TrackingNumber string
	TrackingURL    string
	StatusDetails  string
}

// Headline describes the status in customer language.
func (s ShipmentStatus) Headline() string {
	switch strings.ToLower(s.Status) {
	case "transit":
		return "Your order is on its way"
	case "delivered":
		return "Your order was delivered"
	case "returned":
		return "Your order is being returned"
	case "failure":
		return "There's a problem with your delivery"
	default:
		return "Shipping update"
	}
}

// PasswordReset is the data for the reset link email.
type PasswordReset struct {
	StoreName string
	Email     string
	ResetURL  string
	ExpiresIn string
}

// RenderOrderConfirmation builds the order confirmation message.
func RenderOrderConfirmation(data OrderConfirmation) (Message, error) {
	return render(TemplateOrderConfirmation, data.Email, data.Name,
		fmt.Sprintf("%s order confirmation", storeName(data.StoreName)),
		fmt.Sprintf("Thanks for your order %s. Total charged: %s.", data.OrderID, FormatCents(data.TotalCents)),
		data)
}

// RenderPaymentFailed builds the declined payment message.
func RenderPaymentFailed(data PaymentFailed) (Message, error) {
	return render(TemplatePaymentFailed, data.Email, "",
		"We couldn't process your payment",
		fmt.Sprintf("Your payment for order %s was declined. Try again at %s.", data.OrderID, data.CheckoutURL),
		data)
}

// RenderShipmentStatus builds the tracking update message.
func RenderShipmentStatus(data ShipmentStatus) (Message, error) {
	text := fmt.Sprintf("%s. Order %s, tracking %s.", data.Headline(), data.OrderID, data.TrackingNumber)
	return render(TemplateShipmentStatus, data.Email, data.Name, data.Headline(), text, data)
}

// RenderPasswordReset builds the password reset message.
func RenderPasswordReset(data PasswordReset) (Message, error) {
	return render(TemplatePasswordReset, data.Email, "",
		fmt.Sprintf("Reset your %s password", storeName(data.StoreName)),
		fmt.Sprintf("Reset your password: %s (expires in %s)", data.ResetURL, data.ExpiresIn),
		data)
}

func render(name, to, toName, subject, text string, data any) (Message, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name+".html", data); err != nil {
		return Message{}, fmt.Errorf("render %s email: %w", name, err)
	}
	return Message{
		To:       to,
		ToName:   toName,
		Subject:  subject,
		HTML:     buf.String(),
		Text:     text,
		Template: name,
	}, nil
}

func storeName(name string) string {
	if strings.TrimSpace(name) == "" {
		return "Smoke Shop"
	}
	return name
}
