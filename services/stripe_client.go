package services

import (
	"bytes"
	"io"
	"net/http"

	"github.com/stripe/stripe-go/v80"
	"github.com/stripe/stripe-go/v80/paymentintent"
	"github.com/stripe/stripe-go/v80/refund"
	"github.com/stripe/stripe-go/v80/setupintent"
	"github.com/stripe/stripe-go/v80/transfer"
	"github.com/stripe/stripe-go/v80/transferreversal"
	"github.com/stripe/stripe-go/v80/webhook"
)

// CaptureResult echoes the processor-reported amounts after a capture.
// TransferAmountCents is the instructor-bound portion, which is smaller than
// AmountReceivedCents whenever platform fees apply. Settlement must reverse
// the transfer amount, never the amount received.
type CaptureResult struct {
	TransferID          string
	AmountReceivedCents int64
	TransferAmountCents int64
}

// TransferResult is returned from a manual payout transfer.
type TransferResult struct {
	TransferID  string
	AmountCents int64
}

// PaymentProcessor is the set of processor operations the settlement engine
// drives. StripeService is the production implementation; tests use struct
// mocks.
type PaymentProcessor interface {
	CapturePaymentIntent(paymentIntentID string) (*CaptureResult, error)
	CancelPaymentIntent(paymentIntentID string) error
	ReverseTransfer(transferID string, amountCents int64) error
	RefundPayment(paymentIntentID string, reverseTransfer, refundApplicationFee bool) error
	CreateTransfer(destinationAccountID string, amountCents int64) (*TransferResult, error)
}

// StripeService wraps the Stripe SDK calls used by the booking and settlement
// flows.
type StripeService struct {
	SecretKey  string
	WebhookKey string
	Currency   string
}

// NewStripeService creates a new StripeService and sets the global API key.
func NewStripeService(secretKey, webhookKey string) *StripeService {
	stripe.Key = secretKey
	return &StripeService{SecretKey: secretKey, WebhookKey: webhookKey, Currency: "usd"}
}

// CreatePaymentIntent creates a manual-capture intent routed to the
// instructor's connected account, minus the platform's application fee.
func (s *StripeService) CreatePaymentIntent(amountCents, applicationFeeCents int64, customerID, paymentMethodID, destinationAccountID string) (string, error) {
	params := &stripe.PaymentIntentParams{
		Amount:               stripe.Int64(amountCents),
		Currency:             stripe.String(s.Currency),
		Customer:             stripe.String(customerID),
		PaymentMethod:        stripe.String(paymentMethodID),
		CaptureMethod:        stripe.String(string(stripe.PaymentIntentCaptureMethodManual)),
		Confirm:              stripe.Bool(true),
		OffSession:           stripe.Bool(true),
		ApplicationFeeAmount: stripe.Int64(applicationFeeCents),
		TransferData: &stripe.PaymentIntentTransferDataParams{
			Destination: stripe.String(destinationAccountID),
		},
	}
	pi, err := paymentintent.New(params)
	if err != nil {
		return "", err
	}
	return pi.ID, nil
}

// CreateSetupIntent stores a payment method for later off-session use.
func (s *StripeService) CreateSetupIntent(customerID string) (string, error) {
	params := &stripe.SetupIntentParams{
		Customer: stripe.String(customerID),
		Usage:    stripe.String(string(stripe.SetupIntentUsageOffSession)),
	}
	si, err := setupintent.New(params)
	if err != nil {
		return "", err
	}
	return si.ClientSecret, nil
}

// CapturePaymentIntent captures a held authorization and reports the amounts
// the processor actually moved.
func (s *StripeService) CapturePaymentIntent(paymentIntentID string) (*CaptureResult, error) {
	params := &stripe.PaymentIntentCaptureParams{}
	params.AddExpand("latest_charge.transfer")

	pi, err := paymentintent.Capture(paymentIntentID, params)
	if err != nil {
		return nil, err
	}

	result := &CaptureResult{AmountReceivedCents: pi.AmountReceived}
	if pi.TransferData != nil {
		result.TransferAmountCents = pi.TransferData.Amount
	}
	if pi.LatestCharge != nil && pi.LatestCharge.Transfer != nil {
		result.TransferID = pi.LatestCharge.Transfer.ID
		if result.TransferAmountCents == 0 {
			result.TransferAmountCents = pi.LatestCharge.Transfer.Amount
		}
	}
	return result, nil
}

// CancelPaymentIntent voids a not-yet-captured authorization.
func (s *StripeService) CancelPaymentIntent(paymentIntentID string) error {
	_, err := paymentintent.Cancel(paymentIntentID, nil)
	return err
}

// ReverseTransfer pulls back amountCents of a previous transfer to a
// connected account.
func (s *StripeService) ReverseTransfer(transferID string, amountCents int64) error {
	params := &stripe.TransferReversalParams{
		ID:     stripe.String(transferID),
		Amount: stripe.Int64(amountCents),
	}
	_, err := transferreversal.New(params)
	return err
}

// RefundPayment refunds a captured payment back to the card.
func (s *StripeService) RefundPayment(paymentIntentID string, reverseTransfer, refundApplicationFee bool) error {
	params := &stripe.RefundParams{
		PaymentIntent:        stripe.String(paymentIntentID),
		ReverseTransfer:      stripe.Bool(reverseTransfer),
		RefundApplicationFee: stripe.Bool(refundApplicationFee),
	}
	_, err := refund.New(params)
	return err
}

// CreateTransfer sends a manual payout to a connected account.
func (s *StripeService) CreateTransfer(destinationAccountID string, amountCents int64) (*TransferResult, error) {
	params := &stripe.TransferParams{
		Amount:      stripe.Int64(amountCents),
		Currency:    stripe.String(s.Currency),
		Destination: stripe.String(destinationAccountID),
	}
	tr, err := transfer.New(params)
	if err != nil {
		return nil, err
	}
	return &TransferResult{TransferID: tr.ID, AmountCents: tr.Amount}, nil
}

// ParseWebhook verifies and decodes a Stripe webhook request.
func (s *StripeService) ParseWebhook(r *http.Request) (stripe.Event, error) {
	var event stripe.Event
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		return event, err
	}
	r.Body = io.NopCloser(bytes.NewBuffer(payload))
	sigHeader := r.Header.Get("Stripe-Signature")
	return webhook.ConstructEvent(payload, sigHeader, s.WebhookKey)
}
