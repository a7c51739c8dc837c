// Package payment describes the hosted-checkout provider the reconciler talks to.
package payment

import "context"

// Checkout session events. Completed sessions may still await a delayed payment method, whose outcome
// arrives later as one of the async events.
const (
	EventCheckoutCompleted     = "checkout.session.completed"
	EventAsyncPaymentSucceeded = "checkout.session.async_payment_succeeded"
	EventAsyncPaymentFailed    = "checkout.session.async_payment_failed"
)

// Payment statuses that mean the money has been captured.
const (
	PaymentStatusPaid          = "paid"
	PaymentStatusNotRequired   = "no_payment_required"
	PaymentStatusAwaitingFunds = "unpaid"
)

// Metadata keys attached to every session and echoed back by the provider in webhook events.
const (
	MetaOrderID        = "order_id"
	MetaUserID         = "user_id"
	MetaOriginalAmount = "original_amount"
	MetaOriginalCurr   = "original_currency"
)

type SessionRequest struct {
	// IdempotencyKey makes retried creations return the same session.
	IdempotencyKey string
	Name           string
	Description    string
	// Amount is in minor units of Currency.
	Amount        int64
	Currency      string
	CustomerEmail string
	Metadata      map[string]string
}

type Session struct {
	ID  string
	URL string
}

// Event is a verified provider notification reduced to what reconciliation needs.
type Event struct {
	ID            string
	Type          string
	SessionID     string
	PaymentStatus string
	Metadata      map[string]string
}

// IsSessionEvent reports whether the event carries a checkout session.
func (e Event) IsSessionEvent() bool {
	switch e.Type {
	case EventCheckoutCompleted, EventAsyncPaymentSucceeded, EventAsyncPaymentFailed:
		return true
	}
	return false
}

// Captured reports whether the session's payment has been collected.
func (e Event) Captured() bool {
	switch e.Type {
	case EventAsyncPaymentSucceeded:
		return true
	case EventCheckoutCompleted:
		return e.PaymentStatus == PaymentStatusPaid || e.PaymentStatus == PaymentStatusNotRequired
	}
	return false
}

type Provider interface {
	CreateSession(ctx context.Context, req SessionRequest) (Session, error)
	// VerifyAndParse authenticates payload against its signature header. Failures wrap
	// domain.ErrInvalidSignature.
	VerifyAndParse(payload []byte, signature string) (Event, error)
	// ExpireSession closes an open session so it can no longer be paid.
	ExpireSession(ctx context.Context, sessionID string) error
}
