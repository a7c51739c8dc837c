// Package stripe implements payment.Provider on Stripe Checkout.
package stripe

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	stripego "github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"

	"storefront-core/internal/domain"
	"storefront-core/internal/payment"
)

type Config struct {
	SecretKey     string
	WebhookSecret string
	SuccessURL    string
	CancelURL     string
	Timeout       time.Duration
	// APIURL overrides the Stripe API base URL. Empty uses api.stripe.com.
	APIURL string
}

type Provider struct {
	api           *client.API
	webhookSecret string
	successURL    string
	cancelURL     string
	timeout       time.Duration
}

func New(cfg Config) *Provider {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	httpClient := &http.Client{Timeout: timeout}
	backendConfig := &stripego.BackendConfig{HTTPClient: httpClient}
	if cfg.APIURL != "" {
		backendConfig.URL = stripego.String(cfg.APIURL)
	}
	backends := &stripego.Backends{
		API:     stripego.GetBackendWithConfig(stripego.APIBackend, backendConfig),
		Connect: stripego.GetBackendWithConfig(stripego.ConnectBackend, backendConfig),
		Uploads: stripego.GetBackendWithConfig(stripego.UploadsBackend, backendConfig),
	}
	return &Provider{
		api:           client.New(cfg.SecretKey, backends),
		webhookSecret: cfg.WebhookSecret,
		successURL:    cfg.SuccessURL,
		cancelURL:     cfg.CancelURL,
		timeout:       timeout,
	}
}

func (p *Provider) CreateSession(ctx context.Context, req payment.SessionRequest) (payment.Session, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	params := &stripego.CheckoutSessionParams{
		Mode:              stripego.String(string(stripego.CheckoutSessionModePayment)),
		SuccessURL:        stripego.String(p.successURL),
		CancelURL:         stripego.String(p.cancelURL),
		ClientReferenceID: stripego.String(req.Metadata[payment.MetaOrderID]),
		LineItems: []*stripego.CheckoutSessionLineItemParams{{
			PriceData: &stripego.CheckoutSessionLineItemPriceDataParams{
				Currency: stripego.String(strings.ToLower(req.Currency)),
				ProductData: &stripego.CheckoutSessionLineItemPriceDataProductDataParams{
					Name:        stripego.String(req.Name),
					Description: stripego.String(req.Description),
				},
				UnitAmount: stripego.Int64(req.Amount),
			},
			Quantity: stripego.Int64(1),
		}},
	}
	if req.CustomerEmail != "" {
		params.CustomerEmail = stripego.String(req.CustomerEmail)
	}
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}
	params.Context = ctx
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}

	s, err := p.api.CheckoutSessions.New(params)
	if err != nil {
		return payment.Session{}, fmt.Errorf("create checkout session: %w", err)
	}
	return payment.Session{ID: s.ID, URL: s.URL}, nil
}

func (p *Provider) ExpireSession(ctx context.Context, sessionID string) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	params := &stripego.CheckoutSessionExpireParams{}
	params.Context = ctx
	if _, err := p.api.CheckoutSessions.Expire(sessionID, params); err != nil {
		return fmt.Errorf("expire checkout session %s: %w", sessionID, err)
	}
	return nil
}

func (p *Provider) VerifyAndParse(payload []byte, signature string) (payment.Event, error) {
	ev, err := webhook.ConstructEventWithOptions(payload, signature, p.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return payment.Event{}, fmt.Errorf("%w: %w", domain.ErrInvalidSignature, err)
	}

	out := payment.Event{ID: ev.ID, Type: string(ev.Type)}
	if !out.IsSessionEvent() || ev.Data == nil {
		return out, nil
	}
	var session stripego.CheckoutSession
	if err := json.Unmarshal(ev.Data.Raw, &session); err != nil {
		return payment.Event{}, fmt.Errorf("%w: decode checkout session: %w", domain.ErrInvalidInput, err)
	}
	out.SessionID = session.ID
	out.PaymentStatus = string(session.PaymentStatus)
	out.Metadata = session.Metadata
	return out, nil
}
