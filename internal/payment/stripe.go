package payment

import (
	"context"

	stripe "github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/checkout/session"

	"github.com/davincilab-soft/kity-chatgpt-navigator/internal/config"
)

// CheckoutProvider creates a payment checkout session and returns the URL
// the caller should be redirected to.
type CheckoutProvider interface {
	CreateSession(ctx context.Context, amountCents int64, currency string) (string, error)
	Configured() bool
}

var _ CheckoutProvider = (*StripeCheckout)(nil)

// StripeCheckout implements CheckoutProvider on Stripe checkout sessions.
type StripeCheckout struct {
	secretKey  string
	successURL string
	cancelURL  string
}

func NewStripeCheckout(cfg config.Config) *StripeCheckout {
	if cfg.StripeSecretKey != "" {
		stripe.Key = cfg.StripeSecretKey
	}
	return &StripeCheckout{
		secretKey:  cfg.StripeSecretKey,
		successURL: cfg.StripeSuccessURL,
		cancelURL:  cfg.StripeCancelURL,
	}
}

// Configured reports whether a secret key is present. Callers answer 503
// instead of invoking an unconfigured provider.
func (s *StripeCheckout) Configured() bool {
	return s.secretKey != ""
}

func (s *StripeCheckout) CreateSession(ctx context.Context, amountCents int64, currency string) (string, error) {
	params := &stripe.CheckoutSessionParams{
		Params: stripe.Params{Context: ctx},
		Mode:   stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency: stripe.String(currency),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String("Kity Support"),
					},
					UnitAmount: stripe.Int64(amountCents),
				},
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(s.successURL),
		CancelURL:  stripe.String(s.cancelURL),
	}

	sess, err := session.New(params)
	if err != nil {
		return "", err
	}
	return sess.URL, nil
}
