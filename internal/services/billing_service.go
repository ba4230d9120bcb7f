package services

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/checkout/session"
	"github.com/stripe/stripe-go/v79/webhook"
)

// creditUnitAmountCents is the checkout price per purchased credit.
const creditUnitAmountCents int64 = 50

// BillingService sells quota top-ups for credit-metered providers. A
// completed checkout adds the purchased credits to the provider's
// quota ceiling.
type BillingService struct {
	store         ProviderStore
	webhookSecret string
	successURL    string
	cancelURL     string
	log           zerolog.Logger
}

func NewBillingService(store ProviderStore, secretKey, webhookSecret, successURL, cancelURL string, log zerolog.Logger) *BillingService {
	stripe.Key = secretKey
	return &BillingService{
		store:         store,
		webhookSecret: webhookSecret,
		successURL:    successURL,
		cancelURL:     cancelURL,
		log:           log,
	}
}

// CreateTopUpSession opens a Stripe checkout for adding credits to one
// provider. The provider must exist and be credit-metered; request-metered
// and unconstrained providers have nothing to top up.
func (s *BillingService) CreateTopUpSession(userID uuid.UUID, providerName string, credits int64) (*stripe.CheckoutSession, error) {
	if credits <= 0 {
		return nil, fmt.Errorf("credit amount must be positive")
	}
	provider, err := s.store.GetByName(providerName)
	if err != nil {
		return nil, fmt.Errorf("unknown provider %s: %w", providerName, err)
	}
	if provider.Unconstrained || provider.QuotaCredits == nil {
		return nil, fmt.Errorf("provider %s is not credit metered", providerName)
	}

	params := &stripe.CheckoutSessionParams{
		PaymentMethodTypes: stripe.StringSlice([]string{
			"card",
		}),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency: stripe.String("usd"),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(fmt.Sprintf("%d generation credits (%s)", credits, provider.DisplayName)),
					},
					UnitAmount: stripe.Int64(credits * creditUnitAmountCents),
				},
				Quantity: stripe.Int64(1),
			},
		},
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(s.successURL),
		CancelURL:         stripe.String(s.cancelURL),
		ClientReferenceID: stripe.String(userID.String()),
		Metadata: map[string]string{
			"provider": provider.Name,
			"credits":  strconv.FormatInt(credits, 10),
		},
	}

	return session.New(params)
}

// HandleWebhook verifies and applies a Stripe event. Only completed
// checkout sessions mutate quota state; everything else is acknowledged
// and ignored.
func (s *BillingService) HandleWebhook(payload []byte, signatureHeader string) error {
	event, err := webhook.ConstructEvent(payload, signatureHeader, s.webhookSecret)
	if err != nil {
		return fmt.Errorf("webhook signature verification failed: %w", err)
	}

	if event.Type != "checkout.session.completed" {
		return nil
	}

	var checkout stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &checkout); err != nil {
		return fmt.Errorf("failed to parse checkout session: %w", err)
	}

	providerName := checkout.Metadata["provider"]
	credits, err := strconv.ParseInt(checkout.Metadata["credits"], 10, 64)
	if err != nil || providerName == "" || credits <= 0 {
		return fmt.Errorf("checkout session %s carries invalid top-up metadata", checkout.ID)
	}

	if err := s.store.AddCredits(providerName, credits); err != nil {
		return fmt.Errorf("failed to apply credit top-up for %s: %w", providerName, err)
	}
	s.log.Info().
		Str("provider", providerName).
		Int64("credits", credits).
		Str("user", checkout.ClientReferenceID).
		Msg("quota top-up applied")
	return nil
}
