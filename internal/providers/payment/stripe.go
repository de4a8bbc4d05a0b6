package payment

import (
	"context"
	"fmt"
	"time"

	"github.com/market-dot-dev/studio-sub000/internal/config"
	"github.com/stripe/stripe-go/v82"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type stripeClient struct {
	sc  *stripe.Client
	log *zap.Logger
}

type ClientParam struct {
	fx.In

	Config config.Config
	Log    *zap.Logger
}

func NewStripeClient(p ClientParam) ProcessorClient {
	return &stripeClient{
		sc:  stripe.NewClient(p.Config.StripeSecretKey, nil),
		log: p.Log.Named("payment.stripe"),
	}
}

func (c *stripeClient) CreateCustomer(ctx context.Context, account, email, name string) (string, error) {
	params := &stripe.CustomerCreateParams{
		Email: stripe.String(email),
		Name:  stripe.String(name),
	}
	params.SetStripeAccount(account)

	customer, err := c.sc.V1Customers.Create(ctx, params)
	if err != nil {
		return "", fmt.Errorf("create customer: %w", err)
	}
	return customer.ID, nil
}

func (c *stripeClient) CreateProduct(ctx context.Context, account, name string) (string, error) {
	params := &stripe.ProductCreateParams{
		Name: stripe.String(name),
	}
	params.SetStripeAccount(account)

	product, err := c.sc.V1Products.Create(ctx, params)
	if err != nil {
		return "", fmt.Errorf("create product: %w", err)
	}
	return product.ID, nil
}

func (c *stripeClient) CreatePrice(ctx context.Context, account string, req PriceRequest) (string, error) {
	params := &stripe.PriceCreateParams{
		Product:    stripe.String(req.ProductID),
		UnitAmount: stripe.Int64(req.AmountCents),
		Currency:   stripe.String(req.Currency),
	}
	if req.Interval != "" {
		params.Recurring = &stripe.PriceCreateRecurringParams{
			Interval:      stripe.String(req.Interval),
			IntervalCount: stripe.Int64(req.IntervalCount),
		}
	}
	params.SetStripeAccount(account)

	price, err := c.sc.V1Prices.Create(ctx, params)
	if err != nil {
		return "", fmt.Errorf("create price: %w", err)
	}
	return price.ID, nil
}

func (c *stripeClient) DeactivatePrice(ctx context.Context, account, priceID string) error {
	params := &stripe.PriceUpdateParams{
		Active: stripe.Bool(false),
	}
	params.SetStripeAccount(account)

	if _, err := c.sc.V1Prices.Update(ctx, priceID, params); err != nil {
		return fmt.Errorf("deactivate price %s: %w", priceID, err)
	}
	return nil
}

func (c *stripeClient) CreateSubscription(ctx context.Context, account, customerID, priceID string) (SubscriptionInfo, error) {
	params := &stripe.SubscriptionCreateParams{
		Customer: stripe.String(customerID),
		Items: []*stripe.SubscriptionCreateItemParams{
			{Price: stripe.String(priceID)},
		},
	}
	params.SetStripeAccount(account)

	sub, err := c.sc.V1Subscriptions.Create(ctx, params)
	if err != nil {
		return SubscriptionInfo{}, fmt.Errorf("create subscription: %w", err)
	}
	return toSubscriptionInfo(sub), nil
}

func (c *stripeClient) CancelAtPeriodEnd(ctx context.Context, account, subscriptionID string) (SubscriptionInfo, error) {
	params := &stripe.SubscriptionUpdateParams{
		CancelAtPeriodEnd: stripe.Bool(true),
	}
	params.SetStripeAccount(account)

	sub, err := c.sc.V1Subscriptions.Update(ctx, subscriptionID, params)
	if err != nil {
		return SubscriptionInfo{}, fmt.Errorf("cancel subscription %s: %w", subscriptionID, err)
	}
	return toSubscriptionInfo(sub), nil
}

func (c *stripeClient) RemoveCancellation(ctx context.Context, account, subscriptionID string) error {
	params := &stripe.SubscriptionUpdateParams{
		CancelAtPeriodEnd: stripe.Bool(false),
	}
	params.SetStripeAccount(account)

	if _, err := c.sc.V1Subscriptions.Update(ctx, subscriptionID, params); err != nil {
		return fmt.Errorf("resume subscription %s: %w", subscriptionID, err)
	}
	return nil
}

func (c *stripeClient) CreatePaymentIntent(ctx context.Context, account, customerID string, amountCents int64, currency string) (string, error) {
	params := &stripe.PaymentIntentCreateParams{
		Customer: stripe.String(customerID),
		Amount:   stripe.Int64(amountCents),
		Currency: stripe.String(currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentCreateAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.SetStripeAccount(account)

	intent, err := c.sc.V1PaymentIntents.Create(ctx, params)
	if err != nil {
		return "", fmt.Errorf("create payment intent: %w", err)
	}
	return intent.ID, nil
}

// toSubscriptionInfo reads the current period end from the first item; the
// subscription object itself no longer carries it.
func toSubscriptionInfo(sub *stripe.Subscription) SubscriptionInfo {
	info := SubscriptionInfo{
		ID:                sub.ID,
		Status:            string(sub.Status),
		CancelAtPeriodEnd: sub.CancelAtPeriodEnd,
	}
	if sub.Items != nil && len(sub.Items.Data) > 0 {
		if end := sub.Items.Data[0].CurrentPeriodEnd; end > 0 {
			info.CurrentPeriodEnd = time.Unix(end, 0).UTC()
		}
	}
	return info
}

var Module = fx.Module("payment.provider",
	fx.Provide(NewStripeClient),
)
