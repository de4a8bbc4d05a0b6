package payment

import (
	"context"
	"time"
)

// ProcessorClient is the thin surface this service needs from the payment
// processor. Every call runs against a vendor's connected account; business
// rules stay in the domain services, the client only moves data.
type ProcessorClient interface {
	CreateCustomer(ctx context.Context, account, email, name string) (string, error)

	CreateProduct(ctx context.Context, account, name string) (string, error)
	CreatePrice(ctx context.Context, account string, req PriceRequest) (string, error)
	DeactivatePrice(ctx context.Context, account, priceID string) error

	CreateSubscription(ctx context.Context, account, customerID, priceID string) (SubscriptionInfo, error)
	CancelAtPeriodEnd(ctx context.Context, account, subscriptionID string) (SubscriptionInfo, error)
	RemoveCancellation(ctx context.Context, account, subscriptionID string) error

	CreatePaymentIntent(ctx context.Context, account, customerID string, amountCents int64, currency string) (string, error)
}

// PriceRequest describes a recurring price. Quarterly cadence is expressed as
// a three month interval.
type PriceRequest struct {
	ProductID     string
	AmountCents   int64
	Currency      string
	Interval      string
	IntervalCount int64
}

// SubscriptionInfo is the slice of the processor's subscription object the
// lifecycle reducers consume.
type SubscriptionInfo struct {
	ID                string
	Status            string
	CancelAtPeriodEnd bool
	CurrentPeriodEnd  time.Time
}
