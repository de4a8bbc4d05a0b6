package notification

import (
	"context"
	"fmt"

	"github.com/market-dot-dev/studio-sub000/internal/providers/email"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Notifier wraps the mail provider with the messages this service sends.
// Delivery is best effort: failures are logged, never returned, so a mail
// outage cannot fail the business operation that triggered it.
type Notifier struct {
	provider email.Provider
	log      *zap.Logger
}

type NotifierParam struct {
	fx.In

	Provider email.Provider
	Log      *zap.Logger
}

func NewNotifier(p NotifierParam) *Notifier {
	return &Notifier{
		provider: p.Provider,
		log:      p.Log.Named("notification"),
	}
}

func (n *Notifier) MemberInvited(ctx context.Context, to, orgName string) {
	n.send(ctx, email.Message{
		To:      to,
		Subject: fmt.Sprintf("You have been invited to %s", orgName),
		Body: fmt.Sprintf("You have been invited to join %s. Sign in to accept the invitation.",
			orgName),
	})
}

// SubscriptionCancelled goes to the vendor owner when a customer cancels.
func (n *Notifier) SubscriptionCancelled(ctx context.Context, to, tierName, customerName string) {
	n.send(ctx, email.Message{
		To:      to,
		Subject: fmt.Sprintf("Subscription to %s cancelled", tierName),
		Body: fmt.Sprintf("%s cancelled their subscription to %s. Access continues until the end of the paid period.",
			customerName, tierName),
	})
}

// CancellationConfirmed goes to the customer who cancelled.
func (n *Notifier) CancellationConfirmed(ctx context.Context, to, tierName string) {
	n.send(ctx, email.Message{
		To:      to,
		Subject: fmt.Sprintf("Your subscription to %s is cancelled", tierName),
		Body: fmt.Sprintf("Your subscription to %s will not renew. You keep access until the end of the current period.",
			tierName),
	})
}

func (n *Notifier) send(ctx context.Context, msg email.Message) {
	if err := n.provider.Send(ctx, msg); err != nil {
		n.log.Warn("email delivery failed",
			zap.String("to", msg.To),
			zap.String("subject", msg.Subject),
			zap.Error(err))
	}
}

var Module = fx.Module("notification",
	fx.Provide(NewNotifier),
)
