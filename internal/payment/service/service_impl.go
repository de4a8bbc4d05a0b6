package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	chargedomain "github.com/market-dot-dev/studio-sub000/internal/charge/domain"
	"github.com/market-dot-dev/studio-sub000/internal/clock"
	"github.com/market-dot-dev/studio-sub000/internal/config"
	organizationdomain "github.com/market-dot-dev/studio-sub000/internal/organization/domain"
	paymentdomain "github.com/market-dot-dev/studio-sub000/internal/payment/domain"
	subscriptiondomain "github.com/market-dot-dev/studio-sub000/internal/subscription/domain"
	"github.com/market-dot-dev/studio-sub000/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	clock       clock.Clock
	repo        paymentdomain.Repository
	maxAttempts int

	orgs    organizationdomain.Service
	subs    subscriptiondomain.Service
	charges chargedomain.Service
}

type ServiceParam struct {
	fx.In

	DB     *gorm.DB
	Log    *zap.Logger
	GenID  *snowflake.Node
	Clock  clock.Clock
	Repo   paymentdomain.Repository
	Config config.Config

	Orgs    organizationdomain.Service
	Subs    subscriptiondomain.Service
	Charges chargedomain.Service
}

func NewService(p ServiceParam) paymentdomain.Service {
	maxAttempts := p.Config.MaxEventAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("payment.service"),
		genID:       p.GenID,
		clock:       p.Clock,
		repo:        p.Repo,
		maxAttempts: maxAttempts,

		orgs:    p.Orgs,
		subs:    p.Subs,
		charges: p.Charges,
	}
}

// envelope is the slice of the webhook body the inbox needs.
type envelope struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Account string `json:"account"`
}

func (s *Service) Record(ctx context.Context, raw []byte) (paymentdomain.Event, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return paymentdomain.Event{}, paymentdomain.ErrMalformedEvent
	}
	if env.ID == "" || env.Type == "" {
		return paymentdomain.Event{}, paymentdomain.ErrMalformedEvent
	}

	now := s.clock.Now()
	event := paymentdomain.Event{
		ID:              s.genID.Generate(),
		ProviderEventID: env.ID,
		Type:            env.Type,
		Account:         env.Account,
		Payload:         raw,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.repo.Insert(ctx, s.db, &event); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return paymentdomain.Event{}, paymentdomain.ErrDuplicateEvent
		}
		return paymentdomain.Event{}, err
	}
	return event, nil
}

func (s *Service) FetchUnprocessed(ctx context.Context, limit int) ([]paymentdomain.Event, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.repo.ListUnprocessed(ctx, s.db, paymentdomain.HandledTypes, limit)
}

// Process dispatches one event. A handler failure records the error and
// bumps the attempt counter; once attempts reach the configured maximum the
// event is marked processed anyway so the inbox cannot wedge on one bad
// delivery.
func (s *Service) Process(ctx context.Context, event *paymentdomain.Event) error {
	if event.Processed {
		return paymentdomain.ErrAlreadyProcessed
	}

	handlerErr := s.dispatch(ctx, event)

	event.Attempts++
	event.UpdatedAt = s.clock.Now()
	if handlerErr != nil {
		event.Error = handlerErr.Error()
		event.Processed = event.Attempts >= s.maxAttempts
		if updateErr := s.repo.Update(ctx, s.db, event); updateErr != nil {
			return updateErr
		}
		s.log.Warn("event handler failed",
			zap.String("provider_event_id", event.ProviderEventID),
			zap.String("type", event.Type),
			zap.Int("attempts", event.Attempts),
			zap.Bool("abandoned", event.Processed),
			zap.Error(handlerErr))
		return handlerErr
	}

	event.Error = ""
	event.Processed = true
	return s.repo.Update(ctx, s.db, event)
}

func (s *Service) ProcessBatch(ctx context.Context, limit int) (int, error) {
	events, err := s.FetchUnprocessed(ctx, limit)
	if err != nil {
		return 0, err
	}
	for i := range events {
		// Handler errors are already recorded on the row; the batch moves on.
		_ = s.Process(ctx, &events[i])
	}
	return len(events), nil
}

func (s *Service) dispatch(ctx context.Context, event *paymentdomain.Event) error {
	category, subtype := paymentdomain.SplitType(event.Type)

	switch category {
	case paymentdomain.CategoryAccount:
		return s.handleAccount(ctx, event, subtype)
	case paymentdomain.CategoryCustomer:
		return s.handleSubscription(ctx, event, subtype)
	case paymentdomain.CategoryCharge:
		return s.handleCharge(ctx, event, subtype)
	case paymentdomain.CategoryPaymentIntent:
		return s.handlePaymentIntent(ctx, event, subtype)
	default:
		// Allow-listed fetch should never hand us one of these; marking it
		// processed keeps the inbox moving if it happens anyway.
		s.log.Info("event with unhandled category",
			zap.String("type", event.Type))
		return nil
	}
}

type accountObject struct {
	ID             string `json:"id"`
	ChargesEnabled bool   `json:"charges_enabled"`
	PayoutsEnabled bool   `json:"payouts_enabled"`
}

func (s *Service) handleAccount(ctx context.Context, event *paymentdomain.Event, subtype string) error {
	switch subtype {
	case "updated":
		var obj accountObject
		if err := unmarshalObject(event.Payload, &obj); err != nil {
			return err
		}
		if obj.ID == "" {
			return paymentdomain.ErrMalformedEvent
		}
		return s.orgs.ApplyAccountUpdate(ctx, organizationdomain.AccountUpdate{
			AccountID:      obj.ID,
			ChargesEnabled: obj.ChargesEnabled,
			PayoutsEnabled: obj.PayoutsEnabled,
		})
	case "application.deauthorized":
		if event.Account == "" {
			return paymentdomain.ErrMalformedEvent
		}
		return s.orgs.DisconnectAccount(ctx, event.Account)
	default:
		return nil
	}
}

type subscriptionObject struct {
	ID                string `json:"id"`
	Status            string `json:"status"`
	CancelAtPeriodEnd bool   `json:"cancel_at_period_end"`
	CurrentPeriodEnd  int64  `json:"current_period_end"`
	Items             struct {
		Data []struct {
			CurrentPeriodEnd int64 `json:"current_period_end"`
		} `json:"data"`
	} `json:"items"`
}

// periodEnd prefers the item-level period, which is where current API
// versions put it; old payloads still carry it at the top level.
func (o subscriptionObject) periodEnd() time.Time {
	if len(o.Items.Data) > 0 && o.Items.Data[0].CurrentPeriodEnd > 0 {
		return time.Unix(o.Items.Data[0].CurrentPeriodEnd, 0).UTC()
	}
	if o.CurrentPeriodEnd > 0 {
		return time.Unix(o.CurrentPeriodEnd, 0).UTC()
	}
	return time.Time{}
}

func (s *Service) handleSubscription(ctx context.Context, event *paymentdomain.Event, subtype string) error {
	switch subtype {
	case "subscription.created", "subscription.updated", "subscription.deleted":
	default:
		return nil
	}

	var obj subscriptionObject
	if err := unmarshalObject(event.Payload, &obj); err != nil {
		return err
	}
	if obj.ID == "" {
		return paymentdomain.ErrMalformedEvent
	}

	return s.subs.ApplyExternalUpdate(ctx, subscriptiondomain.ExternalUpdate{
		StripeSubscriptionID: obj.ID,
		Status:               obj.Status,
		CancelAtPeriodEnd:    obj.CancelAtPeriodEnd,
		CurrentPeriodEnd:     obj.periodEnd(),
		Deleted:              subtype == "subscription.deleted",
	})
}

type chargeObject struct {
	ID             string `json:"id"`
	PaymentIntent  string `json:"payment_intent"`
	Status         string `json:"status"`
	Refunded       bool   `json:"refunded"`
	FailureMessage string `json:"failure_message"`
}

func (s *Service) handleCharge(ctx context.Context, event *paymentdomain.Event, subtype string) error {
	var obj chargeObject
	if err := unmarshalObject(event.Payload, &obj); err != nil {
		return err
	}

	status := obj.Status
	if subtype == "refunded" || obj.Refunded {
		status = "refunded"
	}
	return s.charges.ApplyExternalUpdate(ctx, chargedomain.ExternalUpdate{
		PaymentIntentID: obj.PaymentIntent,
		Status:          status,
		Error:           obj.FailureMessage,
	})
}

type paymentIntentObject struct {
	ID               string `json:"id"`
	LastPaymentError struct {
		Message string `json:"message"`
	} `json:"last_payment_error"`
}

func (s *Service) handlePaymentIntent(ctx context.Context, event *paymentdomain.Event, subtype string) error {
	if subtype != "payment_failed" {
		return nil
	}

	var obj paymentIntentObject
	if err := unmarshalObject(event.Payload, &obj); err != nil {
		return err
	}
	return s.charges.ApplyExternalUpdate(ctx, chargedomain.ExternalUpdate{
		PaymentIntentID: obj.ID,
		Status:          "failed",
		Error:           obj.LastPaymentError.Message,
	})
}

// unmarshalObject digs data.object out of the stored envelope.
func unmarshalObject(payload []byte, out any) error {
	var env struct {
		Data struct {
			Object json.RawMessage `json:"object"`
		} `json:"data"`
	}
	if err := json.Unmarshal(payload, &env); err != nil {
		return fmt.Errorf("%w: %v", paymentdomain.ErrMalformedEvent, err)
	}
	if len(env.Data.Object) == 0 {
		return paymentdomain.ErrMalformedEvent
	}
	if err := json.Unmarshal(env.Data.Object, out); err != nil {
		return fmt.Errorf("%w: %v", paymentdomain.ErrMalformedEvent, err)
	}
	return nil
}
