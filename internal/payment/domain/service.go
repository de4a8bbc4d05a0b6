package domain

import (
	"context"
	"errors"
	"strings"
)

var (
	ErrDuplicateEvent   = errors.New("duplicate_event")
	ErrAlreadyProcessed = errors.New("event_already_processed")
	ErrMalformedEvent   = errors.New("malformed_event")
)

// EventCategory is the first dotted segment of an event type. Dispatch
// switches over this enum with an explicit default rather than matching raw
// strings.
type EventCategory string

const (
	CategoryAccount       EventCategory = "account"
	CategoryCustomer      EventCategory = "customer"
	CategoryCharge        EventCategory = "charge"
	CategoryPaymentIntent EventCategory = "payment_intent"
	CategoryUnknown       EventCategory = ""
)

// SplitType cuts an event type into its category and subtype on the first
// dot. "account.application.deauthorized" yields category account, subtype
// "application.deauthorized".
func SplitType(eventType string) (EventCategory, string) {
	head, tail, found := strings.Cut(eventType, ".")
	if !found {
		return CategoryUnknown, eventType
	}
	switch EventCategory(head) {
	case CategoryAccount, CategoryCustomer, CategoryCharge, CategoryPaymentIntent:
		return EventCategory(head), tail
	default:
		return CategoryUnknown, tail
	}
}

// HandledTypes is the fixed allow-list. Everything else is recorded but never
// picked up for processing.
var HandledTypes = []string{
	"account.updated",
	"account.application.deauthorized",
	"customer.subscription.created",
	"customer.subscription.updated",
	"customer.subscription.deleted",
	"charge.succeeded",
	"charge.failed",
	"charge.refunded",
	"payment_intent.payment_failed",
}

func IsHandledType(eventType string) bool {
	for _, t := range HandledTypes {
		if t == eventType {
			return true
		}
	}
	return false
}

type Service interface {
	// Record stores a raw webhook delivery. A redelivered provider event id
	// returns ErrDuplicateEvent; callers treat that as already recorded.
	Record(ctx context.Context, raw []byte) (Event, error)

	FetchUnprocessed(ctx context.Context, limit int) ([]Event, error)

	// Process dispatches one event to its reducer and applies the
	// mark-processed policy on failure.
	Process(ctx context.Context, event *Event) error

	// ProcessBatch pulls up to limit unprocessed events through Process.
	// Returns how many were attempted.
	ProcessBatch(ctx context.Context, limit int) (int, error)
}
