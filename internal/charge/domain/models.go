package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// ChargeStatus mirrors the processor's status string verbatim; the reducer
// applies the latest observed value without interpreting it.
type Charge struct {
	ID           snowflake.ID `gorm:"primaryKey" json:"id,string"`
	OrgID        snowflake.ID `gorm:"index" json:"org_id,string"`
	TierID       snowflake.ID `gorm:"index" json:"tier_id,string"`
	TierRevision int          `gorm:"not null;default:1" json:"tier_revision"`

	AmountCents int64  `json:"amount_cents"`
	Currency    string `gorm:"size:8" json:"currency"`

	StripePaymentIntentID *string `gorm:"index;size:255" json:"-"`
	StripeStatus          string  `gorm:"size:64" json:"stripe_status"`
	Error                 string  `gorm:"type:text" json:"error,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Charge) TableName() string {
	return "charges"
}
