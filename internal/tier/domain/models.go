package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type Cadence string

const (
	CadenceMonth   Cadence = "month"
	CadenceQuarter Cadence = "quarter"
	CadenceYear    Cadence = "year"
	CadenceOnce    Cadence = "once"
)

func (c Cadence) Valid() bool {
	switch c {
	case CadenceMonth, CadenceQuarter, CadenceYear, CadenceOnce:
		return true
	default:
		return false
	}
}

// Interval maps a cadence onto the processor's recurring interval. Quarterly
// is a three month interval; one-time has no interval at all.
func (c Cadence) Interval() (string, int64) {
	switch c {
	case CadenceMonth:
		return "month", 1
	case CadenceQuarter:
		return "month", 3
	case CadenceYear:
		return "year", 1
	default:
		return "", 0
	}
}

// Tier is a vendor's sellable offering. Revision is strictly increasing and
// only ever moves through the versioning path in the service.
type Tier struct {
	ID          snowflake.ID `gorm:"primaryKey" json:"id,string"`
	OrgID       snowflake.ID `gorm:"index" json:"org_id,string"`
	Name        string       `gorm:"size:255" json:"name"`
	Description string       `gorm:"type:text" json:"description"`
	Cadence     Cadence      `gorm:"size:16" json:"cadence"`

	PriceCents       int64 `json:"price_cents"`
	AnnualPriceCents int64 `json:"annual_price_cents"`

	Published bool `gorm:"not null;default:false" json:"published"`
	Revision  int  `gorm:"not null;default:1" json:"revision"`

	StripeProductID     *string `gorm:"size:255" json:"-"`
	StripePriceID       *string `gorm:"size:255" json:"-"`
	StripeAnnualPriceID *string `gorm:"size:255" json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Tier) TableName() string {
	return "tiers"
}

// TierVersion is a frozen snapshot of the price fields as they were at the
// given revision. Subscribers grandfathered on an old revision resolve their
// terms here.
type TierVersion struct {
	ID       snowflake.ID `gorm:"primaryKey" json:"id,string"`
	TierID   snowflake.ID `gorm:"index:idx_tier_versions_tier_revision,unique" json:"tier_id,string"`
	Revision int          `gorm:"index:idx_tier_versions_tier_revision,unique" json:"revision"`

	Cadence          Cadence `gorm:"size:16" json:"cadence"`
	PriceCents       int64   `json:"price_cents"`
	AnnualPriceCents int64   `json:"annual_price_cents"`

	StripePriceID       *string `gorm:"size:255" json:"-"`
	StripeAnnualPriceID *string `gorm:"size:255" json:"-"`

	CreatedAt time.Time `json:"created_at"`
}

func (TierVersion) TableName() string {
	return "tier_versions"
}
