package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Prospect is a lead captured on a vendor's page. One row per (email, org);
// repeat registrations refresh the existing row.
type Prospect struct {
	ID     snowflake.ID  `gorm:"primaryKey" json:"id,string"`
	OrgID  snowflake.ID  `gorm:"index:idx_prospects_email_org,unique" json:"org_id,string"`
	Email  string        `gorm:"index:idx_prospects_email_org,unique;size:255" json:"email"`
	Name   string        `gorm:"size:255" json:"name,omitempty"`
	TierID *snowflake.ID `gorm:"index" json:"tier_id,string,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Prospect) TableName() string {
	return "prospects"
}
