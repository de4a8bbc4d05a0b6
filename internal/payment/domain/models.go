package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Event is a durable inbox row for a processor webhook delivery. The unique
// provider event id is what makes redelivery harmless.
type Event struct {
	ID              snowflake.ID   `gorm:"primaryKey" json:"id,string"`
	ProviderEventID string         `gorm:"uniqueIndex;size:255" json:"provider_event_id"`
	Type            string         `gorm:"index;size:128" json:"type"`
	Account         string         `gorm:"size:255" json:"account,omitempty"`
	Payload         datatypes.JSON `json:"payload"`

	Processed bool   `gorm:"index;not null;default:false" json:"processed"`
	Error     string `gorm:"type:text" json:"error,omitempty"`
	Attempts  int    `gorm:"not null;default:0" json:"attempts"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Event) TableName() string {
	return "payment_events"
}
