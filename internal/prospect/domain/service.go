package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

var ErrInvalidEmail = errors.New("invalid_email")

type RegisterProspectRequest struct {
	Email  string        `json:"email"`
	Name   string        `json:"name,omitempty"`
	TierID *snowflake.ID `json:"tier_id,string,omitempty"`
}

type Service interface {
	// Register upserts a lead for the org in context.
	Register(ctx context.Context, req RegisterProspectRequest) (Prospect, error)
	ListByOrg(ctx context.Context, orgID snowflake.ID) ([]Prospect, error)
}
