package domain

import (
	"context"

	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, event *Event) error
	ListUnprocessed(ctx context.Context, db *gorm.DB, types []string, limit int) ([]Event, error)
	Update(ctx context.Context, db *gorm.DB, event *Event) error
}
