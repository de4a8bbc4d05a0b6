package repository

import (
	"context"

	paymentdomain "github.com/market-dot-dev/studio-sub000/internal/payment/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() paymentdomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, event *paymentdomain.Event) error {
	return db.WithContext(ctx).Create(event).Error
}

func (r *repo) ListUnprocessed(ctx context.Context, db *gorm.DB, types []string, limit int) ([]paymentdomain.Event, error) {
	var events []paymentdomain.Event
	err := db.WithContext(ctx).
		Where("processed = ? AND type IN ?", false, types).
		Order("created_at ASC").
		Limit(limit).
		Find(&events).Error
	return events, err
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, event *paymentdomain.Event) error {
	return db.WithContext(ctx).Save(event).Error
}
