package service

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/market-dot-dev/studio-sub000/internal/clock"
	organizationdomain "github.com/market-dot-dev/studio-sub000/internal/organization/domain"
	"github.com/market-dot-dev/studio-sub000/internal/orgcontext"
	prospectdomain "github.com/market-dot-dev/studio-sub000/internal/prospect/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
}

type ServiceParam struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
}

func NewService(p ServiceParam) prospectdomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("prospect.service"),
		genID: p.GenID,
		clock: p.Clock,
	}
}

func (s *Service) Register(ctx context.Context, req prospectdomain.RegisterProspectRequest) (prospectdomain.Prospect, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return prospectdomain.Prospect{}, organizationdomain.ErrOrganizationNotFound
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || !strings.Contains(email, "@") {
		return prospectdomain.Prospect{}, prospectdomain.ErrInvalidEmail
	}

	now := s.clock.Now()

	var existing prospectdomain.Prospect
	err := s.db.WithContext(ctx).
		Where("org_id = ? AND email = ?", orgID, email).
		First(&existing).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return prospectdomain.Prospect{}, err
	}

	if err == nil {
		if strings.TrimSpace(req.Name) != "" {
			existing.Name = strings.TrimSpace(req.Name)
		}
		if req.TierID != nil {
			existing.TierID = req.TierID
		}
		existing.UpdatedAt = now
		if err := s.db.WithContext(ctx).Save(&existing).Error; err != nil {
			return prospectdomain.Prospect{}, err
		}
		return existing, nil
	}

	prospect := prospectdomain.Prospect{
		ID:        s.genID.Generate(),
		OrgID:     orgID,
		Email:     email,
		Name:      strings.TrimSpace(req.Name),
		TierID:    req.TierID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.db.WithContext(ctx).Create(&prospect).Error; err != nil {
		return prospectdomain.Prospect{}, err
	}
	return prospect, nil
}

func (s *Service) ListByOrg(ctx context.Context, orgID snowflake.ID) ([]prospectdomain.Prospect, error) {
	var prospects []prospectdomain.Prospect
	err := s.db.WithContext(ctx).
		Where("org_id = ?", orgID).
		Order("created_at DESC").
		Find(&prospects).Error
	return prospects, err
}
