package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	authdomain "github.com/market-dot-dev/studio-sub000/internal/auth/domain"
	"github.com/market-dot-dev/studio-sub000/internal/clock"
	"github.com/market-dot-dev/studio-sub000/internal/config"
	"github.com/market-dot-dev/studio-sub000/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	sessionTTL time.Duration
}

type ServiceParam struct {
	fx.In

	DB     *gorm.DB
	Log    *zap.Logger
	GenID  *snowflake.Node
	Clock  clock.Clock
	Config config.Config
}

func NewService(p ServiceParam) authdomain.Service {
	ttl := time.Duration(p.Config.SessionTTLHours) * time.Hour
	if ttl <= 0 {
		ttl = 72 * time.Hour
	}
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("auth.service"),
		genID:      p.GenID,
		clock:      p.Clock,
		sessionTTL: ttl,
	}
}

func (s *Service) Register(ctx context.Context, req authdomain.RegisterRequest) (authdomain.User, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || len(req.Password) < 8 {
		return authdomain.User{}, authdomain.ErrInvalidCredentials
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return authdomain.User{}, err
	}

	now := s.clock.Now()
	user := authdomain.User{
		ID:           s.genID.Generate(),
		Email:        email,
		Name:         strings.TrimSpace(req.Name),
		PasswordHash: string(hash),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		if db.IsDuplicateKeyErr(err) {
			return authdomain.User{}, authdomain.ErrEmailTaken
		}
		return authdomain.User{}, err
	}

	return user, nil
}

func (s *Service) Login(ctx context.Context, req authdomain.LoginRequest) (authdomain.Session, authdomain.User, error) {
	user, err := s.GetUserByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, authdomain.ErrUserNotFound) {
			return authdomain.Session{}, authdomain.User{}, authdomain.ErrInvalidCredentials
		}
		return authdomain.Session{}, authdomain.User{}, err
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		return authdomain.Session{}, authdomain.User{}, authdomain.ErrInvalidCredentials
	}

	token, err := newToken()
	if err != nil {
		return authdomain.Session{}, authdomain.User{}, err
	}

	now := s.clock.Now()
	session := authdomain.Session{
		ID:        s.genID.Generate(),
		UserID:    user.ID,
		Token:     token,
		ExpiresAt: now.Add(s.sessionTTL),
		CreatedAt: now,
	}
	if err := s.db.WithContext(ctx).Create(&session).Error; err != nil {
		return authdomain.Session{}, authdomain.User{}, err
	}

	return session, user, nil
}

func (s *Service) Logout(ctx context.Context, token string) error {
	return s.db.WithContext(ctx).
		Where("token = ?", token).
		Delete(&authdomain.Session{}).Error
}

func (s *Service) Authenticate(ctx context.Context, token string) (authdomain.User, error) {
	if token == "" {
		return authdomain.User{}, authdomain.ErrSessionExpired
	}

	var session authdomain.Session
	err := s.db.WithContext(ctx).Where("token = ?", token).First(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return authdomain.User{}, authdomain.ErrSessionExpired
	}
	if err != nil {
		return authdomain.User{}, err
	}

	if s.clock.Now().After(session.ExpiresAt) {
		// Lazy expiry: the row is reaped on the next failed lookup.
		_ = s.db.WithContext(ctx).Delete(&session).Error
		return authdomain.User{}, authdomain.ErrSessionExpired
	}

	return s.GetUser(ctx, session.UserID)
}

func (s *Service) GetUser(ctx context.Context, id snowflake.ID) (authdomain.User, error) {
	var user authdomain.User
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return authdomain.User{}, authdomain.ErrUserNotFound
	}
	if err != nil {
		return authdomain.User{}, err
	}
	return user, nil
}

func (s *Service) GetUserByEmail(ctx context.Context, email string) (authdomain.User, error) {
	var user authdomain.User
	err := s.db.WithContext(ctx).
		Where("email = ?", strings.ToLower(strings.TrimSpace(email))).
		First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return authdomain.User{}, authdomain.ErrUserNotFound
	}
	if err != nil {
		return authdomain.User{}, err
	}
	return user, nil
}

func newToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
