package migration

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	authdomain "github.com/market-dot-dev/studio-sub000/internal/auth/domain"
	chargedomain "github.com/market-dot-dev/studio-sub000/internal/charge/domain"
	organizationdomain "github.com/market-dot-dev/studio-sub000/internal/organization/domain"
	paymentdomain "github.com/market-dot-dev/studio-sub000/internal/payment/domain"
	prospectdomain "github.com/market-dot-dev/studio-sub000/internal/prospect/domain"
	subscriptiondomain "github.com/market-dot-dev/studio-sub000/internal/subscription/domain"
	tierdomain "github.com/market-dot-dev/studio-sub000/internal/tier/domain"
	"gorm.io/gorm"
)

//go:embed sql/*.sql
var embeddedMigrations embed.FS

const migrationsDir = "sql"

// RunMigrations applies the embedded SQL against postgres.
func RunMigrations(db *sql.DB) error {
	if db == nil {
		return errors.New("migration database handle is required")
	}

	sub, err := fs.Sub(embeddedMigrations, migrationsDir)
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}

	source, err := iofs.New(sub, ".")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}

	migrator, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	upErr := migrator.Up()
	if upErr != nil && !errors.Is(upErr, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", upErr)
	}
	// Do not close the migrator; it would close the shared *sql.DB.

	return nil
}

// AutoMigrate covers the non-postgres dialects used for local development and
// tests, where the SQL migration files do not apply.
func AutoMigrate(conn *gorm.DB) error {
	return conn.AutoMigrate(
		&authdomain.User{},
		&authdomain.Session{},
		&organizationdomain.Organization{},
		&organizationdomain.OrganizationMember{},
		&organizationdomain.OrganizationInvite{},
		&tierdomain.Tier{},
		&tierdomain.TierVersion{},
		&subscriptiondomain.Subscription{},
		&chargedomain.Charge{},
		&prospectdomain.Prospect{},
		&paymentdomain.Event{},
	)
}
