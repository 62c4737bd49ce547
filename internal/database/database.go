package database

import (
	"fmt"

	"github.com/margindesk/admin-api/internal/admin"
	"github.com/margindesk/admin-api/internal/database/migrations"
	"github.com/margindesk/admin-api/internal/ledger"
	"github.com/margindesk/admin-api/internal/settlement"
	"github.com/margindesk/admin-api/internal/types"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// NewDatabase initializes and returns a new GORM DB connection
func NewDatabase(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, err
	}

	// Auto-migrate schemas
	err = db.AutoMigrate(
		&types.Trade{},
		&types.Position{},
		&types.User{},
		&admin.Admin{},
		&admin.InviteCode{},
		&ledger.BalanceTransaction{},
		&settlement.PayoutDiscrepancy{},
	)
	if err != nil {
		return nil, err
	}

	if err := migrations.AddSettlementIndexes(db); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return db, nil
}
