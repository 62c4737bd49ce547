package migrations

import (
	"gorm.io/gorm"
)

// AddSettlementIndexes creates the indexes the settlement sweep and the
// ledger idempotency guarantee depend on.
func AddSettlementIndexes(db *gorm.DB) error {
	// Using raw SQL for index creation to have more control over index types
	indexes := []string{
		// Composite index for the due-trade scan (status = pending AND
		// execute_at <= now)
		`CREATE INDEX IF NOT EXISTS idx_trades_due
		 ON trades(status, execute_at)`,

		// Invitation lineage lookup: codes by creator
		`CREATE INDEX IF NOT EXISTS idx_invite_codes_created_by
		 ON invite_codes(created_by)`,

		// One payout per trade and transaction type. AutoMigrate creates
		// this from the model tag too; kept explicit because real money
		// depends on it existing.
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_trade_tx_type
		 ON balance_transactions(transaction_type, trade_id)`,
	}

	// Execute each index creation
	for _, idx := range indexes {
		if err := db.Exec(idx).Error; err != nil {
			return err
		}
	}

	return nil
}
