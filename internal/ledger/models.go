package ledger

import (
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Transaction types written by this service.
const (
	TxTypeTradePayout = "trade_payout"
)

// BalanceTransaction is the audit row committed atomically with every
// balance mutation. The composite unique index on (trade_id,
// transaction_type) is what makes a retried trade payout a no-op instead of
// a double credit.
type BalanceTransaction struct {
	gorm.Model      `json:"-"`
	TransactionID   string          `gorm:"uniqueIndex" json:"transaction_id"`
	UserID          string          `gorm:"index" json:"user_id"`
	Amount          decimal.Decimal `gorm:"type:decimal(20,8)" json:"amount"` // signed
	TransactionType string          `gorm:"uniqueIndex:idx_trade_tx_type" json:"transaction_type"`
	Description     string          `json:"description"`
	TradeID         *string         `gorm:"uniqueIndex:idx_trade_tx_type" json:"trade_id,omitempty"`
}
