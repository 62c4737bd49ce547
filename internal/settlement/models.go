package settlement

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// PayoutDiscrepancy records real money owed: a trade whose status flipped
// to win but whose ledger credit failed. Resolution is never re-run for
// these; only the credit may be retried, by an operator, through the
// ledger's idempotent path.
type PayoutDiscrepancy struct {
	gorm.Model `json:"-"`
	TradeID    string          `gorm:"uniqueIndex" json:"trade_id"`
	UserID     string          `json:"user_id"`
	AmountOwed decimal.Decimal `gorm:"type:decimal(20,8)" json:"amount_owed"`
	Reason     string          `json:"reason"`
	ResolvedAt *time.Time      `json:"resolved_at"`
}

// TradeResult is the per-trade record accumulated over a batch.
type TradeResult struct {
	TradeID  string `json:"trade_id"`
	Success  bool   `json:"success"`
	Resolved bool   `json:"resolved"` // false when another process won the race
	Result   string `json:"result,omitempty"`
	Error    string `json:"error,omitempty"`
}

// BatchSummary is the structured outcome of one scheduler sweep. Processed
// counts trades this sweep actually resolved; candidates lost to a
// concurrent resolver land in Skipped instead.
type BatchSummary struct {
	Processed int           `json:"processed"`
	Skipped   int           `json:"skipped,omitempty"`
	Results   []TradeResult `json:"results"`
}
