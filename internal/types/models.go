package types

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Trade lifecycle states. A trade starts pending and ends win or lose;
// there is no other terminal state.
const (
	TradeStatusPending = "pending"
	TradeStatusWin     = "win"
	TradeStatusLose    = "lose"
)

// Decision values. An empty decision means no admin has ruled on the trade.
const (
	DecisionUnset = ""
	DecisionWin   = "win"
	DecisionLose  = "lose"
)

// Trade directions.
const (
	DirectionUp   = "up"
	DirectionDown = "down"
)

// Trade is a single speculative position owned by an end user. The trading
// subsystem creates it in pending state; this service only mutates it during
// decision recording and settlement, always through conditional updates
// guarded by the current status.
type Trade struct {
	gorm.Model  `json:"-"`
	TradeID     string          `gorm:"uniqueIndex" json:"trade_id"`
	UserID      string          `gorm:"index" json:"user_id"`
	Symbol      string          `json:"symbol"`
	Direction   string          `json:"direction"` // up or down
	StakeAmount decimal.Decimal `gorm:"type:decimal(20,8)" json:"stake_amount"`
	Leverage    int             `json:"leverage"`
	EntryPrice  decimal.Decimal `gorm:"type:decimal(20,8)" json:"entry_price"`
	ProfitRate  decimal.Decimal `gorm:"type:decimal(10,4)" json:"profit_rate"` // percentage, 30 means 30%

	Status          string     `gorm:"index" json:"status"`   // pending, win, lose
	Decision        string     `json:"decision"`              // "", win, lose
	PreviousStatus  string     `json:"previous_status"`       // status at decision time
	ExecuteAt       *time.Time `gorm:"index" json:"execute_at"`
	ModifiedByAdmin bool       `json:"modified_by_admin"`

	Result           string          `json:"result"` // mirrors status once resolved
	ProfitLossAmount decimal.Decimal `gorm:"type:decimal(20,8)" json:"profit_loss_amount"`
	CompletedAt      *time.Time      `json:"completed_at"`
}

// Position is the open-position row kept by the trading subsystem, one per
// active trade. Settlement deletes it best-effort once the trade resolves;
// a failed delete never blocks the financial resolution.
type Position struct {
	gorm.Model  `json:"-"`
	TradeID     string          `gorm:"uniqueIndex" json:"trade_id"`
	UserID      string          `gorm:"index" json:"user_id"`
	Symbol      string          `json:"symbol"`
	Direction   string          `json:"direction"`
	StakeAmount decimal.Decimal `gorm:"type:decimal(20,8)" json:"stake_amount"`
	EntryPrice  decimal.Decimal `gorm:"type:decimal(20,8)" json:"entry_price"`
}

// User is an end user of the platform. The account itself is owned by the
// registration subsystem; this service reads the invitation lineage and
// mutates the balance through the ledger only.
type User struct {
	gorm.Model `json:"-"`
	UserID     string          `gorm:"uniqueIndex" json:"user_id"`
	Email      string          `json:"email"`
	Balance    decimal.Decimal `gorm:"type:decimal(20,8)" json:"balance"`
	// InviteCodeID is the invitation code redeemed at registration, empty
	// for users who registered without one.
	InviteCodeID string `gorm:"index" json:"invite_code_id"`
}

// Clock supplies the current time. The scheduler and the decision service
// take one explicitly so "trade becomes due" is testable without sleeping.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock returns a Clock backed by time.Now.
func SystemClock() Clock { return systemClock{} }
