package trade

import (
	"errors"
	"time"

	"github.com/margindesk/admin-api/internal/types"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ErrNotPending means the conditional write matched zero rows: the trade is
// missing, already resolved, or already decided. Races collapse into this
// one error on purpose; a concurrent winner leaves nothing to update.
var ErrNotPending = errors.New("trade is not pending or already decided")

type Database struct {
	db *gorm.DB
}

func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

func (d *Database) CreateTrade(trade *types.Trade) error {
	return d.db.Create(trade).Error
}

func (d *Database) GetTrade(tradeID string) (*types.Trade, error) {
	var trade types.Trade
	if err := d.db.Where("trade_id = ?", tradeID).First(&trade).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &trade, nil
}

// SetDecision records an admin decision on a pending, undecided trade in a
// single conditional update. execute_at is only written when still unset;
// once armed it never moves. Zero rows affected surfaces as ErrNotPending.
func (d *Database) SetDecision(tradeID, decision string, executeAt time.Time) (*types.Trade, error) {
	result := d.db.Model(&types.Trade{}).
		Where("trade_id = ? AND status = ? AND (decision IS NULL OR decision = '')",
			tradeID, types.TradeStatusPending).
		Updates(map[string]interface{}{
			"decision":          decision,
			"previous_status":   gorm.Expr("status"),
			"modified_by_admin": true,
			"execute_at":        gorm.Expr("COALESCE(execute_at, ?)", executeAt),
		})
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, ErrNotPending
	}

	var trade types.Trade
	if err := d.db.Where("trade_id = ?", tradeID).First(&trade).Error; err != nil {
		return nil, err
	}
	return &trade, nil
}

// MarkResolved flips a pending trade to its final state. The guard matches
// the pending status and the decision the caller observed, so a concurrent
// resolver loses the race and sees false, and a decision committed after
// the caller's read makes the write miss instead of burying that decision
// under a stale default.
func (d *Database) MarkResolved(tradeID, observedDecision, result string, profitLoss decimal.Decimal, completedAt time.Time) (bool, error) {
	query := d.db.Model(&types.Trade{}).
		Where("trade_id = ? AND status = ?", tradeID, types.TradeStatusPending)
	if observedDecision == types.DecisionUnset {
		query = query.Where("decision IS NULL OR decision = ''")
	} else {
		query = query.Where("decision = ?", observedDecision)
	}

	res := query.
		Updates(map[string]interface{}{
			"status":             result,
			"result":             result,
			"profit_loss_amount": profitLoss,
			"completed_at":       completedAt,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// GetDueTrades returns pending trades whose execution timer has elapsed.
func (d *Database) GetDueTrades(now time.Time) ([]types.Trade, error) {
	var trades []types.Trade
	err := d.db.
		Where("status = ? AND execute_at IS NOT NULL AND execute_at <= ?",
			types.TradeStatusPending, now).
		Order("execute_at ASC").
		Find(&trades).Error
	if err != nil {
		return nil, err
	}
	return trades, nil
}

func (d *Database) GetPendingTrades() ([]types.Trade, error) {
	var trades []types.Trade
	err := d.db.
		Where("status = ?", types.TradeStatusPending).
		Order("created_at DESC").
		Find(&trades).Error
	if err != nil {
		return nil, err
	}
	return trades, nil
}

func (d *Database) GetPendingTradesByUsers(userIDs []string) ([]types.Trade, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	var trades []types.Trade
	err := d.db.
		Where("status = ? AND user_id IN ?", types.TradeStatusPending, userIDs).
		Order("created_at DESC").
		Find(&trades).Error
	if err != nil {
		return nil, err
	}
	return trades, nil
}
