package settlement

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/margindesk/admin-api/internal/admin"
	"github.com/margindesk/admin-api/internal/ledger"
	"github.com/margindesk/admin-api/internal/trade"
	"github.com/margindesk/admin-api/internal/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

type fixture struct {
	db        *gorm.DB
	clock     *fakeClock
	trades    *trade.Service
	ledger    *ledger.Service
	scheduler *Scheduler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.New().String())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&types.Trade{},
		&types.Position{},
		&types.User{},
		&admin.Admin{},
		&admin.InviteCode{},
		&ledger.BalanceTransaction{},
		&PayoutDiscrepancy{},
	))

	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	adminDB := admin.NewDatabase(db)
	resolver := admin.NewResolver(adminDB, clock, 30*time.Second)
	gate := admin.NewGate(adminDB, resolver)
	trades := trade.NewService(db, gate, resolver, clock, 3*time.Minute, 5*time.Minute)
	ledgerSvc := ledger.NewService(db)

	return &fixture{
		db:        db,
		clock:     clock,
		trades:    trades,
		ledger:    ledgerSvc,
		scheduler: NewScheduler(trades, NewDatabase(db), ledgerSvc, clock, time.Minute),
	}
}

func (f *fixture) seedUser(t *testing.T, userID string, balance int64) {
	t.Helper()
	require.NoError(t, f.db.Create(&types.User{
		UserID:  userID,
		Balance: decimal.NewFromInt(balance),
	}).Error)
}

// seedDueTrade creates a pending trade whose timer elapsed a minute ago.
func (f *fixture) seedDueTrade(t *testing.T, tradeID, userID, decision string, stake, rate int64) {
	t.Helper()
	executeAt := f.clock.now.Add(-time.Minute)
	require.NoError(t, f.db.Create(&types.Trade{
		TradeID:     tradeID,
		UserID:      userID,
		Symbol:      "BTCUSDT",
		Direction:   types.DirectionUp,
		StakeAmount: decimal.NewFromInt(stake),
		Leverage:    10,
		EntryPrice:  decimal.NewFromInt(50000),
		ProfitRate:  decimal.NewFromInt(rate),
		Status:      types.TradeStatusPending,
		Decision:    decision,
		ExecuteAt:   &executeAt,
	}).Error)
	require.NoError(t, f.db.Create(&types.Position{
		TradeID: tradeID,
		UserID:  userID,
		Symbol:  "BTCUSDT",
	}).Error)
}

func (f *fixture) positionCount(t *testing.T, tradeID string) int64 {
	t.Helper()
	var count int64
	require.NoError(t, f.db.Model(&types.Position{}).
		Where("trade_id = ?", tradeID).Count(&count).Error)
	return count
}

func TestProcessDueWinCreditsStakePlusProfit(t *testing.T) {
	f := newFixture(t)
	f.seedUser(t, "user-1", 0)
	f.seedDueTrade(t, "trade-1", "user-1", types.DecisionWin, 100, 30)

	summary, err := f.scheduler.ProcessDue()
	require.NoError(t, err)
	require.Equal(t, 1, summary.Processed)
	require.Len(t, summary.Results, 1)
	assert.True(t, summary.Results[0].Success)
	assert.True(t, summary.Results[0].Resolved)
	assert.Equal(t, types.TradeStatusWin, summary.Results[0].Result)

	// stake 100 + profit 30
	balance, err := f.ledger.GetUserBalance("user-1")
	require.NoError(t, err)
	assert.True(t, balance.Equal(decimal.NewFromInt(130)), "got %s", balance)

	assert.EqualValues(t, 0, f.positionCount(t, "trade-1"))
}

func TestProcessDueUndecidedDefaultsToLoss(t *testing.T) {
	f := newFixture(t)
	f.seedUser(t, "user-1", 500)
	f.seedDueTrade(t, "trade-1", "user-1", types.DecisionUnset, 100, 30)

	summary, err := f.scheduler.ProcessDue()
	require.NoError(t, err)
	require.Len(t, summary.Results, 1)
	assert.Equal(t, types.TradeStatusLose, summary.Results[0].Result)

	// No credit on loss; the stake was debited at creation time.
	balance, err := f.ledger.GetUserBalance("user-1")
	require.NoError(t, err)
	assert.True(t, balance.Equal(decimal.NewFromInt(500)), "got %s", balance)

	var resolved types.Trade
	require.NoError(t, f.db.Where("trade_id = ?", "trade-1").First(&resolved).Error)
	assert.Equal(t, types.TradeStatusLose, resolved.Status)
	assert.True(t, resolved.ProfitLossAmount.Equal(decimal.NewFromInt(-100)),
		"got %s", resolved.ProfitLossAmount)
}

func TestProcessDueIgnoresFutureAndUnarmedTrades(t *testing.T) {
	f := newFixture(t)
	f.seedUser(t, "user-1", 0)

	future := f.clock.now.Add(time.Hour)
	require.NoError(t, f.db.Create(&types.Trade{
		TradeID:     "future",
		UserID:      "user-1",
		StakeAmount: decimal.NewFromInt(100),
		ProfitRate:  decimal.NewFromInt(30),
		Status:      types.TradeStatusPending,
		ExecuteAt:   &future,
	}).Error)
	require.NoError(t, f.db.Create(&types.Trade{
		TradeID:     "unarmed",
		UserID:      "user-1",
		StakeAmount: decimal.NewFromInt(100),
		ProfitRate:  decimal.NewFromInt(30),
		Status:      types.TradeStatusPending,
	}).Error)

	summary, err := f.scheduler.ProcessDue()
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Processed)
}

func TestProcessDueSecondSweepIsNoop(t *testing.T) {
	f := newFixture(t)
	f.seedUser(t, "user-1", 0)
	f.seedDueTrade(t, "trade-1", "user-1", types.DecisionWin, 100, 30)

	_, err := f.scheduler.ProcessDue()
	require.NoError(t, err)

	summary, err := f.scheduler.ProcessDue()
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Processed)

	// Exactly one credit despite two sweeps.
	balance, err := f.ledger.GetUserBalance("user-1")
	require.NoError(t, err)
	assert.True(t, balance.Equal(decimal.NewFromInt(130)), "got %s", balance)
}

func TestProcessDueDuplicateCreditTolerated(t *testing.T) {
	f := newFixture(t)
	f.seedUser(t, "user-1", 0)
	f.seedDueTrade(t, "trade-1", "user-1", types.DecisionWin, 100, 30)

	// A previous partially-failed run already credited the payout.
	require.NoError(t, f.ledger.CreditTradePayout("user-1", decimal.NewFromInt(130), "trade-1"))

	summary, err := f.scheduler.ProcessDue()
	require.NoError(t, err)
	require.Len(t, summary.Results, 1)
	assert.True(t, summary.Results[0].Success)

	balance, err := f.ledger.GetUserBalance("user-1")
	require.NoError(t, err)
	assert.True(t, balance.Equal(decimal.NewFromInt(130)), "got %s", balance)
}

func TestProcessDuePartialFailureIsFlagged(t *testing.T) {
	f := newFixture(t)
	// No user row: the ledger credit will fail after the status transition.
	f.seedDueTrade(t, "trade-1", "ghost-user", types.DecisionWin, 100, 30)

	summary, err := f.scheduler.ProcessDue()
	require.NoError(t, err)
	require.Len(t, summary.Results, 1)
	assert.False(t, summary.Results[0].Success)
	assert.True(t, summary.Results[0].Resolved)
	assert.NotEmpty(t, summary.Results[0].Error)

	// The trade is resolved; the missing payout is flagged, distinguishable
	// from both pending and cleanly settled.
	var resolved types.Trade
	require.NoError(t, f.db.Where("trade_id = ?", "trade-1").First(&resolved).Error)
	assert.Equal(t, types.TradeStatusWin, resolved.Status)

	discs, err := NewDatabase(f.db).GetOpenDiscrepancies()
	require.NoError(t, err)
	require.Len(t, discs, 1)
	assert.Equal(t, "trade-1", discs[0].TradeID)
	assert.Equal(t, "ghost-user", discs[0].UserID)
	assert.True(t, discs[0].AmountOwed.Equal(decimal.NewFromInt(130)),
		"got %s", discs[0].AmountOwed)
}

func TestProcessDueCountsRaceLosersAsSkipped(t *testing.T) {
	f := newFixture(t)
	f.seedUser(t, "user-1", 500)
	f.seedDueTrade(t, "trade-1", "user-1", types.DecisionUnset, 100, 30)

	// A concurrent sweep resolves the trade right after this sweep picks
	// up its due list; a one-shot query callback stands in for the other
	// process.
	injected := false
	err := f.db.Callback().Query().After("gorm:query").Register("steal_due_trade", func(tx *gorm.DB) {
		if injected {
			return
		}
		if _, ok := tx.Statement.Dest.(*[]types.Trade); !ok {
			return
		}
		injected = true
		_, ok, err := f.trades.Resolve("trade-1")
		require.NoError(t, err)
		require.True(t, ok)
	})
	require.NoError(t, err)

	summary, err := f.scheduler.ProcessDue()
	require.NoError(t, err)
	require.True(t, injected)

	// The sweep did no settlement work of its own.
	assert.Equal(t, 0, summary.Processed)
	assert.Equal(t, 1, summary.Skipped)
	require.Len(t, summary.Results, 1)
	assert.True(t, summary.Results[0].Success)
	assert.False(t, summary.Results[0].Resolved)
}

func TestProcessDueFailureDoesNotAbortBatch(t *testing.T) {
	f := newFixture(t)
	f.seedUser(t, "user-ok", 0)
	f.seedDueTrade(t, "trade-bad", "ghost-user", types.DecisionWin, 100, 30)
	f.seedDueTrade(t, "trade-ok", "user-ok", types.DecisionWin, 200, 50)

	summary, err := f.scheduler.ProcessDue()
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Processed)

	// stake 200 + profit 100
	balance, err := f.ledger.GetUserBalance("user-ok")
	require.NoError(t, err)
	assert.True(t, balance.Equal(decimal.NewFromInt(300)), "got %s", balance)
}

func TestMarkDiscrepancyResolved(t *testing.T) {
	f := newFixture(t)
	db := NewDatabase(f.db)

	require.NoError(t, db.CreateDiscrepancy(&PayoutDiscrepancy{
		TradeID:    "trade-1",
		UserID:     "user-1",
		AmountOwed: decimal.NewFromInt(130),
		Reason:     "ledger unavailable",
	}))

	discs, err := db.GetOpenDiscrepancies()
	require.NoError(t, err)
	require.Len(t, discs, 1)

	require.NoError(t, db.MarkDiscrepancyResolved("trade-1", f.clock.now))

	discs, err = db.GetOpenDiscrepancies()
	require.NoError(t, err)
	assert.Empty(t, discs)
}
