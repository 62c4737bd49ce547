package settlement

import (
	"context"
	"errors"
	"time"

	"github.com/margindesk/admin-api/internal/ledger"
	"github.com/margindesk/admin-api/internal/trade"
	"github.com/margindesk/admin-api/internal/types"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// Scheduler is the recurring sweep that resolves trades whose execution
// timer has elapsed. It holds no locks: every tick is made safe against
// concurrent ticks and concurrent admin decisions by the status-guarded
// conditional updates in the trade state machine.
type Scheduler struct {
	trades   *trade.Service
	db       *Database
	ledger   *ledger.Service
	clock    types.Clock
	interval time.Duration
}

func NewScheduler(trades *trade.Service, db *Database, ledgerSvc *ledger.Service, clock types.Clock, interval time.Duration) *Scheduler {
	return &Scheduler{
		trades:   trades,
		db:       db,
		ledger:   ledgerSvc,
		clock:    clock,
		interval: interval,
	}
}

// Start begins the settlement loop and blocks until the context is done.
func (s *Scheduler) Start(ctx context.Context) {
	logger := log.With().Str("component", "settlement_scheduler").Logger()
	logger.Info().Dur("interval", s.interval).Msg("starting settlement scheduler")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("shutting down settlement scheduler")
			return
		case <-ticker.C:
			summary, err := s.ProcessDue()
			if err != nil {
				logger.Error().Err(err).Msg("failed to scan due trades")
				continue
			}
			if len(summary.Results) > 0 {
				logger.Info().
					Int("processed", summary.Processed).
					Int("skipped", summary.Skipped).
					Interface("results", summary.Results).
					Msg("settlement batch complete")
			}
		}
	}
}

// ProcessDue resolves every trade whose execute_at is in the past. Each
// trade is its own unit of work; one failure never aborts the batch.
func (s *Scheduler) ProcessDue() (*BatchSummary, error) {
	now := s.clock.Now()

	due, err := s.trades.GetDB().GetDueTrades(now)
	if err != nil {
		return nil, err
	}

	summary := &BatchSummary{Results: make([]TradeResult, 0, len(due))}
	for i := range due {
		result := s.settleOne(&due[i])
		if result.Resolved {
			summary.Processed++
		} else if result.Error == "" {
			summary.Skipped++
		}
		summary.Results = append(summary.Results, result)
	}
	return summary, nil
}

// settleOne runs one trade through resolution, payout, and position
// cleanup, strictly in that order. The ledger call happens only after the
// status transition commits, so "resolved but unpaid" is the only possible
// partial-failure window, never "paid twice".
func (s *Scheduler) settleOne(t *types.Trade) TradeResult {
	logger := log.With().
		Str("component", "settlement_scheduler").
		Str("trade_id", t.TradeID).
		Logger()

	resolved, ok, err := s.trades.Resolve(t.TradeID)
	if err != nil {
		logger.Error().Err(err).Msg("failed to resolve trade")
		return TradeResult{TradeID: t.TradeID, Error: err.Error()}
	}
	if !ok {
		// Already resolved by a concurrent sweep; nothing left to do.
		logger.Debug().Msg("trade already resolved, skipping")
		return TradeResult{TradeID: t.TradeID, Success: true, Resolved: false}
	}

	result := TradeResult{
		TradeID:  t.TradeID,
		Success:  true,
		Resolved: true,
		Result:   resolved.Result,
	}

	if resolved.Result == types.TradeStatusWin {
		payout := resolved.StakeAmount.Add(resolved.ProfitLossAmount)
		if err := s.creditPayout(resolved, payout); err != nil {
			logger.Error().Err(err).
				Str("user_id", resolved.UserID).
				Str("amount", payout.String()).
				Msg("payout credit failed after resolution; flagged for reconciliation")
			result.Success = false
			result.Error = err.Error()
		}
	}

	// Position cleanup is best-effort and never rolls back settlement.
	if err := s.db.DeletePosition(t.TradeID); err != nil {
		logger.Warn().Err(err).Msg("failed to delete open position")
	}

	logger.Info().
		Str("result", resolved.Result).
		Str("profit_loss", resolved.ProfitLossAmount.String()).
		Bool("success", result.Success).
		Msg("trade settled")

	return result
}

// creditPayout credits a win through the ledger. A duplicate credit counts
// as success; any other failure is persisted as a payout discrepancy so the
// owed amount is never silently dropped.
func (s *Scheduler) creditPayout(t *types.Trade, payout decimal.Decimal) error {
	err := s.ledger.CreditTradePayout(t.UserID, payout, t.TradeID)
	if err == nil || errors.Is(err, ledger.ErrDuplicateCredit) {
		return nil
	}

	disc := &PayoutDiscrepancy{
		TradeID:    t.TradeID,
		UserID:     t.UserID,
		AmountOwed: payout,
		Reason:     err.Error(),
	}
	if derr := s.db.CreateDiscrepancy(disc); derr != nil {
		log.Error().
			Str("component", "settlement_scheduler").
			Str("trade_id", t.TradeID).
			Err(derr).
			Msg("failed to record payout discrepancy")
	}
	return err
}
