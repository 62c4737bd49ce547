package trade

import (
	"fmt"
	"math/rand"
	"sort"
	"time"

	"github.com/margindesk/admin-api/internal/admin"
	"github.com/margindesk/admin-api/internal/types"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var oneHundred = decimal.NewFromInt(100)

// Service owns the trade state machine: decision recording on behalf of
// admins, and resolution on behalf of the settlement scheduler. The balance
// side effect never happens here; resolution callers credit the ledger so
// the financial path stays single.
type Service struct {
	db       *Database
	gate     *admin.Gate
	resolver *admin.Resolver
	clock    types.Clock
	delayMin time.Duration
	delayMax time.Duration
}

func NewService(gormDB *gorm.DB, gate *admin.Gate, resolver *admin.Resolver, clock types.Clock, delayMin, delayMax time.Duration) *Service {
	return &Service{
		db:       NewDatabase(gormDB),
		gate:     gate,
		resolver: resolver,
		clock:    clock,
		delayMin: delayMin,
		delayMax: delayMax,
	}
}

// SetDecision records a win/lose decision on a pending trade and arms its
// execution timer. Preconditions run strictly in order: active admin,
// assignment scope, then the conditional state transition.
func (s *Service) SetDecision(tradeID, decision, adminID string) (*types.Trade, error) {
	if decision != types.DecisionWin && decision != types.DecisionLose {
		return nil, fmt.Errorf("invalid decision %q", decision)
	}

	adm, err := s.gate.Authenticate(adminID)
	if err != nil {
		return nil, err
	}

	trade, err := s.db.GetTrade(tradeID)
	if err != nil {
		return nil, err
	}
	if trade == nil {
		return nil, ErrNotPending
	}

	if err := s.gate.CheckAdmin(adm, trade.UserID); err != nil {
		return nil, err
	}

	executeAt := s.clock.Now().Add(s.randomDelay())
	updated, err := s.db.SetDecision(tradeID, decision, executeAt)
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("service", "trade").
		Str("trade_id", tradeID).
		Str("admin_id", adminID).
		Str("decision", decision).
		Time("execute_at", *updated.ExecuteAt).
		Msg("decision recorded")

	return updated, nil
}

// Resolve finalizes a pending trade: result is the recorded decision, or
// lose when no admin ever ruled. Win pays stake * rate / 100; lose books
// the whole stake as loss. A lost race against another resolver returns
// resolved=false with no error.
//
// The write is guarded on the decision observed by the read. When the guard
// misses, either another resolver finished first or a decision landed after
// the read; re-reading distinguishes the two, and the retry settles under
// the fresh decision. The loop is bounded because a decision is written at
// most once.
func (s *Service) Resolve(tradeID string) (*types.Trade, bool, error) {
	for {
		trade, err := s.db.GetTrade(tradeID)
		if err != nil {
			return nil, false, err
		}
		if trade == nil || trade.Status != types.TradeStatusPending {
			return trade, false, nil
		}

		result := trade.Decision
		if result == types.DecisionUnset {
			result = types.TradeStatusLose
		}

		var profitLoss decimal.Decimal
		if result == types.TradeStatusWin {
			profitLoss = trade.StakeAmount.Mul(trade.ProfitRate).Div(oneHundred)
		} else {
			profitLoss = trade.StakeAmount.Neg()
		}

		completedAt := s.clock.Now()
		ok, err := s.db.MarkResolved(tradeID, trade.Decision, result, profitLoss, completedAt)
		if err != nil {
			return nil, false, err
		}
		if !ok {
			continue
		}

		trade.Status = result
		trade.Result = result
		trade.ProfitLossAmount = profitLoss
		trade.CompletedAt = &completedAt
		return trade, true, nil
	}
}

// VisiblePendingTrades returns the pending trades inside the acting admin's
// assignment scope. Super admins see everything; an admin with no assigned
// users sees nothing.
func (s *Service) VisiblePendingTrades(adminID string) ([]types.Trade, error) {
	adm, err := s.gate.Authenticate(adminID)
	if err != nil {
		return nil, err
	}

	if adm.IsSuper() {
		return s.db.GetPendingTrades()
	}

	assigned, err := s.resolver.ResolveAssignedUsers(adm.AdminID)
	if err != nil {
		return nil, err
	}

	userIDs := make([]string, 0, len(assigned))
	for id := range assigned {
		userIDs = append(userIDs, id)
	}
	sort.Strings(userIDs)

	return s.db.GetPendingTradesByUsers(userIDs)
}

// GetVisibleTrade fetches a single trade inside the admin's scope.
func (s *Service) GetVisibleTrade(tradeID, adminID string) (*types.Trade, error) {
	adm, err := s.gate.Authenticate(adminID)
	if err != nil {
		return nil, err
	}

	trade, err := s.db.GetTrade(tradeID)
	if err != nil {
		return nil, err
	}
	if trade == nil {
		return nil, gorm.ErrRecordNotFound
	}

	if err := s.gate.CheckAdmin(adm, trade.UserID); err != nil {
		return nil, err
	}
	return trade, nil
}

// GetDB exposes the repository to the settlement scheduler.
func (s *Service) GetDB() *Database {
	return s.db
}

func (s *Service) randomDelay() time.Duration {
	if s.delayMax <= s.delayMin {
		return s.delayMin
	}
	return s.delayMin + time.Duration(rand.Int63n(int64(s.delayMax-s.delayMin)))
}
