package ledger

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/margindesk/admin-api/internal/types"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var (
	// ErrDuplicateCredit means a credit for this (trade, type) pair already
	// committed. Callers treat it as success: the money is there.
	ErrDuplicateCredit = errors.New("credit already applied for this trade")

	ErrUserNotFound = errors.New("ledger user not found")
)

// Service is the balance ledger: an atomic balance mutation plus its audit
// record, committed together or not at all.
type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// Credit applies a signed amount to a user's balance and writes the audit
// transaction in one database transaction. When tradeID is set, the unique
// (trade_id, transaction_type) index rejects a second credit for the same
// trade; that surfaces as ErrDuplicateCredit with the balance untouched.
func (s *Service) Credit(userID string, amount decimal.Decimal, txType, description string, tradeID *string) error {
	err := s.db.Transaction(func(tx *gorm.DB) error {
		record := &BalanceTransaction{
			TransactionID:   "TXN_" + uuid.New().String(),
			UserID:          userID,
			Amount:          amount,
			TransactionType: txType,
			Description:     description,
			TradeID:         tradeID,
		}
		if err := tx.Create(record).Error; err != nil {
			if isDuplicateKey(err) {
				return ErrDuplicateCredit
			}
			return fmt.Errorf("failed to write balance transaction: %w", err)
		}

		var user types.User
		if err := tx.Where("user_id = ?", userID).First(&user).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrUserNotFound
			}
			return err
		}

		newBalance := user.Balance.Add(amount)
		result := tx.Model(&types.User{}).
			Where("user_id = ?", userID).
			Update("balance", newBalance)
		if result.Error != nil {
			return fmt.Errorf("failed to apply balance mutation: %w", result.Error)
		}
		return nil
	})
	if err != nil {
		return err
	}

	log.Info().
		Str("service", "ledger").
		Str("user_id", userID).
		Str("amount", amount.String()).
		Str("transaction_type", txType).
		Msg("balance credited")
	return nil
}

// CreditTradePayout credits a winning trade's payout, idempotent per trade.
func (s *Service) CreditTradePayout(userID string, amount decimal.Decimal, tradeID string) error {
	description := fmt.Sprintf("Trade payout for trade %s", tradeID)
	return s.Credit(userID, amount, TxTypeTradePayout, description, &tradeID)
}

// GetUserBalance reads the current balance, mostly for tests and tooling.
func (s *Service) GetUserBalance(userID string) (decimal.Decimal, error) {
	var user types.User
	if err := s.db.Where("user_id = ?", userID).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return decimal.Zero, ErrUserNotFound
		}
		return decimal.Zero, err
	}
	return user.Balance, nil
}

// isDuplicateKey covers both gorm's translated error and the raw sqlite
// message, since TranslateError depends on driver support.
func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
