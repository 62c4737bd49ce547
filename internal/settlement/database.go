package settlement

import (
	"time"

	"github.com/margindesk/admin-api/internal/types"
	"gorm.io/gorm"
)

type Database struct {
	db *gorm.DB
}

func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

func (d *Database) CreateDiscrepancy(disc *PayoutDiscrepancy) error {
	return d.db.Create(disc).Error
}

// GetOpenDiscrepancies lists flagged payouts awaiting manual reconciliation.
func (d *Database) GetOpenDiscrepancies() ([]PayoutDiscrepancy, error) {
	var discs []PayoutDiscrepancy
	err := d.db.
		Where("resolved_at IS NULL").
		Order("created_at ASC").
		Find(&discs).Error
	if err != nil {
		return nil, err
	}
	return discs, nil
}

// MarkDiscrepancyResolved closes a discrepancy after manual reconciliation.
func (d *Database) MarkDiscrepancyResolved(tradeID string, when time.Time) error {
	return d.db.Model(&PayoutDiscrepancy{}).
		Where("trade_id = ? AND resolved_at IS NULL", tradeID).
		Update("resolved_at", when).Error
}

// DeletePosition retires the open-position row for a resolved trade.
func (d *Database) DeletePosition(tradeID string) error {
	return d.db.Where("trade_id = ?", tradeID).Delete(&types.Position{}).Error
}
