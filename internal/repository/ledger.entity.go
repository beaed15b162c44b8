package repository

import (
	"time"

	"github.com/nimasrn/dv-referral-ledger/internal/model"
)

type LedgerEntryEntity struct {
	ID           int64     `db:"id"            gorm:"primaryKey;autoIncrement;column:id"`
	UserID       int64     `db:"user_id"       gorm:"column:user_id;not null;uniqueIndex:idx_ledger_reference,priority:1"`
	Amount       int64     `db:"amount"        gorm:"column:amount;not null"`
	Type         string    `db:"type"          gorm:"column:type;not null;uniqueIndex:idx_ledger_reference,priority:2"`
	Reference    string    `db:"reference"     gorm:"column:reference;not null;uniqueIndex:idx_ledger_reference,priority:3"`
	BalanceAfter int64     `db:"balance_after" gorm:"column:balance_after;not null"`
	CreatedAt    time.Time `db:"created_at"    gorm:"column:created_at;autoCreateTime"`
}

func (LedgerEntryEntity) TableName() string {
	return "ledger_entries"
}

func toLedgerEntryModel(e *LedgerEntryEntity) *model.LedgerEntry {
	if e == nil {
		return nil
	}
	return &model.LedgerEntry{
		ID:           e.ID,
		UserID:       e.UserID,
		Amount:       e.Amount,
		Type:         model.LedgerEntryType(e.Type),
		Reference:    e.Reference,
		BalanceAfter: e.BalanceAfter,
		CreatedAt:    e.CreatedAt,
	}
}

func toLedgerEntryModels(entities []*LedgerEntryEntity) []*model.LedgerEntry {
	if entities == nil {
		return nil
	}
	models := make([]*model.LedgerEntry, len(entities))
	for i, e := range entities {
		models[i] = toLedgerEntryModel(e)
	}
	return models
}
