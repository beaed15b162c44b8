package repository

import (
	"testing"

	"github.com/nimasrn/dv-referral-ledger/pkg/pg"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Entities lists every table owned by the repositories, in dependency order.
func Entities() []interface{} {
	return []interface{}{
		&UserEntity{},
		&FormEntity{},
		&ReferralEntity{},
		&LedgerEntryEntity{},
		&PayoutEntity{},
		&OutboxEventEntity{},
	}
}

// OpenTestDB returns a pg.DB over a fresh in-memory sqlite database with the
// schema migrated. The pool is pinned to one connection so every handle sees
// the same database; code under test must use the transaction ctx inside
// WithinTransaction.
func OpenTestDB(t testing.TB) *pg.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(Entities()...))

	return pg.Wrap(db, db)
}

// SeedUser inserts a user row directly. A non-zero starting balance gets a
// matching opening ledger entry so the ledger sum stays consistent.
func SeedUser(t testing.TB, db *pg.DB, e *UserEntity) *UserEntity {
	t.Helper()
	if e.Role == "" {
		e.Role = "user"
	}
	ctx := t.Context()
	require.NoError(t, db.Write(ctx).Create(e).Error)
	if e.ReferralEarnings != 0 {
		require.NoError(t, db.Write(ctx).Create(&LedgerEntryEntity{
			UserID:       e.ID,
			Amount:       e.ReferralEarnings,
			Type:         "referral_reward",
			Reference:    "seed:opening",
			BalanceAfter: e.ReferralEarnings,
		}).Error)
	}
	return e
}
