package database

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/javajoker/crm-governance/internal/models"
	"github.com/javajoker/crm-governance/internal/policy"
)

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	return db, mock
}

func TestWithTransactionCommits(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE leads SET score = 0`)).
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectCommit()

	err := WithTransaction(db, func(tx *gorm.DB) error {
		return tx.Exec("UPDATE leads SET score = 0").Error
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTransactionRollsBackOnError(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectBegin()
	mock.ExpectRollback()

	boom := errors.New("boom")
	err := WithTransaction(db, func(tx *gorm.DB) error {
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTransactionRollsBackOnPanic(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectBegin()
	mock.ExpectRollback()

	assert.Panics(t, func() {
		_ = WithTransaction(db, func(tx *gorm.DB) error {
			panic("unexpected")
		})
	})
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSeedPoliciesRollsBackOnFailure(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .* FROM "tenant_policies"`).
		WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	err := SeedPolicies(db, "acme", policy.DefaultDocument())
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIndexDDL(t *testing.T) {
	idx := index{name: "idx_live", table: "decision_requests", columns: []string{"tenant_id", "entity_id"}, where: "status = 'Submitted'"}
	assert.Equal(t,
		`CREATE INDEX IF NOT EXISTS "idx_live" ON "decision_requests"("tenant_id", "entity_id") WHERE status = 'Submitted'`,
		idx.ddl())
}

func TestSeedPoliciesIsIdempotent(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, Migrate(db))

	doc := policy.DefaultDocument()
	require.NoError(t, SeedPolicies(db, "acme", doc))
	require.NoError(t, SeedPolicies(db, "acme", doc))

	store := policy.NewStore(db, policy.Document{})
	version, err := store.Version(context.Background(), "acme", models.PolicyKindQualification)
	require.NoError(t, err)
	assert.Equal(t, 1, version)

	version, err = store.Version(context.Background(), "acme", models.PolicyKindApproval)
	require.NoError(t, err)
	assert.Equal(t, 1, version)
}
