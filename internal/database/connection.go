// internal/database/connection.go
package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/javajoker/crm-governance/internal/config"
	"github.com/javajoker/crm-governance/internal/models"
	"github.com/javajoker/crm-governance/internal/policy"
)

func Initialize(cfg config.DatabaseConfig) (*gorm.DB, error) {
	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Info),
	}
	if cfg.LogLevel == "silent" {
		gormConfig.Logger = logger.Default.LogMode(logger.Silent)
	}

	// Connect to database
	db, err := gorm.Open(postgres.Open(cfg.DSN()), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Get underlying sql.DB
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	// Configure connection pool
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.MaxLifetime) * time.Second)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logrus.Info("Database connection established successfully")
	return db, nil
}

func Close(db *gorm.DB) {
	sqlDB, err := db.DB()
	if err != nil {
		logrus.WithError(err).Error("Error getting underlying sql.DB")
		return
	}

	if err := sqlDB.Close(); err != nil {
		logrus.WithError(err).Error("Error closing database connection")
	} else {
		logrus.Info("Database connection closed successfully")
	}
}

// Models lists every table owned by the service.
func Models() []interface{} {
	return []interface{}{
		&models.Lead{},
		&models.LeadStatusHistory{},
		&models.Opportunity{},
		&models.DecisionRequest{},
		&models.TenantPolicy{},
		&models.AuditLog{},
	}
}

// Migrate creates the schema on any gorm dialect.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// RunMigrations migrates the schema and adds the postgres-only indexes.
func RunMigrations(db *gorm.DB) error {
	logrus.Info("Running database migrations...")

	if err := Migrate(db); err != nil {
		return err
	}

	if err := createIndexes(db); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	logrus.Info("Database migrations completed successfully")
	return nil
}

type index struct {
	name    string
	table   string
	columns []string
	where   string
}

func (i index) ddl() string {
	cols := make([]string, len(i.columns))
	for n, c := range i.columns {
		cols[n] = pq.QuoteIdentifier(c)
	}
	stmt := fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s(%s)",
		pq.QuoteIdentifier(i.name), pq.QuoteIdentifier(i.table), strings.Join(cols, ", "))
	if i.where != "" {
		stmt += " WHERE " + i.where
	}
	return stmt
}

var indexes = []index{
	// Live decision requests drive the lock gate
	{name: "idx_decision_requests_live", table: "decision_requests", columns: []string{"tenant_id", "entity_id"}, where: "status = 'Submitted' AND deleted_at IS NULL"},
	{name: "idx_decision_requests_purpose", table: "decision_requests", columns: []string{"tenant_id", "entity_id", "purpose", "status"}},
	{name: "idx_decision_requests_created", table: "decision_requests", columns: []string{"tenant_id", "created_at"}},

	{name: "idx_leads_tenant_status", table: "leads", columns: []string{"tenant_id", "status"}},
	{name: "idx_leads_owner", table: "leads", columns: []string{"tenant_id", "owner_id"}},
	{name: "idx_lead_status_histories_lead", table: "lead_status_histories", columns: []string{"lead_id", "created_at"}},
	{name: "idx_opportunities_owner", table: "opportunities", columns: []string{"tenant_id", "owner_id"}},

	{name: "idx_audit_logs_resource", table: "audit_logs", columns: []string{"resource_type", "resource_id"}},
	{name: "idx_audit_logs_created", table: "audit_logs", columns: []string{"tenant_id", "created_at"}},
}

func createIndexes(db *gorm.DB) error {
	for _, idx := range indexes {
		stmt := idx.ddl()
		if err := db.Exec(stmt).Error; err != nil {
			// Continue with other indexes instead of failing completely
			logrus.WithError(err).WithField("statement", stmt).Warn("Failed to create index")
		}
	}
	return nil
}

// SeedPolicies stores the seed document for a tenant that has no policies yet.
// Both kinds are seeded in one transaction.
func SeedPolicies(db *gorm.DB, tenantID string, doc policy.Document) error {
	logrus.WithField("tenant_id", tenantID).Info("Seeding governance policies...")

	err := WithTransaction(db, func(tx *gorm.DB) error {
		ctx := context.Background()
		store := policy.NewStore(tx, doc)
		seeds := []struct {
			kind models.PolicyKind
			save func() error
		}{
			{models.PolicyKindQualification, func() error {
				_, err := store.SaveQualificationPolicy(ctx, tenantID, doc.Qualification, nil)
				return err
			}},
			{models.PolicyKindApproval, func() error {
				_, err := store.SaveApprovalWorkflowPolicy(ctx, tenantID, doc.Approval, nil)
				return err
			}},
		}

		for _, seed := range seeds {
			version, err := store.Version(ctx, tenantID, seed.kind)
			if err != nil {
				return err
			}
			if version > 0 {
				continue
			}
			if err := seed.save(); err != nil {
				return fmt.Errorf("failed to seed %s policy: %w", seed.kind, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	logrus.Info("Policy seeding completed")
	return nil
}

// Transaction helper
func WithTransaction(db *gorm.DB, fn func(*gorm.DB) error) error {
	tx := db.Begin()
	if tx.Error != nil {
		return tx.Error
	}

	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}

	return tx.Commit().Error
}
