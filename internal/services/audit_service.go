// internal/services/audit_service.go
package services

import (
	"context"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/javajoker/crm-governance/internal/apperrors"
	"github.com/javajoker/crm-governance/internal/models"
)

type AuditService struct {
	db *gorm.DB
}

type AuditEntry struct {
	TenantID     string
	UserID       *uuid.UUID
	Action       string
	ResourceType string
	ResourceID   *uuid.UUID
	OldValues    interface{}
	NewValues    interface{}
}

func NewAuditService(db *gorm.DB) *AuditService {
	return &AuditService{db: db}
}

// Record writes an audit row. Failures are logged and never returned; call it
// after the governed transaction has committed.
func (s *AuditService) Record(ctx context.Context, entry AuditEntry) {
	if s == nil {
		return
	}

	auditLog := &models.AuditLog{
		TenantID:     entry.TenantID,
		UserID:       entry.UserID,
		Action:       entry.Action,
		ResourceType: entry.ResourceType,
		ResourceID:   entry.ResourceID,
	}

	var err error
	if entry.OldValues != nil {
		if auditLog.OldValues, err = models.ToJSONB(entry.OldValues); err != nil {
			logrus.WithError(err).WithField("action", entry.Action).Warn("Failed to encode audit old values")
		}
	}
	if entry.NewValues != nil {
		if auditLog.NewValues, err = models.ToJSONB(entry.NewValues); err != nil {
			logrus.WithError(err).WithField("action", entry.Action).Warn("Failed to encode audit new values")
		}
	}

	if err := s.db.WithContext(ctx).Create(auditLog).Error; err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"action":        entry.Action,
			"resource_type": entry.ResourceType,
			"resource_id":   entry.ResourceID,
		}).Warn("Failed to create audit log")
	}
}

// List returns the audit trail of one resource, oldest first.
func (s *AuditService) List(ctx context.Context, tenantID, resourceType string, resourceID uuid.UUID) ([]models.AuditLog, error) {
	var logs []models.AuditLog
	err := s.db.WithContext(ctx).
		Where("tenant_id = ? AND resource_type = ? AND resource_id = ?", tenantID, resourceType, resourceID).
		Order("created_at ASC").
		Find(&logs).Error
	if err != nil {
		return nil, apperrors.Internal(err, "failed to load audit trail")
	}
	return logs, nil
}

func actorRef(id uuid.UUID) *uuid.UUID {
	return &id
}
