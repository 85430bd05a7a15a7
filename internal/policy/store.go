// internal/policy/store.go
package policy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/javajoker/crm-governance/internal/apperrors"
	"github.com/javajoker/crm-governance/internal/models"
)

// Store reads and writes tenant policies. Every read returns a fresh, validated
// value so callers never share mutable policy state.
type Store struct {
	db       *gorm.DB
	defaults Document
}

func NewStore(db *gorm.DB, defaults Document) *Store {
	return &Store{db: db, defaults: defaults}
}

func (s *Store) QualificationPolicy(ctx context.Context, tenantID string) (QualificationPolicy, error) {
	var p QualificationPolicy
	found, err := s.load(ctx, tenantID, models.PolicyKindQualification, &p)
	if err != nil {
		return QualificationPolicy{}, err
	}
	if !found {
		if err := clone(s.defaults.Qualification, &p); err != nil {
			return QualificationPolicy{}, err
		}
	}
	if err := p.Validate(); err != nil {
		return QualificationPolicy{}, err
	}
	return p, nil
}

func (s *Store) ApprovalWorkflowPolicy(ctx context.Context, tenantID string) (ApprovalWorkflowPolicy, error) {
	var p ApprovalWorkflowPolicy
	found, err := s.load(ctx, tenantID, models.PolicyKindApproval, &p)
	if err != nil {
		return ApprovalWorkflowPolicy{}, err
	}
	if !found {
		if err := clone(s.defaults.Approval, &p); err != nil {
			return ApprovalWorkflowPolicy{}, err
		}
	}
	if err := p.Validate(); err != nil {
		return ApprovalWorkflowPolicy{}, err
	}
	return p, nil
}

// SaveQualificationPolicy validates p and stores it, returning the new version.
func (s *Store) SaveQualificationPolicy(ctx context.Context, tenantID string, p QualificationPolicy, updatedBy *uuid.UUID) (int, error) {
	if err := p.Validate(); err != nil {
		return 0, err
	}
	return s.save(ctx, tenantID, models.PolicyKindQualification, p, updatedBy)
}

func (s *Store) SaveApprovalWorkflowPolicy(ctx context.Context, tenantID string, p ApprovalWorkflowPolicy, updatedBy *uuid.UUID) (int, error) {
	if err := p.Validate(); err != nil {
		return 0, err
	}
	return s.save(ctx, tenantID, models.PolicyKindApproval, p, updatedBy)
}

// Version reports the stored version of a policy, 0 when the defaults apply.
func (s *Store) Version(ctx context.Context, tenantID string, kind models.PolicyKind) (int, error) {
	var row models.TenantPolicy
	err := s.db.WithContext(ctx).Where("tenant_id = ? AND kind = ?", tenantID, kind).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, apperrors.Internal(err, "failed to load policy version")
	}
	return row.Version, nil
}

func (s *Store) load(ctx context.Context, tenantID string, kind models.PolicyKind, out interface{}) (bool, error) {
	var row models.TenantPolicy
	err := s.db.WithContext(ctx).Where("tenant_id = ? AND kind = ?", tenantID, kind).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, apperrors.Internal(err, fmt.Sprintf("failed to load %s policy", kind))
	}
	if err := row.Document.Decode(out); err != nil {
		return false, apperrors.PolicyInvalid(string(kind), []string{"stored document cannot be decoded: " + err.Error()})
	}
	return true, nil
}

func (s *Store) save(ctx context.Context, tenantID string, kind models.PolicyKind, doc interface{}, updatedBy *uuid.UUID) (int, error) {
	payload, err := models.ToJSONB(doc)
	if err != nil {
		return 0, fmt.Errorf("failed to encode %s policy: %w", kind, err)
	}

	var version int
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row models.TenantPolicy
		err := tx.Where("tenant_id = ? AND kind = ?", tenantID, kind).First(&row).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			row = models.TenantPolicy{
				TenantID:  tenantID,
				Kind:      kind,
				Document:  payload,
				Version:   1,
				UpdatedBy: updatedBy,
			}
			version = 1
			return tx.Create(&row).Error
		case err != nil:
			return err
		}

		version = row.Version + 1
		return tx.Model(&row).Updates(map[string]interface{}{
			"document":   payload,
			"version":    version,
			"updated_by": updatedBy,
		}).Error
	})
	if err != nil {
		return 0, apperrors.Internal(err, fmt.Sprintf("failed to store %s policy", kind))
	}
	return version, nil
}

func clone(src, dst interface{}) error {
	data, err := json.Marshal(src)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dst)
}
