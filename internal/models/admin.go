// internal/models/admin.go
package models

import (
	"github.com/google/uuid"
)

type PolicyKind string

const (
	PolicyKindQualification PolicyKind = "qualification"
	PolicyKindApproval      PolicyKind = "approval"
)

// TenantPolicy stores one versioned policy document per tenant and kind.
type TenantPolicy struct {
	BaseModel
	TenantID  string     `json:"tenant_id" gorm:"size:64;not null;uniqueIndex:idx_tenant_policies_kind"`
	Kind      PolicyKind `json:"kind" gorm:"size:30;not null;uniqueIndex:idx_tenant_policies_kind"`
	Document  JSONB      `json:"document" gorm:"type:jsonb;not null"`
	Version   int        `json:"version" gorm:"not null;default:1"`
	UpdatedBy *uuid.UUID `json:"updated_by,omitempty" gorm:"type:uuid"`
}

type AuditLog struct {
	BaseModel
	TenantID     string     `json:"tenant_id" gorm:"size:64;not null;index"`
	UserID       *uuid.UUID `json:"user_id" gorm:"type:uuid;index"`
	Action       string     `json:"action" gorm:"size:100;not null;index"`
	ResourceType string     `json:"resource_type" gorm:"size:50;not null;index"`
	ResourceID   *uuid.UUID `json:"resource_id" gorm:"type:uuid;index"`
	OldValues    JSONB      `json:"old_values" gorm:"type:jsonb"`
	NewValues    JSONB      `json:"new_values" gorm:"type:jsonb"`
}
