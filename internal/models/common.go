// internal/models/common.go
package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Base model with common fields
type BaseModel struct {
	ID        uuid.UUID      `json:"id" gorm:"type:uuid;primary_key"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}

func (b *BaseModel) BeforeCreate(tx *gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}

// JSONB type for PostgreSQL
type JSONB map[string]interface{}

func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}

	bytes, err := scanBytes(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(bytes, j)
}

// ToJSONB round-trips v through JSON so structs can be stored in a JSONB column.
func ToJSONB(v interface{}) (JSONB, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out JSONB
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Decode fills v from the stored document.
func (j JSONB) Decode(v interface{}) error {
	data, err := json.Marshal(j)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

// sqlite hands back strings where postgres hands back bytes.
func scanBytes(value interface{}) ([]byte, error) {
	switch v := value.(type) {
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return nil, fmt.Errorf("unsupported JSON column type %T", value)
	}
}

// Enums
type LeadStatus string

const (
	LeadStatusNew          LeadStatus = "New"
	LeadStatusContacted    LeadStatus = "Contacted"
	LeadStatusNurture      LeadStatus = "Nurture"
	LeadStatusQualified    LeadStatus = "Qualified"
	LeadStatusDisqualified LeadStatus = "Disqualified"
	LeadStatusLost         LeadStatus = "Lost"
	LeadStatusConverted    LeadStatus = "Converted"
)

type DecisionStatus string

const (
	DecisionStatusSubmitted DecisionStatus = "Submitted"
	DecisionStatusApproved  DecisionStatus = "Approved"
	DecisionStatusRejected  DecisionStatus = "Rejected"
)

func (s DecisionStatus) IsTerminal() bool {
	return s == DecisionStatusApproved || s == DecisionStatusRejected
}

type StepDecision string

const (
	StepDecisionPending  StepDecision = "Pending"
	StepDecisionApproved StepDecision = "Approved"
	StepDecisionRejected StepDecision = "Rejected"
)

type EntityType string

const (
	EntityTypeLead        EntityType = "lead"
	EntityTypeOpportunity EntityType = "opportunity"
)

func (e EntityType) Valid() bool {
	return e == EntityTypeLead || e == EntityTypeOpportunity
}
