// internal/models/opportunity.go
package models

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Opportunity is the commercial record gated by decision requests.
type Opportunity struct {
	BaseModel
	TenantID        string          `json:"tenant_id" gorm:"size:64;not null;index"`
	OwnerID         uuid.UUID       `json:"owner_id" gorm:"type:uuid;not null;index"`
	LeadID          *uuid.UUID      `json:"lead_id,omitempty" gorm:"type:uuid;index"`
	Name            string          `json:"name" gorm:"size:255;not null"`
	Stage           string          `json:"stage" gorm:"size:50;not null;default:'Prospecting'"`
	Amount          decimal.Decimal `json:"amount" gorm:"type:decimal(20,4);not null"`
	Currency        string          `json:"currency" gorm:"size:3;not null"`
	DiscountPercent decimal.Decimal `json:"discount_percent" gorm:"type:decimal(5,2);not null"`
}
