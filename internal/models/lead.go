// internal/models/lead.go
package models

import (
	"time"

	"github.com/google/uuid"
)

type Lead struct {
	BaseModel
	TenantID    string     `json:"tenant_id" gorm:"size:64;not null;index"`
	OwnerID     uuid.UUID  `json:"owner_id" gorm:"type:uuid;not null;index"`
	FirstName   string     `json:"first_name" gorm:"size:100"`
	LastName    string     `json:"last_name" gorm:"size:100"`
	Email       string     `json:"email" gorm:"size:255"`
	Phone       string     `json:"phone" gorm:"size:50"`
	CompanyName string     `json:"company_name" gorm:"size:255"`
	JobTitle    string     `json:"job_title" gorm:"size:150"`
	Source      string     `json:"source" gorm:"size:100"`
	Status      LeadStatus `json:"status" gorm:"size:20;not null;default:'New';index"`

	// Qualification factors
	BudgetAvailability string `json:"budget_availability" gorm:"size:150"`
	ReadinessToSpend   string `json:"readiness_to_spend" gorm:"size:150"`
	BuyingTimeline     string `json:"buying_timeline" gorm:"size:150"`
	ProblemSeverity    string `json:"problem_severity" gorm:"size:150"`
	EconomicBuyer      string `json:"economic_buyer" gorm:"size:150"`
	ICPFit             string `json:"icp_fit" gorm:"size:150"`

	// Evidence sources, audit only
	BudgetEvidence        string `json:"budget_evidence" gorm:"size:150"`
	ReadinessEvidence     string `json:"readiness_evidence" gorm:"size:150"`
	TimelineEvidence      string `json:"timeline_evidence" gorm:"size:150"`
	ProblemEvidence       string `json:"problem_evidence" gorm:"size:150"`
	EconomicBuyerEvidence string `json:"economic_buyer_evidence" gorm:"size:150"`
	ICPFitEvidence        string `json:"icp_fit_evidence" gorm:"size:150"`

	Score              int    `json:"score" gorm:"not null;default:0"`
	QualificationScore int    `json:"qualification_score" gorm:"not null;default:0"`
	WeakestFactor      string `json:"weakest_factor" gorm:"size:30"`

	NurtureFollowUpAt           *time.Time `json:"nurture_follow_up_at,omitempty"`
	DisqualifiedReason          string     `json:"disqualified_reason,omitempty" gorm:"type:text"`
	LossReason                  string     `json:"loss_reason,omitempty" gorm:"type:text"`
	LossCompetitor              string     `json:"loss_competitor,omitempty" gorm:"size:255"`
	QualificationOverrideReason string     `json:"qualification_override_reason,omitempty" gorm:"type:text"`
	ConvertedOpportunityID      *uuid.UUID `json:"converted_opportunity_id,omitempty" gorm:"type:uuid"`
	ConvertedAt                 *time.Time `json:"converted_at,omitempty"`
	FirstTouchedAt              *time.Time `json:"first_touched_at,omitempty"`
}

type LeadStatusHistory struct {
	BaseModel
	TenantID       string     `json:"tenant_id" gorm:"size:64;not null;index"`
	LeadID         uuid.UUID  `json:"lead_id" gorm:"type:uuid;not null;index"`
	FromStatus     LeadStatus `json:"from_status" gorm:"size:20;not null"`
	ToStatus       LeadStatus `json:"to_status" gorm:"size:20;not null"`
	ChangedBy      *uuid.UUID `json:"changed_by,omitempty" gorm:"type:uuid"`
	SystemAsserted bool       `json:"system_asserted" gorm:"not null;default:false"`
	Note           string     `json:"note,omitempty" gorm:"type:text"`
}
