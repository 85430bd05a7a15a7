// internal/policy/types.go
package policy

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

type Factor string

const (
	FactorBudget        Factor = "budget"
	FactorReadiness     Factor = "readiness"
	FactorTimeline      Factor = "timeline"
	FactorProblem       Factor = "problem"
	FactorEconomicBuyer Factor = "economicBuyer"
	FactorICPFit        Factor = "icpFit"
)

// Factors in tie-break priority order for the weakest-factor diagnostic.
var Factors = []Factor{
	FactorBudget,
	FactorReadiness,
	FactorTimeline,
	FactorProblem,
	FactorEconomicBuyer,
	FactorICPFit,
}

// Data-quality field keys. FieldFirstNameLastName requires both names.
const (
	FieldFirstNameLastName = "firstNameLastName"
	FieldFirstName         = "firstName"
	FieldLastName          = "lastName"
	FieldEmail             = "email"
	FieldPhone             = "phone"
	FieldCompanyName       = "companyName"
	FieldJobTitle          = "jobTitle"
	FieldSource            = "source"
)

var knownFields = map[string]bool{
	FieldFirstNameLastName: true,
	FieldFirstName:         true,
	FieldLastName:          true,
	FieldEmail:             true,
	FieldPhone:             true,
	FieldCompanyName:       true,
	FieldJobTitle:          true,
	FieldSource:            true,
}

func IsKnownField(key string) bool {
	return knownFields[key]
}

func IsKnownFactor(f Factor) bool {
	for _, known := range Factors {
		if known == f {
			return true
		}
	}
	return false
}

// Level is one selectable answer for a factor. Tables list levels from weakest
// to strongest evidence.
type Level struct {
	Level  string `json:"level" yaml:"level"`
	Points int    `json:"points" yaml:"points"`
}

type Thresholds struct {
	Default               int  `json:"default" yaml:"default"`
	ManagerApprovalBelow  int  `json:"manager_approval_below" yaml:"manager_approval_below"`
	BlockBelow            int  `json:"block_below" yaml:"block_below"`
	AllowOverrides        bool `json:"allow_overrides" yaml:"allow_overrides"`
	RequireOverrideReason bool `json:"require_override_reason" yaml:"require_override_reason"`
}

type QualificationPolicy struct {
	FactorTables       map[Factor][]Level `json:"factor_tables" yaml:"factor_tables"`
	DataQualityWeights map[string]int     `json:"data_quality_weights" yaml:"data_quality_weights"`
	EvidenceCatalog    []string           `json:"evidence_catalog" yaml:"evidence_catalog"`
	Thresholds         Thresholds         `json:"thresholds" yaml:"thresholds"`
}

// LevelPoints looks up a selection. known is false for levels missing from the table.
func (p QualificationPolicy) LevelPoints(f Factor, level string) (points int, known bool) {
	key := normalizeKey(level)
	for _, l := range p.FactorTables[f] {
		if normalizeKey(l.Level) == key {
			return l.Points, true
		}
	}
	return 0, false
}

func (p QualificationPolicy) MaxPoints(f Factor) int {
	max := 0
	for _, l := range p.FactorTables[f] {
		if l.Points > max {
			max = l.Points
		}
	}
	return max
}

func (p QualificationPolicy) HasEvidenceSource(source string) bool {
	key := normalizeKey(source)
	for _, s := range p.EvidenceCatalog {
		if normalizeKey(s) == key {
			return true
		}
	}
	return false
}

type Step struct {
	Order           int              `json:"order" yaml:"order"`
	ApproverRole    string           `json:"approver_role" yaml:"approver_role"`
	AmountThreshold *decimal.Decimal `json:"amount_threshold" yaml:"amount_threshold"`
	Purpose         *string          `json:"purpose" yaml:"purpose"`
}

type ApprovalWorkflowPolicy struct {
	Enabled         bool           `json:"enabled" yaml:"enabled"`
	Steps           []Step         `json:"steps" yaml:"steps"`
	SLAHours        map[string]int `json:"sla_hours" yaml:"sla_hours"`
	DefaultSLAHours int            `json:"default_sla_hours" yaml:"default_sla_hours"`
}

// OrderedSteps returns a copy of the steps sorted by order.
func (p ApprovalWorkflowPolicy) OrderedSteps() []Step {
	steps := make([]Step, len(p.Steps))
	copy(steps, p.Steps)
	sort.SliceStable(steps, func(i, j int) bool {
		return steps[i].Order < steps[j].Order
	})
	return steps
}

// SLAHoursFor resolves the base SLA window for a purpose.
func (p ApprovalWorkflowPolicy) SLAHoursFor(purpose string) int {
	key := normalizeKey(purpose)
	for k, hours := range p.SLAHours {
		if normalizeKey(k) == key {
			return hours
		}
	}
	if p.DefaultSLAHours > 0 {
		return p.DefaultSLAHours
	}
	return DefaultSLAHours
}

// Document is the on-disk and stored shape of a tenant's governance policies.
type Document struct {
	Qualification QualificationPolicy    `json:"qualification" yaml:"qualification"`
	Approval      ApprovalWorkflowPolicy `json:"approval" yaml:"approval"`
}

func normalizeKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// SamePurpose compares purposes the way step matching does.
func SamePurpose(a, b string) bool {
	return normalizeKey(a) == normalizeKey(b)
}
