// internal/policy/defaults.go
package policy

import "github.com/shopspring/decimal"

const DefaultSLAHours = 24

const (
	PurposeClose    = "Close"
	PurposeDiscount = "Discount"
)

// DefaultQualificationPolicy returns a fresh copy of the built-in policy.
func DefaultQualificationPolicy() QualificationPolicy {
	return QualificationPolicy{
		FactorTables: map[Factor][]Level{
			FactorBudget: {
				{Level: "Unknown / not yet discussed", Points: 0},
				{Level: "Budget explicitly unavailable", Points: 0},
				{Level: "No defined budget", Points: 5},
				{Level: "Indicative range mentioned", Points: 15},
				{Level: "Budget identified but unapproved", Points: 15},
				{Level: "Budget allocated and approved", Points: 25},
			},
			FactorReadiness: {
				{Level: "Unknown / unclear", Points: 0},
				{Level: "Not planning to spend", Points: 0},
				{Level: "Interest expressed, no urgency", Points: 8},
				{Level: "Actively evaluating solutions", Points: 15},
				{Level: "Internal decision in progress", Points: 20},
				{Level: "Ready to proceed pending final step", Points: 20},
			},
			FactorTimeline: {
				{Level: "Unknown / not discussed", Points: 0},
				{Level: "No defined timeline", Points: 0},
				{Level: "Date missed / repeatedly pushed", Points: 0},
				{Level: "Rough timeline mentioned", Points: 6},
				{Level: "Target date verbally confirmed", Points: 12},
				{Level: "Decision date confirmed internally", Points: 15},
			},
			FactorProblem: {
				{Level: "Unknown / not validated", Points: 0},
				{Level: "Problem acknowledged but deprioritized", Points: 0},
				{Level: "Mild inconvenience", Points: 2},
				{Level: "Recognized operational problem", Points: 8},
				{Level: "Critical business impact", Points: 20},
				{Level: "Executive-level priority", Points: 20},
			},
			FactorEconomicBuyer: {
				{Level: "Unknown / not identified", Points: 0},
				{Level: "Buyer explicitly not involved", Points: 0},
				{Level: "Influencer identified", Points: 5},
				{Level: "Buyer identified, not engaged", Points: 5},
				{Level: "Buyer engaged in discussion", Points: 10},
				{Level: "Buyer verbally supportive", Points: 10},
			},
			FactorICPFit: {
				{Level: "Unknown / not assessed", Points: 0},
				{Level: "Clearly out of ICP", Points: 0},
				{Level: "Out-of-profile but exploratory", Points: 5},
				{Level: "Partial ICP fit", Points: 5},
				{Level: "Strong ICP fit", Points: 10},
			},
		},
		DataQualityWeights: map[string]int{
			FieldFirstNameLastName: 16,
			FieldEmail:             24,
			FieldPhone:             24,
			FieldCompanyName:       16,
			FieldJobTitle:          12,
			FieldSource:            8,
		},
		EvidenceCatalog: []string{
			"No evidence yet",
			"Customer call",
			"Call notes",
			"Call recap",
			"Follow-up call notes",
			"Discovery call notes",
			"Discovery meeting notes",
			"Meeting notes",
			"Email confirmation",
			"Email from buyer",
			"Buyer email",
			"Written confirmation",
			"Chat transcript",
			"Proposal feedback",
			"Internal plan mention",
			"Ops review notes",
			"Org chart reference",
			"Account research",
			"Third-party confirmation",
			"Historical / prior deal",
			"Inferred from context",
		},
		Thresholds: Thresholds{
			Default:               75,
			ManagerApprovalBelow:  50,
			BlockBelow:            25,
			AllowOverrides:        true,
			RequireOverrideReason: true,
		},
	}
}

func DefaultApprovalWorkflowPolicy() ApprovalWorkflowPolicy {
	discount := PurposeDiscount
	closePurpose := PurposeClose
	closeThreshold := decimal.NewFromInt(100000)

	return ApprovalWorkflowPolicy{
		Enabled: true,
		Steps: []Step{
			{Order: 1, ApproverRole: "Sales Manager", Purpose: &discount},
			{Order: 2, ApproverRole: "Sales Director", Purpose: &closePurpose, AmountThreshold: &closeThreshold},
		},
		SLAHours: map[string]int{
			PurposeDiscount: 4,
			PurposeClose:    8,
		},
		DefaultSLAHours: DefaultSLAHours,
	}
}

func DefaultDocument() Document {
	return Document{
		Qualification: DefaultQualificationPolicy(),
		Approval:      DefaultApprovalWorkflowPolicy(),
	}
}
