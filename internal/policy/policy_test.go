package policy

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/javajoker/crm-governance/internal/apperrors"
)

func problemsOf(t *testing.T, err error) []string {
	t.Helper()
	require.Error(t, err)
	appErr, ok := apperrors.As(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.KindPolicyConfiguration, appErr.Kind)
	assert.Equal(t, apperrors.CodePolicyInvalid, appErr.Code)
	problems, ok := appErr.Details["problems"].([]string)
	require.True(t, ok)
	return problems
}

func TestDefaultPoliciesAreValid(t *testing.T) {
	assert.NoError(t, DefaultQualificationPolicy().Validate())
	assert.NoError(t, DefaultApprovalWorkflowPolicy().Validate())
	assert.NoError(t, DefaultDocument().Validate())
}

func TestQualificationWeightsMustSumTo100(t *testing.T) {
	p := DefaultQualificationPolicy()
	p.DataQualityWeights[FieldEmail] = 30

	problems := problemsOf(t, p.Validate())
	assert.Contains(t, problems, "data quality weights sum to 106, want 100")
}

func TestQualificationFactorMaximaMustSumTo100(t *testing.T) {
	p := DefaultQualificationPolicy()
	p.FactorTables[FactorICPFit] = []Level{{Level: "Strong ICP fit", Points: 5}}

	problems := problemsOf(t, p.Validate())
	assert.Contains(t, problems, "factor maxima sum to 95, want 100")
}

func TestQualificationLevelsMustNotDecrease(t *testing.T) {
	p := DefaultQualificationPolicy()
	p.FactorTables[FactorBudget] = []Level{
		{Level: "Budget allocated and approved", Points: 25},
		{Level: "No defined budget", Points: 5},
	}

	problems := problemsOf(t, p.Validate())
	assert.Contains(t, problems, `factor budget level "No defined budget" scores below a weaker level`)
}

func TestQualificationRejectsMissingFactorAndUnknownField(t *testing.T) {
	p := DefaultQualificationPolicy()
	delete(p.FactorTables, FactorTimeline)
	p.DataQualityWeights["territory"] = 0

	problems := problemsOf(t, p.Validate())
	assert.Contains(t, problems, "factor timeline has no levels")
	assert.Contains(t, problems, `unknown data quality field "territory"`)
}

func TestQualificationThresholdOrdering(t *testing.T) {
	p := DefaultQualificationPolicy()
	p.Thresholds.BlockBelow = 60

	problems := problemsOf(t, p.Validate())
	require.Len(t, problems, 1)
	assert.Contains(t, problems[0], "thresholds must satisfy")
}

func TestApprovalRejectsDuplicateOrder(t *testing.T) {
	p := DefaultApprovalWorkflowPolicy()
	p.Steps[1].Order = 1

	problems := problemsOf(t, p.Validate())
	assert.Contains(t, problems, "step order 1 is duplicated")
}

func TestApprovalRejectsBlankRoleAndNegativeThreshold(t *testing.T) {
	negative := decimal.NewFromInt(-1)
	p := ApprovalWorkflowPolicy{
		Enabled: true,
		Steps:   []Step{{Order: 1, ApproverRole: " ", AmountThreshold: &negative}},
	}

	problems := problemsOf(t, p.Validate())
	assert.Contains(t, problems, "step 1 has no approver role")
	assert.Contains(t, problems, "step 1 has a negative amount threshold")
}

func TestOrderedStepsDoesNotMutatePolicy(t *testing.T) {
	p := ApprovalWorkflowPolicy{Steps: []Step{
		{Order: 3, ApproverRole: "C"},
		{Order: 1, ApproverRole: "A"},
		{Order: 2, ApproverRole: "B"},
	}}

	ordered := p.OrderedSteps()
	assert.Equal(t, []int{1, 2, 3}, []int{ordered[0].Order, ordered[1].Order, ordered[2].Order})
	assert.Equal(t, 3, p.Steps[0].Order)
}

func TestSLAHoursFor(t *testing.T) {
	p := DefaultApprovalWorkflowPolicy()

	assert.Equal(t, 4, p.SLAHoursFor("discount"))
	assert.Equal(t, 8, p.SLAHoursFor(" Close "))
	assert.Equal(t, 24, p.SLAHoursFor("Renewal"))

	p.DefaultSLAHours = 0
	assert.Equal(t, DefaultSLAHours, p.SLAHoursFor("Renewal"))
}

func TestLevelPointsAndEvidence(t *testing.T) {
	p := DefaultQualificationPolicy()

	points, known := p.LevelPoints(FactorBudget, "  budget ALLOCATED and approved ")
	assert.True(t, known)
	assert.Equal(t, 25, points)

	points, known = p.LevelPoints(FactorBudget, "Blank cheque")
	assert.False(t, known)
	assert.Zero(t, points)

	assert.Equal(t, 25, p.MaxPoints(FactorBudget))
	assert.True(t, p.HasEvidenceSource("customer CALL"))
	assert.False(t, p.HasEvidenceSource("Rumour"))
}

func TestParseSeedFile(t *testing.T) {
	doc, err := LoadFile("../../configs/policies/default.yaml")
	require.NoError(t, err)

	assert.True(t, doc.Approval.Enabled)
	require.Len(t, doc.Approval.Steps, 2)
	require.NotNil(t, doc.Approval.Steps[1].AmountThreshold)
	assert.True(t, doc.Approval.Steps[1].AmountThreshold.Equal(decimal.NewFromInt(100000)))
	assert.Nil(t, doc.Approval.Steps[0].AmountThreshold)
	assert.Equal(t, 24, doc.Qualification.DataQualityWeights[FieldEmail])
	assert.Equal(t, 75, doc.Qualification.Thresholds.Default)
}

func TestParseRejectsInvalidDocument(t *testing.T) {
	data := []byte(`
qualification:
  data_quality_weights:
    email: 50
approval:
  enabled: true
  steps:
    - order: 1
      approver_role: Sales Manager
    - order: 1
      approver_role: Sales Director
`)

	_, err := Parse(data)
	problems := problemsOf(t, err)
	assert.Contains(t, problems, "data quality weights sum to 50, want 100")
	assert.Contains(t, problems, "step order 1 is duplicated")
}

func TestParseRejectsUnknownKeys(t *testing.T) {
	_, err := Parse([]byte("qualification:\n  weights: {}\n"))
	assert.Error(t, err)
	assert.False(t, apperrors.IsKind(err, apperrors.KindPolicyConfiguration))
}
