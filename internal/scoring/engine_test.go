package scoring

import (
	"testing"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/javajoker/crm-governance/internal/apperrors"
	"github.com/javajoker/crm-governance/internal/models"
	"github.com/javajoker/crm-governance/internal/policy"
)

func fakeLead(faker *gofakeit.Faker) *models.Lead {
	lead := &models.Lead{}
	// Leave a random subset of contact fields empty.
	if faker.Bool() {
		lead.FirstName = faker.FirstName()
	}
	if faker.Bool() {
		lead.LastName = faker.LastName()
	}
	if faker.Bool() {
		lead.Email = faker.Email()
	}
	if faker.Bool() {
		lead.Phone = faker.Phone()
	}
	if faker.Bool() {
		lead.CompanyName = faker.Company()
	}
	if faker.Bool() {
		lead.JobTitle = faker.JobTitle()
	}
	if faker.Bool() {
		lead.Source = faker.RandomString([]string{"Web", "Referral", "Event", "Outbound"})
	}
	return lead
}

func setSelection(lead *models.Lead, f policy.Factor, level string) {
	switch f {
	case policy.FactorBudget:
		lead.BudgetAvailability = level
	case policy.FactorReadiness:
		lead.ReadinessToSpend = level
	case policy.FactorTimeline:
		lead.BuyingTimeline = level
	case policy.FactorProblem:
		lead.ProblemSeverity = level
	case policy.FactorEconomicBuyer:
		lead.EconomicBuyer = level
	case policy.FactorICPFit:
		lead.ICPFit = level
	}
}

func TestBudgetOnlyScenario(t *testing.T) {
	p := policy.DefaultQualificationPolicy()
	lead := &models.Lead{FirstName: "Ada", LastName: "Lovelace", Email: "ada@example.com"}

	base, err := ComputeScores(InputFromLead(lead), p)
	require.NoError(t, err)
	assert.Equal(t, 40, base.DataQualityScore)
	assert.Zero(t, base.QualificationScore)

	for level, want := range map[string]int{
		"No defined budget":                5,
		"Budget identified but unapproved": 15,
		"Budget allocated and approved":    25,
	} {
		lead.BudgetAvailability = level
		result, err := ComputeScores(InputFromLead(lead), p)
		require.NoError(t, err)
		assert.Equal(t, want, result.QualificationScore, level)
		assert.Equal(t, base.DataQualityScore, result.DataQualityScore, level)
	}
}

func TestDataQualityIndependentAndQualificationMonotone(t *testing.T) {
	p := policy.DefaultQualificationPolicy()
	faker := gofakeit.New(42)

	for i := 0; i < 25; i++ {
		lead := fakeLead(faker)
		start, err := ComputeScores(InputFromLead(lead), p)
		require.NoError(t, err)

		previous := start.QualificationScore
		for _, f := range policy.Factors {
			for _, level := range p.FactorTables[f] {
				setSelection(lead, f, level.Level)

				result, err := ComputeScores(InputFromLead(lead), p)
				require.NoError(t, err)
				assert.Equal(t, start.DataQualityScore, result.DataQualityScore)
				assert.GreaterOrEqual(t, result.QualificationScore, previous)
				previous = result.QualificationScore
			}
		}
		assert.Equal(t, MaxScore, previous)
	}
}

func TestScoresStayInBounds(t *testing.T) {
	p := policy.DefaultQualificationPolicy()
	faker := gofakeit.New(7)

	for i := 0; i < 50; i++ {
		lead := fakeLead(faker)
		for _, f := range policy.Factors {
			levels := p.FactorTables[f]
			setSelection(lead, f, levels[faker.Number(0, len(levels)-1)].Level)
		}

		result, err := ComputeScores(InputFromLead(lead), p)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, result.DataQualityScore, MinScore)
		assert.LessOrEqual(t, result.DataQualityScore, MaxScore)
		assert.GreaterOrEqual(t, result.QualificationScore, MinScore)
		assert.LessOrEqual(t, result.QualificationScore, MaxScore)
	}
}

func TestComputeIsIdempotent(t *testing.T) {
	lead := fakeLead(gofakeit.New(3))
	lead.BuyingTimeline = "Rough timeline mentioned"
	p := policy.DefaultQualificationPolicy()

	first, err := ComputeScores(InputFromLead(lead), p)
	require.NoError(t, err)
	second, err := ComputeScores(InputFromLead(lead), p)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestFullNameNeedsBothParts(t *testing.T) {
	weights := policy.DefaultQualificationPolicy().DataQualityWeights

	assert.Zero(t, DataQualityScore(map[string]string{policy.FieldFirstName: "Ada"}, weights))
	assert.Zero(t, DataQualityScore(map[string]string{policy.FieldFirstName: "Ada", policy.FieldLastName: "   "}, weights))
	assert.Equal(t, 16, DataQualityScore(map[string]string{policy.FieldFirstName: "Ada", policy.FieldLastName: "Lovelace"}, weights))
}

func TestUnknownLevelIsDistinctFromUnset(t *testing.T) {
	p := policy.DefaultQualificationPolicy()
	lead := &models.Lead{BudgetAvailability: "Blank cheque"}

	result, err := ComputeScores(InputFromLead(lead), p)
	require.NoError(t, err)
	assert.Zero(t, result.QualificationScore)

	budget := result.Factors[0]
	assert.Equal(t, policy.FactorBudget, budget.Factor)
	assert.True(t, budget.Unknown)
	assert.False(t, budget.Unset)

	readiness := result.Factors[1]
	assert.True(t, readiness.Unset)
	assert.False(t, readiness.Unknown)
}

func TestWeakestFactorTieBreaksByPriority(t *testing.T) {
	p := policy.DefaultQualificationPolicy()

	result, err := ComputeScores(Input{}, p)
	require.NoError(t, err)
	assert.Equal(t, policy.FactorBudget, result.WeakestFactor.Factor)

	// Economic buyer and ICP fit tie at half; economic buyer has priority.
	lead := &models.Lead{
		BudgetAvailability: "Budget allocated and approved",
		ReadinessToSpend:   "Internal decision in progress",
		BuyingTimeline:     "Target date verbally confirmed",
		ProblemSeverity:    "Critical business impact",
		EconomicBuyer:      "Influencer identified",
		ICPFit:             "Partial ICP fit",
	}
	result, err = ComputeScores(InputFromLead(lead), p)
	require.NoError(t, err)
	assert.Equal(t, policy.FactorEconomicBuyer, result.WeakestFactor.Factor)
	assert.InDelta(t, 0.5, result.WeakestFactor.Ratio, 0.0001)
	assert.Equal(t, 87, result.QualificationScore)
}

func TestRefusesInvalidPolicy(t *testing.T) {
	p := policy.DefaultQualificationPolicy()
	p.DataQualityWeights[policy.FieldEmail] = 0

	_, err := ComputeScores(Input{}, p)
	assert.True(t, apperrors.IsKind(err, apperrors.KindPolicyConfiguration))
}

func TestEvaluateThreshold(t *testing.T) {
	thresholds := policy.DefaultQualificationPolicy().Thresholds

	high := EvaluateThreshold(80, thresholds)
	assert.True(t, high.MeetsDefault)
	assert.False(t, high.ManagerApprovalRecommended)
	assert.False(t, high.Blocked)

	mid := EvaluateThreshold(40, thresholds)
	assert.False(t, mid.MeetsDefault)
	assert.True(t, mid.ManagerApprovalRecommended)
	assert.False(t, mid.Blocked)

	low := EvaluateThreshold(10, thresholds)
	assert.True(t, low.Blocked)

	assert.False(t, OverrideAccepted(thresholds, " "))
	assert.True(t, OverrideAccepted(thresholds, "Strategic logo"))

	thresholds.RequireOverrideReason = false
	assert.True(t, OverrideAccepted(thresholds, ""))

	thresholds.AllowOverrides = false
	assert.False(t, OverrideAccepted(thresholds, "Strategic logo"))
}
