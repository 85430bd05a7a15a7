// Package scoring turns lead completeness and factor selections into the
// data-quality score, the qualification score and the weakest-factor diagnostic.
package scoring

import (
	"strings"

	"github.com/javajoker/crm-governance/internal/models"
	"github.com/javajoker/crm-governance/internal/policy"
)

const (
	MinScore = 0
	MaxScore = 100
)

// Input is everything the engine reads. Fields are keyed by the policy's
// data-quality field keys.
type Input struct {
	Fields     map[string]string
	Selections map[policy.Factor]string
}

// FactorScore reports how one factor contributed. Unset means nothing was
// selected; Unknown means the selection is not in the policy table.
type FactorScore struct {
	Factor    policy.Factor `json:"factor"`
	Level     string        `json:"level,omitempty"`
	Earned    int           `json:"earned"`
	Available int           `json:"available"`
	Ratio     float64       `json:"ratio"`
	Unset     bool          `json:"unset"`
	Unknown   bool          `json:"unknown"`
}

type Result struct {
	DataQualityScore   int           `json:"data_quality_score"`
	QualificationScore int           `json:"qualification_score"`
	WeakestFactor      FactorScore   `json:"weakest_factor"`
	Factors            []FactorScore `json:"factors"`
}

// InputFromLead maps a lead onto scoring input.
func InputFromLead(lead *models.Lead) Input {
	return Input{
		Fields: map[string]string{
			policy.FieldFirstName:   lead.FirstName,
			policy.FieldLastName:    lead.LastName,
			policy.FieldEmail:       lead.Email,
			policy.FieldPhone:       lead.Phone,
			policy.FieldCompanyName: lead.CompanyName,
			policy.FieldJobTitle:    lead.JobTitle,
			policy.FieldSource:      lead.Source,
		},
		Selections: map[policy.Factor]string{
			policy.FactorBudget:        lead.BudgetAvailability,
			policy.FactorReadiness:     lead.ReadinessToSpend,
			policy.FactorTimeline:      lead.BuyingTimeline,
			policy.FactorProblem:       lead.ProblemSeverity,
			policy.FactorEconomicBuyer: lead.EconomicBuyer,
			policy.FactorICPFit:        lead.ICPFit,
		},
	}
}

// ComputeScores is pure. It refuses to score under an invalid policy.
func ComputeScores(in Input, p policy.QualificationPolicy) (Result, error) {
	if err := p.Validate(); err != nil {
		return Result{}, err
	}

	result := Result{
		DataQualityScore: DataQualityScore(in.Fields, p.DataQualityWeights),
		Factors:          make([]FactorScore, 0, len(policy.Factors)),
	}

	total := 0
	for _, f := range policy.Factors {
		fs := scoreFactor(f, in.Selections[f], p)
		total += fs.Earned
		result.Factors = append(result.Factors, fs)
	}
	result.QualificationScore = clamp(total)
	result.WeakestFactor = weakest(result.Factors)

	return result, nil
}

// DataQualityScore awards each weighted field whose trimmed value is non-empty.
func DataQualityScore(fields map[string]string, weights map[string]int) int {
	total := 0
	for key, weight := range weights {
		if filled(fields, key) {
			total += weight
		}
	}
	return clamp(total)
}

func filled(fields map[string]string, key string) bool {
	if key == policy.FieldFirstNameLastName {
		return present(fields[policy.FieldFirstName]) && present(fields[policy.FieldLastName])
	}
	return present(fields[key])
}

func present(s string) bool {
	return strings.TrimSpace(s) != ""
}

func scoreFactor(f policy.Factor, selection string, p policy.QualificationPolicy) FactorScore {
	fs := FactorScore{
		Factor:    f,
		Level:     strings.TrimSpace(selection),
		Available: p.MaxPoints(f),
	}

	if fs.Level == "" {
		fs.Unset = true
	} else if points, known := p.LevelPoints(f, fs.Level); known {
		fs.Earned = points
	} else {
		fs.Unknown = true
	}

	if fs.Available > 0 {
		fs.Ratio = float64(fs.Earned) / float64(fs.Available)
	} else {
		fs.Ratio = 1
	}
	return fs
}

// weakest picks the lowest earned/available ratio. Factors arrive in priority
// order and only a strictly lower ratio displaces the current pick.
func weakest(factors []FactorScore) FactorScore {
	var pick FactorScore
	for i, fs := range factors {
		if i == 0 || lowerRatio(fs, pick) {
			pick = fs
		}
	}
	return pick
}

func lowerRatio(a, b FactorScore) bool {
	an, ad := ratioParts(a)
	bn, bd := ratioParts(b)
	return an*bd < bn*ad
}

func ratioParts(fs FactorScore) (int, int) {
	if fs.Available <= 0 {
		return 1, 1
	}
	return fs.Earned, fs.Available
}

func clamp(score int) int {
	if score < MinScore {
		return MinScore
	}
	if score > MaxScore {
		return MaxScore
	}
	return score
}
