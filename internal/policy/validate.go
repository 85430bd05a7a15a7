// internal/policy/validate.go
package policy

import (
	"fmt"
	"sort"
	"strings"

	"github.com/javajoker/crm-governance/internal/apperrors"
)

const TotalPoints = 100

// Validate checks every invariant and reports all violations at once.
func (p QualificationPolicy) Validate() error {
	var problems []string

	for f := range p.FactorTables {
		if !IsKnownFactor(f) {
			problems = append(problems, fmt.Sprintf("unknown factor %q", f))
		}
	}

	maxTotal := 0
	for _, f := range Factors {
		levels, ok := p.FactorTables[f]
		if !ok || len(levels) == 0 {
			problems = append(problems, fmt.Sprintf("factor %s has no levels", f))
			continue
		}

		seen := make(map[string]bool, len(levels))
		prev := -1
		for i, l := range levels {
			key := normalizeKey(l.Level)
			if key == "" {
				problems = append(problems, fmt.Sprintf("factor %s level %d has no name", f, i))
			}
			if seen[key] {
				problems = append(problems, fmt.Sprintf("factor %s level %q is duplicated", f, l.Level))
			}
			seen[key] = true
			if l.Points < 0 {
				problems = append(problems, fmt.Sprintf("factor %s level %q has negative points", f, l.Level))
			}
			if l.Points < prev {
				problems = append(problems, fmt.Sprintf("factor %s level %q scores below a weaker level", f, l.Level))
			}
			prev = l.Points
		}
		maxTotal += p.MaxPoints(f)
	}
	if maxTotal != TotalPoints {
		problems = append(problems, fmt.Sprintf("factor maxima sum to %d, want %d", maxTotal, TotalPoints))
	}

	weightTotal := 0
	for _, key := range sortedKeys(p.DataQualityWeights) {
		weight := p.DataQualityWeights[key]
		if !IsKnownField(key) {
			problems = append(problems, fmt.Sprintf("unknown data quality field %q", key))
		}
		if weight < 0 {
			problems = append(problems, fmt.Sprintf("data quality field %q has negative weight", key))
		}
		weightTotal += weight
	}
	if weightTotal != TotalPoints {
		problems = append(problems, fmt.Sprintf("data quality weights sum to %d, want %d", weightTotal, TotalPoints))
	}

	sources := make(map[string]bool, len(p.EvidenceCatalog))
	for _, s := range p.EvidenceCatalog {
		key := normalizeKey(s)
		if key == "" {
			problems = append(problems, "evidence catalog contains a blank source")
			continue
		}
		if sources[key] {
			problems = append(problems, fmt.Sprintf("evidence source %q is duplicated", s))
		}
		sources[key] = true
	}

	t := p.Thresholds
	if t.BlockBelow < 0 || t.BlockBelow > t.ManagerApprovalBelow || t.ManagerApprovalBelow > t.Default || t.Default > TotalPoints {
		problems = append(problems, fmt.Sprintf(
			"thresholds must satisfy 0 <= block_below (%d) <= manager_approval_below (%d) <= default (%d) <= 100",
			t.BlockBelow, t.ManagerApprovalBelow, t.Default))
	}

	if len(problems) > 0 {
		return apperrors.PolicyInvalid("qualification", problems)
	}
	return nil
}

func (p ApprovalWorkflowPolicy) Validate() error {
	var problems []string

	orders := make(map[int]bool, len(p.Steps))
	for i, s := range p.Steps {
		if s.Order < 1 {
			problems = append(problems, fmt.Sprintf("step %d has order %d, want >= 1", i, s.Order))
		}
		if orders[s.Order] {
			problems = append(problems, fmt.Sprintf("step order %d is duplicated", s.Order))
		}
		orders[s.Order] = true
		if strings.TrimSpace(s.ApproverRole) == "" {
			problems = append(problems, fmt.Sprintf("step %d has no approver role", s.Order))
		}
		if s.AmountThreshold != nil && s.AmountThreshold.IsNegative() {
			problems = append(problems, fmt.Sprintf("step %d has a negative amount threshold", s.Order))
		}
		if s.Purpose != nil && strings.TrimSpace(*s.Purpose) == "" {
			problems = append(problems, fmt.Sprintf("step %d has a blank purpose, use null to match any purpose", s.Order))
		}
	}

	for _, purpose := range sortedKeys(p.SLAHours) {
		if p.SLAHours[purpose] <= 0 {
			problems = append(problems, fmt.Sprintf("sla hours for %q must be positive", purpose))
		}
	}
	if p.DefaultSLAHours < 0 {
		problems = append(problems, "default sla hours must not be negative")
	}

	if len(problems) > 0 {
		return apperrors.PolicyInvalid("approval workflow", problems)
	}
	return nil
}

func (d Document) Validate() error {
	var problems []string
	for _, err := range []error{d.Qualification.Validate(), d.Approval.Validate()} {
		if err == nil {
			continue
		}
		if appErr, ok := apperrors.As(err); ok {
			if list, ok := appErr.Details["problems"].([]string); ok {
				problems = append(problems, list...)
				continue
			}
		}
		problems = append(problems, err.Error())
	}
	if len(problems) > 0 {
		return apperrors.PolicyInvalid("governance", problems)
	}
	return nil
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
