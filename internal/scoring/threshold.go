package scoring

import "github.com/javajoker/crm-governance/internal/policy"

// Evaluation places a qualification score against the policy thresholds.
type Evaluation struct {
	Score                      int  `json:"score"`
	MeetsDefault               bool `json:"meets_default"`
	ManagerApprovalRecommended bool `json:"manager_approval_recommended"`
	Blocked                    bool `json:"blocked"`
}

func EvaluateThreshold(score int, t policy.Thresholds) Evaluation {
	return Evaluation{
		Score:                      score,
		MeetsDefault:               score >= t.Default,
		ManagerApprovalRecommended: score < t.ManagerApprovalBelow,
		Blocked:                    score < t.BlockBelow,
	}
}

// OverrideAccepted reports whether a blocked score may still qualify.
func OverrideAccepted(t policy.Thresholds, reason string) bool {
	if !t.AllowOverrides {
		return false
	}
	return !t.RequireOverrideReason || present(reason)
}
