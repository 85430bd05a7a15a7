// Package lifecycle is the lead status machine. It only decides legality;
// callers persist the result.
package lifecycle

import (
	"fmt"
	"strings"
	"time"

	"github.com/javajoker/crm-governance/internal/apperrors"
	"github.com/javajoker/crm-governance/internal/models"
)

const ContactedNote = "Auto: Contacted (first touch)"

var statuses = []models.LeadStatus{
	models.LeadStatusNew,
	models.LeadStatusContacted,
	models.LeadStatusNurture,
	models.LeadStatusQualified,
	models.LeadStatusDisqualified,
	models.LeadStatusLost,
	models.LeadStatusConverted,
}

var openTargets = []models.LeadStatus{
	models.LeadStatusNurture,
	models.LeadStatusQualified,
	models.LeadStatusDisqualified,
}

// manualTransitions lists what a caller may request from each status.
var manualTransitions = map[models.LeadStatus][]models.LeadStatus{
	models.LeadStatusNew:          openTargets,
	models.LeadStatusContacted:    openTargets,
	models.LeadStatusNurture:      openTargets,
	models.LeadStatusDisqualified: openTargets,
	models.LeadStatusQualified:    {models.LeadStatusLost},
}

// Transition carries the fields some targets require.
type Transition struct {
	NurtureFollowUpAt  *time.Time
	DisqualifiedReason string
	LossReason         string
}

// Normalize resolves a status name case-insensitively.
func Normalize(s string) (models.LeadStatus, bool) {
	key := strings.TrimSpace(s)
	for _, status := range statuses {
		if strings.EqualFold(string(status), key) {
			return status, true
		}
	}
	return "", false
}

func IsTerminal(s models.LeadStatus) bool {
	return s == models.LeadStatusLost || s == models.LeadStatusConverted
}

// CheckRequestedTarget rejects targets no caller may ever request, whatever the
// lead's current status or lock state.
func CheckRequestedTarget(to models.LeadStatus) error {
	if to == models.LeadStatusContacted {
		return apperrors.PolicyViolation(apperrors.CodeActivityDriven,
			"Contacted is set automatically when a completed activity is logged")
	}
	return nil
}

// CheckManualTransition validates a caller-requested status change. noop is
// true when the lead is already in the target status.
func CheckManualTransition(from, to models.LeadStatus, t Transition) (noop bool, err error) {
	if err := CheckRequestedTarget(to); err != nil {
		return false, err
	}

	if to == models.LeadStatusConverted {
		if from == models.LeadStatusConverted {
			return true, nil
		}
		return false, apperrors.PolicyViolation(apperrors.CodeConversionOnly,
			"leads reach Converted only through conversion")
	}

	if _, ok := Normalize(string(to)); !ok {
		return false, apperrors.Validation(apperrors.CodeValidationFailed,
			fmt.Sprintf("unknown lead status %q", to))
	}

	if from == to {
		return true, nil
	}

	if !allowed(from, to) {
		return false, apperrors.PolicyViolation(apperrors.CodeIllegalTransition,
			fmt.Sprintf("cannot move a lead from %s to %s", from, to)).
			WithDetail("from", string(from)).
			WithDetail("to", string(to))
	}

	switch to {
	case models.LeadStatusNurture:
		if t.NurtureFollowUpAt == nil || t.NurtureFollowUpAt.IsZero() {
			return false, missing("nurture_follow_up_at", "Nurture requires a follow-up date")
		}
	case models.LeadStatusDisqualified:
		if strings.TrimSpace(t.DisqualifiedReason) == "" {
			return false, missing("disqualified_reason", "Disqualified requires a reason")
		}
	case models.LeadStatusLost:
		if strings.TrimSpace(t.LossReason) == "" {
			return false, missing("loss_reason", "Lost requires a loss reason")
		}
	}

	return false, nil
}

// CheckConversion allows conversion from Qualified only.
func CheckConversion(from models.LeadStatus) error {
	if from != models.LeadStatusQualified {
		return apperrors.PolicyViolation(apperrors.CodeIllegalTransition,
			fmt.Sprintf("only Qualified leads can be converted, lead is %s", from)).
			WithDetail("from", string(from)).
			WithDetail("to", string(models.LeadStatusConverted))
	}
	return nil
}

// ActivityTransition is the system-asserted move caused by a completed
// activity. Only New leads advance.
func ActivityTransition(from models.LeadStatus) (models.LeadStatus, bool) {
	if from == models.LeadStatusNew {
		return models.LeadStatusContacted, true
	}
	return from, false
}

// AllowedTargets lists the manual targets reachable from a status.
func AllowedTargets(from models.LeadStatus) []models.LeadStatus {
	targets := manualTransitions[from]
	out := make([]models.LeadStatus, len(targets))
	copy(out, targets)
	return out
}

func allowed(from, to models.LeadStatus) bool {
	for _, target := range manualTransitions[from] {
		if target == to {
			return true
		}
	}
	return false
}

func missing(field, message string) error {
	return apperrors.PolicyViolation(apperrors.CodeMissingRequiredField, message).
		WithDetail("field", field)
}
