package lifecycle

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/javajoker/crm-governance/internal/apperrors"
	"github.com/javajoker/crm-governance/internal/models"
)

func TestContactedIsNeverManual(t *testing.T) {
	for _, from := range statuses {
		_, err := CheckManualTransition(from, models.LeadStatusContacted, Transition{})
		require.Error(t, err, from)
		assert.Equal(t, apperrors.CodeActivityDriven, apperrors.CodeOf(err), from)
		assert.True(t, apperrors.IsKind(err, apperrors.KindPolicyViolation))
	}
}

func TestConvertedOnlyThroughConversion(t *testing.T) {
	_, err := CheckManualTransition(models.LeadStatusQualified, models.LeadStatusConverted, Transition{})
	assert.Equal(t, apperrors.CodeConversionOnly, apperrors.CodeOf(err))

	assert.NoError(t, CheckConversion(models.LeadStatusQualified))
	err = CheckConversion(models.LeadStatusNurture)
	assert.Equal(t, apperrors.CodeIllegalTransition, apperrors.CodeOf(err))
}

func TestManualTransitionTable(t *testing.T) {
	followUp := time.Now().Add(72 * time.Hour)
	fields := Transition{
		NurtureFollowUpAt:  &followUp,
		DisqualifiedReason: "No budget this year",
		LossReason:         "Chose competitor",
	}

	tests := []struct {
		from, to models.LeadStatus
		ok       bool
	}{
		{models.LeadStatusNew, models.LeadStatusNurture, true},
		{models.LeadStatusNew, models.LeadStatusQualified, true},
		{models.LeadStatusNew, models.LeadStatusDisqualified, true},
		{models.LeadStatusNew, models.LeadStatusLost, false},
		{models.LeadStatusContacted, models.LeadStatusQualified, true},
		{models.LeadStatusNurture, models.LeadStatusDisqualified, true},
		{models.LeadStatusDisqualified, models.LeadStatusNurture, true},
		{models.LeadStatusQualified, models.LeadStatusLost, true},
		{models.LeadStatusQualified, models.LeadStatusNurture, false},
		{models.LeadStatusLost, models.LeadStatusQualified, false},
		{models.LeadStatusConverted, models.LeadStatusNew, false},
		{models.LeadStatusQualified, models.LeadStatusNew, false},
	}

	for _, tt := range tests {
		noop, err := CheckManualTransition(tt.from, tt.to, fields)
		assert.False(t, noop)
		if tt.ok {
			assert.NoError(t, err, "%s -> %s", tt.from, tt.to)
		} else {
			assert.Equal(t, apperrors.CodeIllegalTransition, apperrors.CodeOf(err), "%s -> %s", tt.from, tt.to)
		}
	}
}

func TestReentrantTransitionIsNoop(t *testing.T) {
	for _, s := range []models.LeadStatus{models.LeadStatusNew, models.LeadStatusQualified, models.LeadStatusLost, models.LeadStatusConverted} {
		noop, err := CheckManualTransition(s, s, Transition{})
		assert.NoError(t, err)
		assert.True(t, noop)
	}
}

func TestRequiredFields(t *testing.T) {
	cases := map[models.LeadStatus]string{
		models.LeadStatusNurture:      "nurture_follow_up_at",
		models.LeadStatusDisqualified: "disqualified_reason",
	}
	for to, field := range cases {
		_, err := CheckManualTransition(models.LeadStatusNew, to, Transition{DisqualifiedReason: "  "})
		appErr, ok := apperrors.As(err)
		require.True(t, ok)
		assert.Equal(t, apperrors.CodeMissingRequiredField, appErr.Code)
		assert.Equal(t, field, appErr.Details["field"])
	}

	_, err := CheckManualTransition(models.LeadStatusQualified, models.LeadStatusLost, Transition{})
	assert.Equal(t, apperrors.CodeMissingRequiredField, apperrors.CodeOf(err))
}

func TestUnknownStatus(t *testing.T) {
	_, err := CheckManualTransition(models.LeadStatusNew, models.LeadStatus("Won"), Transition{})
	assert.True(t, apperrors.IsKind(err, apperrors.KindValidation))
}

func TestActivityTransition(t *testing.T) {
	to, changed := ActivityTransition(models.LeadStatusNew)
	assert.True(t, changed)
	assert.Equal(t, models.LeadStatusContacted, to)

	for _, from := range []models.LeadStatus{models.LeadStatusContacted, models.LeadStatusNurture, models.LeadStatusQualified, models.LeadStatusLost} {
		to, changed := ActivityTransition(from)
		assert.False(t, changed)
		assert.Equal(t, from, to)
	}
}

func TestNormalize(t *testing.T) {
	s, ok := Normalize(" qualified ")
	assert.True(t, ok)
	assert.Equal(t, models.LeadStatusQualified, s)

	_, ok = Normalize("Won")
	assert.False(t, ok)

	assert.True(t, IsTerminal(models.LeadStatusLost))
	assert.False(t, IsTerminal(models.LeadStatusQualified))
	assert.Equal(t, []models.LeadStatus{models.LeadStatusLost}, AllowedTargets(models.LeadStatusQualified))
}

func TestCheckRequestedTarget(t *testing.T) {
	err := CheckRequestedTarget(models.LeadStatusContacted)
	assert.Equal(t, apperrors.CodeActivityDriven, apperrors.CodeOf(err))

	for _, to := range []models.LeadStatus{models.LeadStatusNurture, models.LeadStatusQualified, models.LeadStatusConverted} {
		assert.NoError(t, CheckRequestedTarget(to))
	}
}
