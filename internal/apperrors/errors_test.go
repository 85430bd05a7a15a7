package apperrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLockedCarriesEntityAndRequest(t *testing.T) {
	err := Locked("opportunity", "opp-1", "req-9")

	assert.Equal(t, KindRecordLocked, err.Kind)
	assert.Equal(t, CodeRecordLocked, err.Code)
	assert.Equal(t, LockedMessage, err.Message)
	assert.Equal(t, "opp-1", err.Details["entity_id"])
	assert.Equal(t, "req-9", err.Details["request_id"])
}

func TestKindSurvivesWrapping(t *testing.T) {
	base := Conflict("lost the race")
	wrapped := fmt.Errorf("decide: %w", base)

	assert.True(t, IsKind(wrapped, KindConcurrencyConflict))
	assert.Equal(t, CodeConcurrencyConflict, CodeOf(wrapped))

	appErr, ok := As(wrapped)
	require.True(t, ok)
	assert.Same(t, base, appErr)
}

func TestPlainErrorsAreInternal(t *testing.T) {
	err := errors.New("boom")

	assert.Equal(t, KindInternal, KindOf(err))
	assert.Equal(t, CodeInternal, CodeOf(err))
	assert.False(t, IsKind(err, KindNotFound))
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		kind   Kind
		status int
	}{
		{KindPolicyViolation, http.StatusUnprocessableEntity},
		{KindRecordLocked, http.StatusLocked},
		{KindAuthorizationDenied, http.StatusForbidden},
		{KindConcurrencyConflict, http.StatusConflict},
		{KindPolicyConfiguration, http.StatusInternalServerError},
		{KindValidation, http.StatusBadRequest},
		{KindNotFound, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			assert.Equal(t, tt.status, HTTPStatus(tt.kind))
		})
	}
}

func TestWrapUnwraps(t *testing.T) {
	cause := errors.New("connection reset")
	err := Internal(cause, "failed to load request")

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "connection reset")
}
