package utils

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/javajoker/crm-governance/internal/apperrors"
)

type statusChange struct {
	Status   string `validate:"required,lead_status"`
	Decision string `validate:"omitempty,decision_action"`
	Currency string `validate:"omitempty,currency_code"`
}

func TestCustomValidators(t *testing.T) {
	assert.NoError(t, ValidateStruct(statusChange{Status: "qualified", Decision: "approve", Currency: "eur"}))

	err := ValidateStruct(statusChange{Status: "Won", Decision: "maybe", Currency: "EURO"})
	require.Error(t, err)

	fields := GetValidationErrors(err)
	require.Len(t, fields, 3)
	assert.Equal(t, "lead_status", fields[0].Tag)
	assert.Equal(t, "decision_action", fields[1].Tag)
	assert.Equal(t, "currency_code", fields[2].Tag)

	appErr := ValidationFailure(err)
	assert.Equal(t, apperrors.KindValidation, appErr.Kind)
	assert.Len(t, appErr.Details["fields"], 3)
}

func TestJWTRoundTrip(t *testing.T) {
	SetJWTSecret("test-secret")
	userID := uuid.New()

	token, err := GenerateJWT(userID, "rep", "acme", []string{"Sales Rep"}, 1)
	require.NoError(t, err)

	claims, err := ValidateJWT(token)
	require.NoError(t, err)

	actor, err := claims.Actor("default")
	require.NoError(t, err)
	assert.Equal(t, userID, actor.UserID)
	assert.Equal(t, "acme", actor.TenantID)
	assert.Equal(t, []string{"Sales Rep"}, actor.Roles)

	SetJWTSecret("another-secret")
	_, err = ValidateJWT(token)
	assert.Error(t, err)
}

func TestClaimsDefaultTenant(t *testing.T) {
	claims := &JWTClaims{UserID: uuid.NewString()}
	actor, err := claims.Actor("default")
	require.NoError(t, err)
	assert.Equal(t, "default", actor.TenantID)

	claims.UserID = "42"
	_, err = claims.Actor("default")
	assert.Error(t, err)
}

func TestAppErrorResponse(t *testing.T) {
	gin.SetMode(gin.TestMode)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPatch, "/v1/opportunities/1", nil)

	AppErrorResponse(c, apperrors.Locked("opportunity", "opp-1", "req-1"))

	assert.Equal(t, http.StatusLocked, w.Code)
	var body APIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.False(t, body.Success)
	require.NotNil(t, body.Error)
	assert.Equal(t, apperrors.CodeRecordLocked, body.Error.Code)
	details := body.Error.Details.(map[string]interface{})
	assert.Equal(t, "req-1", details["request_id"])
	assert.Equal(t, "opp-1", details["entity_id"])
}

func TestNormalizePagination(t *testing.T) {
	p := NormalizePagination(PaginationParams{Page: 0, Limit: 500, Order: "sideways"})
	assert.Equal(t, 1, p.Page)
	assert.Equal(t, 20, p.Limit)
	assert.Equal(t, "desc", p.Order)
	assert.Equal(t, "created_at", p.Sort)

	result := CreatePaginationResult([]int{1, 2}, 41, p)
	assert.Equal(t, 3, result.TotalPages)
}
