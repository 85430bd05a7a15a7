// internal/i18n/keys.go
package i18n

// Translation keys constants
const (
	// Authentication
	KeyAuthRequired     = "auth.required"
	KeyAuthInvalidToken = "auth.invalid_token"
	KeyAuthTokenExpired = "auth.token_expired"
	KeyAuthForbidden    = "auth.forbidden"

	// Requests
	KeyValidationInvalid = "validation.invalid"
	KeyRateLimited       = "request.rate_limited"
	KeyInternalError     = "request.internal_error"

	// Governance
	KeyLeadStatusChanged = "lead.status_changed"
	KeyPolicyStored      = "policy.stored"
	KeyPolicyValid       = "policy.valid"
)

// ErrorKey is the translation key for a stable error code.
func ErrorKey(code string) string {
	return "errors." + code
}
