// internal/apperrors/errors.go
package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind string

const (
	KindPolicyViolation     Kind = "policy_violation"
	KindRecordLocked        Kind = "record_locked"
	KindAuthorizationDenied Kind = "authorization_denied"
	KindConcurrencyConflict Kind = "concurrency_conflict"
	KindPolicyConfiguration Kind = "policy_configuration"
	KindValidation          Kind = "validation"
	KindNotFound            Kind = "not_found"
	KindInternal            Kind = "internal"
)

// Stable codes. Clients match on these, never on messages.
const (
	CodeActivityDriven        = "ACTIVITY_DRIVEN"
	CodeIllegalTransition     = "ILLEGAL_TRANSITION"
	CodeMissingRequiredField  = "MISSING_REQUIRED_FIELD"
	CodeConversionOnly        = "CONVERSION_ONLY"
	CodeLeadClosed            = "LEAD_CLOSED"
	CodeQualificationBlocked  = "QUALIFICATION_BLOCKED"
	CodeDecisionClosed        = "DECISION_CLOSED"
	CodeRecordLocked          = "RECORD_LOCKED"
	CodeAuthorizationDenied   = "AUTHORIZATION_DENIED"
	CodeConcurrencyConflict   = "CONCURRENCY_CONFLICT"
	CodePolicyInvalid         = "POLICY_INVALID"
	CodeInvalidEvidenceSource = "INVALID_EVIDENCE_SOURCE"
	CodeValidationFailed      = "VALIDATION_FAILED"
	CodeNotFound              = "NOT_FOUND"
	CodeInternal              = "INTERNAL"
)

const LockedMessage = "Record is locked while approval is pending."

type Error struct {
	Kind    Kind
	Code    string
	Message string
	Details map[string]interface{}
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// WithDetail returns e after setting key on its details map.
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

func New(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

func Wrap(err error, kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message, Err: err}
}

func PolicyViolation(code, message string) *Error {
	return New(KindPolicyViolation, code, message)
}

func Forbidden(message string) *Error {
	return New(KindAuthorizationDenied, CodeAuthorizationDenied, message)
}

func Conflict(message string) *Error {
	return New(KindConcurrencyConflict, CodeConcurrencyConflict, message)
}

func Validation(code, message string) *Error {
	return New(KindValidation, code, message)
}

func NotFound(resource string) *Error {
	return New(KindNotFound, CodeNotFound, resource+" not found")
}

func Internal(err error, message string) *Error {
	return Wrap(err, KindInternal, CodeInternal, message)
}

// Locked builds the RecordLocked error for a gated entity and the request holding it.
func Locked(entityType, entityID, requestID string) *Error {
	return New(KindRecordLocked, CodeRecordLocked, LockedMessage).
		WithDetail("entity_type", entityType).
		WithDetail("entity_id", entityID).
		WithDetail("request_id", requestID)
}

// PolicyInvalid collects every invariant violation found in a policy document.
func PolicyInvalid(policyName string, problems []string) *Error {
	return New(KindPolicyConfiguration, CodePolicyInvalid, policyName+" policy is invalid").
		WithDetail("problems", problems)
}

func As(err error) (*Error, bool) {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

func KindOf(err error) Kind {
	if appErr, ok := As(err); ok {
		return appErr.Kind
	}
	return KindInternal
}

func IsKind(err error, kind Kind) bool {
	appErr, ok := As(err)
	return ok && appErr.Kind == kind
}

func CodeOf(err error) string {
	if appErr, ok := As(err); ok {
		return appErr.Code
	}
	return CodeInternal
}

func HTTPStatus(kind Kind) int {
	switch kind {
	case KindPolicyViolation:
		return http.StatusUnprocessableEntity
	case KindRecordLocked:
		return http.StatusLocked
	case KindAuthorizationDenied:
		return http.StatusForbidden
	case KindConcurrencyConflict:
		return http.StatusConflict
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
