// internal/utils/validator.go
package utils

import (
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/javajoker/crm-governance/internal/apperrors"
	"github.com/javajoker/crm-governance/internal/lifecycle"
	"github.com/javajoker/crm-governance/internal/models"
)

var validate *validator.Validate

var currencyPattern = regexp.MustCompile(`^[A-Za-z]{3}$`)

func init() {
	validate = validator.New()
	validate.RegisterValidation("lead_status", validateLeadStatus)
	validate.RegisterValidation("decision_action", validateDecisionAction)
	validate.RegisterValidation("currency_code", validateCurrencyCode)
}

func ValidateStruct(s interface{}) error {
	return validate.Struct(s)
}

// ValidationFailure turns a validator error into a validation AppError with
// per-field details.
func ValidationFailure(err error) *apperrors.Error {
	appErr := apperrors.Validation(apperrors.CodeValidationFailed, "request validation failed")
	if fields := GetValidationErrors(err); len(fields) > 0 {
		appErr.WithDetail("fields", fields)
	} else if err != nil {
		appErr.WithDetail("reason", err.Error())
	}
	return appErr
}

func validateLeadStatus(fl validator.FieldLevel) bool {
	_, ok := lifecycle.Normalize(fl.Field().String())
	return ok
}

func validateDecisionAction(fl validator.FieldLevel) bool {
	_, ok := models.ParseStepDecision(fl.Field().String())
	return ok
}

func validateCurrencyCode(fl validator.FieldLevel) bool {
	return currencyPattern.MatchString(fl.Field().String())
}

// Validation tags for common fields
type ValidationError struct {
	Field   string `json:"field"`
	Tag     string `json:"tag"`
	Message string `json:"message"`
}

func GetValidationErrors(err error) []ValidationError {
	var validationErrors []ValidationError

	if validationErrs, ok := err.(validator.ValidationErrors); ok {
		for _, e := range validationErrs {
			validationErrors = append(validationErrors, ValidationError{
				Field:   strings.ToLower(e.Field()),
				Tag:     e.Tag(),
				Message: getValidationMessage(e),
			})
		}
	}

	return validationErrors
}

func getValidationMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return e.Field() + " is required"
	case "email":
		return "Invalid email format"
	case "min":
		return e.Field() + " must be at least " + e.Param()
	case "max":
		return e.Field() + " must be at most " + e.Param()
	case "lead_status":
		return "Status must be one of New, Contacted, Nurture, Qualified, Disqualified, Lost, Converted"
	case "decision_action":
		return "Decision must be Approved or Rejected"
	case "currency_code":
		return "Currency must be a three-letter ISO code"
	default:
		return e.Field() + " is invalid"
	}
}
