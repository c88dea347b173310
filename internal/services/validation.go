package services

import (
	"regexp"
	"strings"

	"github.com/brightreach/leadengine/internal/models"
)

// ValidationResult represents the outcome of validating a raw submission.
// On success Lead holds the validated, immutable lead. On failure Errors
// holds every violated constraint, not just the first.
type ValidationResult struct {
	Valid  bool
	Lead   *models.Lead
	Errors models.ValidationErrors
}

// Validator validates raw lead submissions against the intake schema
type Validator struct {
	emailPattern *regexp.Regexp
}

// NewValidator creates a new Validator instance
func NewValidator() *Validator {
	pattern := regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

	return &Validator{
		emailPattern: pattern,
	}
}

// ValidateLead validates a raw key-value submission and builds a Lead.
// Pure validation: no I/O, no mutation of the input payload.
func (v *Validator) ValidateLead(rawPayload models.JSONB) *ValidationResult {
	result := &ValidationResult{
		Valid:  true,
		Errors: models.ValidationErrors{},
	}

	company := v.requireString(result, rawPayload, "company")
	role := v.requireString(result, rawPayload, "role")
	needs := v.requireStringSet(result, rawPayload, "needs")
	timeline := v.requireString(result, rawPayload, "timeline")
	budget := v.requireString(result, rawPayload, "budget")
	geography := v.requireString(result, rawPayload, "geography")
	name := v.requireString(result, rawPayload, "name")
	email := v.requireEmail(result, rawPayload, "email")
	phone := v.optionalString(rawPayload, "phone")
	currentSite := v.optionalString(rawPayload, "current_site")
	consent := v.requireConsent(result, rawPayload, "consent")

	if len(result.Errors) > 0 {
		result.Valid = false
		return result
	}

	result.Lead = &models.Lead{
		Company:     company,
		Role:        role,
		Needs:       needs,
		Timeline:    timeline,
		Budget:      budget,
		Geography:   geography,
		Name:        name,
		Email:       strings.ToLower(email),
		Phone:       phone,
		CurrentSite: currentSite,
		Consent:     consent,
	}

	return result
}

// requireString extracts a non-empty string field, recording an error on failure
func (v *Validator) requireString(result *ValidationResult, payload models.JSONB, field string) string {
	value, ok := payload[field]
	if !ok || value == nil {
		result.Errors = append(result.Errors, models.NewValidationError(field, "is required"))
		return ""
	}

	str, ok := value.(string)
	if !ok {
		result.Errors = append(result.Errors, models.NewValidationError(field, "must be a string"))
		return ""
	}

	str = strings.TrimSpace(str)
	if str == "" {
		result.Errors = append(result.Errors, models.NewValidationError(field, "must not be empty"))
		return ""
	}

	return str
}

// requireStringSet extracts a non-empty set of strings
func (v *Validator) requireStringSet(result *ValidationResult, payload models.JSONB, field string) []string {
	value, ok := payload[field]
	if !ok || value == nil {
		result.Errors = append(result.Errors, models.NewValidationError(field, "is required"))
		return nil
	}

	var items []string
	switch raw := value.(type) {
	case []string:
		items = raw
	case []interface{}:
		for _, elem := range raw {
			str, ok := elem.(string)
			if !ok {
				result.Errors = append(result.Errors, models.NewValidationError(field, "must contain only strings"))
				return nil
			}
			items = append(items, str)
		}
	default:
		result.Errors = append(result.Errors, models.NewValidationError(field, "must be a list of strings"))
		return nil
	}

	cleaned := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item != "" {
			cleaned = append(cleaned, item)
		}
	}

	if len(cleaned) == 0 {
		result.Errors = append(result.Errors, models.NewValidationError(field, "must not be empty"))
		return nil
	}

	return cleaned
}

// requireEmail extracts and validates an email address
func (v *Validator) requireEmail(result *ValidationResult, payload models.JSONB, field string) string {
	email := v.requireString(result, payload, field)
	if email == "" {
		return ""
	}

	if !v.emailPattern.MatchString(email) {
		result.Errors = append(result.Errors, models.NewValidationError(field, "must be a valid email address"))
		return ""
	}

	return email
}

// requireConsent checks that the consent field is exactly boolean true.
// Any other value, including false, a truthy string, or absence, fails.
func (v *Validator) requireConsent(result *ValidationResult, payload models.JSONB, field string) bool {
	value, ok := payload[field]
	if !ok || value == nil {
		result.Errors = append(result.Errors, models.NewValidationError(field, "consent required"))
		return false
	}

	consent, ok := value.(bool)
	if !ok || !consent {
		result.Errors = append(result.Errors, models.NewValidationError(field, "consent required"))
		return false
	}

	return true
}

// optionalString extracts an optional string field without constraints
func (v *Validator) optionalString(payload models.JSONB, field string) string {
	value, ok := payload[field]
	if !ok || value == nil {
		return ""
	}

	str, ok := value.(string)
	if !ok {
		return ""
	}

	return strings.TrimSpace(str)
}
