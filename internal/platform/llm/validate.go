package llm

import (
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/radorder/radorder/pkg/clinical"
)

// requiredFields lists the canonical fields in the order they are reported.
var requiredFields = []string{
	FieldValidationStatus,
	FieldComplianceScore,
	FieldFeedback,
	FieldSuggestedICD10Codes,
	FieldSuggestedCPTCodes,
}

// requiredRules uses "required", which rejects absent keys and zero values:
// an empty status or feedback, a zero score or a nil code list.
var requiredRules = func() map[string]interface{} {
	rules := make(map[string]interface{}, len(requiredFields))
	for _, f := range requiredFields {
		rules[f] = "required"
	}
	return rules
}()

var validate = validator.New()

// ValidateRequired fails with MissingRequiredFieldsError naming every
// required canonical field that is absent or empty.
func ValidateRequired(normalized map[string]any) error {
	errs := validate.ValidateMap(normalized, requiredRules)
	if len(errs) == 0 {
		return nil
	}
	var missing []string
	for _, f := range requiredFields {
		if _, bad := errs[f]; bad {
			missing = append(missing, f)
		}
	}
	return &MissingRequiredFieldsError{Fields: missing}
}

// ValidateStatus checks the status against the fixed vocabulary after
// case-insensitive normalization.
func ValidateStatus(normalized map[string]any) (clinical.ValidationStatus, error) {
	raw, ok := normalized[FieldValidationStatus].(string)
	if !ok {
		return "", &InvalidValidationStatusError{Status: fmt.Sprint(normalized[FieldValidationStatus])}
	}
	st, err := clinical.ParseValidationStatus(raw)
	if err != nil {
		return "", &InvalidValidationStatusError{Status: raw}
	}
	return st, nil
}

// Canonicalize normalizes a raw provider response and validates it into the
// canonical result. Any error means the response must not be trusted.
func Canonicalize(raw map[string]any) (*clinical.ValidationResult, error) {
	normalized := Normalize(raw)
	if err := ValidateRequired(normalized); err != nil {
		return nil, err
	}
	status, err := ValidateStatus(normalized)
	if err != nil {
		return nil, err
	}

	score, ok := normalized[FieldComplianceScore].(float64)
	if !ok {
		return nil, fmt.Errorf("%w: %s is not numeric", ErrMalformedResponse, FieldComplianceScore)
	}
	feedback, ok := normalized[FieldFeedback].(string)
	if !ok {
		return nil, fmt.Errorf("%w: %s is not text", ErrMalformedResponse, FieldFeedback)
	}
	icd10, ok := normalized[FieldSuggestedICD10Codes].([]clinical.CodeSuggestion)
	if !ok {
		return nil, fmt.Errorf("%w: %s is not a code list", ErrMalformedResponse, FieldSuggestedICD10Codes)
	}
	cpt, ok := normalized[FieldSuggestedCPTCodes].([]clinical.CodeSuggestion)
	if !ok {
		return nil, fmt.Errorf("%w: %s is not a code list", ErrMalformedResponse, FieldSuggestedCPTCodes)
	}

	result := &clinical.ValidationResult{
		ValidationStatus:    status,
		ComplianceScore:     score,
		Feedback:            feedback,
		SuggestedICD10Codes: icd10,
		SuggestedCPTCodes:   cpt,
	}
	if reasoning, ok := normalized[FieldInternalReasoning].(string); ok {
		result.InternalReasoning = reasoning
	}
	return result, nil
}
