package clinical

import (
	"fmt"
	"strings"
)

// Coding and validation vocabulary shared by the LLM gateway and the order workflow.

// ValidationStatus is the outcome of a clinical appropriateness validation.
type ValidationStatus string

const (
	StatusAppropriate        ValidationStatus = "appropriate"
	StatusInappropriate      ValidationStatus = "inappropriate"
	StatusNeedsClarification ValidationStatus = "needs_clarification"
	StatusOverride           ValidationStatus = "override"
)

// DefaultCodeConfidence is assigned to a suggested code when the provider did not supply one.
const DefaultCodeConfidence = 0.8

var validationStatuses = map[ValidationStatus]bool{
	StatusAppropriate:        true,
	StatusInappropriate:      true,
	StatusNeedsClarification: true,
	StatusOverride:           true,
}

// ParseValidationStatus normalizes s case-insensitively and returns the matching
// status. "needs clarification" is accepted as a spelling of needs_clarification.
func ParseValidationStatus(s string) (ValidationStatus, error) {
	norm := strings.ToLower(strings.TrimSpace(s))
	norm = strings.Join(strings.Fields(norm), "_")
	st := ValidationStatus(norm)
	if !validationStatuses[st] {
		return "", fmt.Errorf("unknown validation status %q", s)
	}
	return st, nil
}

// Valid reports whether st is part of the fixed vocabulary.
func (st ValidationStatus) Valid() bool { return validationStatuses[st] }

func (st ValidationStatus) String() string { return string(st) }

// CodeSuggestion is one ICD-10 or CPT code proposed by a validation provider.
// By convention the first entry of a list is the primary one.
type CodeSuggestion struct {
	Code        string  `json:"code"`
	Description string  `json:"description"`
	IsPrimary   bool    `json:"isPrimary"`
	Confidence  float64 `json:"confidence"`
}

// ValidationResult is the provider-agnostic shape every provider response is
// normalized into before it is trusted.
type ValidationResult struct {
	ValidationStatus    ValidationStatus `json:"validationStatus"`
	ComplianceScore     float64          `json:"complianceScore"`
	Feedback            string           `json:"feedback"`
	SuggestedICD10Codes []CodeSuggestion `json:"suggestedICD10Codes"`
	SuggestedCPTCodes   []CodeSuggestion `json:"suggestedCPTCodes"`
	InternalReasoning   string           `json:"internalReasoning,omitempty"`
}

// Codes returns the bare code values of a suggestion list, preserving order.
func Codes(list []CodeSuggestion) []string {
	out := make([]string, 0, len(list))
	for _, c := range list {
		out = append(out, c.Code)
	}
	return out
}
