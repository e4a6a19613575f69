package llm

import (
	"errors"
	"fmt"
	"strings"
)

// ErrServiceUnavailable is returned by Gateway.Validate when every configured
// provider failed. It deliberately carries no provider-specific cause.
var ErrServiceUnavailable = errors.New("validation service unavailable")

// ErrMalformedResponse marks a provider response that could not be parsed or
// whose fields have the wrong type.
var ErrMalformedResponse = errors.New("malformed provider response")

// MissingRequiredFieldsError names every canonical field absent from a normalized response.
type MissingRequiredFieldsError struct {
	Fields []string
}

func (e *MissingRequiredFieldsError) Error() string {
	return fmt.Sprintf("missing required fields: %s", strings.Join(e.Fields, ", "))
}

// InvalidValidationStatusError reports a status outside the fixed vocabulary.
type InvalidValidationStatusError struct {
	Status string
}

func (e *InvalidValidationStatusError) Error() string {
	return fmt.Sprintf("invalid validation status: %q", e.Status)
}

// ProviderError is a transport-level failure of a single provider call.
type ProviderError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: status %d: %s", e.Provider, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}
