package validation

import (
	"fmt"
	"strings"
)

// PromptInput is everything the prompt is built from. Dictation must
// already be stripped of PHI.
type PromptInput struct {
	Dictation        string
	Modality         string
	AttemptNumber    int
	PreviousFeedback string
}

// BuildPrompt renders the user prompt sent to the validation providers.
func BuildPrompt(in PromptInput) string {
	var b strings.Builder
	b.WriteString("Evaluate the following radiology order dictation for clinical appropriateness ")
	b.WriteString("against current imaging appropriateness criteria.\n\n")
	if in.Modality != "" {
		fmt.Fprintf(&b, "Requested modality: %s\n", in.Modality)
	}
	if in.AttemptNumber > 1 {
		fmt.Fprintf(&b, "This is revision %d of the dictation.", in.AttemptNumber)
		if in.PreviousFeedback != "" {
			fmt.Fprintf(&b, " Feedback on the previous version: %s", in.PreviousFeedback)
		}
		b.WriteString("\n")
	}
	b.WriteString("\nDictation:\n\"\"\"\n")
	b.WriteString(strings.TrimSpace(in.Dictation))
	b.WriteString("\n\"\"\"\n\n")
	b.WriteString("Return a JSON object with:\n")
	b.WriteString("- validationStatus: one of appropriate, inappropriate, needs_clarification\n")
	b.WriteString("- complianceScore: integer from 1 to 9\n")
	b.WriteString("- feedback: concise guidance for the ordering physician\n")
	b.WriteString("- suggestedICD10Codes: array of {code, description, isPrimary, confidence}, primary first\n")
	b.WriteString("- suggestedCPTCodes: array of {code, description, isPrimary, confidence}, primary first\n")
	b.WriteString("- internalReasoning: short explanation of the decision\n")
	return b.String()
}
