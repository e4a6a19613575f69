package validation

import "regexp"

type redaction struct {
	pattern     *regexp.Regexp
	replacement string
}

// Applied in order; SSNs must be replaced before the phone pattern sees them.
var redactions = []redaction{
	{regexp.MustCompile(`(?i)\b(?:MRN|medical record(?: number| no\.?)?)\s*[:#]?\s*[A-Z0-9-]*\d[A-Z0-9-]*`), "[MRN]"},
	{regexp.MustCompile(`(?i)\b(?:DOB|D\.O\.B\.|date of birth)\s*[:#]?\s*\d{1,4}[/.-]\d{1,2}[/.-]\d{1,4}`), "[DOB]"},
	{regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`), "[SSN]"},
	{regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`), "[EMAIL]"},
	{regexp.MustCompile(`(?:\+?1[-.\s]?)?\(?\b\d{3}\)?[-.\s]?\d{3}[-.\s]\d{4}\b`), "[PHONE]"},
	{regexp.MustCompile(`\b\d{1,2}/\d{1,2}/\d{4}\b`), "[DATE]"},
}

// StripPHI replaces identifiers that must not leave the process with
// placeholders. Clinical content is left as written.
func StripPHI(text string) string {
	for _, r := range redactions {
		text = r.pattern.ReplaceAllString(text, r.replacement)
	}
	return text
}
