package llm

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/radorder/radorder/pkg/clinical"
)

// Canonical field names of a normalized provider response.
const (
	FieldValidationStatus    = "validationStatus"
	FieldComplianceScore     = "complianceScore"
	FieldFeedback            = "feedback"
	FieldSuggestedICD10Codes = "suggestedICD10Codes"
	FieldSuggestedCPTCodes   = "suggestedCPTCodes"
	FieldInternalReasoning   = "internalReasoning"
)

// keyAliases maps folded key spellings (lowercase, without '_', '-' or spaces)
// onto canonical field names.
var keyAliases = map[string]string{
	"validationstatus":  FieldValidationStatus,
	"status":            FieldValidationStatus,
	"validation":        FieldValidationStatus,
	"validationresult":  FieldValidationStatus,
	"validationoutcome": FieldValidationStatus,
	"outcome":           FieldValidationStatus,
	"appropriateness":   FieldValidationStatus,

	"compliancescore":      FieldComplianceScore,
	"score":                FieldComplianceScore,
	"compliance":           FieldComplianceScore,
	"compliancerating":     FieldComplianceScore,
	"appropriatenessscore": FieldComplianceScore,

	"feedback":        FieldFeedback,
	"feedbacktext":    FieldFeedback,
	"feedbackmessage": FieldFeedback,
	"message":         FieldFeedback,
	"explanation":     FieldFeedback,
	"comments":        FieldFeedback,
	"comment":         FieldFeedback,

	"suggestedicd10codes":     FieldSuggestedICD10Codes,
	"suggestedicd10":          FieldSuggestedICD10Codes,
	"icd10codes":              FieldSuggestedICD10Codes,
	"icd10code":               FieldSuggestedICD10Codes,
	"icd10":                   FieldSuggestedICD10Codes,
	"icdcodes":                FieldSuggestedICD10Codes,
	"icd10suggestions":        FieldSuggestedICD10Codes,
	"diagnosiscodes":          FieldSuggestedICD10Codes,
	"suggesteddiagnosiscodes": FieldSuggestedICD10Codes,

	"suggestedcptcodes":       FieldSuggestedCPTCodes,
	"suggestedcpt":            FieldSuggestedCPTCodes,
	"cptcodes":                FieldSuggestedCPTCodes,
	"cptcode":                 FieldSuggestedCPTCodes,
	"cpt":                     FieldSuggestedCPTCodes,
	"cptsuggestions":          FieldSuggestedCPTCodes,
	"procedurecodes":          FieldSuggestedCPTCodes,
	"suggestedprocedurecodes": FieldSuggestedCPTCodes,

	"internalreasoning": FieldInternalReasoning,
	"reasoning":         FieldInternalReasoning,
	"rationale":         FieldInternalReasoning,
	"internalnotes":     FieldInternalReasoning,
}

func foldKey(k string) string {
	var b strings.Builder
	b.Grow(len(k))
	for _, r := range strings.ToLower(k) {
		switch r {
		case '_', '-', ' ':
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Normalize maps the key variants of an arbitrary provider response onto the
// canonical field names. Keys that are not recognized pass through unchanged.
// When several keys map to the same field, the exact canonical spelling wins,
// otherwise the first key in lexical order.
func Normalize(raw map[string]any) map[string]any {
	out := make(map[string]any, len(raw))

	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	chosen := make(map[string]string)
	for _, k := range keys {
		canonical, ok := keyAliases[foldKey(k)]
		if !ok {
			out[k] = raw[k]
			continue
		}
		prev, seen := chosen[canonical]
		if !seen || (k == canonical && prev != canonical) {
			chosen[canonical] = k
		}
	}

	for canonical, k := range chosen {
		v := raw[k]
		switch canonical {
		case FieldSuggestedICD10Codes, FieldSuggestedCPTCodes:
			out[canonical] = NormalizeCodeArray(v)
		case FieldComplianceScore:
			out[canonical] = normalizeScore(v)
		case FieldFeedback, FieldInternalReasoning:
			out[canonical] = normalizeText(v)
		case FieldValidationStatus:
			if s, ok := v.(string); ok {
				v = strings.TrimSpace(s)
			}
			out[canonical] = v
		default:
			out[canonical] = v
		}
	}
	return out
}

// NormalizeCodeArray accepts an array of {code, description} objects, a flat
// array of strings or numbers, a single comma-separated string or a single
// number and returns an ordered code list. Entries without an explicit
// confidence get the default; when no entry carried a primary flag, only the
// first one is marked primary. An empty array yields an empty list. Input
// that is unsupported, blank or holds no usable code yields nil.
func NormalizeCodeArray(v any) []clinical.CodeSuggestion {
	var items []any
	switch t := v.(type) {
	case nil:
		return nil
	case string:
		if strings.TrimSpace(t) == "" {
			return nil
		}
		for _, part := range strings.Split(t, ",") {
			items = append(items, part)
		}
	case []string:
		for _, s := range t {
			items = append(items, s)
		}
	case []any:
		if len(t) == 0 {
			return []clinical.CodeSuggestion{}
		}
		items = t
	case []clinical.CodeSuggestion:
		return t
	default:
		code, ok := codeText(t)
		if !ok || code == "" {
			return nil
		}
		items = []any{code}
	}

	out := make([]clinical.CodeSuggestion, 0, len(items))
	explicitPrimary := false
	for _, item := range items {
		var cs clinical.CodeSuggestion
		cs.Confidence = clinical.DefaultCodeConfidence

		if obj, ok := item.(map[string]any); ok {
			var hasPrimary bool
			cs, hasPrimary = codeFromObject(obj)
			explicitPrimary = explicitPrimary || hasPrimary
		} else if code, ok := codeText(item); ok {
			cs.Code = code
		}
		if cs.Code == "" {
			continue
		}
		out = append(out, cs)
	}
	if len(out) == 0 && len(items) > 0 {
		return nil
	}

	if !explicitPrimary && len(out) > 0 {
		out[0].IsPrimary = true
	}
	return out
}

// codeText renders a code given as a string or a JSON number.
func codeText(v any) (string, bool) {
	switch n := v.(type) {
	case string:
		return strings.TrimSpace(n), true
	case float64:
		return strconv.FormatFloat(n, 'f', -1, 64), true
	case float32:
		return strconv.FormatFloat(float64(n), 'f', -1, 32), true
	case int:
		return strconv.Itoa(n), true
	case int64:
		return strconv.FormatInt(n, 10), true
	case interface {
		Float64() (float64, error)
		String() string
	}:
		if _, err := n.Float64(); err != nil {
			return "", false
		}
		return n.String(), true
	}
	return "", false
}

func codeFromObject(obj map[string]any) (clinical.CodeSuggestion, bool) {
	folded := make(map[string]any, len(obj))
	for k, v := range obj {
		folded[foldKey(k)] = v
	}
	first := func(keys ...string) (any, bool) {
		for _, k := range keys {
			if v, ok := folded[k]; ok && v != nil {
				return v, true
			}
		}
		return nil, false
	}

	cs := clinical.CodeSuggestion{Confidence: clinical.DefaultCodeConfidence}
	if v, ok := first("code", "value", "icd10code", "icd10", "cptcode", "cpt"); ok {
		if code, isCode := codeText(v); isCode {
			cs.Code = code
		} else {
			cs.Code = strings.TrimSpace(fmt.Sprint(v))
		}
	}
	if v, ok := first("description", "desc", "display", "name", "text"); ok {
		if s, isStr := v.(string); isStr {
			cs.Description = strings.TrimSpace(s)
		}
	}
	if v, ok := first("confidence"); ok {
		if f, isNum := toFloat(v); isNum {
			cs.Confidence = f
		}
	}
	hasPrimary := false
	if v, ok := first("isprimary", "primary"); ok {
		if b, isBool := toBool(v); isBool {
			cs.IsPrimary = b
			hasPrimary = true
		}
	}
	return cs, hasPrimary
}

func normalizeScore(v any) any {
	if f, ok := toFloat(v); ok {
		return f
	}
	return v
}

func normalizeText(v any) any {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case []any:
		parts := make([]string, 0, len(t))
		for _, p := range t {
			if s, ok := p.(string); ok && strings.TrimSpace(s) != "" {
				parts = append(parts, strings.TrimSpace(s))
			}
		}
		return strings.Join(parts, " ")
	default:
		return v
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	case interface{ Float64() (float64, error) }:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

func toBool(v any) (bool, bool) {
	switch b := v.(type) {
	case bool:
		return b, true
	case string:
		parsed, err := strconv.ParseBool(strings.TrimSpace(b))
		return parsed, err == nil
	}
	return false, false
}
