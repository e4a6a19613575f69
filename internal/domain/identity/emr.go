package identity

import (
	"bufio"
	"strings"
)

// EMRSummary is what ParseEMRSummary could recognize in pasted text.
type EMRSummary struct {
	Patient   PatientEMRPatch `json:"patient"`
	Insurance InsurancePatch  `json:"insurance"`
}

// Empty reports whether nothing was recognized.
func (s EMRSummary) Empty() bool {
	return len(s.Patient.Assignments()) == 0 && len(s.Insurance.Assignments()) == 0
}

type emrField func(s *EMRSummary, v *string)

var emrLabels = map[string]emrField{
	"address":            func(s *EMRSummary, v *string) { s.Patient.AddressLine1 = v },
	"street":             func(s *EMRSummary, v *string) { s.Patient.AddressLine1 = v },
	"address line 1":     func(s *EMRSummary, v *string) { s.Patient.AddressLine1 = v },
	"street address":     func(s *EMRSummary, v *string) { s.Patient.AddressLine1 = v },
	"city":               func(s *EMRSummary, v *string) { s.Patient.City = v },
	"state":              func(s *EMRSummary, v *string) { s.Patient.State = v },
	"zip":                func(s *EMRSummary, v *string) { s.Patient.ZipCode = v },
	"zip code":           func(s *EMRSummary, v *string) { s.Patient.ZipCode = v },
	"zipcode":            func(s *EMRSummary, v *string) { s.Patient.ZipCode = v },
	"postal code":        func(s *EMRSummary, v *string) { s.Patient.ZipCode = v },
	"phone":              func(s *EMRSummary, v *string) { s.Patient.PhoneNumber = v },
	"phone number":       func(s *EMRSummary, v *string) { s.Patient.PhoneNumber = v },
	"home phone":         func(s *EMRSummary, v *string) { s.Patient.PhoneNumber = v },
	"cell phone":         func(s *EMRSummary, v *string) { s.Patient.PhoneNumber = v },
	"mobile":             func(s *EMRSummary, v *string) { s.Patient.PhoneNumber = v },
	"email":              func(s *EMRSummary, v *string) { s.Patient.Email = v },
	"e-mail":             func(s *EMRSummary, v *string) { s.Patient.Email = v },
	"insurance":          func(s *EMRSummary, v *string) { s.Insurance.InsurerName = v },
	"insurer":            func(s *EMRSummary, v *string) { s.Insurance.InsurerName = v },
	"payer":              func(s *EMRSummary, v *string) { s.Insurance.InsurerName = v },
	"primary insurance":  func(s *EMRSummary, v *string) { s.Insurance.InsurerName = v },
	"insurance provider": func(s *EMRSummary, v *string) { s.Insurance.InsurerName = v },
	"policy":             func(s *EMRSummary, v *string) { s.Insurance.PolicyNumber = v },
	"policy number":      func(s *EMRSummary, v *string) { s.Insurance.PolicyNumber = v },
	"policy #":           func(s *EMRSummary, v *string) { s.Insurance.PolicyNumber = v },
	"member id":          func(s *EMRSummary, v *string) { s.Insurance.PolicyNumber = v },
	"subscriber id":      func(s *EMRSummary, v *string) { s.Insurance.PolicyNumber = v },
	"group":              func(s *EMRSummary, v *string) { s.Insurance.GroupNumber = v },
	"group number":       func(s *EMRSummary, v *string) { s.Insurance.GroupNumber = v },
	"group #":            func(s *EMRSummary, v *string) { s.Insurance.GroupNumber = v },
	"policy holder":      func(s *EMRSummary, v *string) { s.Insurance.PolicyHolderName = v },
	"subscriber":         func(s *EMRSummary, v *string) { s.Insurance.PolicyHolderName = v },
	"relationship":       func(s *EMRSummary, v *string) { s.Insurance.PolicyHolderRelationship = v },
}

// ParseEMRSummary extracts contact and insurance fields from "Label: value"
// lines. Unknown labels and blank values are ignored; a later line wins over
// an earlier one with the same meaning.
func ParseEMRSummary(text string) EMRSummary {
	var out EMRSummary
	sc := bufio.NewScanner(strings.NewReader(text))
	for sc.Scan() {
		label, value, ok := strings.Cut(sc.Text(), ":")
		if !ok {
			continue
		}
		label = strings.ToLower(strings.Join(strings.Fields(label), " "))
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		if set, ok := emrLabels[label]; ok {
			v := value
			set(&out, &v)
		}
	}
	return out
}
