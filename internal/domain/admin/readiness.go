package admin

import (
	"strings"

	"github.com/radorder/radorder/internal/domain/identity"
)

// Field names reported by the readiness gate.
const (
	FieldAddress          = "address"
	FieldCity             = "city"
	FieldState            = "state"
	FieldZipCode          = "zip code"
	FieldPhoneNumber      = "phone number"
	FieldPrimaryInsurance = "primary insurance"
	FieldInsurerName      = "insurance provider name"
	FieldPolicyNumber     = "insurance policy number"
)

func blank(s *string) bool {
	return s == nil || strings.TrimSpace(*s) == ""
}

// MissingPatientFields lists the contact fields the patient record lacks.
// A nil patient lacks all of them.
func MissingPatientFields(p *identity.Patient) []string {
	if p == nil {
		return []string{FieldAddress, FieldCity, FieldState, FieldZipCode, FieldPhoneNumber}
	}
	missing := []string{}
	if blank(p.AddressLine1) {
		missing = append(missing, FieldAddress)
	}
	if blank(p.City) {
		missing = append(missing, FieldCity)
	}
	if blank(p.State) {
		missing = append(missing, FieldState)
	}
	if blank(p.ZipCode) {
		missing = append(missing, FieldZipCode)
	}
	if blank(p.PhoneNumber) {
		missing = append(missing, FieldPhoneNumber)
	}
	return missing
}

// MissingInsuranceFields returns ["primary insurance"] when there is no
// insurance row, otherwise the missing insurer name and policy number.
func MissingInsuranceFields(in *identity.Insurance) []string {
	if in == nil {
		return []string{FieldPrimaryInsurance}
	}
	missing := []string{}
	if blank(in.InsurerName) {
		missing = append(missing, FieldInsurerName)
	}
	if blank(in.PolicyNumber) {
		missing = append(missing, FieldPolicyNumber)
	}
	return missing
}
