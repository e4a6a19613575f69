package identity

import (
	"time"
)

// Patient maps to the patients table.
type Patient struct {
	ID             int64      `json:"id"`
	OrganizationID int64      `json:"organizationId"`
	MRN            *string    `json:"mrn,omitempty"`
	FirstName      string     `json:"firstName"`
	LastName       string     `json:"lastName"`
	DateOfBirth    *time.Time `json:"dateOfBirth,omitempty"`
	Gender         *string    `json:"gender,omitempty"`
	AddressLine1   *string    `json:"addressLine1,omitempty"`
	AddressLine2   *string    `json:"addressLine2,omitempty"`
	City           *string    `json:"city,omitempty"`
	State          *string    `json:"state,omitempty"`
	ZipCode        *string    `json:"zipCode,omitempty"`
	PhoneNumber    *string    `json:"phoneNumber,omitempty"`
	Email          *string    `json:"email,omitempty"`
	IsTemporary    bool       `json:"isTemporary"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}

// Insurance maps to the patient_insurance table.
type Insurance struct {
	ID                       int64     `json:"id"`
	PatientID                int64     `json:"patientId"`
	IsPrimary                bool      `json:"isPrimary"`
	InsurerName              *string   `json:"insurerName,omitempty"`
	PolicyNumber             *string   `json:"policyNumber,omitempty"`
	GroupNumber              *string   `json:"groupNumber,omitempty"`
	PolicyHolderName         *string   `json:"policyHolderName,omitempty"`
	PolicyHolderRelationship *string   `json:"policyHolderRelationship,omitempty"`
	VerificationStatus       string    `json:"verificationStatus"`
	CreatedAt                time.Time `json:"createdAt"`
	UpdatedAt                time.Time `json:"updatedAt"`
}

// TemporaryPatientInput is the minimal demographic set for a patient created
// while an order is signed.
type TemporaryPatientInput struct {
	FirstName   string
	LastName    string
	DateOfBirth string
	Gender      string
	PhoneNumber string
}

// Assignment is one column = value pair of a sparse UPDATE.
type Assignment struct {
	Column string
	Value  any
}

func appendString(a []Assignment, column string, v *string) []Assignment {
	if v == nil {
		return a
	}
	return append(a, Assignment{Column: column, Value: *v})
}

// PatientInfoPatch carries the demographic fields staff may correct. Only
// non-nil fields are written. Names, date of birth and gender cannot be
// cleared.
type PatientInfoPatch struct {
	FirstName    *string `json:"firstName" validate:"omitnil,min=1"`
	LastName     *string `json:"lastName" validate:"omitnil,min=1"`
	DateOfBirth  *string `json:"dateOfBirth" validate:"omitnil,datetime=2006-01-02"`
	Gender       *string `json:"gender" validate:"omitnil,oneof=male female other unknown"`
	AddressLine1 *string `json:"addressLine1"`
	AddressLine2 *string `json:"addressLine2"`
	City         *string `json:"city"`
	State        *string `json:"state"`
	ZipCode      *string `json:"zipCode"`
	PhoneNumber  *string `json:"phoneNumber"`
	Email        *string `json:"email" validate:"omitempty,email"`
}

func (p PatientInfoPatch) Assignments() []Assignment {
	var a []Assignment
	a = appendString(a, "first_name", p.FirstName)
	a = appendString(a, "last_name", p.LastName)
	if p.DateOfBirth != nil {
		if dob, err := time.Parse("2006-01-02", *p.DateOfBirth); err == nil {
			a = append(a, Assignment{Column: "date_of_birth", Value: dob})
		}
	}
	a = appendString(a, "gender", p.Gender)
	a = appendString(a, "address_line1", p.AddressLine1)
	a = appendString(a, "address_line2", p.AddressLine2)
	a = appendString(a, "city", p.City)
	a = appendString(a, "state", p.State)
	a = appendString(a, "zip_code", p.ZipCode)
	a = appendString(a, "phone_number", p.PhoneNumber)
	a = appendString(a, "email", p.Email)
	return a
}

// PatientEMRPatch carries the contact fields extracted from a pasted EMR summary.
type PatientEMRPatch struct {
	AddressLine1 *string `json:"addressLine1,omitempty"`
	City         *string `json:"city,omitempty"`
	State        *string `json:"state,omitempty"`
	ZipCode      *string `json:"zipCode,omitempty"`
	PhoneNumber  *string `json:"phoneNumber,omitempty"`
	Email        *string `json:"email,omitempty"`
}

func (p PatientEMRPatch) Assignments() []Assignment {
	var a []Assignment
	a = appendString(a, "address_line1", p.AddressLine1)
	a = appendString(a, "city", p.City)
	a = appendString(a, "state", p.State)
	a = appendString(a, "zip_code", p.ZipCode)
	a = appendString(a, "phone_number", p.PhoneNumber)
	a = appendString(a, "email", p.Email)
	return a
}

// InsurancePatch carries the primary-insurance fields extracted from an EMR summary.
type InsurancePatch struct {
	InsurerName              *string `json:"insurerName,omitempty"`
	PolicyNumber             *string `json:"policyNumber,omitempty"`
	GroupNumber              *string `json:"groupNumber,omitempty"`
	PolicyHolderName         *string `json:"policyHolderName,omitempty"`
	PolicyHolderRelationship *string `json:"policyHolderRelationship,omitempty"`
}

func (p InsurancePatch) Assignments() []Assignment {
	var a []Assignment
	a = appendString(a, "insurer_name", p.InsurerName)
	a = appendString(a, "policy_number", p.PolicyNumber)
	a = appendString(a, "group_number", p.GroupNumber)
	a = appendString(a, "policy_holder_name", p.PolicyHolderName)
	a = appendString(a, "policy_holder_relationship", p.PolicyHolderRelationship)
	return a
}

// apply copies the patch onto a new insurance row.
func (p InsurancePatch) apply(in *Insurance) {
	in.InsurerName = p.InsurerName
	in.PolicyNumber = p.PolicyNumber
	in.GroupNumber = p.GroupNumber
	in.PolicyHolderName = p.PolicyHolderName
	in.PolicyHolderRelationship = p.PolicyHolderRelationship
}
