package admin

import (
	"reflect"
	"testing"

	"github.com/radorder/radorder/internal/domain/identity"
)

func strPtr(s string) *string { return &s }

func TestMissingPatientFields(t *testing.T) {
	complete := &identity.Patient{
		AddressLine1: strPtr("12 Oak St"),
		City:         strPtr("Springfield"),
		State:        strPtr("IL"),
		ZipCode:      strPtr("62704"),
		PhoneNumber:  strPtr("+12015550123"),
	}
	tests := []struct {
		name string
		p    *identity.Patient
		want []string
	}{
		{"complete", complete, []string{}},
		{"nil", nil, []string{"address", "city", "state", "zip code", "phone number"}},
		{"empty", &identity.Patient{}, []string{"address", "city", "state", "zip code", "phone number"}},
		{"blank phone and zip", &identity.Patient{
			AddressLine1: strPtr("12 Oak St"),
			City:         strPtr("Springfield"),
			State:        strPtr("IL"),
			ZipCode:      strPtr("  "),
		}, []string{"zip code", "phone number"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MissingPatientFields(tt.p); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMissingInsuranceFields(t *testing.T) {
	tests := []struct {
		name string
		in   *identity.Insurance
		want []string
	}{
		{"absent", nil, []string{"primary insurance"}},
		{"insurer only", &identity.Insurance{InsurerName: strPtr("Acme")}, []string{"insurance policy number"}},
		{"policy only", &identity.Insurance{PolicyNumber: strPtr("P-1")}, []string{"insurance provider name"}},
		{"empty row", &identity.Insurance{}, []string{"insurance provider name", "insurance policy number"}},
		{"complete", &identity.Insurance{InsurerName: strPtr("Acme"), PolicyNumber: strPtr("P-1")}, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MissingInsuranceFields(tt.in); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNotReadyError(t *testing.T) {
	r := &Readiness{MissingPatientFields: []string{"city"}, MissingInsuranceFields: []string{"primary insurance"}}
	err := &NotReadyError{MissingFields: r.MissingFields()}
	want := "order is not ready for radiology: missing city, primary insurance"
	if err.Error() != want {
		t.Errorf("got %q, want %q", err.Error(), want)
	}
}
