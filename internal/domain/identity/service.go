package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/ttacon/libphonenumber"

	"github.com/radorder/radorder/internal/platform/db"
)

var (
	ErrPatientNotFound = errors.New("patient not found")
	ErrInvalidPhone    = errors.New("invalid phone number")
	ErrInvalidPatch    = errors.New("invalid patient fields")
)

// DefaultPhoneRegion is used to parse numbers written without a country code.
const DefaultPhoneRegion = "US"

var validate = validator.New()

type Service struct {
	patients    PatientRepository
	insurance   InsuranceRepository
	tx          db.Transactor
	phoneRegion string
}

func NewService(patients PatientRepository, insurance InsuranceRepository, tx db.Transactor, phoneRegion string) *Service {
	if phoneRegion == "" {
		phoneRegion = DefaultPhoneRegion
	}
	return &Service{patients: patients, insurance: insurance, tx: tx, phoneRegion: phoneRegion}
}

// NormalizePhone parses raw in the service's default region and returns it
// in E.164 form.
func (s *Service) NormalizePhone(raw string) (string, error) {
	num, err := libphonenumber.Parse(strings.TrimSpace(raw), s.phoneRegion)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidPhone, err)
	}
	if !libphonenumber.IsValidNumber(num) {
		return "", ErrInvalidPhone
	}
	return libphonenumber.Format(num, libphonenumber.E164), nil
}

// normalizeOptionalPhone leaves nil and blank values untouched.
func (s *Service) normalizeOptionalPhone(p *string) (*string, error) {
	if p == nil || strings.TrimSpace(*p) == "" {
		return p, nil
	}
	n, err := s.NormalizePhone(*p)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

// GetPatientForValidation loads the patient snapshot used by the readiness gate.
func (s *Service) GetPatientForValidation(ctx context.Context, id int64) (*Patient, error) {
	p, err := s.patients.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// GetPrimaryInsurance returns nil without error when the patient has none.
func (s *Service) GetPrimaryInsurance(ctx context.Context, patientID int64) (*Insurance, error) {
	return s.insurance.GetPrimary(ctx, patientID)
}

// UpdatePatientInfo writes the non-nil fields of patch. An empty patch only
// checks that the patient exists.
func (s *Service) UpdatePatientInfo(ctx context.Context, id int64, patch PatientInfoPatch) (int64, error) {
	patch.FirstName = trimmed(patch.FirstName)
	patch.LastName = trimmed(patch.LastName)
	if err := validate.Struct(patch); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidPatch, err)
	}
	phone, err := s.normalizeOptionalPhone(patch.PhoneNumber)
	if err != nil {
		return 0, err
	}
	patch.PhoneNumber = phone
	set := patch.Assignments()
	if len(set) == 0 {
		if _, err := s.patients.GetByID(ctx, id); err != nil {
			return 0, err
		}
		return id, nil
	}
	if err := s.patients.Update(ctx, id, set); err != nil {
		return 0, err
	}
	return id, nil
}

func trimmed(p *string) *string {
	if p == nil {
		return nil
	}
	v := strings.TrimSpace(*p)
	return &v
}

// UpdatePatientFromParsedEmr writes the contact fields found in an EMR
// summary. Nothing is written when the patch is empty.
func (s *Service) UpdatePatientFromParsedEmr(ctx context.Context, id int64, patch PatientEMRPatch) error {
	phone, err := s.normalizeOptionalPhone(patch.PhoneNumber)
	if err != nil {
		return err
	}
	patch.PhoneNumber = phone
	set := patch.Assignments()
	if len(set) == 0 {
		return nil
	}
	return s.patients.Update(ctx, id, set)
}

// UpdateInsuranceFromParsedEmr updates the primary insurance row, creating it
// when the patient has none. Nothing is written when the patch is empty.
func (s *Service) UpdateInsuranceFromParsedEmr(ctx context.Context, patientID int64, patch InsurancePatch) error {
	set := patch.Assignments()
	if len(set) == 0 {
		return nil
	}
	return s.tx.InTx(ctx, func(ctx context.Context) error {
		current, err := s.insurance.GetPrimary(ctx, patientID)
		if err != nil {
			return fmt.Errorf("load primary insurance: %w", err)
		}
		if current == nil {
			in := &Insurance{PatientID: patientID, IsPrimary: true}
			patch.apply(in)
			return s.insurance.Create(ctx, in)
		}
		return s.insurance.Update(ctx, current.ID, set)
	})
}

// CreateTemporaryPatient inserts a patient flagged as temporary and returns its id.
func (s *Service) CreateTemporaryPatient(ctx context.Context, organizationID int64, in TemporaryPatientInput) (int64, error) {
	first, last := strings.TrimSpace(in.FirstName), strings.TrimSpace(in.LastName)
	if first == "" || last == "" {
		return 0, fmt.Errorf("%w: first and last name are required", ErrInvalidPatch)
	}
	p := &Patient{
		OrganizationID: organizationID,
		FirstName:      first,
		LastName:       last,
		IsTemporary:    true,
	}
	if in.DateOfBirth != "" {
		dob, err := time.Parse("2006-01-02", in.DateOfBirth)
		if err != nil {
			return 0, fmt.Errorf("%w: date of birth: %v", ErrInvalidPatch, err)
		}
		p.DateOfBirth = &dob
	}
	if in.Gender != "" {
		g := in.Gender
		p.Gender = &g
	}
	if in.PhoneNumber != "" {
		phone, err := s.NormalizePhone(in.PhoneNumber)
		if err != nil {
			return 0, err
		}
		p.PhoneNumber = &phone
	}
	if err := s.patients.Create(ctx, p); err != nil {
		return 0, fmt.Errorf("create temporary patient: %w", err)
	}
	return p.ID, nil
}
