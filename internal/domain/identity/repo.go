package identity

import "context"

type PatientRepository interface {
	// GetByID returns ErrPatientNotFound when the row is absent.
	GetByID(ctx context.Context, id int64) (*Patient, error)
	Create(ctx context.Context, p *Patient) error
	// Update writes only the given columns. It returns ErrPatientNotFound
	// when no row matched.
	Update(ctx context.Context, id int64, set []Assignment) error
}

type InsuranceRepository interface {
	// GetPrimary returns nil without error when the patient has no primary insurance.
	GetPrimary(ctx context.Context, patientID int64) (*Insurance, error)
	Create(ctx context.Context, in *Insurance) error
	Update(ctx context.Context, id int64, set []Assignment) error
}
