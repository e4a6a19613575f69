package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/radorder/radorder/internal/platform/db"
)

// updateSQL builds "UPDATE table SET a=$2, b=$3, updated_at=NOW() WHERE id=$1".
// Column names come from the patch types, never from user input.
func updateSQL(table string, id int64, set []Assignment) (string, []any) {
	clauses := make([]string, 0, len(set)+1)
	args := make([]any, 0, len(set)+1)
	args = append(args, id)
	for _, a := range set {
		args = append(args, a.Value)
		clauses = append(clauses, fmt.Sprintf("%s = $%d", a.Column, len(args)))
	}
	clauses = append(clauses, "updated_at = NOW()")
	return fmt.Sprintf("UPDATE %s SET %s WHERE id = $1", table, strings.Join(clauses, ", ")), args
}

// -- Patient Repository --

type patientRepoPG struct {
	pool *pgxpool.Pool
}

func NewPatientRepo(pool *pgxpool.Pool) PatientRepository {
	return &patientRepoPG{pool: pool}
}

func (r *patientRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const patientCols = `id, organization_id, mrn, first_name, last_name, date_of_birth, gender,
	address_line1, address_line2, city, state, zip_code, phone_number, email,
	is_temporary, created_at, updated_at`

func (r *patientRepoPG) scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(&p.ID, &p.OrganizationID, &p.MRN, &p.FirstName, &p.LastName, &p.DateOfBirth, &p.Gender,
		&p.AddressLine1, &p.AddressLine2, &p.City, &p.State, &p.ZipCode, &p.PhoneNumber, &p.Email,
		&p.IsTemporary, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrPatientNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *patientRepoPG) GetByID(ctx context.Context, id int64) (*Patient, error) {
	return r.scanPatient(r.conn(ctx).QueryRow(ctx, `SELECT `+patientCols+` FROM patients WHERE id = $1`, id))
}

func (r *patientRepoPG) Create(ctx context.Context, p *Patient) error {
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO patients (organization_id, mrn, first_name, last_name, date_of_birth, gender,
			address_line1, address_line2, city, state, zip_code, phone_number, email, is_temporary)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
		RETURNING id, created_at, updated_at`,
		p.OrganizationID, p.MRN, p.FirstName, p.LastName, p.DateOfBirth, p.Gender,
		p.AddressLine1, p.AddressLine2, p.City, p.State, p.ZipCode, p.PhoneNumber, p.Email, p.IsTemporary,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
}

func (r *patientRepoPG) Update(ctx context.Context, id int64, set []Assignment) error {
	query, args := updateSQL("patients", id, set)
	tag, err := r.conn(ctx).Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update patient %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrPatientNotFound
	}
	return nil
}

// -- Insurance Repository --

type insuranceRepoPG struct {
	pool *pgxpool.Pool
}

func NewInsuranceRepo(pool *pgxpool.Pool) InsuranceRepository {
	return &insuranceRepoPG{pool: pool}
}

func (r *insuranceRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const insuranceCols = `id, patient_id, is_primary, insurer_name, policy_number, group_number,
	policy_holder_name, policy_holder_relationship, verification_status, created_at, updated_at`

func (r *insuranceRepoPG) GetPrimary(ctx context.Context, patientID int64) (*Insurance, error) {
	var in Insurance
	err := r.conn(ctx).QueryRow(ctx, `SELECT `+insuranceCols+` FROM patient_insurance
		WHERE patient_id = $1 AND is_primary LIMIT 1`, patientID).
		Scan(&in.ID, &in.PatientID, &in.IsPrimary, &in.InsurerName, &in.PolicyNumber, &in.GroupNumber,
			&in.PolicyHolderName, &in.PolicyHolderRelationship, &in.VerificationStatus, &in.CreatedAt, &in.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &in, nil
}

func (r *insuranceRepoPG) Create(ctx context.Context, in *Insurance) error {
	if in.VerificationStatus == "" {
		in.VerificationStatus = "not_verified"
	}
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO patient_insurance (patient_id, is_primary, insurer_name, policy_number, group_number,
			policy_holder_name, policy_holder_relationship, verification_status)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING id, created_at, updated_at`,
		in.PatientID, in.IsPrimary, in.InsurerName, in.PolicyNumber, in.GroupNumber,
		in.PolicyHolderName, in.PolicyHolderRelationship, in.VerificationStatus,
	).Scan(&in.ID, &in.CreatedAt, &in.UpdatedAt)
}

func (r *insuranceRepoPG) Update(ctx context.Context, id int64, set []Assignment) error {
	query, args := updateSQL("patient_insurance", id, set)
	tag, err := r.conn(ctx).Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update insurance %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("insurance %d not found", id)
	}
	return nil
}
