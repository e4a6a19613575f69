package order

import (
	"context"
	"errors"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/radorder/radorder/internal/platform/db"
	"github.com/radorder/radorder/pkg/clinical"
)

// =========== Order Repository ===========

type orderRepoPG struct{ pool *pgxpool.Pool }

func NewOrderRepoPG(pool *pgxpool.Pool) OrderRepository {
	return &orderRepoPG{pool: pool}
}

func (r *orderRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const orderCols = `id, order_number, patient_id, referring_organization_id, radiology_organization_id,
	created_by_user_id, signed_by_user_id, updated_by_user_id,
	status, priority, original_dictation, clinical_indication, modality,
	final_cpt_code, final_cpt_code_description, final_icd10_codes, final_icd10_code_descriptions,
	is_contrast_indicated, final_validation_status, final_compliance_score,
	overridden, override_justification, is_urgent_override,
	signature_file_key, signature_date, validated_at, cancellation_reason, created_at, updated_at`

func scanOrder(row pgx.Row) (*Order, error) {
	var o Order
	err := row.Scan(&o.ID, &o.OrderNumber, &o.PatientID, &o.ReferringOrganizationID, &o.RadiologyOrganizationID,
		&o.CreatedByUserID, &o.SignedByUserID, &o.UpdatedByUserID,
		&o.Status, &o.Priority, &o.OriginalDictation, &o.ClinicalIndication, &o.Modality,
		&o.FinalCPTCode, &o.FinalCPTCodeDescription, &o.FinalICD10Codes, &o.FinalICD10CodeDescriptions,
		&o.IsContrastIndicated, &o.FinalValidationStatus, &o.FinalComplianceScore,
		&o.Overridden, &o.OverrideJustification, &o.IsUrgentOverride,
		&o.SignatureFileKey, &o.SignatureDate, &o.ValidatedAt, &o.CancellationReason, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *orderRepoPG) Create(ctx context.Context, o *Order) error {
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO orders (order_number, patient_id, referring_organization_id, radiology_organization_id,
			created_by_user_id, updated_by_user_id, status, priority, original_dictation, clinical_indication, modality)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		RETURNING id, created_at, updated_at`,
		o.OrderNumber, o.PatientID, o.ReferringOrganizationID, o.RadiologyOrganizationID,
		o.CreatedByUserID, o.UpdatedByUserID, o.Status, o.Priority, o.OriginalDictation, o.ClinicalIndication, o.Modality,
	).Scan(&o.ID, &o.CreatedAt, &o.UpdatedAt)
}

func (r *orderRepoPG) GetByID(ctx context.Context, id int64) (*Order, error) {
	return scanOrder(r.conn(ctx).QueryRow(ctx, `SELECT `+orderCols+` FROM orders WHERE id = $1`, id))
}

func (r *orderRepoPG) GetByIDForUpdate(ctx context.Context, id int64) (*Order, error) {
	return scanOrder(r.conn(ctx).QueryRow(ctx, `SELECT `+orderCols+` FROM orders WHERE id = $1 FOR UPDATE`, id))
}

func (r *orderRepoPG) ApplyFinalization(ctx context.Context, o *Order) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE orders SET patient_id=$2, status=$3, clinical_indication=$4, modality=$5,
			final_cpt_code=$6, final_cpt_code_description=$7,
			final_icd10_codes=$8, final_icd10_code_descriptions=$9, is_contrast_indicated=$10,
			final_validation_status=$11, final_compliance_score=$12,
			overridden=$13, override_justification=$14, is_urgent_override=$15,
			signed_by_user_id=$16, updated_by_user_id=$17, signature_file_key=$18,
			signature_date=$19, validated_at=$20, updated_at=NOW()
		WHERE id = $1`,
		o.ID, o.PatientID, o.Status, o.ClinicalIndication, o.Modality,
		o.FinalCPTCode, o.FinalCPTCodeDescription,
		o.FinalICD10Codes, o.FinalICD10CodeDescriptions, o.IsContrastIndicated,
		o.FinalValidationStatus, o.FinalComplianceScore,
		o.Overridden, o.OverrideJustification, o.IsUrgentOverride,
		o.SignedByUserID, o.UpdatedByUserID, o.SignatureFileKey,
		o.SignatureDate, o.ValidatedAt)
	if err != nil {
		return fmt.Errorf("finalize order %d: %w", o.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrOrderNotFound
	}
	return nil
}

func (r *orderRepoPG) UpdateStatus(ctx context.Context, o *Order) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE orders SET status=$2, updated_by_user_id=$3, cancellation_reason=$4,
			radiology_organization_id=$5, updated_at=NOW()
		WHERE id = $1`,
		o.ID, o.Status, o.UpdatedByUserID, o.CancellationReason, o.RadiologyOrganizationID)
	if err != nil {
		return fmt.Errorf("update order %d status: %w", o.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrOrderNotFound
	}
	return nil
}

func (r *orderRepoPG) ListByOrganization(ctx context.Context, orgID int64, status Status, limit, offset int) ([]*Order, int, error) {
	where := ` WHERE (referring_organization_id = $1 OR radiology_organization_id = $1)`
	args := []interface{}{orgID}
	if status != "" {
		where += ` AND status = $2`
		args = append(args, status)
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM orders`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`SELECT %s FROM orders%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		orderCols, where, len(args)+1, len(args)+2)
	args = append(args, limit, offset)
	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, o)
	}
	return items, total, rows.Err()
}

// =========== Validation Attempt Repository ===========

type attemptRepoPG struct{ pool *pgxpool.Pool }

func NewAttemptRepoPG(pool *pgxpool.Pool) AttemptRepository {
	return &attemptRepoPG{pool: pool}
}

func (r *attemptRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

func (r *attemptRepoPG) MaxAttemptNumber(ctx context.Context, orderID int64) (int, error) {
	var max int
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT COALESCE(MAX(attempt_number), 0) FROM validation_attempts WHERE order_id = $1`, orderID,
	).Scan(&max)
	return max, err
}

func (r *attemptRepoPG) Insert(ctx context.Context, a *ValidationAttempt) error {
	icd10, err := json.Marshal(codesOrEmpty(a.GeneratedICD10))
	if err != nil {
		return fmt.Errorf("encode icd10 codes: %w", err)
	}
	cpt, err := json.Marshal(codesOrEmpty(a.GeneratedCPT))
	if err != nil {
		return fmt.Errorf("encode cpt codes: %w", err)
	}

	err = r.conn(ctx).QueryRow(ctx, `
		INSERT INTO validation_attempts (order_id, attempt_number, validation_input, validation_outcome,
			generated_icd10, generated_cpt, feedback, compliance_score, user_id)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		RETURNING id, created_at`,
		a.OrderID, a.AttemptNumber, a.ValidationInput, a.ValidationOutcome,
		icd10, cpt, a.Feedback, a.ComplianceScore, a.UserID,
	).Scan(&a.ID, &a.CreatedAt)
	if db.IsUniqueViolation(err) {
		return fmt.Errorf("%w: order %d attempt %d", ErrAttemptConflict, a.OrderID, a.AttemptNumber)
	}
	return err
}

func (r *attemptRepoPG) ListByOrder(ctx context.Context, orderID int64) ([]*ValidationAttempt, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, order_id, attempt_number, validation_input, validation_outcome,
			generated_icd10, generated_cpt, COALESCE(feedback, ''), COALESCE(compliance_score, 0), COALESCE(user_id, 0), created_at
		FROM validation_attempts WHERE order_id = $1 ORDER BY attempt_number`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*ValidationAttempt
	for rows.Next() {
		var a ValidationAttempt
		var icd10, cpt []byte
		if err := rows.Scan(&a.ID, &a.OrderID, &a.AttemptNumber, &a.ValidationInput, &a.ValidationOutcome,
			&icd10, &cpt, &a.Feedback, &a.ComplianceScore, &a.UserID, &a.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(icd10, &a.GeneratedICD10); err != nil {
			return nil, fmt.Errorf("decode icd10 codes of attempt %d: %w", a.ID, err)
		}
		if err := json.Unmarshal(cpt, &a.GeneratedCPT); err != nil {
			return nil, fmt.Errorf("decode cpt codes of attempt %d: %w", a.ID, err)
		}
		items = append(items, &a)
	}
	return items, rows.Err()
}

func codesOrEmpty(c []clinical.CodeSuggestion) []clinical.CodeSuggestion {
	if c == nil {
		return []clinical.CodeSuggestion{}
	}
	return c
}

// =========== Order History Repository ===========

type historyRepoPG struct{ pool *pgxpool.Pool }

func NewHistoryRepoPG(pool *pgxpool.Pool) HistoryRepository {
	return &historyRepoPG{pool: pool}
}

func (r *historyRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

func (r *historyRepoPG) Create(ctx context.Context, h *History) error {
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO order_history (order_id, user_id, event_type, previous_status, new_status, details)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING id, created_at`,
		h.OrderID, h.UserID, h.EventType, h.PreviousStatus, h.NewStatus, h.Details,
	).Scan(&h.ID, &h.CreatedAt)
}

func (r *historyRepoPG) ListByOrder(ctx context.Context, orderID int64) ([]*History, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, order_id, user_id, event_type, previous_status, new_status, details, created_at
		FROM order_history WHERE order_id = $1 ORDER BY created_at, id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*History
	for rows.Next() {
		var h History
		if err := rows.Scan(&h.ID, &h.OrderID, &h.UserID, &h.EventType, &h.PreviousStatus, &h.NewStatus, &h.Details, &h.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, &h)
	}
	return items, rows.Err()
}
