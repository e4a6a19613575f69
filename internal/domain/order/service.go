package order

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/radorder/radorder/internal/platform/blobstore"
	"github.com/radorder/radorder/internal/platform/db"
	"github.com/radorder/radorder/internal/platform/events"
	"github.com/radorder/radorder/internal/platform/metrics"
)

// MembershipLookup resolves the organization a user belongs to.
type MembershipLookup interface {
	OrganizationOf(ctx context.Context, userID int64) (int64, error)
}

// PatientCreator materializes a temporary patient inside the caller's transaction.
type PatientCreator interface {
	CreateTemporaryPatient(ctx context.Context, organizationID int64, p TemporaryPatient) (int64, error)
}

// PatientLookup resolves the organization that owns a patient record.
type PatientLookup interface {
	PatientOrganization(ctx context.Context, patientID int64) (int64, error)
}

// SignatureUploader issues presigned upload targets for signature files.
type SignatureUploader interface {
	SignatureUpload(ctx context.Context, orderID int64, contentType, fileName string) (*blobstore.Upload, error)
}

type Service struct {
	orders    OrderRepository
	history   HistoryRepository
	tracker   *AttemptTracker
	tx        db.Transactor
	members   MembershipLookup
	patients  PatientCreator
	lookup    PatientLookup
	uploads   SignatureUploader
	publisher events.Publisher
	logger    zerolog.Logger
	now       func() time.Time
}

func NewService(orders OrderRepository, history HistoryRepository, tracker *AttemptTracker, tx db.Transactor, members MembershipLookup, logger zerolog.Logger) *Service {
	return &Service{
		orders:    orders,
		history:   history,
		tracker:   tracker,
		tx:        tx,
		members:   members,
		publisher: events.Nop{},
		logger:    logger,
		now:       time.Now,
	}
}

// SetPatientCreator enables the temporary-patient branch of Finalize.
func (s *Service) SetPatientCreator(p PatientCreator) { s.patients = p }

// SetPatientLookup enables binding existing patients to new drafts.
func (s *Service) SetPatientLookup(l PatientLookup) { s.lookup = l }

func (s *Service) SetSignatureUploader(u SignatureUploader) { s.uploads = u }

// SetPublisher attaches the event publisher used after commits.
func (s *Service) SetPublisher(p events.Publisher) {
	if p != nil {
		s.publisher = p
	}
}

// Tracker exposes the attempt tracker to the validation pipeline.
func (s *Service) Tracker() *AttemptTracker { return s.tracker }

// Transactor exposes the transaction runner so collaborators can compose
// their own writes with Advance.
func (s *Service) Transactor() db.Transactor { return s.tx }

// NewOrderNumber builds a human-readable order number such as ROP-20260301-1A2B3C4D.
func NewOrderNumber(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	return fmt.Sprintf("ROP-%s-%s", now.UTC().Format("20060102"), suffix)
}

// Draft describes an order created by the first validation of a dictation.
type Draft struct {
	PatientID      *int64
	OrganizationID int64
	UserID         int64
	Dictation      string
	Modality       string
	Priority       string
}

// CreateDraft inserts the order in draft and moves it into pending_validation.
func (s *Service) CreateDraft(ctx context.Context, d Draft) (*Order, error) {
	if d.OrganizationID == 0 {
		return nil, fmt.Errorf("%w: organization is required", ErrUnauthorized)
	}
	if d.PatientID != nil {
		if err := s.authorizePatient(ctx, *d.PatientID, d.OrganizationID); err != nil {
			return nil, err
		}
	}
	priority := d.Priority
	if priority == "" {
		priority = "routine"
	}
	o := &Order{
		OrderNumber:             NewOrderNumber(s.now()),
		PatientID:               d.PatientID,
		ReferringOrganizationID: d.OrganizationID,
		CreatedByUserID:         &d.UserID,
		UpdatedByUserID:         &d.UserID,
		Status:                  StatusDraft,
		Priority:                priority,
		OriginalDictation:       &d.Dictation,
	}
	if d.Modality != "" {
		o.Modality = &d.Modality
	}

	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		if err := s.orders.Create(ctx, o); err != nil {
			return fmt.Errorf("create order: %w", err)
		}
		created := StatusDraft
		if err := s.history.Create(ctx, &History{
			OrderID:   o.ID,
			UserID:    &d.UserID,
			EventType: EventCreated,
			NewStatus: &created,
		}); err != nil {
			return err
		}
		return s.Advance(ctx, o, StatusPendingValidation, d.UserID, EventValidationStarted, nil)
	})
	if err != nil {
		return nil, err
	}
	return o, nil
}

// authorizePatient requires the patient to belong to the ordering organization.
func (s *Service) authorizePatient(ctx context.Context, patientID, organizationID int64) error {
	if s.lookup == nil {
		return fmt.Errorf("%w: patient ownership cannot be verified", ErrUnauthorized)
	}
	owner, err := s.lookup.PatientOrganization(ctx, patientID)
	if err != nil {
		return err
	}
	if owner != organizationID {
		return fmt.Errorf("%w: patient %d belongs to another organization", ErrUnauthorized, patientID)
	}
	return nil
}

// BeginValidation prepares an existing order for another validation pass.
// A draft moves to pending_validation; an order already there stays put.
func (s *Service) BeginValidation(ctx context.Context, orderID, userID int64) (*Order, error) {
	var o *Order
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		var err error
		o, err = s.orders.GetByIDForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if err := s.AuthorizeReferring(ctx, o, userID); err != nil {
			return err
		}
		switch o.Status {
		case StatusPendingValidation:
			return nil
		case StatusDraft:
			return s.Advance(ctx, o, StatusPendingValidation, userID, EventValidationStarted, nil)
		default:
			return &InvalidTransitionError{From: o.Status, To: StatusPendingValidation}
		}
	})
	if err != nil {
		return nil, err
	}
	return o, nil
}

// AuthorizeReferring checks that the user belongs to the order's referring organization.
func (s *Service) AuthorizeReferring(ctx context.Context, o *Order, userID int64) error {
	orgID, err := s.members.OrganizationOf(ctx, userID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	if orgID != o.ReferringOrganizationID {
		return ErrUnauthorized
	}
	return nil
}

func (s *Service) authorizeParticipant(ctx context.Context, o *Order, userID int64) error {
	orgID, err := s.members.OrganizationOf(ctx, userID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	if orgID == o.ReferringOrganizationID || (o.RadiologyOrganizationID != nil && orgID == *o.RadiologyOrganizationID) {
		return nil
	}
	return ErrUnauthorized
}

// Advance validates and applies a status change and appends the history
// row. It must run inside a transaction.
func (s *Service) Advance(ctx context.Context, o *Order, to Status, userID int64, eventType string, details *string) error {
	from := o.Status
	if err := ValidateTransition(from, to); err != nil {
		return err
	}
	o.Status = to
	o.UpdatedByUserID = &userID
	if err := s.orders.UpdateStatus(ctx, o); err != nil {
		return err
	}
	if err := s.history.Create(ctx, &History{
		OrderID:        o.ID,
		UserID:         &userID,
		EventType:      eventType,
		PreviousStatus: &from,
		NewStatus:      &to,
		Details:        details,
	}); err != nil {
		return fmt.Errorf("record order history: %w", err)
	}
	metrics.RecordStatusTransition(string(from), string(to))
	return nil
}

// GetForUpdate loads and row-locks an order inside the caller's transaction.
func (s *Service) GetForUpdate(ctx context.Context, orderID int64) (*Order, error) {
	return s.orders.GetByIDForUpdate(ctx, orderID)
}

// Get returns the order if the user participates in it.
func (s *Service) Get(ctx context.Context, orderID, userID int64) (*Order, error) {
	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeParticipant(ctx, o, userID); err != nil {
		return nil, err
	}
	return o, nil
}

func (s *Service) List(ctx context.Context, userID int64, status Status, limit, offset int) ([]*Order, int, error) {
	orgID, err := s.members.OrganizationOf(ctx, userID)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	if status != "" && !status.Valid() {
		return nil, 0, fmt.Errorf("unknown status %q", status)
	}
	return s.orders.ListByOrganization(ctx, orgID, status, limit, offset)
}

func (s *Service) ListAttempts(ctx context.Context, orderID, userID int64) ([]*ValidationAttempt, error) {
	if _, err := s.Get(ctx, orderID, userID); err != nil {
		return nil, err
	}
	return s.tracker.List(ctx, orderID)
}

func (s *Service) ListHistory(ctx context.Context, orderID, userID int64) ([]*History, error) {
	if _, err := s.Get(ctx, orderID, userID); err != nil {
		return nil, err
	}
	return s.history.ListByOrder(ctx, orderID)
}

// RequestSignatureUpload returns a presigned URL the client uploads the
// signature file to. The file key is later passed to Finalize.
func (s *Service) RequestSignatureUpload(ctx context.Context, orderID int64, contentType, fileName string, userID int64) (*blobstore.Upload, error) {
	if s.uploads == nil {
		return nil, errors.New("signature uploads are not configured")
	}
	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := s.AuthorizeReferring(ctx, o, userID); err != nil {
		return nil, err
	}
	return s.uploads.SignatureUpload(ctx, orderID, contentType, fileName)
}

// Cancel moves a non-terminal order to cancelled.
func (s *Service) Cancel(ctx context.Context, orderID, userID int64, reason string) (*Order, error) {
	var o *Order
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		var err error
		o, err = s.orders.GetByIDForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if err := s.authorizeParticipant(ctx, o, userID); err != nil {
			return err
		}
		var details *string
		if r := strings.TrimSpace(reason); r != "" {
			details = &r
			o.CancellationReason = &r
		}
		return s.Advance(ctx, o, StatusCancelled, userID, EventCancelled, details)
	})
	if err != nil {
		return nil, err
	}

	e := events.NewEvent(events.OrderCancelled, o.ID)
	e.OrderNumber, e.Status, e.ActorUserID = o.OrderNumber, string(o.Status), userID
	s.Publish(ctx, e)
	return o, nil
}

// Publish sends an event after commit. Failures are logged, never returned.
func (s *Service) Publish(ctx context.Context, e events.Event) {
	if err := s.publisher.Publish(ctx, e); err != nil {
		s.logger.Warn().Err(err).Str("event", e.Type).Int64("order_id", e.OrderID).Msg("failed to publish order event")
	}
}
