package admin

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/radorder/radorder/internal/domain/identity"
	"github.com/radorder/radorder/internal/domain/order"
	"github.com/radorder/radorder/internal/platform/events"
)

// PatientRecords is the patient-record collaborator the gate reads from and
// the paste flow writes to.
type PatientRecords interface {
	GetPatientForValidation(ctx context.Context, id int64) (*identity.Patient, error)
	GetPrimaryInsurance(ctx context.Context, patientID int64) (*identity.Insurance, error)
	UpdatePatientFromParsedEmr(ctx context.Context, id int64, patch identity.PatientEMRPatch) error
	UpdateInsuranceFromParsedEmr(ctx context.Context, patientID int64, patch identity.InsurancePatch) error
}

type Service struct {
	members  *Membership
	patients PatientRecords
	orders   *order.Service
	logger   zerolog.Logger
}

func NewService(members *Membership, patients PatientRecords, orders *order.Service, logger zerolog.Logger) *Service {
	return &Service{members: members, patients: patients, orders: orders, logger: logger}
}

// evaluate runs the readiness gate over the order's current patient and insurance.
func (s *Service) evaluate(ctx context.Context, o *order.Order) (*Readiness, error) {
	if o.PatientID == nil {
		return nil, identity.ErrPatientNotFound
	}
	p, err := s.patients.GetPatientForValidation(ctx, *o.PatientID)
	if err != nil {
		return nil, err
	}
	in, err := s.patients.GetPrimaryInsurance(ctx, p.ID)
	if err != nil {
		return nil, fmt.Errorf("load primary insurance: %w", err)
	}
	r := &Readiness{
		OrderID:                o.ID,
		MissingPatientFields:   MissingPatientFields(p),
		MissingInsuranceFields: MissingInsuranceFields(in),
	}
	r.Ready = len(r.MissingPatientFields) == 0 && len(r.MissingInsuranceFields) == 0
	return r, nil
}

// Readiness reports what the order still needs before it can be sent to radiology.
func (s *Service) Readiness(ctx context.Context, orderID, userID int64) (*Readiness, error) {
	o, err := s.orders.Get(ctx, orderID, userID)
	if err != nil {
		return nil, err
	}
	return s.evaluate(ctx, o)
}

// SendToRadiology hands a pending_admin order to a radiology group once the
// readiness gate passes. radiologyOrgID may be zero when the order already
// names its radiology group.
func (s *Service) SendToRadiology(ctx context.Context, orderID, radiologyOrgID, userID int64) (*order.Order, error) {
	var o *order.Order
	err := s.orders.Transactor().InTx(ctx, func(ctx context.Context) error {
		var err error
		o, err = s.orders.GetForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if err := s.orders.AuthorizeReferring(ctx, o, userID); err != nil {
			return err
		}
		if err := order.ValidateTransition(o.Status, order.StatusPendingRadiology); err != nil {
			return err
		}

		r, err := s.evaluate(ctx, o)
		if err != nil {
			return err
		}
		if !r.Ready {
			return &NotReadyError{MissingFields: r.MissingFields()}
		}

		if radiologyOrgID != 0 {
			if _, err := s.members.RadiologyGroup(ctx, radiologyOrgID); err != nil {
				return err
			}
			o.RadiologyOrganizationID = &radiologyOrgID
		}
		if o.RadiologyOrganizationID == nil {
			return fmt.Errorf("%w: no radiology group selected", ErrNotRadiologyGroup)
		}
		return s.orders.Advance(ctx, o, order.StatusPendingRadiology, userID, order.EventSentToRadiology, nil)
	})
	if err != nil {
		return nil, err
	}

	e := events.NewEvent(events.OrderSentToRadiology, o.ID)
	e.OrderNumber, e.Status, e.ActorUserID = o.OrderNumber, string(o.Status), userID
	e.Attributes = map[string]string{"radiologyOrganizationId": fmt.Sprint(*o.RadiologyOrganizationID)}
	s.orders.Publish(ctx, e)

	s.logger.Info().Int64("order_id", o.ID).Int64("radiology_org_id", *o.RadiologyOrganizationID).
		Msg("order sent to radiology")
	return o, nil
}

// ApplyEMRSummary parses a pasted EMR summary and writes what it found to the
// order's patient and primary insurance in one transaction. It returns the
// readiness after the update.
func (s *Service) ApplyEMRSummary(ctx context.Context, orderID, userID int64, text string) (*Readiness, error) {
	summary := identity.ParseEMRSummary(text)

	var r *Readiness
	err := s.orders.Transactor().InTx(ctx, func(ctx context.Context) error {
		o, err := s.orders.GetForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if err := s.orders.AuthorizeReferring(ctx, o, userID); err != nil {
			return err
		}
		if o.PatientID == nil {
			return identity.ErrPatientNotFound
		}
		if err := s.patients.UpdatePatientFromParsedEmr(ctx, *o.PatientID, summary.Patient); err != nil {
			return fmt.Errorf("update patient from summary: %w", err)
		}
		if err := s.patients.UpdateInsuranceFromParsedEmr(ctx, *o.PatientID, summary.Insurance); err != nil {
			return fmt.Errorf("update insurance from summary: %w", err)
		}
		r, err = s.evaluate(ctx, o)
		return err
	})
	if err != nil {
		return nil, err
	}
	return r, nil
}
