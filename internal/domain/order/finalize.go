package order

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/radorder/radorder/internal/platform/blobstore"
	"github.com/radorder/radorder/internal/platform/events"
	"github.com/radorder/radorder/internal/platform/metrics"
)

// InlineSignatureNote is returned when a client still sends signature bytes
// in the finalize payload.
const InlineSignatureNote = "Inline signature data is deprecated and was not stored. " +
	"Request a signature upload URL and pass the returned file key when finalizing."

var validate = validator.New()

// ValidatePayload checks the finalize payload shape.
func ValidatePayload(p *FinalizePayload) error {
	if p == nil {
		return fmt.Errorf("%w: empty payload", ErrInvalidPayload)
	}
	if err := validate.Struct(p); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if p.IsTemporaryPatient {
		if err := validate.Struct(p.PatientInfo); err != nil {
			return fmt.Errorf("%w: patientInfo: %v", ErrInvalidPayload, err)
		}
	}
	return nil
}

// Finalize commits the physician's decision on an order in one transaction:
// load, authorize, optionally create the temporary patient and rebind the
// order to it, write the final clinical fields, move the order to
// pending_admin and append history. Any failure rolls everything back and
// the original error is returned.
func (s *Service) Finalize(ctx context.Context, orderID int64, p *FinalizePayload, userID int64) (*FinalizeResult, error) {
	if err := ValidatePayload(p); err != nil {
		return nil, err
	}
	if p.SignatureFileKey != "" && !ownsSignatureKey(orderID, p.SignatureFileKey) {
		return nil, fmt.Errorf("%w: signature file key does not belong to this order", ErrInvalidPayload)
	}

	var (
		o         *Order
		from      Status
		eventType string
		note      string
	)
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		var err error
		o, err = s.orders.GetByIDForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if err := s.AuthorizeReferring(ctx, o, userID); err != nil {
			return err
		}
		from = o.Status
		if err := ValidateTransition(from, StatusPendingAdmin); err != nil {
			return err
		}

		if p.IsTemporaryPatient {
			if s.patients == nil {
				return fmt.Errorf("%w: temporary patients are not supported", ErrInvalidPayload)
			}
			pid, err := s.patients.CreateTemporaryPatient(ctx, o.ReferringOrganizationID, *p.PatientInfo)
			if err != nil {
				return fmt.Errorf("create temporary patient: %w", err)
			}
			o.PatientID = &pid
		}
		if o.PatientID == nil {
			return fmt.Errorf("%w: order has no patient", ErrInvalidPayload)
		}

		s.applyFinalFields(o, p, userID)
		if p.SignatureData != "" {
			note = InlineSignatureNote
		}
		if err := s.orders.ApplyFinalization(ctx, o); err != nil {
			return err
		}

		eventType = EventSigned
		if p.OverridePerformed {
			eventType = EventOverride
		}
		to := o.Status
		return s.history.Create(ctx, &History{
			OrderID:        o.ID,
			UserID:         &userID,
			EventType:      eventType,
			PreviousStatus: &from,
			NewStatus:      &to,
		})
	})
	if err != nil {
		return nil, err
	}

	metrics.RecordStatusTransition(string(from), string(o.Status))
	metrics.RecordOrderFinalized(eventType)

	e := events.NewEvent(events.OrderFinalized, o.ID)
	e.OrderNumber, e.Status, e.ActorUserID = o.OrderNumber, string(o.Status), userID
	e.Attributes = map[string]string{"event": eventType}
	s.Publish(ctx, e)

	return &FinalizeResult{
		Success:             true,
		OrderID:             o.ID,
		Message:             "Order submitted successfully.",
		SignatureUploadNote: note,
	}, nil
}

// ownsSignatureKey reports whether key names a file directly under the
// order's signature prefix.
func ownsSignatureKey(orderID int64, key string) bool {
	prefix := blobstore.SignatureKeyPrefix(orderID)
	name, ok := strings.CutPrefix(key, prefix)
	return ok && name != "" && !strings.Contains(name, "/") && !strings.Contains(name, "..")
}

func (s *Service) applyFinalFields(o *Order, p *FinalizePayload, userID int64) {
	now := s.now().UTC()

	o.Status = StatusPendingAdmin
	if v := strings.TrimSpace(p.ClinicalIndication); v != "" {
		o.ClinicalIndication = &v
	}
	if v := strings.TrimSpace(p.Modality); v != "" {
		o.Modality = &v
	}
	cpt := strings.TrimSpace(p.FinalCPTCode)
	o.FinalCPTCode = &cpt
	if v := strings.TrimSpace(p.FinalCPTCodeDescription); v != "" {
		o.FinalCPTCodeDescription = &v
	}
	o.FinalICD10Codes = p.FinalICD10Codes
	o.FinalICD10CodeDescriptions = p.FinalICD10CodeDescriptions
	o.IsContrastIndicated = p.IsContrastIndicated

	status := string(p.FinalValidationStatus)
	o.FinalValidationStatus = &status
	o.FinalComplianceScore = p.FinalComplianceScore

	o.Overridden = p.OverridePerformed
	o.OverrideJustification = nil
	if p.OverridePerformed {
		j := strings.TrimSpace(p.OverrideJustification)
		o.OverrideJustification = &j
	}
	o.IsUrgentOverride = p.IsUrgentOverride

	if p.SignatureFileKey != "" {
		key := p.SignatureFileKey
		o.SignatureFileKey = &key
	}
	o.SignedByUserID = &userID
	o.UpdatedByUserID = &userID
	o.SignatureDate = &now
	o.ValidatedAt = &now
}
