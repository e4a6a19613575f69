package order

import (
	"time"

	"github.com/radorder/radorder/pkg/clinical"
)

// Status is the workflow state of an order.
type Status string

const (
	StatusDraft                    Status = "draft"
	StatusPendingValidation        Status = "pending_validation"
	StatusOverridePendingSignature Status = "override_pending_signature"
	StatusPendingAdmin             Status = "pending_admin"
	StatusPendingRadiology         Status = "pending_radiology"
	StatusScheduled                Status = "scheduled"
	StatusCompleted                Status = "completed"
	StatusResultsAvailable         Status = "results_available"
	StatusResultsAcknowledged      Status = "results_acknowledged"
	StatusCancelled                Status = "cancelled"
)

// History event types.
const (
	EventCreated           = "created"
	EventValidationStarted = "validation_started"
	EventSigned            = "signed"
	EventOverride          = "override"
	EventSentToRadiology   = "sent_to_radiology"
	EventCancelled         = "cancelled"
)

// Order maps to the orders table.
type Order struct {
	ID                         int64      `json:"id"`
	OrderNumber                string     `json:"orderNumber"`
	PatientID                  *int64     `json:"patientId,omitempty"`
	ReferringOrganizationID    int64      `json:"referringOrganizationId"`
	RadiologyOrganizationID    *int64     `json:"radiologyOrganizationId,omitempty"`
	CreatedByUserID            *int64     `json:"createdByUserId,omitempty"`
	SignedByUserID             *int64     `json:"signedByUserId,omitempty"`
	UpdatedByUserID            *int64     `json:"updatedByUserId,omitempty"`
	Status                     Status     `json:"status"`
	Priority                   string     `json:"priority"`
	OriginalDictation          *string    `json:"originalDictation,omitempty"`
	ClinicalIndication         *string    `json:"clinicalIndication,omitempty"`
	Modality                   *string    `json:"modality,omitempty"`
	FinalCPTCode               *string    `json:"finalCptCode,omitempty"`
	FinalCPTCodeDescription    *string    `json:"finalCptCodeDescription,omitempty"`
	FinalICD10Codes            []string   `json:"finalIcd10Codes,omitempty"`
	FinalICD10CodeDescriptions []string   `json:"finalIcd10CodeDescriptions,omitempty"`
	IsContrastIndicated        *bool      `json:"isContrastIndicated,omitempty"`
	FinalValidationStatus      *string    `json:"finalValidationStatus,omitempty"`
	FinalComplianceScore       *float64   `json:"finalComplianceScore,omitempty"`
	Overridden                 bool       `json:"overridden"`
	OverrideJustification      *string    `json:"overrideJustification,omitempty"`
	IsUrgentOverride           bool       `json:"isUrgentOverride"`
	SignatureFileKey           *string    `json:"signatureFileKey,omitempty"`
	SignatureDate              *time.Time `json:"signatureDate,omitempty"`
	ValidatedAt                *time.Time `json:"validatedAt,omitempty"`
	CancellationReason         *string    `json:"cancellationReason,omitempty"`
	CreatedAt                  time.Time  `json:"createdAt"`
	UpdatedAt                  time.Time  `json:"updatedAt"`
}

// ValidationAttempt is one immutable audit row of the validation pipeline.
type ValidationAttempt struct {
	ID                int64                     `json:"id"`
	OrderID           int64                     `json:"orderId"`
	AttemptNumber     int                       `json:"attemptNumber"`
	ValidationInput   string                    `json:"validationInput"`
	ValidationOutcome clinical.ValidationStatus `json:"validationOutcome"`
	GeneratedICD10    []clinical.CodeSuggestion `json:"generatedIcd10Codes"`
	GeneratedCPT      []clinical.CodeSuggestion `json:"generatedCptCodes"`
	Feedback          string                    `json:"feedback"`
	ComplianceScore   float64                   `json:"complianceScore"`
	UserID            int64                     `json:"userId"`
	CreatedAt         time.Time                 `json:"createdAt"`
}

// History records a status change or notable event on an order.
type History struct {
	ID             int64     `json:"id"`
	OrderID        int64     `json:"orderId"`
	UserID         *int64    `json:"userId,omitempty"`
	EventType      string    `json:"eventType"`
	PreviousStatus *Status   `json:"previousStatus,omitempty"`
	NewStatus      *Status   `json:"newStatus,omitempty"`
	Details        *string   `json:"details,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
}

// TemporaryPatient describes a patient not yet on file, created inline when
// an order is finalized.
type TemporaryPatient struct {
	FirstName   string `json:"firstName" validate:"required"`
	LastName    string `json:"lastName" validate:"required"`
	DateOfBirth string `json:"dateOfBirth" validate:"required,datetime=2006-01-02"`
	Gender      string `json:"gender" validate:"omitempty,oneof=male female other unknown"`
	PhoneNumber string `json:"phoneNumber"`
}

// FinalizePayload is the physician's signed decision on an order.
type FinalizePayload struct {
	FinalValidationStatus      clinical.ValidationStatus `json:"finalValidationStatus" validate:"required,oneof=appropriate inappropriate needs_clarification override"`
	FinalComplianceScore       *float64                  `json:"finalComplianceScore" validate:"omitempty,gte=0"`
	ClinicalIndication         string                    `json:"clinicalIndication"`
	Modality                   string                    `json:"modality"`
	FinalCPTCode               string                    `json:"finalCPT" validate:"required"`
	FinalCPTCodeDescription    string                    `json:"finalCPTDescription"`
	FinalICD10Codes            []string                  `json:"finalICD10Codes" validate:"required,min=1,dive,required"`
	FinalICD10CodeDescriptions []string                  `json:"finalICD10CodeDescriptions"`
	IsContrastIndicated        *bool                     `json:"isContrastIndicated"`

	OverridePerformed     bool   `json:"overridden"`
	OverrideJustification string `json:"overrideJustification" validate:"required_if=OverridePerformed true"`
	IsUrgentOverride      bool   `json:"isUrgentOverride"`

	IsTemporaryPatient bool              `json:"isTemporaryPatient"`
	PatientInfo        *TemporaryPatient `json:"patientInfo" validate:"required_if=IsTemporaryPatient true"`

	// SignatureData is the legacy inline signature. It is accepted but not stored.
	SignatureData    string `json:"signatureData,omitempty"`
	SignatureFileKey string `json:"signatureFileKey,omitempty"`
}

// FinalizeResult is returned to the caller after a successful commit.
type FinalizeResult struct {
	Success             bool   `json:"success"`
	OrderID             int64  `json:"orderId"`
	Message             string `json:"message"`
	SignatureUploadNote string `json:"signatureUploadNote,omitempty"`
}
