package validation

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/radorder/radorder/internal/domain/order"
	"github.com/radorder/radorder/internal/platform/events"
	"github.com/radorder/radorder/pkg/clinical"
)

var ErrInvalidRequest = errors.New("invalid validation request")

// Validator is the language-model gateway.
type Validator interface {
	Validate(ctx context.Context, prompt string) (*clinical.ValidationResult, error)
}

// Request is one dictation submitted for validation. Without OrderID a new
// draft order is created.
type Request struct {
	Dictation string `json:"dictationText" validate:"required,min=10,max=20000"`
	PatientID *int64 `json:"patientId,omitempty" validate:"omitempty,gt=0"`
	OrderID   *int64 `json:"orderId,omitempty" validate:"omitempty,gt=0"`
	Modality  string `json:"modality,omitempty"`
	Priority  string `json:"priority,omitempty" validate:"omitempty,oneof=routine urgent stat"`
}

// Response is returned to the physician after a successful validation.
type Response struct {
	OrderID       int64                      `json:"orderId"`
	OrderNumber   string                     `json:"orderNumber"`
	AttemptNumber int                        `json:"attemptNumber"`
	Result        *clinical.ValidationResult `json:"validationResult"`
}

type Service struct {
	orders  *order.Service
	members order.MembershipLookup
	gateway Validator
	logger  zerolog.Logger
	check   *validator.Validate
}

func NewService(orders *order.Service, members order.MembershipLookup, gateway Validator, logger zerolog.Logger) *Service {
	return &Service{orders: orders, members: members, gateway: gateway, logger: logger, check: validator.New()}
}

// Validate runs one pass of the pipeline: resolve or create the order, send
// the de-identified dictation through the gateway and record the attempt.
// When every provider fails no attempt is recorded.
func (s *Service) Validate(ctx context.Context, req Request, userID int64) (*Response, error) {
	if err := s.check.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	o, err := s.resolveOrder(ctx, req, userID)
	if err != nil {
		return nil, err
	}

	next, err := s.orders.Tracker().NextAttemptNumber(ctx, o.ID)
	if err != nil {
		return nil, err
	}
	in := PromptInput{Dictation: StripPHI(req.Dictation), AttemptNumber: next}
	if o.Modality != nil {
		in.Modality = *o.Modality
	}
	if next > 1 {
		if prev, err := s.orders.Tracker().List(ctx, o.ID); err == nil && len(prev) > 0 {
			in.PreviousFeedback = prev[len(prev)-1].Feedback
		}
	}

	result, err := s.gateway.Validate(ctx, BuildPrompt(in))
	if err != nil {
		s.logger.Warn().Err(err).Int64("order_id", o.ID).Msg("validation unavailable")
		return nil, err
	}

	attempt, err := s.orders.Tracker().Record(ctx, o.ID, req.Dictation, result, userID)
	if err != nil {
		return nil, fmt.Errorf("record validation attempt: %w", err)
	}
	s.logger.Info().Int64("order_id", o.ID).Int("attempt", attempt.AttemptNumber).
		Str("status", string(result.ValidationStatus)).Float64("score", result.ComplianceScore).
		Msg("validation attempt recorded")

	e := events.NewEvent(events.OrderValidationLogged, o.ID)
	e.OrderNumber, e.Status, e.ActorUserID = o.OrderNumber, string(o.Status), userID
	e.Attributes = map[string]string{
		"attempt":          strconv.Itoa(attempt.AttemptNumber),
		"validationStatus": string(result.ValidationStatus),
	}
	s.orders.Publish(ctx, e)

	return &Response{
		OrderID:       o.ID,
		OrderNumber:   o.OrderNumber,
		AttemptNumber: attempt.AttemptNumber,
		Result:        result,
	}, nil
}

func (s *Service) resolveOrder(ctx context.Context, req Request, userID int64) (*order.Order, error) {
	if req.OrderID != nil {
		return s.orders.BeginValidation(ctx, *req.OrderID, userID)
	}
	orgID, err := s.members.OrganizationOf(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", order.ErrUnauthorized, err)
	}
	return s.orders.CreateDraft(ctx, order.Draft{
		PatientID:      req.PatientID,
		OrganizationID: orgID,
		UserID:         userID,
		Dictation:      req.Dictation,
		Modality:       req.Modality,
		Priority:       req.Priority,
	})
}
