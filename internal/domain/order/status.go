package order

import "fmt"

// transitions is the order workflow graph.
var transitions = map[Status][]Status{
	StatusDraft:                    {StatusPendingValidation, StatusCancelled},
	StatusPendingValidation:        {StatusPendingAdmin, StatusOverridePendingSignature, StatusCancelled},
	StatusOverridePendingSignature: {StatusPendingAdmin, StatusCancelled},
	StatusPendingAdmin:             {StatusPendingRadiology, StatusCancelled},
	StatusPendingRadiology:         {StatusScheduled, StatusCancelled},
	StatusScheduled:                {StatusCompleted, StatusCancelled},
	StatusCompleted:                {StatusResultsAvailable},
	StatusResultsAvailable:         {StatusResultsAcknowledged},
	StatusResultsAcknowledged:      {},
	StatusCancelled:                {},
}

// InvalidTransitionError is returned for an edge that is not in the graph.
type InvalidTransitionError struct {
	From Status
	To   Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid order status transition from %s to %s", e.From, e.To)
}

// ValidateTransition checks that from -> to is an edge of the workflow graph.
func ValidateTransition(from, to Status) error {
	for _, s := range transitions[from] {
		if s == to {
			return nil
		}
	}
	return &InvalidTransitionError{From: from, To: to}
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	_, ok := transitions[s]
	return ok
}

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	return len(transitions[s]) == 0
}
