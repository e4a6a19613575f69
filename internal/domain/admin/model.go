package admin

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Organization types.
const (
	OrgTypeReferringPractice = "referring_practice"
	OrgTypeRadiologyGroup    = "radiology_group"
)

var (
	ErrUserNotFound         = errors.New("user not found")
	ErrOrganizationNotFound = errors.New("organization not found")
	ErrNotRadiologyGroup    = errors.New("target organization is not a radiology group")
)

// Organization maps to the organizations table.
type Organization struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Type      string    `json:"type"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// User maps to the users table.
type User struct {
	ID             int64     `json:"id"`
	OrganizationID int64     `json:"organizationId"`
	Email          string    `json:"email"`
	FirstName      string    `json:"firstName"`
	LastName       string    `json:"lastName"`
	Role           string    `json:"role"`
	IsActive       bool      `json:"isActive"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// Readiness reports what is still missing before an order may leave
// administrative custody.
type Readiness struct {
	OrderID                int64    `json:"orderId"`
	Ready                  bool     `json:"ready"`
	MissingPatientFields   []string `json:"missingPatientFields"`
	MissingInsuranceFields []string `json:"missingInsuranceFields"`
}

// MissingFields returns patient then insurance gaps.
func (r *Readiness) MissingFields() []string {
	out := make([]string, 0, len(r.MissingPatientFields)+len(r.MissingInsuranceFields))
	out = append(out, r.MissingPatientFields...)
	return append(out, r.MissingInsuranceFields...)
}

// NotReadyError names every field that blocks sending the order on.
type NotReadyError struct {
	MissingFields []string
}

func (e *NotReadyError) Error() string {
	return fmt.Sprintf("order is not ready for radiology: missing %s", strings.Join(e.MissingFields, ", "))
}
