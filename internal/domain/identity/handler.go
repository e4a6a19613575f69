package identity

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/radorder/radorder/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	// Read endpoints: physicians and administrative staff
	readGroup := api.Group("", auth.RequireRole(auth.RolePhysician, auth.RoleAdminReferring, auth.RoleAdminStaff))
	readGroup.GET("/patients/:id", h.GetPatient)
	readGroup.GET("/patients/:id/insurance/primary", h.GetPrimaryInsurance)

	// Write endpoints: administrative staff
	writeGroup := api.Group("", auth.RequireRole(auth.RoleAdminReferring, auth.RoleAdminStaff))
	writeGroup.PATCH("/patients/:id", h.UpdatePatient)
	writeGroup.POST("/patients/emr-summary/parse", h.ParseSummary)
}

func errorStatus(err error) *echo.HTTPError {
	switch {
	case errors.Is(err, ErrPatientNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "patient not found")
	case errors.Is(err, ErrInvalidPhone), errors.Is(err, ErrInvalidPatch):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
}

// loadOwned fetches the patient and checks it belongs to the caller's organization.
func (h *Handler) loadOwned(c echo.Context) (*Patient, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	ctx := c.Request().Context()
	p, err := h.svc.GetPatientForValidation(ctx, id)
	if err != nil {
		return nil, errorStatus(err)
	}
	if p.OrganizationID != auth.OrgIDFromContext(ctx) {
		return nil, echo.NewHTTPError(http.StatusForbidden, "patient belongs to another organization")
	}
	return p, nil
}

func (h *Handler) GetPatient(c echo.Context) error {
	p, err := h.loadOwned(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) GetPrimaryInsurance(c echo.Context) error {
	p, err := h.loadOwned(c)
	if err != nil {
		return err
	}
	in, err := h.svc.GetPrimaryInsurance(c.Request().Context(), p.ID)
	if err != nil {
		return errorStatus(err)
	}
	if in == nil {
		return echo.NewHTTPError(http.StatusNotFound, "no primary insurance on file")
	}
	return c.JSON(http.StatusOK, in)
}

func (h *Handler) UpdatePatient(c echo.Context) error {
	p, err := h.loadOwned(c)
	if err != nil {
		return err
	}
	var patch PatientInfoPatch
	if err := c.Bind(&patch); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	id, err := h.svc.UpdatePatientInfo(c.Request().Context(), p.ID, patch)
	if err != nil {
		return errorStatus(err)
	}
	return c.JSON(http.StatusOK, map[string]int64{"patientId": id})
}

type summaryRequest struct {
	Text string `json:"text"`
}

// ParseSummary previews what would be extracted from a pasted EMR summary.
func (h *Handler) ParseSummary(c echo.Context) error {
	var req summaryRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, ParseEMRSummary(req.Text))
}
