package directory

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/bissquit/business-cards/internal/domain"
	"github.com/bissquit/business-cards/internal/identity"
	"github.com/bissquit/business-cards/internal/pkg/httputil"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

// Handler handles HTTP requests for the directory module.
type Handler struct {
	service   *Service
	baseURL   string
	validator *validator.Validate
}

// NewHandler creates a new directory handler.
// baseURL is the public origin encoded into profile QR codes.
func NewHandler(service *Service, baseURL string) *Handler {
	return &Handler{
		service:   service,
		baseURL:   baseURL,
		validator: httputil.NewValidator(),
	}
}

// RegisterRoutes registers routes available to any authenticated user.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/employees", h.ListEmployees)
}

// RegisterAdminRoutes registers routes that require the admin role.
func (h *Handler) RegisterAdminRoutes(r chi.Router) {
	r.Post("/employees", h.CreateEmployee)
	r.Patch("/employees/{id}", h.UpdateEmployee)
	r.Delete("/employees/{id}", h.DeleteEmployee)
}

// RegisterPublicRoutes registers unauthenticated API routes.
func (h *Handler) RegisterPublicRoutes(r chi.Router) {
	r.Get("/public/employees/{id}", h.GetProfile)
	r.Get("/public/employees/{id}/qrcode", h.GetQRCode)
}

// RegisterPageRoutes registers server-rendered pages.
func (h *Handler) RegisterPageRoutes(r chi.Router) {
	r.Get("/profile/{id}", h.ProfilePage)
}

// CreateEmployeeRequest represents the request body for creating an employee.
type CreateEmployeeRequest struct {
	Email          string `json:"email" validate:"required,email,max=254"`
	Password       string `json:"password" validate:"required,max=72"`
	FullName       string `json:"fullName" validate:"required,max=255"`
	Role           string `json:"role" validate:"omitempty,oneof=admin user"`
	MobileNumber   string `json:"mobileNumber" validate:"max=50"`
	ProfilePicture string `json:"profilePicture"`
	Department     string `json:"department" validate:"max=255"`
	Position       string `json:"position" validate:"max=255"`
}

// UpdateEmployeeRequest represents the request body for a partial employee update.
// Omitted fields are left unchanged; an empty string clears an optional field.
type UpdateEmployeeRequest struct {
	FullName       *string `json:"fullName" validate:"omitnil,max=255"`
	Role           *string `json:"role" validate:"omitnil,oneof=admin user"`
	MobileNumber   *string `json:"mobileNumber" validate:"omitnil,max=50"`
	ProfilePicture *string `json:"profilePicture"`
	Department     *string `json:"department" validate:"omitnil,max=255"`
	Position       *string `json:"position" validate:"omitnil,max=255"`
}

// ToPatch converts the request to a repository patch.
func (r *UpdateEmployeeRequest) ToPatch() EmployeePatch {
	patch := EmployeePatch{
		FullName:       r.FullName,
		MobileNumber:   r.MobileNumber,
		ProfilePicture: r.ProfilePicture,
		Department:     r.Department,
		Position:       r.Position,
	}
	if r.Role != nil {
		role := domain.Role(*r.Role)
		patch.Role = &role
	}
	return patch
}

// ListEmployees handles GET /employees.
func (h *Handler) ListEmployees(w http.ResponseWriter, r *http.Request) {
	employees, err := h.service.List(r.Context())
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	httputil.Success(w, http.StatusOK, employees)
}

// CreateEmployee handles POST /employees.
func (h *Handler) CreateEmployee(w http.ResponseWriter, r *http.Request) {
	var req CreateEmployeeRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	employee, err := h.service.Create(r.Context(), CreateEmployeeInput{
		Email:          req.Email,
		Password:       req.Password,
		FullName:       req.FullName,
		Role:           domain.Role(req.Role),
		MobileNumber:   req.MobileNumber,
		ProfilePicture: req.ProfilePicture,
		Department:     req.Department,
		Position:       req.Position,
	})
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	httputil.Success(w, http.StatusCreated, employee)
}

// UpdateEmployee handles PATCH /employees/{id}.
func (h *Handler) UpdateEmployee(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req UpdateEmployeeRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	employee, err := h.service.Update(r.Context(), id, req.ToPatch())
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	httputil.Success(w, http.StatusOK, employee)
}

// DeleteEmployee handles DELETE /employees/{id}.
func (h *Handler) DeleteEmployee(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.service.Delete(r.Context(), id); err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// GetProfile handles GET /public/employees/{id}.
func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	profile, err := h.service.GetProfile(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	httputil.Success(w, http.StatusOK, profile)
}

// GetQRCode handles GET /public/employees/{id}/qrcode.
func (h *Handler) GetQRCode(w http.ResponseWriter, r *http.Request) {
	size := DefaultQRSize
	if raw := r.URL.Query().Get("size"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			h.handleServiceError(w, r, ErrInvalidQRSize)
			return
		}
		size = parsed
	}

	profile, err := h.service.GetProfile(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	png, err := RenderQRCode(ProfileURL(h.baseURL, profile.ID), size)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	w.Header().Set("Content-Disposition", QRDisposition(profile.FullName))
	w.Header().Set("Cache-Control", "public, max-age=300")
	httputil.Blob(w, http.StatusOK, "image/png", png)
}

// ProfilePage handles GET /profile/{id}.
func (h *Handler) ProfilePage(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	profile, err := h.service.GetProfile(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if !errors.Is(err, ErrEmployeeNotFound) {
			h.handleServiceError(w, r, err)
			return
		}
		status = http.StatusNotFound
		profile = nil
	}

	page, err := RenderProfilePage(profile)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	httputil.Blob(w, status, "text/html; charset=utf-8", page)
}

var errorMappings = []httputil.ErrorMapping{
	{Error: ErrEmployeeNotFound, Status: http.StatusNotFound},
	{Error: ErrFullNameRequired, Status: http.StatusBadRequest},
	{Error: ErrInvalidRole, Status: http.StatusBadRequest},
	{Error: ErrInvalidQRSize, Status: http.StatusBadRequest},
	{Error: identity.ErrEmailExists, Status: http.StatusBadRequest},
	{Error: identity.ErrFullNameRequired, Status: http.StatusBadRequest},
	{Error: identity.ErrInvalidRole, Status: http.StatusBadRequest},
	{Error: identity.ErrInvalidEmail, Status: http.StatusBadRequest},
	{Error: identity.ErrPasswordRequired, Status: http.StatusBadRequest},
	{Error: identity.ErrPasswordTooLong, Status: http.StatusBadRequest},
}

func (h *Handler) handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	httputil.HandleError(r.Context(), w, err, errorMappings)
}
