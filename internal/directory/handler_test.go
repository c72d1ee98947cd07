package directory

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/bissquit/business-cards/internal/domain"
	"github.com/bissquit/business-cards/internal/pkg/httputil"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// tokenRoles maps bearer tokens to roles.
type tokenRoles map[string]domain.Role

func (t tokenRoles) ValidateToken(_ context.Context, token string) (string, domain.Role, error) {
	role, ok := t[token]
	if !ok {
		return "", "", httputil.ErrInvalidToken
	}
	return "user-" + token, role, nil
}

const baseURL = "https://cards.example.com"

func newTestRouter(t *testing.T) (*chi.Mux, *mockRepository) {
	t.Helper()

	service, repo := newTestService()
	handler := NewHandler(service, baseURL)
	auth := httputil.AuthMiddleware(tokenRoles{
		"admin-token": domain.RoleAdmin,
		"user-token":  domain.RoleUser,
		"orphan":      "",
	})

	r := chi.NewRouter()
	handler.RegisterPageRoutes(r)
	r.Route("/api/v1", func(r chi.Router) {
		handler.RegisterPublicRoutes(r)
		r.Group(func(r chi.Router) {
			r.Use(auth)
			handler.RegisterRoutes(r)
		})
		r.Group(func(r chi.Router) {
			r.Use(auth)
			r.Use(httputil.RequireRole(domain.RoleAdmin))
			handler.RegisterAdminRoutes(r)
		})
	})
	return r, repo
}

func request(t *testing.T, h http.Handler, method, path, body, token string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

type employeeResponse struct {
	Data struct {
		ID             string  `json:"id"`
		FullName       string  `json:"fullName"`
		Role           string  `json:"role"`
		MobileNumber   *string `json:"mobileNumber"`
		Department     *string `json:"department"`
		ProfilePicture *string `json:"profilePicture"`
	} `json:"data"`
}

func TestHandler_RBAC(t *testing.T) {
	r, repo := newTestRouter(t)
	existing := repo.add(&domain.Employee{FullName: "Ann"})
	employeePath := "/api/v1/employees/" + existing.ID
	createBody := `{"email":"b@x.com","password":"pw","fullName":"Bob"}`

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		token  string
		status int
	}{
		{"list without token", http.MethodGet, "/api/v1/employees", "", "", http.StatusUnauthorized},
		{"list with bad token", http.MethodGet, "/api/v1/employees", "", "forged", http.StatusUnauthorized},
		{"list as user", http.MethodGet, "/api/v1/employees", "", "user-token", http.StatusOK},
		{"create without token", http.MethodPost, "/api/v1/employees", createBody, "", http.StatusUnauthorized},
		{"create as user", http.MethodPost, "/api/v1/employees", createBody, "user-token", http.StatusForbidden},
		{"create as deleted employee", http.MethodPost, "/api/v1/employees", createBody, "orphan", http.StatusForbidden},
		{"update as user", http.MethodPatch, employeePath, `{"fullName":"X"}`, "user-token", http.StatusForbidden},
		{"delete as user", http.MethodDelete, employeePath, "", "user-token", http.StatusForbidden},
		{"update without token", http.MethodPatch, employeePath, `{"fullName":"X"}`, "", http.StatusUnauthorized},
		{"delete without token", http.MethodDelete, employeePath, "", "", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := request(t, r, tt.method, tt.path, tt.body, tt.token)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
		})
	}

	assert.Len(t, repo.employees, 1)
	assert.Equal(t, "Ann", repo.employees[existing.ID].FullName)
}

func TestHandler_AdminLifecycle(t *testing.T) {
	r, _ := newTestRouter(t)

	rec := request(t, r, http.MethodPost, "/api/v1/employees",
		`{"email":"b@x.com","password":"pw","fullName":"Bob","department":"Sales"}`, "admin-token")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created employeeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, "Bob", created.Data.FullName)
	assert.Equal(t, "user", created.Data.Role)
	require.NotNil(t, created.Data.Department)
	assert.Equal(t, "Sales", *created.Data.Department)
	assert.NotContains(t, rec.Body.String(), "password")

	rec = request(t, r, http.MethodPatch, "/api/v1/employees/"+created.Data.ID,
		`{"fullName":"Bob Stone","department":"","mobileNumber":"+1 555"}`, "admin-token")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var updated employeeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &updated))
	assert.Equal(t, "Bob Stone", updated.Data.FullName)
	assert.Nil(t, updated.Data.Department)
	require.NotNil(t, updated.Data.MobileNumber)
	assert.Equal(t, "+1 555", *updated.Data.MobileNumber)

	rec = request(t, r, http.MethodGet, "/api/v1/employees", "", "user-token")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Bob Stone")

	rec = request(t, r, http.MethodDelete, "/api/v1/employees/"+created.Data.ID, "", "admin-token")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Body.String())

	rec = request(t, r, http.MethodDelete, "/api/v1/employees/"+created.Data.ID, "", "admin-token")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = request(t, r, http.MethodGet, "/api/v1/public/employees/"+created.Data.ID, "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandler_CreateValidation(t *testing.T) {
	r, _ := newTestRouter(t)

	tests := []struct {
		name string
		body string
	}{
		{"invalid json", `{`},
		{"missing full name", `{"email":"b@x.com","password":"pw"}`},
		{"missing email", `{"password":"pw","fullName":"Bob"}`},
		{"missing password", `{"email":"b@x.com","fullName":"Bob"}`},
		{"unknown role", `{"email":"b@x.com","password":"pw","fullName":"Bob","role":"owner"}`},
		{"blank full name", `{"email":"b@x.com","password":"pw","fullName":"  "}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := request(t, r, http.MethodPost, "/api/v1/employees", tt.body, "admin-token")
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
		})
	}

	rec := request(t, r, http.MethodPost, "/api/v1/employees", `{"email":"b@x.com","password":"pw","fullName":"Bob"}`, "admin-token")
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = request(t, r, http.MethodPost, "/api/v1/employees", `{"email":"b@x.com","password":"pw","fullName":"Bob"}`, "admin-token")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "user already exists")
}

func TestHandler_InlineProfilePicture(t *testing.T) {
	r, _ := newTestRouter(t)
	picture := "data:image/png;base64," + strings.Repeat("iVBORw0KGgo", 1000)

	body, err := json.Marshal(map[string]string{
		"email": "p@x.com", "password": "pw", "fullName": "Pia", "profilePicture": picture,
	})
	require.NoError(t, err)
	rec := request(t, r, http.MethodPost, "/api/v1/employees", string(body), "admin-token")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created employeeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.NotNil(t, created.Data.ProfilePicture)
	assert.Equal(t, picture, *created.Data.ProfilePicture)

	body, err = json.Marshal(map[string]string{"profilePicture": picture + "AAAA"})
	require.NoError(t, err)
	rec = request(t, r, http.MethodPatch, "/api/v1/employees/"+created.Data.ID, string(body), "admin-token")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = request(t, r, http.MethodGet, "/profile/"+created.Data.ID, "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `src="`+picture+`AAAA"`)
}

func TestHandler_UpdateValidation(t *testing.T) {
	r, repo := newTestRouter(t)
	existing := repo.add(&domain.Employee{FullName: "Ann"})

	tests := []struct {
		name   string
		id     string
		body   string
		status int
	}{
		{"empty full name", existing.ID, `{"fullName":""}`, http.StatusBadRequest},
		{"unknown role", existing.ID, `{"role":"owner"}`, http.StatusBadRequest},
		{"unknown id", uuid.NewString(), `{"fullName":"X"}`, http.StatusNotFound},
		{"malformed id", "42", `{"fullName":"X"}`, http.StatusNotFound},
		{"invalid json", existing.ID, `[`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := request(t, r, http.MethodPatch, "/api/v1/employees/"+tt.id, tt.body, "admin-token")
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
		})
	}
}

func TestHandler_PublicProfile(t *testing.T) {
	r, repo := newTestRouter(t)
	existing := repo.add(&domain.Employee{
		FullName: "Ann",
		Email:    "a@x.com",
		Role:     domain.RoleAdmin,
		UserID:   uuid.NewString(),
		Position: domain.OptionalString("CTO"),
	})

	rec := request(t, r, http.MethodGet, "/api/v1/public/employees/"+existing.ID, "", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	profile := body["data"]
	assert.Equal(t, existing.ID, profile["id"])
	assert.Equal(t, "Ann", profile["fullName"])
	assert.Equal(t, "CTO", profile["position"])
	assert.NotContains(t, profile, "role")
	assert.NotContains(t, profile, "userId")
	assert.NotContains(t, profile, "createdAt")

	rec = request(t, r, http.MethodGet, "/api/v1/public/employees/not-a-uuid", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandler_QRCode(t *testing.T) {
	r, repo := newTestRouter(t)
	existing := repo.add(&domain.Employee{FullName: "Ann Lee"})
	path := "/api/v1/public/employees/" + existing.ID + "/qrcode"

	rec := request(t, r, http.MethodGet, path, "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "Ann_Lee_QR.png")
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("\x89PNG\r\n\x1a\n")))

	rec = request(t, r, http.MethodGet, path+"?size=abc", "", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = request(t, r, http.MethodGet, path+"?size=-5", "", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = request(t, r, http.MethodGet, "/api/v1/public/employees/"+uuid.NewString()+"/qrcode", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandler_ProfilePage(t *testing.T) {
	r, repo := newTestRouter(t)
	existing := repo.add(&domain.Employee{
		FullName:       "Ann <Lee>",
		Email:          "a@x.com",
		Department:     domain.OptionalString("Sales"),
		ProfilePicture: domain.OptionalString("javascript:alert(1)"),
	})

	rec := request(t, r, http.MethodGet, "/profile/"+existing.ID, "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))

	page := rec.Body.String()
	assert.Contains(t, page, "Ann &lt;Lee&gt;")
	assert.Contains(t, page, "Sales")
	assert.Contains(t, page, "mailto:a@x.com")
	assert.Contains(t, page, QRCodePath(existing.ID))
	assert.NotContains(t, page, "javascript:alert")
	assert.NotContains(t, page, "Mobile")

	rec = request(t, r, http.MethodGet, "/profile/"+uuid.NewString(), "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "Employee not found")
}

func TestRenderProfilePage_Picture(t *testing.T) {
	tests := []struct {
		name     string
		picture  string
		expected string
	}{
		{"inline png", "data:image/png;base64,iVBORw0KGgo=", `src="data:image/png;base64,iVBORw0KGgo="`},
		{"inline jpeg", "data:image/jpeg;base64,/9j/4AAQ", `src="data:image/jpeg;base64,/9j/4AAQ"`},
		{"https url", "https://cdn.example.com/ann.png", `src="https://cdn.example.com/ann.png"`},
		{"inline html", "data:text/html;base64,PHNjcmlwdD4=", `src="#ZgotmplZ"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, err := RenderProfilePage(&domain.PublicProfile{
				ID:             uuid.NewString(),
				FullName:       "Ann",
				ProfilePicture: domain.OptionalString(tt.picture),
			})

			require.NoError(t, err)
			assert.Contains(t, string(page), tt.expected)
		})
	}
}
