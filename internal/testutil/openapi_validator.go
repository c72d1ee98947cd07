package testutil

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/bissquit/business-cards/api/openapi"
	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers"
	"github.com/getkin/kin-openapi/routers/legacy"
)

const maxReportedBody = 300

// unvalidatedPaths lists routes that answer with plain text, images or HTML.
var unvalidatedPaths = []func(string) bool{
	func(p string) bool { return p == "/healthz" || p == "/readyz" },
	func(p string) bool { return strings.HasSuffix(p, "/qrcode") },
	func(p string) bool { return strings.HasPrefix(p, "/profile/") },
}

// OpenAPIValidator checks API responses against the embedded OpenAPI document.
type OpenAPIValidator struct {
	router routers.Router
}

// LoadOpenAPIValidator parses the embedded document and builds a route matcher.
func LoadOpenAPIValidator() (*OpenAPIValidator, error) {
	doc, err := openapi3.NewLoader().LoadFromData(openapi.Spec)
	if err != nil {
		return nil, fmt.Errorf("load openapi document: %w", err)
	}
	if err := doc.Validate(context.Background()); err != nil {
		return nil, fmt.Errorf("invalid openapi document: %w", err)
	}

	router, err := legacy.NewRouter(doc)
	if err != nil {
		return nil, fmt.Errorf("build openapi router: %w", err)
	}
	return &OpenAPIValidator{router: router}, nil
}

// NewOpenAPIValidator is LoadOpenAPIValidator for use inside a test.
func NewOpenAPIValidator(t *testing.T) *OpenAPIValidator {
	t.Helper()

	v, err := LoadOpenAPIValidator()
	if err != nil {
		t.Fatalf("openapi validator: %v", err)
	}
	return v
}

func skipValidation(path string) bool {
	for _, match := range unvalidatedPaths {
		if match(path) {
			return true
		}
	}
	return false
}

// ValidateResponse reports a test error when resp does not match the documented
// response for req. The response body is buffered and restored.
func (v *OpenAPIValidator) ValidateResponse(t *testing.T, req *http.Request, resp *http.Response) {
	t.Helper()

	path := req.URL.Path
	if skipValidation(path) {
		return
	}

	lookup, err := http.NewRequest(req.Method, path, nil)
	if err != nil {
		t.Errorf("openapi: build lookup request: %v", err)
		return
	}
	route, params, err := v.router.FindRoute(lookup)
	if err != nil {
		t.Errorf("openapi: %s %s is not documented: %v", req.Method, path, err)
		return
	}

	body, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	resp.Body = io.NopCloser(bytes.NewReader(body))
	if err != nil {
		t.Errorf("openapi: read response body: %v", err)
		return
	}

	input := &openapi3filter.ResponseValidationInput{
		RequestValidationInput: &openapi3filter.RequestValidationInput{
			Request:    req,
			PathParams: params,
			Route:      route,
		},
		Status: resp.StatusCode,
		Header: resp.Header,
		Body:   io.NopCloser(bytes.NewReader(body)),
		Options: &openapi3filter.Options{
			MultiError:            true,
			IncludeResponseStatus: true,
		},
	}
	if err := openapi3filter.ValidateResponse(context.Background(), input); err != nil {
		t.Errorf("openapi: %s %s answered %d outside the contract: %v\nbody: %s",
			req.Method, path, resp.StatusCode, err, clip(body))
	}
}

func clip(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > maxReportedBody {
		return s[:maxReportedBody] + "..."
	}
	return s
}
