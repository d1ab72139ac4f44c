package testutil

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"creator-ledger/pkg/httpapi"
	"creator-ledger/pkg/middleware"

	"github.com/gin-gonic/gin"
)

// NewRouter mounts routers the way the API process does, with the default
// admin policies.
func NewRouter(t *testing.T, routers ...httpapi.Router) *gin.Engine {
	t.Helper()

	gin.SetMode(gin.TestMode)
	enforcer, err := middleware.NewEnforcer(nil)
	if err != nil {
		t.Fatalf("failed to build enforcer: %v", err)
	}

	r := gin.New()
	httpapi.Mount(r, enforcer, routers...)
	return r
}

// Request is a test HTTP call with identity headers.
type Request struct {
	Method    string
	Path      string
	Body      any
	CreatorID string
	AdminID   string
	Role      string
}

func Do(t *testing.T, h http.Handler, req Request) *httptest.ResponseRecorder {
	t.Helper()

	var body bytes.Buffer
	if req.Body != nil {
		if err := json.NewEncoder(&body).Encode(req.Body); err != nil {
			t.Fatalf("failed to encode body: %v", err)
		}
	}

	r := httptest.NewRequest(req.Method, req.Path, &body)
	r.Header.Set("Content-Type", "application/json")
	if req.CreatorID != "" {
		r.Header.Set(middleware.HeaderCreatorID, req.CreatorID)
	}
	if req.AdminID != "" {
		r.Header.Set(middleware.HeaderAdminID, req.AdminID)
	}
	if req.Role != "" {
		r.Header.Set(middleware.HeaderRole, req.Role)
	}

	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w
}

// ErrorReason decodes the reason of an error response body.
func ErrorReason(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()

	var body struct {
		Error struct {
			Reason string `json:"reason"`
		} `json:"error"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode error body %q: %v", w.Body.String(), err)
	}
	return body.Error.Reason
}
