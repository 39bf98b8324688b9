package enrollments

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/coursehub/coursehub/internal/auth"
	_ "github.com/coursehub/coursehub/testing"
)

func newEnrollmentsRouter(service *Service) http.Handler {
	handler := NewHandler(nil, service)
	r := chi.NewRouter()
	r.Route("/enrollments", handler.MountRoutes)
	return r
}

func doEnroll(router http.Handler, p *auth.Principal) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/enrollments/1", nil)
	if p != nil {
		req = req.WithContext(auth.ContextWithPrincipal(context.Background(), p))
	}
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)
	return res
}

func TestEnrollEndpointStatuses(t *testing.T) {
	service, _ := newEnrollmentService(true)
	router := newEnrollmentsRouter(service)

	if res := doEnroll(router, nil); res.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous: expected 401, got %d", res.Code)
	}

	if res := doEnroll(router, student(1)); res.Code != http.StatusCreated {
		t.Fatalf("first enroll: expected 201, got %d: %s", res.Code, res.Body.String())
	}
	if res := doEnroll(router, student(1)); res.Code != http.StatusConflict {
		t.Fatalf("second enroll: expected 409, got %d", res.Code)
	}
}

func TestEnrollEndpointUnpublished(t *testing.T) {
	service, _ := newEnrollmentService(false)
	router := newEnrollmentsRouter(service)

	if res := doEnroll(router, student(1)); res.Code != http.StatusBadRequest {
		t.Fatalf("unpublished course: expected 400, got %d", res.Code)
	}
}

func TestUnenrollEndpoint(t *testing.T) {
	service, _ := newEnrollmentService(true)
	router := newEnrollmentsRouter(service)

	if res := doEnroll(router, student(1)); res.Code != http.StatusCreated {
		t.Fatalf("enroll: expected 201, got %d", res.Code)
	}

	req := httptest.NewRequest(http.MethodDelete, "/enrollments/1", nil)
	req = req.WithContext(auth.ContextWithPrincipal(context.Background(), student(1)))
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)
	if res.Code != http.StatusNoContent {
		t.Fatalf("unenroll: expected 204, got %d", res.Code)
	}

	req = httptest.NewRequest(http.MethodDelete, "/enrollments/1", nil)
	req = req.WithContext(auth.ContextWithPrincipal(context.Background(), student(1)))
	res = httptest.NewRecorder()
	router.ServeHTTP(res, req)
	if res.Code != http.StatusNotFound {
		t.Fatalf("second unenroll: expected 404, got %d", res.Code)
	}
}

func TestEnrollmentStatusEndpoint(t *testing.T) {
	service, _ := newEnrollmentService(true)
	router := newEnrollmentsRouter(service)

	req := httptest.NewRequest(http.MethodGet, "/enrollments/1/status", nil)
	req = req.WithContext(auth.ContextWithPrincipal(context.Background(), student(1)))
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)
	if res.Code != http.StatusOK {
		t.Fatalf("status: expected 200, got %d", res.Code)
	}
	if body := res.Body.String(); body != "{\"enrolled\":false}\n" {
		t.Fatalf("unexpected body: %q", body)
	}
}
