package auth_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/coursehub/coursehub/internal/auth"
	"github.com/coursehub/coursehub/internal/shared"
	_ "github.com/coursehub/coursehub/testing"
)

func newAuthRouter(t *testing.T, repo auth.Repository) (http.Handler, *auth.TokenCodec) {
	t.Helper()
	codec := auth.NewTokenCodec("test-secret", time.Hour)
	service := auth.NewService(repo, codec, nil, nil, nil, nil)
	handler := auth.NewHandler(nil, service)
	mw := auth.Middleware{Codec: codec, Resolver: repo}

	r := chi.NewRouter()
	r.Use(mw.Authenticate)
	r.Route("/auth", handler.MountRoutes)
	return r, codec
}

func TestSignInEndpointSuccess(t *testing.T) {
	repo := newStubRepo(&auth.Principal{
		ID:           1,
		Username:     "jdoe",
		Email:        "jdoe@test.local",
		PasswordHash: hashOf(t, "correct-horse"),
		FirstName:    "John",
		LastName:     "Doe",
		Role:         auth.RoleStudent,
		Approved:     true,
	})
	router, _ := newAuthRouter(t, repo)

	body := `{"usernameOrEmail":"jdoe","password":"correct-horse"}`
	req := httptest.NewRequest(http.MethodPost, "/auth/signin", strings.NewReader(body))
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	var out struct {
		AccessToken string `json:"accessToken"`
		TokenType   string `json:"tokenType"`
		Username    string `json:"username"`
		Role        string `json:"role"`
	}
	if err := json.Unmarshal(res.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if out.AccessToken == "" || out.TokenType != "Bearer" {
		t.Fatalf("unexpected token response: %+v", out)
	}
	if out.Username != "jdoe" || out.Role != "STUDENT" {
		t.Fatalf("unexpected identity in response: %+v", out)
	}
}

func TestSignInEndpointBadCredentials(t *testing.T) {
	repo := newStubRepo(&auth.Principal{
		ID:           1,
		Username:     "jdoe",
		Email:        "jdoe@test.local",
		PasswordHash: hashOf(t, "correct-horse"),
		Role:         auth.RoleStudent,
		Approved:     true,
	})
	router, _ := newAuthRouter(t, repo)

	body := `{"usernameOrEmail":"jdoe","password":"wrong"}`
	req := httptest.NewRequest(http.MethodPost, "/auth/signin", strings.NewReader(body))
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)

	if res.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", res.Code)
	}
}

func TestSignInEndpointValidation(t *testing.T) {
	router, _ := newAuthRouter(t, newStubRepo())

	body := `{"usernameOrEmail":"jdoe"}`
	req := httptest.NewRequest(http.MethodPost, "/auth/signin", strings.NewReader(body))
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestSignUpEndpointCreated(t *testing.T) {
	repo := newStubRepo()
	router, _ := newAuthRouter(t, repo)

	body := `{"username":"newbie","email":"newbie@test.local","password":"password123","firstName":"New","lastName":"Bie","role":"STUDENT"}`
	req := httptest.NewRequest(http.MethodPost, "/auth/signup", strings.NewReader(body))
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)

	if res.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", res.Code, res.Body.String())
	}
	if strings.Contains(res.Body.String(), "password") {
		t.Fatalf("response must not leak password material")
	}
	var out struct {
		Username   string `json:"username"`
		IsApproved bool   `json:"isApproved"`
	}
	if err := json.Unmarshal(res.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if out.Username != "newbie" || !out.IsApproved {
		t.Fatalf("unexpected profile: %+v", out)
	}
}

func TestSignUpEndpointDuplicate(t *testing.T) {
	repo := newStubRepo()
	repo.createErr = shared.ErrDuplicateUsername
	router, _ := newAuthRouter(t, repo)

	body := `{"username":"taken","email":"taken@test.local","password":"password123","firstName":"Ta","lastName":"Ken","role":"STUDENT"}`
	req := httptest.NewRequest(http.MethodPost, "/auth/signup", strings.NewReader(body))
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)

	if res.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", res.Code)
	}
}

func TestSignUpEndpointRejectsShortPassword(t *testing.T) {
	router, _ := newAuthRouter(t, newStubRepo())

	body := `{"username":"newbie","email":"newbie@test.local","password":"short","firstName":"New","lastName":"Bie","role":"STUDENT"}`
	req := httptest.NewRequest(http.MethodPost, "/auth/signup", strings.NewReader(body))
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestMeEndpoint(t *testing.T) {
	principal := &auth.Principal{
		ID:       9,
		Username: "jdoe",
		Email:    "jdoe@test.local",
		Role:     auth.RoleStudent,
		Approved: true,
	}
	repo := newStubRepo(principal)
	router, codec := newAuthRouter(t, repo)

	// Anonymous request is rejected by the handler, not the middleware.
	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)
	if res.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", res.Code)
	}

	token, err := codec.Issue(principal)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	req = httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	res = httptest.NewRecorder()
	router.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200 with token, got %d", res.Code)
	}
	var out auth.ProfileResponse
	if err := json.Unmarshal(res.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if out.ID != 9 || out.Username != "jdoe" {
		t.Fatalf("unexpected profile: %+v", out)
	}
}
