package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/VigneshwaranMurugan16/ai-ehr-predictor/pkg/common/models"
	"github.com/VigneshwaranMurugan16/ai-ehr-predictor/pkg/gateway/auth"
)

func testValidator(t *testing.T) (*auth.JWTManager, string) {
	t.Helper()
	manager, err := auth.NewJWTManager("unit-test-secret-key", "ehr-predictor", "ehr-api", time.Minute)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	token, err := manager.IssueToken(models.User{ID: uuid.New(), Email: "doc@ward.test", Role: "doctor"})
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return manager, token
}

func TestAuthenticateStoresClaims(t *testing.T) {
	manager, token := testValidator(t)

	var seen *auth.Claims
	handler := Authenticate(manager)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = UserFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/ward/risk", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if seen == nil || seen.Email != "doc@ward.test" {
		t.Fatalf("expected claims in context, got %+v", seen)
	}
}

func TestAuthenticateRejectsMissingToken(t *testing.T) {
	manager, _ := testValidator(t)

	handler := Authenticate(manager)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not run")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ward/risk", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestRequireRole(t *testing.T) {
	manager, token := testValidator(t)

	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	doctorOnly := Authenticate(manager)(RequireRole("doctor", "admin")(ok))
	req := httptest.NewRequest(http.MethodPost, "/predict/batch/recompute", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	doctorOnly.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected doctor through, got %d", rec.Code)
	}

	adminOnly := Authenticate(manager)(RequireRole("admin")(ok))
	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/predict/batch/recompute", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	adminOnly.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for doctor on admin route, got %d", rec.Code)
	}

	bare := RequireRole("doctor")(ok)
	rec = httptest.NewRecorder()
	bare.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without claims, got %d", rec.Code)
	}
}

func TestRateLimitExhaustsBurst(t *testing.T) {
	handler := RateLimit(1, 2)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))
		codes = append(codes, rec.Code)
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusOK {
		t.Fatalf("expected first two through, got %v", codes)
	}
	if codes[2] != http.StatusTooManyRequests {
		t.Fatalf("expected third limited, got %v", codes)
	}
}

func TestRecoveryTurnsPanicInto500(t *testing.T) {
	handler := Recovery(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 after panic, got %d", rec.Code)
	}
}
