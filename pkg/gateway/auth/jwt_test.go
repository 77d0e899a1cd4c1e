package auth

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/VigneshwaranMurugan16/ai-ehr-predictor/pkg/common/models"
)

func testManager(t *testing.T) *JWTManager {
	t.Helper()
	m, err := NewJWTManager("unit-test-secret-key", "ehr-predictor", "ehr-api", 30*time.Minute)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	return m
}

func TestIssueAndValidateToken(t *testing.T) {
	m := testManager(t)
	user := models.User{ID: uuid.New(), Email: "doc@ward.test", Role: "doctor"}

	token, err := m.IssueToken(user)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	claims, err := m.ValidateToken(context.Background(), token)
	if err != nil {
		t.Fatalf("validate token: %v", err)
	}
	if claims.UserID != user.ID {
		t.Fatalf("expected user id %s, got %s", user.ID, claims.UserID)
	}
	if claims.Email != "doc@ward.test" || claims.Role != "doctor" {
		t.Fatalf("unexpected claims %+v", claims)
	}
	if claims.Issuer != "ehr-predictor" || claims.Audience != "ehr-api" {
		t.Fatalf("unexpected issuer/audience %+v", claims)
	}
}

func TestValidateTokenRejectsTampering(t *testing.T) {
	m := testManager(t)
	token, err := m.IssueToken(models.User{ID: uuid.New(), Role: "nurse"})
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	parts := strings.Split(token, ".")
	forged, err := encodeSegment(Claims{Role: "admin", Issuer: "ehr-predictor", Audience: "ehr-api"})
	if err != nil {
		t.Fatalf("encode forged claims: %v", err)
	}
	tampered := strings.Join([]string{parts[0], forged, parts[2]}, ".")

	if _, err := m.ValidateToken(context.Background(), tampered); err == nil {
		t.Fatal("expected tampered token to be rejected")
	}
}

func TestValidateTokenExpiry(t *testing.T) {
	m := testManager(t)
	token, err := m.IssueToken(models.User{ID: uuid.New(), Role: "nurse"})
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	m.nowFunc = func() time.Time { return time.Now().Add(31 * time.Minute) }
	if _, err := m.ValidateToken(context.Background(), token); err == nil {
		t.Fatal("expected expired token to be rejected")
	}
}

func TestValidateTokenWrongAudience(t *testing.T) {
	m := testManager(t)
	token, err := m.IssueToken(models.User{ID: uuid.New()})
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	other, err := NewJWTManager("unit-test-secret-key", "ehr-predictor", "other-api", time.Minute)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	if _, err := other.ValidateToken(context.Background(), token); err == nil {
		t.Fatal("expected audience mismatch to be rejected")
	}
}

func TestNewJWTManagerRejectsShortSecret(t *testing.T) {
	if _, err := NewJWTManager("short", "iss", "aud", time.Minute); err == nil {
		t.Fatal("expected short secret to be rejected")
	}
}
