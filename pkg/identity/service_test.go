package identity

import (
	"context"
	"testing"

	"github.com/VigneshwaranMurugan16/ai-ehr-predictor/pkg/common/models"
)

func TestValidRole(t *testing.T) {
	for _, role := range []string{RoleNurse, RoleDoctor, RoleAdmin} {
		if !ValidRole(role) {
			t.Fatalf("expected %q to be valid", role)
		}
	}
	for _, role := range []string{"", "superuser", "Nurse"} {
		if ValidRole(role) {
			t.Fatalf("expected %q to be rejected", role)
		}
	}
}

func TestCreateUserValidation(t *testing.T) {
	svc := NewService(nil)

	if _, err := svc.CreateUser(context.Background(), CreateUserParams{}); err == nil {
		t.Fatal("expected error for missing email and password")
	}

	_, err := svc.CreateUser(context.Background(), CreateUserParams{
		Email:    "nurse@ward.test",
		Password: "secret",
		Role:     "janitor",
	})
	if err == nil {
		t.Fatal("expected error for unknown role")
	}
}

func TestRegisterUserRequiresAdmin(t *testing.T) {
	svc := NewService(nil)

	_, err := svc.RegisterUser(context.Background(), models.User{Role: RoleNurse}, CreateUserParams{
		Email:    "new@ward.test",
		Password: "secret",
		Role:     RoleNurse,
	})
	if err == nil {
		t.Fatal("expected non-admin registration to be rejected")
	}
}

func TestAuthenticateRejectsEmptyPassword(t *testing.T) {
	svc := NewService(nil)

	if _, err := svc.Authenticate(context.Background(), "nurse@ward.test", ""); err != ErrInvalidCredentials {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestNormalizeEmail(t *testing.T) {
	if got := normalizeEmail("  Nurse@Ward.Test "); got != "nurse@ward.test" {
		t.Fatalf("expected lowercase trimmed email, got %q", got)
	}
}
