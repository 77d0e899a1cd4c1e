package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func fakeProvider(t *testing.T, active bool) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/token", func(w http.ResponseWriter, r *http.Request) {
		clientID, _, ok := r.BasicAuth()
		if !ok || clientID != "predictor-svc" {
			// clientcredentials may also send credentials in the form body
			if r.FormValue("client_id") != "predictor-svc" {
				http.Error(w, "unknown client", http.StatusUnauthorized)
				return
			}
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token": "service-token",
			"token_type":   "bearer",
			"expires_in":   3600,
		})
	})
	mux.HandleFunc("/oauth/introspect", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer service-token" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		if err := r.ParseForm(); err != nil || r.FormValue("token") == "" {
			http.Error(w, "missing token", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"active": active,
			"sub":    "8b2e8a2e-43cd-4672-9a3f-0a9c5d25c1a1",
			"email":  "nurse@ward.test",
			"role":   "nurse",
			"iss":    "hospital-idp",
		})
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestOIDCIntrospectorActiveToken(t *testing.T) {
	provider := fakeProvider(t, true)
	introspector, err := NewOIDCIntrospector(provider.URL, "predictor-svc", "svc-secret")
	if err != nil {
		t.Fatalf("new introspector: %v", err)
	}

	claims, err := introspector.ValidateToken(context.Background(), "opaque-user-token")
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if claims.Email != "nurse@ward.test" || claims.Role != "nurse" {
		t.Fatalf("unexpected claims %+v", claims)
	}
	if claims.UserID.String() != "8b2e8a2e-43cd-4672-9a3f-0a9c5d25c1a1" {
		t.Fatalf("expected subject parsed as user id, got %s", claims.UserID)
	}
}

func TestOIDCIntrospectorInactiveToken(t *testing.T) {
	provider := fakeProvider(t, false)
	introspector, err := NewOIDCIntrospector(provider.URL, "predictor-svc", "svc-secret")
	if err != nil {
		t.Fatalf("new introspector: %v", err)
	}

	if _, err := introspector.ValidateToken(context.Background(), "revoked-token"); err == nil {
		t.Fatal("expected inactive token to be rejected")
	}
}

func TestNewOIDCIntrospectorRequiresConfig(t *testing.T) {
	if _, err := NewOIDCIntrospector("", "client", "secret"); err == nil {
		t.Fatal("expected missing issuer to be rejected")
	}
}
