package identity

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/VigneshwaranMurugan16/ai-ehr-predictor/pkg/common/logger"
	"github.com/VigneshwaranMurugan16/ai-ehr-predictor/pkg/common/models"
	"github.com/VigneshwaranMurugan16/ai-ehr-predictor/pkg/gateway/auth"
	"github.com/VigneshwaranMurugan16/ai-ehr-predictor/pkg/gateway/middleware"
)

type HTTPHandler struct {
	service *Service
	tokens  *auth.JWTManager
	audit   *Recorder
}

func NewHTTPHandler(service *Service, tokens *auth.JWTManager, audit *Recorder) *HTTPHandler {
	return &HTTPHandler{service: service, tokens: tokens, audit: audit}
}

// RegisterPublic wires the unauthenticated login route.
func (h *HTTPHandler) RegisterPublic(router *mux.Router) {
	router.HandleFunc("/auth/login", h.handleLogin).Methods(http.MethodPost)
}

// RegisterProtected wires routes that require a valid token.
func (h *HTTPHandler) RegisterProtected(router *mux.Router) {
	router.HandleFunc("/auth/me", h.handleMe).Methods(http.MethodGet)
	router.HandleFunc("/auth/register", h.handleRegister).Methods(http.MethodPost)
	router.Handle("/audit/recent",
		middleware.RequireRole(RoleAdmin)(http.HandlerFunc(h.handleAuditRecent))).Methods(http.MethodGet)
}

func (h *HTTPHandler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	user, err := h.service.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			http.Error(w, "invalid credentials", http.StatusUnauthorized)
			return
		}
		logger.Log.WithError(err).Error("Login failed")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	token, err := h.tokens.IssueToken(user)
	if err != nil {
		logger.Log.WithError(err).Error("Failed to issue token")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	if h.audit != nil {
		h.audit.Record(r.Context(), user.Email, ActionLogin, map[string]interface{}{
			"role": user.Role,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"token": token,
		"user":  user,
	})
}

func (h *HTTPHandler) handleMe(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.UserFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	user, err := h.service.GetUser(r.Context(), claims.UserID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			http.Error(w, "user not found", http.StatusNotFound)
			return
		}
		logger.Log.WithError(err).Error("Failed to load user")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(user)
}

func (h *HTTPHandler) handleAuditRecent(w http.ResponseWriter, r *http.Request) {
	if h.audit == nil {
		http.Error(w, "audit log not enabled", http.StatusNotFound)
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	entries, err := h.audit.Recent(r.Context(), limit)
	if err != nil {
		logger.Log.WithError(err).Error("Failed to list audit entries")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{"entries": entries})
}

func (h *HTTPHandler) handleRegister(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.UserFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req struct {
		Email    string `json:"email"`
		Name     string `json:"name"`
		Role     string `json:"role"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	actor := models.User{ID: claims.UserID, Email: claims.Email, Role: claims.Role}
	user, err := h.service.RegisterUser(r.Context(), actor, CreateUserParams{
		Email:    req.Email,
		Name:     req.Name,
		Role:     req.Role,
		Password: req.Password,
	})
	if err != nil {
		if errors.Is(err, ErrEmailAlreadyExists) {
			http.Error(w, "email already registered", http.StatusConflict)
			return
		}
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(user)
}
