package serving

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/VigneshwaranMurugan16/ai-ehr-predictor/pkg/common/logger"
	"github.com/VigneshwaranMurugan16/ai-ehr-predictor/pkg/gateway/middleware"
	"github.com/VigneshwaranMurugan16/ai-ehr-predictor/pkg/storage"
)

type HTTPHandler struct {
	service *Service
}

func NewHTTPHandler(service *Service) *HTTPHandler {
	return &HTTPHandler{service: service}
}

// Register wires the prediction and ward routes. The recompute route
// is restricted to doctors and admins.
func (h *HTTPHandler) Register(router *mux.Router) {
	router.HandleFunc("/predict/readmission/{encounter_id}", h.handlePredict).Methods(http.MethodGet)
	router.Handle("/predict/batch/recompute",
		middleware.RequireRole("doctor", "admin")(http.HandlerFunc(h.handleRecompute))).Methods(http.MethodPost)
	router.HandleFunc("/ward/risk", h.handleWardRisk).Methods(http.MethodGet)
	router.HandleFunc("/ward/tasks", h.handleListTasks).Methods(http.MethodGet)
	router.HandleFunc("/ward/tasks", h.handleCreateTask).Methods(http.MethodPost)
	router.HandleFunc("/ward/tasks/{id}/complete", h.handleCompleteTask).Methods(http.MethodPost)
}

func actorEmail(r *http.Request) string {
	claims, ok := middleware.UserFromContext(r.Context())
	if !ok {
		return ""
	}
	return claims.Email
}

func (h *HTTPHandler) handlePredict(w http.ResponseWriter, r *http.Request) {
	encounterID := mux.Vars(r)["encounter_id"]

	resp, err := h.service.PredictEncounter(r.Context(), encounterID, actorEmail(r))
	if err != nil {
		if errors.Is(err, storage.ErrFeatureRowNotFound) {
			http.Error(w, "encounter has no feature row", http.StatusNotFound)
			return
		}
		logger.Log.WithError(err).Error("Failed to score encounter")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func (h *HTTPHandler) handleRecompute(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.RecomputeBatch(r.Context(), actorEmail(r))
	if err != nil {
		logger.Log.WithError(err).Error("Batch recompute failed")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

func (h *HTTPHandler) handleWardRisk(w http.ResponseWriter, r *http.Request) {
	entries, err := h.service.WardRisk(r.Context(), r.URL.Query().Get("min_level"), actorEmail(r))
	if err != nil {
		if errors.Is(err, ErrInvalidLevel) {
			http.Error(w, "min_level must be low, medium or high", http.StatusBadRequest)
			return
		}
		logger.Log.WithError(err).Error("Failed to build ward risk board")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{"entries": entries})
}

func (h *HTTPHandler) handleListTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := h.service.ListTasks(r.Context(), r.URL.Query().Get("status"))
	if err != nil {
		logger.Log.WithError(err).Error("Failed to list ward tasks")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{"tasks": tasks})
}

func (h *HTTPHandler) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var req struct {
		EncounterID string `json:"encounter_id"`
		Description string `json:"description"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	task, err := h.service.CreateTask(r.Context(), req.EncounterID, req.Description, actorEmail(r))
	if err != nil {
		if errors.Is(err, storage.ErrFeatureRowNotFound) {
			http.Error(w, "encounter has no feature row", http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(task)
}

func (h *HTTPHandler) handleCompleteTask(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "invalid task id", http.StatusBadRequest)
		return
	}

	task, err := h.service.CompleteTask(r.Context(), id, actorEmail(r))
	if err != nil {
		switch {
		case errors.Is(err, ErrTaskNotFound):
			http.Error(w, "task not found", http.StatusNotFound)
		case errors.Is(err, ErrTaskAlreadyDone):
			http.Error(w, "task already completed", http.StatusBadRequest)
		default:
			logger.Log.WithError(err).Error("Failed to complete ward task")
			http.Error(w, "internal error", http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(task)
}
