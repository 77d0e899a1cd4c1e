package pipeline

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/VigneshwaranMurugan16/ai-ehr-predictor/pkg/common/logger"
)

type HTTPHandler struct {
	service *Service
}

func NewHTTPHandler(service *Service) *HTTPHandler {
	return &HTTPHandler{service: service}
}

func (h *HTTPHandler) Register(router *mux.Router) {
	router.HandleFunc("/pipeline/runs", h.handleEnqueue).Methods(http.MethodPost)
	router.HandleFunc("/pipeline/runs", h.handleList).Methods(http.MethodGet)
	// Registered before the {id} route so "latest" is not parsed as a run id.
	router.HandleFunc("/pipeline/runs/latest", h.handleLatest).Methods(http.MethodGet)
	router.HandleFunc("/pipeline/runs/{id}", h.handleGet).Methods(http.MethodGet)
	router.HandleFunc("/pipeline/runs/{id}/report", h.handleReport).Methods(http.MethodGet)
}

func (h *HTTPHandler) handleEnqueue(w http.ResponseWriter, r *http.Request) {
	var req RunRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
	}

	run, err := h.service.Enqueue(r.Context(), req)
	if err != nil {
		logger.Log.WithError(err).Warn("Failed to enqueue pipeline run")
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(run)
}

func (h *HTTPHandler) handleList(w http.ResponseWriter, r *http.Request) {
	runs, err := h.service.List(r.Context(), 0)
	if err != nil {
		logger.Log.WithError(err).Error("Failed to list pipeline runs")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{"runs": runs})
}

func (h *HTTPHandler) handleLatest(w http.ResponseWriter, r *http.Request) {
	run, err := h.service.Latest(r.Context())
	if err != nil {
		if errors.Is(err, ErrRunNotFound) {
			http.Error(w, "no completed runs", http.StatusNotFound)
			return
		}
		logger.Log.WithError(err).Error("Failed to fetch latest pipeline run")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(run)
}

func (h *HTTPHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "invalid run id", http.StatusBadRequest)
		return
	}

	run, err := h.service.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrRunNotFound) {
			http.Error(w, "run not found", http.StatusNotFound)
			return
		}
		logger.Log.WithError(err).Error("Failed to fetch pipeline run")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(run)
}

func (h *HTTPHandler) handleReport(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "invalid run id", http.StatusBadRequest)
		return
	}

	report, err := h.service.Report(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrRunNotFound) {
			http.Error(w, "run not found", http.StatusNotFound)
			return
		}
		logger.Log.WithError(err).Error("Failed to fetch run report")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Write(report)
}
