package api

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/hostfolio/pricing-engine/internal/models"
	"github.com/hostfolio/pricing-engine/internal/pipeline"
)

// defaultRunListLimit bounds GET /runs when no limit is given.
const defaultRunListLimit = 20

// Store is the slice of the database layer the API reads from.
type Store interface {
	GetProperty(id int64) (*models.Property, error)
	GetPipelineRun(id string) (*models.PipelineRun, error)
	ListPipelineRuns(limit int) ([]*models.PipelineRun, error)
	GetOverridesInRange(propertyID int64, from, to time.Time) ([]*models.PriceOverride, error)
}

// RunTrigger starts a pipeline run. *pipeline.Orchestrator satisfies it.
type RunTrigger interface {
	Run(ctx context.Context, req pipeline.RunRequest) (*models.PipelineRun, error)
}

// Handler holds dependencies for HTTP handlers
type Handler struct {
	store       Store
	trigger     RunTrigger
	horizonDays int
}

// NewHandler creates a new Handler
func NewHandler(store Store, trigger RunTrigger, horizonDays int) *Handler {
	return &Handler{
		store:       store,
		trigger:     trigger,
		horizonDays: horizonDays,
	}
}

// HealthCheck handles GET /health
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// ListRuns handles GET /api/v1/runs
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	limit := defaultRunListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = parsed
	}

	runs, err := h.store.ListPipelineRuns(limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusOK, runs)
}

// GetRun handles GET /api/v1/runs/{id}
func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	run, err := h.store.GetPipelineRun(vars["id"])
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	respondJSON(w, http.StatusOK, run)
}

// GetRecommendations handles GET /api/v1/properties/{id}/recommendations
func (h *Handler) GetRecommendations(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	propertyID, err := strconv.ParseInt(vars["id"], 10, 64)
	if err != nil {
		http.Error(w, "invalid property id", http.StatusBadRequest)
		return
	}
	if _, err := h.store.GetProperty(propertyID); err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	today := models.DateOnly(time.Now())
	from, err := dateParam(r, "from", today)
	if err != nil {
		http.Error(w, "from must be YYYY-MM-DD", http.StatusBadRequest)
		return
	}
	to, err := dateParam(r, "to", today.AddDate(0, 0, h.horizonDays))
	if err != nil {
		http.Error(w, "to must be YYYY-MM-DD", http.StatusBadRequest)
		return
	}
	if to.Before(from) {
		http.Error(w, "to must not precede from", http.StatusBadRequest)
		return
	}

	overrides, err := h.store.GetOverridesInRange(propertyID, from, to)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusOK, overrides)
}

// TriggerRun handles POST /api/v1/runs. The run executes in the background;
// the response only acknowledges the request.
func (h *Handler) TriggerRun(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID    *int64 `json:"user_id"`
		TeamID    *int64 `json:"team_id"`
		StartDate string `json:"start_date"`
		EndDate   string `json:"end_date"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if (req.UserID == nil) == (req.TeamID == nil) {
		http.Error(w, "exactly one of user_id and team_id is required", http.StatusBadRequest)
		return
	}

	today := models.DateOnly(time.Now())
	start := today
	end := today.AddDate(0, 0, h.horizonDays)
	var err error
	if req.StartDate != "" {
		if start, err = time.Parse("2006-01-02", req.StartDate); err != nil {
			http.Error(w, "start_date must be YYYY-MM-DD", http.StatusBadRequest)
			return
		}
	}
	if req.EndDate != "" {
		if end, err = time.Parse("2006-01-02", req.EndDate); err != nil {
			http.Error(w, "end_date must be YYYY-MM-DD", http.StatusBadRequest)
			return
		}
	}
	if end.Before(start) {
		http.Error(w, "end_date must not precede start_date", http.StatusBadRequest)
		return
	}

	runReq := pipeline.RunRequest{
		RunType: models.RunTypeManual,
		UserID:  req.UserID,
		TeamID:  req.TeamID,
		Start:   start,
		End:     end,
	}
	go func() {
		if _, err := h.trigger.Run(context.Background(), runReq); err != nil {
			log.Printf("api: triggered run failed: %v", err)
		}
	}()

	respondJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

func dateParam(r *http.Request, name string, fallback time.Time) (time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, nil
	}
	return time.Parse("2006-01-02", raw)
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
