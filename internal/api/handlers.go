package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/mail"
	"time"

	"github.com/gin-gonic/gin"

	"briefing_agent/internal/model"
	"briefing_agent/internal/pipeline"
	"briefing_agent/internal/schedule"
	"briefing_agent/internal/storage"
)

// Runner is the interface for executing a briefing run on demand.
type Runner interface {
	Run(ctx context.Context, prefs model.UserPreferences, trigger pipeline.TriggerKind) pipeline.Result
}

// Handler holds the dependencies shared by all HTTP handlers.
type Handler struct {
	store  storage.Storage
	runner Runner
	log    *slog.Logger
}

func NewHandler(store storage.Storage, runner Runner, log *slog.Logger) *Handler {
	return &Handler{
		store:  store,
		runner: runner,
		log:    log,
	}
}

type preferencesRequest struct {
	Email    string   `json:"email"`
	Topics   []string `json:"topics"`
	Timezone string   `json:"timezone"`
	SendTime string   `json:"send_time"`
	IsActive bool     `json:"is_active"`
}

type preferencesResponse struct {
	UserID    string    `json:"user_id"`
	Email     string    `json:"email"`
	Topics    []string  `json:"topics"`
	Timezone  string    `json:"timezone"`
	SendTime  string    `json:"send_time"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type summaryResponse struct {
	Title       string    `json:"title"`
	URL         string    `json:"url"`
	Text        string    `json:"text"`
	GeneratedAt time.Time `json:"generated_at"`
}

type runResponse struct {
	RunID   string   `json:"run_id"`
	Outcome string   `json:"outcome"`
	Errors  []string `json:"errors,omitempty"`
}

func toPreferencesResponse(p *model.UserPreferences) preferencesResponse {
	return preferencesResponse{
		UserID:    p.UserID,
		Email:     p.Email,
		Topics:    p.Topics,
		Timezone:  p.Timezone,
		SendTime:  p.SendTime,
		IsActive:  p.IsActive,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}

func (h *Handler) GetHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *Handler) GetPreferences(c *gin.Context) {
	userID := c.Param("id")

	prefs, err := h.store.GetPreferences(c.Request.Context(), userID)
	if errors.Is(err, storage.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}
	if err != nil {
		h.log.Error("get preferences", "user_id", userID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "storage error"})
		return
	}

	c.JSON(http.StatusOK, toPreferencesResponse(prefs))
}

func (h *Handler) PutPreferences(c *gin.Context) {
	userID := c.Param("id")

	var req preferencesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if err := validatePreferences(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	prefs := model.UserPreferences{
		UserID:   userID,
		Email:    req.Email,
		Topics:   req.Topics,
		Timezone: req.Timezone,
		SendTime: req.SendTime,
		IsActive: req.IsActive,
	}
	if err := h.store.UpsertPreferences(c.Request.Context(), &prefs); err != nil {
		h.log.Error("upsert preferences", "user_id", userID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "storage error"})
		return
	}

	stored, err := h.store.GetPreferences(c.Request.Context(), userID)
	if err != nil {
		h.log.Error("reload preferences", "user_id", userID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "storage error"})
		return
	}

	c.JSON(http.StatusOK, toPreferencesResponse(stored))
}

func (h *Handler) GetSummaries(c *gin.Context) {
	userID := c.Param("id")

	summaries, err := h.store.ListSummaries(c.Request.Context(), userID)
	if err != nil {
		h.log.Error("list summaries", "user_id", userID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "storage error"})
		return
	}

	out := make([]summaryResponse, 0, len(summaries))
	for _, s := range summaries {
		out = append(out, summaryResponse{
			Title:       s.Title,
			URL:         s.URL,
			Text:        s.Text,
			GeneratedAt: s.GeneratedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"summaries": out})
}

// RunBriefing executes an on-demand briefing for the user. The run is
// synchronous; the response carries its outcome.
func (h *Handler) RunBriefing(c *gin.Context) {
	userID := c.Param("id")

	prefs, err := h.store.GetPreferences(c.Request.Context(), userID)
	if errors.Is(err, storage.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}
	if err != nil {
		h.log.Error("get preferences", "user_id", userID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "storage error"})
		return
	}

	res := h.runner.Run(c.Request.Context(), *prefs, pipeline.TriggerInteractive)

	status := http.StatusOK
	switch res.Outcome {
	case pipeline.OutcomeQuotaExceeded:
		status = http.StatusTooManyRequests
	case pipeline.OutcomeFailed:
		status = http.StatusBadGateway
	}
	c.JSON(status, runResponse{
		RunID:   res.RunID,
		Outcome: string(res.Outcome),
		Errors:  res.Errors,
	})
}

func validatePreferences(req preferencesRequest) error {
	if _, err := mail.ParseAddress(req.Email); err != nil {
		return errors.New("invalid email address")
	}
	if len(req.Topics) == 0 {
		return errors.New("at least one topic is required")
	}
	if _, err := time.LoadLocation(req.Timezone); err != nil || req.Timezone == "" {
		return errors.New("invalid timezone")
	}
	if _, _, err := schedule.ParseSendTime(req.SendTime); err != nil {
		return errors.New("invalid send_time, expected HH:MM")
	}
	return nil
}
