package server

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/vertextoedge/movie-catalog/internal/domain"
)

// AdminHandler handles sync control and manual imports
type AdminHandler struct {
	catalog Catalog
	logger  *zap.Logger
}

// NewAdminHandler creates a new AdminHandler
func NewAdminHandler(catalog Catalog, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{
		catalog: catalog,
		logger:  logger,
	}
}

type syncRequest struct {
	Category string `json:"category"`
	From     int    `json:"from"`
	To       int    `json:"to"`
}

type importRequest struct {
	ExternalID string `json:"external_id"`
}

type importResponse struct {
	Movie   *domain.Movie `json:"movie"`
	Created bool          `json:"created"`
}

// HandleTriggerSync starts a background sync run
func (h *AdminHandler) HandleTriggerSync(w http.ResponseWriter, r *http.Request) {
	var req syncRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, h.logger, r, err)
		return
	}
	// A bare category syncs page 1
	if req.From == 0 && req.To == 0 {
		req.From, req.To = 1, 1
	}

	run, err := h.catalog.TriggerSync(r.Context(), strings.TrimSpace(req.Category),
		domain.PageRange{From: req.From, To: req.To})
	if err != nil {
		respondError(w, h.logger, r, err)
		return
	}

	h.logger.Info("sync triggered over HTTP",
		zap.String("run_id", run.ID),
		zap.String("category", string(run.Category)))
	writeJSON(w, http.StatusAccepted, run)
}

// HandleListRuns lists recent sync runs
func (h *AdminHandler) HandleListRuns(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, orEmpty(h.catalog.SyncRuns()))
}

// HandleGetRun returns one sync run
func (h *AdminHandler) HandleGetRun(w http.ResponseWriter, r *http.Request) {
	run, err := h.catalog.SyncRun(chi.URLParam(r, "runID"))
	if err != nil {
		respondError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// HandleImport fetches one movie from the provider and stores it
func (h *AdminHandler) HandleImport(w http.ResponseWriter, r *http.Request) {
	var req importRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, h.logger, r, err)
		return
	}

	movie, created, err := h.catalog.ImportMovie(r.Context(), req.ExternalID)
	if err != nil {
		respondError(w, h.logger, r, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, importResponse{Movie: movie, Created: created})
}
