package api

import (
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/ayusman/trackcam/internal/store"
)

const (
	defaultListLimit = 50
	maxListLimit     = 1000
)

// HistoryHandler serves the stored stream sessions and mode changes.
type HistoryHandler struct {
	store *store.Store
}

// NewHistoryHandler creates a new HistoryHandler with the given store.
func NewHistoryHandler(s *store.Store) *HistoryHandler {
	return &HistoryHandler{store: s}
}

type listSessionsResponse struct {
	Sessions []*store.StreamSession `json:"sessions"`
	Total    int                    `json:"total"`
}

type listModeEventsResponse struct {
	Events []*store.ModeEvent `json:"events"`
}

// Sessions handles GET /api/sessions and GET /api/sessions/{id}.
func (h *HistoryHandler) Sessions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id := strings.TrimPrefix(strings.TrimPrefix(r.URL.Path, "/api/sessions"), "/")
	if id != "" {
		h.getSession(w, id)
		return
	}

	limit, err := parseLimit(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	sessions, err := h.store.Sessions().List(limit)
	if err != nil {
		log.Printf("Failed to list sessions: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to list sessions")
		return
	}
	total, err := h.store.Sessions().Count()
	if err != nil {
		log.Printf("Failed to count sessions: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to list sessions")
		return
	}

	if sessions == nil {
		sessions = []*store.StreamSession{}
	}
	writeJSON(w, http.StatusOK, listSessionsResponse{Sessions: sessions, Total: total})
}

func (h *HistoryHandler) getSession(w http.ResponseWriter, id string) {
	session, err := h.store.Sessions().GetByID(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Session not found")
			return
		}
		log.Printf("Failed to get session %s: %v", id, err)
		writeError(w, http.StatusInternalServerError, "Failed to get session")
		return
	}

	writeJSON(w, http.StatusOK, session)
}

// ModeEvents handles GET /api/mode-events.
func (h *HistoryHandler) ModeEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	limit, err := parseLimit(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	events, err := h.store.ModeEvents().List(limit)
	if err != nil {
		log.Printf("Failed to list mode events: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to list mode events")
		return
	}

	if events == nil {
		events = []*store.ModeEvent{}
	}
	writeJSON(w, http.StatusOK, listModeEventsResponse{Events: events})
}

func parseLimit(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return defaultListLimit, nil
	}

	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 1 {
		return 0, errors.New("limit must be a positive integer")
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	return limit, nil
}
