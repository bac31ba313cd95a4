// Package status serves the daemon's read-only HTTP surface: sync
// state, the last-applied topology, the reconciliation journal tail,
// and Prometheus metrics. It never mutates twin state.
package status

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	"netmirror/internal/journal"
	"netmirror/internal/syncer"
	"netmirror/internal/telemetry"
)

// Handler serves the status API.
type Handler struct {
	syncer  *syncer.Syncer
	journal *journal.Journal // may be nil
}

// NewHandler creates a status handler. journal may be nil when
// journalling is disabled.
func NewHandler(s *syncer.Syncer, j *journal.Journal) *Handler {
	return &Handler{syncer: s, journal: j}
}

// Routes builds the status mux with middleware applied.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/status", h.GetStatus)
	mux.HandleFunc("GET /api/topology", h.GetTopology)
	mux.HandleFunc("GET /api/journal", h.GetJournal)
	mux.Handle("GET /metrics", telemetry.Handler())

	return chain(mux, recoverPanics, logRequests)
}

// GetStatus reports the sync loop state and entity counts of the
// last-applied snapshot.
func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	snap := h.syncer.LastApplied()

	writeJSON(w, map[string]any{
		"state":       string(h.syncer.State()),
		"version":     snap.Version,
		"switches":    len(snap.Switches),
		"links":       len(snap.Links),
		"hosts":       len(snap.Hosts),
		"journalling": h.journal != nil,
	})
}

// GetTopology returns the last-applied snapshot in full.
func (h *Handler) GetTopology(w http.ResponseWriter, r *http.Request) {
	snap := h.syncer.LastApplied()

	links := make([]map[string]any, 0, len(snap.Links))
	for _, l := range snap.Links {
		links = append(links, map[string]any{
			"src": l.A,
			"dst": l.B,
		})
	}

	writeJSON(w, map[string]any{
		"version":  snap.Version,
		"switches": snap.Switches,
		"links":    links,
		"hosts":    snap.Hosts,
	})
}

// GetJournal returns the most recent journalled cycles.
func (h *Handler) GetJournal(w http.ResponseWriter, r *http.Request) {
	if h.journal == nil {
		http.Error(w, "Journalling disabled", http.StatusNotFound)
		return
	}

	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	entries, err := h.journal.Recent(ctx, limit)
	if err != nil {
		log.Printf("Failed to read journal: %v", err)
		http.Error(w, "Failed to read journal", http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []journal.CycleEntry{}
	}
	writeJSON(w, entries)
}

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("Failed to encode response: %v", err)
	}
}

type middleware func(http.Handler) http.Handler

func chain(h http.Handler, mws ...middleware) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

func recoverPanics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				log.Printf("Panic serving %s: %v", r.URL.Path, err)
				http.Error(w, "Internal server error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Printf("%s %s (%s)", r.Method, r.URL.Path, time.Since(start))
	})
}
