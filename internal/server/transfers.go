package server

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	streamline "github.com/eugener/streamline/internal"
)

type pagination struct {
	Offset int `json:"offset"`
	Limit  int `json:"limit"`
	Total  int `json:"total"`
}

type listResponse struct {
	Data       any        `json:"data"`
	Pagination pagination `json:"pagination"`
}

func parsePagination(r *http.Request) (offset, limit int) {
	offset, _ = strconv.Atoi(r.URL.Query().Get("offset"))
	limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return
}

// parseTimeParam parses an optional RFC3339 query parameter.
// Writes 400 and returns false on invalid format.
func parseTimeParam(w http.ResponseWriter, r *http.Request, name string) (time.Time, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return time.Time{}, true
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse("invalid "+name+" format, use RFC3339"))
		return time.Time{}, false
	}
	return t, true
}

func (s *server) handleListTransfers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	outcome := streamline.Outcome(q.Get("outcome"))
	if outcome != "" && !outcome.Valid() {
		writeJSON(w, http.StatusBadRequest, errorResponse("invalid outcome "+strconv.Quote(string(outcome))))
		return
	}
	since, ok := parseTimeParam(w, r, "since")
	if !ok {
		return
	}
	until, ok := parseTimeParam(w, r, "until")
	if !ok {
		return
	}
	offset, limit := parsePagination(r)
	filter := streamline.TransferFilter{
		Outcome: outcome,
		URL:     q.Get("url"),
		Since:   since,
		Until:   until,
		Offset:  offset,
		Limit:   limit,
	}

	records, err := s.deps.Store.ListTransfers(r.Context(), filter)
	if err != nil {
		slog.LogAttrs(r.Context(), slog.LevelError, "list transfers failed",
			slog.String("error", err.Error()),
		)
		writeJSON(w, http.StatusInternalServerError, errorResponse("failed to list transfers"))
		return
	}
	total, err := s.deps.Store.CountTransfers(r.Context(), filter)
	if err != nil {
		slog.LogAttrs(r.Context(), slog.LevelError, "count transfers failed",
			slog.String("error", err.Error()),
		)
		writeJSON(w, http.StatusInternalServerError, errorResponse("failed to list transfers"))
		return
	}
	if records == nil {
		records = []streamline.TransferRecord{}
	}
	writeJSON(w, http.StatusOK, listResponse{
		Data:       records,
		Pagination: pagination{Offset: offset, Limit: limit, Total: total},
	})
}

// handleGetTransfer serves a single record. Records never change once
// written, so lookups are cached without invalidation.
func (s *server) handleGetTransfer(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ctx := r.Context()

	if s.deps.Cache != nil {
		if rec, ok := s.deps.Cache.Get(ctx, id); ok {
			writeJSON(w, http.StatusOK, rec)
			return
		}
	}

	rec, err := s.deps.Store.GetTransfer(ctx, id)
	switch {
	case errors.Is(err, streamline.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse("transfer not found"))
		return
	case err != nil:
		slog.LogAttrs(ctx, slog.LevelError, "get transfer failed",
			slog.String("id", id),
			slog.String("error", err.Error()),
		)
		writeJSON(w, http.StatusInternalServerError, errorResponse("failed to get transfer"))
		return
	}

	if s.deps.Cache != nil {
		s.deps.Cache.Set(ctx, id, rec, 0)
	}
	writeJSON(w, http.StatusOK, rec)
}
