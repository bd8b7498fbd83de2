package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/hearth/internal/state"
)

// maxQueryParamLen limits query parameter length to prevent DoS via oversized URL params.
const maxQueryParamLen = 100

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
	defaultListLimit    = 20
	maxListLimit        = 200
)

// handleListDevices returns device states, optionally filtered by room or type.
func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	room := r.URL.Query().Get("room")
	devType := r.URL.Query().Get("type")
	if len(room) > maxQueryParamLen || len(devType) > maxQueryParamLen {
		writeError(w, ErrCodeBadRequest, "query parameter too long")
		return
	}

	all := s.pipeline.Status().Devices
	devices := make([]state.DeviceState, 0, len(all))
	for _, d := range all {
		if room != "" && d.Room != room {
			continue
		}
		if devType != "" && d.Type != devType {
			continue
		}
		devices = append(devices, d)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"devices": devices,
		"count":   len(devices),
	})
}

// handleGetDevice returns one device state by name or alias.
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if name == "" || len(name) > maxQueryParamLen {
		writeError(w, ErrCodeBadRequest, "invalid device name")
		return
	}
	d, ok := s.devices.Lookup(name)
	if !ok {
		writeError(w, ErrCodeNotFound, "device not found")
		return
	}
	for _, ds := range s.pipeline.Status().Devices {
		if ds.Name == d.Name {
			writeJSON(w, http.StatusOK, ds)
			return
		}
	}
	writeError(w, ErrCodeNotFound, "device not found")
}

// handleGetDeviceHistory returns state history entries for a device.
func (s *Server) handleGetDeviceHistory(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if name == "" || len(name) > maxQueryParamLen {
		writeError(w, ErrCodeBadRequest, "invalid device name")
		return
	}

	limit, err := parseLimit(r.URL.Query().Get("limit"), defaultHistoryLimit, maxHistoryLimit)
	if err != nil {
		writeError(w, ErrCodeBadRequest, err.Error())
		return
	}

	since, err := parseSinceParam(r.URL.Query().Get("since"))
	if err != nil {
		writeError(w, ErrCodeBadRequest, "invalid since timestamp")
		return
	}

	d, ok := s.devices.Lookup(name)
	if !ok {
		writeError(w, ErrCodeNotFound, "device not found")
		return
	}

	if s.history == nil {
		writeError(w, ErrCodeUnavailable, "state history unavailable")
		return
	}

	entries, err := s.history.GetHistory(r.Context(), d.Name, limit)
	if err != nil {
		s.logger.Error("loading device history", "device", d.Name, "error", err)
		writeError(w, ErrCodeInternal, "failed to load device history")
		return
	}

	if !since.IsZero() {
		filtered := entries[:0]
		for _, entry := range entries {
			if entry.CreatedAt.After(since) {
				filtered = append(filtered, entry)
			}
		}
		entries = filtered
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"device":  d.Name,
		"history": entries,
		"count":   len(entries),
	})
}

// handleListScenes returns the registered scenes.
func (s *Server) handleListScenes(w http.ResponseWriter, _ *http.Request) {
	scenes := s.scenes.List()
	writeJSON(w, http.StatusOK, map[string]any{
		"scenes": scenes,
		"count":  len(scenes),
	})
}

// handleListCommands returns the most recent handled commands.
func (s *Server) handleListCommands(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r.URL.Query().Get("limit"), defaultListLimit, maxListLimit)
	if err != nil {
		writeError(w, ErrCodeBadRequest, err.Error())
		return
	}
	entries, err := s.pipeline.RecentCommands(r.Context(), limit)
	if err != nil {
		s.logger.Error("loading command log", "error", err)
		writeError(w, ErrCodeInternal, "failed to load command log")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"commands": entries,
		"count":    len(entries),
	})
}

// handleListRuns returns the most recent automation runs.
func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r.URL.Query().Get("limit"), defaultListLimit, maxListLimit)
	if err != nil {
		writeError(w, ErrCodeBadRequest, err.Error())
		return
	}
	if s.runs == nil {
		writeError(w, ErrCodeUnavailable, "automation history unavailable")
		return
	}
	runs, err := s.runs.ListRuns(r.Context(), limit)
	if err != nil {
		s.logger.Error("loading automation runs", "error", err)
		writeError(w, ErrCodeInternal, "failed to load automation runs")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"runs":  runs,
		"count": len(runs),
	})
}

// parseLimit parses a positive limit bounded by maxLimit.
func parseLimit(raw string, defaultLimit, maxLimit int) (int, error) {
	if raw == "" {
		return defaultLimit, nil
	}

	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return 0, fmt.Errorf("invalid limit")
	}
	if limit > maxLimit {
		return 0, fmt.Errorf("limit exceeds maximum")
	}

	return limit, nil
}

// parseSinceParam parses the since parameter as RFC3339/RFC3339Nano.
func parseSinceParam(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, raw)
}
