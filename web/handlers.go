package web

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"markestedt/slashgg/keybind"
	"markestedt/slashgg/storage"
)

type keybindView struct {
	Key     uint16 `json:"key"`
	Alt     bool   `json:"alt"`
	Ctrl    bool   `json:"ctrl"`
	Shift   bool   `json:"shift"`
	Unbound bool   `json:"unbound"`
	Display string `json:"display"`
}

type settingsView struct {
	Visible          bool        `json:"visible"`
	RestoreClipboard bool        `json:"restoreClipboard"`
	OpenChat         keybindView `json:"openChat"`
}

type captureView struct {
	State     string `json:"state"`
	Candidate string `json:"candidate,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("Failed to write response", "error", err)
	}
}

func (s *Server) keybindView(kb keybind.Keybind) keybindView {
	return keybindView{
		Key:     kb.Key,
		Alt:     kb.Alt,
		Ctrl:    kb.Ctrl,
		Shift:   kb.Shift,
		Unbound: kb.IsUnbound(),
		Display: s.render(kb),
	}
}

func (s *Server) settingsView() settingsView {
	return settingsView{
		Visible:          s.Settings.Visible(),
		RestoreClipboard: s.Settings.RestoreClipboard(),
		OpenChat:         s.keybindView(s.Settings.OpenChat()),
	}
}

func (s *Server) captureView(state keybind.CaptureState, candidate keybind.Keybind) captureView {
	v := captureView{State: state.String()}
	if state == keybind.Listening {
		v.Candidate = s.render(candidate)
	}
	return v
}

func (s *Server) statusView() StatusMessage {
	status := StatusMessage{Status: "idle"}
	if s.Status != nil {
		if s.Status.Running() {
			status.Status = "replaying"
		}
		status.Dropped = s.Status.Dropped()
	}
	return status
}

// handleSettings handles GET and PUT requests for the user settings
func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, s.settingsView())
	case http.MethodPut:
		s.handlePutSettings(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handlePutSettings updates the option toggles. The keybind is changed through capture.
func (s *Server) handlePutSettings(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Visible          *bool `json:"visible"`
		RestoreClipboard *bool `json:"restoreClipboard"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if req.Visible != nil {
		if err := s.Settings.SetVisible(*req.Visible); err != nil {
			slog.Error("Failed to save settings", "error", err)
			http.Error(w, "Failed to save settings", http.StatusInternalServerError)
			return
		}
	}
	if req.RestoreClipboard != nil {
		if err := s.Settings.SetRestoreClipboard(*req.RestoreClipboard); err != nil {
			slog.Error("Failed to save settings", "error", err)
			http.Error(w, "Failed to save settings", http.StatusInternalServerError)
			return
		}
	}

	writeJSON(w, http.StatusOK, s.settingsView())
}

// handleCapture reports the capture state on GET and drives it on POST
func (s *Server) handleCapture(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		candidate, _ := s.Capture.Candidate()
		writeJSON(w, http.StatusOK, s.captureView(s.Capture.State(), candidate))
		return
	case http.MethodPost:
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Action string `json:"action"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	var err error
	switch req.Action {
	case "begin":
		s.Capture.Begin()
	case "accept":
		err = s.Capture.Accept()
	case "cancel":
		s.Capture.Cancel()
	case "unbind":
		err = s.Capture.Unbind()
	default:
		http.Error(w, "Unknown action", http.StatusBadRequest)
		return
	}

	if errors.Is(err, keybind.ErrNotListening) {
		http.Error(w, "Not capturing", http.StatusConflict)
		return
	}
	if err != nil {
		slog.Error("Failed to store keybind", "action", req.Action, "error", err)
		http.Error(w, "Failed to store keybind", http.StatusInternalServerError)
		return
	}

	candidate, _ := s.Capture.Candidate()
	writeJSON(w, http.StatusOK, struct {
		Capture  captureView `json:"capture"`
		Settings settingsView `json:"settings"`
	}{
		Capture:  s.captureView(s.Capture.State(), candidate),
		Settings: s.settingsView(),
	})
}

// handleKeys returns every resolvable scancode and its display name
func (s *Server) handleKeys(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	type key struct {
		Scancode uint16 `json:"scancode"`
		Name     string `json:"name"`
	}

	keys := make([]key, 0, s.Table.Len())
	for _, code := range s.Table.Codes() {
		name, _ := s.Table.Lookup(code)
		keys = append(keys, key{Scancode: code, Name: name})
	}

	writeJSON(w, http.StatusOK, keys)
}

// handleTrigger schedules a replay from the dashboard button
func (s *Server) handleTrigger(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if !s.Settings.Visible() {
		http.Error(w, "Trigger is hidden", http.StatusConflict)
		return
	}

	scheduled := s.Trigger.Trigger()
	if !scheduled {
		slog.Debug("Dashboard trigger coalesced")
	}

	writeJSON(w, http.StatusAccepted, map[string]bool{"scheduled": scheduled})
}

// parseStatsTime accepts RFC 3339 timestamps or plain dates. A plain date used
// as the end of a range covers the whole day.
func parseStatsTime(value string, end bool) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	day, err := time.ParseInLocation(time.DateOnly, value, time.Local)
	if err != nil {
		return time.Time{}, err
	}
	if end {
		return day.AddDate(0, 0, 1).Add(-time.Nanosecond), nil
	}
	return day, nil
}

// handleStats returns statistics for the last N days, or for from/to when given
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.DB == nil {
		http.Error(w, "History is disabled", http.StatusServiceUnavailable)
		return
	}

	from, to := r.URL.Query().Get("from"), r.URL.Query().Get("to")
	if from != "" || to != "" {
		s.handleRangeStats(w, from, to)
		return
	}

	daysStr := r.URL.Query().Get("days")
	days := 7 // default to 7 days
	if daysStr != "" {
		if d, err := strconv.Atoi(daysStr); err == nil && d > 0 {
			days = d
		}
	}

	overall, err := s.DB.GetOverallStats(days)
	if err != nil {
		slog.Error("Failed to get overall stats", "error", err)
		http.Error(w, "Failed to get statistics", http.StatusInternalServerError)
		return
	}

	daily, err := s.DB.GetDailyStats(days)
	if err != nil {
		slog.Error("Failed to get daily stats", "error", err)
		http.Error(w, "Failed to get statistics", http.StatusInternalServerError)
		return
	}

	sequence, err := s.DB.GetSequenceStats(days)
	if err != nil {
		slog.Error("Failed to get sequence stats", "error", err)
		http.Error(w, "Failed to get statistics", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"overall":  overall,
		"daily":    daily,
		"sequence": sequence,
	})
}

// handleRangeStats returns overall statistics between from and to.
// A missing from starts at the first replay and a missing to ends now.
func (s *Server) handleRangeStats(w http.ResponseWriter, from, to string) {
	var start time.Time
	end := time.Now()

	if from != "" {
		t, err := parseStatsTime(from, false)
		if err != nil {
			http.Error(w, "Invalid from", http.StatusBadRequest)
			return
		}
		start = t
	}
	if to != "" {
		t, err := parseStatsTime(to, true)
		if err != nil {
			http.Error(w, "Invalid to", http.StatusBadRequest)
			return
		}
		end = t
	}
	if end.Before(start) {
		http.Error(w, "from is after to", http.StatusBadRequest)
		return
	}

	overall, err := s.DB.GetStatsForDateRange(start, end)
	if err != nil {
		slog.Error("Failed to get range stats", "error", err)
		http.Error(w, "Failed to get statistics", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"overall": overall,
		"from":    start.UTC().Format(time.RFC3339),
		"to":      end.UTC().Format(time.RFC3339),
	})
}

// handleHistory handles GET and DELETE requests for replay history
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.DB == nil {
		http.Error(w, "History is disabled", http.StatusServiceUnavailable)
		return
	}

	switch r.Method {
	case http.MethodGet:
		s.handleGetHistory(w, r)
	case http.MethodDelete:
		s.handleDeleteHistory(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleGetHistory returns paginated replay history
func (s *Server) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	limitStr := r.URL.Query().Get("limit")
	offsetStr := r.URL.Query().Get("offset")

	limit := 50 // default
	offset := 0

	if limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 {
			limit = l
		}
	}

	if offsetStr != "" {
		if o, err := strconv.Atoi(offsetStr); err == nil && o >= 0 {
			offset = o
		}
	}

	replays, err := s.DB.GetReplays(limit, offset)
	if err != nil {
		slog.Error("Failed to get replays", "error", err)
		http.Error(w, "Failed to get history", http.StatusInternalServerError)
		return
	}
	if replays == nil {
		replays = []storage.Replay{}
	}

	total, err := s.DB.GetReplayCount()
	if err != nil {
		slog.Error("Failed to get replay count", "error", err)
		http.Error(w, "Failed to get history", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"replays": replays,
		"total":   total,
		"limit":   limit,
		"offset":  offset,
	})
}

// handleDeleteHistory deletes a replay by ID (e.g., /api/history/123)
func (s *Server) handleDeleteHistory(w http.ResponseWriter, r *http.Request) {
	idStr := strings.TrimPrefix(r.URL.Path, "/api/history/")
	if idStr == r.URL.Path || idStr == "" {
		http.Error(w, "Invalid path", http.StatusBadRequest)
		return
	}

	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		http.Error(w, "Invalid ID", http.StatusBadRequest)
		return
	}

	if err := s.DB.DeleteReplay(id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			http.Error(w, "Replay not found", http.StatusNotFound)
			return
		}
		slog.Error("Failed to delete replay", "error", err, "id", id)
		http.Error(w, "Failed to delete replay", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

// handleStatus returns whether a replay is in flight
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	writeJSON(w, http.StatusOK, s.statusView())
}
