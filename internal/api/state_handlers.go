package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/vrsandeep/oilspill-go/internal/models"
	"github.com/vrsandeep/oilspill-go/internal/processing"
)

func respondWithState(w http.ResponseWriter, code int, m *processing.Machine) {
	RespondWithJSON(w, code, models.NewStateUpdate(m.Snapshot()))
}

func handleGetState(w http.ResponseWriter, r *http.Request) {
	m := machineFromRequest(w, r)
	if m == nil {
		return
	}
	respondWithState(w, http.StatusOK, m)
}

// handleStartProcessing always forwards to the machine, which ignores the
// request when it cannot start. The status code tells the caller which
// case applied.
func handleStartProcessing(w http.ResponseWriter, r *http.Request) {
	m := machineFromRequest(w, r)
	if m == nil {
		return
	}
	if !m.TryStartProcessing() {
		RespondWithError(w, http.StatusConflict, "Processing cannot start: no file loaded or a run is already in progress")
		return
	}
	respondWithState(w, http.StatusAccepted, m)
}

func handleStopProcessing(w http.ResponseWriter, r *http.Request) {
	m := machineFromRequest(w, r)
	if m == nil {
		return
	}
	m.StopProcessing()
	respondWithState(w, http.StatusAccepted, m)
}

func handleResetProcessing(w http.ResponseWriter, r *http.Request) {
	m := machineFromRequest(w, r)
	if m == nil {
		return
	}
	m.ResetProcessing()
	respondWithState(w, http.StatusAccepted, m)
}

func handleToggleLayer(w http.ResponseWriter, r *http.Request) {
	layer, ok := processing.ParseLayer(chi.URLParam(r, "layer"))
	if !ok {
		RespondWithError(w, http.StatusBadRequest, "Unknown layer")
		return
	}
	m := machineFromRequest(w, r)
	if m == nil {
		return
	}
	m.ToggleLayer(layer)
	respondWithState(w, http.StatusOK, m)
}

func handleSetPredictionOpacity(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Opacity *float64 `json:"opacity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil || payload.Opacity == nil {
		RespondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	m := machineFromRequest(w, r)
	if m == nil {
		return
	}
	// The machine stores whatever it is given; the range belongs to the slider.
	m.SetPredictionOpacity(clampOpacity(*payload.Opacity))
	respondWithState(w, http.StatusOK, m)
}

func clampOpacity(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}

func handleAddLog(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Message  string              `json:"message"`
		Severity processing.Severity `json:"severity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		RespondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	if strings.TrimSpace(payload.Message) == "" {
		RespondWithError(w, http.StatusBadRequest, "Message is required")
		return
	}
	if payload.Severity == "" {
		payload.Severity = processing.SeverityInfo
	}
	if !payload.Severity.Valid() {
		RespondWithError(w, http.StatusBadRequest, "Severity must be one of info, success, warning, error")
		return
	}
	m := machineFromRequest(w, r)
	if m == nil {
		return
	}
	m.AddLog(payload.Message, payload.Severity)
	respondWithState(w, http.StatusAccepted, m)
}
