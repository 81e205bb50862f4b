package models

import "github.com/vrsandeep/oilspill-go/internal/processing"

// StateUpdate is pushed over the websocket after every transition and
// returned by GET /api/state.
type StateUpdate struct {
	Type     string           `json:"type"` // always "state"
	State    processing.State `json:"state"`
	CanStart bool             `json:"canStart"`
}

// NewStateUpdate wraps s for the wire.
func NewStateUpdate(s processing.State) StateUpdate {
	return StateUpdate{Type: "state", State: s, CanStart: s.CanStart()}
}

// ProgressUpdate reports background job progress over the websocket.
type ProgressUpdate struct {
	Type     string  `json:"type"` // always "job"
	JobID    string  `json:"jobId"`
	Message  string  `json:"message"`
	Progress float64 `json:"progress"`
	Done     bool    `json:"done"`
}
