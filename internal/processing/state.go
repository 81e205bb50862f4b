// Package processing holds the oil spill analysis state: the state types,
// the commands that transform them, and the Machine that owns the single
// mutable copy and drives the scripted pipeline.
package processing

import "time"

// MaxLogs is the number of log entries kept in State.Logs. Older entries
// are evicted first.
const MaxLogs = 50

// DefaultPredictionOpacity is the overlay opacity a fresh state starts with.
const DefaultPredictionOpacity = 0.7

type UploadStatus string

const (
	UploadIdle      UploadStatus = "idle"
	UploadUploading UploadStatus = "uploading"
	UploadCompleted UploadStatus = "completed"
	UploadError     UploadStatus = "error"
)

type ProcessingStatus string

const (
	ProcessingIdle      ProcessingStatus = "idle"
	ProcessingRunning   ProcessingStatus = "processing"
	ProcessingCompleted ProcessingStatus = "completed"
	ProcessingError     ProcessingStatus = "error"
)

type Severity string

const (
	SeverityInfo    Severity = "info"
	SeveritySuccess Severity = "success"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Valid reports whether s is one of the four known severities.
func (s Severity) Valid() bool {
	switch s {
	case SeverityInfo, SeveritySuccess, SeverityWarning, SeverityError:
		return true
	}
	return false
}

// Layer names one of the two viewer layers.
type Layer string

const (
	LayerOriginal   Layer = "original"
	LayerPrediction Layer = "prediction"
)

// ParseLayer maps a layer name to a Layer.
func ParseLayer(name string) (Layer, bool) {
	switch Layer(name) {
	case LayerOriginal, LayerPrediction:
		return Layer(name), true
	}
	return "", false
}

// FileHandle describes the uploaded image the state currently points at.
type FileHandle struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Size        int64     `json:"size"`
	ContentType string    `json:"contentType,omitempty"`
	Path        string    `json:"-"`
	UploadedAt  time.Time `json:"uploadedAt"`
}

type LayerVisibility struct {
	Original   bool `json:"original"`
	Prediction bool `json:"prediction"`
}

type LogEntry struct {
	ID        string   `json:"id"`
	Timestamp string   `json:"timestamp"`
	Message   string   `json:"message"`
	Severity  Severity `json:"type"`
}

// State is the whole application state. A State value is never modified
// after it has been published; every transition builds a new one.
type State struct {
	CurrentFile       *FileHandle      `json:"currentFile"`
	UploadStatus      UploadStatus     `json:"uploadStatus"`
	ProcessingStatus  ProcessingStatus `json:"processingStatus"`
	LayerVisibility   LayerVisibility  `json:"layerVisibility"`
	PredictionOpacity float64          `json:"predictionOpacity"`
	Logs              []LogEntry       `json:"logs"`
}

// InitialState returns the state a new Machine starts with.
func InitialState() State {
	return State{
		UploadStatus:     UploadIdle,
		ProcessingStatus: ProcessingIdle,
		LayerVisibility: LayerVisibility{
			Original:   true,
			Prediction: true,
		},
		PredictionOpacity: DefaultPredictionOpacity,
		Logs:              []LogEntry{},
	}
}

// CanStart reports whether StartProcessing would do anything in this state.
func (s State) CanStart() bool {
	return s.CurrentFile != nil && s.ProcessingStatus == ProcessingIdle
}

// HasPredictions reports whether the prediction layer has data to show.
func (s State) HasPredictions() bool {
	return s.ProcessingStatus == ProcessingCompleted
}
