// Records kept in the history database. They describe what happened to the
// processing state over time and are never read back into it.

package models

import "time"

// Run statuses stored in the runs table.
const (
	RunRunning   = "running"
	RunCompleted = "completed"
	RunStopped   = "stopped"
	RunFailed    = "failed"
)

// Upload is one completed file upload.
type Upload struct {
	ID          int64     `json:"id"`
	FileID      string    `json:"file_id"`
	Name        string    `json:"name"`
	Size        int64     `json:"size"`
	ContentType string    `json:"content_type"`
	UploadedAt  time.Time `json:"uploaded_at"`
}

// Run is one start of the analysis pipeline.
type Run struct {
	ID         int64      `json:"id"`
	FileID     string     `json:"file_id"`
	FileName   string     `json:"file_name"`
	Status     string     `json:"status"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	LogCount   int        `json:"log_count"`
}
