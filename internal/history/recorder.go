// Package history writes an audit trail of uploads and analysis runs to the
// database by watching machine transitions.
package history

import (
	"log"
	"sync"
	"time"

	"github.com/vrsandeep/oilspill-go/internal/models"
	"github.com/vrsandeep/oilspill-go/internal/processing"
	"github.com/vrsandeep/oilspill-go/internal/store"
)

// Recorder turns transitions into upload and run rows. Write failures are
// logged and otherwise ignored; the machine never waits on history.
type Recorder struct {
	store *store.Store
	now   func() time.Time

	mu       sync.Mutex
	runID    int64
	logCount int
}

func NewRecorder(st *store.Store) *Recorder {
	return &Recorder{store: st, now: time.Now}
}

// Attach subscribes the recorder to m's commits and returns the unsubscribe
// function. Whole commits are needed so the log appended alongside a run's
// final status is counted for that run.
func (r *Recorder) Attach(m *processing.Machine) func() {
	return m.SubscribeCommits(r.Observe)
}

// ActiveRun returns the id of the run being recorded, or 0.
func (r *Recorder) ActiveRun() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.runID
}

// Observe records one commit. It is a processing.Listener.
func (r *Recorder) Observe(prev, next processing.State) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if prev.UploadStatus != processing.UploadCompleted &&
		next.UploadStatus == processing.UploadCompleted && next.CurrentFile != nil {
		r.recordUpload(next.CurrentFile)
	}

	started := prev.ProcessingStatus != processing.ProcessingRunning &&
		next.ProcessingStatus == processing.ProcessingRunning
	if started {
		if r.runID != 0 {
			r.finishRun(models.RunStopped)
		}
		r.startRun(next.CurrentFile)
	}

	if r.runID != 0 {
		r.logCount += len(processing.NewEntries(prev.Logs, next.Logs))
	}

	if prev.ProcessingStatus == processing.ProcessingRunning &&
		next.ProcessingStatus != processing.ProcessingRunning && r.runID != 0 {
		r.finishRun(runStatusFor(next.ProcessingStatus))
	}
}

func (r *Recorder) recordUpload(f *processing.FileHandle) {
	_, err := r.store.CreateUpload(&models.Upload{
		FileID:      f.ID,
		Name:        f.Name,
		Size:        f.Size,
		ContentType: f.ContentType,
		UploadedAt:  f.UploadedAt,
	})
	if err != nil {
		log.Printf("history: failed to record upload %s: %v", f.Name, err)
	}
}

func (r *Recorder) startRun(f *processing.FileHandle) {
	var fileID, fileName string
	if f != nil {
		fileID, fileName = f.ID, f.Name
	}
	run, err := r.store.CreateRun(fileID, fileName, r.now())
	if err != nil {
		log.Printf("history: failed to record run start: %v", err)
		return
	}
	r.runID = run.ID
	r.logCount = 0
}

func (r *Recorder) finishRun(status string) {
	if err := r.store.FinishRun(r.runID, status, r.logCount, r.now()); err != nil {
		log.Printf("history: failed to finish run %d: %v", r.runID, err)
	}
	r.runID = 0
	r.logCount = 0
}

func runStatusFor(s processing.ProcessingStatus) string {
	switch s {
	case processing.ProcessingCompleted:
		return models.RunCompleted
	case processing.ProcessingError:
		return models.RunFailed
	default:
		return models.RunStopped
	}
}
