package jobs

import (
	"fmt"
	"log"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/vrsandeep/oilspill-go/internal/models"
)

const UploadPruneJobID = "upload-prune"

// RegisterAll registers every background job with jm.
func RegisterAll(jm *JobManager) {
	jm.Register(UploadPruneJobID, "Prune old uploads", RunUploadPrune)
}

// StartJobs starts the background job scheduler. The caller stops it on
// shutdown.
func StartJobs(app JobContext) *gocron.Scheduler {
	s := gocron.NewScheduler(time.UTC)
	s.SingletonModeAll()

	startUploadPruneJob(s, app)

	log.Println("Starting background job scheduler...")
	s.StartAsync()
	return s
}

func startUploadPruneJob(s *gocron.Scheduler, app JobContext) {
	interval := app.Config().Jobs.PruneInterval
	if interval == 0 {
		log.Println("Upload prune interval is 0, scheduled pruning is disabled.")
		return
	}

	log.Printf("Scheduling job: '%s' to run every %d minutes.", UploadPruneJobID, interval)

	_, err := s.Every(interval).Minutes().WaitForSchedule().Do(func() {
		log.Println("Scheduler is triggering job:", UploadPruneJobID)
		// Go through the manager so a manual run and a scheduled run never overlap.
		if err := app.JobManager().RunJob(UploadPruneJobID, app); err != nil {
			log.Printf("Scheduled job '%s' could not start: %v", UploadPruneJobID, err)
		}
	})
	if err != nil {
		log.Printf("Error scheduling '%s' job: %v", UploadPruneJobID, err)
	}
}

// RunUploadPrune deletes uploaded files older than the retention window.
// The file currently loaded in the machine is always kept.
func RunUploadPrune(ctx JobContext) {
	sendProgress(ctx, UploadPruneJobID, "Pruning old uploads...", 0, false)

	keep := ""
	if file := ctx.Machine().Snapshot().CurrentFile; file != nil {
		keep = file.Path
	}

	removed, err := ctx.Uploads().Prune(keep, ctx.Config().Retention())
	if err != nil {
		log.Printf("Upload prune failed: %v", err)
		ctx.JobManager().Fail(UploadPruneJobID, err.Error())
		sendProgress(ctx, UploadPruneJobID, fmt.Sprintf("Prune failed: %v", err), 100, true)
		return
	}

	log.Printf("Upload prune removed %d file(s)", removed)
	sendProgress(ctx, UploadPruneJobID, fmt.Sprintf("Prune complete. Removed %d file(s).", removed), 100, true)
}

func sendProgress(ctx JobContext, jobID, message string, progress float64, done bool) {
	ctx.WsHub().BroadcastJSON(models.ProgressUpdate{
		Type:     "job",
		JobID:    jobID,
		Message:  message,
		Progress: progress,
		Done:     done,
	})
}
