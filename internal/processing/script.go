package processing

import "time"

// Step is one scripted pipeline stage: wait Delay, then log Message.
type Step struct {
	Message string
	Delay   time.Duration
}

// Fixed log messages emitted by the Machine.
const (
	MsgUploadStarted     = "Starting upload: %s"
	MsgUploadCompleted   = "File uploaded successfully"
	MsgReadyForAnalysis  = "Ready for processing"
	MsgAnalysisStarted   = "Starting image analysis..."
	MsgAnalysisCompleted = "Oil spill detection complete. Results ready for visualization."
	MsgStoppedByUser     = "Processing stopped by user"
	MsgSystemReset       = "System reset"
)

// DefaultUploadLatency is how long UploadFile pretends the transfer takes.
const DefaultUploadLatency = 2000 * time.Millisecond

// DefaultScript returns the stages of the simulated segmentation pipeline.
// Each call returns a new slice.
func DefaultScript() []Step {
	return []Step{
		{"Initializing PyVips tiler...", 1000 * time.Millisecond},
		{"Creating DZI tiles from source image...", 2000 * time.Millisecond},
		{"Generated 1,256 tiles for processing", 1500 * time.Millisecond},
		{"Loading TransUNet segmentation model...", 2000 * time.Millisecond},
		{"Processing tile batch 1/42...", 1500 * time.Millisecond},
		{"Processing tile batch 15/42...", 1500 * time.Millisecond},
		{"Processing tile batch 30/42...", 1500 * time.Millisecond},
		{"Processing tile batch 42/42...", 1500 * time.Millisecond},
		{"Oil spill regions detected in 23 tiles", 1000 * time.Millisecond},
		{"Stitching prediction masks...", 2000 * time.Millisecond},
		{"Generating prediction DZI tiles...", 1500 * time.Millisecond},
		{"Analysis completed successfully!", 1000 * time.Millisecond},
	}
}

// ScriptDuration sums the delays of steps.
func ScriptDuration(steps []Step) time.Duration {
	var total time.Duration
	for _, s := range steps {
		total += s.Delay
	}
	return total
}
