package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/vrsandeep/oilspill-go/internal/processing"
	"github.com/vrsandeep/oilspill-go/internal/uploads"
)

type runOptions struct {
	timeScale float64
	stopAfter time.Duration
	noColor   *bool
}

func newRunCommand(noColor *bool) *cobra.Command {
	opts := &runOptions{noColor: noColor}
	cmd := &cobra.Command{
		Use:   "run FILE",
		Short: "Load a TIFF image and run the detection pipeline",
		Long: `Load a TIFF image into a fresh processing machine, wait for the simulated
upload, start the analysis and print each log entry as it is produced.

Press Ctrl+C to stop the run early.

Examples:
  oilspill-cli run scene.tif
  oilspill-cli run --time-scale 0.1 scene.tif
  oilspill-cli run --stop-after 5s scene.tif`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runPipeline(ctx, cmd.OutOrStdout(), args[0], opts)
		},
	}

	cmd.Flags().Float64Var(&opts.timeScale, "time-scale", 1, "multiply every pipeline delay by this factor")
	cmd.Flags().DurationVar(&opts.stopAfter, "stop-after", 0, "stop the run after this long (0 runs to completion)")

	return cmd
}

func fileHandleFor(path string) (*processing.FileHandle, error) {
	if !uploads.IsSupported(path) {
		return nil, uploads.ErrUnsupportedType
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}
	return &processing.FileHandle{
		ID:          uuid.NewString(),
		Name:        filepath.Base(abs),
		Size:        info.Size(),
		ContentType: "image/tiff",
		Path:        abs,
		UploadedAt:  time.Now(),
	}, nil
}

func runPipeline(ctx context.Context, out io.Writer, path string, opts *runOptions) error {
	if opts.timeScale < 0 {
		return errors.New("--time-scale must not be negative")
	}
	file, err := fileHandleFor(path)
	if err != nil {
		return err
	}

	f := formatter{color: opts.noColor == nil || !*opts.noColor}
	m := processing.New(processing.WithTimeScale(opts.timeScale))
	defer m.Close()

	uploaded := make(chan struct{})
	finished := make(chan processing.ProcessingStatus, 1)
	unsubscribe := m.Subscribe(func(prev, next processing.State) {
		for _, e := range processing.NewEntries(prev.Logs, next.Logs) {
			fmt.Fprintln(out, f.entry(e))
		}
		if prev.UploadStatus != processing.UploadCompleted && next.UploadStatus == processing.UploadCompleted {
			close(uploaded)
		}
		if prev.ProcessingStatus == processing.ProcessingRunning && next.ProcessingStatus != processing.ProcessingRunning {
			select {
			case finished <- next.ProcessingStatus:
			default:
			}
		}
	})
	defer unsubscribe()

	steps := processing.DefaultScript()
	total := time.Duration(float64(processing.ScriptDuration(steps)) * opts.timeScale)
	fmt.Fprintln(out, f.header(fmt.Sprintf("Analysing %s: %d steps, about %s", file.Name, len(steps), total.Round(time.Millisecond))))

	m.UploadFile(file)
	select {
	case <-uploaded:
	case <-ctx.Done():
		return errors.New("interrupted before the upload finished")
	}

	m.StartProcessing()
	if opts.stopAfter > 0 {
		timer := time.AfterFunc(opts.stopAfter, m.StopProcessing)
		defer timer.Stop()
	}

	var status processing.ProcessingStatus
	select {
	case status = <-finished:
	case <-ctx.Done():
		m.StopProcessing()
		status = <-finished
	}

	fmt.Fprintln(out, f.header("Run finished: "+describe(status)))
	return nil
}

func describe(s processing.ProcessingStatus) string {
	switch s {
	case processing.ProcessingCompleted:
		return "completed"
	case processing.ProcessingIdle:
		return "stopped"
	}
	return string(s)
}
