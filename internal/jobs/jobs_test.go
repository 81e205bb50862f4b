package jobs_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vrsandeep/oilspill-go/internal/jobs"
	"github.com/vrsandeep/oilspill-go/internal/processing"
	"github.com/vrsandeep/oilspill-go/internal/uploads"
)

func TestRunUploadPrune(t *testing.T) {
	ctx := newFakeContext()
	go ctx.ws.Run()

	mgr, err := uploads.NewManager(filepath.Join(t.TempDir(), "uploads"), 0)
	require.NoError(t, err)
	ctx.uploads = mgr

	ctx.machine = processing.New(processing.WithUploadLatency(0))
	t.Cleanup(ctx.machine.Close)

	stale, err := mgr.Save("stale.tif", "", strings.NewReader("x"))
	require.NoError(t, err)
	current, err := mgr.Save("current.tif", "", strings.NewReader("x"))
	require.NoError(t, err)

	past := time.Now().Add(-2 * ctx.cfg.Retention())
	require.NoError(t, os.Chtimes(stale.Path, past, past))
	require.NoError(t, os.Chtimes(current.Path, past, past))

	ctx.machine.UploadFile(current)
	require.Eventually(t, func() bool {
		return ctx.machine.Snapshot().UploadStatus == processing.UploadCompleted
	}, time.Second, 5*time.Millisecond)

	jobs.RunUploadPrune(ctx)

	assert.NoFileExists(t, stale.Path)
	assert.FileExists(t, current.Path, "the loaded file is never pruned")
}

func TestRegisterAll(t *testing.T) {
	ctx := newFakeContext()
	jobs.RegisterAll(ctx.jobMgr)

	statuses := ctx.jobMgr.GetStatus()
	require.Len(t, statuses, 1)
	assert.Equal(t, jobs.UploadPruneJobID, statuses[0].ID)
}

func TestStartJobs_DisabledInterval(t *testing.T) {
	ctx := newFakeContext()
	ctx.cfg.Jobs.PruneInterval = 0

	s := jobs.StartJobs(ctx)
	defer s.Stop()
	assert.Empty(t, s.Jobs())
}

func TestStartJobs_SchedulesPrune(t *testing.T) {
	ctx := newFakeContext()

	s := jobs.StartJobs(ctx)
	defer s.Stop()
	assert.Len(t, s.Jobs(), 1)
}
