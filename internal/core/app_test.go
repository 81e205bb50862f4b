package core_test

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vrsandeep/oilspill-go/internal/config"
	"github.com/vrsandeep/oilspill-go/internal/core"
	"github.com/vrsandeep/oilspill-go/internal/jobs"
	"github.com/vrsandeep/oilspill-go/internal/models"
	"github.com/vrsandeep/oilspill-go/internal/processing"
	"github.com/vrsandeep/oilspill-go/internal/testutil"
)

func buildApp(t *testing.T) *core.App {
	t.Helper()
	cfg := config.Default()
	cfg.Uploads.Path = filepath.Join(t.TempDir(), "uploads")
	cfg.Jobs.PruneInterval = 0

	app, err := core.Build(cfg, testutil.SetupTestDB(t), "test",
		processing.WithUploadLatency(0),
		processing.WithScript([]processing.Step{{Message: "step", Delay: time.Millisecond}}))
	require.NoError(t, err)
	t.Cleanup(app.Close)
	return app
}

func TestBuild(t *testing.T) {
	app := buildApp(t)

	assert.Equal(t, "test", app.Version)
	assert.NotNil(t, app.Machine())
	assert.NotNil(t, app.Store())
	assert.NotNil(t, app.WsHub())
	assert.NotNil(t, app.Previews())
	assert.DirExists(t, app.Uploads().Dir())

	statuses := app.JobManager().GetStatus()
	require.Len(t, statuses, 1)
	assert.Equal(t, jobs.UploadPruneJobID, statuses[0].ID)
}

func TestBuild_StopsInterruptedRuns(t *testing.T) {
	cfg := config.Default()
	cfg.Uploads.Path = t.TempDir()
	database := testutil.SetupTestDB(t)

	// A previous process died mid-run.
	_, err := database.Exec(
		"INSERT INTO runs (file_id, file_name, status, started_at, log_count) VALUES ('f', 'f.tif', ?, ?, 0)",
		models.RunRunning, time.Now())
	require.NoError(t, err)

	app, err := core.Build(cfg, database, "test")
	require.NoError(t, err)
	defer app.Close()

	runs, err := app.Store().ListRuns(10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, models.RunStopped, runs[0].Status)
}

func TestApp_RecordsHistoryAndReleasesFiles(t *testing.T) {
	app := buildApp(t)
	m := app.Machine()

	first, err := app.Uploads().Save("first.tif", "", strings.NewReader("x"))
	require.NoError(t, err)
	m.UploadFile(first)
	require.Eventually(t, func() bool {
		return m.Snapshot().UploadStatus == processing.UploadCompleted
	}, time.Second, 5*time.Millisecond)

	m.StartProcessing()
	require.Eventually(t, func() bool {
		return m.Snapshot().ProcessingStatus == processing.ProcessingCompleted
	}, time.Second, 5*time.Millisecond)

	second, err := app.Uploads().Save("second.tif", "", strings.NewReader("y"))
	require.NoError(t, err)
	m.UploadFile(second)

	assert.Eventually(t, func() bool {
		runs, err := app.Store().ListRuns(10)
		return err == nil && len(runs) == 1 && runs[0].Status == models.RunCompleted
	}, time.Second, 5*time.Millisecond)
	assert.Eventually(t, func() bool {
		uploads, err := app.Store().ListUploads(10)
		return err == nil && len(uploads) == 2
	}, time.Second, 5*time.Millisecond)
	assert.NoFileExists(t, first.Path, "superseded upload is removed from disk")
	assert.FileExists(t, second.Path)
}

func TestStartBackground_InboxDisabled(t *testing.T) {
	app := buildApp(t)
	assert.NoError(t, app.StartBackground())
}
