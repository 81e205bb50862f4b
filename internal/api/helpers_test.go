package api_test

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/vrsandeep/oilspill-go/internal/api"
	"github.com/vrsandeep/oilspill-go/internal/config"
	"github.com/vrsandeep/oilspill-go/internal/core"
	"github.com/vrsandeep/oilspill-go/internal/models"
	"github.com/vrsandeep/oilspill-go/internal/processing"
	"github.com/vrsandeep/oilspill-go/internal/testutil"
)

// setupTestServer builds an App on an in-memory database with a fast
// pipeline and returns it together with its router.
func setupTestServer(t *testing.T, configure func(*config.Config), opts ...processing.Option) (*core.App, http.Handler) {
	t.Helper()
	cfg := config.Default()
	cfg.Uploads.Path = filepath.Join(t.TempDir(), "uploads")
	cfg.Jobs.PruneInterval = 0
	if configure != nil {
		configure(cfg)
	}

	opts = append([]processing.Option{
		processing.WithUploadLatency(0),
		processing.WithScript([]processing.Step{{Message: "step", Delay: time.Millisecond}}),
	}, opts...)
	app, err := core.Build(cfg, testutil.SetupTestDB(t), "test", opts...)
	require.NoError(t, err)
	t.Cleanup(app.Close)

	return app, api.NewServer(app).Router()
}

func doRequest(t *testing.T, router http.Handler, method, url string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, url, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func uploadRequest(t *testing.T, router http.Handler, field, name string, content []byte) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile(field, name)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func decodeState(t *testing.T, rr *httptest.ResponseRecorder) models.StateUpdate {
	t.Helper()
	var update models.StateUpdate
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &update), rr.Body.String())
	return update
}

// loadFile uploads a small valid TIFF and waits for the upload to finish.
func loadFile(t *testing.T, app *core.App, router http.Handler) {
	t.Helper()
	rr := uploadRequest(t, router, "file", "scene.tif", testutil.TIFFBytes(t, 64, 32))
	require.Equal(t, http.StatusAccepted, rr.Code, rr.Body.String())
	require.Eventually(t, func() bool {
		return app.Machine().Snapshot().UploadStatus == processing.UploadCompleted
	}, time.Second, 5*time.Millisecond)
}
