package api_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	gorilla "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vrsandeep/oilspill-go/internal/auth"
	"github.com/vrsandeep/oilspill-go/internal/config"
	"github.com/vrsandeep/oilspill-go/internal/jobs"
	"github.com/vrsandeep/oilspill-go/internal/models"
	"github.com/vrsandeep/oilspill-go/internal/processing"
)

func TestAdminJobs(t *testing.T) {
	_, router := setupTestServer(t, nil)

	t.Run("status lists registered jobs", func(t *testing.T) {
		rr := doRequest(t, router, http.MethodGet, "/api/admin/jobs/status", nil)
		require.Equal(t, http.StatusOK, rr.Code)

		var statuses []jobs.JobStatus
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &statuses))
		require.Len(t, statuses, 1)
		assert.Equal(t, jobs.UploadPruneJobID, statuses[0].ID)
	})

	t.Run("run prune", func(t *testing.T) {
		rr := doRequest(t, router, http.MethodPost, "/api/admin/jobs/run", map[string]string{"job_id": jobs.UploadPruneJobID})
		assert.Equal(t, http.StatusAccepted, rr.Code, rr.Body.String())
	})

	t.Run("unknown job", func(t *testing.T) {
		require.Eventually(t, func() bool {
			rr := doRequest(t, router, http.MethodPost, "/api/admin/jobs/run", map[string]string{"job_id": "nope"})
			return rr.Code == http.StatusConflict && strings.Contains(rr.Body.String(), "not found")
		}, time.Second, 10*time.Millisecond)
	})

	t.Run("bad payload", func(t *testing.T) {
		rr := doRequest(t, router, http.MethodPost, "/api/admin/jobs/run", map[string]string{})
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func TestHistoryEndpoints(t *testing.T) {
	app, router := setupTestServer(t, nil)
	loadFile(t, app, router)
	require.Equal(t, http.StatusAccepted, doRequest(t, router, http.MethodPost, "/api/processing/start", nil).Code)
	require.Eventually(t, func() bool {
		return app.Machine().Snapshot().ProcessingStatus == processing.ProcessingCompleted
	}, time.Second, 5*time.Millisecond)

	var runs []models.Run
	require.Eventually(t, func() bool {
		rr := doRequest(t, router, http.MethodGet, "/api/history/runs", nil)
		return rr.Code == http.StatusOK && json.Unmarshal(rr.Body.Bytes(), &runs) == nil &&
			len(runs) == 1 && runs[0].Status == models.RunCompleted
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, "scene.tif", runs[0].FileName)

	rr := doRequest(t, router, http.MethodGet, "/api/history/uploads?limit=5", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var uploads []models.Upload
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &uploads))
	require.Len(t, uploads, 1)
	assert.Equal(t, "scene.tif", uploads[0].Name)
}

func TestHealthAndVersion(t *testing.T) {
	_, router := setupTestServer(t, nil)

	rr := doRequest(t, router, http.MethodGet, "/api/health", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rr.Body.String())

	rr = doRequest(t, router, http.MethodGet, "/api/version", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"version":"test"}`, rr.Body.String())
}

func TestIndexPage(t *testing.T) {
	_, router := setupTestServer(t, nil)
	rr := doRequest(t, router, http.MethodGet, "/", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "/ws/state")
	// Log entries render oldest first, newest at the bottom.
	assert.NotContains(t, rr.Body.String(), ".reverse()")
}

func TestStateWebsocket(t *testing.T) {
	app, router := setupTestServer(t, nil)
	srv := httptest.NewServer(router)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/state"
	conn, _, err := gorilla.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	read := func() models.StateUpdate {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, data, err := conn.ReadMessage()
		require.NoError(t, err)
		var update models.StateUpdate
		require.NoError(t, json.Unmarshal(data, &update))
		return update
	}

	first := read()
	assert.Equal(t, "state", first.Type)
	assert.True(t, first.State.LayerVisibility.Original)

	// Give the hub a moment to register the client before the transition.
	time.Sleep(50 * time.Millisecond)
	app.Machine().ToggleLayer(processing.LayerOriginal)

	next := read()
	assert.Equal(t, "state", next.Type)
	assert.False(t, next.State.LayerVisibility.Original)
}

func TestAdminPassword(t *testing.T) {
	hash, err := auth.HashPassword("hunter2")
	require.NoError(t, err)
	_, router := setupTestServer(t, func(c *config.Config) { c.Admin.PasswordHash = hash })

	request := func(user, password string) int {
		req := httptest.NewRequest(http.MethodGet, "/api/admin/jobs/status", nil)
		if user != "" {
			req.SetBasicAuth(user, password)
		}
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		return rr.Code
	}

	assert.Equal(t, http.StatusUnauthorized, request("", ""))
	assert.Equal(t, http.StatusUnauthorized, request("admin", "wrong"))
	assert.Equal(t, http.StatusUnauthorized, request("root", "hunter2"))
	assert.Equal(t, http.StatusOK, request("admin", "hunter2"))

	// Only the admin routes are protected.
	assert.Equal(t, http.StatusOK, doRequest(t, router, http.MethodGet, "/api/state", nil).Code)
}
