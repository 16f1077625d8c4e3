package app

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"emsinv/internal/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Paths.BaseDir = t.TempDir()
	cfg.Store.Driver = config.DriverCSV
	cfg.Simulation.StartYear = 2014
	cfg.Simulation.EndYear = 2015
	cfg.Simulation.Seed = 42
	cfg.Server.RateLimit.Enabled = false
	cfg.Telemetry.EnableTracing = false
	return cfg
}

func newTestApp(t *testing.T) (*Application, *httptest.Server) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	application, err := NewApplication(testConfig(t), logger)
	require.NoError(t, err)

	srv := httptest.NewServer(application.Router)
	t.Cleanup(func() {
		srv.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = application.OperationService.Close(ctx)
		application.WebSocketHub.Stop()
		_ = application.OTelProviders.Shutdown(ctx)
	})
	return application, srv
}

func getJSON(t *testing.T, url string) (int, map[string]interface{}) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()

	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return resp.StatusCode, body
}

func TestApplication_PipelineRunOverHTTP(t *testing.T) {
	_, srv := newTestApp(t)

	status, health := getJSON(t, srv.URL+"/api/health")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "healthy", health["status"])

	status, body := getJSON(t, srv.URL+"/api/v1/items")
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "DATASET_NOT_FOUND", body["error_code"])

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	resp, err := http.Post(srv.URL+"/api/v1/pipeline/runs", "application/json", nil)
	require.NoError(t, err)
	var accepted map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&accepted))
	resp.Body.Close()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	runID, _ := accepted["id"].(string)
	require.NotEmpty(t, runID)

	assert.Eventually(t, func() bool {
		code, snap := getJSON(t, srv.URL+"/api/v1/pipeline/runs/"+runID)
		return code == http.StatusOK && snap["status"] == "completed"
	}, 30*time.Second, 50*time.Millisecond)

	sawSnapshot := false
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	for !sawSnapshot {
		var msg struct {
			Type string `json:"type"`
		}
		require.NoError(t, conn.ReadJSON(&msg))
		sawSnapshot = msg.Type == "operation:snapshot"
	}

	status, items := getJSON(t, srv.URL+"/api/v1/items")
	require.Equal(t, http.StatusOK, status)
	assert.NotZero(t, items["count"])

	status, report := getJSON(t, srv.URL+"/api/v1/reports/analysis")
	require.Equal(t, http.StatusOK, status)
	assert.NotEmpty(t, report["items"])

	status, latest := getJSON(t, srv.URL+"/api/v1/pipeline/runs/latest")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, runID, latest["operation_id"])
}

func TestApplication_Routing(t *testing.T) {
	_, srv := newTestApp(t)

	tests := []struct {
		name       string
		method     string
		path       string
		wantStatus int
	}{
		{name: "unknown route", method: http.MethodGet, path: "/api/v1/nope", wantStatus: http.StatusNotFound},
		{name: "unknown run", method: http.MethodGet, path: "/api/v1/pipeline/runs/missing", wantStatus: http.StatusNotFound},
		{name: "wrong method", method: http.MethodDelete, path: "/api/v1/items", wantStatus: http.StatusMethodNotAllowed},
		{name: "metrics", method: http.MethodGet, path: "/metrics", wantStatus: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := http.NewRequest(tt.method, srv.URL+tt.path, nil)
			require.NoError(t, err)
			resp, err := http.DefaultClient.Do(req)
			require.NoError(t, err)
			resp.Body.Close()

			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
		})
	}
}

func TestApplication_StopIsGraceful(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := testConfig(t)
	cfg.Server.Port = 0
	application, err := NewApplication(cfg, logger)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- application.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}
	assert.Equal(t, 0, application.WebSocketHub.ClientCount())
}
