package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/copyleftdev/SCHOLA/internal/config"
	"github.com/copyleftdev/SCHOLA/internal/logging"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := &config.Config{Environment: "test"}
	cfg.HTTP.Port = 8080
	cfg.Logging.Level = "error"
	cfg.Logging.Output = "stderr"
	cfg.Optimization.PopulationSize = 10
	cfg.Optimization.MaxIterations = 20
	cfg.Optimization.Workers = 1
	return cfg
}

func testServer(t *testing.T) (*Server, chi.Router) {
	t.Helper()
	logger := logging.New(logging.ErrorLevel, bytes.NewBuffer(nil))
	srv := NewServer(testConfig(t), logger, prometheus.NewRegistry())
	r := chi.NewRouter()
	srv.RegisterRoutes(r)
	return srv, r
}

func TestNewServer(t *testing.T) {
	srv, _ := testServer(t)
	assert.NotNil(t, srv)
	assert.NoError(t, srv.Close())
}

func TestRegisterRoutes(t *testing.T) {
	_, r := testServer(t)

	tests := []struct {
		method   string
		path     string
		wantCode int
		wantBody string
	}{
		// empty request body, so each handler rejects it its own way
		{"POST", "/api/v1/optimize", http.StatusBadRequest, "objective is required"},
		{"GET", "/api/v1/status/123", http.StatusNotFound, "optimization not found"},
		{"DELETE", "/api/v1/optimization/123", http.StatusBadRequest, "optimization not found"},
		{"POST", "/rpc", http.StatusOK, "Invalid Request"},
		{"GET", "/nonexistent", http.StatusNotFound, ""},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, bytes.NewBufferString("{}"))
			rr := httptest.NewRecorder()
			r.ServeHTTP(rr, req)
			assert.Equal(t, tt.wantCode, rr.Code)
			if tt.wantBody != "" {
				assert.Contains(t, rr.Body.String(), tt.wantBody)
			}
		})
	}
}

func startSphereJob(t *testing.T, r chi.Router) string {
	t.Helper()
	body, _ := json.Marshal(map[string]interface{}{
		"objective":       "sphere",
		"dimension":       2,
		"population_size": 10,
		"max_iterations":  20,
		"seed":            42,
	})
	req := httptest.NewRequest("POST", "/api/v1/optimize", bytes.NewBuffer(body))
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	require.Equal(t, http.StatusAccepted, rr.Code, "body: %s", rr.Body.String())

	var resp map[string]interface{}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	id, _ := resp["optimization_id"].(string)
	require.NotEmpty(t, id)
	return id
}

func jobStatusHTTP(t *testing.T, r chi.Router, id string) map[string]interface{} {
	t.Helper()
	req := httptest.NewRequest("GET", "/api/v1/status/"+id, nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	var resp map[string]interface{}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	return resp
}

func TestOptimizeJobLifecycle(t *testing.T) {
	srv, r := testServer(t)
	defer srv.Close()

	id := startSphereJob(t, r)

	deadline := time.Now().Add(10 * time.Second)
	var status map[string]interface{}
	for time.Now().Before(deadline) {
		status = jobStatusHTTP(t, r, id)
		if status["status"] == "completed" || status["status"] == "failed" {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	require.Equal(t, "completed", status["status"], "status: %+v", status)

	best, ok := status["best_solution"].(map[string]interface{})
	require.True(t, ok, "completed job must expose its best solution")
	assert.Less(t, best["fitness"].(float64), 1.0, "sphere should improve well below the random baseline")

	trace, ok := status["trace"].([]interface{})
	require.True(t, ok)
	assert.Len(t, trace, 20, "one trace entry per iteration")
	assert.Equal(t, float64(20), status["iterations"])
}

func TestOptimizeUnknownObjective(t *testing.T) {
	srv, r := testServer(t)
	defer srv.Close()

	body := bytes.NewBufferString(`{"objective":"nope"}`)
	req := httptest.NewRequest("POST", "/api/v1/optimize", body)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "unknown objective")
}

func TestOptimizeInvalidConfig(t *testing.T) {
	srv, r := testServer(t)
	defer srv.Close()

	// degenerate bounds are rejected before the job starts
	body := bytes.NewBufferString(`{"objective":"sphere","bounds":[[1,1]]}`)
	req := httptest.NewRequest("POST", "/api/v1/optimize", body)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "configuration")
}

func TestCancelTerminalJob(t *testing.T) {
	srv, r := testServer(t)
	defer srv.Close()

	id := startSphereJob(t, r)

	// wait for completion, then cancelling must fail
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		if jobStatusHTTP(t, r, id)["status"] == "completed" {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	req := httptest.NewRequest("DELETE", "/api/v1/optimization/"+id, nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "cannot cancel")
}

func TestStatusUnknownJob(t *testing.T) {
	srv, r := testServer(t)
	defer srv.Close()

	req := httptest.NewRequest("GET", "/api/v1/status/opt_missing", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestJSONRPCStartAndStatus(t *testing.T) {
	srv, r := testServer(t)
	defer srv.Close()

	call := func(method string, params interface{}) map[string]interface{} {
		body, _ := json.Marshal(map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      1,
			"method":  method,
			"params":  []interface{}{params},
		})
		req := httptest.NewRequest("POST", "/rpc", bytes.NewBuffer(body))
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, req)
		require.Equal(t, http.StatusOK, rr.Code)

		var resp map[string]interface{}
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
		return resp
	}

	resp := call("optimization.start", map[string]interface{}{
		"objective":       "sphere",
		"population_size": 5,
		"max_iterations":  5,
		"seed":            1,
	})
	result, ok := resp["result"].(map[string]interface{})
	require.True(t, ok, "response: %+v", resp)
	id, _ := result["optimization_id"].(string)
	require.NotEmpty(t, id)

	statusResp := call("optimization.status", map[string]interface{}{
		"optimization_id": id,
	})
	assert.NotNil(t, statusResp["result"])

	unknown := call("optimization.explode", nil)
	errObj, ok := unknown["error"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(-32601), errObj["code"])
}

func TestJSONRPCInvalidVersion(t *testing.T) {
	srv, r := testServer(t)
	defer srv.Close()

	req := httptest.NewRequest("POST", "/rpc", bytes.NewBufferString(`{"jsonrpc":"1.0","method":"optimization.start"}`))
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	var resp map[string]interface{}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	errObj, ok := resp["error"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(-32600), errObj["code"])
}
