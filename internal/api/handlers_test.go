package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yield-scanner/internal/config"
	"github.com/yield-scanner/internal/logging"
	"github.com/yield-scanner/internal/service"
	"github.com/yield-scanner/internal/storage"
)

type testEnv struct {
	server  *Server
	scans   *service.ScanService
	catalog *storage.CatalogRepository
}

func newTestEnv(t *testing.T, findProbability float64) *testEnv {
	t.Helper()

	cfg := &config.Config{
		Server: config.ServerConfig{
			Host:         "127.0.0.1",
			Port:         "0",
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 5 * time.Second,
			IdleTimeout:  5 * time.Second,
		},
		Scanner: config.ScannerConfig{
			ScanLatency:     0,
			FindProbability: findProbability,
			APYMin:          2,
			APYMax:          22,
			TVLMin:          500_000,
			TVLMax:          50_000_000,
			Assets:          []string{"USDC"},
		},
		Engine: config.EngineConfig{
			InvestmentAmount: 1.0,
			GasFeeMin:        0.005,
			GasFeeMax:        0.005,
			GasUsedMin:       21_000,
			GasUsedMax:       21_000,
		},
		RateLimit: config.RateLimitConfig{RequestsPerSecond: 1000, Burst: 1000},
	}

	seq := storage.NewSequence()
	catalog := storage.NewCatalogRepository(seq)
	storage.SeedCatalog(catalog)
	agents := storage.NewAgentRepository(seq)
	strategies := storage.NewStrategyRepository(seq)
	activities := storage.NewActivityRepository(seq)
	cache := storage.NewCatalogCache(catalog, nil, time.Minute)

	logger := logging.NewLogger(logging.LevelError, logging.FormatText)

	agentService := service.NewAgentService(agents, activities, logger)
	scanService := service.NewScanService(agents, catalog, activities, service.ScanOptionsFromConfig(&cfg.Scanner), logger)
	strategyService := service.NewStrategyService(strategies, activities, logger)
	executionService := service.NewExecutionService(strategies, catalog, activities, service.EngineOptionsFromConfig(&cfg.Engine), logger)

	server := NewServer(cfg, &Handlers{
		Agents:     NewAgentHandler(agentService, scanService, cache, logger),
		Strategies: NewStrategyHandler(strategyService, executionService, cache, logger),
		Catalog:    NewCatalogHandler(catalog, activities, cache, logger),
	}, logger)

	return &testEnv{server: server, scans: scanService, catalog: catalog}
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	rec := httptest.NewRecorder()
	e.server.Router().ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func decodeList(t *testing.T, rec *httptest.ResponseRecorder) []map[string]interface{} {
	t.Helper()
	var out []map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	body := decode(t, rec)
	errObj, ok := body["error"].(map[string]interface{})
	require.True(t, ok, "expected an error envelope, got %s", rec.Body.String())
	code, _ := errObj["code"].(string)
	return code
}

func (e *testEnv) createConfiguration(t *testing.T, maxAgents int, parallel bool) int64 {
	t.Helper()
	rec := e.do(t, "POST", "/api/agent-configurations", map[string]interface{}{
		"maxAgents":        maxAgents,
		"parallelScanning": parallel,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return int64(decode(t, rec)["id"].(float64))
}

func (e *testEnv) createInstance(t *testing.T, configID int64, name string) int64 {
	t.Helper()
	rec := e.do(t, "POST", "/api/agent-instances", map[string]interface{}{
		"name":             name,
		"configurationId":  configID,
		"assignedProtocol": 1,
		"assignedNetwork":  1,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return int64(decode(t, rec)["id"].(float64))
}

func TestHealthEndpoint(t *testing.T) {
	env := newTestEnv(t, 0)

	rec := env.do(t, "GET", "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode(t, rec)["status"])
}

func TestConfigurationEndpoints(t *testing.T) {
	env := newTestEnv(t, 0)

	id := env.createConfiguration(t, 3, false)

	rec := env.do(t, "GET", "/api/agent-configurations", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeList(t, rec), 1)

	rec = env.do(t, "GET", "/api/agent-configurations/1", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, float64(id), body["id"])
	assert.Equal(t, float64(3), body["maxAgents"])
	assert.Equal(t, "medium", body["riskTolerance"])

	rec = env.do(t, "PUT", "/api/agent-configurations/1", map[string]interface{}{
		"parallelScanning": true,
	})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decode(t, rec)["parallelScanning"])
}

func TestCreateConfigurationRejectsZeroCapacity(t *testing.T) {
	env := newTestEnv(t, 0)

	rec := env.do(t, "POST", "/api/agent-configurations", map[string]interface{}{"maxAgents": 0})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", errorCode(t, rec))
}

func TestInstanceEndpointsEnrichAssignments(t *testing.T) {
	env := newTestEnv(t, 0)
	cfgID := env.createConfiguration(t, 3, false)

	rec := env.do(t, "POST", "/api/agent-instances", map[string]interface{}{
		"name":             "scanner-1",
		"configurationId":  cfgID,
		"assignedProtocol": 1,
		"assignedNetwork":  2,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	body := decode(t, rec)
	proto := body["assignedProtocol"].(map[string]interface{})
	assert.Equal(t, "Aave", proto["name"])
	network := body["assignedNetwork"].(map[string]interface{})
	assert.Equal(t, "Arbitrum", network["name"])
	assert.Equal(t, "idle", body["status"])
	assert.Equal(t, "Waiting for next scan", body["currentTask"])
}

func TestInstanceCapacityViaAPI(t *testing.T) {
	env := newTestEnv(t, 0)
	cfgID := env.createConfiguration(t, 1, false)

	env.createInstance(t, cfgID, "scanner-1")

	rec := env.do(t, "POST", "/api/agent-instances", map[string]interface{}{
		"name":            "scanner-2",
		"configurationId": cfgID,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "CAPACITY_EXCEEDED", errorCode(t, rec))
}

func TestGetUnknownInstance(t *testing.T) {
	env := newTestEnv(t, 0)

	rec := env.do(t, "GET", "/api/agent-instances/42", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", errorCode(t, rec))
}

func TestDeleteInstance(t *testing.T) {
	env := newTestEnv(t, 0)
	cfgID := env.createConfiguration(t, 2, false)
	id := env.createInstance(t, cfgID, "scanner-1")

	rec := env.do(t, "DELETE", "/api/agent-instances/1", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decode(t, rec)["success"])

	rec = env.do(t, "GET", "/api/agent-instances/1", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	_ = id
}

func TestScanEndpoint(t *testing.T) {
	env := newTestEnv(t, 1)
	cfgID := env.createConfiguration(t, 2, false)
	id := env.createInstance(t, cfgID, "scanner-1")

	rec := env.do(t, "POST", "/api/agent-instances/1/scan", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := decode(t, rec)
	assert.Equal(t, "Scan initiated", body["message"])
	inst := body["instance"].(map[string]interface{})
	assert.Equal(t, float64(id), inst["id"])
	assert.Equal(t, "scanning", inst["status"])

	env.scans.Wait()

	rec = env.do(t, "GET", "/api/agent-instances/1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	after := decode(t, rec)
	assert.Equal(t, "idle", after["status"])
	perf := after["performance"].(map[string]interface{})
	assert.Equal(t, float64(1), perf["opportunitiesFound"])

	rec = env.do(t, "GET", "/api/opportunities", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	opps := decodeList(t, rec)
	require.Len(t, opps, 1)
	assert.Equal(t, "Aave", opps[0]["protocol"].(map[string]interface{})["name"])
}

func TestParallelScanEndpoint(t *testing.T) {
	env := newTestEnv(t, 0)
	cfgID := env.createConfiguration(t, 5, true)
	env.createInstance(t, cfgID, "scanner-1")
	env.createInstance(t, cfgID, "scanner-2")

	rec := env.do(t, "POST", "/api/parallel-scan", map[string]interface{}{"configurationId": cfgID})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := decode(t, rec)
	assert.Equal(t, "Parallel scan initiated", body["message"])
	agents := body["agents"].([]interface{})
	assert.Len(t, agents, 2)

	env.scans.Wait()
}

func TestParallelScanDisabledEndpoint(t *testing.T) {
	env := newTestEnv(t, 0)
	cfgID := env.createConfiguration(t, 5, false)
	env.createInstance(t, cfgID, "scanner-1")

	rec := env.do(t, "POST", "/api/parallel-scan", map[string]interface{}{"configurationId": cfgID})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "PARALLEL_SCAN_DISABLED", errorCode(t, rec))
}

func TestStrategyEndpoints(t *testing.T) {
	env := newTestEnv(t, 0)

	rec := env.do(t, "POST", "/api/yield-strategies", map[string]interface{}{
		"name":            "stable yield",
		"targetProtocols": []int64{1},
		"targetNetworks":  []int64{1},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	body := decode(t, rec)
	assert.Equal(t, "active", body["status"])
	assert.Equal(t, "apy-based", body["triggerType"])
	protocols := body["protocols"].([]interface{})
	require.Len(t, protocols, 1)
	assert.Equal(t, "Aave", protocols[0].(map[string]interface{})["name"])

	rec = env.do(t, "PUT", "/api/yield-strategies/1", map[string]interface{}{"status": "paused"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "paused", decode(t, rec)["status"])

	rec = env.do(t, "GET", "/api/yield-strategies", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeList(t, rec), 1)

	rec = env.do(t, "DELETE", "/api/yield-strategies/1", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decode(t, rec)["success"])

	rec = env.do(t, "GET", "/api/yield-strategies/1", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestExecuteStrategyEndpoint(t *testing.T) {
	env := newTestEnv(t, 0)
	env.catalog.AppendOpportunity(1, 1, "USDC", 18, 1_000_000, time.Now())

	rec := env.do(t, "POST", "/api/yield-strategies", map[string]interface{}{
		"name":            "stable yield",
		"targetProtocols": []int64{1},
		"targetNetworks":  []int64{1},
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = env.do(t, "POST", "/api/yield-strategies/1/execute", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := decode(t, rec)
	assert.Equal(t, "Strategy executed", body["message"])
	exec := body["execution"].(map[string]interface{})
	assert.Equal(t, "success", exec["status"])
	assert.NotEmpty(t, exec["transactionHash"])

	rec = env.do(t, "GET", "/api/yield-strategies/1/executions", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeList(t, rec), 1)

	rec = env.do(t, "GET", "/api/strategy-executions", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeList(t, rec), 1)
}

func TestExecuteStrategyNoEligible(t *testing.T) {
	env := newTestEnv(t, 0)

	rec := env.do(t, "POST", "/api/yield-strategies", map[string]interface{}{
		"name":            "lonely strategy",
		"targetProtocols": []int64{6},
		"targetNetworks":  []int64{5},
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = env.do(t, "POST", "/api/yield-strategies/1/execute", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode(t, rec)
	assert.Equal(t, "Strategy execution failed", body["message"])
	exec := body["execution"].(map[string]interface{})
	assert.Equal(t, "failed", exec["status"])
	assert.NotEmpty(t, exec["errorMessage"])
}

func TestCatalogEndpoints(t *testing.T) {
	env := newTestEnv(t, 0)

	rec := env.do(t, "GET", "/api/protocols", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeList(t, rec), 6)

	rec = env.do(t, "GET", "/api/networks", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeList(t, rec), 5)
}

func TestActivitiesEndpoint(t *testing.T) {
	env := newTestEnv(t, 0)
	cfgID := env.createConfiguration(t, 5, false)
	env.createInstance(t, cfgID, "scanner-1")
	env.createInstance(t, cfgID, "scanner-2")

	rec := env.do(t, "GET", "/api/activities", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decodeList(t, rec)
	require.Len(t, list, 2)
	// Most recent first by default.
	assert.Contains(t, list[0]["description"], "scanner-2")

	rec = env.do(t, "GET", "/api/activities?order=asc&limit=1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list = decodeList(t, rec)
	require.Len(t, list, 1)
	assert.Contains(t, list[0]["description"], "scanner-1")

	rec = env.do(t, "GET", "/api/activities?order=sideways", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestInvalidJSONBody(t *testing.T) {
	env := newTestEnv(t, 0)

	req := httptest.NewRequest("POST", "/api/agent-configurations", bytes.NewBufferString("{not json"))
	rec := httptest.NewRecorder()
	env.server.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", errorCode(t, rec))
}
