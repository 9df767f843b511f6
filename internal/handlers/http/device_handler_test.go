package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"camx/internal/core/domain"
	"camx/internal/core/services"
	"camx/internal/infrastructure/middleware"
	"camx/internal/infrastructure/repositories/memory"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeScanner struct {
	scanErr error
	scans   int
}

func (f *fakeScanner) TriggerScan() error {
	f.scans++
	return f.scanErr
}

func (f *fakeScanner) LocalIP() string { return "192.168.1.17" }

func setupRouter(t *testing.T) (*gin.Engine, *fakeScanner, func(id string)) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := zap.NewNop().Sugar()
	directory := services.NewDirectoryService(memory.NewMemoryDeviceRepository(), logger)
	history := services.NewHistoryService(memory.NewMemoryHistoryRepository(), logger)
	scanner := &fakeScanner{}

	router := gin.New()
	router.Use(middleware.ErrorHandlerMiddleware(logger))
	NewDeviceHandler(directory, history, scanner).SetupRoutes(router)
	NewNetworkHandler(scanner).SetupRoutes(router)

	announce := func(id string) {
		_, err := directory.RegisterAnnouncement(context.Background(), domain.DiscoveryDevice{
			ID:        id,
			Name:      "Phone " + id,
			Model:     "Pixel 7",
			Platform:  "android",
			IPAddress: "10.0.0.5",
			Port:      "4747",
		})
		require.NoError(t, err)
	}

	return router, scanner, announce
}

func doRequest(router *gin.Engine, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, nil)
	router.ServeHTTP(w, req)
	return w
}

func TestListDevices_EmptyDirectoryIsEmptyArray(t *testing.T) {
	router, _, _ := setupRouter(t)

	w := doRequest(router, http.MethodGet, "/api/devices")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())
}

func TestListDevices_ReturnsAnnouncedDevicesInOrder(t *testing.T) {
	router, _, announce := setupRouter(t)
	announce("dev1")
	announce("dev2")

	w := doRequest(router, http.MethodGet, "/api/devices")
	require.Equal(t, http.StatusOK, w.Code)

	var devices []*domain.Device
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &devices))
	require.Len(t, devices, 2)
	assert.Equal(t, domain.DeviceID("dev1"), devices[0].DeviceID)
	assert.Equal(t, domain.DeviceID("dev2"), devices[1].DeviceID)
	assert.True(t, devices[0].IsActive)
}

func TestTriggerScan_Success(t *testing.T) {
	router, scanner, _ := setupRouter(t)

	w := doRequest(router, http.MethodPost, "/api/devices/scan")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, scanner.scans)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, true, body["success"])
	assert.NotEmpty(t, body["message"])
}

func TestTriggerScan_BroadcastFailureIs500(t *testing.T) {
	router, scanner, _ := setupRouter(t)
	scanner.scanErr = errors.New("network is unreachable")

	w := doRequest(router, http.MethodPost, "/api/devices/scan")
	require.Equal(t, http.StatusInternalServerError, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Contains(t, body["error"], "unreachable")
}

func TestGetDevice_FoundAndNotFound(t *testing.T) {
	router, _, announce := setupRouter(t)
	announce("dev1")

	w := doRequest(router, http.MethodGet, "/api/devices/dev1")
	require.Equal(t, http.StatusOK, w.Code)

	var device domain.Device
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &device))
	assert.Equal(t, domain.DeviceID("dev1"), device.DeviceID)

	w = doRequest(router, http.MethodGet, "/api/devices/ghost")
	require.Equal(t, http.StatusNotFound, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "NOT_FOUND", body["error"])
	assert.Equal(t, "device not found", body["message"])
	details, ok := body["details"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "ghost", details["device_id"])
}

func TestGetDeviceHistory_EmptyAndBadLimit(t *testing.T) {
	router, _, announce := setupRouter(t)
	announce("dev1")

	w := doRequest(router, http.MethodGet, "/api/devices/dev1/history")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())

	w = doRequest(router, http.MethodGet, "/api/devices/dev1/history?limit=nope")
	require.Equal(t, http.StatusBadRequest, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "INVALID_INPUT", body["error"])

	w = doRequest(router, http.MethodGet, "/api/devices/dev1/history?limit=-3")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetLocalIP(t *testing.T) {
	router, _, _ := setupRouter(t)

	w := doRequest(router, http.MethodGet, "/api/network/ip")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"ipAddress":"192.168.1.17"}`, w.Body.String())
}
