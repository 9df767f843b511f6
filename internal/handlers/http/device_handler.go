package http

import (
	"net/http"
	"strconv"

	"camx/internal/core/domain"
	"camx/internal/core/ports"
	apperrors "camx/pkg/errors"

	"github.com/gin-gonic/gin"
)

type DeviceHandler struct {
	directory ports.DirectoryService
	history   ports.HistoryService
	scanner   ports.NetworkScanner
}

func NewDeviceHandler(
	directory ports.DirectoryService,
	history ports.HistoryService,
	scanner ports.NetworkScanner,
) *DeviceHandler {
	return &DeviceHandler{
		directory: directory,
		history:   history,
		scanner:   scanner,
	}
}

func (h *DeviceHandler) SetupRoutes(router *gin.Engine) {
	api := router.Group("/api")
	{
		api.GET("/devices", h.ListDevices)
		api.POST("/devices/scan", h.TriggerScan)
		api.GET("/devices/:deviceId", h.GetDevice)
		api.GET("/devices/:deviceId/history", h.GetDeviceHistory)
	}
}

// ListDevices returns the active devices as a bare JSON array, in the order
// they were first announced.
func (h *DeviceHandler) ListDevices(c *gin.Context) {
	result, err := h.directory.Snapshot(c.Request.Context())
	if err != nil {
		c.Error(apperrors.WrapError(err, apperrors.ErrCodeInternal, "failed to list devices", http.StatusInternalServerError))
		return
	}

	c.JSON(http.StatusOK, result.Devices)
}

func (h *DeviceHandler) TriggerScan(c *gin.Context) {
	if err := h.scanner.TriggerScan(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Network scan initiated",
	})
}

// GetDevice and GetDeviceHistory report failures through the error
// middleware, which renders AppError values as structured JSON.
func (h *DeviceHandler) GetDevice(c *gin.Context) {
	deviceID := domain.DeviceID(c.Param("deviceId"))

	device, err := h.directory.GetDevice(c.Request.Context(), deviceID)
	if err != nil {
		if err == domain.ErrDeviceNotFound {
			c.Error(apperrors.NewNotFoundError("device").WithContext("device_id", string(deviceID)))
			return
		}
		c.Error(apperrors.WrapError(err, apperrors.ErrCodeInternal, "failed to look up device", http.StatusInternalServerError))
		return
	}

	c.JSON(http.StatusOK, device)
}

func (h *DeviceHandler) GetDeviceHistory(c *gin.Context) {
	deviceID := domain.DeviceID(c.Param("deviceId"))

	limit := 10
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			c.Error(apperrors.NewInvalidInputError("limit must be a positive integer"))
			return
		}
		limit = parsed
	}

	records, err := h.history.ForDevice(c.Request.Context(), deviceID, limit)
	if err != nil {
		c.Error(apperrors.WrapError(err, apperrors.ErrCodeInternal, "failed to load connection history", http.StatusInternalServerError))
		return
	}

	if records == nil {
		records = []*domain.ConnectionRecord{}
	}
	c.JSON(http.StatusOK, records)
}
