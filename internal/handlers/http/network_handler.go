package http

import (
	"net/http"

	"camx/internal/core/ports"

	"github.com/gin-gonic/gin"
)

type NetworkHandler struct {
	scanner ports.NetworkScanner
}

func NewNetworkHandler(scanner ports.NetworkScanner) *NetworkHandler {
	return &NetworkHandler{scanner: scanner}
}

func (h *NetworkHandler) SetupRoutes(router *gin.Engine) {
	api := router.Group("/api")
	{
		api.GET("/network/ip", h.GetLocalIP)
	}
}

// GetLocalIP reports the server's LAN address so phone clients can show the
// operator where to point other devices.
func (h *NetworkHandler) GetLocalIP(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"ipAddress": h.scanner.LocalIP(),
	})
}
