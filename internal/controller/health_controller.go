package controller

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"hudi-scan-bridge/internal/foreign"
)

type HealthResponse struct {
	Status      string            `json:"status"`
	Timestamp   time.Time         `json:"timestamp"`
	Service     string            `json:"service"`
	Version     string            `json:"version"`
	ScannerHost ScannerHostStatus `json:"scannerHost"`
}

type ScannerHostStatus struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

type HealthController struct {
	host *foreign.HostClient
}

// NewHealthController creates a health controller. The host client may
// be nil when the bridge runs native-only.
func NewHealthController(host *foreign.HostClient) *HealthController {
	return &HealthController{
		host: host,
	}
}

func (hc *HealthController) HealthCheck(c *gin.Context) {
	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now(),
		Service:   "hudi-scan-bridge",
		Version:   "1.0.0",
	}

	// Check scanner host connection
	if hc.host == nil {
		response.ScannerHost = ScannerHostStatus{
			Status:  "disabled",
			Message: "No scanner host configured; merge-on-read splits will fail",
		}
	} else if err := hc.host.Ping(c.Request.Context()); err != nil {
		response.Status = "unhealthy"
		response.ScannerHost = ScannerHostStatus{
			Status:  "disconnected",
			Message: "Scanner host ping failed: " + err.Error(),
		}
	} else {
		response.ScannerHost = ScannerHostStatus{
			Status: "connected",
		}
	}

	// Set HTTP status based on health
	statusCode := http.StatusOK
	if response.Status == "unhealthy" {
		statusCode = http.StatusServiceUnavailable
	}

	c.JSON(statusCode, response)
}
