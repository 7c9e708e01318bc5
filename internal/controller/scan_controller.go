package controller

import (
	"net/http"

	"hudi-scan-bridge/internal/middleware"
	"hudi-scan-bridge/internal/model"
	"hudi-scan-bridge/internal/service"
	"hudi-scan-bridge/internal/utils"
	"hudi-scan-bridge/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

type ScanController struct {
	scanService service.ScanService
	validator   *validator.Validate
}

func NewScanController(scanService service.ScanService) *ScanController {
	return &ScanController{
		scanService: scanService,
		validator:   validator.New(),
	}
}

// OpenScan godoc
// @Summary Open a scan over a Hudi file group split
// @Description Constructs a reader for the split (foreign table-format
// scanner for merge-on-read splits with delta logs, native parquet for
// bare base files), pushes the value-range constraints down, opens the
// scanner, and returns a scan ID. Batches are pulled from the `/next`
// endpoint until `eof`; the session tears itself down at end of stream.
//
// @Tags scans
// @Accept json
// @Produce json
// @Param request body model.ScanRequest true "Scan open request"
// @Success 200 {object} response.StandardResponse{data=model.ScanResponse}
// @Failure 400 {object} response.StandardResponse
// @Failure 422 {object} response.StandardResponse
// @Failure 502 {object} response.StandardResponse
// @Router /api/v1/scans [post]
func (sc *ScanController) OpenScan(c *gin.Context) {
	correlationID := sc.getCorrelationID(c)

	var req model.ScanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.ErrorResponse(
			utils.ErrCodeInvalidRequest,
			"Invalid request body: "+err.Error(),
			"",
			correlationID,
		))
		return
	}

	if err := sc.validator.Struct(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, response.ValidationErrorResponse(err.Error(), correlationID))
		return
	}

	resp, err := sc.scanService.OpenScan(c.Request.Context(), &req)
	if err != nil {
		sc.writeError(c, err, correlationID)
		return
	}

	c.JSON(http.StatusOK, response.SuccessResponse(resp, correlationID))
}

// NextBatch godoc
// @Summary Pull the next batch from an open scan
// @Description Returns the next batch of rows. When `eof` is true the
// scan has reached end of stream and the session is already gone; a
// further pull returns SCAN_NOT_FOUND.
//
// @Tags scans
// @Produce json
// @Param id path string true "Scan ID"
// @Success 200 {object} response.StandardResponse{data=model.BatchResponse}
// @Failure 404 {object} response.StandardResponse
// @Failure 410 {object} response.StandardResponse
// @Failure 502 {object} response.StandardResponse
// @Router /api/v1/scans/{id}/next [get]
func (sc *ScanController) NextBatch(c *gin.Context) {
	correlationID := sc.getCorrelationID(c)

	scanID := c.Param("id")
	if !utils.IsValidUUID(scanID) {
		c.JSON(http.StatusBadRequest, response.ErrorResponse(
			utils.ErrCodeInvalidRequest,
			"Invalid scan ID",
			scanID,
			correlationID,
		))
		return
	}

	resp, err := sc.scanService.NextBatch(c.Request.Context(), scanID)
	if err != nil {
		sc.writeError(c, err, correlationID)
		return
	}

	c.JSON(http.StatusOK, response.SuccessResponse(resp, correlationID))
}

// CloseScan godoc
// @Summary Close a scan before end of stream
// @Description Tears the session down and releases its resources. Closing
// a scan that already finished returns SCAN_NOT_FOUND.
//
// @Tags scans
// @Produce json
// @Param id path string true "Scan ID"
// @Success 200 {object} response.StandardResponse
// @Failure 404 {object} response.StandardResponse
// @Router /api/v1/scans/{id} [delete]
func (sc *ScanController) CloseScan(c *gin.Context) {
	correlationID := sc.getCorrelationID(c)

	scanID := c.Param("id")
	if err := sc.scanService.CloseScan(c.Request.Context(), scanID); err != nil {
		sc.writeError(c, err, correlationID)
		return
	}

	c.JSON(http.StatusOK, response.SuccessMessageResponse("Scan closed", correlationID))
}

// GetScanStatus godoc
// @Summary Report an open scan's progress
// @Tags scans
// @Produce json
// @Param id path string true "Scan ID"
// @Success 200 {object} response.StandardResponse{data=model.ScanStatus}
// @Failure 404 {object} response.StandardResponse
// @Router /api/v1/scans/{id} [get]
func (sc *ScanController) GetScanStatus(c *gin.Context) {
	correlationID := sc.getCorrelationID(c)

	status, err := sc.scanService.GetScanStatus(c.Param("id"))
	if err != nil {
		sc.writeError(c, err, correlationID)
		return
	}

	c.JSON(http.StatusOK, response.SuccessResponse(status, correlationID))
}

func (sc *ScanController) writeError(c *gin.Context, err error, correlationID string) {
	if appErr, ok := err.(*utils.AppError); ok {
		c.JSON(utils.GetErrorStatus(appErr), response.ErrorResponseFromAppError(appErr, correlationID))
		return
	}
	c.JSON(http.StatusInternalServerError, response.ErrorResponse(
		utils.ErrCodeInternalError,
		err.Error(),
		"",
		correlationID,
	))
}

func (sc *ScanController) getCorrelationID(c *gin.Context) string {
	if id, exists := c.Get(middleware.CorrelationIDKey); exists {
		if s, ok := id.(string); ok {
			return s
		}
	}
	return uuid.New().String()
}
