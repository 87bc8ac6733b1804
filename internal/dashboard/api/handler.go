package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"ms-minting/internal/assets"
	"ms-minting/internal/dashboard"
	"ms-minting/internal/logger"
	"ms-minting/internal/utils"
)

// Handler serves the read-only dashboard endpoints
type Handler struct {
	service  *dashboard.Service
	fetcher  *assets.Fetcher
	progress *dashboard.ProgressCache
	logger   *logger.Logger
}

func NewHandler(service *dashboard.Service, fetcher *assets.Fetcher, progress *dashboard.ProgressCache, log *logger.Logger) *Handler {
	return &Handler{
		service:  service,
		fetcher:  fetcher,
		progress: progress,
		logger:   log,
	}
}

// RegisterRoutes wires the dashboard routes onto the gin engine
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	api := r.Group("/api/dashboard")
	{
		api.GET("/summary", h.GetSummary)
		api.GET("/labels/:unitLabel", h.GetLabelSummary)
		api.GET("/batches", h.ListBatches)
		api.GET("/batches/progress", h.GetBatchProgress)
		api.GET("/assets/:assetId", h.GetAsset)
		api.GET("/accounts/:address/balance", h.GetAccountBalance)
	}
}

func (h *Handler) GetSummary(c *gin.Context) {
	summary, err := h.service.GetIssuanceSummary(c.Request.Context())
	if err != nil {
		h.logger.Error("DASHBOARD", fmt.Sprintf("GetSummary: %v", err))
		c.JSON(http.StatusInternalServerError, utils.ErrorResponse("Could not load issuance summary", err.Error()))
		return
	}

	c.JSON(http.StatusOK, utils.SuccessResponse("Issuance summary", summary))
}

func (h *Handler) GetLabelSummary(c *gin.Context) {
	unitLabel := c.Param("unitLabel")

	summary, err := h.service.GetLabelSummary(c.Request.Context(), unitLabel)
	if err != nil {
		h.logger.Error("DASHBOARD", fmt.Sprintf("GetLabelSummary: %v", err))
		c.JSON(http.StatusInternalServerError, utils.ErrorResponse("Could not load label summary", err.Error()))
		return
	}

	c.JSON(http.StatusOK, utils.SuccessResponse("Label summary", summary))
}

func (h *Handler) ListBatches(c *gin.Context) {
	batches, err := h.service.ListBatches(c.Request.Context())
	if err != nil {
		h.logger.Error("DASHBOARD", fmt.Sprintf("ListBatches: %v", err))
		c.JSON(http.StatusInternalServerError, utils.ErrorResponse("Could not list batches", err.Error()))
		return
	}

	c.JSON(http.StatusOK, utils.SuccessResponse("Mint batches", batches))
}

// GetBatchProgress returns the latest in-flight issuance progress seen on
// Kafka, optionally filtered to one batch with ?batch_id=.
func (h *Handler) GetBatchProgress(c *gin.Context) {
	if batchIDStr := c.Query("batch_id"); batchIDStr != "" {
		batchID, err := strconv.ParseInt(batchIDStr, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, utils.ErrorResponse("Invalid batch_id", err.Error()))
			return
		}
		event, ok := h.progress.Get(batchID)
		if !ok {
			c.JSON(http.StatusNotFound, utils.ErrorResponse("No progress recorded for batch", batchIDStr))
			return
		}
		c.JSON(http.StatusOK, utils.SuccessResponse("Batch progress", event))
		return
	}

	c.JSON(http.StatusOK, utils.SuccessResponse("Batch progress", h.progress.Snapshot()))
}

func (h *Handler) GetAsset(c *gin.Context) {
	assetID, err := strconv.ParseInt(c.Param("assetId"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, utils.ErrorResponse("Invalid asset id", err.Error()))
		return
	}

	info, err := h.fetcher.FetchAssetInfo(assetID)
	if err != nil {
		if errors.Is(err, assets.ErrNotFound) {
			c.JSON(http.StatusNotFound, utils.ErrorResponse("Asset not found", err.Error()))
			return
		}
		h.logger.Error("DASHBOARD", fmt.Sprintf("GetAsset: %v", err))
		c.JSON(http.StatusBadGateway, utils.ErrorResponse("Ledger lookup failed", err.Error()))
		return
	}

	c.JSON(http.StatusOK, utils.SuccessResponse("Asset info", info))
}

func (h *Handler) GetAccountBalance(c *gin.Context) {
	address := c.Param("address")

	var assetID int64
	if assetIDStr := c.Query("asset_id"); assetIDStr != "" {
		parsed, err := strconv.ParseInt(assetIDStr, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, utils.ErrorResponse("Invalid asset_id", err.Error()))
			return
		}
		assetID = parsed
	}

	balance, err := h.fetcher.FetchAccountBalance(address, assetID)
	if err != nil {
		if errors.Is(err, assets.ErrNotFound) {
			c.JSON(http.StatusNotFound, utils.ErrorResponse("Account not found", err.Error()))
			return
		}
		h.logger.Error("DASHBOARD", fmt.Sprintf("GetAccountBalance: %v", err))
		c.JSON(http.StatusBadGateway, utils.ErrorResponse("Ledger lookup failed", err.Error()))
		return
	}

	c.JSON(http.StatusOK, utils.SuccessResponse("Account balance", balance))
}
