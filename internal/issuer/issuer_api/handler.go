package issuer_api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"ms-minting/internal/auth"
	"ms-minting/internal/issuer"
	issuerdb "ms-minting/internal/issuer/db"
	"ms-minting/internal/logger"
	"ms-minting/internal/models"
	"ms-minting/internal/qr"
	"ms-minting/internal/utils"
)

type Handler struct {
	IssuerService *issuer.IssuerService
	QRGenerator   *qr.Generator
	Logger        *logger.Logger
}

func NewHandler(issuerService *issuer.IssuerService, log *logger.Logger) *Handler {
	return &Handler{
		IssuerService: issuerService,
		QRGenerator:   qr.NewGenerator(),
		Logger:        log,
	}
}

func (h *Handler) IssueBatch(w http.ResponseWriter, r *http.Request) {
	h.Logger.Info("API", "IssueBatch: received request")

	var req models.BatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Logger.Error("API", fmt.Sprintf("IssueBatch: failed to decode request body: %v", err))
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request body", err.Error()))
		return
	}

	issuerID, ok := auth.IssuerFromContext(r.Context())
	if !ok {
		utils.WriteJSON(w, http.StatusUnauthorized, utils.ErrorResponse("Unauthorized", "no issuer identity in token"))
		return
	}

	h.Logger.Info("API", fmt.Sprintf("IssueBatch: quantity=%d unit_label=%s issuer=%s", req.Quantity, req.UnitLabel, issuerID))

	result, err := h.IssuerService.IssueBatch(r.Context(), req, issuerID)
	if err != nil {
		h.writeIssueError(w, err)
		return
	}

	h.Logger.LogBatch("ISSUED", result.BatchID, fmt.Sprintf("%d coupons for %s", result.Issued, result.UnitLabel))
	utils.WriteJSON(w, http.StatusCreated, utils.SuccessResponse("Batch issued", result))
}

// writeIssueError maps issuance failures onto HTTP statuses. Partial
// failures report the committed-so-far count so operators can decide
// whether to resume.
func (h *Handler) writeIssueError(w http.ResponseWriter, err error) {
	h.Logger.Error("API", fmt.Sprintf("IssueBatch: %v", err))

	switch {
	case errors.Is(err, issuer.ErrInvalidQuantity), errors.Is(err, issuer.ErrInvalidUnitLabel):
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid batch request", err.Error()))
	case errors.Is(err, issuer.ErrLabelLocked):
		utils.WriteJSON(w, http.StatusConflict, utils.ErrorResponse("Issuance already in progress for this unit label", err.Error()))
	case errors.Is(err, issuerdb.ErrCodeCollision):
		utils.WriteJSON(w, http.StatusInternalServerError, utils.ErrorResponse("Code collision: issuance invariant violated, do not retry blindly", err.Error()))
	default:
		var chunkErr *issuer.ChunkError
		if errors.As(err, &chunkErr) {
			resp := utils.ErrorResponse(
				fmt.Sprintf("Batch partially issued: %d coupons committed before failure", chunkErr.Committed),
				err.Error())
			resp.Data = map[string]interface{}{
				"committed":   chunkErr.Committed,
				"chunk_start": chunkErr.ChunkStart,
			}
			utils.WriteJSON(w, http.StatusInternalServerError, resp)
			return
		}
		utils.WriteJSON(w, http.StatusInternalServerError, utils.ErrorResponse("Batch issuance failed", err.Error()))
	}
}

func (h *Handler) GetCoupon(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	h.Logger.Info("API", fmt.Sprintf("GetCoupon: code=%s", code))

	coupon, err := h.IssuerService.GetCoupon(r.Context(), code)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("GetCoupon: coupon not found: %v", err))
		http.Error(w, "Coupon not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(coupon); err != nil {
		h.Logger.Error("API", fmt.Sprintf("GetCoupon: failed to encode response: %v", err))
	}
}

func (h *Handler) GetCouponQR(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	coupon, err := h.IssuerService.GetCoupon(r.Context(), code)
	if err != nil {
		http.Error(w, "Coupon not found", http.StatusNotFound)
		return
	}

	png, err := h.QRGenerator.GenerateCouponQR(coupon)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("GetCouponQR: failed to generate QR: %v", err))
		http.Error(w, "Could not generate QR", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	if _, err := w.Write(png); err != nil {
		h.Logger.Error("API", fmt.Sprintf("GetCouponQR: failed to write response: %v", err))
	}
}

func (h *Handler) GetBatch(w http.ResponseWriter, r *http.Request) {
	batchID, err := strconv.ParseInt(chi.URLParam(r, "batchId"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid batch id", http.StatusBadRequest)
		return
	}

	batch, err := h.IssuerService.GetBatch(r.Context(), batchID)
	if err != nil {
		http.Error(w, "Batch not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(batch); err != nil {
		h.Logger.Error("API", fmt.Sprintf("GetBatch: failed to encode response: %v", err))
	}
}

func (h *Handler) ListBatches(w http.ResponseWriter, r *http.Request) {
	batches, err := h.IssuerService.ListBatches(r.Context())
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("ListBatches: %v", err))
		http.Error(w, "Could not list batches", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(batches); err != nil {
		h.Logger.Error("API", fmt.Sprintf("ListBatches: failed to encode response: %v", err))
	}
}

func (h *Handler) ListBatchCoupons(w http.ResponseWriter, r *http.Request) {
	batchID, err := strconv.ParseInt(chi.URLParam(r, "batchId"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid batch id", http.StatusBadRequest)
		return
	}

	coupons, err := h.IssuerService.ListBatchCoupons(r.Context(), batchID)
	if err != nil {
		http.Error(w, "Batch not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(coupons); err != nil {
		h.Logger.Error("API", fmt.Sprintf("ListBatchCoupons: failed to encode response: %v", err))
	}
}

// GetTotalCouponsCount is the public count endpoint used by dashboards.
func (h *Handler) GetTotalCouponsCount(w http.ResponseWriter, r *http.Request) {
	count, err := h.IssuerService.GetTotalCouponsCount(r.Context())
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("GetTotalCouponsCount: %v", err))
		http.Error(w, "Could not count coupons", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"total_coupons":%d}`, count)
}
