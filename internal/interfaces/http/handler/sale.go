package handler

import (
	salesapp "github.com/benedict431app/PharmacyOS/internal/application/sales"
	"github.com/benedict431app/PharmacyOS/internal/domain/shared"
	"github.com/benedict431app/PharmacyOS/internal/infrastructure/logger"
	"github.com/benedict431app/PharmacyOS/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
)

// maxIdempotencyKeyLength matches the sales.idempotency_key column
const maxIdempotencyKeyLength = 100

// SaleHandler handles point-of-sale checkout endpoints
type SaleHandler struct {
	BaseHandler
	saleService *salesapp.SaleService
}

// NewSaleHandler creates a new SaleHandler
func NewSaleHandler(saleService *salesapp.SaleService) *SaleHandler {
	return &SaleHandler{saleService: saleService}
}

// PostSale posts a multi-line sale. A retried request carrying the same
// Idempotency-Key header returns the original sale instead of selling twice.
//
// POST /sales
func (h *SaleHandler) PostSale(c *gin.Context) {
	var req salesapp.PostSaleRequest
	if !h.bindJSON(c, &req) {
		return
	}

	req.IdempotencyKey = c.GetHeader(logger.HeaderIdempotencyKey)
	if len(req.IdempotencyKey) > maxIdempotencyKeyLength {
		h.Error(c, dto.ErrCodeValidation, "Idempotency-Key cannot exceed 100 characters")
		return
	}

	sale, err := h.saleService.PostSale(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if sale.Replayed {
		h.Success(c, sale)
		return
	}
	h.Created(c, sale)
}

// GetSale returns one sale with its lines and batch allocations
//
// GET /sales/:id
func (h *SaleHandler) GetSale(c *gin.Context) {
	id, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}

	sale, err := h.saleService.GetSale(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, sale)
}

// ListSales returns sales newest first
//
// GET /sales?limit=&offset=
func (h *SaleHandler) ListSales(c *gin.Context) {
	var filter salesapp.SaleListFilter
	if !h.bindQuery(c, &filter) {
		return
	}

	list, total, err := h.saleService.ListSales(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = shared.DefaultFilter().PageSize
	}
	h.SuccessWithMeta(c, list, total, limit, filter.Offset)
}
