package handler

import (
	inventoryapp "github.com/benedict431app/PharmacyOS/internal/application/inventory"
	"github.com/gin-gonic/gin"
)

// InventoryHandler handles batch receipt, restock and recall endpoints
type InventoryHandler struct {
	BaseHandler
	inventoryService *inventoryapp.InventoryService
}

// NewInventoryHandler creates a new InventoryHandler
func NewInventoryHandler(inventoryService *inventoryapp.InventoryService) *InventoryHandler {
	return &InventoryHandler{inventoryService: inventoryService}
}

// ReceiveBatch records a delivered lot
//
// POST /inventory/batches
func (h *InventoryHandler) ReceiveBatch(c *gin.Context) {
	var req inventoryapp.ReceiveBatchRequest
	if !h.bindJSON(c, &req) {
		return
	}

	batch, err := h.inventoryService.ReceiveBatch(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, batch)
}

// ListDrugBatches returns a drug's sellable batches, earliest expiry first.
// ?all=true includes empty, expired and recalled batches.
//
// GET /inventory/drugs/:drug_id/batches
func (h *InventoryHandler) ListDrugBatches(c *gin.Context) {
	drugID, ok := h.pathUUID(c, "drug_id")
	if !ok {
		return
	}
	var filter inventoryapp.BatchListFilter
	if !h.bindQuery(c, &filter) {
		return
	}

	batches, err := h.inventoryService.ListAvailable(c.Request.Context(), drugID, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, batches)
}

// GetBatch returns one batch
//
// GET /inventory/batches/:id
func (h *InventoryHandler) GetBatch(c *gin.Context) {
	id, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}

	batch, err := h.inventoryService.GetBatch(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, batch)
}

// Restock adds units to an existing lot
//
// POST /inventory/batches/:id/restock
func (h *InventoryHandler) Restock(c *gin.Context) {
	id, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}
	var req inventoryapp.RestockRequest
	if !h.bindJSON(c, &req) {
		return
	}

	batch, err := h.inventoryService.Restock(c.Request.Context(), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, batch)
}

// Recall withdraws a lot from sale. The body is optional.
//
// POST /inventory/batches/:id/recall
func (h *InventoryHandler) Recall(c *gin.Context) {
	id, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}
	var req inventoryapp.RecallRequest
	if c.Request.ContentLength > 0 && !h.bindJSON(c, &req) {
		return
	}

	batch, err := h.inventoryService.Recall(c.Request.Context(), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, batch)
}
