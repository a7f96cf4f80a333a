package httpx

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/ariefcatur/equipment-orders/internal/catalog"
	"github.com/ariefcatur/equipment-orders/internal/inventory"
	"github.com/ariefcatur/equipment-orders/internal/redisx"
)

type EquipmentHandler struct {
	Service *inventory.Service
	Stock   *redisx.StockCache // nil: always read stock from the store
	Log     *zap.Logger
}

type StockResp struct {
	EquipmentID string     `json:"equipmentId"`
	Stock       int        `json:"stock"`
	Source      string     `json:"source"`
	UpdatedAt   *time.Time `json:"updatedAt,omitempty"`
}

func (h *EquipmentHandler) Register(r chi.Router) {
	r.Get("/equipment", h.list)
	r.Post("/equipment", h.create)
	r.Get("/equipment/{id}", h.get)
	r.Put("/equipment/{id}", h.update)
	r.Delete("/equipment/{id}", h.delete)
	r.Get("/equipment/{id}/stock", h.stock)
}

func (h *EquipmentHandler) list(w http.ResponseWriter, r *http.Request) {
	items, err := h.Service.ListEquipment(r.Context())
	if err != nil {
		writeError(w, nopIfNil(h.Log), err)
		return
	}
	if items == nil {
		items = []catalog.Equipment{}
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *EquipmentHandler) get(w http.ResponseWriter, r *http.Request) {
	eq, err := h.Service.GetEquipment(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, nopIfNil(h.Log), err)
		return
	}
	writeJSON(w, http.StatusOK, eq)
}

func (h *EquipmentHandler) create(w http.ResponseWriter, r *http.Request) {
	var form catalog.EquipmentForm
	if !decode(w, r, &form) {
		return
	}
	eq, err := h.Service.CreateEquipment(r.Context(), form)
	if err != nil {
		writeError(w, nopIfNil(h.Log), err)
		return
	}
	writeJSON(w, http.StatusCreated, eq)
}

func (h *EquipmentHandler) update(w http.ResponseWriter, r *http.Request) {
	var form catalog.EquipmentForm
	if !decode(w, r, &form) {
		return
	}
	eq, err := h.Service.UpdateEquipment(r.Context(), chi.URLParam(r, "id"), form)
	if err != nil {
		writeError(w, nopIfNil(h.Log), err)
		return
	}
	writeJSON(w, http.StatusOK, eq)
}

func (h *EquipmentHandler) delete(w http.ResponseWriter, r *http.Request) {
	if err := h.Service.DeleteEquipment(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, nopIfNil(h.Log), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// stock serves the projected stock level, falling back to the store on a
// cache miss or when Redis is unavailable.
func (h *EquipmentHandler) stock(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if h.Stock != nil {
		entry, ok, err := h.Stock.Get(r.Context(), id)
		if err != nil {
			nopIfNil(h.Log).Warn("stock cache read", zap.String("equipment_id", id), zap.Error(err))
		}
		if ok {
			writeJSON(w, http.StatusOK, StockResp{EquipmentID: id, Stock: entry.Stock, Source: "cache", UpdatedAt: &entry.UpdatedAt})
			return
		}
	}

	eq, err := h.Service.GetEquipment(r.Context(), id)
	if err != nil {
		writeError(w, nopIfNil(h.Log), err)
		return
	}
	writeJSON(w, http.StatusOK, StockResp{EquipmentID: id, Stock: eq.Stock, Source: "store", UpdatedAt: &eq.UpdatedAt})
}
