package httpx

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/ariefcatur/equipment-orders/internal/catalog"
	"github.com/ariefcatur/equipment-orders/internal/inventory"
	"github.com/ariefcatur/equipment-orders/internal/redisx"
)

// HeaderIdempotencyKey lets a client retry order placement safely.
const HeaderIdempotencyKey = "Idempotency-Key"

type OrdersHandler struct {
	Service *inventory.Service
	Idem    *redisx.Idempotency // nil disables idempotent placement
	Log     *zap.Logger
}

type PreviewResp struct {
	TotalPrice decimal.Decimal `json:"totalPrice"`
}

func (h *OrdersHandler) Register(r chi.Router) {
	r.Get("/orders", h.list)
	r.Post("/orders", h.place)
	r.Post("/orders/preview", h.preview)
	r.Get("/orders/{id}", h.get)
	r.Put("/orders/{id}", h.amend)
	r.Delete("/orders/{id}", h.cancel)
}

func (h *OrdersHandler) list(w http.ResponseWriter, r *http.Request) {
	orders, err := h.Service.ListOrders(r.Context())
	if err != nil {
		writeError(w, nopIfNil(h.Log), err)
		return
	}
	if orders == nil {
		orders = []catalog.Order{}
	}
	writeJSON(w, http.StatusOK, orders)
}

func (h *OrdersHandler) get(w http.ResponseWriter, r *http.Request) {
	o, err := h.Service.GetOrder(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, nopIfNil(h.Log), err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *OrdersHandler) place(w http.ResponseWriter, r *http.Request) {
	var form catalog.OrderForm
	if !decode(w, r, &form) {
		return
	}
	ctx := r.Context()
	log := nopIfNil(h.Log)

	// Redis is a shortcut here, never the source of truth: lookup failures
	// fall through to a normal placement.
	key := r.Header.Get(HeaderIdempotencyKey)
	if h.Idem != nil && key != "" {
		id, ok, err := h.Idem.Lookup(ctx, key)
		if err != nil {
			log.Warn("idempotency lookup", zap.String("key", key), zap.Error(err))
		}
		if ok {
			if o, err := h.Service.GetOrder(ctx, id); err == nil {
				w.Header().Set("Idempotent-Replayed", "true")
				writeJSON(w, http.StatusOK, o)
				return
			}
		}
	}

	o, err := h.Service.PlaceOrder(ctx, form)
	if err != nil {
		writeError(w, log, err)
		return
	}

	if h.Idem != nil && key != "" {
		if err := h.Idem.Remember(ctx, key, o.ID); err != nil {
			log.Warn("idempotency store", zap.String("key", key), zap.String("order_id", o.ID), zap.Error(err))
		}
	}
	writeJSON(w, http.StatusCreated, o)
}

func (h *OrdersHandler) amend(w http.ResponseWriter, r *http.Request) {
	var form catalog.OrderForm
	if !decode(w, r, &form) {
		return
	}
	o, err := h.Service.AmendOrder(r.Context(), chi.URLParam(r, "id"), form)
	if err != nil {
		writeError(w, nopIfNil(h.Log), err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *OrdersHandler) cancel(w http.ResponseWriter, r *http.Request) {
	if err := h.Service.CancelOrder(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, nopIfNil(h.Log), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *OrdersHandler) preview(w http.ResponseWriter, r *http.Request) {
	var form catalog.OrderForm
	if !decode(w, r, &form) {
		return
	}
	total, err := h.Service.PreviewOrder(r.Context(), form)
	if err != nil {
		writeError(w, nopIfNil(h.Log), err)
		return
	}
	writeJSON(w, http.StatusOK, PreviewResp{TotalPrice: total})
}
