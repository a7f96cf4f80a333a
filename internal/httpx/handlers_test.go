package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/ariefcatur/equipment-orders/internal/catalog"
	"github.com/ariefcatur/equipment-orders/internal/inventory"
	"github.com/ariefcatur/equipment-orders/internal/redisx"
	"github.com/ariefcatur/equipment-orders/internal/stock"
	"github.com/ariefcatur/equipment-orders/internal/store"
)

type testAPI struct {
	srv   *httptest.Server
	svc   *inventory.Service
	cache *redisx.StockCache
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	svc := &inventory.Service{
		Store:  store.NewMemory(),
		Engine: stock.NewEngine(nil),
	}
	cache := redisx.NewStockCache(rdb)

	r := NewRouter(nil)
	(&EquipmentHandler{Service: svc, Stock: cache}).Register(r)
	(&OrdersHandler{Service: svc, Idem: redisx.NewIdempotency(rdb)}).Register(r)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return &testAPI{srv: srv, svc: svc, cache: cache}
}

func (a *testAPI) do(t *testing.T, method, path string, body any, header http.Header) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, a.srv.URL+path, &buf)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header[k] = v
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func expectStatus(t *testing.T, resp *http.Response, want int) {
	t.Helper()
	if resp.StatusCode != want {
		t.Fatalf("%s %s: status %d, want %d", resp.Request.Method, resp.Request.URL.Path, resp.StatusCode, want)
	}
}

var football = map[string]any{
	"name":        "Football",
	"category":    "Ball",
	"description": "Official size 5 football for outdoor matches",
	"stock":       10,
	"unitPrice":   "50",
}

func TestHealthz(t *testing.T) {
	a := newTestAPI(t)
	expectStatus(t, a.do(t, http.MethodGet, "/healthz", nil, nil), http.StatusOK)
}

func TestEquipmentValidationReturnsFieldErrors(t *testing.T) {
	a := newTestAPI(t)

	resp := a.do(t, http.MethodPost, "/equipment", map[string]any{
		"name":        "Ball 5",
		"category":    "Sp",
		"description": "Too short",
		"stock":       -5,
		"unitPrice":   200000,
	}, nil)
	expectStatus(t, resp, http.StatusUnprocessableEntity)

	body := decodeBody[errorResp](t, resp)
	want := catalog.FieldErrors{
		catalog.FieldCategory:    "Category min 3 chars",
		catalog.FieldDescription: "Description min 20 chars",
		catalog.FieldStock:       "Stock between 1 and 1000",
		catalog.FieldUnitPrice:   "Price between 1 and 100000",
	}
	if len(body.Fields) != len(want) {
		t.Fatalf("fields = %v, want %v", body.Fields, want)
	}
	for k, v := range want {
		if body.Fields[k] != v {
			t.Errorf("field %s = %q, want %q", k, body.Fields[k], v)
		}
	}
}

func TestOrderLifecycleOverHTTP(t *testing.T) {
	a := newTestAPI(t)

	resp := a.do(t, http.MethodPost, "/equipment", football, nil)
	expectStatus(t, resp, http.StatusCreated)
	eq := decodeBody[catalog.Equipment](t, resp)

	resp = a.do(t, http.MethodPost, "/orders", map[string]any{"equipmentId": eq.ID, "quantity": "4"}, nil)
	expectStatus(t, resp, http.StatusCreated)
	order := decodeBody[catalog.Order](t, resp)
	if !order.TotalPrice.Equal(decimal.NewFromInt(200)) {
		t.Errorf("total = %s, want 200", order.TotalPrice)
	}

	resp = a.do(t, http.MethodPost, "/orders", map[string]any{"equipmentId": eq.ID, "quantity": 7}, nil)
	expectStatus(t, resp, http.StatusUnprocessableEntity)
	if body := decodeBody[errorResp](t, resp); body.Fields[catalog.FieldQuantity] != "Quantity cannot exceed available stock (6)" {
		t.Errorf("unexpected fields %v", body.Fields)
	}

	resp = a.do(t, http.MethodPut, "/orders/"+order.ID, map[string]any{"equipmentId": eq.ID, "quantity": 2}, nil)
	expectStatus(t, resp, http.StatusOK)

	resp = a.do(t, http.MethodGet, "/equipment/"+eq.ID+"/stock", nil, nil)
	expectStatus(t, resp, http.StatusOK)
	if s := decodeBody[StockResp](t, resp); s.Stock != 8 || s.Source != "store" {
		t.Errorf("stock = %+v, want 8 from store", s)
	}

	expectStatus(t, a.do(t, http.MethodDelete, "/equipment/"+eq.ID, nil, nil), http.StatusConflict)
	expectStatus(t, a.do(t, http.MethodDelete, "/orders/"+order.ID, nil, nil), http.StatusNoContent)
	expectStatus(t, a.do(t, http.MethodGet, "/orders/"+order.ID, nil, nil), http.StatusNotFound)

	resp = a.do(t, http.MethodGet, "/equipment/"+eq.ID, nil, nil)
	expectStatus(t, resp, http.StatusOK)
	if got := decodeBody[catalog.Equipment](t, resp); got.Stock != 10 {
		t.Errorf("stock after cancel = %d, want 10", got.Stock)
	}

	expectStatus(t, a.do(t, http.MethodDelete, "/equipment/"+eq.ID, nil, nil), http.StatusNoContent)
}

func TestPlaceOrderIsIdempotent(t *testing.T) {
	a := newTestAPI(t)
	eq := decodeBody[catalog.Equipment](t, a.do(t, http.MethodPost, "/equipment", football, nil))

	h := http.Header{HeaderIdempotencyKey: []string{"retry-1"}}
	first := a.do(t, http.MethodPost, "/orders", map[string]any{"equipmentId": eq.ID, "quantity": 3}, h)
	expectStatus(t, first, http.StatusCreated)
	created := decodeBody[catalog.Order](t, first)

	again := a.do(t, http.MethodPost, "/orders", map[string]any{"equipmentId": eq.ID, "quantity": 3}, h)
	expectStatus(t, again, http.StatusOK)
	if again.Header.Get("Idempotent-Replayed") != "true" {
		t.Error("expected replay header")
	}
	if replayed := decodeBody[catalog.Order](t, again); replayed.ID != created.ID {
		t.Errorf("replayed order %s, want %s", replayed.ID, created.ID)
	}

	got, err := a.svc.GetEquipment(context.Background(), eq.ID)
	if err != nil {
		t.Fatalf("GetEquipment: %v", err)
	}
	if got.Stock != 7 {
		t.Errorf("stock = %d, want 7 (reserved once)", got.Stock)
	}
}

func TestStockPrefersProjectedCache(t *testing.T) {
	a := newTestAPI(t)
	eq := decodeBody[catalog.Equipment](t, a.do(t, http.MethodPost, "/equipment", football, nil))

	at := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	if err := a.cache.Set(context.Background(), eq.ID, redisx.StockEntry{Stock: 9, UpdatedAt: at}); err != nil {
		t.Fatalf("cache Set: %v", err)
	}

	resp := a.do(t, http.MethodGet, "/equipment/"+eq.ID+"/stock", nil, nil)
	expectStatus(t, resp, http.StatusOK)
	s := decodeBody[StockResp](t, resp)
	if s.Stock != 9 || s.Source != "cache" {
		t.Errorf("stock = %+v, want 9 from cache", s)
	}
}

func TestPreviewAndErrors(t *testing.T) {
	a := newTestAPI(t)
	eq := decodeBody[catalog.Equipment](t, a.do(t, http.MethodPost, "/equipment", football, nil))

	resp := a.do(t, http.MethodPost, "/orders/preview", map[string]any{"equipmentId": eq.ID, "quantity": "3"}, nil)
	expectStatus(t, resp, http.StatusOK)
	if p := decodeBody[PreviewResp](t, resp); !p.TotalPrice.Equal(decimal.NewFromInt(150)) {
		t.Errorf("preview = %s, want 150", p.TotalPrice)
	}

	resp = a.do(t, http.MethodPost, "/orders/preview", map[string]any{"equipmentId": eq.ID, "quantity": "abc"}, nil)
	expectStatus(t, resp, http.StatusOK)
	if p := decodeBody[PreviewResp](t, resp); !p.TotalPrice.IsZero() {
		t.Errorf("preview = %s, want 0", p.TotalPrice)
	}

	expectStatus(t, a.do(t, http.MethodGet, "/equipment/missing", nil, nil), http.StatusNotFound)
	expectStatus(t, a.do(t, http.MethodDelete, "/orders/missing", nil, nil), http.StatusNotFound)

	req, _ := http.NewRequest(http.MethodPost, a.srv.URL+"/orders", bytes.NewBufferString("{not json"))
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("POST /orders: %v", err)
	}
	defer resp.Body.Close()
	expectStatus(t, resp, http.StatusBadRequest)
}

func TestOversizedBodyIsRejected(t *testing.T) {
	a := newTestAPI(t)

	big := map[string]any{
		"name":        "Football",
		"category":    "Ball",
		"description": strings.Repeat("x", MaxBodyBytes),
		"stock":       10,
		"unitPrice":   "50",
	}
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(big); err != nil {
		t.Fatalf("encode body: %v", err)
	}
	rec := httptest.NewRecorder()
	a.srv.Config.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/equipment", &buf))
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status %d, want %d", rec.Code, http.StatusRequestEntityTooLarge)
	}

	if items, err := a.svc.ListEquipment(context.Background()); err != nil || len(items) != 0 {
		t.Errorf("oversized request reached the store: %d items, err %v", len(items), err)
	}
}
