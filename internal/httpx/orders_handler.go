package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/andrewkhoh/farmstand-orders/internal/lifecycle"
	"github.com/andrewkhoh/farmstand-orders/internal/noshow"
	"github.com/andrewkhoh/farmstand-orders/internal/orders"
	"github.com/andrewkhoh/farmstand-orders/internal/reschedule"
)

type OrdersHandler struct {
	Orders     *orders.Service
	Statuses   *lifecycle.Service
	Reschedule *reschedule.Service
	NoShow     *noshow.Detector
	Cache      *lifecycle.RedisStatusCache
	JWTSecret  string
	Log        *zap.Logger
}

func (h *OrdersHandler) Register(r *chi.Mux) {
	r.Group(func(r chi.Router) {
		r.Use(RequireAuth(h.JWTSecret))
		r.Post("/orders", h.submitOrder)
		r.Get("/orders", h.listMyOrders)
		r.Get("/orders/{id}", h.getOrder)
		r.Get("/orders/{id}/status", h.getOrderStatus)
		r.Post("/orders/{id}/reschedule", h.reschedulePickup)
		r.Get("/orders/{id}/noshow", h.noShowCheck)
		r.Get("/pickup-slots", h.pickupSlots)
	})
}

func (h *OrdersHandler) submitOrder(w http.ResponseWriter, r *http.Request) {
	u, _ := CurrentUser(r.Context())

	var req orders.SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	req.UserID = u.ID

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	res, err := h.Orders.Submit(ctx, req)
	if err != nil {
		h.Log.Error("order submission failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "order submission failed")
		return
	}
	if !res.Success {
		if len(res.InventoryConflicts) > 0 {
			writeJSON(w, http.StatusConflict, res)
			return
		}
		writeJSON(w, http.StatusBadRequest, res)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (h *OrdersHandler) listMyOrders(w http.ResponseWriter, r *http.Request) {
	u, _ := CurrentUser(r.Context())

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	out, err := h.Orders.GetCustomerOrders(ctx, u.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *OrdersHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	u, _ := CurrentUser(r.Context())
	id := chi.URLParam(r, "id")

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	o, err := h.Orders.GetOrder(ctx, id)
	if errors.Is(err, orders.ErrOrderNotFound) {
		writeError(w, http.StatusNotFound, "order not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if o.UserID != u.ID && u.Role != "admin" {
		writeError(w, http.StatusForbidden, "not your order")
		return
	}
	writeJSON(w, http.StatusOK, o)
}

// getOrderStatus serves from the redis cache when it can; a miss falls back to
// the database and repopulates the cache.
func (h *OrdersHandler) getOrderStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if h.Cache != nil {
		if st, ok, err := h.Cache.GetStatus(ctx, id); err == nil && ok {
			writeJSON(w, http.StatusOK, map[string]orders.Status{"status": st})
			return
		}
	}

	o, err := h.Orders.GetOrder(ctx, id)
	if errors.Is(err, orders.ErrOrderNotFound) {
		writeError(w, http.StatusNotFound, "order not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if h.Cache != nil {
		_ = h.Cache.SetStatus(ctx, id, o.Status)
	}
	writeJSON(w, http.StatusOK, map[string]orders.Status{"status": o.Status})
}

func (h *OrdersHandler) reschedulePickup(w http.ResponseWriter, r *http.Request) {
	u, _ := CurrentUser(r.Context())
	id := chi.URLParam(r, "id")

	var req struct {
		NewDate string `json:"new_date"`
		NewTime string `json:"new_time"`
		Reason  string `json:"reason,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	role := u.Role
	if role == "" {
		role = "customer"
	}
	res, err := h.Reschedule.Reschedule(ctx, id, req.NewDate, req.NewTime, req.Reason,
		reschedule.Requester{UserID: u.ID, Role: role})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !res.Success {
		code := http.StatusBadRequest
		switch res.Code {
		case reschedule.CodeNotFound:
			code = http.StatusNotFound
		case reschedule.CodeDuplicateSlot, reschedule.CodeLimitExceeded:
			code = http.StatusConflict
		}
		writeJSON(w, code, res)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *OrdersHandler) pickupSlots(w http.ResponseWriter, r *http.Request) {
	date := r.URL.Query().Get("date")
	if date == "" {
		writeError(w, http.StatusBadRequest, "missing date")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	slots, err := h.Reschedule.AvailableTimeSlots(ctx, date)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, slots)
}

func (h *OrdersHandler) noShowCheck(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	grace := h.NoShow.Cfg.GracePeriod
	if v := r.URL.Query().Get("grace_minutes"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			grace = time.Duration(n) * time.Minute
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	isNoShow, err := h.NoShow.IsOrderNoShow(ctx, id, grace)
	if errors.Is(err, orders.ErrOrderNotFound) {
		writeError(w, http.StatusNotFound, "order not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"no_show": isNoShow})
}
