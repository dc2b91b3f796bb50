package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/andrewkhoh/farmstand-orders/internal/lifecycle"
	"github.com/andrewkhoh/farmstand-orders/internal/noshow"
	"github.com/andrewkhoh/farmstand-orders/internal/orders"
	"github.com/andrewkhoh/farmstand-orders/internal/restock"
)

type AdminHandler struct {
	Orders    *orders.Service
	Statuses  *lifecycle.Service
	Restock   *restock.Service
	NoShow    *noshow.Detector
	JWTSecret string
	Log       *zap.Logger
}

func (h *AdminHandler) Register(r *chi.Mux) {
	r.Route("/admin", func(r chi.Router) {
		r.Use(RequireAuth(h.JWTSecret), RequireRole("admin"))
		r.Get("/orders", h.listAllOrders)
		r.Post("/orders/{id}/status", h.updateStatus)
		r.Post("/orders/status/bulk", h.bulkUpdateStatus)
		r.Post("/orders/{id}/restore-stock", h.restoreOrderStock)
		r.Get("/orders/{id}/restorations", h.restorationHistory)
		r.Post("/orders/restore-stock/batch", h.restoreBatch)
		r.Post("/products/{id}/restore-stock", h.restoreProductStock)
		r.Post("/products/{id}/emergency-restore", h.emergencyRestore)
		r.Post("/noshow/run", h.runNoShowSweep)
	})
}

func (h *AdminHandler) listAllOrders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	out, err := h.Orders.GetAllOrders(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *AdminHandler) updateStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req struct {
		Status string `json:"status"`
		Reason string `json:"reason,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	st, err := orders.ParseStatus(req.Status)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	res, err := h.Statuses.UpdateStatusReason(ctx, id, st, req.Reason)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !res.Success {
		writeJSON(w, http.StatusConflict, res)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *AdminHandler) bulkUpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		OrderIDs []string `json:"order_ids"`
		Status   string   `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if len(req.OrderIDs) == 0 {
		writeError(w, http.StatusBadRequest, "order_ids required")
		return
	}
	st, err := orders.ParseStatus(req.Status)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	writeJSON(w, http.StatusOK, h.Statuses.BulkUpdateStatus(ctx, req.OrderIDs, st))
}

func (h *AdminHandler) restoreOrderStock(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	res, err := h.Restock.RestoreOrderStock(ctx, id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !res.Success {
		writeJSON(w, restoreFailCode(res), res)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *AdminHandler) restorationHistory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	out, err := h.Restock.History(ctx, id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *AdminHandler) restoreBatch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		OrderIDs []string `json:"order_ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	writeJSON(w, http.StatusOK, h.Restock.RestoreBatch(ctx, req.OrderIDs))
}

func (h *AdminHandler) restoreProductStock(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "id")

	var req struct {
		Quantity int    `json:"quantity"`
		OrderID  string `json:"order_id,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	res, err := h.Restock.RestoreProductStock(ctx, productID, req.Quantity, req.OrderID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !res.Success {
		writeJSON(w, restoreFailCode(res), res)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *AdminHandler) emergencyRestore(w http.ResponseWriter, r *http.Request) {
	u, _ := CurrentUser(r.Context())
	productID := chi.URLParam(r, "id")

	var req struct {
		Quantity int    `json:"quantity"`
		Reason   string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	res, err := h.Restock.EmergencyRestore(ctx, productID, req.Quantity, u.ID, req.Reason)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !res.Success {
		writeJSON(w, restoreFailCode(res), res)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *AdminHandler) runNoShowSweep(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 60*time.Second)
	defer cancel()

	sum, err := h.NoShow.Run(ctx)
	if err != nil {
		h.Log.Error("manual no-show sweep failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

func restoreFailCode(res *restock.RestoreResult) int {
	switch res.Reason {
	case restock.ReasonNotFound:
		return http.StatusNotFound
	case restock.ReasonAlreadyRestored:
		return http.StatusConflict
	case restock.ReasonInvalidInput:
		return http.StatusBadRequest
	default:
		return http.StatusUnprocessableEntity
	}
}
