package handle

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"comanda/internal/core"
	"comanda/internal/domain/models"
	"comanda/internal/service"
	"comanda/pkg/logger"

	"github.com/go-chi/chi/v5"
)

type Orders interface {
	Create(ctx context.Context, req service.CreateOrderRequest) (models.Order, error)
	ListActive(ctx context.Context, tableNumber *int) ([]models.Order, error)
	AdvanceItem(ctx context.Context, orderID string, index int) (models.Order, error)
	MarkDelivering(ctx context.Context, orderID string) (models.Order, error)
	MarkDrinksServed(ctx context.Context, orderID string) (models.Order, error)
	SettleDebt(ctx context.Context, orderID string, method models.PaymentMethod) (models.Order, error)
}

type OrderHandler struct {
	orders Orders
	mylog  logger.Logger
}

func NewOrderHandler(orders Orders, mylog logger.Logger) *OrderHandler {
	return &OrderHandler{orders: orders, mylog: mylog}
}

func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req service.CreateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.mylog.Action("parse_failed").Error("Failed to parse order", err)
		jsonError(w, http.StatusBadRequest, errors.New("failed to parse JSON"))
		return
	}

	ctx, cancel := reqCtx(r)
	defer cancel()

	order, err := h.orders.Create(ctx, req)
	if err != nil {
		jsonError(w, statusFor(err, http.StatusBadRequest), err)
		return
	}
	jsonResponse(w, http.StatusCreated, order)
}

func (h *OrderHandler) ListActive(w http.ResponseWriter, r *http.Request) {
	var table *int
	if q := r.URL.Query().Get("table"); q != "" {
		n, err := strconv.Atoi(q)
		if err != nil {
			jsonError(w, http.StatusBadRequest, errors.New("table must be an integer"))
			return
		}
		table = &n
	}

	ctx, cancel := reqCtx(r)
	defer cancel()

	orders, err := h.orders.ListActive(ctx, table)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, err)
		return
	}
	jsonResponse(w, http.StatusOK, orders)
}

// Update applies a partial order mutation: settle the debt, mark drinks
// served, or both.
func (h *OrderHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req struct {
		IsPaid        *bool                 `json:"is_paid,omitempty"`
		PaymentMethod *models.PaymentMethod `json:"payment_method,omitempty"`
		DrinksServed  *bool                 `json:"drinks_served,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, http.StatusBadRequest, errors.New("failed to parse JSON"))
		return
	}

	ctx, cancel := reqCtx(r)
	defer cancel()

	var (
		order models.Order
		err   error
		did   bool
	)
	if req.IsPaid != nil && *req.IsPaid {
		method := models.PayCash
		if req.PaymentMethod != nil {
			method = *req.PaymentMethod
		}
		order, err = h.orders.SettleDebt(ctx, id, method)
		if err != nil {
			jsonError(w, statusFor(err, http.StatusBadRequest), err)
			return
		}
		did = true
	}
	if req.DrinksServed != nil && *req.DrinksServed {
		order, err = h.orders.MarkDrinksServed(ctx, id)
		if err != nil {
			jsonError(w, statusFor(err, http.StatusInternalServerError), err)
			return
		}
		did = true
	}
	if !did {
		jsonError(w, http.StatusBadRequest, errors.New("nothing to update"))
		return
	}
	jsonResponse(w, http.StatusOK, order)
}

func (h *OrderHandler) AdvanceItem(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		jsonError(w, http.StatusBadRequest, errors.New("item index must be an integer"))
		return
	}

	ctx, cancel := reqCtx(r)
	defer cancel()

	order, err := h.orders.AdvanceItem(ctx, id, index)
	if err != nil {
		jsonError(w, statusFor(err, http.StatusInternalServerError), err)
		return
	}
	jsonResponse(w, http.StatusOK, order)
}

func (h *OrderHandler) MarkDelivering(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	ctx, cancel := reqCtx(r)
	defer cancel()

	order, err := h.orders.MarkDelivering(ctx, id)
	if err != nil {
		jsonError(w, statusFor(err, http.StatusInternalServerError), err)
		return
	}
	jsonResponse(w, http.StatusOK, order)
}

func reqCtx(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), core.WaitTime*time.Second)
}

func statusFor(err error, fallback int) int {
	switch {
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrItemIndex), errors.Is(err, core.ErrFieldIsEmpty):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrOrderServed):
		return http.StatusConflict
	case errors.Is(err, core.ErrStoreConn):
		return http.StatusServiceUnavailable
	default:
		return fallback
	}
}
