package handle

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"comanda/internal/domain/models"
	"comanda/pkg/logger"

	"github.com/go-chi/chi/v5"
)

type Calls interface {
	Create(ctx context.Context, tableNumber int) (models.WaiterCall, error)
	Attend(ctx context.Context, id string) (models.WaiterCall, error)
	ListPending(ctx context.Context) ([]models.WaiterCall, error)
}

type CallHandler struct {
	calls Calls
	mylog logger.Logger
}

func NewCallHandler(calls Calls, mylog logger.Logger) *CallHandler {
	return &CallHandler{calls: calls, mylog: mylog}
}

func (h *CallHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TableNumber int `json:"table_number"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, http.StatusBadRequest, errors.New("failed to parse JSON"))
		return
	}
	if req.TableNumber <= 0 {
		jsonError(w, http.StatusBadRequest, errors.New("invalid table number"))
		return
	}

	ctx, cancel := reqCtx(r)
	defer cancel()

	call, err := h.calls.Create(ctx, req.TableNumber)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, err)
		return
	}
	jsonResponse(w, http.StatusCreated, call)
}

func (h *CallHandler) Attend(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := reqCtx(r)
	defer cancel()

	call, err := h.calls.Attend(ctx, chi.URLParam(r, "id"))
	if err != nil {
		jsonError(w, statusFor(err, http.StatusInternalServerError), err)
		return
	}
	jsonResponse(w, http.StatusOK, call)
}

func (h *CallHandler) ListPending(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := reqCtx(r)
	defer cancel()

	calls, err := h.calls.ListPending(ctx)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, err)
		return
	}
	jsonResponse(w, http.StatusOK, calls)
}
