package handle

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"comanda/internal/domain/models"
	"comanda/internal/service"
	"comanda/pkg/logger"

	"github.com/go-chi/chi/v5"
)

type Reservations interface {
	Book(ctx context.Context, req service.BookReservationRequest) (models.Reservation, error)
	Seat(ctx context.Context, id string) (models.Reservation, error)
	Cancel(ctx context.Context, id string) (models.Reservation, error)
	ListBooked(ctx context.Context) ([]models.Reservation, error)
}

type ReservationHandler struct {
	reservations Reservations
	mylog        logger.Logger
}

func NewReservationHandler(reservations Reservations, mylog logger.Logger) *ReservationHandler {
	return &ReservationHandler{reservations: reservations, mylog: mylog}
}

func (h *ReservationHandler) Book(w http.ResponseWriter, r *http.Request) {
	var req service.BookReservationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.mylog.Action("parse_failed").Error("Failed to parse reservation", err)
		jsonError(w, http.StatusBadRequest, errors.New("failed to parse JSON"))
		return
	}

	ctx, cancel := reqCtx(r)
	defer cancel()

	res, err := h.reservations.Book(ctx, req)
	if err != nil {
		jsonError(w, statusFor(err, http.StatusBadRequest), err)
		return
	}
	jsonResponse(w, http.StatusCreated, res)
}

// Resolve handles seat/cancel via the action field of the patch body.
func (h *ReservationHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Action string `json:"action"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, http.StatusBadRequest, errors.New("failed to parse JSON"))
		return
	}

	ctx, cancel := reqCtx(r)
	defer cancel()

	id := chi.URLParam(r, "id")
	var res models.Reservation
	var err error
	switch req.Action {
	case "seat":
		res, err = h.reservations.Seat(ctx, id)
	case "cancel":
		res, err = h.reservations.Cancel(ctx, id)
	default:
		jsonError(w, http.StatusBadRequest, errors.New("action must be seat or cancel"))
		return
	}
	if err != nil {
		jsonError(w, statusFor(err, http.StatusInternalServerError), err)
		return
	}
	jsonResponse(w, http.StatusOK, res)
}

func (h *ReservationHandler) ListBooked(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := reqCtx(r)
	defer cancel()

	booked, err := h.reservations.ListBooked(ctx)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, err)
		return
	}
	jsonResponse(w, http.StatusOK, booked)
}
