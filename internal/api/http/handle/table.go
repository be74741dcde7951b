package handle

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"comanda/pkg/logger"

	"github.com/go-chi/chi/v5"
)

type Archiver interface {
	LiberateTable(ctx context.Context, tableNumber int) error
}

type TableHandler struct {
	archiver Archiver
	mylog    logger.Logger
}

func NewTableHandler(archiver Archiver, mylog logger.Logger) *TableHandler {
	return &TableHandler{archiver: archiver, mylog: mylog}
}

// Liberate archives every active order on the table. Safe to call twice; the
// sweeper may race staff here and the loser no-ops.
func (h *TableHandler) Liberate(w http.ResponseWriter, r *http.Request) {
	table, err := strconv.Atoi(chi.URLParam(r, "number"))
	if err != nil {
		jsonError(w, http.StatusBadRequest, errors.New("table number must be an integer"))
		return
	}

	ctx, cancel := reqCtx(r)
	defer cancel()

	if err := h.archiver.LiberateTable(ctx, table); err != nil {
		h.mylog.Action("liberate_failed").Error("Failed to liberate table", err, "table", table)
		jsonError(w, http.StatusInternalServerError, err)
		return
	}
	jsonResponse(w, http.StatusOK, map[string]any{"table_number": table, "liberated": true})
}
