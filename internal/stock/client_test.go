package stock

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"comanda/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeductStockHitsCollaborator(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		assert.Equal(t, http.MethodPost, r.Method)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, logger.Discard())
	require.NoError(t, c.DeductStock(context.Background(), "o1"))
	assert.Equal(t, "/api/stock/deduct/o1", gotPath)
}

func TestDeductStockReportsFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, logger.Discard())
	assert.Error(t, c.DeductStock(context.Background(), "o1"))
}

func TestDeductStockNoCollaboratorConfigured(t *testing.T) {
	c := NewClient("", logger.Discard())
	assert.NoError(t, c.DeductStock(context.Background(), "o1"))
}
