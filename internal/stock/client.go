// Package stock talks to the external stock-deduction collaborator. The
// contract is best-effort: attempted once per order during archive, failures
// logged by the caller and never blocking.
package stock

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"comanda/internal/core"
	"comanda/pkg/logger"
)

type Client struct {
	client  *http.Client
	address string
	mylog   logger.Logger
}

// NewClient builds the collaborator client. An empty address disables the
// collaborator entirely (deductions succeed as no-ops), which keeps venues
// without a stock service working.
func NewClient(address string, mylog logger.Logger) *Client {
	return &Client{
		client:  &http.Client{Timeout: core.WaitTime * time.Second},
		address: address,
		mylog:   mylog,
	}
}

// DeductStock asks the collaborator to consume the ingredients of one order.
func (c *Client) DeductStock(ctx context.Context, orderID string) error {
	if c.address == "" {
		c.mylog.Action("stock_deduction_skipped").Debug("No stock service configured", "order_id", orderID)
		return nil
	}

	url := fmt.Sprintf("%s/api/stock/deduct/%s", c.address, orderID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}
	c.mylog.Action("stock_deducted").Debug("Stock deducted", "order_id", orderID)
	return nil
}
