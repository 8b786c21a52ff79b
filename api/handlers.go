package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nixxel-company-limited/escpos-receipt-printer/logger"
	"github.com/nixxel-company-limited/escpos-receipt-printer/printer"
	"github.com/nixxel-company-limited/escpos-receipt-printer/receipt"
	"github.com/nixxel-company-limited/escpos-receipt-printer/store"
)

// Handler serves the print endpoints.
type Handler struct {
	printer Printer
	sales   SaleSource
	log     *logger.Logger
}

// AttemptDTO is one strategy attempt in a print response.
type AttemptDTO struct {
	Strategy   string          `json:"strategy"`
	Outcome    printer.Outcome `json:"outcome"`
	Reason     string          `json:"reason,omitempty"`
	DurationMS int64           `json:"duration_ms"`
}

// PrintResponse is returned by both print endpoints.
type PrintResponse struct {
	Success  bool         `json:"success"`
	Message  string       `json:"message"`
	JobID    string       `json:"job_id,omitempty"`
	Strategy string       `json:"strategy,omitempty"`
	Attempts []AttemptDTO `json:"attempts"`
}

// StrategyDTO reports whether a strategy can be used right now.
type StrategyDTO struct {
	Name      string `json:"name"`
	Available bool   `json:"available"`
}

// Live handles the liveness probe.
// GET /health/live
func (h *Handler) Live(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// PrintReceipt prints the receipt in the request body.
// POST /v1/receipts/print
func (h *Handler) PrintReceipt(c *gin.Context) {
	var r receipt.SaleReceipt
	if err := c.ShouldBindJSON(&r); err != nil {
		c.JSON(http.StatusBadRequest, PrintResponse{Message: "invalid request body: " + err.Error(), Attempts: []AttemptDTO{}})
		return
	}
	if err := receipt.Validate(r); err != nil {
		c.JSON(http.StatusBadRequest, PrintResponse{Message: err.Error(), Attempts: []AttemptDTO{}})
		return
	}
	h.print(c, r)
}

// PrintSale reprints a stored sale.
// POST /v1/sales/:id/print
func (h *Handler) PrintSale(c *gin.Context) {
	if h.sales == nil {
		c.JSON(http.StatusServiceUnavailable, PrintResponse{Message: "sale store is not configured", Attempts: []AttemptDTO{}})
		return
	}

	saleID := c.Param("id")
	r, err := h.sales.LoadReceipt(c.Request.Context(), saleID)
	if err != nil {
		if errors.Is(err, store.ErrSaleNotFound) {
			c.JSON(http.StatusNotFound, PrintResponse{Message: err.Error(), Attempts: []AttemptDTO{}})
			return
		}
		h.log.Errorw("failed to load sale", "sale_id", saleID, "error", err)
		c.JSON(http.StatusInternalServerError, PrintResponse{Message: "failed to load sale", Attempts: []AttemptDTO{}})
		return
	}
	h.print(c, *r)
}

func (h *Handler) print(c *gin.Context, r receipt.SaleReceipt) {
	res, err := h.printer.Print(c.Request.Context(), r)
	if err != nil {
		var perr *printer.PrintError
		if errors.As(err, &perr) {
			c.JSON(http.StatusBadGateway, PrintResponse{
				Message:  printer.Describe(nil, err),
				JobID:    perr.JobID,
				Attempts: attemptDTOs(perr.Attempts),
			})
			return
		}
		h.log.Errorw("print failed", "error", err)
		c.JSON(http.StatusInternalServerError, PrintResponse{Message: printer.Describe(nil, err), Attempts: []AttemptDTO{}})
		return
	}

	c.JSON(http.StatusOK, PrintResponse{
		Success:  true,
		Message:  printer.Describe(res, nil),
		JobID:    res.JobID,
		Strategy: res.Strategy,
		Attempts: attemptDTOs(res.Attempts),
	})
}

// ListStrategies probes every configured strategy.
// GET /v1/printer/strategies
func (h *Handler) ListStrategies(c *gin.Context) {
	strategies := h.printer.Strategies()
	out := make([]StrategyDTO, 0, len(strategies))
	for _, s := range strategies {
		out = append(out, StrategyDTO{Name: s.Name(), Available: s.Available(c.Request.Context())})
	}
	c.JSON(http.StatusOK, out)
}

func attemptDTOs(attempts []printer.Attempt) []AttemptDTO {
	out := make([]AttemptDTO, 0, len(attempts))
	for _, a := range attempts {
		out = append(out, AttemptDTO{
			Strategy:   a.Strategy,
			Outcome:    a.Outcome,
			Reason:     a.Reason(),
			DurationMS: a.Duration.Milliseconds(),
		})
	}
	return out
}
