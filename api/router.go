// Package api exposes the print orchestrator over HTTP.
package api

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/nixxel-company-limited/escpos-receipt-printer/logger"
	"github.com/nixxel-company-limited/escpos-receipt-printer/printer"
	"github.com/nixxel-company-limited/escpos-receipt-printer/receipt"
	"github.com/nixxel-company-limited/escpos-receipt-printer/transport"
)

// Printer prints receipts. *printer.Orchestrator implements it.
type Printer interface {
	Print(ctx context.Context, r receipt.SaleReceipt) (*printer.Result, error)
	Strategies() []transport.Strategy
}

// SaleSource loads stored sales. *store.SaleRepository implements it.
type SaleSource interface {
	LoadReceipt(ctx context.Context, saleID string) (*receipt.SaleReceipt, error)
}

// RouterConfig holds router dependencies.
type RouterConfig struct {
	Printer Printer
	// Sales is optional; without it the reprint endpoint answers 503.
	Sales  SaleSource
	Logger *logger.Logger
}

// NewRouter builds the gin engine with all routes registered.
func NewRouter(cfg RouterConfig) *gin.Engine {
	log := logger.OrNop(cfg.Logger).WithComponent("api")

	r := gin.New()
	r.Use(RequestID(), Logger(log), Recovery(log))

	h := &Handler{printer: cfg.Printer, sales: cfg.Sales, log: log}

	health := r.Group("/health")
	health.GET("/live", h.Live)

	v1 := r.Group("/v1")
	v1.POST("/receipts/print", h.PrintReceipt)
	v1.POST("/sales/:id/print", h.PrintSale)
	v1.GET("/printer/strategies", h.ListStrategies)

	return r
}
