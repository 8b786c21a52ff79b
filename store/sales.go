package store

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/shopspring/decimal"

	"github.com/nixxel-company-limited/escpos-receipt-printer/receipt"
)

type saleRow struct {
	ID            string          `db:"id"`
	CustomerName  *string         `db:"customer_name"`
	CustomerPhone *string         `db:"customer_phone"`
	Subtotal      decimal.Decimal `db:"subtotal"`
	Tax           decimal.Decimal `db:"tax"`
	TaxPercentage decimal.Decimal `db:"tax_percentage"`
	Total         decimal.Decimal `db:"total"`
	Currency      *string         `db:"currency"`
	PaymentMethod string          `db:"payment_method"`
}

type itemRow struct {
	Name     string          `db:"name"`
	Quantity int             `db:"quantity"`
	Price    decimal.Decimal `db:"price"`
	Total    decimal.Decimal `db:"total"`
}

// SaleRepository loads finalized sales as receipts.
type SaleRepository struct {
	db        Querier
	storeName string
	currency  string
}

// NewSaleRepository creates a repository. storeName heads every receipt;
// currency is used for sales that do not carry their own.
func NewSaleRepository(db Querier, storeName, currency string) *SaleRepository {
	return &SaleRepository{db: db, storeName: storeName, currency: currency}
}

func saleQuery(saleID string) squirrel.SelectBuilder {
	return builder().
		Select("id", "customer_name", "customer_phone", "subtotal", "tax",
			"tax_percentage", "total", "currency", "payment_method").
		From("sales").
		Where(squirrel.Eq{"id": saleID})
}

func itemsQuery(saleID string) squirrel.SelectBuilder {
	return builder().
		Select("name", "quantity", "price", "total").
		From("sale_items").
		Where(squirrel.Eq{"sale_id": saleID}).
		OrderBy("position")
}

// LoadReceipt reads sale saleID and its items.
func (r *SaleRepository) LoadReceipt(ctx context.Context, saleID string) (*receipt.SaleReceipt, error) {
	sql, args, err := saleQuery(saleID).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var sale saleRow
	if err := pgxscan.Get(ctx, r.db, &sale, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, fmt.Errorf("%w: %s", ErrSaleNotFound, saleID)
		}
		return nil, fmt.Errorf("get sale: %w", err)
	}

	sql, args, err = itemsQuery(saleID).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var items []itemRow
	if err := pgxscan.Select(ctx, r.db, &items, sql, args...); err != nil {
		return nil, fmt.Errorf("select sale items: %w", err)
	}

	return r.toReceipt(sale, items), nil
}

func (r *SaleRepository) toReceipt(sale saleRow, items []itemRow) *receipt.SaleReceipt {
	out := &receipt.SaleReceipt{
		StoreName:     r.storeName,
		CustomerName:  deref(sale.CustomerName),
		CustomerPhone: deref(sale.CustomerPhone),
		Items:         make([]receipt.LineItem, 0, len(items)),
		Subtotal:      sale.Subtotal,
		Tax:           sale.Tax,
		TaxPercentage: sale.TaxPercentage,
		Total:         sale.Total,
		Currency:      deref(sale.Currency),
		PaymentMethod: sale.PaymentMethod,
	}
	if out.Currency == "" {
		out.Currency = r.currency
	}
	for _, it := range items {
		out.Items = append(out.Items, receipt.LineItem{
			Name:     it.Name,
			Quantity: it.Quantity,
			Price:    it.Price,
			Total:    it.Total,
		})
	}
	return out
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
