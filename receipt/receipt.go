// Package receipt holds the finalized sale handed to the print pipeline and
// renders it as ESC/POS bytes or as printable HTML.
package receipt

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrInvalidReceipt is returned by Validate.
var ErrInvalidReceipt = errors.New("invalid receipt")

// SaleReceipt is a finalized sale. All amounts are computed by the caller;
// nothing here recomputes or cross-checks them.
type SaleReceipt struct {
	StoreName     string          `json:"store_name"`
	CustomerName  string          `json:"customer_name,omitempty"`
	CustomerPhone string          `json:"customer_phone,omitempty"`
	Items         []LineItem      `json:"items"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	Tax           decimal.Decimal `json:"tax"`
	TaxPercentage decimal.Decimal `json:"tax_percentage"`
	Total         decimal.Decimal `json:"total"`
	Currency      string          `json:"currency"`
	PaymentMethod string          `json:"payment_method"`
}

// LineItem is one row of a sale.
type LineItem struct {
	Name     string          `json:"name"`
	Quantity int             `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
	Total    decimal.Decimal `json:"total"`
}

// HasTax reports whether a tax line is printed.
func (r SaleReceipt) HasTax() bool {
	return r.TaxPercentage.IsPositive()
}

// Amount renders an amount with the receipt currency prefixed.
func (r SaleReceipt) Amount(d decimal.Decimal) string {
	return r.Currency + d.StringFixed(2)
}

// TaxLabel is the caption of the tax line, e.g. "Tax (18%)".
func (r SaleReceipt) TaxLabel() string {
	return fmt.Sprintf("Tax (%s%%)", r.TaxPercentage.String())
}

// Validate checks the fields a receipt cannot be printed without. It is meant
// for request boundaries; the formatter itself renders whatever it is given.
func Validate(r SaleReceipt) error {
	if strings.TrimSpace(r.StoreName) == "" {
		return fmt.Errorf("%w: store name is required", ErrInvalidReceipt)
	}
	if strings.TrimSpace(r.Currency) == "" {
		return fmt.Errorf("%w: currency is required", ErrInvalidReceipt)
	}
	for i, item := range r.Items {
		if strings.TrimSpace(item.Name) == "" {
			return fmt.Errorf("%w: item %d has no name", ErrInvalidReceipt, i+1)
		}
	}
	return nil
}
