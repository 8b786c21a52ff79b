package receipt

import (
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/nixxel-company-limited/escpos-receipt-printer/escpos"
)

// Paper and column geometry, in characters.
const (
	LineWidth    = 48
	NameWidth    = 16
	QtyWidth     = 4
	PriceWidth   = 10
	TotalWidth   = 10
	RowWidth     = NameWidth + QtyWidth + PriceWidth + TotalWidth
	MaxNameWidth = 20
)

// DefaultTimeLayout is used for the date line.
const DefaultTimeLayout = "02/01/2006 15:04"

const footer = "Thank you for your purchase!"

var separator = strings.Repeat("-", LineWidth)

// Formatter renders receipts into ESC/POS byte streams.
type Formatter struct {
	now        func() time.Time
	timeLayout string
}

// FormatterOption configures a Formatter.
type FormatterOption func(*Formatter)

// WithClock replaces the clock used for the date line.
func WithClock(now func() time.Time) FormatterOption {
	return func(f *Formatter) { f.now = now }
}

// WithTimeLayout replaces the date line layout.
func WithTimeLayout(layout string) FormatterOption {
	return func(f *Formatter) { f.timeLayout = layout }
}

// NewFormatter creates a formatter using the wall clock unless overridden.
func NewFormatter(opts ...FormatterOption) *Formatter {
	f := &Formatter{
		now:        time.Now,
		timeLayout: DefaultTimeLayout,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Now returns the formatter's current time.
func (f *Formatter) Now() time.Time {
	return f.now()
}

// Format renders r stamped with the formatter's clock. It never fails and
// never modifies r.
func (f *Formatter) Format(r SaleReceipt) []byte {
	return f.FormatAt(r, f.now())
}

// FormatAt renders r stamped with at.
func (f *Formatter) FormatAt(r SaleReceipt, at time.Time) []byte {
	b := escpos.NewBuilder()

	b.Init().
		Align(escpos.Center).
		Size(escpos.Double).
		Bold(true).
		Line(r.StoreName).
		Bold(false).
		Size(escpos.Normal)

	b.Align(escpos.Left).Line(separator)

	if r.CustomerName != "" {
		b.Line("Customer: " + r.CustomerName)
	}
	if r.CustomerPhone != "" {
		b.Line("Phone: " + r.CustomerPhone)
	}
	b.Line("Date: " + at.Format(f.timeLayout))
	b.Line("Payment: " + r.PaymentMethod)
	b.Line(separator)

	b.Line(Row("Item", "Qty", "Price", "Total"))
	b.Line(separator)

	for _, item := range r.Items {
		for _, row := range ItemRows(item, r.Currency) {
			b.Line(row)
		}
	}

	b.Line(separator)
	b.Align(escpos.Right)
	b.Line("Subtotal: " + r.Amount(r.Subtotal))
	if r.HasTax() {
		b.Line(r.TaxLabel() + ": " + r.Amount(r.Tax))
	}
	b.Bold(true).Line("TOTAL: " + r.Amount(r.Total)).Bold(false)

	b.Align(escpos.Center).Line(footer).Feed(2)
	b.Cut()

	return b.Bytes()
}

// Row lays out four cells in the fixed column grid. The result is always
// RowWidth runes long.
func Row(name, qty, price, total string) string {
	return padRight(name, NameWidth) +
		padLeft(qty, QtyWidth) +
		padLeft(price, PriceWidth) +
		padLeft(total, TotalWidth)
}

// ItemRows renders one line item. The name is cut to MaxNameWidth runes; the
// part that does not fit the name column goes on a continuation row.
func ItemRows(item LineItem, currency string) []string {
	name := []rune(truncate(item.Name, MaxNameWidth))
	head, rest := name, []rune(nil)
	if len(name) > NameWidth {
		head, rest = name[:NameWidth], name[NameWidth:]
	}

	rows := []string{Row(
		string(head),
		strconv.Itoa(item.Quantity),
		currency+item.Price.StringFixed(2),
		currency+item.Total.StringFixed(2),
	)}
	if len(rest) > 0 {
		rows = append(rows, Row(string(rest), "", "", ""))
	}
	return rows
}

func truncate(s string, width int) string {
	if utf8.RuneCountInString(s) <= width {
		return s
	}
	return string([]rune(s)[:width])
}

func padRight(s string, width int) string {
	s = truncate(s, width)
	return s + strings.Repeat(" ", width-utf8.RuneCountInString(s))
}

// padLeft right-aligns s; overlong values keep their rightmost runes so the
// significant digits of an amount survive.
func padLeft(s string, width int) string {
	r := []rune(s)
	if len(r) > width {
		return string(r[len(r)-width:])
	}
	return strings.Repeat(" ", width-len(r)) + s
}
