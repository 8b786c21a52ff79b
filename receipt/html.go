package receipt

import (
	"bytes"
	"fmt"
	"html/template"
	"strconv"
	"time"
)

var htmlTemplate = template.Must(template.New("receipt").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.StoreName}} receipt</title>
<style>
@page { size: 80mm auto; margin: 0; }
body { width: 72mm; margin: 0 auto; padding: 4mm 0; font-family: "Courier New", monospace; font-size: 12px; }
h1 { text-align: center; font-size: 18px; margin: 0 0 4px; }
hr { border: none; border-top: 1px dashed #000; margin: 4px 0; }
table { width: 100%; border-collapse: collapse; }
th, td { padding: 1px 0; }
th { text-align: left; border-bottom: 1px dashed #000; }
.num { text-align: right; }
.totals { text-align: right; }
.grand { font-weight: bold; font-size: 14px; }
.footer { text-align: center; margin-top: 8px; }
</style>
</head>
<body onload="window.print()">
<h1>{{.StoreName}}</h1>
<hr>
{{- if .CustomerName}}
<div>Customer: {{.CustomerName}}</div>
{{- end}}
{{- if .CustomerPhone}}
<div>Phone: {{.CustomerPhone}}</div>
{{- end}}
<div>Date: {{.Date}}</div>
<div>Payment: {{.PaymentMethod}}</div>
<hr>
<table>
<tr><th>Item</th><th class="num">Qty</th><th class="num">Price</th><th class="num">Total</th></tr>
{{- range .Items}}
<tr><td>{{.Name}}</td><td class="num">{{.Quantity}}</td><td class="num">{{.Price}}</td><td class="num">{{.Total}}</td></tr>
{{- end}}
</table>
<hr>
<div class="totals">
<div>Subtotal: {{.Subtotal}}</div>
{{- if .TaxLabel}}
<div>{{.TaxLabel}}: {{.Tax}}</div>
{{- end}}
<div class="grand">TOTAL: {{.Total}}</div>
</div>
<div class="footer">{{.Footer}}</div>
</body>
</html>
`))

type htmlItem struct {
	Name     string
	Quantity string
	Price    string
	Total    string
}

type htmlView struct {
	StoreName     string
	CustomerName  string
	CustomerPhone string
	Date          string
	PaymentMethod string
	Items         []htmlItem
	Subtotal      string
	TaxLabel      string
	Tax           string
	Total         string
	Footer        string
}

// RenderHTML renders r as a self-printing page sized for 80mm paper.
func RenderHTML(r SaleReceipt, now time.Time) ([]byte, error) {
	view := htmlView{
		StoreName:     r.StoreName,
		CustomerName:  r.CustomerName,
		CustomerPhone: r.CustomerPhone,
		Date:          now.Format(DefaultTimeLayout),
		PaymentMethod: r.PaymentMethod,
		Subtotal:      r.Amount(r.Subtotal),
		Total:         r.Amount(r.Total),
		Footer:        footer,
	}
	if r.HasTax() {
		view.TaxLabel = r.TaxLabel()
		view.Tax = r.Amount(r.Tax)
	}
	for _, item := range r.Items {
		view.Items = append(view.Items, htmlItem{
			Name:     truncate(item.Name, MaxNameWidth),
			Quantity: strconv.Itoa(item.Quantity),
			Price:    r.Amount(item.Price),
			Total:    r.Amount(item.Total),
		})
	}

	var buf bytes.Buffer
	if err := htmlTemplate.Execute(&buf, view); err != nil {
		return nil, fmt.Errorf("render receipt html: %w", err)
	}
	return buf.Bytes(), nil
}

var textTemplate = template.Must(template.New("text").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Receipt</title>
<style>
@page { size: 80mm auto; margin: 0; }
body { width: 72mm; margin: 0 auto; padding: 4mm 0; }
pre { font-family: "Courier New", monospace; font-size: 11px; white-space: pre-wrap; margin: 0; }
</style>
</head>
<body onload="window.print()">
<pre>{{.}}</pre>
</body>
</html>
`))

// RenderTextHTML wraps already formatted plain text in the same 80mm page.
func RenderTextHTML(text string) ([]byte, error) {
	var buf bytes.Buffer
	if err := textTemplate.Execute(&buf, text); err != nil {
		return nil, fmt.Errorf("render text html: %w", err)
	}
	return buf.Bytes(), nil
}
