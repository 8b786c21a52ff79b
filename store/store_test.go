package store

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nixxel-company-limited/escpos-receipt-printer/printer"
	"github.com/nixxel-company-limited/escpos-receipt-printer/transport"
)

type execCall struct {
	sql  string
	args []any
}

type fakeQuerier struct {
	queryErr error
	execErr  error
	execs    []execCall
}

func (f *fakeQuerier) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return nil, f.queryErr
}

func (f *fakeQuerier) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.execs = append(f.execs, execCall{sql, args})
	return pgconn.NewCommandTag("INSERT 0 1"), f.execErr
}

func TestSaleQuery(t *testing.T) {
	sql, args, err := saleQuery("S-1001").ToSql()
	require.NoError(t, err)

	assert.Equal(t, "SELECT id, customer_name, customer_phone, subtotal, tax, tax_percentage, total, currency, payment_method FROM sales WHERE id = $1", sql)
	assert.Equal(t, []any{"S-1001"}, args)
}

func TestItemsQuery(t *testing.T) {
	sql, args, err := itemsQuery("S-1001").ToSql()
	require.NoError(t, err)

	assert.Equal(t, "SELECT name, quantity, price, total FROM sale_items WHERE sale_id = $1 ORDER BY position", sql)
	assert.Equal(t, []any{"S-1001"}, args)
}

func TestToReceipt(t *testing.T) {
	repo := NewSaleRepository(nil, "Krushnkamal Masale", "₹")
	name := "Asha"

	r := repo.toReceipt(saleRow{
		ID:            "S-1",
		CustomerName:  &name,
		Subtotal:      decimal.RequireFromString("90"),
		Tax:           decimal.RequireFromString("16.2"),
		TaxPercentage: decimal.NewFromInt(18),
		Total:         decimal.RequireFromString("106.2"),
		PaymentMethod: "upi",
	}, []itemRow{
		{Name: "Turmeric Powder", Quantity: 2, Price: decimal.NewFromInt(45), Total: decimal.NewFromInt(90)},
	})

	assert.Equal(t, "Krushnkamal Masale", r.StoreName)
	assert.Equal(t, "Asha", r.CustomerName)
	assert.Empty(t, r.CustomerPhone)
	assert.Equal(t, "₹", r.Currency, "sales without a currency use the configured one")
	require.Len(t, r.Items, 1)
	assert.Equal(t, "Turmeric Powder", r.Items[0].Name)
	assert.True(t, r.HasTax())
}

func TestLoadReceiptQueryError(t *testing.T) {
	repo := NewSaleRepository(&fakeQuerier{queryErr: errors.New("connection reset")}, "Shop", "$")

	_, err := repo.LoadReceipt(context.Background(), "S-1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrSaleNotFound)
	assert.Contains(t, err.Error(), "connection reset")
}

func TestPrintLogRecordSuccess(t *testing.T) {
	db := &fakeQuerier{}
	log := NewPrintLog(db)
	at := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	log.now = func() time.Time { return at }

	attempts := []printer.Attempt{
		{Strategy: "usb", Outcome: printer.OutcomeUnavailable, Err: transport.Unavailable("usb", nil), Duration: 3 * time.Millisecond},
		{Strategy: "network", Outcome: printer.OutcomeSucceeded, Duration: 120 * time.Millisecond},
	}
	require.NoError(t, log.Record(context.Background(), "job-1", attempts, nil))

	require.Len(t, db.execs, 1)
	call := db.execs[0]
	assert.Equal(t, "INSERT INTO print_jobs (id,strategy,success,attempts,created_at) VALUES ($1,$2,$3,$4,$5)", call.sql)
	require.Len(t, call.args, 5)
	assert.Equal(t, "job-1", call.args[0])
	require.IsType(t, (*string)(nil), call.args[1])
	assert.Equal(t, "network", *call.args[1].(*string))
	assert.Equal(t, true, call.args[2])
	assert.Equal(t, at, call.args[4])

	var records []attemptRecord
	require.NoError(t, json.Unmarshal([]byte(call.args[3].(string)), &records))
	require.Len(t, records, 2)
	assert.Equal(t, "usb: transport unavailable", records[0].Reason)
	assert.Equal(t, int64(120), records[1].DurationMS)
}

func TestPrintLogRecordFailure(t *testing.T) {
	db := &fakeQuerier{}
	attempts := []printer.Attempt{{Strategy: "browser", Outcome: printer.OutcomeRejected}}

	require.NoError(t, NewPrintLog(db).Record(context.Background(), "job-2", attempts, printer.ErrAllStrategiesFailed))

	require.Len(t, db.execs, 1)
	assert.Nil(t, db.execs[0].args[1])
	assert.Equal(t, false, db.execs[0].args[2])
}

func TestPrintLogRecordExecError(t *testing.T) {
	db := &fakeQuerier{execErr: errors.New("relation does not exist")}

	err := NewPrintLog(db).Record(context.Background(), "job-3", nil, nil)
	assert.ErrorContains(t, err, "relation does not exist")
}

func TestMigrate(t *testing.T) {
	db := &fakeQuerier{}
	require.NoError(t, Migrate(context.Background(), db))

	require.Len(t, db.execs, 1)
	assert.Contains(t, db.execs[0].sql, "CREATE TABLE IF NOT EXISTS print_jobs")
}
