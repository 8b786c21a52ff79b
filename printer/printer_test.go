package printer

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/nixxel-company-limited/escpos-receipt-printer/receipt"
	"github.com/nixxel-company-limited/escpos-receipt-printer/transport"
)

// fakeStrategy counts invocations and fails on demand.
type fakeStrategy struct {
	name        string
	unavailable bool
	fail        error
	panics      bool
	mutate      bool
	probes      int
	attempts    int
	payloads    [][]byte
	order       *[]string
}

func (f *fakeStrategy) Name() string { return f.name }

func (f *fakeStrategy) Available(context.Context) bool {
	f.probes++
	return !f.unavailable
}

func (f *fakeStrategy) Attempt(_ context.Context, job transport.Job) error {
	f.attempts++
	if f.order != nil {
		*f.order = append(*f.order, f.name)
	}
	f.payloads = append(f.payloads, append([]byte(nil), job.Payload...))
	if f.mutate {
		for i := range job.Payload {
			job.Payload[i] = 0
		}
		if job.Receipt != nil {
			job.Receipt.StoreName = "mutated"
			if len(job.Receipt.Items) > 0 {
				job.Receipt.Items[0].Name = "mutated"
			}
		}
	}
	if f.panics {
		panic("driver crashed")
	}
	return f.fail
}

type recorded struct {
	jobID    string
	attempts []Attempt
	err      error
	ctxErr   error
}

type fakeRecorder struct {
	calls []recorded
	err   error
}

func (r *fakeRecorder) Record(ctx context.Context, jobID string, attempts []Attempt, err error) error {
	r.calls = append(r.calls, recorded{jobID, attempts, err, ctx.Err()})
	return r.err
}

// spanRecorder keeps the names of started spans.
type spanRecorder struct {
	noop.Tracer
	names []string
}

func (r *spanRecorder) Start(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	r.names = append(r.names, name)
	return r.Tracer.Start(ctx, name, opts...)
}

var fixedTime = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

func sale() receipt.SaleReceipt {
	return receipt.SaleReceipt{
		StoreName: "Krushnkamal Masale",
		Items: []receipt.LineItem{
			{Name: "Turmeric Powder", Quantity: 2, Price: decimal.RequireFromString("45.0"), Total: decimal.RequireFromString("90.0")},
		},
		Subtotal:      decimal.RequireFromString("90.0"),
		Tax:           decimal.RequireFromString("16.2"),
		TaxPercentage: decimal.NewFromInt(18),
		Total:         decimal.RequireFromString("106.2"),
		Currency:      "₹",
		PaymentMethod: "cash",
	}
}

type chain struct {
	order      []string
	usb        *fakeStrategy
	bridge     *fakeStrategy
	network    *fakeStrategy
	serial     *fakeStrategy
	browser    *fakeStrategy
	strategies []transport.Strategy
}

func newChain() *chain {
	c := &chain{}
	mk := func(name string) *fakeStrategy { return &fakeStrategy{name: name, order: &c.order} }
	c.usb, c.bridge, c.network, c.serial, c.browser = mk("usb"), mk("bridge"), mk("network"), mk("serial"), mk("browser")
	c.strategies = []transport.Strategy{c.usb, c.bridge, c.network, c.serial, c.browser}
	return c
}

func newOrchestrator(strategies []transport.Strategy, opts ...Option) *Orchestrator {
	base := []Option{
		WithFormatter(receipt.NewFormatter(receipt.WithClock(func() time.Time { return fixedTime }))),
		WithIDGenerator(func() string { return "job-1" }),
	}
	return New(strategies, append(base, opts...)...)
}

func TestPrintFirstStrategySucceeds(t *testing.T) {
	c := newChain()
	o := newOrchestrator(c.strategies)

	res, err := o.Print(context.Background(), sale())
	require.NoError(t, err)

	assert.Equal(t, "usb", res.Strategy)
	assert.Equal(t, "job-1", res.JobID)
	assert.Equal(t, []string{"usb"}, c.order)
	for _, f := range []*fakeStrategy{c.bridge, c.network, c.serial, c.browser} {
		assert.Zero(t, f.attempts, f.name)
		assert.Zero(t, f.probes, f.name)
	}
}

func TestPrintStrictPriorityOrder(t *testing.T) {
	c := newChain()
	c.usb.unavailable = true
	c.bridge.fail = transport.Unavailable("bridge", nil)
	c.network.fail = transport.Rejected("network", errors.New("connection refused"))
	o := newOrchestrator(c.strategies)

	res, err := o.Print(context.Background(), sale())
	require.NoError(t, err)

	assert.Equal(t, "serial", res.Strategy)
	assert.Equal(t, []string{"bridge", "network", "serial"}, c.order, "usb is probed but never attempted")
	assert.Equal(t, 1, c.usb.probes)
	assert.Zero(t, c.usb.attempts)
	assert.Zero(t, c.browser.attempts)

	require.Len(t, res.Attempts, 4)
	assert.Equal(t, OutcomeUnavailable, res.Attempts[0].Outcome)
	assert.Equal(t, OutcomeUnavailable, res.Attempts[1].Outcome)
	assert.Equal(t, OutcomeRejected, res.Attempts[2].Outcome)
	assert.Equal(t, OutcomeSucceeded, res.Attempts[3].Outcome)
	assert.Empty(t, res.Attempts[3].Reason())
}

func TestPrintFallsThroughToBrowser(t *testing.T) {
	c := newChain()
	for _, f := range []*fakeStrategy{c.usb, c.bridge, c.network, c.serial} {
		f.fail = transport.Rejected(f.name, errors.New("forced failure"))
	}
	o := newOrchestrator(c.strategies)

	res, err := o.Print(context.Background(), sale())
	require.NoError(t, err)

	assert.Equal(t, "browser", res.Strategy)
	assert.Equal(t, []string{"usb", "bridge", "network", "serial", "browser"}, c.order)
	assert.Equal(t, "Receipt opened in the browser print dialog.", Describe(res, err))
}

func TestPrintAllStrategiesFailed(t *testing.T) {
	c := newChain()
	for _, f := range []*fakeStrategy{c.usb, c.bridge, c.network, c.serial} {
		f.fail = transport.Rejected(f.name, errors.New("forced failure"))
	}
	c.browser.fail = transport.Unavailable("browser", errors.New("no display surface"))
	rec := &fakeRecorder{}
	o := newOrchestrator(c.strategies, WithRecorder(rec))

	res, err := o.Print(context.Background(), sale())
	assert.Nil(t, res)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAllStrategiesFailed)

	var perr *PrintError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "job-1", perr.JobID)
	assert.Len(t, perr.Attempts, 5)
	assert.Contains(t, err.Error(), "no display surface")
	assert.Contains(t, err.Error(), "usb: device rejected transfer: forced failure")
	assert.Equal(t, "Printing failed: no printer could be reached.", Describe(res, err))

	require.Len(t, rec.calls, 1)
	assert.Equal(t, "job-1", rec.calls[0].jobID)
	assert.ErrorIs(t, rec.calls[0].err, ErrAllStrategiesFailed)
}

func TestPrintNoStrategies(t *testing.T) {
	_, err := newOrchestrator(nil).Print(context.Background(), sale())
	assert.ErrorIs(t, err, ErrAllStrategiesFailed)
	assert.Contains(t, err.Error(), "no strategies configured")
}

func TestPrintFormatsOncePayloadShared(t *testing.T) {
	c := newChain()
	c.usb.fail = errors.New("plain error")
	c.usb.mutate = true
	c.bridge.fail = transport.Rejected("bridge", nil)
	c.bridge.mutate = true
	o := newOrchestrator(c.strategies)
	r := sale()

	res, err := o.Print(context.Background(), r)
	require.NoError(t, err)
	assert.Equal(t, "network", res.Strategy)

	want := receipt.NewFormatter(receipt.WithClock(func() time.Time { return fixedTime })).Format(sale())
	assert.Equal(t, want, c.usb.payloads[0])
	assert.Equal(t, want, c.bridge.payloads[0], "a strategy never sees another strategy's mutation")
	assert.Equal(t, want, c.network.payloads[0])

	assert.Equal(t, "Krushnkamal Masale", r.StoreName)
	assert.Equal(t, "Turmeric Powder", r.Items[0].Name)

	assert.Equal(t, OutcomeRejected, res.Attempts[0].Outcome, "foreign errors count as rejections")
}

func TestPrintRecoversPanics(t *testing.T) {
	c := newChain()
	c.usb.panics = true
	o := newOrchestrator(c.strategies)

	res, err := o.Print(context.Background(), sale())
	require.NoError(t, err)

	assert.Equal(t, "bridge", res.Strategy)
	assert.Equal(t, OutcomeRejected, res.Attempts[0].Outcome)
	assert.ErrorIs(t, res.Attempts[0].Err, transport.ErrDeviceRejected)
	assert.Contains(t, res.Attempts[0].Reason(), "driver crashed")
}

func TestPrintStopsOnCancelledContext(t *testing.T) {
	c := newChain()
	c.usb.fail = transport.Rejected("usb", nil)
	o := newOrchestrator(c.strategies)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := o.Print(ctx, sale())
	assert.ErrorIs(t, err, ErrAllStrategiesFailed)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, c.order)
}

func TestPrintRecordsCancelledJob(t *testing.T) {
	c := newChain()
	rec := &fakeRecorder{}
	o := newOrchestrator(c.strategies, WithRecorder(rec))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := o.Print(ctx, sale())
	require.Error(t, err)

	require.Len(t, rec.calls, 1)
	assert.Equal(t, "job-1", rec.calls[0].jobID)
	assert.ErrorIs(t, rec.calls[0].err, context.Canceled)
	assert.NoError(t, rec.calls[0].ctxErr, "the job row is written on a live context")
}

func TestPrintRecordsSuccess(t *testing.T) {
	c := newChain()
	rec := &fakeRecorder{err: errors.New("database down")}
	o := newOrchestrator(c.strategies, WithRecorder(rec))

	res, err := o.Print(context.Background(), sale())
	require.NoError(t, err, "recorder failures are not surfaced")

	require.Len(t, rec.calls, 1)
	assert.NoError(t, rec.calls[0].err)
	assert.Equal(t, res.Attempts, rec.calls[0].attempts)
}

func TestPrintRaw(t *testing.T) {
	c := newChain()
	c.usb.unavailable = true
	o := newOrchestrator(c.strategies)
	payload := []byte{0x1B, 0x40, 'x'}

	res, err := o.PrintRaw(context.Background(), payload)
	require.NoError(t, err)

	assert.Equal(t, "bridge", res.Strategy)
	assert.Equal(t, payload, c.bridge.payloads[0])
}

func TestDescribe(t *testing.T) {
	assert.Equal(t, "Receipt sent to printer via serial.", Describe(&Result{Strategy: "serial"}, nil))
	assert.Equal(t, "Nothing was printed.", Describe(nil, nil))
	assert.True(t, strings.HasPrefix(Describe(nil, errors.New("boom")), "Printing failed: boom"))
}

func TestPrintTracesEveryAttempt(t *testing.T) {
	c := newChain()
	c.usb.unavailable = true
	c.bridge.fail = transport.Rejected("bridge", nil)
	tracer := &spanRecorder{}
	o := newOrchestrator(c.strategies, WithTracer(tracer))

	res, err := o.Print(context.Background(), sale())
	require.NoError(t, err)
	assert.Equal(t, "network", res.Strategy)

	assert.Equal(t, []string{"printer.print", "printer.attempt", "printer.attempt", "printer.attempt"}, tracer.names)
}
