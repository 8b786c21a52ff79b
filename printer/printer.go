// Package printer sequences transport strategies until a receipt is printed.
package printer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/nixxel-company-limited/escpos-receipt-printer/logger"
	"github.com/nixxel-company-limited/escpos-receipt-printer/receipt"
	"github.com/nixxel-company-limited/escpos-receipt-printer/transport"
)

// ErrAllStrategiesFailed matches the error returned when nothing printed.
var ErrAllStrategiesFailed = errors.New("all print strategies failed")

// Outcome of one strategy attempt.
type Outcome string

const (
	OutcomeSucceeded   Outcome = "succeeded"
	OutcomeUnavailable Outcome = "unavailable"
	OutcomeRejected    Outcome = "rejected"
)

// Attempt records one strategy's turn.
type Attempt struct {
	Strategy string
	Outcome  Outcome
	Err      error
	Duration time.Duration
}

// Reason is the failure text of the attempt, empty on success.
func (a Attempt) Reason() string {
	if a.Err == nil {
		return ""
	}
	return a.Err.Error()
}

// Result describes a successful print.
type Result struct {
	JobID    string
	Strategy string
	Attempts []Attempt
}

// PrintError is returned when every strategy failed.
type PrintError struct {
	JobID    string
	Attempts []Attempt
	// Cause is set when the chain was abandoned, e.g. on context cancellation.
	Cause error
}

func (e *PrintError) Error() string {
	reasons := make([]string, 0, len(e.Attempts)+1)
	for _, a := range e.Attempts {
		reasons = append(reasons, a.Reason())
	}
	if e.Cause != nil {
		reasons = append(reasons, e.Cause.Error())
	}
	if len(reasons) == 0 {
		return ErrAllStrategiesFailed.Error() + ": no strategies configured"
	}
	return fmt.Sprintf("%v: %s", ErrAllStrategiesFailed, strings.Join(reasons, "; "))
}

func (e *PrintError) Is(target error) bool {
	return target == ErrAllStrategiesFailed
}

func (e *PrintError) Unwrap() error {
	return e.Cause
}

// Recorder receives the outcome of every print job.
type Recorder interface {
	Record(ctx context.Context, jobID string, attempts []Attempt, err error) error
}

// Orchestrator formats receipts once and tries its strategies in order.
// It holds no lock: concurrent prints may contend for the same hardware.
type Orchestrator struct {
	strategies []transport.Strategy
	formatter  *receipt.Formatter
	log        *logger.Logger
	recorder   Recorder
	tracer     trace.Tracer
	newID      func() string
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

func WithFormatter(f *receipt.Formatter) Option {
	return func(o *Orchestrator) { o.formatter = f }
}

func WithLogger(l *logger.Logger) Option {
	return func(o *Orchestrator) { o.log = l }
}

func WithRecorder(r Recorder) Option {
	return func(o *Orchestrator) { o.recorder = r }
}

func WithTracer(t trace.Tracer) Option {
	return func(o *Orchestrator) { o.tracer = t }
}

func WithIDGenerator(fn func() string) Option {
	return func(o *Orchestrator) { o.newID = fn }
}

// New creates an orchestrator that tries strategies in the given order.
func New(strategies []transport.Strategy, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		strategies: strategies,
		formatter:  receipt.NewFormatter(),
		log:        logger.Nop(),
		tracer:     otel.Tracer("github.com/nixxel-company-limited/escpos-receipt-printer/printer"),
		newID:      uuid.NewString,
	}
	for _, opt := range opts {
		opt(o)
	}
	o.log = logger.OrNop(o.log).WithComponent("printer")
	return o
}

// Strategies returns the strategies in the order they are tried.
func (o *Orchestrator) Strategies() []transport.Strategy {
	return o.strategies
}

// Print formats r and delivers it.
func (o *Orchestrator) Print(ctx context.Context, r receipt.SaleReceipt) (*Result, error) {
	now := o.formatter.Now()
	payload := o.formatter.FormatAt(r, now)

	return o.deliver(ctx, transport.Job{
		ID:      o.newID(),
		Payload: payload,
		Receipt: &r,
		Time:    now,
	})
}

// PrintRaw delivers an already formatted payload.
func (o *Orchestrator) PrintRaw(ctx context.Context, payload []byte) (*Result, error) {
	return o.deliver(ctx, transport.Job{
		ID:      o.newID(),
		Payload: bytes.Clone(payload),
		Time:    o.formatter.Now(),
	})
}

func (o *Orchestrator) deliver(ctx context.Context, job transport.Job) (*Result, error) {
	ctx, span := o.tracer.Start(ctx, "printer.print", trace.WithAttributes(
		attribute.String("job.id", job.ID),
		attribute.Int("job.bytes", len(job.Payload)),
	))
	defer span.End()

	log := o.log.With("job_id", job.ID)
	log.Infow("printing", "bytes", len(job.Payload), "strategies", len(o.strategies))

	var (
		attempts []Attempt
		cause    error
	)
	for _, s := range o.strategies {
		if cause = ctx.Err(); cause != nil {
			log.Warnw("print abandoned", "error", cause)
			break
		}

		a := o.try(ctx, s, job)
		attempts = append(attempts, a)

		if a.Outcome == OutcomeSucceeded {
			log.Infow("printed", "strategy", a.Strategy, "duration", a.Duration)
			span.SetAttributes(attribute.String("print.strategy", a.Strategy))
			res := &Result{JobID: job.ID, Strategy: a.Strategy, Attempts: attempts}
			o.record(ctx, job.ID, attempts, nil)
			return res, nil
		}
		log.Infow("strategy failed", "strategy", a.Strategy, "outcome", a.Outcome, "error", a.Err)
	}

	err := &PrintError{JobID: job.ID, Attempts: attempts, Cause: cause}
	log.Errorw("print failed", "error", err)
	span.SetStatus(codes.Error, ErrAllStrategiesFailed.Error())
	o.record(ctx, job.ID, attempts, err)
	return nil, err
}

// try runs one strategy behind an availability check and a panic guard, handing it a
// private copy of the payload.
func (o *Orchestrator) try(ctx context.Context, s transport.Strategy, job transport.Job) (a Attempt) {
	name := s.Name()
	ctx, span := o.tracer.Start(ctx, "printer.attempt", trace.WithAttributes(attribute.String("print.strategy", name)))
	defer span.End()

	start := time.Now()
	a = Attempt{Strategy: name}
	defer func() {
		if r := recover(); r != nil {
			a.Err = transport.Rejected(name, fmt.Errorf("panic: %v", r))
		}
		a.Duration = time.Since(start)
		a.Outcome = outcomeOf(a.Err)
		if a.Err != nil {
			span.RecordError(a.Err)
			span.SetStatus(codes.Error, string(a.Outcome))
		}
	}()

	if !s.Available(ctx) {
		a.Err = transport.Unavailable(name, errors.New("not available"))
		return a
	}

	job.Payload = bytes.Clone(job.Payload)
	if job.Receipt != nil {
		r := *job.Receipt
		r.Items = append([]receipt.LineItem(nil), r.Items...)
		job.Receipt = &r
	}
	if err := s.Attempt(ctx, job); err != nil {
		a.Err = transport.AsError(name, err)
	}
	return a
}

func outcomeOf(err error) Outcome {
	switch {
	case err == nil:
		return OutcomeSucceeded
	case errors.Is(err, transport.ErrUnavailable):
		return OutcomeUnavailable
	default:
		return OutcomeRejected
	}
}

// record stores the job outcome even when ctx was cancelled mid-chain.
func (o *Orchestrator) record(ctx context.Context, jobID string, attempts []Attempt, err error) {
	if o.recorder == nil {
		return
	}
	if rerr := o.recorder.Record(context.WithoutCancel(ctx), jobID, attempts, err); rerr != nil {
		o.log.Warnw("failed to record print job", "job_id", jobID, "error", rerr)
	}
}

// Describe turns a print outcome into a sentence for a toast or alert.
func Describe(res *Result, err error) string {
	if err != nil {
		if errors.Is(err, ErrAllStrategiesFailed) {
			return "Printing failed: no printer could be reached."
		}
		return "Printing failed: " + err.Error()
	}
	if res == nil {
		return "Nothing was printed."
	}
	if res.Strategy == transport.NameBrowser {
		return "Receipt opened in the browser print dialog."
	}
	return fmt.Sprintf("Receipt sent to printer via %s.", res.Strategy)
}
