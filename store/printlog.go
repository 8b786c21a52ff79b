package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"

	"github.com/nixxel-company-limited/escpos-receipt-printer/printer"
)

type attemptRecord struct {
	Strategy   string          `json:"strategy"`
	Outcome    printer.Outcome `json:"outcome"`
	Reason     string          `json:"reason,omitempty"`
	DurationMS int64           `json:"duration_ms"`
}

// PrintLog writes one print_jobs row per job. It is an audit trail: nothing
// is re-printed from it.
type PrintLog struct {
	db  Querier
	now func() time.Time
}

func NewPrintLog(db Querier) *PrintLog {
	return &PrintLog{db: db, now: time.Now}
}

// Record implements printer.Recorder.
func (l *PrintLog) Record(ctx context.Context, jobID string, attempts []printer.Attempt, printErr error) error {
	q, err := insertJobQuery(jobID, attempts, printErr == nil, l.now())
	if err != nil {
		return err
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := l.db.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert print_jobs: %w", err)
	}
	return nil
}

func insertJobQuery(jobID string, attempts []printer.Attempt, success bool, at time.Time) (squirrel.InsertBuilder, error) {
	payload, err := json.Marshal(attemptRecords(attempts))
	if err != nil {
		return squirrel.InsertBuilder{}, fmt.Errorf("encode attempts: %w", err)
	}

	var strategy *string
	if success && len(attempts) > 0 {
		strategy = &attempts[len(attempts)-1].Strategy
	}

	return builder().
		Insert("print_jobs").
		Columns("id", "strategy", "success", "attempts", "created_at").
		Values(jobID, strategy, success, string(payload), at), nil
}

func attemptRecords(attempts []printer.Attempt) []attemptRecord {
	out := make([]attemptRecord, 0, len(attempts))
	for _, a := range attempts {
		out = append(out, attemptRecord{
			Strategy:   a.Strategy,
			Outcome:    a.Outcome,
			Reason:     a.Reason(),
			DurationMS: a.Duration.Milliseconds(),
		})
	}
	return out
}
