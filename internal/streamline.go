// Package streamline defines domain types shared by the streamline packages.
// This package has no project imports -- it is the dependency root.
package streamline

import (
	"context"
	"fmt"
	"math"
	"math/big"
	"strconv"
	"time"
)

// --- Transfer ---

// Progress is a snapshot of a transfer's byte counters. It is only produced
// when the total length of the response body is known.
type Progress struct {
	Received int64  `json:"received"`
	Total    int64  `json:"total"`
	Percent  string `json:"percent"` // received/total*100, two decimals
}

// NewProgress builds a Progress snapshot. total must be positive.
func NewProgress(received, total int64) Progress {
	pct := float64(received) / float64(total) * 100
	return Progress{
		Received: received,
		Total:    total,
		Percent:  formatPercent(pct),
	}
}

// formatPercent renders pct with two decimals, rounding exact ties up.
// The rounding works on the exact binary value of pct, so 0.125 becomes
// "0.13" while 1.005 (stored just below it) stays "1.00".
func formatPercent(pct float64) string {
	if pct < 0 || math.IsNaN(pct) || math.IsInf(pct, 0) {
		return strconv.FormatFloat(pct, 'f', 2, 64)
	}
	x := new(big.Float).SetPrec(128).SetFloat64(pct)
	x.Mul(x, big.NewFloat(100))
	x.Add(x, big.NewFloat(0.5))
	hundredths, _ := x.Int(nil)

	var whole, frac big.Int
	whole.QuoRem(hundredths, big.NewInt(100), &frac)
	return fmt.Sprintf("%s.%02d", whole.String(), frac.Int64())
}

// Outcome describes how a transfer ended.
type Outcome string

const (
	OutcomeFinished Outcome = "finished"  // body read to the end
	OutcomeFailed   Outcome = "failed"    // transport, status or decoding error
	OutcomeCanceled Outcome = "canceled"  // cancelled by the caller
	OutcomeTimedOut Outcome = "timed_out" // cancelled by the transfer timer
)

// Valid reports whether o is a known outcome.
func (o Outcome) Valid() bool {
	switch o {
	case OutcomeFinished, OutcomeFailed, OutcomeCanceled, OutcomeTimedOut:
		return true
	}
	return false
}

// TransferRecord is the persisted summary of one transfer.
type TransferRecord struct {
	ID         string    `json:"id"`
	URL        string    `json:"url"`
	Method     string    `json:"method"`
	StatusCode int       `json:"status_code,omitempty"` // 0 when no response arrived
	Outcome    Outcome   `json:"outcome"`
	Received   int64     `json:"bytes_received"`
	Total      int64     `json:"bytes_total,omitempty"` // 0 = unknown
	Lines      int64     `json:"lines"`
	Error      string    `json:"error,omitempty"`
	DurationMs int64     `json:"duration_ms"`
	StartedAt  time.Time `json:"started_at"`
}

// TransferFilter selects transfer records for listing.
type TransferFilter struct {
	Outcome Outcome   // "" = any
	URL     string    // exact match, "" = any
	Since   time.Time // inclusive, zero = unbounded
	Until   time.Time // exclusive, zero = unbounded
	Offset  int
	Limit   int // <= 0 means default (50)
}

// --- Context keys ---

type contextKey int

const ctxKeyRequestID contextKey = 0

// RequestIDFromContext extracts the request ID from context.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(ctxKeyRequestID).(string)
	return id
}

// ContextWithRequestID returns a context carrying the given request ID.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKeyRequestID, id)
}
