package streamline

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"
)

func TestNewProgress(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		received int64
		total    int64
		want     string
	}{
		{name: "partial", received: 40, total: 100, want: "40.00"},
		{name: "complete", received: 100, total: 100, want: "100.00"},
		{name: "fraction", received: 1, total: 3, want: "33.33"},
		{name: "over total", received: 150, total: 100, want: "150.00"},
		{name: "zero received", received: 0, total: 7, want: "0.00"},
		{name: "tie rounds up low", received: 1, total: 800, want: "0.13"},
		{name: "tie rounds up mid", received: 5, total: 800, want: "0.63"},
		{name: "tie rounds up above one", received: 9, total: 800, want: "1.13"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			p := NewProgress(tt.received, tt.total)
			if p.Percent != tt.want {
				t.Errorf("Percent = %q, want %q", p.Percent, tt.want)
			}
			if p.Received != tt.received || p.Total != tt.total {
				t.Errorf("counters = %d/%d, want %d/%d", p.Received, p.Total, tt.received, tt.total)
			}
		})
	}
}

func TestFormatPercent(t *testing.T) {
	t.Parallel()

	tests := []struct {
		pct  float64
		want string
	}{
		{0.125, "0.13"},
		{2.675, "2.67"}, // stored as 2.67499999...
		{1.005, "1.00"}, // stored as 1.00499999...
		{99.999, "100.00"},
		{12.5, "12.50"},
		{0, "0.00"},
	}
	for _, tt := range tests {
		if got := formatPercent(tt.pct); got != tt.want {
			t.Errorf("formatPercent(%v) = %q, want %q", tt.pct, got, tt.want)
		}
	}
}

func TestOutcomeValid(t *testing.T) {
	t.Parallel()

	for _, o := range []Outcome{OutcomeFinished, OutcomeFailed, OutcomeCanceled, OutcomeTimedOut} {
		if !o.Valid() {
			t.Errorf("%q should be valid", o)
		}
	}
	if Outcome("exploded").Valid() {
		t.Error("unknown outcome should be invalid")
	}
	if Outcome("").Valid() {
		t.Error("empty outcome should be invalid")
	}
}

func TestParseStatusError(t *testing.T) {
	t.Parallel()

	resp := &http.Response{
		StatusCode: http.StatusInternalServerError,
		Body:       io.NopCloser(strings.NewReader("upstream exploded")),
	}
	err := ParseStatusError(resp)

	if !errors.Is(err, ErrHTTPStatus) {
		t.Errorf("errors.Is(err, ErrHTTPStatus) = false for %v", err)
	}
	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("error type = %T, want *StatusError", err)
	}
	if se.HTTPStatus() != 500 {
		t.Errorf("status = %d, want 500", se.HTTPStatus())
	}
	if !strings.Contains(err.Error(), "500") {
		t.Errorf("message %q does not contain status code", err.Error())
	}
	if !strings.Contains(err.Error(), "upstream exploded") {
		t.Errorf("message %q does not contain body", err.Error())
	}
}

func TestParseStatusErrorTruncatesBody(t *testing.T) {
	t.Parallel()

	resp := &http.Response{
		StatusCode: http.StatusBadGateway,
		Body:       io.NopCloser(strings.NewReader(strings.Repeat("x", 10_000))),
	}
	var se *StatusError
	if !errors.As(ParseStatusError(resp), &se) {
		t.Fatal("expected *StatusError")
	}
	if len(se.Body) != maxErrorBody {
		t.Errorf("body len = %d, want %d", len(se.Body), maxErrorBody)
	}
}

func TestStatusErrorEmptyBody(t *testing.T) {
	t.Parallel()

	err := &StatusError{StatusCode: 404}
	if got := err.Error(); got != "http error: status 404" {
		t.Errorf("Error() = %q", got)
	}
}

func TestTimeoutError(t *testing.T) {
	t.Parallel()

	err := TimeoutError(250 * time.Millisecond)
	if !errors.Is(err, ErrTimeout) {
		t.Error("TimeoutError should wrap ErrTimeout")
	}
	if got := err.Error(); got != "request timed out after 250ms" {
		t.Errorf("Error() = %q", got)
	}
}

func TestRequestIDContext(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	if got := RequestIDFromContext(ctx); got != "" {
		t.Errorf("empty context request id = %q", got)
	}
	ctx = ContextWithRequestID(ctx, "req-1")
	if got := RequestIDFromContext(ctx); got != "req-1" {
		t.Errorf("request id = %q, want req-1", got)
	}
}
