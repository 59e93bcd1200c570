// Package stream consumes a streamed HTTP response body as newline-delimited
// text, reporting lines, progress, completion and errors through callbacks.
package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	streamline "github.com/eugener/streamline/internal"
	"github.com/eugener/streamline/internal/telemetry"
)

var tracer = telemetry.Tracer("github.com/eugener/streamline/internal/stream")

// Summary describes a transfer after it has ended.
type Summary struct {
	ID         string
	URL        string
	Method     string
	Outcome    streamline.Outcome
	StatusCode int   // 0 when no response arrived
	Received   int64 // body bytes read
	Total      int64 // Content-Length, 0 if unknown
	Lines      int64 // lines delivered to OnLine
	Err        error // failure, or the cancellation reason
	StartedAt  time.Time
	Duration   time.Duration
}

// Record converts s into its persisted form.
func (s Summary) Record() streamline.TransferRecord {
	r := streamline.TransferRecord{
		ID:         s.ID,
		URL:        s.URL,
		Method:     s.Method,
		StatusCode: s.StatusCode,
		Outcome:    s.Outcome,
		Received:   s.Received,
		Total:      s.Total,
		Lines:      s.Lines,
		DurationMs: s.Duration.Milliseconds(),
		StartedAt:  s.StartedAt,
	}
	if s.Err != nil {
		r.Error = s.Err.Error()
	}
	return r
}

// Handle controls an in-flight transfer.
type Handle struct {
	opts   Options
	cancel context.CancelCauseFunc
	timer  *time.Timer
	done   chan struct{}

	// cause doubles as the cancellation flag: non-nil once cancelled.
	cause atomic.Pointer[error]

	// Written only by the read loop; read by Wait after done is closed.
	summary  Summary
	finished bool
}

// Start validates opts, arms the timeout and begins the transfer on a new
// goroutine. Callbacks run on that goroutine, one at a time, in stream order.
//
// Cancelling ctx cancels the transfer with context.Cause(ctx) as the reason.
// Values carried by ctx (trace spans, request IDs) are kept.
func Start(ctx context.Context, opts Options) (*Handle, error) {
	opts, err := opts.withDefaults()
	if err != nil {
		return nil, err
	}

	// The transfer context is detached from ctx so that cancellation always
	// goes through abort, which sets the flag before the transport sees it.
	tctx, cancel := context.WithCancelCause(context.WithoutCancel(ctx))
	req, err := opts.newRequest(tctx)
	if err != nil {
		cancel(err)
		return nil, err
	}

	h := &Handle{
		opts:   opts,
		cancel: cancel,
		done:   make(chan struct{}),
		summary: Summary{
			ID:        uuid.Must(uuid.NewV7()).String(),
			URL:       opts.URL,
			Method:    opts.Method,
			StartedAt: time.Now(),
		},
	}
	h.timer = time.AfterFunc(opts.Timeout, func() {
		h.abort(streamline.TimeoutError(opts.Timeout))
	})
	stop := context.AfterFunc(ctx, func() {
		h.abort(context.Cause(ctx))
	})

	go h.run(tctx, req, stop)
	return h, nil
}

// ID returns the transfer identifier (UUID v7).
func (h *Handle) ID() string { return h.summary.ID }

// Cancel aborts the transfer. A nil reason means streamline.ErrCanceled.
// Only the first call has any effect; later calls, and calls after the
// transfer has ended, are no-ops. OnError is never invoked for the
// resulting abort.
func (h *Handle) Cancel(reason error) {
	h.abort(reason)
}

// Done is closed when the transfer has ended and all callbacks have returned.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Wait blocks until the transfer has ended and returns its summary.
func (h *Handle) Wait() Summary {
	<-h.done
	return h.summary
}

// abort sets the cancellation flag and then cancels the transport.
func (h *Handle) abort(reason error) bool {
	if reason == nil {
		reason = streamline.ErrCanceled
	}
	if !h.cause.CompareAndSwap(nil, &reason) {
		return false
	}
	h.cancel(reason)
	return true
}

func (h *Handle) canceled() bool { return h.cause.Load() != nil }

func (h *Handle) run(ctx context.Context, req *http.Request, stopParent func() bool) {
	defer close(h.done)
	defer stopParent()
	defer h.timer.Stop()

	ctx, span := tracer.Start(ctx, "stream.Transfer",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("transfer.id", h.summary.ID),
			attribute.String("http.request.method", h.opts.Method),
			attribute.String("url.full", h.opts.URL),
		),
	)
	defer span.End()

	slog.LogAttrs(ctx, slog.LevelDebug, "transfer started",
		slog.String("id", h.summary.ID),
		slog.String("method", h.opts.Method),
		slog.String("url", h.opts.URL),
	)

	err := h.transfer(req.WithContext(ctx))
	h.conclude(err)

	s := &h.summary
	span.SetAttributes(
		attribute.Int("http.response.status_code", s.StatusCode),
		attribute.Int64("transfer.bytes_received", s.Received),
		attribute.Int64("transfer.lines", s.Lines),
		attribute.String("transfer.outcome", string(s.Outcome)),
	)
	if s.Outcome == streamline.OutcomeFailed {
		span.RecordError(s.Err)
		span.SetStatus(codes.Error, s.Err.Error())
	}

	slog.LogAttrs(ctx, slog.LevelDebug, "transfer ended",
		slog.String("id", s.ID),
		slog.String("outcome", string(s.Outcome)),
		slog.Int64("bytes", s.Received),
		slog.Int64("lines", s.Lines),
		slog.Int64("duration_ms", s.Duration.Milliseconds()),
	)

	// Release the context; a no-op for the cause when already cancelled.
	h.cancel(context.Canceled)
}

// conclude settles the outcome and delivers OnError when it applies.
// err is non-nil unless the transfer finished or was cancelled.
func (h *Handle) conclude(err error) {
	s := &h.summary
	s.Duration = time.Since(s.StartedAt)

	if h.finished {
		s.Outcome = streamline.OutcomeFinished
		return
	}
	if cause := h.cause.Load(); cause != nil {
		s.Err = *cause
		s.Outcome = streamline.OutcomeCanceled
		if errors.Is(*cause, streamline.ErrTimeout) {
			s.Outcome = streamline.OutcomeTimedOut
		}
		return
	}
	s.Outcome = streamline.OutcomeFailed
	s.Err = err
	if h.opts.OnError != nil {
		h.opts.OnError(err)
	}
}

// transfer performs the request and runs the read loop. The response body
// is closed on every path. It returns nil only once the transfer has
// finished or been cancelled.
func (h *Handle) transfer(req *http.Request) error {
	resp, err := h.opts.Client.Do(req)
	if err != nil {
		return fmt.Errorf("stream: do request: %w", err)
	}
	defer resp.Body.Close()

	h.summary.StatusCode = resp.StatusCode
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return streamline.ParseStatusError(resp)
	}
	h.summary.Total = contentLength(resp)

	dec := newDecoder(responseEncoding(h.opts.Charset, resp.Header.Get("Content-Type")))
	split := newLineSplitter(h.opts.MaxLineSize)
	buf := make([]byte, h.opts.ChunkSize)

	for {
		if h.canceled() {
			return nil
		}
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			if err := h.consume(buf[:n], dec, split); err != nil {
				return err
			}
		}
		if readErr == io.EOF {
			return h.complete(dec, split)
		}
		if readErr != nil {
			return fmt.Errorf("stream: read body: %w", readErr)
		}
	}
}

// consume handles one chunk: progress first, then the lines it completes.
func (h *Handle) consume(chunk []byte, dec *decoder, split *lineSplitter) error {
	s := &h.summary
	s.Received += int64(len(chunk))
	if s.Total > 0 && h.opts.OnProgress != nil && !h.canceled() {
		h.opts.OnProgress(streamline.NewProgress(s.Received, s.Total))
	}

	text, err := dec.Decode(chunk, false)
	if err != nil {
		return fmt.Errorf("stream: decode: %w", err)
	}
	lines, err := split.Push(text)
	h.emit(lines)
	if err != nil {
		return fmt.Errorf("stream: split lines: %w", err)
	}
	return nil
}

// complete flushes the decoder and the unterminated last line, then
// reports completion unless the transfer was cancelled meanwhile.
func (h *Handle) complete(dec *decoder, split *lineSplitter) error {
	if h.canceled() {
		return nil
	}
	text, err := dec.Decode(nil, true)
	if err != nil {
		return fmt.Errorf("stream: decode: %w", err)
	}
	lines, err := split.Push(text)
	h.emit(lines)
	if err != nil {
		return fmt.Errorf("stream: split lines: %w", err)
	}
	if line, ok := split.Flush(); ok {
		h.emit([]string{line})
	}

	if h.canceled() {
		return nil
	}
	h.finished = true
	if h.opts.OnFinish != nil {
		h.opts.OnFinish()
	}
	return nil
}

func (h *Handle) emit(lines []string) {
	for _, line := range lines {
		if h.canceled() {
			return
		}
		h.summary.Lines++
		if h.opts.OnLine != nil {
			h.opts.OnLine(line)
		}
	}
}

// contentLength returns the announced body length, or 0 when it is
// absent, malformed or zero.
func contentLength(resp *http.Response) int64 {
	if resp.ContentLength > 0 {
		return resp.ContentLength
	}
	n, err := strconv.ParseInt(strings.TrimSpace(resp.Header.Get("Content-Length")), 10, 64)
	if err != nil || n <= 0 {
		return 0
	}
	return n
}
