// Package app wires transfers to the process-wide client, metrics and history.
package app

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	streamline "github.com/eugener/streamline/internal"
	"github.com/eugener/streamline/internal/stream"
	"github.com/eugener/streamline/internal/telemetry"
)

// Recorder accepts finished transfer records. Implemented by
// *worker.TransferRecorder.
type Recorder interface {
	Record(r streamline.TransferRecord)
}

// Fetcher starts transfers with a shared client and accounts for them once
// they end.
type Fetcher struct {
	client   *http.Client
	metrics  *telemetry.Metrics // nil = no metrics
	recorder Recorder           // nil = no history
}

// NewFetcher returns a Fetcher. metrics and recorder may be nil.
func NewFetcher(client *http.Client, metrics *telemetry.Metrics, recorder Recorder) *Fetcher {
	return &Fetcher{client: client, metrics: metrics, recorder: recorder}
}

// Start begins a transfer and returns its handle. Accounting happens in the
// background once the transfer ends.
func (f *Fetcher) Start(ctx context.Context, opts stream.Options) (*stream.Handle, error) {
	h, err := f.start(ctx, opts)
	if err != nil {
		return nil, err
	}
	go func() {
		f.observe(ctx, h.Wait())
	}()
	return h, nil
}

// Fetch runs a transfer to its end. The returned error is nil only when
// the body was read completely; otherwise it is the failure or the
// cancellation reason.
func (f *Fetcher) Fetch(ctx context.Context, opts stream.Options) (stream.Summary, error) {
	h, err := f.start(ctx, opts)
	if err != nil {
		return stream.Summary{}, err
	}
	s := h.Wait()
	f.observe(ctx, s)
	if s.Outcome != streamline.OutcomeFinished {
		return s, s.Err
	}
	return s, nil
}

func (f *Fetcher) start(ctx context.Context, opts stream.Options) (*stream.Handle, error) {
	if opts.Client == nil {
		opts.Client = f.client
	}
	h, err := stream.Start(ctx, opts)
	if err != nil {
		return nil, err
	}
	if f.metrics != nil {
		f.metrics.ActiveTransfers.Inc()
	}
	return h, nil
}

func (f *Fetcher) observe(ctx context.Context, s stream.Summary) {
	if m := f.metrics; m != nil {
		outcome := string(s.Outcome)
		m.ActiveTransfers.Dec()
		m.TransfersTotal.WithLabelValues(outcome).Inc()
		m.TransferDuration.WithLabelValues(outcome).Observe(s.Duration.Seconds())
		m.BytesReceived.Add(float64(s.Received))
		m.LinesTotal.Add(float64(s.Lines))
		var se *streamline.StatusError
		if errors.As(s.Err, &se) {
			m.StatusErrors.WithLabelValues(strconv.Itoa(s.StatusCode)).Inc()
		}
	}

	if f.recorder != nil {
		f.recorder.Record(s.Record())
	}

	attrs := []slog.Attr{
		slog.String("id", s.ID),
		slog.String("url", s.URL),
		slog.String("outcome", string(s.Outcome)),
		slog.Int("status", s.StatusCode),
		slog.Int64("bytes", s.Received),
		slog.Int64("lines", s.Lines),
		slog.Int64("duration_ms", s.Duration.Milliseconds()),
	}
	if reqID := streamline.RequestIDFromContext(ctx); reqID != "" {
		attrs = append(attrs, slog.String("request_id", reqID))
	}
	level := slog.LevelInfo
	if s.Outcome == streamline.OutcomeFailed {
		level = slog.LevelWarn
		attrs = append(attrs, slog.String("error", s.Err.Error()))
	}
	slog.LogAttrs(ctx, level, "transfer ended", attrs...)
}
