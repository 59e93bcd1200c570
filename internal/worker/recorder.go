package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	streamline "github.com/eugener/streamline/internal"
	"github.com/eugener/streamline/internal/telemetry"
)

const (
	recorderChanSize   = 1000
	recorderBatchSize  = 100
	recorderFlushEvery = 5 * time.Second
	recorderDrainTime  = 30 * time.Second
)

// TransferStore is the persistence interface consumed by TransferRecorder.
type TransferStore interface {
	InsertTransfers(ctx context.Context, records []streamline.TransferRecord) error
}

// TransferRecorder buffers transfer records and batch-flushes them to the store.
// Records are dropped if the channel is full (back-pressure on slow DB).
type TransferRecorder struct {
	ch         chan streamline.TransferRecord
	store      TransferStore
	metrics    *telemetry.Metrics // nil = no metrics
	flushEvery time.Duration
}

// NewTransferRecorder creates a TransferRecorder backed by store.
func NewTransferRecorder(store TransferStore, metrics *telemetry.Metrics) *TransferRecorder {
	return &TransferRecorder{
		ch:         make(chan streamline.TransferRecord, recorderChanSize),
		store:      store,
		metrics:    metrics,
		flushEvery: recorderFlushEvery,
	}
}

// Record enqueues a transfer record. It never blocks; drops on full channel.
func (t *TransferRecorder) Record(r streamline.TransferRecord) {
	select {
	case t.ch <- r:
		t.observeQueue()
	default:
		slog.Warn("transfer record dropped, channel full", "url", r.URL)
	}
}

// Name implements Worker.
func (t *TransferRecorder) Name() string { return "transfer_recorder" }

// Run processes records until ctx is cancelled, then drains remaining records.
func (t *TransferRecorder) Run(ctx context.Context) error {
	ticker := time.NewTicker(t.flushEvery)
	defer ticker.Stop()

	buf := make([]streamline.TransferRecord, 0, recorderBatchSize)

	for {
		select {
		case r := <-t.ch:
			t.observeQueue()
			buf = append(buf, r)
			if len(buf) >= recorderBatchSize {
				t.flush(ctx, buf)
				buf = buf[:0]
			}

		case <-ticker.C:
			if len(buf) > 0 {
				t.flush(ctx, buf)
				buf = buf[:0]
			}

		case <-ctx.Done():
			// Drain remaining records with a timeout.
			t.drain(buf)
			return nil
		}
	}
}

func (t *TransferRecorder) drain(buf []streamline.TransferRecord) {
	ctx, cancel := context.WithTimeout(context.Background(), recorderDrainTime)
	defer cancel()

	for {
		select {
		case r := <-t.ch:
			buf = append(buf, r)
			if len(buf) >= recorderBatchSize {
				t.flush(ctx, buf)
				buf = buf[:0]
			}
		default:
			if len(buf) > 0 {
				t.flush(ctx, buf)
			}
			t.observeQueue()
			return
		}
	}
}

func (t *TransferRecorder) flush(ctx context.Context, buf []streamline.TransferRecord) {
	// Copy to avoid aliasing the caller's slice.
	batch := make([]streamline.TransferRecord, len(buf))
	copy(batch, buf)

	for i := range batch {
		if batch[i].ID == "" {
			batch[i].ID = uuid.Must(uuid.NewV7()).String()
		}
	}

	if err := t.store.InsertTransfers(ctx, batch); err != nil {
		slog.LogAttrs(ctx, slog.LevelError, "transfer flush failed",
			slog.Int("count", len(batch)),
			slog.String("error", err.Error()),
		)
	}
}

func (t *TransferRecorder) observeQueue() {
	if t.metrics != nil {
		t.metrics.RecorderQueueLength.Set(float64(len(t.ch)))
	}
}
