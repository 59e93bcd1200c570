package sqlite

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	streamline "github.com/eugener/streamline/internal"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	// Use a unique file-based temp DB for each test to avoid shared :memory: races
	path := t.TempDir() + "/test.db"
	s, err := New(path)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func record(id string, outcome streamline.Outcome, startedAt time.Time) streamline.TransferRecord {
	return streamline.TransferRecord{
		ID:         id,
		URL:        "https://example.com/stream",
		Method:     "GET",
		StatusCode: 200,
		Outcome:    outcome,
		Received:   120,
		Total:      240,
		Lines:      3,
		DurationMs: 42,
		StartedAt:  startedAt,
	}
}

func TestTransferRoundTrip(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	started := time.Date(2026, 3, 1, 12, 0, 0, 123456000, time.UTC)
	r := record("tr-1", streamline.OutcomeFailed, started)
	r.StatusCode = 503
	r.Error = "http error: status 503: overloaded"

	if err := s.InsertTransfers(ctx, []streamline.TransferRecord{r}); err != nil {
		t.Fatal("insert:", err)
	}

	got, err := s.GetTransfer(ctx, "tr-1")
	if err != nil {
		t.Fatal("get:", err)
	}
	if *got != r {
		t.Errorf("got %+v\nwant %+v", *got, r)
	}
}

func TestGetTransferNotFound(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	_, err := s.GetTransfer(context.Background(), "missing")
	if !errors.Is(err, streamline.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestInsertTransfersEmpty(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	if err := s.InsertTransfers(context.Background(), nil); err != nil {
		t.Fatal(err)
	}
}

func TestInsertTransfersDuplicateID(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	r := record("dup", streamline.OutcomeFinished, time.Now())
	if err := s.InsertTransfers(ctx, []streamline.TransferRecord{r}); err != nil {
		t.Fatal(err)
	}
	if err := s.InsertTransfers(ctx, []streamline.TransferRecord{r}); err == nil {
		t.Error("expected primary key violation")
	}
}

func TestListAndCountTransfers(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	var batch []streamline.TransferRecord
	for i := range 6 {
		outcome := streamline.OutcomeFinished
		if i%3 == 0 {
			outcome = streamline.OutcomeCanceled
		}
		r := record(fmt.Sprintf("tr-%d", i), outcome, base.Add(time.Duration(i)*time.Hour))
		if i == 5 {
			r.URL = "https://other.example.com/events"
		}
		batch = append(batch, r)
	}
	if err := s.InsertTransfers(ctx, batch); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		filter  streamline.TransferFilter
		wantIDs []string
		count   int
	}{
		{
			name:    "all newest first",
			filter:  streamline.TransferFilter{},
			wantIDs: []string{"tr-5", "tr-4", "tr-3", "tr-2", "tr-1", "tr-0"},
			count:   6,
		},
		{
			name:    "by outcome",
			filter:  streamline.TransferFilter{Outcome: streamline.OutcomeCanceled},
			wantIDs: []string{"tr-3", "tr-0"},
			count:   2,
		},
		{
			name:    "by url",
			filter:  streamline.TransferFilter{URL: "https://other.example.com/events"},
			wantIDs: []string{"tr-5"},
			count:   1,
		},
		{
			name: "time window",
			filter: streamline.TransferFilter{
				Since: base.Add(1 * time.Hour),
				Until: base.Add(3 * time.Hour),
			},
			wantIDs: []string{"tr-2", "tr-1"},
			count:   2,
		},
		{
			name:    "paged",
			filter:  streamline.TransferFilter{Offset: 1, Limit: 2},
			wantIDs: []string{"tr-4", "tr-3"},
			count:   6,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.ListTransfers(ctx, tt.filter)
			if err != nil {
				t.Fatal(err)
			}
			if len(got) != len(tt.wantIDs) {
				t.Fatalf("len = %d, want %d", len(got), len(tt.wantIDs))
			}
			for i, r := range got {
				if r.ID != tt.wantIDs[i] {
					t.Errorf("[%d] id = %q, want %q", i, r.ID, tt.wantIDs[i])
				}
			}

			n, err := s.CountTransfers(ctx, tt.filter)
			if err != nil {
				t.Fatal(err)
			}
			if n != tt.count {
				t.Errorf("count = %d, want %d", n, tt.count)
			}
		})
	}
}

func TestPing(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	if err := s.Ping(context.Background()); err != nil {
		t.Fatal(err)
	}
}
