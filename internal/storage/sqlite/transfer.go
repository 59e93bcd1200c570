package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	streamline "github.com/eugener/streamline/internal"
	"github.com/eugener/streamline/internal/storage"
)

var _ storage.Store = (*Store)(nil)

// timeLayout is fixed-width so that started_at sorts and compares as text.
const timeLayout = "2006-01-02T15:04:05.000000Z"

const defaultListLimit = 50

const transferColumns = `id, url, method, status_code, outcome, bytes_received, bytes_total,
	lines, error, duration_ms, started_at`

// InsertTransfers batch-inserts transfer records.
func (s *Store) InsertTransfers(ctx context.Context, records []streamline.TransferRecord) error {
	if len(records) == 0 {
		return nil
	}

	// cols must match the number of columns in transferColumns.
	const cols = 11
	placeholders := make([]string, len(records))
	args := make([]any, 0, len(records)*cols)

	for i, r := range records {
		placeholders[i] = "(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)"
		args = append(args,
			r.ID, r.URL, r.Method, r.StatusCode, string(r.Outcome),
			r.Received, r.Total, r.Lines, nullStr(r.Error), r.DurationMs,
			formatTime(r.StartedAt),
		)
	}

	query := `INSERT INTO transfers (` + transferColumns + `) VALUES ` + strings.Join(placeholders, ", ")
	_, err := s.write.ExecContext(ctx, query, args...)
	return err
}

// GetTransfer retrieves a transfer record by ID.
func (s *Store) GetTransfer(ctx context.Context, id string) (*streamline.TransferRecord, error) {
	row := s.read.QueryRowContext(ctx,
		`SELECT `+transferColumns+` FROM transfers WHERE id = ?`, id,
	)
	r, err := scanTransfer(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, streamline.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// ListTransfers returns transfer records matching the filter, newest first.
func (s *Store) ListTransfers(ctx context.Context, f streamline.TransferFilter) ([]streamline.TransferRecord, error) {
	where, args := transferWhere(f)
	limit := f.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	args = append(args, limit, max(f.Offset, 0))

	rows, err := s.read.QueryContext(ctx,
		`SELECT `+transferColumns+` FROM transfers`+where+
			` ORDER BY started_at DESC, id DESC LIMIT ? OFFSET ?`, args...,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []streamline.TransferRecord
	for rows.Next() {
		r, err := scanTransfer(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// CountTransfers returns the count of transfer records matching the filter.
func (s *Store) CountTransfers(ctx context.Context, f streamline.TransferFilter) (int, error) {
	where, args := transferWhere(f)
	var n int
	err := s.read.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM transfers`+where, args...,
	).Scan(&n)
	return n, err
}

func transferWhere(f streamline.TransferFilter) (string, []any) {
	var clauses []string
	var args []any
	if f.Outcome != "" {
		clauses = append(clauses, "outcome = ?")
		args = append(args, string(f.Outcome))
	}
	if f.URL != "" {
		clauses = append(clauses, "url = ?")
		args = append(args, f.URL)
	}
	if !f.Since.IsZero() {
		clauses = append(clauses, "started_at >= ?")
		args = append(args, formatTime(f.Since))
	}
	if !f.Until.IsZero() {
		clauses = append(clauses, "started_at < ?")
		args = append(args, formatTime(f.Until))
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanTransfer(sc scanner) (streamline.TransferRecord, error) {
	var (
		r         streamline.TransferRecord
		outcome   string
		errText   sql.NullString
		startedAt string
	)
	err := sc.Scan(
		&r.ID, &r.URL, &r.Method, &r.StatusCode, &outcome,
		&r.Received, &r.Total, &r.Lines, &errText, &r.DurationMs,
		&startedAt,
	)
	if err != nil {
		return r, err
	}
	r.Outcome = streamline.Outcome(outcome)
	r.Error = errText.String
	if t, e := time.Parse(timeLayout, startedAt); e == nil {
		r.StartedAt = t
	}
	return r, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func nullStr(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
