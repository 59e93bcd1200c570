// Package storage defines persistence interfaces for transfer history.
package storage

import (
	"context"

	streamline "github.com/eugener/streamline/internal"
)

// TransferStore manages transfer record persistence.
type TransferStore interface {
	InsertTransfers(ctx context.Context, records []streamline.TransferRecord) error
	GetTransfer(ctx context.Context, id string) (*streamline.TransferRecord, error)
	ListTransfers(ctx context.Context, f streamline.TransferFilter) ([]streamline.TransferRecord, error)
	CountTransfers(ctx context.Context, f streamline.TransferFilter) (int, error)
}

// Store combines all storage interfaces.
type Store interface {
	TransferStore
	Ping(ctx context.Context) error
	Close() error
}
