// Package storage persists analysis snapshots.
package storage

import (
	"context"
	"errors"

	"archmap/internal/model"
)

// ErrNoSnapshot is returned when loading from a store that holds no model.
var ErrNoSnapshot = errors.New("no snapshot stored")

// ModelStore persists one model snapshot at a time.
type ModelStore interface {
	// SaveModel replaces the stored snapshot with m.
	SaveModel(ctx context.Context, m *model.CodeModel) error

	// LoadModel rebuilds the stored snapshot.
	LoadModel(ctx context.Context) (*model.CodeModel, error)

	Close() error
}

var (
	_ ModelStore = (*SQLiteStore)(nil)
	_ ModelStore = (*JSONStore)(nil)
)
