package storage

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"archmap/internal/model"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"
)

// ErrInvalidSnapshot is returned when a JSON snapshot does not match the snapshot schema.
var ErrInvalidSnapshot = errors.New("invalid snapshot")

const snapshotSchemaURL = "snapshot.schema.json"

//go:embed snapshot.schema.json
var snapshotSchemaJSON []byte

var snapshotSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(snapshotSchemaURL, bytes.NewReader(snapshotSchemaJSON)); err != nil {
		return nil, err
	}
	return compiler.Compile(snapshotSchemaURL)
})

// WriteJSON encodes m as an indented snapshot.
func WriteJSON(w io.Writer, m *model.CodeModel) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(m.Snapshot())
}

// ReadJSON decodes a snapshot written by WriteJSON. The document is checked against the
// snapshot schema before it is decoded.
func ReadJSON(r io.Reader) (*model.CodeModel, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if err := ValidateSnapshot(raw); err != nil {
		return nil, err
	}

	var snap model.Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	return model.FromSnapshot(snap), nil
}

// ValidateSnapshot checks a JSON document against the snapshot schema.
func ValidateSnapshot(raw []byte) error {
	schema, err := snapshotSchema()
	if err != nil {
		return fmt.Errorf("failed to compile snapshot schema: %w", err)
	}

	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
	}
	return nil
}

// JSONStore keeps the snapshot in a single JSON file.
type JSONStore struct {
	path string
}

func NewJSONStore(path string) *JSONStore {
	return &JSONStore{path: path}
}

// SaveModel writes to a temporary file and renames it over the previous snapshot.
func (s *JSONStore) SaveModel(ctx context.Context, m *model.CodeModel) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".snapshot-*.json")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := WriteJSON(tmp, m); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), s.path)
}

func (s *JSONStore) LoadModel(ctx context.Context) (*model.CodeModel, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNoSnapshot
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadJSON(f)
}

func (s *JSONStore) Close() error { return nil }
