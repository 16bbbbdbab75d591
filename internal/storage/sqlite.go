package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"archmap/internal/model"

	_ "github.com/mattn/go-sqlite3"
)

type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates or opens a SQLite database.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}

	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to init schema: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) initSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value JSON
		);`,
		`CREATE TABLE IF NOT EXISTS modules (
			seq INTEGER PRIMARY KEY,
			name TEXT,
			file TEXT,
			docstring TEXT,
			imports JSON,
			content_hash TEXT
		);`,
		`CREATE TABLE IF NOT EXISTS elements (
			seq INTEGER PRIMARY KEY,
			id TEXT UNIQUE,
			name TEXT,
			qualified_name TEXT,
			module TEXT,
			enclosing_class TEXT,
			kind TEXT,
			file TEXT,
			line INTEGER,
			col INTEGER,
			start_line INTEGER,
			is_async INTEGER,
			is_private INTEGER,
			is_property INTEGER,
			decorators JSON,
			docstring TEXT,
			complexity INTEGER
		);`,
		`CREATE TABLE IF NOT EXISTS relationships (
			seq INTEGER PRIMARY KEY,
			id TEXT UNIQUE,
			source_id TEXT,
			target_id TEXT,
			kind TEXT,
			location JSON,
			metadata JSON
		);`,
		`CREATE TABLE IF NOT EXISTS cycles (
			seq INTEGER PRIMARY KEY,
			members JSON
		);`,
		`CREATE INDEX IF NOT EXISTS idx_elements_file ON elements(file);`,
		`CREATE INDEX IF NOT EXISTS idx_elements_module ON elements(module);`,
	}

	for _, q := range queries {
		if _, err := s.db.Exec(q); err != nil {
			return err
		}
	}
	return nil
}

// SaveModel replaces the stored snapshot with m in a single transaction.
func (s *SQLiteStore) SaveModel(ctx context.Context, m *model.CodeModel) error {
	snap := m.Snapshot()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, table := range []string{"meta", "modules", "elements", "relationships", "cycles"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}

	if err := saveMeta(ctx, tx, snap); err != nil {
		return err
	}

	// 1. Modules
	modStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO modules (seq, name, file, docstring, imports, content_hash)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer modStmt.Close()

	for i, mod := range snap.Modules {
		imports, err := json.Marshal(mod.Imports)
		if err != nil {
			return err
		}
		if _, err := modStmt.ExecContext(ctx, i, mod.Name, mod.File, mod.Docstring, imports, mod.ContentHash); err != nil {
			return fmt.Errorf("failed to save module %s: %w", mod.Name, err)
		}
	}

	// 2. Elements
	elStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO elements (seq, id, name, qualified_name, module, enclosing_class, kind, file, line, col, start_line,
			is_async, is_private, is_property, decorators, docstring, complexity)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer elStmt.Close()

	for i, e := range snap.Elements {
		decorators, err := json.Marshal(e.Decorators)
		if err != nil {
			return err
		}
		if _, err := elStmt.ExecContext(ctx, i, e.ID, e.Name, e.QualifiedName, e.Module, e.EnclosingClass, string(e.Kind),
			e.Location.File, e.Location.Line, e.Location.Column, e.Location.StartLine,
			e.IsAsync, e.IsPrivate, e.IsProperty, decorators, e.Docstring, e.Complexity); err != nil {
			return fmt.Errorf("failed to save element %s: %w", e.ID, err)
		}
	}

	// 3. Relationships
	relStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO relationships (seq, id, source_id, target_id, kind, location, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer relStmt.Close()

	for i, r := range snap.Relationships {
		var location []byte
		if r.Location != nil {
			if location, err = json.Marshal(r.Location); err != nil {
				return err
			}
		}
		metadata, err := json.Marshal(r.Metadata)
		if err != nil {
			return err
		}
		if _, err := relStmt.ExecContext(ctx, i, r.ID, r.SourceID, r.TargetID, string(r.Kind), location, metadata); err != nil {
			return fmt.Errorf("failed to save relationship %s: %w", r.ID, err)
		}
	}

	// 4. Cycles
	for i, c := range snap.Cycles {
		members, err := json.Marshal(c)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, "INSERT INTO cycles (seq, members) VALUES (?, ?)", i, members); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func saveMeta(ctx context.Context, tx *sql.Tx, snap model.Snapshot) error {
	entries := map[string]any{
		"project":  snap.Project,
		"root":     snap.Root,
		"metadata": snap.Metadata,
	}
	for key, v := range entries {
		raw, err := json.Marshal(v)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, "INSERT INTO meta (key, value) VALUES (?, ?)", key, raw); err != nil {
			return fmt.Errorf("failed to save meta %s: %w", key, err)
		}
	}
	return nil
}

// LoadModel rebuilds the stored snapshot. An empty database yields ErrNoSnapshot.
func (s *SQLiteStore) LoadModel(ctx context.Context) (*model.CodeModel, error) {
	var snap model.Snapshot

	found, err := s.loadMeta(ctx, &snap)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrNoSnapshot
	}

	// 1. Modules
	rows, err := s.db.QueryContext(ctx, "SELECT name, file, docstring, imports, content_hash FROM modules ORDER BY seq")
	if err != nil {
		return nil, fmt.Errorf("failed to query modules: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var mod model.Module
		var imports []byte
		if err := rows.Scan(&mod.Name, &mod.File, &mod.Docstring, &imports, &mod.ContentHash); err != nil {
			return nil, fmt.Errorf("failed to scan module: %w", err)
		}
		if err := unmarshalNullable(imports, &mod.Imports); err != nil {
			return nil, err
		}
		snap.Modules = append(snap.Modules, mod)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// 2. Elements
	snap.Elements, err = s.queryElements(ctx, "ORDER BY seq")
	if err != nil {
		return nil, err
	}

	// 3. Relationships
	relRows, err := s.db.QueryContext(ctx, "SELECT id, source_id, target_id, kind, location, metadata FROM relationships ORDER BY seq")
	if err != nil {
		return nil, fmt.Errorf("failed to query relationships: %w", err)
	}
	defer relRows.Close()

	for relRows.Next() {
		var r model.Relationship
		var location, metadata []byte
		if err := relRows.Scan(&r.ID, &r.SourceID, &r.TargetID, &r.Kind, &location, &metadata); err != nil {
			return nil, fmt.Errorf("failed to scan relationship: %w", err)
		}
		if len(location) > 0 {
			r.Location = &model.SourceLocation{}
			if err := json.Unmarshal(location, r.Location); err != nil {
				return nil, err
			}
		}
		if err := unmarshalNullable(metadata, &r.Metadata); err != nil {
			return nil, err
		}
		snap.Relationships = append(snap.Relationships, r)
	}
	if err := relRows.Err(); err != nil {
		return nil, err
	}

	// 4. Cycles
	cycleRows, err := s.db.QueryContext(ctx, "SELECT members FROM cycles ORDER BY seq")
	if err != nil {
		return nil, fmt.Errorf("failed to query cycles: %w", err)
	}
	defer cycleRows.Close()

	for cycleRows.Next() {
		var raw []byte
		if err := cycleRows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("failed to scan cycle: %w", err)
		}
		var members []string
		if err := json.Unmarshal(raw, &members); err != nil {
			return nil, err
		}
		snap.Cycles = append(snap.Cycles, members)
	}
	if err := cycleRows.Err(); err != nil {
		return nil, err
	}

	return model.FromSnapshot(snap), nil
}

func (s *SQLiteStore) loadMeta(ctx context.Context, snap *model.Snapshot) (bool, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT key, value FROM meta")
	if err != nil {
		return false, fmt.Errorf("failed to query meta: %w", err)
	}
	defer rows.Close()

	found := false
	for rows.Next() {
		var key string
		var raw []byte
		if err := rows.Scan(&key, &raw); err != nil {
			return false, fmt.Errorf("failed to scan meta: %w", err)
		}
		found = true
		switch key {
		case "project":
			err = json.Unmarshal(raw, &snap.Project)
		case "root":
			err = json.Unmarshal(raw, &snap.Root)
		case "metadata":
			err = unmarshalNullable(raw, &snap.Metadata)
		}
		if err != nil {
			return false, fmt.Errorf("failed to decode meta %s: %w", key, err)
		}
	}
	return found, rows.Err()
}

// GetElement retrieves a stored element by id.
func (s *SQLiteStore) GetElement(ctx context.Context, id string) (model.CodeElement, error) {
	els, err := s.queryElements(ctx, "WHERE id = ?", id)
	if err != nil {
		return model.CodeElement{}, err
	}
	if len(els) == 0 {
		return model.CodeElement{}, fmt.Errorf("element %s: %w", id, sql.ErrNoRows)
	}
	return els[0], nil
}

// FindElementsByFile retrieves the stored elements declared in one file, in model order.
func (s *SQLiteStore) FindElementsByFile(ctx context.Context, file string) ([]model.CodeElement, error) {
	return s.queryElements(ctx, "WHERE file = ? ORDER BY seq", file)
}

func (s *SQLiteStore) queryElements(ctx context.Context, clause string, args ...any) ([]model.CodeElement, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, qualified_name, module, enclosing_class, kind, file, line, col, start_line,
			is_async, is_private, is_property, decorators, docstring, complexity
		FROM elements `+clause, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query elements: %w", err)
	}
	defer rows.Close()

	var out []model.CodeElement
	for rows.Next() {
		var e model.CodeElement
		var decorators []byte
		if err := rows.Scan(&e.ID, &e.Name, &e.QualifiedName, &e.Module, &e.EnclosingClass, &e.Kind,
			&e.Location.File, &e.Location.Line, &e.Location.Column, &e.Location.StartLine,
			&e.IsAsync, &e.IsPrivate, &e.IsProperty, &decorators, &e.Docstring, &e.Complexity); err != nil {
			return nil, fmt.Errorf("failed to scan element: %w", err)
		}
		if err := unmarshalNullable(decorators, &e.Decorators); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// unmarshalNullable decodes JSON columns, leaving v untouched for NULL or "null".
func unmarshalNullable(raw []byte, v any) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	return json.Unmarshal(raw, v)
}
