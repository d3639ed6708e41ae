package hydrodb

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
)

// Source is a reference-table row describing a data producer (a model or
// an observation network), with an opaque parameter blob.
type Source struct {
	// ID is the surrogate key. Leave zero to auto-assign.
	ID         int             `json:"id"`
	Name       string          `json:"source"`
	Parameters json.RawMessage `json:"parameters,omitempty"`
}

// CreateSource inserts a source row. With a zero ID the assigned id is
// the maximum existing id plus one, or zero for an empty table. Returns
// the row as created.
func (a *Adapter) CreateSource(ctx context.Context, s Source) (Source, error) {
	if s.Name == "" {
		return Source{}, newValidationErrorf("source name is required")
	}

	conn, err := a.pool.Acquire(ctx)
	if err != nil {
		return Source{}, a.storeError(err, "create source %s", s.Name)
	}
	defer conn.Release()

	if s.ID == 0 {
		var lastID *int
		if err := conn.QueryRow(ctx, `SELECT MAX(id) FROM source`).Scan(&lastID); err != nil {
			return Source{}, a.storeError(err, "allocate source id for %s", s.Name)
		}
		if lastID != nil {
			s.ID = *lastID + 1
		}
	}

	a.logger.Debug("create source", "id", s.ID, "source", s.Name)
	_, err = conn.Exec(ctx,
		`INSERT INTO source (id, source, parameters) VALUES ($1, $2, $3)`,
		s.ID, s.Name, s.Parameters)
	if err != nil {
		return Source{}, a.storeError(err, "create source %+v", s)
	}
	return s, nil
}

// GetSource returns the source matching id (when positive) or name, or
// nil when none does.
func (a *Adapter) GetSource(ctx context.Context, id int, name string) (*Source, error) {
	var sql string
	var arg any
	switch {
	case id > 0:
		sql, arg = `SELECT id, source, parameters FROM source WHERE id = $1`, id
	case name != "":
		sql, arg = `SELECT id, source, parameters FROM source WHERE source = $1`, name
	default:
		return nil, newValidationErrorf("source id or name is required")
	}

	var s Source
	err := a.pool.QueryRow(ctx, sql, arg).Scan(&s.ID, &s.Name, &s.Parameters)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, a.storeError(err, "get source (id: %d, name: %s)", id, name)
	}
	return &s, nil
}

// DeleteSource removes a source by id. Returns the affected row count.
func (a *Adapter) DeleteSource(ctx context.Context, id int) (int64, error) {
	if id <= 0 {
		return 0, newValidationErrorf("source id is required")
	}
	tag, err := a.pool.Exec(ctx, `DELETE FROM source WHERE id = $1`, id)
	if err != nil {
		return 0, a.storeError(err, "delete source %d", id)
	}
	return tag.RowsAffected(), nil
}
