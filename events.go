package hydrodb

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
)

// DefaultLimit caps event queries when the caller does not set one.
const DefaultLimit = 100

// Event is a stored run row joined with its natural-language metadata.
type Event struct {
	ID string `json:"id"`
	Metadata
	StartDate *time.Time `json:"start_date,omitempty"`
	EndDate   *time.Time `json:"end_date,omitempty"`
}

// EventQuery filters events by metadata. A field with one value matches
// exactly; with several values it matches set membership. Empty fields
// are ignored.
type EventQuery struct {
	Station  []string
	Variable []string
	Unit     []string
	Type     []string
	Source   []string
	Name     []string
}

// QueryOptions pages event queries.
type QueryOptions struct {
	Limit int
	Skip  int
}

func (o QueryOptions) normalized() QueryOptions {
	if o.Limit <= 0 {
		o.Limit = DefaultLimit
	}
	if o.Skip < 0 {
		o.Skip = 0
	}
	return o
}

// LookupEventID computes the candidate identifier for meta and reports
// whether a run row with that id exists. Absence is an expected outcome,
// not an error.
func (a *Adapter) LookupEventID(ctx context.Context, meta Metadata) (string, bool, error) {
	id, err := EventID(meta)
	if err != nil {
		return "", false, err
	}

	var one int
	err = a.pool.QueryRow(ctx, `SELECT 1 FROM run WHERE id = $1`, id).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, a.storeError(err, "lookup event id for metadata %+v", meta)
	}
	return id, true, nil
}

// Reference lookups run in this order and stop at the first failure, so a
// caller always sees the first unresolved field only.
var fkLookups = []struct {
	field string
	query string
	value func(Metadata) string
}{
	{"station", `SELECT id FROM station WHERE name = $1`, func(m Metadata) string { return m.Station }},
	{"variable", `SELECT id FROM variable WHERE variable = $1`, func(m Metadata) string { return m.Variable }},
	{"unit", `SELECT id FROM unit WHERE unit = $1`, func(m Metadata) string { return m.Unit }},
	{"type", `SELECT id FROM "type" WHERE "type" = $1`, func(m Metadata) string { return m.Type }},
	{"source", `SELECT id FROM source WHERE source = $1`, func(m Metadata) string { return m.Source }},
}

// CreateEvent mints the identifier for meta, resolves the five reference
// fields to their surrogate keys and inserts the run row. Resolution
// happens entirely before the insert; an unresolvable reference surfaces
// as a ConstraintError and leaves no partial row. A unique violation on
// the id means another caller created the same event concurrently (see
// IsUniqueViolation).
func (a *Adapter) CreateEvent(ctx context.Context, meta Metadata) (string, error) {
	id, err := EventID(meta)
	if err != nil {
		return "", err
	}

	conn, err := a.pool.Acquire(ctx)
	if err != nil {
		return "", a.storeError(err, "acquire connection for event %s", id)
	}
	defer conn.Release()

	keys := make([]int, 0, len(fkLookups))
	for _, fk := range fkLookups {
		var surrogate int
		err := conn.QueryRow(ctx, fk.query, fk.value(meta)).Scan(&surrogate)
		if errors.Is(err, pgx.ErrNoRows) {
			cerr := &ConstraintError{Field: fk.field, Value: fk.value(meta)}
			a.logger.Error("database constraint violation", "error", cerr)
			return "", cerr
		}
		if err != nil {
			return "", a.storeError(err, "resolve %s for metadata %+v", fk.field, meta)
		}
		keys = append(keys, surrogate)
	}

	_, err = conn.Exec(ctx,
		`INSERT INTO run (id, name, station, variable, unit, "type", source)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		id, meta.Name, keys[0], keys[1], keys[2], keys[3], keys[4])
	if err != nil {
		if IsUniqueViolation(err) {
			return "", err
		}
		return "", a.storeError(err, "create event for metadata %+v", meta)
	}
	return id, nil
}

// EnsureEvent returns the identifier for meta, creating the run row if it
// does not exist yet. Losing a concurrent creation race is resolved by
// re-fetching.
func (a *Adapter) EnsureEvent(ctx context.Context, meta Metadata) (string, error) {
	id, found, err := a.LookupEventID(ctx, meta)
	if err != nil {
		return "", err
	}
	if found {
		return id, nil
	}

	id, err = a.CreateEvent(ctx, meta)
	if err == nil {
		return id, nil
	}
	if !IsUniqueViolation(err) {
		return "", err
	}

	id, found, err = a.LookupEventID(ctx, meta)
	if err != nil {
		return "", err
	}
	if !found {
		return "", a.storeError(errors.New("event vanished after unique violation"), "ensure event for metadata %+v", meta)
	}
	return id, nil
}

// buildEventFilter renders the WHERE clause and arguments for q. Only
// parameterized SQL is produced.
func buildEventFilter(q EventQuery) (string, []any) {
	fields := []struct {
		column string
		values []string
	}{
		{"station", q.Station},
		{"variable", q.Variable},
		{"unit", q.Unit},
		{`"type"`, q.Type},
		{"source", q.Source},
		{"name", q.Name},
	}

	var clauses []string
	var args []any
	for _, f := range fields {
		switch {
		case len(f.values) == 1:
			args = append(args, f.values[0])
			clauses = append(clauses, f.column+" = $"+strconv.Itoa(len(args)))
		case len(f.values) > 1:
			args = append(args, f.values)
			clauses = append(clauses, f.column+" = ANY($"+strconv.Itoa(len(args))+")")
		}
	}

	if len(clauses) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

// GetEventIDs returns events matching the partial metadata filter q,
// paged by opts (default limit 100).
func (a *Adapter) GetEventIDs(ctx context.Context, q EventQuery, opts QueryOptions) ([]Event, error) {
	opts = opts.normalized()

	where, args := buildEventFilter(q)
	args = append(args, opts.Limit, opts.Skip)
	sql := `SELECT id, station, variable, unit, "type", source, name, start_date, end_date FROM run_view` +
		where +
		" ORDER BY id LIMIT $" + strconv.Itoa(len(args)-1) + " OFFSET $" + strconv.Itoa(len(args))

	a.logger.Debug("query events", "sql", sql)
	rows, err := a.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, a.storeError(err, "query events for filter %+v", q)
	}
	defer rows.Close()

	events := make([]Event, 0)
	for rows.Next() {
		var e Event
		if err := rows.Scan(
			&e.ID,
			&e.Station,
			&e.Variable,
			&e.Unit,
			&e.Type,
			&e.Source,
			&e.Name,
			&e.StartDate,
			&e.EndDate,
		); err != nil {
			return nil, a.storeError(err, "scan event row for filter %+v", q)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, a.storeError(err, "query events for filter %+v", q)
	}
	return events, nil
}
