package hydrodb

import (
	"context"
	"log/slog"
	"math"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
)

// Point is one (timestamp, value) pair of a timeseries.
type Point struct {
	Time  time.Time `json:"time"`
	Value float64   `json:"value"`
}

// DataTable selects the processing stage a series is stored under. The
// same event id may independently hold a raw and a processed series.
type DataTable int

const (
	// RawData targets the data table.
	RawData DataTable = iota
	// ProcessedData targets the processed_data table.
	ProcessedData
)

// ParseDataTable maps the wire names "data" and "processed_data".
func ParseDataTable(s string) (DataTable, error) {
	switch s {
	case "data":
		return RawData, nil
	case "processed_data":
		return ProcessedData, nil
	}
	return 0, newValidationErrorf("invalid data table %q", s)
}

func (t DataTable) String() string {
	switch t {
	case RawData:
		return "data"
	case ProcessedData:
		return "processed_data"
	}
	return "unknown"
}

func (t DataTable) valid() bool {
	return t == RawData || t == ProcessedData
}

// roundValue rounds v half-to-even to 3 decimal places, the precision
// every stored value is kept at.
func roundValue(v float64) float64 {
	return math.RoundToEven(v*1000) / 1000
}

// PointsFromRecords converts row-oriented input (e.g. CSV records of
// [timestamp, value, ...]) into points. Only the first two fields are
// used; rows with fewer than two fields or unparseable contents are
// skipped with a warning, not treated as fatal.
func PointsFromRecords(records [][]string) []Point {
	points := make([]Point, 0, len(records))
	for _, rec := range records {
		if len(rec) < 2 {
			slog.Warn("invalid timeseries record", "record", rec)
			continue
		}
		ts, err := time.Parse(CommonTimeLayout, rec[0])
		if err != nil {
			slog.Warn("invalid timeseries timestamp", "record", rec, "error", err)
			continue
		}
		value, err := strconv.ParseFloat(rec[1], 64)
		if err != nil {
			slog.Warn("invalid timeseries value", "record", rec, "error", err)
			continue
		}
		points = append(points, Point{Time: ts, Value: value})
	}
	return points
}

// InsertTimeseries bulk-loads points against eventID into the raw or
// processed table. Values are rounded to 3 decimals. With upsert set,
// conflicting (id, time) keys overwrite the stored value; otherwise such
// conflicts fail the batch. After the insert the event's denormalized
// start_date/end_date window is recomputed from the raw table. The two
// statements share one connection but are not atomic for concurrent
// readers. Returns the number of rows the batch touched.
func (a *Adapter) InsertTimeseries(ctx context.Context, eventID string, points []Point, upsert bool, table DataTable) (int64, error) {
	if !table.valid() {
		return 0, newValidationErrorf("invalid data table %d", table)
	}

	conn, err := a.pool.Acquire(ctx)
	if err != nil {
		return 0, a.storeError(err, "insert timeseries (event_id: %s, upsert: %t, table: %s)", eventID, upsert, table)
	}
	defer conn.Release()

	sql := `INSERT INTO ` + table.String() + ` (id, "time", value) VALUES ($1, $2, $3)`
	if upsert {
		sql += ` ON CONFLICT (id, "time") DO UPDATE SET value = EXCLUDED.value`
	}

	batch := &pgx.Batch{}
	for _, p := range points {
		batch.Queue(sql, eventID, p.Time, roundValue(p.Value))
	}

	var inserted int64
	res := conn.SendBatch(ctx, batch)
	for range points {
		tag, err := res.Exec()
		if err != nil {
			res.Close()
			return 0, a.storeError(err, "insert timeseries (event_id: %s, upsert: %t, table: %s)", eventID, upsert, table)
		}
		inserted += tag.RowsAffected()
	}
	if err := res.Close(); err != nil {
		return 0, a.storeError(err, "insert timeseries (event_id: %s, upsert: %t, table: %s)", eventID, upsert, table)
	}

	// Keep the run window in sync even under partial or repeated
	// ingestion. The window always derives from the raw table.
	_, err = conn.Exec(ctx,
		`UPDATE run
		 SET start_date = (SELECT MIN("time") FROM data WHERE id = $1),
		     end_date = (SELECT MAX("time") FROM data WHERE id = $1)
		 WHERE id = $1`, eventID)
	if err != nil {
		return 0, a.storeError(err, "update run window (event_id: %s)", eventID)
	}

	return inserted, nil
}

// DeleteTimeseries removes the event row for eventID. The dependent
// points in both data tables are removed by the cascade on the foreign
// key, not deleted here.
func (a *Adapter) DeleteTimeseries(ctx context.Context, eventID string) (int64, error) {
	tag, err := a.pool.Exec(ctx, `DELETE FROM run WHERE id = $1`, eventID)
	if err != nil {
		return 0, a.storeError(err, "delete timeseries for event_id %s", eventID)
	}
	return tag.RowsAffected(), nil
}

// EventSeries pairs an event with its retrieved points.
type EventSeries struct {
	Event
	Points []Point `json:"timeseries"`
}

// RetrieveOptions narrows timeseries retrieval. From and To are both
// inclusive, unlike the aggregation window.
type RetrieveOptions struct {
	From  *time.Time
	To    *time.Time
	Table DataTable
}

// RetrieveTimeseries loads the point series for each given event id from
// the selected table, optionally narrowed to [From, To].
func (a *Adapter) RetrieveTimeseries(ctx context.Context, eventIDs []string, opts RetrieveOptions) ([]EventSeries, error) {
	if !opts.Table.valid() {
		return nil, newValidationErrorf("invalid data table %d", opts.Table)
	}

	conn, err := a.pool.Acquire(ctx)
	if err != nil {
		return nil, a.storeError(err, "retrieve timeseries for %d events", len(eventIDs))
	}
	defer conn.Release()

	sql := `SELECT "time", value FROM ` + opts.Table.String() + ` WHERE id = $1`
	args := []any{nil}
	if opts.From != nil {
		args = append(args, *opts.From)
		sql += ` AND "time" >= $` + strconv.Itoa(len(args))
	}
	if opts.To != nil {
		args = append(args, *opts.To)
		sql += ` AND "time" <= $` + strconv.Itoa(len(args))
	}
	sql += ` ORDER BY "time"`

	response := make([]EventSeries, 0, len(eventIDs))
	for _, id := range eventIDs {
		args[0] = id
		points, err := a.queryPoints(ctx, conn, sql, args)
		if err != nil {
			return nil, a.storeError(err, "retrieve timeseries for event_id %s", id)
		}
		response = append(response, EventSeries{Event: Event{ID: id}, Points: points})
	}
	return response, nil
}

// RetrieveTimeseriesByQuery resolves the metadata filter to events and
// loads each one's points.
func (a *Adapter) RetrieveTimeseriesByQuery(ctx context.Context, q EventQuery, qopts QueryOptions, opts RetrieveOptions) ([]EventSeries, error) {
	events, err := a.GetEventIDs(ctx, q, qopts)
	if err != nil {
		return nil, err
	}

	ids := make([]string, len(events))
	for i, e := range events {
		ids[i] = e.ID
	}

	series, err := a.RetrieveTimeseries(ctx, ids, opts)
	if err != nil {
		return nil, err
	}
	for i := range series {
		series[i].Event = events[i]
	}
	return series, nil
}

type pgxQuerier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func (a *Adapter) queryPoints(ctx context.Context, q pgxQuerier, sql string, args []any) ([]Point, error) {
	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	points := make([]Point, 0)
	for rows.Next() {
		var p Point
		if err := rows.Scan(&p.Time, &p.Value); err != nil {
			return nil, err
		}
		points = append(points, p)
	}
	return points, rows.Err()
}
