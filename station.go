package hydrodb

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
)

// StationCategory is the closed set of station owners/models. Each
// category owns a reserved block of integer ids; auto-assignment never
// crosses into another category's block.
type StationCategory int

const (
	CategoryCUrW StationCategory = iota + 1
	CategoryMegapolis
	CategoryGovernment
	CategoryPublic
	CategorySatellite
	CategoryWRF
	CategoryFLO2D
	CategoryMIKE
)

var stationCategories = map[StationCategory]struct {
	name  string
	base  int
	width int
}{
	CategoryCUrW:       {"curw", 100000, 100000},
	CategoryMegapolis:  {"megapolis", 200000, 100000},
	CategoryGovernment: {"government", 300000, 100000},
	CategoryPublic:     {"public", 400000, 400000},
	CategorySatellite:  {"satellite", 800000, 200000},
	CategoryWRF:        {"wrf", 1100000, 100000},
	CategoryFLO2D:      {"flo2d", 1200000, 100000},
	CategoryMIKE:       {"mike", 1300000, 100000},
}

// ParseStationCategory maps the wire name of a category.
func ParseStationCategory(s string) (StationCategory, error) {
	for c, info := range stationCategories {
		if info.name == s {
			return c, nil
		}
	}
	return 0, newValidationErrorf("invalid station category %q", s)
}

func (c StationCategory) String() string {
	if info, ok := stationCategories[c]; ok {
		return info.name
	}
	return "unknown"
}

// Base is the first id of the category's reserved block.
func (c StationCategory) Base() int { return stationCategories[c].base }

// Range is the width of the category's reserved block.
func (c StationCategory) Range() int { return stationCategories[c].width }

func (c StationCategory) valid() bool {
	_, ok := stationCategories[c]
	return ok
}

// Station is a reference-table row describing a measuring location.
type Station struct {
	// ID is the surrogate key. Leave zero to auto-assign from Category's
	// reserved block.
	ID int `json:"id"`
	// Category is only consulted when ID is zero.
	Category    StationCategory `json:"category,omitempty"`
	StationID   string          `json:"stationId"`
	Name        string          `json:"name"`
	Latitude    float64         `json:"latitude"`
	Longitude   float64         `json:"longitude"`
	Resolution  float64         `json:"resolution"`
	Description string          `json:"description"`
}

// CreateStation inserts a station row. With a zero ID the assigned id is
// the maximum existing id within the category's block plus one, or the
// block base when the block is empty. Returns the id the row was created
// with.
func (a *Adapter) CreateStation(ctx context.Context, s Station) (int, error) {
	conn, err := a.pool.Acquire(ctx)
	if err != nil {
		return 0, a.storeError(err, "create station %s", s.StationID)
	}
	defer conn.Release()

	if s.ID == 0 {
		if !s.Category.valid() {
			return 0, newValidationErrorf("station category is required to auto-assign an id")
		}
		var lastID *int
		err := conn.QueryRow(ctx,
			`SELECT MAX(id) FROM station WHERE $1 <= id AND id < $2`,
			s.Category.Base(), s.Category.Base()+s.Category.Range()).Scan(&lastID)
		if err != nil {
			return 0, a.storeError(err, "allocate station id in category %s", s.Category)
		}
		if lastID != nil {
			s.ID = *lastID + 1
		} else {
			s.ID = s.Category.Base()
		}
	}

	a.logger.Debug("create station", "id", s.ID, "station_id", s.StationID)
	_, err = conn.Exec(ctx,
		`INSERT INTO station (id, "stationId", name, latitude, longitude, resolution, description)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		s.ID, s.StationID, s.Name, s.Latitude, s.Longitude, s.Resolution, s.Description)
	if err != nil {
		return 0, a.storeError(err, "create station %+v", s)
	}
	return s.ID, nil
}

// StationQuery finds a station by any combination of surrogate id,
// external station code and display name.
type StationQuery struct {
	ID        int
	StationID string
	Name      string
}

func (q StationQuery) filter() (string, []any) {
	var clauses []string
	var args []any
	if q.ID > 0 {
		args = append(args, q.ID)
		clauses = append(clauses, "id = $"+strconv.Itoa(len(args)))
	}
	if q.StationID != "" {
		args = append(args, q.StationID)
		clauses = append(clauses, `"stationId" = $`+strconv.Itoa(len(args)))
	}
	if q.Name != "" {
		args = append(args, q.Name)
		clauses = append(clauses, "name = $"+strconv.Itoa(len(args)))
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

// GetStation returns the first station matching q, or nil when none does.
func (a *Adapter) GetStation(ctx context.Context, q StationQuery) (*Station, error) {
	where, args := q.filter()
	sql := `SELECT id, "stationId", name, latitude, longitude, resolution, description FROM station` +
		where + ` LIMIT 1`

	var s Station
	err := a.pool.QueryRow(ctx, sql, args...).Scan(
		&s.ID, &s.StationID, &s.Name, &s.Latitude, &s.Longitude, &s.Resolution, &s.Description)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, a.storeError(err, "get station for query %+v", q)
	}
	return &s, nil
}

// DeleteStation removes a station by surrogate id or external station
// code, whichever is set (id wins). Returns the affected row count.
func (a *Adapter) DeleteStation(ctx context.Context, id int, stationID string) (int64, error) {
	var sql string
	var arg any
	switch {
	case id > 0:
		sql, arg = `DELETE FROM station WHERE id = $1`, id
	case stationID != "":
		sql, arg = `DELETE FROM station WHERE "stationId" = $1`, stationID
	default:
		return 0, newValidationErrorf("station id or stationId is required")
	}

	tag, err := a.pool.Exec(ctx, sql, arg)
	if err != nil {
		return 0, a.storeError(err, "delete station (id: %d, stationId: %s)", id, stationID)
	}
	return tag.RowsAffected(), nil
}
