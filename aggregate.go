package hydrodb

import (
	"context"
	"fmt"
	"time"
)

// GroupOperation is one of the six pre-built aggregations: a fixed bucket
// width crossed with the value operation applied inside each bucket.
type GroupOperation int

const (
	OneMinuteSum GroupOperation = iota + 1
	OneMinuteMax
	OneMinuteAvg
	FiveMinuteSum
	FiveMinuteMax
	FiveMinuteAvg
)

var groupOperationNames = map[GroupOperation]string{
	OneMinuteSum:  "1min_sum",
	OneMinuteMax:  "1min_max",
	OneMinuteAvg:  "1min_avg",
	FiveMinuteSum: "5min_sum",
	FiveMinuteMax: "5min_max",
	FiveMinuteAvg: "5min_avg",
}

// ParseGroupOperation maps the wire names ("5min_sum", "1min_avg", ...).
func ParseGroupOperation(s string) (GroupOperation, error) {
	for op, name := range groupOperationNames {
		if name == s {
			return op, nil
		}
	}
	return 0, newValidationErrorf("invalid group operation %q", s)
}

func (op GroupOperation) String() string {
	if name, ok := groupOperationNames[op]; ok {
		return name
	}
	return "unknown"
}

// bucketSeconds is the bucket width; aggregate is the SQL function applied
// to value within a bucket. Both come from the closed enum, never from
// caller input.
func (op GroupOperation) bucketSeconds() (int, bool) {
	switch op {
	case OneMinuteSum, OneMinuteMax, OneMinuteAvg:
		return 60, true
	case FiveMinuteSum, FiveMinuteMax, FiveMinuteAvg:
		return 300, true
	}
	return 0, false
}

func (op GroupOperation) aggregate() (string, bool) {
	switch op {
	case OneMinuteSum, FiveMinuteSum:
		return "SUM", true
	case OneMinuteMax, FiveMinuteMax:
		return "MAX", true
	case OneMinuteAvg, FiveMinuteAvg:
		return "AVG", true
	}
	return "", false
}

// The two interval variants report bucket timestamps differently: the
// 5-minute query truncates the bucket's max timestamp down to the 300 s
// boundary, while the 1-minute query reports the max raw timestamp at
// second precision. The asymmetry is inherited behavior that downstream
// consumers depend on.
const (
	// The aggregate verb comes from the closed enum, never from caller
	// input; the remaining values are bound parameters.
	fiveMinuteSeriesSQL = `SELECT to_timestamp(floor(extract(epoch FROM MAX("time")) / 300) * 300) AT TIME ZONE 'UTC' AS datetime, ` +
		`%s(value) AS value ` +
		`FROM data WHERE id = $1 AND "time" <= $2 AND "time" > $3 ` +
		`GROUP BY floor(extract(epoch FROM "time") / 300) ORDER BY datetime`

	oneMinuteSeriesSQL = `SELECT date_trunc('second', MAX("time")) AS datetime, ` +
		`%s(value) AS value ` +
		`FROM data WHERE id = $1 AND "time" <= $2 AND "time" > $3 ` +
		`GROUP BY floor(extract(epoch FROM "time") / 60) ORDER BY datetime`
)

// buildGroupedQuery returns the bucketing query for op, or a
// ValidationError for an unknown variant.
func buildGroupedQuery(op GroupOperation) (string, error) {
	agg, ok := op.aggregate()
	if !ok {
		return "", newValidationErrorf("invalid group operation %d", op)
	}
	width, _ := op.bucketSeconds()

	base := oneMinuteSeriesSQL
	if width == 300 {
		base = fiveMinuteSeriesSQL
	}
	return fmt.Sprintf(base, agg), nil
}

// ExtractGroupedTimeseries returns the bucketed aggregation of the raw
// series of eventID between startDate (exclusive) and endDate
// (inclusive), both in CommonTimeLayout. Buckets holding no points are
// omitted; an empty range yields an empty slice.
func (a *Adapter) ExtractGroupedTimeseries(ctx context.Context, eventID, startDate, endDate string, op GroupOperation) ([]Point, error) {
	sql, err := buildGroupedQuery(op)
	if err != nil {
		return nil, err
	}
	if _, err := time.Parse(CommonTimeLayout, startDate); err != nil {
		return nil, newValidationErrorf("start_date %q is not in the %q format", startDate, CommonTimeLayout)
	}
	if _, err := time.Parse(CommonTimeLayout, endDate); err != nil {
		return nil, newValidationErrorf("end_date %q is not in the %q format", endDate, CommonTimeLayout)
	}

	a.logger.Debug("grouped timeseries query", "sql", sql, "event_id", eventID, "op", op.String())
	points, err := a.queryPoints(ctx, a.pool, sql, []any{eventID, endDate, startDate})
	if err != nil {
		return nil, a.storeError(err, "extract grouped timeseries (%s, %s, %s, %s)", eventID, startDate, endDate, op)
	}
	return points, nil
}
