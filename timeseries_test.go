package hydrodb

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDataTable(t *testing.T) {
	table, err := ParseDataTable("data")
	require.NoError(t, err)
	assert.Equal(t, RawData, table)

	table, err = ParseDataTable("processed_data")
	require.NoError(t, err)
	assert.Equal(t, ProcessedData, table)

	_, err = ParseDataTable("run; DROP TABLE run")
	var ve *ValidationError
	assert.ErrorAs(t, err, &ve)
}

func TestRoundValue(t *testing.T) {
	cases := []struct {
		in   float64
		want float64
	}{
		{1.0834, 1.083},
		{1.08361, 1.084},
		{-2.7184, -2.718},
		{0.125, 0.125},
		{3, 3},
		{0, 0},
	}
	for _, tc := range cases {
		assert.InDelta(t, tc.want, roundValue(tc.in), 1e-9, "roundValue(%v)", tc.in)
	}
}

func TestRoundValueHalfToEven(t *testing.T) {
	// Exactly representable half cases round to the even neighbor.
	assert.InDelta(t, 0.062, roundValue(0.0625), 1e-9)
	assert.InDelta(t, 0.188, roundValue(0.1875), 1e-9)
}

func TestPointsFromRecords(t *testing.T) {
	records := [][]string{
		{"2017-05-01 00:00:00", "0.5"},
		{"2017-05-01 00:01:00", "1.25", "ignored extra"},
		{"2017-05-01 00:02:00"},            // too short
		{"not a timestamp", "2.0"},         // bad timestamp
		{"2017-05-01 00:03:00", "not-num"}, // bad value
		{"2017-05-01 00:04:00", "3.75"},
	}

	points := PointsFromRecords(records)
	require.Len(t, points, 3)

	assert.Equal(t, time.Date(2017, 5, 1, 0, 0, 0, 0, time.UTC), points[0].Time)
	assert.Equal(t, 0.5, points[0].Value)
	assert.Equal(t, 1.25, points[1].Value)
	assert.Equal(t, 3.75, points[2].Value)
}

func TestPointsFromRecordsEmpty(t *testing.T) {
	assert.Empty(t, PointsFromRecords(nil))
	assert.Empty(t, PointsFromRecords([][]string{}))
}

func TestInsertTimeseriesRejectsUnknownTable(t *testing.T) {
	a := &Adapter{}
	_, err := a.InsertTimeseries(context.Background(), "abc", nil, false, DataTable(7))
	var ve *ValidationError
	assert.ErrorAs(t, err, &ve)
}
