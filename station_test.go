package hydrodb

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStationCategoryBlocks(t *testing.T) {
	cases := []struct {
		name  string
		base  int
		width int
	}{
		{"curw", 100000, 100000},
		{"megapolis", 200000, 100000},
		{"government", 300000, 100000},
		{"public", 400000, 400000},
		{"satellite", 800000, 200000},
		{"wrf", 1100000, 100000},
		{"flo2d", 1200000, 100000},
		{"mike", 1300000, 100000},
	}
	for _, tc := range cases {
		category, err := ParseStationCategory(tc.name)
		require.NoError(t, err)
		assert.Equal(t, tc.name, category.String())
		assert.Equal(t, tc.base, category.Base())
		assert.Equal(t, tc.width, category.Range())
	}
}

func TestStationCategoryBlocksDoNotOverlap(t *testing.T) {
	type block struct{ lo, hi int }
	var blocks []block
	for c := range stationCategories {
		blocks = append(blocks, block{c.Base(), c.Base() + c.Range()})
	}
	for i, a := range blocks {
		for j, b := range blocks {
			if i == j {
				continue
			}
			assert.True(t, a.hi <= b.lo || b.hi <= a.lo,
				"blocks [%d,%d) and [%d,%d) overlap", a.lo, a.hi, b.lo, b.hi)
		}
	}
}

func TestParseStationCategoryUnknown(t *testing.T) {
	_, err := ParseStationCategory("radar")
	var ve *ValidationError
	assert.ErrorAs(t, err, &ve)

	assert.Equal(t, "unknown", StationCategory(99).String())
}

func TestStationQueryFilter(t *testing.T) {
	where, args := StationQuery{}.filter()
	assert.Empty(t, where)
	assert.Empty(t, args)

	where, args = StationQuery{ID: 100001}.filter()
	assert.Equal(t, " WHERE id = $1", where)
	assert.Equal(t, []any{100001}, args)

	where, args = StationQuery{StationID: "curw_hanwella", Name: "Hanwella"}.filter()
	assert.Equal(t, ` WHERE "stationId" = $1 AND name = $2`, where)
	assert.Equal(t, []any{"curw_hanwella", "Hanwella"}, args)
}

func TestDeleteStationRequiresIdentifier(t *testing.T) {
	a := &Adapter{}
	_, err := a.DeleteStation(context.Background(), 0, "")
	var ve *ValidationError
	assert.ErrorAs(t, err, &ve)
}
