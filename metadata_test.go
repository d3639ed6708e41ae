package hydrodb

import (
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleMetadata() Metadata {
	return Metadata{
		Station:  "Hanwella",
		Variable: "Precipitation",
		Unit:     "mm",
		Type:     "Forecast-0-d",
		Source:   "WRFv3",
		Name:     "Daily Forecast",
	}
}

func TestMetadataCanonicalForm(t *testing.T) {
	canonical := sampleMetadata().canonical()
	assert.Equal(t,
		`{"name": "Daily Forecast", "source": "WRFv3", "station": "Hanwella", `+
			`"type": "Forecast-0-d", "unit": "mm", "variable": "Precipitation"}`,
		canonical)
}

func TestEventIDMatchesCanonicalDigest(t *testing.T) {
	meta := sampleMetadata()

	id, err := EventID(meta)
	require.NoError(t, err)

	sum := sha256.Sum256([]byte(meta.canonical()))
	assert.Equal(t, hex.EncodeToString(sum[:]), id)
	assert.Len(t, id, 64)
}

func TestEventIDDeterministic(t *testing.T) {
	first, err := EventID(sampleMetadata())
	require.NoError(t, err)
	second, err := EventID(sampleMetadata())
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestEventIDSensitiveToEveryField(t *testing.T) {
	base, err := EventID(sampleMetadata())
	require.NoError(t, err)

	variants := []func(*Metadata){
		func(m *Metadata) { m.Station = "Colombo" },
		func(m *Metadata) { m.Variable = "Discharge" },
		func(m *Metadata) { m.Unit = "m3/s" },
		func(m *Metadata) { m.Type = "Observed" },
		func(m *Metadata) { m.Source = "HEC-HMS" },
		func(m *Metadata) { m.Name = "Hourly Forecast" },
	}
	for _, mutate := range variants {
		meta := sampleMetadata()
		mutate(&meta)
		id, err := EventID(meta)
		require.NoError(t, err)
		assert.NotEqual(t, base, id)
	}
}

func TestEventIDRejectsMissingFields(t *testing.T) {
	for _, mutate := range []func(*Metadata){
		func(m *Metadata) { m.Station = "" },
		func(m *Metadata) { m.Variable = "" },
		func(m *Metadata) { m.Unit = "" },
		func(m *Metadata) { m.Type = "" },
		func(m *Metadata) { m.Source = "" },
		func(m *Metadata) { m.Name = "" },
	} {
		meta := sampleMetadata()
		mutate(&meta)

		_, err := EventID(meta)
		var ve *ValidationError
		assert.ErrorAs(t, err, &ve)
	}
}

func TestCanonicalEscapesNonASCII(t *testing.T) {
	meta := sampleMetadata()
	meta.Station = "\u0d9a"
	assert.Contains(t, meta.canonical(), `"\u0d9a"`)
	assert.NotContains(t, meta.canonical(), "\u0d9a")

	meta.Station = "a\"b\\c\nd"
	assert.Contains(t, meta.canonical(), `"a\"b\\c\nd"`)

	// Runes above the BMP are escaped as a surrogate pair.
	meta.Station = "\U0001f327"
	assert.Contains(t, meta.canonical(), `"\ud83c\udf27"`)
}
