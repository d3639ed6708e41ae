package hydrodb

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"unicode/utf16"
)

// CommonTimeLayout is the timestamp format used across the public API for
// point timestamps and aggregation boundaries.
const CommonTimeLayout = "2006-01-02 15:04:05"

// Metadata identifies one logical timeseries run. All six fields are
// required; together they determine the event identifier. Start/end dates
// are derived from the ingested points and never participate in hashing.
type Metadata struct {
	Station  string `json:"station"`
	Variable string `json:"variable"`
	Unit     string `json:"unit"`
	Type     string `json:"type"`
	Source   string `json:"source"`
	Name     string `json:"name"`
}

// Validate reports a ValidationError for the first empty field.
func (m Metadata) Validate() error {
	for _, f := range []struct {
		name, value string
	}{
		{"station", m.Station},
		{"variable", m.Variable},
		{"unit", m.Unit},
		{"type", m.Type},
		{"source", m.Source},
		{"name", m.Name},
	} {
		if f.value == "" {
			return newValidationErrorf("metadata field %s is required", f.name)
		}
	}
	return nil
}

// canonical returns the serialization that is hashed: a JSON object with
// the six keys in lexicographic order and ASCII-escaped values. The
// separators (", " and ": ") are part of the stored-identifier contract
// and must not change.
func (m Metadata) canonical() string {
	pairs := []struct {
		key, value string
	}{
		{"name", m.Name},
		{"source", m.Source},
		{"station", m.Station},
		{"type", m.Type},
		{"unit", m.Unit},
		{"variable", m.Variable},
	}

	var b strings.Builder
	b.WriteByte('{')
	for i, p := range pairs {
		if i > 0 {
			b.WriteString(", ")
		}
		writeASCIIString(&b, p.key)
		b.WriteString(": ")
		writeASCIIString(&b, p.value)
	}
	b.WriteByte('}')
	return b.String()
}

// writeASCIIString writes s as a JSON string literal with every non-ASCII
// rune escaped to \uXXXX (surrogate pairs above the BMP), so the digest is
// stable across encoders.
func writeASCIIString(b *strings.Builder, s string) {
	const hexdigits = "0123456789abcdef"

	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		case '\b':
			b.WriteString(`\b`)
		case '\f':
			b.WriteString(`\f`)
		default:
			switch {
			case r < 0x20 || r > 0x7e:
				if r > 0xffff {
					hi, lo := utf16.EncodeRune(r)
					writeUnicodeEscape(b, hi, hexdigits)
					writeUnicodeEscape(b, lo, hexdigits)
				} else {
					writeUnicodeEscape(b, r, hexdigits)
				}
			default:
				b.WriteRune(r)
			}
		}
	}
	b.WriteByte('"')
}

func writeUnicodeEscape(b *strings.Builder, r rune, hexdigits string) {
	b.WriteString(`\u`)
	b.WriteByte(hexdigits[r>>12&0xf])
	b.WriteByte(hexdigits[r>>8&0xf])
	b.WriteByte(hexdigits[r>>4&0xf])
	b.WriteByte(hexdigits[r&0xf])
}

// EventID computes the content hash identifying the event described by
// meta: the SHA-256 of the canonical serialization, as 64 lowercase hex
// characters. Identical metadata always yields the identical id.
func EventID(meta Metadata) (string, error) {
	if err := meta.Validate(); err != nil {
		return "", err
	}
	sum := sha256.Sum256([]byte(meta.canonical()))
	return hex.EncodeToString(sum[:]), nil
}
