package provider

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"waterscope/pkg/contracts/domain"
)

func TestParseNumericValue(t *testing.T) {
	tests := []struct {
		name  string
		raw   string
		value float64
		flag  domain.Flag
		ok    bool
	}{
		{name: "plain float", raw: "3.14", value: 3.14, ok: true},
		{name: "integer", raw: "42", value: 42, ok: true},
		{name: "comma decimal separator", raw: "12,5", value: 12.5, ok: true},
		{name: "below range flag", raw: "<0.05", value: 0.05, flag: domain.FlagBelowRange, ok: true},
		{name: "above range flag", raw: ">100", value: 100, flag: domain.FlagAboveRange, ok: true},
		{name: "flag with space", raw: "< 0,02", value: 0.02, flag: domain.FlagBelowRange, ok: true},
		{name: "surrounding whitespace", raw: "  7.8  ", value: 7.8, ok: true},
		{name: "empty", raw: "", ok: false},
		{name: "whitespace only", raw: "   ", ok: false},
		{name: "garbage", raw: "n/a", ok: false},
		{name: "bare flag", raw: "<", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			value, flag, ok := ParseNumericValue(tt.raw)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.InDelta(t, tt.value, value, 1e-9)
				assert.Equal(t, tt.flag, flag)
			}
		})
	}
}

func TestParseCoordinates(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		lat, lon float64
		ok       bool
	}{
		{name: "dot separated", raw: "52.1234 21.0123", lat: 52.1234, lon: 21.0123, ok: true},
		{name: "comma decimals", raw: "52,1234 21,0123", lat: 52.1234, lon: 21.0123, ok: true},
		{name: "semicolon separator", raw: "52,1234;21,0123", lat: 52.1234, lon: 21.0123, ok: true},
		{name: "empty", raw: "", ok: false},
		{name: "single value", raw: "52.1234", ok: false},
		{name: "three values", raw: "52 21 3", ok: false},
		{name: "non numeric", raw: "lat lon", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lat, lon, ok := ParseCoordinates(tt.raw)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.InDelta(t, tt.lat, lat, 1e-9)
				assert.InDelta(t, tt.lon, lon, 1e-9)
			}
		})
	}
}

func TestParseDate(t *testing.T) {
	d, ok := parseDate("2024-03-17")
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, 3, 17, 0, 0, 0, 0, time.UTC), d)

	d, ok = parseDate("17.03.2024")
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, 3, 17, 0, 0, 0, 0, time.UTC), d)

	// Serial date: 45368 is 2024-03-17 in the 1900 date system.
	d, ok = parseDate("45368")
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, 3, 17, 0, 0, 0, 0, time.UTC), d)

	_, ok = parseDate("")
	assert.False(t, ok)
	_, ok = parseDate("not a date")
	assert.False(t, ok)
}

func TestParseClock(t *testing.T) {
	c, ok := parseClock("10:30")
	require.True(t, ok)
	assert.Equal(t, 10*time.Hour+30*time.Minute, c)

	// Day fraction: 0.5 is noon.
	c, ok = parseClock("0.5")
	require.True(t, ok)
	assert.Equal(t, 12*time.Hour, c)

	c, ok = parseClock("0,25")
	require.True(t, ok)
	assert.Equal(t, 6*time.Hour, c)

	_, ok = parseClock("")
	assert.False(t, ok)
	_, ok = parseClock("25:99")
	assert.False(t, ok)
}
