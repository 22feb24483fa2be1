package provider

import (
	"math"
	"strconv"
	"strings"
	"time"

	"waterscope/pkg/contracts/domain"
)

// excelEpoch is day zero of the 1900 date system used by spreadsheet
// serial dates and day-fraction times.
var excelEpoch = time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)

// dateLayouts are the textual date formats seen in field sheets.
var dateLayouts = []string{
	"2006-01-02",
	"02.01.2006",
	"02/01/2006",
	"2006-01-02 15:04:05",
	"01-02-06",
	"2.1.2006",
}

// clockLayouts are the textual time-of-day formats seen in field sheets.
var clockLayouts = []string{
	"15:04",
	"15:04:05",
	"3:04 PM",
}

// ParseNumericValue parses a raw cell value into a float and an optional
// range flag. Supported forms: "1.23", "12,5" (comma decimal separator),
// "<0.05", ">100". Empty or unparseable cells yield ok=false.
func ParseNumericValue(raw string) (value float64, flag domain.Flag, ok bool) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return 0, "", false
	}

	switch {
	case strings.HasPrefix(text, "<"):
		flag = domain.FlagBelowRange
		text = strings.TrimSpace(text[1:])
	case strings.HasPrefix(text, ">"):
		flag = domain.FlagAboveRange
		text = strings.TrimSpace(text[1:])
	}

	text = strings.ReplaceAll(text, ",", ".")
	v, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return 0, "", false
	}
	return v, flag, true
}

// ParseCoordinates parses geographic coordinates from a free-text cell.
// Supported forms: "52.1234 21.0123", "52,1234 21,0123", "52,1234;21,0123".
func ParseCoordinates(raw string) (lat, lon float64, ok bool) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return 0, 0, false
	}

	text = strings.ReplaceAll(text, ",", ".")
	text = strings.ReplaceAll(text, ";", " ")

	parts := strings.Fields(text)
	if len(parts) != 2 {
		return 0, 0, false
	}

	lat, err := strconv.ParseFloat(parts[0], 64)
	if err != nil {
		return 0, 0, false
	}
	lon, err = strconv.ParseFloat(parts[1], 64)
	if err != nil {
		return 0, 0, false
	}
	return lat, lon, true
}

// parseDate parses a sampling date cell. Accepts textual layouts and
// spreadsheet serial numbers.
func parseDate(raw string) (time.Time, bool) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return time.Time{}, false
	}

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, text); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), true
		}
	}

	// Serial date: whole days since the 1900 epoch.
	if serial, err := strconv.ParseFloat(strings.ReplaceAll(text, ",", "."), 64); err == nil && serial > 0 {
		t := excelEpoch.Add(time.Duration(serial * 24 * float64(time.Hour)))
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), true
	}

	return time.Time{}, false
}

// parseClock parses a time-of-day cell into a duration past midnight.
// Accepts "15:04" style text and day-fraction serials (0.5 == noon).
func parseClock(raw string) (time.Duration, bool) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return 0, false
	}

	for _, layout := range clockLayouts {
		if t, err := time.Parse(layout, text); err == nil {
			return time.Duration(t.Hour())*time.Hour +
				time.Duration(t.Minute())*time.Minute +
				time.Duration(t.Second())*time.Second, true
		}
	}

	if frac, err := strconv.ParseFloat(strings.ReplaceAll(text, ",", "."), 64); err == nil && frac >= 0 && frac < 1 {
		seconds := math.Round(frac * 24 * 3600)
		return time.Duration(seconds) * time.Second, true
	}

	return 0, false
}
