package domain

import "time"

// Flag marks a value that fell outside the measuring range of the
// instrument or test strip used in the field.
type Flag string

const (
	// FlagBelowRange marks values reported as "<x" (below detection limit).
	FlagBelowRange Flag = "<"
	// FlagAboveRange marks values reported as ">x" (above measuring range).
	FlagAboveRange Flag = ">"
)

// Valid reports whether the flag is one of the recognized range markers.
func (f Flag) Valid() bool {
	return f == FlagBelowRange || f == FlagAboveRange
}

// MeasurementPoint represents a fixed sampling location on a watercourse.
// Metadata carries descriptive context such as the river name, JCWP code,
// catchment authority and coordinates.
type MeasurementPoint struct {
	ID       string         `json:"id" validate:"required"`
	Name     string         `json:"name" validate:"required"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Measurement is a single physicochemical sampling event at a point.
// Parameters holds the numeric readings keyed by canonical parameter name;
// a parameter that was not measured is simply absent from the map. Flags
// carries range markers for readings outside the measuring range, and
// Units the unit string for each recorded parameter.
type Measurement struct {
	PointID    string             `json:"point_id" validate:"required"`
	Timestamp  time.Time          `json:"timestamp" validate:"required"`
	Parameters map[string]float64 `json:"parameters,omitempty"`
	Flags      map[string]Flag    `json:"flags,omitempty"`
	Units      map[string]string  `json:"units,omitempty"`
	Metadata   map[string]any     `json:"metadata,omitempty"`
}

// Parameter returns the reading for the named parameter and whether it
// was recorded in this measurement.
func (m Measurement) Parameter(name string) (float64, bool) {
	v, ok := m.Parameters[name]
	return v, ok
}

// Flagged reports whether the named parameter carries a range flag.
func (m Measurement) Flagged(name string) bool {
	f, ok := m.Flags[name]
	return ok && f.Valid()
}
