// Package visualization renders measurement series into PNG charts.
package visualization

import (
	"bytes"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"waterscope/pkg/contracts/domain"
)

// ErrNoMeasurements is returned when a plot is requested for an empty
// measurement set.
var ErrNoMeasurements = errors.New("no measurements provided for plotting")

// ErrNoPlottableData is returned when none of the plotted parameters has
// a recorded value in the measurement set.
var ErrNoPlottableData = errors.New("no plottable parameter data")

const (
	chartWidth  = 1400
	chartHeight = 600

	flagSeriesName = "ringed = beyond measuring range (< / >)"
)

var colorPurple = drawing.Color{R: 148, G: 103, B: 189, A: 255}

// scale is the fixed display range a parameter is drawn against.
type scale struct {
	min, max float64
}

// waterQualityParams defines the physicochemical chart: each parameter
// keeps its own fixed scale and is drawn normalized onto a shared
// percent-of-scale axis.
var waterQualityParams = []struct {
	name  string
	label string
	scale scale
	color drawing.Color
}{
	{domain.ParamWaterTemperature, "Water temperature [°C] (0–30)", scale{0, 30}, chart.ColorBlue},
	{domain.ParamPH, "pH (5–9)", scale{5, 9}, chart.ColorOrange},
	{domain.ParamDissolvedOxygen, "Dissolved oxygen [mg/L] (0–15)", scale{0, 15}, chart.ColorGreen},
	{domain.ParamConductivity, "Conductivity [µS/cm] (0–3500)", scale{0, 3500}, colorPurple},
}

// chemicalParams defines the chemical concentrations scatter chart; all
// parameters share one mg/L axis.
var chemicalParams = []struct {
	name  string
	label string
	color drawing.Color
}{
	{domain.ParamNitrates, "Nitrates [mg/L]", chart.ColorBlue},
	{domain.ParamNitrites, "Nitrites [mg/L]", chart.ColorOrange},
	{domain.ParamPhosphates, "Phosphates [mg/L]", chart.ColorGreen},
	{domain.ParamChlorides, "Chlorides [mg/L]", chart.ColorRed},
	{domain.ParamSulphates, "Sulphates [mg/L]", colorPurple},
}

// paramSeries is one parameter's values split into plain and flagged
// observations.
type paramSeries struct {
	times      []time.Time
	values     []float64
	flagTimes  []time.Time
	flagValues []float64
}

func (s paramSeries) empty() bool { return len(s.values) == 0 }

// extractSeries collects the recorded values of one parameter from a
// measurement set sorted by timestamp.
func extractSeries(measurements []domain.Measurement, param string) paramSeries {
	var s paramSeries
	for _, m := range measurements {
		v, ok := m.Parameter(param)
		if !ok {
			continue
		}
		s.times = append(s.times, m.Timestamp)
		s.values = append(s.values, v)
		if m.Flagged(param) {
			s.flagTimes = append(s.flagTimes, m.Timestamp)
			s.flagValues = append(s.flagValues, v)
		}
	}
	return s
}

// sortedByTime returns a copy of the measurements ordered by timestamp.
func sortedByTime(measurements []domain.Measurement) []domain.Measurement {
	sorted := make([]domain.Measurement, len(measurements))
	copy(sorted, measurements)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})
	return sorted
}

// padSingle widens a one-point series so the chart engine has a usable
// X range.
func padSingle(times []time.Time, values []float64) ([]time.Time, []float64) {
	if len(times) != 1 {
		return times, values
	}
	return []time.Time{times[0], times[0].Add(time.Minute)},
		[]float64{values[0], values[0]}
}

// RenderWaterQuality renders the physicochemical time-series chart:
// water temperature, pH, dissolved oxygen and conductivity, each
// normalized onto its fixed display range. Values carrying a range flag
// are overlaid with a black-ringed marker.
func RenderWaterQuality(measurements []domain.Measurement, title string) ([]byte, error) {
	if len(measurements) == 0 {
		return nil, ErrNoMeasurements
	}
	sorted := sortedByTime(measurements)

	var series []chart.Series
	flagLegendUsed := false

	for _, p := range waterQualityParams {
		s := extractSeries(sorted, p.name)
		if s.empty() {
			continue
		}

		span := p.scale.max - p.scale.min
		normalize := func(values []float64) []float64 {
			out := make([]float64, len(values))
			for i, v := range values {
				out[i] = (v - p.scale.min) / span * 100
			}
			return out
		}

		times, values := padSingle(s.times, normalize(s.values))
		series = append(series, chart.TimeSeries{
			Name:    p.label,
			XValues: times,
			YValues: values,
			Style: chart.Style{
				StrokeColor: p.color,
				StrokeWidth: 2.0,
				DotColor:    p.color,
				DotWidth:    3.0,
			},
		})

		if len(s.flagTimes) > 0 {
			series = append(series, flagOverlay(s.flagTimes, normalize(s.flagValues), p.color, &flagLegendUsed)...)
		}
	}

	if len(series) == 0 {
		return nil, ErrNoPlottableData
	}

	ch := chart.Chart{
		Title:  title,
		Width:  chartWidth,
		Height: chartHeight,
		Background: chart.Style{
			Padding: chart.Box{Top: 48, Left: 16, Right: 16, Bottom: 24},
		},
		XAxis: chart.XAxis{
			Name:           "Date",
			ValueFormatter: chart.TimeValueFormatterWithFormat("2006-01-02"),
		},
		YAxis: chart.YAxis{
			Name:  "% of parameter scale",
			Range: &chart.ContinuousRange{Min: 0, Max: 105},
			Ticks: percentTicks(),
		},
		Series: series,
	}
	ch.Elements = []chart.Renderable{chart.Legend(&ch)}

	return renderPNG(ch)
}

// RenderChemical renders the chemical concentrations scatter chart:
// nitrates, nitrites, phosphates, chlorides and sulphates on a shared
// mg/L axis. Only parameters with data are drawn.
func RenderChemical(measurements []domain.Measurement, title string) ([]byte, error) {
	if len(measurements) == 0 {
		return nil, ErrNoMeasurements
	}
	sorted := sortedByTime(measurements)

	var series []chart.Series
	flagLegendUsed := false

	for _, p := range chemicalParams {
		s := extractSeries(sorted, p.name)
		if s.empty() {
			continue
		}

		times, values := padSingle(s.times, s.values)
		series = append(series, chart.TimeSeries{
			Name:    p.label,
			XValues: times,
			YValues: values,
			Style: chart.Style{
				StrokeWidth: chart.Disabled,
				DotColor:    p.color,
				DotWidth:    5.0,
			},
		})

		if len(s.flagTimes) > 0 {
			series = append(series, flagOverlay(s.flagTimes, s.flagValues, p.color, &flagLegendUsed)...)
		}
	}

	if len(series) == 0 {
		return nil, ErrNoPlottableData
	}

	ch := chart.Chart{
		Title:  title,
		Width:  chartWidth,
		Height: chartHeight,
		Background: chart.Style{
			Padding: chart.Box{Top: 48, Left: 16, Right: 16, Bottom: 24},
		},
		XAxis: chart.XAxis{
			Name:           "Date",
			ValueFormatter: chart.TimeValueFormatterWithFormat("2006-01-02"),
		},
		YAxis: chart.YAxis{
			Name: "Concentration [mg/L]",
		},
		Series: series,
	}
	ch.Elements = []chart.Renderable{chart.Legend(&ch)}

	return renderPNG(ch)
}

// flagOverlay draws flagged observations as a black ring under a colored
// dot. The ring series carries the legend note the first time it is used.
func flagOverlay(times []time.Time, values []float64, color drawing.Color, legendUsed *bool) []chart.Series {
	times, values = padSingle(times, values)

	ringName := ""
	if !*legendUsed {
		ringName = flagSeriesName
		*legendUsed = true
	}

	ring := chart.TimeSeries{
		Name:    ringName,
		XValues: times,
		YValues: values,
		Style: chart.Style{
			StrokeWidth: chart.Disabled,
			DotColor:    chart.ColorBlack,
			DotWidth:    8.0,
		},
	}
	dot := chart.TimeSeries{
		XValues: times,
		YValues: values,
		Style: chart.Style{
			StrokeWidth: chart.Disabled,
			DotColor:    color,
			DotWidth:    5.0,
		},
	}
	return []chart.Series{ring, dot}
}

func percentTicks() []chart.Tick {
	return []chart.Tick{
		{Value: 0, Label: "0"},
		{Value: 25, Label: "25"},
		{Value: 50, Label: "50"},
		{Value: 75, Label: "75"},
		{Value: 100, Label: "100"},
	}
}

func renderPNG(ch chart.Chart) ([]byte, error) {
	var buf bytes.Buffer
	if err := ch.Render(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("failed to render chart: %w", err)
	}
	return buf.Bytes(), nil
}
