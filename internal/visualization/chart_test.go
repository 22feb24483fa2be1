package visualization

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"waterscope/pkg/contracts/domain"
)

var pngMagic = []byte{0x89, 'P', 'N', 'G'}

func sampleMeasurements() []domain.Measurement {
	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	return []domain.Measurement{
		{
			PointID:   "P001",
			Timestamp: base.AddDate(0, 1, 0), // out of order on purpose
			Parameters: map[string]float64{
				domain.ParamWaterTemperature: 16.5,
				domain.ParamPH:               7.9,
				domain.ParamDissolvedOxygen:  8.2,
				domain.ParamConductivity:     540,
				domain.ParamNitrates:         2.5,
				domain.ParamChlorides:        30,
			},
		},
		{
			PointID:   "P001",
			Timestamp: base,
			Parameters: map[string]float64{
				domain.ParamWaterTemperature: 12.0,
				domain.ParamPH:               7.4,
				domain.ParamNitrates:         0.5,
				domain.ParamNitrites:         0.05,
			},
			Flags: map[string]domain.Flag{
				domain.ParamNitrates: domain.FlagBelowRange,
				domain.ParamNitrites: domain.FlagBelowRange,
			},
		},
	}
}

func TestRenderWaterQuality(t *testing.T) {
	png, err := RenderWaterQuality(sampleMeasurements(), "Physicochemical parameters — P001")
	require.NoError(t, err)
	require.NotEmpty(t, png)
	assert.Equal(t, pngMagic, png[:4])
}

func TestRenderChemical(t *testing.T) {
	png, err := RenderChemical(sampleMeasurements(), "Chemical concentrations — P001")
	require.NoError(t, err)
	require.NotEmpty(t, png)
	assert.Equal(t, pngMagic, png[:4])
}

func TestRenderEmptyInput(t *testing.T) {
	_, err := RenderWaterQuality(nil, "t")
	assert.ErrorIs(t, err, ErrNoMeasurements)

	_, err = RenderChemical([]domain.Measurement{}, "t")
	assert.ErrorIs(t, err, ErrNoMeasurements)
}

func TestRenderNoPlottableData(t *testing.T) {
	// Transparency is not drawn on either chart.
	ms := []domain.Measurement{{
		PointID:    "P001",
		Timestamp:  time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		Parameters: map[string]float64{domain.ParamTransparency: 35},
	}}

	_, err := RenderWaterQuality(ms, "t")
	assert.ErrorIs(t, err, ErrNoPlottableData)

	_, err = RenderChemical(ms, "t")
	assert.ErrorIs(t, err, ErrNoPlottableData)
}

func TestRenderSingleMeasurement(t *testing.T) {
	ms := []domain.Measurement{{
		PointID:   "P001",
		Timestamp: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		Parameters: map[string]float64{
			domain.ParamWaterTemperature: 10,
			domain.ParamNitrates:         1.2,
		},
	}}

	png, err := RenderWaterQuality(ms, "single sample")
	require.NoError(t, err)
	assert.Equal(t, pngMagic, png[:4])

	png, err = RenderChemical(ms, "single sample")
	require.NoError(t, err)
	assert.Equal(t, pngMagic, png[:4])
}

func TestExtractSeries(t *testing.T) {
	sorted := sortedByTime(sampleMeasurements())

	s := extractSeries(sorted, domain.ParamNitrates)
	require.Len(t, s.values, 2)
	assert.Equal(t, []float64{0.5, 2.5}, s.values)
	require.Len(t, s.flagValues, 1)
	assert.Equal(t, 0.5, s.flagValues[0])

	s = extractSeries(sorted, domain.ParamSulphates)
	assert.True(t, s.empty())
}
