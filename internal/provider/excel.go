package provider

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/xuri/excelize/v2"

	"waterscope/pkg/contracts/domain"
)

const (
	// PointsSheet is the registry sheet listing all measurement points.
	PointsSheet = "Punkty"
	// measurementsStartRow is the number of header rows to skip in a
	// per-point measurement sheet.
	measurementsStartRow = 8
)

// Column headers of the points sheet. The field sheets are maintained in
// Polish by the monitoring program; the header strings are part of the
// data format.
const (
	colCode         = "Kod punktu"
	colCoords       = "Współrzędne punktu"
	colRiver        = "Nazwa rzeki"
	colJCWP         = "Kod JCWP"
	colCatchment    = "Zarząd zlewni"
	colRZGW         = "RZGW"
	colName         = "Nazwa punktu"
	colLocation     = "Opis lokalizacji"
	colSurroundings = "Otoczenie"
	colInvestigator = "Osoba badająca"
	colContact      = "Kontakt"
)

// metadataColumns maps metadata keys to their column index in a
// measurement row.
var metadataColumns = map[string]int{
	"sampling_location":         2,
	"depth_info":                3,
	"sample_volume_l":           4,
	"water_state":               5,
	"water_gauge_state":         6,
	"precipitation_mm":          7,
	"precipitation_description": 8,
	"anomalies":                 9,
	"field_test_time":           10,
	"home_test_date":            14,
	"home_test_time":            15,
	"calibration_date":          24,
	"remarks":                   25,
}

// ExcelProvider reads measurement workbooks. The workbook must contain a
// "Punkty" sheet describing all measurement points; each point has a
// sheet of the same name holding its measurement rows.
type ExcelProvider struct {
	path   string
	logger *slog.Logger

	mu     sync.Mutex
	points map[string]domain.MeasurementPoint
	order  []string
}

// NewExcelProvider creates a provider for the workbook at path. The file
// is opened lazily on first access.
func NewExcelProvider(path string, logger *slog.Logger) *ExcelProvider {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExcelProvider{
		path:   path,
		logger: logger.With(slog.String("component", "excel_provider")),
	}
}

// ListPoints returns all measurement points from the workbook, in sheet
// order. The registry is cached after the first read.
func (p *ExcelProvider) ListPoints(ctx context.Context) ([]domain.MeasurementPoint, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := p.ensurePoints(); err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	points := make([]domain.MeasurementPoint, 0, len(p.order))
	for _, id := range p.order {
		points = append(points, p.points[id])
	}
	return points, nil
}

// ListMeasurements returns all measurements recorded at the given point.
// An unknown point yields an empty slice, not an error.
func (p *ExcelProvider) ListMeasurements(ctx context.Context, pointID string) ([]domain.Measurement, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := p.ensurePoints(); err != nil {
		return nil, err
	}

	p.mu.Lock()
	point, ok := p.points[pointID]
	p.mu.Unlock()
	if !ok {
		return []domain.Measurement{}, nil
	}

	return p.loadMeasurements(point)
}

func (p *ExcelProvider) ensurePoints() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.points != nil {
		return nil
	}

	f, err := excelize.OpenFile(p.path)
	if err != nil {
		return fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	rows, err := f.GetRows(PointsSheet)
	if err != nil {
		return fmt.Errorf("failed to read points sheet %q: %w", PointsSheet, err)
	}
	if len(rows) == 0 {
		return fmt.Errorf("points sheet %q is empty", PointsSheet)
	}

	// Map header names to column positions; the sheet column order is
	// not guaranteed.
	header := make(map[string]int, len(rows[0]))
	for i, h := range rows[0] {
		header[strings.TrimSpace(h)] = i
	}
	if _, ok := header[colName]; !ok {
		return fmt.Errorf("points sheet %q has no %q column", PointsSheet, colName)
	}

	cell := func(row []string, column string) string {
		idx, ok := header[column]
		if !ok || idx >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[idx])
	}

	p.points = make(map[string]domain.MeasurementPoint)
	p.order = nil

	for _, row := range rows[1:] {
		name := cell(row, colName)
		if name == "" {
			continue
		}

		id := cell(row, colCode)
		if id == "" {
			id = name
		}

		metadata := map[string]any{
			"river_name":           cell(row, colRiver),
			"jcwp_code":            cell(row, colJCWP),
			"catchment_authority":  cell(row, colCatchment),
			"rzgw":                 cell(row, colRZGW),
			"location_description": cell(row, colLocation),
			"surroundings":         cell(row, colSurroundings),
			"investigator":         cell(row, colInvestigator),
			"contact":              cell(row, colContact),
		}
		if lat, lon, ok := ParseCoordinates(cell(row, colCoords)); ok {
			metadata["latitude"] = lat
			metadata["longitude"] = lon
		}

		point := domain.MeasurementPoint{ID: id, Name: name, Metadata: metadata}
		if _, dup := p.points[point.ID]; !dup {
			p.order = append(p.order, point.ID)
		}
		p.points[point.ID] = point
	}

	p.logger.Info("loaded measurement points",
		slog.String("path", p.path),
		slog.Int("count", len(p.points)))

	return nil
}

func (p *ExcelProvider) loadMeasurements(point domain.MeasurementPoint) ([]domain.Measurement, error) {
	f, err := excelize.OpenFile(p.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	rows, err := f.GetRows(point.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", point.Name, err)
	}

	measurements := []domain.Measurement{}
	for i := measurementsStartRow; i < len(rows); i++ {
		m, ok := p.parseMeasurementRow(rows[i], point.ID)
		if !ok {
			continue
		}
		measurements = append(measurements, m)
	}

	p.logger.Debug("loaded measurements",
		slog.String("point_id", point.ID),
		slog.Int("count", len(measurements)))

	return measurements, nil
}

// parseMeasurementRow converts one sheet row into a Measurement. Rows
// without a parseable sampling date are skipped.
func (p *ExcelProvider) parseMeasurementRow(row []string, pointID string) (domain.Measurement, bool) {
	date, ok := parseDate(cellAt(row, 0))
	if !ok {
		return domain.Measurement{}, false
	}

	timestamp := date
	if clock, ok := parseClock(cellAt(row, 1)); ok {
		timestamp = date.Add(clock)
	}

	m := domain.Measurement{
		PointID:    pointID,
		Timestamp:  timestamp,
		Parameters: make(map[string]float64),
		Flags:      make(map[string]domain.Flag),
		Units:      make(map[string]string),
		Metadata:   make(map[string]any),
	}

	for key, idx := range metadataColumns {
		if v := cellAt(row, idx); v != "" {
			m.Metadata[key] = v
		}
	}

	for _, spec := range domain.Parameters {
		value, flag, ok := ParseNumericValue(cellAt(row, spec.Column))
		if !ok {
			continue
		}
		m.Parameters[spec.Name] = value
		m.Units[spec.Name] = spec.Unit
		if flag.Valid() {
			m.Flags[spec.Name] = flag
		}
	}

	return m, true
}

func cellAt(row []string, idx int) string {
	if idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

var _ DataProvider = (*ExcelProvider)(nil)
