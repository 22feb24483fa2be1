package domain

// Canonical parameter names shared by the provider and visualization layers.
const (
	ParamWaterTemperature     = "water_temperature"
	ParamTransparency         = "transparency"
	ParamDissolvedOxygen      = "dissolved_oxygen"
	ParamNitrates             = "nitrates"
	ParamNitrites             = "nitrites"
	ParamPhosphates           = "phosphates"
	ParamChlorides            = "chlorides"
	ParamSulphates            = "sulphates"
	ParamPH                   = "pH"
	ParamWaterTemperatureHome = "water_temperature_home"
	ParamConductivity         = "conductivity"
)

// ParameterSpec describes one physicochemical parameter: its canonical
// name, unit string, and the zero-based column index in a measurement
// sheet row where its value lives.
type ParameterSpec struct {
	Name   string `json:"name"`
	Unit   string `json:"unit"`
	Column int    `json:"column"`
}

// Parameters is the registry of all parameters recorded in the field
// sheets, in column order.
var Parameters = []ParameterSpec{
	{Name: ParamWaterTemperature, Unit: "°C", Column: 11},
	{Name: ParamTransparency, Unit: "cm", Column: 12},
	{Name: ParamDissolvedOxygen, Unit: "mg/L", Column: 13},
	{Name: ParamNitrates, Unit: "mg/L", Column: 16},
	{Name: ParamNitrites, Unit: "mg/L", Column: 17},
	{Name: ParamPhosphates, Unit: "mg/L", Column: 18},
	{Name: ParamChlorides, Unit: "mg/L", Column: 19},
	{Name: ParamSulphates, Unit: "mg/L", Column: 20},
	{Name: ParamPH, Unit: "", Column: 21},
	{Name: ParamWaterTemperatureHome, Unit: "°C", Column: 22},
	{Name: ParamConductivity, Unit: "µS/cm", Column: 23},
}

// ParameterByName returns the spec for a canonical parameter name.
func ParameterByName(name string) (ParameterSpec, bool) {
	for _, p := range Parameters {
		if p.Name == name {
			return p, true
		}
	}
	return ParameterSpec{}, false
}
