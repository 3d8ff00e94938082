package fairland

// Well-known data point IDs used by the climate logic.
const (
	DPPower       = "101" // power switch (bool)
	DPPresetMode  = "102" // preset program (enum, mapping in dpProperty)
	DPCurrentTemp = "103" // inlet water temperature, used as current temp
	DPHVACMode    = "106" // operating mode: 0 auto, 1 heat, 2 cool
	DPTargetTemp  = "107" // target water temperature
	DPActionState = "113" // running state used to derive heating/cooling/idle
)

// Operating mode values for DPHVACMode.
const (
	ModeAuto = 0
	ModeHeat = 1
	ModeCool = 2
)

// Climate setpoint limits. The vendor app enforces these client-side;
// dpProperty rarely carries them for dp107.
const (
	ClimateMinTemp  = 8.0
	ClimateMaxTemp  = 40.0
	ClimateTempStep = 1.0
)

// Kind classifies how a data point's value is interpreted.
type Kind int

const (
	// KindBoolean is an on/off switch.
	KindBoolean Kind = iota

	// KindEnum is an integer code with a name mapping in dpProperty.
	KindEnum

	// KindTemperature is a temperature in degrees Celsius.
	KindTemperature

	// KindPercentage is a 0-100 percentage.
	KindPercentage

	// KindNumeric is any other numeric value.
	KindNumeric
)

// Descriptor is the static catalogue entry for a data point.
//
// Min, Max and Step are defaults; the normaliser refines them from the
// device's dpProperty when present. Scale is a decimal shift applied to
// raw values (value / 10^Scale), also overridable per device.
type Descriptor struct {
	ID         string
	Name       string
	Unit       string
	Icon       string
	Kind       Kind
	Scale      int
	Min        float64
	Max        float64
	Step       float64
	Writable   bool
	Diagnostic bool
}

// registry is the catalogue of every data point the bridge understands.
var registry = map[string]Descriptor{
	DPPower:       {ID: DPPower, Name: "Power", Kind: KindBoolean, Writable: true},
	DPPresetMode:  {ID: DPPresetMode, Name: "Preset Mode", Kind: KindEnum, Writable: true},
	DPCurrentTemp: {ID: DPCurrentTemp, Name: "Inlet Water Temperature", Unit: "°C", Icon: "mdi:thermometer-water", Kind: KindTemperature},
	"105":         {ID: "105", Name: "Running Percentage", Unit: "%", Icon: "mdi:percent", Kind: KindPercentage},
	DPHVACMode:    {ID: DPHVACMode, Name: "Operating Mode", Kind: KindEnum, Writable: true},
	DPTargetTemp:  {ID: DPTargetTemp, Name: "Target Temperature", Unit: "°C", Kind: KindTemperature, Min: ClimateMinTemp, Max: ClimateMaxTemp, Step: ClimateTempStep, Writable: true},
	"108":         {ID: "108", Name: "Lower Temperature Limit", Unit: "°C", Icon: "mdi:thermometer-low", Kind: KindTemperature, Diagnostic: true},
	"109":         {ID: "109", Name: "Upper Temperature Limit", Unit: "°C", Icon: "mdi:thermometer-high", Kind: KindTemperature, Diagnostic: true},
	"112":         {ID: "112", Name: "Power", Unit: "kW", Icon: "mdi:flash", Kind: KindNumeric, Scale: 3},
	DPActionState: {ID: DPActionState, Name: "Power Display Status", Icon: "mdi:power-settings", Kind: KindNumeric, Diagnostic: true},
	"114":         {ID: "114", Name: "Refrigeration Function", Icon: "mdi:snowflake", Kind: KindNumeric, Diagnostic: true},
	"115":         {ID: "115", Name: "Overclocking Function", Icon: "mdi:speedometer", Kind: KindNumeric, Diagnostic: true},
	"116":         {ID: "116", Name: "Water Pump Running Mode", Icon: "mdi:water-pump", Kind: KindNumeric, Min: 0, Max: 2, Step: 1, Writable: true, Diagnostic: true},
	"117":         {ID: "117", Name: "Water Pump Running Time", Unit: "min", Icon: "mdi:timer", Kind: KindNumeric, Min: 10, Max: 120, Step: 5, Writable: true, Diagnostic: true},
	"118":         {ID: "118", Name: "Defrosting Interval", Unit: "min", Icon: "mdi:snowflake-melt", Kind: KindNumeric, Min: 30, Max: 90, Step: 1, Writable: true, Diagnostic: true},
	"119":         {ID: "119", Name: "Defrosting Start Temperature", Unit: "°C", Icon: "mdi:thermometer-low", Kind: KindTemperature, Min: -30, Max: 250, Step: 1, Writable: true, Diagnostic: true},
	"120":         {ID: "120", Name: "Defrosting Running Time", Unit: "min", Icon: "mdi:timer", Kind: KindNumeric, Min: 1, Max: 12, Step: 1, Writable: true, Diagnostic: true},
	"121":         {ID: "121", Name: "Defrosting Quit Temperature", Unit: "°C", Icon: "mdi:thermometer", Kind: KindTemperature, Min: 8, Max: 100, Step: 1, Writable: true, Diagnostic: true},
	"122":         {ID: "122", Name: "Compressor Speed Control", Icon: "mdi:engine", Kind: KindNumeric, Diagnostic: true},
	"123":         {ID: "123", Name: "EEV Superheat Heating", Unit: "°C", Kind: KindTemperature, Diagnostic: true},
	"124":         {ID: "124", Name: "EEV Superheat Cooling", Unit: "°C", Kind: KindTemperature, Diagnostic: true},
	"125":         {ID: "125", Name: "EEV Control Mode", Icon: "mdi:valve", Kind: KindNumeric, Diagnostic: true},
	"126":         {ID: "126", Name: "EEV Manual Opening Heating", Icon: "mdi:valve", Kind: KindNumeric, Diagnostic: true},
	"127":         {ID: "127", Name: "EEV Manual Opening Cooling", Icon: "mdi:valve", Kind: KindNumeric, Diagnostic: true},
	"128":         {ID: "128", Name: "Power-off Memory Function", Icon: "mdi:memory", Kind: KindNumeric, Diagnostic: true},
	"129":         {ID: "129", Name: "Outlet Water Temperature", Unit: "°C", Icon: "mdi:thermometer-water", Kind: KindTemperature},
	"130":         {ID: "130", Name: "Ambient Temperature", Unit: "°C", Icon: "mdi:thermometer", Kind: KindTemperature},
	"131":         {ID: "131", Name: "Exhaust Temperature", Unit: "°C", Icon: "mdi:thermometer-high", Kind: KindTemperature},
	"132":         {ID: "132", Name: "Outer Coil Pipe Temperature", Unit: "°C", Icon: "mdi:pipe", Kind: KindTemperature},
	"133":         {ID: "133", Name: "Gas Return Temperature", Unit: "°C", Icon: "mdi:gas-cylinder", Kind: KindTemperature},
	"134":         {ID: "134", Name: "Inner Coil Pipe Temperature", Unit: "°C", Icon: "mdi:pipe", Kind: KindTemperature},
	"135":         {ID: "135", Name: "Cooling Plate Temperature", Unit: "°C", Icon: "mdi:coolant-temperature", Kind: KindTemperature},
	"136":         {ID: "136", Name: "Electronic Expansion Valve Opening", Icon: "mdi:valve", Kind: KindNumeric},
	"137":         {ID: "137", Name: "DC Fan Speed", Unit: "r/min", Icon: "mdi:fan", Kind: KindNumeric},
}

// sensorOrder lists the data points published as sensor entities,
// primary readings first, then diagnostics.
var sensorOrder = []string{
	"103", "129", "130", "131", "132", "133", "134", "135",
	"105", "112", "137", "136",
	"108", "109", "113", "114", "115",
	"116", "117", "118", "119", "120", "121",
	"122", "123", "124", "125", "126", "127", "128",
}

// numberOrder lists the writable tuning parameters exposed as number
// entities. Each requires dpMode "rw" on the device to be published.
var numberOrder = []string{"116", "117", "118", "119", "120", "121"}

// Describe returns the catalogue entry for a data point ID.
func Describe(id string) (Descriptor, bool) {
	d, ok := registry[id]
	return d, ok
}

// SensorDescriptors returns the descriptors published as sensors,
// in a stable order.
func SensorDescriptors() []Descriptor {
	out := make([]Descriptor, 0, len(sensorOrder))
	for _, id := range sensorOrder {
		out = append(out, registry[id])
	}
	return out
}

// NumberDescriptors returns the descriptors exposed as writable number
// entities, in a stable order.
func NumberDescriptors() []Descriptor {
	out := make([]Descriptor, 0, len(numberOrder))
	for _, id := range numberOrder {
		out = append(out, registry[id])
	}
	return out
}
