package fairland

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Session holds the authenticated state returned by the vendor login.
type Session struct {
	// Token is the raw authorization value sent on every request.
	Token string

	// UserID identifies the account on the vendor cloud.
	UserID string
}

// Courtyard is the vendor's grouping of devices (roughly "a site").
// Every account has at least one; setup selects which one to bridge.
type Courtyard struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	DeviceCount int    `json:"deviceCount"`
}

// Device is a single appliance registered in a courtyard.
//
// DataPoints is populated by the coordinator after a successful fetch;
// the device listing endpoint returns devices without them.
type Device struct {
	ID           string      `json:"id"`
	Name         string      `json:"deviceName"`
	CategoryCode string      `json:"categoryCode"`
	Version      string      `json:"version"`
	SerialNumber string      `json:"sn"`
	DataPoints   []DataPoint `json:"dataPoints,omitempty"`
}

// DataPoint returns the device's data point with the given ID,
// or false if the device does not report it.
func (d Device) DataPoint(id string) (DataPoint, bool) {
	for _, dp := range d.DataPoints {
		if dp.ID == id {
			return dp, true
		}
	}
	return DataPoint{}, false
}

// IsHeatPump reports whether the device is a heat pump.
// Only heat pumps are bridged; other categories are listed but skipped.
func (d Device) IsHeatPump() bool {
	return d.CategoryCode == CategoryHeatPump
}

// CategoryHeatPump is the vendor category code for heat pump devices.
const CategoryHeatPump = "heatPump"

// DataPoint is one numbered state value on a device.
//
// Value is kept as a raw JSON message because the vendor mixes types
// freely: booleans for switches, numbers for temperatures, and numbers
// or strings for enums. Callers decode through the normaliser.
type DataPoint struct {
	ID       string          `json:"dpId"`
	Value    json.RawMessage `json:"dpValue"`
	Mode     string          `json:"dpMode"`
	Property string          `json:"dpProperty"`
}

// Writable reports whether the vendor accepts writes to this point.
func (dp DataPoint) Writable() bool {
	return dp.Mode == "rw"
}

// UnmarshalJSON tolerates numeric dpId values. The vendor usually sends
// the ID as a string but has been observed sending bare numbers.
func (dp *DataPoint) UnmarshalJSON(data []byte) error {
	type alias struct {
		ID       json.RawMessage `json:"dpId"`
		Value    json.RawMessage `json:"dpValue"`
		Mode     string          `json:"dpMode"`
		Property string          `json:"dpProperty"`
	}

	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}

	dp.Value = a.Value
	dp.Mode = a.Mode
	dp.Property = a.Property

	id := bytes.TrimSpace(a.ID)
	if len(id) == 0 || bytes.Equal(id, []byte("null")) {
		return fmt.Errorf("data point missing dpId")
	}
	if id[0] == '"' {
		var s string
		if err := json.Unmarshal(id, &s); err != nil {
			return fmt.Errorf("decoding dpId: %w", err)
		}
		dp.ID = s
		return nil
	}
	dp.ID = string(id)
	return nil
}

// Bool decodes the value as a boolean. Numeric 0/1 are accepted.
func (dp DataPoint) Bool() (bool, bool) {
	var b bool
	if err := json.Unmarshal(dp.Value, &b); err == nil {
		return b, true
	}
	var n float64
	if err := json.Unmarshal(dp.Value, &n); err == nil {
		return n != 0, true
	}
	return false, false
}

// Float decodes the value as a number. Quoted numbers are accepted.
func (dp DataPoint) Float() (float64, bool) {
	var n float64
	if err := json.Unmarshal(dp.Value, &n); err == nil {
		return n, true
	}
	var s string
	if err := json.Unmarshal(dp.Value, &s); err == nil {
		if _, err := fmt.Sscanf(s, "%g", &n); err == nil {
			return n, true
		}
	}
	return 0, false
}

// Int decodes the value as an integer, truncating any fraction.
func (dp DataPoint) Int() (int, bool) {
	f, ok := dp.Float()
	if !ok {
		return 0, false
	}
	return int(f), true
}

// Snapshot is an immutable view of all bridged devices at a point in time.
// The coordinator replaces the whole snapshot on each poll cycle; callers
// must not mutate it.
type Snapshot []Device

// Device returns the device with the given ID, or false if absent.
func (s Snapshot) Device(id string) (Device, bool) {
	for _, d := range s {
		if d.ID == id {
			return d, true
		}
	}
	return Device{}, false
}
