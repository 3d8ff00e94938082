package fairland

import (
	"encoding/json"
	"math"
	"sort"
	"strconv"
)

// properties decodes the dpProperty JSON string into raw fields.
// Malformed or empty properties yield nil; callers degrade to the
// registry defaults.
func properties(dp DataPoint) map[string]json.RawMessage {
	if dp.Property == "" {
		return nil
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal([]byte(dp.Property), &m); err != nil {
		return nil
	}
	return m
}

// propertyFloat extracts a numeric property field.
func propertyFloat(props map[string]json.RawMessage, key string) (float64, bool) {
	raw, ok := props[key]
	if !ok {
		return 0, false
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f, true
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f, true
		}
	}
	return 0, false
}

// NormalizeValue converts a data point's raw value into its engineering
// unit. The scale (decimal shift) comes from dpProperty when the device
// reports one, otherwise from the registry descriptor.
//
// Example: dp112 reports raw watts with scale 3, so 1234 becomes 1.234 kW.
func NormalizeValue(dp DataPoint, desc Descriptor) (float64, bool) {
	raw, ok := dp.Float()
	if !ok {
		return 0, false
	}

	scale := desc.Scale
	if props := properties(dp); props != nil {
		if s, ok := propertyFloat(props, "scale"); ok {
			scale = int(s)
		}
	}

	if scale > 0 {
		raw /= math.Pow10(scale)
	}
	return raw, true
}

// Bounds returns the effective min, max and step for a writable point.
// dpProperty values override the registry defaults field by field.
func Bounds(dp DataPoint, desc Descriptor) (min, max, step float64) {
	min, max, step = desc.Min, desc.Max, desc.Step

	props := properties(dp)
	if props == nil {
		return min, max, step
	}
	if v, ok := propertyFloat(props, "min"); ok {
		min = v
	}
	if v, ok := propertyFloat(props, "max"); ok {
		max = v
	}
	if v, ok := propertyFloat(props, "step"); ok && v > 0 {
		step = v
	}
	return min, max, step
}

// RoundToStep rounds value to the nearest multiple of step, anchored at
// zero. A non-positive step returns the value unchanged.
func RoundToStep(value, step float64) float64 {
	if step <= 0 {
		return value
	}
	return math.Round(value/step) * step
}

// Clamp bounds value to [min, max].
func Clamp(value, min, max float64) float64 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}

// EnumMapping decodes a point's dpProperty as a code-to-name mapping.
// The vendor encodes it as a JSON object with integer keys as strings,
// e.g. {"0":"Silent","1":"Smart","2":"Turbo"}. A malformed property
// degrades to an empty mapping rather than failing the entity.
func EnumMapping(dp DataPoint) map[int]string {
	out := make(map[int]string)
	if dp.Property == "" {
		return out
	}

	var m map[string]string
	if err := json.Unmarshal([]byte(dp.Property), &m); err != nil {
		return out
	}
	for k, v := range m {
		code, err := strconv.Atoi(k)
		if err != nil {
			continue
		}
		out[code] = v
	}
	return out
}

// EnumNames returns the mapping's names sorted by code.
func EnumNames(mapping map[int]string) []string {
	codes := make([]int, 0, len(mapping))
	for c := range mapping {
		codes = append(codes, c)
	}
	sort.Ints(codes)

	names := make([]string, 0, len(codes))
	for _, c := range codes {
		names = append(names, mapping[c])
	}
	return names
}

// EnumCode reverse-looks-up a name in the mapping.
func EnumCode(mapping map[int]string, name string) (int, bool) {
	for code, n := range mapping {
		if n == name {
			return code, true
		}
	}
	return 0, false
}

// HVAC mode and action names as published on the state topic.
const (
	HVACOff  = "off"
	HVACAuto = "auto"
	HVACHeat = "heat"
	HVACCool = "cool"

	ActionOff     = "off"
	ActionHeating = "heating"
	ActionCooling = "cooling"
	ActionIdle    = "idle"
)

// HVACModeName maps a DPHVACMode code to its published name.
// Codes the vendor has not documented resolve to off.
func HVACModeName(mode int) string {
	switch mode {
	case ModeAuto:
		return HVACAuto
	case ModeHeat:
		return HVACHeat
	case ModeCool:
		return HVACCool
	default:
		return HVACOff
	}
}

// HVACModeCode maps a published name back to a DPHVACMode code.
func HVACModeCode(name string) (int, bool) {
	switch name {
	case HVACAuto:
		return ModeAuto, true
	case HVACHeat:
		return ModeHeat, true
	case HVACCool:
		return ModeCool, true
	default:
		return 0, false
	}
}

// ClimateState is the derived climate view of a device, built from
// dp101 (power), dp102 (preset), dp103 (current temperature),
// dp106 (mode), dp107 (target temperature) and dp113 (running state).
type ClimateState struct {
	Power       bool
	Mode        int
	HVACMode    string
	Action      string
	Preset      string
	PresetModes []string
	CurrentTemp float64
	TargetTemp  float64
	HasCurrent  bool
	HasTarget   bool
}

// DeriveClimate computes the climate state from a device's data points.
// Missing points leave their fields at zero values; the flags report
// which temperatures were present.
func DeriveClimate(d Device) ClimateState {
	var st ClimateState

	if dp, ok := d.DataPoint(DPPower); ok {
		if v, ok := dp.Bool(); ok {
			st.Power = v
		}
	}

	if dp, ok := d.DataPoint(DPHVACMode); ok {
		if v, ok := dp.Int(); ok {
			st.Mode = v
		}
	}

	if st.Power {
		st.HVACMode = HVACModeName(st.Mode)
	} else {
		st.HVACMode = HVACOff
	}

	if dp, ok := d.DataPoint(DPCurrentTemp); ok {
		if desc, found := Describe(DPCurrentTemp); found {
			if v, ok := NormalizeValue(dp, desc); ok {
				st.CurrentTemp = v
				st.HasCurrent = true
			}
		}
	}

	if dp, ok := d.DataPoint(DPTargetTemp); ok {
		if desc, found := Describe(DPTargetTemp); found {
			if v, ok := NormalizeValue(dp, desc); ok {
				st.TargetTemp = v
				st.HasTarget = true
			}
		}
	}

	if dp, ok := d.DataPoint(DPPresetMode); ok {
		mapping := EnumMapping(dp)
		st.PresetModes = EnumNames(mapping)
		if code, ok := dp.Int(); ok {
			if name, found := mapping[code]; found {
				st.Preset = name
			}
		}
	}

	st.Action = deriveAction(d, st)
	return st
}

// deriveAction maps dp113 and the current mode to a running action.
// Only an explicit running state of 1 while powered counts as active;
// auto mode reports idle because the direction is unknown.
func deriveAction(d Device, st ClimateState) string {
	if !st.Power {
		return ActionOff
	}

	dp, ok := d.DataPoint(DPActionState)
	if !ok {
		return ActionIdle
	}
	state, ok := dp.Int()
	if !ok || state != 1 {
		return ActionIdle
	}

	switch st.Mode {
	case ModeHeat:
		return ActionHeating
	case ModeCool:
		return ActionCooling
	default:
		return ActionIdle
	}
}
