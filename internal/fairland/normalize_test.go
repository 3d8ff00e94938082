package fairland

import (
	"encoding/json"
	"reflect"
	"testing"
)

func dp(id, value, mode, property string) DataPoint {
	return DataPoint{
		ID:       id,
		Value:    json.RawMessage(value),
		Mode:     mode,
		Property: property,
	}
}

// =============================================================================
// Value Normalisation Tests
// =============================================================================

func TestNormalizeValue(t *testing.T) {
	tests := []struct {
		name string
		dp   DataPoint
		desc Descriptor
		want float64
		ok   bool
	}{
		{
			name: "no scale passes through",
			dp:   dp("103", "24", "ro", ""),
			desc: Descriptor{ID: "103"},
			want: 24,
			ok:   true,
		},
		{
			name: "registry scale divides",
			dp:   dp("112", "1234", "ro", ""),
			desc: Descriptor{ID: "112", Scale: 3},
			want: 1.234,
			ok:   true,
		},
		{
			name: "property scale overrides registry",
			dp:   dp("112", "1234", "ro", `{"scale":1}`),
			desc: Descriptor{ID: "112", Scale: 3},
			want: 123.4,
			ok:   true,
		},
		{
			name: "quoted number decodes",
			dp:   dp("130", `"18.5"`, "ro", ""),
			desc: Descriptor{ID: "130"},
			want: 18.5,
			ok:   true,
		},
		{
			name: "non-numeric value fails",
			dp:   dp("103", `"warm"`, "ro", ""),
			desc: Descriptor{ID: "103"},
			ok:   false,
		},
		{
			name: "malformed property falls back to registry scale",
			dp:   dp("112", "2000", "ro", "{broken"),
			desc: Descriptor{ID: "112", Scale: 3},
			want: 2,
			ok:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := NormalizeValue(tt.dp, tt.desc)
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if ok && got != tt.want {
				t.Errorf("NormalizeValue() = %v, want %v", got, tt.want)
			}
		})
	}
}

// =============================================================================
// Bounds and Rounding Tests
// =============================================================================

func TestBounds(t *testing.T) {
	desc := Descriptor{ID: "117", Min: 10, Max: 120, Step: 5}

	tests := []struct {
		name     string
		property string
		wantMin  float64
		wantMax  float64
		wantStep float64
	}{
		{"no property keeps defaults", "", 10, 120, 5},
		{"full override", `{"min":20,"max":60,"step":10}`, 20, 60, 10},
		{"partial override keeps rest", `{"max":90}`, 10, 90, 5},
		{"string numbers accepted", `{"min":"15"}`, 15, 120, 5},
		{"zero step ignored", `{"step":0}`, 10, 120, 5},
		{"malformed property keeps defaults", "{oops", 10, 120, 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			min, max, step := Bounds(dp("117", "30", "rw", tt.property), desc)
			if min != tt.wantMin || max != tt.wantMax || step != tt.wantStep {
				t.Errorf("Bounds() = %v, %v, %v, want %v, %v, %v",
					min, max, step, tt.wantMin, tt.wantMax, tt.wantStep)
			}
		})
	}
}

func TestRoundToStep(t *testing.T) {
	tests := []struct {
		value float64
		step  float64
		want  float64
	}{
		{53, 5, 55},
		{52, 5, 50},
		{52.5, 5, 55},
		{28.4, 1, 28},
		{28.6, 1, 29},
		{-31.2, 1, -31},
		{7, 0, 7}, // non-positive step passes through
	}

	for _, tt := range tests {
		got := RoundToStep(tt.value, tt.step)
		if got != tt.want {
			t.Errorf("RoundToStep(%v, %v) = %v, want %v", tt.value, tt.step, got, tt.want)
		}
	}
}

func TestClamp(t *testing.T) {
	tests := []struct {
		value, min, max, want float64
	}{
		{5, 10, 120, 10},
		{130, 10, 120, 120},
		{60, 10, 120, 60},
	}

	for _, tt := range tests {
		if got := Clamp(tt.value, tt.min, tt.max); got != tt.want {
			t.Errorf("Clamp(%v, %v, %v) = %v, want %v", tt.value, tt.min, tt.max, got, tt.want)
		}
	}
}

// =============================================================================
// Enum Tests
// =============================================================================

func TestEnumMapping(t *testing.T) {
	t.Run("valid mapping", func(t *testing.T) {
		mapping := EnumMapping(dp("102", "1", "rw", `{"0":"Silent","1":"Smart","2":"Turbo"}`))
		want := map[int]string{0: "Silent", 1: "Smart", 2: "Turbo"}
		if !reflect.DeepEqual(mapping, want) {
			t.Errorf("EnumMapping() = %v, want %v", mapping, want)
		}
	})

	t.Run("malformed property degrades to empty", func(t *testing.T) {
		mapping := EnumMapping(dp("102", "1", "rw", "{not json"))
		if len(mapping) != 0 {
			t.Errorf("EnumMapping() = %v, want empty", mapping)
		}
	})

	t.Run("non-integer keys skipped", func(t *testing.T) {
		mapping := EnumMapping(dp("102", "1", "rw", `{"0":"Silent","x":"Broken"}`))
		if len(mapping) != 1 || mapping[0] != "Silent" {
			t.Errorf("EnumMapping() = %v, want only code 0", mapping)
		}
	})
}

func TestEnumNames_SortedByCode(t *testing.T) {
	names := EnumNames(map[int]string{2: "Turbo", 0: "Silent", 1: "Smart"})
	want := []string{"Silent", "Smart", "Turbo"}
	if !reflect.DeepEqual(names, want) {
		t.Errorf("EnumNames() = %v, want %v", names, want)
	}
}

func TestEnumCode(t *testing.T) {
	mapping := map[int]string{0: "Silent", 1: "Smart"}

	if code, ok := EnumCode(mapping, "Smart"); !ok || code != 1 {
		t.Errorf("EnumCode(Smart) = %v, %v, want 1, true", code, ok)
	}
	if _, ok := EnumCode(mapping, "Turbo"); ok {
		t.Error("EnumCode(Turbo) should not resolve")
	}
}

// =============================================================================
// Climate Derivation Tests
// =============================================================================

func climateDevice(power string, mode, action string) Device {
	return Device{
		ID:           "dev-1",
		CategoryCode: CategoryHeatPump,
		DataPoints: []DataPoint{
			dp(DPPower, power, "rw", ""),
			dp(DPPresetMode, "1", "rw", `{"0":"Silent","1":"Smart","2":"Turbo"}`),
			dp(DPCurrentTemp, "24", "ro", ""),
			dp(DPHVACMode, mode, "rw", ""),
			dp(DPTargetTemp, "28", "rw", ""),
			dp(DPActionState, action, "ro", ""),
		},
	}
}

func TestDeriveClimate(t *testing.T) {
	tests := []struct {
		name       string
		device     Device
		wantHVAC   string
		wantAction string
		wantPreset string
	}{
		{
			name:       "heating",
			device:     climateDevice("true", "1", "1"),
			wantHVAC:   HVACHeat,
			wantAction: ActionHeating,
			wantPreset: "Smart",
		},
		{
			name:       "cooling",
			device:     climateDevice("true", "2", "1"),
			wantHVAC:   HVACCool,
			wantAction: ActionCooling,
			wantPreset: "Smart",
		},
		{
			name:       "auto reports idle even when running",
			device:     climateDevice("true", "0", "1"),
			wantHVAC:   HVACAuto,
			wantAction: ActionIdle,
			wantPreset: "Smart",
		},
		{
			name:       "idle when not running",
			device:     climateDevice("true", "1", "0"),
			wantHVAC:   HVACHeat,
			wantAction: ActionIdle,
			wantPreset: "Smart",
		},
		{
			name:       "powered off",
			device:     climateDevice("false", "1", "1"),
			wantHVAC:   HVACOff,
			wantAction: ActionOff,
			wantPreset: "Smart",
		},
		{
			name:       "unrecognised mode code reports off",
			device:     climateDevice("true", "5", "1"),
			wantHVAC:   HVACOff,
			wantAction: ActionIdle,
			wantPreset: "Smart",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := DeriveClimate(tt.device)
			if st.HVACMode != tt.wantHVAC {
				t.Errorf("HVACMode = %q, want %q", st.HVACMode, tt.wantHVAC)
			}
			if st.Action != tt.wantAction {
				t.Errorf("Action = %q, want %q", st.Action, tt.wantAction)
			}
			if st.Preset != tt.wantPreset {
				t.Errorf("Preset = %q, want %q", st.Preset, tt.wantPreset)
			}
			if !st.HasCurrent || st.CurrentTemp != 24 {
				t.Errorf("CurrentTemp = %v (has %v), want 24", st.CurrentTemp, st.HasCurrent)
			}
			if !st.HasTarget || st.TargetTemp != 28 {
				t.Errorf("TargetTemp = %v (has %v), want 28", st.TargetTemp, st.HasTarget)
			}
		})
	}
}

func TestDeriveClimate_MissingPoints(t *testing.T) {
	st := DeriveClimate(Device{ID: "dev-1"})

	if st.Power {
		t.Error("Power should default to false")
	}
	if st.HVACMode != HVACOff {
		t.Errorf("HVACMode = %q, want off", st.HVACMode)
	}
	if st.Action != ActionOff {
		t.Errorf("Action = %q, want off", st.Action)
	}
	if st.HasCurrent || st.HasTarget {
		t.Error("temperature flags should be false without data points")
	}
}

func TestHVACModeRoundTrip(t *testing.T) {
	for _, name := range []string{HVACAuto, HVACHeat, HVACCool} {
		code, ok := HVACModeCode(name)
		if !ok {
			t.Fatalf("HVACModeCode(%q) not found", name)
		}
		if got := HVACModeName(code); got != name {
			t.Errorf("HVACModeName(%d) = %q, want %q", code, got, name)
		}
	}

	if _, ok := HVACModeCode("dry"); ok {
		t.Error("HVACModeCode(dry) should not resolve")
	}

	if got := HVACModeName(5); got != HVACOff {
		t.Errorf("HVACModeName(5) = %q, want %q", got, HVACOff)
	}
}
