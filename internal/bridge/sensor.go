package bridge

import (
	"fmt"

	"github.com/nerrad567/fairland-bridge/internal/fairland"
)

// sensorEntityPrefix prefixes read-only sensor entities, followed by the
// data point ID (e.g., "sensor-103").
const sensorEntityPrefix = "sensor-"

// sensorEntityStates builds state payloads for every sensor data point the
// device currently reports. Entities are keyed "sensor-{dp_id}".
// Data points with unparseable values are skipped rather than published
// with a wrong reading.
func sensorEntityStates(d fairland.Device) map[string]map[string]any {
	states := make(map[string]map[string]any)

	for _, desc := range fairland.SensorDescriptors() {
		point, ok := d.DataPoint(desc.ID)
		if !ok {
			continue
		}

		state := sensorState(point, desc)
		if state == nil {
			continue
		}

		states[sensorEntityPrefix+desc.ID] = state
	}

	return states
}

// sensorState converts a single data point to a state payload based on
// its registry kind.
func sensorState(point fairland.DataPoint, desc fairland.Descriptor) map[string]any {
	switch desc.Kind {
	case fairland.KindBoolean:
		on, ok := point.Bool()
		if !ok {
			return nil
		}
		return map[string]any{"value": on}

	case fairland.KindEnum:
		code, ok := point.Int()
		if !ok {
			return nil
		}
		state := map[string]any{"value": fmt.Sprintf("%d", code)}
		if name, ok := fairland.EnumMapping(point)[code]; ok {
			state["value"] = name
		}
		return state

	default:
		value, ok := fairland.NormalizeValue(point, desc)
		if !ok {
			return nil
		}
		state := map[string]any{"value": value}
		if desc.Unit != "" {
			state["unit"] = desc.Unit
		}
		return state
	}
}
