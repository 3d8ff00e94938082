package bridge

import (
	"context"
	"fmt"
	"strings"

	"github.com/nerrad567/fairland-bridge/internal/fairland"
)

// cmdSetValue is the single command supported by number entities.
const cmdSetValue = "set_value"

// numberEntityPrefix prefixes writable parameter entities, followed by the
// data point ID (e.g., "number-117").
const numberEntityPrefix = "number-"

// numberEntityStates builds state payloads for every writable parameter
// the device currently reports. Entities are keyed "number-{dp_id}".
func numberEntityStates(d fairland.Device) map[string]map[string]any {
	states := make(map[string]map[string]any)

	for _, desc := range fairland.NumberDescriptors() {
		point, ok := d.DataPoint(desc.ID)
		if !ok || !point.Writable() {
			continue
		}

		value, ok := fairland.NormalizeValue(point, desc)
		if !ok {
			continue
		}

		min, max, step := fairland.Bounds(point, desc)
		state := map[string]any{
			"value": value,
			"min":   min,
			"max":   max,
			"step":  step,
		}
		if desc.Unit != "" {
			state["unit"] = desc.Unit
		}

		states[numberEntityPrefix+desc.ID] = state
	}

	return states
}

// executeNumber handles set_value commands for "number-{dp_id}" entities.
// The requested value is rounded to the device step and clamped to the
// reported range before writing.
func (b *Bridge) executeNumber(ctx context.Context, cmd CommandMessage, device fairland.Device, applied map[string]any) error {
	if cmd.Command != cmdSetValue {
		b.publishAckError(cmd, ErrCodeInvalidCommand,
			fmt.Sprintf("unknown number command: %s", cmd.Command))
		return fmt.Errorf("%w: %s", ErrInvalidCommand, cmd.Command)
	}

	dpID := strings.TrimPrefix(cmd.Entity, numberEntityPrefix)
	desc, ok := fairland.Describe(dpID)
	if !ok {
		b.publishAckError(cmd, ErrCodeUnknownEntity,
			fmt.Sprintf("unknown data point: %s", dpID))
		return fmt.Errorf("%w: dp %s", ErrUnknownEntity, dpID)
	}

	point, ok := device.DataPoint(dpID)
	if !ok {
		b.publishAckError(cmd, ErrCodeUnknownEntity,
			fmt.Sprintf("device reports no data point %s", dpID))
		return fmt.Errorf("%w: dp %s", ErrUnknownEntity, dpID)
	}
	if !point.Writable() {
		b.publishAckError(cmd, ErrCodeNotWritable,
			fmt.Sprintf("data point %s is read-only", dpID))
		return fmt.Errorf("%w: dp %s", ErrNotWritable, dpID)
	}

	value, err := b.floatParameter(cmd, "value")
	if err != nil {
		return err
	}

	min, max, step := fairland.Bounds(point, desc)
	value = fairland.RoundToStep(value, step)
	value = fairland.Clamp(value, min, max)

	return b.writeDataPoint(ctx, cmd, dpID, int(value), applied)
}
