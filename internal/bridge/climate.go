package bridge

import (
	"context"
	"fmt"

	"github.com/nerrad567/fairland-bridge/internal/fairland"
)

// Climate commands supported by the "climate" entity.
const (
	cmdTurnOn         = "turn_on"
	cmdTurnOff        = "turn_off"
	cmdSetHVACMode    = "set_hvac_mode"
	cmdSetPresetMode  = "set_preset_mode"
	cmdSetTemperature = "set_temperature"
)

// climateEntityState builds the climate state payload for a device.
func climateEntityState(d fairland.Device) map[string]any {
	st := fairland.DeriveClimate(d)

	state := map[string]any{
		"power":       st.Power,
		"hvac_mode":   st.HVACMode,
		"hvac_action": st.Action,
		"min_temp":    float64(fairland.ClimateMinTemp),
		"max_temp":    float64(fairland.ClimateMaxTemp),
	}
	if st.Preset != "" {
		state["preset_mode"] = st.Preset
	}
	if len(st.PresetModes) > 0 {
		state["preset_modes"] = st.PresetModes
	}
	if st.HasCurrent {
		state["current_temperature"] = st.CurrentTemp
	}
	if st.HasTarget {
		state["target_temperature"] = st.TargetTemp
	}

	return state
}

// executeClimate handles commands for the "climate" entity.
func (b *Bridge) executeClimate(ctx context.Context, cmd CommandMessage, device fairland.Device, applied map[string]any) error {
	switch cmd.Command {
	case cmdTurnOn:
		return b.writeDataPoint(ctx, cmd, fairland.DPPower, true, applied)

	case cmdTurnOff:
		return b.writeDataPoint(ctx, cmd, fairland.DPPower, false, applied)

	case cmdSetHVACMode:
		return b.executeSetHVACMode(ctx, cmd, device, applied)

	case cmdSetPresetMode:
		return b.executeSetPresetMode(ctx, cmd, device, applied)

	case cmdSetTemperature:
		return b.executeSetTemperature(ctx, cmd, applied)

	default:
		b.publishAckError(cmd, ErrCodeInvalidCommand,
			fmt.Sprintf("unknown climate command: %s", cmd.Command))
		return fmt.Errorf("%w: %s", ErrInvalidCommand, cmd.Command)
	}
}

// executeSetHVACMode writes the operating mode. Setting a mode other than
// "off" on a powered-off unit powers it on first, matching how thermostats
// in home-automation platforms behave.
func (b *Bridge) executeSetHVACMode(ctx context.Context, cmd CommandMessage, device fairland.Device, applied map[string]any) error {
	mode, err := b.stringParameter(cmd, "hvac_mode")
	if err != nil {
		return err
	}

	if mode == fairland.HVACOff {
		return b.writeDataPoint(ctx, cmd, fairland.DPPower, false, applied)
	}

	code, ok := fairland.HVACModeCode(mode)
	if !ok {
		b.publishAckError(cmd, ErrCodeInvalidParameters,
			fmt.Sprintf("unsupported hvac_mode: %s", mode))
		return fmt.Errorf("%w: hvac_mode %s", ErrInvalidParameters, mode)
	}

	st := fairland.DeriveClimate(device)
	if !st.Power {
		if err := b.writeDataPoint(ctx, cmd, fairland.DPPower, true, applied); err != nil {
			return err
		}
	}

	return b.writeDataPoint(ctx, cmd, fairland.DPHVACMode, code, applied)
}

// executeSetPresetMode writes the preset enum code resolved from the
// device's own preset mapping.
func (b *Bridge) executeSetPresetMode(ctx context.Context, cmd CommandMessage, device fairland.Device, applied map[string]any) error {
	preset, err := b.stringParameter(cmd, "preset_mode")
	if err != nil {
		return err
	}

	point, ok := device.DataPoint(fairland.DPPresetMode)
	if !ok {
		b.publishAckError(cmd, ErrCodeUnknownEntity,
			"device reports no preset data point")
		return fmt.Errorf("%w: preset data point", ErrUnknownEntity)
	}

	code, ok := fairland.EnumCode(fairland.EnumMapping(point), preset)
	if !ok {
		b.publishAckError(cmd, ErrCodeInvalidParameters,
			fmt.Sprintf("unsupported preset_mode: %s", preset))
		return fmt.Errorf("%w: preset_mode %s", ErrInvalidParameters, preset)
	}

	return b.writeDataPoint(ctx, cmd, fairland.DPPresetMode, code, applied)
}

// executeSetTemperature rounds the requested target to the device step,
// clamps it to the supported range, and writes it.
func (b *Bridge) executeSetTemperature(ctx context.Context, cmd CommandMessage, applied map[string]any) error {
	temp, err := b.floatParameter(cmd, "temperature")
	if err != nil {
		return err
	}

	value := fairland.RoundToStep(temp, fairland.ClimateTempStep)
	value = fairland.Clamp(value, fairland.ClimateMinTemp, fairland.ClimateMaxTemp)

	return b.writeDataPoint(ctx, cmd, fairland.DPTargetTemp, int(value), applied)
}

// stringParameter extracts a required string parameter, publishing an
// error ack if missing or mistyped.
func (b *Bridge) stringParameter(cmd CommandMessage, name string) (string, error) {
	raw, ok := cmd.Parameters[name]
	if !ok {
		b.publishAckError(cmd, ErrCodeInvalidParameters,
			fmt.Sprintf("missing %q parameter", name))
		return "", fmt.Errorf("%w: missing %s", ErrInvalidParameters, name)
	}

	s, ok := raw.(string)
	if !ok {
		b.publishAckError(cmd, ErrCodeInvalidParameters,
			fmt.Sprintf("%q must be a string", name))
		return "", fmt.Errorf("%w: %s must be a string", ErrInvalidParameters, name)
	}
	return s, nil
}

// floatParameter extracts a required numeric parameter, publishing an
// error ack if missing or mistyped.
func (b *Bridge) floatParameter(cmd CommandMessage, name string) (float64, error) {
	raw, ok := cmd.Parameters[name]
	if !ok {
		b.publishAckError(cmd, ErrCodeInvalidParameters,
			fmt.Sprintf("missing %q parameter", name))
		return 0, fmt.Errorf("%w: missing %s", ErrInvalidParameters, name)
	}

	f, ok := raw.(float64)
	if !ok {
		b.publishAckError(cmd, ErrCodeInvalidParameters,
			fmt.Sprintf("%q must be a number", name))
		return 0, fmt.Errorf("%w: %s must be a number", ErrInvalidParameters, name)
	}
	return f, nil
}
