package bridge

import (
	"context"
	"fmt"

	"github.com/nerrad567/fairland-bridge/internal/fairland"
)

// powerEntityState builds the state payload for the "power" switch entity.
// Returns nil when the device exposes no power data point.
func powerEntityState(d fairland.Device) map[string]any {
	point, ok := d.DataPoint(fairland.DPPower)
	if !ok {
		return nil
	}

	on, ok := point.Bool()
	if !ok {
		return nil
	}

	return map[string]any{"on": on}
}

// executePower handles commands for the "power" switch entity.
func (b *Bridge) executePower(ctx context.Context, cmd CommandMessage, applied map[string]any) error {
	switch cmd.Command {
	case cmdTurnOn:
		return b.writeDataPoint(ctx, cmd, fairland.DPPower, true, applied)
	case cmdTurnOff:
		return b.writeDataPoint(ctx, cmd, fairland.DPPower, false, applied)
	default:
		b.publishAckError(cmd, ErrCodeInvalidCommand,
			fmt.Sprintf("unknown power command: %s", cmd.Command))
		return fmt.Errorf("%w: %s", ErrInvalidCommand, cmd.Command)
	}
}
