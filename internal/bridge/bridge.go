package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/nerrad567/fairland-bridge/internal/fairland"
)

// Bridge operation constants.
const (
	// commandTimeout is the timeout for writes to the vendor cloud.
	commandTimeout = 10 * time.Second

	// availabilityOnline and availabilityOffline are the retained payloads
	// published to the per-device availability topic.
	availabilityOnline  = "online"
	availabilityOffline = "offline"
)

// Bridge orchestrates bidirectional translation between the vendor cloud
// and MQTT. It handles:
//   - Receiving commands via MQTT and translating them to cloud writes
//   - Publishing entity state from coordinator snapshots
//   - Health reporting and graceful shutdown
//
// Thread Safety: All methods are safe for concurrent use.
type Bridge struct {
	bridgeID  string
	mqtt      MQTTClient
	commander Commander
	source    StateSource
	health    *HealthReporter

	// State cache for change detection, keyed device/entity
	stateCache   map[string]map[string]any
	stateCacheMu sync.Mutex

	// Device IDs present in the last snapshot, for offline detection
	knownDevices map[string]struct{}
	knownMu      sync.Mutex

	// Operational counters
	stats   BridgeStatistics
	statsMu sync.Mutex

	removeListener func()

	// Shutdown coordination
	done      chan struct{}
	stopOnce  sync.Once
	ctx       context.Context    // Bridge-level context, cancelled on Stop()
	ctxCancel context.CancelFunc // Cancel function for ctx

	// Logger
	logger   Logger
	loggerMu sync.RWMutex
}

// MQTTClient is the interface for MQTT operations.
// This allows mocking in tests and flexibility in implementation.
type MQTTClient interface {
	// Publish sends a message to a topic.
	Publish(topic string, payload []byte, qos byte, retained bool) error

	// Subscribe registers a handler for a topic pattern.
	Subscribe(topic string, qos byte, handler func(topic string, payload []byte)) error

	// IsConnected returns true if connected to the broker.
	IsConnected() bool
}

// Commander writes data point values to the vendor cloud.
// This interface is satisfied by *fairland.Client.
type Commander interface {
	SetDataPoint(ctx context.Context, deviceID, dpID string, value any) error
}

// StateSource provides device snapshots and poll status.
// This interface is satisfied by *fairland.Coordinator.
type StateSource interface {
	// Snapshot returns the current device snapshot.
	Snapshot() fairland.Snapshot

	// LastUpdateSuccess reports whether the most recent poll cycle succeeded.
	LastUpdateSuccess() bool

	// Metrics returns poll cycle counters.
	Metrics() fairland.CoordinatorMetrics

	// AddListener registers a callback invoked after each successful cycle.
	// The returned function removes the listener.
	AddListener(fn func(fairland.Snapshot)) func()

	// RequestRefresh asks for an immediate poll cycle.
	RequestRefresh()
}

// Logger is the interface for structured logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// BridgeOptions holds configuration for creating a bridge.
type BridgeOptions struct {
	// BridgeID is the identifier used in health topics and messages.
	BridgeID string

	// Version is the bridge software version, reported in health messages.
	Version string

	// MQTTClient is the MQTT client implementation.
	MQTTClient MQTTClient

	// Commander writes data point values to the vendor cloud.
	Commander Commander

	// Source provides device snapshots.
	Source StateSource

	// HealthInterval is how often health status is published.
	// Default: 30 seconds.
	HealthInterval time.Duration

	// Logger is optional structured logger.
	Logger Logger
}

// NewBridge creates a new bridge instance.
// Call Start() to begin operation.
func NewBridge(opts BridgeOptions) (*Bridge, error) {
	if opts.BridgeID == "" {
		return nil, fmt.Errorf("bridge ID is required")
	}
	if opts.MQTTClient == nil {
		return nil, fmt.Errorf("MQTT client is required")
	}
	if opts.Commander == nil {
		return nil, fmt.Errorf("commander is required")
	}
	if opts.Source == nil {
		return nil, fmt.Errorf("state source is required")
	}

	// Bridge-level context aborts in-flight cloud writes on shutdown
	ctx, ctxCancel := context.WithCancel(context.Background())

	b := &Bridge{
		bridgeID:     opts.BridgeID,
		mqtt:         opts.MQTTClient,
		commander:    opts.Commander,
		source:       opts.Source,
		stateCache:   make(map[string]map[string]any),
		knownDevices: make(map[string]struct{}),
		done:         make(chan struct{}),
		ctx:          ctx,
		ctxCancel:    ctxCancel,
		logger:       opts.Logger,
	}

	b.health = NewHealthReporter(HealthReporterConfig{
		BridgeID:  opts.BridgeID,
		Version:   opts.Version,
		Interval:  opts.HealthInterval,
		Publisher: opts.MQTTClient,
		Source:    opts.Source,
		Stats:     b.Statistics,
	})
	if opts.Logger != nil {
		b.health.SetLogger(opts.Logger)
	}

	return b, nil
}

// Start begins bridge operation.
// This subscribes to command topics, registers the snapshot listener,
// and starts health reporting.
func (b *Bridge) Start(ctx context.Context) error {
	if err := b.health.PublishStarting(); err != nil {
		b.logError("failed to publish starting status", err)
	}

	commandTopic := CommandSubscribeTopic()
	if err := b.mqtt.Subscribe(commandTopic, 1, b.handleMQTTMessage); err != nil {
		return fmt.Errorf("subscribe to commands: %w", err)
	}
	b.logInfo("subscribed to commands", "topic", commandTopic)

	b.removeListener = b.source.AddListener(b.handleSnapshot)

	// Publish whatever the source already holds (persisted snapshot) so
	// retained state appears before the first poll completes.
	if snap := b.source.Snapshot(); len(snap) > 0 {
		b.handleSnapshot(snap)
	}

	b.health.Start(ctx)

	if err := b.health.PublishNow(); err != nil {
		b.logError("failed to publish health status", err)
	}

	b.logInfo("bridge started",
		"bridge_id", b.bridgeID,
		"devices", len(b.source.Snapshot()))

	return nil
}

// Stop gracefully shuts down the bridge.
// Publishes offline availability for known devices before returning.
func (b *Bridge) Stop() {
	b.stopOnce.Do(func() {
		close(b.done)

		// Abort in-flight cloud writes
		b.ctxCancel()

		if b.removeListener != nil {
			b.removeListener()
		}

		// Stop health reporting (publishes "stopping" status)
		b.health.Stop()

		// Best-effort offline availability for every bridged device
		for _, d := range b.source.Snapshot() {
			//nolint:errcheck // Best-effort during shutdown
			b.mqtt.Publish(AvailabilityTopic(d.ID), []byte(availabilityOffline), 1, true)
		}

		b.logInfo("bridge stopped")
	})
}

// handleSnapshot publishes entity state for every device in the snapshot
// and marks devices that vanished from it unavailable.
// Called by the coordinator after each successful poll cycle.
func (b *Bridge) handleSnapshot(snap fairland.Snapshot) {
	seen := make(map[string]struct{}, len(snap))

	for _, d := range snap {
		seen[d.ID] = struct{}{}

		b.publishEntityState(d.ID, "climate", climateEntityState(d))
		b.publishEntityState(d.ID, "power", powerEntityState(d))

		for entity, state := range numberEntityStates(d) {
			b.publishEntityState(d.ID, entity, state)
		}
		for entity, state := range sensorEntityStates(d) {
			b.publishEntityState(d.ID, entity, state)
		}

		if err := b.mqtt.Publish(AvailabilityTopic(d.ID), []byte(availabilityOnline), 1, true); err != nil {
			b.logError("failed to publish availability", err)
		}
	}

	for _, id := range b.swapKnownDevices(seen) {
		b.logInfo("device missing from poll, marking unavailable", "device_id", id)
		if err := b.mqtt.Publish(AvailabilityTopic(id), []byte(availabilityOffline), 1, true); err != nil {
			b.logError("failed to publish availability", err)
		}
	}
}

// swapKnownDevices records the device IDs of the current snapshot and
// returns the IDs that were present last cycle but are now gone.
func (b *Bridge) swapKnownDevices(seen map[string]struct{}) []string {
	b.knownMu.Lock()
	defer b.knownMu.Unlock()

	var gone []string
	for id := range b.knownDevices {
		if _, ok := seen[id]; !ok {
			gone = append(gone, id)
		}
	}
	b.knownDevices = seen
	return gone
}

// publishEntityState publishes a retained state message if the state
// changed since the last publish.
func (b *Bridge) publishEntityState(deviceID, entity string, state map[string]any) {
	if state == nil {
		return
	}
	if b.stateUnchanged(deviceID, entity, state) {
		return
	}

	msg := NewStateMessage(deviceID, entity, state)
	payload, err := json.Marshal(msg)
	if err != nil {
		b.logError("failed to marshal state", err)
		return
	}

	if err := b.mqtt.Publish(StateTopic(deviceID, entity), payload, 1, true); err != nil {
		b.logError("failed to publish state", err)
		return
	}

	b.statsMu.Lock()
	b.stats.StatesPublished++
	b.statsMu.Unlock()
}

// stateUnchanged checks if the new state matches the cached state.
// Returns true if unchanged (should skip publish).
func (b *Bridge) stateUnchanged(deviceID, entity string, state map[string]any) bool {
	key := deviceID + "/" + entity

	b.stateCacheMu.Lock()
	defer b.stateCacheMu.Unlock()

	if cached, ok := b.stateCache[key]; ok && reflect.DeepEqual(cached, state) {
		return true
	}

	b.stateCache[key] = state
	return false
}

// ClearStateCache removes all entries from the state cache.
// The next snapshot republishes every entity.
func (b *Bridge) ClearStateCache() {
	b.stateCacheMu.Lock()
	defer b.stateCacheMu.Unlock()

	b.stateCache = make(map[string]map[string]any)
}

// handleMQTTMessage routes incoming command messages.
func (b *Bridge) handleMQTTMessage(topic string, payload []byte) {
	deviceID, entity, err := ParseCommandTopic(topic)
	if err != nil {
		b.logError("invalid command topic", err)
		return
	}

	var cmd CommandMessage
	if err := json.Unmarshal(payload, &cmd); err != nil {
		b.logError("failed to parse command", err)
		return
	}

	// The topic is authoritative for routing
	cmd.DeviceID = deviceID
	cmd.Entity = entity

	b.statsMu.Lock()
	b.stats.CommandsReceived++
	b.statsMu.Unlock()

	b.logInfo("received command",
		"command_id", cmd.ID,
		"device_id", cmd.DeviceID,
		"entity", cmd.Entity,
		"command", cmd.Command)

	device, ok := b.source.Snapshot().Device(cmd.DeviceID)
	if !ok {
		b.publishAckError(cmd, ErrCodeUnknownDevice,
			fmt.Sprintf("device %s not found", cmd.DeviceID))
		return
	}

	applied := make(map[string]any)
	if err := b.executeCommand(cmd, device, applied); err != nil {
		// Error ack already sent by the entity handler
		b.logError("command execution failed", err)
		return
	}

	b.publishAck(cmd, AckAccepted)

	// The cloud accepted the write, so reflect it on the state topics
	// immediately instead of waiting for the next poll to confirm it.
	b.publishOptimisticState(device, applied)

	// Poll immediately so the confirmed state lands fast
	b.source.RequestRefresh()
}

// executeCommand dispatches a command to the entity handler. Successful
// data point writes are recorded in applied, keyed by data point ID.
func (b *Bridge) executeCommand(cmd CommandMessage, device fairland.Device, applied map[string]any) error {
	ctx, cancel := context.WithTimeout(b.ctx, commandTimeout)
	defer cancel()

	switch {
	case cmd.Entity == "climate":
		return b.executeClimate(ctx, cmd, device, applied)
	case cmd.Entity == "power":
		return b.executePower(ctx, cmd, applied)
	case strings.HasPrefix(cmd.Entity, "number-"):
		return b.executeNumber(ctx, cmd, device, applied)
	default:
		b.publishAckError(cmd, ErrCodeUnknownEntity,
			fmt.Sprintf("entity %s is not commandable", cmd.Entity))
		return fmt.Errorf("%w: %s", ErrUnknownEntity, cmd.Entity)
	}
}

// writeDataPoint sends a single data point write to the vendor cloud and
// publishes an error ack on failure. Accepted writes are recorded in
// applied for the optimistic state publish.
func (b *Bridge) writeDataPoint(ctx context.Context, cmd CommandMessage, dpID string, value any, applied map[string]any) error {
	if err := b.commander.SetDataPoint(ctx, cmd.DeviceID, dpID, value); err != nil {
		b.publishAckError(cmd, writeErrorCode(err),
			fmt.Sprintf("write dp %s failed: %v", dpID, err))
		return fmt.Errorf("%w: dp %s: %v", ErrWriteFailed, dpID, err)
	}
	applied[dpID] = value
	return nil
}

// publishOptimisticState re-derives entity state with the written values
// overlaid on the snapshot and publishes any changes, so the retained
// topics track a successful command before the next poll confirms it.
func (b *Bridge) publishOptimisticState(device fairland.Device, applied map[string]any) {
	if len(applied) == 0 {
		return
	}

	d := overlayWrites(device, applied)
	b.publishEntityState(d.ID, "climate", climateEntityState(d))
	b.publishEntityState(d.ID, "power", powerEntityState(d))
	for entity, state := range numberEntityStates(d) {
		b.publishEntityState(d.ID, entity, state)
	}
}

// overlayWrites returns a copy of the device with the written values
// replacing its data point values. The snapshot itself is never mutated.
func overlayWrites(device fairland.Device, applied map[string]any) fairland.Device {
	d := device
	d.DataPoints = make([]fairland.DataPoint, len(device.DataPoints))
	copy(d.DataPoints, device.DataPoints)

	for dpID, value := range applied {
		raw, err := json.Marshal(value)
		if err != nil {
			continue
		}
		replaced := false
		for i := range d.DataPoints {
			if d.DataPoints[i].ID == dpID {
				d.DataPoints[i].Value = raw
				replaced = true
				break
			}
		}
		if !replaced {
			d.DataPoints = append(d.DataPoints, fairland.DataPoint{
				ID:    dpID,
				Value: raw,
				Mode:  "rw",
			})
		}
	}
	return d
}

// writeErrorCode maps a cloud write error to an ack error code.
func writeErrorCode(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return ErrCodeTimeout
	case errors.Is(err, fairland.ErrAuthentication):
		return ErrCodeAuthFailed
	case errors.Is(err, fairland.ErrCommunication):
		return ErrCodeCloudUnreachable
	default:
		return ErrCodeBridgeError
	}
}

// publishAck publishes a command acknowledgment.
func (b *Bridge) publishAck(cmd CommandMessage, status AckStatus) {
	ack := NewAckMessage(cmd, status)

	payload, err := json.Marshal(ack)
	if err != nil {
		b.logError("failed to marshal ack", err)
		return
	}

	if err := b.mqtt.Publish(AckTopic(cmd.DeviceID, cmd.Entity), payload, 1, false); err != nil {
		b.logError("failed to publish ack", err)
	}
}

// publishAckError publishes a failed command acknowledgment.
func (b *Bridge) publishAckError(cmd CommandMessage, code, message string) {
	b.statsMu.Lock()
	b.stats.CommandsFailed++
	b.statsMu.Unlock()

	ack := NewAckError(cmd, code, message)

	payload, err := json.Marshal(ack)
	if err != nil {
		b.logError("failed to marshal ack error", err)
		return
	}

	if err := b.mqtt.Publish(AckTopic(cmd.DeviceID, cmd.Entity), payload, 1, false); err != nil {
		b.logError("failed to publish ack error", err)
	}

	b.logError("command failed",
		fmt.Errorf("code=%s message=%s", code, message))
}

// Statistics returns a copy of the operational counters, merged with the
// poll counters from the state source.
func (b *Bridge) Statistics() BridgeStatistics {
	b.statsMu.Lock()
	stats := b.stats
	b.statsMu.Unlock()

	m := b.source.Metrics()
	stats.PollCycles = m.Cycles
	stats.PollFailures = m.Failures

	return stats
}

// SetLogger sets the logger for the bridge.
func (b *Bridge) SetLogger(logger Logger) {
	b.loggerMu.Lock()
	b.logger = logger
	b.loggerMu.Unlock()

	if b.health != nil {
		b.health.SetLogger(logger)
	}
}

// logInfo logs an info message if logger is set.
func (b *Bridge) logInfo(msg string, keysAndValues ...any) {
	b.loggerMu.RLock()
	logger := b.logger
	b.loggerMu.RUnlock()

	if logger != nil {
		logger.Info(msg, keysAndValues...)
	}
}

// logError logs an error message if logger is set.
func (b *Bridge) logError(msg string, err error) {
	b.loggerMu.RLock()
	logger := b.logger
	b.loggerMu.RUnlock()

	if logger != nil {
		logger.Error(msg, "error", err)
	}
}

// BridgeMetrics contains metrics data for status reporting.
type BridgeMetrics struct {
	Connected        bool
	Status           string
	PollCycles       uint64
	PollFailures     uint64
	CommandsReceived uint64
	StatesPublished  uint64
	DevicesManaged   int
}

// GetMetrics returns current bridge metrics.
func (b *Bridge) GetMetrics() BridgeMetrics {
	stats := b.Statistics()

	connected := b.mqtt.IsConnected()
	status := "disconnected"
	if connected {
		status = "healthy"
		if !b.source.LastUpdateSuccess() {
			status = "degraded"
		}
	}

	return BridgeMetrics{
		Connected:        connected,
		Status:           status,
		PollCycles:       stats.PollCycles,
		PollFailures:     stats.PollFailures,
		CommandsReceived: stats.CommandsReceived,
		StatesPublished:  stats.StatesPublished,
		DevicesManaged:   len(b.source.Snapshot()),
	}
}
