package fairland

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

// DeviceSource is the subset of the client the coordinator polls.
// Satisfied by *Client; tests substitute a fake.
type DeviceSource interface {
	DevicesInCourtyard(ctx context.Context, courtyardID string) ([]Device, error)
	DeviceDataPoints(ctx context.Context, deviceID string) ([]DataPoint, error)
}

// SnapshotStore persists the last good snapshot across restarts.
type SnapshotStore interface {
	SaveSnapshot(ctx context.Context, snap Snapshot) error
}

// TelemetrySink receives normalised sensor readings and derived climate
// state after each cycle. Satisfied by the influxdb client.
type TelemetrySink interface {
	WriteDeviceMetric(deviceID string, measurement string, value float64)
	WriteClimateState(deviceID string, currentTemp, targetTemp float64, action string)
}

// Logger is the optional logging interface used by the coordinator.
// Compatible with logging.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// CoordinatorOptions configures a Coordinator.
type CoordinatorOptions struct {
	// Source provides device listings and data points. Required.
	Source DeviceSource

	// CourtyardID selects the device group to poll. Required.
	CourtyardID string

	// Interval between poll cycles. Required, must be positive.
	Interval time.Duration

	// Initial seeds the snapshot before the first cycle, typically
	// loaded from the snapshot store. Optional.
	Initial Snapshot

	// Store persists each good snapshot. Optional.
	Store SnapshotStore

	// Telemetry receives sensor readings after each cycle. Optional.
	Telemetry TelemetrySink

	// Logger for cycle diagnostics. Optional.
	Logger Logger
}

// Coordinator polls the vendor cloud on a fixed interval and maintains
// an immutable snapshot of all heat pump devices in one courtyard.
//
// All polling happens on the single Run goroutine, so cycles never
// overlap. RequestRefresh schedules an extra cycle; concurrent requests
// collapse into one.
type Coordinator struct {
	source      DeviceSource
	courtyardID string
	interval    time.Duration
	store       SnapshotStore
	telemetry   TelemetrySink
	logger      Logger

	mu          sync.RWMutex
	snapshot    Snapshot
	lastSuccess bool
	lastCycle   time.Time
	cycles      uint64
	failures    uint64

	listenerMu   sync.Mutex
	listeners    map[int]func(Snapshot)
	nextListener int

	refreshCh chan struct{}
}

// CoordinatorMetrics exposes cycle counters for health reporting.
type CoordinatorMetrics struct {
	Cycles      uint64
	Failures    uint64
	LastCycle   time.Time
	LastSuccess bool
	Devices     int
}

// NewCoordinator creates a coordinator. Run must be called to start polling.
func NewCoordinator(opts CoordinatorOptions) (*Coordinator, error) {
	if opts.Source == nil {
		return nil, fmt.Errorf("coordinator: source is required")
	}
	if opts.CourtyardID == "" {
		return nil, fmt.Errorf("coordinator: courtyard ID is required")
	}
	if opts.Interval <= 0 {
		return nil, fmt.Errorf("coordinator: interval must be positive")
	}

	return &Coordinator{
		source:      opts.Source,
		courtyardID: opts.CourtyardID,
		interval:    opts.Interval,
		store:       opts.Store,
		telemetry:   opts.Telemetry,
		logger:      opts.Logger,
		snapshot:    opts.Initial,
		listeners:   make(map[int]func(Snapshot)),
		refreshCh:   make(chan struct{}, 1),
	}, nil
}

// Run polls until the context is cancelled. It performs an immediate
// first cycle, then one per interval, plus any requested refreshes.
func (c *Coordinator) Run(ctx context.Context) error {
	c.runCycle(ctx)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			c.runCycle(ctx)
		case <-c.refreshCh:
			c.runCycle(ctx)
		}
	}
}

// RequestRefresh schedules an extra poll cycle without blocking.
// Used after a successful command write so state converges quickly.
func (c *Coordinator) RequestRefresh() {
	select {
	case c.refreshCh <- struct{}{}:
	default:
	}
}

// Snapshot returns the current snapshot. The returned value is
// immutable; callers must not modify it.
func (c *Coordinator) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshot
}

// LastUpdateSuccess reports whether the most recent cycle's device
// listing succeeded. Per-device fetch failures do not count as a
// failed cycle; they carry forward old state instead.
func (c *Coordinator) LastUpdateSuccess() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastSuccess
}

// Metrics returns cycle counters for health reporting.
func (c *Coordinator) Metrics() CoordinatorMetrics {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return CoordinatorMetrics{
		Cycles:      c.cycles,
		Failures:    c.failures,
		LastCycle:   c.lastCycle,
		LastSuccess: c.lastSuccess,
		Devices:     len(c.snapshot),
	}
}

// AddListener registers a callback invoked synchronously from the Run
// goroutine after each successful cycle. The returned function removes
// the listener.
func (c *Coordinator) AddListener(fn func(Snapshot)) func() {
	c.listenerMu.Lock()
	id := c.nextListener
	c.nextListener++
	c.listeners[id] = fn
	c.listenerMu.Unlock()

	return func() {
		c.listenerMu.Lock()
		delete(c.listeners, id)
		c.listenerMu.Unlock()
	}
}

// runCycle performs one poll: list devices, fetch data points per
// device, merge, persist, publish telemetry, notify listeners.
func (c *Coordinator) runCycle(ctx context.Context) {
	started := time.Now()

	listed, err := c.source.DevicesInCourtyard(ctx, c.courtyardID)
	if err != nil {
		c.mu.Lock()
		c.cycles++
		c.failures++
		c.lastSuccess = false
		c.lastCycle = started
		c.mu.Unlock()
		c.logError("device listing failed", "error", err)
		return
	}

	// Only heat pumps are bridged.
	pumps := listed[:0:0]
	for _, d := range listed {
		if d.IsHeatPump() {
			pumps = append(pumps, d)
		}
	}

	fetched := make(map[string]FetchResult, len(pumps))
	for _, d := range pumps {
		points, err := c.source.DeviceDataPoints(ctx, d.ID)
		fetched[d.ID] = FetchResult{DataPoints: points, Err: err}
		if err != nil {
			c.logWarn("data point fetch failed, keeping previous state",
				"device_id", d.ID, "error", err)
		}
	}

	c.mu.Lock()
	next := Merge(c.snapshot, pumps, fetched)
	c.snapshot = next
	c.cycles++
	c.lastSuccess = true
	c.lastCycle = started
	c.mu.Unlock()

	if c.store != nil {
		if err := c.store.SaveSnapshot(ctx, next); err != nil {
			c.logWarn("snapshot persistence failed", "error", err)
		}
	}

	if c.telemetry != nil {
		c.publishTelemetry(next)
	}

	c.notify(next)

	c.logDebug("poll cycle complete",
		"devices", len(next),
		"duration", time.Since(started),
	)
}

// publishTelemetry writes every normalised sensor reading to the sink,
// plus one climate row per device so setpoint changes can be correlated
// with the running action.
func (c *Coordinator) publishTelemetry(snap Snapshot) {
	for _, d := range snap {
		for _, desc := range SensorDescriptors() {
			dp, ok := d.DataPoint(desc.ID)
			if !ok {
				continue
			}
			value, ok := NormalizeValue(dp, desc)
			if !ok {
				continue
			}
			c.telemetry.WriteDeviceMetric(d.ID, metricName(desc), value)
		}

		if st := DeriveClimate(d); st.HasCurrent && st.HasTarget {
			c.telemetry.WriteClimateState(d.ID, st.CurrentTemp, st.TargetTemp, st.Action)
		}
	}
}

// notify invokes all listeners with the new snapshot.
func (c *Coordinator) notify(snap Snapshot) {
	c.listenerMu.Lock()
	fns := make([]func(Snapshot), 0, len(c.listeners))
	for _, fn := range c.listeners {
		fns = append(fns, fn)
	}
	c.listenerMu.Unlock()

	for _, fn := range fns {
		fn(snap)
	}
}

// metricName converts a descriptor name to a measurement identifier,
// e.g. "Inlet Water Temperature" becomes "inlet_water_temperature".
func metricName(desc Descriptor) string {
	name := strings.ToLower(desc.Name)
	name = strings.ReplaceAll(name, " ", "_")
	name = strings.ReplaceAll(name, "-", "_")
	return name
}

func (c *Coordinator) logDebug(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Debug(msg, args...)
	}
}

func (c *Coordinator) logWarn(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Warn(msg, args...)
	}
}

func (c *Coordinator) logError(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Error(msg, args...)
	}
}
