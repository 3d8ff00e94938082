package bridge

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"

	"github.com/nerrad567/fairland-bridge/internal/fairland"
)

// MockMQTTClient implements MQTTClient for testing.
type MockMQTTClient struct {
	mu            sync.Mutex
	published     []mockPublish
	subscriptions []mockSubscription
	connected     bool
	handlers      map[string]func(topic string, payload []byte)
}

type mockPublish struct {
	Topic    string
	Payload  []byte
	QoS      byte
	Retained bool
}

type mockSubscription struct {
	Topic string
	QoS   byte
}

func NewMockMQTTClient() *MockMQTTClient {
	return &MockMQTTClient{
		connected: true,
		handlers:  make(map[string]func(topic string, payload []byte)),
	}
}

func (m *MockMQTTClient) Publish(topic string, payload []byte, qos byte, retained bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published = append(m.published, mockPublish{
		Topic:    topic,
		Payload:  payload,
		QoS:      qos,
		Retained: retained,
	})
	return nil
}

func (m *MockMQTTClient) Subscribe(topic string, qos byte, handler func(topic string, payload []byte)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscriptions = append(m.subscriptions, mockSubscription{Topic: topic, QoS: qos})
	m.handlers[topic] = handler
	return nil
}

func (m *MockMQTTClient) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

func (m *MockMQTTClient) GetPublished() []mockPublish {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.published
}

func (m *MockMQTTClient) GetSubscriptions() []mockSubscription {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.subscriptions
}

func (m *MockMQTTClient) ClearPublished() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published = nil
}

// SimulateMessage simulates receiving an MQTT message on a topic.
// Handlers are registered under wildcard patterns, so every handler is
// invoked with the concrete topic.
func (m *MockMQTTClient) SimulateMessage(topic string, payload []byte) {
	m.mu.Lock()
	handlers := make([]func(string, []byte), 0, len(m.handlers))
	for _, h := range m.handlers {
		handlers = append(handlers, h)
	}
	m.mu.Unlock()
	for _, h := range handlers {
		h(topic, payload)
	}
}

// MockCommander implements Commander for testing.
type MockCommander struct {
	mu       sync.Mutex
	writes   []mockWrite
	writeErr error
}

type mockWrite struct {
	DeviceID string
	DPID     string
	Value    any
}

func (m *MockCommander) SetDataPoint(_ context.Context, deviceID, dpID string, value any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.writeErr != nil {
		return m.writeErr
	}
	m.writes = append(m.writes, mockWrite{DeviceID: deviceID, DPID: dpID, Value: value})
	return nil
}

func (m *MockCommander) GetWrites() []mockWrite {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}

// MockSource implements StateSource for testing.
type MockSource struct {
	mu        sync.Mutex
	snapshot  fairland.Snapshot
	success   bool
	metrics   fairland.CoordinatorMetrics
	listeners []func(fairland.Snapshot)
	refreshes int
}

func NewMockSource(snap fairland.Snapshot) *MockSource {
	return &MockSource{snapshot: snap, success: true}
}

func (m *MockSource) Snapshot() fairland.Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshot
}

func (m *MockSource) LastUpdateSuccess() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.success
}

func (m *MockSource) Metrics() fairland.CoordinatorMetrics {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.metrics.Devices = len(m.snapshot)
	return m.metrics
}

func (m *MockSource) AddListener(fn func(fairland.Snapshot)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, fn)
	return func() {}
}

func (m *MockSource) RequestRefresh() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.refreshes++
}

func (m *MockSource) GetRefreshes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.refreshes
}

// Notify delivers a snapshot to registered listeners, like a poll cycle.
func (m *MockSource) Notify(snap fairland.Snapshot) {
	m.mu.Lock()
	m.snapshot = snap
	listeners := append([]func(fairland.Snapshot){}, m.listeners...)
	m.mu.Unlock()
	for _, fn := range listeners {
		fn(snap)
	}
}

// =============================================================================
// Test Fixtures
// =============================================================================

func rawDP(id, value, mode, property string) fairland.DataPoint {
	return fairland.DataPoint{
		ID:       id,
		Value:    json.RawMessage(value),
		Mode:     mode,
		Property: property,
	}
}

func testDevice(power, mode string) fairland.Device {
	return fairland.Device{
		ID:           "hp-1",
		Name:         "Pool",
		CategoryCode: fairland.CategoryHeatPump,
		DataPoints: []fairland.DataPoint{
			rawDP(fairland.DPPower, power, "rw", ""),
			rawDP(fairland.DPPresetMode, "1", "rw", `{"0":"Silent","1":"Smart","2":"Turbo"}`),
			rawDP(fairland.DPCurrentTemp, "24", "ro", ""),
			rawDP(fairland.DPHVACMode, mode, "rw", ""),
			rawDP(fairland.DPTargetTemp, "28", "rw", ""),
			rawDP(fairland.DPActionState, "1", "ro", ""),
			rawDP("117", "30", "rw", ""),
			rawDP("130", "18.5", "ro", ""),
		},
	}
}

type testBridge struct {
	bridge    *Bridge
	mqtt      *MockMQTTClient
	commander *MockCommander
	source    *MockSource
}

func newTestBridge(t *testing.T, snap fairland.Snapshot) *testBridge {
	t.Helper()

	mqtt := NewMockMQTTClient()
	commander := &MockCommander{}
	source := NewMockSource(snap)

	b, err := NewBridge(BridgeOptions{
		BridgeID:   "fairland",
		Version:    "1.0.0",
		MQTTClient: mqtt,
		Commander:  commander,
		Source:     source,
	})
	if err != nil {
		t.Fatalf("NewBridge() error = %v", err)
	}

	if err := b.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(b.Stop)

	mqtt.ClearPublished()
	return &testBridge{bridge: b, mqtt: mqtt, commander: commander, source: source}
}

func (tb *testBridge) sendCommand(t *testing.T, entity, command string, params map[string]any) {
	t.Helper()

	cmd := CommandMessage{
		ID:         "cmd-1",
		Command:    command,
		Parameters: params,
	}
	payload, err := json.Marshal(&cmd)
	if err != nil {
		t.Fatalf("marshal command: %v", err)
	}
	tb.mqtt.SimulateMessage(CommandTopic("hp-1", entity), payload)
}

// lastState returns the most recent state payload published for an
// entity of hp-1, or nil when none was published.
func (tb *testBridge) lastState(t *testing.T, entity string) map[string]any {
	t.Helper()

	var state map[string]any
	for _, pub := range tb.mqtt.GetPublished() {
		if pub.Topic != StateTopic("hp-1", entity) {
			continue
		}
		var msg StateMessage
		if err := json.Unmarshal(pub.Payload, &msg); err != nil {
			t.Fatalf("unmarshal state: %v", err)
		}
		state = msg.State
	}
	return state
}

func (tb *testBridge) lastAck(t *testing.T) AckMessage {
	t.Helper()

	for _, pub := range tb.mqtt.GetPublished() {
		if strings.HasPrefix(pub.Topic, TopicPrefix+"/ack/") {
			var ack AckMessage
			if err := json.Unmarshal(pub.Payload, &ack); err != nil {
				t.Fatalf("unmarshal ack: %v", err)
			}
			return ack
		}
	}
	t.Fatal("no ack published")
	return AckMessage{}
}

// =============================================================================
// Constructor Tests
// =============================================================================

func TestNewBridge_Validation(t *testing.T) {
	mqtt := NewMockMQTTClient()
	commander := &MockCommander{}
	source := NewMockSource(nil)

	tests := []struct {
		name string
		opts BridgeOptions
	}{
		{"missing bridge ID", BridgeOptions{MQTTClient: mqtt, Commander: commander, Source: source}},
		{"missing MQTT client", BridgeOptions{BridgeID: "fairland", Commander: commander, Source: source}},
		{"missing commander", BridgeOptions{BridgeID: "fairland", MQTTClient: mqtt, Source: source}},
		{"missing source", BridgeOptions{BridgeID: "fairland", MQTTClient: mqtt, Commander: commander}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewBridge(tt.opts); err == nil {
				t.Fatal("NewBridge() expected error")
			}
		})
	}
}

func TestStart_SubscribesToCommands(t *testing.T) {
	tb := newTestBridge(t, nil)

	subs := tb.mqtt.GetSubscriptions()
	if len(subs) != 1 {
		t.Fatalf("got %d subscriptions, want 1", len(subs))
	}
	if subs[0].Topic != "fairland/command/#" || subs[0].QoS != 1 {
		t.Errorf("subscription = %+v", subs[0])
	}
}

// =============================================================================
// Snapshot Publishing Tests
// =============================================================================

func TestSnapshot_PublishesEntityStates(t *testing.T) {
	tb := newTestBridge(t, nil)

	tb.source.Notify(fairland.Snapshot{testDevice("true", "1")})

	published := make(map[string]mockPublish)
	for _, pub := range tb.mqtt.GetPublished() {
		published[pub.Topic] = pub
	}

	climate, ok := published[StateTopic("hp-1", "climate")]
	if !ok {
		t.Fatal("climate state not published")
	}
	if !climate.Retained || climate.QoS != 1 {
		t.Errorf("climate publish = retained %v qos %d, want retained qos 1",
			climate.Retained, climate.QoS)
	}

	var msg StateMessage
	if err := json.Unmarshal(climate.Payload, &msg); err != nil {
		t.Fatalf("unmarshal climate state: %v", err)
	}
	if msg.State["hvac_mode"] != "heat" || msg.State["hvac_action"] != "heating" {
		t.Errorf("climate state = %v", msg.State)
	}
	if msg.State["target_temperature"] != 28.0 {
		t.Errorf("target_temperature = %v, want 28", msg.State["target_temperature"])
	}

	if _, ok := published[StateTopic("hp-1", "power")]; !ok {
		t.Error("power state not published")
	}
	if _, ok := published[StateTopic("hp-1", "sensor-103")]; !ok {
		t.Error("sensor-103 state not published")
	}
	if _, ok := published[StateTopic("hp-1", "number-117")]; !ok {
		t.Error("number-117 state not published")
	}

	avail, ok := published[AvailabilityTopic("hp-1")]
	if !ok {
		t.Fatal("availability not published")
	}
	if string(avail.Payload) != "online" || !avail.Retained {
		t.Errorf("availability = %q retained %v", avail.Payload, avail.Retained)
	}
}

func TestSnapshot_SkipsUnchangedState(t *testing.T) {
	tb := newTestBridge(t, nil)

	device := testDevice("true", "1")
	tb.source.Notify(fairland.Snapshot{device})
	first := len(tb.mqtt.GetPublished())

	tb.mqtt.ClearPublished()
	tb.source.Notify(fairland.Snapshot{device})

	for _, pub := range tb.mqtt.GetPublished() {
		if strings.HasPrefix(pub.Topic, TopicPrefix+"/state/") {
			t.Errorf("unchanged state republished on %s", pub.Topic)
		}
	}
	if first == 0 {
		t.Error("first snapshot should have published states")
	}
}

func TestSnapshot_RepublishesAfterCacheClear(t *testing.T) {
	tb := newTestBridge(t, nil)

	device := testDevice("true", "1")
	tb.source.Notify(fairland.Snapshot{device})

	tb.bridge.ClearStateCache()
	tb.mqtt.ClearPublished()
	tb.source.Notify(fairland.Snapshot{device})

	found := false
	for _, pub := range tb.mqtt.GetPublished() {
		if pub.Topic == StateTopic("hp-1", "climate") {
			found = true
		}
	}
	if !found {
		t.Error("state not republished after cache clear")
	}
}

func TestSnapshot_MissingDevice_MarkedOffline(t *testing.T) {
	tb := newTestBridge(t, nil)

	tb.source.Notify(fairland.Snapshot{testDevice("true", "1")})
	tb.mqtt.ClearPublished()
	tb.source.Notify(fairland.Snapshot{})

	found := false
	for _, pub := range tb.mqtt.GetPublished() {
		if pub.Topic == AvailabilityTopic("hp-1") && string(pub.Payload) == "offline" {
			found = true
			if !pub.Retained {
				t.Error("offline availability should be retained")
			}
		}
	}
	if !found {
		t.Error("device dropped from the snapshot should be marked offline")
	}
}

func TestSnapshot_ReturningDevice_BackOnline(t *testing.T) {
	tb := newTestBridge(t, nil)

	device := testDevice("true", "1")
	tb.source.Notify(fairland.Snapshot{device})
	tb.source.Notify(fairland.Snapshot{})
	tb.mqtt.ClearPublished()
	tb.source.Notify(fairland.Snapshot{device})

	var last string
	for _, pub := range tb.mqtt.GetPublished() {
		if pub.Topic == AvailabilityTopic("hp-1") {
			last = string(pub.Payload)
		}
	}
	if last != "online" {
		t.Errorf("availability = %q, want online after the device returns", last)
	}
}

func TestStart_PublishesPersistedSnapshot(t *testing.T) {
	snap := fairland.Snapshot{testDevice("false", "1")}

	mqtt := NewMockMQTTClient()
	b, err := NewBridge(BridgeOptions{
		BridgeID:   "fairland",
		MQTTClient: mqtt,
		Commander:  &MockCommander{},
		Source:     NewMockSource(snap),
	})
	if err != nil {
		t.Fatalf("NewBridge() error = %v", err)
	}
	if err := b.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer b.Stop()

	found := false
	for _, pub := range mqtt.GetPublished() {
		if pub.Topic == StateTopic("hp-1", "climate") {
			found = true
		}
	}
	if !found {
		t.Error("persisted snapshot should be published at startup")
	}
}

// =============================================================================
// Climate Command Tests
// =============================================================================

func TestCommand_ClimateTurnOn(t *testing.T) {
	tb := newTestBridge(t, fairland.Snapshot{testDevice("false", "1")})

	tb.sendCommand(t, "climate", "turn_on", nil)

	writes := tb.commander.GetWrites()
	if len(writes) != 1 {
		t.Fatalf("got %d writes, want 1", len(writes))
	}
	if writes[0].DPID != fairland.DPPower || writes[0].Value != true {
		t.Errorf("write = %+v", writes[0])
	}

	ack := tb.lastAck(t)
	if ack.Status != AckAccepted || ack.CommandID != "cmd-1" {
		t.Errorf("ack = %+v", ack)
	}

	if tb.source.GetRefreshes() != 1 {
		t.Error("successful command should request an immediate poll")
	}
}

func TestCommand_SetHVACModeWhileOff_PowersOnFirst(t *testing.T) {
	tb := newTestBridge(t, fairland.Snapshot{testDevice("false", "0")})

	tb.sendCommand(t, "climate", "set_hvac_mode", map[string]any{"hvac_mode": "heat"})

	writes := tb.commander.GetWrites()
	if len(writes) != 2 {
		t.Fatalf("got %d writes, want 2 (power then mode)", len(writes))
	}
	if writes[0].DPID != fairland.DPPower || writes[0].Value != true {
		t.Errorf("first write = %+v, want power on", writes[0])
	}
	if writes[1].DPID != fairland.DPHVACMode || writes[1].Value != fairland.ModeHeat {
		t.Errorf("second write = %+v, want mode heat", writes[1])
	}
}

func TestCommand_SetHVACModeWhileOn_WritesModeOnly(t *testing.T) {
	tb := newTestBridge(t, fairland.Snapshot{testDevice("true", "1")})

	tb.sendCommand(t, "climate", "set_hvac_mode", map[string]any{"hvac_mode": "cool"})

	writes := tb.commander.GetWrites()
	if len(writes) != 1 {
		t.Fatalf("got %d writes, want 1", len(writes))
	}
	if writes[0].DPID != fairland.DPHVACMode || writes[0].Value != fairland.ModeCool {
		t.Errorf("write = %+v", writes[0])
	}
}

func TestCommand_SetHVACModeOff_CutsPower(t *testing.T) {
	tb := newTestBridge(t, fairland.Snapshot{testDevice("true", "1")})

	tb.sendCommand(t, "climate", "set_hvac_mode", map[string]any{"hvac_mode": "off"})

	writes := tb.commander.GetWrites()
	if len(writes) != 1 || writes[0].DPID != fairland.DPPower || writes[0].Value != false {
		t.Errorf("writes = %+v, want single power off", writes)
	}
}

func TestCommand_SetHVACModeOff_PublishesOptimisticState(t *testing.T) {
	tb := newTestBridge(t, fairland.Snapshot{testDevice("true", "1")})

	tb.sendCommand(t, "climate", "set_hvac_mode", map[string]any{"hvac_mode": "off"})

	climate := tb.lastState(t, "climate")
	if climate == nil {
		t.Fatal("no climate state published after accepted power-off command")
	}
	if climate["hvac_mode"] != "off" || climate["power"] != false {
		t.Errorf("climate state = %v, want hvac_mode off and power false", climate)
	}
	if climate["hvac_action"] != "off" {
		t.Errorf("hvac_action = %v, want off", climate["hvac_action"])
	}

	power := tb.lastState(t, "power")
	if power == nil || power["on"] != false {
		t.Errorf("power state = %v, want on false", power)
	}
}

func TestCommand_SetTemperature_PublishesOptimisticState(t *testing.T) {
	tb := newTestBridge(t, fairland.Snapshot{testDevice("true", "1")})

	tb.sendCommand(t, "climate", "set_temperature", map[string]any{"temperature": 31.0})

	climate := tb.lastState(t, "climate")
	if climate == nil {
		t.Fatal("no climate state published after accepted setpoint command")
	}
	if climate["target_temperature"] != 31.0 {
		t.Errorf("target_temperature = %v, want 31", climate["target_temperature"])
	}
	// The rest of the state still comes from the snapshot.
	if climate["hvac_mode"] != "heat" {
		t.Errorf("hvac_mode = %v, want heat", climate["hvac_mode"])
	}
}

func TestCommand_SetTemperature_RoundsAndClamps(t *testing.T) {
	tests := []struct {
		name      string
		requested float64
		want      int
	}{
		{"rounds to step", 28.4, 28},
		{"rounds up", 28.6, 29},
		{"clamps high", 95, 40},
		{"clamps low", 2, 8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tb := newTestBridge(t, fairland.Snapshot{testDevice("true", "1")})

			tb.sendCommand(t, "climate", "set_temperature",
				map[string]any{"temperature": tt.requested})

			writes := tb.commander.GetWrites()
			if len(writes) != 1 {
				t.Fatalf("got %d writes, want 1", len(writes))
			}
			if writes[0].DPID != fairland.DPTargetTemp || writes[0].Value != tt.want {
				t.Errorf("write = %+v, want dp %s = %d", writes[0], fairland.DPTargetTemp, tt.want)
			}
		})
	}
}

func TestCommand_SetPresetMode(t *testing.T) {
	tb := newTestBridge(t, fairland.Snapshot{testDevice("true", "1")})

	tb.sendCommand(t, "climate", "set_preset_mode", map[string]any{"preset_mode": "Turbo"})

	writes := tb.commander.GetWrites()
	if len(writes) != 1 || writes[0].DPID != fairland.DPPresetMode || writes[0].Value != 2 {
		t.Errorf("writes = %+v, want preset code 2", writes)
	}
}

func TestCommand_SetPresetMode_UnknownPreset(t *testing.T) {
	tb := newTestBridge(t, fairland.Snapshot{testDevice("true", "1")})

	tb.sendCommand(t, "climate", "set_preset_mode", map[string]any{"preset_mode": "Ludicrous"})

	if len(tb.commander.GetWrites()) != 0 {
		t.Error("unknown preset should not reach the cloud")
	}
	ack := tb.lastAck(t)
	if ack.Status != AckFailed || ack.Error == nil || ack.Error.Code != ErrCodeInvalidParameters {
		t.Errorf("ack = %+v", ack)
	}
}

func TestCommand_MissingParameter(t *testing.T) {
	tb := newTestBridge(t, fairland.Snapshot{testDevice("true", "1")})

	tb.sendCommand(t, "climate", "set_temperature", nil)

	ack := tb.lastAck(t)
	if ack.Status != AckFailed || ack.Error == nil || ack.Error.Code != ErrCodeInvalidParameters {
		t.Errorf("ack = %+v", ack)
	}
}

// =============================================================================
// Switch and Number Command Tests
// =============================================================================

func TestCommand_PowerSwitch(t *testing.T) {
	tb := newTestBridge(t, fairland.Snapshot{testDevice("true", "1")})

	tb.sendCommand(t, "power", "turn_off", nil)

	writes := tb.commander.GetWrites()
	if len(writes) != 1 || writes[0].DPID != fairland.DPPower || writes[0].Value != false {
		t.Errorf("writes = %+v", writes)
	}
}

func TestCommand_NumberSetValue_RoundsToStep(t *testing.T) {
	tb := newTestBridge(t, fairland.Snapshot{testDevice("true", "1")})

	// dp117 has step 5, so 53 rounds to 55.
	tb.sendCommand(t, "number-117", "set_value", map[string]any{"value": 53.0})

	writes := tb.commander.GetWrites()
	if len(writes) != 1 || writes[0].DPID != "117" || writes[0].Value != 55 {
		t.Errorf("writes = %+v, want dp 117 = 55", writes)
	}

	state := tb.lastState(t, "number-117")
	if state == nil {
		t.Fatal("no number state published after accepted set_value command")
	}
	if state["value"] != 55.0 {
		t.Errorf("value = %v, want 55", state["value"])
	}
}

func TestCommand_NumberSetValue_ReadOnlyPoint(t *testing.T) {
	device := testDevice("true", "1")
	device.DataPoints = append(device.DataPoints, rawDP("118", "50", "ro", ""))
	tb := newTestBridge(t, fairland.Snapshot{device})

	tb.sendCommand(t, "number-118", "set_value", map[string]any{"value": 60.0})

	if len(tb.commander.GetWrites()) != 0 {
		t.Error("read-only point should not be written")
	}
	ack := tb.lastAck(t)
	if ack.Error == nil || ack.Error.Code != ErrCodeNotWritable {
		t.Errorf("ack = %+v", ack)
	}
}

// =============================================================================
// Command Error Tests
// =============================================================================

func TestCommand_UnknownDevice(t *testing.T) {
	tb := newTestBridge(t, fairland.Snapshot{testDevice("true", "1")})

	cmd := CommandMessage{ID: "cmd-1", Command: "turn_on"}
	payload, _ := json.Marshal(&cmd)
	tb.mqtt.SimulateMessage(CommandTopic("ghost", "climate"), payload)

	ack := tb.lastAck(t)
	if ack.DeviceID != "ghost" || ack.Error == nil || ack.Error.Code != ErrCodeUnknownDevice {
		t.Errorf("ack = %+v", ack)
	}
}

func TestCommand_UnknownEntity(t *testing.T) {
	tb := newTestBridge(t, fairland.Snapshot{testDevice("true", "1")})

	tb.sendCommand(t, "sensor-103", "set_value", map[string]any{"value": 1.0})

	ack := tb.lastAck(t)
	if ack.Error == nil || ack.Error.Code != ErrCodeUnknownEntity {
		t.Errorf("ack = %+v", ack)
	}
}

func TestCommand_UnknownCommand(t *testing.T) {
	tb := newTestBridge(t, fairland.Snapshot{testDevice("true", "1")})

	tb.sendCommand(t, "climate", "defrost", nil)

	ack := tb.lastAck(t)
	if ack.Error == nil || ack.Error.Code != ErrCodeInvalidCommand {
		t.Errorf("ack = %+v", ack)
	}
}

func TestCommand_CloudWriteFailure(t *testing.T) {
	tb := newTestBridge(t, fairland.Snapshot{testDevice("true", "1")})
	tb.commander.writeErr = fairland.ErrCommunication

	tb.sendCommand(t, "climate", "turn_on", nil)

	ack := tb.lastAck(t)
	if ack.Status != AckFailed || ack.Error == nil || ack.Error.Code != ErrCodeCloudUnreachable {
		t.Errorf("ack = %+v", ack)
	}
	if tb.source.GetRefreshes() != 0 {
		t.Error("failed command should not request a poll")
	}
	for _, pub := range tb.mqtt.GetPublished() {
		if strings.HasPrefix(pub.Topic, TopicPrefix+"/state/") {
			t.Errorf("failed command must not publish state on %s", pub.Topic)
		}
	}
}

func TestCommand_AuthFailure(t *testing.T) {
	tb := newTestBridge(t, fairland.Snapshot{testDevice("true", "1")})
	tb.commander.writeErr = fairland.ErrAuthentication

	tb.sendCommand(t, "climate", "turn_on", nil)

	ack := tb.lastAck(t)
	if ack.Error == nil || ack.Error.Code != ErrCodeAuthFailed {
		t.Errorf("ack = %+v", ack)
	}
}

func TestCommand_MalformedPayload(t *testing.T) {
	tb := newTestBridge(t, fairland.Snapshot{testDevice("true", "1")})

	tb.mqtt.SimulateMessage(CommandTopic("hp-1", "climate"), []byte("{not json"))

	if len(tb.commander.GetWrites()) != 0 {
		t.Error("malformed payload should not reach the cloud")
	}
}

// =============================================================================
// Statistics and Shutdown Tests
// =============================================================================

func TestStatistics_TracksCommands(t *testing.T) {
	tb := newTestBridge(t, fairland.Snapshot{testDevice("true", "1")})

	tb.sendCommand(t, "climate", "turn_on", nil)
	tb.sendCommand(t, "climate", "defrost", nil)

	stats := tb.bridge.Statistics()
	if stats.CommandsReceived != 2 {
		t.Errorf("CommandsReceived = %d, want 2", stats.CommandsReceived)
	}
	if stats.CommandsFailed != 1 {
		t.Errorf("CommandsFailed = %d, want 1", stats.CommandsFailed)
	}
}

func TestGetMetrics(t *testing.T) {
	tb := newTestBridge(t, fairland.Snapshot{testDevice("true", "1")})

	m := tb.bridge.GetMetrics()
	if !m.Connected || m.Status != "healthy" {
		t.Errorf("metrics = %+v", m)
	}
	if m.DevicesManaged != 1 {
		t.Errorf("DevicesManaged = %d, want 1", m.DevicesManaged)
	}
}

func TestStop_PublishesOfflineAvailability(t *testing.T) {
	tb := newTestBridge(t, fairland.Snapshot{testDevice("true", "1")})

	tb.bridge.Stop()

	found := false
	for _, pub := range tb.mqtt.GetPublished() {
		if pub.Topic == AvailabilityTopic("hp-1") && string(pub.Payload) == "offline" {
			found = true
		}
	}
	if !found {
		t.Error("Stop() should publish offline availability")
	}
}

func TestStop_Idempotent(t *testing.T) {
	tb := newTestBridge(t, nil)

	tb.bridge.Stop()
	tb.bridge.Stop() // must not panic
}
