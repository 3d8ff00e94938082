package bridge

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// MQTT message types exchanged between the home-automation platform and
// the Fairland bridge.

// CommandMessage is sent from the platform to the bridge to execute an
// entity command.
// Topic: fairland/command/{device_id}/{entity}
type CommandMessage struct {
	// ID uniquely identifies this command for correlation with acknowledgments.
	ID string `json:"id"`

	// Timestamp is when the command was issued (UTC, ISO8601).
	Timestamp time.Time `json:"timestamp"`

	// DeviceID is the vendor cloud device identifier.
	DeviceID string `json:"device_id"`

	// Entity is the entity the command targets (e.g., "climate", "power",
	// "number-117"). Filled from the topic if the payload omits it.
	Entity string `json:"entity,omitempty"`

	// Command is the command name (e.g., "turn_on", "set_temperature").
	Command string `json:"command"`

	// Parameters contains command-specific values.
	// Examples:
	//   {"temperature": 28} for set_temperature
	//   {"hvac_mode": "heat"} for set_hvac_mode
	//   {"value": 55} for set_value
	Parameters map[string]any `json:"parameters,omitempty"`

	// Source indicates where the command originated.
	// Values: "api", "automation", "voice", "scene"
	Source string `json:"source,omitempty"`
}

// AckStatus represents the acknowledgment status of a command.
type AckStatus string

const (
	// AckAccepted indicates the command was received and sent to the cloud.
	AckAccepted AckStatus = "accepted"

	// AckFailed indicates the command could not be executed.
	AckFailed AckStatus = "failed"

	// AckTimeout indicates the vendor cloud did not respond within the timeout.
	AckTimeout AckStatus = "timeout"
)

// AckMessage is sent from the bridge to acknowledge a command.
// Topic: fairland/ack/{device_id}/{entity}
type AckMessage struct {
	// CommandID is the ID from the original command.
	CommandID string `json:"command_id"`

	// Timestamp is when the acknowledgment was sent (UTC, ISO8601).
	Timestamp time.Time `json:"timestamp"`

	// DeviceID is the vendor cloud device identifier.
	DeviceID string `json:"device_id"`

	// Entity is the entity the command targeted.
	Entity string `json:"entity"`

	// Status indicates the acknowledgment status.
	Status AckStatus `json:"status"`

	// Error contains details if status is "failed" or "timeout".
	Error *AckError `json:"error,omitempty"`
}

// AckError contains error details for failed commands.
type AckError struct {
	// Code is the error code (e.g., "CLOUD_UNREACHABLE", "INVALID_COMMAND").
	Code string `json:"code"`

	// Message is a human-readable error description.
	Message string `json:"message"`
}

// Error codes for command failures.
const (
	ErrCodeCloudUnreachable  = "CLOUD_UNREACHABLE"
	ErrCodeAuthFailed        = "AUTH_FAILED"
	ErrCodeInvalidCommand    = "INVALID_COMMAND"
	ErrCodeInvalidParameters = "INVALID_PARAMETERS"
	ErrCodeUnknownDevice     = "UNKNOWN_DEVICE"
	ErrCodeUnknownEntity     = "UNKNOWN_ENTITY"
	ErrCodeNotWritable       = "NOT_WRITABLE"
	ErrCodeTimeout           = "TIMEOUT"
	ErrCodeBridgeError       = "BRIDGE_ERROR"
)

// StateMessage is sent from the bridge when entity state changes.
// Topic: fairland/state/{device_id}/{entity}
// QoS: 1, Retained: Yes
type StateMessage struct {
	// DeviceID is the vendor cloud device identifier.
	DeviceID string `json:"device_id"`

	// Entity is the entity this state belongs to.
	Entity string `json:"entity"`

	// Timestamp is when the state was observed (UTC, ISO8601).
	Timestamp time.Time `json:"timestamp"`

	// State contains the current entity state.
	// Structure depends on the entity:
	//   climate: {"power": true, "hvac_mode": "heat", "target_temperature": 28, ...}
	//   power:   {"on": true}
	//   sensor:  {"value": 21.5, "unit": "°C"}
	State map[string]any `json:"state"`
}

// HealthStatus represents the operational status of the bridge.
type HealthStatus string

const (
	// HealthHealthy indicates the bridge is operating normally.
	HealthHealthy HealthStatus = "healthy"

	// HealthDegraded indicates the bridge is operating with issues
	// (cloud polling failing or broker connection flapping).
	HealthDegraded HealthStatus = "degraded"

	// HealthOffline indicates the bridge is not connected (from LWT).
	HealthOffline HealthStatus = "offline"

	// HealthStarting indicates the bridge is starting up.
	HealthStarting HealthStatus = "starting"

	// HealthStopping indicates the bridge is shutting down.
	HealthStopping HealthStatus = "stopping"
)

// HealthMessage is sent from the bridge to report operational status.
// Topic: fairland/health/{bridge_id}
// QoS: 1, Retained: Yes
type HealthMessage struct {
	// Bridge is the bridge identifier.
	Bridge string `json:"bridge"`

	// Timestamp is when the health status was generated (UTC, ISO8601).
	Timestamp time.Time `json:"timestamp"`

	// Status indicates the current operational status.
	Status HealthStatus `json:"status"`

	// Version is the bridge software version.
	Version string `json:"version"`

	// UptimeSeconds is how long the bridge has been running.
	UptimeSeconds int64 `json:"uptime_seconds"`

	// Cloud contains vendor cloud polling details.
	Cloud *CloudStatus `json:"cloud,omitempty"`

	// Statistics contains operational metrics.
	Statistics *BridgeStatistics `json:"statistics,omitempty"`

	// DevicesManaged is the number of bridged devices.
	DevicesManaged int `json:"devices_managed"`

	// Reason explains the status (especially for offline/degraded).
	Reason string `json:"reason,omitempty"`
}

// CloudStatus describes the vendor cloud polling state.
type CloudStatus struct {
	// LastPollSuccess reports whether the most recent poll succeeded.
	LastPollSuccess bool `json:"last_poll_success"`

	// LastPoll is when the most recent poll cycle ran.
	LastPoll *time.Time `json:"last_poll,omitempty"`
}

// BridgeStatistics contains operational metrics.
type BridgeStatistics struct {
	// PollCycles is the total number of poll cycles run.
	PollCycles uint64 `json:"poll_cycles"`

	// PollFailures is the number of failed poll cycles.
	PollFailures uint64 `json:"poll_failures"`

	// CommandsReceived is the total number of commands received.
	CommandsReceived uint64 `json:"commands_received"`

	// CommandsFailed is the number of commands that failed.
	CommandsFailed uint64 `json:"commands_failed"`

	// StatesPublished is the number of state messages published.
	StatesPublished uint64 `json:"states_published"`
}

// JSON marshalling helpers

// MarshalJSON marshals a CommandMessage to JSON.
func (m *CommandMessage) MarshalJSON() ([]byte, error) {
	type Alias CommandMessage
	return json.Marshal(&struct {
		*Alias
		Timestamp string `json:"timestamp"`
	}{
		Alias:     (*Alias)(m),
		Timestamp: m.Timestamp.UTC().Format(time.RFC3339),
	})
}

// UnmarshalJSON unmarshals a CommandMessage from JSON.
func (m *CommandMessage) UnmarshalJSON(data []byte) error {
	type Alias CommandMessage
	aux := &struct {
		*Alias
		Timestamp string `json:"timestamp"`
	}{
		Alias: (*Alias)(m),
	}
	if err := json.Unmarshal(data, aux); err != nil {
		return fmt.Errorf("unmarshal command message: %w", err)
	}
	if aux.Timestamp != "" {
		t, err := time.Parse(time.RFC3339, aux.Timestamp)
		if err != nil {
			return fmt.Errorf("parse timestamp: %w", err)
		}
		m.Timestamp = t
	}
	return nil
}

// NewAckMessage creates an acknowledgment message for a command.
func NewAckMessage(cmd CommandMessage, status AckStatus) AckMessage {
	return AckMessage{
		CommandID: cmd.ID,
		Timestamp: time.Now().UTC(),
		DeviceID:  cmd.DeviceID,
		Entity:    cmd.Entity,
		Status:    status,
	}
}

// NewAckError creates an acknowledgment with error details.
func NewAckError(cmd CommandMessage, code, message string) AckMessage {
	status := AckFailed
	if code == ErrCodeTimeout {
		status = AckTimeout
	}
	return AckMessage{
		CommandID: cmd.ID,
		Timestamp: time.Now().UTC(),
		DeviceID:  cmd.DeviceID,
		Entity:    cmd.Entity,
		Status:    status,
		Error: &AckError{
			Code:    code,
			Message: message,
		},
	}
}

// NewStateMessage creates a state message for an entity.
func NewStateMessage(deviceID, entity string, state map[string]any) StateMessage {
	return StateMessage{
		DeviceID:  deviceID,
		Entity:    entity,
		Timestamp: time.Now().UTC(),
		State:     state,
	}
}

// NewHealthMessage creates a health status message.
func NewHealthMessage(bridgeID, version string, status HealthStatus, stats BridgeStatistics, cloud CloudStatus, deviceCount int, startTime time.Time) HealthMessage {
	return HealthMessage{
		Bridge:         bridgeID,
		Timestamp:      time.Now().UTC(),
		Status:         status,
		Version:        version,
		UptimeSeconds:  int64(time.Since(startTime).Seconds()),
		Cloud:          &cloud,
		Statistics:     &stats,
		DevicesManaged: deviceCount,
	}
}

// NewLWTMessage creates a Last Will and Testament message for MQTT.
// This message is published by the broker if the bridge disconnects unexpectedly.
func NewLWTMessage(bridgeID string) HealthMessage {
	return HealthMessage{
		Bridge:    bridgeID,
		Timestamp: time.Now().UTC(),
		Status:    HealthOffline,
		Reason:    "unexpected_disconnect",
	}
}

// Topic helpers

const (
	// TopicPrefix is the base topic for all bridge messages.
	TopicPrefix = "fairland"
)

// CommandTopic returns the MQTT topic for commands to an entity.
// Example: fairland/command/a1b2c3/climate
func CommandTopic(deviceID, entity string) string {
	return fmt.Sprintf("%s/command/%s/%s", TopicPrefix, deviceID, entity)
}

// AckTopic returns the MQTT topic for command acknowledgments.
// Example: fairland/ack/a1b2c3/climate
func AckTopic(deviceID, entity string) string {
	return fmt.Sprintf("%s/ack/%s/%s", TopicPrefix, deviceID, entity)
}

// StateTopic returns the MQTT topic for state updates.
// Example: fairland/state/a1b2c3/climate
func StateTopic(deviceID, entity string) string {
	return fmt.Sprintf("%s/state/%s/%s", TopicPrefix, deviceID, entity)
}

// AvailabilityTopic returns the MQTT topic for device availability.
// Example: fairland/availability/a1b2c3
func AvailabilityTopic(deviceID string) string {
	return fmt.Sprintf("%s/availability/%s", TopicPrefix, deviceID)
}

// HealthTopic returns the MQTT topic for health status.
// Example: fairland/health/fairland
func HealthTopic(bridgeID string) string {
	return fmt.Sprintf("%s/health/%s", TopicPrefix, bridgeID)
}

// CommandSubscribeTopic returns the MQTT subscription pattern for all commands.
// Example: fairland/command/#
func CommandSubscribeTopic() string {
	return fmt.Sprintf("%s/command/#", TopicPrefix)
}

// ParseCommandTopic extracts the device ID and entity from a command topic.
// Expects fairland/command/{device_id}/{entity}.
func ParseCommandTopic(topic string) (deviceID, entity string, err error) {
	parts := strings.Split(topic, "/")
	if len(parts) != 4 || parts[0] != TopicPrefix || parts[1] != "command" {
		return "", "", fmt.Errorf("unexpected command topic: %s", topic)
	}
	if parts[2] == "" || parts[3] == "" {
		return "", "", fmt.Errorf("command topic missing device or entity: %s", topic)
	}
	return parts[2], parts[3], nil
}
