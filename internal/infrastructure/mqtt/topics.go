package mqtt

import "fmt"

// Topic prefixes for the Fairland bridge.
//
// All entity topics use the flat scheme: fairland/{category}/{device_id}/{entity}
// This matches the bridge package's messages.go and all runtime subscribers.
const (
	// TopicPrefix is the base for all bridge topics.
	// Flat scheme: fairland/{category}/{device_id}/{entity}
	TopicPrefix = "fairland"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = "fairland/system"
)

// Topics provides builders for Fairland bridge MQTT topics.
// Using these helpers ensures consistent topic naming across the codebase.
//
//	topics := mqtt.Topics{}
//	stateTopic := topics.EntityState("a1b2c3", "climate")
//	// Returns: "fairland/state/a1b2c3/climate"
type Topics struct{}

// EntityState returns the topic for entity state updates.
//
// Example: fairland/state/a1b2c3/climate
func (Topics) EntityState(deviceID, entity string) string {
	return fmt.Sprintf("%s/state/%s/%s", TopicPrefix, deviceID, entity)
}

// EntityCommand returns the topic for commands to an entity.
//
// Example: fairland/command/a1b2c3/climate
func (Topics) EntityCommand(deviceID, entity string) string {
	return fmt.Sprintf("%s/command/%s/%s", TopicPrefix, deviceID, entity)
}

// EntityAck returns the topic for command acknowledgements.
//
// Example: fairland/ack/a1b2c3/climate
func (Topics) EntityAck(deviceID, entity string) string {
	return fmt.Sprintf("%s/ack/%s/%s", TopicPrefix, deviceID, entity)
}

// DeviceAvailability returns the availability topic for a device.
//
// Example: fairland/availability/a1b2c3
func (Topics) DeviceAvailability(deviceID string) string {
	return fmt.Sprintf("%s/availability/%s", TopicPrefix, deviceID)
}

// BridgeHealth returns the topic for bridge health status.
//
// Example: fairland/health/fairland
func (Topics) BridgeHealth(bridgeID string) string {
	return fmt.Sprintf("%s/health/%s", TopicPrefix, bridgeID)
}

// SystemStatus returns the system status topic (online/offline, LWT).
//
// Example: fairland/system/status
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixSystem)
}

// AllCommands returns a pattern matching all commands to the bridge.
//
// Pattern: fairland/command/#
func (Topics) AllCommands() string {
	return fmt.Sprintf("%s/command/#", TopicPrefix)
}

// AllStates returns a pattern matching all entity state updates.
//
// Pattern: fairland/state/+/+
func (Topics) AllStates() string {
	return fmt.Sprintf("%s/state/+/+", TopicPrefix)
}

// AllTopics returns a pattern matching all bridge topics.
// Use with caution - this receives ALL traffic.
//
// Pattern: fairland/#
func (Topics) AllTopics() string {
	return "fairland/#"
}
