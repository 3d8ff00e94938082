// Package bridge translates between the Fairland vendor cloud and MQTT.
//
// The bridge sits between a home-automation platform speaking MQTT and the
// vendor cloud polled by the fairland package:
//
//	┌─────────────────┐          ┌─────────────────┐
//	│ Home Automation │   MQTT   │ Fairland Bridge │   HTTPS
//	│    Platform     │◄────────►│   (this pkg)    │◄────────► Vendor Cloud
//	└─────────────────┘          └─────────────────┘
//
// # Key Responsibilities
//
//   - Subscribe to command topics and translate commands to cloud writes
//   - Publish retained entity state from coordinator snapshots
//   - Acknowledge every command with accepted/failed/timeout
//   - Publish per-device availability and bridge health status
//
// # Entities
//
// Each heat pump is exposed as a set of entities, addressed in topics as
// fairland/{kind}/{device_id}/{entity}:
//
//   - climate: thermostat view (power, mode, action, preset, temperatures)
//   - power: plain on/off switch on the power data point
//   - sensor-{dp}: read-only readings (temperatures, speeds, states)
//   - number-{dp}: writable tuning parameters with range and step
//
// Sensor and number entities are derived from the data point registry in
// the fairland package, so a device only exposes what it actually reports.
//
// # Commands
//
// Commands arrive as JSON on fairland/command/{device_id}/{entity}:
//
//	{"id": "cmd-1", "command": "set_temperature", "parameters": {"temperature": 28}}
//
// Every command produces exactly one acknowledgment on the matching ack
// topic. State changes follow via the next poll cycle, which the bridge
// requests immediately after a successful write.
//
// # Thread Safety
//
// All exported types are safe for concurrent use from multiple goroutines.
package bridge
