package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteDeviceMetric writes a single device measurement to InfluxDB.
//
// This is the primary method for recording heat pump telemetry data.
// The write is non-blocking; data is batched and sent asynchronously.
//
// Parameters:
//   - deviceID: Unique identifier for the device (vendor cloud device ID)
//   - measurement: The metric name (e.g., "inlet_water_temperature", "power")
//   - value: The numeric value to record
//
// Example:
//
//	client.WriteDeviceMetric("a1b2c3", "inlet_water_temperature", 21.5)
//	client.WriteDeviceMetric("a1b2c3", "power", 1.234)
func (c *Client) WriteDeviceMetric(deviceID string, measurement string, value float64) {
	c.writePoint("device_metrics",
		map[string]string{
			"device_id":   deviceID,
			"measurement": measurement,
		},
		map[string]any{
			"value": value,
		})
}

// WriteClimateState writes a climate snapshot for a device.
//
// Records current and target water temperature alongside the running
// action so dashboards can correlate setpoint changes with behaviour.
//
// Parameters:
//   - deviceID: Device identifier
//   - currentTemp: Current water temperature in degrees Celsius
//   - targetTemp: Target water temperature in degrees Celsius
//   - action: Running action ("heating", "cooling", "idle", "off")
func (c *Client) WriteClimateState(deviceID string, currentTemp, targetTemp float64, action string) {
	c.writePoint("climate",
		map[string]string{
			"device_id": deviceID,
			"action":    action,
		},
		map[string]any{
			"current_temperature": currentTemp,
			"target_temperature":  targetTemp,
		})
}

// writePoint batches one point stamped now. Silently dropped when the
// client is disconnected.
func (c *Client) writePoint(measurement string, tags map[string]string, fields map[string]any) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(write.NewPoint(measurement, tags, fields, time.Now()))
}
