package influxdb

import "errors"

// Sentinel errors for telemetry operations. Check with errors.Is().
var (
	// ErrNotConnected indicates the client has not been connected yet
	// or the connection was closed.
	ErrNotConnected = errors.New("influxdb: not connected")

	// ErrConnectionFailed indicates the initial health check against the
	// InfluxDB server failed.
	ErrConnectionFailed = errors.New("influxdb: connection failed")

	// ErrDisabled indicates telemetry is disabled in the bridge config.
	ErrDisabled = errors.New("influxdb: disabled in configuration")
)
