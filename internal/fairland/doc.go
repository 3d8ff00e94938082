// Package fairland implements the client for the Fairland vendor cloud
// and the polling coordinator that maintains a device snapshot.
//
// The vendor cloud exposes a JSON-over-HTTPS API. Every response carries
// an envelope with a vendor status code; 200000 means success. The client
// handles token-based authentication transparently: on a 401/403 it
// re-authenticates once and retries the request.
//
// # Components
//
//   - Client: authenticated access to the vendor API (login, courtyards,
//     devices, data points, writes)
//   - Registry: the static catalogue of known data points and their
//     semantics (kind, unit, scale, bounds, writability)
//   - Coordinator: single-goroutine polling loop that merges per-device
//     fetch results into an immutable snapshot and notifies listeners
//
// # Data Points
//
// Device state is a flat list of numbered data points ("dp"). dp101 is
// the power switch, dp106 the operating mode, dp107 the target water
// temperature, and dp103 onwards are read-only sensors. The registry
// maps each ID to its meaning; the normaliser applies per-point scaling
// and enum decoding described by the point's dpProperty JSON.
package fairland
