package fairland

// FetchResult is the outcome of one per-device data point fetch.
type FetchResult struct {
	DataPoints []DataPoint
	Err        error
}

// Merge builds the next snapshot from a fresh device listing and the
// per-device fetch results.
//
// Rules:
//   - A device whose fetch succeeded appears with its fresh data points.
//   - A device whose fetch failed keeps its previous snapshot entry, so
//     one flaky device doesn't blank its state.
//   - A device never seen before with a failed fetch appears bare (no
//     data points); entities stay pending until a fetch succeeds.
//   - Devices absent from the listing drop out of the snapshot.
//
// The result order follows the listing.
func Merge(previous Snapshot, listed []Device, fetched map[string]FetchResult) Snapshot {
	next := make(Snapshot, 0, len(listed))

	for _, d := range listed {
		res, ok := fetched[d.ID]
		if ok && res.Err == nil {
			d.DataPoints = res.DataPoints
			next = append(next, d)
			continue
		}

		if prev, found := previous.Device(d.ID); found {
			next = append(next, prev)
			continue
		}

		next = append(next, d)
	}

	return next
}
