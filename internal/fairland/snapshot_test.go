package fairland

import (
	"errors"
	"testing"
)

func TestMerge(t *testing.T) {
	fresh := []DataPoint{dp(DPPower, "true", "rw", "")}
	stale := []DataPoint{dp(DPPower, "false", "rw", "")}

	previous := Snapshot{
		{ID: "a", Name: "Pump A", CategoryCode: CategoryHeatPump, DataPoints: stale},
		{ID: "gone", Name: "Removed", CategoryCode: CategoryHeatPump, DataPoints: stale},
	}

	listed := []Device{
		{ID: "a", Name: "Pump A", CategoryCode: CategoryHeatPump},
		{ID: "b", Name: "Pump B", CategoryCode: CategoryHeatPump},
		{ID: "c", Name: "Pump C", CategoryCode: CategoryHeatPump},
	}

	fetched := map[string]FetchResult{
		"a": {DataPoints: fresh},
		"b": {Err: errors.New("timeout")},
		"c": {Err: errors.New("timeout")},
	}

	next := Merge(previous, listed, fetched)

	if len(next) != 3 {
		t.Fatalf("got %d devices, want 3", len(next))
	}

	// Order follows the listing.
	for i, want := range []string{"a", "b", "c"} {
		if next[i].ID != want {
			t.Errorf("next[%d].ID = %q, want %q", i, next[i].ID, want)
		}
	}

	// Successful fetch gets fresh points.
	if on, _ := next[0].DataPoints[0].Bool(); !on {
		t.Error("device a should carry fresh data points")
	}

	// Failed fetch keeps the previous entry.
	if len(next[1].DataPoints) != 1 {
		t.Fatal("device b should keep previous data points")
	}
	if on, _ := next[1].DataPoints[0].Bool(); on {
		t.Error("device b should carry the stale (previous) value")
	}

	// Never-seen device with failed fetch appears bare.
	if len(next[2].DataPoints) != 0 {
		t.Error("device c should have no data points yet")
	}

	// Devices absent from the listing drop out.
	if _, found := next.Device("gone"); found {
		t.Error("removed device should not survive the merge")
	}
}

func TestMerge_EmptyListing(t *testing.T) {
	previous := Snapshot{{ID: "a", CategoryCode: CategoryHeatPump}}

	next := Merge(previous, nil, nil)
	if len(next) != 0 {
		t.Errorf("got %d devices, want 0", len(next))
	}
}

func TestSnapshotDevice(t *testing.T) {
	snap := Snapshot{{ID: "a"}, {ID: "b"}}

	if d, ok := snap.Device("b"); !ok || d.ID != "b" {
		t.Errorf("Device(b) = %+v, %v", d, ok)
	}
	if _, ok := snap.Device("missing"); ok {
		t.Error("Device(missing) should not be found")
	}
}

func TestDeviceDataPointLookup(t *testing.T) {
	d := Device{DataPoints: []DataPoint{dp("101", "true", "rw", "")}}

	if p, ok := d.DataPoint("101"); !ok || p.ID != "101" {
		t.Errorf("DataPoint(101) = %+v, %v", p, ok)
	}
	if _, ok := d.DataPoint("999"); ok {
		t.Error("DataPoint(999) should not be found")
	}
}
