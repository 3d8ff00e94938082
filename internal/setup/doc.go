// Package setup handles first-run provisioning of the bridge.
//
// Provisioning logs into the vendor cloud with the configured account,
// discovers the account's courtyards (device groups), selects the one the
// bridge should serve, and persists the selection together with an initial
// device snapshot. On later startups the bridge reads the stored selection
// and snapshot instead of asking the user again, so retained MQTT state is
// available before the first poll completes.
//
// Usage:
//
//	store := setup.NewStore(db)
//	prov, err := setup.Run(ctx, setup.FlowOptions{
//	    Client:      client,
//	    Store:       store,
//	    CourtyardID: "", // auto-select when the account has exactly one
//	})
//
// The store also satisfies the coordinator's snapshot persistence
// interface, keeping the saved snapshot current across poll cycles.
package setup
