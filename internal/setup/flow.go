package setup

import (
	"context"
	"fmt"

	"github.com/nerrad567/fairland-bridge/internal/fairland"
)

// CloudClient is the vendor cloud surface the flow needs.
// Satisfied by *fairland.Client.
type CloudClient interface {
	Login(ctx context.Context) error
	Courtyards(ctx context.Context) ([]fairland.Courtyard, error)
	DevicesInCourtyard(ctx context.Context, courtyardID string) ([]fairland.Device, error)
	DeviceDataPoints(ctx context.Context, deviceID string) ([]fairland.DataPoint, error)
}

// Logger is the interface for structured logging during setup.
type Logger interface {
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
}

// FlowOptions holds inputs for the provisioning flow.
type FlowOptions struct {
	// Client is the authenticated vendor cloud client.
	Client CloudClient

	// Store persists the result. Required.
	Store *Store

	// AccountName and CountryCode are recorded with the selection.
	AccountName string
	CountryCode string

	// CourtyardID selects a courtyard explicitly. When empty the flow
	// auto-selects if the account has exactly one.
	CourtyardID string

	// PollIntervalSeconds is recorded with the selection.
	// Default: 30.
	PollIntervalSeconds int

	// Logger is optional.
	Logger Logger
}

// Run executes the provisioning flow: log in, discover courtyards, select
// one, fetch an initial device snapshot, and persist everything.
func Run(ctx context.Context, opts FlowOptions) (*Provisioning, error) {
	if opts.Client == nil {
		return nil, fmt.Errorf("cloud client is required")
	}
	if opts.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if opts.PollIntervalSeconds <= 0 {
		opts.PollIntervalSeconds = 30
	}

	if err := opts.Client.Login(ctx); err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}

	courtyards, err := opts.Client.Courtyards(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing courtyards: %w", err)
	}

	selected, err := selectCourtyard(courtyards, opts.CourtyardID)
	if err != nil {
		return nil, err
	}
	logInfo(opts.Logger, "courtyard selected",
		"courtyard_id", selected.ID,
		"name", selected.Name,
		"devices", selected.DeviceCount)

	snap, err := initialSnapshot(ctx, opts, selected.ID)
	if err != nil {
		return nil, err
	}

	if err := opts.Store.SaveSnapshot(ctx, snap); err != nil {
		return nil, fmt.Errorf("persisting snapshot: %w", err)
	}

	prov := Provisioning{
		AccountName:         opts.AccountName,
		CountryCode:         opts.CountryCode,
		CourtyardID:         selected.ID,
		CourtyardName:       selected.Name,
		PollIntervalSeconds: opts.PollIntervalSeconds,
	}
	if err := opts.Store.SaveProvisioning(ctx, prov); err != nil {
		return nil, fmt.Errorf("persisting provisioning: %w", err)
	}

	logInfo(opts.Logger, "provisioning complete",
		"courtyard_id", prov.CourtyardID,
		"heat_pumps", len(snap))

	return &prov, nil
}

// selectCourtyard resolves the courtyard to bridge. An explicit ID must
// exist on the account. Without one, a single courtyard is auto-selected
// and several are an error so the wrong pool never gets bridged silently.
func selectCourtyard(courtyards []fairland.Courtyard, explicit string) (fairland.Courtyard, error) {
	if explicit != "" {
		for _, cy := range courtyards {
			if cy.ID == explicit {
				return cy, nil
			}
		}
		return fairland.Courtyard{}, fmt.Errorf("%w: %s", ErrCourtyardNotFound, explicit)
	}

	switch len(courtyards) {
	case 0:
		return fairland.Courtyard{}, ErrNoCourtyards
	case 1:
		return courtyards[0], nil
	default:
		names := make([]string, len(courtyards))
		for i, cy := range courtyards {
			names[i] = fmt.Sprintf("%s (%s)", cy.Name, cy.ID)
		}
		return fairland.Courtyard{}, fmt.Errorf("%w: %v", ErrCourtyardAmbiguous, names)
	}
}

// initialSnapshot fetches data points for every heat pump in the courtyard.
// Per-device failures are tolerated so a flaky device does not block setup.
func initialSnapshot(ctx context.Context, opts FlowOptions, courtyardID string) (fairland.Snapshot, error) {
	listed, err := opts.Client.DevicesInCourtyard(ctx, courtyardID)
	if err != nil {
		return nil, fmt.Errorf("listing devices: %w", err)
	}

	pumps := listed[:0:0]
	for _, d := range listed {
		if d.IsHeatPump() {
			pumps = append(pumps, d)
		}
	}

	fetched := make(map[string]fairland.FetchResult, len(pumps))
	for _, d := range pumps {
		points, err := opts.Client.DeviceDataPoints(ctx, d.ID)
		if err != nil {
			logWarn(opts.Logger, "device fetch failed during setup",
				"device_id", d.ID, "error", err)
		}
		fetched[d.ID] = fairland.FetchResult{DataPoints: points, Err: err}
	}

	return fairland.Merge(nil, pumps, fetched), nil
}

func logInfo(l Logger, msg string, args ...any) {
	if l != nil {
		l.Info(msg, args...)
	}
}

func logWarn(l Logger, msg string, args ...any) {
	if l != nil {
		l.Warn(msg, args...)
	}
}
