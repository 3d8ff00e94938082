package setup

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nerrad567/fairland-bridge/internal/fairland"
)

// Provisioning holds the persisted first-run selection.
type Provisioning struct {
	// AccountName is the vendor cloud account the bridge was provisioned with.
	AccountName string

	// CountryCode is the account's two-letter country code.
	CountryCode string

	// CourtyardID is the selected device group.
	CourtyardID string

	// CourtyardName is the display name of the selected group.
	CourtyardName string

	// PollIntervalSeconds is the poll interval chosen at provisioning time.
	PollIntervalSeconds int
}

// Store persists provisioning state and device snapshots in SQLite.
// Both tables are single-row (one bridge per database).
type Store struct {
	db *sql.DB
}

// NewStore creates a SQLite-backed setup store.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// SaveProvisioning inserts or replaces the provisioning record.
func (s *Store) SaveProvisioning(ctx context.Context, p Provisioning) error {
	const query = `INSERT INTO provisioning
		(id, account_name, country_code, courtyard_id, courtyard_name, poll_interval_seconds, created_at, updated_at)
		VALUES (1, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			account_name = excluded.account_name,
			country_code = excluded.country_code,
			courtyard_id = excluded.courtyard_id,
			courtyard_name = excluded.courtyard_name,
			poll_interval_seconds = excluded.poll_interval_seconds,
			updated_at = excluded.updated_at`

	now := time.Now().UTC().Format(time.RFC3339)
	_, err := s.db.ExecContext(ctx, query,
		p.AccountName, p.CountryCode, p.CourtyardID, p.CourtyardName,
		p.PollIntervalSeconds, now, now)
	if err != nil {
		return fmt.Errorf("saving provisioning: %w", err)
	}
	return nil
}

// LoadProvisioning returns the stored provisioning record.
// Returns ErrNotProvisioned when setup has never run.
func (s *Store) LoadProvisioning(ctx context.Context) (*Provisioning, error) {
	const query = `SELECT account_name, country_code, courtyard_id, courtyard_name,
		poll_interval_seconds FROM provisioning WHERE id = 1`

	var p Provisioning
	err := s.db.QueryRowContext(ctx, query).Scan(
		&p.AccountName, &p.CountryCode, &p.CourtyardID, &p.CourtyardName,
		&p.PollIntervalSeconds)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotProvisioned
		}
		return nil, fmt.Errorf("loading provisioning: %w", err)
	}
	return &p, nil
}

// SaveSnapshot persists the latest device snapshot as JSON.
// Satisfies the coordinator's snapshot persistence interface.
func (s *Store) SaveSnapshot(ctx context.Context, snap fairland.Snapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}

	const query = `INSERT INTO snapshots (id, payload, taken_at)
		VALUES (1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			payload = excluded.payload,
			taken_at = excluded.taken_at`

	_, err = s.db.ExecContext(ctx, query,
		string(payload), time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("saving snapshot: %w", err)
	}
	return nil
}

// LoadSnapshot returns the persisted device snapshot.
// Returns an empty snapshot when none has been saved yet.
func (s *Store) LoadSnapshot(ctx context.Context) (fairland.Snapshot, error) {
	const query = `SELECT payload FROM snapshots WHERE id = 1`

	var payload string
	err := s.db.QueryRowContext(ctx, query).Scan(&payload)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("loading snapshot: %w", err)
	}

	var snap fairland.Snapshot
	if err := json.Unmarshal([]byte(payload), &snap); err != nil {
		return nil, fmt.Errorf("decoding snapshot: %w", err)
	}
	return snap, nil
}
