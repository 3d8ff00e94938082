package setup

import "errors"

// Domain errors for the setup package.
var (
	// ErrNotProvisioned is returned when no provisioning record exists yet.
	ErrNotProvisioned = errors.New("setup: bridge is not provisioned")

	// ErrNoCourtyards is returned when the account owns no courtyards.
	ErrNoCourtyards = errors.New("setup: account has no courtyards")

	// ErrCourtyardAmbiguous is returned when the account owns several
	// courtyards and none was selected explicitly.
	ErrCourtyardAmbiguous = errors.New("setup: multiple courtyards, selection required")

	// ErrCourtyardNotFound is returned when the selected courtyard does not
	// exist on the account.
	ErrCourtyardNotFound = errors.New("setup: courtyard not found")
)
