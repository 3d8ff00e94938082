package fairland

import "errors"

// Sentinel errors for vendor cloud operations.
//
// These errors can be checked using errors.Is() for specific handling:
//
//	if errors.Is(err, fairland.ErrAuthentication) {
//	    // Credentials rejected or token expired beyond recovery
//	}
var (
	// ErrAuthentication indicates the vendor cloud rejected the credentials
	// or the session token, and re-authentication did not recover.
	ErrAuthentication = errors.New("fairland: authentication failed")

	// ErrCommunication indicates a transport-level failure: timeout,
	// connection refused, or a non-2xx HTTP status.
	ErrCommunication = errors.New("fairland: communication failed")

	// ErrClient indicates the vendor cloud returned a response the client
	// could not use: malformed JSON or an unexpected envelope code.
	ErrClient = errors.New("fairland: client error")
)
