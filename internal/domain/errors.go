package domain

import "errors"

// Upstream failure taxonomy. Adapters wrap transport failures into these
// sentinels; the session manager and media resolver branch with errors.Is
// and convert them to status values instead of propagating raw faults.
var (
	// ErrNotConnected: the transport is not established.
	ErrNotConnected = errors.New("upstream: not connected")
	// ErrAuthKeyInvalid: the credential key material is malformed or rejected.
	ErrAuthKeyInvalid = errors.New("upstream: auth key invalid")
	// ErrAuthExpired: the credential was invalidated, duplicated, or expired.
	ErrAuthExpired = errors.New("upstream: authorization expired")
	// ErrPasswordNeeded: a two-factor password is required to finish login.
	ErrPasswordNeeded = errors.New("upstream: two-factor password needed")
	// ErrCodeInvalid: the submitted login code was rejected.
	ErrCodeInvalid = errors.New("upstream: login code invalid")
	// ErrMediaUnavailable: the message carries no downloadable attachment.
	ErrMediaUnavailable = errors.New("upstream: media unavailable")
	// ErrUpstreamUnreachable: the upstream servers cannot be reached.
	ErrUpstreamUnreachable = errors.New("upstream: unreachable")
	// ErrNotSupported: the adapter cannot express this operation.
	ErrNotSupported = errors.New("upstream: operation not supported")
)
