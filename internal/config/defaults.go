// Package config provides centralized default configuration values.
package config

// DefaultTransport is the transport kind a Config resolves to when the
// caller doesn't specify one.
const DefaultTransport = "worker"

// DefaultMaxPendingCalls bounds how many outstanding Call()s a single Peer
// may carry before Call starts rejecting new requests. Zero means
// unbounded.
const DefaultMaxPendingCalls = 0

// DefaultCallTimeoutSecs is the default for limits.call_timeout_secs. The
// engine and peer do not read that setting, so no Call() gets a default
// deadline from it.
const DefaultCallTimeoutSecs = 0

// DefaultMaxQueuedOnSend is the default for limits.max_queued_on_send. The
// engine and peer do not read that setting; a Peer's pre-connect send queue
// is unbounded.
const DefaultMaxQueuedOnSend = 0

// DefaultDiagnosticsDBPath is where the lifecycle-event SQLite sink persists
// its data when diagnostics.enabled is true and no path is configured.
const DefaultDiagnosticsDBPath = "hostwire-diagnostics.db"
