// Package hostfuncs provides pure Go implementations of the functions a
// host exposes to the runtime guest: chunked blob streaming, bridge call
// replies and log forwarding.
// These implementations have NO WASM runtime dependencies (no wazero).
// The host package binds them to guest imports.
package hostfuncs
