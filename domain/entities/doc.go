// Package entities provides the core domain types shared by the runtime:
// resource handles, command keys, invocation envelopes and digest results.
// They carry no behaviour beyond small helpers and are safe to copy.
package entities
