// Package host embeds a runtime guest module with wazero.
//
// The executor provides the "hol_host" import module the guest links
// against: file chunks are pulled from a hostfuncs.BlobStore, bridge-call
// replies are routed through a hostfuncs.CallTable and guest log records are
// re-emitted on the host logger. Buffers cross the boundary as a packed
// uint64 (pointer in the high 32 bits, length in the low 32 bits) and are
// allocated in guest memory through the guest's "allocate" export.
package host
