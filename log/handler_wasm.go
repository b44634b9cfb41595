//go:build wasip1

package log

import (
	"github.com/hpp2334/hol-runtime/internal/abi"
)

//go:wasmimport hol_host log_message
//nolint:revive // intentional snake_case to match WASM import convention
func host_log_message(messagePacked uint64)

// send hands the record to the host; the guest copy is freed once the
// host has read it.
func send(data []byte) {
	packed := abi.PtrFromBytes(data)
	host_log_message(packed)
	abi.DeallocatePacked(packed)
}
