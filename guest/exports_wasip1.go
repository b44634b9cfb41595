//go:build wasip1

package guest

import (
	"github.com/hpp2334/hol-runtime/internal/abi"
	hollog "github.com/hpp2334/hol-runtime/log"
)

//go:wasmimport hol_host next_file_chunk
func hostNextFileChunk(blobID int32) uint64

//go:wasmimport hol_host send_ret
func hostSendRet(code int32, ret uint64, callID int32)

// PullFromHost fetches blob chunks through the next_file_chunk import.
func PullFromHost(blobID int32) []byte {
	return abi.Take(hostNextFileChunk(blobID))
}

// SendToHost delivers a reply through the send_ret import.
func SendToHost(code int32, payload []byte, callID int32) {
	packed := abi.PtrFromBytes(payload)
	hostSendRet(code, packed, callID)
	abi.DeallocatePacked(packed)
}

// bridge returns the installed bridge, installing a default one on first
// use.
func bridge() *Bridge {
	if b := current(); b != nil {
		return b
	}
	b, err := Install(PullFromHost, hollog.Install())
	if err != nil {
		panic(err)
	}
	return b
}

// releaseOnTrap unpins every buffer when an export panics, since the host
// will not free buffers of a trapped call.
func releaseOnTrap() {
	if r := recover(); r != nil {
		abi.FreeAllTracked()
		panic(r)
	}
}

//go:wasmexport invoke_command
func invokeCommand(ptr, length uint32) uint64 {
	defer releaseOnTrap()
	req := abi.Take(abi.PackPtrLen(ptr, length))
	return abi.PtrFromBytes(bridge().InvokeCommand(req))
}

//go:wasmexport call
func call(code int32, ptr, length uint32, callID int32) {
	defer releaseOnTrap()
	arg := abi.Take(abi.PackPtrLen(ptr, length))
	bridge().Call(code, arg, callID, SendToHost)
}
