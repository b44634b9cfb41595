// Package command implements the command registry: typed handlers are
// registered under a (package id, command id) key, erased into byte
// handlers, and invoked with a uniform response envelope.
//
// Handlers never see raw bytes:
//
//	err := command.Register(reg, "hol.blob", "load_blob_data",
//	    func(ic command.InvocationContext, arg *LoadBlobArg) (*LoadBlobRet, error) {
//	        data, ok := ic.Table().GetBlob(arg.Data.Handle())
//	        ...
//	    })
//
// Registration and invocation are safe for concurrent use.
package command
