// Package hol is the guest-resident command and resource runtime.
//
// A Runtime owns one resource table, one command registry with the
// "hol.archiver" and "hol.blob" command sets, one streaming digest engine and
// the dispatcher that answers host requests:
//
//	rt, err := hol.New(
//	    hol.WithLogger(logger),
//	    hol.WithSources(store),
//	)
//	if err != nil {
//	    return err
//	}
//	defer rt.Close()
//
//	resp, err := rt.InvokeCommand(ctx, envelope)
//
// Commands are addressed by package and command id and exchange
// protobuf-encoded messages; bridge calls are addressed by a numeric code and
// exchange JSON.
package hol
