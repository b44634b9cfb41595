// Package blob provides the "hol.blob" command set for reading and
// releasing blobs produced by other commands.
package blob

import (
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/hpp2334/hol-runtime/application/command"
	"github.com/hpp2334/hol-runtime/domain/errors"
	"github.com/hpp2334/hol-runtime/wireformat"
)

// PackageID is the package id every blob command is registered under.
const PackageID = "hol.blob"

// Command ids.
const (
	LoadBlobData = "load_blob_data"
	FreeBlob     = "free_blob"
)

// LoadBlobArg names the blob to read.
type LoadBlobArg struct {
	Data *wireformat.BlobResource `json:"data"`
}

func (m *LoadBlobArg) UnmarshalWire(b []byte) error {
	return wireformat.Walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num == 1 {
			m.Data = &wireformat.BlobResource{}
			return wireformat.ConsumeMessage(typ, b, m.Data)
		}
		return wireformat.Skip, nil
	})
}

func (m *LoadBlobArg) MarshalWire() ([]byte, error) {
	if m == nil || m.Data == nil {
		return nil, nil
	}
	return wireformat.AppendMessage(nil, 1, m.Data)
}

// LoadBlobRet carries a copy of the blob's bytes.
type LoadBlobRet struct {
	Data []byte `json:"data"`
}

func (m *LoadBlobRet) MarshalWire() ([]byte, error) {
	if m == nil {
		return nil, nil
	}
	return wireformat.AppendBytes(nil, 1, m.Data), nil
}

func (m *LoadBlobRet) UnmarshalWire(b []byte) error {
	return wireformat.Walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num == 1 {
			return wireformat.ConsumeBytes(typ, b, &m.Data)
		}
		return wireformat.Skip, nil
	})
}

// FreeBlobArg names the blob to release. It shares the layout of LoadBlobArg.
type FreeBlobArg = LoadBlobArg

// Setup registers the blob commands with reg.
func Setup(reg *command.Registry) error {
	if err := command.Register(reg, PackageID, LoadBlobData, loadBlobData,
		command.Describe("Return a copy of a blob's bytes")); err != nil {
		return err
	}
	return command.Register(reg, PackageID, FreeBlob, freeBlob,
		command.Describe("Release a blob"))
}

func loadBlobData(ic command.InvocationContext, arg *LoadBlobArg) (*LoadBlobRet, error) {
	if arg.Data == nil {
		return nil, &errors.MissingResourceHandleError{Kind: "blob"}
	}
	data, ok := ic.Table().GetBlob(arg.Data.Handle())
	if !ok {
		return nil, &errors.MissingResourceError{Kind: "blob", Handle: arg.Data.ID}
	}
	return &LoadBlobRet{Data: append([]byte{}, data...)}, nil
}

func freeBlob(ic command.InvocationContext, arg *FreeBlobArg) (*wireformat.Empty, error) {
	if arg.Data == nil {
		return nil, &errors.MissingResourceHandleError{Kind: "blob"}
	}
	h := arg.Data.Handle()
	if _, ok := ic.Table().GetBlob(h); ok {
		ic.Table().RemoveBlob(h)
	}
	return &wireformat.Empty{}, nil
}
