package wireformat

import (
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/hpp2334/hol-runtime/domain/entities"
)

const handleID protowire.Number = 1

// Resource is the wire form of entities.ResourceHandle: message Resource { uint64 id = 1; }.
type Resource entities.ResourceHandle

// MarshalWire implements Marshaler.
func (r *Resource) MarshalWire() ([]byte, error) {
	if r == nil {
		return nil, nil
	}
	return AppendUint64(nil, handleID, r.ID), nil
}

// UnmarshalWire implements Unmarshaler.
func (r *Resource) UnmarshalWire(b []byte) error {
	return Walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num == handleID {
			return ConsumeUint64(typ, b, &r.ID)
		}
		return Skip, nil
	})
}

// Handle returns the domain handle.
func (r *Resource) Handle() entities.ResourceHandle {
	return entities.ResourceHandle(*r)
}

// BlobResource is the wire form of entities.BlobHandle: message BlobResource { uint64 id = 1; }.
type BlobResource entities.BlobHandle

// MarshalWire implements Marshaler.
func (r *BlobResource) MarshalWire() ([]byte, error) {
	if r == nil {
		return nil, nil
	}
	return AppendUint64(nil, handleID, r.ID), nil
}

// UnmarshalWire implements Unmarshaler.
func (r *BlobResource) UnmarshalWire(b []byte) error {
	return Walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num == handleID {
			return ConsumeUint64(typ, b, &r.ID)
		}
		return Skip, nil
	})
}

// Handle returns the domain handle.
func (r *BlobResource) Handle() entities.BlobHandle {
	return entities.BlobHandle(*r)
}

// FromResource converts a domain handle to its wire form.
func FromResource(h entities.ResourceHandle) *Resource {
	r := Resource(h)
	return &r
}

// FromBlob converts a domain blob handle to its wire form.
func FromBlob(h entities.BlobHandle) *BlobResource {
	r := BlobResource(h)
	return &r
}

// Empty is a message with no fields, used by commands that return nothing.
type Empty struct{}

// MarshalWire implements Marshaler.
func (*Empty) MarshalWire() ([]byte, error) { return nil, nil }

// UnmarshalWire implements Unmarshaler.
func (*Empty) UnmarshalWire(b []byte) error {
	return Walk(b, func(protowire.Number, protowire.Type, []byte) (int, error) {
		return Skip, nil
	})
}
