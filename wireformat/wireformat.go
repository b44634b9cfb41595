// Package wireformat defines the binary wire format exchanged between the
// host and the guest runtime. Envelopes and command messages use the protobuf
// wire encoding so that hosts can generate compatible codecs from a schema;
// field numbers below are part of the ABI contract and must remain stable.
package wireformat

import (
	"errors"
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// Marshaler is implemented by messages that encode themselves.
// Implementations must accept a nil receiver and encode it as an empty message.
type Marshaler interface {
	MarshalWire() ([]byte, error)
}

// Unmarshaler is implemented by messages that decode themselves.
type Unmarshaler interface {
	UnmarshalWire(b []byte) error
}

// Message is a type that round-trips through the wire format.
type Message interface {
	Marshaler
	Unmarshaler
}

// ErrWireType is returned when a known field arrives with an unexpected wire type.
var ErrWireType = errors.New("unexpected wire type")

// FieldVisitor handles one field of a message being decoded. It returns the
// number of bytes of b it consumed, or Skip to leave the field to the walker.
type FieldVisitor func(num protowire.Number, typ protowire.Type, b []byte) (int, error)

// Skip tells Walk to consume a field the visitor does not know.
const Skip = -1

// Walk iterates the fields of an encoded message. Unknown fields are skipped.
func Walk(b []byte, visit FieldVisitor) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]

		m, err := visit(num, typ, b)
		if err != nil {
			return fmt.Errorf("field %d: %w", num, err)
		}
		if m == Skip {
			m = protowire.ConsumeFieldValue(num, typ, b)
		}
		if m < 0 {
			return fmt.Errorf("field %d: %w", num, protowire.ParseError(m))
		}
		b = b[m:]
	}
	return nil
}

// ConsumeBytes decodes a length-delimited field into a fresh copy.
func ConsumeBytes(typ protowire.Type, b []byte, dst *[]byte) (int, error) {
	if typ != protowire.BytesType {
		return 0, ErrWireType
	}
	v, n := protowire.ConsumeBytes(b)
	if n < 0 {
		return 0, protowire.ParseError(n)
	}
	*dst = append([]byte{}, v...)
	return n, nil
}

// ConsumeString decodes a length-delimited field as a string.
func ConsumeString(typ protowire.Type, b []byte, dst *string) (int, error) {
	if typ != protowire.BytesType {
		return 0, ErrWireType
	}
	v, n := protowire.ConsumeString(b)
	if n < 0 {
		return 0, protowire.ParseError(n)
	}
	*dst = v
	return n, nil
}

// ConsumeUint64 decodes a varint field.
func ConsumeUint64(typ protowire.Type, b []byte, dst *uint64) (int, error) {
	if typ != protowire.VarintType {
		return 0, ErrWireType
	}
	v, n := protowire.ConsumeVarint(b)
	if n < 0 {
		return 0, protowire.ParseError(n)
	}
	*dst = v
	return n, nil
}

// ConsumeBool decodes a varint field as a bool.
func ConsumeBool(typ protowire.Type, b []byte, dst *bool) (int, error) {
	var v uint64
	n, err := ConsumeUint64(typ, b, &v)
	if err != nil {
		return 0, err
	}
	*dst = protowire.DecodeBool(v)
	return n, nil
}

// ConsumeMessage decodes an embedded message field with m.
func ConsumeMessage(typ protowire.Type, b []byte, m Unmarshaler) (int, error) {
	if typ != protowire.BytesType {
		return 0, ErrWireType
	}
	v, n := protowire.ConsumeBytes(b)
	if n < 0 {
		return 0, protowire.ParseError(n)
	}
	if err := m.UnmarshalWire(v); err != nil {
		return 0, err
	}
	return n, nil
}

// AppendBytes appends a length-delimited field. Empty values are omitted.
func AppendBytes(b []byte, num protowire.Number, v []byte) []byte {
	if len(v) == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, v)
}

// AppendString appends a string field. Empty values are omitted.
func AppendString(b []byte, num protowire.Number, v string) []byte {
	if v == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, v)
}

// AppendUint64 appends a varint field. Zero is omitted.
func AppendUint64(b []byte, num protowire.Number, v uint64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

// AppendBool appends a bool field. False is omitted.
func AppendBool(b []byte, num protowire.Number, v bool) []byte {
	if !v {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, protowire.EncodeBool(v))
}

// AppendMessage appends an embedded message field. Nil-ness is decided by
// the caller; an encoded empty message is still written so presence survives.
func AppendMessage(b []byte, num protowire.Number, m Marshaler) ([]byte, error) {
	v, err := m.MarshalWire()
	if err != nil {
		return nil, err
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, v), nil
}
