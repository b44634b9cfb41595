package command

import (
	"reflect"

	"github.com/hpp2334/hol-runtime/application/validation"
	"github.com/hpp2334/hol-runtime/domain/errors"
	"github.com/hpp2334/hol-runtime/wireformat"
)

// ByteHandler is the erased form every command is stored as: encoded
// arguments in, encoded result out.
type ByteHandler func(ic InvocationContext, args []byte) ([]byte, error)

// Handler is a typed command implementation.
type Handler[PA any, R any] func(ic InvocationContext, arg PA) (R, error)

// NewHandler erases a typed Handler into a ByteHandler.
// Arguments are decoded into a fresh A and validated against their
// `validate` tags before fn runs; the result is encoded on success.
func NewHandler[A any, PA interface {
	*A
	wireformat.Unmarshaler
}, R wireformat.Marshaler](fn Handler[PA, R]) ByteHandler {
	argName := reflect.TypeFor[A]().Name()
	retName := reflect.TypeFor[R]().String()
	return func(ic InvocationContext, payload []byte) ([]byte, error) {
		arg := PA(new(A))
		if err := arg.UnmarshalWire(payload); err != nil {
			return nil, &errors.DecodeError{Type: argName, Err: err}
		}
		if err := validation.Struct(arg); err != nil {
			return nil, err
		}

		ret, err := fn(ic, arg)
		if err != nil {
			return nil, err
		}

		out, err := ret.MarshalWire()
		if err != nil {
			return nil, &errors.EncodeError{Type: retName, Err: err}
		}
		if out == nil {
			out = []byte{}
		}
		return out, nil
	}
}
