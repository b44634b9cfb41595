package wireformat

import (
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/hpp2334/hol-runtime/domain/entities"
)

// InvokeCommandRequest fields.
const (
	requestPackageID protowire.Number = 1 // message PackageId { string identifier = 1; }
	requestCommandID protowire.Number = 2 // message CommandId { string name = 1; }
	requestArguments protowire.Number = 3
)

// InvokeCommandResponse fields.
const (
	responseSuccess      protowire.Number = 1
	responseReturns      protowire.Number = 2
	responseErrorMessage protowire.Number = 3
)

// identifierWire is the single-string wrapper used for package and command ids.
type identifierWire struct {
	value string
}

func (w *identifierWire) MarshalWire() ([]byte, error) {
	if w == nil {
		return nil, nil
	}
	return AppendString(nil, 1, w.value), nil
}

func (w *identifierWire) UnmarshalWire(b []byte) error {
	return Walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num == 1 {
			return ConsumeString(typ, b, &w.value)
		}
		return Skip, nil
	})
}

// EncodeInvocationRequest encodes a request envelope. Empty ids are omitted,
// which the runtime reports as missing fields.
func EncodeInvocationRequest(req entities.InvocationRequest) []byte {
	var b []byte
	if req.PackageID != "" {
		b, _ = AppendMessage(b, requestPackageID, &identifierWire{value: req.PackageID})
	}
	if req.CommandID != "" {
		b, _ = AppendMessage(b, requestCommandID, &identifierWire{value: req.CommandID})
	}
	return AppendBytes(b, requestArguments, req.Arguments)
}

// DecodeInvocationRequest decodes a request envelope.
func DecodeInvocationRequest(b []byte) (entities.InvocationRequest, error) {
	var (
		req      entities.InvocationRequest
		pkg, cmd identifierWire
	)
	err := Walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case requestPackageID:
			return ConsumeMessage(typ, b, &pkg)
		case requestCommandID:
			return ConsumeMessage(typ, b, &cmd)
		case requestArguments:
			return ConsumeBytes(typ, b, &req.Arguments)
		}
		return Skip, nil
	})
	if err != nil {
		return entities.InvocationRequest{}, err
	}
	req.PackageID = pkg.value
	req.CommandID = cmd.value
	return req, nil
}

// EncodeInvocationResponse encodes a response envelope.
func EncodeInvocationResponse(resp entities.InvocationResponse) []byte {
	var b []byte
	b = AppendBool(b, responseSuccess, resp.Success)
	b = AppendBytes(b, responseReturns, resp.Returns)
	if resp.ErrorMessage != nil {
		b = protowire.AppendTag(b, responseErrorMessage, protowire.BytesType)
		b = protowire.AppendString(b, *resp.ErrorMessage)
	}
	return b
}

// DecodeInvocationResponse decodes a response envelope.
func DecodeInvocationResponse(b []byte) (entities.InvocationResponse, error) {
	resp := entities.InvocationResponse{Returns: []byte{}}
	err := Walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case responseSuccess:
			return ConsumeBool(typ, b, &resp.Success)
		case responseReturns:
			return ConsumeBytes(typ, b, &resp.Returns)
		case responseErrorMessage:
			var msg string
			n, err := ConsumeString(typ, b, &msg)
			resp.ErrorMessage = &msg
			return n, err
		}
		return Skip, nil
	})
	if err != nil {
		return entities.InvocationResponse{}, err
	}
	return resp, nil
}
