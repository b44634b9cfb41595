package command

import (
	"fmt"

	"github.com/hpp2334/hol-runtime/domain/entities"
)

// PanicError is returned in place of a result when a handler panics.
type PanicError struct {
	Value any
	Key   entities.CommandKey
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("command %s panicked: %v", e.Key, e.Value)
}

// ToErrorDetail implements errors.DetailedError.
func (e *PanicError) ToErrorDetail() *entities.ErrorDetail {
	return &entities.ErrorDetail{
		Message: e.Error(),
		Type:    "panic",
		Code:    e.Key.String(),
		Stack:   e.Stack,
	}
}
