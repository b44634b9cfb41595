// Package errors provides the runtime's error taxonomy.
// All error types support error unwrapping via errors.As() and errors.Is().
package errors

import (
	stdErrors "errors"
	"fmt"

	"github.com/hpp2334/hol-runtime/domain/entities"
)

// ErrorDetail is an alias to entities.ErrorDetail for convenience.
type ErrorDetail = entities.ErrorDetail

// Sentinels matched by the concrete types below through errors.Is.
var (
	ErrMissingField          = stdErrors.New("missing field")
	ErrInvalidFieldType      = stdErrors.New("invalid field type")
	ErrInvalidValue          = stdErrors.New("invalid value")
	ErrCommandNotFound       = stdErrors.New("command not found")
	ErrDuplicateCommand      = stdErrors.New("duplicate command")
	ErrMissingResourceHandle = stdErrors.New("missing resource handle")
	ErrMissingResource       = stdErrors.New("missing resource")
	ErrArchive               = stdErrors.New("archive error")
	ErrDecode                = stdErrors.New("decode error")
	ErrEncode                = stdErrors.New("encode error")
	ErrUnsupportedAlgorithm  = stdErrors.New("unsupported digest algorithm")
	ErrUnsupportedCall       = stdErrors.New("unsupported bridge call")
)

// DetailedError is implemented by error types that can describe themselves
// as a structured ErrorDetail.
type DetailedError interface {
	error
	ToErrorDetail() *entities.ErrorDetail
}

// ToErrorDetail converts a Go error to a structured ErrorDetail.
func ToErrorDetail(err error) *entities.ErrorDetail {
	if err == nil {
		return nil
	}

	var e *entities.ErrorDetail
	if stdErrors.As(err, &e) {
		return e
	}

	var de DetailedError
	if stdErrors.As(err, &de) {
		return de.ToErrorDetail()
	}

	return &entities.ErrorDetail{
		Message: err.Error(),
		Type:    "internal",
	}
}

// MissingFieldError reports a required envelope or argument field that is absent.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("missing required field: %s", e.Field)
}

func (e *MissingFieldError) Is(target error) bool { return target == ErrMissingField }

// ToErrorDetail implements DetailedError.
func (e *MissingFieldError) ToErrorDetail() *entities.ErrorDetail {
	return &entities.ErrorDetail{Message: e.Error(), Type: "field", Code: "missing_field"}
}

// InvalidFieldTypeError reports a field whose content has the wrong shape.
type InvalidFieldTypeError struct {
	Field    string
	Expected string
}

func (e *InvalidFieldTypeError) Error() string {
	return fmt.Sprintf("invalid field type for %s: expected %s", e.Field, e.Expected)
}

func (e *InvalidFieldTypeError) Is(target error) bool { return target == ErrInvalidFieldType }

// ToErrorDetail implements DetailedError.
func (e *InvalidFieldTypeError) ToErrorDetail() *entities.ErrorDetail {
	return &entities.ErrorDetail{Message: e.Error(), Type: "field", Code: "invalid_field_type"}
}

// InvalidValueError reports argument content that decoded but is not acceptable.
type InvalidValueError struct {
	Err     error
	Message string
}

func (e *InvalidValueError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid field value: %s: %v", e.Message, e.Err)
	}
	return fmt.Sprintf("invalid field value: %s", e.Message)
}

func (e *InvalidValueError) Unwrap() error { return e.Err }

func (e *InvalidValueError) Is(target error) bool { return target == ErrInvalidValue }

// ToErrorDetail implements DetailedError.
func (e *InvalidValueError) ToErrorDetail() *entities.ErrorDetail {
	return &entities.ErrorDetail{Message: e.Error(), Type: "field", Code: "invalid_value"}
}

// CommandNotFoundError reports an invocation of an unregistered key.
type CommandNotFoundError struct {
	Key entities.CommandKey
}

func (e *CommandNotFoundError) Error() string {
	return fmt.Sprintf("command not found: %s", e.Key)
}

func (e *CommandNotFoundError) Is(target error) bool { return target == ErrCommandNotFound }

// ToErrorDetail implements DetailedError.
func (e *CommandNotFoundError) ToErrorDetail() *entities.ErrorDetail {
	return &entities.ErrorDetail{Message: e.Error(), Type: "command", Code: e.Key.String(), IsNotFound: true}
}

// DuplicateCommandError reports a second registration under an existing key.
type DuplicateCommandError struct {
	Key entities.CommandKey
}

func (e *DuplicateCommandError) Error() string {
	return fmt.Sprintf("duplicate command: %s", e.Key)
}

func (e *DuplicateCommandError) Is(target error) bool { return target == ErrDuplicateCommand }

// ToErrorDetail implements DetailedError.
func (e *DuplicateCommandError) ToErrorDetail() *entities.ErrorDetail {
	return &entities.ErrorDetail{Message: e.Error(), Type: "command", Code: "duplicate"}
}

// MissingResourceHandleError reports an argument whose handle field is absent.
type MissingResourceHandleError struct {
	Kind string // "blob", "archiver", ...
}

func (e *MissingResourceHandleError) Error() string {
	return fmt.Sprintf("missing %s resource handle", e.Kind)
}

func (e *MissingResourceHandleError) Is(target error) bool {
	return target == ErrMissingResourceHandle
}

// ToErrorDetail implements DetailedError.
func (e *MissingResourceHandleError) ToErrorDetail() *entities.ErrorDetail {
	return &entities.ErrorDetail{Message: e.Error(), Type: "resource", Code: "missing_handle"}
}

// MissingResourceError reports a handle that is absent from the table or
// that stores a value of another type.
type MissingResourceError struct {
	Kind   string
	Handle uint64
}

func (e *MissingResourceError) Error() string {
	return fmt.Sprintf("missing %s resource: %d", e.Kind, e.Handle)
}

func (e *MissingResourceError) Is(target error) bool { return target == ErrMissingResource }

// ToErrorDetail implements DetailedError.
func (e *MissingResourceError) ToErrorDetail() *entities.ErrorDetail {
	return &entities.ErrorDetail{
		Message:    e.Error(),
		Type:       "resource",
		Code:       "missing_resource",
		IsNotFound: true,
		Details:    map[string]any{"handle": e.Handle},
	}
}

// MissingArchiverError is the MissingResourceError raised by archive commands.
func MissingArchiverError(handle uint64) *MissingResourceError {
	return &MissingResourceError{Kind: "archiver", Handle: handle}
}

// ArchiveError reports a corrupt or unsupported container, or a missing entry.
type ArchiveError struct {
	Err      error
	Op       string
	Path     string
	NotFound bool
}

func (e *ArchiveError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("archive %s %q failed: %v", e.Op, e.Path, e.Err)
	}
	return fmt.Sprintf("archive %s failed: %v", e.Op, e.Err)
}

func (e *ArchiveError) Unwrap() error { return e.Err }

func (e *ArchiveError) Is(target error) bool { return target == ErrArchive }

// ToErrorDetail implements DetailedError.
func (e *ArchiveError) ToErrorDetail() *entities.ErrorDetail {
	return &entities.ErrorDetail{Message: e.Error(), Type: "archive", Code: e.Op, IsNotFound: e.NotFound}
}

// DecodeError reports malformed binary input.
type DecodeError struct {
	Err  error
	Type string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("failed to decode %s: %v", e.Type, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

func (e *DecodeError) Is(target error) bool { return target == ErrDecode }

// ToErrorDetail implements DetailedError.
func (e *DecodeError) ToErrorDetail() *entities.ErrorDetail {
	return &entities.ErrorDetail{Message: e.Error(), Type: "codec", Code: "decode"}
}

// EncodeError reports a result that could not be encoded.
type EncodeError struct {
	Err  error
	Type string
}

func (e *EncodeError) Error() string {
	return fmt.Sprintf("failed to encode %s: %v", e.Type, e.Err)
}

func (e *EncodeError) Unwrap() error { return e.Err }

func (e *EncodeError) Is(target error) bool { return target == ErrEncode }

// ToErrorDetail implements DetailedError.
func (e *EncodeError) ToErrorDetail() *entities.ErrorDetail {
	return &entities.ErrorDetail{Message: e.Error(), Type: "codec", Code: "encode"}
}

// UnsupportedAlgorithmError fails a whole digest call.
type UnsupportedAlgorithmError struct {
	Algorithm entities.DigestAlgorithm
}

func (e *UnsupportedAlgorithmError) Error() string {
	return fmt.Sprintf("unsupported digest algorithm code %d", int32(e.Algorithm))
}

func (e *UnsupportedAlgorithmError) Is(target error) bool {
	return target == ErrUnsupportedAlgorithm
}

// ToErrorDetail implements DetailedError.
func (e *UnsupportedAlgorithmError) ToErrorDetail() *entities.ErrorDetail {
	return &entities.ErrorDetail{Message: e.Error(), Type: "digest", Code: "unsupported_algorithm"}
}

// UnsupportedCallError reports a bridge call code with no implementation.
type UnsupportedCallError struct {
	Code entities.BridgeCode
}

func (e *UnsupportedCallError) Error() string {
	return fmt.Sprintf("unsupported bridge call code %d", int32(e.Code))
}

func (e *UnsupportedCallError) Is(target error) bool { return target == ErrUnsupportedCall }

// ToErrorDetail implements DetailedError.
func (e *UnsupportedCallError) ToErrorDetail() *entities.ErrorDetail {
	return &entities.ErrorDetail{Message: e.Error(), Type: "bridge", Code: "unsupported_call"}
}

// MemoryError represents a guest memory allocation failure.
type MemoryError struct {
	Requested int
	Current   int
	Limit     int
}

func (e *MemoryError) Error() string {
	return fmt.Sprintf("memory allocation failed: requested %d bytes, current %d bytes, limit %d bytes",
		e.Requested, e.Current, e.Limit)
}

// ToErrorDetail implements DetailedError.
func (e *MemoryError) ToErrorDetail() *entities.ErrorDetail {
	return &entities.ErrorDetail{Message: e.Error(), Type: "internal", Code: "memory_limit"}
}
