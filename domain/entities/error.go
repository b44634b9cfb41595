package entities

// ErrorDetail is the structured form of a runtime error. It is logged by the
// command middleware and replied as the payload of a failed bridge call.
//
// Type groups errors by the layer that raised them: "field", "command",
// "resource", "archive", "codec", "digest", "bridge", "panic" or "internal".
// Code narrows it down (for example "missing_field" or a command key).
type ErrorDetail struct {
	Details    map[string]any `json:"details,omitempty"`
	Message    string         `json:"message"`
	Type       string         `json:"type"`
	Code       string         `json:"code,omitempty"`
	Stack      []byte         `json:"stack,omitempty"`
	IsNotFound bool           `json:"is_not_found,omitempty"`
}

// NewErrorDetail creates an ErrorDetail of the given type.
func NewErrorDetail(typ, message string) *ErrorDetail {
	return &ErrorDetail{Type: typ, Message: message}
}

// Error returns the message. Details reconstructed from a bridge reply keep
// the text the guest produced, so callers can match on it.
func (e *ErrorDetail) Error() string {
	if e == nil {
		return ""
	}
	if e.Message == "" {
		return e.Type + " error"
	}
	return e.Message
}
