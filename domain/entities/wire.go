package entities

import "time"

// ContextWire is the JSON wire format for context.Context propagation
// across the guest/host boundary.
type ContextWire struct {
	Deadline  *time.Time `json:"deadline,omitempty"`
	RequestID string     `json:"request_id,omitempty"`
	TimeoutMs int64      `json:"timeout_ms,omitempty"`
	Canceled  bool       `json:"canceled,omitempty"`
}

// BridgeCode selects the operation of a dispatch-by-code bridge call.
type BridgeCode int32

const (
	// BridgeBatchDigest computes several digests over one chunked source.
	BridgeBatchDigest BridgeCode = 0
)

// BatchDigestArg is the JSON argument of a BridgeBatchDigest call.
type BatchDigestArg struct {
	Algorithms []DigestAlgorithm `json:"typs" validate:"required,min=1"`
	BlobID     int32             `json:"blob_id"`
}

// BridgeError is the JSON payload replied when a bridge call fails.
type BridgeError struct {
	Error *ErrorDetail `json:"error"`
}
