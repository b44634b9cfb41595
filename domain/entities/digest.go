package entities

import (
	"fmt"
	"strings"
)

// DigestAlgorithm is the wire-stable numeric code of a hash function.
type DigestAlgorithm int32

const (
	DigestMD5        DigestAlgorithm = 0
	DigestSHA1       DigestAlgorithm = 1
	DigestSHA256     DigestAlgorithm = 2
	DigestSHA512     DigestAlgorithm = 3
	DigestBLAKE2b256 DigestAlgorithm = 4
	DigestSHA3_256   DigestAlgorithm = 5
	DigestBLAKE3     DigestAlgorithm = 6
)

var digestNames = map[DigestAlgorithm]string{
	DigestMD5:        "md5",
	DigestSHA1:       "sha1",
	DigestSHA256:     "sha256",
	DigestSHA512:     "sha512",
	DigestBLAKE2b256: "blake2b-256",
	DigestSHA3_256:   "sha3-256",
	DigestBLAKE3:     "blake3",
}

// String returns the lower-case algorithm name, or "digest(N)" for unknown codes.
func (a DigestAlgorithm) String() string {
	if name, ok := digestNames[a]; ok {
		return name
	}
	return fmt.Sprintf("digest(%d)", int32(a))
}

// ParseDigestAlgorithm resolves a case-insensitive algorithm name.
func ParseDigestAlgorithm(name string) (DigestAlgorithm, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for alg, n := range digestNames {
		if n == name {
			return alg, true
		}
	}
	return 0, false
}

// DigestResult is one finalized digest, rendered as upper-case hex.
type DigestResult struct {
	Algorithm DigestAlgorithm `json:"typ"`
	Value     string          `json:"val"`
}
