package digest

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"hash"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/sha3"
	"lukechampine.com/blake3"

	"github.com/hpp2334/hol-runtime/domain/entities"
)

var constructors = map[entities.DigestAlgorithm]func() hash.Hash{
	entities.DigestMD5:    md5.New,
	entities.DigestSHA1:   sha1.New,
	entities.DigestSHA256: sha256.New,
	entities.DigestSHA512: sha512.New,
	entities.DigestBLAKE2b256: func() hash.Hash {
		// Only fails for keys longer than 64 bytes.
		h, _ := blake2b.New256(nil)
		return h
	},
	entities.DigestSHA3_256: func() hash.Hash { return sha3.New256() },
	entities.DigestBLAKE3:   func() hash.Hash { return blake3.New(32, nil) },
}

// Supported returns every implemented algorithm in code order.
func Supported() []entities.DigestAlgorithm {
	algs := make([]entities.DigestAlgorithm, 0, len(constructors))
	for code := entities.DigestMD5; code <= entities.DigestBLAKE3; code++ {
		if _, ok := constructors[code]; ok {
			algs = append(algs, code)
		}
	}
	return algs
}

// IsSupported reports whether alg has an implementation.
func IsSupported(alg entities.DigestAlgorithm) bool {
	_, ok := constructors[alg]
	return ok
}

func newHash(alg entities.DigestAlgorithm) (hash.Hash, bool) {
	ctor, ok := constructors[alg]
	if !ok {
		return nil, false
	}
	return ctor(), true
}
