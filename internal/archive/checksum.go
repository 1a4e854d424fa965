package archive

import (
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"strings"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/sha3"
)

// ChecksumScheme names a manifest digest algorithm.
type ChecksumScheme string

const (
	MD5        ChecksumScheme = "md5"
	SHA256     ChecksumScheme = "sha256"
	SHA3_256   ChecksumScheme = "sha3-256"
	BLAKE2b512 ChecksumScheme = "blake2b-512"
)

// ParseChecksumScheme accepts the scheme names, case-insensitively.
func ParseChecksumScheme(s string) (ChecksumScheme, error) {
	switch cs := ChecksumScheme(strings.ToLower(s)); cs {
	case MD5, SHA256, SHA3_256, BLAKE2b512:
		return cs, nil
	case "":
		return MD5, nil
	}
	return "", fmt.Errorf("unknown checksum scheme %q", s)
}

// New returns a fresh hash for the scheme.
func (s ChecksumScheme) New() (hash.Hash, error) {
	switch s {
	case MD5:
		return md5.New(), nil
	case SHA256:
		return sha256.New(), nil
	case SHA3_256:
		return sha3.New256(), nil
	case BLAKE2b512:
		return blake2b.New512(nil)
	}
	return nil, fmt.Errorf("unknown checksum scheme %q", string(s))
}

// Sum digests r and returns the lowercase hex checksum.
func (s ChecksumScheme) Sum(r io.Reader) (string, error) {
	h, err := s.New()
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(h, r); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// HexLength is the length of a hex encoded digest for the scheme.
func (s ChecksumScheme) HexLength() int {
	switch s {
	case MD5:
		return 32
	case SHA256, SHA3_256:
		return 64
	case BLAKE2b512:
		return 128
	}
	return 0
}
