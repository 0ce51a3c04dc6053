// Package commit produces hiding commitments over exported profiles.
//
// A commitment lets a downstream system reference a profile export without
// learning its tags: each digest absorbs a fresh random nonce, so two exports
// of the same profile cannot be linked by comparing digests.
package commit

import (
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"golang.org/x/crypto/sha3"
)

// NonceSize is the number of random bytes absorbed per commitment.
const NonceSize = 32

// DigestLen is the length of every commitment string in hex characters.
const DigestLen = 64

const (
	domainTag   = "pulse/profile-commitment/v1"
	fallbackTag = "pulse/profile-commitment/fallback/v1"
)

// Scheme commits to a payload. Implementations must produce a fixed-format
// string that does not reveal the payload.
type Scheme interface {
	Commit(payload any) (string, error)
}

// Sponge is a SHA3-256 commitment: H(tag || nonce || len(payload) || payload).
type Sponge struct {
	rand io.Reader
}

// NewSponge returns a Sponge drawing nonces from crypto/rand.
func NewSponge() *Sponge {
	return &Sponge{rand: rand.Reader}
}

// NewSpongeWithReader returns a Sponge drawing nonces from r.
func NewSpongeWithReader(r io.Reader) *Sponge {
	return &Sponge{rand: r}
}

// Commit serializes payload to JSON and absorbs it with a fresh nonce.
func (s *Sponge) Commit(payload any) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode payload: %w", err)
	}

	nonce := make([]byte, NonceSize)
	if _, err := io.ReadFull(s.rand, nonce); err != nil {
		return "", fmt.Errorf("read nonce: %w", err)
	}

	h := sha3.New256()
	h.Write([]byte(domainTag))
	h.Write(nonce)
	var n [8]byte
	binary.BigEndian.PutUint64(n[:], uint64(len(data)))
	h.Write(n[:])
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Fallback is the deterministic digest used when a commitment cannot be
// produced. It only depends on the export timestamp.
func Fallback(ts time.Time) string {
	h := sha3.New256()
	h.Write([]byte(fallbackTag))
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(ts.UnixMilli()))
	h.Write(b[:])
	return hex.EncodeToString(h.Sum(nil))
}

// Generate commits with scheme, substituting Fallback on any failure. The
// returned error is informational; the digest is always usable.
func Generate(scheme Scheme, payload any, ts time.Time) (string, error) {
	if scheme == nil {
		return Fallback(ts), fmt.Errorf("no commitment scheme")
	}
	digest, err := scheme.Commit(payload)
	if err != nil {
		return Fallback(ts), err
	}
	if len(digest) != DigestLen {
		return Fallback(ts), fmt.Errorf("digest length %d, want %d", len(digest), DigestLen)
	}
	return digest, nil
}
