package xmss

import (
	"crypto/rand"

	"golang.org/x/crypto/chacha20"
)

// rng.go implements the two RNG collaborators spec section 6 calls for:
// a cryptographically secure default, and a seeded one for reproducible
// tests and vectors. The seeded variant expands a fixed key through
// ChaCha20 into as many bytes as requested, the same "keyed CSPRNG as a
// keystream generator" shape the jrick-winternitz package (in
// other_examples) uses to expand a Winternitz secret seed, substituting
// the teacher's own golang.org/x/crypto dependency for that package's
// decred.org/cspp/chacha20prng.

// RNG supplies random bytes to key generation. Implementations must
// return exactly n bytes or an error; they must never block forever.
type RNG interface {
	RandomBytes(n int) ([]byte, error)
}

// CryptoRNG is the default RNG, backed by crypto/rand.
type CryptoRNG struct{}

// RandomBytes returns n cryptographically secure random bytes.
func (CryptoRNG) RandomBytes(n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return nil, wrapErrorf(KindIoFailure, err, "failed to read system randomness")
	}
	return buf, nil
}

// SeededRNG is a deterministic RNG for reproducible key generation: the
// same seed always expands to the same byte stream, so tests and
// recorded vectors can regenerate identical keys without storing them.
// It must never be used for production key material.
//
// A SeededRNG holds a single running ChaCha20 keystream that each
// RandomBytes call consumes further into, so successive calls against
// one SeededRNG return successive, non-overlapping stretches of the
// same stream -- replaying the sequence of calls Keygen makes against a
// fresh SeededRNG with the same seed reproduces the same
// key material every time.
type SeededRNG struct {
	cipher *chacha20.Cipher
}

// NewSeededRNG derives a SeededRNG from seed. seed is hashed down to 32
// bytes first, so any length is accepted.
func NewSeededRNG(seed []byte) *SeededRNG {
	var key [32]byte
	hashInto(seed, key[:])
	var nonce [chacha20.NonceSize]byte
	c, err := chacha20.NewUnauthenticatedCipher(key[:], nonce[:])
	if err != nil {
		// Only fails on malformed key/nonce lengths, which are fixed above.
		panic(err)
	}
	return &SeededRNG{cipher: c}
}

// RandomBytes returns the next n bytes of the keystream.
func (s *SeededRNG) RandomBytes(n int) ([]byte, error) {
	zeros := make([]byte, n)
	out := make([]byte, n)
	s.cipher.XORKeyStream(out, zeros)
	return out, nil
}
