package xmss

import "golang.org/x/crypto/sha3"

// domain separation tags mixed into the various hash calls, modeled on
// the teacher's HASH_PADDING_* constants in hash.go. The scheme specified
// here has no RFC8391 bitmask/address layer, so these tags are the only
// domain separation between key derivation and everything else.
const (
	tagKeyDerivation byte = 0x53 // "S" -- see spec section 9, Open Question 1
)

// hash is the single hash primitive the scheme uses (spec section 4.1):
// SHAKE256, read out to an arbitrary output length. There is no second
// hash function anywhere in this package.
func hash(in []byte, outLen int) []byte {
	out := make([]byte, outLen)
	hashInto(in, out)
	return out
}

// hashInto writes the hash of in into out, sized to len(out) bytes.
func hashInto(in, out []byte) {
	h := sha3.NewShake256()
	h.Write(in)
	h.Read(out)
}

// hashConcatInto hashes the concatenation of a and b into a fresh N-byte
// slice, used for internal Merkle nodes: node(h,i) = hash(left || right).
func hashConcatInto(a, b []byte) []byte {
	buf := make([]byte, len(a)+len(b))
	copy(buf, a)
	copy(buf[len(a):], b)
	out := hash(buf, N)
	secureZero(buf)
	return out
}
