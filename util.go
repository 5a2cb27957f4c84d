package xmss

import (
	"runtime"

	"github.com/templexxx/xor"
)

// SecureZero overwrites buf with zero bytes in a way the compiler cannot
// optimize away as a dead store. Spec section 4.8 requires this for every
// buffer that ever held secret key material.
//
// The zeroing itself is an XOR of buf with itself, routed through
// templexxx/xor's exported BytesSameLen -- a real call across a package
// boundary, the same function the teacher's hash.go f/h hashes use to
// combine PRF output with chain input -- so the Go compiler cannot prove the result is
// statically zero and elide the write. runtime.KeepAlive pins buf past the
// call so it cannot be dead-store-eliminated after the last read either.
func SecureZero(buf []byte) {
	if len(buf) == 0 {
		return
	}
	xor.BytesSameLen(buf, buf, buf)
	runtime.KeepAlive(buf)
}

func secureZero(buf []byte) { SecureZero(buf) }

// ConstantTimeSelect sets dst[i] = a[i] if mask == 0xff, or dst[i] = b[i]
// if mask == 0x00, for every byte position, without branching on mask.
// mask must be either all-ones or all-zeros; any other value is a caller
// bug (spec section 4.8).
func ConstantTimeSelect(dst, a, b []byte, mask byte) {
	for i := range dst {
		dst[i] = (mask & a[i]) | (^mask & b[i])
	}
}
