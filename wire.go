package xmss

import (
	"encoding/binary"

	"github.com/bwesterb/byteswriter"
)

// wire.go implements the compact signature wire format of spec section
// 4.7: a u32 leaf index, a bare WOTS+ signature, and an H-node
// authentication path, serialized sequentially with
// bwesterb/byteswriter the way the teacher's Signature.WriteInto fills
// a preallocated buffer field by field.

// MaxSignatureSize is the advisory cap spec section 4.7 places on a
// serialized signature. It is enforced at serialize time as a sizing
// error, not by silent truncation: resolves spec section 9's Open
// Question 4.
const MaxSignatureSize = 4096

// Signature is a single XMSS signature: the leaf index it was produced
// under, the WOTS+ chains, and the authentication path proving that
// leaf's membership in the tree.
type Signature struct {
	Index    uint32
	WotsSig  [][]byte
	AuthPath [][]byte
}

// MarshalBinary serializes sig per spec section 4.7. It fails with a
// KindInvalidParameters error if the result would exceed
// MaxSignatureSize, rather than silently truncating it.
func (sig *Signature) MarshalBinary(p *Params) ([]byte, Error) {
	size := p.SignatureSize()
	if size > MaxSignatureSize {
		return nil, errorf(KindInvalidParameters,
			"signature size %d exceeds the %d byte cap for parameters %s",
			size, MaxSignatureSize, p)
	}

	buf := make([]byte, size)
	w := byteswriter.NewWriter(buf)

	var idx [4]byte
	binary.LittleEndian.PutUint32(idx[:], sig.Index)
	if _, err := w.Write(idx[:]); err != nil {
		return nil, wrapErrorf(KindIoFailure, err, "failed to write signature index")
	}
	for _, chain := range sig.WotsSig {
		if _, err := w.Write(chain); err != nil {
			return nil, wrapErrorf(KindIoFailure, err, "failed to write WOTS+ signature chain")
		}
	}
	for _, node := range sig.AuthPath {
		if _, err := w.Write(node); err != nil {
			return nil, wrapErrorf(KindIoFailure, err, "failed to write authentication path node")
		}
	}
	return buf, nil
}

// UnmarshalSignature parses a Signature serialized by MarshalBinary for
// the given parameters, per spec section 4.7. It fails with
// KindMalformedSignature if buf has the wrong length for p.
func UnmarshalSignature(p *Params, buf []byte) (*Signature, Error) {
	want := p.SignatureSize()
	if uint32(len(buf)) != want {
		return nil, errorf(KindMalformedSignature,
			"signature has %d bytes, expected %d for parameters %s", len(buf), want, p)
	}

	sig := &Signature{
		Index:    binary.LittleEndian.Uint32(buf[:4]),
		WotsSig:  make([][]byte, p.Len),
		AuthPath: make([][]byte, p.H),
	}
	off := uint32(4)
	for i := uint32(0); i < p.Len; i++ {
		sig.WotsSig[i] = buf[off : off+N]
		off += N
	}
	for i := uint32(0); i < p.H; i++ {
		sig.AuthPath[i] = buf[off : off+N]
		off += N
	}
	if uint64(sig.Index) >= p.Capacity() {
		return nil, errorf(KindIndexOutOfRange,
			"signature index %d exceeds capacity %d", sig.Index, p.Capacity())
	}
	return sig, nil
}
