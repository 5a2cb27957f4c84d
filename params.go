package xmss

import "fmt"

// N is the security parameter: the byte length of every hash, seed, node
// and chain value in the scheme. Unlike the teacher's Params.N, it is not
// configurable -- spec section 3 fixes it at 32.
const N = 32

// Params holds the two knobs of an XMSS instance and the lengths derived
// from them. Create one with NewParams; the zero value is not valid.
type Params struct {
	H uint32 // tree height
	W uint16 // Winternitz parameter, a power of two, w >= 2

	LogW uint8  // log2(W)
	Len1 uint32 // WOTS+ chains carrying the message digest
	Len2 uint32 // WOTS+ chains carrying the checksum
	Len  uint32 // Len1 + Len2, total WOTS+ chains
}

// MaxHeight is the largest tree height this module will derive parameters
// for. Spec section 4.2 allows h up to 32; the wire format's leaf_index
// field (section 4.7) is a fixed-width uint32, so h is capped there too --
// tighter than the teacher's FullHeight<=63, which instead grows its
// indexBytes field to fit larger trees.
const MaxHeight = 32

// NewParams validates (h, w) and derives the WOTS+ lengths and tree
// capacity, per spec section 3 and 4.2.
func NewParams(h uint32, w uint16) (*Params, Error) {
	if h < 1 || h > MaxHeight {
		return nil, errorf(KindInvalidParameters,
			"height must be in [1, %d], got %d", MaxHeight, h)
	}
	if w < 2 || w > 256 || (w&(w-1)) != 0 {
		return nil, errorf(KindInvalidParameters,
			"w must be a power of two in [2, 256], got %d", w)
	}

	logW := uint8(0)
	for (uint16(1) << logW) != w {
		logW++
	}
	if 8%logW != 0 {
		return nil, errorf(KindInvalidParameters,
			"w=%d (log2 w=%d) does not divide evenly into a byte; use w in {2, 4, 16, 256}", w, logW)
	}

	p := &Params{H: h, W: w, LogW: logW}
	p.Len1 = ceilDiv(8*N, int(logW))
	p.Len2 = log2Floor(uint64(p.Len1)*uint64(w-1))/uint32(logW) + 1
	p.Len = p.Len1 + p.Len2
	return p, nil
}

// Capacity returns 2^h, the number of distinct leaves (and thus the
// maximum number of signatures) this parameter set supports.
func (p *Params) Capacity() uint64 {
	return uint64(1) << p.H
}

// WotsSignatureSize is the length in bytes of a bare WOTS+ signature:
// Len chains of N bytes each.
func (p *Params) WotsSignatureSize() uint32 {
	return p.Len * N
}

// SignatureSize is the length in bytes of a serialized Signature
// (section 4.7): a u32 index, a WOTS+ signature and an H-node auth path.
func (p *Params) SignatureSize() uint32 {
	return 4 + p.WotsSignatureSize() + p.H*N
}

func (p Params) String() string {
	return fmt.Sprintf("XMSS-SHAKE256_%d_w%d", p.H, p.W)
}

func ceilDiv(a, b int) uint32 {
	return uint32((a + b - 1) / b)
}

func log2Floor(x uint64) uint32 {
	var n uint32
	for x > 1 {
		x >>= 1
		n++
	}
	return n
}

// namedParams mirrors the teacher's registry of named algorithm presets
// (params.go's `registry`), trimmed to the handful of (h, w) combinations
// this module ships as conveniences. Callers needing other combinations
// use NewParams directly.
var namedParams = map[string][2]uint32{
	"XMSS-SHAKE256_10_w16": {10, 16},
	"XMSS-SHAKE256_16_w16": {16, 16},
	"XMSS-SHAKE256_20_w16": {20, 16},
}

// ParamsFromName looks up one of the named presets, returning nil if the
// name is unknown. See NewParams for constructing arbitrary parameters.
func ParamsFromName(name string) *Params {
	hw, ok := namedParams[name]
	if !ok {
		return nil
	}
	p, err := NewParams(hw[0], uint16(hw[1]))
	if err != nil {
		return nil
	}
	return p
}

// ListNames lists the named parameter presets known to ParamsFromName.
func ListNames() []string {
	names := make([]string, 0, len(namedParams))
	for name := range namedParams {
		names = append(names, name)
	}
	return names
}
