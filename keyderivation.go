package xmss

import "encoding/binary"

// DeriveWotsSK deterministically derives the Len secret chain heads of
// the WOTS+ key pair for the given leaf, per spec section 4.4.
//
// The PRF is SHAKE256(masterSeed || u32LE(leafIndex) || 0x53), expanded to
// Len*N bytes and partitioned left-to-right into Len chain heads -- the
// same "expand, then partition" shape as the teacher's wotsExpandSeed,
// generalized from the teacher's address-keyed PRF to this scheme's
// seed+index PRF. The domain tag resolves spec section 9's Open Question 1
// as mandatory: the signer's own key-rotation path re-derives against this
// same tag, so it must never change independently of verification.
//
// The caller owns the returned buffers and must SecureZero them once the
// WOTS+ signature or public key has been produced.
func DeriveWotsSK(p *Params, masterSeed []byte, leafIndex uint32) [][]byte {
	in := make([]byte, len(masterSeed)+4+1)
	copy(in, masterSeed)
	binary.LittleEndian.PutUint32(in[len(masterSeed):], leafIndex)
	in[len(masterSeed)+4] = tagKeyDerivation

	expanded := make([]byte, int(p.Len)*N)
	hashInto(in, expanded)
	secureZero(in)

	chains := make([][]byte, p.Len)
	for i := uint32(0); i < p.Len; i++ {
		chains[i] = expanded[i*N : (i+1)*N]
	}
	return chains
}
