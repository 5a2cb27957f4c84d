package xmss

import "crypto/subtle"

// signer.go ties the primitives together into the stateful signer of
// spec section 4.6: Keygen, the Fresh/Active/Exhausted state machine
// SignAuto drives, and Verify. It plays the role of the teacher's
// PrivateKey/PublicKey pair in api.go, generalized from the teacher's
// multi-subtree XMSS^MT signer to this scheme's single Merkle tree.

// PublicKey is the public half of an XMSS key pair: the parameters it
// was generated under and the Merkle root.
type PublicKey struct {
	Params Params
	Root   [N]byte
}

// Signer is a stateful XMSS private key backed by a KeyContainer. Its
// state machine is Fresh (NextIndex == 0, never signed) -> Active(idx)
// -> ... -> Exhausted (NextIndex == Capacity()), per spec section 4.6.
// A Signer must be closed with Close when no longer needed, to release
// its advisory lock.
type Signer struct {
	kc    *KeyContainer
	cache *NodeCache
}

// Keygen generates a fresh XMSS key pair under params, using rng for the
// master seed, and persists it as a new key container at path. The
// returned Signer owns the container's lock until Close.
func Keygen(path string, params *Params, rng RNG) (*Signer, *PublicKey, Error) {
	seed, err := rng.RandomBytes(N)
	if err != nil {
		return nil, nil, wrapErrorf(KindIoFailure, err, "failed to generate master seed")
	}

	root := Root(params, seed, nil)

	kf := &KeyFile{Params: *params}
	copy(kf.MasterSeed[:], seed)
	copy(kf.Root[:], root)
	secureZero(seed)

	kc, cerr := CreateKeyContainer(path, kf)
	if cerr != nil {
		return nil, nil, cerr
	}

	pub := &PublicKey{Params: *params}
	copy(pub.Root[:], root)
	return &Signer{kc: kc}, pub, nil
}

// OpenSigner opens an existing key container at path, taking its
// advisory lock. It returns a locked Error if another process already
// holds the lock.
func OpenSigner(path string) (*Signer, Error) {
	kc, err := OpenKeyContainer(path)
	if err != nil {
		if err.Kind() == KindStateCorrupt {
			log.Logf("xmss: key or state file at %s is corrupt: %s", path, err)
		}
		return nil, err
	}
	return &Signer{kc: kc}, nil
}

// PublicKey returns the signer's public key.
func (s *Signer) PublicKey() *PublicKey {
	pub := &PublicKey{Params: *s.kc.Params()}
	copy(pub.Root[:], s.kc.Root())
	return pub
}

// NextIndex returns the index SignAuto will next consume.
func (s *Signer) NextIndex() uint32 { return s.kc.NextIndex() }

// Exhausted reports whether every leaf has already been consumed.
func (s *Signer) Exhausted() bool {
	return uint64(s.kc.NextIndex()) >= s.kc.Params().Capacity()
}

// EnableNodeCache turns on the optional mmap-backed node cache described
// in spec section 4.5, sized for the given number of node slots, to
// amortize authentication-path generation across successive calls to
// SignAuto. scratchPath names the backing file, which is unlinked as
// soon as it is mapped.
func (s *Signer) EnableNodeCache(scratchPath string, slots int) Error {
	cache, err := NewNodeCache(scratchPath, slots)
	if err != nil {
		return err
	}
	s.cache = cache
	return nil
}

// SignAuto signs msg with the next unused leaf, advancing and durably
// persisting the signer's state before returning the signature -- per
// spec section 4.6, a signature is never handed back to the caller
// before its index has been committed to disk, so a crash can never
// result in the same leaf being used twice.
//
// When the key is Exhausted, SignAuto rotates it in place instead of
// failing: it generates a new master seed and root, rewrites the key
// file, resets the next index to 0, and signs index 0 under the new
// root, per spec section 4.6's Exhausted -> Active(0) transition. rng
// supplies the new seed; pass the same RNG used at Keygen time (a
// CryptoRNG in production) to keep rotation non-deterministic.
func (s *Signer) SignAuto(msg []byte, rng RNG) (*Signature, Error) {
	params := s.kc.Params()
	index := s.kc.NextIndex()
	if uint64(index) >= params.Capacity() {
		log.Logf("xmss: key exhausted after %d leaves, regenerating", params.Capacity())
		if err := s.rotate(rng); err != nil {
			return nil, err
		}
		index = 0
	}

	sig, err := s.signIndex(index, msg)
	if err != nil {
		return nil, err
	}

	if err := s.kc.Advance(index); err != nil {
		log.Logf("xmss: failed to persist advanced index: %s", err)
		return nil, err
	}
	return sig, nil
}

// rotate regenerates the key in place: a fresh master seed, a fresh
// root computed over it, and a next index reset to 0.
func (s *Signer) rotate(rng RNG) Error {
	params := s.kc.Params()

	seed, err := rng.RandomBytes(N)
	if err != nil {
		return wrapErrorf(KindIoFailure, err, "failed to generate master seed for key rotation")
	}
	if s.cache != nil {
		// Cached nodes are keyed by (height, index) only and belong to the
		// old seed's tree: empty every slot before building the new one.
		for i := range s.cache.buf {
			s.cache.buf[i] = 0
		}
	}
	root := Root(params, seed, s.cache)

	kf := &KeyFile{Params: *params}
	copy(kf.MasterSeed[:], seed)
	copy(kf.Root[:], root)
	secureZero(seed)

	if err := s.kc.Regenerate(kf); err != nil {
		log.Logf("xmss: failed to persist regenerated key: %s", err)
		return err
	}
	log.Logf("xmss: key regenerated, new root %x", kf.Root)
	return nil
}

// SignIndex signs msg with a caller-chosen leaf index, without touching
// or requiring the signer's persisted next-index state. It exists for
// recovering a specific index (e.g. to re-derive a previously issued
// signature) and must not be used to sign fresh messages, since callers
// are themselves responsible for never reusing an index across calls.
func (s *Signer) SignIndex(index uint32, msg []byte) (*Signature, Error) {
	params := s.kc.Params()
	if uint64(index) >= params.Capacity() {
		return nil, errorf(KindIndexOutOfRange, "index %d exceeds capacity %d", index, params.Capacity())
	}
	return s.signIndex(index, msg)
}

func (s *Signer) signIndex(index uint32, msg []byte) (*Signature, Error) {
	params := s.kc.Params()
	masterSeed := s.kc.MasterSeed()

	digest := hash(msg, N)

	skChains := DeriveWotsSK(params, masterSeed, index)
	wotsSig := WotsSign(params, digest, skChains)
	for _, c := range skChains {
		secureZero(c)
	}

	authPath := AuthPath(params, masterSeed, index, s.cache)

	return &Signature{
		Index:    index,
		WotsSig:  wotsSig,
		AuthPath: authPath,
	}, nil
}

// Close releases the signer's advisory lock and, if enabled, wipes and
// releases its node cache.
func (s *Signer) Close() error {
	var err error
	if s.cache != nil {
		err = s.cache.Close()
	}
	if cerr := s.kc.Close(); cerr != nil {
		if err == nil {
			err = cerr
		}
	}
	return err
}

// Verify checks sig against msg and pub's root, per spec section 4.4.
// It returns false for any structural or cryptographic failure and
// never panics or returns an error: a malformed signature is simply not
// a valid one.
func Verify(pub *PublicKey, msg []byte, sig *Signature) bool {
	params := &pub.Params
	if sig == nil || uint32(len(sig.WotsSig)) != params.Len || uint32(len(sig.AuthPath)) != params.H {
		return false
	}
	if uint64(sig.Index) >= params.Capacity() {
		return false
	}

	digest := hash(msg, N)
	pkChains := WotsPkFromSig(params, digest, sig.WotsSig)
	leaf := leafFromPk(pkChains)
	root := RootFromAuthPath(params, leaf, sig.Index, sig.AuthPath)

	return subtle.ConstantTimeCompare(root, pub.Root[:]) == 1
}
