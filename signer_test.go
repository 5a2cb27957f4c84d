package xmss

import (
	"path/filepath"
	"testing"
)

func TestKeygenSignVerifyRoundTrip(t *testing.T) {
	p, err := NewParams(4, 16)
	if err != nil {
		t.Fatalf("NewParams: %s", err)
	}

	path := filepath.Join(t.TempDir(), "testkey")
	signer, pub, kerr := Keygen(path, p, NewSeededRNG([]byte("round trip test seed")))
	if kerr != nil {
		t.Fatalf("Keygen: %s", kerr)
	}
	defer signer.Close()

	msg := []byte("a message worth signing")
	rng := NewSeededRNG([]byte("round trip rotation seed"))
	sig, serr := signer.SignAuto(msg, rng)
	if serr != nil {
		t.Fatalf("SignAuto: %s", serr)
	}

	if !Verify(pub, msg, sig) {
		t.Fatalf("Verify rejected a genuine signature")
	}
}

func TestVerifyRejectsTamperedMessage(t *testing.T) {
	p, err := NewParams(4, 16)
	if err != nil {
		t.Fatalf("NewParams: %s", err)
	}

	path := filepath.Join(t.TempDir(), "testkey")
	signer, pub, kerr := Keygen(path, p, NewSeededRNG([]byte("tamper test seed")))
	if kerr != nil {
		t.Fatalf("Keygen: %s", kerr)
	}
	defer signer.Close()

	rng := NewSeededRNG([]byte("tamper test rotation seed"))
	sig, serr := signer.SignAuto([]byte("original message"), rng)
	if serr != nil {
		t.Fatalf("SignAuto: %s", serr)
	}

	if Verify(pub, []byte("a different message"), sig) {
		t.Fatalf("Verify accepted a signature over a different message")
	}
}

func TestVerifyRejectsBitFlip(t *testing.T) {
	p, err := NewParams(4, 16)
	if err != nil {
		t.Fatalf("NewParams: %s", err)
	}

	path := filepath.Join(t.TempDir(), "testkey")
	signer, pub, kerr := Keygen(path, p, NewSeededRNG([]byte("bit flip test seed")))
	if kerr != nil {
		t.Fatalf("Keygen: %s", kerr)
	}
	defer signer.Close()

	msg := []byte("a message worth signing")
	rng := NewSeededRNG([]byte("bit flip rotation seed"))
	sig, serr := signer.SignAuto(msg, rng)
	if serr != nil {
		t.Fatalf("SignAuto: %s", serr)
	}
	sig.WotsSig[0][0] ^= 0x01

	if Verify(pub, msg, sig) {
		t.Fatalf("Verify accepted a signature with a flipped bit")
	}
}

func TestVerifyRejectsWrongRoot(t *testing.T) {
	p, err := NewParams(4, 16)
	if err != nil {
		t.Fatalf("NewParams: %s", err)
	}

	path := filepath.Join(t.TempDir(), "key-a")
	signerA, _, kerr := Keygen(path, p, NewSeededRNG([]byte("seed a")))
	if kerr != nil {
		t.Fatalf("Keygen: %s", kerr)
	}
	defer signerA.Close()

	pathB := filepath.Join(t.TempDir(), "key-b")
	signerB, pubB, kerr := Keygen(pathB, p, NewSeededRNG([]byte("seed b")))
	if kerr != nil {
		t.Fatalf("Keygen: %s", kerr)
	}
	defer signerB.Close()

	msg := []byte("cross key message")
	rng := NewSeededRNG([]byte("wrong root rotation seed"))
	sig, serr := signerA.SignAuto(msg, rng)
	if serr != nil {
		t.Fatalf("SignAuto: %s", serr)
	}

	if Verify(pubB, msg, sig) {
		t.Fatalf("Verify accepted a signature against an unrelated public key")
	}
}

func TestSignAutoProducesSequentialIndices(t *testing.T) {
	p, err := NewParams(4, 16)
	if err != nil {
		t.Fatalf("NewParams: %s", err)
	}

	path := filepath.Join(t.TempDir(), "testkey")
	signer, _, kerr := Keygen(path, p, NewSeededRNG([]byte("sequential test seed")))
	if kerr != nil {
		t.Fatalf("Keygen: %s", kerr)
	}
	defer signer.Close()

	rng := NewSeededRNG([]byte("sequential test rotation seed"))
	for want := uint32(0); want < 8; want++ {
		sig, serr := signer.SignAuto([]byte("message"), rng)
		if serr != nil {
			t.Fatalf("SignAuto at index %d: %s", want, serr)
		}
		if sig.Index != want {
			t.Fatalf("index %d, want %d", sig.Index, want)
		}
	}
}

// TestSignAutoRotatesOnExhaustion drives a 4-leaf key (h=2) through all
// four of its leaves and checks that the next call -- the fifth
// invocation overall -- regenerates the key in place rather than
// failing: it must produce a new root and hand back a signature at
// index 0 that verifies under that new root, per spec section 8's
// exhaustion/rotation scenario.
func TestSignAutoRotatesOnExhaustion(t *testing.T) {
	p, err := NewParams(2, 16) // capacity 4
	if err != nil {
		t.Fatalf("NewParams: %s", err)
	}

	path := filepath.Join(t.TempDir(), "testkey")
	signer, pubBefore, kerr := Keygen(path, p, NewSeededRNG([]byte("rotation test seed")))
	if kerr != nil {
		t.Fatalf("Keygen: %s", kerr)
	}
	defer signer.Close()

	rotationRNG := NewSeededRNG([]byte("rotation replacement seed"))
	for i := 0; i < 4; i++ {
		if _, serr := signer.SignAuto([]byte("m"), rotationRNG); serr != nil {
			t.Fatalf("unexpected error signing leaf %d: %s", i, serr)
		}
	}
	if !signer.Exhausted() {
		t.Fatalf("key should report Exhausted after consuming all leaves")
	}

	sig, serr := signer.SignAuto([]byte("triggers rotation"), rotationRNG)
	if serr != nil {
		t.Fatalf("SignAuto should rotate rather than error when exhausted: %s", serr)
	}
	if sig.Index != 0 {
		t.Fatalf("rotated key's first signature should be at index 0, got %d", sig.Index)
	}

	pubAfter := signer.PublicKey()
	if pubAfter.Root == pubBefore.Root {
		t.Fatalf("rotation should produce a new root")
	}
	if !Verify(pubAfter, []byte("triggers rotation"), sig) {
		t.Fatalf("signature produced right after rotation should verify under the new root")
	}
	if signer.Exhausted() {
		t.Fatalf("signer should no longer be Exhausted immediately after rotation")
	}
}

func TestKeygenFromSeedIsDeterministic(t *testing.T) {
	p, err := NewParams(3, 16)
	if err != nil {
		t.Fatalf("NewParams: %s", err)
	}

	pathA := filepath.Join(t.TempDir(), "key-a")
	signerA, pubA, kerr := Keygen(pathA, p, NewSeededRNG([]byte("deterministic seed")))
	if kerr != nil {
		t.Fatalf("Keygen: %s", kerr)
	}
	defer signerA.Close()

	pathB := filepath.Join(t.TempDir(), "key-b")
	signerB, pubB, kerr := Keygen(pathB, p, NewSeededRNG([]byte("deterministic seed")))
	if kerr != nil {
		t.Fatalf("Keygen: %s", kerr)
	}
	defer signerB.Close()

	if pubA.Root != pubB.Root {
		t.Fatalf("same seed produced different roots")
	}
}

func TestOpenSignerRejectsSecondLock(t *testing.T) {
	p, err := NewParams(4, 16)
	if err != nil {
		t.Fatalf("NewParams: %s", err)
	}

	path := filepath.Join(t.TempDir(), "testkey")
	signer, _, kerr := Keygen(path, p, NewSeededRNG([]byte("lock test seed")))
	if kerr != nil {
		t.Fatalf("Keygen: %s", kerr)
	}
	defer signer.Close()

	_, lerr := OpenSigner(path)
	if lerr == nil {
		t.Fatalf("expected an error opening an already-locked key")
	}
	if !lerr.Locked() {
		t.Errorf("expected Locked() to be true, got false")
	}
}
