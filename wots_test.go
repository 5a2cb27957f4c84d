package xmss

import (
	"bytes"
	"testing"
)

func TestWotsSignVerifyRoundTrip(t *testing.T) {
	p, err := NewParams(4, 16)
	if err != nil {
		t.Fatalf("NewParams: %s", err)
	}

	seed := make([]byte, N)
	for i := range seed {
		seed[i] = byte(i)
	}

	digest := hash([]byte("a message to sign"), N)

	skChains := DeriveWotsSK(p, seed, 3)
	wantPk := WotsPkGen(p, skChains)

	sig := WotsSign(p, digest, skChains)
	gotPk := WotsPkFromSig(p, digest, sig)

	for i := range wantPk {
		if !bytes.Equal(wantPk[i], gotPk[i]) {
			t.Fatalf("chain %d: recovered public key differs from wotsPkGen", i)
		}
	}
}

func TestWotsPkFromSigRejectsWrongMessage(t *testing.T) {
	p, err := NewParams(4, 16)
	if err != nil {
		t.Fatalf("NewParams: %s", err)
	}

	seed := make([]byte, N)
	skChains := DeriveWotsSK(p, seed, 0)
	pk := WotsPkGen(p, skChains)

	digest := hash([]byte("message one"), N)
	sig := WotsSign(p, digest, skChains)

	wrongDigest := hash([]byte("message two"), N)
	recovered := WotsPkFromSig(p, wrongDigest, sig)

	same := true
	for i := range pk {
		if !bytes.Equal(pk[i], recovered[i]) {
			same = false
			break
		}
	}
	if same {
		t.Fatalf("recovered public key matched despite signing a different message")
	}
}

// TestWotsGenChainFullAndZeroSteps checks wotsGenChain's results at the
// ends of its step range: 0 steps returns the input unchanged, and W-1
// steps in one call equals 5 steps followed by the remaining W-1-5. It
// does not count hash calls or measure timing.
func TestWotsGenChainFullAndZeroSteps(t *testing.T) {
	p, err := NewParams(4, 16)
	if err != nil {
		t.Fatalf("NewParams: %s", err)
	}
	in := make([]byte, N)
	for i := range in {
		in[i] = byte(i * 7)
	}

	same := wotsGenChain(p, in, 0, 0)
	if !bytes.Equal(same, in) {
		t.Errorf("0 steps should return the input unchanged")
	}

	full := wotsGenChain(p, in, 0, uint16(p.W)-1)
	viaTwoHalves := wotsGenChain(p, wotsGenChain(p, in, 0, 5), 5, uint16(p.W)-1-5)
	if !bytes.Equal(full, viaTwoHalves) {
		t.Errorf("chaining in two steps should match chaining in one")
	}
}

func TestToBaseWRoundTripsMSBFirst(t *testing.T) {
	p, err := NewParams(4, 16)
	if err != nil {
		t.Fatalf("NewParams: %s", err)
	}
	in := []byte{0xAB, 0xCD}
	digits := toBaseW(p, in, 4)
	want := []uint8{0xA, 0xB, 0xC, 0xD}
	for i := range want {
		if digits[i] != want[i] {
			t.Errorf("digit %d = %d, want %d", i, digits[i], want[i])
		}
	}
}
