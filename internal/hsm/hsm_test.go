package hsm

import "testing"

func TestGenerateFingerprint(t *testing.T) {
	a, err := GenerateFingerprint()
	if err != nil {
		t.Fatalf("GenerateFingerprint() error = %v", err)
	}
	if len(a) != fingerprintLen {
		t.Errorf("fingerprint length = %d, want %d", len(a), fingerprintLen)
	}

	b, err := GenerateFingerprint()
	if err != nil {
		t.Fatalf("GenerateFingerprint() error = %v", err)
	}
	if a == b {
		t.Error("two generated fingerprints are identical")
	}
}

func TestSignAndVerify(t *testing.T) {
	fingerprint := "aabbccddeeff00112233445566778899aabbccdd"
	data := []byte("artifact bytes")

	sig := Sign(data, fingerprint)
	if sig == "" {
		t.Fatal("Sign returned an empty signature")
	}

	if !Verify(data, fingerprint, sig) {
		t.Error("valid signature did not verify")
	}
	if Verify([]byte("tampered"), fingerprint, sig) {
		t.Error("signature verified against different data")
	}
	if Verify(data, "0000000000000000000000000000000000000000", sig) {
		t.Error("signature verified against a different key")
	}
}
