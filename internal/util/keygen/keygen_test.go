package keygen

import (
	"bytes"
	"encoding/pem"
	"testing"

	"golang.org/x/crypto/ssh"
)

func TestGenerateED25519KeyPair(t *testing.T) {
	kp, err := GenerateED25519KeyPair()
	if err != nil {
		t.Fatalf("GenerateED25519KeyPair: %v", err)
	}

	block, rest := pem.Decode(kp.PrivateKey)
	if block == nil {
		t.Fatal("private key is not PEM")
	}
	if len(rest) != 0 {
		t.Error("trailing data after PEM block")
	}
	if block.Type != "PRIVATE KEY" {
		t.Errorf("unexpected PEM type %q", block.Type)
	}

	if !bytes.HasPrefix(kp.PublicKey, []byte("ssh-ed25519 ")) {
		t.Errorf("public key not in authorized_keys format: %q", kp.PublicKey[:20])
	}
	if _, _, _, _, err := ssh.ParseAuthorizedKey(kp.PublicKey); err != nil {
		t.Errorf("public key does not parse: %v", err)
	}
}

func TestGenerateED25519KeyPairUnique(t *testing.T) {
	a, err := GenerateED25519KeyPair()
	if err != nil {
		t.Fatal(err)
	}
	b, err := GenerateED25519KeyPair()
	if err != nil {
		t.Fatal(err)
	}
	if bytes.Equal(a.PrivateKey, b.PrivateKey) {
		t.Error("two generated keys are identical")
	}
}
