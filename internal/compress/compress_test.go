package compress

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func TestPackUnpackFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "binary")
	payload := bytes.Repeat([]byte("avalanchego"), 4096)
	if err := os.WriteFile(src, payload, 0o600); err != nil {
		t.Fatal(err)
	}

	packed := filepath.Join(dir, "binary.zstd")
	if err := PackFile(src, packed); err != nil {
		t.Fatalf("PackFile: %v", err)
	}

	info, err := os.Stat(packed)
	if err != nil {
		t.Fatal(err)
	}
	if info.Size() >= int64(len(payload)) {
		t.Errorf("compressed size %d not smaller than input %d", info.Size(), len(payload))
	}

	restored := filepath.Join(dir, "restored")
	if err := UnpackFile(packed, restored, 0o755); err != nil {
		t.Fatalf("UnpackFile: %v", err)
	}

	got, err := os.ReadFile(restored)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, payload) {
		t.Error("round trip mismatch")
	}

	mode, err := os.Stat(restored)
	if err != nil {
		t.Fatal(err)
	}
	if mode.Mode().Perm() != 0o755 {
		t.Errorf("unexpected mode %v", mode.Mode().Perm())
	}
}

func TestPackUnpackBytes(t *testing.T) {
	payload := bytes.Repeat([]byte("tls-private-key"), 128)

	packed, err := Pack(payload)
	if err != nil {
		t.Fatalf("Pack: %v", err)
	}
	restored, err := Unpack(packed)
	if err != nil {
		t.Fatalf("Unpack: %v", err)
	}
	if !bytes.Equal(restored, payload) {
		t.Error("round trip mismatch")
	}
}

func TestUnpackRejectsGarbage(t *testing.T) {
	if _, err := Unpack([]byte("not a zstd stream")); err == nil {
		t.Error("expected error for invalid stream")
	}
}
