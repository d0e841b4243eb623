// Package compress provides zstd pack/unpack helpers for install
// artifacts shared through S3.
package compress

import (
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/zstd"
)

// PackFile compresses src into dst with zstd at the default level.
func PackFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dst, err)
	}
	defer out.Close()

	enc, err := zstd.NewWriter(out, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return fmt.Errorf("failed to initialize zstd encoder: %w", err)
	}
	if _, err := io.Copy(enc, in); err != nil {
		enc.Close()
		return fmt.Errorf("failed to compress %s: %w", src, err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("failed to flush zstd stream for %s: %w", dst, err)
	}
	return out.Close()
}

// UnpackFile decompresses the zstd stream in src into dst with the given
// file mode.
func UnpackFile(src, dst string, mode os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer in.Close()

	dec, err := zstd.NewReader(in)
	if err != nil {
		return fmt.Errorf("failed to initialize zstd decoder: %w", err)
	}
	defer dec.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dst, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, dec.IOReadCloser()); err != nil {
		return fmt.Errorf("failed to decompress %s: %w", src, err)
	}
	return out.Close()
}

// Pack compresses a byte slice.
func Pack(data []byte) ([]byte, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize zstd encoder: %w", err)
	}
	defer enc.Close()
	return enc.EncodeAll(data, nil), nil
}

// Unpack decompresses a byte slice.
func Unpack(data []byte) ([]byte, error) {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize zstd decoder: %w", err)
	}
	defer dec.Close()

	out, err := dec.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("zstd decompress: %w", err)
	}
	return out, nil
}
