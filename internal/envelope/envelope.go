// Package envelope implements envelope encryption for secrets shipped
// through object storage: payloads are compressed, sealed with a
// single-use AES-256-GCM data key, and stored alongside the data key
// ciphertext so only the KMS key holder can open them.
package envelope

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/gyuho/avalanche-ops/internal/compress"
	"github.com/gyuho/avalanche-ops/internal/platform/kms"
)

// KeyService generates and unwraps data keys. The KMS platform client
// satisfies it.
type KeyService interface {
	GenerateDataKey(ctx context.Context, keyARN string) (kms.DataKey, error)
	Decrypt(ctx context.Context, keyARN string, ciphertext []byte) ([]byte, error)
}

// ErrMalformed reports an envelope blob too short or inconsistent to
// parse.
var ErrMalformed = errors.New("malformed envelope")

// Seal compresses plaintext and encrypts it under a fresh data key
// from the given KMS key. The returned blob embeds the wrapped data
// key and can only be opened with access to the same KMS key.
func Seal(ctx context.Context, keys KeyService, keyARN string, plaintext []byte) ([]byte, error) {
	dataKey, err := keys.GenerateDataKey(ctx, keyARN)
	if err != nil {
		return nil, fmt.Errorf("failed to generate data key: %w", err)
	}

	compressed, err := compress.Pack(plaintext)
	if err != nil {
		return nil, fmt.Errorf("failed to compress payload: %w", err)
	}

	block, err := aes.NewCipher(dataKey.Plaintext)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize GCM: %w", err)
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}
	sealed := gcm.Seal(nil, nonce, compressed, nil)

	blob := make([]byte, 0, 2+len(dataKey.Ciphertext)+len(nonce)+len(sealed))
	blob = binary.BigEndian.AppendUint16(blob, uint16(len(dataKey.Ciphertext)))
	blob = append(blob, dataKey.Ciphertext...)
	blob = append(blob, nonce...)
	blob = append(blob, sealed...)
	return blob, nil
}

// Open unwraps the embedded data key through KMS, decrypts the
// payload, and decompresses it back to the original plaintext.
func Open(ctx context.Context, keys KeyService, keyARN string, blob []byte) ([]byte, error) {
	if len(blob) < 2 {
		return nil, ErrMalformed
	}
	wrappedLen := int(binary.BigEndian.Uint16(blob))
	rest := blob[2:]
	if len(rest) < wrappedLen {
		return nil, ErrMalformed
	}
	wrapped := rest[:wrappedLen]
	rest = rest[wrappedLen:]

	keyBytes, err := keys.Decrypt(ctx, keyARN, wrapped)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt data key: %w", err)
	}

	block, err := aes.NewCipher(keyBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize GCM: %w", err)
	}
	if len(rest) < gcm.NonceSize() {
		return nil, ErrMalformed
	}
	nonce := rest[:gcm.NonceSize()]
	sealed := rest[gcm.NonceSize():]

	compressed, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt payload: %w", err)
	}

	plaintext, err := compress.Unpack(compressed)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress payload: %w", err)
	}
	return plaintext, nil
}
