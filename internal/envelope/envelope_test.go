package envelope

import (
	"bytes"
	"context"
	"crypto/rand"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gyuho/avalanche-ops/internal/platform/kms"
)

// fakeKeyService wraps data keys by XOR against a fixed pad so that
// unwrap round-trips without AWS.
type fakeKeyService struct {
	pad          byte
	generated    int
	decryptCalls int
}

func (f *fakeKeyService) GenerateDataKey(_ context.Context, _ string) (kms.DataKey, error) {
	f.generated++
	plaintext := make([]byte, 32)
	if _, err := rand.Read(plaintext); err != nil {
		return kms.DataKey{}, err
	}
	ciphertext := make([]byte, len(plaintext))
	for i, b := range plaintext {
		ciphertext[i] = b ^ f.pad
	}
	return kms.DataKey{Plaintext: plaintext, Ciphertext: ciphertext}, nil
}

func (f *fakeKeyService) Decrypt(_ context.Context, _ string, ciphertext []byte) ([]byte, error) {
	f.decryptCalls++
	plaintext := make([]byte, len(ciphertext))
	for i, b := range ciphertext {
		plaintext[i] = b ^ f.pad
	}
	return plaintext, nil
}

func TestSealOpenRoundTrip(t *testing.T) {
	keys := &fakeKeyService{pad: 0x5a}
	payload := bytes.Repeat([]byte("staking key material "), 64)

	blob, err := Seal(context.Background(), keys, "arn:aws:kms:us-west-2:123:key/abc", payload)
	require.NoError(t, err)
	assert.NotContains(t, string(blob), "staking key material")

	opened, err := Open(context.Background(), keys, "arn:aws:kms:us-west-2:123:key/abc", blob)
	require.NoError(t, err)
	assert.Equal(t, payload, opened)
	assert.Equal(t, 1, keys.generated)
	assert.Equal(t, 1, keys.decryptCalls)
}

func TestSealUsesFreshDataKeys(t *testing.T) {
	keys := &fakeKeyService{pad: 0x11}

	first, err := Seal(context.Background(), keys, "arn", []byte("secret"))
	require.NoError(t, err)
	second, err := Seal(context.Background(), keys, "arn", []byte("secret"))
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	assert.Equal(t, 2, keys.generated)
}

func TestOpenRejectsTamperedBlob(t *testing.T) {
	keys := &fakeKeyService{pad: 0x5a}
	blob, err := Seal(context.Background(), keys, "arn", []byte("secret"))
	require.NoError(t, err)

	blob[len(blob)-1] ^= 0xff
	_, err = Open(context.Background(), keys, "arn", blob)
	assert.Error(t, err)
}

func TestOpenRejectsShortBlob(t *testing.T) {
	keys := &fakeKeyService{}
	for _, blob := range [][]byte{nil, {0x00}, {0x00, 0xff, 0x01}} {
		t.Run(fmt.Sprintf("len-%d", len(blob)), func(t *testing.T) {
			_, err := Open(context.Background(), keys, "arn", blob)
			assert.ErrorIs(t, err, ErrMalformed)
		})
	}
}
