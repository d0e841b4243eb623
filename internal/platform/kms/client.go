// Package kms wraps the key-management operations behind envelope
// encryption: master key lifecycle and data-key generation.
package kms

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	kmssdk "github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/aws/aws-sdk-go-v2/service/kms/types"
)

// Key identifies a created master key.
type Key struct {
	ID  string
	ARN string
}

// DataKey is a generated data key: Plaintext encrypts locally and is
// discarded after use; Ciphertext is stored alongside the sealed blob
// and can only be unwrapped through KMS.
type DataKey struct {
	Plaintext  []byte
	Ciphertext []byte
}

// Client wraps the KMS client.
type Client struct {
	kms *kmssdk.Client
}

// NewClient creates a new KMS client for the given region using the
// default credential chain.
func NewClient(ctx context.Context, region string) (*Client, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return &Client{kms: kmssdk.NewFromConfig(cfg)}, nil
}

// CreateKey creates a symmetric master key with the given description.
func (c *Client) CreateKey(ctx context.Context, description string) (Key, error) {
	out, err := c.kms.CreateKey(ctx, &kmssdk.CreateKeyInput{
		Description: aws.String(description),
		KeySpec:     types.KeySpecSymmetricDefault,
		KeyUsage:    types.KeyUsageTypeEncryptDecrypt,
	})
	if err != nil {
		return Key{}, fmt.Errorf("failed to create KMS key %s: %w", description, err)
	}
	return Key{
		ID:  aws.ToString(out.KeyMetadata.KeyId),
		ARN: aws.ToString(out.KeyMetadata.Arn),
	}, nil
}

// ScheduleKeyDeletion schedules the master key for deletion with the
// minimum allowed waiting period.
func (c *Client) ScheduleKeyDeletion(ctx context.Context, keyID string) error {
	_, err := c.kms.ScheduleKeyDeletion(ctx, &kmssdk.ScheduleKeyDeletionInput{
		KeyId:               aws.String(keyID),
		PendingWindowInDays: aws.Int32(7),
	})
	if err != nil {
		return fmt.Errorf("failed to schedule deletion of KMS key %s: %w", keyID, err)
	}
	return nil
}

// GenerateDataKey generates a 256-bit data key wrapped by the master key.
func (c *Client) GenerateDataKey(ctx context.Context, keyARN string) (DataKey, error) {
	out, err := c.kms.GenerateDataKey(ctx, &kmssdk.GenerateDataKeyInput{
		KeyId:   aws.String(keyARN),
		KeySpec: types.DataKeySpecAes256,
	})
	if err != nil {
		return DataKey{}, fmt.Errorf("failed to generate data key under %s: %w", keyARN, err)
	}
	return DataKey{
		Plaintext:  out.Plaintext,
		Ciphertext: out.CiphertextBlob,
	}, nil
}

// Decrypt unwraps a data-key ciphertext through the master key.
func (c *Client) Decrypt(ctx context.Context, keyARN string, ciphertext []byte) ([]byte, error) {
	out, err := c.kms.Decrypt(ctx, &kmssdk.DecryptInput{
		KeyId:          aws.String(keyARN),
		CiphertextBlob: ciphertext,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt data key under %s: %w", keyARN, err)
	}
	return out.Plaintext, nil
}
