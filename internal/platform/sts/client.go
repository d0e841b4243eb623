// Package sts resolves the AWS caller identity that gets pinned into
// the spec at first apply.
package sts

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/config"
	stssdk "github.com/aws/aws-sdk-go-v2/service/sts"
)

// Identity describes the AWS caller.
type Identity struct {
	AccountID string
	RoleARN   string
	UserID    string
}

// Client wraps the STS client.
type Client struct {
	sts *stssdk.Client
}

// NewClient creates a new STS client for the given region using the
// default credential chain.
func NewClient(ctx context.Context, region string) (*Client, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return &Client{sts: stssdk.NewFromConfig(cfg)}, nil
}

// GetIdentity returns the current caller identity.
func (c *Client) GetIdentity(ctx context.Context) (Identity, error) {
	out, err := c.sts.GetCallerIdentity(ctx, &stssdk.GetCallerIdentityInput{})
	if err != nil {
		return Identity{}, fmt.Errorf("failed to get caller identity: %w", err)
	}

	id := Identity{}
	if out.Account != nil {
		id.AccountID = *out.Account
	}
	if out.Arn != nil {
		id.RoleARN = *out.Arn
	}
	if out.UserId != nil {
		id.UserID = *out.UserId
	}
	return id, nil
}
