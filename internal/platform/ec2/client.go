// Package ec2 wraps the EC2 operations used by the orchestrator and
// agent: key pair lifecycle, instance tag reads, and instance listing
// for launched auto-scaling groups.
package ec2

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	ec2sdk "github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
)

// Instance is the subset of instance state the orchestrator reports.
type Instance struct {
	InstanceID       string
	PublicIPv4       string
	AvailabilityZone string
	State            string
}

// Client wraps the EC2 client.
type Client struct {
	ec2 *ec2sdk.Client
}

// NewClient creates a new EC2 client for the given region using the
// default credential chain.
func NewClient(ctx context.Context, region string) (*Client, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return &Client{ec2: ec2sdk.NewFromConfig(cfg)}, nil
}

// ImportKeyPair registers a locally generated public key as an EC2 key
// pair.
func (c *Client) ImportKeyPair(ctx context.Context, name string, publicKey []byte) error {
	_, err := c.ec2.ImportKeyPair(ctx, &ec2sdk.ImportKeyPairInput{
		KeyName:           aws.String(name),
		PublicKeyMaterial: publicKey,
	})
	if err != nil {
		return fmt.Errorf("failed to import key pair %s: %w", name, err)
	}
	return nil
}

// DeleteKeyPair removes an EC2 key pair.
func (c *Client) DeleteKeyPair(ctx context.Context, name string) error {
	_, err := c.ec2.DeleteKeyPair(ctx, &ec2sdk.DeleteKeyPairInput{
		KeyName: aws.String(name),
	})
	if err != nil {
		return fmt.Errorf("failed to delete key pair %s: %w", name, err)
	}
	return nil
}

// FetchTags returns all tags attached to an instance as a string map.
func (c *Client) FetchTags(ctx context.Context, instanceID string) (map[string]string, error) {
	out, err := c.ec2.DescribeTags(ctx, &ec2sdk.DescribeTagsInput{
		Filters: []types.Filter{
			{Name: aws.String("resource-id"), Values: []string{instanceID}},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to describe tags for %s: %w", instanceID, err)
	}

	tags := make(map[string]string, len(out.Tags))
	for _, t := range out.Tags {
		if t.Key != nil && t.Value != nil {
			tags[*t.Key] = *t.Value
		}
	}
	return tags, nil
}

// ListASGInstances lists running or pending instances belonging to an
// auto-scaling group, identified through the tag EC2 propagates to its
// members.
func (c *Client) ListASGInstances(ctx context.Context, asgName string) ([]Instance, error) {
	out, err := c.ec2.DescribeInstances(ctx, &ec2sdk.DescribeInstancesInput{
		Filters: []types.Filter{
			{Name: aws.String("tag:aws:autoscaling:groupName"), Values: []string{asgName}},
			{Name: aws.String("instance-state-name"), Values: []string{"pending", "running"}},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to describe instances for ASG %s: %w", asgName, err)
	}

	var instances []Instance
	for _, reservation := range out.Reservations {
		for _, inst := range reservation.Instances {
			entry := Instance{
				InstanceID: aws.ToString(inst.InstanceId),
				PublicIPv4: aws.ToString(inst.PublicIpAddress),
			}
			if inst.Placement != nil {
				entry.AvailabilityZone = aws.ToString(inst.Placement.AvailabilityZone)
			}
			if inst.State != nil {
				entry.State = string(inst.State.Name)
			}
			instances = append(instances, entry)
		}
	}
	return instances, nil
}
