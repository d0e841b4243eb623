package ec2

import (
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/ec2/imds"
)

// Metadata holds the identity of the instance the agent runs on, read
// from the instance metadata service.
type Metadata struct {
	InstanceID       string
	PublicIPv4       string
	Region           string
	AvailabilityZone string
}

// FetchMetadata queries IMDS for the local instance identity. It only
// works from inside an EC2 instance.
func FetchMetadata(ctx context.Context) (*Metadata, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	client := imds.NewFromConfig(cfg)

	md := &Metadata{}
	for _, item := range []struct {
		path string
		dst  *string
	}{
		{"instance-id", &md.InstanceID},
		{"public-ipv4", &md.PublicIPv4},
		{"placement/availability-zone", &md.AvailabilityZone},
	} {
		value, err := fetchPath(ctx, client, item.path)
		if err != nil {
			return nil, err
		}
		*item.dst = value
	}

	region, err := client.GetRegion(ctx, &imds.GetRegionInput{})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch region from instance metadata: %w", err)
	}
	md.Region = region.Region

	return md, nil
}

func fetchPath(ctx context.Context, client *imds.Client, path string) (string, error) {
	out, err := client.GetMetadata(ctx, &imds.GetMetadataInput{Path: path})
	if err != nil {
		return "", fmt.Errorf("failed to fetch instance metadata %s: %w", path, err)
	}
	defer out.Content.Close()

	data, err := io.ReadAll(out.Content)
	if err != nil {
		return "", fmt.Errorf("failed to read instance metadata %s: %w", path, err)
	}
	return string(data), nil
}
