// Package cloudwatch wraps the CloudWatch Logs operations needed to
// clean up per-cluster log groups.
package cloudwatch

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	cwlogs "github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
)

// Client wraps the CloudWatch Logs client.
type Client struct {
	logs *cwlogs.Client
}

// NewClient creates a new CloudWatch Logs client for the given region
// using the default credential chain.
func NewClient(ctx context.Context, region string) (*Client, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return &Client{logs: cwlogs.NewFromConfig(cfg)}, nil
}

// DeleteLogGroupsByPrefix deletes every log group whose name starts
// with the given prefix and returns the deleted names.
func (c *Client) DeleteLogGroupsByPrefix(ctx context.Context, prefix string) ([]string, error) {
	var deleted []string
	paginator := cwlogs.NewDescribeLogGroupsPaginator(c.logs, &cwlogs.DescribeLogGroupsInput{
		LogGroupNamePrefix: aws.String(prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return deleted, fmt.Errorf("failed to list log groups with prefix %s: %w", prefix, err)
		}
		for _, group := range page.LogGroups {
			name := aws.ToString(group.LogGroupName)
			if _, err := c.logs.DeleteLogGroup(ctx, &cwlogs.DeleteLogGroupInput{
				LogGroupName: group.LogGroupName,
			}); err != nil {
				return deleted, fmt.Errorf("failed to delete log group %s: %w", name, err)
			}
			deleted = append(deleted, name)
		}
	}
	return deleted, nil
}
