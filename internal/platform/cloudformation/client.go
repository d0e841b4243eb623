// Package cloudformation wraps stack lifecycle operations: create,
// delete, and status polling with output extraction.
package cloudformation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	cfn "github.com/aws/aws-sdk-go-v2/service/cloudformation"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation/types"
	"github.com/aws/smithy-go"
)

// TimeoutError reports a stack that did not reach the desired status
// within the polling budget.
type TimeoutError struct {
	StackName     string
	DesiredStatus types.StackStatus
	Elapsed       time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("stack %s did not reach %s within %s", e.StackName, e.DesiredStatus, e.Elapsed)
}

// FailedStatusError reports a stack that settled in a status other
// than the desired one.
type FailedStatusError struct {
	StackName     string
	DesiredStatus types.StackStatus
	ActualStatus  types.StackStatus
	Reason        string
}

func (e *FailedStatusError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("stack %s reached %s instead of %s: %s", e.StackName, e.ActualStatus, e.DesiredStatus, e.Reason)
	}
	return fmt.Sprintf("stack %s reached %s instead of %s", e.StackName, e.ActualStatus, e.DesiredStatus)
}

// Client wraps the CloudFormation client.
type Client struct {
	cfn *cfn.Client
}

// NewClient creates a new CloudFormation client for the given region
// using the default credential chain.
func NewClient(ctx context.Context, region string) (*Client, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return &Client{cfn: cfn.NewFromConfig(cfg)}, nil
}

// CreateStack launches a stack from an inline template body. Failed
// creations roll back with OnFailure=DELETE so a retry can recreate
// the stack under the same name.
func (c *Client) CreateStack(ctx context.Context, name, templateBody string, parameters map[string]string, tags map[string]string) error {
	input := &cfn.CreateStackInput{
		StackName:    aws.String(name),
		TemplateBody: aws.String(templateBody),
		OnFailure:    types.OnFailureDelete,
		Capabilities: []types.Capability{types.CapabilityCapabilityNamedIam},
	}
	for key, value := range parameters {
		input.Parameters = append(input.Parameters, types.Parameter{
			ParameterKey:   aws.String(key),
			ParameterValue: aws.String(value),
		})
	}
	for key, value := range tags {
		input.Tags = append(input.Tags, types.Tag{
			Key:   aws.String(key),
			Value: aws.String(value),
		})
	}

	if _, err := c.cfn.CreateStack(ctx, input); err != nil {
		return fmt.Errorf("failed to create stack %s: %w", name, err)
	}
	return nil
}

// DeleteStack triggers stack deletion. The call returns as soon as the
// deletion is accepted; use PollStack to confirm completion.
func (c *Client) DeleteStack(ctx context.Context, name string) error {
	_, err := c.cfn.DeleteStack(ctx, &cfn.DeleteStackInput{
		StackName: aws.String(name),
	})
	if err != nil {
		return fmt.Errorf("failed to delete stack %s: %w", name, err)
	}
	return nil
}

// PollStack polls until the stack reaches the desired status and
// returns its outputs. Deleted stacks disappear from DescribeStacks,
// so when waiting for DELETE_COMPLETE a missing stack counts as done.
func (c *Client) PollStack(ctx context.Context, name string, desired types.StackStatus, timeout, interval time.Duration) (map[string]string, error) {
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		out, err := c.cfn.DescribeStacks(ctx, &cfn.DescribeStacksInput{
			StackName: aws.String(name),
		})
		if err != nil {
			if desired == types.StackStatusDeleteComplete && isStackMissing(err) {
				return nil, nil
			}
			return nil, fmt.Errorf("failed to describe stack %s: %w", name, err)
		}
		if len(out.Stacks) > 0 {
			stack := out.Stacks[0]
			switch stack.StackStatus {
			case desired:
				outputs := make(map[string]string, len(stack.Outputs))
				for _, o := range stack.Outputs {
					if o.OutputKey != nil && o.OutputValue != nil {
						outputs[*o.OutputKey] = *o.OutputValue
					}
				}
				return outputs, nil
			case types.StackStatusCreateFailed,
				types.StackStatusRollbackComplete,
				types.StackStatusRollbackFailed,
				types.StackStatusDeleteFailed:
				return nil, &FailedStatusError{
					StackName:     name,
					DesiredStatus: desired,
					ActualStatus:  stack.StackStatus,
					Reason:        aws.ToString(stack.StackStatusReason),
				}
			}
		}

		if time.Now().After(deadline) {
			return nil, &TimeoutError{
				StackName:     name,
				DesiredStatus: desired,
				Elapsed:       timeout,
			}
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// isStackMissing checks if the error means the stack no longer exists.
// DescribeStacks reports a missing stack as a ValidationError rather
// than a typed not-found error.
func isStackMissing(err error) bool {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.ErrorCode() == "ValidationError" && strings.Contains(apiErr.ErrorMessage(), "does not exist")
}

// PollBudget computes the polling timeout for a stack that manages the
// given number of instances: a fixed base plus a per-instance
// allowance, capped.
func PollBudget(instances int) time.Duration {
	budget := 300*time.Second + time.Duration(instances)*60*time.Second
	if max := 50 * time.Minute; budget > max {
		return max
	}
	return budget
}

// PollInterval is the delay between stack status checks.
const PollInterval = 30 * time.Second
