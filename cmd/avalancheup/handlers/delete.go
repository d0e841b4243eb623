package handlers

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/gyuho/avalanche-ops/internal/logging"
	"github.com/gyuho/avalanche-ops/internal/platform/cloudformation"
	"github.com/gyuho/avalanche-ops/internal/platform/cloudwatch"
	"github.com/gyuho/avalanche-ops/internal/platform/ec2"
	"github.com/gyuho/avalanche-ops/internal/platform/kms"
	"github.com/gyuho/avalanche-ops/internal/platform/s3"
	"github.com/gyuho/avalanche-ops/internal/provisioning"
	"github.com/gyuho/avalanche-ops/internal/spec"
)

// DeleteOptions carries the delete command flags.
type DeleteOptions struct {
	SpecFilePath string
	DeleteAll    bool
	SkipPrompt   bool
	LogLevel     string
}

// Delete tears down the cluster recorded in the spec file.
func Delete(ctx context.Context, out io.Writer, opts DeleteOptions) error {
	logger := logging.New(os.Stderr, logging.ParseLevel(opts.LogLevel))

	s, err := spec.Load(opts.SpecFilePath)
	if err != nil {
		return err
	}

	action := fmt.Sprintf("delete cluster %s", s.ID)
	if opts.DeleteAll {
		action += " including its bucket and log groups"
	}
	if !opts.SkipPrompt {
		ok, err := confirm(os.Stdin, out, action)
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintln(out, "aborted")
			return nil
		}
	}

	region := s.Resources.Region
	s3Client, err := s3.NewClient(ctx, region)
	if err != nil {
		return err
	}
	kmsClient, err := kms.NewClient(ctx, region)
	if err != nil {
		return err
	}
	cfnClient, err := cloudformation.NewClient(ctx, region)
	if err != nil {
		return err
	}
	ec2Client, err := ec2.NewClient(ctx, region)
	if err != nil {
		return err
	}
	logsClient, err := cloudwatch.NewClient(ctx, region)
	if err != nil {
		return err
	}

	deleter := &provisioning.Deleter{
		Spec:      s,
		Store:     s3Client,
		Keys:      kmsClient,
		Stacks:    cfnClient,
		Machines:  ec2Client,
		Logs:      logsClient,
		Observer:  provisioning.NewSlogObserver(logger),
		DeleteAll: opts.DeleteAll,
	}
	if err := deleter.Run(ctx); err != nil {
		return err
	}

	fmt.Fprintf(out, "cluster %s deleted\n", s.ID)
	return nil
}
