package handlers

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/gyuho/avalanche-ops/internal/avalanchego"
	"github.com/gyuho/avalanche-ops/internal/logging"
	"github.com/gyuho/avalanche-ops/internal/platform/cloudformation"
	"github.com/gyuho/avalanche-ops/internal/platform/ec2"
	"github.com/gyuho/avalanche-ops/internal/platform/kms"
	"github.com/gyuho/avalanche-ops/internal/platform/s3"
	"github.com/gyuho/avalanche-ops/internal/platform/sts"
	"github.com/gyuho/avalanche-ops/internal/provisioning"
	"github.com/gyuho/avalanche-ops/internal/rendezvous"
	"github.com/gyuho/avalanche-ops/internal/spec"
)

// ApplyOptions carries the apply command flags.
type ApplyOptions struct {
	SpecFilePath string
	SkipPrompt   bool
	LogLevel     string
}

// Apply provisions or resumes the cluster described in the spec file.
func Apply(ctx context.Context, out io.Writer, opts ApplyOptions) error {
	logger := logging.New(os.Stderr, logging.ParseLevel(opts.LogLevel))

	s, err := spec.Load(opts.SpecFilePath)
	if err != nil {
		return err
	}
	if err := s.Validate(); err != nil {
		return err
	}

	fmt.Fprintf(out, "cluster %s: %d anchor, %d non-anchor nodes in %s\n",
		s.ID, s.Machine.AnchorNodes, s.Machine.NonAnchorNodes, s.Resources.Region)
	if !opts.SkipPrompt {
		ok, err := confirm(os.Stdin, out, fmt.Sprintf("provision cluster %s", s.ID))
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintln(out, "aborted")
			return nil
		}
	}

	region := s.Resources.Region
	stsClient, err := sts.NewClient(ctx, region)
	if err != nil {
		return err
	}
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

	applier := &provisioning.Applier{
		Spec:     s,
		SpecPath: opts.SpecFilePath,
		Identity: stsClient,
		Store:    s3Client,
		Keys:     kmsClient,
		Stacks:   cfnClient,
		Machines: ec2Client,
		Health:   avalanchego.NewHealthClient(),
		Observer: provisioning.NewSlogObserver(logger),
	}

	anchors, nonAnchors, err := applier.Run(ctx)
	if err != nil {
		return err
	}

	printEndpoints(out, s, append(append([]rendezvous.Node{}, anchors...), nonAnchors...))
	printAccessHints(ctx, out, s, ec2Client)
	return nil
}

// printEndpoints prints the node endpoints and access hints after a
// successful apply.
func printEndpoints(out io.Writer, s *spec.Spec, nodes []rendezvous.Node) {
	fmt.Fprintf(out, "\nall %d nodes are ready\n\n", len(nodes))
	for _, node := range nodes {
		fmt.Fprintf(out, "%-11s %s  http://%s:%d  %s\n",
			node.Kind, node.InstanceID, node.IP, s.HTTPPort, node.NodeID)
	}
	if s.Resources.NLBDNSName != "" {
		fmt.Fprintf(out, "\nload balanced endpoint: http://%s:%d\n", s.Resources.NLBDNSName, s.HTTPPort)
	}
}

// printAccessHints lists the launched instances per scaling group and prints
// an SSH and SSM command for each. Listing failures only degrade the output.
func printAccessHints(ctx context.Context, out io.Writer, s *spec.Spec, machines *ec2.Client) {
	groups := []string{}
	if s.Resources.ASGAnchorNodesLogicalID != "" {
		groups = append(groups, s.Resources.ASGAnchorNodesLogicalID)
	}
	if s.Resources.ASGNonAnchorNodesLogicalID != "" {
		groups = append(groups, s.Resources.ASGNonAnchorNodesLogicalID)
	}
	fmt.Fprintln(out, "\ninstance access:")
	for _, group := range groups {
		instances, err := machines.ListASGInstances(ctx, group)
		if err != nil {
			fmt.Fprintf(out, "  # could not list instances of %s: %v\n", group, err)
			continue
		}
		for _, inst := range instances {
			fmt.Fprintf(out, "  ssh -i %s ubuntu@%s  # %s %s\n",
				s.Resources.EC2KeyPath, inst.PublicIPv4, inst.InstanceID, inst.AvailabilityZone)
			fmt.Fprintf(out, "  aws ssm start-session --region %s --target %s\n",
				s.Resources.Region, inst.InstanceID)
		}
	}
}
