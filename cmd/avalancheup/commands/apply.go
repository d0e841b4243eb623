package commands

import (
	"github.com/spf13/cobra"

	"github.com/gyuho/avalanche-ops/cmd/avalancheup/handlers"
)

// Apply returns the command that provisions the cluster described in a
// spec file.
//
// Apply is resumable: re-running it after a failure or interruption
// only performs the remaining steps recorded as unset in the spec's
// resources section.
func Apply() *cobra.Command {
	var opts handlers.ApplyOptions

	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Create or resume the cluster from a spec file",
		Long: `Create or resume the cluster from a spec file.

Provisions the cluster bucket, KMS key, EC2 key pair, instance role,
VPC, and the node auto-scaling groups, then waits for every node to
report ready and pass health checks.

Examples:
  avalancheup apply --spec-file-path cluster.yaml

  # Non-interactive
  avalancheup apply --spec-file-path cluster.yaml --skip-prompt`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Apply(cmd.Context(), cmd.OutOrStdout(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.SpecFilePath, "spec-file-path", "cluster.yaml", "Path to the spec file")
	cmd.Flags().BoolVar(&opts.SkipPrompt, "skip-prompt", false, "Provision without confirmation")
	cmd.Flags().StringVar(&opts.LogLevel, "log-level", "info", "Log level: debug, info, warn, error")

	return cmd
}
