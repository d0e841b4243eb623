package commands

import (
	"github.com/spf13/cobra"

	"github.com/gyuho/avalanche-ops/cmd/avalancheup/handlers"
)

// Delete returns the command that tears down a provisioned cluster.
func Delete() *cobra.Command {
	var opts handlers.DeleteOptions

	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Tear down the cluster recorded in a spec file",
		Long: `Tear down the cluster recorded in a spec file.

Deletes the key pair, schedules KMS key deletion, and removes the
stacks in reverse dependency order. The cluster bucket and log groups
survive unless --delete-all is given; the database backup bucket is
never deleted.

Examples:
  avalancheup delete --spec-file-path cluster.yaml

  # Also remove the bucket and log groups
  avalancheup delete --spec-file-path cluster.yaml --delete-all`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Delete(cmd.Context(), cmd.OutOrStdout(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.SpecFilePath, "spec-file-path", "cluster.yaml", "Path to the spec file")
	cmd.Flags().BoolVar(&opts.DeleteAll, "delete-all", false, "Also delete the cluster bucket and log groups")
	cmd.Flags().BoolVar(&opts.SkipPrompt, "skip-prompt", false, "Delete without confirmation")
	cmd.Flags().StringVar(&opts.LogLevel, "log-level", "info", "Log level: debug, info, warn, error")

	return cmd
}
