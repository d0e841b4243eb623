package commands

import (
	"github.com/spf13/cobra"

	"github.com/gyuho/avalanche-ops/cmd/avalancheup/handlers"
)

// DefaultSpec returns the command that writes a starter spec file.
//
// Required flags:
//
//	--network-name: "mainnet" or a custom network name
//	--avalanched-bin: local path to the agent binary
//	--avalanchego-bin: local path to the node binary
//
// Optional flags:
//
//	--genesis-file: genesis for custom networks
//	--plugins-dir: directory of plugin binaries
//	--spec-file-path: where to write the spec (default: cluster.yaml)
func DefaultSpec() *cobra.Command {
	var opts handlers.DefaultSpecOptions

	cmd := &cobra.Command{
		Use:   "default-spec",
		Short: "Write a spec file with default values",
		Long: `Write a spec file with default values for the given network.

The generated file is the input to 'avalancheup apply'. Edit it before
applying to change machine counts, instance types, or ports.

Examples:
  # Custom network with three anchor nodes
  avalancheup default-spec --network-name my-net \
    --genesis-file genesis.json \
    --avalanched-bin ./avalanched --avalanchego-bin ./avalanchego

  # Mainnet validators
  avalancheup default-spec --network-name mainnet \
    --avalanched-bin ./avalanched --avalanchego-bin ./avalanchego`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.DefaultSpec(cmd.OutOrStdout(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.NetworkName, "network-name", "", "Network to provision: \"mainnet\" or a custom name")
	cmd.Flags().StringVar(&opts.GenesisFile, "genesis-file", "", "Genesis file for custom networks")
	cmd.Flags().StringVar(&opts.AvalanchedBin, "avalanched-bin", "", "Local path to the agent binary")
	cmd.Flags().StringVar(&opts.AvalanchegoBin, "avalanchego-bin", "", "Local path to the node binary")
	cmd.Flags().StringVar(&opts.PluginsDir, "plugins-dir", "", "Directory of plugin binaries")
	cmd.Flags().IntVar(&opts.KeysToGenerate, "keys-to-generate", 0, "Size of the pre-funded test key pool")
	cmd.Flags().StringVar(&opts.SpecFilePath, "spec-file-path", "cluster.yaml", "Where to write the spec file")
	_ = cmd.MarkFlagRequired("network-name")
	_ = cmd.MarkFlagRequired("avalanched-bin")
	_ = cmd.MarkFlagRequired("avalanchego-bin")

	return cmd
}
