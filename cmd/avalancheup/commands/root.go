// Package commands defines the CLI command structure and flag bindings.
//
// Command execution is delegated to handler functions in the handlers
// package, which are framework-agnostic and tested independently.
package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var versionString = "dev"

// SetVersionInfo records build-time version information.
func SetVersionInfo(version, commit string) {
	versionString = fmt.Sprintf("%s (%s)", version, commit)
}

// Root returns the root command for the avalancheup CLI.
func Root() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "avalancheup",
		Short:   "Provision avalanche node fleets on AWS",
		Version: versionString,
	}

	cmd.AddCommand(DefaultSpec())
	cmd.AddCommand(Apply())
	cmd.AddCommand(Delete())

	return cmd
}
