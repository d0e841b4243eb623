// Package commands defines the agent CLI.
package commands

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/gyuho/avalanche-ops/internal/agent"
	"github.com/gyuho/avalanche-ops/internal/avalanchego"
	"github.com/gyuho/avalanche-ops/internal/logging"
	"github.com/gyuho/avalanche-ops/internal/platform/ec2"
	"github.com/gyuho/avalanche-ops/internal/platform/kms"
	"github.com/gyuho/avalanche-ops/internal/platform/s3"
)

var versionString = "dev"

// SetVersionInfo records build-time version information.
func SetVersionInfo(version, commit string) {
	versionString = fmt.Sprintf("%s (%s)", version, commit)
}

// Root returns the root command for the avalanched agent.
func Root() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "avalanched",
		Short:   "On-host bootstrap agent for avalanche nodes",
		Version: versionString,
	}
	cmd.AddCommand(Run())
	return cmd
}

// Run returns the command that bootstraps the local node and then
// keeps publishing readiness.
func Run() *cobra.Command {
	var (
		logLevel    string
		metricsAddr string
		tlsKeyPath  string
		tlsCertPath string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Bootstrap the local node and keep it announced",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			logger := logging.New(os.Stderr, logging.ParseLevel(logLevel))

			md, err := ec2.FetchMetadata(ctx)
			if err != nil {
				return err
			}
			logger.Info("discovered instance",
				slog.String("instance_id", md.InstanceID),
				slog.String("public_ip", md.PublicIPv4),
				slog.String("region", md.Region))

			s3Client, err := s3.NewClient(ctx, md.Region)
			if err != nil {
				return err
			}
			ec2Client, err := ec2.NewClient(ctx, md.Region)
			if err != nil {
				return err
			}
			kmsClient, err := kms.NewClient(ctx, md.Region)
			if err != nil {
				return err
			}

			launch := avalanchego.NewLaunchConfig()
			if tlsKeyPath != "" {
				launch.TLSKeyPath = tlsKeyPath
			}
			if tlsCertPath != "" {
				launch.TLSCertPath = tlsCertPath
			}

			metrics := agent.NewMetrics()
			a := &agent.Agent{
				Logger:   logger,
				Metadata: *md,
				Store:    s3Client,
				Tags:     ec2Client,
				Keys:     kmsClient,
				Service:  &agent.SystemdManager{},
				Health:   avalanchego.NewHealthClient(),
				Metrics:  metrics,
				Launch:   launch,
			}

			if err := a.Bootstrap(ctx); err != nil {
				return err
			}

			go func() {
				http.Handle("/metrics", metrics.Handler())
				if err := http.ListenAndServe(metricsAddr, nil); err != nil {
					logger.Error("metrics listener failed", slog.String("error", err.Error()))
				}
			}()

			return a.RunSteadyState(ctx)
		},
	}

	cmd.Flags().StringVar(&logLevel, "log-level", "info", "Log level: debug, info, warn, error")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", ":7777", "Address for the agent metrics listener")
	cmd.Flags().StringVar(&tlsKeyPath, "staking-tls-key-path", "", "Override the staking TLS key location")
	cmd.Flags().StringVar(&tlsCertPath, "staking-tls-cert-path", "", "Override the staking TLS cert location")

	return cmd
}
