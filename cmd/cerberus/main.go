package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	root := buildRoot()
	if err := root.Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// GlobalFlags holds minimal global/persistent flags for CLI commands
type GlobalFlags struct {
	ConfigPath string
}

// APIFlags holds the connection settings for a running daemon
type APIFlags struct {
	APIUrl     string
	APITimeout time.Duration
}

// ServiceFlags holds service-related flags
type ServiceFlags struct {
	Key   string
	All   bool
	Force bool
	APIFlags
}

// LogsFlags selects archived records
type LogsFlags struct {
	DSN     string
	Service string
	Level   string
	Since   string
	Until   string
	JSON    bool
}

func buildRoot() *cobra.Command {
	globalFlags := &GlobalFlags{}
	serviceFlags := &ServiceFlags{}
	logsFlags := &LogsFlags{}

	root := createRootCommand(globalFlags)
	root.AddCommand(
		createServeCommand(globalFlags),
		createStatusCommand(serviceFlags),
		createStartCommand(serviceFlags),
		createStopCommand(serviceFlags),
		createLogsCommand(globalFlags, logsFlags),
		createVersionCommand(),
	)
	return root
}

func createRootCommand(flags *GlobalFlags) *cobra.Command {
	root := &cobra.Command{
		Use:   "cerberus",
		Short: "In-process service registry and attribution logger",
		Long: `Cerberus runs a service registry with a lifecycle supervisor, an
interactive terminal and a log archive, and talks to a running daemon
over its admin API.

Examples:
  cerberus serve --config=cerberus.toml
  cerberus status --api-url=http://localhost:8080/api
  cerberus stop --key=NET
  cerberus logs query --dsn=sqlite:///var/lib/cerberus/logs.db --service=MAIN`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&flags.ConfigPath, "config", "", "path to TOML config file (optional)")
	return root
}

func addAPIFlags(cmd *cobra.Command, f *APIFlags) {
	cmd.Flags().StringVar(&f.APIUrl, "api-url", "", "daemon URL (e.g. http://host:8080/api)")
	cmd.Flags().DurationVar(&f.APITimeout, "api-timeout", 10*time.Second, "request timeout")
}

func createServeCommand(globalFlags *GlobalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve [config.toml]",
		Short: "Run the registry in the foreground",
		Long: `Bootstrap the registry, start the main service with its terminal and
serve the admin API and metrics when configured. Stops on SIGINT, SIGTERM
or when the main service is stopped.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := globalFlags.ConfigPath
			if len(args) > 0 {
				path = args[0]
			}
			return runServe(path, cmd.InOrStdin())
		},
	}
}

func createStatusCommand(f *ServiceFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show service status",
		Long: `Show the status of services registered with a running daemon.

Examples:
  cerberus status              # all services
  cerberus status --key=NET    # one service`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return Status(cmd.OutOrStdout(), NewAPIClient(f.APIUrl, f.APITimeout), f.Key)
		},
	}
	cmd.Flags().StringVar(&f.Key, "key", "", "service key (optional)")
	addAPIFlags(cmd, &f.APIFlags)
	return cmd
}

func createStartCommand(f *ServiceFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start a service",
		Long: `Start a registered service, or every registered service with --all.

Examples:
  cerberus start --key=NET
  cerberus start --all`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return Start(cmd.OutOrStdout(), NewAPIClient(f.APIUrl, f.APITimeout), f.Key, f.All)
		},
	}
	cmd.Flags().StringVar(&f.Key, "key", "", "service key")
	cmd.Flags().BoolVar(&f.All, "all", false, "start every registered service")
	cmd.MarkFlagsOneRequired("key", "all")
	cmd.MarkFlagsMutuallyExclusive("key", "all")
	addAPIFlags(cmd, &f.APIFlags)
	return cmd
}

func createStopCommand(f *ServiceFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop a service",
		Long: `Stop a running service, or every running service with --all.
--force interrupts the service's workers before its stop hook runs.

Examples:
  cerberus stop --key=NET
  cerberus stop --key=NET --force
  cerberus stop --all`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return Stop(cmd.OutOrStdout(), NewAPIClient(f.APIUrl, f.APITimeout), f.Key, f.All, f.Force)
		},
	}
	cmd.Flags().StringVar(&f.Key, "key", "", "service key")
	cmd.Flags().BoolVar(&f.All, "all", false, "stop every running service")
	cmd.Flags().BoolVar(&f.Force, "force", false, "interrupt workers before stopping")
	cmd.MarkFlagsOneRequired("key", "all")
	cmd.MarkFlagsMutuallyExclusive("key", "all")
	cmd.MarkFlagsMutuallyExclusive("all", "force")
	addAPIFlags(cmd, &f.APIFlags)
	return cmd
}

func createLogsCommand(globalFlags *GlobalFlags, f *LogsFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Query or erase archived log records",
		Long: `Work directly against a log archive. The archive is taken from --dsn,
or from log.archive_dsn of the config file when --dsn is empty.
--since and --until take RFC 3339 timestamps.`,
	}
	cmd.PersistentFlags().StringVar(&f.DSN, "dsn", "", "archive DSN (sqlite, postgres, clickhouse, badger)")
	cmd.PersistentFlags().StringVar(&f.Service, "service", "", "service key")
	cmd.PersistentFlags().StringVar(&f.Level, "level", "", "record level (INFO, DEBUG, FINE, WARNING, CRITICAL, FATAL)")
	cmd.PersistentFlags().StringVar(&f.Since, "since", "", "earliest record time")
	cmd.PersistentFlags().StringVar(&f.Until, "until", "", "latest record time")

	query := &cobra.Command{
		Use:   "query",
		Short: "List matching records",
		RunE: func(cmd *cobra.Command, args []string) error {
			return QueryLogs(cmd.Context(), cmd.OutOrStdout(), globalFlags.ConfigPath, *f)
		},
	}
	query.Flags().BoolVar(&f.JSON, "json", false, "print records as JSON")

	erase := &cobra.Command{
		Use:   "erase",
		Short: "Delete matching records",
		RunE: func(cmd *cobra.Command, args []string) error {
			return EraseLogs(cmd.Context(), cmd.OutOrStdout(), globalFlags.ConfigPath, *f)
		},
	}
	cmd.AddCommand(query, erase)
	return cmd
}

func createVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "cerberus", version)
		},
	}
}
