package main

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/spf13/cobra"
	"github.com/uber/rlsp/src/rlsp/app"
	"github.com/uber/rlsp/src/rlsp/internal/core"
	"github.com/uber/rlsp/src/rlsp/internal/fs"
	"github.com/uber/rlsp/src/rlsp/repository/identity"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

const (
	_envJSONRPCMode    = "RLSP_JSONRPC_MODE"
	_envJSONRPCAddress = "RLSP_JSONRPC_ADDRESS"
)

func opts() fx.Option {
	return fx.Options(
		app.Module,
	)
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		log.Fatal(err)
	}
}

func newRootCmd() *cobra.Command {
	serve := newServeCmd()
	rootCmd := &cobra.Command{
		Use:           "rlsp",
		Short:         "Language server proxy for files on remote hosts",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          serve.RunE,
	}
	rootCmd.Flags().AddFlagSet(serve.Flags())
	rootCmd.AddCommand(serve)
	rootCmd.AddCommand(newEnvCmd())
	return rootCmd
}

type serveFlags struct {
	stdio bool
	tcp   string
}

func newServeCmd() *cobra.Command {
	flags := &serveFlags{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the daemon",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := flags.apply(); err != nil {
				return err
			}
			fx.New(opts()).Run()
			return nil
		},
	}
	cmd.Flags().BoolVar(&flags.stdio, "stdio", false, "serve a single editor over stdin and stdout")
	cmd.Flags().StringVar(&flags.tcp, "tcp", "", "listen for editors on this address")
	cmd.MarkFlagsMutuallyExclusive("stdio", "tcp")
	return cmd
}

// apply exports the flags as the environment variables the jsonrpc config block expands.
func (f *serveFlags) apply() error {
	switch {
	case f.stdio:
		return os.Setenv(_envJSONRPCMode, "stdio")
	case f.tcp != "":
		if err := os.Setenv(_envJSONRPCMode, "tcp"); err != nil {
			return err
		}
		return os.Setenv(_envJSONRPCAddress, f.tcp)
	}
	return nil
}

func newEnvCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "env",
		Short: "Inspect and edit remembered environments",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list [host]",
		Short: "Print remembered environments, most recently used first",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(func(store identity.Store) error {
				hosts := store.KnownHosts()
				if len(args) == 1 {
					hosts = args
				}
				return printYAML(cmd.OutOrStdout(), listEnvironments(store, hosts))
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "forget <host> [environment]",
		Short: "Forget one environment of a host, or the whole host",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(func(store identity.Store) error {
				env := ""
				if len(args) == 2 {
					env = args[1]
				}
				store.Forget(args[0], env)
				return nil
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "validated",
		Short: "Print the environments with a validated backend, per backend and host",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withStore(func(store identity.Store) error {
				return printYAML(cmd.OutOrStdout(), store.Validated())
			})
		},
	})
	return cmd
}

type hostEnvironments struct {
	Host         string   `yaml:"host"`
	Last         string   `yaml:"last,omitempty"`
	Environments []string `yaml:"environments"`
}

func listEnvironments(store identity.Store, hosts []string) []hostEnvironments {
	out := make([]hostEnvironments, 0, len(hosts))
	for _, host := range hosts {
		out = append(out, hostEnvironments{
			Host:         host,
			Last:         store.LastEnvironment(host),
			Environments: store.Environments(host),
		})
	}
	return out
}

// withStore builds the identity store from the daemon's configuration without starting the daemon.
func withStore(f func(identity.Store) error) error {
	var store identity.Store
	cli := fx.New(
		fx.NopLogger,
		core.ConfigModule,
		fs.Module,
		identity.Module,
		fx.Provide(func() *zap.SugaredLogger { return zap.NewNop().Sugar() }),
		fx.Populate(&store),
	)
	if err := cli.Err(); err != nil {
		return fmt.Errorf("loading identity store: %w", err)
	}
	return f(store)
}

func printYAML(w io.Writer, v interface{}) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encoding output: %w", err)
	}
	return enc.Close()
}
