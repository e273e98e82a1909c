package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/agentic-research/blocklink/internal/config"
	"github.com/agentic-research/blocklink/internal/ctxlog"
	"github.com/agentic-research/blocklink/internal/toolchain"
	"github.com/spf13/cobra"
)

// version is overridden at link time.
var version = "dev"

// globals are the persistent flags shared by every subcommand.
type globals struct {
	configPath string
	logLevel   string
	logFormat  string
	namespace  string
	strict     bool

	cfg config.Config
}

func newRootCmd() *cobra.Command {
	g := &globals{}
	root := &cobra.Command{
		Use:           "blocklink",
		Short:         "Compile a virtual tree of TypeScript blocks into a live manifest",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return g.load(cmd)
		},
	}

	f := root.PersistentFlags()
	f.StringVarP(&g.configPath, "config", "c", "", "Path to an HCL config file")
	f.StringVar(&g.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	f.StringVar(&g.logFormat, "log-format", "", "Log format: text or json")
	f.StringVarP(&g.namespace, "namespace", "n", "", "Registry namespace used in block keys")
	f.BoolVar(&g.strict, "strict", false, "Fail the pass on repeated entries or block keys")

	root.AddCommand(
		newBuildCmd(g),
		newInspectCmd(g),
		newCallCmd(g),
		newLookupCmd(g),
		newServeCmd(g),
	)
	return root
}

// load resolves configuration (file, .env, environment, then flags) and puts
// a logger on the command context.
func (g *globals) load(cmd *cobra.Command) error {
	cfg, err := config.Load(g.configPath)
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.LogLevel = strings.ToLower(g.logLevel)
	}
	if flags.Changed("log-format") {
		cfg.LogFormat = strings.ToLower(g.logFormat)
	}
	if flags.Changed("namespace") {
		cfg.Namespace = g.namespace
	}
	if flags.Changed("strict") {
		cfg.Strict = g.strict
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	g.cfg = cfg

	logger := ctxlog.New(cfg.LogLevel, cfg.LogFormat, cmd.ErrOrStderr())
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cmd.SetContext(ctxlog.WithLogger(ctx, logger))
	logger.Debug("Configuration loaded.", "namespace", cfg.Namespace, "strict", cfg.Strict, "profile", cfg.Profile.Version)
	return nil
}

// toolchainCell picks the process-wide toolchain unless the profile was customized.
func (g *globals) toolchainCell() *toolchain.Cell[toolchain.Engine] {
	if g.cfg.Profile == toolchain.DefaultProfile() {
		return toolchain.Shared()
	}
	return toolchain.ForProfile(g.cfg.Profile)
}

// Execute runs the root command.
func Execute() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
