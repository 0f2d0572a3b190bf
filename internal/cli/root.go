package cli

import (
	stdcontext "context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/chris-x86-64/rootlessspawner/internal/config"
	"github.com/chris-x86-64/rootlessspawner/internal/logging"
	"github.com/chris-x86-64/rootlessspawner/internal/registry"
)

// NewRootCmd assembles the rootlessspawner command tree.
func NewRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "rootlessspawner",
		Short: "Supervise per-user service processes without root",
	}

	root.PersistentFlags().StringVarP(&opts.configFile, "config", "c", "", "Path to configuration file")

	root.AddCommand(newServeCmd(opts))
	root.AddCommand(newStartCmd(opts))
	root.AddCommand(newStatusCmd(opts))
	root.AddCommand(newStopCmd(opts))
	root.AddCommand(newClearCmd(opts))
	root.AddCommand(newVersionCmd())

	root.SilenceUsage = true
	root.SilenceErrors = true

	return root
}

// Execute runs the CLI entrypoint.
func Execute() {
	ctx, stop := signal.NotifyContext(stdcontext.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := NewRootCmd()
	root.SetContext(ctx)

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type options struct {
	configFile string
}

func (o *options) load() (*config.Config, error) {
	if o.configFile == "" {
		return config.Default(), nil
	}
	return config.Load(o.configFile)
}

func (o *options) logger(cfg *config.Config) (*zap.Logger, error) {
	return logging.New(cfg.Log.Level, cfg.Log.Format)
}

// newRegistry builds the job registry all commands operate through, so that
// a CLI invocation resumes whatever a previous invocation persisted.
func (o *options) newRegistry(cfg *config.Config, log *zap.Logger) *registry.Registry {
	regOpts := registry.Options{
		StateDir:         cfg.StateDir,
		HomeRoot:         cfg.HomeRoot,
		SharedDir:        cfg.SharedDir,
		Host:             cfg.Host,
		PortEnvVar:       cfg.PortEnvVar,
		InterruptTimeout: cfg.Timeouts.InterruptDuration(),
		TermTimeout:      cfg.Timeouts.TermDuration(),
		KillTimeout:      cfg.Timeouts.KillDuration(),
		Logger:           log,
	}
	if cfg.Probe.Enabled {
		regOpts.ProbeDeadline = cfg.Probe.Deadline.Duration
		regOpts.ProbeInterval = cfg.Probe.Interval.Duration
	}
	return registry.New(regOpts)
}
