package cli

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	httpapi "github.com/chris-x86-64/rootlessspawner/internal/api/http"
)

func newServeCmd(opts *options) *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the hub-facing control API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			if listen != "" {
				cfg.Listen = listen
			}

			log, err := opts.logger(cfg)
			if err != nil {
				return err
			}
			defer log.Sync()

			reg := opts.newRegistry(cfg, log)
			server, err := httpapi.NewServer(httpapi.Config{
				Addr:    cfg.Listen,
				Manager: reg,
			})
			if err != nil {
				return err
			}

			log.Info("control API listening", zap.String("addr", server.Addr()))
			return server.Run(cmd.Context())
		},
	}

	cmd.Flags().StringVar(&listen, "listen", "", "Control API listen address (overrides config)")
	return cmd
}
