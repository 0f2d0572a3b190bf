package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/chris-x86-64/rootlessspawner/internal/api"
)

func newStopCmd(opts *options) *cobra.Command {
	var (
		jobName string
		now     bool
	)

	cmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop a job through the escalating signal sequence",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			log, err := opts.logger(cfg)
			if err != nil {
				return err
			}
			defer log.Sync()

			reg := opts.newRegistry(cfg, log)
			if err := reg.StopJob(cmd.Context(), jobName, api.StopRequest{Now: now}); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s stopped\n", jobName)
			return nil
		},
	}

	cmd.Flags().StringVar(&jobName, "name", "default", "Job name")
	cmd.Flags().BoolVar(&now, "now", false, "Skip the graceful interrupt tier")
	return cmd
}
