package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/chris-x86-64/rootlessspawner/internal/api"
)

func newStatusCmd(opts *options) *cobra.Command {
	var jobName string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Poll a job's liveness from its persisted state",
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
			report, err := reg.JobStatus(cmd.Context(), jobName)
			if errors.Is(err, api.ErrUnknownJob) {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: not running\n", jobName)
				return nil
			}
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		},
	}

	cmd.Flags().StringVar(&jobName, "name", "default", "Job name")
	return cmd
}
