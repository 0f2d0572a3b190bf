package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newClearCmd(opts *options) *cobra.Command {
	var jobName string

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Forget a job's persisted state without signalling it",
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
			if err := reg.ClearJob(cmd.Context(), jobName); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s cleared\n", jobName)
			return nil
		},
	}

	cmd.Flags().StringVar(&jobName, "name", "default", "Job name")
	return cmd
}
