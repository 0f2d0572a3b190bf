package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/chris-x86-64/rootlessspawner/internal/api"
)

func newStartCmd(opts *options) *cobra.Command {
	var (
		jobName string
		envVars []string
		workdir string
	)

	cmd := &cobra.Command{
		Use:   "start [flags] -- COMMAND [ARG...]",
		Short: "Spawn a command in its own session and persist its pid",
		Args:  cobra.MinimumNArgs(1),
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

			env, err := parseEnvVars(envVars)
			if err != nil {
				return err
			}

			reg := opts.newRegistry(cfg, log)
			ep, err := reg.StartJob(cmd.Context(), jobName, api.StartRequest{
				Command: args,
				Env:     env,
				Workdir: workdir,
			})
			if err != nil {
				return err
			}

			report, err := reg.JobStatus(cmd.Context(), jobName)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s:%d pid %d\n", jobName, ep.Host, ep.Port, report.PID)
			return nil
		},
	}

	cmd.Flags().StringVar(&jobName, "name", "default", "Job name")
	cmd.Flags().StringArrayVarP(&envVars, "env", "e", nil, "Environment variable as KEY=VALUE (repeatable)")
	cmd.Flags().StringVar(&workdir, "workdir", "", "Working directory for the child (overrides home provisioning)")
	return cmd
}

func parseEnvVars(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	env := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid environment variable %q, want KEY=VALUE", pair)
		}
		env[key] = value
	}
	return env, nil
}
