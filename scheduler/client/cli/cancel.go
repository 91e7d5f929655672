package cli

/**
implements the command line entry for the cancel command
*/

import (
	"fmt"
	"path"

	"github.com/spf13/cobra"

	"github.com/twitter/jobgate/scheduler/control"
)

type cancelCmd struct {
	patterns []string
}

func (c *cancelCmd) RegisterFlags() *cobra.Command {
	r := &cobra.Command{
		Use:   "cancel [pattern...]",
		Short: "Cancel the jobs whose ids match any of the patterns",
		Long:  "Cancel the jobs whose ids match any of the patterns. Patterns may use * and ? wildcards, quote them.",
	}
	r.Flags().StringSliceVarP(&c.patterns, "job", "j", nil, "Job id pattern, may be repeated")
	return r
}

func (c *cancelCmd) Run(cl *CLIClient, cmd *cobra.Command, args []string) error {
	patterns := append(append([]string(nil), c.patterns...), args...)
	if len(patterns) == 0 {
		return fmt.Errorf("cancel needs at least one job id pattern")
	}
	for _, p := range patterns {
		if _, err := path.Match(p, ""); err != nil {
			return fmt.Errorf("bad pattern %q: %v", p, err)
		}
	}
	if _, err := control.FindDaemon(cl.Files.PIDFile); err != nil {
		return err
	}
	if err := control.WriteCancelPatterns(cl.Files.CancelFile, patterns); err != nil {
		return err
	}
	pid, err := cl.signalDaemon(control.CancelSignal)
	if err != nil {
		return err
	}
	fmt.Fprintf(cl.Out, "cancel of %v sent to jobgate daemon %d\n", patterns, pid)
	return nil
}
