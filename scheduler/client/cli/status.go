package cli

/**
implements the command line entry for the status and pid commands
*/

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/twitter/jobgate/scheduler/control"
	"github.com/twitter/jobgate/scheduler/status"
)

type statusCmd struct {
	printAsJson bool
	state       string
}

func (c *statusCmd) RegisterFlags() *cobra.Command {
	r := &cobra.Command{
		Use:   "status",
		Short: "Print the daemon's job status",
	}
	r.Flags().BoolVar(&c.printAsJson, "json", false, "Print out status as JSON")
	r.Flags().StringVar(&c.state, "state", "", "Only list jobs in this state (queued|submitted|running|completed|failed|cancelled)")
	return r
}

func (c *statusCmd) Run(cl *CLIClient, cmd *cobra.Command, args []string) error {
	snap, err := cl.NewClient(cl.Addr).GetStatus(c.state)
	if err != nil {
		return err
	}
	if c.printAsJson {
		asJson, err := json.MarshalIndent(snap, "", "  ")
		if err != nil {
			return fmt.Errorf("Error converting status to JSON: %v", err)
		}
		fmt.Fprintf(cl.Out, "%s\n", asJson)
		return nil
	}
	fmt.Fprint(cl.Out, status.FormatReport(snap))
	return nil
}

type pidCmd struct{}

func (c *pidCmd) RegisterFlags() *cobra.Command {
	return &cobra.Command{
		Use:   "pid",
		Short: "Print the pid of the running daemon",
		Args:  cobra.NoArgs,
	}
}

func (c *pidCmd) Run(cl *CLIClient, cmd *cobra.Command, args []string) error {
	pid, err := control.FindDaemon(cl.Files.PIDFile)
	if err != nil {
		return err
	}
	fmt.Fprintln(cl.Out, pid)
	return nil
}
