package cli

/**
implements the command line entry for the resize command
*/

import (
	"fmt"
	"os"
	"strconv"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/twitter/jobgate/scheduler/control"
	"github.com/twitter/jobgate/scheduler/domain"
)

type resizeCmd struct {
	cancel bool
}

func (c *resizeCmd) RegisterFlags() *cobra.Command {
	r := &cobra.Command{
		Use:   "resize <pool size>",
		Short: "Change how many jobs the daemon runs at once",
		Long: "Change how many jobs the daemon runs at once. The new size applies at the daemon's next check, " +
			"running jobs are never preempted when shrinking.",
		Args: cobra.MaximumNArgs(1),
	}
	r.Flags().BoolVar(&c.cancel, "cancel", false, "Withdraw a resize the daemon has not picked up yet")
	return r
}

func (c *resizeCmd) Run(cl *CLIClient, cmd *cobra.Command, args []string) error {
	if c.cancel {
		if err := os.Remove(cl.Files.PoolSizeFile); err != nil && !os.IsNotExist(err) {
			return err
		}
		fmt.Fprintln(cl.Out, "pending resize withdrawn")
		return nil
	}
	if len(args) != 1 {
		return fmt.Errorf("resize needs the new pool size")
	}

	size, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("pool size %q is not an integer", args[0])
	}
	if err := domain.ValidatePoolSize(size); err != nil {
		return err
	}
	if _, err := control.FindDaemon(cl.Files.PIDFile); err != nil {
		return err
	}
	if err := control.WritePoolSize(cl.Files.PoolSizeFile, size); err != nil {
		return err
	}
	pid, err := cl.signalDaemon(control.ResizeSignal)
	if err != nil {
		return err
	}
	log.Infof("asked daemon %d to resize to %d", pid, size)
	fmt.Fprintf(cl.Out, "pool size %d sent to jobgate daemon %d\n", size, pid)
	return nil
}
