package cli

import (
	"fmt"
	"io"
	"os"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sys/unix"

	"github.com/twitter/jobgate/common"
	"github.com/twitter/jobgate/scheduler/client"
	"github.com/twitter/jobgate/scheduler/control"
)

// Cmd is one subcommand of the CLI.
type Cmd interface {
	RegisterFlags() *cobra.Command
	Run(cl *CLIClient, cmd *cobra.Command, args []string) error
}

// CLIClient holds the global flags shared by every subcommand.
type CLIClient struct {
	RootCmd  *cobra.Command
	Files    control.Files
	Addr     string
	LogLevel string

	Out io.Writer

	// Overridable for tests.
	Signal    func(pid int, sig syscall.Signal) error
	NewClient func(addr string) *client.StatusClient
}

func (c *CLIClient) Exec() error {
	return c.RootCmd.Execute()
}

func NewCLIClient() *CLIClient {
	c := &CLIClient{
		Files:     control.DefaultFiles(),
		Out:       os.Stdout,
		Signal:    unix.Kill,
		NewClient: func(addr string) *client.StatusClient { return client.NewStatusClient(addr, nil) },
	}

	c.RootCmd = &cobra.Command{
		Use:               "jobgatecl",
		Short:             "jobgatecl controls a running jobgate daemon",
		PersistentPreRunE: c.Init,
		Run:               func(*cobra.Command, []string) {},
		SilenceUsage:      true,
	}
	flags := c.RootCmd.PersistentFlags()
	flags.StringVar(&c.Files.PIDFile, "pid_file", common.DefaultPIDFile, "PID file written by the daemon")
	flags.StringVar(&c.Files.PoolSizeFile, "pool_size_file", common.DefaultPoolSizeFile, "File the requested pool size is written to")
	flags.StringVar(&c.Files.CancelFile, "cancel_file", common.DefaultCancelFile, "File the cancel patterns are written to")
	flags.StringVar(&c.Addr, "addr", common.DefaultHTTPAddr, "Daemon http address, used by status")
	flags.StringVar(&c.LogLevel, "log_level", "info", "Log everything at this level and above (error|info|debug)")

	c.addCmd(&resizeCmd{})
	c.addCmd(&cancelCmd{})
	c.addCmd(&statusCmd{})
	c.addCmd(&pidCmd{})

	return c
}

// Can only be called from cobra command run or hook
func (c *CLIClient) Init(cmd *cobra.Command, args []string) error {
	level, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		log.Error(err)
		return err
	}
	log.SetLevel(level)
	return nil
}

// signalDaemon finds the live daemon from the PID file and sends it sig.
func (c *CLIClient) signalDaemon(sig syscall.Signal) (int, error) {
	pid, err := control.FindDaemon(c.Files.PIDFile)
	if err != nil {
		return 0, err
	}
	if err := c.Signal(pid, sig); err != nil {
		return 0, fmt.Errorf("signalling jobgate daemon %d: %v", pid, err)
	}
	return pid, nil
}

func (c *CLIClient) addCmd(cmd Cmd) {
	cobraCmd := cmd.RegisterFlags()
	cobraCmd.RunE = func(innerCmd *cobra.Command, args []string) error {
		return cmd.Run(c, innerCmd, args)
	}
	c.RootCmd.AddCommand(cobraCmd)
}
