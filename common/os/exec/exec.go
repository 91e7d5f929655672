// Package exec provides interfaces around os/exec so command execution can be faked in tests,
// plus a helper to run a command under a deadline.
package exec

import (
	"io"
	"os"
	osexec "os/exec"
	"syscall"
)

type (
	// OsExec provides an interface around os/exec.Command to support injecting fake
	// exec functionality
	OsExec interface {
		// Command creates a Cmd with the command name and arguments set.
		// Names without a path separator are resolved with os/exec.LookPath.
		Command(name string, args ...string) Cmd
	}

	defaultOsExec struct{}

	// Cmd wraps the os/exec.Cmd struct with our own interface
	Cmd interface {
		// Path returns the path to the executable to run
		Path() string

		// Args returns a copy of the command name followed by its arguments.
		Args() []string

		// Run starts the command and waits for it to complete. A non zero exit
		// is returned as an ExitError.
		Run() error

		// Start starts the command but does not wait for it to complete.
		Start() error

		// Wait waits for a started command to exit and releases its resources.
		Wait() error

		// Enables/disables setsid for the child process, disabled by default,
		// so signals can reach the process and all of its children.
		SetSession(enable bool)

		SetStdin(io.Reader)
		SetStdout(io.Writer)
		SetStderr(io.Writer)

		// SetEnv sets the environment in os.Environ format, nil inherits ours.
		SetEnv(env []string)

		// String returns a human-readable description of c. It is intended only for debugging.
		String() string

		// Process returns the underlying os.Process once the command has been started, nil before.
		Process() *os.Process
	}

	// ExitError provides our own interface around process termination to allow for
	// mocking in tests:
	//
	//   err := NewOsExec().Command("false").Run()
	//   if exitErr, ok := err.(ExitError); ok {
	//     log.Info(exitErr.ExitStatus())
	//   }
	ExitError interface {
		// Exited reports if the process exited normally rather than by a signal.
		Exited() bool

		// ExitStatus returns the exit code if Exited() is true, -1 otherwise.
		ExitStatus() int

		// Signaled returns true if the process died because of an untrapped signal
		Signaled() bool

		Error() string

		// Path and Args of the Cmd that returned this error
		Path() string
		Args() []string
	}

	cmdAdapter struct {
		cmd *osexec.Cmd
	}

	exitErrorAdapter struct {
		err  *osexec.ExitError
		ws   syscall.WaitStatus
		path string
		args []string
	}
)

// implements assertions
var (
	_ ExitError = &exitErrorAdapter{}
	_ Cmd       = &cmdAdapter{}
)

// NewOsExec creates a default OsExec instance
func NewOsExec() OsExec {
	return &defaultOsExec{}
}

func (d *defaultOsExec) Command(name string, args ...string) Cmd {
	return &cmdAdapter{cmd: osexec.Command(name, args...)}
}

func wrapExitError(cmd Cmd, err error) error {
	if err == nil {
		return nil
	}
	if ex, ok := err.(*osexec.ExitError); ok {
		if ws, ok := ex.Sys().(syscall.WaitStatus); ok {
			return &exitErrorAdapter{
				err:  ex,
				ws:   ws,
				path: cmd.Path(),
				args: cmd.Args(),
			}
		}
	}
	return err
}

func (e *exitErrorAdapter) Exited() bool    { return e.ws.Exited() }
func (e *exitErrorAdapter) ExitStatus() int { return e.ws.ExitStatus() }
func (e *exitErrorAdapter) Signaled() bool  { return e.ws.Signaled() }
func (e *exitErrorAdapter) Error() string   { return e.err.Error() }
func (e *exitErrorAdapter) Path() string    { return e.path }
func (e *exitErrorAdapter) Args() []string  { return e.args }

func (c *cmdAdapter) SetSession(enable bool) {
	if c.cmd.SysProcAttr == nil {
		c.cmd.SysProcAttr = &syscall.SysProcAttr{}
	}
	c.cmd.SysProcAttr.Setsid = enable
}

func (c *cmdAdapter) Run() error   { return wrapExitError(c, c.cmd.Run()) }
func (c *cmdAdapter) Start() error { return c.cmd.Start() }
func (c *cmdAdapter) Wait() error  { return wrapExitError(c, c.cmd.Wait()) }

func (c *cmdAdapter) Path() string          { return c.cmd.Path }
func (c *cmdAdapter) SetStdin(r io.Reader)  { c.cmd.Stdin = r }
func (c *cmdAdapter) SetStdout(w io.Writer) { c.cmd.Stdout = w }
func (c *cmdAdapter) SetStderr(w io.Writer) { c.cmd.Stderr = w }
func (c *cmdAdapter) SetEnv(env []string)   { c.cmd.Env = env }
func (c *cmdAdapter) String() string        { return c.cmd.String() }
func (c *cmdAdapter) Process() *os.Process  { return c.cmd.Process }

func (c *cmdAdapter) Args() []string {
	return append([]string(nil), c.cmd.Args...)
}
