package exec

import (
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"
)

type (
	// ValidatingExecer is an OsExec implementation that instead of running Commands,
	// validates each command against the next entry of an expected list of argument
	// regexps and returns a canned result for it.
	ValidatingExecer struct {
		t              *testing.T
		mu             sync.Mutex
		expectedCmdsRe [][]string
		commandIdx     int
		fakeOutputs    map[int]FakeOutput
		received       [][]string
		stdins         []string
	}

	// FakeOutput is the canned result of one expected command.
	FakeOutput struct {
		Stdout   string
		Stderr   string
		ExitCode int

		// Delay holds the command open before it exits, to exercise timeouts.
		Delay time.Duration
	}

	// ValidatingCmd implements Cmd without running anything.
	ValidatingCmd struct {
		execer  *ValidatingExecer
		args    []string
		stdin   io.Reader
		stdout  io.Writer
		stderr  io.Writer
		doneCh  chan error
		stdinIn []byte
	}

	fakeExitError struct {
		code int
		args []string
	}
)

var _ Cmd = &ValidatingCmd{}
var _ ExitError = &fakeExitError{}

// NewValidatingExecer returns a ValidatingExecer with a set of expected commands that will be called.
func NewValidatingExecer(t *testing.T, expectedCmdsRe [][]string) *ValidatingExecer {
	return &ValidatingExecer{t: t, expectedCmdsRe: expectedCmdsRe, commandIdx: -1}
}

// SetFakeOutputs sets the canned results, keyed by expected command index.
// Commands without an entry exit 0 with no output.
func (v *ValidatingExecer) SetFakeOutputs(outputs map[int]FakeOutput) *ValidatingExecer {
	v.fakeOutputs = outputs
	return v
}

// Received returns the commands run so far.
func (v *ValidatingExecer) Received() [][]string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([][]string(nil), v.received...)
}

// Command returns a Cmd that is validated when started.
func (v *ValidatingExecer) Command(name string, args ...string) Cmd {
	return &ValidatingCmd{
		execer: v,
		args:   append([]string{name}, args...),
	}
}

// CheckAllValidated verifies that all expected commands were run.
// Tests can `defer v.CheckAllValidated()`.
func (v *ValidatingExecer) CheckAllValidated() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.commandIdx != len(v.expectedCmdsRe)-1 {
		v.t.Errorf("Number of expected commands: %d did not match validated command count: %d",
			len(v.expectedCmdsRe), v.commandIdx+1)
	}
}

// ReceivedStdin returns what each command run so far read from its stdin.
func (v *ValidatingExecer) ReceivedStdin() []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]string(nil), v.stdins...)
}

func (v *ValidatingExecer) next(args []string, stdin []byte) (FakeOutput, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.commandIdx++
	v.received = append(v.received, args)
	v.stdins = append(v.stdins, string(stdin))
	if err := v.validateCmd(args); err != nil {
		v.t.Error(err)
		return FakeOutput{}, err
	}
	return v.fakeOutputs[v.commandIdx], nil
}

func (v *ValidatingExecer) validateCmd(args []string) error {
	if v.commandIdx >= len(v.expectedCmdsRe) {
		return fmt.Errorf("command validation failed.\n\tonly expected %d commands.\n\treceived extra command: %s",
			len(v.expectedCmdsRe), args)
	}
	commandRes := v.expectedCmdsRe[v.commandIdx]
	if len(commandRes) != len(args) {
		return fmt.Errorf("command validation failed.\n\tcmd index: %d\n\texpected: %d args (%s)\n\treceived: %d args (%s)",
			v.commandIdx, len(commandRes), strings.Join(commandRes, ","), len(args), strings.Join(args, ","))
	}
	for i, re := range commandRes {
		if !regexp.MustCompile(re).MatchString(args[i]) {
			return fmt.Errorf("command validation failed.\n\tcmd index: %d, entry: %d\n\texpected: %s\n\treceived: %s",
				v.commandIdx, i, re, args[i])
		}
	}
	return nil
}

func (c *ValidatingCmd) Start() error {
	if c.stdin != nil {
		c.stdinIn, _ = io.ReadAll(c.stdin)
	}
	out, err := c.execer.next(c.args, c.stdinIn)
	if err != nil {
		return err
	}
	c.doneCh = make(chan error, 1)
	go func() {
		if out.Delay > 0 {
			time.Sleep(out.Delay)
		}
		if c.stdout != nil {
			io.WriteString(c.stdout, out.Stdout)
		}
		if c.stderr != nil {
			io.WriteString(c.stderr, out.Stderr)
		}
		if out.ExitCode != 0 {
			c.doneCh <- &fakeExitError{code: out.ExitCode, args: c.args}
			return
		}
		c.doneCh <- nil
	}()
	return nil
}

func (c *ValidatingCmd) Wait() error { return <-c.doneCh }

func (c *ValidatingCmd) Run() error {
	if err := c.Start(); err != nil {
		return err
	}
	return c.Wait()
}

// Stdin returns what the command read from its stdin.
func (c *ValidatingCmd) Stdin() []byte { return c.stdinIn }

func (c *ValidatingCmd) Path() string          { return c.args[0] }
func (c *ValidatingCmd) Args() []string        { return append([]string(nil), c.args...) }
func (c *ValidatingCmd) SetSession(bool)       {}
func (c *ValidatingCmd) SetStdin(r io.Reader)  { c.stdin = r }
func (c *ValidatingCmd) SetStdout(w io.Writer) { c.stdout = w }
func (c *ValidatingCmd) SetStderr(w io.Writer) { c.stderr = w }
func (c *ValidatingCmd) SetEnv([]string)       {}
func (c *ValidatingCmd) String() string        { return strings.Join(c.args, " ") }

// Process returns nil, there is no process to signal.
func (c *ValidatingCmd) Process() *os.Process { return nil }

func (e *fakeExitError) Exited() bool    { return e.code >= 0 }
func (e *fakeExitError) ExitStatus() int { return e.code }
func (e *fakeExitError) Signaled() bool  { return e.code < 0 }
func (e *fakeExitError) Error() string   { return fmt.Sprintf("exit status %d", e.code) }
func (e *fakeExitError) Path() string    { return e.args[0] }
func (e *fakeExitError) Args() []string  { return e.args }
