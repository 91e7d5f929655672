package exec

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
)

var TimeoutError = errors.New("command timeout")

// RunResult is the outcome of RunCommand: the exit code and the full contents of stdout and stderr.
type RunResult struct {
	// ExitCode is the process exit status, -1 if it did not start or was killed.
	ExitCode int
	Stdout   []byte
	Stderr   []byte

	// Error contains any error from Start() or Wait(), TimeoutError when ctx ended first.
	Error error
}

func (rr RunResult) String() string {
	return fmt.Sprintf("ExitCode:%d, Error:%v, Stdout:%s, Stderr:%s", rr.ExitCode, rr.Error, rr.Stdout, rr.Stderr)
}

// StderrLine returns the last non empty stderr line, which is where CLI tools put their reason.
func (rr RunResult) StderrLine() string {
	lines := strings.Split(strings.TrimSpace(string(rr.Stderr)), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}

func truncateCmd(cmd Cmd) string {
	args := cmd.Args()
	if len(args) > 0 {
		args[0] = filepath.Base(args[0])
	}
	return strings.Join(args, " ")
}

// RunCommand execs cmd, feeding it stdin when non nil, and waits for it to exit or for ctx to end.
// When ctx ends first the process is sent SIGTERM, then killed if it is still running after
// killTimeout, and the result carries TimeoutError.
func RunCommand(ctx context.Context, cmd Cmd, stdin io.Reader, killTimeout time.Duration) RunResult {
	rr := RunResult{ExitCode: -1}

	var outBuf, errBuf bytes.Buffer
	cmd.SetStdout(&outBuf)
	cmd.SetStderr(&errBuf)
	if stdin != nil {
		cmd.SetStdin(stdin)
	}

	log.Debugf("Running Command: %s", truncateCmd(cmd))
	if err := cmd.Start(); err != nil {
		rr.Error = err
		return rr
	}

	var cmdErr error
	doneCh := make(chan struct{})
	go func() {
		cmdErr = cmd.Wait()
		close(doneCh)
	}()

	select {
	case <-doneCh:
	case <-ctx.Done():
		log.Infof("command %s timed out. Killing command", truncateCmd(cmd))
		termThenKill(cmd.Process(), killTimeout, doneCh)
		// must still wait for cmd.Wait()
		<-doneCh
		cmdErr = TimeoutError
	}

	rr.Stdout = outBuf.Bytes()
	rr.Stderr = errBuf.Bytes()
	rr.Error = cmdErr
	switch e := cmdErr.(type) {
	case nil:
		rr.ExitCode = 0
	case ExitError:
		rr.ExitCode = e.ExitStatus()
	}
	return rr
}

// termThenKill will SIGTERM a process, then Kill it if it hasn't exited after duration d.
// waitDoneCh must be closed by the caller when the process exits (to avoid double Wait()ing)
func termThenKill(p *os.Process, d time.Duration, waitDoneCh <-chan struct{}) {
	if p == nil {
		return
	}
	if err := p.Signal(syscall.SIGTERM); err != nil {
		log.Errorf("Failed to send SIGTERM to process: %s", err)
		return
	}
	select {
	case <-waitDoneCh:
	case <-time.After(d):
		log.Info("Command hasn't exited, using Kill()")
		if err := p.Kill(); err != nil {
			log.Errorf("Failed to Kill() process: %s", err)
		}
	}
}
