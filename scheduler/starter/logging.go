package starter

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"syscall"

	log "github.com/sirupsen/logrus"

	"github.com/twitter/jobgate/common/errors"
	"github.com/twitter/jobgate/common/log/hooks"
)

// Set in the environment of the detached child so it does not detach again.
const daemonizedEnv = "JOBGATE_DAEMONIZED"

// SetupLogging configures the standard logger. The returned closer closes the log file, if any.
func SetupLogging(level, file string, asJSON bool) (io.Closer, error) {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return nil, errors.NewError(err, errors.FatalStartupExitCode)
	}
	log.SetLevel(lvl)
	log.AddHook(hooks.NewContextHook())
	if asJSON {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
	if file == "" {
		log.SetOutput(os.Stderr)
		return io.NopCloser(nil), nil
	}
	f, err := os.OpenFile(file, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, errors.NewError(fmt.Errorf("opening log file: %v", err), errors.FatalStartupExitCode)
	}
	log.SetOutput(f)
	return f, nil
}

// Daemonize re-executes the current command detached from the terminal and returns the child's
// pid. It returns 0 in the detached child itself. A daemon must log to a file.
func Daemonize(logFile string) (int, error) {
	if os.Getenv(daemonizedEnv) != "" {
		return 0, nil
	}
	if logFile == "" {
		return 0, errors.NewError(fmt.Errorf("--daemon requires --log_file"), errors.FatalStartupExitCode)
	}
	self, err := os.Executable()
	if err != nil {
		return 0, errors.NewError(err, errors.FatalStartupExitCode)
	}
	cmd := exec.Command(self, os.Args[1:]...)
	cmd.Env = append(os.Environ(), daemonizedEnv+"=1")
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	if err := cmd.Start(); err != nil {
		return 0, errors.NewError(fmt.Errorf("starting daemon: %v", err), errors.FatalStartupExitCode)
	}
	return cmd.Process.Pid, cmd.Process.Release()
}
