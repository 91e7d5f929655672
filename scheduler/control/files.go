// Package control is the operator side channel of a running daemon: a PID file, files that
// carry a requested pool size or cancel patterns, and the signals that tell the daemon to read them.
package control

import (
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"

	"github.com/twitter/jobgate/common"
)

// Files locates the side channel files.
type Files struct {
	PIDFile      string
	PoolSizeFile string
	CancelFile   string
}

// DefaultFiles are the locations used when the daemon and CLI are not told otherwise.
func DefaultFiles() Files {
	return Files{
		PIDFile:      common.DefaultPIDFile,
		PoolSizeFile: common.DefaultPoolSizeFile,
		CancelFile:   common.DefaultCancelFile,
	}
}

// WritePIDFile records this process' pid at path. It refuses to overwrite the pid of a live
// process. The returned func removes the file.
func WritePIDFile(path string) (func(), error) {
	if pid, err := ReadPID(path); err == nil && pid != os.Getpid() && ProcessAlive(pid) {
		return nil, fmt.Errorf("pid file %s belongs to running process %d", path, pid)
	}
	if err := writeAtomic(path, strconv.Itoa(os.Getpid())+"\n"); err != nil {
		return nil, err
	}
	return func() { os.Remove(path) }, nil
}

// ReadPID returns the pid recorded at path.
func ReadPID(path string) (int, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("pid file %s does not hold a pid: %q", path, strings.TrimSpace(string(data)))
	}
	return pid, nil
}

// ProcessAlive checks pid with signal 0.
func ProcessAlive(pid int) bool {
	err := unix.Kill(pid, 0)
	return err == nil || err == unix.EPERM
}

// FindDaemon returns the pid of the running daemon recorded at path.
func FindDaemon(path string) (int, error) {
	pid, err := ReadPID(path)
	if err != nil {
		return 0, errors.Wrap(err, "no running jobgate daemon found")
	}
	if !ProcessAlive(pid) {
		return 0, fmt.Errorf("no running jobgate daemon found: process %d from %s is gone", pid, path)
	}
	return pid, nil
}

func WritePoolSize(path string, size int) error {
	return writeAtomic(path, strconv.Itoa(size)+"\n")
}

// ReadPoolSize returns the staged pool size. The value is only parsed here, range checks are
// left to the controller.
func ReadPoolSize(path string) (int, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("pool size file %s: %q is not an integer", path, strings.TrimSpace(string(data)))
	}
	return n, nil
}

// WriteCancelPatterns stores one job id pattern per line.
func WriteCancelPatterns(path string, patterns []string) error {
	return writeAtomic(path, strings.Join(patterns, "\n")+"\n")
}

// ReadCancelPatterns returns the non empty lines of the cancel file.
func ReadCancelPatterns(path string) ([]string, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var patterns []string
	for _, line := range strings.Split(string(data), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			patterns = append(patterns, line)
		}
	}
	return patterns, nil
}

// writeAtomic writes through a temp file in the same directory so readers never see a partial value.
func writeAtomic(path, contents string) error {
	tmp, err := ioutil.TempFile(filepath.Dir(path), filepath.Base(path)+".tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.WriteString(contents); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
