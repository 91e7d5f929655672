// Package slurm submits, polls and cancels jobs through the Slurm command line tools
// (sbatch, squeue, sacct, scancel) and reads partition resources from sinfo.
package slurm

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/twitter/jobgate/common/os/exec"
	"github.com/twitter/jobgate/common/stats"
)

const (
	DefaultCommandsPerSecond = 10
	DefaultCommandBurst      = 5

	// How long a command gets to exit after SIGTERM once its call timed out.
	DefaultKillTimeout = 2 * time.Second
)

// Config locates the Slurm tools. Empty paths are looked up on PATH.
type Config struct {
	SbatchPath  string
	SqueuePath  string
	SacctPath   string
	ScancelPath string
	SinfoPath   string

	// Slurm commands are rate limited, they all hit slurmctld.
	CommandsPerSecond float64
	CommandBurst      int

	KillTimeout time.Duration
}

func (c *Config) setDefaults() {
	def := func(p *string, name string) {
		if *p == "" {
			*p = name
		}
	}
	def(&c.SbatchPath, "sbatch")
	def(&c.SqueuePath, "squeue")
	def(&c.SacctPath, "sacct")
	def(&c.ScancelPath, "scancel")
	def(&c.SinfoPath, "sinfo")
	if c.CommandsPerSecond <= 0 {
		c.CommandsPerSecond = DefaultCommandsPerSecond
	}
	if c.CommandBurst <= 0 {
		c.CommandBurst = DefaultCommandBurst
	}
	if c.KillTimeout <= 0 {
		c.KillTimeout = DefaultKillTimeout
	}
}

// commander runs rate limited Slurm commands and records their latency per command.
type commander struct {
	config  Config
	exec    exec.OsExec
	limiter *rate.Limiter
	stat    stats.StatsReceiver
}

func newCommander(config Config, ex exec.OsExec, stat stats.StatsReceiver) *commander {
	config.setDefaults()
	if ex == nil {
		ex = exec.NewOsExec()
	}
	if stat == nil {
		stat = stats.NilStatsReceiver()
	}
	return &commander{
		config:  config,
		exec:    ex,
		limiter: rate.NewLimiter(rate.Limit(config.CommandsPerSecond), config.CommandBurst),
		stat:    stat.Scope("slurm"),
	}
}

// run waits for the rate limiter, then runs the command until it exits or ctx ends.
// A non zero exit is returned as an error carrying the command's last stderr line.
func (c *commander) run(ctx context.Context, stdin string, name string, args ...string) (exec.RunResult, error) {
	cmdName := commandName(name)
	if err := c.limiter.Wait(ctx); err != nil {
		return exec.RunResult{ExitCode: -1, Error: err}, errors.Wrapf(err, "%s not run", cmdName)
	}
	defer c.stat.Scope(cmdName).Latency(stats.SlurmCommandLatency_ms).Time().Stop()

	var in io.Reader
	if stdin != "" {
		in = strings.NewReader(stdin)
	}
	rr := exec.RunCommand(ctx, c.exec.Command(name, args...), in, c.config.KillTimeout)
	if rr.Error == nil {
		return rr, nil
	}

	c.stat.Scope(cmdName).Counter(stats.SlurmCommandErrCounter).Inc(1)
	log.WithFields(
		log.Fields{
			"cmd":      cmdName,
			"args":     args,
			"exitCode": rr.ExitCode,
			"stderr":   rr.StderrLine(),
			"err":      rr.Error,
		}).Debug("slurm command failed")
	switch {
	case rr.Error == exec.TimeoutError:
		return rr, errors.Errorf("%s timed out", cmdName)
	case rr.StderrLine() != "":
		return rr, errors.Errorf("%s: %s", cmdName, rr.StderrLine())
	default:
		return rr, errors.Wrap(rr.Error, cmdName)
	}
}

func commandName(path string) string {
	if i := strings.LastIndex(path, "/"); i >= 0 {
		return path[i+1:]
	}
	return path
}
