package starter

import (
	"context"
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/twitter/jobgate/common"
	"github.com/twitter/jobgate/common/errors"
	"github.com/twitter/jobgate/common/stats"
	"github.com/twitter/jobgate/scheduler/control"
	"github.com/twitter/jobgate/scheduler/domain"
	"github.com/twitter/jobgate/scheduler/server"
)

const testConfig = `
controller:
  maxConcurrentJobs: 2
  maxRetries: 0
  checkInterval: 10ms
  callTimeout: 1s
  pollRetries: 0
  snapshotCacheTTL: 0s
backend:
  type: memory
  sim:
    runPolls: 1
    failAttempts:
      bad: -1
settingsFile: ""
`

const testJobs = `
defaults:
  script: work.py
jobs:
  - id: good_1
  - id: good_2
  - id: bad
`

type fixture struct {
	dir  string
	opts Options
}

func newFixture(t *testing.T) *fixture {
	dir, err := ioutil.TempDir("", "starter")
	require.NoError(t, err)
	write := func(name, contents string) string {
		p := filepath.Join(dir, name)
		require.NoError(t, ioutil.WriteFile(p, []byte(contents), 0644))
		return p
	}
	return &fixture{dir: dir, opts: Options{
		Config:       write("jobgate.yaml", testConfig),
		JobsFile:     write("jobs.yaml", testJobs),
		MaxRetries:   -1,
		DrainTimeout: -1,
		HTTPAddr:     "localhost:0",
		Files: control.Files{
			PIDFile:      filepath.Join(dir, "pid"),
			PoolSizeFile: filepath.Join(dir, "pool_size"),
			CancelFile:   filepath.Join(dir, "cancel"),
		},
		ExitWhenIdle: true,
	}}
}

func TestRunToCompletion(t *testing.T) {
	f := newFixture(t)
	defer os.RemoveAll(f.dir)

	d, err := Build(f.opts, stats.DefaultStatsReceiver())
	require.NoError(t, err)
	assert.Equal(t, 2, d.Config.Controller.MaxConcurrentJobs)
	pid, err := control.FindDaemon(f.opts.Files.PIDFile)
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), pid)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err = d.Run(ctx)
	assert.Equal(t, errors.JobsFailedExitCode, errors.ExitCodeOf(err), "%v", err)

	snap := d.Controller.Status()
	assert.Equal(t, 2, snap.Counts[domain.Completed.String()])
	assert.Equal(t, 1, snap.Counts[domain.Failed.String()])

	_, err = os.Stat(f.opts.Files.PIDFile)
	assert.True(t, os.IsNotExist(err), "pid file removed on exit")
}

func TestBuildOverrides(t *testing.T) {
	f := newFixture(t)
	defer os.RemoveAll(f.dir)
	f.opts.PoolSize = 5
	f.opts.MaxRetries = 2
	f.opts.CheckInterval = time.Second
	f.opts.PrintInterval = time.Minute
	f.opts.DrainTimeout = 0

	d, err := Build(f.opts, nil)
	require.NoError(t, err)
	defer d.removePID()
	assert.Equal(t, 2, d.Config.Controller.MaxRetries)
	assert.Equal(t, time.Second, d.Config.Controller.CheckInterval)
	assert.True(t, d.Config.Controller.Verbose)
	_, pending := d.Controller.GetPoolSize()
	assert.Equal(t, 5, pending)
}

func TestBuildFatal(t *testing.T) {
	f := newFixture(t)
	defer os.RemoveAll(f.dir)

	opts := f.opts
	opts.Config = "no.such.config"
	_, err := Build(opts, nil)
	assert.Equal(t, errors.FatalStartupExitCode, errors.ExitCodeOf(err))

	opts = f.opts
	opts.JobsFile = filepath.Join(f.dir, "missing.yaml")
	_, err = Build(opts, nil)
	assert.Equal(t, errors.FatalStartupExitCode, errors.ExitCodeOf(err))

	opts = f.opts
	opts.PoolSize = -1
	_, err = Build(opts, nil)
	assert.NoError(t, err, "negative pool size means unset")
	os.Remove(opts.Files.PIDFile)

	// pid 1 is always alive
	require.NoError(t, ioutil.WriteFile(f.opts.Files.PIDFile, []byte("1"), 0644))
	_, err = Build(f.opts, nil)
	assert.Equal(t, errors.FatalStartupExitCode, errors.ExitCodeOf(err))
}

func TestExtraParams(t *testing.T) {
	jobs := []domain.Job{
		{ID: "a", Spec: domain.JobSpec{Script: "a.py", ExtraParams: map[string]string{"qos": "low"}}.WithDefaults()},
		{ID: "b", Spec: domain.JobSpec{Script: "b.py"}.WithDefaults()},
	}
	require.NoError(t, addExtraParams(jobs, common.SplitCommaSepToMap("qos=high,exclusive")))
	assert.Equal(t, map[string]string{"qos": "low", "exclusive": ""}, jobs[0].Spec.ExtraParams)
	assert.Equal(t, map[string]string{"qos": "high", "exclusive": ""}, jobs[1].Spec.ExtraParams)

	assert.Error(t, addExtraParams(jobs, map[string]string{"partition": "other"}))
	assert.NoError(t, addExtraParams(nil, nil))
}

func TestExitError(t *testing.T) {
	assert.NoError(t, ExitError(&domain.StatusSnapshot{Jobs: []domain.JobStatus{
		{ID: "a", State: domain.Completed},
		{ID: "b", State: domain.Cancelled},
	}}))

	err := ExitError(&domain.StatusSnapshot{Jobs: []domain.JobStatus{
		{ID: "a", State: domain.Failed},
		{ID: "b", State: domain.Cancelled, LastError: server.ForceCancelReason + ": " + server.UrgentShutdownReason},
	}})
	assert.Equal(t, errors.UrgentShutdownExitCode, errors.ExitCodeOf(err))
}

func TestSetupLogging(t *testing.T) {
	dir, err := ioutil.TempDir("", "logging")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	_, err = SetupLogging("loud", "", false)
	assert.Equal(t, errors.FatalStartupExitCode, errors.ExitCodeOf(err))

	closer, err := SetupLogging("info", filepath.Join(dir, "jobgate.log"), true)
	require.NoError(t, err)
	assert.NoError(t, closer.Close())
	closer, err = SetupLogging("error", "", false)
	require.NoError(t, err)
	closer.Close()

	_, err = Daemonize("")
	if os.Getenv(daemonizedEnv) == "" {
		assert.Equal(t, errors.FatalStartupExitCode, errors.ExitCodeOf(err))
	}
}
