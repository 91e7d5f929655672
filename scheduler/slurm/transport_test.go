package slurm

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/twitter/jobgate/common/os/exec"
	"github.com/twitter/jobgate/common/stats"
	"github.com/twitter/jobgate/scheduler/domain"
)

func testTransport(ve *exec.ValidatingExecer, stat stats.StatsReceiver) *Transport {
	return NewTransport(Config{CommandsPerSecond: 1000, CommandBurst: 100}, ve, stat)
}

func TestSubmit(t *testing.T) {
	ve := exec.NewValidatingExecer(t, [][]string{
		{"^sbatch$", "^--parsable$"},
		{"^sbatch$", "^--parsable$"},
	}).SetFakeOutputs(map[int]exec.FakeOutput{
		0: {Stdout: "4242;cluster1\n"},
		1: {Stdout: "4243_7\n"},
	})
	defer ve.CheckAllValidated()
	tr := testTransport(ve, nil)

	id, err := tr.Submit(context.Background(), renderJob(), 1)
	require.NoError(t, err)
	assert.Equal(t, "4242", id)

	id, err = tr.Submit(context.Background(), renderJob(), 2)
	require.NoError(t, err)
	assert.Equal(t, "4243_7", id)

	stdins := ve.ReceivedStdin()
	require.Len(t, stdins, 2)
	comment := regexp.MustCompile(`--comment=jobgate:([0-9a-f-]{36}):(\d+)\n`)
	first := comment.FindStringSubmatch(stdins[0])
	second := comment.FindStringSubmatch(stdins[1])
	require.Len(t, first, 3)
	require.Len(t, second, 3)
	assert.Equal(t, "1", first[2])
	assert.Equal(t, "2", second[2])
	assert.NotEqual(t, first[1], second[1], "each attempt gets a fresh submission id")
}

func TestSubmitFailures(t *testing.T) {
	ve := exec.NewValidatingExecer(t, [][]string{
		{"sbatch", "--parsable"},
		{"sbatch", "--parsable"},
	}).SetFakeOutputs(map[int]exec.FakeOutput{
		0: {Stderr: "sbatch: error: invalid partition specified: gpu\n", ExitCode: 1},
		1: {Stdout: "Submitted batch job\n"},
	})
	defer ve.CheckAllValidated()
	stat := stats.DefaultStatsReceiver()
	tr := testTransport(ve, stat)

	_, err := tr.Submit(context.Background(), renderJob(), 1)
	var se *domain.SubmitError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "render_001", se.JobID)
	assert.Contains(t, err.Error(), "invalid partition specified")

	_, err = tr.Submit(context.Background(), renderJob(), 1)
	require.True(t, errors.As(err, &se))
	assert.Contains(t, err.Error(), "unexpected sbatch output")

	assert.EqualValues(t, 1, stat.Scope("slurm", "sbatch").Counter(stats.SlurmCommandErrCounter).Count())
}

func TestSubmitTimeout(t *testing.T) {
	ve := exec.NewValidatingExecer(t, [][]string{{"sbatch", "--parsable"}}).SetFakeOutputs(map[int]exec.FakeOutput{
		0: {Delay: time.Second},
	})
	tr := testTransport(ve, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := tr.Submit(ctx, renderJob(), 1)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "timed out")
}

func TestPoll(t *testing.T) {
	ve := exec.NewValidatingExecer(t, [][]string{
		{"squeue", "-h", "-j", "^11$", "-o", "%T"},
		{"squeue", "-h", "-j", "^12$", "-o", "%T"},
		{"squeue", "-h", "-j", "^13$", "-o", "%T"},
		{"sacct", "-j", "^13$", "-o", "State", "-n", "-X", "-P"},
		{"squeue", "-h", "-j", "^14$", "-o", "%T"},
		{"sacct", "-j", "^14$", "-o", "State", "-n", "-X", "-P"},
		{"squeue", "-h", "-j", "^15$", "-o", "%T"},
		{"sacct", "-j", "^15$", "-o", "State", "-n", "-X", "-P"},
	}).SetFakeOutputs(map[int]exec.FakeOutput{
		0: {Stdout: "PENDING\n"},
		1: {Stdout: "RUNNING\n"},
		2: {Stdout: ""},
		3: {Stdout: "COMPLETED\n"},
		4: {Stderr: "slurm_load_jobs error: Invalid job id specified", ExitCode: 1},
		5: {Stdout: "CANCELLED by 1000\n"},
		6: {},
		7: {},
	})
	defer ve.CheckAllValidated()
	tr := testTransport(ve, nil)
	ctx := context.Background()

	for id, want := range []domain.ExternalStatus{domain.Pending, domain.ExternalRunning, domain.Succeeded, domain.ExternalFailed} {
		st, err := tr.Poll(ctx, []string{"11", "12", "13", "14"}[id])
		assert.NoError(t, err)
		assert.Equal(t, want, st)
	}

	st, err := tr.Poll(ctx, "15")
	assert.Error(t, err)
	assert.Equal(t, domain.Unknown, st)
}

func TestPollSqueueError(t *testing.T) {
	ve := exec.NewValidatingExecer(t, [][]string{{"squeue", "-h", "-j", "1", "-o", "%T"}}).SetFakeOutputs(map[int]exec.FakeOutput{
		0: {Stderr: "squeue: error: Unable to contact slurm controller", ExitCode: 1},
	})
	defer ve.CheckAllValidated()

	st, err := testTransport(ve, nil).Poll(context.Background(), "1")
	assert.Equal(t, domain.Unknown, st)
	assert.Contains(t, err.Error(), "Unable to contact slurm controller")
}

func TestMapState(t *testing.T) {
	cases := map[string]domain.ExternalStatus{
		"PENDING":       domain.Pending,
		"REQUEUED":      domain.Pending,
		"CONFIGURING":   domain.Pending,
		"RUNNING":       domain.ExternalRunning,
		"COMPLETING":    domain.ExternalRunning,
		"COMPLETED":     domain.Succeeded,
		"FAILED":        domain.ExternalFailed,
		"TIMEOUT":       domain.ExternalFailed,
		"OUT_OF_MEMORY": domain.ExternalFailed,
		"NODE_FAIL":     domain.ExternalFailed,
		"CANCELLED+":    domain.ExternalFailed,
		"PREEMPTED":     domain.ExternalFailed,
		"running":       domain.ExternalRunning,
	}
	for in, want := range cases {
		got, err := mapState(in)
		assert.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	got, err := mapState("WHATEVER")
	assert.Error(t, err)
	assert.Equal(t, domain.Unknown, got)
}

func TestCancel(t *testing.T) {
	ve := exec.NewValidatingExecer(t, [][]string{{"scancel", "7"}, {"scancel", "8"}, {"scancel", "9"}}).SetFakeOutputs(map[int]exec.FakeOutput{
		1: {Stderr: "scancel: error: Kill job error on job id 8: Job/step already completing or completed", ExitCode: 1},
		2: {Stderr: "scancel: error: Access/permission denied", ExitCode: 1},
	})
	defer ve.CheckAllValidated()
	tr := testTransport(ve, nil)
	ctx := context.Background()

	assert.NoError(t, tr.Cancel(ctx, "7"))
	assert.NoError(t, tr.Cancel(ctx, "8"))
	err := tr.Cancel(ctx, "9")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "permission denied")
}

func TestConfigDefaults(t *testing.T) {
	c := Config{SqueuePath: "/usr/local/bin/squeue"}
	c.setDefaults()
	assert.Equal(t, "sbatch", c.SbatchPath)
	assert.Equal(t, "/usr/local/bin/squeue", c.SqueuePath)
	assert.Equal(t, float64(DefaultCommandsPerSecond), c.CommandsPerSecond)
	assert.Equal(t, DefaultKillTimeout, c.KillTimeout)
	assert.Equal(t, "squeue", commandName(c.SqueuePath))
}
