package domain

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func validSpec() JobSpec {
	return JobSpec{Script: "train.py", GPUs: 2}.WithDefaults()
}

func TestWithDefaults(t *testing.T) {
	s := JobSpec{Script: "x.py"}.WithDefaults()
	assert.Equal(t, DefaultPartition, s.Partition)
	assert.Equal(t, DefaultCPUs, s.CPUs)
	assert.Equal(t, DefaultMemory, s.Memory)
	assert.Equal(t, DefaultTimeLimit, s.TimeLimit)
	assert.Equal(t, DefaultExecutor, s.Executor)
	assert.Equal(t, 0, s.GPUs)

	s = JobSpec{Script: "x.py", CPUs: 8, Partition: "gpu"}.WithDefaults()
	assert.Equal(t, 8, s.CPUs)
	assert.Equal(t, "gpu", s.Partition)
}

func TestValidateJob(t *testing.T) {
	assert.NoError(t, ValidateJob(Job{ID: "render_01", Spec: validSpec()}))
	assert.Error(t, ValidateJob(Job{ID: "", Spec: validSpec()}))
	assert.Error(t, ValidateJob(Job{ID: "has space", Spec: validSpec()}))
	assert.Error(t, ValidateJob(Job{ID: "../etc", Spec: validSpec()}))

	cases := map[string]func(*JobSpec){
		"no script":      func(s *JobSpec) { s.Script = " " },
		"neg gpus":       func(s *JobSpec) { s.GPUs = -1 },
		"zero cpus":      func(s *JobSpec) { s.CPUs = 0 },
		"bad memory":     func(s *JobSpec) { s.Memory = "lots" },
		"bad time":       func(s *JobSpec) { s.TimeLimit = "tomorrow" },
		"mail half set":  func(s *JobSpec) { s.MailUser = "a@b.c" },
		"managed param":  func(s *JobSpec) { s.ExtraParams = map[string]string{"partition": "x"} },
		"bad param name": func(s *JobSpec) { s.ExtraParams = map[string]string{"--x": "y"} },
		"bad arg name":   func(s *JobSpec) { s.Args = map[string]string{"a=b": "c"} },
	}
	for name, mutate := range cases {
		s := validSpec()
		mutate(&s)
		assert.Error(t, ValidateSpec(s), name)
	}

	s := validSpec()
	s.ExtraParams = map[string]string{"qos": "high", "exclusive": ""}
	s.TimeLimit = "2-12:00:00"
	s.MailType, s.MailUser = "END", "a@b.c"
	assert.NoError(t, ValidateSpec(s))
}

func TestParseMemoryMB(t *testing.T) {
	good := map[string]int64{
		"512M":  512,
		"512":   512,
		"32G":   32 * 1024,
		"1t":    1024 * 1024,
		"16g":   16384,
		"1K":    1,
		"2048K": 2,
	}
	for in, want := range good {
		got, err := ParseMemoryMB(in)
		if assert.NoError(t, err, in) {
			assert.Equal(t, want, got, in)
		}
	}
	for _, in := range []string{"", "G", "12X", "-4G", "1.5G"} {
		_, err := ParseMemoryMB(in)
		assert.Error(t, err, in)
	}
}

func TestJobStateString(t *testing.T) {
	assert.Equal(t, "QUEUED", Queued.String())
	assert.Equal(t, "CANCELLED", Cancelled.String())
	assert.Equal(t, "JobState(17)", JobState(17).String())

	for _, s := range AllJobStates() {
		assert.Equal(t, s == Completed || s == Failed || s == Cancelled, s.IsTerminal(), s.String())
		assert.False(t, s.IsTerminal() && s.IsActive(), s.String())
	}
}

func TestJobStateJSON(t *testing.T) {
	data, err := json.Marshal(JobStatus{ID: "a", State: Running})
	assert.NoError(t, err)
	assert.Contains(t, string(data), `"state":"RUNNING"`)

	var st JobStatus
	assert.NoError(t, json.Unmarshal(data, &st))
	assert.Equal(t, Running, st.State)

	assert.Error(t, json.Unmarshal([]byte(`{"state":"BOGUS"}`), &st))
}

func TestRuntime(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Duration(0), Runtime(time.Time{}, time.Time{}, start))
	assert.Equal(t, time.Hour, Runtime(start, start.Add(time.Hour), start.Add(5*time.Hour)))
	assert.Equal(t, 5*time.Hour, Runtime(start, time.Time{}, start.Add(5*time.Hour)))

	assert.Equal(t, "N/A", FormatRuntime(0, false))
	assert.Equal(t, "1:02:03", FormatRuntime(time.Hour+2*time.Minute+3*time.Second, true))
	assert.Equal(t, "26:00:00", FormatRuntime(26*time.Hour, true))
}

func TestErrorKinds(t *testing.T) {
	cause := errors.New("sbatch: error: invalid partition")
	err := error(&SubmitError{JobID: "a", Cause: cause})
	assert.True(t, errors.Is(err, cause))

	var se *SubmitError
	assert.True(t, errors.As(err, &se))

	assert.NoError(t, ValidatePoolSize(1))
	var re *ReconfigurationError
	assert.True(t, errors.As(ValidatePoolSize(0), &re))
}
