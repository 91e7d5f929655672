// Package domain provides definitions for jobgate Jobs, their lifecycle states
// and the statuses reported by the external batch scheduler.
package domain

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Job is one logical unit of work the controller admits to the external scheduler.
type Job struct {
	ID   string  `json:"id"`
	Spec JobSpec `json:"spec"`
}

// JobSpec is the immutable resource and environment request of a job.
//
// Recognized fields are enumerated here and validated when the job is created.
// ExtraParams is the passthrough map for scheduler directives jobgate does not model;
// Args is the argument mapping handed to the script as --key=value pairs.
type JobSpec struct {
	Partition     string            `json:"partition"`
	CPUs          int               `json:"cpus"`
	GPUs          int               `json:"gpus"`
	Memory        string            `json:"memory"`
	TimeLimit     string            `json:"timeLimit"`
	WorkingDir    string            `json:"workingDir,omitempty"`
	CondaEnv      string            `json:"condaEnv,omitempty"`
	Executor      string            `json:"executor,omitempty"`
	ExecutorArgs  []string          `json:"executorArgs,omitempty"`
	Script        string            `json:"script"`
	Args          map[string]string `json:"args,omitempty"`
	ArgsSeparator string            `json:"argsSeparator,omitempty"`
	ExtraParams   map[string]string `json:"extraParams,omitempty"`
	MailType      string            `json:"mailType,omitempty"`
	MailUser      string            `json:"mailUser,omitempty"`
	LogDir        string            `json:"logDir,omitempty"`
}

// Defaults applied to zero valued JobSpec fields by WithDefaults.
const (
	DefaultPartition     = "default"
	DefaultCPUs          = 1
	DefaultMemory        = "16G"
	DefaultTimeLimit     = "24:00:00"
	DefaultExecutor      = "python"
	DefaultArgsSeparator = "--"
)

// WithDefaults returns a copy of the spec with unset fields filled in.
// GPUs is left alone, zero GPUs is a valid request.
func (s JobSpec) WithDefaults() JobSpec {
	if s.Partition == "" {
		s.Partition = DefaultPartition
	}
	if s.CPUs == 0 {
		s.CPUs = DefaultCPUs
	}
	if s.Memory == "" {
		s.Memory = DefaultMemory
	}
	if s.TimeLimit == "" {
		s.TimeLimit = DefaultTimeLimit
	}
	if s.Executor == "" {
		s.Executor = DefaultExecutor
	}
	if s.ArgsSeparator == "" {
		s.ArgsSeparator = DefaultArgsSeparator
	}
	return s
}

// SortedArgKeys returns the Args keys in a stable order.
func (s JobSpec) SortedArgKeys() []string {
	keys := make([]string, 0, len(s.Args))
	for k := range s.Args {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (s JobSpec) String() string {
	return fmt.Sprintf("partition:%s, cpus:%d, gpus:%d, mem:%s, time:%s, script:%s",
		s.Partition, s.CPUs, s.GPUs, s.Memory, s.TimeLimit, s.Script)
}

// Directives the submission adapter sets itself; they may not be overridden through ExtraParams.
var managedParams = map[string]bool{
	"job-name":      true,
	"partition":     true,
	"cpus-per-task": true,
	"mem":           true,
	"time":          true,
	"gres":          true,
	"ntasks":        true,
	"output":        true,
	"mail-type":     true,
	"mail-user":     true,
	"comment":       true,
}

var (
	jobIDRe     = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)
	timeLimitRe = regexp.MustCompile(`^(\d+-)?\d+(:\d{1,2}){0,2}$`)
	paramKeyRe  = regexp.MustCompile(`^[a-z][a-z0-9-]*$`)
)

// ValidateJobID checks a caller assigned job id. Ids end up in file names and
// scheduler job names so they are restricted to a shell safe alphabet.
func ValidateJobID(id string) error {
	if !jobIDRe.MatchString(id) {
		return fmt.Errorf("invalid job id %q. Must match %s", id, jobIDRe)
	}
	return nil
}

// ValidateJob checks a job's id and spec.
func ValidateJob(job Job) error {
	if err := ValidateJobID(job.ID); err != nil {
		return err
	}
	return ValidateSpec(job.Spec)
}

// ValidateSpec checks the recognized fields of a spec. Call it on the result of WithDefaults.
func ValidateSpec(spec JobSpec) error {
	if spec.Partition == "" {
		return fmt.Errorf("invalid spec. Partition must not be empty")
	}
	if spec.CPUs < 1 {
		return fmt.Errorf("invalid spec. CPUs must be >= 1, was %d", spec.CPUs)
	}
	if spec.GPUs < 0 {
		return fmt.Errorf("invalid spec. GPUs must be >= 0, was %d", spec.GPUs)
	}
	if _, err := ParseMemoryMB(spec.Memory); err != nil {
		return err
	}
	if !timeLimitRe.MatchString(spec.TimeLimit) {
		return fmt.Errorf("invalid time limit %q. Expected [D-]HH[:MM[:SS]]", spec.TimeLimit)
	}
	if strings.TrimSpace(spec.Script) == "" {
		return fmt.Errorf("invalid spec. Script must not be empty")
	}
	if (spec.MailType == "") != (spec.MailUser == "") {
		return fmt.Errorf("invalid spec. MailType and MailUser must be set together")
	}
	for k := range spec.Args {
		if k == "" || strings.ContainsAny(k, " =\t\n") {
			return fmt.Errorf("invalid argument name %q", k)
		}
	}
	for k := range spec.ExtraParams {
		if !paramKeyRe.MatchString(k) {
			return fmt.Errorf("invalid extra param %q", k)
		}
		if managedParams[k] {
			return fmt.Errorf("extra param %q is managed by jobgate and cannot be overridden", k)
		}
	}
	return nil
}

// ParseMemoryMB converts a memory request such as "512M", "32G" or "1T" to megabytes.
// A bare number is taken to be megabytes.
func ParseMemoryMB(mem string) (int64, error) {
	s := strings.TrimSpace(strings.ToUpper(mem))
	if s == "" {
		return 0, fmt.Errorf("invalid memory %q", mem)
	}
	digits, mult, div := s, int64(1), int64(1)
	if unit := s[len(s)-1]; unit < '0' || unit > '9' {
		digits = s[:len(s)-1]
		switch unit {
		case 'K':
			div = 1024
		case 'M':
		case 'G':
			mult = 1024
		case 'T':
			mult = 1024 * 1024
		default:
			return 0, fmt.Errorf("invalid memory %q. Unknown unit %q", mem, unit)
		}
	}
	n, err := strconv.ParseInt(digits, 10, 64)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid memory %q", mem)
	}
	// kilobytes round up to a whole megabyte
	return (n*mult + div - 1) / div, nil
}

// JobState is the controller's lifecycle state for a job.
type JobState int

const (
	// Waiting for admission.
	Queued JobState = iota

	// Handed to the external scheduler, not yet observed running.
	Submitted

	// Observed running by the external scheduler.
	Running

	// Finished successfully. Terminal.
	Completed

	// Failed with no attempts remaining. Terminal.
	Failed

	// Cancelled by request or by drain. Terminal.
	Cancelled
)

var jobStateNames = [...]string{"QUEUED", "SUBMITTED", "RUNNING", "COMPLETED", "FAILED", "CANCELLED"}

func (s JobState) String() string {
	if s < 0 || int(s) >= len(jobStateNames) {
		return fmt.Sprintf("JobState(%d)", int(s))
	}
	return jobStateNames[s]
}

// MarshalText renders the state name, used by the json status output.
func (s JobState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *JobState) UnmarshalText(text []byte) error {
	for i, name := range jobStateNames {
		if name == string(text) {
			*s = JobState(i)
			return nil
		}
	}
	return fmt.Errorf("unknown job state %q", text)
}

// IsTerminal is true for Completed, Failed and Cancelled.
func (s JobState) IsTerminal() bool {
	return s == Completed || s == Failed || s == Cancelled
}

// IsActive is true for states that occupy an admission slot.
func (s JobState) IsActive() bool {
	return s == Submitted || s == Running
}

// AllJobStates lists states in lifecycle order.
func AllJobStates() []JobState {
	return []JobState{Queued, Submitted, Running, Completed, Failed, Cancelled}
}

// ExternalStatus is a job status as reported by the external scheduler.
type ExternalStatus int

const (
	// The status could not be determined, e.g. a transport error. Never a failure.
	Unknown ExternalStatus = iota
	Pending
	ExternalRunning
	Succeeded
	ExternalFailed
)

func (s ExternalStatus) String() string {
	switch s {
	case Pending:
		return "PENDING"
	case ExternalRunning:
		return "RUNNING"
	case Succeeded:
		return "SUCCEEDED"
	case ExternalFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// JobStatus is an immutable view of a job record handed to reporters.
type JobStatus struct {
	ID           string    `json:"id"`
	Spec         JobSpec   `json:"spec"`
	State        JobState  `json:"state"`
	ExternalID   string    `json:"externalId,omitempty"`
	AttemptCount int       `json:"attemptCount"`
	SubmittedAt  time.Time `json:"submittedAt,omitempty"`
	StartedAt    time.Time `json:"startedAt,omitempty"`
	FinishedAt   time.Time `json:"finishedAt,omitempty"`
	LastError    string    `json:"lastError,omitempty"`
	Runtime      string    `json:"runtime"`
	PollFailures int       `json:"pollFailures,omitempty"` // consecutive polls with an unknown status
}

// ResizeRecord is one applied pool resize.
type ResizeRecord struct {
	Old       int       `json:"old"`
	New       int       `json:"new"`
	AppliedAt time.Time `json:"appliedAt"`
}

// StatusSnapshot is the read only view of the controller handed to reporters.
type StatusSnapshot struct {
	Time            time.Time      `json:"time"`
	PoolSize        int            `json:"poolSize"`
	PendingPoolSize int            `json:"pendingPoolSize,omitempty"`
	Draining        bool           `json:"draining"`
	Final           bool           `json:"final"`
	Jobs            []JobStatus    `json:"jobs"`
	Counts          map[string]int `json:"counts"`
	Resizes         []ResizeRecord `json:"resizes,omitempty"`
}

// JobsInState returns the snapshot's jobs in the given state, in enqueue order.
func (s *StatusSnapshot) JobsInState(state JobState) []JobStatus {
	var out []JobStatus
	for _, j := range s.Jobs {
		if j.State == state {
			out = append(out, j)
		}
	}
	return out
}

// Runtime is the elapsed run time of a job given its timestamps, zero if it never started.
func Runtime(startedAt, finishedAt, now time.Time) time.Duration {
	if startedAt.IsZero() {
		return 0
	}
	end := finishedAt
	if end.IsZero() {
		end = now
	}
	return end.Sub(startedAt)
}

// FormatRuntime renders a runtime as H:MM:SS, or N/A when the job never started.
func FormatRuntime(d time.Duration, started bool) string {
	if !started {
		return "N/A"
	}
	d = d.Round(time.Second)
	h := int(d / time.Hour)
	m := int((d % time.Hour) / time.Minute)
	sec := int((d % time.Minute) / time.Second)
	return fmt.Sprintf("%d:%02d:%02d", h, m, sec)
}
