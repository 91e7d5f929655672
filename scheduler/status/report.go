// Package status renders controller snapshots for operators: a grouped text report,
// a structured log line per finished job, and the /status JSON endpoint.
package status

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/twitter/jobgate/scheduler/domain"
)

const timeFormat = "2006-01-02 15:04:05"

// FormatReport groups the snapshot's jobs as RUNNING (submitted jobs included), QUEUED,
// COMPLETED, then FAILED and CANCELLED, followed by totals.
func FormatReport(s *domain.StatusSnapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "=== Job status (%s) ===\n", s.Time.Format(timeFormat))
	pool := fmt.Sprintf("pool size: %d", s.PoolSize)
	if s.PendingPoolSize > 0 {
		pool += fmt.Sprintf(" (resizing to %d)", s.PendingPoolSize)
	}
	if s.Draining {
		pool += ", draining"
	}
	b.WriteString(pool + "\n")

	active := append(s.JobsInState(domain.Running), s.JobsInState(domain.Submitted)...)
	if len(active) > 0 {
		b.WriteString("\nActive jobs:\n")
		for _, j := range active {
			fmt.Fprintf(&b, "  - %s (external id: %s): %s, runtime %s, %s\n",
				j.ID, j.ExternalID, j.State, j.Runtime, resources(j))
			if j.AttemptCount > 1 {
				fmt.Fprintf(&b, "    attempt %d\n", j.AttemptCount)
			}
			if j.PollFailures > 0 {
				fmt.Fprintf(&b, "    status unknown for %d polls: %s\n", j.PollFailures, j.LastError)
			}
		}
	}

	if queued := s.JobsInState(domain.Queued); len(queued) > 0 {
		b.WriteString("\nQueued jobs:\n")
		for _, j := range queued {
			fmt.Fprintf(&b, "  - %s: %s", j.ID, resources(j))
			if j.AttemptCount > 0 {
				fmt.Fprintf(&b, ", retry %d", j.AttemptCount)
			}
			b.WriteString("\n")
		}
	}

	if done := s.JobsInState(domain.Completed); len(done) > 0 {
		b.WriteString("\nCompleted jobs:\n")
		for _, j := range done {
			fmt.Fprintf(&b, "  - %s: runtime %s, attempts %d\n", j.ID, j.Runtime, j.AttemptCount)
		}
	}

	failed := append(s.JobsInState(domain.Failed), s.JobsInState(domain.Cancelled)...)
	if len(failed) > 0 {
		b.WriteString("\nFailed jobs:\n")
		for _, j := range failed {
			fmt.Fprintf(&b, "  - %s: %s, attempts %d", j.ID, j.State, j.AttemptCount)
			if j.LastError != "" {
				fmt.Fprintf(&b, ", %s", j.LastError)
			}
			b.WriteString("\n")
		}
	}

	b.WriteString("\nTotals: ")
	var totals []string
	for _, st := range domain.AllJobStates() {
		totals = append(totals, fmt.Sprintf("%s %d", strings.ToLower(st.String()), s.Counts[st.String()]))
	}
	b.WriteString(strings.Join(totals, ", "))
	fmt.Fprintf(&b, ", total %d\n", len(s.Jobs))
	return b.String()
}

func resources(j domain.JobStatus) string {
	return fmt.Sprintf("partition %s, cpus %d, gpus %d, mem %s", j.Spec.Partition, j.Spec.CPUs, j.Spec.GPUs, j.Spec.Memory)
}

// WriterReporter writes a FormatReport of every snapshot it is given.
type WriterReporter struct {
	mu  sync.Mutex
	out io.Writer
}

// NewWriterReporter reports to out, stdout if nil.
func NewWriterReporter(out io.Writer) *WriterReporter {
	if out == nil {
		out = os.Stdout
	}
	return &WriterReporter{out: out}
}

func (r *WriterReporter) Emit(s *domain.StatusSnapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, err := io.WriteString(r.out, FormatReport(s)); err != nil {
		log.Errorf("writing status report: %v", err)
	}
}

// Latest keeps the most recent snapshot it was given.
type Latest struct {
	mu   sync.RWMutex
	snap *domain.StatusSnapshot
}

func (l *Latest) Emit(s *domain.StatusSnapshot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.snap = s
}

func (l *Latest) Get() *domain.StatusSnapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.snap
}

// Reporter is the emit half of the controller's reporter interface.
type Reporter interface {
	Emit(*domain.StatusSnapshot)
}

// Tee fans every snapshot out to each reporter in order.
type Tee []Reporter

func (t Tee) Emit(s *domain.StatusSnapshot) {
	for _, r := range t {
		r.Emit(s)
	}
}
