package status

import (
	log "github.com/sirupsen/logrus"

	"github.com/twitter/jobgate/scheduler/domain"
)

// LogNotifier writes one structured entry per job that reaches a terminal state.
type LogNotifier struct{}

func (LogNotifier) JobFinished(s domain.JobStatus) {
	fields := log.Fields{
		"jobID":      s.ID,
		"state":      s.State,
		"externalID": s.ExternalID,
		"attempts":   s.AttemptCount,
		"runtime":    s.Runtime,
	}
	if s.LastError != "" {
		fields["err"] = s.LastError
	}
	entry := log.WithFields(fields)
	if s.State == domain.Completed {
		entry.Info("job finished")
	} else {
		entry.Warn("job finished")
	}
}
