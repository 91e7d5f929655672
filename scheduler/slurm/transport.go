package slurm

import (
	"context"
	"regexp"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/twitter/jobgate/common"
	"github.com/twitter/jobgate/common/os/exec"
	"github.com/twitter/jobgate/common/stats"
	"github.com/twitter/jobgate/scheduler/domain"
)

// Array jobs come back from sbatch as <id>_<task>.
var externalIDRe = regexp.MustCompile(`^\d+(_\d+)?$`)

// Transport runs jobs through sbatch, squeue, sacct and scancel.
type Transport struct {
	cmd *commander
}

// NewTransport returns a Transport using ex to run the Slurm tools, the real ones if ex is nil.
func NewTransport(config Config, ex exec.OsExec, stat stats.StatsReceiver) *Transport {
	return &Transport{cmd: newCommander(config, ex, stat)}
}

// Submit pipes the job's batch script into `sbatch --parsable` and returns the Slurm job id.
func (t *Transport) Submit(ctx context.Context, job domain.Job, attempt int) (string, error) {
	submissionID := common.GenUUID()
	script := BuildScript(job, attempt, submissionID)
	rr, err := t.cmd.run(ctx, script, t.cmd.config.SbatchPath, "--parsable")
	if err != nil {
		return "", &domain.SubmitError{JobID: job.ID, Cause: err}
	}

	// --parsable prints "<id>" or "<id>;<cluster>"
	out := strings.TrimSpace(string(rr.Stdout))
	id := strings.TrimSpace(strings.SplitN(out, ";", 2)[0])
	if !externalIDRe.MatchString(id) {
		return "", &domain.SubmitError{JobID: job.ID, Cause: errors.Errorf("unexpected sbatch output %q", out)}
	}
	log.WithFields(
		log.Fields{
			"jobID":        job.ID,
			"attempt":      attempt,
			"externalID":   id,
			"submissionID": submissionID,
		}).Info("submitted to slurm")
	return id, nil
}

// Poll asks squeue for the job's state. Jobs squeue no longer knows about are looked up in sacct.
func (t *Transport) Poll(ctx context.Context, externalID string) (domain.ExternalStatus, error) {
	rr, err := t.cmd.run(ctx, "", t.cmd.config.SqueuePath, "-h", "-j", externalID, "-o", "%T")
	if err != nil && !strings.Contains(strings.ToLower(rr.StderrLine()), "invalid job id") {
		return domain.Unknown, err
	}
	if state := firstField(string(rr.Stdout)); err == nil && state != "" {
		return mapState(state)
	}

	rr, err = t.cmd.run(ctx, "", t.cmd.config.SacctPath, "-j", externalID, "-o", "State", "-n", "-X", "-P")
	if err != nil {
		return domain.Unknown, err
	}
	state := firstField(string(rr.Stdout))
	if state == "" {
		return domain.Unknown, errors.Errorf("no accounting record for %s", externalID)
	}
	return mapState(state)
}

// Cancel runs scancel. A job that already left the queue counts as cancelled.
func (t *Transport) Cancel(ctx context.Context, externalID string) error {
	rr, err := t.cmd.run(ctx, "", t.cmd.config.ScancelPath, externalID)
	if err != nil {
		line := strings.ToLower(rr.StderrLine())
		if strings.Contains(line, "already completing or completed") || strings.Contains(line, "invalid job id") {
			return nil
		}
		return errors.Wrapf(err, "cancel %s", externalID)
	}
	return nil
}

// firstField returns the first word of the first non empty line.
func firstField(out string) string {
	for _, line := range strings.Split(out, "\n") {
		if f := strings.Fields(line); len(f) > 0 {
			return f[0]
		}
	}
	return ""
}

// mapState translates a Slurm job state. sacct prints "CANCELLED by <uid>", only the first word is passed here.
func mapState(state string) (domain.ExternalStatus, error) {
	switch strings.TrimRight(strings.ToUpper(state), "+") {
	case "PENDING", "CONFIGURING", "REQUEUED", "REQUEUE_HOLD", "REQUEUE_FED", "RESV_DEL_HOLD",
		"SUSPENDED", "STOPPED", "RESIZING", "SIGNALING", "STAGE_OUT", "SPECIAL_EXIT":
		return domain.Pending, nil
	case "RUNNING", "COMPLETING":
		return domain.ExternalRunning, nil
	case "COMPLETED":
		return domain.Succeeded, nil
	case "FAILED", "TIMEOUT", "OUT_OF_MEMORY", "NODE_FAIL", "BOOT_FAIL", "DEADLINE",
		"CANCELLED", "PREEMPTED", "REVOKED":
		return domain.ExternalFailed, nil
	default:
		return domain.Unknown, errors.Errorf("unrecognized slurm state %q", state)
	}
}
