package status

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/twitter/jobgate/common/stats"
	"github.com/twitter/jobgate/scheduler/domain"
)

func snapshot() *domain.StatusSnapshot {
	spec := domain.JobSpec{Partition: "gpu", GPUs: 1, Script: "r.py"}.WithDefaults()
	return &domain.StatusSnapshot{
		Time:            time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		PoolSize:        2,
		PendingPoolSize: 3,
		Jobs: []domain.JobStatus{
			{ID: "a", Spec: spec, State: domain.Running, ExternalID: "101", AttemptCount: 2, Runtime: "0:05:00"},
			{ID: "b", Spec: spec, State: domain.Queued, AttemptCount: 1, Runtime: "N/A"},
			{ID: "c", Spec: spec, State: domain.Completed, AttemptCount: 1, Runtime: "1:00:00"},
			{ID: "d", Spec: spec, State: domain.Failed, AttemptCount: 4, LastError: "job 104 failed on attempt 4"},
			{ID: "e", Spec: spec, State: domain.Submitted, ExternalID: "105", AttemptCount: 1, Runtime: "N/A",
				PollFailures: 2, LastError: "squeue timed out"},
		},
		Counts: map[string]int{"QUEUED": 1, "SUBMITTED": 1, "RUNNING": 1, "COMPLETED": 1, "FAILED": 1, "CANCELLED": 0},
	}
}

func TestFormatReport(t *testing.T) {
	out := FormatReport(snapshot())

	assert.Contains(t, out, "=== Job status (2024-05-01 12:00:00) ===")
	assert.Contains(t, out, "pool size: 2 (resizing to 3)")
	assert.Contains(t, out, "  - a (external id: 101): RUNNING, runtime 0:05:00, partition gpu, cpus 1, gpus 1, mem 16G\n    attempt 2\n")
	assert.Contains(t, out, "  - e (external id: 105): SUBMITTED")
	assert.Contains(t, out, "    status unknown for 2 polls: squeue timed out\n")
	assert.NotContains(t, out, "status unknown for 0")
	assert.Contains(t, out, "  - b: partition gpu, cpus 1, gpus 1, mem 16G, retry 1\n")
	assert.Contains(t, out, "  - c: runtime 1:00:00, attempts 1\n")
	assert.Contains(t, out, "  - d: FAILED, attempts 4, job 104 failed on attempt 4\n")
	assert.Contains(t, out, "Totals: queued 1, submitted 1, running 1, completed 1, failed 1, cancelled 0, total 5\n")

	// groups are printed active, queued, completed, failed
	assert.True(t, bytes.Index([]byte(out), []byte("Active")) < bytes.Index([]byte(out), []byte("Queued")))
	assert.True(t, bytes.Index([]byte(out), []byte("Completed jobs")) < bytes.Index([]byte(out), []byte("Failed jobs")))
}

func TestReporters(t *testing.T) {
	var buf bytes.Buffer
	latest := &Latest{}
	assert.Nil(t, latest.Get())

	Tee{NewWriterReporter(&buf), latest}.Emit(snapshot())
	assert.Contains(t, buf.String(), "Totals:")
	assert.Equal(t, 2, latest.Get().PoolSize)
}

func TestHandler(t *testing.T) {
	stat := stats.DefaultStatsReceiver()
	var snap *domain.StatusSnapshot
	h := Handler(func() *domain.StatusSnapshot { return snap }, stat)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/status", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	snap = snapshot()
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/status", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var got domain.StatusSnapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Len(t, got.Jobs, 5)
	assert.Equal(t, domain.Running, got.Jobs[0].State)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/status?state=QUEUED", nil))
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got.Jobs, 1)
	assert.Equal(t, "b", got.Jobs[0].ID)
	assert.Len(t, snap.Jobs, 5)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("POST", "/status", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	assert.EqualValues(t, 4, stat.Counter(stats.StatusRequestCounter).Count())
}

func TestLogNotifier(t *testing.T) {
	hook := test.NewGlobal()
	defer hook.Reset()
	level := log.GetLevel()
	log.SetLevel(log.InfoLevel)
	defer log.SetLevel(level)

	LogNotifier{}.JobFinished(domain.JobStatus{ID: "a", State: domain.Completed})
	LogNotifier{}.JobFinished(domain.JobStatus{ID: "b", State: domain.Failed, LastError: "boom"})

	entries := hook.AllEntries()
	require.Len(t, entries, 2)
	assert.Equal(t, log.InfoLevel, entries[0].Level)
	assert.Equal(t, "a", entries[0].Data["jobID"])
	assert.Equal(t, log.WarnLevel, entries[1].Level)
	assert.Equal(t, "boom", entries[1].Data["err"])
}
