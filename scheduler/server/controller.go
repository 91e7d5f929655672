package server

import (
	"context"
	"fmt"
	"os"
	"path"
	"sort"
	"sync"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/hashicorp/go-multierror"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/twitter/jobgate/async"
	"github.com/twitter/jobgate/common/log/hooks"
	"github.com/twitter/jobgate/common/stats"
	"github.com/twitter/jobgate/scheduler/domain"
)

const (
	// Provide defaults for config settings that should never be uninitialized/zero.

	// Number of jobs allowed in SUBMITTED or RUNNING at once.
	DefaultMaxConcurrentJobs = 4

	// Failed attempts are retried this many times; a job gets at most DefaultMaxRetries+1 attempts.
	DefaultMaxRetries = 3

	// How often the controller step is called in its loop.
	DefaultCheckInterval = 60 * time.Second

	// How often the status report is emitted in verbose mode.
	DefaultPrintInterval = 300 * time.Second

	// Every call to the external scheduler is abandoned after this long.
	DefaultCallTimeout = 30 * time.Second

	// Polls that cannot determine a status are retried this many times within a tick.
	DefaultPollRetries       = 2
	DefaultPollRetryInterval = time.Second

	// The resource snapshot is reused by admission passes for this long.
	DefaultSnapshotCacheTTL = 60 * time.Second

	// Number of staged control events (resize, cancel, drain) waiting for the next tick.
	DefaultInboxSize = 64

	// Number of external calls made in parallel by one tick.
	DefaultMaxParallelCalls = 8

	// Reasons recorded on jobs cancelled by the controller itself.
	DrainCancelReason     = "cancelled by drain before admission"
	ForceCancelReason     = "force cancelled at shutdown"
	DrainTimeoutReason    = "drain timeout"
	UrgentShutdownReason  = "urgent shutdown"
	ContextShutdownReason = "controller context done"
)

// Used to get proper logging from tests...
func init() {
	if loglevel := os.Getenv("JOBGATE_LOGLEVEL"); loglevel != "" {
		level, err := log.ParseLevel(loglevel)
		if err != nil {
			log.Error(err)
			return
		}
		log.SetLevel(level)
		log.AddHook(hooks.NewContextHook())
	} else {
		log.SetLevel(log.ErrorLevel)
	}
}

// ControllerConfiguration variables read at initialization
//
// MaxConcurrentJobs -
//
//	the initial pool size, jobs in SUBMITTED or RUNNING never exceed it.
//
// MaxRetries -
//
//	how many times a failed attempt is retried.
//
// CheckInterval -
//
//	how often step() runs.
//
// PrintInterval -
//
//	how often a status snapshot is handed to the reporter when Verbose is set.
//
// CallTimeout -
//
//	bound on every Submit, Poll and Cancel call. A timeout is a failure of that call.
//
// PollRetries, PollRetryInterval -
//
//	polls that cannot determine a status are retried this many times, this far apart.
//
// DrainTimeout -
//
//	once draining, in flight jobs are force cancelled after this long. Zero waits forever.
//
// SnapshotCacheTTL -
//
//	how long a resource snapshot is reused. Zero queries on every admission pass.
//
// InboxSize -
//
//	capacity of the control event inbox.
//
// MaxParallelCalls -
//
//	how many polls one tick runs at once.
//
// ExitWhenIdle -
//
//	Run returns once every added job is terminal.
//
// DebugMode -
//
//	Run does not start the loop, tests advance it by calling step().
type ControllerConfig struct {
	MaxConcurrentJobs int
	MaxRetries        int
	CheckInterval     time.Duration
	PrintInterval     time.Duration
	CallTimeout       time.Duration
	PollRetries       int
	PollRetryInterval time.Duration
	DrainTimeout      time.Duration
	SnapshotCacheTTL  time.Duration
	InboxSize         int
	MaxParallelCalls  int
	Verbose           bool
	ExitWhenIdle      bool
	DebugMode         bool
}

func (cc *ControllerConfig) String() string {
	return fmt.Sprintf("ControllerConfig: MaxConcurrentJobs: %d, MaxRetries: %d, CheckInterval: %s, PrintInterval: %s, "+
		"CallTimeout: %s, PollRetries: %d, PollRetryInterval: %s, DrainTimeout: %s, SnapshotCacheTTL: %s, "+
		"InboxSize: %d, MaxParallelCalls: %d, Verbose: %t, ExitWhenIdle: %t, DebugMode: %t",
		cc.MaxConcurrentJobs, cc.MaxRetries, cc.CheckInterval, cc.PrintInterval, cc.CallTimeout, cc.PollRetries,
		cc.PollRetryInterval, cc.DrainTimeout, cc.SnapshotCacheTTL, cc.InboxSize, cc.MaxParallelCalls,
		cc.Verbose, cc.ExitWhenIdle, cc.DebugMode)
}

// DefaultControllerConfig returns a configuration with every default filled in.
func DefaultControllerConfig() ControllerConfig {
	return ControllerConfig{
		MaxConcurrentJobs: DefaultMaxConcurrentJobs,
		MaxRetries:        DefaultMaxRetries,
		CheckInterval:     DefaultCheckInterval,
		PrintInterval:     DefaultPrintInterval,
		CallTimeout:       DefaultCallTimeout,
		PollRetries:       DefaultPollRetries,
		PollRetryInterval: DefaultPollRetryInterval,
		SnapshotCacheTTL:  DefaultSnapshotCacheTTL,
		InboxSize:         DefaultInboxSize,
		MaxParallelCalls:  DefaultMaxParallelCalls,
	}
}

type controlKind int

const (
	resizeEvent controlKind = iota
	cancelEvent
	drainEvent
	terminateEvent
)

// A control event staged by an operator and consumed at the top of the next tick.
type controlEvent struct {
	kind     controlKind
	poolSize int
	patterns []string
}

// Controller admits jobs to the external scheduler and tracks them until they are terminal.
//
// step() is only ever called from a single goroutine (the Run loop, or a test),
// so only that goroutine changes job states. The mutex lets Status, AddJob and
// the control requests run concurrently with it. External calls are never made while holding it.
type Controller struct {
	config       ControllerConfig
	transport    Transport
	clusterState *clusterState
	reporter     Reporter
	notifier     Notifier
	persistor    Persistor
	policy       RetryPolicy
	stat         stats.StatsReceiver

	// for tests
	now func() time.Time
	ctx context.Context

	mu              sync.RWMutex
	records         map[string]*jobRecord
	order           []*jobRecord
	nextSeq         int64
	poolSize        int
	pendingPoolSize int
	draining        bool
	drainStarted    time.Time
	terminating     bool
	finished        bool
	resizes         []domain.ResizeRecord

	inbox    chan controlEvent
	wakeCh   chan struct{}
	doneCh   chan struct{}
	doneOnce sync.Once
}

var _ JobController = &Controller{}

// NewController validates the configuration and builds a stopped controller.
// provider, reporter and persistor may be nil. A persisted pool size overrides config.MaxConcurrentJobs.
func NewController(
	config ControllerConfig,
	transport Transport,
	provider ResourceProvider,
	reporter Reporter,
	stat stats.StatsReceiver,
	persistor Persistor) (*Controller, error) {
	if transport == nil {
		return nil, fmt.Errorf("controller needs a transport")
	}
	if config.MaxConcurrentJobs < 1 {
		return nil, fmt.Errorf("max concurrent jobs must be >= 1, got %d", config.MaxConcurrentJobs)
	}
	if config.MaxRetries < 0 {
		return nil, fmt.Errorf("max retries must be >= 0, got %d", config.MaxRetries)
	}
	if config.PollRetries < 0 {
		return nil, fmt.Errorf("poll retries must be >= 0, got %d", config.PollRetries)
	}
	if config.CheckInterval == 0 {
		config.CheckInterval = DefaultCheckInterval
	}
	if config.PrintInterval == 0 {
		config.PrintInterval = DefaultPrintInterval
	}
	if config.CallTimeout == 0 {
		config.CallTimeout = DefaultCallTimeout
	}
	if config.PollRetryInterval == 0 {
		config.PollRetryInterval = DefaultPollRetryInterval
	}
	if config.InboxSize == 0 {
		config.InboxSize = DefaultInboxSize
	}
	if config.MaxParallelCalls == 0 {
		config.MaxParallelCalls = DefaultMaxParallelCalls
	}
	if stat == nil {
		stat = stats.NilStatsReceiver()
	}

	c := &Controller{
		config:       config,
		transport:    transport,
		clusterState: newClusterState(provider, config.SnapshotCacheTTL, config.CallTimeout),
		reporter:     reporter,
		persistor:    persistor,
		policy:       RetryPolicy{MaxRetries: config.MaxRetries},
		stat:         stat,
		now:          time.Now,
		ctx:          context.Background(),
		records:      make(map[string]*jobRecord),
		poolSize:     config.MaxConcurrentJobs,
		inbox:        make(chan controlEvent, config.InboxSize),
		wakeCh:       make(chan struct{}, 1),
		doneCh:       make(chan struct{}),
	}
	c.loadSettings()
	c.stat.Gauge(stats.ControllerPoolSizeGauge).Update(int64(c.poolSize))

	log.Infof("new controller: %s, poolSize: %d", config.String(), c.poolSize)
	return c, nil
}

// SetNotifier installs the hook told about every terminal transition. Call before Run.
func (c *Controller) SetNotifier(n Notifier) {
	c.notifier = n
}

func (c *Controller) String() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return fmt.Sprintf("controller: jobs: %d, poolSize: %d, pendingPoolSize: %d, draining: %t, finished: %t",
		len(c.order), c.poolSize, c.pendingPoolSize, c.draining, c.finished)
}

// AddJob validates a job, fills in spec defaults and queues it.
// Job ids are unique for the lifetime of the controller, terminal jobs included.
func (c *Controller) AddJob(job domain.Job) error {
	job.Spec = job.Spec.WithDefaults()
	if err := domain.ValidateJob(job); err != nil {
		return err
	}

	c.mu.Lock()
	if c.draining || c.finished {
		c.mu.Unlock()
		return fmt.Errorf("cannot add job %s: %w", job.ID, domain.ErrDraining)
	}
	if _, ok := c.records[job.ID]; ok {
		c.mu.Unlock()
		return fmt.Errorf("cannot add job %s: %w", job.ID, domain.ErrDuplicateJob)
	}
	rec := newJobRecord(job, c.nextSeq)
	c.nextSeq++
	c.records[job.ID] = rec
	c.order = append(c.order, rec)
	c.mu.Unlock()

	c.stat.Counter(stats.ControllerJobsAddedCounter).Inc(1)
	log.WithFields(
		log.Fields{
			"jobID":     job.ID,
			"partition": job.Spec.Partition,
			"cpus":      job.Spec.CPUs,
			"gpus":      job.Spec.GPUs,
			"memory":    job.Spec.Memory,
		}).Info("job added")
	c.wake()
	return nil
}

// AddJobs adds every job or none of them. Ids are checked against each other and
// the existing jobs before anything is queued.
func (c *Controller) AddJobs(jobs []domain.Job) error {
	var errs *multierror.Error
	jobs = append([]domain.Job(nil), jobs...)
	seen := make(map[string]bool, len(jobs))
	c.mu.RLock()
	for i := range jobs {
		jobs[i].Spec = jobs[i].Spec.WithDefaults()
		id := jobs[i].ID
		if err := domain.ValidateJob(jobs[i]); err != nil {
			errs = multierror.Append(errs, err)
		} else if _, ok := c.records[id]; ok || seen[id] {
			errs = multierror.Append(errs, fmt.Errorf("job %s: %w", id, domain.ErrDuplicateJob))
		}
		seen[id] = true
	}
	c.mu.RUnlock()
	if err := errs.ErrorOrNil(); err != nil {
		return err
	}
	for _, job := range jobs {
		if err := c.AddJob(job); err != nil {
			// only a concurrent AddJob or Drain can get here
			errs = multierror.Append(errs, err)
		}
	}
	return errs.ErrorOrNil()
}

// Resize stages a new pool size for the next tick. Malformed values change nothing.
func (c *Controller) Resize(poolSize int) error {
	if err := domain.ValidatePoolSize(poolSize); err != nil {
		c.stat.Counter(stats.ControllerBadReconfigCounter).Inc(1)
		log.Error(err)
		return err
	}
	// only Resize stages a size, the event claims an inbox slot and wakes the loop
	c.mu.Lock()
	if err := c.enqueue(controlEvent{kind: resizeEvent, poolSize: poolSize}); err != nil {
		c.mu.Unlock()
		return err
	}
	c.pendingPoolSize = poolSize
	c.mu.Unlock()
	log.Infof("staged pool size %d", poolSize)
	return nil
}

// CancelJobs stages a cancel of every non terminal job whose id matches one of the glob patterns.
func (c *Controller) CancelJobs(patterns ...string) error {
	if len(patterns) == 0 {
		c.stat.Counter(stats.ControllerBadReconfigCounter).Inc(1)
		return &domain.ReconfigurationError{Request: "cancel", Reason: "no job patterns given"}
	}
	for _, p := range patterns {
		if _, err := path.Match(p, ""); err != nil {
			c.stat.Counter(stats.ControllerBadReconfigCounter).Inc(1)
			return &domain.ReconfigurationError{Request: fmt.Sprintf("cancel %q", p), Reason: err.Error()}
		}
	}
	return c.enqueue(controlEvent{kind: cancelEvent, patterns: append([]string(nil), patterns...)})
}

// Drain stops admissions. In flight jobs are polled until terminal or DrainTimeout, then the controller finishes.
func (c *Controller) Drain() {
	c.enqueueAlways(controlEvent{kind: drainEvent})
}

// Terminate force cancels every non terminal job at the next tick and finishes.
func (c *Controller) Terminate() {
	c.enqueueAlways(controlEvent{kind: terminateEvent})
}

func (c *Controller) enqueue(ev controlEvent) error {
	select {
	case c.inbox <- ev:
		c.wake()
		return nil
	default:
		c.stat.Counter(stats.ControllerInboxFullCounter).Inc(1)
		return domain.ErrInboxFull
	}
}

// Shutdown requests are never dropped, a full inbox is fed asynchronously.
func (c *Controller) enqueueAlways(ev controlEvent) {
	select {
	case c.inbox <- ev:
	default:
		go func() {
			c.inbox <- ev
		}()
	}
	c.wake()
}

func (c *Controller) wake() {
	select {
	case c.wakeCh <- struct{}{}:
	default:
	}
}

// GetPoolSize returns the effective pool size and the staged one, 0 if nothing is staged.
func (c *Controller) GetPoolSize() (int, int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.poolSize, c.pendingPoolSize
}

// Status returns a snapshot of every job in enqueue order.
func (c *Controller) Status() *domain.StatusSnapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshotLocked()
}

func (c *Controller) snapshotLocked() *domain.StatusSnapshot {
	now := c.now()
	s := &domain.StatusSnapshot{
		Time:            now,
		PoolSize:        c.poolSize,
		PendingPoolSize: c.pendingPoolSize,
		Draining:        c.draining,
		Final:           c.finished,
		Jobs:            make([]domain.JobStatus, 0, len(c.order)),
		Counts:          make(map[string]int),
		Resizes:         append([]domain.ResizeRecord(nil), c.resizes...),
	}
	for _, st := range domain.AllJobStates() {
		s.Counts[st.String()] = 0
	}
	for _, r := range c.order {
		s.Jobs = append(s.Jobs, r.status(now))
		s.Counts[r.state.String()]++
	}
	return s
}

// Done is closed once the controller finished: drained, terminated or idle with ExitWhenIdle.
func (c *Controller) Done() <-chan struct{} {
	return c.doneCh
}

func (c *Controller) isFinished() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.finished
}

// Run the controller loop until it finishes or ctx is done.
// Returns nil when the controller finished on its own, ctx.Err() otherwise; in flight jobs are
// force cancelled before returning in that case.
func (c *Controller) Run(ctx context.Context) error {
	c.ctx = ctx
	go stats.StartUptimeReporting(c.stat, stats.ControllerUptime_ms, c.config.CheckInterval, c.doneCh)
	if c.config.Verbose && c.reporter != nil {
		go c.printLoop(ctx)
	}
	if c.config.DebugMode {
		select {
		case <-c.doneCh:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return c.loop(ctx)
}

// we are not putting any logic other than looping in this method so unit tests can verify
// behavior by controlling calls to step() below
func (c *Controller) loop(ctx context.Context) error {
	ticker := time.NewTicker(c.config.CheckInterval)
	defer ticker.Stop()
	for {
		c.step()
		if c.isFinished() {
			return nil
		}

		// Wait until the check interval has elapsed or a control request arrived.
		select {
		case <-ctx.Done():
			c.ctx = context.Background()
			c.shutdown(ContextShutdownReason)
			return ctx.Err()
		case <-c.wakeCh:
		case <-ticker.C:
		}
	}
}

func (c *Controller) printLoop(ctx context.Context) {
	ticker := time.NewTicker(c.config.PrintInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.doneCh:
			return
		case <-ticker.C:
			c.reporter.Emit(c.Status())
		}
	}
}

// run one loop iteration
func (c *Controller) step() {
	if c.isFinished() {
		return
	}
	defer c.stat.Latency(stats.ControllerStepLatency_ms).Time().Stop()

	// control events staged since the last tick
	c.processInbox()
	c.applyPendingResize()

	c.mu.RLock()
	terminating, draining, drainStarted := c.terminating, c.draining, c.drainStarted
	c.mu.RUnlock()

	if terminating {
		c.shutdown(UrgentShutdownReason)
		return
	}
	if draining && c.config.DrainTimeout > 0 && c.now().Sub(drainStarted) >= c.config.DrainTimeout {
		log.Warnf("drain did not complete within %s, force cancelling", c.config.DrainTimeout)
		c.shutdown(DrainTimeoutReason)
		return
	}

	c.reconcile()

	if draining {
		// retried jobs put back in the queue are not resubmitted while draining
		c.cancelRecords(c.selectRecords(func(r *jobRecord) bool { return r.state == domain.Queued }), DrainCancelReason)
		if c.allTerminal() {
			log.Info("drain complete")
			c.finish()
			return
		}
	} else {
		c.admit()
	}

	c.updateStats()

	if c.config.ExitWhenIdle && c.allTerminal() {
		log.Info("all jobs are terminal, controller is idle")
		c.finish()
	}
}

// processInbox consumes every staged control event. The last staged resize wins.
func (c *Controller) processInbox() {
	var patterns []string
	startDrain, terminate := false, false
	for haveEvent := true; haveEvent; {
		select {
		case ev := <-c.inbox:
			switch ev.kind {
			case resizeEvent:
				// already staged by Resize, applyPendingResize picks it up
			case cancelEvent:
				patterns = append(patterns, ev.patterns...)
			case drainEvent:
				startDrain = true
			case terminateEvent:
				startDrain, terminate = true, true
			}
		default:
			haveEvent = false
		}
	}

	if len(patterns) > 0 {
		c.cancelMatching(patterns)
	}
	if startDrain {
		c.startDrain(terminate)
	}
}

func (c *Controller) cancelMatching(patterns []string) {
	matched := c.selectRecords(func(r *jobRecord) bool {
		for _, p := range patterns {
			if ok, _ := path.Match(p, r.id); ok {
				return true
			}
		}
		return false
	})
	if len(matched) == 0 {
		log.WithFields(log.Fields{"patterns": patterns}).Warn("cancel matched no active jobs")
		return
	}
	log.WithFields(
		log.Fields{
			"patterns": patterns,
			"numJobs":  len(matched),
		}).Info("cancelling jobs by request")
	if err := c.cancelRecords(matched, ""); err != nil {
		log.WithFields(log.Fields{"err": err}).Warn("some cancels were not acknowledged")
	}
}

func (c *Controller) startDrain(terminate bool) {
	c.mu.Lock()
	alreadyDraining := c.draining
	if !c.draining {
		c.draining = true
		c.drainStarted = c.now()
	}
	if terminate {
		c.terminating = true
	}
	c.mu.Unlock()
	c.stat.Gauge(stats.ControllerDrainingGauge).Update(1)

	if alreadyDraining {
		if terminate {
			log.Warn("urgent shutdown requested while draining")
		}
		return
	}
	log.WithFields(
		log.Fields{
			"terminate":    terminate,
			"drainTimeout": c.config.DrainTimeout,
		}).Info("draining, no more jobs will be admitted")
	c.cancelRecords(c.selectRecords(func(r *jobRecord) bool { return r.state == domain.Queued }), DrainCancelReason)
}

// applyPendingResize makes the staged pool size effective. Running jobs are never preempted by a decrease.
func (c *Controller) applyPendingResize() {
	c.mu.Lock()
	if c.pendingPoolSize == 0 {
		c.mu.Unlock()
		return
	}
	rec := domain.ResizeRecord{Old: c.poolSize, New: c.pendingPoolSize, AppliedAt: c.now()}
	c.poolSize = c.pendingPoolSize
	c.pendingPoolSize = 0
	c.resizes = append(c.resizes, rec)
	active := c.countLocked(domain.JobState.IsActive)
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.stat.Counter(stats.ControllerResizeCounter).Inc(1)
	c.stat.Gauge(stats.ControllerPoolSizeGauge).Update(int64(rec.New))
	log.WithFields(
		log.Fields{
			"oldPoolSize": rec.Old,
			"newPoolSize": rec.New,
			"active":      active,
		}).Info("pool size changed")
	if err := c.persistSettings(); err != nil {
		log.Error(err)
	}
	if c.reporter != nil {
		c.reporter.Emit(snap)
	}
}

type pollResult struct {
	id         string
	externalID string
	status     domain.ExternalStatus
	err        error
}

// reconcile polls every SUBMITTED or RUNNING job and applies the reported statuses.
func (c *Controller) reconcile() {
	defer c.stat.Latency(stats.ControllerPollLatency_ms).Time().Stop()

	c.mu.RLock()
	var results []*pollResult
	for _, r := range c.order {
		if r.state.IsActive() {
			results = append(results, &pollResult{id: r.id, externalID: r.externalID})
		}
	}
	c.mu.RUnlock()
	if len(results) == 0 {
		return
	}

	var g errgroup.Group
	g.SetLimit(c.config.MaxParallelCalls)
	for _, res := range results {
		res := res
		g.Go(func() error {
			res.status, res.err = c.poll(res.externalID)
			return nil
		})
	}
	_ = g.Wait()

	var finished []domain.JobStatus
	c.mu.Lock()
	now := c.now()
	for _, res := range results {
		r, ok := c.records[res.id]
		if !ok || !r.state.IsActive() || r.externalID != res.externalID {
			continue
		}
		fields := log.Fields{"jobID": r.id, "externalID": r.externalID, "attempt": r.attemptCount}
		var err error
		switch {
		case res.err != nil:
			r.markPollFailed(res.err)
			c.stat.Counter(stats.ControllerPollErrCounter).Inc(1)
			fields["err"] = res.err
			fields["pollFailures"] = r.pollFailures
			log.WithFields(fields).Warn("job status unknown, state unchanged")
		case res.status == domain.ExternalRunning:
			r.pollFailures = 0
			if r.state == domain.Submitted {
				err = r.markRunning(now)
				log.WithFields(fields).Info("job running")
			}
		case res.status == domain.Succeeded:
			if err = r.markCompleted(now); err == nil {
				c.stat.Counter(stats.ControllerCompletedCounter).Inc(1)
				log.WithFields(fields).Info("job completed")
				finished = append(finished, r.status(now))
			}
		case res.status == domain.ExternalFailed:
			var retried bool
			retried, err = r.markFailed(&domain.JobExecutionFailure{ExternalID: r.externalID, Attempt: r.attemptCount}, c.policy, now)
			if err == nil {
				if retried {
					c.stat.Counter(stats.ControllerRetryCounter).Inc(1)
					log.WithFields(fields).Info("job failed, requeued")
				} else {
					c.stat.Counter(stats.ControllerFailedCounter).Inc(1)
					log.WithFields(fields).Error("job failed, no attempts left")
					finished = append(finished, r.status(now))
				}
			}
		default:
			r.pollFailures = 0
		}
		if err != nil {
			fields["err"] = err
			log.WithFields(fields).Error("unexpected job status")
		}
	}
	c.mu.Unlock()
	c.notify(finished)
}

// poll asks for a job's status, retrying with a constant backoff while it cannot be determined.
func (c *Controller) poll(externalID string) (domain.ExternalStatus, error) {
	status := domain.Unknown
	attempts := 0
	var retries backoff.BackOff = &backoff.StopBackOff{}
	if c.config.PollRetries > 0 {
		retries = backoff.WithMaxRetries(backoff.NewConstantBackOff(c.config.PollRetryInterval), uint64(c.config.PollRetries))
	}
	b := backoff.WithContext(retries, c.ctx)
	err := backoff.Retry(func() error {
		attempts++
		s, err := c.pollOnce(externalID)
		if err != nil {
			return err
		}
		if s == domain.Unknown {
			return fmt.Errorf("external scheduler reported no status for %s", externalID)
		}
		status = s
		return nil
	}, b)
	if err != nil {
		return domain.Unknown, &domain.PollTransientError{ExternalID: externalID, Attempts: attempts, Cause: err}
	}
	return status, nil
}

func (c *Controller) pollOnce(externalID string) (domain.ExternalStatus, error) {
	ctx, cancel := context.WithTimeout(c.ctx, c.config.CallTimeout)
	defer cancel()
	type result struct {
		status domain.ExternalStatus
		err    error
	}
	ch := make(chan result, 1)
	go func() {
		s, err := c.transport.Poll(ctx, externalID)
		ch <- result{s, err}
	}()
	select {
	case r := <-ch:
		return r.status, r.err
	case <-ctx.Done():
		return domain.Unknown, fmt.Errorf("poll %s: %w", externalID, domain.ErrCallTimeout)
	}
}

type candidate struct {
	job     domain.Job
	attempt int
	seq     int64
}

// admit submits QUEUED jobs while there is room in the pool: retried jobs first,
// then in enqueue order. Jobs that do not fit the cluster stay QUEUED and are skipped.
func (c *Controller) admit() {
	defer c.stat.Latency(stats.ControllerAdmitLatency_ms).Time().Stop()

	c.mu.RLock()
	room := c.poolSize - c.countLocked(domain.JobState.IsActive)
	var candidates []candidate
	for _, r := range c.order {
		if r.state == domain.Queued {
			candidates = append(candidates, candidate{job: domain.Job{ID: r.id, Spec: r.spec}, attempt: r.attemptCount, seq: r.seq})
		}
	}
	c.mu.RUnlock()
	if room <= 0 || len(candidates) == 0 {
		return
	}
	sortCandidates(candidates)

	snap, err := c.clusterState.snapshot(c.ctx)
	if err != nil {
		log.WithFields(log.Fields{"err": err}).Warn("no resource snapshot, skipping admission")
		return
	}

	for _, cand := range candidates {
		if room <= 0 {
			break
		}
		fields := log.Fields{"jobID": cand.job.ID, "attempt": cand.attempt + 1}
		if snap != nil {
			if ok, reason := snap.Feasible(cand.job.Spec); !ok {
				c.stat.Counter(stats.ControllerInfeasibleCounter).Inc(1)
				fields["reason"] = reason
				log.WithFields(fields).Debug("job does not fit the cluster, leaving it queued")
				continue
			}
		}

		externalID, err := c.submit(cand.job, cand.attempt+1)

		var finished []domain.JobStatus
		c.mu.Lock()
		r := c.records[cand.job.ID]
		now := c.now()
		if err != nil {
			if _, ok := err.(*domain.SubmitError); !ok {
				err = &domain.SubmitError{JobID: cand.job.ID, Cause: err}
			}
			c.stat.Counter(stats.ControllerSubmitErrCounter).Inc(1)
			fields["err"] = err
			if r.markSubmitFailed(err, c.policy, now) {
				c.stat.Counter(stats.ControllerRetryCounter).Inc(1)
				log.WithFields(fields).Warn("submit failed, job stays queued")
			} else {
				c.stat.Counter(stats.ControllerFailedCounter).Inc(1)
				log.WithFields(fields).Error("submit failed, no attempts left")
				finished = append(finished, r.status(now))
			}
		} else if err = r.markSubmitted(externalID, now); err != nil {
			fields["err"] = err
			log.WithFields(fields).Error("unexpected job state after submit")
		} else {
			room--
			snap = c.clusterState.reserve(snap, cand.job.Spec)
			c.stat.Counter(stats.ControllerSubmitCounter).Inc(1)
			fields["externalID"] = externalID
			log.WithFields(fields).Info("job submitted")
		}
		c.mu.Unlock()
		c.notify(finished)
	}
}

// Retried jobs first, FIFO by enqueue order within each group.
func sortCandidates(candidates []candidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		ri, rj := candidates[i].attempt > 0, candidates[j].attempt > 0
		if ri != rj {
			return ri
		}
		return candidates[i].seq < candidates[j].seq
	})
}

// submit hands one attempt to the transport. A submission that succeeds after its
// timeout already counted as a failure is cancelled so it does not run unaccounted for.
func (c *Controller) submit(job domain.Job, attempt int) (string, error) {
	ctx, cancel := context.WithTimeout(c.ctx, c.config.CallTimeout)
	defer cancel()
	type result struct {
		externalID string
		err        error
	}
	ch := make(chan result, 1)
	go func() {
		id, err := c.transport.Submit(ctx, job, attempt)
		ch <- result{id, err}
	}()
	select {
	case r := <-ch:
		return r.externalID, r.err
	case <-ctx.Done():
		go func() {
			r := <-ch
			if r.err != nil || r.externalID == "" {
				return
			}
			log.WithFields(
				log.Fields{
					"jobID":      job.ID,
					"externalID": r.externalID,
				}).Warn("cancelling submission that completed after its timeout")
			cctx, ccancel := context.WithTimeout(context.Background(), c.config.CallTimeout)
			defer ccancel()
			if err := c.transport.Cancel(cctx, r.externalID); err != nil {
				c.stat.Counter(stats.ControllerCancelErrCounter).Inc(1)
			}
		}()
		return "", fmt.Errorf("submit of job %s: %w", job.ID, domain.ErrCallTimeout)
	}
}

// selectRecords returns the ids of non terminal jobs matching pred, in enqueue order.
func (c *Controller) selectRecords(pred func(*jobRecord) bool) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var ids []string
	for _, r := range c.order {
		if !r.state.IsTerminal() && pred(r) {
			ids = append(ids, r.id)
		}
	}
	return ids
}

// cancelRecords moves the jobs to CANCELLED and forwards the cancel of submitted
// ones to the transport. Unacknowledged cancels are returned together.
func (c *Controller) cancelRecords(ids []string, reason string) error {
	if len(ids) == 0 {
		return nil
	}
	var finished []domain.JobStatus
	var externalIDs []string
	c.mu.Lock()
	now := c.now()
	for _, id := range ids {
		r, ok := c.records[id]
		if !ok {
			continue
		}
		externalID, err := r.markCancelled(reason, now)
		if err != nil {
			log.WithFields(log.Fields{"jobID": id, "err": err}).Debug("not cancelling")
			continue
		}
		c.stat.Counter(stats.ControllerCancelledCounter).Inc(1)
		log.WithFields(
			log.Fields{
				"jobID":      id,
				"externalID": externalID,
				"reason":     reason,
			}).Info("job cancelled")
		finished = append(finished, r.status(now))
		if externalID != "" {
			externalIDs = append(externalIDs, externalID)
		}
	}
	c.mu.Unlock()
	c.notify(finished)

	return c.forwardCancels(externalIDs)
}

// forwardCancels cancels the jobs on the external scheduler in parallel, best effort.
func (c *Controller) forwardCancels(externalIDs []string) error {
	if len(externalIDs) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(c.ctx, c.config.CallTimeout)
	defer cancel()

	var errs *multierror.Error
	runner := async.NewRunner()
	for _, id := range externalIDs {
		id := id
		runner.RunAsync(func() error {
			return c.transport.Cancel(ctx, id)
		}, func(err error) {
			if err != nil {
				c.stat.Counter(stats.ControllerCancelErrCounter).Inc(1)
				errs = multierror.Append(errs, fmt.Errorf("cancel %s: %v", id, err))
			}
		})
	}
	if err := runner.Wait(ctx); err != nil {
		errs = multierror.Append(errs, fmt.Errorf("%d cancels unacknowledged: %w", runner.NumRunning(), domain.ErrCallTimeout))
	}
	return errs.ErrorOrNil()
}

// shutdown force cancels every non terminal job and finishes.
func (c *Controller) shutdown(reason string) {
	ids := c.selectRecords(func(*jobRecord) bool { return true })
	log.WithFields(
		log.Fields{
			"reason":  reason,
			"numJobs": len(ids),
		}).Warn("force cancelling remaining jobs")
	if err := c.cancelRecords(ids, fmt.Sprintf("%s: %s", ForceCancelReason, reason)); err != nil {
		log.WithFields(log.Fields{"err": err}).Error("force cancel was not acknowledged for every job")
	}
	c.finish()
}

// finish marks the controller finished, closes Done and emits the final snapshot.
func (c *Controller) finish() {
	c.mu.Lock()
	if c.finished {
		c.mu.Unlock()
		return
	}
	c.finished = true
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.updateStats()
	if c.reporter != nil {
		c.reporter.Emit(snap)
	}
	c.doneOnce.Do(func() { close(c.doneCh) })
	log.WithFields(
		log.Fields{
			"completed": snap.Counts[domain.Completed.String()],
			"failed":    snap.Counts[domain.Failed.String()],
			"cancelled": snap.Counts[domain.Cancelled.String()],
		}).Info("controller finished")
}

func (c *Controller) notify(finished []domain.JobStatus) {
	if c.notifier == nil {
		return
	}
	for _, s := range finished {
		c.notifier.JobFinished(s)
	}
}

func (c *Controller) allTerminal() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.countLocked(domain.JobState.IsTerminal) == len(c.order)
}

func (c *Controller) countLocked(pred func(domain.JobState) bool) int {
	n := 0
	for _, r := range c.order {
		if pred(r.state) {
			n++
		}
	}
	return n
}

// update the stats monitoring values
func (c *Controller) updateStats() {
	c.mu.RLock()
	queued := c.countLocked(func(s domain.JobState) bool { return s == domain.Queued })
	active := c.countLocked(domain.JobState.IsActive)
	terminal := c.countLocked(domain.JobState.IsTerminal)
	poolSize := c.poolSize
	c.mu.RUnlock()

	c.stat.Gauge(stats.ControllerQueuedJobsGauge).Update(int64(queued))
	c.stat.Gauge(stats.ControllerActiveJobsGauge).Update(int64(active))
	c.stat.Gauge(stats.ControllerTerminalJobsGauge).Update(int64(terminal))
	c.stat.Gauge(stats.ControllerPoolSizeGauge).Update(int64(poolSize))
}
