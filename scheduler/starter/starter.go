// Package starter assembles and runs a jobgate daemon: configuration, job file, backend,
// controller, signal listener and http endpoints.
package starter

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/twitter/jobgate/common/endpoints"
	"github.com/twitter/jobgate/common/errors"
	"github.com/twitter/jobgate/common/stats"
	"github.com/twitter/jobgate/scheduler/config"
	"github.com/twitter/jobgate/scheduler/control"
	"github.com/twitter/jobgate/scheduler/domain"
	"github.com/twitter/jobgate/scheduler/jobfile"
	"github.com/twitter/jobgate/scheduler/server"
	"github.com/twitter/jobgate/scheduler/status"
)

// Options are the daemon's command line settings. Zero values (and -1 for MaxRetries and
// DrainTimeout) leave the configuration's value alone.
type Options struct {
	Config        string
	JobsFile      string
	PoolSize      int
	MaxRetries    int
	CheckInterval time.Duration
	PrintInterval time.Duration
	DrainTimeout  time.Duration
	HTTPAddr      string
	ExtraParams   map[string]string // added to every job that does not set the key itself
	Files         control.Files
	ExitWhenIdle  bool
}

// Daemon is an assembled, not yet running, jobgate daemon.
type Daemon struct {
	Controller *server.Controller
	Config     config.ServiceConfig

	files     control.Files
	removePID func()
	http      *endpoints.TwitterServer
}

// Build loads configuration and jobs, claims the PID file and creates the controller.
// Every error is a fatal startup error.
func Build(opts Options, stat stats.StatsReceiver) (*Daemon, error) {
	fatal := func(err error) error { return errors.NewError(err, errors.FatalStartupExitCode) }

	cfg, err := config.Load(opts.Config)
	if err != nil {
		return nil, fatal(err)
	}
	applyOverrides(&cfg, opts)
	log.Infof("jobgate configuration: %s", cfg)

	var jobs []domain.Job
	if opts.JobsFile != "" {
		if jobs, err = jobfile.Load(opts.JobsFile); err != nil {
			return nil, fatal(err)
		}
	}
	if err := addExtraParams(jobs, opts.ExtraParams); err != nil {
		return nil, fatal(err)
	}

	transport, provider, err := cfg.Backend.CreateBackend(stat)
	if err != nil {
		return nil, fatal(err)
	}
	var persistor server.Persistor
	if cfg.SettingsFile != "" {
		persistor = server.NewFilePersistor(cfg.SettingsFile)
	}
	cc := cfg.Controller.CreateControllerConfig()
	cc.ExitWhenIdle = opts.ExitWhenIdle
	reporter := status.NewWriterReporter(log.StandardLogger().Out)
	ctrl, err := server.NewController(cc, transport, provider, reporter, stat, persistor)
	if err != nil {
		return nil, fatal(err)
	}
	ctrl.SetNotifier(status.LogNotifier{})
	if err := ctrl.AddJobs(jobs); err != nil {
		return nil, fatal(err)
	}
	if opts.PoolSize > 0 {
		if err := ctrl.Resize(opts.PoolSize); err != nil {
			return nil, fatal(err)
		}
	}

	removePID, err := control.WritePIDFile(opts.Files.PIDFile)
	if err != nil {
		return nil, fatal(err)
	}

	handlers := map[string]http.Handler{"/status": status.Handler(ctrl.Status, stat)}
	return &Daemon{
		Controller: ctrl,
		Config:     cfg,
		files:      opts.Files,
		removePID:  removePID,
		http:       endpoints.NewTwitterServer(endpoints.Addr(cfg.HTTPAddr), stat, handlers),
	}, nil
}

func addExtraParams(jobs []domain.Job, params map[string]string) error {
	if len(params) == 0 {
		return nil
	}
	for i := range jobs {
		merged := make(map[string]string, len(params)+len(jobs[i].Spec.ExtraParams))
		for k, v := range params {
			merged[k] = v
		}
		for k, v := range jobs[i].Spec.ExtraParams {
			merged[k] = v
		}
		jobs[i].Spec.ExtraParams = merged
		if err := domain.ValidateJob(jobs[i]); err != nil {
			return fmt.Errorf("job %s with extra params: %v", jobs[i].ID, err)
		}
	}
	return nil
}

func applyOverrides(cfg *config.ServiceConfig, opts Options) {
	if opts.MaxRetries >= 0 {
		cfg.Controller.MaxRetries = opts.MaxRetries
	}
	if opts.CheckInterval > 0 {
		cfg.Controller.CheckInterval = opts.CheckInterval
	}
	if opts.PrintInterval > 0 {
		cfg.Controller.PrintInterval = opts.PrintInterval
		cfg.Controller.Verbose = true
	}
	if opts.DrainTimeout >= 0 {
		cfg.Controller.DrainTimeout = opts.DrainTimeout
	}
	if opts.HTTPAddr != "" {
		cfg.HTTPAddr = opts.HTTPAddr
	}
}

// Run runs the controller, signal listener and http endpoints until the controller finishes
// or ctx is done. The returned error carries the process exit code.
func (d *Daemon) Run(ctx context.Context) error {
	defer d.removePID()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error {
		defer cancel()
		err := d.Controller.Run(gctx)
		if err == context.Canceled {
			return nil
		}
		return err
	})
	g.Go(func() error {
		return control.NewListener(d.files, d.Controller).Run(gctx)
	})
	if d.Config.HTTPAddr != "" {
		g.Go(func() error {
			// http failures are logged, the controller keeps running
			if err := d.http.Serve(gctx); err != nil {
				log.Errorf("http endpoints on %s stopped: %v", d.Config.HTTPAddr, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ExitError(d.Controller.Status())
}

// ExitError maps the final snapshot to the process outcome: an urgent shutdown that force
// cancelled jobs, else any job FAILED, else success.
func ExitError(snap *domain.StatusSnapshot) error {
	forced, failed := 0, 0
	for _, j := range snap.Jobs {
		switch {
		case j.State == domain.Cancelled && strings.HasPrefix(j.LastError, server.ForceCancelReason):
			forced++
		case j.State == domain.Failed:
			failed++
		}
	}
	if forced > 0 {
		return errors.NewError(fmt.Errorf("%d jobs force cancelled at shutdown", forced), errors.UrgentShutdownExitCode)
	}
	if failed > 0 {
		return errors.NewError(fmt.Errorf("%d jobs failed", failed), errors.JobsFailedExitCode)
	}
	return nil
}
