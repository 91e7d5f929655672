package main

// jobgate daemon: admits the jobs of a job file to the external scheduler, at most pool size at once.
//	Control it with jobgatecl or signals:
//		SIGUSR1          resize to the value in --pool_size_file
//		SIGUSR2          cancel the jobs matching the patterns in --cancel_file
//		SIGTERM, SIGINT  drain; a second one cancels running jobs
//		SIGQUIT          cancel running jobs and exit

import (
	"context"
	"flag"
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"

	"github.com/twitter/jobgate/common"
	"github.com/twitter/jobgate/common/errors"
	"github.com/twitter/jobgate/common/stats"
	"github.com/twitter/jobgate/scheduler/starter"
)

func main() {
	opts := starter.Options{}
	flag.StringVar(&opts.Config, "config", "slurm", "Configuration name (default|local.memory|slurm) or path of a YAML/JSON config file")
	flag.StringVar(&opts.JobsFile, "jobs", "", "YAML or JSON file listing the jobs to run")
	flag.IntVar(&opts.PoolSize, "pool_size", 0, "Initial number of jobs allowed to run at once, overrides the config")
	flag.IntVar(&opts.MaxRetries, "max_retries", -1, "How many times a failed job is retried, overrides the config")
	flag.DurationVar(&opts.CheckInterval, "check_interval", 0, "How often job states are checked, overrides the config")
	flag.DurationVar(&opts.PrintInterval, "print_interval", 0, "How often the status report is printed, overrides the config")
	flag.DurationVar(&opts.DrainTimeout, "drain_timeout", -1, "How long a drain waits before cancelling running jobs, 0 waits forever")
	flag.StringVar(&opts.Files.PIDFile, "pid_file", common.DefaultPIDFile, "PID file used by jobgatecl to find this daemon")
	flag.StringVar(&opts.Files.PoolSizeFile, "pool_size_file", common.DefaultPoolSizeFile, "File read on SIGUSR1 for the new pool size")
	flag.StringVar(&opts.Files.CancelFile, "cancel_file", common.DefaultCancelFile, "File read on SIGUSR2 for job id patterns to cancel")
	flag.StringVar(&opts.HTTPAddr, "http_addr", "", "Bind address for the /status, /health and /admin/metrics.json endpoints, overrides the config")
	flag.BoolVar(&opts.ExitWhenIdle, "exit_when_idle", false, "Exit once every job reached a terminal state")
	sbatchParams := flag.String("sbatch_params", "", "Comma separated key=value sbatch options added to every job, e.g. qos=high,exclusive")
	logLevelFlag := flag.String("log_level", "info", "Log everything at this level and above (error|info|debug)")
	logFile := flag.String("log_file", "", "Write logs to this file instead of stderr")
	logJSON := flag.Bool("log_json", false, "Log as JSON")
	daemon := flag.Bool("daemon", false, "Detach from the terminal, requires --log_file")
	flag.Parse()
	opts.ExtraParams = common.SplitCommaSepToMap(*sbatchParams)

	if *daemon {
		pid, err := starter.Daemonize(*logFile)
		if err != nil {
			exit(err)
		}
		if pid != 0 {
			fmt.Printf("jobgate daemon started with pid %d, logging to %s\n", pid, *logFile)
			return
		}
	}

	closer, err := starter.SetupLogging(*logLevelFlag, *logFile, *logJSON)
	if err != nil {
		exit(err)
	}
	defer closer.Close()

	stat := stats.DefaultStatsReceiver().Scope("jobgate")
	d, err := starter.Build(opts, stat)
	if err != nil {
		exit(err)
	}
	log.Infof("Starting jobgate with pool size %d", d.Config.Controller.MaxConcurrentJobs)
	if err := d.Run(context.Background()); err != nil {
		closer.Close()
		exit(err)
	}
}

func exit(err error) {
	log.Error(err)
	fmt.Fprintln(os.Stderr, "jobgate:", err)
	os.Exit(int(errors.ExitCodeOf(err)))
}
