package config

import (
	"time"

	"github.com/twitter/jobgate/common"
	"github.com/twitter/jobgate/scheduler/server"
	"github.com/twitter/jobgate/scheduler/sim"
	"github.com/twitter/jobgate/scheduler/slurm"
)

// ServiceConfigs the map of available configurations
var ServiceConfigs = map[string]ServiceConfig{
	"default":      defaultConfig,
	"local.memory": localMemory,
	"slurm":        slurmConfig,
}

// defaultConfig is used for anything a configuration file leaves out.
var defaultConfig = ServiceConfig{
	ControllerConfig{
		MaxConcurrentJobs: server.DefaultMaxConcurrentJobs,
		MaxRetries:        server.DefaultMaxRetries,
		CheckInterval:     server.DefaultCheckInterval,
		PrintInterval:     server.DefaultPrintInterval,
		CallTimeout:       server.DefaultCallTimeout,
		PollRetries:       server.DefaultPollRetries,
		PollRetryInterval: server.DefaultPollRetryInterval,
		SnapshotCacheTTL:  server.DefaultSnapshotCacheTTL,
		MaxParallelCalls:  server.DefaultMaxParallelCalls,
	},
	BackendConfig{
		Type: "slurm",
	},
	common.DefaultHTTPAddr,
	common.DefaultSettingsFile,
}

// localMemory runs against the in-memory cluster with a fast loop - !!! make sure it is added to ServiceConfigs above !!!
var localMemory = ServiceConfig{
	ControllerConfig{
		MaxConcurrentJobs: 2,
		MaxRetries:        1,
		CheckInterval:     time.Second,
		PrintInterval:     5 * time.Second,
		CallTimeout:       time.Second,
		PollRetries:       0,
		PollRetryInterval: 100 * time.Millisecond,
		MaxParallelCalls:  server.DefaultMaxParallelCalls,
		Verbose:           true,
	},
	BackendConfig{
		Type: "memory",
		Sim: sim.Config{
			Partitions: sim.DefaultPartitions(),
			RunPolls:   sim.DefaultRunPolls,
		},
	},
	common.DefaultHTTPAddr,
	"",
}

// slurmConfig is a production setup - !!! make sure it is added to ServiceConfigs above !!!
var slurmConfig = ServiceConfig{
	ControllerConfig{
		MaxConcurrentJobs: server.DefaultMaxConcurrentJobs,
		MaxRetries:        server.DefaultMaxRetries,
		CheckInterval:     server.DefaultCheckInterval,
		PrintInterval:     server.DefaultPrintInterval,
		CallTimeout:       server.DefaultCallTimeout,
		PollRetries:       server.DefaultPollRetries,
		PollRetryInterval: server.DefaultPollRetryInterval,
		DrainTimeout:      time.Hour,
		SnapshotCacheTTL:  server.DefaultSnapshotCacheTTL,
		MaxParallelCalls:  server.DefaultMaxParallelCalls,
		Verbose:           true,
	},
	BackendConfig{
		Type: "slurm",
		Slurm: slurm.Config{
			CommandsPerSecond: slurm.DefaultCommandsPerSecond,
			CommandBurst:      slurm.DefaultCommandBurst,
			KillTimeout:       slurm.DefaultKillTimeout,
		},
	},
	common.DefaultHTTPAddr,
	common.DefaultSettingsFile,
}
