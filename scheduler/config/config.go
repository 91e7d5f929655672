// Package config holds the daemon's named configurations and loads configuration files.
//
// A selector is either the name of a built in configuration ("default", "local.memory", "slurm")
// or the path of a YAML, JSON or TOML file. Files are applied over "default", so they only need
// the settings they change. Settings present in a file can be overridden from the environment,
// e.g. JOBGATE_CONTROLLER_MAXCONCURRENTJOBS=8.
package config

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/twitter/jobgate/common/stats"
	"github.com/twitter/jobgate/scheduler/server"
	"github.com/twitter/jobgate/scheduler/sim"
	"github.com/twitter/jobgate/scheduler/slurm"
)

// ServiceConfig is everything the daemon needs to assemble a controller.
type ServiceConfig struct {
	Controller ControllerConfig
	Backend    BackendConfig
	HTTPAddr   string
	// Applied pool size is persisted here. Empty disables persistence.
	SettingsFile string
}

func (s ServiceConfig) String() string {
	return fmt.Sprintf("\n%s\n%s\nHTTPAddr: %s, SettingsFile: %s", s.Controller, s.Backend, s.HTTPAddr, s.SettingsFile)
}

// ControllerConfig mirrors server.ControllerConfig with file friendly names.
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
	MaxParallelCalls  int
	Verbose           bool
}

func (c ControllerConfig) String() string {
	return fmt.Sprintf("ControllerConfig: MaxConcurrentJobs: %d, MaxRetries: %d, CheckInterval: %s, PrintInterval: %s, "+
		"CallTimeout: %s, PollRetries: %d, DrainTimeout: %s, SnapshotCacheTTL: %s, Verbose: %t",
		c.MaxConcurrentJobs, c.MaxRetries, c.CheckInterval, c.PrintInterval,
		c.CallTimeout, c.PollRetries, c.DrainTimeout, c.SnapshotCacheTTL, c.Verbose)
}

// BackendConfig selects the external scheduler.
type BackendConfig struct {
	Type  string // slurm, memory
	Slurm slurm.Config
	Sim   sim.Config
}

func (b BackendConfig) String() string {
	return fmt.Sprintf("BackendConfig: Type: %s", b.Type)
}

// CreateControllerConfig converts to the controller's configuration.
func (c ControllerConfig) CreateControllerConfig() server.ControllerConfig {
	return server.ControllerConfig{
		MaxConcurrentJobs: c.MaxConcurrentJobs,
		MaxRetries:        c.MaxRetries,
		CheckInterval:     c.CheckInterval,
		PrintInterval:     c.PrintInterval,
		CallTimeout:       c.CallTimeout,
		PollRetries:       c.PollRetries,
		PollRetryInterval: c.PollRetryInterval,
		DrainTimeout:      c.DrainTimeout,
		SnapshotCacheTTL:  c.SnapshotCacheTTL,
		MaxParallelCalls:  c.MaxParallelCalls,
		Verbose:           c.Verbose,
	}
}

// CreateBackend builds the transport and resource provider for the configured backend.
func (b BackendConfig) CreateBackend(stat stats.StatsReceiver) (server.Transport, server.ResourceProvider, error) {
	switch b.Type {
	case "slurm":
		return slurm.NewTransport(b.Slurm, nil, stat), slurm.NewResourceProvider(b.Slurm, nil, stat), nil
	case "memory":
		cluster := sim.NewCluster(b.Sim)
		return cluster, cluster, nil
	default:
		return nil, nil, fmt.Errorf("unknown backend type %q, supported values are [memory slurm]", b.Type)
	}
}

// GetConfig returns a copy of a built in configuration.
func GetConfig(name string) (ServiceConfig, error) {
	c, ok := ServiceConfigs[name]
	if !ok {
		return ServiceConfig{}, fmt.Errorf("invalid configuration %s, supported values are %v", name, configNames())
	}
	return c, nil
}

// Load resolves a selector: a built in name, else a configuration file applied over "default".
func Load(selector string) (ServiceConfig, error) {
	if c, ok := ServiceConfigs[selector]; ok {
		return c, nil
	}
	if _, err := os.Stat(selector); err != nil {
		return ServiceConfig{}, fmt.Errorf("%s is neither a configuration name %v nor a readable file: %v",
			selector, configNames(), err)
	}

	c := ServiceConfigs["default"]
	v := viper.New()
	v.SetConfigFile(selector)
	v.SetEnvPrefix("JOBGATE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.ReadInConfig(); err != nil {
		return ServiceConfig{}, fmt.Errorf("couldn't read config file %s: %v", selector, err)
	}
	if err := v.Unmarshal(&c); err != nil {
		return ServiceConfig{}, fmt.Errorf("couldn't parse config file %s: %v", selector, err)
	}
	log.Infof("loaded configuration from %s", v.ConfigFileUsed())
	return c, nil
}

func configNames() []string {
	keys := make([]string, 0, len(ServiceConfigs))
	for k := range ServiceConfigs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

