package common

import (
	"time"
)

// Side channel locations shared by the daemon and the operator CLI.
const (
	DefaultPIDFile      = "/tmp/jobgate.pid"
	DefaultPoolSizeFile = "/tmp/jobgate_pool_size"
	DefaultCancelFile   = "/tmp/jobgate_cancel"
	DefaultSettingsFile = "/tmp/jobgate_settings.json"
)

const DefaultHTTPAddr = "localhost:9091"

const DefaultClientTimeout = 10 * time.Second
