package main

import (
	log "github.com/sirupsen/logrus"

	"github.com/twitter/jobgate/common/log/hooks"
	"github.com/twitter/jobgate/scheduler/client/cli"
)

// CLI binary to control a running jobgate daemon
//	Supported commands: (see "-h" for all options)
//		resize <pool size>
//		resize --cancel
//		cancel -j <pattern> [-j <pattern>...]
//		status [--json] [--state <state>]
//		pid
//	Global flags:
//		--pid_file, --pool_size_file, --cancel_file [side channel files shared with the daemon]
//		--addr [<host:port> of the daemon's http endpoints]
// 		--log_level [<error|info|debug> level and above should be logged]

func main() {
	log.AddHook(hooks.NewContextHook())

	if err := cli.NewCLIClient().Exec(); err != nil {
		log.Fatal("Error running jobgatecl ", err)
	}
}
