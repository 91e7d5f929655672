// Package hooks holds logrus hooks shared by the jobgate binaries.
package hooks

import (
	"runtime/debug"
	"strings"

	"github.com/sirupsen/logrus"
)

type contextHook struct {
}

// NewContextHook returns a hook that adds the calling file:line to every entry.
func NewContextHook() contextHook {
	return contextHook{}
}

func (hook contextHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (hook contextHook) Fire(entry *logrus.Entry) error {
	entry.Data["file:line"] = callerLine(string(debug.Stack()))
	return nil
}

// callerLine finds the first stack frame outside logrus and this hook,
// and returns its file:line relative to the repo.
func callerLine(stack string) string {
	lines := strings.Split(stack, "\n")
	// frames come in pairs: the function line followed by a tab indented file:line
	for i := 0; i+1 < len(lines); i++ {
		fn := lines[i]
		if strings.HasPrefix(fn, "\t") || strings.HasPrefix(fn, "goroutine ") {
			continue
		}
		if strings.Contains(fn, "sirupsen/logrus") || strings.Contains(fn, "runtime/debug") ||
			strings.Contains(fn, "log/hooks.") {
			continue
		}
		loc := strings.TrimSpace(lines[i+1])
		if idx := strings.LastIndex(loc, " +0x"); idx >= 0 {
			loc = loc[:idx]
		}
		ctx := strings.Split(loc, "jobgate/")
		return ctx[len(ctx)-1]
	}
	return ""
}
