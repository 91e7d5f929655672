package errors

type ExitCode int

const (
	// Configuration, job file or side channel problems found before the controller starts.
	FatalStartupExitCode ExitCode = 78

	// The controller ran but at least one job ended FAILED.
	JobsFailedExitCode ExitCode = 1

	// The controller was terminated urgently before every job reached a terminal state.
	UrgentShutdownExitCode ExitCode = 2
)
