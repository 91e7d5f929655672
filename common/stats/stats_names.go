package stats

/*
This file defines all the metrics being collected.   As new metrics are added please follow this pattern.
*/

const (
	/************************* Controller metrics **************************/
	/*
		the effective admission limit after the last applied resize
	*/
	ControllerPoolSizeGauge = "poolSizeGauge"

	/*
		number of jobs waiting for admission
	*/
	ControllerQueuedJobsGauge = "queuedJobsGauge"

	/*
		number of jobs occupying an admission slot (submitted or running)
	*/
	ControllerActiveJobsGauge = "activeJobsGauge"

	/*
		number of jobs in a terminal state
	*/
	ControllerTerminalJobsGauge = "terminalJobsGauge"

	/*
		number of jobs added to the controller
	*/
	ControllerJobsAddedCounter = "jobsAddedCounter"

	/*
		number of successful submissions to the external scheduler (counts every attempt)
	*/
	ControllerSubmitCounter = "submitCounter"

	/*
		number of submissions the external scheduler rejected or that timed out
	*/
	ControllerSubmitErrCounter = "submitErrCounter"

	/*
		number of jobs requeued for another attempt
	*/
	ControllerRetryCounter = "retryCounter"

	/*
		number of jobs left queued by the admission pass because the cluster could not fit them
	*/
	ControllerInfeasibleCounter = "infeasibleCounter"

	/*
		number of polls that could not determine a job's status
	*/
	ControllerPollErrCounter = "pollErrCounter"

	/*
		number of jobs that reached COMPLETED
	*/
	ControllerCompletedCounter = "completedCounter"

	/*
		number of jobs that reached FAILED with no attempts remaining
	*/
	ControllerFailedCounter = "failedCounter"

	/*
		number of jobs that reached CANCELLED
	*/
	ControllerCancelledCounter = "cancelledCounter"

	/*
		number of cancel requests the external scheduler did not acknowledge
	*/
	ControllerCancelErrCounter = "cancelErrCounter"

	/*
		number of applied pool resizes
	*/
	ControllerResizeCounter = "resizeCounter"

	/*
		number of reconfiguration requests that were malformed and ignored
	*/
	ControllerBadReconfigCounter = "badReconfigCounter"

	/*
		number of control events dropped because the inbox was full
	*/
	ControllerInboxFullCounter = "inboxFullCounter"

	/*
		time spent in one controller tick
	*/
	ControllerStepLatency_ms = "stepLatency_ms"

	/*
		time spent polling the active jobs in one tick
	*/
	ControllerPollLatency_ms = "pollLatency_ms"

	/*
		time spent in the admission pass of one tick
	*/
	ControllerAdmitLatency_ms = "admitLatency_ms"

	/*
		record that the controller started draining
	*/
	ControllerDrainingGauge = "drainingGauge"

	/*
		the amount of time the controller has been running
	*/
	ControllerUptime_ms = "controllerUptimeGauge_ms"

	/************************* Slurm transport metrics **************************/
	/*
		latency of slurm command line invocations, scoped by command name
	*/
	SlurmCommandLatency_ms = "commandLatency_ms"

	/*
		number of slurm command line invocations that exited non zero or timed out, scoped by command name
	*/
	SlurmCommandErrCounter = "commandErrCounter"

	/*
		number of times the resource snapshot was refreshed from sinfo
	*/
	SlurmSnapshotRefreshCounter = "snapshotRefreshCounter"

	/************************* Status endpoint metrics **************************/
	/*
		number of /status requests served
	*/
	StatusRequestCounter = "statusRequestCounter"
)
