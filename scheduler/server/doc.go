/*
package server provides the Controller which admits jobs to an external batch scheduler
under a live adjustable concurrency limit.

* Concepts *
PoolSize:
  The number of jobs allowed in SUBMITTED or RUNNING at once. Operators change it at runtime;
  the new value is staged and applied at the start of the next tick. A decrease never preempts
  jobs already admitted, it only holds back admissions until enough of them finish.

Attempt:
  One submission of a job to the external scheduler. A failed submit and a failed run both
  use up one attempt. A job gets at most MaxRetries+1 attempts.

Feasibility:
  A job whose partition does not exist, has no available node, or cannot fit its cpus, gpus or
  memory on any node stays QUEUED. It does not block the jobs behind it.

Drain:
  No more admissions. QUEUED jobs are cancelled, submitted ones are polled until terminal or until
  DrainTimeout, after which they are force cancelled. Terminate force cancels right away.

* Logic *
Control Loop (step):
  Consume staged control events: last resize wins, cancels by pattern, drain/terminate.
  Apply the staged pool size.
  Poll every SUBMITTED or RUNNING job (in parallel, each call bounded by CallTimeout).
  Admit QUEUED jobs while room = PoolSize - active > 0:
     retried jobs first, then in the order they were added,
     skipping jobs the current resource snapshot cannot fit,
     reserving the resources of each submitted job from the snapshot.

Poll Results:
  PENDING keeps the state. RUNNING moves SUBMITTED to RUNNING. SUCCEEDED completes.
  FAILED requeues the job when it has attempts left, else it is FAILED.
  UNKNOWN or an error is retried a few times within the tick, then recorded on the job
  without changing its state.
*/
package server
