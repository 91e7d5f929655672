// Package async runs functions in goroutines and hands their results back to
// a single owning goroutine as callbacks.
package async

import "context"

// A Runner spawns goroutines to run functions and associates callbacks with them.
// Callbacks only run inside ProcessMessages or Wait, on the caller's goroutine.
//
// The controller uses it to forward best effort cancellations:
//
//	runner := async.NewRunner()
//	for _, id := range ids {
//	  id := id
//	  runner.RunAsync(func() error { return transport.Cancel(ctx, id) }, func(err error) {
//	    if err != nil {
//	      errs = multierror.Append(errs, err)
//	    }
//	  })
//	}
//	runner.Wait(ctx)
type Runner struct {
	bx *Mailbox
}

func NewRunner() Runner {
	return Runner{
		bx: NewMailbox(),
	}
}

// NumRunning is the number of functions whose callback has not run yet.
func (r *Runner) NumRunning() int {
	return r.bx.Count()
}

// RunAsync creates a goroutine to run the specified function f.
// The callback, cb, is invoked once f is completed by calling ProcessMessages.
func (r *Runner) RunAsync(f func() error, cb AsyncErrorResponseHandler) {
	asyncErr := r.bx.NewAsyncError(cb)
	go func(rsp *AsyncError) {
		rsp.SetValue(f())
	}(asyncErr)
}

// Invokes all callbacks of completed functions.
func (r *Runner) ProcessMessages() {
	r.bx.ProcessMessages()
}

// Wait invokes callbacks as functions complete until none are running or ctx is done.
// Callbacks of functions still running when ctx ends are never invoked by Wait.
func (r *Runner) Wait(ctx context.Context) error {
	return r.bx.ProcessAll(ctx)
}
