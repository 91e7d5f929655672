package async

// AsyncError is an async value that will eventually return an error,
// similar to a Future. The value is supplied once by calling SetValue and
// read by the owning Mailbox via TryGetValue.
type AsyncError struct {
	errCh     chan error
	notify    chan<- struct{}
	val       error
	completed bool
}

func newAsyncError(notify chan<- struct{}) *AsyncError {
	return &AsyncError{
		errCh:  make(chan error, 1),
		notify: notify,
	}
}

// Sets the value for the AsyncError and wakes the owning Mailbox.
// Calling this method more than once will panic.
func (e *AsyncError) SetValue(err error) {
	e.errCh <- err
	close(e.errCh)
	if e.notify != nil {
		select {
		case e.notify <- struct{}{}:
		default:
		}
	}
}

// Returns true and the value once the AsyncError is completed,
// false and nil while it is pending.
func (e *AsyncError) TryGetValue() (bool, error) {
	if e.completed {
		return true, e.val
	}
	select {
	case err := <-e.errCh:
		e.val = err
		e.completed = true
		return true, err
	default:
		return false, nil
	}
}
