package async

import "context"

// A Mailbox stores AsyncErrors and their callbacks and invokes the callbacks
// once the AsyncErrors complete.
//
// Work is spawned in goroutines from an event loop, but the results are
// applied back on the loop's own goroutine: only ProcessMessages invokes
// callbacks, so callbacks may touch loop owned state without locking.
//
// A Mailbox is not thread-safe and should only ever be accessed from a single goroutine.
type Mailbox struct {
	msgs   []message
	notify chan struct{}
}

// The function type of the callback invoked when an AsyncError is Completed
type AsyncErrorResponseHandler func(error)

type message struct {
	Err      *AsyncError
	callback AsyncErrorResponseHandler
}

func NewMailbox() *Mailbox {
	return &Mailbox{
		notify: make(chan struct{}, 1),
	}
}

// Count is the number of messages whose callback has not run yet.
func (bx *Mailbox) Count() int {
	return len(bx.msgs)
}

// Creates a NewAsyncError and associates the supplied callback with it.
// Once SetValue is called the callback runs on the next ProcessMessages.
func (bx *Mailbox) NewAsyncError(cb AsyncErrorResponseHandler) *AsyncError {
	msg := message{Err: newAsyncError(bx.notify), callback: cb}
	bx.msgs = append(bx.msgs, msg)
	return msg.Err
}

// Invokes the callback of every completed message and drops it from the mailbox.
func (bx *Mailbox) ProcessMessages() {
	var pending []message
	for _, msg := range bx.msgs {
		if ok, err := msg.Err.TryGetValue(); ok {
			msg.callback(err)
		} else {
			pending = append(pending, msg)
		}
	}
	bx.msgs = pending
}

// ProcessAll processes messages as they complete until the mailbox is empty or ctx is done.
func (bx *Mailbox) ProcessAll(ctx context.Context) error {
	for {
		bx.ProcessMessages()
		if len(bx.msgs) == 0 {
			return nil
		}
		select {
		case <-bx.notify:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
