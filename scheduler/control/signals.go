package control

import (
	"context"
	"os"
	"os/signal"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

const (
	ResizeSignal = unix.SIGUSR1
	CancelSignal = unix.SIGUSR2
)

// Target is what the signals act on.
type Target interface {
	Resize(poolSize int) error
	CancelJobs(patterns ...string) error
	Drain()
	Terminate()
}

// Listener turns signals into controller requests:
//
//	SIGUSR1          resize to the value in the pool size file
//	SIGUSR2          cancel the jobs matching the patterns in the cancel file
//	SIGTERM, SIGINT  drain; a second one terminates
//	SIGQUIT          terminate
type Listener struct {
	files  Files
	target Target
	sigCh  chan os.Signal
	stops  int
}

func NewListener(files Files, target Target) *Listener {
	return &Listener{files: files, target: target, sigCh: make(chan os.Signal, 4)}
}

// Run handles signals until ctx is done.
func (l *Listener) Run(ctx context.Context) error {
	signal.Notify(l.sigCh, ResizeSignal, CancelSignal, unix.SIGTERM, unix.SIGINT, unix.SIGQUIT)
	defer signal.Stop(l.sigCh)
	for {
		select {
		case <-ctx.Done():
			return nil
		case sig := <-l.sigCh:
			l.handle(sig)
		}
	}
}

func (l *Listener) handle(sig os.Signal) {
	log.WithFields(
		log.Fields{
			"signal": sig,
		}).Info("received signal")
	switch sig {
	case ResizeSignal:
		l.resize()
	case CancelSignal:
		l.cancel()
	case unix.SIGTERM, unix.SIGINT:
		l.stops++
		if l.stops == 1 {
			log.Info("draining: no new jobs will be admitted, send again to cancel running jobs")
			l.target.Drain()
		} else {
			log.Warn("second stop signal, cancelling running jobs")
			l.target.Terminate()
		}
	case unix.SIGQUIT:
		l.target.Terminate()
	}
}

func (l *Listener) resize() {
	size, err := ReadPoolSize(l.files.PoolSizeFile)
	if err != nil {
		log.Errorf("resize signal ignored: %v", err)
		return
	}
	// consumed; a repeated signal without a new file is a no op
	os.Remove(l.files.PoolSizeFile)
	if err := l.target.Resize(size); err != nil {
		log.Errorf("resize to %d rejected: %v", size, err)
	}
}

func (l *Listener) cancel() {
	patterns, err := ReadCancelPatterns(l.files.CancelFile)
	if err != nil {
		log.Errorf("cancel signal ignored: %v", err)
		return
	}
	os.Remove(l.files.CancelFile)
	if err := l.target.CancelJobs(patterns...); err != nil {
		log.Errorf("cancel of %v rejected: %v", patterns, err)
	}
}
