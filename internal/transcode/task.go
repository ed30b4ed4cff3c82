package transcode

import (
	"context"
	"io"

	"github.com/maauso/inspectmedia/internal/progress"
)

// progressBuffer is the number of undelivered events a Task keeps.
const progressBuffer = 32

// Task is a transcode running in its own goroutine.
type Task struct {
	progress chan progress.Event
	done     chan struct{}
	cancel   context.CancelFunc

	res *Result
	err error
}

// Start runs Transcode asynchronously. Events are delivered on Progress;
// when the consumer falls behind the oldest buffered events are dropped.
func (t *Transcoder) Start(ctx context.Context, r io.Reader, filename, outputName string) *Task {
	ctx, cancel := context.WithCancel(ctx)
	task := &Task{
		progress: make(chan progress.Event, progressBuffer),
		done:     make(chan struct{}),
		cancel:   cancel,
	}

	go func() {
		defer close(task.done)
		defer close(task.progress)
		defer cancel()
		task.res, task.err = t.Transcode(ctx, r, filename, outputName, task.emit)
	}()

	return task
}

func (t *Task) emit(e progress.Event) {
	for {
		select {
		case t.progress <- e:
			return
		default:
		}
		select {
		case <-t.progress:
		default:
		}
	}
}

// Progress returns the event channel. It is closed when the task ends.
func (t *Task) Progress() <-chan progress.Event {
	return t.progress
}

// Done is closed when the task has finished and its temp files are gone.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Cancel kills the subprocess. Wait still returns once cleanup has run.
func (t *Task) Cancel() {
	t.cancel()
}

// Wait blocks until the task ends and returns its outcome.
func (t *Task) Wait() (*Result, error) {
	<-t.done
	return t.res, t.err
}
