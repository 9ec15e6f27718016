package coverage

import (
	"context"
)

// JobProcessor starts workers goroutines that execute the tasks sent on the returned work
// channel, which buffers up to bufferSize pending tasks. Close the channel then Wait on the
// TaskRunner to drain: Wait returns once every submitted task has finished.
func JobProcessor(ctx context.Context, workers int, bufferSize int) (chan<- func() error, *TaskRunner) {
	if workers < 1 {
		workers = 1
	}
	if bufferSize < 0 {
		bufferSize = 0
	}
	workChannel := make(chan func() error, bufferSize)
	tr := NewTaskRunner(ctx, workers)
	for i := 0; i < workers; i++ {
		tr.Go(func() error {
			var firstErr error
			// Keep draining after a failure so senders never block on a dead pool.
			for task := range workChannel {
				if err := task(); err != nil && firstErr == nil {
					firstErr = err
				}
			}
			return firstErr
		})
	}
	return workChannel, tr
}
