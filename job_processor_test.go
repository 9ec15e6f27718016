package coverage

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
)

func TestJobProcessorDrainsAllTasks(t *testing.T) {
	work, tr := JobProcessor(context.Background(), 3, 2)
	var done atomic.Int32
	for i := 0; i < 50; i++ {
		work <- func() error {
			done.Add(1)
			return nil
		}
	}
	close(work)
	if err := tr.Wait(); err != nil {
		t.Fatal(err)
	}
	if done.Load() != 50 {
		t.Errorf("executed %d tasks, want 50", done.Load())
	}
}

func TestJobProcessorReturnsTaskError(t *testing.T) {
	work, tr := JobProcessor(context.Background(), 2, 0)
	boom := errors.New("boom")
	var done atomic.Int32
	for i := 0; i < 10; i++ {
		work <- func() error {
			done.Add(1)
			if i == 3 {
				return boom
			}
			return nil
		}
	}
	close(work)
	if err := tr.Wait(); !errors.Is(err, boom) {
		t.Errorf("got %v, want boom", err)
	}
	if done.Load() != 10 {
		t.Errorf("executed %d tasks, want 10", done.Load())
	}
}
