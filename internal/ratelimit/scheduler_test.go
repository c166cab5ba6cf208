package ratelimit

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// startTolerance absorbs goroutine start latency between admission and the
// first line of a task.
const startTolerance = 5 * time.Millisecond

// submitInOrder launches one Execute per task and waits until each has been
// queued before launching the next, so submission order is deterministic.
func submitInOrder(t *testing.T, s *Scheduler, tasks []func(context.Context) error) []chan error {
	t.Helper()
	results := make([]chan error, len(tasks))
	for i, task := range tasks {
		results[i] = make(chan error, 1)
		go func(task func(context.Context) error, out chan error) {
			out <- s.Execute(context.Background(), task)
		}(task, results[i])
		waitFor(t, func() bool { return s.Stats().Submitted == uint64(i+1) })
	}
	return results
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met within 2s")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestNew_DefaultsRate(t *testing.T) {
	s := New(0)
	defer s.Close()

	if got, want := s.Interval(), 500*time.Millisecond; got != want {
		t.Fatalf("Interval() = %v, want %v", got, want)
	}
}

func TestScheduler_EnforcesRateFloor(t *testing.T) {
	s := New(25) // 40ms
	defer s.Close()

	const n = 5
	var mu sync.Mutex
	var starts []time.Time

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.Execute(context.Background(), func(context.Context) error {
				mu.Lock()
				starts = append(starts, time.Now())
				mu.Unlock()
				return nil
			})
			if err != nil {
				t.Errorf("Execute returned error: %v", err)
			}
		}()
	}
	wg.Wait()

	if len(starts) != n {
		t.Fatalf("ran %d tasks, want %d", len(starts), n)
	}
	interval := s.Interval()
	for i := 1; i < n; i++ {
		gap := starts[i].Sub(starts[i-1])
		if gap < interval-startTolerance {
			t.Fatalf("gap between task %d and %d = %v, want >= %v", i-1, i, gap, interval)
		}
	}
	if total := starts[n-1].Sub(starts[0]); total < time.Duration(n-1)*interval-startTolerance {
		t.Fatalf("total span = %v, want >= %v", total, time.Duration(n-1)*interval)
	}
}

func TestScheduler_AdmitsInSubmissionOrder(t *testing.T) {
	s := New(50) // 20ms
	defer s.Close()

	var mu sync.Mutex
	var order []int
	var completed []int
	release := make(chan struct{})

	record := func(id int, block bool) func(context.Context) error {
		return func(context.Context) error {
			mu.Lock()
			order = append(order, id)
			mu.Unlock()
			if block {
				<-release
			}
			mu.Lock()
			completed = append(completed, id)
			mu.Unlock()
			return nil
		}
	}

	results := submitInOrder(t, s, []func(context.Context) error{
		record(1, true), // slow: must not hold back 2 and 3
		record(2, false),
		record(3, false),
	})

	for _, i := range []int{1, 2} {
		if err := <-results[i]; err != nil {
			t.Fatalf("task %d returned error: %v", i+1, err)
		}
	}
	close(release)
	if err := <-results[0]; err != nil {
		t.Fatalf("task 1 returned error: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(order) != 3 || order[0] != 1 || order[1] != 2 || order[2] != 3 {
		t.Fatalf("admission order = %v, want [1 2 3]", order)
	}
	if completed[len(completed)-1] != 1 {
		t.Fatalf("completion order = %v, want task 1 last", completed)
	}
}

func TestScheduler_FailureDoesNotBlockLaterTasks(t *testing.T) {
	s := New(100)
	defer s.Close()

	boom := errors.New("boom")
	results := submitInOrder(t, s, []func(context.Context) error{
		func(context.Context) error { return boom },
		func(context.Context) error { return nil },
	})

	if err := <-results[0]; !errors.Is(err, boom) {
		t.Fatalf("first task error = %v, want %v", err, boom)
	}
	if err := <-results[1]; err != nil {
		t.Fatalf("second task error = %v, want nil", err)
	}
}

func TestScheduler_CancelWhileQueued(t *testing.T) {
	s := New(5) // 200ms
	defer s.Close()

	// Take the first slot so the next task has to wait.
	if err := s.Execute(context.Background(), func(context.Context) error { return nil }); err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}

	var ran atomic.Bool
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	err := s.Execute(ctx, func(context.Context) error {
		ran.Store(true)
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Execute error = %v, want context.Canceled", err)
	}
	if elapsed := time.Since(start); elapsed >= s.Interval() {
		t.Fatalf("cancelled Execute took %v, want < %v", elapsed, s.Interval())
	}
	if ran.Load() {
		t.Fatal("cancelled task ran")
	}

	// The dropped task did not consume an admission.
	if err := s.Execute(context.Background(), func(context.Context) error { return nil }); err != nil {
		t.Fatalf("Execute after cancel returned error: %v", err)
	}
	if got := s.Stats().Admitted; got != 2 {
		t.Fatalf("Admitted = %d, want 2", got)
	}
}

func TestScheduler_CloseFailsQueuedTasks(t *testing.T) {
	s := New(1) // 1s: the second task is still waiting when we close

	if err := s.Execute(context.Background(), func(context.Context) error { return nil }); err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}

	var ran atomic.Bool
	done := make(chan error, 1)
	go func() {
		done <- s.Execute(context.Background(), func(context.Context) error {
			ran.Store(true)
			return nil
		})
	}()
	waitFor(t, func() bool { return s.Stats().Submitted == 2 })

	s.Close()

	select {
	case err := <-done:
		if !errors.Is(err, ErrClosed) {
			t.Fatalf("queued task error = %v, want ErrClosed", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("queued task did not return after Close")
	}
	if ran.Load() {
		t.Fatal("queued task ran after Close")
	}
	if err := s.Execute(context.Background(), func(context.Context) error { return nil }); !errors.Is(err, ErrClosed) {
		t.Fatalf("Execute after Close error = %v, want ErrClosed", err)
	}
}

func TestRun_ReturnsTaskValue(t *testing.T) {
	s := New(100)
	defer s.Close()

	got, err := Run(context.Background(), s, func(context.Context) (string, error) {
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if got != "ok" {
		t.Fatalf("Run = %q, want ok", got)
	}
}
