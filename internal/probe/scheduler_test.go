package probe

import (
	"context"
	"sync"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"github.com/likexian/gokit/assert"
	"golang.org/x/time/rate"
)

func okProber() Prober {
	return ProberFunc(func(ctx context.Context, job Job) Outcome {
		return Outcome{Status: StatusSuccess, Class: ClassOpen}
	})
}

func TestRunDeliversOneOutcomePerJob(t *testing.T) {
	jobs := make([]Job, 0, 250)
	for i := 0; i < 250; i++ {
		jobs = append(jobs, PortJob(i, 1000+i))
	}

	s := NewScheduler(Config{Concurrency: 16, Timeout: time.Second})
	outcomes := s.Run(context.Background(), jobs, okProber())

	assert.Equal(t, len(outcomes), len(jobs))
	seen := map[int]bool{}
	for _, o := range outcomes {
		assert.False(t, seen[o.Job.ID], "duplicate outcome for job", o.Job.ID)
		seen[o.Job.ID] = true
		assert.Equal(t, o.Attempts, 1)
		assert.Equal(t, o.Status, StatusSuccess)
	}
}

func TestRunWithNoJobs(t *testing.T) {
	s := NewScheduler(Config{})
	outcomes := s.Run(context.Background(), nil, okProber())
	assert.Equal(t, len(outcomes), 0)
}

func TestTransientFailureRetriedUntilExhausted(t *testing.T) {
	var attempts int64
	refused := ProberFunc(func(ctx context.Context, job Job) Outcome {
		atomic.AddInt64(&attempts, 1)
		return Outcome{Status: StatusFailure, Class: ClassClosed, Cause: syscall.ECONNREFUSED}
	})

	s := NewScheduler(Config{
		Concurrency: 2,
		Timeout:     time.Second,
		MaxRetries:  3,
		BackoffBase: time.Millisecond,
		BackoffCap:  2 * time.Millisecond,
	})
	outcomes := s.Run(context.Background(), []Job{PortJob(0, 81)}, refused)

	assert.Equal(t, len(outcomes), 1)
	assert.Equal(t, outcomes[0].Status, StatusFailure)
	assert.Equal(t, outcomes[0].Class, ClassClosed)
	assert.Equal(t, outcomes[0].Attempts, 4)
	assert.Equal(t, atomic.LoadInt64(&attempts), int64(4))
	assert.True(t, outcomes[0].Error != "")
}

func TestTimeoutRetriedAndSettlesAsTimeout(t *testing.T) {
	slow := ProberFunc(func(ctx context.Context, job Job) Outcome {
		<-ctx.Done()
		return Outcome{Status: StatusFromErr(ctx.Err()), Class: ClassFiltered, Cause: ctx.Err()}
	})

	s := NewScheduler(Config{
		Concurrency: 1,
		Timeout:     5 * time.Millisecond,
		MaxRetries:  2,
		BackoffBase: time.Millisecond,
		BackoffCap:  time.Millisecond,
	})
	outcomes := s.Run(context.Background(), []Job{PortJob(0, 9)}, slow)

	assert.Equal(t, len(outcomes), 1)
	assert.Equal(t, outcomes[0].Status, StatusTimeout)
	assert.Equal(t, outcomes[0].Class, ClassFiltered)
	assert.Equal(t, outcomes[0].Attempts, 3)
}

func TestNonTransientErrorNotRetried(t *testing.T) {
	var attempts int64
	broken := ProberFunc(func(ctx context.Context, job Job) Outcome {
		atomic.AddInt64(&attempts, 1)
		return Outcome{Status: StatusError, Cause: &ProtocolError{Reason: "garbled response"}}
	})

	s := NewScheduler(Config{Concurrency: 1, Timeout: time.Second, MaxRetries: 5})
	outcomes := s.Run(context.Background(), []Job{PathJob(0, "admin")}, broken)

	assert.Equal(t, len(outcomes), 1)
	assert.Equal(t, outcomes[0].Status, StatusError)
	assert.Equal(t, outcomes[0].Attempts, 1)
	assert.Equal(t, atomic.LoadInt64(&attempts), int64(1))
}

func TestConcurrencyBoundHolds(t *testing.T) {
	const bound = 8
	var inFlight, maxSeen int64
	instrumented := ProberFunc(func(ctx context.Context, job Job) Outcome {
		cur := atomic.AddInt64(&inFlight, 1)
		for {
			prev := atomic.LoadInt64(&maxSeen)
			if cur <= prev || atomic.CompareAndSwapInt64(&maxSeen, prev, cur) {
				break
			}
		}
		time.Sleep(2 * time.Millisecond)
		atomic.AddInt64(&inFlight, -1)
		return Outcome{Status: StatusSuccess}
	})

	jobs := make([]Job, 0, 200)
	for i := 0; i < 200; i++ {
		jobs = append(jobs, PathJob(i, "p"))
	}

	s := NewScheduler(Config{Concurrency: bound, Timeout: time.Second})
	outcomes := s.Run(context.Background(), jobs, instrumented)

	assert.Equal(t, len(outcomes), len(jobs))
	assert.True(t, atomic.LoadInt64(&maxSeen) <= bound, "in-flight peak", maxSeen, "exceeded bound", bound)
}

func TestCancellationPreservesCompletedOutcomes(t *testing.T) {
	var completed int64
	slow := ProberFunc(func(ctx context.Context, job Job) Outcome {
		select {
		case <-time.After(10 * time.Millisecond):
			atomic.AddInt64(&completed, 1)
			return Outcome{Status: StatusSuccess}
		case <-ctx.Done():
			return Outcome{Status: StatusFromErr(ctx.Err()), Cause: ctx.Err()}
		}
	})

	jobs := make([]Job, 0, 100)
	for i := 0; i < 100; i++ {
		jobs = append(jobs, PathJob(i, "p"))
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := NewScheduler(Config{Concurrency: 4, Timeout: time.Second})
	ch := s.Stream(ctx, jobs, slow)

	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	var outcomes []Outcome
	for o := range ch {
		outcomes = append(outcomes, o)
	}

	// Some jobs settled before the signal, the rest must be absent rather
	// than fabricated.
	assert.True(t, len(outcomes) > 0, "expected at least one settled outcome")
	assert.True(t, len(outcomes) < len(jobs), "cancellation should cut the run short")
	seen := map[int]bool{}
	for _, o := range outcomes {
		assert.False(t, seen[o.Job.ID], "duplicate outcome for job", o.Job.ID)
		seen[o.Job.ID] = true
		assert.Equal(t, o.Status, StatusSuccess)
	}
}

func TestSchedulerIsSafeForConcurrentCollectors(t *testing.T) {
	jobs := make([]Job, 0, 60)
	for i := 0; i < 60; i++ {
		jobs = append(jobs, PortJob(i, i+1))
	}

	s := NewScheduler(Config{Concurrency: 6, Timeout: time.Second})
	ch := s.Stream(context.Background(), jobs, okProber())

	var mu sync.Mutex
	var total int
	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range ch {
				mu.Lock()
				total++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, total, len(jobs))
}

func TestLimiterGatesAttempts(t *testing.T) {
	jobs := make([]Job, 0, 5)
	for i := 0; i < 5; i++ {
		jobs = append(jobs, PortJob(i, 80))
	}

	s := NewScheduler(Config{
		Concurrency: 4,
		Timeout:     time.Second,
		Limiter:     rate.NewLimiter(rate.Every(10*time.Millisecond), 1),
	})
	start := time.Now()
	outcomes := s.Run(context.Background(), jobs, okProber())

	// First attempt passes on the burst token, the remaining four wait one
	// limiter interval each.
	assert.Equal(t, len(outcomes), len(jobs))
	assert.True(t, time.Since(start) >= 40*time.Millisecond, "limiter did not space the attempts")
}

func TestBackoffDelayDoublesAndCaps(t *testing.T) {
	base := 100 * time.Millisecond
	limit := time.Second

	cases := map[int]time.Duration{
		0:   0,
		1:   100 * time.Millisecond,
		2:   200 * time.Millisecond,
		3:   400 * time.Millisecond,
		4:   800 * time.Millisecond,
		5:   time.Second,
		10:  time.Second,
		100: time.Second,
	}
	for retry, want := range cases {
		assert.Equal(t, backoffDelay(base, limit, retry), want, "retry", retry)
	}
}

func TestConfigDefaults(t *testing.T) {
	c := Config{}.withDefaults()
	assert.Equal(t, c.Concurrency, DefaultConcurrency)
	assert.Equal(t, c.Timeout, DefaultTimeout)
	assert.Equal(t, c.BackoffBase, DefaultBackoffBase)
	assert.Equal(t, c.BackoffCap, DefaultBackoffCap)

	keep := Config{Concurrency: 3, Timeout: time.Minute, MaxRetries: 7}.withDefaults()
	assert.Equal(t, keep.Concurrency, 3)
	assert.Equal(t, keep.Timeout, time.Minute)
	assert.Equal(t, keep.MaxRetries, 7)
}
