package probe

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Defaults applied by Config.withDefaults. Concurrency stays small
// double-digit: high enough to overlap network latency, low enough not to
// starve local sockets into false negatives.
const (
	DefaultConcurrency = 20
	DefaultTimeout     = 5 * time.Second
	DefaultBackoffBase = 200 * time.Millisecond
	DefaultBackoffCap  = 3 * time.Second
)

// Config controls one scheduler run. The zero value is usable; zero or
// negative fields fall back to the defaults above. MaxRetries counts extra
// attempts after the first, so a job is tried at most MaxRetries+1 times.
type Config struct {
	Concurrency int
	Timeout     time.Duration
	MaxRetries  int
	BackoffBase time.Duration
	BackoffCap  time.Duration

	// Limiter optionally gates every attempt across all workers. Nil means
	// no rate limit.
	Limiter *rate.Limiter
}

func (c Config) withDefaults() Config {
	if c.Concurrency <= 0 {
		c.Concurrency = DefaultConcurrency
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.BackoffBase <= 0 {
		c.BackoffBase = DefaultBackoffBase
	}
	if c.BackoffCap < c.BackoffBase {
		c.BackoffCap = DefaultBackoffCap
	}
	return c
}

// Scheduler fans a job sequence out over a fixed pool of workers, applying
// the per-attempt timeout and the retry policy, and delivers exactly one
// outcome per job. It holds no state between runs.
type Scheduler struct {
	cfg Config
}

func NewScheduler(cfg Config) *Scheduler {
	return &Scheduler{cfg: cfg.withDefaults()}
}

// Stream starts the pool and returns the outcome channel. The channel closes
// once every job has settled or once cancellation has been observed by all
// workers; after cancellation only outcomes that settled beforehand are
// delivered. Outcomes arrive in no particular order.
func (s *Scheduler) Stream(ctx context.Context, jobs []Job, p Prober) <-chan Outcome {
	cfg := s.cfg
	out := make(chan Outcome, cfg.Concurrency)
	jobCh := make(chan Job)

	var wg sync.WaitGroup
	for i := 0; i < cfg.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case job, ok := <-jobCh:
					if !ok {
						return
					}
					o, settled := s.execute(ctx, cfg, job, p)
					if !settled {
						return
					}
					select {
					case out <- o:
					case <-ctx.Done():
						// Receiver gone mid-cancellation; the outcome
						// counts as unobserved.
						return
					}
				}
			}
		}()
	}

	go func() {
		defer close(jobCh)
		for _, job := range jobs {
			select {
			case <-ctx.Done():
				return
			case jobCh <- job:
			}
		}
	}()

	go func() {
		wg.Wait()
		close(out)
	}()

	return out
}

// Run is the bulk form of Stream: it blocks until the run finishes or is
// cancelled and returns every delivered outcome.
func (s *Scheduler) Run(ctx context.Context, jobs []Job, p Prober) []Outcome {
	outcomes := make([]Outcome, 0, len(jobs))
	for o := range s.Stream(ctx, jobs, p) {
		outcomes = append(outcomes, o)
	}
	return outcomes
}

// execute drives one job to a terminal outcome: probe, classify, back off,
// retry while the condition is transient and attempts remain. Attempt N+1
// never starts before attempt N has settled. A false second return means the
// run was cancelled before the job settled and no outcome must be emitted.
func (s *Scheduler) execute(ctx context.Context, cfg Config, job Job, p Prober) (Outcome, bool) {
	for {
		if cfg.Limiter != nil {
			if err := cfg.Limiter.Wait(ctx); err != nil {
				return Outcome{}, false
			}
		}

		attemptCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
		o := p.Probe(attemptCtx, job)
		cancel()

		if ctx.Err() != nil {
			// Run-level cancellation, not a per-attempt timeout. The attempt
			// result is discarded as incomplete.
			return Outcome{}, false
		}

		o.Job = job
		o.Attempts = job.Attempt + 1

		if !retryable(o) || job.Attempt >= cfg.MaxRetries {
			if o.Error == "" && o.Cause != nil {
				o.Error = o.Cause.Error()
			}
			return o, true
		}

		job.Attempt++
		delay := backoffDelay(cfg.BackoffBase, cfg.BackoffCap, job.Attempt)
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return Outcome{}, false
		case <-timer.C:
		}
	}
}

// backoffDelay doubles the base delay per retry, capped at limit. retry is
// 1-based: the first retry waits base, the second 2*base, and so on.
func backoffDelay(base, limit time.Duration, retry int) time.Duration {
	if retry < 1 {
		return 0
	}
	if retry > 32 {
		return limit
	}
	d := base << uint(retry-1)
	if d <= 0 || d > limit {
		return limit
	}
	return d
}
