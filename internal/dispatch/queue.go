// Package dispatch serializes outbound calls to the downstream commerce API.
// A single worker drains a FIFO queue, holding each dispatch until it fits
// under both the trailing 1-second and trailing 60-second rate limits, and
// retries transient failures with backoff before settling the caller's outcome.
package dispatch

import (
	"fmt"
	"math/rand"
	"net/http"
	"strconv"
	"sync"
	"time"

	"quoting/internal/logger"
)

// Result is one HTTP attempt's outcome as seen by the queue.
type Result struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Task performs a single dispatch attempt. The queue decides whether and when
// to call it again.
type Task func() (*Result, error)

// Outcome is the terminal disposition of a queued task.
type Outcome struct {
	Result   *Result
	Err      error
	Attempts int
}

// Succeeded reports whether the task ended with a 2xx response.
func (o Outcome) Succeeded() bool {
	return o.Err == nil && o.Result != nil && o.Result.StatusCode >= 200 && o.Result.StatusCode < 300
}

// Clock abstracts time so the queue's temporal behavior is testable.
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

type realClock struct{}

func (realClock) Now() time.Time        { return time.Now() }
func (realClock) Sleep(d time.Duration) { time.Sleep(d) }

type Options struct {
	PerSecond   int
	PerMinute   int
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Clock       Clock
	Logger      *logger.Logger
}

type queuedTask struct {
	run Task
	out chan Outcome
}

// Queue is the outbound request governor. Producers enqueue concurrently; the
// queue is unbounded and tasks are never cancelled once accepted.
type Queue struct {
	opts Options

	mu     sync.Mutex
	cond   *sync.Cond
	tasks  []*queuedTask
	sent   []time.Time // dispatch timestamps, oldest first, pruned past the minute window
	closed bool

	done chan struct{}
}

func New(opts Options) *Queue {
	if opts.PerSecond <= 0 {
		opts.PerSecond = 3
	}
	if opts.PerMinute <= 0 {
		opts.PerMinute = 60
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 4
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = 500 * time.Millisecond
	}
	if opts.MaxDelay <= 0 {
		opts.MaxDelay = 10 * time.Second
	}
	if opts.Clock == nil {
		opts.Clock = realClock{}
	}
	if opts.Logger == nil {
		opts.Logger = logger.New("info")
	}

	q := &Queue{
		opts: opts,
		done: make(chan struct{}),
	}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Start launches the single dispatch worker.
func (q *Queue) Start() {
	go q.run()
}

// Stop rejects new work and returns once the worker has drained the queue.
func (q *Queue) Stop() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.cond.Signal()
	<-q.done
}

// Len reports the number of tasks waiting behind the worker. The queue is
// unbounded; this is the saturation signal.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}

// Enqueue appends a task and returns a channel that receives its terminal
// outcome. The channel is buffered; callers may drop it for fire-and-forget.
func (q *Queue) Enqueue(task Task) <-chan Outcome {
	t := &queuedTask{run: task, out: make(chan Outcome, 1)}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		t.out <- Outcome{Err: fmt.Errorf("dispatch queue is stopped")}
		return t.out
	}
	q.tasks = append(q.tasks, t)
	q.mu.Unlock()
	q.cond.Signal()

	return t.out
}

func (q *Queue) run() {
	for {
		q.mu.Lock()
		for len(q.tasks) == 0 && !q.closed {
			q.cond.Wait()
		}
		if len(q.tasks) == 0 {
			q.mu.Unlock()
			close(q.done)
			return
		}
		t := q.tasks[0]
		q.tasks = q.tasks[1:]
		q.mu.Unlock()

		t.out <- q.process(t.run)
	}
}

// process runs one task to a terminal state: Queued -> Waiting -> Dispatched ->
// Succeeded, Retrying (back to Waiting) or Failed.
func (q *Queue) process(task Task) Outcome {
	var res *Result
	var err error
	attempt := 0

	for attempt < q.opts.MaxAttempts {
		attempt++
		q.waitTurn()

		res, err = task()
		if !retryable(res, err) {
			break
		}
		if attempt == q.opts.MaxAttempts {
			break
		}

		delay := q.backoff(attempt, res)
		q.opts.Logger.Warn("Dispatch attempt %d failed (%s), retrying in %s", attempt, attemptError(res, err), delay)
		q.opts.Clock.Sleep(delay)
	}

	out := Outcome{Result: res, Err: err, Attempts: attempt}
	if err == nil && res != nil && (res.StatusCode < 200 || res.StatusCode >= 300) {
		out.Err = fmt.Errorf("request rejected with status %d", res.StatusCode)
	}
	return out
}

// waitTurn blocks until dispatching now stays under both sliding windows, then
// records the dispatch timestamp. After every sleep the windows are
// re-evaluated; one wait does not guarantee safety.
func (q *Queue) waitTurn() {
	for {
		q.mu.Lock()
		now := q.opts.Clock.Now()
		q.prune(now)
		delay := q.requiredDelay(now)
		if delay <= 0 {
			q.sent = append(q.sent, now)
			q.mu.Unlock()
			return
		}
		q.mu.Unlock()
		q.opts.Clock.Sleep(delay)
	}
}

// prune drops timestamps older than the minute window. Lazy; called under mu.
func (q *Queue) prune(now time.Time) {
	cutoff := now.Add(-time.Minute)
	i := 0
	for i < len(q.sent) && !q.sent[i].After(cutoff) {
		i++
	}
	if i > 0 {
		q.sent = q.sent[i:]
	}
}

// requiredDelay computes the minimum wait so a dispatch at now would not push
// the trailing 1s count over PerSecond nor the trailing 60s count over
// PerMinute. Called under mu with the log already pruned.
func (q *Queue) requiredDelay(now time.Time) time.Duration {
	var delay time.Duration

	secCutoff := now.Add(-time.Second)
	inSecond := 0
	for i := len(q.sent) - 1; i >= 0; i-- {
		if q.sent[i].After(secCutoff) {
			inSecond++
		} else {
			break
		}
	}
	if inSecond >= q.opts.PerSecond {
		blocker := q.sent[len(q.sent)-q.opts.PerSecond]
		if wait := blocker.Add(time.Second).Sub(now); wait > delay {
			delay = wait
		}
	}

	if len(q.sent) >= q.opts.PerMinute {
		blocker := q.sent[len(q.sent)-q.opts.PerMinute]
		if wait := blocker.Add(time.Minute).Sub(now); wait > delay {
			delay = wait
		}
	}

	return delay
}

// backoff prefers a server-supplied Retry-After, else linear backoff with
// jitter capped at MaxDelay.
func (q *Queue) backoff(attempt int, res *Result) time.Duration {
	if res != nil {
		if ra := retryAfter(res.Header); ra > 0 {
			return ra
		}
	}
	delay := q.opts.BaseDelay*time.Duration(attempt) + time.Duration(rand.Int63n(int64(q.opts.BaseDelay)))
	if delay > q.opts.MaxDelay {
		delay = q.opts.MaxDelay
	}
	return delay
}

// retryable: transport errors, 429 and 5xx. Any other response is terminal.
func retryable(res *Result, err error) bool {
	if err != nil {
		return true
	}
	if res == nil {
		return true
	}
	return res.StatusCode == http.StatusTooManyRequests || res.StatusCode >= 500
}

func retryAfter(header http.Header) time.Duration {
	if header == nil {
		return 0
	}
	raw := header.Get("Retry-After")
	if raw == "" {
		return 0
	}
	seconds, err := strconv.Atoi(raw)
	if err != nil || seconds <= 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}

func attemptError(res *Result, err error) string {
	if err != nil {
		return err.Error()
	}
	return fmt.Sprintf("status %d", res.StatusCode)
}
