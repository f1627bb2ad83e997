// Package engine drives upstream checks: it builds one task per
// subscription, runs the tasks through a bounded worker pool, commits the
// resulting events and cursors, and folds per-task outcomes into a run
// summary. Tasks are independent; a failing upstream never aborts its
// siblings, and only a store failure aborts the run.
package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/pkgwatch/pkgwatch/pkg/store"
	"github.com/pkgwatch/pkgwatch/pkg/upstream"
)

// Defaults for Config zero values.
const (
	DefaultWorkers     = 4
	DefaultTaskTimeout = 2 * time.Minute
	DefaultLookback    = 30 * 24 * time.Hour
	DefaultRunBudget   = 10 * time.Minute
)

// Config bounds a run. The worker count is deliberately small so that a
// large subscription set does not hammer third-party rate limits.
type Config struct {
	// Workers is the number of concurrent check tasks.
	Workers int

	// TaskTimeout bounds a single check, including its network I/O.
	TaskTimeout time.Duration

	// Lookback bounds the first-ever check of a subscription: with no
	// stored cursor the check starts at now minus Lookback instead of
	// backfilling unbounded history.
	Lookback time.Duration

	// RunBudget is the wall-clock budget of one run. Rate-limited tasks
	// are retried within it when their hint fits, otherwise carried to
	// the next run as deferred.
	RunBudget time.Duration
}

func (c Config) withDefaults() Config {
	if c.Workers <= 0 {
		c.Workers = DefaultWorkers
	}
	if c.TaskTimeout <= 0 {
		c.TaskTimeout = DefaultTaskTimeout
	}
	if c.Lookback <= 0 {
		c.Lookback = DefaultLookback
	}
	if c.RunBudget <= 0 {
		c.RunBudget = DefaultRunBudget
	}
	return c
}

// TaskState is the lifecycle of one subscription check.
type TaskState int

const (
	TaskPending TaskState = iota
	TaskFetching
	TaskCommitting
	TaskDone
	TaskDeferred
	TaskFailed
)

func (s TaskState) String() string {
	switch s {
	case TaskPending:
		return "pending"
	case TaskFetching:
		return "fetching"
	case TaskCommitting:
		return "committing"
	case TaskDone:
		return "done"
	case TaskDeferred:
		return "deferred"
	case TaskFailed:
		return "failed"
	}
	return fmt.Sprintf("TaskState(%d)", int(s))
}

// Task is one subscription check moving through the state machine.
type Task struct {
	Up  upstream.Upstream
	Sub upstream.Subscription

	State       TaskState
	Err         error
	NewEvents   int64
	NotModified bool

	// retryAfter is the backoff hint of a rate-limited task; notBefore
	// is the absolute time it may run again.
	retryAfter time.Duration
	notBefore  time.Time
}

// Failure identifies a task that ended in TaskFailed.
type Failure struct {
	Upstream     string
	Subscription int64
	Err          error
}

// Deferral identifies a rate-limited task carried to the next run.
type Deferral struct {
	Upstream     string
	Subscription int64
	RetryAfter   time.Duration
}

// Summary is the outcome of one run. A run always produces one, even when
// every task failed.
type Summary struct {
	RunID       string
	Started     time.Time
	Duration    time.Duration
	Checked     int
	NewEvents   int64
	NotModified int
	Failed      []Failure
	Deferred    []Deferral
}

// Engine wires the checker registry to the store.
type Engine struct {
	db  *store.DB
	reg *upstream.Registry
	cfg Config
	log *log.Logger

	now func() time.Time
}

// New builds an engine. A nil logger discards output.
func New(db *store.DB, reg *upstream.Registry, cfg Config, logger *log.Logger) *Engine {
	if logger == nil {
		logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	return &Engine{
		db:  db,
		reg: reg,
		cfg: cfg.withDefaults(),
		log: logger,
		now: time.Now,
	}
}

// Run checks every stored subscription once. The returned error is non-nil
// only for store failures; individual check failures land in the summary.
func (e *Engine) Run(ctx context.Context) (*Summary, error) {
	tasks, err := e.buildTasks()
	if err != nil {
		return nil, err
	}
	return e.RunTasks(ctx, tasks)
}

// buildTasks pairs each subscription with its upstream descriptor.
// Subscriptions whose upstream row disappeared are skipped with a warning;
// that is a cleanup race, not a check failure.
func (e *Engine) buildTasks() ([]*Task, error) {
	ups, err := e.db.ListUpstreams()
	if err != nil {
		return nil, fmt.Errorf("list upstreams: %w", err)
	}
	byName := make(map[string]upstream.Upstream, len(ups))
	for _, u := range ups {
		byName[u.Name] = u
	}

	subs, err := e.db.ListSubscriptions()
	if err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}

	tasks := make([]*Task, 0, len(subs))
	for _, sub := range subs {
		u, ok := byName[sub.Upstream]
		if !ok {
			e.log.Warn("subscription without upstream, skipping",
				"subscription", sub.ID, "upstream", sub.Upstream)
			continue
		}
		tasks = append(tasks, &Task{Up: u, Sub: sub})
	}
	return tasks, nil
}

// RunTasks drives the given tasks to a terminal state. Rate-limited tasks
// are retried within the run budget; everything else gets exactly one
// attempt per run.
func (e *Engine) RunTasks(ctx context.Context, tasks []*Task) (*Summary, error) {
	started := e.now()
	deadline := started.Add(e.cfg.RunBudget)
	sum := &Summary{
		RunID:   uuid.NewString(),
		Started: started,
		Checked: len(tasks),
	}
	e.log.Debug("run started", "run", sum.RunID, "tasks", len(tasks))

	var storeErr error
	queue := tasks
	for len(queue) > 0 && storeErr == nil && ctx.Err() == nil {
		retry, err := e.runPass(ctx, queue)
		if err != nil {
			storeErr = err
		}
		queue = e.scheduleRetries(ctx, retry, deadline, sum)
	}
	if ctx.Err() != nil {
		// Tasks the pool never reached stay pending; their cursors are
		// untouched so the next run retries them.
		for _, t := range queue {
			if t.State == TaskPending || t.State == TaskFetching {
				t.State = TaskFailed
				t.Err = ctx.Err()
			}
		}
	}

	for _, t := range tasks {
		switch t.State {
		case TaskDone:
			sum.NewEvents += t.NewEvents
			if t.NotModified {
				sum.NotModified++
			}
		case TaskFailed:
			sum.Failed = append(sum.Failed, Failure{
				Upstream:     t.Up.Name,
				Subscription: t.Sub.ID,
				Err:          t.Err,
			})
		case TaskDeferred:
			sum.Deferred = append(sum.Deferred, Deferral{
				Upstream:     t.Up.Name,
				Subscription: t.Sub.ID,
				RetryAfter:   t.retryAfter,
			})
		}
	}
	sum.Duration = e.now().Sub(started)

	e.log.Info("run finished",
		"run", sum.RunID,
		"checked", sum.Checked,
		"new", sum.NewEvents,
		"unchanged", sum.NotModified,
		"failed", len(sum.Failed),
		"deferred", len(sum.Deferred),
		"duration", sum.Duration)
	return sum, storeErr
}

// runPass pushes tasks through the worker pool once and returns the
// rate-limited ones. A store error stops the pass but lets in-flight
// workers drain first.
func (e *Engine) runPass(ctx context.Context, tasks []*Task) ([]*Task, error) {
	jobs := make(chan *Task)
	var wg sync.WaitGroup

	var (
		mu       sync.Mutex
		retry    []*Task
		storeErr error
	)
	for i := 0; i < e.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for t := range jobs {
				err := e.checkTask(ctx, t)
				mu.Lock()
				if err != nil && storeErr == nil {
					storeErr = err
				}
				if t.State == TaskDeferred {
					retry = append(retry, t)
				}
				mu.Unlock()
			}
		}()
	}

feed:
	for _, t := range tasks {
		select {
		case jobs <- t:
		case <-ctx.Done():
			break feed
		}
		mu.Lock()
		stop := storeErr != nil
		mu.Unlock()
		if stop {
			break
		}
	}
	close(jobs)
	wg.Wait()
	return retry, storeErr
}

// scheduleRetries splits rate-limited tasks into those retried within this
// run and those carried to the next one, and sleeps until the earliest
// retry is due.
func (e *Engine) scheduleRetries(ctx context.Context, retry []*Task, deadline time.Time, sum *Summary) []*Task {
	var due []*Task
	for _, t := range retry {
		if t.notBefore.Before(deadline) {
			due = append(due, t)
			continue
		}
		e.log.Info("deferred to next run",
			"run", sum.RunID, "upstream", t.Up.Name, "retry_after", t.retryAfter)
	}
	if len(due) == 0 {
		return nil
	}

	sort.Slice(due, func(i, j int) bool { return due[i].notBefore.Before(due[j].notBefore) })
	wait := due[0].notBefore.Sub(e.now())
	if wait > 0 {
		e.log.Debug("waiting for rate limit", "run", sum.RunID, "wait", wait)
		timer := time.NewTimer(wait)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return due
		}
	}
	for _, t := range due {
		t.State = TaskPending
		t.Err = nil
	}
	return due
}

// checkTask runs one task to a terminal state. The returned error is
// non-nil only when the store refused a commit; check failures are
// recorded on the task.
func (e *Engine) checkTask(ctx context.Context, t *Task) error {
	t.State = TaskFetching

	checker, err := e.reg.Dispatch(t.Sub.Type)
	if err != nil {
		t.State = TaskFailed
		t.Err = err
		e.log.Error("no checker for subscription",
			"upstream", t.Up.Name, "type", t.Sub.Type)
		return nil
	}

	cur, err := e.db.LoadCursor(t.Sub.ID)
	if err != nil {
		return fmt.Errorf("load cursor for %s: %w", t.Up.Name, err)
	}
	if cur.LastUpdate == 0 {
		cur.LastUpdate = e.now().Add(-e.cfg.Lookback).Unix()
	}

	cctx, cancel := context.WithTimeout(ctx, e.cfg.TaskTimeout)
	res, err := checker.Check(cctx, t.Up, t.Sub, cur)
	cancel()

	switch {
	case err == nil:
	case errors.Is(err, upstream.ErrNotModified):
		// Unchanged source. Persist the refreshed validator so the next
		// conditional request stays cheap, nothing else.
		t.NotModified = true
		if _, err := e.db.CommitCheck(t.Sub, upstream.Result{Cursor: res.Cursor}); err != nil {
			t.State = TaskFailed
			t.Err = err
			return fmt.Errorf("commit cursor for %s: %w", t.Up.Name, err)
		}
		t.State = TaskDone
		e.log.Debug("unchanged", "upstream", t.Up.Name, "category", t.Sub.Category)
		return nil
	default:
		if hint, ok := upstream.RetryAfterOf(err); ok {
			if hint <= 0 {
				hint = time.Minute
			}
			t.State = TaskDeferred
			t.Err = err
			t.retryAfter = hint
			t.notBefore = e.now().Add(hint)
			e.log.Warn("rate limited",
				"upstream", t.Up.Name, "retry_after", hint)
			return nil
		}
		t.State = TaskFailed
		t.Err = err
		if errors.Is(err, upstream.ErrAuthRequired) {
			e.log.Error("authentication required",
				"upstream", t.Up.Name, "url", t.Sub.URL, "err", err)
		} else {
			e.log.Warn("check failed",
				"upstream", t.Up.Name, "category", t.Sub.Category, "err", err)
		}
		return nil
	}

	t.State = TaskCommitting
	n, err := e.db.CommitCheck(t.Sub, res)
	if err != nil {
		t.State = TaskFailed
		t.Err = err
		return fmt.Errorf("commit events for %s: %w", t.Up.Name, err)
	}
	t.NewEvents = n
	t.State = TaskDone
	if n > 0 {
		e.log.Info("new events",
			"upstream", t.Up.Name, "category", t.Sub.Category, "count", n)
	}
	return nil
}
