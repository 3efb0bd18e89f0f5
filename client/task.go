package smc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/smcgo/smc/shared/api"
	"github.com/smcgo/smc/shared/logger"
)

// Defaults used when driving tasks.
const (
	DefaultPollInterval = 3 * time.Second
	DefaultPollRetries  = 3
	DefaultRetryDelay   = time.Second
)

// TaskUpdate is a snapshot of a task's progress.
type TaskUpdate struct {
	State api.TaskState

	// Progress in percent, -1 if the server didn't report any.
	Progress int

	Message string
}

// IsTerminal returns whether the task is done.
func (u TaskUpdate) IsTerminal() bool {
	return u.State.IsTerminal()
}

// Task tracks a server side job through its follower link.
type Task struct {
	conn     Fetcher
	follower string

	// Transient poll failures tolerated before giving up.
	Retries int

	// Delay between retries of a failed poll.
	RetryDelay time.Duration

	mu      sync.Mutex
	current api.Task
	update  TaskUpdate

	sleep func(ctx context.Context, d time.Duration) error
}

// StartTask builds a pending Task out of the response to a job triggering request.
func StartTask(conn Fetcher, resp *Result) (*Task, error) {
	doc := api.Task{}
	err := resp.Decode(&doc)
	if err != nil {
		return nil, fmt.Errorf("Failed decoding task: %w", err)
	}

	if doc.Follower == "" {
		return nil, errors.New("Task has no follower link")
	}

	t := &Task{
		conn:       conn,
		follower:   doc.Follower,
		Retries:    DefaultPollRetries,
		RetryDelay: DefaultRetryDelay,
		current:    doc,
		update: TaskUpdate{
			State:    api.TaskPending,
			Progress: progress(doc),
			Message:  doc.LastMessage,
		},
		sleep: sleepContext,
	}

	logger.Debug("Started task", logger.Ctx{"follower": t.follower})

	return t, nil
}

// Follower returns the href the task is polled on.
func (t *Task) Follower() string {
	return t.follower
}

// Last returns the most recent update.
func (t *Task) Last() TaskUpdate {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.update
}

func progress(doc api.Task) int {
	if doc.Progress == nil {
		return -1
	}

	return *doc.Progress
}

// Poll fetches the current state of the task once.
//
// Transient failures are retried up to Retries times. When they persist the
// error matches api.ErrTaskPollFailed.
func (t *Task) Poll(ctx context.Context) (TaskUpdate, error) {
	attempts := 0
	doc := api.Task{}

	op := func() error {
		attempts++

		resp, err := get(ctx, t.conn, t.follower, nil)
		if err != nil {
			// Client errors and cancellation won't get better by retrying.
			status, ok := api.StatusErrorMatch(err)
			if ok && status < http.StatusInternalServerError {
				return backoff.Permanent(err)
			}

			if ctx.Err() != nil {
				return backoff.Permanent(err)
			}

			logger.Debug("Task poll failed", logger.Ctx{"follower": t.follower, "attempt": attempts, "err": err})
			return err
		}

		doc = api.Task{}
		err = resp.Decode(&doc)
		if err != nil {
			return backoff.Permanent(err)
		}

		return nil
	}

	retries := t.Retries
	if retries < 0 {
		retries = 0
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewConstantBackOff(t.RetryDelay), uint64(retries)), ctx)
	err := backoff.Retry(op, policy)
	if err != nil {
		if ctx.Err() != nil {
			return t.Last(), ctx.Err()
		}

		return t.Last(), &api.TaskPollFailedError{Follower: t.follower, Attempts: attempts, Err: err}
	}

	update := TaskUpdate{
		State:    doc.State(),
		Progress: progress(doc),
		Message:  doc.LastMessage,
	}

	t.mu.Lock()
	t.current = doc
	t.update = update
	t.mu.Unlock()

	return update, nil
}

// Drive returns the sequence of task updates.
//
// Without waitForFinish the sequence holds exactly the current update and
// nothing is fetched. Otherwise the task is polled every interval until it
// reaches a terminal state. A failed or cancelled task's terminal update is
// yielded once, paired with an error matching api.ErrTaskRunFailed.
//
// Breaking out of the loop stops polling. The context is checked before
// every poll.
func (t *Task) Drive(ctx context.Context, waitForFinish bool, interval time.Duration) iter.Seq2[TaskUpdate, error] {
	return func(yield func(TaskUpdate, error) bool) {
		if !waitForFinish {
			yield(t.Last(), nil)
			return
		}

		for {
			err := ctx.Err()
			if err != nil {
				yield(t.Last(), err)
				return
			}

			update, err := t.Poll(ctx)
			if err != nil {
				yield(update, err)
				return
			}

			if update.IsTerminal() && update.State != api.TaskSucceeded {
				yield(update, &api.TaskRunFailedError{Follower: t.follower, State: string(update.State), Message: update.Message})
				return
			}

			if !yield(update, nil) || update.IsTerminal() {
				return
			}

			err = t.sleep(ctx, interval)
			if err != nil {
				yield(update, err)
				return
			}
		}
	}
}

// Wait drives the task to completion and returns its final update.
func (t *Task) Wait(ctx context.Context, interval time.Duration) (TaskUpdate, error) {
	last := t.Last()
	for update, err := range t.Drive(ctx, true, interval) {
		if err != nil {
			return update, err
		}

		last = update
	}

	return last, nil
}

// ResultLink returns the href of the task result, if the task produced one.
func (t *Task) ResultLink() (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, link := range t.current.Link {
		if link.Rel == "result" {
			return link.Href, true
		}
	}

	return "", false
}

// Download copies the result of a finished task into w.
func (t *Task) Download(ctx context.Context, w io.Writer) error {
	if t.Last().State != api.TaskSucceeded {
		return fmt.Errorf("Task isn't finished (state %s)", t.Last().State)
	}

	href, ok := t.ResultLink()
	if !ok {
		return &api.LinkNotFoundError{Relation: "result", Loaded: true}
	}

	resp, err := t.conn.Fetch(ctx, &Request{Method: http.MethodGet, Href: href, Headers: http.Header{"Accept": []string{"*/*"}}})
	if err != nil {
		return fmt.Errorf("Failed downloading task result: %w", err)
	}

	content := resp.Content
	if content == nil {
		content = resp.JSON
	}

	_, err = w.Write(content)
	return err
}

// sleepContext waits for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
