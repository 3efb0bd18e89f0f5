package smc

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smcgo/smc/shared/api"
)

const followerHref = "https://smc/6.1/task/42"

func running(t *testing.T, progress int) fakeResponse {
	return reply(t, map[string]any{"follower": followerHref, "in_progress": true, "progress": progress})
}

func finished(t *testing.T, success bool, message string) fakeResponse {
	return reply(t, map[string]any{
		"follower":     followerHref,
		"in_progress":  false,
		"success":      success,
		"progress":     100,
		"last_message": message,
		"link":         links("result", followerHref+"/result"),
	})
}

// newTestTask returns a started task whose sleeps are recorded instead of waited.
func newTestTask(t *testing.T, conn *fakeConn) (*Task, *[]time.Duration) {
	task, err := StartTask(conn, accepted(t, map[string]any{"follower": followerHref}).result)
	require.NoError(t, err)

	slept := []time.Duration{}
	task.RetryDelay = 0
	task.sleep = func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		return ctx.Err()
	}

	return task, &slept
}

func TestStartTaskRequiresFollower(t *testing.T) {
	_, err := StartTask(newFakeConn(t), reply(t, map[string]any{"in_progress": true}).result)
	assert.Error(t, err)

	_, err = StartTask(newFakeConn(t), &Result{StatusCode: http.StatusAccepted})
	assert.Error(t, err)
}

func TestDriveWithoutWaiting(t *testing.T) {
	conn := newFakeConn(t)
	task, slept := newTestTask(t, conn)

	updates := []TaskUpdate{}
	for update, err := range task.Drive(context.Background(), false, time.Second) {
		require.NoError(t, err)
		updates = append(updates, update)
	}

	require.Len(t, updates, 1)
	assert.Equal(t, api.TaskPending, updates[0].State)
	assert.Equal(t, -1, updates[0].Progress)
	assert.Empty(t, *slept)
	assert.Equal(t, 0, conn.calls(http.MethodGet, followerHref))
}

func TestDriveUntilSuccess(t *testing.T) {
	conn := newFakeConn(t)
	conn.on(http.MethodGet, followerHref, running(t, 10), running(t, 60), finished(t, true, "Done"))
	task, slept := newTestTask(t, conn)

	states := []api.TaskState{}
	progress := []int{}
	for update, err := range task.Drive(context.Background(), true, 2*time.Second) {
		require.NoError(t, err)
		states = append(states, update.State)
		progress = append(progress, update.Progress)
	}

	assert.Equal(t, []api.TaskState{api.TaskRunning, api.TaskRunning, api.TaskSucceeded}, states)
	assert.Equal(t, []int{10, 60, 100}, progress)
	assert.Equal(t, []time.Duration{2 * time.Second, 2 * time.Second}, *slept)
	assert.Equal(t, 3, conn.calls(http.MethodGet, followerHref))
	assert.Equal(t, api.TaskSucceeded, task.Last().State)
}

func TestDriveFailedTask(t *testing.T) {
	conn := newFakeConn(t)
	conn.on(http.MethodGet, followerHref, running(t, 50), finished(t, false, "Policy install failed"))
	task, _ := newTestTask(t, conn)

	updates := []TaskUpdate{}
	var last error
	for update, err := range task.Drive(context.Background(), true, time.Second) {
		updates = append(updates, update)
		last = err
	}

	require.Len(t, updates, 2)
	assert.Equal(t, api.TaskRunning, updates[0].State)
	assert.Equal(t, api.TaskFailed, updates[1].State)
	assert.Equal(t, "Policy install failed", updates[1].Message)

	assert.ErrorIs(t, last, api.ErrTaskRunFailed)

	var failed *api.TaskRunFailedError
	require.True(t, errors.As(last, &failed))
	assert.Equal(t, "Policy install failed", failed.Message)
	assert.Equal(t, followerHref, failed.Follower)
}

func TestDriveCancelledTask(t *testing.T) {
	conn := newFakeConn(t)
	conn.on(http.MethodGet, followerHref, reply(t, map[string]any{"follower": followerHref, "abort": true}))
	task, _ := newTestTask(t, conn)

	count := 0
	for update, err := range task.Drive(context.Background(), true, time.Second) {
		count++
		assert.Equal(t, api.TaskCancelled, update.State)
		assert.ErrorIs(t, err, api.ErrTaskRunFailed)
	}

	assert.Equal(t, 1, count)

	conn = newFakeConn(t)
	conn.on(http.MethodGet, followerHref, reply(t, map[string]any{"follower": followerHref, "abort": true}))
	task, _ = newTestTask(t, conn)

	_, err := task.Wait(context.Background(), time.Second)
	assert.ErrorIs(t, err, api.ErrTaskRunFailed)
	assert.Equal(t, api.TaskCancelled, task.Last().State)
}

func TestPollRetriesThenFails(t *testing.T) {
	conn := newFakeConn(t)
	conn.on(http.MethodGet, followerHref, transportFailure("1"), transportFailure("2"), transportFailure("3"))
	task, _ := newTestTask(t, conn)
	task.Retries = 2

	_, err := task.Poll(context.Background())
	assert.ErrorIs(t, err, api.ErrTaskPollFailed)

	var pollErr *api.TaskPollFailedError
	require.True(t, errors.As(err, &pollErr))
	assert.Equal(t, 3, pollErr.Attempts)
	assert.Equal(t, 3, conn.calls(http.MethodGet, followerHref))
	assert.Equal(t, api.TaskPending, task.Last().State)
}

func TestPollRecoversFromTransientFailure(t *testing.T) {
	conn := newFakeConn(t)
	conn.on(http.MethodGet, followerHref, failure(http.StatusServiceUnavailable, "Busy"), finished(t, true, ""))
	task, _ := newTestTask(t, conn)

	update, err := task.Poll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, api.TaskSucceeded, update.State)
	assert.Equal(t, 2, conn.calls(http.MethodGet, followerHref))
}

func TestPollDoesNotRetryClientErrors(t *testing.T) {
	conn := newFakeConn(t)
	conn.on(http.MethodGet, followerHref, failure(http.StatusNotFound, "Unknown task"))
	task, _ := newTestTask(t, conn)

	_, err := task.Poll(context.Background())
	assert.ErrorIs(t, err, api.ErrTaskPollFailed)
	assert.ErrorIs(t, err, api.ErrNotFound)
	assert.Equal(t, 1, conn.calls(http.MethodGet, followerHref))
}

func TestDriveStopsWhenCallerBreaks(t *testing.T) {
	conn := newFakeConn(t)
	conn.on(http.MethodGet, followerHref, running(t, 10))
	task, slept := newTestTask(t, conn)

	for update := range task.Drive(context.Background(), true, time.Second) {
		assert.Equal(t, api.TaskRunning, update.State)
		break
	}

	assert.Equal(t, 1, conn.calls(http.MethodGet, followerHref))
	assert.Empty(t, *slept)
}

func TestDriveChecksContext(t *testing.T) {
	conn := newFakeConn(t)
	conn.on(http.MethodGet, followerHref, running(t, 10))
	task, _ := newTestTask(t, conn)

	ctx, cancel := context.WithCancel(context.Background())
	task.sleep = func(context.Context, time.Duration) error {
		cancel()
		return nil
	}

	var last error
	count := 0
	for _, err := range task.Drive(ctx, true, time.Second) {
		count++
		last = err
	}

	assert.ErrorIs(t, last, context.Canceled)
	assert.Equal(t, 2, count)
	assert.Equal(t, 1, conn.calls(http.MethodGet, followerHref))
}

func TestDownloadResult(t *testing.T) {
	conn := newFakeConn(t)
	conn.on(http.MethodGet, followerHref, finished(t, true, ""))
	conn.on(http.MethodGet, followerHref+"/result", fakeResponse{result: &Result{StatusCode: http.StatusOK, Content: []byte("PK")}})
	task, _ := newTestTask(t, conn)

	buf := &bytes.Buffer{}
	assert.Error(t, task.Download(context.Background(), buf))

	_, err := task.Wait(context.Background(), time.Second)
	require.NoError(t, err)

	href, ok := task.ResultLink()
	require.True(t, ok)
	assert.Equal(t, followerHref+"/result", href)

	require.NoError(t, task.Download(context.Background(), buf))
	assert.Equal(t, "PK", buf.String())
}
