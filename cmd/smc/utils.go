package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	smc "github.com/smcgo/smc/client"
	"github.com/smcgo/smc/shared/api"
)

// lookupElement accepts either an element href or a name, optionally narrowed by type.
func lookupElement(ctx context.Context, conn smc.Connection, object string, typ string) (*smc.Element, error) {
	if strings.Contains(object, "://") {
		return smc.ElementFromHref(conn, object, typ), nil
	}

	return smc.GetElement(ctx, conn, typ, object)
}

// driveTask follows a task, printing its progress unless quiet.
func driveTask(ctx context.Context, w io.Writer, task *smc.Task, wait bool, interval time.Duration, quiet bool) (smc.TaskUpdate, error) {
	last := task.Last()
	for update, err := range task.Drive(ctx, wait, interval) {
		if err != nil {
			if errors.Is(err, api.ErrTaskRunFailed) && !quiet {
				_, _ = fmt.Fprintln(w, formatUpdate(update))
			}

			return update, err
		}

		last = update
		if !quiet {
			_, _ = fmt.Fprintln(w, formatUpdate(update))
		}
	}

	if !wait && !quiet {
		_, _ = fmt.Fprintf(w, "Task started: %s\n", task.Follower())
	}

	return last, nil
}

func formatUpdate(update smc.TaskUpdate) string {
	line := string(update.State)
	if update.Progress >= 0 && update.State != api.TaskSucceeded {
		line = fmt.Sprintf("%s %d%%", line, update.Progress)
	}

	if update.Message != "" {
		line = fmt.Sprintf("%s: %s", line, update.Message)
	}

	return line
}

// normalizeYAML turns the maps decoded by yaml.v2 into JSON compatible ones.
func normalizeYAML(v any) any {
	switch value := v.(type) {
	case map[any]any:
		out := make(map[string]any, len(value))
		for k, entry := range value {
			out[fmt.Sprint(k)] = normalizeYAML(entry)
		}

		return out
	case map[string]any:
		out := make(map[string]any, len(value))
		for k, entry := range value {
			out[k] = normalizeYAML(entry)
		}

		return out
	case []any:
		out := make([]any, len(value))
		for i, entry := range value {
			out[i] = normalizeYAML(entry)
		}

		return out
	default:
		return value
	}
}
