package api

// TaskState represents the lifecycle state of a server side job.
type TaskState string

// Task states.
const (
	TaskPending   TaskState = "PENDING"
	TaskRunning   TaskState = "RUNNING"
	TaskSucceeded TaskState = "SUCCEEDED"
	TaskFailed    TaskState = "FAILED"
	TaskCancelled TaskState = "CANCELLED"
)

// IsTerminal returns whether no further transitions can happen.
func (s TaskState) IsTerminal() bool {
	return s == TaskSucceeded || s == TaskFailed || s == TaskCancelled
}

// Task is the document returned by job triggering calls and by their follower link.
type Task struct {
	Follower    string   `json:"follower" yaml:"follower"`
	Href        string   `json:"href,omitempty" yaml:"href,omitempty"`
	InProgress  bool     `json:"in_progress" yaml:"in_progress"`
	Success     *bool    `json:"success,omitempty" yaml:"success,omitempty"`
	Abort       bool     `json:"abort,omitempty" yaml:"abort,omitempty"`
	Progress    *int     `json:"progress,omitempty" yaml:"progress,omitempty"`
	LastMessage string   `json:"last_message" yaml:"last_message"`
	Resource    []string `json:"resource,omitempty" yaml:"resource,omitempty"`
	Link        []Link   `json:"link,omitempty" yaml:"link,omitempty"`
}

// State classifies the document. A document that hasn't started nor
// finished is pending.
func (t Task) State() TaskState {
	switch {
	case t.Abort:
		return TaskCancelled
	case t.InProgress:
		return TaskRunning
	case t.Success == nil:
		return TaskPending
	case *t.Success:
		return TaskSucceeded
	default:
		return TaskFailed
	}
}
