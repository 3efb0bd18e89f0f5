package api

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound is returned when a resource or link doesn't exist server side.
	ErrNotFound = errors.New("Not found")

	// ErrNotLoaded is returned when links are requested before the representation was fetched.
	ErrNotLoaded = errors.New("Representation not loaded")

	// ErrStaleElement is returned when the entity tag precondition of a mutation failed.
	ErrStaleElement = errors.New("Element was modified since it was last loaded")

	// ErrElementDeleted is returned for any operation on an element after it was deleted.
	ErrElementDeleted = errors.New("Element has been deleted")

	// ErrTaskRunFailed is matched by TaskRunFailedError.
	ErrTaskRunFailed = errors.New("Task failed")

	// ErrTaskPollFailed is matched by TaskPollFailedError.
	ErrTaskPollFailed = errors.New("Task polling failed")

	// ErrValidation is matched by ValidationError.
	ErrValidation = errors.New("Invalid value")

	// ErrUnsupportedFeature is matched by UnsupportedFeatureError.
	ErrUnsupportedFeature = errors.New("Unsupported feature")
)

// LinkNotFoundError is returned when a relation can't be found in an element's links.
type LinkNotFoundError struct {
	Relation string

	// Loaded is false when the links were never fetched, true when the
	// relation is genuinely absent from the loaded representation.
	Loaded bool
}

// Error implements error.
func (e *LinkNotFoundError) Error() string {
	if !e.Loaded {
		return fmt.Sprintf("Link %q requested before the representation was loaded", e.Relation)
	}

	return fmt.Sprintf("Link %q not found", e.Relation)
}

// Is lets errors.Is match ErrNotFound (absent relation) or ErrNotLoaded.
func (e *LinkNotFoundError) Is(target error) bool {
	if e.Loaded {
		return target == ErrNotFound
	}

	return target == ErrNotLoaded
}

// TaskRunFailedError is returned when a task reached a failed or cancelled terminal state.
type TaskRunFailedError struct {
	Follower string
	State    string
	Message  string
}

// Error implements error.
func (e *TaskRunFailedError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("Task %s", strings.ToLower(e.State))
	}

	return fmt.Sprintf("Task %s: %s", strings.ToLower(e.State), e.Message)
}

// Is implements errors.Is.
func (e *TaskRunFailedError) Is(target error) bool {
	return target == ErrTaskRunFailed
}

// TaskPollFailedError is returned when polling a follower link kept failing at the transport level.
type TaskPollFailedError struct {
	Follower string
	Attempts int
	Err      error
}

// Error implements error.
func (e *TaskPollFailedError) Error() string {
	return fmt.Sprintf("Failed polling task %q after %d attempts: %v", e.Follower, e.Attempts, e.Err)
}

// Is implements errors.Is.
func (e *TaskPollFailedError) Is(target error) bool {
	return target == ErrTaskPollFailed
}

// Unwrap returns the last transport error.
func (e *TaskPollFailedError) Unwrap() error {
	return e.Err
}

// ValidationError is returned when a setter receives a value outside of its allowed set.
type ValidationError struct {
	Field   string
	Value   any
	Allowed []string
}

// Error implements error.
func (e *ValidationError) Error() string {
	if len(e.Allowed) == 0 {
		return fmt.Sprintf("Invalid value %v for %q", e.Value, e.Field)
	}

	return fmt.Sprintf("Invalid value %v for %q (allowed: %s)", e.Value, e.Field, strings.Join(e.Allowed, ", "))
}

// Is implements errors.Is.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// UnsupportedFeatureError is returned when a resource type doesn't offer a feature.
type UnsupportedFeatureError struct {
	Feature string
	Type    string
}

// Error implements error.
func (e *UnsupportedFeatureError) Error() string {
	if e.Type == "" {
		return fmt.Sprintf("Feature %q isn't supported by this element", e.Feature)
	}

	return fmt.Sprintf("Feature %q isn't supported by element type %q", e.Feature, e.Type)
}

// Is implements errors.Is.
func (e *UnsupportedFeatureError) Is(target error) bool {
	return target == ErrUnsupportedFeature
}

// AttributeNotPresentError is returned when a loaded representation lacks a field.
type AttributeNotPresentError struct {
	Name string
	Type string
}

// Error implements error.
func (e *AttributeNotPresentError) Error() string {
	if e.Type == "" {
		return fmt.Sprintf("Attribute %q not present", e.Name)
	}

	return fmt.Sprintf("Attribute %q not present on element type %q", e.Name, e.Type)
}

// Is lets errors.Is match ErrNotFound.
func (e *AttributeNotPresentError) Is(target error) bool {
	return target == ErrNotFound
}
