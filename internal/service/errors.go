package service

import "errors"

var (
	// ErrNotSignedIn is returned when an operation needs an authenticated user.
	ErrNotSignedIn = errors.New("not signed in")
	// ErrTitleRequired is returned when a task title is empty after trimming.
	ErrTitleRequired = errors.New("please enter a task title")
	// ErrInvalidDraft wraps field validation failures other than the title.
	ErrInvalidDraft = errors.New("invalid task")
	// ErrSaveInProgress is returned while another save for the same user is running.
	ErrSaveInProgress = errors.New("save already in progress")
	// ErrTaskNotFound is returned for missing tasks and tasks of other users.
	ErrTaskNotFound = errors.New("task not found")
	// ErrTriggerInPast is returned when a notification would fire in the past.
	ErrTriggerInPast = errors.New("notification trigger is in the past")

	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailTaken         = errors.New("email already registered")
	ErrPasswordTooShort   = errors.New("password must be at least 6 characters")
	ErrMissingFields      = errors.New("please fill in all fields")
)
