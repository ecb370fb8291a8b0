// Package review models the post-commit workflow of an ASPTT document.
//
// A State is a small tagged value. Trashed carries the state it was trashed
// from, so restore never has to guess.
package review

import (
	"errors"
	"fmt"
)

var ErrInvalidTransition = errors.New("invalid review transition")

type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
	StatusTrash    Status = "trash"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected, StatusTrash:
		return true
	default:
		return false
	}
}

type Action string

const (
	ActionApprove Action = "approve"
	ActionReject  Action = "reject"
	ActionTrash   Action = "trash"
	ActionRestore Action = "restore"
)

func (a Action) Valid() bool {
	switch a {
	case ActionApprove, ActionReject, ActionTrash, ActionRestore:
		return true
	default:
		return false
	}
}

// State is the review state. previous is only meaningful when status is trash
// and is never itself trash.
type State struct {
	status   Status
	previous Status
}

func Pending() State  { return State{status: StatusPending} }
func Approved() State { return State{status: StatusApproved} }
func Rejected() State { return State{status: StatusRejected} }

// Trashed wraps a live state. Trashing an already-trashed state keeps the
// original restore point.
func Trashed(previous State) State {
	if previous.status == StatusTrash {
		return previous
	}
	return State{status: StatusTrash, previous: previous.status}
}

// Parse rebuilds a State from stored meta values. An unknown status reads as
// pending; a missing or invalid restore point reads as pending too.
func Parse(status, previous string) State {
	switch Status(status) {
	case StatusApproved:
		return Approved()
	case StatusRejected:
		return Rejected()
	case StatusTrash:
		prev := Status(previous)
		if !prev.Valid() || prev == StatusTrash {
			prev = StatusPending
		}
		return State{status: StatusTrash, previous: prev}
	default:
		return Pending()
	}
}

func (s State) Status() Status {
	if s.status == "" {
		return StatusPending
	}
	return s.status
}

// Previous is the restore point, "" unless the state is trashed.
func (s State) Previous() Status {
	if s.Status() != StatusTrash {
		return ""
	}
	return s.previous
}

func (s State) IsTrashed() bool { return s.Status() == StatusTrash }

// Decided reports an operator decision a re-import must not overwrite.
func (s State) Decided() bool { return s.Status() != StatusPending }

func (s State) String() string {
	if s.IsTrashed() {
		return fmt.Sprintf("trash(%s)", s.previous)
	}
	return string(s.Status())
}

func (s State) Approve() (State, error) {
	switch s.Status() {
	case StatusPending, StatusApproved:
		return Approved(), nil
	default:
		return s, transitionError(s, ActionApprove)
	}
}

func (s State) Reject() (State, error) {
	switch s.Status() {
	case StatusPending, StatusRejected:
		return Rejected(), nil
	default:
		return s, transitionError(s, ActionReject)
	}
}

func (s State) Trash() (State, error) {
	if s.IsTrashed() {
		return s, transitionError(s, ActionTrash)
	}
	return Trashed(s), nil
}

func (s State) Restore() (State, error) {
	if !s.IsTrashed() {
		return s, transitionError(s, ActionRestore)
	}
	return Parse(string(s.previous), ""), nil
}

// Reset is the manual re-link transition: any state back to pending.
func (s State) Reset() State { return Pending() }

// Apply dispatches an action by name.
func (s State) Apply(a Action) (State, error) {
	switch a {
	case ActionApprove:
		return s.Approve()
	case ActionReject:
		return s.Reject()
	case ActionTrash:
		return s.Trash()
	case ActionRestore:
		return s.Restore()
	default:
		return s, fmt.Errorf("unknown review action %q: %w", a, ErrInvalidTransition)
	}
}

func transitionError(s State, a Action) error {
	return fmt.Errorf("%s from %s: %w", a, s, ErrInvalidTransition)
}
