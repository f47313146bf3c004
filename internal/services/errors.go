package services

import "fmt"

// ValidationError rejects a request whose arguments cannot be normalized
// into a usable handle.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

// RejectReason is the closed set of reasons a resolved handle is out of
// scope. Collaborator failures are never mapped onto these.
type RejectReason int

const (
	// ReasonNoEdits: no account or no in-scope contributions.
	ReasonNoEdits RejectReason = iota
	// ReasonNoAccount: contributions exist but no resolvable account.
	ReasonNoAccount
	// ReasonBot: automated account, excluded from similarity.
	ReasonBot
)

// UnknownUserError carries the user-facing reason a handle cannot be
// queried.
type UnknownUserError struct {
	Handle string
	Reason RejectReason
}

func (e *UnknownUserError) Error() string {
	switch e.Reason {
	case ReasonBot:
		return fmt.Sprintf("User `%s` is a bot and therefore out of scope.", e.Handle)
	case ReasonNoAccount:
		return fmt.Sprintf("User `%s` does not appear to have an account in English Wikipedia.", e.Handle)
	default:
		return fmt.Sprintf("User `%s` does not appear to have an account (or edits in scope) in English Wikipedia.", e.Handle)
	}
}
