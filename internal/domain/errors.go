package domain

import "errors"

var (
	// ErrConfiguration marks a malformed or incomplete ruleset. It is
	// fatal at load time: a broken decision table must never be
	// silently defaulted.
	ErrConfiguration = errors.New("invalid ruleset configuration")

	// ErrInputFormat marks malformed screening input, such as a missing
	// transaction or history timestamp. It fails the single evaluation
	// call; the caller must treat the transaction as unassessed rather
	// than approved.
	ErrInputFormat = errors.New("invalid screening input")
)
