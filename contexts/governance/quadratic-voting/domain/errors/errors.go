package errors

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrUnauthenticated    = errors.New("caller identity could not be verified")
	ErrForbidden          = errors.New("caller is not allowed to perform this operation")
	ErrNotFound           = errors.New("not found")
	ErrDAOAlreadyExists   = errors.New("dao already exists for authority")
	ErrDuplicateVote      = errors.New("voter has already voted on this proposal")
	ErrOverflow           = errors.New("counter overflow")
	ErrBalanceUnavailable = errors.New("token balance unavailable")
	ErrOutboxConflict     = errors.New("outbox record conflict")
)

// Lookup failures wrap ErrNotFound so transports can match either form.
var (
	ErrDAONotFound      = fmt.Errorf("dao %w", ErrNotFound)
	ErrProposalNotFound = fmt.Errorf("proposal %w", ErrNotFound)
	ErrVoteNotFound     = fmt.Errorf("vote %w", ErrNotFound)
)
