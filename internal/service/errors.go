package service

import (
	"errors"

	"koboland/internal/repository"
)

var (
	// ErrTargetNotFound means the (kind, id) pair resolves to nothing.
	ErrTargetNotFound = errors.New("target not found")

	// ErrUnknownTargetKind means the kind itself is not registered.
	ErrUnknownTargetKind = repository.ErrUnknownTargetKind

	// ErrNothingRequested means neither the vote type nor the share flag was
	// specified.
	ErrNothingRequested = errors.New("no vote change requested")

	// ErrInvalidVoteType means the requested vote type is not LIKE, DISLIKE
	// or NO_VOTE.
	ErrInvalidVoteType = errors.New("invalid vote type")

	// ErrConflictRetryExhausted means the storage kept conflicting past the
	// retry budget. Safe for the caller to retry.
	ErrConflictRetryExhausted = errors.New("storage conflict retry exhausted")

	// ErrNotAuthor means the caller does not own the content item.
	ErrNotAuthor = errors.New("not the author")
)
