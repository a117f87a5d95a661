package service

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedMove matches any *MalformedMoveError.
	ErrMalformedMove = errors.New("malformed move")

	// ErrEmbeddingProvider matches any *EmbeddingError.
	ErrEmbeddingProvider = errors.New("embedding provider error")
)

// MalformedMoveError reports a move without usable text. Skipping the move would
// shift every later index, so the whole batch fails instead.
type MalformedMoveError struct {
	EpisodeID string
	Index     int
	Err       error
}

func (e *MalformedMoveError) Error() string {
	return fmt.Sprintf("episode %q move %d: %v", e.EpisodeID, e.Index, e.Err)
}

func (e *MalformedMoveError) Unwrap() error { return e.Err }

// Is reports whether target is ErrMalformedMove.
func (e *MalformedMoveError) Is(target error) bool { return target == ErrMalformedMove }

// EmbeddingError reports a provider failure, or provider output that cannot be
// scored (wrong count, wrong or mixed dimensions, non-finite values).
type EmbeddingError struct {
	EpisodeID string
	Err       error
}

func (e *EmbeddingError) Error() string {
	return fmt.Sprintf("embed episode %q: %v", e.EpisodeID, e.Err)
}

func (e *EmbeddingError) Unwrap() error { return e.Err }

// Is reports whether target is ErrEmbeddingProvider.
func (e *EmbeddingError) Is(target error) bool { return target == ErrEmbeddingProvider }
