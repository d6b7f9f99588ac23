package model

import (
	"sync"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/ragguard/pkg/domain/types"
)

// Turn is one entry of a conversation transcript
type Turn struct {
	Role    types.Role
	Content string
}

// History is the append-only transcript of one conversation session.
// Append and Sequence are safe to call from several goroutines. Callers
// that append a question and its answer hold Exchange across both so that
// concurrent exchanges on one session never interleave.
type History struct {
	exchange sync.Mutex
	mu       sync.Mutex
	turns    []Turn
}

// NewHistory creates a history seeded with a copy of turns
func NewHistory(turns ...Turn) *History {
	h := &History{}
	h.turns = append(h.turns, turns...)
	return h
}

// Exchange blocks until no other exchange holds the history and returns
// the function that releases it
func (h *History) Exchange() (release func()) {
	h.exchange.Lock()
	return h.exchange.Unlock
}

// Append adds a turn to the end of the transcript
func (h *History) Append(turn Turn) error {
	if !turn.Role.IsValid() {
		return goerr.Wrap(ErrInvalidArgument, "invalid turn role", goerr.V("role", turn.Role))
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.turns = append(h.turns, turn)
	return nil
}

// Sequence returns a copy of the turns in chronological order
func (h *History) Sequence() []Turn {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]Turn, len(h.turns))
	copy(out, h.turns)
	return out
}

// Len returns the number of turns
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.turns)
}
