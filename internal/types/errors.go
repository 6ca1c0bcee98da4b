package types

import (
	"errors"

	"github.com/kmacleod/hockey-draft-backend/internal/draft"
	"github.com/kmacleod/hockey-draft-backend/internal/store"
)

// ErrorPayload is the structured error surfaced to the originating caller.
type ErrorPayload struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// Error kinds.
const (
	KindInvalidState  = "InvalidStateError"
	KindOutOfTurn     = "OutOfTurnError"
	KindDuplicatePick = "DuplicatePickError"
	KindNotFound      = "NotFoundError"
	KindStaleState    = "StaleStateError"
	KindInternal      = "InternalError"
)

// Classify maps a domain error onto its wire kind.
func Classify(err error) ErrorPayload {
	kind := KindInternal
	switch {
	case errors.Is(err, draft.ErrInvalidState):
		kind = KindInvalidState
	case errors.Is(err, draft.ErrOutOfTurn):
		kind = KindOutOfTurn
	case errors.Is(err, draft.ErrDuplicatePick):
		kind = KindDuplicatePick
	case errors.Is(err, store.ErrNotFound):
		kind = KindNotFound
	case errors.Is(err, store.ErrStaleState):
		kind = KindStaleState
	}
	return ErrorPayload{Kind: kind, Message: err.Error()}
}
