package types

import (
	"github.com/kmacleod/hockey-draft-backend/internal/draft"
)

// ClientMessage is the single envelope clients send over the websocket.
type ClientMessage struct {
	Type     string                  `json:"type"`
	LeagueID string                  `json:"leagueId,omitempty"`
	DraftID  string                  `json:"draftId,omitempty"`
	TeamID   string                  `json:"teamId,omitempty"`
	Player   *draft.PlayerDescriptor `json:"player,omitempty"`
}

// Client -> server message types.
const (
	MsgJoin       = "join"
	MsgGetSummary = "get-summary"
	MsgStartDraft = "start"
	MsgMakePick   = "make-pick"
)

// ServerMessage is the envelope for everything the server pushes: an event
// name plus its payload, mirroring the socket.io emit(name, data) shape the
// frontend already speaks.
type ServerMessage struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// Server -> client message types.
const (
	MsgJoined         = "joined"
	MsgDraftState     = "draft:state"
	MsgDraftStarted   = "draft:started"
	MsgPickMade       = "draft:pick-made"
	MsgPickExpired    = "draft:pick-expired"
	MsgDraftCompleted = "draft:completed"
	MsgDraftError     = "draft:error"
	MsgScoringUpdate  = "scoring:update"
	MsgScoringSummary = "scoring:summary"
	MsgScoringError   = "scoring:error"
)

type JoinedPayload struct {
	LeagueID string `json:"leagueId"`
}

type PickMadePayload struct {
	Pick          draft.Pick   `json:"pick"`
	Status        draft.Status `json:"status"`
	CurrentPick   int          `json:"currentPick"`
	CurrentTeamID string       `json:"currentTeamId"`
}

type PickExpiredPayload struct {
	DraftID    string `json:"draftId"`
	PickNumber int    `json:"pickNumber"`
	TeamID     string `json:"teamId"`
}

type DraftCompletedPayload struct {
	DraftID  string `json:"draftId"`
	LeagueID string `json:"leagueId"`
}
