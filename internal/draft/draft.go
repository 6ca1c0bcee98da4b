package draft

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
)

var ErrInvalidState = errors.New("action not allowed in current draft state")
var ErrOutOfTurn = errors.New("not this team's turn to pick")
var ErrDuplicatePick = errors.New("player already drafted")

type Status string

const (
	StatusNotStarted Status = "not_started"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
)

// PlayerDescriptor identifies the NHL player being drafted.
type PlayerDescriptor struct {
	NHLPlayerID int64  `json:"nhlPlayerId"`
	PlayerName  string `json:"playerName"`
	Position    string `json:"position"`
	NHLTeam     string `json:"nhlTeam"`
}

type Pick struct {
	ID          string    `json:"id"`
	DraftID     string    `json:"draftId"`
	PickNumber  int       `json:"pickNumber"`
	TeamID      string    `json:"teamId"`
	NHLPlayerID int64     `json:"nhlPlayerId"`
	PlayerName  string    `json:"playerName"`
	Position    string    `json:"position"`
	NHLTeam     string    `json:"nhlTeam"`
	Timestamp   time.Time `json:"timestamp"`
}

// State is the full draft state. Transition functions treat it as immutable:
// they return a new State and never modify their input.
type State struct {
	ID          string   `json:"id"`
	LeagueID    string   `json:"leagueId"`
	Status      Status   `json:"status"`
	CurrentPick int      `json:"currentPick"` // 1-based, valid while in_progress
	PickOrder   []string `json:"pickOrder"`   // cyclic team sequence
	TotalPicks  int      `json:"totalPicks"`  // roster slots x team count
	Picks       []Pick   `json:"picks"`
}

func New(id, leagueID string, pickOrder []string, totalPicks int) State {
	return State{
		ID:         id,
		LeagueID:   leagueID,
		Status:     StatusNotStarted,
		PickOrder:  slices.Clone(pickOrder),
		TotalPicks: totalPicks,
	}
}

// CurrentTeamID is the team on the clock, derived from the cyclic pick order.
// Empty unless the draft is in progress.
func (s State) CurrentTeamID() string {
	if s.Status != StatusInProgress || len(s.PickOrder) == 0 {
		return ""
	}
	return s.PickOrder[(s.CurrentPick-1)%len(s.PickOrder)]
}

func (s State) Clone() State {
	n := s
	n.PickOrder = slices.Clone(s.PickOrder)
	n.Picks = slices.Clone(s.Picks)
	return n
}

type EventType string

const (
	EvtDraftStarted   EventType = "draft:started"
	EvtPickMade       EventType = "draft:pick-made"
	EvtDraftCompleted EventType = "draft:completed"
)

type Event struct {
	Type EventType
	Pick *Pick
}

// Start moves a draft from not_started to in_progress and puts the first
// team in the pick order on the clock.
func Start(s State) (State, []Event, error) {
	if s.Status != StatusNotStarted {
		return s, nil, fmt.Errorf("cannot start draft in status %q: %w", s.Status, ErrInvalidState)
	}
	if len(s.PickOrder) == 0 {
		return s, nil, fmt.Errorf("cannot start draft with empty pick order: %w", ErrInvalidState)
	}
	if s.TotalPicks <= 0 {
		return s, nil, fmt.Errorf("cannot start draft with no pick slots: %w", ErrInvalidState)
	}

	n := s.Clone()
	n.Status = StatusInProgress
	n.CurrentPick = 1
	return n, []Event{{Type: EvtDraftStarted}}, nil
}

// ApplyPick validates a pick attempt against the current state and, on
// success, appends the pick and advances the turn. The draft transitions to
// completed when the configured pick count is reached.
func ApplyPick(s State, teamID string, player PlayerDescriptor, now time.Time) (State, Pick, []Event, error) {
	if s.Status != StatusInProgress {
		return s, Pick{}, nil, fmt.Errorf("draft is %q, not in progress: %w", s.Status, ErrInvalidState)
	}
	if current := s.CurrentTeamID(); teamID != current {
		return s, Pick{}, nil, fmt.Errorf("team %q attempted pick %d, on the clock: %q: %w",
			teamID, s.CurrentPick, current, ErrOutOfTurn)
	}
	for _, p := range s.Picks {
		if p.NHLPlayerID == player.NHLPlayerID {
			return s, Pick{}, nil, fmt.Errorf("player %d taken at pick %d: %w",
				player.NHLPlayerID, p.PickNumber, ErrDuplicatePick)
		}
	}

	pick := Pick{
		ID:          uuid.NewString(),
		DraftID:     s.ID,
		PickNumber:  s.CurrentPick,
		TeamID:      teamID,
		NHLPlayerID: player.NHLPlayerID,
		PlayerName:  player.PlayerName,
		Position:    player.Position,
		NHLTeam:     player.NHLTeam,
		Timestamp:   now,
	}

	n := s.Clone()
	n.Picks = append(n.Picks, pick)
	n.CurrentPick++

	events := []Event{{Type: EvtPickMade, Pick: &pick}}
	if n.CurrentPick > n.TotalPicks {
		n.Status = StatusCompleted
		events = append(events, Event{Type: EvtDraftCompleted})
	}
	return n, pick, events, nil
}
