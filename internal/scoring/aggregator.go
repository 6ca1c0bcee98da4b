package scoring

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/kmacleod/hockey-draft-backend/internal/types"
)

var ErrBadEvent = errors.New("scoring event missing league or roster id")

// Event is one incoming scoring event from the upstream feed. Points may be
// zero, in which case the default points table decides the delta.
type Event struct {
	LeagueID  string  `json:"leagueId"`
	RosterID  string  `json:"rosterId"`
	PlayerID  int64   `json:"playerId"`
	GameID    int64   `json:"gameId"`
	EventType string  `json:"eventType"`
	Points    float64 `json:"points"`
	Sequence  int64   `json:"sequence"`
}

// DedupKey uniquely identifies an upstream event so redelivery never double
// counts. Correction events carry a fresh sequence and therefore a new key.
func (e Event) DedupKey() string {
	return fmt.Sprintf("%s|%d|%d|%s|%d", e.RosterID, e.PlayerID, e.GameID, e.EventType, e.Sequence)
}

// Summary is a roster's running total for the current scoring period.
type Summary struct {
	RosterID    string  `json:"rosterId"`
	TeamName    string  `json:"teamName"`
	TotalPoints float64 `json:"totalPoints"`
}

// Update is the delta pushed to a league room after a successful apply.
type Update struct {
	LeagueID    string  `json:"leagueId"`
	RosterID    string  `json:"rosterId"`
	PlayerID    int64   `json:"playerId"`
	EventType   string  `json:"eventType"`
	Points      float64 `json:"points"`
	TotalPoints float64 `json:"totalPoints"`
}

// Publisher fans an event out to a league room.
type Publisher interface {
	Broadcast(leagueID string, msg types.ServerMessage)
}

// Aggregator accumulates per-roster point totals per league. Each league has
// its own lock, so scoring for different leagues proceeds in parallel while
// same-league applies are serialized.
type Aggregator struct {
	mu      sync.RWMutex
	leagues map[string]*leagueScores
	rooms   Publisher
	log     *zap.Logger
}

type leagueScores struct {
	mu      sync.Mutex
	rosters map[string]*rosterScore
	applied map[string]struct{} // dedup keys seen this period
}

type rosterScore struct {
	teamName string
	total    float64
}

func NewAggregator(rooms Publisher, log *zap.Logger) *Aggregator {
	return &Aggregator{
		leagues: make(map[string]*leagueScores),
		rooms:   rooms,
		log:     log,
	}
}

// UpsertRoster registers (or renames) a roster so summaries carry its team
// name. Rosters unseen at event time are created lazily with an empty name.
func (a *Aggregator) UpsertRoster(leagueID, rosterID, teamName string) {
	ls := a.league(leagueID)
	ls.mu.Lock()
	defer ls.mu.Unlock()
	rs := ls.rosters[rosterID]
	if rs == nil {
		rs = &rosterScore{}
		ls.rosters[rosterID] = rs
	}
	rs.teamName = teamName
}

// ApplyEvent adds the event's point delta to the roster's running total and
// broadcasts the update. Redelivery of an already-applied event is a no-op:
// the current total is returned with applied=false and nothing is broadcast.
func (a *Aggregator) ApplyEvent(ev Event) (total float64, applied bool, err error) {
	if ev.LeagueID == "" || ev.RosterID == "" {
		return 0, false, ErrBadEvent
	}
	delta := ev.Points
	if delta == 0 {
		delta = PointsFor(ev.EventType)
	}

	ls := a.league(ev.LeagueID)
	ls.mu.Lock()
	rs := ls.rosters[ev.RosterID]
	if rs == nil {
		rs = &rosterScore{}
		ls.rosters[ev.RosterID] = rs
	}
	key := ev.DedupKey()
	if _, dup := ls.applied[key]; dup || delta == 0 {
		total = rs.total
		ls.mu.Unlock()
		if dup {
			a.log.Debug("ignoring redelivered scoring event",
				zap.String("league_id", ev.LeagueID), zap.String("dedup_key", key))
		}
		return total, false, nil
	}
	ls.applied[key] = struct{}{}
	rs.total += delta
	total = rs.total
	ls.mu.Unlock()

	a.rooms.Broadcast(ev.LeagueID, types.ServerMessage{
		Type: types.MsgScoringUpdate,
		Data: Update{
			LeagueID:    ev.LeagueID,
			RosterID:    ev.RosterID,
			PlayerID:    ev.PlayerID,
			EventType:   ev.EventType,
			Points:      delta,
			TotalPoints: total,
		},
	})
	return total, true, nil
}

// GetSummary returns the league leaderboard: highest total first, ties broken
// by team name then roster id.
func (a *Aggregator) GetSummary(leagueID string) []Summary {
	a.mu.RLock()
	ls := a.leagues[leagueID]
	a.mu.RUnlock()
	if ls == nil {
		return []Summary{}
	}

	ls.mu.Lock()
	out := make([]Summary, 0, len(ls.rosters))
	for id, rs := range ls.rosters {
		out = append(out, Summary{RosterID: id, TeamName: rs.teamName, TotalPoints: rs.total})
	}
	ls.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].TotalPoints != out[j].TotalPoints {
			return out[i].TotalPoints > out[j].TotalPoints
		}
		if out[i].TeamName != out[j].TeamName {
			return out[i].TeamName < out[j].TeamName
		}
		return out[i].RosterID < out[j].RosterID
	})
	return out
}

// ResetPeriod zeroes every total and forgets dedup keys for a league, then
// pushes the fresh summary so clients see the new scoring period start.
func (a *Aggregator) ResetPeriod(leagueID string) {
	a.mu.RLock()
	ls := a.leagues[leagueID]
	a.mu.RUnlock()
	if ls == nil {
		return
	}

	ls.mu.Lock()
	for _, rs := range ls.rosters {
		rs.total = 0
	}
	ls.applied = make(map[string]struct{})
	ls.mu.Unlock()

	a.log.Info("scoring period reset", zap.String("league_id", leagueID))
	a.rooms.Broadcast(leagueID, types.ServerMessage{
		Type: types.MsgScoringSummary,
		Data: a.GetSummary(leagueID),
	})
}

func (a *Aggregator) league(leagueID string) *leagueScores {
	a.mu.RLock()
	ls := a.leagues[leagueID]
	a.mu.RUnlock()
	if ls != nil {
		return ls
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if ls = a.leagues[leagueID]; ls == nil {
		ls = &leagueScores{
			rosters: make(map[string]*rosterScore),
			applied: make(map[string]struct{}),
		}
		a.leagues[leagueID] = ls
	}
	return ls
}
