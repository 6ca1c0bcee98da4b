package scoring

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/kmacleod/hockey-draft-backend/internal/types"
)

type fakePublisher struct {
	mu   sync.Mutex
	msgs []types.ServerMessage
}

func (f *fakePublisher) Broadcast(_ string, msg types.ServerMessage) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, msg)
}

func (f *fakePublisher) all() []types.ServerMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]types.ServerMessage(nil), f.msgs...)
}

func goalEvent(seq int64) Event {
	return Event{
		LeagueID:  "lg1",
		RosterID:  "r1",
		PlayerID:  8478402,
		GameID:    2024020001,
		EventType: "goal",
		Points:    3,
		Sequence:  seq,
	}
}

func TestApplyEvent_AccumulatesAndBroadcasts(t *testing.T) {
	pub := &fakePublisher{}
	agg := NewAggregator(pub, zaptest.NewLogger(t))

	total, applied, err := agg.ApplyEvent(goalEvent(1))
	require.NoError(t, err)
	require.True(t, applied)
	require.Equal(t, 3.0, total)

	msgs := pub.all()
	require.Len(t, msgs, 1)
	require.Equal(t, types.MsgScoringUpdate, msgs[0].Type)
	upd := msgs[0].Data.(Update)
	require.Equal(t, 3.0, upd.Points)
	require.Equal(t, 3.0, upd.TotalPoints)
	require.Equal(t, "r1", upd.RosterID)
}

func TestApplyEvent_RedeliveryIsIdempotent(t *testing.T) {
	pub := &fakePublisher{}
	agg := NewAggregator(pub, zaptest.NewLogger(t))

	_, applied, err := agg.ApplyEvent(goalEvent(1))
	require.NoError(t, err)
	require.True(t, applied)

	// Same dedup key redelivered: total unchanged, nothing broadcast.
	total, applied, err := agg.ApplyEvent(goalEvent(1))
	require.NoError(t, err)
	require.False(t, applied)
	require.Equal(t, 3.0, total)
	require.Len(t, pub.all(), 1)

	// A new sequence is a distinct event.
	total, applied, err = agg.ApplyEvent(goalEvent(2))
	require.NoError(t, err)
	require.True(t, applied)
	require.Equal(t, 6.0, total)
}

func TestApplyEvent_DefaultPointsTable(t *testing.T) {
	agg := NewAggregator(&fakePublisher{}, zaptest.NewLogger(t))

	ev := goalEvent(1)
	ev.Points = 0 // feed omitted the delta; "goal" is worth 3 by default
	total, applied, err := agg.ApplyEvent(ev)
	require.NoError(t, err)
	require.True(t, applied)
	require.Equal(t, 3.0, total)

	ev.Sequence = 2
	ev.EventType = "assist"
	total, _, err = agg.ApplyEvent(ev)
	require.NoError(t, err)
	require.Equal(t, 5.0, total)
}

func TestApplyEvent_CorrectionReversesPoints(t *testing.T) {
	agg := NewAggregator(&fakePublisher{}, zaptest.NewLogger(t))

	_, _, err := agg.ApplyEvent(goalEvent(1))
	require.NoError(t, err)

	correction := goalEvent(2)
	correction.EventType = "goal_reversed"
	correction.Points = -3
	total, applied, err := agg.ApplyEvent(correction)
	require.NoError(t, err)
	require.True(t, applied)
	require.Equal(t, 0.0, total)
}

func TestApplyEvent_Validation(t *testing.T) {
	agg := NewAggregator(&fakePublisher{}, zaptest.NewLogger(t))

	_, _, err := agg.ApplyEvent(Event{RosterID: "r1"})
	require.ErrorIs(t, err, ErrBadEvent)

	_, _, err = agg.ApplyEvent(Event{LeagueID: "lg1"})
	require.ErrorIs(t, err, ErrBadEvent)

	// Unknown event type with no explicit delta resolves to zero points and
	// is not counted.
	ev := goalEvent(1)
	ev.Points = 0
	ev.EventType = "faceoff"
	total, applied, err := agg.ApplyEvent(ev)
	require.NoError(t, err)
	require.False(t, applied)
	require.Equal(t, 0.0, total)
}

func TestGetSummary_LeaderboardOrder(t *testing.T) {
	agg := NewAggregator(&fakePublisher{}, zaptest.NewLogger(t))
	agg.UpsertRoster("lg1", "r1", "Ice Dogs")
	agg.UpsertRoster("lg1", "r2", "Zamboni FC")
	agg.UpsertRoster("lg1", "r3", "Arctic Wolves")

	apply := func(roster string, pts float64, seq int64) {
		t.Helper()
		_, _, err := agg.ApplyEvent(Event{
			LeagueID: "lg1", RosterID: roster, PlayerID: 1, GameID: 1,
			EventType: "goal", Points: pts, Sequence: seq,
		})
		require.NoError(t, err)
	}
	apply("r1", 2, 1)
	apply("r2", 5, 2)
	apply("r3", 2, 3)

	got := agg.GetSummary("lg1")
	require.Len(t, got, 3)
	require.Equal(t, "r2", got[0].RosterID)
	// Tie at 2 points broken by team name.
	require.Equal(t, "Arctic Wolves", got[1].TeamName)
	require.Equal(t, "Ice Dogs", got[2].TeamName)

	require.Empty(t, agg.GetSummary("unknown-league"))
}

func TestGetSummary_SumMatchesDeltasAcrossRosters(t *testing.T) {
	agg := NewAggregator(&fakePublisher{}, zaptest.NewLogger(t))

	// Concurrent applies to different rosters; per-roster totals must equal
	// the sum of their deltas regardless of interleaving.
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		roster := []string{"r1", "r2", "r3", "r4"}[i]
		wg.Add(1)
		go func() {
			defer wg.Done()
			for seq := int64(1); seq <= 50; seq++ {
				_, _, err := agg.ApplyEvent(Event{
					LeagueID: "lg1", RosterID: roster, PlayerID: 1, GameID: 1,
					EventType: "goal", Points: 2, Sequence: seq,
				})
				if err != nil {
					t.Error(err)
					return
				}
			}
		}()
	}
	wg.Wait()

	for _, s := range agg.GetSummary("lg1") {
		require.Equal(t, 100.0, s.TotalPoints, "roster %s", s.RosterID)
	}
}

func TestResetPeriod(t *testing.T) {
	pub := &fakePublisher{}
	agg := NewAggregator(pub, zaptest.NewLogger(t))
	agg.UpsertRoster("lg1", "r1", "Ice Dogs")

	_, _, err := agg.ApplyEvent(goalEvent(1))
	require.NoError(t, err)

	agg.ResetPeriod("lg1")

	got := agg.GetSummary("lg1")
	require.Len(t, got, 1)
	require.Equal(t, 0.0, got[0].TotalPoints)

	// Dedup keys are forgotten with the period, so the same upstream event
	// counts again next period.
	total, applied, err := agg.ApplyEvent(goalEvent(1))
	require.NoError(t, err)
	require.True(t, applied)
	require.Equal(t, 3.0, total)

	msgs := pub.all()
	require.Equal(t, types.MsgScoringSummary, msgs[1].Type)
}

func TestPointsFor(t *testing.T) {
	cases := map[string]float64{
		"goal":         3,
		"GOAL":         3,
		"power-play-goal": 3,
		"assist":       2,
		"shot-on-goal": 0.5,
		"hit":          0.5,
		"blocked-shot": 0.5,
		"penalty":      0.25,
		"plus_minus":   0.5,
		"faceoff":      0,
	}
	for eventType, want := range cases {
		require.Equal(t, want, PointsFor(eventType), "event type %q", eventType)
	}
}
