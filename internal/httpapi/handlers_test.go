package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/kmacleod/hockey-draft-backend/internal/draft"
	"github.com/kmacleod/hockey-draft-backend/internal/hub"
	"github.com/kmacleod/hockey-draft-backend/internal/room"
	"github.com/kmacleod/hockey-draft-backend/internal/scoring"
	"github.com/kmacleod/hockey-draft-backend/internal/store"
	"github.com/kmacleod/hockey-draft-backend/internal/types"
	"github.com/kmacleod/hockey-draft-backend/internal/ws"
)

func newTestHandler(t *testing.T) http.Handler {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	logger := zaptest.NewLogger(t)
	st := store.NewMemoryStore()
	draftRooms := room.NewRegistry(logger)
	scoreRooms := room.NewRegistry(logger)
	aggregator := scoring.NewAggregator(scoreRooms, logger)
	h := hub.NewHub(ctx, hub.Deps{
		Store:          st,
		Rooms:          draftRooms,
		Clock:          clockwork.NewRealClock(),
		PickTimeLimit:  time.Minute,
		CompletedGrace: time.Minute,
		Log:            logger,
	})

	return SetupRoutes(Deps{
		Hub:        h,
		Aggregator: aggregator,
		WS: ws.Deps{
			Hub:        h,
			DraftRooms: draftRooms,
			ScoreRooms: scoreRooms,
			Aggregator: aggregator,
			Log:        logger,
		},
		AllowedOrigins: []string{"*"},
		Log:            logger,
	})
}

func doJSON(t *testing.T, handler http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v))
	return v
}

type errorResponse struct {
	Error types.ErrorPayload `json:"error"`
}

func TestDraftFlow(t *testing.T) {
	handler := newTestHandler(t)

	// Create: 2 teams x 2 roster slots = 4 picks.
	rec := doJSON(t, handler, http.MethodPost, "/api/drafts", map[string]any{
		"leagueId":    "lg1",
		"teamIds":     []string{"A", "B"},
		"rosterSlots": 2,
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decode[draft.State](t, rec)
	require.NotEmpty(t, created.ID)
	require.Equal(t, draft.StatusNotStarted, created.Status)
	require.Equal(t, 4, created.TotalPicks)

	base := "/api/drafts/" + created.ID

	// Pick before start is rejected.
	rec = doJSON(t, handler, http.MethodPost, base+"/picks", map[string]any{
		"teamId": "A",
		"player": map[string]any{"nhlPlayerId": 100},
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, types.KindInvalidState, decode[errorResponse](t, rec).Error.Kind)

	// Start.
	rec = doJSON(t, handler, http.MethodPost, base+"/start", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	started := decode[draft.State](t, rec)
	require.Equal(t, draft.StatusInProgress, started.Status)
	require.Equal(t, 1, started.CurrentPick)
	require.Equal(t, "A", started.CurrentTeamID())

	// B can't jump the queue.
	rec = doJSON(t, handler, http.MethodPost, base+"/picks", map[string]any{
		"teamId": "B",
		"player": map[string]any{"nhlPlayerId": 100},
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, types.KindOutOfTurn, decode[errorResponse](t, rec).Error.Kind)

	pick := func(teamID string, playerID int64) *httptest.ResponseRecorder {
		return doJSON(t, handler, http.MethodPost, base+"/picks", map[string]any{
			"teamId": teamID,
			"player": map[string]any{"nhlPlayerId": playerID},
		})
	}

	require.Equal(t, http.StatusOK, pick("A", 100).Code)
	require.Equal(t, http.StatusOK, pick("B", 200).Code)

	// Duplicate player.
	rec = pick("A", 200)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, types.KindDuplicatePick, decode[errorResponse](t, rec).Error.Kind)

	require.Equal(t, http.StatusOK, pick("A", 300).Code)
	rec = pick("B", 400)
	require.Equal(t, http.StatusOK, rec.Code)
	final := decode[struct {
		Pick  draft.Pick  `json:"pick"`
		Draft draft.State `json:"draft"`
	}](t, rec)
	require.Equal(t, draft.StatusCompleted, final.Draft.Status)
	require.Equal(t, 4, final.Pick.PickNumber)

	// Read back.
	rec = doJSON(t, handler, http.MethodGet, base, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[draft.State](t, rec)
	require.Equal(t, draft.StatusCompleted, got.Status)
	require.Len(t, got.Picks, 4)
}

func TestCreateDraft_Validation(t *testing.T) {
	handler := newTestHandler(t)

	rec := doJSON(t, handler, http.MethodPost, "/api/drafts", map[string]any{
		"leagueId": "lg1",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateDraft_SnakeOrder(t *testing.T) {
	handler := newTestHandler(t)

	rec := doJSON(t, handler, http.MethodPost, "/api/drafts", map[string]any{
		"leagueId":    "lg1",
		"teamIds":     []string{"A", "B"},
		"rosterSlots": 2,
		"snake":       true,
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decode[draft.State](t, rec)
	require.Equal(t, []string{"A", "B", "B", "A"}, created.PickOrder)
	require.Equal(t, 4, created.TotalPicks)
}

func TestGetDraft_NotFound(t *testing.T) {
	handler := newTestHandler(t)

	rec := doJSON(t, handler, http.MethodGet, "/api/drafts/missing", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, types.KindNotFound, decode[errorResponse](t, rec).Error.Kind)
}

func TestScoringEndpoints(t *testing.T) {
	handler := newTestHandler(t)

	rec := doJSON(t, handler, http.MethodPost, "/api/leagues/lg1/rosters", map[string]any{
		"rosterId": "r1",
		"teamName": "Ice Dogs",
	})
	require.Equal(t, http.StatusNoContent, rec.Code)

	event := map[string]any{
		"rosterId":  "r1",
		"playerId":  8478402,
		"gameId":    2024020001,
		"eventType": "goal",
		"sequence":  1,
	}
	rec = doJSON(t, handler, http.MethodPost, "/api/leagues/lg1/scoring/events", event)
	require.Equal(t, http.StatusOK, rec.Code)
	applied := decode[struct {
		Applied     bool    `json:"applied"`
		TotalPoints float64 `json:"totalPoints"`
	}](t, rec)
	require.True(t, applied.Applied)
	require.Equal(t, 3.0, applied.TotalPoints)

	// Redelivery of the same event does not double count.
	rec = doJSON(t, handler, http.MethodPost, "/api/leagues/lg1/scoring/events", event)
	require.Equal(t, http.StatusOK, rec.Code)
	redelivered := decode[struct {
		Applied     bool    `json:"applied"`
		TotalPoints float64 `json:"totalPoints"`
	}](t, rec)
	require.False(t, redelivered.Applied)
	require.Equal(t, 3.0, redelivered.TotalPoints)

	rec = doJSON(t, handler, http.MethodGet, "/api/leagues/lg1/scoring", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	summary := decode[[]scoring.Summary](t, rec)
	require.Len(t, summary, 1)
	require.Equal(t, "Ice Dogs", summary[0].TeamName)
	require.Equal(t, 3.0, summary[0].TotalPoints)

	rec = doJSON(t, handler, http.MethodPost, "/api/leagues/lg1/scoring/reset", nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, handler, http.MethodGet, "/api/leagues/lg1/scoring", nil)
	summary = decode[[]scoring.Summary](t, rec)
	require.Equal(t, 0.0, summary[0].TotalPoints)
}

func TestHealthz(t *testing.T) {
	handler := newTestHandler(t)
	rec := doJSON(t, handler, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}
