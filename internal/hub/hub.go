package hub

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/kmacleod/hockey-draft-backend/internal/draft"
	"github.com/kmacleod/hockey-draft-backend/internal/session"
	"github.com/kmacleod/hockey-draft-backend/internal/store"
)

type HubMsg interface{ isHubMsg() }

// CreateDraft creates a draft for a league and spawns its session. If the
// league already has a draft, the existing one is returned instead.
type CreateDraft struct {
	LeagueID   string
	PickOrder  []string
	TotalPicks int
	Reply      chan CreateResult
}

type CreateResult struct {
	State draft.State
	Err   error
}

// EnsureSession returns the live session for a draft, reviving it from the
// store if it is not in memory.
type EnsureSession struct {
	DraftID string
	Reply   chan SessionResult
}

type SessionResult struct {
	Session *session.Session
	Err     error
}

type RemoveSession struct {
	DraftID string
}

type ShutdownHub struct{}

func (CreateDraft) isHubMsg()   {}
func (EnsureSession) isHubMsg() {}
func (RemoveSession) isHubMsg() {}
func (ShutdownHub) isHubMsg()   {}

type Deps struct {
	Store         store.Store
	Rooms         session.Publisher
	Clock         clockwork.Clock
	PickTimeLimit time.Duration
	// CompletedGrace is how long a completed draft's session stays resident
	// before eviction.
	CompletedGrace time.Duration
	Log            *zap.Logger
}

// Hub is the registry of live draft sessions, one actor goroutine owning the
// map. Sessions for different drafts run independently; the hub only routes.
type Hub struct {
	inbox    chan HubMsg
	sessions map[string]*session.Session
	deps     Deps
	ctx      context.Context
	cancel   context.CancelFunc
}

func NewHub(parent context.Context, deps Deps) *Hub {
	ctx, cancel := context.WithCancel(parent)
	h := &Hub{
		inbox:    make(chan HubMsg, 64),
		sessions: make(map[string]*session.Session),
		deps:     deps,
		ctx:      ctx,
		cancel:   cancel,
	}
	go h.loop()
	return h
}

func (h *Hub) Inbox() chan<- HubMsg { return h.inbox }

func (h *Hub) loop() {
	for {
		select {
		case <-h.ctx.Done():
			h.shutdown()
			return

		case m := <-h.inbox:
			switch msg := m.(type) {
			case CreateDraft:
				msg.Reply <- h.handleCreate(msg)
			case EnsureSession:
				msg.Reply <- h.handleEnsure(msg.DraftID)
			case RemoveSession:
				if sess := h.sessions[msg.DraftID]; sess != nil {
					sess.Inbox() <- session.Shutdown{}
					delete(h.sessions, msg.DraftID)
					h.deps.Log.Info("evicted draft session", zap.String("draft_id", msg.DraftID))
				}
			case ShutdownHub:
				h.shutdown()
				return
			}
		}
	}
}

func (h *Hub) handleCreate(msg CreateDraft) CreateResult {
	if len(msg.PickOrder) == 0 {
		return CreateResult{Err: fmt.Errorf("pick order required: %w", draft.ErrInvalidState)}
	}
	if msg.TotalPicks <= 0 {
		return CreateResult{Err: fmt.Errorf("total picks must be positive: %w", draft.ErrInvalidState)}
	}
	if teams := draft.UniqueTeams(msg.PickOrder); msg.TotalPicks%teams != 0 {
		return CreateResult{Err: fmt.Errorf("%d picks cannot fill equal rosters for %d teams: %w",
			msg.TotalPicks, teams, draft.ErrInvalidState)}
	}

	existing, _, err := h.deps.Store.GetDraftByLeague(h.ctx, msg.LeagueID)
	switch {
	case err == nil:
		return CreateResult{State: existing}
	case !errors.Is(err, store.ErrNotFound):
		return CreateResult{Err: fmt.Errorf("look up league draft: %w", err)}
	}

	st := draft.New(uuid.NewString(), msg.LeagueID, msg.PickOrder, msg.TotalPicks)
	if err := h.deps.Store.CreateDraft(h.ctx, st); err != nil {
		return CreateResult{Err: fmt.Errorf("create draft: %w", err)}
	}
	h.spawn(st, 1)
	h.deps.Log.Info("draft created",
		zap.String("draft_id", st.ID),
		zap.String("league_id", st.LeagueID),
		zap.Int("total_picks", st.TotalPicks))
	return CreateResult{State: st}
}

func (h *Hub) handleEnsure(draftID string) SessionResult {
	if sess := h.sessions[draftID]; sess != nil {
		return SessionResult{Session: sess}
	}
	st, version, err := h.deps.Store.GetDraft(h.ctx, draftID)
	if err != nil {
		return SessionResult{Err: err}
	}
	return SessionResult{Session: h.spawn(st, version)}
}

func (h *Hub) spawn(st draft.State, version int64) *session.Session {
	sess := session.New(h.ctx, st, version, session.Deps{
		Store:         h.deps.Store,
		Rooms:         h.deps.Rooms,
		Clock:         h.deps.Clock,
		PickTimeLimit: h.deps.PickTimeLimit,
		OnComplete:    h.scheduleEviction,
		Log:           h.deps.Log,
	})
	h.sessions[st.ID] = sess
	return sess
}

// scheduleEviction queues session removal a grace period after completion.
func (h *Hub) scheduleEviction(draftID string) {
	h.deps.Clock.AfterFunc(h.deps.CompletedGrace, func() {
		select {
		case h.inbox <- RemoveSession{DraftID: draftID}:
		case <-h.ctx.Done():
		}
	})
}

func (h *Hub) shutdown() {
	for _, sess := range h.sessions {
		sess.Inbox() <- session.Shutdown{}
	}
	clear(h.sessions)
	h.cancel()
}
