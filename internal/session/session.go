package session

import (
	"context"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/kmacleod/hockey-draft-backend/internal/draft"
	"github.com/kmacleod/hockey-draft-backend/internal/store"
	"github.com/kmacleod/hockey-draft-backend/internal/types"
)

// ErrClosed reports that the session's goroutine has exited, typically after
// eviction. The draft itself still exists in the store; callers can re-ensure
// a session. Wrapping ErrNotFound keeps the wire classification meaningful.
var ErrClosed = fmt.Errorf("draft session closed: %w", store.ErrNotFound)

// Publisher fans draft events out to the league room.
type Publisher interface {
	Broadcast(leagueID string, msg types.ServerMessage)
}

type Msg interface{ isSessionMsg() }

// Start asks the session to start the draft.
type Start struct {
	Reply chan Result
}

// MakePick submits a pick attempt for a team.
type MakePick struct {
	TeamID string
	Player draft.PlayerDescriptor
	Reply  chan Result
}

// GetState reads the current draft state.
type GetState struct {
	Reply chan draft.State
}

type Shutdown struct{}

// pickTimeout fires when the pick clock for a given pick number expires.
type pickTimeout struct {
	pickNumber int
}

func (Start) isSessionMsg()       {}
func (MakePick) isSessionMsg()    {}
func (GetState) isSessionMsg()    {}
func (Shutdown) isSessionMsg()    {}
func (pickTimeout) isSessionMsg() {}

type Result struct {
	State draft.State
	Pick  *draft.Pick
	Err   error
}

type Deps struct {
	Store         store.Store
	Rooms         Publisher
	Clock         clockwork.Clock
	PickTimeLimit time.Duration
	// OnComplete is invoked once when the draft reaches completed.
	OnComplete func(draftID string)
	Log        *zap.Logger
}

// Session owns one draft's state. All mutations for the draft flow through
// its inbox and are applied by a single goroutine, so two concurrent pick
// attempts for the same turn can never both commit.
type Session struct {
	id      string
	inbox   chan Msg
	state   draft.State
	version int64
	deps    Deps
	timer   clockwork.Timer
	ctx     context.Context
	cancel  context.CancelFunc
}

func New(parent context.Context, st draft.State, version int64, deps Deps) *Session {
	ctx, cancel := context.WithCancel(parent)
	s := &Session{
		id:      st.ID,
		inbox:   make(chan Msg, 64),
		state:   st,
		version: version,
		deps:    deps,
		ctx:     ctx,
		cancel:  cancel,
	}
	go s.loop()
	return s
}

func (s *Session) Inbox() chan<- Msg { return s.inbox }

// Done is closed when the session goroutine exits.
func (s *Session) Done() <-chan struct{} { return s.ctx.Done() }

// DraftID is safe to call from any goroutine; the id never changes.
func (s *Session) DraftID() string { return s.id }

// Request delivers msg and waits for its reply, failing with ErrClosed if the
// session shuts down before answering. Callers must use this rather than a
// bare send/receive, or a session evicted mid-request would block them
// forever.
func Request[T any](s *Session, msg Msg, reply chan T) (T, error) {
	var zero T
	select {
	case s.inbox <- msg:
	case <-s.ctx.Done():
		return zero, ErrClosed
	}
	select {
	case v := <-reply:
		return v, nil
	case <-s.ctx.Done():
		return zero, ErrClosed
	}
}

func (s *Session) loop() {
	for {
		select {
		case <-s.ctx.Done():
			s.shutdown()
			return

		case m := <-s.inbox:
			switch msg := m.(type) {
			case Start:
				msg.Reply <- s.handleStart()
			case MakePick:
				msg.Reply <- s.handleMakePick(msg)
			case GetState:
				msg.Reply <- s.state.Clone()
			case pickTimeout:
				s.handlePickTimeout(msg)
			case Shutdown:
				s.shutdown()
				return
			}
		}
	}
}

func (s *Session) handleStart() Result {
	next, events, err := draft.Start(s.state)
	if err != nil {
		return Result{State: s.state.Clone(), Err: err}
	}
	if err := s.commit(next); err != nil {
		return Result{State: s.state.Clone(), Err: err}
	}
	s.publish(events)
	s.armPickTimer()
	return Result{State: s.state.Clone()}
}

func (s *Session) handleMakePick(msg MakePick) Result {
	next, pick, events, err := draft.ApplyPick(s.state, msg.TeamID, msg.Player, s.deps.Clock.Now())
	if err != nil {
		return Result{State: s.state.Clone(), Err: err}
	}
	if err := s.commit(next); err != nil {
		return Result{State: s.state.Clone(), Err: err}
	}

	s.publish(events)
	if s.state.Status == draft.StatusCompleted {
		s.stopPickTimer()
		if s.deps.OnComplete != nil {
			s.deps.OnComplete(s.state.ID)
		}
	} else {
		s.armPickTimer()
	}
	return Result{State: s.state.Clone(), Pick: &pick}
}

// commit saves the new state behind the version check and only then replaces
// the in-memory copy. A stale save means this session lost a write race;
// reload so the next attempt validates against authoritative state.
func (s *Session) commit(next draft.State) error {
	newVersion, err := s.deps.Store.SaveDraft(s.ctx, next, s.version)
	if err != nil {
		if fresh, v, loadErr := s.deps.Store.GetDraft(s.ctx, s.state.ID); loadErr == nil {
			s.state = fresh
			s.version = v
		}
		return err
	}
	s.state = next
	s.version = newVersion
	return nil
}

func (s *Session) publish(events []draft.Event) {
	for _, ev := range events {
		switch ev.Type {
		case draft.EvtDraftStarted:
			s.deps.Rooms.Broadcast(s.state.LeagueID, types.ServerMessage{
				Type: types.MsgDraftStarted,
				Data: s.state.Clone(),
			})
		case draft.EvtPickMade:
			s.deps.Rooms.Broadcast(s.state.LeagueID, types.ServerMessage{
				Type: types.MsgPickMade,
				Data: types.PickMadePayload{
					Pick:          *ev.Pick,
					Status:        s.state.Status,
					CurrentPick:   s.state.CurrentPick,
					CurrentTeamID: s.state.CurrentTeamID(),
				},
			})
		case draft.EvtDraftCompleted:
			s.deps.Rooms.Broadcast(s.state.LeagueID, types.ServerMessage{
				Type: types.MsgDraftCompleted,
				Data: types.DraftCompletedPayload{
					DraftID:  s.state.ID,
					LeagueID: s.state.LeagueID,
				},
			})
			s.deps.Log.Info("draft completed",
				zap.String("draft_id", s.state.ID),
				zap.String("league_id", s.state.LeagueID),
				zap.Int("picks", len(s.state.Picks)))
		}
	}
}

func (s *Session) armPickTimer() {
	s.stopPickTimer()
	if s.deps.PickTimeLimit <= 0 || s.state.Status != draft.StatusInProgress {
		return
	}
	pickNumber := s.state.CurrentPick
	s.timer = s.deps.Clock.AfterFunc(s.deps.PickTimeLimit, func() {
		select {
		case s.inbox <- pickTimeout{pickNumber: pickNumber}:
		case <-s.ctx.Done():
		}
	})
}

// handlePickTimeout announces an expired pick clock. Fires armed for an
// earlier pick are stale and ignored.
func (s *Session) handlePickTimeout(msg pickTimeout) {
	if s.state.Status != draft.StatusInProgress || msg.pickNumber != s.state.CurrentPick {
		return
	}
	s.deps.Log.Info("pick clock expired",
		zap.String("draft_id", s.state.ID),
		zap.Int("pick_number", msg.pickNumber),
		zap.String("team_id", s.state.CurrentTeamID()))
	s.deps.Rooms.Broadcast(s.state.LeagueID, types.ServerMessage{
		Type: types.MsgPickExpired,
		Data: types.PickExpiredPayload{
			DraftID:    s.state.ID,
			PickNumber: msg.pickNumber,
			TeamID:     s.state.CurrentTeamID(),
		},
	})
}

func (s *Session) stopPickTimer() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func (s *Session) shutdown() {
	s.stopPickTimer()
	s.cancel()
	s.drainInbox()
}

// drainInbox answers messages that were queued before the loop exited so no
// sender is left waiting on a reply that will never come.
func (s *Session) drainInbox() {
	for {
		select {
		case m := <-s.inbox:
			switch msg := m.(type) {
			case Start:
				s.refuse(msg.Reply)
			case MakePick:
				s.refuse(msg.Reply)
			case GetState:
				select {
				case msg.Reply <- s.state.Clone():
				default:
				}
			}
		default:
			return
		}
	}
}

func (s *Session) refuse(reply chan Result) {
	select {
	case reply <- Result{State: s.state.Clone(), Err: ErrClosed}:
	default:
	}
}
