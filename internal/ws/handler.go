package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kmacleod/hockey-draft-backend/internal/hub"
	"github.com/kmacleod/hockey-draft-backend/internal/room"
	"github.com/kmacleod/hockey-draft-backend/internal/scoring"
	"github.com/kmacleod/hockey-draft-backend/internal/session"
	"github.com/kmacleod/hockey-draft-backend/internal/types"
)

const writeTimeout = 3 * time.Second

type Deps struct {
	Hub        *hub.Hub
	DraftRooms *room.Registry
	ScoreRooms *room.Registry
	Aggregator *scoring.Aggregator
	// OriginPatterns is passed to the websocket accept check.
	OriginPatterns []string
	Log            *zap.Logger
}

// client implements room.Conn: a buffered outbox with a non-blocking send.
// A full outbox means the client is too slow to keep the room membership.
type client struct {
	id   string
	out  chan types.ServerMessage
	done chan struct{}
}

func (c *client) ID() string { return c.id }

func (c *client) Send(msg types.ServerMessage) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.out <- msg:
		return true
	default:
		return false
	}
}

// Handler upgrades the connection and speaks the room/event contract: join
// and get-summary on the push channel, draft actions as request/response.
func Handler(deps Deps) http.HandlerFunc {
	// Accept matches origins by host pattern, while config carries full
	// origin URLs for CORS; strip the scheme.
	patterns := make([]string, 0, len(deps.OriginPatterns))
	for _, o := range deps.OriginPatterns {
		o = strings.TrimPrefix(o, "https://")
		o = strings.TrimPrefix(o, "http://")
		patterns = append(patterns, o)
	}

	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			OriginPatterns: patterns,
		})
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		c := &client{
			id:   uuid.NewString(),
			out:  make(chan types.ServerMessage, 16),
			done: make(chan struct{}),
		}
		log := deps.Log.With(zap.String("conn_id", c.id))
		log.Debug("client connected")

		defer func() {
			deps.DraftRooms.Leave(c.id)
			deps.ScoreRooms.Leave(c.id)
			close(c.done)
			log.Debug("client disconnected")
		}()

		// Writer goroutine: drains the outbox so broadcasts never block on
		// this connection's socket.
		writeCtx, writeCancel := context.WithCancel(r.Context())
		defer writeCancel()
		go func() {
			for {
				select {
				case <-c.done:
					return
				case <-writeCtx.Done():
					return
				case msg := <-c.out:
					payload, err := json.Marshal(msg)
					if err != nil {
						log.Error("marshal server message", zap.Error(err))
						continue
					}
					ctx, cancel := context.WithTimeout(writeCtx, writeTimeout)
					_ = conn.Write(ctx, websocket.MessageText, payload)
					cancel()
				}
			}
		}()

		for {
			_, data, err := conn.Read(r.Context())
			if err != nil {
				switch websocket.CloseStatus(err) {
				case websocket.StatusNormalClosure, websocket.StatusGoingAway:
					return
				}
				return
			}

			var cm types.ClientMessage
			if err := json.Unmarshal(data, &cm); err != nil {
				c.Send(types.ServerMessage{
					Type: types.MsgDraftError,
					Data: types.ErrorPayload{Kind: types.KindInternal, Message: "bad json"},
				})
				continue
			}
			dispatch(deps, c, cm, log)
		}
	}
}

func dispatch(deps Deps, c *client, cm types.ClientMessage, log *zap.Logger) {
	switch cm.Type {
	case types.MsgJoin:
		if cm.LeagueID == "" {
			c.Send(scoringError("leagueId required"))
			return
		}
		deps.DraftRooms.Join(cm.LeagueID, c)
		deps.ScoreRooms.Join(cm.LeagueID, c)
		c.Send(types.ServerMessage{Type: types.MsgJoined, Data: types.JoinedPayload{LeagueID: cm.LeagueID}})
		// A (re)joining client reconstructs scoring state from the full
		// summary; only deltas follow.
		c.Send(types.ServerMessage{Type: types.MsgScoringSummary, Data: deps.Aggregator.GetSummary(cm.LeagueID)})
		log.Debug("joined league room", zap.String("league_id", cm.LeagueID))

	case types.MsgGetSummary:
		if cm.LeagueID == "" {
			c.Send(scoringError("leagueId required"))
			return
		}
		c.Send(types.ServerMessage{Type: types.MsgScoringSummary, Data: deps.Aggregator.GetSummary(cm.LeagueID)})

	case types.MsgStartDraft:
		res, err := withSession(deps.Hub, cm.DraftID, func(sess *session.Session) (session.Result, error) {
			reply := make(chan session.Result, 1)
			return session.Request(sess, session.Start{Reply: reply}, reply)
		})
		respond(c, res, err)

	case types.MsgMakePick:
		if cm.Player == nil {
			c.Send(types.ServerMessage{
				Type: types.MsgDraftError,
				Data: types.ErrorPayload{Kind: types.KindInternal, Message: "player descriptor required"},
			})
			return
		}
		res, err := withSession(deps.Hub, cm.DraftID, func(sess *session.Session) (session.Result, error) {
			reply := make(chan session.Result, 1)
			return session.Request(sess, session.MakePick{TeamID: cm.TeamID, Player: *cm.Player, Reply: reply}, reply)
		})
		respond(c, res, err)

	default:
		c.Send(types.ServerMessage{
			Type: types.MsgDraftError,
			Data: types.ErrorPayload{Kind: types.KindInternal, Message: "unknown message type"},
		})
	}
}

func withSession(h *hub.Hub, draftID string, fn func(*session.Session) (session.Result, error)) (session.Result, error) {
	reply := make(chan hub.SessionResult, 1)
	h.Inbox() <- hub.EnsureSession{DraftID: draftID, Reply: reply}
	sr := <-reply
	if sr.Err != nil {
		return session.Result{}, sr.Err
	}
	return fn(sr.Session)
}

// respond sends the synchronous reply for a draft action. Rejections carry
// the structured error plus current authoritative state; room members other
// than the caller see nothing for rejected actions.
func respond(c *client, res session.Result, err error) {
	if err != nil {
		c.Send(types.ServerMessage{Type: types.MsgDraftError, Data: types.Classify(err)})
		return
	}
	if res.Err != nil {
		c.Send(types.ServerMessage{Type: types.MsgDraftError, Data: types.Classify(res.Err)})
		c.Send(types.ServerMessage{Type: types.MsgDraftState, Data: res.State})
		return
	}
	c.Send(types.ServerMessage{Type: types.MsgDraftState, Data: res.State})
}

func scoringError(msg string) types.ServerMessage {
	return types.ServerMessage{
		Type: types.MsgScoringError,
		Data: types.ErrorPayload{Kind: types.KindInternal, Message: msg},
	}
}
