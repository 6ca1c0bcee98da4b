package room

import (
	"sync"

	"go.uber.org/zap"

	"github.com/kmacleod/hockey-draft-backend/internal/types"
)

// Conn is a connection handle a room can deliver events to. Send must not
// block: return false if the message cannot be accepted (slow or closed
// client), and the registry will drop the membership.
type Conn interface {
	ID() string
	Send(msg types.ServerMessage) bool
}

// Registry maps league ids to the set of connections subscribed to that
// room. Membership is ephemeral: delivery is best effort, nothing is
// persisted or replayed.
type Registry struct {
	mu     sync.RWMutex
	rooms  map[string]map[string]Conn // league id -> conn id -> conn
	joined map[string]map[string]Conn // conn id -> league id -> conn
	log    *zap.Logger
}

func NewRegistry(log *zap.Logger) *Registry {
	return &Registry{
		rooms:  make(map[string]map[string]Conn),
		joined: make(map[string]map[string]Conn),
		log:    log,
	}
}

// Join subscribes a connection to a league room. Idempotent.
func (r *Registry) Join(leagueID string, c Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.rooms[leagueID] == nil {
		r.rooms[leagueID] = make(map[string]Conn)
	}
	r.rooms[leagueID][c.ID()] = c
	if r.joined[c.ID()] == nil {
		r.joined[c.ID()] = make(map[string]Conn)
	}
	r.joined[c.ID()][leagueID] = c
}

// Leave removes a connection from every room it joined.
func (r *Registry) Leave(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for leagueID := range r.joined[connID] {
		r.evictLocked(leagueID, connID)
	}
	delete(r.joined, connID)
}

// Broadcast delivers msg to every member of the league room. Members that
// cannot accept the message are dropped; delivery to the rest continues.
func (r *Registry) Broadcast(leagueID string, msg types.ServerMessage) {
	r.mu.RLock()
	members := make([]Conn, 0, len(r.rooms[leagueID]))
	for _, c := range r.rooms[leagueID] {
		members = append(members, c)
	}
	r.mu.RUnlock()

	var dropped []string
	for _, c := range members {
		if !c.Send(msg) {
			dropped = append(dropped, c.ID())
		}
	}
	if len(dropped) == 0 {
		return
	}

	r.mu.Lock()
	for _, id := range dropped {
		r.evictLocked(leagueID, id)
		delete(r.joined[id], leagueID)
	}
	r.mu.Unlock()
	r.log.Debug("dropped unreachable room members",
		zap.String("league_id", leagueID), zap.Strings("conn_ids", dropped))
}

// Members reports the current size of a room.
func (r *Registry) Members(leagueID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms[leagueID])
}

func (r *Registry) evictLocked(leagueID, connID string) {
	delete(r.rooms[leagueID], connID)
	if len(r.rooms[leagueID]) == 0 {
		delete(r.rooms, leagueID)
	}
}
