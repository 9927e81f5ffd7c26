package realtime

import (
	"sync"

	"github.com/gorilla/websocket"
)

// Hub tracks open websocket connections so they can be counted and shut down
// together. A user may hold several connections, one per open view.
type Hub struct {
	mu           sync.RWMutex
	sessions     map[string]*Connection         // connectionID -> connection
	userSessions map[string]map[string]struct{} // userID -> set of connectionIDs
}

func NewHub() *Hub {
	return &Hub{
		sessions:     make(map[string]*Connection),
		userSessions: make(map[string]map[string]struct{}),
	}
}

// Attach registers conn and starts its write loop.
func (h *Hub) Attach(conn *Connection) {
	h.mu.Lock()
	h.sessions[conn.ID] = conn
	ids := h.userSessions[conn.UserID]
	if ids == nil {
		ids = make(map[string]struct{})
		h.userSessions[conn.UserID] = ids
	}
	ids[conn.ID] = struct{}{}
	h.mu.Unlock()

	conn.Start()
}

// Detach removes conn if it is still tracked.
func (h *Hub) Detach(conn *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.sessions[conn.ID]; !ok {
		return
	}
	delete(h.sessions, conn.ID)
	if ids := h.userSessions[conn.UserID]; ids != nil {
		delete(ids, conn.ID)
		if len(ids) == 0 {
			delete(h.userSessions, conn.UserID)
		}
	}
}

// Count returns the number of open connections of userID.
func (h *Hub) Count(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.userSessions[userID])
}

// Close terminates all tracked connections and clears hub state.
func (h *Hub) Close() {
	h.mu.Lock()
	sessions := make([]*Connection, 0, len(h.sessions))
	for _, conn := range h.sessions {
		sessions = append(sessions, conn)
	}
	h.sessions = make(map[string]*Connection)
	h.userSessions = make(map[string]map[string]struct{})
	h.mu.Unlock()

	for _, conn := range sessions {
		conn.Close(websocket.CloseGoingAway, "server shutdown")
	}
}
