package notify

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// ClientConn is the write side of a client connection. *websocket.Conn
// satisfies it; tests use an in-process fake.
type ClientConn interface {
	WriteMessage(messageType int, data []byte) error
}

// UserRoom returns the room name scoped to a single user.
func UserRoom(userID string) string {
	return "user:" + userID
}

// ChannelRoom returns the room name for a topic channel.
func ChannelRoom(channel string) string {
	return "channel:" + channel
}

// Envelope is the wire format for every real-time event.
type Envelope struct {
	Event     string    `json:"event"`
	Data      any       `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

// connInfo tracks one registered connection. writeMu serializes writes to
// the connection: websocket conns support one concurrent writer, and emits
// can arrive from batch sends and the alert loop at the same time. The mutex
// survives re-registration so an in-flight write stays exclusive.
type connInfo struct {
	id      string
	userID  string
	rooms   []string
	writeMu *sync.Mutex
}

// Registry tracks live client connections and the rooms they subscribe to.
// Connections are registered on subscribe and removed on disconnect; nothing
// here is persisted. Broadcasts are fire-and-forget: a write failure is
// logged and the connection is left for its read loop to clean up. Writes to
// any one connection are serialized.
type Registry struct {
	mu      sync.RWMutex
	rooms   map[string]map[ClientConn]bool
	conns   map[ClientConn]*connInfo
	metrics *Metrics
}

// NewRegistry creates a new connection registry. metrics may be nil.
func NewRegistry(metrics *Metrics) *Registry {
	if metrics == nil {
		metrics = NewMetrics()
	}
	return &Registry{
		rooms:   make(map[string]map[ClientConn]bool),
		conns:   make(map[ClientConn]*connInfo),
		metrics: metrics,
	}
}

// Register adds a connection to its user room and any topic channel rooms.
// Re-registering a connection replaces its previous subscriptions.
func (r *Registry) Register(conn ClientConn, connID, userID string, channels []string) {
	rooms := make([]string, 0, len(channels)+1)
	rooms = append(rooms, UserRoom(userID))
	for _, ch := range channels {
		rooms = append(rooms, ChannelRoom(ch))
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	writeMu := &sync.Mutex{}
	if prev, ok := r.conns[conn]; ok {
		r.leaveLocked(conn, prev.rooms)
		writeMu = prev.writeMu
	} else {
		r.metrics.IncConnections()
	}

	r.conns[conn] = &connInfo{id: connID, userID: userID, rooms: rooms, writeMu: writeMu}
	for _, room := range rooms {
		if r.rooms[room] == nil {
			r.rooms[room] = make(map[ClientConn]bool)
		}
		r.rooms[room][conn] = true
	}
}

// Unregister removes a connection from every room it joined.
func (r *Registry) Unregister(conn ClientConn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	info, ok := r.conns[conn]
	if !ok {
		return
	}
	r.leaveLocked(conn, info.rooms)
	delete(r.conns, conn)
	r.metrics.DecConnections()
}

// leaveLocked removes a connection from the given rooms.
// Caller must hold the mutex.
func (r *Registry) leaveLocked(conn ClientConn, rooms []string) {
	for _, room := range rooms {
		if members, ok := r.rooms[room]; ok {
			delete(members, conn)
			if len(members) == 0 {
				delete(r.rooms, room)
			}
		}
	}
}

// EmitToRoom sends an event to every connection in a room. The payload is
// serialized once; per-connection write failures are logged and skipped, so a
// dead connection never blocks delivery to the rest of the room.
func (r *Registry) EmitToRoom(room, event string, payload any) {
	data, err := json.Marshal(Envelope{Event: event, Data: payload, Timestamp: time.Now()})
	if err != nil {
		slog.Error("failed to marshal room event", "room", room, "event", event, "error", err)
		return
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	for conn := range r.rooms[room] {
		info := r.conns[conn]
		info.writeMu.Lock()
		err := conn.WriteMessage(websocket.TextMessage, data)
		info.writeMu.Unlock()
		if err != nil {
			slog.Warn("failed to send event to client",
				"room", room,
				"event", event,
				"error", err,
			)
		}
	}
}

// EmitToConn sends an event to a single connection. Writes to a registered
// connection hold its write lock so they never interleave with a broadcast.
func (r *Registry) EmitToConn(conn ClientConn, event string, payload any) error {
	data, err := json.Marshal(Envelope{Event: event, Data: payload, Timestamp: time.Now()})
	if err != nil {
		return err
	}

	r.mu.RLock()
	info, ok := r.conns[conn]
	r.mu.RUnlock()
	if ok {
		info.writeMu.Lock()
		defer info.writeMu.Unlock()
	}
	return conn.WriteMessage(websocket.TextMessage, data)
}

// ConnectionCount returns the number of connections in a room.
func (r *Registry) ConnectionCount(room string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms[room])
}

// UserID returns the user a connection registered as.
func (r *Registry) UserID(conn ClientConn) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	info, ok := r.conns[conn]
	if !ok {
		return "", false
	}
	return info.userID, true
}
