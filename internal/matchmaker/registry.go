package matchmaker

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

const maxRoomPlayers = 2

type entry struct {
	name        string
	endpoint    Endpoint
	playerCount int
	lastActive  time.Time
}

func (e *entry) info() RoomInfo {
	status := StatusOpen
	if e.playerCount >= maxRoomPlayers {
		status = StatusFull
	}
	return RoomInfo{
		Name:        e.name,
		IP:          e.endpoint.IP,
		Port:        e.endpoint.Port,
		Status:      status,
		PlayerCount: e.playerCount,
	}
}

// Registry is the in-memory room list. Entries keep insertion order.
type Registry struct {
	mu      sync.Mutex
	rooms   []*entry
	timeout time.Duration
	now     func() time.Time
	logger  *zap.Logger
}

// NewRegistry creates an empty registry. Entries idle longer than timeout are
// removed by Sweep.
func NewRegistry(timeout time.Duration, logger *zap.Logger) *Registry {
	return &Registry{
		timeout: timeout,
		now:     time.Now,
		logger:  logger,
	}
}

// Apply executes msg and returns the response payload. Only GET_ROOMS is
// answered; for every other message respond is false.
func (r *Registry) Apply(msg Message) (response []byte, respond bool) {
	switch msg.Type {
	case MsgRegister:
		r.Register(msg.Name, msg.Endpoint)
	case MsgGetRooms:
		return EncodeRoomList(r.List()), true
	case MsgPing:
		r.Ping(msg.Endpoint)
	case MsgDeregister:
		r.Deregister(msg.Endpoint)
	case MsgPlayerJoin:
		r.PlayerJoin(msg.Endpoint)
	case MsgPlayerLeave:
		r.PlayerLeave(msg.Endpoint)
	}
	return nil, false
}

// Register adds a room or, for a known endpoint, renames it and refreshes
// its timestamp. The player count of a known room is kept.
func (r *Registry) Register(name string, ep Endpoint) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	if e := r.find(ep); e != nil {
		e.name = name
		e.lastActive = now
		r.logger.Debug("room updated", zap.String("name", name), zap.Stringer("endpoint", ep))
		return
	}
	r.rooms = append(r.rooms, &entry{name: name, endpoint: ep, lastActive: now})
	r.logger.Info("room registered", zap.String("name", name), zap.Stringer("endpoint", ep))
}

// Ping refreshes a known room. Unknown endpoints are ignored.
func (r *Registry) Ping(ep Endpoint) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e := r.find(ep)
	if e == nil {
		return false
	}
	e.lastActive = r.now()
	return true
}

// Deregister removes a room.
func (r *Registry) Deregister(ep Endpoint) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, e := range r.rooms {
		if e.endpoint == ep {
			r.rooms = append(r.rooms[:i], r.rooms[i+1:]...)
			r.logger.Info("room deregistered", zap.Stringer("endpoint", ep), zap.Int("remaining", len(r.rooms)))
			return true
		}
	}
	return false
}

// PlayerJoin increments the player count while the room is not full.
func (r *Registry) PlayerJoin(ep Endpoint) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e := r.find(ep)
	if e == nil || e.playerCount >= maxRoomPlayers {
		return false
	}
	e.playerCount++
	e.lastActive = r.now()
	return true
}

// PlayerLeave decrements the player count while it is positive.
func (r *Registry) PlayerLeave(ep Endpoint) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e := r.find(ep)
	if e == nil || e.playerCount <= 0 {
		return false
	}
	e.playerCount--
	e.lastActive = r.now()
	return true
}

// List returns the rooms in registration order.
func (r *Registry) List() []RoomInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]RoomInfo, 0, len(r.rooms))
	for _, e := range r.rooms {
		out = append(out, e.info())
	}
	return out
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rooms)
}

// Sweep removes rooms idle for longer than the timeout, whatever their
// player count, and returns how many were removed.
func (r *Registry) Sweep() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	kept := r.rooms[:0]
	removed := 0
	for _, e := range r.rooms {
		if now.Sub(e.lastActive) > r.timeout {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	for i := len(kept); i < len(r.rooms); i++ {
		r.rooms[i] = nil
	}
	r.rooms = kept
	if removed > 0 {
		r.logger.Info("cleaned up inactive rooms", zap.Int("removed", removed), zap.Int("remaining", len(r.rooms)))
	}
	return removed
}

func (r *Registry) find(ep Endpoint) *entry {
	for _, e := range r.rooms {
		if e.endpoint == ep {
			return e
		}
	}
	return nil
}
