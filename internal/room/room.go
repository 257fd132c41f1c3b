package room

import (
	"errors"
	"strings"
	"sync"

	"go.uber.org/zap"
)

const slotCount = 2

var (
	ErrRoomFull      = errors.New("room is full")
	ErrNotInRoom     = errors.New("connection is not in this room")
	ErrAlreadyJoined = errors.New("connection already joined")
)

// Announcer reports occupancy changes to the matchmaker.
type Announcer interface {
	PlayerJoin() error
	PlayerLeave() error
}

// Slot is one seat in the room.
type Slot struct {
	ConnID   string `json:"conn_id"`
	Username string `json:"username"`
	Ready    bool   `json:"ready"`
	PlayerID string `json:"player_id,omitempty"`
}

// Snapshot is a consistent copy of the room.
type Snapshot struct {
	Name      string `json:"name"`
	Slots     []Slot `json:"slots"`
	Full      bool   `json:"full"`
	AllReady  bool   `json:"all_ready"`
	SessionID string `json:"session_id,omitempty"`
}

// Room coordinates two connections from lobby to match start.
type Room struct {
	mu        sync.Mutex
	name      string
	slots     [slotCount]*Slot
	sessionID string
	announcer Announcer
	logger    *zap.Logger
}

// New creates an empty room. announcer may be nil.
func New(name string, announcer Announcer, logger *zap.Logger) *Room {
	return &Room{
		name:      strings.TrimSpace(name),
		announcer: announcer,
		logger:    logger.With(zap.String("room", name)),
	}
}

func (r *Room) Name() string {
	return r.name
}

// Join seats connID in the first free slot and returns its index.
func (r *Room) Join(connID, username string) (int, error) {
	r.mu.Lock()
	if r.indexOf(connID) >= 0 {
		r.mu.Unlock()
		return -1, ErrAlreadyJoined
	}
	idx := -1
	for i, slot := range r.slots {
		if slot == nil {
			idx = i
			break
		}
	}
	if idx < 0 {
		r.mu.Unlock()
		r.logger.Info("room full, rejecting connection", zap.String("conn_id", connID))
		return -1, ErrRoomFull
	}
	r.slots[idx] = &Slot{ConnID: connID, Username: strings.TrimSpace(username)}
	r.mu.Unlock()

	r.logger.Info("player joined room",
		zap.String("conn_id", connID),
		zap.String("username", username),
		zap.Int("slot", idx),
	)
	r.announce(Announcer.PlayerJoin)
	return idx, nil
}

// ToggleReady flips connID's ready flag and returns the new value.
func (r *Room) ToggleReady(connID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	idx := r.indexOf(connID)
	if idx < 0 {
		return false, ErrNotInRoom
	}
	r.slots[idx].Ready = !r.slots[idx].Ready
	return r.slots[idx].Ready, nil
}

// Leave frees connID's slot, clears the other slot's ready flag and returns
// the remaining connection, if any, so the caller can notify it once.
func (r *Room) Leave(connID string) (string, bool) {
	r.mu.Lock()
	idx := r.indexOf(connID)
	if idx < 0 {
		r.mu.Unlock()
		return "", false
	}
	r.slots[idx] = nil
	r.sessionID = ""

	remaining := ""
	for _, slot := range r.slots {
		if slot != nil {
			slot.Ready = false
			slot.PlayerID = ""
			remaining = slot.ConnID
		}
	}
	r.mu.Unlock()

	r.logger.Info("player left room", zap.String("conn_id", connID), zap.Int("slot", idx))
	r.announce(Announcer.PlayerLeave)
	return remaining, remaining != ""
}

// Full reports whether both slots are occupied.
func (r *Room) Full() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.full()
}

// AllReady reports whether the room is full and both slots are ready. It is
// the only precondition for starting a session.
func (r *Room) AllReady() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.allReady()
}

// Count returns the number of occupied slots.
func (r *Room) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, slot := range r.slots {
		if slot != nil {
			n++
		}
	}
	return n
}

// Occupants returns the seated connection ids in slot order.
func (r *Room) Occupants() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, slot := range r.slots {
		if slot != nil {
			out = append(out, slot.ConnID)
		}
	}
	return out
}

// BeginSession records sessionID if the room is ready and no session is
// bound yet. It returns false when a session should not be started.
func (r *Room) BeginSession(sessionID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.allReady() || r.sessionID != "" {
		return false
	}
	r.sessionID = sessionID
	return true
}

// EndSession unbinds sessionID and clears both ready flags and player ids so
// the pair has to ready up again. It reports whether sessionID was bound.
func (r *Room) EndSession(sessionID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if sessionID == "" || r.sessionID != sessionID {
		return false
	}
	r.sessionID = ""
	for _, slot := range r.slots {
		if slot != nil {
			slot.Ready = false
			slot.PlayerID = ""
		}
	}
	return true
}

// SessionID returns the bound session, or "".
func (r *Room) SessionID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sessionID
}

// SetPlayerID records the session player id for connID.
func (r *Room) SetPlayerID(connID, playerID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	idx := r.indexOf(connID)
	if idx < 0 {
		return ErrNotInRoom
	}
	r.slots[idx].PlayerID = playerID
	return nil
}

// Slot returns a copy of connID's slot.
func (r *Room) Slot(connID string) (Slot, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	idx := r.indexOf(connID)
	if idx < 0 {
		return Slot{}, false
	}
	return *r.slots[idx], true
}

func (r *Room) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	snap := Snapshot{
		Name:      r.name,
		Slots:     make([]Slot, 0, slotCount),
		Full:      r.full(),
		AllReady:  r.allReady(),
		SessionID: r.sessionID,
	}
	for _, slot := range r.slots {
		if slot != nil {
			snap.Slots = append(snap.Slots, *slot)
		}
	}
	return snap
}

func (r *Room) full() bool {
	for _, slot := range r.slots {
		if slot == nil {
			return false
		}
	}
	return true
}

func (r *Room) allReady() bool {
	if !r.full() {
		return false
	}
	for _, slot := range r.slots {
		if !slot.Ready {
			return false
		}
	}
	return true
}

func (r *Room) indexOf(connID string) int {
	for i, slot := range r.slots {
		if slot != nil && slot.ConnID == connID {
			return i
		}
	}
	return -1
}

func (r *Room) announce(fn func(Announcer) error) {
	if r.announcer == nil {
		return
	}
	if err := fn(r.announcer); err != nil {
		r.logger.Warn("failed to announce occupancy change", zap.Error(err))
	}
}
