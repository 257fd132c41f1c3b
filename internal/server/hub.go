package server

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/stealthdragons/dragon-server/internal/config"
	"github.com/stealthdragons/dragon-server/internal/game"
	"github.com/stealthdragons/dragon-server/internal/protocol"
	"github.com/stealthdragons/dragon-server/internal/room"
)

const callTimeout = 5 * time.Second

type client struct {
	id       string
	conn     *websocket.Conn
	send     chan []byte
	playerID string
}

// Hub binds websocket connections to the room and its game session. It is
// the game.Notifier of the session manager: notifications are routed to the
// connections of their recipients.
type Hub struct {
	cfg      config.WebSocketConfig
	room     *room.Room
	sessions *game.Manager
	logger   *zap.Logger
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[string]*client
	players map[string]*client
	closed  bool

	pumps sync.WaitGroup

	startMu sync.Mutex

	// ctx bounds the session loops the hub creates.
	ctx    context.Context
	cancel context.CancelFunc
}

// NewHub creates a hub. The session manager is attached with Attach because
// the manager needs the hub as its notifier.
func NewHub(cfg config.WebSocketConfig, rm *room.Room, logger *zap.Logger) *Hub {
	if cfg.SendBufferSize <= 0 {
		cfg.SendBufferSize = 256
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		ctx:    ctx,
		cancel: cancel,
		cfg:    cfg,
		room:   rm,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		clients: make(map[string]*client),
		players: make(map[string]*client),
	}
}

func (h *Hub) Attach(sessions *game.Manager) {
	h.sessions = sessions
}

// ConnectionCount returns the number of open websocket connections.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeHTTP upgrades the request and runs the connection pumps.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	c := &client{
		id:   uuid.New().String(),
		conn: conn,
		send: make(chan []byte, h.cfg.SendBufferSize),
	}
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		_ = conn.Close()
		return
	}
	h.clients[c.id] = c
	h.pumps.Add(2)
	h.mu.Unlock()

	h.logger.Debug("client connected", zap.String("conn_id", c.id), zap.String("remote", r.RemoteAddr))

	go h.writePump(c)
	go h.readPump(c)
}

// Close refuses new connections, closes every open one and waits until
// their pumps and disconnect handling have finished. Session loops started
// by the hub are stopped afterwards.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	conns := make([]*websocket.Conn, 0, len(h.clients))
	for _, c := range h.clients {
		conns = append(conns, c.conn)
	}
	h.mu.Unlock()

	for _, conn := range conns {
		_ = conn.Close()
	}
	h.pumps.Wait()
	h.cancel()
	h.logger.Debug("hub closed", zap.Int("connections", len(conns)))
}

// Notify implements game.Notifier.
func (h *Hub) Notify(n game.Notification) {
	frame, err := protocol.EncodeNotification(n)
	if err != nil {
		h.logger.Error("encode notification", zap.String("kind", string(n.Kind)), zap.Error(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	if n.Broadcast() {
		for _, c := range h.players {
			h.trySend(c, frame)
		}
		return
	}
	for _, pid := range n.Recipients {
		if c, ok := h.players[pid]; ok {
			h.trySend(c, frame)
		}
	}
}

// trySend queues frame without blocking. Callers hold h.mu.
func (h *Hub) trySend(c *client, frame []byte) {
	select {
	case c.send <- frame:
	default:
		h.logger.Warn("send buffer full, dropping frame", zap.String("conn_id", c.id))
	}
}

func (h *Hub) sendTo(c *client, typ string, data any) {
	frame, err := protocol.Encode(typ, data)
	if err != nil {
		h.logger.Error("encode message", zap.String("type", typ), zap.Error(err))
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.clients[c.id] == c {
		h.trySend(c, frame)
	}
}

func (h *Hub) sendToConn(connID, typ string, data any) {
	h.mu.RLock()
	c, ok := h.clients[connID]
	h.mu.RUnlock()
	if ok {
		h.sendTo(c, typ, data)
	}
}

func (h *Hub) sendError(c *client, err error) {
	h.sendTo(c, protocol.TypeError, protocol.ErrorData{Reason: err.Error()})
}

func (h *Hub) broadcastRoomState() {
	snap := h.room.Snapshot()
	for _, slot := range snap.Slots {
		h.sendToConn(slot.ConnID, protocol.TypeRoomState, protocol.RoomStateData{Room: snap})
	}
}

func (h *Hub) readPump(c *client) {
	defer h.pumps.Done()
	defer h.disconnect(c)

	if h.cfg.ReadLimit > 0 {
		c.conn.SetReadLimit(h.cfg.ReadLimit)
	}
	if h.cfg.PongWait > 0 {
		_ = c.conn.SetReadDeadline(time.Now().Add(h.cfg.PongWait))
		c.conn.SetPongHandler(func(string) error {
			return c.conn.SetReadDeadline(time.Now().Add(h.cfg.PongWait))
		})
	}

	for {
		_, frame, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Info("connection lost", zap.String("conn_id", c.id), zap.Error(err))
			}
			return
		}
		if !h.handleFrame(c, frame) {
			return
		}
	}
}

func (h *Hub) writePump(c *client) {
	var tick <-chan time.Time
	if h.cfg.PingPeriod > 0 {
		ticker := time.NewTicker(h.cfg.PingPeriod)
		defer ticker.Stop()
		tick = ticker.C
	}
	defer h.pumps.Done()
	defer c.conn.Close()

	for {
		select {
		case frame, ok := <-c.send:
			h.setWriteDeadline(c)
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-tick:
			h.setWriteDeadline(c)
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *Hub) setWriteDeadline(c *client) {
	if h.cfg.WriteWait > 0 {
		_ = c.conn.SetWriteDeadline(time.Now().Add(h.cfg.WriteWait))
	}
}

// handleFrame processes one client frame and reports whether the connection
// stays open.
func (h *Hub) handleFrame(c *client, frame []byte) bool {
	env, err := protocol.Decode(frame)
	if err != nil {
		h.logger.Info("dropping invalid frame", zap.String("conn_id", c.id), zap.Error(err))
		h.sendError(c, err)
		return true
	}

	switch {
	case env.Type == protocol.TypeJoin:
		return h.handleJoin(c, env)

	case env.Type == protocol.TypeToggleReady:
		ready, err := h.room.ToggleReady(c.id)
		if err != nil {
			h.sendError(c, err)
			return true
		}
		h.logger.Info("ready toggled", zap.String("conn_id", c.id), zap.Bool("ready", ready))
		h.broadcastRoomState()
		if h.room.AllReady() {
			if err := h.startMatch(); err != nil {
				h.logger.Error("failed to start match", zap.Error(err))
			}
		}
		return true

	case env.Type == protocol.TypeRequestBoard:
		s, pid, ok := h.sessionFor(c)
		if !ok {
			h.sendError(c, game.ErrWrongState)
			return true
		}
		ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
		defer cancel()
		view, err := s.View(ctx, pid)
		if err != nil {
			h.sendError(c, err)
			return true
		}
		h.sendTo(c, protocol.TypeBoardState, view)
		return true

	case protocol.IsGameCommand(env.Type):
		cmd, err := protocol.Command(env)
		if err != nil {
			h.logger.Info("dropping invalid command", zap.String("conn_id", c.id), zap.Error(err))
			h.sendError(c, err)
			return true
		}
		s, pid, ok := h.sessionFor(c)
		if !ok {
			h.sendError(c, game.ErrWrongState)
			return true
		}
		ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
		defer cancel()
		if err := s.Submit(ctx, pid, cmd); err != nil {
			h.logger.Warn("submit command", zap.String("command", cmd.CommandName()), zap.Error(err))
		}
		return true
	}

	h.sendError(c, protocol.ErrUnknownType)
	return true
}

func (h *Hub) handleJoin(c *client, env protocol.Envelope) bool {
	req, err := protocol.DecodeJoin(env)
	if err != nil {
		h.sendError(c, err)
		return true
	}
	slot, err := h.room.Join(c.id, req.Username)
	if errors.Is(err, room.ErrRoomFull) {
		h.sendError(c, err)
		return false
	}
	if err != nil {
		h.sendError(c, err)
		return true
	}
	h.sendTo(c, protocol.TypeWelcome, protocol.WelcomeData{ConnID: c.id, Slot: slot})
	h.broadcastRoomState()
	return true
}

// startMatch creates a session for the ready pair, seats both players in
// slot order, loads their decks, deals opening hands and starts turn 1. A
// failure after the room is bound releases the session so the pair can
// ready up again.
func (h *Hub) startMatch() error {
	h.startMu.Lock()
	defer h.startMu.Unlock()

	s := h.sessions.Create(h.ctx)
	if !h.room.BeginSession(s.ID()) {
		return h.sessions.Remove(s.ID())
	}

	playerIDs, err := h.seatPlayers(s)
	if err != nil {
		h.logger.Warn("match start failed", zap.String("session_id", s.ID()), zap.Error(err))
		for _, slot := range h.room.Snapshot().Slots {
			h.unbind(slot.ConnID)
		}
		h.room.EndSession(s.ID())
		h.abandon(s.ID())
		h.broadcastRoomState()
		return err
	}

	h.logger.Info("match started", zap.String("session_id", s.ID()), zap.Strings("players", playerIDs))
	h.broadcastRoomState()
	return nil
}

func (h *Hub) seatPlayers(s *game.Session) ([]string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()

	snap := h.room.Snapshot()
	playerIDs := make([]string, 0, len(snap.Slots))
	for _, slot := range snap.Slots {
		pid, err := s.AddPlayer(ctx, slot.Username)
		if err != nil {
			return nil, err
		}
		if err := h.room.SetPlayerID(slot.ConnID, pid); err != nil {
			return nil, err
		}
		h.bind(slot.ConnID, pid)
		playerIDs = append(playerIDs, pid)
	}

	for _, pid := range playerIDs {
		if err := s.Submit(ctx, pid, game.LoadDeck{}); err != nil {
			return nil, err
		}
		if err := s.Submit(ctx, pid, game.DrawInitialHand{}); err != nil {
			return nil, err
		}
	}
	if err := s.Start(ctx); err != nil {
		return nil, err
	}
	return playerIDs, nil
}

func (h *Hub) bind(connID, playerID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	c, ok := h.clients[connID]
	if !ok {
		return
	}
	c.playerID = playerID
	h.players[playerID] = c
}

func (h *Hub) unbind(connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	c, ok := h.clients[connID]
	if !ok || c.playerID == "" {
		return
	}
	delete(h.players, c.playerID)
	c.playerID = ""
}

func (h *Hub) sessionFor(c *client) (*game.Session, string, bool) {
	h.mu.RLock()
	pid := c.playerID
	h.mu.RUnlock()
	if pid == "" {
		return nil, "", false
	}
	s, ok := h.sessions.Get(h.room.SessionID())
	if !ok {
		return nil, "", false
	}
	return s, pid, true
}

// disconnect releases c. If c was seated, the room is reset, an ongoing
// match is abandoned and the remaining connection is told once.
func (h *Hub) disconnect(c *client) {
	h.mu.Lock()
	if h.clients[c.id] != c {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c.id)
	if c.playerID != "" {
		delete(h.players, c.playerID)
	}
	close(c.send)
	h.mu.Unlock()

	if _, seated := h.room.Slot(c.id); !seated {
		h.logger.Debug("client disconnected", zap.String("conn_id", c.id))
		return
	}

	sessionID := h.room.SessionID()
	remaining, ok := h.room.Leave(c.id)

	if sessionID != "" {
		h.abandon(sessionID)
	}
	if ok {
		h.sendToConn(remaining, protocol.TypeDisconnectNotice, protocol.DisconnectNoticeData{Reason: protocol.OpponentDisconnected})
		h.unbind(remaining)
		h.broadcastRoomState()
	}
}

func (h *Hub) abandon(sessionID string) {
	s, ok := h.sessions.Get(sessionID)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()
	if err := s.Abandon(ctx, protocol.OpponentDisconnected); err != nil {
		h.logger.Warn("abandon session", zap.String("session_id", sessionID), zap.Error(err))
	}
	if err := h.sessions.Remove(sessionID); err != nil {
		h.logger.Warn("remove session", zap.String("session_id", sessionID), zap.Error(err))
	}
}
