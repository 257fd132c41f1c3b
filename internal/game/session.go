package game

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/stealthdragons/dragon-server/internal/catalog"
	"github.com/stealthdragons/dragon-server/internal/config"
)

// State is the lifecycle state of a Session.
type State int

const (
	StateAwaitingPlayers State = iota
	StateInProgress
	StateConcluded
)

func (s State) String() string {
	switch s {
	case StateAwaitingPlayers:
		return "AWAITING_PLAYERS"
	case StateInProgress:
		return "IN_PROGRESS"
	case StateConcluded:
		return "CONCLUDED"
	default:
		return "UNKNOWN"
	}
}

const maxPlayers = 2

// Outcome is one line of the append-only result list.
type Outcome struct {
	PlayerID string `json:"player_id"`
	Username string `json:"username"`
	Winner   bool   `json:"winner"`
}

// Options are the rules constants of a session.
type Options struct {
	MaxHealth        int
	MaxMana          int
	HandSize         int
	AttackDelay      time.Duration
	DestroyDelay     time.Duration
	EnforceTurnOrder bool
	InboxSize        int
	// Rand shuffles decks. A time-seeded source is used when nil.
	Rand *rand.Rand
}

// OptionsFromConfig maps the game section of the configuration.
func OptionsFromConfig(cfg config.GameConfig) Options {
	return Options{
		MaxHealth:        cfg.MaxHealth,
		MaxMana:          cfg.MaxMana,
		HandSize:         cfg.HandSize,
		AttackDelay:      cfg.AttackAnimationDelay,
		DestroyDelay:     cfg.DestroyDelay,
		EnforceTurnOrder: cfg.EnforceTurnOrder,
		InboxSize:        cfg.InboxSize,
	}
}

// Summary is a lock-protected copy of session state for other goroutines.
type Summary struct {
	ID             string
	State          State
	Turn           int
	ActivePlayerID string
	Players        []PlayerSummary
	Outcomes       []Outcome
}

type envelope struct {
	fn     func() error
	result chan error
}

// Session is the authoritative state of one match. All state is owned by the
// goroutine running Run; other goroutines interact through Submit and the
// other exported methods, which enqueue work on the inbox.
type Session struct {
	id       string
	opts     Options
	catalog  *catalog.Catalog
	sched    Scheduler
	notifier Notifier
	logger   *zap.Logger
	rng      *rand.Rand

	inbox chan envelope
	done  chan struct{}

	state    State
	players  []*Player
	entities map[string]Combatant
	turn     *TurnManager
	outcomes []Outcome
	inFlight map[string]bool

	mu      sync.RWMutex
	summary Summary
}

// NewSession creates a session in StateAwaitingPlayers. Call Run to start
// processing commands.
func NewSession(id string, cat *catalog.Catalog, opts Options, sched Scheduler, notifier Notifier, logger *zap.Logger) *Session {
	if id == "" {
		id = uuid.New().String()
	}
	if opts.InboxSize <= 0 {
		opts.InboxSize = 256
	}
	if sched == nil {
		sched = TimerScheduler{}
	}
	if notifier == nil {
		notifier = NotifierFunc(func(Notification) {})
	}
	rng := opts.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	s := &Session{
		id:       id,
		opts:     opts,
		catalog:  cat,
		sched:    sched,
		notifier: notifier,
		logger:   logger.With(zap.String("session_id", id)),
		rng:      rng,
		inbox:    make(chan envelope, opts.InboxSize),
		done:     make(chan struct{}),
		state:    StateAwaitingPlayers,
		entities: make(map[string]Combatant),
		inFlight: make(map[string]bool),
	}
	s.publishSummary()
	return s
}

func (s *Session) ID() string {
	return s.id
}

// Run processes the inbox until ctx is cancelled.
func (s *Session) Run(ctx context.Context) {
	defer close(s.done)
	s.logger.Debug("session loop started")
	for {
		if ctx.Err() != nil {
			s.logger.Debug("session loop stopped")
			return
		}
		select {
		case <-ctx.Done():
			s.logger.Debug("session loop stopped")
			return
		case env := <-s.inbox:
			s.process(env)
		}
	}
}

// Done is closed when Run returns.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

func (s *Session) process(env envelope) {
	err := env.fn()
	s.publishSummary()
	if env.result != nil {
		env.result <- err
	}
}

// call runs fn on the session loop and waits for its result.
func (s *Session) call(ctx context.Context, fn func() error) error {
	env := envelope{fn: fn, result: make(chan error, 1)}
	select {
	case s.inbox <- env:
	case <-s.done:
		return ErrSessionClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-env.result:
		return err
	case <-s.done:
		return ErrSessionClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// post enqueues a continuation without waiting for it.
func (s *Session) post(fn func()) {
	env := envelope{fn: func() error { fn(); return nil }}
	select {
	case s.inbox <- env:
	case <-s.done:
	}
}

// after schedules fn to run on the session loop once d has elapsed.
func (s *Session) after(d time.Duration, fn func()) {
	s.sched.AfterFunc(d, func() { s.post(fn) })
}

// Submit applies cmd on behalf of playerID and returns the validation result.
func (s *Session) Submit(ctx context.Context, playerID string, cmd Command) error {
	return s.call(ctx, func() error { return s.handle(playerID, cmd) })
}

// AddPlayer joins a participant and returns the new player id.
func (s *Session) AddPlayer(ctx context.Context, username string) (string, error) {
	var id string
	err := s.call(ctx, func() error {
		p, err := s.addPlayer(username)
		if err != nil {
			return err
		}
		id = p.ID
		return nil
	})
	return id, err
}

// Start begins the first turn.
func (s *Session) Start(ctx context.Context) error {
	return s.call(ctx, s.start)
}

// Abandon concludes the session without recording an outcome.
func (s *Session) Abandon(ctx context.Context, reason string) error {
	return s.call(ctx, func() error {
		s.abandon(reason)
		return nil
	})
}

// View returns what playerID may see of the board.
func (s *Session) View(ctx context.Context, playerID string) (BoardView, error) {
	var view BoardView
	err := s.call(ctx, func() error {
		var err error
		view, err = s.buildView(playerID)
		return err
	})
	return view, err
}

// Summary returns the most recent state summary. Safe from any goroutine.
func (s *Session) Summary() Summary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := s.summary
	out.Players = append([]PlayerSummary(nil), s.summary.Players...)
	out.Outcomes = append([]Outcome(nil), s.summary.Outcomes...)
	return out
}

func (s *Session) publishSummary() {
	sum := Summary{
		ID:       s.id,
		State:    s.state,
		Players:  s.playerSummaries(),
		Outcomes: append([]Outcome(nil), s.outcomes...),
	}
	if s.turn != nil {
		sum.Turn = s.turn.TurnNumber()
		sum.ActivePlayerID = s.turn.ActivePlayer()
	}
	s.mu.Lock()
	s.summary = sum
	s.mu.Unlock()
}

func (s *Session) playerSummaries() []PlayerSummary {
	out := make([]PlayerSummary, 0, len(s.players))
	for _, p := range s.players {
		out = append(out, PlayerSummary{ID: p.ID, Username: p.Username, First: p.First})
	}
	return out
}

func (s *Session) addPlayer(username string) (*Player, error) {
	if s.state != StateAwaitingPlayers {
		return nil, fmt.Errorf("add player: %w", ErrWrongState)
	}
	if len(s.players) >= maxPlayers {
		return nil, ErrSessionFull
	}
	username = strings.TrimSpace(username)
	if username == "" {
		username = fmt.Sprintf("Player %d", len(s.players)+1)
	}

	p := newPlayer(uuid.New().String(), username, s.opts.MaxHealth, s.opts.MaxMana)
	p.First = len(s.players) == 0
	s.players = append(s.players, p)
	s.entities[p.ID] = p
	p.Deck.Hand.Subscribe(func(evt ChangeEvent) { s.onHandChanged(p, evt) })

	s.logger.Info("player joined session",
		zap.String("player_id", p.ID),
		zap.String("username", p.Username),
		zap.Bool("first", p.First),
	)
	return p, nil
}

func (s *Session) start() error {
	if s.state != StateAwaitingPlayers {
		return fmt.Errorf("start: %w", ErrWrongState)
	}
	if len(s.players) != maxPlayers {
		return ErrNotEnoughPlayers
	}

	first, second := s.players[0], s.players[1]
	s.turn = NewTurnManager(first.ID, second.ID)
	s.state = StateInProgress

	s.broadcast(NotifyGameStarted, GameStartedPayload{
		FirstPlayerID: first.ID,
		Turn:          s.turn.TurnNumber(),
		Players:       s.playerSummaries(),
	})
	s.logger.Info("session started", zap.String("first_player_id", first.ID))

	s.beginTurn(first)
	return nil
}

// beginTurn runs the turn-entry sequence for p.
func (s *Session) beginTurn(p *Player) {
	p.Mana.Grow()
	p.Deck.Draw(1)
	for _, card := range p.Deck.Field.Cards() {
		if c, ok := s.entities[card.InstanceID]; ok {
			c.Base().WaitTurn = 0
		}
	}
	s.entityChanged(p)
}

func (s *Session) endTurn() error {
	if s.state != StateInProgress {
		return fmt.Errorf("end turn: %w", ErrWrongState)
	}
	next := s.turn.Toggle()
	s.broadcast(NotifyTurnToggled, TurnToggledPayload{
		ActivePlayerID: next,
		Turn:           s.turn.TurnNumber(),
	})
	s.logger.Debug("turn toggled",
		zap.String("active_player_id", next),
		zap.Int("turn", s.turn.TurnNumber()),
	)
	s.beginTurn(s.playerByID(next))
	return nil
}

func (s *Session) abandon(reason string) {
	if s.state == StateConcluded {
		return
	}
	s.state = StateConcluded
	s.broadcast(NotifyGameAbandoned, ErrorPayload{Reason: reason})
	s.logger.Info("session abandoned", zap.String("reason", reason))
}

// defeat records the outcome for a player whose health reached zero.
func (s *Session) defeat(p *Player) {
	s.outcomes = append(s.outcomes, Outcome{PlayerID: p.ID, Username: p.Username, Winner: false})
	for _, other := range s.players {
		if other != p && other.Health > 0 {
			s.outcomes = append(s.outcomes, Outcome{PlayerID: other.ID, Username: other.Username, Winner: true})
			break
		}
	}
	delete(s.entities, p.ID)
	s.state = StateConcluded

	s.broadcast(NotifyGameOutcomeRecorded, OutcomePayload{Outcomes: append([]Outcome(nil), s.outcomes...)})
	s.logger.Info("player defeated, session concluded",
		zap.String("player_id", p.ID),
		zap.String("username", p.Username),
	)
}

func (s *Session) onHandChanged(owner *Player, evt ChangeEvent) {
	payload := HandChangedPayload{Op: evt.Op, Index: evt.Index, Count: evt.Len}
	switch evt.Op {
	case OpAdd, OpInsert, OpRemoveAt:
		card := newCardView(evt.Card)
		payload.Card = &card
	}
	s.notify(NotifyHandChanged, payload, owner.ID)
	if evt.Op == OpAdd || evt.Op == OpInsert {
		s.notify(NotifyCardAddedToHand, CardAddedToHandPayload{Index: evt.Index, Card: newCardView(evt.Card)}, owner.ID)
	}

	if opp := s.opponentOf(owner.ID); opp != nil {
		s.notify(NotifyOpponentHandCount, OpponentHandCountPayload{PlayerID: owner.ID, Count: evt.Len}, opp.ID)
	}
}

func (s *Session) playerByID(id string) *Player {
	for _, p := range s.players {
		if p.ID == id {
			return p
		}
	}
	return nil
}

func (s *Session) opponentOf(id string) *Player {
	for _, p := range s.players {
		if p.ID != id {
			return p
		}
	}
	return nil
}

func (s *Session) entityChanged(c Combatant) {
	s.broadcast(NotifyEntityChanged, EntityChangedPayload{Entity: newEntityView(c)})
}

func (s *Session) broadcast(kind NotificationKind, payload any) {
	s.notify(kind, payload)
}

func (s *Session) notify(kind NotificationKind, payload any, recipients ...string) {
	s.notifier.Notify(Notification{
		Kind:       kind,
		SessionID:  s.id,
		Recipients: recipients,
		Timestamp:  time.Now(),
		Payload:    payload,
	})
}

// reject logs a refused command and tells the requester why.
func (s *Session) reject(playerID string, cmd Command, err error) {
	s.logger.Info("command rejected",
		zap.String("player_id", playerID),
		zap.String("command", cmd.CommandName()),
		zap.Error(err),
	)
	if playerID != "" && s.playerByID(playerID) != nil {
		s.notify(NotifyError, ErrorPayload{Reason: err.Error()}, playerID)
	}
}
