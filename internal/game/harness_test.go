package game

import (
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/stealthdragons/dragon-server/internal/catalog"
)

const harnessCatalog = `
cards:
  - id: grunt
    name: Grunt
    cost: 1
    strength: 3
    health: 6
    targets: [ENEMIES, OPPONENT]
  - id: brute
    name: Brute
    cost: 2
    strength: 5
    health: 4
    targets: [ENEMIES, OPPONENT]
  - id: wall
    name: Wall
    cost: 1
    strength: 0
    health: 5
    taunt: true
    targets: [ENEMIES]
  - id: charger
    name: Charger
    cost: 1
    strength: 2
    health: 2
    charge: true
    targets: [ENEMIES, OPPONENT]
  - id: sniper
    name: Sniper
    cost: 1
    strength: 1
    health: 1
    targets: [OPPONENT]
  - id: hunter
    name: Hunter
    cost: 1
    strength: 2
    health: 3
    targets: [ENEMIES]
  - id: colossus
    name: Colossus
    cost: 9
    strength: 9
    health: 9
    targets: [ENEMIES, OPPONENT]
starting_deck:
  - { card: grunt, amount: 4 }
  - { card: brute, amount: 2 }
  - { card: wall, amount: 2 }
  - { card: charger, amount: 2 }
`

// recorder collects notifications for assertions.
type recorder struct {
	mu    sync.Mutex
	notes []Notification
}

func (r *recorder) Notify(n Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notes = append(r.notes, n)
}

func (r *recorder) all() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notification(nil), r.notes...)
}

func (r *recorder) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notes = nil
}

func (r *recorder) ofKind(kind NotificationKind) []Notification {
	var out []Notification
	for _, n := range r.all() {
		if n.Kind == kind {
			out = append(out, n)
		}
	}
	return out
}

// visibleTo returns the notifications playerID would receive.
func (r *recorder) visibleTo(playerID string) []Notification {
	var out []Notification
	for _, n := range r.all() {
		if n.Broadcast() {
			out = append(out, n)
			continue
		}
		for _, id := range n.Recipients {
			if id == playerID {
				out = append(out, n)
				break
			}
		}
	}
	return out
}

type harness struct {
	t     *testing.T
	cat   *catalog.Catalog
	s     *Session
	sched *ManualScheduler
	rec   *recorder
	a, b  *Player
}

func testOptions() Options {
	return Options{
		MaxHealth:    30,
		MaxMana:      10,
		HandSize:     7,
		AttackDelay:  2 * time.Second,
		DestroyDelay: 1500 * time.Millisecond,
		InboxSize:    64,
		Rand:         rand.New(rand.NewSource(1)),
	}
}

func newHarness(t *testing.T, opts Options) *harness {
	t.Helper()
	cat, err := catalog.Parse([]byte(harnessCatalog))
	require.NoError(t, err)

	h := &harness{
		t:     t,
		cat:   cat,
		sched: NewManualScheduler(),
		rec:   &recorder{},
	}
	h.s = NewSession("test-session", cat, opts, h.sched, h.rec, zaptest.NewLogger(t))

	h.a, err = h.s.addPlayer("alice")
	require.NoError(t, err)
	h.b, err = h.s.addPlayer("bob")
	require.NoError(t, err)
	return h
}

// newStartedHarness returns a session in progress with alice to act.
func newStartedHarness(t *testing.T) *harness {
	t.Helper()
	h := newHarness(t, testOptions())
	require.NoError(t, h.s.start())
	h.drain()
	h.rec.reset()
	return h
}

// drain processes queued continuations synchronously.
func (h *harness) drain() {
	for {
		select {
		case env := <-h.s.inbox:
			h.s.process(env)
		default:
			return
		}
	}
}

func (h *harness) do(p *Player, cmd Command) error {
	err := h.s.handle(p.ID, cmd)
	h.drain()
	return err
}

func (h *harness) advance(d time.Duration) {
	h.sched.Advance(d)
	h.drain()
}

// summon puts a ready creature straight onto p's field.
func (h *harness) summon(p *Player, cardID string) *Creature {
	h.t.Helper()
	card, ok := h.cat.Get(cardID)
	require.True(h.t, ok, "unknown card %s", cardID)

	info := NewCardInfo(card)
	p.Deck.Field.Add(info)
	c := newCreature(p.ID, info)
	c.WaitTurn = 0
	h.s.entities[c.ID] = c
	if c.Taunt {
		p.TauntCount++
	}
	return c
}

// stack replaces p's draw pile with fresh instances of the given cards.
func (h *harness) stack(p *Player, cardIDs ...string) []CardInfo {
	h.t.Helper()
	p.Deck.DrawPile.Clear()
	var out []CardInfo
	for _, id := range cardIDs {
		card, ok := h.cat.Get(id)
		require.True(h.t, ok, "unknown card %s", id)
		info := NewCardInfo(card)
		p.Deck.DrawPile.Add(info)
		out = append(out, info)
	}
	return out
}

func (h *harness) attack(p *Player, attacker, target Combatant) error {
	return h.do(p, RequestAttack{
		AttackerID:       attacker.Base().ID,
		TargetID:         target.Base().ID,
		AttackerStrength: attacker.Base().Strength,
		TargetStrength:   target.Base().Strength,
	})
}

func instanceIDs(cards []CardInfo) []string {
	out := make([]string, 0, len(cards))
	for _, c := range cards {
		out = append(out, c.InstanceID)
	}
	return out
}
