package game

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestAddPlayerLimits(t *testing.T) {
	h := newHarness(t, testOptions())

	assert.True(t, h.a.First)
	assert.False(t, h.b.First)

	_, err := h.s.addPlayer("carol")
	assert.ErrorIs(t, err, ErrSessionFull)
}

func TestStartRequiresTwoPlayers(t *testing.T) {
	h := newHarness(t, testOptions())
	h.s.players = h.s.players[:1]
	assert.ErrorIs(t, h.s.start(), ErrNotEnoughPlayers)
	assert.Equal(t, StateAwaitingPlayers, h.s.state)
}

func TestStartRunsFirstTurnEntry(t *testing.T) {
	h := newHarness(t, testOptions())
	h.stack(h.a, "grunt", "brute")

	require.NoError(t, h.s.start())

	assert.Equal(t, StateInProgress, h.s.state)
	assert.Equal(t, 1, h.s.turn.TurnNumber())
	assert.Equal(t, h.a.ID, h.s.turn.ActivePlayer())
	assert.Equal(t, 1, h.a.Mana.CurrentMax)
	assert.Equal(t, 1, h.a.Mana.Current)
	assert.Equal(t, 1, h.a.Deck.Hand.Len())
	assert.Equal(t, 1, h.a.Deck.DrawPile.Len())
	assert.Equal(t, 0, h.b.Mana.CurrentMax, "second player has not had a turn yet")

	started := h.rec.ofKind(NotifyGameStarted)
	require.Len(t, started, 1)
	assert.Equal(t, h.a.ID, started[0].Payload.(GameStartedPayload).FirstPlayerID)
	assert.True(t, started[0].Broadcast())

	assert.ErrorIs(t, h.s.start(), ErrWrongState)
}

func TestTurnAlternationParity(t *testing.T) {
	h := newStartedHarness(t)

	for n := 1; n <= 9; n++ {
		caller := h.a
		if h.s.turn.ActivePlayer() == h.b.ID {
			caller = h.b
		}
		require.NoError(t, h.do(caller, EndTurn{}))

		toggles := h.rec.ofKind(NotifyTurnToggled)
		require.Len(t, toggles, n)
		payload := toggles[n-1].Payload.(TurnToggledPayload)
		assert.Equal(t, n+1, payload.Turn)

		if n%2 == 0 {
			assert.Equal(t, h.a.ID, payload.ActivePlayerID, "after %d toggles", n)
		} else {
			assert.Equal(t, h.b.ID, payload.ActivePlayerID, "after %d toggles", n)
		}
	}
}

func TestTurnEntryGrowsManaAndReadiesField(t *testing.T) {
	h := newStartedHarness(t)
	h.stack(h.b, "grunt")
	creature := h.summon(h.b, "brute")
	creature.WaitTurn = 3

	require.NoError(t, h.do(h.a, EndTurn{}))

	assert.Equal(t, 1, h.b.Mana.CurrentMax)
	assert.Equal(t, 1, h.b.Mana.Current)
	assert.Equal(t, 0, creature.WaitTurn)
	assert.Equal(t, 1, h.b.Deck.Hand.Len())
	assert.Equal(t, 0, h.b.Deck.DrawPile.Len())

	// Empty pile: turn entry still succeeds.
	require.NoError(t, h.do(h.b, EndTurn{}))
	require.NoError(t, h.do(h.a, EndTurn{}))
	assert.Equal(t, 1, h.b.Deck.Hand.Len())
	assert.Equal(t, 2, h.b.Mana.CurrentMax)
}

func TestManaCapStopsAtMax(t *testing.T) {
	h := newStartedHarness(t)
	for i := 0; i < 30; i++ {
		require.NoError(t, h.do(h.a, EndTurn{}))
	}
	assert.Equal(t, 10, h.a.Mana.CurrentMax)
	assert.Equal(t, 10, h.b.Mana.CurrentMax)
}

func TestChangeManaStaysInRange(t *testing.T) {
	h := newStartedHarness(t)

	for _, delta := range []int{5, 100, -3, -1000, 7, 4, -2, 11} {
		require.NoError(t, h.do(h.a, ChangeMana{Delta: delta}))
		assert.GreaterOrEqual(t, h.a.Mana.Current, 0)
		assert.LessOrEqual(t, h.a.Mana.Current, h.a.Mana.Max)
	}
	assert.Equal(t, 10, h.a.Mana.Current)
}

func TestEnforcedTurnOrder(t *testing.T) {
	opts := testOptions()
	opts.EnforceTurnOrder = true
	h := newHarness(t, opts)
	require.NoError(t, h.s.start())

	err := h.do(h.b, EndTurn{})
	assert.ErrorIs(t, err, ErrNotYourTurn)
	assert.Equal(t, h.a.ID, h.s.turn.ActivePlayer())

	errs := h.rec.ofKind(NotifyError)
	require.Len(t, errs, 1)
	assert.Equal(t, []string{h.b.ID}, errs[0].Recipients)

	require.NoError(t, h.do(h.a, EndTurn{}))
	assert.Equal(t, h.b.ID, h.s.turn.ActivePlayer())
}

func TestUnenforcedTurnOrderAcceptsEitherPlayer(t *testing.T) {
	h := newStartedHarness(t)
	require.NoError(t, h.do(h.b, EndTurn{}))
	assert.Equal(t, h.b.ID, h.s.turn.ActivePlayer())
}

func TestDrawCardsTakesFromTop(t *testing.T) {
	h := newHarness(t, testOptions())
	cards := h.stack(h.a, "grunt", "brute", "wall")

	require.NoError(t, h.do(h.a, DrawCards{Count: 2}))

	assert.Equal(t, instanceIDs(cards[:2]), instanceIDs(h.a.Deck.Hand.Cards()))
	assert.Equal(t, instanceIDs(cards[2:]), instanceIDs(h.a.Deck.DrawPile.Cards()))

	require.NoError(t, h.do(h.a, DrawCards{Count: 5}))
	assert.Equal(t, 3, h.a.Deck.Hand.Len())
	assert.Equal(t, 0, h.a.Deck.DrawPile.Len())

	assert.Error(t, h.do(h.a, DrawCards{Count: -1}))
}

func TestLoadDeckAndInitialHand(t *testing.T) {
	h := newHarness(t, testOptions())

	require.NoError(t, h.do(h.a, LoadDeck{}))
	assert.Equal(t, 10, h.a.Deck.DrawPile.Len())

	require.NoError(t, h.do(h.a, DrawInitialHand{}))
	assert.Equal(t, 7, h.a.Deck.Hand.Len())
	assert.Equal(t, 3, h.a.Deck.DrawPile.Len())

	// Redrawing clears first.
	require.NoError(t, h.do(h.a, DrawInitialHand{}))
	assert.Equal(t, 3, h.a.Deck.Hand.Len())
	assert.Equal(t, 0, h.a.Deck.DrawPile.Len())

	require.NoError(t, h.do(h.a, LoadDeck{}))
	assert.Equal(t, 10, h.a.Deck.DrawPile.Len())
	seen := map[string]bool{}
	for _, c := range h.a.Deck.DrawPile.Cards() {
		assert.False(t, seen[c.InstanceID], "instance ids are unique")
		seen[c.InstanceID] = true
	}
}

func TestHandContentsOnlyReachOwner(t *testing.T) {
	h := newHarness(t, testOptions())
	require.NoError(t, h.do(h.a, LoadDeck{}))
	h.rec.reset()

	require.NoError(t, h.do(h.a, DrawInitialHand{}))

	for _, n := range h.rec.visibleTo(h.b.ID) {
		assert.NotEqual(t, NotifyCardAddedToHand, n.Kind)
		assert.NotEqual(t, NotifyHandChanged, n.Kind)
		if n.Kind == NotifyOpponentHandCount {
			assert.Equal(t, h.a.ID, n.Payload.(OpponentHandCountPayload).PlayerID)
		}
	}
	counts := h.rec.ofKind(NotifyOpponentHandCount)
	require.NotEmpty(t, counts)
	assert.Equal(t, 7, counts[len(counts)-1].Payload.(OpponentHandCountPayload).Count)

	added := h.rec.ofKind(NotifyCardAddedToHand)
	require.Len(t, added, 7)
	for i, n := range added {
		assert.Equal(t, []string{h.a.ID}, n.Recipients)
		assert.Equal(t, i, n.Payload.(CardAddedToHandPayload).Index)
	}

	view, err := h.s.buildView(h.b.ID)
	require.NoError(t, err)
	require.NotNil(t, view.Opponent)
	assert.Equal(t, 7, view.Opponent.HandCount)
	assert.Len(t, view.Opponent.HandSlots, 7)
	assert.Empty(t, view.Hand)

	own, err := h.s.buildView(h.a.ID)
	require.NoError(t, err)
	assert.Len(t, own.Hand, 7)
	assert.Equal(t, 0, own.Opponent.HandCount)
}

func TestRequestHandStateReplaysHandPositionally(t *testing.T) {
	h := newHarness(t, testOptions())
	cards := h.stack(h.a, "grunt", "wall", "brute")
	require.NoError(t, h.do(h.a, DrawCards{Count: 3}))
	h.rec.reset()

	require.NoError(t, h.do(h.a, RequestHandState{}))

	added := h.rec.ofKind(NotifyCardAddedToHand)
	require.Len(t, added, 3)
	for i, n := range added {
		payload := n.Payload.(CardAddedToHandPayload)
		assert.Equal(t, i, payload.Index)
		assert.Equal(t, cards[i].InstanceID, payload.Card.InstanceID)
		assert.Equal(t, []string{h.a.ID}, n.Recipients)
	}
}

func TestPlayCard(t *testing.T) {
	h := newStartedHarness(t)
	cards := h.stack(h.a, "wall", "charger", "colossus")
	require.NoError(t, h.do(h.a, DrawCards{Count: 3}))
	hand := h.a.Deck.Hand.Cards()
	wallIdx := len(hand) - 3
	h.a.Mana.Change(10)

	require.NoError(t, h.do(h.a, PlayCard{InstanceID: cards[0].InstanceID, HandIndex: wallIdx}))

	assert.Equal(t, 9, h.a.Mana.Current)
	assert.Equal(t, 1, h.a.TauntCount)
	assert.Equal(t, -1, h.a.Deck.Hand.IndexOf(cards[0].InstanceID))
	assert.Equal(t, 0, h.a.Deck.Field.IndexOf(cards[0].InstanceID))

	wall := h.s.entities[cards[0].InstanceID].(*Creature)
	assert.Equal(t, 1, wall.WaitTurn)
	assert.Equal(t, h.a.ID, wall.OwnerID)

	results := h.rec.ofKind(NotifyPlayCardResult)
	require.Len(t, results, 1)
	assert.True(t, results[0].Broadcast())
	assert.Equal(t, wallIdx, results[0].Payload.(PlayCardResultPayload).HandIndex)

	chargerIdx := h.a.Deck.Hand.IndexOf(cards[1].InstanceID)
	require.NoError(t, h.do(h.a, PlayCard{InstanceID: cards[1].InstanceID, HandIndex: chargerIdx}))
	charger := h.s.entities[cards[1].InstanceID].(*Creature)
	assert.Equal(t, 0, charger.WaitTurn, "charge creatures act immediately")
	assert.Equal(t, 8, h.a.Mana.Current)

	colossusIdx := h.a.Deck.Hand.IndexOf(cards[2].InstanceID)
	err := h.do(h.a, PlayCard{InstanceID: cards[2].InstanceID, HandIndex: colossusIdx})
	assert.ErrorIs(t, err, ErrInsufficientMana)
	assert.Equal(t, 8, h.a.Mana.Current, "rejected play is not partially applied")
	assert.Equal(t, colossusIdx, h.a.Deck.Hand.IndexOf(cards[2].InstanceID))

	err = h.do(h.a, PlayCard{InstanceID: cards[2].InstanceID, HandIndex: colossusIdx + 1})
	assert.ErrorIs(t, err, ErrHandMismatch)
}

func TestPlayCardRequiresInProgress(t *testing.T) {
	h := newHarness(t, testOptions())
	cards := h.stack(h.a, "grunt")
	require.NoError(t, h.do(h.a, DrawCards{Count: 1}))
	h.a.Mana.Change(5)

	err := h.do(h.a, PlayCard{InstanceID: cards[0].InstanceID, HandIndex: 0})
	assert.ErrorIs(t, err, ErrWrongState)
}

func TestChangeStrengthAndReadiness(t *testing.T) {
	h := newStartedHarness(t)
	c := h.summon(h.a, "grunt")

	require.NoError(t, h.do(h.a, ChangeStrength{EntityID: c.ID, Delta: 2}))
	require.NoError(t, h.do(h.a, IncrementReadiness{EntityID: c.ID}))
	assert.Equal(t, 5, c.Strength)
	assert.Equal(t, 1, c.WaitTurn)

	// Stale ids are dropped silently.
	h.rec.reset()
	require.NoError(t, h.do(h.a, ChangeStrength{EntityID: "gone", Delta: 2}))
	assert.Empty(t, h.rec.ofKind(NotifyError))
}

func TestAbandonDropsLaterCommands(t *testing.T) {
	h := newStartedHarness(t)
	h.s.abandon("Opponent Disconnected")

	assert.Equal(t, StateConcluded, h.s.state)
	assert.Empty(t, h.s.outcomes)
	require.Len(t, h.rec.ofKind(NotifyGameAbandoned), 1)

	err := h.do(h.a, EndTurn{})
	assert.ErrorIs(t, err, ErrWrongState)
}

func TestSessionLoop(t *testing.T) {
	cat := newHarness(t, testOptions()).cat
	rec := &recorder{}
	s := NewSession("", cat, testOptions(), NewManualScheduler(), rec, zaptest.NewLogger(t))

	ctx, cancel := context.WithCancel(context.Background())
	go s.Run(ctx)

	alice, err := s.AddPlayer(ctx, "alice")
	require.NoError(t, err)
	bob, err := s.AddPlayer(ctx, "bob")
	require.NoError(t, err)

	require.NoError(t, s.Submit(ctx, alice, LoadDeck{}))
	require.NoError(t, s.Submit(ctx, bob, LoadDeck{}))
	require.NoError(t, s.Start(ctx))
	require.NoError(t, s.Submit(ctx, alice, EndTurn{}))

	sum := s.Summary()
	assert.Equal(t, StateInProgress, sum.State)
	assert.Equal(t, 2, sum.Turn)
	assert.Equal(t, bob, sum.ActivePlayerID)
	assert.Len(t, sum.Players, 2)

	view, err := s.View(ctx, bob)
	require.NoError(t, err)
	assert.Len(t, view.Hand, 1)
	assert.Equal(t, 1, view.Opponent.HandCount)

	_, err = s.View(ctx, "nobody")
	assert.ErrorIs(t, err, ErrUnknownPlayer)

	cancel()
	select {
	case <-s.Done():
	case <-time.After(time.Second):
		t.Fatal("session loop did not stop")
	}

	err = s.Submit(context.Background(), alice, EndTurn{})
	if !errors.Is(err, ErrSessionClosed) {
		t.Fatalf("expected ErrSessionClosed after shutdown, got %v", err)
	}
}
