package game

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stealthdragons/dragon-server/internal/catalog"
)

var testCard = &catalog.Card{ID: "whelp", Name: "Whelp", Cost: 1, Strength: 1, Health: 2}

func cardsOf(n int) []CardInfo {
	out := make([]CardInfo, n)
	for i := range out {
		out[i] = NewCardInfo(testCard)
	}
	return out
}

func TestCollectionEmitsAfterMutation(t *testing.T) {
	c := NewCollection(ZoneHand, "p1")
	var events []ChangeEvent
	c.Subscribe(func(evt ChangeEvent) {
		// State is already updated when observers run.
		assert.Equal(t, evt.Len, c.Len())
		events = append(events, evt)
	})

	cards := cardsOf(3)
	c.Add(cards[0])
	c.Add(cards[1])
	require.NoError(t, c.Insert(1, cards[2]))
	assert.Equal(t, []string{cards[0].InstanceID, cards[2].InstanceID, cards[1].InstanceID}, instanceIDs(c.Cards()))

	removed, err := c.RemoveAt(0)
	require.NoError(t, err)
	assert.Equal(t, cards[0].InstanceID, removed.InstanceID)

	_, ok := c.Remove(cards[1].InstanceID)
	assert.True(t, ok)
	_, ok = c.Remove("missing")
	assert.False(t, ok)

	c.Clear()
	assert.Equal(t, 0, c.Len())

	ops := make([]Op, 0, len(events))
	for _, evt := range events {
		ops = append(ops, evt.Op)
		assert.Equal(t, ZoneHand, evt.Zone)
		assert.Equal(t, "p1", evt.OwnerID)
	}
	assert.Equal(t, []Op{OpAdd, OpAdd, OpInsert, OpRemoveAt, OpRemoveAt, OpClear}, ops)
	assert.Equal(t, 1, events[2].Index)
	assert.Equal(t, 1, events[4].Index)
}

func TestCollectionBounds(t *testing.T) {
	c := NewCollection(ZoneField, "p1")
	assert.Error(t, c.Insert(1, NewCardInfo(testCard)))
	_, err := c.RemoveAt(0)
	assert.Error(t, err)
	_, ok := c.At(-1)
	assert.False(t, ok)
	_, ok = c.PopFront()
	assert.False(t, ok)
}

func TestCollectionUnsubscribe(t *testing.T) {
	c := NewCollection(ZoneHand, "p1")
	calls := 0
	handle := c.Subscribe(func(ChangeEvent) { calls++ })
	c.Add(NewCardInfo(testCard))
	c.Unsubscribe(handle)
	c.Add(NewCardInfo(testCard))
	assert.Equal(t, 1, calls)
	assert.Equal(t, -1, c.Subscribe(nil))
}

func TestShuffleKeepsContents(t *testing.T) {
	c := NewCollection(ZoneDrawPile, "p1")
	cards := cardsOf(20)
	for _, card := range cards {
		c.Add(card)
	}
	c.Shuffle(rand.New(rand.NewSource(7)))
	assert.ElementsMatch(t, instanceIDs(cards), instanceIDs(c.Cards()))
}

func TestDeckDrawMovesCardsInOrder(t *testing.T) {
	d := NewDeck("p1")
	cards := cardsOf(3)
	for _, card := range cards {
		d.DrawPile.Add(card)
	}

	assert.Equal(t, 2, d.Draw(2))
	assert.Equal(t, instanceIDs(cards[:2]), instanceIDs(d.Hand.Cards()))
	assert.Equal(t, instanceIDs(cards[2:]), instanceIDs(d.DrawPile.Cards()))

	assert.Equal(t, 1, d.Draw(4))
	assert.Equal(t, 0, d.Draw(1))
	assert.Equal(t, 3, d.Hand.Len())
}

func TestDeckLoadCreatesFreshInstances(t *testing.T) {
	d := NewDeck("p1")
	d.Load([]*catalog.Card{testCard, testCard}, rand.New(rand.NewSource(1)))
	require.Equal(t, 2, d.DrawPile.Len())
	first, _ := d.DrawPile.At(0)
	second, _ := d.DrawPile.At(1)
	assert.NotEqual(t, first.InstanceID, second.InstanceID)
	assert.Same(t, testCard, first.Card)

	first.Health = 99
	again, _ := d.DrawPile.At(0)
	assert.Equal(t, 2, again.Health, "card info is copied by value")
	assert.Equal(t, 2, testCard.Health)
	assert.Same(t, d.Hand, d.Collection(ZoneHand))
}
