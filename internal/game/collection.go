package game

import (
	"fmt"
	"math/rand"
)

// Zone names one of a player's card collections.
type Zone string

const (
	ZoneDrawPile  Zone = "DRAW_PILE"
	ZoneHand      Zone = "HAND"
	ZoneField     Zone = "FIELD"
	ZoneGraveyard Zone = "GRAVEYARD"
)

// Op identifies the mutation carried by a ChangeEvent.
type Op string

const (
	OpAdd      Op = "ADD"
	OpInsert   Op = "INSERT"
	OpRemoveAt Op = "REMOVE_AT"
	OpClear    Op = "CLEAR"
	OpShuffle  Op = "SHUFFLE"
)

// ChangeEvent is emitted after a collection has been mutated.
type ChangeEvent struct {
	Zone    Zone
	OwnerID string
	Op      Op
	Index   int
	Card    CardInfo
	// Len is the collection length after the mutation.
	Len int
}

// Observer receives collection change events.
type Observer func(ChangeEvent)

type subscription struct {
	handle   int
	observer Observer
}

// Collection is an ordered, owner-scoped sequence of card instances. It is
// not safe for concurrent use; the owning session serializes access.
type Collection struct {
	zone       Zone
	ownerID    string
	cards      []CardInfo
	observers  []subscription
	nextHandle int
}

func NewCollection(zone Zone, ownerID string) *Collection {
	return &Collection{zone: zone, ownerID: ownerID}
}

func (c *Collection) Zone() Zone {
	return c.zone
}

func (c *Collection) Len() int {
	return len(c.cards)
}

// At returns the card at index i.
func (c *Collection) At(i int) (CardInfo, bool) {
	if i < 0 || i >= len(c.cards) {
		return CardInfo{}, false
	}
	return c.cards[i], true
}

// IndexOf returns the position of the instance or -1.
func (c *Collection) IndexOf(instanceID string) int {
	for i, card := range c.cards {
		if card.InstanceID == instanceID {
			return i
		}
	}
	return -1
}

// Cards returns a copy of the contents.
func (c *Collection) Cards() []CardInfo {
	return append([]CardInfo(nil), c.cards...)
}

// Subscribe registers an observer and returns a handle for Unsubscribe.
// Observers run synchronously after each mutation, in subscription order.
func (c *Collection) Subscribe(o Observer) int {
	if o == nil {
		return -1
	}
	handle := c.nextHandle
	c.nextHandle++
	c.observers = append(c.observers, subscription{handle: handle, observer: o})
	return handle
}

func (c *Collection) Unsubscribe(handle int) {
	for i, sub := range c.observers {
		if sub.handle == handle {
			c.observers = append(c.observers[:i], c.observers[i+1:]...)
			return
		}
	}
}

func (c *Collection) Add(card CardInfo) {
	c.cards = append(c.cards, card)
	c.emit(OpAdd, len(c.cards)-1, card)
}

// Insert places card at index i, shifting later cards right.
func (c *Collection) Insert(i int, card CardInfo) error {
	if i < 0 || i > len(c.cards) {
		return fmt.Errorf("insert %s[%d]: index out of range (len %d)", c.zone, i, len(c.cards))
	}
	c.cards = append(c.cards, CardInfo{})
	copy(c.cards[i+1:], c.cards[i:])
	c.cards[i] = card
	c.emit(OpInsert, i, card)
	return nil
}

func (c *Collection) RemoveAt(i int) (CardInfo, error) {
	if i < 0 || i >= len(c.cards) {
		return CardInfo{}, fmt.Errorf("remove %s[%d]: index out of range (len %d)", c.zone, i, len(c.cards))
	}
	card := c.cards[i]
	c.cards = append(c.cards[:i], c.cards[i+1:]...)
	c.emit(OpRemoveAt, i, card)
	return card, nil
}

// Remove deletes the instance wherever it is.
func (c *Collection) Remove(instanceID string) (CardInfo, bool) {
	i := c.IndexOf(instanceID)
	if i < 0 {
		return CardInfo{}, false
	}
	card, _ := c.RemoveAt(i)
	return card, true
}

// PopFront removes and returns the first card.
func (c *Collection) PopFront() (CardInfo, bool) {
	if len(c.cards) == 0 {
		return CardInfo{}, false
	}
	card, _ := c.RemoveAt(0)
	return card, true
}

func (c *Collection) Clear() {
	c.cards = c.cards[:0]
	c.emit(OpClear, -1, CardInfo{})
}

// Shuffle permutes the collection with rng.
func (c *Collection) Shuffle(rng *rand.Rand) {
	rng.Shuffle(len(c.cards), func(i, j int) {
		c.cards[i], c.cards[j] = c.cards[j], c.cards[i]
	})
	c.emit(OpShuffle, -1, CardInfo{})
}

// Update replaces the card at i without emitting an event. Used for
// per-instance stat changes on the field.
func (c *Collection) Update(i int, card CardInfo) bool {
	if i < 0 || i >= len(c.cards) {
		return false
	}
	c.cards[i] = card
	return true
}

func (c *Collection) emit(op Op, index int, card CardInfo) {
	if len(c.observers) == 0 {
		return
	}
	evt := ChangeEvent{
		Zone:    c.zone,
		OwnerID: c.ownerID,
		Op:      op,
		Index:   index,
		Card:    card,
		Len:     len(c.cards),
	}
	for _, sub := range c.observers {
		sub.observer(evt)
	}
}
