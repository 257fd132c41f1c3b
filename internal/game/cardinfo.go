package game

import (
	"github.com/google/uuid"

	"github.com/stealthdragons/dragon-server/internal/catalog"
)

// CardInfo is a card instance: a reference to the immutable catalog entry
// plus its own copy of the mutable stats. It is passed by value between
// collections.
type CardInfo struct {
	InstanceID string
	Card       *catalog.Card
	Health     int
	Strength   int
}

// NewCardInfo creates a fresh instance of card with a new instance id.
func NewCardInfo(card *catalog.Card) CardInfo {
	return CardInfo{
		InstanceID: uuid.New().String(),
		Card:       card,
		Health:     card.Health,
		Strength:   card.Strength,
	}
}

// Cost is the mana cost of the underlying card.
func (c CardInfo) Cost() int {
	if c.Card == nil {
		return 0
	}
	return c.Card.Cost
}

func (c CardInfo) Name() string {
	if c.Card == nil {
		return ""
	}
	return c.Card.Name
}
