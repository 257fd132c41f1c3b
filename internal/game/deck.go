package game

import (
	"math/rand"

	"github.com/stealthdragons/dragon-server/internal/catalog"
)

// Deck holds a player's four collections. A card instance lives in exactly
// one of them.
type Deck struct {
	DrawPile  *Collection
	Hand      *Collection
	Field     *Collection
	Graveyard *Collection
}

func NewDeck(ownerID string) *Deck {
	return &Deck{
		DrawPile:  NewCollection(ZoneDrawPile, ownerID),
		Hand:      NewCollection(ZoneHand, ownerID),
		Field:     NewCollection(ZoneField, ownerID),
		Graveyard: NewCollection(ZoneGraveyard, ownerID),
	}
}

// Load clears the draw pile, fills it with fresh instances of cards and
// shuffles it.
func (d *Deck) Load(cards []*catalog.Card, rng *rand.Rand) {
	d.DrawPile.Clear()
	for _, card := range cards {
		d.DrawPile.Add(NewCardInfo(card))
	}
	d.DrawPile.Shuffle(rng)
}

// Draw moves up to n cards from the top of the draw pile to the end of the
// hand and returns how many moved. An empty pile is not an error.
func (d *Deck) Draw(n int) int {
	drawn := 0
	for ; drawn < n; drawn++ {
		card, ok := d.DrawPile.PopFront()
		if !ok {
			break
		}
		d.Hand.Add(card)
	}
	return drawn
}

// Collection returns the collection for zone.
func (d *Deck) Collection(zone Zone) *Collection {
	switch zone {
	case ZoneDrawPile:
		return d.DrawPile
	case ZoneHand:
		return d.Hand
	case ZoneField:
		return d.Field
	case ZoneGraveyard:
		return d.Graveyard
	default:
		return nil
	}
}
