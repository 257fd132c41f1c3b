package game

import "fmt"

// Kind discriminates the concrete entity behind a Combatant.
type Kind int

const (
	KindPlayer Kind = iota + 1
	KindCreature
)

func (k Kind) String() string {
	switch k {
	case KindPlayer:
		return "PLAYER"
	case KindCreature:
		return "CREATURE"
	default:
		return fmt.Sprintf("KIND_%d", int(k))
	}
}

// Entity is the resource record shared by players and field creatures.
type Entity struct {
	ID       string
	Kind     Kind
	OwnerID  string
	Health   int
	Strength int
	// WaitTurn is zero when the entity may act this turn.
	WaitTurn int
	Taunt    bool
	Charge   bool
}

// Base returns the entity record itself.
func (e *Entity) Base() *Entity {
	return e
}

// ChangeHealth adds delta to health, clamping at zero. It returns true only
// for the call that takes a living entity to zero.
func (e *Entity) ChangeHealth(delta int) bool {
	wasAlive := e.Health > 0
	e.Health += delta
	if e.Health < 0 {
		e.Health = 0
	}
	return wasAlive && e.Health == 0
}

func (e *Entity) Alive() bool {
	return e.Health > 0
}

func (e *Entity) CanAct() bool {
	return e.WaitTurn == 0
}

// Combatant is anything that can take part in combat.
type Combatant interface {
	Base() *Entity
}

// Player is a participant's avatar. Its ID doubles as the player id used for
// routing notifications.
type Player struct {
	Entity
	Username   string
	Mana       ManaPool
	TauntCount int
	Deck       *Deck
	First      bool
}

// Creature is a card instance on the field.
type Creature struct {
	Entity
	Card CardInfo
}

func newPlayer(id, username string, maxHealth, maxMana int) *Player {
	p := &Player{
		Entity: Entity{
			ID:      id,
			Kind:    KindPlayer,
			OwnerID: id,
			Health:  maxHealth,
		},
		Username: username,
		Mana:     NewManaPool(maxMana),
	}
	p.Deck = NewDeck(id)
	return p
}

func newCreature(ownerID string, card CardInfo) *Creature {
	waitTurn := 1
	if card.Card.Charge {
		waitTurn = 0
	}
	return &Creature{
		Entity: Entity{
			ID:       card.InstanceID,
			Kind:     KindCreature,
			OwnerID:  ownerID,
			Health:   card.Health,
			Strength: card.Strength,
			WaitTurn: waitTurn,
			Taunt:    card.Card.Taunt,
			Charge:   card.Card.Charge,
		},
		Card: card,
	}
}
