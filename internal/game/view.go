package game

import "github.com/stealthdragons/dragon-server/internal/catalog"

// CardView is the client representation of a card instance.
type CardView struct {
	InstanceID string           `json:"instance_id"`
	CardID     string           `json:"card_id"`
	Name       string           `json:"name"`
	Cost       int              `json:"cost"`
	Strength   int              `json:"strength"`
	Health     int              `json:"health"`
	Charge     bool             `json:"charge"`
	Taunt      bool             `json:"taunt"`
	Targets    []catalog.Target `json:"targets"`
}

func newCardView(c CardInfo) CardView {
	v := CardView{
		InstanceID: c.InstanceID,
		Strength:   c.Strength,
		Health:     c.Health,
	}
	if c.Card != nil {
		v.CardID = c.Card.ID
		v.Name = c.Card.Name
		v.Cost = c.Card.Cost
		v.Charge = c.Card.Charge
		v.Taunt = c.Card.Taunt
		v.Targets = c.Card.AcceptableTargets
	}
	return v
}

// EntityView is the public state of a player or creature.
type EntityView struct {
	ID         string    `json:"id"`
	Kind       string    `json:"kind"`
	OwnerID    string    `json:"owner_id"`
	Health     int       `json:"health"`
	Strength   int       `json:"strength"`
	WaitTurn   int       `json:"wait_turn"`
	Taunt      bool      `json:"taunt"`
	Charge     bool      `json:"charge"`
	Username   string    `json:"username,omitempty"`
	Mana       int       `json:"mana,omitempty"`
	CurrentMax int       `json:"current_max,omitempty"`
	MaxMana    int       `json:"max_mana,omitempty"`
	TauntCount int       `json:"taunt_count,omitempty"`
	Card       *CardView `json:"card,omitempty"`
}

func newEntityView(c Combatant) EntityView {
	e := c.Base()
	v := EntityView{
		ID:       e.ID,
		Kind:     e.Kind.String(),
		OwnerID:  e.OwnerID,
		Health:   e.Health,
		Strength: e.Strength,
		WaitTurn: e.WaitTurn,
		Taunt:    e.Taunt,
		Charge:   e.Charge,
	}
	switch x := c.(type) {
	case *Player:
		v.Username = x.Username
		v.Mana = x.Mana.Current
		v.CurrentMax = x.Mana.CurrentMax
		v.MaxMana = x.Mana.Max
		v.TauntCount = x.TauntCount
	case *Creature:
		card := newCardView(x.Card)
		card.Health = x.Health
		card.Strength = x.Strength
		v.Card = &card
	}
	return v
}

// PlayerSummary identifies a participant.
type PlayerSummary struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	First    bool   `json:"first"`
}

// HandSlot is an opaque placeholder for a card in the opponent's hand.
type HandSlot struct {
	Index int `json:"index"`
}

// SideView is the state of one player that both sides may see.
type SideView struct {
	Player         EntityView   `json:"player"`
	Field          []EntityView `json:"field"`
	DrawPileCount  int          `json:"draw_pile_count"`
	GraveyardCount int          `json:"graveyard_count"`
}

// OpponentView adds the hidden-hand representation to the opponent's side.
type OpponentView struct {
	SideView
	HandCount int        `json:"hand_count"`
	HandSlots []HandSlot `json:"hand_slots"`
}

// BoardView is what one player is allowed to see of the session.
type BoardView struct {
	SessionID      string        `json:"session_id"`
	State          string        `json:"state"`
	Turn           int           `json:"turn"`
	ActivePlayerID string        `json:"active_player_id"`
	Self           SideView      `json:"self"`
	Hand           []CardView    `json:"hand"`
	Opponent       *OpponentView `json:"opponent,omitempty"`
	Outcomes       []Outcome     `json:"outcomes,omitempty"`
}

func (s *Session) sideView(p *Player) SideView {
	side := SideView{
		Player:         newEntityView(p),
		Field:          make([]EntityView, 0, p.Deck.Field.Len()),
		DrawPileCount:  p.Deck.DrawPile.Len(),
		GraveyardCount: p.Deck.Graveyard.Len(),
	}
	for _, card := range p.Deck.Field.Cards() {
		if creature, ok := s.entities[card.InstanceID]; ok {
			side.Field = append(side.Field, newEntityView(creature))
		}
	}
	return side
}

// buildView must run on the session loop.
func (s *Session) buildView(playerID string) (BoardView, error) {
	p := s.playerByID(playerID)
	if p == nil {
		return BoardView{}, ErrUnknownPlayer
	}

	view := BoardView{
		SessionID: s.id,
		State:     s.state.String(),
		Self:      s.sideView(p),
		Hand:      make([]CardView, 0, p.Deck.Hand.Len()),
		Outcomes:  append([]Outcome(nil), s.outcomes...),
	}
	if s.turn != nil {
		view.Turn = s.turn.TurnNumber()
		view.ActivePlayerID = s.turn.ActivePlayer()
	}
	for _, card := range p.Deck.Hand.Cards() {
		view.Hand = append(view.Hand, newCardView(card))
	}

	if opp := s.opponentOf(p.ID); opp != nil {
		count := opp.Deck.Hand.Len()
		ov := &OpponentView{
			SideView:  s.sideView(opp),
			HandCount: count,
			HandSlots: make([]HandSlot, count),
		}
		for i := range ov.HandSlots {
			ov.HandSlots[i] = HandSlot{Index: i}
		}
		view.Opponent = ov
	}
	return view, nil
}
