package game

import (
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// Command is a client request applied by the session loop.
type Command interface {
	CommandName() string
}

type LoadDeck struct{}

type DrawInitialHand struct{}

type DrawCards struct {
	Count int
}

type PlayCard struct {
	InstanceID string
	HandIndex  int
}

type ChangeHealth struct {
	EntityID string
	Delta    int
}

// ChangeMana always applies to the requesting player.
type ChangeMana struct {
	Delta int
}

type ChangeStrength struct {
	EntityID string
	Delta    int
}

type IncrementReadiness struct {
	EntityID string
}

// RequestAttack carries the strengths the client displayed. They are only
// compared against server state for logging.
type RequestAttack struct {
	AttackerID       string
	TargetID         string
	AttackerStrength int
	TargetStrength   int
}

type EndTurn struct{}

type RequestHandState struct{}

func (LoadDeck) CommandName() string           { return "LoadDeck" }
func (DrawInitialHand) CommandName() string    { return "DrawInitialHand" }
func (DrawCards) CommandName() string          { return "DrawCards" }
func (PlayCard) CommandName() string           { return "PlayCard" }
func (ChangeHealth) CommandName() string       { return "ChangeHealth" }
func (ChangeMana) CommandName() string         { return "ChangeMana" }
func (ChangeStrength) CommandName() string     { return "ChangeStrength" }
func (IncrementReadiness) CommandName() string { return "IncrementReadiness" }
func (RequestAttack) CommandName() string      { return "RequestAttackAnimation" }
func (EndTurn) CommandName() string            { return "EndTurn" }
func (RequestHandState) CommandName() string   { return "RequestHandState" }

// handle validates and applies cmd. Rejections are logged and reported to
// the requester; they never affect other state. Commands naming an entity
// that no longer exists are dropped without an error.
func (s *Session) handle(playerID string, cmd Command) error {
	err := s.apply(playerID, cmd)
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrStaleEntity) {
		s.logger.Debug("command references stale entity",
			zap.String("player_id", playerID),
			zap.String("command", cmd.CommandName()),
			zap.Error(err),
		)
		return nil
	}
	s.reject(playerID, cmd, err)
	return err
}

func (s *Session) apply(playerID string, cmd Command) error {
	if s.state == StateConcluded {
		return fmt.Errorf("%s: %w", cmd.CommandName(), ErrWrongState)
	}
	p := s.playerByID(playerID)
	if p == nil || !p.Alive() {
		return ErrUnknownPlayer
	}

	switch c := cmd.(type) {
	case LoadDeck:
		p.Deck.Load(s.catalog.StartingDeck(), s.rng)
		s.logger.Debug("deck loaded", zap.String("player_id", p.ID), zap.Int("cards", p.Deck.DrawPile.Len()))
		return nil

	case DrawInitialHand:
		p.Deck.Hand.Clear()
		drawn := p.Deck.Draw(s.opts.HandSize)
		s.logger.Debug("initial hand drawn", zap.String("player_id", p.ID), zap.Int("cards", drawn))
		return nil

	case DrawCards:
		if c.Count < 0 {
			return fmt.Errorf("draw %d cards: count must not be negative", c.Count)
		}
		p.Deck.Draw(c.Count)
		return nil

	case PlayCard:
		if err := s.checkTurn(p); err != nil {
			return err
		}
		return s.playCard(p, c)

	case ChangeHealth:
		return s.changeHealth(c.EntityID, c.Delta)

	case ChangeMana:
		p.Mana.Change(c.Delta)
		s.entityChanged(p)
		return nil

	case ChangeStrength:
		target, ok := s.entities[c.EntityID]
		if !ok {
			return fmt.Errorf("change strength %s: %w", c.EntityID, ErrStaleEntity)
		}
		target.Base().Strength += c.Delta
		s.entityChanged(target)
		return nil

	case IncrementReadiness:
		target, ok := s.entities[c.EntityID]
		if !ok {
			return fmt.Errorf("increment readiness %s: %w", c.EntityID, ErrStaleEntity)
		}
		target.Base().WaitTurn++
		s.entityChanged(target)
		return nil

	case RequestAttack:
		if err := s.checkTurn(p); err != nil {
			return err
		}
		return s.requestAttack(p, c)

	case EndTurn:
		if err := s.checkTurn(p); err != nil {
			return err
		}
		return s.endTurn()

	case RequestHandState:
		for i, card := range p.Deck.Hand.Cards() {
			s.notify(NotifyCardAddedToHand, CardAddedToHandPayload{Index: i, Card: newCardView(card)}, p.ID)
		}
		return nil

	default:
		return fmt.Errorf("%w: %T", ErrUnknownCommand, cmd)
	}
}

// checkTurn gates turn-bound commands. Ownership is only enforced when
// configured; clients gate their own input otherwise.
func (s *Session) checkTurn(p *Player) error {
	if s.state != StateInProgress {
		return ErrWrongState
	}
	if s.opts.EnforceTurnOrder && !s.turn.IsActive(p.ID) {
		return ErrNotYourTurn
	}
	return nil
}

func (s *Session) playCard(p *Player, c PlayCard) error {
	card, ok := p.Deck.Hand.At(c.HandIndex)
	if !ok || card.InstanceID != c.InstanceID {
		return fmt.Errorf("play card %s at %d: %w", c.InstanceID, c.HandIndex, ErrHandMismatch)
	}
	if err := p.Mana.Pay(card.Cost()); err != nil {
		return fmt.Errorf("play card %s: %w", card.Name(), err)
	}

	creature := newCreature(p.ID, card)
	s.entities[creature.ID] = creature
	if creature.Taunt {
		p.TauntCount++
	}

	if _, err := p.Deck.Hand.RemoveAt(c.HandIndex); err != nil {
		return err
	}
	p.Deck.Field.Add(card)

	s.broadcast(NotifyPlayCardResult, PlayCardResultPayload{
		PlayerID:   p.ID,
		HandIndex:  c.HandIndex,
		FieldIndex: p.Deck.Field.Len() - 1,
		Creature:   newEntityView(creature),
	})
	s.entityChanged(p)
	s.logger.Debug("card played",
		zap.String("player_id", p.ID),
		zap.String("card", card.Name()),
		zap.Int("mana_left", p.Mana.Current),
	)
	return nil
}

func (s *Session) changeHealth(entityID string, delta int) error {
	target, ok := s.entities[entityID]
	if !ok {
		return fmt.Errorf("change health %s: %w", entityID, ErrStaleEntity)
	}
	died := target.Base().ChangeHealth(delta)
	s.entityChanged(target)
	if died {
		s.destroy(target)
	}
	return nil
}
