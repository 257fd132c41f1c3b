package game

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/stealthdragons/dragon-server/internal/catalog"
)

// requestAttack validates an attack and starts the animation window. Damage
// is applied by resolveAttack once the window has elapsed.
func (s *Session) requestAttack(p *Player, c RequestAttack) error {
	attacker, ok := s.entities[c.AttackerID]
	if !ok {
		return fmt.Errorf("attacker %s: %w", c.AttackerID, ErrStaleEntity)
	}
	target, ok := s.entities[c.TargetID]
	if !ok {
		return fmt.Errorf("target %s: %w", c.TargetID, ErrStaleEntity)
	}

	a, t := attacker.Base(), target.Base()
	creature, isCreature := attacker.(*Creature)
	if !isCreature {
		return fmt.Errorf("%w: players cannot attack", ErrInvalidTarget)
	}
	if a.OwnerID != p.ID {
		return ErrNotOwner
	}
	if !a.CanAct() {
		return fmt.Errorf("attacker %s wait turn %d: %w", a.ID, a.WaitTurn, ErrNotReady)
	}
	if s.inFlight[a.ID] {
		return ErrAttackInFlight
	}
	if t.OwnerID == a.OwnerID {
		return fmt.Errorf("%w: friendly target", ErrInvalidTarget)
	}

	defender := s.playerByID(t.OwnerID)
	if t.Kind == KindPlayer && defender != nil && defender.TauntCount > 0 {
		return ErrTauntBlocks
	}

	required := catalog.TargetEnemies
	if t.Kind == KindPlayer {
		required = catalog.TargetOpponent
	}
	if !creature.Card.Card.CanTarget(required) {
		return fmt.Errorf("%w: %s cannot target %s", ErrInvalidTarget, creature.Card.Name(), required)
	}

	if c.AttackerStrength != a.Strength || c.TargetStrength != t.Strength {
		s.logger.Debug("client strengths differ from server state",
			zap.Int("client_attacker_strength", c.AttackerStrength),
			zap.Int("server_attacker_strength", a.Strength),
			zap.Int("client_target_strength", c.TargetStrength),
			zap.Int("server_target_strength", t.Strength),
		)
	}

	s.inFlight[a.ID] = true
	s.broadcast(NotifyAttackAnimationStarted, AttackAnimationPayload{AttackerID: a.ID, TargetID: t.ID})

	attackerID, targetID := a.ID, t.ID
	s.after(s.opts.AttackDelay, func() { s.resolveAttack(attackerID, targetID) })
	return nil
}

// resolveAttack applies simultaneous damage. Either entity may have been
// destroyed during the animation window, in which case nothing happens.
func (s *Session) resolveAttack(attackerID, targetID string) {
	defer delete(s.inFlight, attackerID)

	if s.state != StateInProgress {
		return
	}
	attacker, aok := s.entities[attackerID]
	target, tok := s.entities[targetID]
	if !aok || !tok {
		s.logger.Debug("attack aborted, entity gone",
			zap.String("attacker_id", attackerID),
			zap.String("target_id", targetID),
		)
		return
	}

	a, t := attacker.Base(), target.Base()
	// Negative strength deals no damage rather than healing.
	attackerStrength, targetStrength := max(0, a.Strength), max(0, t.Strength)

	targetDied := t.ChangeHealth(-attackerStrength)
	attackerDied := a.ChangeHealth(-targetStrength)
	if !attackerDied {
		a.WaitTurn++
	}
	s.entityChanged(target)
	s.entityChanged(attacker)

	s.logger.Debug("attack resolved",
		zap.String("attacker_id", attackerID),
		zap.String("target_id", targetID),
		zap.Int("attacker_health", a.Health),
		zap.Int("target_health", t.Health),
	)

	if targetDied {
		s.destroy(target)
	}
	if attackerDied {
		s.destroy(attacker)
	}
}

// destroy runs the destruction cascade. Callers invoke it only for the
// transition to zero health, and the entity leaves the session here, so it
// runs once per entity.
func (s *Session) destroy(c Combatant) {
	switch v := c.(type) {
	case *Creature:
		delete(s.entities, v.ID)
		delete(s.inFlight, v.ID)

		owner := s.playerByID(v.OwnerID)
		if owner == nil {
			return
		}
		if v.Taunt && owner.TauntCount > 0 {
			owner.TauntCount--
		}
		card := v.Card
		card.Health = v.Health
		card.Strength = v.Strength
		owner.Deck.Field.Remove(v.ID)
		owner.Deck.Graveyard.Add(card)

		s.broadcast(NotifyCardDestroyed, CardDestroyedPayload{
			EntityID: v.ID,
			OwnerID:  owner.ID,
			CardID:   card.Card.ID,
		})
		s.logger.Debug("creature destroyed",
			zap.String("entity_id", v.ID),
			zap.String("owner_id", owner.ID),
			zap.Int("graveyard", owner.Deck.Graveyard.Len()),
		)

		entityID := v.ID
		s.after(s.opts.DestroyDelay, func() {
			s.broadcast(NotifyCardRemoved, CardRemovedPayload{EntityID: entityID})
		})

	case *Player:
		if s.state == StateConcluded {
			return
		}
		s.defeat(v)
	}
}
