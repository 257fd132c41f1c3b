package game

import "errors"

var (
	ErrStaleEntity      = errors.New("entity no longer exists")
	ErrNotReady         = errors.New("entity cannot act this turn")
	ErrAttackInFlight   = errors.New("attack already in progress")
	ErrTauntBlocks      = errors.New("a taunt creature must be attacked first")
	ErrInvalidTarget    = errors.New("target not allowed for this attacker")
	ErrInsufficientMana = errors.New("insufficient mana")
	ErrHandMismatch     = errors.New("hand index does not hold that card")
	ErrNotYourTurn      = errors.New("not your turn")
	ErrUnknownPlayer    = errors.New("unknown player")
	ErrSessionFull      = errors.New("session already has two players")
	ErrNotEnoughPlayers = errors.New("session needs two players")
	ErrWrongState       = errors.New("command not allowed in current state")
	ErrNotOwner         = errors.New("entity belongs to another player")
	ErrUnknownCommand   = errors.New("unknown command")
	ErrSessionClosed    = errors.New("session closed")
)
