package game

import "strings"

// TurnManager tracks the turn counter and which of the two players owns the
// current turn. Ownership toggles strictly; there is no pass or skip.
type TurnManager struct {
	turnNumber  int
	order       [2]string
	activeIndex int
}

// NewTurnManager starts at turn 1 with first as the active player.
func NewTurnManager(first, second string) *TurnManager {
	return &TurnManager{
		turnNumber: 1,
		order:      [2]string{strings.TrimSpace(first), strings.TrimSpace(second)},
	}
}

// TurnNumber returns the current turn number (1-based).
func (tm *TurnManager) TurnNumber() int {
	return tm.turnNumber
}

// ActivePlayer returns the player who currently has the turn.
func (tm *TurnManager) ActivePlayer() string {
	return tm.order[tm.activeIndex]
}

// Opponent returns the player who is waiting.
func (tm *TurnManager) Opponent() string {
	return tm.order[1-tm.activeIndex]
}

func (tm *TurnManager) IsActive(playerID string) bool {
	return tm.ActivePlayer() == playerID
}

// Toggle hands the turn to the other player, increments the turn counter and
// returns the new active player.
func (tm *TurnManager) Toggle() string {
	tm.activeIndex = 1 - tm.activeIndex
	tm.turnNumber++
	return tm.ActivePlayer()
}
