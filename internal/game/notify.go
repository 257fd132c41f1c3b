package game

import "time"

// NotificationKind names a server-to-client event.
type NotificationKind string

const (
	NotifyGameStarted            NotificationKind = "GameStarted"
	NotifyTurnToggled            NotificationKind = "TurnToggled"
	NotifyCardAddedToHand        NotificationKind = "CardAddedToHand"
	NotifyHandChanged            NotificationKind = "HandChanged"
	NotifyOpponentHandCount      NotificationKind = "OpponentHandCount"
	NotifyPlayCardResult         NotificationKind = "PlayCardResult"
	NotifyAttackAnimationStarted NotificationKind = "AttackAnimationStarted"
	NotifyCardDestroyed          NotificationKind = "CardDestroyed"
	NotifyCardRemoved            NotificationKind = "CardRemoved"
	NotifyGameOutcomeRecorded    NotificationKind = "GameOutcomeRecorded"
	NotifyGameAbandoned          NotificationKind = "GameAbandoned"
	NotifyEntityChanged          NotificationKind = "EntityChanged"
	NotifyError                  NotificationKind = "Error"
)

// Notification is a session event addressed to Recipients. An empty
// Recipients list means every participant.
type Notification struct {
	Kind       NotificationKind
	SessionID  string
	Recipients []string
	Timestamp  time.Time
	Payload    any
}

// Broadcast reports whether the notification goes to every participant.
func (n Notification) Broadcast() bool {
	return len(n.Recipients) == 0
}

// Notifier delivers notifications. Implementations must not block the
// caller for long; the session calls Notify from its event loop.
type Notifier interface {
	Notify(Notification)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Notification)

func (f NotifierFunc) Notify(n Notification) {
	f(n)
}

type GameStartedPayload struct {
	FirstPlayerID string          `json:"first_player_id"`
	Turn          int             `json:"turn"`
	Players       []PlayerSummary `json:"players"`
}

type TurnToggledPayload struct {
	ActivePlayerID string `json:"active_player_id"`
	Turn           int    `json:"turn"`
}

type CardAddedToHandPayload struct {
	Index int      `json:"index"`
	Card  CardView `json:"card"`
}

type HandChangedPayload struct {
	Op    Op        `json:"op"`
	Index int       `json:"index"`
	Card  *CardView `json:"card,omitempty"`
	Count int       `json:"count"`
}

type OpponentHandCountPayload struct {
	PlayerID string `json:"player_id"`
	Count    int    `json:"count"`
}

type PlayCardResultPayload struct {
	PlayerID   string     `json:"player_id"`
	HandIndex  int        `json:"hand_index"`
	FieldIndex int        `json:"field_index"`
	Creature   EntityView `json:"creature"`
}

type AttackAnimationPayload struct {
	AttackerID string `json:"attacker_id"`
	TargetID   string `json:"target_id"`
}

type CardDestroyedPayload struct {
	EntityID string `json:"entity_id"`
	OwnerID  string `json:"owner_id"`
	CardID   string `json:"card_id"`
}

type CardRemovedPayload struct {
	EntityID string `json:"entity_id"`
}

type OutcomePayload struct {
	Outcomes []Outcome `json:"outcomes"`
}

type EntityChangedPayload struct {
	Entity EntityView `json:"entity"`
}

type ErrorPayload struct {
	Reason string `json:"reason"`
}
