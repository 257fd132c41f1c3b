// Package protocol defines the JSON envelope exchanged with game clients over
// websocket text frames.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/stealthdragons/dragon-server/internal/game"
	"github.com/stealthdragons/dragon-server/internal/room"
)

// Client message types that are handled outside the game session.
const (
	TypeJoin        = "Join"
	TypeToggleReady = "ToggleReady"
)

// Server message types that do not originate from a session.
const (
	TypeRoomState        = "RoomState"
	TypeDisconnectNotice = "DisconnectNotice"
	TypeError            = "Error"
	TypeWelcome          = "Welcome"
	TypeBoardState       = "BoardState"
)

// TypeRequestBoard asks for the caller's BoardView.
const TypeRequestBoard = "RequestBoard"

const OpponentDisconnected = "Opponent Disconnected"

var (
	ErrUnknownType = errors.New("unknown message type")
	ErrBadPayload  = errors.New("invalid message payload")
)

// Envelope is the frame wrapper in both directions.
type Envelope struct {
	Type      string          `json:"type"`
	SessionID string          `json:"session_id,omitempty"`
	Timestamp *time.Time      `json:"timestamp,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
}

type JoinRequest struct {
	Username string `json:"username"`
}

type drawCardsData struct {
	Count int `json:"count"`
}

type playCardData struct {
	InstanceID string `json:"instance_id"`
	HandIndex  int    `json:"hand_index"`
}

type entityDeltaData struct {
	EntityID string `json:"entity_id"`
	Delta    int    `json:"delta"`
}

type manaData struct {
	Delta int `json:"delta"`
}

type readinessData struct {
	EntityID string `json:"entity_id"`
}

type attackData struct {
	AttackerID       string `json:"attacker_id"`
	TargetID         string `json:"target_id"`
	AttackerStrength int    `json:"attacker_strength"`
	TargetStrength   int    `json:"target_strength"`
}

// Decode parses a client frame.
func Decode(frame []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrBadPayload, err)
	}
	if env.Type == "" {
		return Envelope{}, fmt.Errorf("%w: missing type", ErrBadPayload)
	}
	return env, nil
}

// DecodeJoin extracts the username of a Join request.
func DecodeJoin(env Envelope) (JoinRequest, error) {
	var req JoinRequest
	if err := unmarshalData(env.Data, &req); err != nil {
		return JoinRequest{}, err
	}
	return req, nil
}

// IsGameCommand reports whether typ is routed to the session.
func IsGameCommand(typ string) bool {
	return gameCommands[typ]
}

var gameCommands = map[string]bool{}

func init() {
	for _, c := range []game.Command{
		game.LoadDeck{}, game.DrawInitialHand{}, game.DrawCards{}, game.PlayCard{},
		game.ChangeHealth{}, game.ChangeMana{}, game.ChangeStrength{},
		game.IncrementReadiness{}, game.RequestAttack{}, game.EndTurn{},
		game.RequestHandState{},
	} {
		gameCommands[c.CommandName()] = true
	}
}

// Command converts a game command envelope into a session command.
func Command(env Envelope) (game.Command, error) {
	switch env.Type {
	case "LoadDeck":
		return game.LoadDeck{}, nil
	case "DrawInitialHand":
		return game.DrawInitialHand{}, nil
	case "EndTurn":
		return game.EndTurn{}, nil
	case "RequestHandState":
		return game.RequestHandState{}, nil

	case "DrawCards":
		var d drawCardsData
		if err := unmarshalData(env.Data, &d); err != nil {
			return nil, err
		}
		return game.DrawCards{Count: d.Count}, nil

	case "PlayCard":
		var d playCardData
		if err := unmarshalData(env.Data, &d); err != nil {
			return nil, err
		}
		return game.PlayCard{InstanceID: d.InstanceID, HandIndex: d.HandIndex}, nil

	case "ChangeHealth":
		var d entityDeltaData
		if err := unmarshalData(env.Data, &d); err != nil {
			return nil, err
		}
		return game.ChangeHealth{EntityID: d.EntityID, Delta: d.Delta}, nil

	case "ChangeStrength":
		var d entityDeltaData
		if err := unmarshalData(env.Data, &d); err != nil {
			return nil, err
		}
		return game.ChangeStrength{EntityID: d.EntityID, Delta: d.Delta}, nil

	case "ChangeMana":
		var d manaData
		if err := unmarshalData(env.Data, &d); err != nil {
			return nil, err
		}
		return game.ChangeMana{Delta: d.Delta}, nil

	case "IncrementReadiness":
		var d readinessData
		if err := unmarshalData(env.Data, &d); err != nil {
			return nil, err
		}
		return game.IncrementReadiness{EntityID: d.EntityID}, nil

	case "RequestAttackAnimation":
		var d attackData
		if err := unmarshalData(env.Data, &d); err != nil {
			return nil, err
		}
		return game.RequestAttack{
			AttackerID:       d.AttackerID,
			TargetID:         d.TargetID,
			AttackerStrength: d.AttackerStrength,
			TargetStrength:   d.TargetStrength,
		}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownType, env.Type)
}

func unmarshalData(data json.RawMessage, v any) error {
	if len(data) == 0 {
		return fmt.Errorf("%w: missing data", ErrBadPayload)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %v", ErrBadPayload, err)
	}
	return nil
}

// Encode renders a server frame.
func Encode(typ string, data any) ([]byte, error) {
	return encode(Envelope{Type: typ}, data)
}

// EncodeNotification renders a session notification.
func EncodeNotification(n game.Notification) ([]byte, error) {
	ts := n.Timestamp
	return encode(Envelope{Type: string(n.Kind), SessionID: n.SessionID, Timestamp: &ts}, n.Payload)
}

func encode(env Envelope, data any) ([]byte, error) {
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", env.Type, err)
		}
		env.Data = raw
	}
	return json.Marshal(env)
}

type WelcomeData struct {
	ConnID string `json:"conn_id"`
	Slot   int    `json:"slot"`
}

type RoomStateData struct {
	Room room.Snapshot `json:"room"`
}

type DisconnectNoticeData struct {
	Reason string `json:"reason"`
}

type ErrorData struct {
	Reason string `json:"reason"`
}
