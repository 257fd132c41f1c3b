package matchmaker

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
)

// MessageType is the leading tag of a registry datagram.
type MessageType string

const (
	MsgRegister    MessageType = "REGISTER"
	MsgGetRooms    MessageType = "GET_ROOMS"
	MsgPing        MessageType = "PING"
	MsgDeregister  MessageType = "DEREGISTER"
	MsgPlayerJoin  MessageType = "PLAYER_JOIN"
	MsgPlayerLeave MessageType = "PLAYER_LEAVE"
)

const (
	fieldSep = "|"
	roomSep  = ","

	StatusOpen = "Open"
	StatusFull = "Full"
)

var ErrMalformed = errors.New("malformed registry message")

// Endpoint is the game server address a room is registered under.
type Endpoint struct {
	IP   string
	Port int
}

func (e Endpoint) String() string {
	return net.JoinHostPort(e.IP, strconv.Itoa(e.Port))
}

// Message is a decoded registry datagram.
type Message struct {
	Type     MessageType
	Name     string
	Endpoint Endpoint
}

// Encode renders the message in wire form.
func (m Message) Encode() ([]byte, error) {
	switch m.Type {
	case MsgGetRooms:
		return []byte(MsgGetRooms), nil
	case MsgRegister:
		if m.Name == "" || strings.ContainsAny(m.Name, fieldSep+roomSep) {
			return nil, fmt.Errorf("%w: room name %q", ErrMalformed, m.Name)
		}
		return []byte(strings.Join([]string{string(m.Type), m.Name, m.Endpoint.IP, strconv.Itoa(m.Endpoint.Port)}, fieldSep)), nil
	case MsgPing, MsgDeregister, MsgPlayerJoin, MsgPlayerLeave:
		return []byte(strings.Join([]string{string(m.Type), m.Endpoint.IP, strconv.Itoa(m.Endpoint.Port)}, fieldSep)), nil
	default:
		return nil, fmt.Errorf("%w: unknown type %q", ErrMalformed, m.Type)
	}
}

// Parse decodes a registry datagram. Trailing whitespace is ignored; extra
// fields after the required ones are ignored.
func Parse(datagram []byte) (Message, error) {
	text := strings.TrimSpace(string(datagram))
	fields := strings.Split(text, fieldSep)
	msg := Message{Type: MessageType(fields[0])}

	switch msg.Type {
	case MsgGetRooms:
		if len(fields) != 1 {
			return Message{}, fmt.Errorf("%w: %q", ErrMalformed, text)
		}
		return msg, nil

	case MsgRegister:
		if len(fields) < 4 || fields[1] == "" || strings.Contains(fields[1], roomSep) {
			return Message{}, fmt.Errorf("%w: %q", ErrMalformed, text)
		}
		ep, err := parseEndpoint(fields[2], fields[3])
		if err != nil {
			return Message{}, err
		}
		msg.Name = fields[1]
		msg.Endpoint = ep
		return msg, nil

	case MsgPing, MsgDeregister, MsgPlayerJoin, MsgPlayerLeave:
		if len(fields) < 3 {
			return Message{}, fmt.Errorf("%w: %q", ErrMalformed, text)
		}
		ep, err := parseEndpoint(fields[1], fields[2])
		if err != nil {
			return Message{}, err
		}
		msg.Endpoint = ep
		return msg, nil

	default:
		return Message{}, fmt.Errorf("%w: unknown tag %q", ErrMalformed, fields[0])
	}
}

func parseEndpoint(ip, port string) (Endpoint, error) {
	if ip == "" {
		return Endpoint{}, fmt.Errorf("%w: empty ip", ErrMalformed)
	}
	p, err := strconv.Atoi(port)
	if err != nil || p < 0 || p > 65535 {
		return Endpoint{}, fmt.Errorf("%w: port %q", ErrMalformed, port)
	}
	return Endpoint{IP: ip, Port: p}, nil
}

// RoomInfo is one entry of a GET_ROOMS response.
type RoomInfo struct {
	Name        string `json:"name"`
	IP          string `json:"ip"`
	Port        int    `json:"port"`
	Status      string `json:"status"`
	PlayerCount int    `json:"player_count"`
}

func (r RoomInfo) Endpoint() Endpoint {
	return Endpoint{IP: r.IP, Port: r.Port}
}

// EncodeRoomList renders a GET_ROOMS response. An empty list is an empty
// payload.
func EncodeRoomList(rooms []RoomInfo) []byte {
	parts := make([]string, 0, len(rooms))
	for _, r := range rooms {
		parts = append(parts, strings.Join([]string{
			r.Name,
			r.IP,
			strconv.Itoa(r.Port),
			r.Status,
			strconv.Itoa(r.PlayerCount),
		}, fieldSep))
	}
	return []byte(strings.Join(parts, roomSep))
}

// ParseRoomList decodes a GET_ROOMS response.
func ParseRoomList(payload []byte) ([]RoomInfo, error) {
	text := strings.TrimSpace(string(payload))
	if text == "" {
		return []RoomInfo{}, nil
	}
	entries := strings.Split(text, roomSep)
	rooms := make([]RoomInfo, 0, len(entries))
	for _, entry := range entries {
		fields := strings.Split(entry, fieldSep)
		if len(fields) != 5 {
			return nil, fmt.Errorf("%w: room entry %q", ErrMalformed, entry)
		}
		port, err := strconv.Atoi(fields[2])
		if err != nil {
			return nil, fmt.Errorf("%w: room port %q", ErrMalformed, fields[2])
		}
		count, err := strconv.Atoi(fields[4])
		if err != nil {
			return nil, fmt.Errorf("%w: player count %q", ErrMalformed, fields[4])
		}
		rooms = append(rooms, RoomInfo{
			Name:        fields[0],
			IP:          fields[1],
			Port:        port,
			Status:      fields[3],
			PlayerCount: count,
		})
	}
	return rooms, nil
}
