package matchmaker

import (
	"context"
	"fmt"
	"net"
	"time"

	"go.uber.org/zap"

	"github.com/stealthdragons/dragon-server/internal/config"
)

// Client talks to a registry. Every message except GET_ROOMS is fire and
// forget: a nil error only means the datagram was written.
type Client struct {
	addr        string
	timeout     time.Duration
	maxDatagram int
	logger      *zap.Logger
}

func NewClient(cfg config.MatchmakerConfig, logger *zap.Logger) *Client {
	timeout := cfg.DiscoveryTimeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	size := cfg.MaxDatagramSize
	if size <= 0 {
		size = 8192
	}
	return &Client{addr: cfg.Address, timeout: timeout, maxDatagram: size, logger: logger}
}

func (c *Client) Register(name string, ep Endpoint) error {
	return c.send(Message{Type: MsgRegister, Name: name, Endpoint: ep})
}

func (c *Client) Ping(ep Endpoint) error {
	return c.send(Message{Type: MsgPing, Endpoint: ep})
}

func (c *Client) Deregister(ep Endpoint) error {
	return c.send(Message{Type: MsgDeregister, Endpoint: ep})
}

func (c *Client) PlayerJoin(ep Endpoint) error {
	return c.send(Message{Type: MsgPlayerJoin, Endpoint: ep})
}

func (c *Client) PlayerLeave(ep Endpoint) error {
	return c.send(Message{Type: MsgPlayerLeave, Endpoint: ep})
}

// GetRooms asks for the room list and waits for one response, bounded by
// the discovery timeout and ctx. On failure the list is empty, not nil.
func (c *Client) GetRooms(ctx context.Context) ([]RoomInfo, error) {
	conn, err := c.dial()
	if err != nil {
		return []RoomInfo{}, err
	}
	defer conn.Close()

	deadline := time.Now().Add(c.timeout)
	ctxDeadline, bounded := ctx.Deadline()
	if bounded && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}
	if err := conn.SetDeadline(deadline); err != nil {
		return []RoomInfo{}, err
	}

	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetDeadline(time.Now())
	})
	defer stop()

	if _, err := conn.Write([]byte(MsgGetRooms)); err != nil {
		return []RoomInfo{}, fmt.Errorf("send %s: %w", MsgGetRooms, err)
	}

	buf := make([]byte, c.maxDatagram)
	n, err := conn.Read(buf)
	if err != nil {
		if ctx.Err() != nil {
			return []RoomInfo{}, ctx.Err()
		}
		if bounded && !time.Now().Before(ctxDeadline) {
			return []RoomInfo{}, context.DeadlineExceeded
		}
		return []RoomInfo{}, fmt.Errorf("await room list: %w", err)
	}
	rooms, err := ParseRoomList(buf[:n])
	if err != nil {
		return []RoomInfo{}, err
	}
	return rooms, nil
}

// Heartbeat pings ep every interval until ctx is done. Send failures are
// logged and retried on the next tick.
func (c *Client) Heartbeat(ctx context.Context, interval time.Duration, ep Endpoint) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := c.Ping(ep); err != nil {
				c.logger.Warn("matchmaker heartbeat failed", zap.Error(err))
			}
		}
	}
}

func (c *Client) send(msg Message) error {
	payload, err := msg.Encode()
	if err != nil {
		return err
	}
	conn, err := c.dial()
	if err != nil {
		return err
	}
	defer conn.Close()
	if _, err := conn.Write(payload); err != nil {
		return fmt.Errorf("send %s: %w", msg.Type, err)
	}
	return nil
}

func (c *Client) dial() (net.Conn, error) {
	conn, err := net.Dial("udp", c.addr)
	if err != nil {
		return nil, fmt.Errorf("dial matchmaker %s: %w", c.addr, err)
	}
	return conn, nil
}

// HostAnnouncer reports a hosting room's occupancy under a fixed endpoint.
type HostAnnouncer struct {
	Client   *Client
	Endpoint Endpoint
}

func (h HostAnnouncer) PlayerJoin() error {
	return h.Client.PlayerJoin(h.Endpoint)
}

func (h HostAnnouncer) PlayerLeave() error {
	return h.Client.PlayerLeave(h.Endpoint)
}
