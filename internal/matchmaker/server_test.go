package matchmaker

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/stealthdragons/dragon-server/internal/config"
)

func testConfig(addr string) config.MatchmakerConfig {
	return config.MatchmakerConfig{
		Address:          addr,
		CleanupInterval:  time.Hour,
		RoomTimeout:      time.Minute,
		DiscoveryTimeout: 2 * time.Second,
		MaxDatagramSize:  8192,
	}
}

func startServer(t *testing.T) (*Server, *Client) {
	t.Helper()
	logger := zaptest.NewLogger(t)
	srv, err := Listen(testConfig("127.0.0.1:0"), logger)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Error("server did not stop")
		}
	})

	return srv, NewClient(testConfig(srv.Addr().String()), logger)
}

func TestServerRoundTrip(t *testing.T) {
	srv, client := startServer(t)
	ep := Endpoint{IP: "10.0.0.5", Port: 7777}

	// Sends are fire and forget; wait for the registry to catch up.
	require.NoError(t, client.Register("Den", ep))
	require.Eventually(t, func() bool { return srv.Registry().Len() == 1 }, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, client.PlayerJoin(ep))
	require.NoError(t, client.PlayerJoin(ep))

	require.Eventually(t, func() bool {
		rooms := srv.Registry().List()
		return len(rooms) == 1 && rooms[0].PlayerCount == 2
	}, 2*time.Second, 10*time.Millisecond)

	rooms, err := client.GetRooms(context.Background())
	require.NoError(t, err)
	require.Len(t, rooms, 1)
	assert.Equal(t, RoomInfo{Name: "Den", IP: "10.0.0.5", Port: 7777, Status: StatusFull, PlayerCount: 2}, rooms[0])

	require.NoError(t, client.Deregister(ep))
	require.Eventually(t, func() bool { return srv.Registry().Len() == 0 }, 2*time.Second, 10*time.Millisecond)

	rooms, err = client.GetRooms(context.Background())
	require.NoError(t, err)
	assert.Empty(t, rooms)
}

func TestServerIgnoresMalformedDatagrams(t *testing.T) {
	srv, client := startServer(t)

	conn, err := net.Dial("udp", srv.Addr().String())
	require.NoError(t, err)
	defer conn.Close()
	_, err = conn.Write([]byte("REGISTER|broken"))
	require.NoError(t, err)
	_, err = conn.Write([]byte("NONSENSE"))
	require.NoError(t, err)

	rooms, err := client.GetRooms(context.Background())
	require.NoError(t, err, "server keeps serving after bad input")
	assert.Empty(t, rooms)
}

func TestServerDropsNamesThatBreakTheRoomList(t *testing.T) {
	srv, client := startServer(t)
	require.NoError(t, client.Register("Good Room", Endpoint{IP: "10.0.0.5", Port: 7777}))
	require.Eventually(t, func() bool { return srv.Registry().Len() == 1 }, 2*time.Second, 10*time.Millisecond)

	conn, err := net.Dial("udp", srv.Addr().String())
	require.NoError(t, err)
	defer conn.Close()
	_, err = conn.Write([]byte("REGISTER|evil,room|10.0.0.6|7777"))
	require.NoError(t, err)
	// Datagrams from one socket arrive in order on loopback; a trailing
	// valid register marks the point the bad one has been handled.
	_, err = conn.Write([]byte("REGISTER|Lair|10.0.0.7|7777"))
	require.NoError(t, err)
	require.Eventually(t, func() bool { return srv.Registry().Len() == 2 }, 2*time.Second, 10*time.Millisecond)

	rooms, err := client.GetRooms(context.Background())
	require.NoError(t, err)
	require.Len(t, rooms, 2)
	assert.Equal(t, "Good Room", rooms[0].Name)
	assert.Equal(t, "Lair", rooms[1].Name)
}

func TestGetRoomsTimesOut(t *testing.T) {
	// A bound socket that never answers.
	silent, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	defer silent.Close()

	cfg := testConfig(silent.LocalAddr().String())
	cfg.DiscoveryTimeout = 100 * time.Millisecond
	client := NewClient(cfg, zaptest.NewLogger(t))

	start := time.Now()
	rooms, err := client.GetRooms(context.Background())
	assert.Error(t, err)
	assert.NotNil(t, rooms)
	assert.Empty(t, rooms)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestGetRoomsHonoursContext(t *testing.T) {
	silent, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	defer silent.Close()

	client := NewClient(testConfig(silent.LocalAddr().String()), zaptest.NewLogger(t))
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err = client.GetRooms(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestHostAnnouncer(t *testing.T) {
	srv, client := startServer(t)
	ep := Endpoint{IP: "10.0.0.7", Port: 7777}
	require.NoError(t, client.Register("Nest", ep))
	require.Eventually(t, func() bool { return srv.Registry().Len() == 1 }, 2*time.Second, 10*time.Millisecond)

	ann := HostAnnouncer{Client: client, Endpoint: ep}
	require.NoError(t, ann.PlayerJoin())
	require.Eventually(t, func() bool { return srv.Registry().List()[0].PlayerCount == 1 }, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, ann.PlayerLeave())
	require.Eventually(t, func() bool { return srv.Registry().List()[0].PlayerCount == 0 }, 2*time.Second, 10*time.Millisecond)
}
