package matchmaker

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/stealthdragons/dragon-server/internal/config"
)

// Server answers registry datagrams on a single UDP socket.
type Server struct {
	conn            *net.UDPConn
	registry        *Registry
	cleanupInterval time.Duration
	maxDatagram     int
	logger          *zap.Logger
}

// Listen binds the registry socket. Use "127.0.0.1:0" for an ephemeral port.
func Listen(cfg config.MatchmakerConfig, logger *zap.Logger) (*Server, error) {
	addr, err := net.ResolveUDPAddr("udp", cfg.Address)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", cfg.Address, err)
	}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", cfg.Address, err)
	}
	size := cfg.MaxDatagramSize
	if size <= 0 {
		size = 8192
	}
	return &Server{
		conn:            conn,
		registry:        NewRegistry(cfg.RoomTimeout, logger),
		cleanupInterval: cfg.CleanupInterval,
		maxDatagram:     size,
		logger:          logger,
	}, nil
}

// Addr returns the bound address.
func (s *Server) Addr() *net.UDPAddr {
	return s.conn.LocalAddr().(*net.UDPAddr)
}

func (s *Server) Registry() *Registry {
	return s.registry
}

// Serve runs the receive loop and the cleanup sweep until ctx is done. The
// socket is closed on return.
func (s *Server) Serve(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		<-ctx.Done()
		return s.conn.Close()
	})

	g.Go(func() error {
		ticker := time.NewTicker(s.cleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				s.registry.Sweep()
			}
		}
	})

	g.Go(func() error {
		return s.readLoop(ctx)
	})

	s.logger.Info("matchmaker listening", zap.Stringer("address", s.Addr()))
	return g.Wait()
}

func (s *Server) readLoop(ctx context.Context) error {
	buf := make([]byte, s.maxDatagram)
	for {
		n, from, err := s.conn.ReadFromUDP(buf)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			s.logger.Warn("read datagram", zap.Error(err))
			continue
		}
		s.handle(buf[:n], from)
	}
}

func (s *Server) handle(datagram []byte, from *net.UDPAddr) {
	msg, err := Parse(datagram)
	if err != nil {
		s.logger.Warn("dropping malformed datagram",
			zap.Stringer("from", from),
			zap.ByteString("payload", datagram),
			zap.Error(err),
		)
		return
	}
	s.logger.Debug("datagram received", zap.String("type", string(msg.Type)), zap.Stringer("from", from))

	resp, ok := s.registry.Apply(msg)
	if !ok {
		return
	}
	if _, err := s.conn.WriteToUDP(resp, from); err != nil {
		s.logger.Warn("send room list", zap.Stringer("to", from), zap.Error(err))
	}
}
