package server

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"battleship-server/internal/constants"
	"battleship-server/internal/protocol"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Session is the per-connection actor: it owns one socket, decodes inbound
// lines, serializes outbound writes, and watches liveness. Every other
// component refers to it only by id through the server.
type Session struct {
	id     string
	conn   net.Conn
	server *Server
	logger zerolog.Logger

	writeMu sync.Mutex
	w       *bufio.Writer

	stateMu    sync.Mutex
	name       string
	handshaken bool
	lastSeen   time.Time
	closed     bool
}

func newSession(conn net.Conn, srv *Server, logger zerolog.Logger) *Session {
	id := uuid.New().String()
	return &Session{
		id:       id,
		conn:     conn,
		server:   srv,
		logger:   logger.With().Str("session_id", id).Logger(),
		w:        bufio.NewWriter(conn),
		lastSeen: time.Now(),
	}
}

func (s *Session) ID() string { return s.id }

func (s *Session) Name() string {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.name
}

// Send serializes one message as a single line. All writes of a session go
// through one mutex, so outbound order matches issue order. A write failure
// tears the session down.
func (s *Session) Send(msg protocol.Message) {
	data, err := protocol.Encode(msg)
	if err != nil {
		s.logger.Error().Err(err).Str("type", string(msg.MessageType())).Msg("failed to encode message")
		return
	}

	s.writeMu.Lock()
	_, werr := s.w.Write(data)
	if werr == nil {
		werr = s.w.WriteByte('\n')
	}
	if werr == nil {
		werr = s.w.Flush()
	}
	s.writeMu.Unlock()

	if werr != nil {
		s.logger.Debug().Err(werr).Msg("write failed, closing session")
		// Close must not run on this stack: the disconnect cascade may send
		// to this same session and would deadlock on writeMu.
		go s.Close()
	}
}

// Close is idempotent: it tears down the socket and asynchronously notifies
// the server so queue, rooms and match cleanup cascade exactly once.
func (s *Session) Close() {
	s.stateMu.Lock()
	if s.closed {
		s.stateMu.Unlock()
		return
	}
	s.closed = true
	s.stateMu.Unlock()

	s.logger.Info().Str("player", s.Name()).Msg("session closing")
	if err := s.conn.Close(); err != nil {
		s.logger.Debug().Err(err).Msg("error closing socket")
	}
	go s.server.handleDisconnect(s)
}

// run drives the read loop and the heartbeat monitor until either fails.
func (s *Session) run(ctx context.Context) {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.readLoop() })
	g.Go(func() error { return s.heartbeat(ctx) })

	if err := g.Wait(); err != nil {
		s.logger.Info().Err(err).Msg("session ended")
	}
	s.Close()
}

func (s *Session) readLoop() error {
	scanner := bufio.NewScanner(s.conn)
	scanner.Buffer(make([]byte, 0, 64*1024), constants.MaxInboundLineSize)

	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		s.touch()

		msg, err := protocol.Decode(line)
		if err != nil {
			// Protocol error: drop the line, keep the connection.
			s.logger.Warn().Err(err).Msg("dropping undecodable line")
			continue
		}
		s.server.handleMessage(s, msg)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read loop: %w", err)
	}
	return nil // EOF
}

// heartbeat pings every 30s and kills the session after 60s without any
// inbound traffic. Expiry is a failure path, not a user action, but it feeds
// the same disconnect cascade.
func (s *Session) heartbeat(ctx context.Context) error {
	ticker := time.NewTicker(constants.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.stateMu.Lock()
			silent := time.Since(s.lastSeen)
			closed := s.closed
			s.stateMu.Unlock()
			if closed {
				return nil
			}
			if silent > constants.HeartbeatTimeout {
				s.conn.Close() // unblocks the read loop
				return fmt.Errorf("heartbeat timeout after %s", silent.Round(time.Second))
			}
			s.Send(protocol.Ping{Timestamp: time.Now().UnixMilli()})
		}
	}
}

func (s *Session) touch() {
	s.stateMu.Lock()
	s.lastSeen = time.Now()
	s.stateMu.Unlock()
}

func (s *Session) completeHandshake(name string) {
	s.stateMu.Lock()
	s.name = name
	s.handshaken = true
	s.stateMu.Unlock()
}

func (s *Session) isHandshaken() bool {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.handshaken
}
