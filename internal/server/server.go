package server

import (
	"context"
	"fmt"
	"net"
	"strings"
	"sync"

	"battleship-server/internal/config"
	"battleship-server/internal/constants"
	"battleship-server/internal/game"
	"battleship-server/internal/lobby"
	"battleship-server/internal/protocol"
	"battleship-server/internal/stats"

	"github.com/rs/zerolog"
)

// Server accepts TCP connections and routes decoded messages to the lobby,
// rooms, match registry and stats store. It owns the session table; each
// session owns its own socket.
type Server struct {
	cfg      *config.Config
	logger   zerolog.Logger
	queue    *lobby.Queue
	rooms    *lobby.Rooms
	registry *game.Registry
	store    *stats.Store

	mu       sync.Mutex
	listener net.Listener
	sessions map[string]*Session
	running  bool
}

func New(cfg *config.Config, queue *lobby.Queue, rooms *lobby.Rooms, registry *game.Registry, store *stats.Store, logger zerolog.Logger) *Server {
	return &Server{
		cfg:      cfg,
		logger:   logger.With().Str("component", "tcp_server").Logger(),
		queue:    queue,
		rooms:    rooms,
		registry: registry,
		store:    store,
		sessions: make(map[string]*Session),
	}
}

// Start binds the listening socket and launches the accept loop. A bind
// failure is fatal to startup.
func (s *Server) Start() error {
	addr := net.JoinHostPort(s.cfg.Host, s.cfg.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to bind %s: %w", addr, err)
	}

	s.mu.Lock()
	s.listener = ln
	s.running = true
	s.mu.Unlock()

	s.logger.Info().Str("addr", addr).Msg("tcp server listening")
	go s.acceptLoop(ln)
	return nil
}

func (s *Server) acceptLoop(ln net.Listener) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			s.mu.Lock()
			running := s.running
			s.mu.Unlock()
			if !running {
				return
			}
			s.logger.Warn().Err(err).Msg("accept failed")
			continue
		}

		s.mu.Lock()
		if len(s.sessions) >= s.cfg.MaxClients {
			s.mu.Unlock()
			s.logger.Warn().
				Str("remote", conn.RemoteAddr().String()).
				Int("max_clients", s.cfg.MaxClients).
				Msg("rejecting connection, server full")
			conn.Close()
			continue
		}
		sess := newSession(conn, s, s.logger)
		s.sessions[sess.ID()] = sess
		total := len(s.sessions)
		s.mu.Unlock()

		s.logger.Info().
			Str("session_id", sess.ID()).
			Str("remote", conn.RemoteAddr().String()).
			Int("active", total).
			Msg("client connected")
		go sess.run(context.Background())
	}
}

// Stop closes the listener and tears down every live session.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	s.running = false
	if s.listener != nil {
		s.listener.Close()
	}
	open := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		open = append(open, sess)
	}
	s.mu.Unlock()

	for _, sess := range open {
		sess.Send(protocol.ConnectionError{Message: "server shutting down"})
		sess.Close()
	}
	s.logger.Info().Int("sessions", len(open)).Msg("tcp server stopped")
	return nil
}

// Addr reports the bound listener address, useful when Port is "0".
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// SessionCount reports live connections, for the health endpoint.
func (s *Server) SessionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// handleMessage routes one decoded inbound message. Ordering per session is
// guaranteed by the read loop calling this sequentially.
func (s *Server) handleMessage(sess *Session, msg protocol.Message) {
	switch m := msg.(type) {
	case *protocol.Handshake:
		s.handleHandshake(sess, m)
		return
	case *protocol.Ping:
		sess.Send(protocol.Pong{Timestamp: m.Timestamp})
		return
	case *protocol.Pong:
		return // liveness already recorded by the read loop
	case *protocol.Disconnect:
		sess.Close()
		return
	}

	if !sess.isHandshaken() {
		sess.Send(protocol.InvalidAction{Message: "handshake required before any other message"})
		return
	}

	switch m := msg.(type) {
	case *protocol.FindPvP:
		if err := s.queue.FindPvP(sess, m.GameConfig); err != nil {
			sess.Send(protocol.InvalidAction{Message: err.Error()})
		}
	case *protocol.FindPvE:
		if err := s.queue.FindPvE(sess, m.GameConfig, m.Difficulty); err != nil {
			sess.Send(protocol.InvalidAction{Message: err.Error()})
		}
	case *protocol.CancelSearch:
		s.queue.Remove(sess.ID())
		s.rooms.Remove(sess.ID())
	case *protocol.CreateRoom:
		if err := s.rooms.Create(sess, m.Config); err != nil {
			sess.Send(protocol.RoomError{Message: err.Error()})
		}
	case *protocol.JoinRoom:
		s.rooms.Join(sess, m.RoomCode)
	case *protocol.StatsRequest:
		s.sendStats(sess)
	case *protocol.PlaceShips, *protocol.ConfirmDeployment, *protocol.Attack, *protocol.Surrender, *protocol.LeaveGame:
		if !s.registry.Dispatch(sess.ID(), msg) {
			sess.Send(protocol.InvalidAction{Message: "no active match"})
		}
	default:
		s.logger.Warn().
			Str("session_id", sess.ID()).
			Str("type", string(msg.MessageType())).
			Msg("unhandled message type")
	}
}

func (s *Server) handleHandshake(sess *Session, m *protocol.Handshake) {
	name := strings.TrimSpace(m.PlayerName)
	if name == "" {
		name = "Player-" + sess.ID()[:8]
	}
	sess.completeHandshake(name)

	if _, err := s.store.Ensure(name); err != nil {
		s.logger.Error().Err(err).Str("player", name).Msg("failed to ensure player record")
	}

	sess.Send(protocol.Welcome{
		PlayerID:      sess.ID(),
		ServerVersion: constants.ServerVersion,
		Message:       fmt.Sprintf("Welcome aboard, %s!", name),
	})
	s.sendStats(sess)

	s.logger.Info().
		Str("session_id", sess.ID()).
		Str("player", name).
		Str("client_version", m.ClientVersion).
		Msg("handshake complete")
}

func (s *Server) sendStats(sess *Session) {
	sess.Send(protocol.StatsResponse{
		PlayerStats: s.store.Get(sess.Name()),
		Leaderboard: s.store.Leaderboard(constants.LeaderboardLimit),
	})
}

// handleDisconnect removes the session everywhere it might be referenced.
// Called exactly once per session, from Session.Close.
func (s *Server) handleDisconnect(sess *Session) {
	s.mu.Lock()
	if _, ok := s.sessions[sess.ID()]; !ok {
		s.mu.Unlock()
		return
	}
	delete(s.sessions, sess.ID())
	total := len(s.sessions)
	s.mu.Unlock()

	s.queue.Remove(sess.ID())
	s.rooms.Remove(sess.ID())
	s.registry.HandleDisconnect(sess.ID())

	s.logger.Info().
		Str("session_id", sess.ID()).
		Str("player", sess.Name()).
		Int("active", total).
		Msg("client disconnected")
}
