// Package lobby implements the two matchmaking paths: the anonymous PvP queue
// and code-based private rooms. Both converge on the match registry's Launch.
package lobby

import (
	"sync"
	"time"

	"battleship-server/internal/game"
	"battleship-server/internal/protocol"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Launcher is the single match-creation entry point, implemented by
// game.Registry.
type Launcher interface {
	Launch(players []game.Participant, cfg protocol.GameConfig, difficulty protocol.AIDifficulty) error
}

type waitingLobby struct {
	id      string
	cfg     protocol.GameConfig
	created time.Time
	players []game.Participant
}

const lobbyCapacity = 2

// Queue pairs waiting PvP players by config compatibility and launches PvE
// matches immediately. One mutex guards all pools; queue operations never
// touch a match's lock.
type Queue struct {
	launcher Launcher
	logger   zerolog.Logger

	mu      sync.Mutex
	lobbies map[string]*waitingLobby
	order   []string // lobby ids, oldest first
}

func NewQueue(launcher Launcher, logger zerolog.Logger) *Queue {
	return &Queue{
		launcher: launcher,
		logger:   logger,
		lobbies:  make(map[string]*waitingLobby),
	}
}

// FindPvE launches a solo match against the computer without queueing.
func (q *Queue) FindPvE(p game.Participant, cfg protocol.GameConfig, difficulty protocol.AIDifficulty) error {
	cfg = cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return err
	}
	if difficulty == "" {
		difficulty = protocol.DifficultyMedium
	}
	q.logger.Info().Str("player", p.Name()).Str("difficulty", string(difficulty)).Msg("pve match requested")
	return q.launcher.Launch([]game.Participant{p}, cfg, difficulty)
}

// FindPvP joins the oldest open lobby with a compatible config, or opens a
// new one. A lobby that fills launches immediately and is removed.
func (q *Queue) FindPvP(p game.Participant, cfg protocol.GameConfig) error {
	cfg = cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return err
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	for _, id := range q.order {
		l := q.lobbies[id]
		if l == nil || len(l.players) >= lobbyCapacity || !l.cfg.Compatible(cfg) {
			continue
		}
		l.players = append(l.players, p)
		q.logger.Info().Str("player", p.Name()).Str("lobby_id", l.id).Msg("player joined waiting lobby")
		q.broadcastStatusLocked(l)
		if len(l.players) == lobbyCapacity {
			players := append([]game.Participant(nil), l.players...)
			q.removeLobbyLocked(l.id)
			// The lobby's creator fixed the authoritative config.
			return q.launcher.Launch(players, l.cfg, "")
		}
		return nil
	}

	l := &waitingLobby{
		id:      uuid.New().String(),
		cfg:     cfg,
		created: time.Now(),
		players: []game.Participant{p},
	}
	q.lobbies[l.id] = l
	q.order = append(q.order, l.id)
	q.logger.Info().Str("player", p.Name()).Str("lobby_id", l.id).Msg("waiting lobby opened")
	p.Send(protocol.Waiting{PlayersInQueue: q.waitingCountLocked()})
	q.broadcastStatusLocked(l)
	return nil
}

// Remove takes the session out of whatever lobby holds it. Cancellation and
// disconnect share this path.
func (q *Queue) Remove(sessionID string) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, l := range q.lobbies {
		for i, p := range l.players {
			if p.ID() != sessionID {
				continue
			}
			l.players = append(l.players[:i], l.players[i+1:]...)
			q.logger.Info().Str("session_id", sessionID).Str("lobby_id", l.id).Msg("player left waiting lobby")
			if len(l.players) == 0 {
				q.removeLobbyLocked(l.id)
			} else {
				q.broadcastStatusLocked(l)
			}
			return
		}
	}
}

// Waiting returns the number of players currently queued.
func (q *Queue) Waiting() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.waitingCountLocked()
}

func (q *Queue) waitingCountLocked() int {
	n := 0
	for _, l := range q.lobbies {
		n += len(l.players)
	}
	return n
}

func (q *Queue) broadcastStatusLocked(l *waitingLobby) {
	names := make([]string, 0, len(l.players))
	for _, p := range l.players {
		names = append(names, p.Name())
	}
	msg := protocol.LobbyStatus{
		LobbyID:    l.id,
		Players:    names,
		MaxPlayers: lobbyCapacity,
		Config:     l.cfg,
	}
	for _, p := range l.players {
		p.Send(msg)
	}
}

func (q *Queue) removeLobbyLocked(id string) {
	delete(q.lobbies, id)
	for i, lid := range q.order {
		if lid == id {
			q.order = append(q.order[:i], q.order[i+1:]...)
			break
		}
	}
}
