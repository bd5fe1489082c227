package game

import (
	"fmt"
	"sync"

	"battleship-server/internal/protocol"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Registry owns the set of live matches and is the single entry point through
// which matchmaking launches them and sessions reach them. Its lock covers
// only the maps; match-internal work always runs outside it, so one match can
// never block another.
type Registry struct {
	records Recorder
	archive Archiver
	logger  zerolog.Logger

	mu        sync.RWMutex
	matches   map[string]*Match
	bySession map[string]string // session id -> match id
}

func NewRegistry(records Recorder, archive Archiver, logger zerolog.Logger) *Registry {
	return &Registry{
		records:   records,
		archive:   archive,
		logger:    logger,
		matches:   make(map[string]*Match),
		bySession: make(map[string]string),
	}
}

// Launch creates and starts a match for one or two participants. A single
// participant plays the computer at the given difficulty. This is the only
// way a match comes into existence.
func (r *Registry) Launch(players []Participant, cfg protocol.GameConfig, difficulty protocol.AIDifficulty) error {
	if len(players) == 0 || len(players) > 2 {
		return fmt.Errorf("launch requires 1 or 2 players, got %d", len(players))
	}
	p1 := players[0]
	var p2 Participant
	if len(players) == 2 {
		p2 = players[1]
	}
	pve := p2 == nil

	id := uuid.New().String()
	m := NewMatch(id, p1, p2, difficulty, cfg, r.records, r.archive, r.logger, r.remove)

	r.mu.Lock()
	r.matches[id] = m
	r.bySession[p1.ID()] = id
	if p2 != nil {
		r.bySession[p2.ID()] = id
	}
	r.mu.Unlock()

	r.logger.Info().
		Str("match_id", id).
		Bool("pve", pve).
		Str("player1", p1.Name()).
		Msg("match launched")

	p1.Send(protocol.MatchFound{GameID: id, OpponentName: m.nameOf(1), IsPvE: pve, Config: cfg})
	if p2 != nil {
		p2.Send(protocol.MatchFound{GameID: id, OpponentName: p1.Name(), IsPvE: false, Config: cfg})
	}
	m.Start()
	return nil
}

// Dispatch routes an in-match action to the session's live match. It reports
// false when the session has no match, so the caller can answer with a
// validation error.
func (r *Registry) Dispatch(sessionID string, msg protocol.Message) bool {
	m := r.matchFor(sessionID)
	if m == nil {
		return false
	}
	switch a := msg.(type) {
	case *protocol.PlaceShips:
		m.HandlePlaceShips(sessionID, a.Ships)
	case *protocol.ConfirmDeployment:
		m.HandlePlaceShips(sessionID, a.Ships)
	case *protocol.Attack:
		m.HandleAttack(sessionID, a.Coordinate)
	case *protocol.Surrender:
		m.HandleSurrender(sessionID)
	case *protocol.LeaveGame:
		m.HandleLeave(sessionID)
	default:
		return false
	}
	return true
}

// HandleDisconnect cascades a closed connection into its match's abandonment
// path. Calling it for a session without a match is a no-op.
func (r *Registry) HandleDisconnect(sessionID string) {
	if m := r.matchFor(sessionID); m != nil {
		m.HandleDisconnect(sessionID)
	}
}

// Count returns the number of live matches.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.matches)
}

func (r *Registry) matchFor(sessionID string) *Match {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.bySession[sessionID]
	if !ok {
		return nil
	}
	return r.matches[id]
}

// remove is the match's onFinished callback.
func (r *Registry) remove(matchID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.matches[matchID]; !ok {
		return
	}
	delete(r.matches, matchID)
	for sid, mid := range r.bySession {
		if mid == matchID {
			delete(r.bySession, sid)
		}
	}
	r.logger.Debug().Str("match_id", matchID).Msg("match removed from registry")
}
