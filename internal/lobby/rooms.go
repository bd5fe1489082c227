package lobby

import (
	"crypto/rand"
	"fmt"
	"strings"
	"sync"

	"battleship-server/internal/constants"
	"battleship-server/internal/game"
	"battleship-server/internal/protocol"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type privateRoom struct {
	id      string
	code    string
	cfg     protocol.GameConfig
	players []game.Participant
}

// Rooms is the code-based private matchmaking path. Codes come from a
// cryptographically strong source and are unique among live rooms.
type Rooms struct {
	launcher Launcher
	logger   zerolog.Logger

	mu    sync.Mutex
	rooms map[string]*privateRoom
	codes map[string]string // code -> room id
}

func NewRooms(launcher Launcher, logger zerolog.Logger) *Rooms {
	return &Rooms{
		launcher: launcher,
		logger:   logger,
		rooms:    make(map[string]*privateRoom),
		codes:    make(map[string]string),
	}
}

// Create opens a private room for the host and returns its join code via
// RoomCreated plus an initial LobbyStatus.
func (r *Rooms) Create(host game.Participant, cfg protocol.GameConfig) error {
	cfg = cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	code, err := r.generateCodeLocked()
	if err != nil {
		return fmt.Errorf("generate room code: %w", err)
	}
	room := &privateRoom{
		id:      uuid.New().String(),
		code:    code,
		cfg:     cfg,
		players: []game.Participant{host},
	}
	r.rooms[room.id] = room
	r.codes[code] = room.id

	r.logger.Info().Str("room_code", code).Str("host", host.Name()).Msg("private room created")
	host.Send(protocol.RoomCreated{RoomID: room.id, RoomCode: code, Config: cfg})
	r.broadcastStatusLocked(room)
	return nil
}

// Join adds a player to the room behind the code. A full room launches the
// match and disappears from the registry.
func (r *Rooms) Join(p game.Participant, code string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	roomID, ok := r.codes[strings.ToUpper(strings.TrimSpace(code))]
	if !ok {
		p.Send(protocol.RoomError{Message: "room not found"})
		return
	}
	room := r.rooms[roomID]
	if room == nil {
		p.Send(protocol.RoomError{Message: "room not found"})
		return
	}
	if len(room.players) >= lobbyCapacity {
		p.Send(protocol.RoomError{Message: "room full"})
		return
	}

	room.players = append(room.players, p)
	r.logger.Info().Str("room_code", room.code).Str("player", p.Name()).Msg("player joined private room")
	p.Send(protocol.RoomJoined{RoomID: room.id, RoomCode: room.code, Config: room.cfg})
	r.broadcastStatusLocked(room)

	if len(room.players) == lobbyCapacity {
		players := append([]game.Participant(nil), room.players...)
		r.removeRoomLocked(room)
		if err := r.launcher.Launch(players, room.cfg, ""); err != nil {
			r.logger.Error().Err(err).Str("room_code", room.code).Msg("failed to launch match from room")
		}
	}
}

// Remove drops the session from whatever room holds it; an emptied room is
// deleted with its code.
func (r *Rooms) Remove(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, room := range r.rooms {
		for i, p := range room.players {
			if p.ID() != sessionID {
				continue
			}
			room.players = append(room.players[:i], room.players[i+1:]...)
			r.logger.Info().Str("room_code", room.code).Str("session_id", sessionID).Msg("player left private room")
			if len(room.players) == 0 {
				r.removeRoomLocked(room)
			} else {
				r.broadcastStatusLocked(room)
			}
			return
		}
	}
}

// Count returns the number of open rooms.
func (r *Rooms) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rooms)
}

func (r *Rooms) broadcastStatusLocked(room *privateRoom) {
	names := make([]string, 0, len(room.players))
	for _, p := range room.players {
		names = append(names, p.Name())
	}
	msg := protocol.LobbyStatus{
		LobbyID:    room.id,
		Players:    names,
		MaxPlayers: lobbyCapacity,
		Config:     room.cfg,
		RoomCode:   room.code,
	}
	for _, p := range room.players {
		p.Send(msg)
	}
}

func (r *Rooms) removeRoomLocked(room *privateRoom) {
	delete(r.rooms, room.id)
	delete(r.codes, room.code)
}

func (r *Rooms) generateCodeLocked() (string, error) {
	for {
		buf := make([]byte, constants.RoomCodeLength)
		if _, err := rand.Read(buf); err != nil {
			return "", err
		}
		var b strings.Builder
		for _, v := range buf {
			b.WriteByte(constants.RoomCodeAlphabet[int(v)%len(constants.RoomCodeAlphabet)])
		}
		code := b.String()
		if _, taken := r.codes[code]; !taken {
			return code, nil
		}
	}
}
