// Package stats is the durable per-player record store: a single JSON
// document on disk, rewritten wholesale through an atomic replace on every
// update, guarded by one coarse lock.
package stats

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"sync"

	"battleship-server/internal/protocol"

	"github.com/rs/zerolog"
)

type recordsFile struct {
	Players map[string]protocol.PlayerStats `json:"players"`
}

// Store serializes all record access through one mutex. Writes happen once
// per match conclusion per participant, so coarse locking is plenty.
type Store struct {
	path   string
	logger zerolog.Logger

	mu      sync.Mutex
	players map[string]protocol.PlayerStats
}

// New loads the records file, starting fresh if it is missing or corrupt.
func New(path string, logger zerolog.Logger) (*Store, error) {
	s := &Store{
		path:    path,
		logger:  logger,
		players: make(map[string]protocol.PlayerStats),
	}

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		logger.Info().Str("path", path).Msg("records file not found, starting fresh")
		if err := s.saveLocked(); err != nil {
			return nil, fmt.Errorf("create records file: %w", err)
		}
	case err != nil:
		return nil, fmt.Errorf("read records file: %w", err)
	default:
		var file recordsFile
		if err := json.Unmarshal(data, &file); err != nil {
			logger.Warn().Err(err).Str("path", path).Msg("records file corrupt, starting fresh")
		} else if file.Players != nil {
			s.players = file.Players
		}
		logger.Info().Int("players", len(s.players)).Str("path", path).Msg("records loaded")
	}

	return s, nil
}

// Ensure creates and persists a zeroed record on first contact.
func (s *Store) Ensure(name string) (protocol.PlayerStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.players[name]; ok {
		return existing, nil
	}
	fresh := protocol.PlayerStats{PlayerName: name}
	s.players[name] = fresh
	s.logger.Info().Str("player", name).Msg("created new player record")
	if err := s.saveLocked(); err != nil {
		return fresh, err
	}
	return fresh, nil
}

// Get returns the player's record, zeroed if unknown.
func (s *Store) Get(name string) protocol.PlayerStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.players[name]; ok {
		return existing
	}
	return protocol.PlayerStats{PlayerName: name}
}

// Update folds one match's deltas into the player's record and durably saves.
// Invoked exactly once per match conclusion per participant.
func (s *Store) Update(name string, won bool, shots, hits int, playTimeSeconds int64, isPvP bool, turns int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.players[name]
	if !ok {
		cur = protocol.PlayerStats{PlayerName: name}
	}

	cur.GamesPlayed++
	if won {
		cur.GamesWon++
		cur.WinStreak++
		if isPvP {
			cur.PvPWon++
		} else {
			cur.PvEWon++
		}
	} else {
		cur.GamesLost++
		cur.WinStreak = 0
		if isPvP {
			cur.PvPLost++
		} else {
			cur.PvELost++
		}
	}
	if cur.WinStreak > cur.BestWinStreak {
		cur.BestWinStreak = cur.WinStreak
	}

	cur.TotalShots += shots
	cur.TotalHits += hits

	matchAccuracy := 0.0
	if shots > 0 {
		matchAccuracy = float64(hits) / float64(shots) * 100
	}
	if matchAccuracy > cur.BestAccuracy {
		cur.BestAccuracy = matchAccuracy
	}
	if cur.TotalShots > 0 {
		cur.AverageAccuracy = float64(cur.TotalHits) / float64(cur.TotalShots) * 100
	}

	if won && turns > 0 && (cur.FastestWinTurns == 0 || turns < cur.FastestWinTurns) {
		cur.FastestWinTurns = turns
	}
	cur.TotalPlayTimeSeconds += playTimeSeconds

	s.players[name] = cur
	s.logger.Info().
		Str("player", name).
		Bool("won", won).
		Int("games_won", cur.GamesWon).
		Int("win_streak", cur.WinStreak).
		Msg("player record updated")

	return s.saveLocked()
}

// Leaderboard returns the top players by games won, annotated with win rate.
// The sort is a stable descending order over a name-sorted base, so equal
// win counts rank alphabetically.
func (s *Store) Leaderboard(limit int) []protocol.LeaderboardEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	all := make([]protocol.PlayerStats, 0, len(s.players))
	for _, p := range s.players {
		all = append(all, p)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].PlayerName < all[j].PlayerName })
	sort.SliceStable(all, func(i, j int) bool { return all[i].GamesWon > all[j].GamesWon })

	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	entries := make([]protocol.LeaderboardEntry, 0, len(all))
	for i, p := range all {
		winRate := 0.0
		if p.GamesPlayed > 0 {
			winRate = float64(p.GamesWon) / float64(p.GamesPlayed) * 100
		}
		entries = append(entries, protocol.LeaderboardEntry{
			Rank:       i + 1,
			PlayerName: p.PlayerName,
			GamesWon:   p.GamesWon,
			WinRate:    winRate,
			BestStreak: p.BestWinStreak,
		})
	}
	return entries
}

// saveLocked writes the whole document to a temp file and swaps it into
// place, so a crash mid-write can never truncate the real file. Falls back to
// copy-and-delete where rename is unavailable.
func (s *Store) saveLocked() error {
	data, err := json.MarshalIndent(recordsFile{Players: s.players}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal records: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write temp records file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		if copyErr := copyFile(tmp, s.path); copyErr != nil {
			return fmt.Errorf("replace records file: %w", copyErr)
		}
		if rmErr := os.Remove(tmp); rmErr != nil {
			s.logger.Warn().Err(rmErr).Msg("failed to remove temp records file")
		}
	}
	return nil
}

// copyFile is the rename fallback: overwrite dst with src's contents.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
