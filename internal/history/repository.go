// Package history archives concluded matches to SQLite, one row per human
// participant. Writes are best-effort: the match flow never depends on them.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"battleship-server/internal/game"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
)

type Entry struct {
	ID              string    `json:"id"`
	MatchID         string    `json:"matchId"`
	PlayerName      string    `json:"playerName"`
	OpponentName    string    `json:"opponentName"`
	Won             bool      `json:"won"`
	IsPvE           bool      `json:"isPvE"`
	RoundsWon       int       `json:"roundsWon"`
	RoundsLost      int       `json:"roundsLost"`
	Shots           int       `json:"shots"`
	Hits            int       `json:"hits"`
	ShipsSunk       int       `json:"shipsSunk"`
	DurationSeconds int64     `json:"durationSeconds"`
	FinishedAt      time.Time `json:"finishedAt"`
}

type Repository struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewRepository(db *sql.DB, logger zerolog.Logger) *Repository {
	return &Repository{db: db, logger: logger}
}

// Record inserts one participant's result row.
func (r *Repository) Record(ctx context.Context, rec game.MatchRecord) error {
	id, err := gonanoid.New()
	if err != nil {
		return fmt.Errorf("generate history id: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO match_history (
			id, match_id, player_name, opponent_name, won, is_pve,
			rounds_won, rounds_lost, shots, hits, ships_sunk,
			duration_seconds, finished_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, rec.MatchID, rec.PlayerName, rec.OpponentName, rec.Won, rec.IsPvE,
		rec.RoundsWon, rec.RoundsLost, rec.Shots, rec.Hits, rec.ShipsSunk,
		rec.DurationSeconds, rec.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("insert match history: %w", err)
	}

	r.logger.Debug().
		Str("match_id", rec.MatchID).
		Str("player", rec.PlayerName).
		Bool("won", rec.Won).
		Msg("match archived")
	return nil
}

// RecentForPlayer returns the player's most recent entries, newest first.
func (r *Repository) RecentForPlayer(ctx context.Context, name string, limit int) ([]Entry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, match_id, player_name, opponent_name, won, is_pve,
		       rounds_won, rounds_lost, shots, hits, ships_sunk,
		       duration_seconds, finished_at
		FROM match_history
		WHERE player_name = ?
		ORDER BY finished_at DESC
		LIMIT ?`, name, limit)
	if err != nil {
		return nil, fmt.Errorf("query match history: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		err := rows.Scan(
			&e.ID, &e.MatchID, &e.PlayerName, &e.OpponentName, &e.Won, &e.IsPvE,
			&e.RoundsWon, &e.RoundsLost, &e.Shots, &e.Hits, &e.ShipsSunk,
			&e.DurationSeconds, &e.FinishedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan match history row: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
