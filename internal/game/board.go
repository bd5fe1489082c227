// Package game holds the authoritative rules engine: board truth, placement
// validation, shot resolution, the per-match state machine and the computer
// opponent.
package game

import (
	"errors"
	"math/rand"

	"battleship-server/internal/protocol"
)

// Named placement rejections, surfaced verbatim to the offending client.
var (
	ErrFleetMismatch = errors.New("fleet composition does not match configuration")
	ErrOutOfBounds   = errors.New("ship extends outside the board")
	ErrOverlap       = errors.New("ships overlap")
)

// ShipCells expands a placement into the ordered list of occupied cells.
func ShipCells(p protocol.ShipPlacement) []protocol.Coordinate {
	cells := make([]protocol.Coordinate, 0, p.Type.Size())
	for i := 0; i < p.Type.Size(); i++ {
		c := p.Coordinate
		if p.Orientation == protocol.Horizontal {
			c.X += i
		} else {
			c.Y += i
		}
		cells = append(cells, c)
	}
	return cells
}

// ValidateFleet checks a submitted fleet against the config: exact ship-count
// multiset, every cell in bounds, no two ships sharing a cell. Checks run in
// that order so the reported reason is deterministic.
func ValidateFleet(cfg protocol.GameConfig, ships []protocol.ShipPlacement) error {
	expected := make(map[protocol.ShipType]int)
	for _, t := range cfg.ExpandedFleet() {
		expected[t]++
	}
	got := make(map[protocol.ShipType]int)
	for _, s := range ships {
		got[s.Type]++
	}
	if len(got) != len(expected) {
		return ErrFleetMismatch
	}
	for t, n := range expected {
		if got[t] != n {
			return ErrFleetMismatch
		}
	}

	occupied := make(map[protocol.Coordinate]bool)
	for _, s := range ships {
		for _, c := range ShipCells(s) {
			if c.X < 0 || c.X >= cfg.BoardSize || c.Y < 0 || c.Y >= cfg.BoardSize {
				return ErrOutOfBounds
			}
			if occupied[c] {
				return ErrOverlap
			}
			occupied[c] = true
		}
	}
	return nil
}

// Board is one side's authoritative state: the ship layout plus the set of
// coordinates fired upon against it. Everything a client sees is derived from
// these two sets. Board itself is not synchronized; the owning match's lock
// serializes access.
type Board struct {
	size  int
	ships []protocol.ShipPlacement
	fired map[protocol.Coordinate]bool
}

func NewBoard(size int) *Board {
	return &Board{size: size, fired: make(map[protocol.Coordinate]bool)}
}

// PlaceFleet validates and installs a fleet, replacing any prior layout.
func (b *Board) PlaceFleet(cfg protocol.GameConfig, ships []protocol.ShipPlacement) error {
	if err := ValidateFleet(cfg, ships); err != nil {
		return err
	}
	b.ships = append([]protocol.ShipPlacement(nil), ships...)
	return nil
}

func (b *Board) HasFleet() bool { return len(b.ships) > 0 }

// Reset clears ships and shot history for the next round.
func (b *Board) Reset() {
	b.ships = nil
	b.fired = make(map[protocol.Coordinate]bool)
}

func (b *Board) InBounds(c protocol.Coordinate) bool {
	return c.X >= 0 && c.X < b.size && c.Y >= 0 && c.Y < b.size
}

func (b *Board) Fired(c protocol.Coordinate) bool { return b.fired[c] }

// FiredSet exposes the fired coordinates for AI targeting. Callers must not
// mutate it.
func (b *Board) FiredSet() map[protocol.Coordinate]bool { return b.fired }

// Shoot marks the coordinate fired and classifies the result. The caller has
// already rejected out-of-bounds and repeated coordinates.
func (b *Board) Shoot(c protocol.Coordinate) (result protocol.ShotResult, sunkType protocol.ShipType) {
	b.fired[c] = true
	ship, ok := b.shipAt(c)
	if !ok {
		return protocol.ShotMiss, ""
	}
	if b.isSunk(ship) {
		return protocol.ShotSunk, ship.Type
	}
	return protocol.ShotHit, ""
}

func (b *Board) shipAt(c protocol.Coordinate) (protocol.ShipPlacement, bool) {
	for _, s := range b.ships {
		for _, cell := range ShipCells(s) {
			if cell == c {
				return s, true
			}
		}
	}
	return protocol.ShipPlacement{}, false
}

func (b *Board) isSunk(s protocol.ShipPlacement) bool {
	for _, c := range ShipCells(s) {
		if !b.fired[c] {
			return false
		}
	}
	return true
}

// AllSunk reports whether every ship is fully covered, which ends the round.
func (b *Board) AllSunk() bool {
	if len(b.ships) == 0 {
		return false
	}
	for _, s := range b.ships {
		if !b.isSunk(s) {
			return false
		}
	}
	return true
}

// Cells derives the displayed grid from ship and fired sets. With reveal=false
// (the opponent's view) untouched ship cells render as empty.
func (b *Board) Cells(reveal bool) [][]protocol.CellState {
	grid := make([][]protocol.CellState, b.size)
	for y := range grid {
		grid[y] = make([]protocol.CellState, b.size)
		for x := range grid[y] {
			grid[y][x] = protocol.CellEmpty
		}
	}
	if reveal {
		for _, s := range b.ships {
			for _, c := range ShipCells(s) {
				grid[c.Y][c.X] = protocol.CellShip
			}
		}
	}
	for c := range b.fired {
		if _, hit := b.shipAt(c); hit {
			grid[c.Y][c.X] = protocol.CellHit
		} else {
			grid[c.Y][c.X] = protocol.CellMiss
		}
	}
	return grid
}

// ShipStates snapshots the fleet with per-ship sunk flags.
func (b *Board) ShipStates() []protocol.ShipState {
	states := make([]protocol.ShipState, 0, len(b.ships))
	for _, s := range b.ships {
		states = append(states, protocol.ShipState{
			Type:        s.Type,
			Coordinates: ShipCells(s),
			Sunk:        b.isSunk(s),
		})
	}
	return states
}

// Snapshot builds the BoardState pushed to a client.
func (b *Board) Snapshot(reveal bool) protocol.BoardState {
	state := protocol.BoardState{Size: b.size, Cells: b.Cells(reveal)}
	if reveal {
		state.Ships = b.ShipStates()
	}
	return state
}

// RandomFleet synthesizes a valid random placement for the configured fleet,
// used for the computer opponent.
func RandomFleet(cfg protocol.GameConfig, rng *rand.Rand) []protocol.ShipPlacement {
	occupied := make(map[protocol.Coordinate]bool)
	var placed []protocol.ShipPlacement
	for _, t := range cfg.ExpandedFleet() {
		for {
			candidate := protocol.ShipPlacement{
				Type:       t,
				Coordinate: protocol.Coordinate{X: rng.Intn(cfg.BoardSize), Y: rng.Intn(cfg.BoardSize)},
			}
			if rng.Intn(2) == 0 {
				candidate.Orientation = protocol.Horizontal
			} else {
				candidate.Orientation = protocol.Vertical
			}
			if fits(candidate, cfg.BoardSize, occupied) {
				for _, c := range ShipCells(candidate) {
					occupied[c] = true
				}
				placed = append(placed, candidate)
				break
			}
		}
	}
	return placed
}

func fits(p protocol.ShipPlacement, size int, occupied map[protocol.Coordinate]bool) bool {
	for _, c := range ShipCells(p) {
		if c.X < 0 || c.X >= size || c.Y < 0 || c.Y >= size || occupied[c] {
			return false
		}
	}
	return true
}
