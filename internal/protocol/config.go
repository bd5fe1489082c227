package protocol

import "fmt"

const (
	MinBoardSize = 8
	MaxBoardSize = 15

	MinTurnTimeSeconds = 10
	MaxTurnTimeSeconds = 300
)

// ShipDefinition pairs a ship kind with how many of that kind a fleet carries.
type ShipDefinition struct {
	Type  ShipType `json:"type"`
	Count int      `json:"count"`
}

// GameConfig is the immutable per-match ruleset. A zero value is not usable
// directly; call ApplyDefaults before Validate.
type GameConfig struct {
	BoardSize       int              `json:"boardSize"`
	TurnTimeSeconds int              `json:"turnTimeSeconds"`
	MaxRounds       int              `json:"maxRounds"`
	ShipsConfig     []ShipDefinition `json:"shipsConfig"`
}

// DefaultFleet is 1x carrier, 2x battleship, 3x cruiser, 4x destroyer.
func DefaultFleet() []ShipDefinition {
	return []ShipDefinition{
		{Type: Carrier, Count: 1},
		{Type: Battleship, Count: 2},
		{Type: Cruiser, Count: 3},
		{Type: Destroyer, Count: 4},
	}
}

// ClassicFleet is the older 1x4, 2x3, 3x2, 4x1 composition.
func ClassicFleet() []ShipDefinition {
	return []ShipDefinition{
		{Type: Battleship, Count: 1},
		{Type: Cruiser, Count: 2},
		{Type: Destroyer, Count: 3},
		{Type: PatrolBoat, Count: 4},
	}
}

func DefaultConfig() GameConfig {
	return GameConfig{
		BoardSize:       10,
		TurnTimeSeconds: 60,
		MaxRounds:       1,
		ShipsConfig:     DefaultFleet(),
	}
}

// ApplyDefaults fills zero fields so a partially-specified client config is
// still usable. It returns the receiver for chaining.
func (c GameConfig) ApplyDefaults() GameConfig {
	if c.BoardSize == 0 {
		c.BoardSize = 10
	}
	if c.TurnTimeSeconds == 0 {
		c.TurnTimeSeconds = 60
	}
	if c.MaxRounds == 0 {
		c.MaxRounds = 1
	}
	if len(c.ShipsConfig) == 0 {
		c.ShipsConfig = DefaultFleet()
	}
	return c
}

// Validate rejects configs before any match exists.
func (c GameConfig) Validate() error {
	if c.BoardSize < MinBoardSize || c.BoardSize > MaxBoardSize {
		return fmt.Errorf("boardSize must be between %d and %d, got %d", MinBoardSize, MaxBoardSize, c.BoardSize)
	}
	if c.TurnTimeSeconds < MinTurnTimeSeconds || c.TurnTimeSeconds > MaxTurnTimeSeconds {
		return fmt.Errorf("turnTimeSeconds must be between %d and %d, got %d", MinTurnTimeSeconds, MaxTurnTimeSeconds, c.TurnTimeSeconds)
	}
	if c.MaxRounds != 1 && c.MaxRounds != 3 && c.MaxRounds != 5 {
		return fmt.Errorf("maxRounds must be 1, 3 or 5, got %d", c.MaxRounds)
	}
	if len(c.ShipsConfig) == 0 {
		return fmt.Errorf("shipsConfig must not be empty")
	}
	for _, def := range c.ShipsConfig {
		if def.Type.Size() == 0 {
			return fmt.Errorf("unknown ship type %q", def.Type)
		}
		if def.Count <= 0 {
			return fmt.Errorf("ship count for %s must be positive, got %d", def.Type, def.Count)
		}
		if def.Type.Size() > c.BoardSize {
			return fmt.Errorf("largest ship (%d) does not fit the board (%dx%d)", def.Type.Size(), c.BoardSize, c.BoardSize)
		}
	}
	return nil
}

// RoundsToWin is the series target: first to floor(maxRounds/2)+1 round wins.
func (c GameConfig) RoundsToWin() int {
	return c.MaxRounds/2 + 1
}

// ExpandedFleet flattens ShipsConfig into one entry per ship to place.
func (c GameConfig) ExpandedFleet() []ShipType {
	var fleet []ShipType
	for _, def := range c.ShipsConfig {
		for i := 0; i < def.Count; i++ {
			fleet = append(fleet, def.Type)
		}
	}
	return fleet
}

// Compatible reports whether two configs may share a matchmaking pool.
func (c GameConfig) Compatible(other GameConfig) bool {
	return c.BoardSize == other.BoardSize &&
		c.TurnTimeSeconds == other.TurnTimeSeconds &&
		c.MaxRounds == other.MaxRounds
}
