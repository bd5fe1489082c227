package game

import (
	"math/rand"
	"testing"

	"battleship-server/internal/protocol"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// smallConfig keeps fixtures readable: one cruiser and one destroyer on 8x8.
func smallConfig() protocol.GameConfig {
	return protocol.GameConfig{
		BoardSize:       8,
		TurnTimeSeconds: 60,
		MaxRounds:       1,
		ShipsConfig: []protocol.ShipDefinition{
			{Type: protocol.Cruiser, Count: 1},
			{Type: protocol.Destroyer, Count: 1},
		},
	}
}

func smallFleet() []protocol.ShipPlacement {
	return []protocol.ShipPlacement{
		{Type: protocol.Cruiser, Coordinate: protocol.Coordinate{X: 0, Y: 0}, Orientation: protocol.Horizontal},
		{Type: protocol.Destroyer, Coordinate: protocol.Coordinate{X: 0, Y: 2}, Orientation: protocol.Vertical},
	}
}

func TestShipCells(t *testing.T) {
	horizontal := protocol.ShipPlacement{
		Type:        protocol.Cruiser,
		Coordinate:  protocol.Coordinate{X: 2, Y: 3},
		Orientation: protocol.Horizontal,
	}
	assert.Equal(t, []protocol.Coordinate{{X: 2, Y: 3}, {X: 3, Y: 3}, {X: 4, Y: 3}}, ShipCells(horizontal))

	vertical := protocol.ShipPlacement{
		Type:        protocol.Destroyer,
		Coordinate:  protocol.Coordinate{X: 5, Y: 0},
		Orientation: protocol.Vertical,
	}
	assert.Equal(t, []protocol.Coordinate{{X: 5, Y: 0}, {X: 5, Y: 1}}, ShipCells(vertical))
}

func TestValidateFleet(t *testing.T) {
	cfg := smallConfig()

	t.Run("valid fleet", func(t *testing.T) {
		assert.NoError(t, ValidateFleet(cfg, smallFleet()))
	})

	t.Run("missing ship", func(t *testing.T) {
		err := ValidateFleet(cfg, smallFleet()[:1])
		assert.ErrorIs(t, err, ErrFleetMismatch)
	})

	t.Run("wrong ship type", func(t *testing.T) {
		ships := smallFleet()
		ships[1].Type = protocol.Carrier
		assert.ErrorIs(t, ValidateFleet(cfg, ships), ErrFleetMismatch)
	})

	t.Run("duplicate of one type", func(t *testing.T) {
		ships := []protocol.ShipPlacement{
			{Type: protocol.Cruiser, Coordinate: protocol.Coordinate{X: 0, Y: 0}, Orientation: protocol.Horizontal},
			{Type: protocol.Cruiser, Coordinate: protocol.Coordinate{X: 0, Y: 2}, Orientation: protocol.Horizontal},
		}
		assert.ErrorIs(t, ValidateFleet(cfg, ships), ErrFleetMismatch)
	})

	t.Run("ship runs off the board", func(t *testing.T) {
		ships := smallFleet()
		ships[0].Coordinate = protocol.Coordinate{X: 6, Y: 0} // cruiser needs 3 cells
		assert.ErrorIs(t, ValidateFleet(cfg, ships), ErrOutOfBounds)
	})

	t.Run("negative coordinate", func(t *testing.T) {
		ships := smallFleet()
		ships[0].Coordinate = protocol.Coordinate{X: -1, Y: 0}
		assert.ErrorIs(t, ValidateFleet(cfg, ships), ErrOutOfBounds)
	})

	t.Run("overlapping ships", func(t *testing.T) {
		ships := []protocol.ShipPlacement{
			{Type: protocol.Cruiser, Coordinate: protocol.Coordinate{X: 0, Y: 0}, Orientation: protocol.Horizontal},
			{Type: protocol.Destroyer, Coordinate: protocol.Coordinate{X: 1, Y: 0}, Orientation: protocol.Vertical},
		}
		assert.ErrorIs(t, ValidateFleet(cfg, ships), ErrOverlap)
	})
}

func TestBoardShoot(t *testing.T) {
	cfg := smallConfig()
	board := NewBoard(cfg.BoardSize)
	require.NoError(t, board.PlaceFleet(cfg, smallFleet()))

	t.Run("miss on empty water", func(t *testing.T) {
		result, sunkType := board.Shoot(protocol.Coordinate{X: 7, Y: 7})
		assert.Equal(t, protocol.ShotMiss, result)
		assert.Empty(t, sunkType)
		assert.True(t, board.Fired(protocol.Coordinate{X: 7, Y: 7}))
	})

	t.Run("hit without sinking", func(t *testing.T) {
		result, sunkType := board.Shoot(protocol.Coordinate{X: 0, Y: 0})
		assert.Equal(t, protocol.ShotHit, result)
		assert.Empty(t, sunkType)
	})

	t.Run("final cell sinks the ship", func(t *testing.T) {
		result, _ := board.Shoot(protocol.Coordinate{X: 1, Y: 0})
		require.Equal(t, protocol.ShotHit, result)

		result, sunkType := board.Shoot(protocol.Coordinate{X: 2, Y: 0})
		assert.Equal(t, protocol.ShotSunk, result)
		assert.Equal(t, protocol.Cruiser, sunkType)
	})

	t.Run("one ship standing keeps the round alive", func(t *testing.T) {
		assert.False(t, board.AllSunk())
	})

	t.Run("sinking the last ship ends it", func(t *testing.T) {
		board.Shoot(protocol.Coordinate{X: 0, Y: 2})
		board.Shoot(protocol.Coordinate{X: 0, Y: 3})
		assert.True(t, board.AllSunk())
	})
}

func TestAllSunkEmptyBoard(t *testing.T) {
	// A board with no fleet placed is never "all sunk".
	assert.False(t, NewBoard(8).AllSunk())
}

func TestBoardCells(t *testing.T) {
	cfg := smallConfig()
	board := NewBoard(cfg.BoardSize)
	require.NoError(t, board.PlaceFleet(cfg, smallFleet()))

	board.Shoot(protocol.Coordinate{X: 0, Y: 0}) // hit on the cruiser
	board.Shoot(protocol.Coordinate{X: 5, Y: 5}) // miss

	t.Run("owner view reveals ships", func(t *testing.T) {
		cells := board.Cells(true)
		assert.Equal(t, protocol.CellHit, cells[0][0])
		assert.Equal(t, protocol.CellShip, cells[0][1])
		assert.Equal(t, protocol.CellMiss, cells[5][5])
		assert.Equal(t, protocol.CellEmpty, cells[7][7])
	})

	t.Run("opponent view hides untouched ship cells", func(t *testing.T) {
		cells := board.Cells(false)
		assert.Equal(t, protocol.CellHit, cells[0][0])
		assert.Equal(t, protocol.CellEmpty, cells[0][1])
		assert.Equal(t, protocol.CellMiss, cells[5][5])
	})

	t.Run("snapshot ships only for owner", func(t *testing.T) {
		assert.NotEmpty(t, board.Snapshot(true).Ships)
		assert.Empty(t, board.Snapshot(false).Ships)
	})
}

func TestBoardReset(t *testing.T) {
	cfg := smallConfig()
	board := NewBoard(cfg.BoardSize)
	require.NoError(t, board.PlaceFleet(cfg, smallFleet()))
	board.Shoot(protocol.Coordinate{X: 0, Y: 0})

	board.Reset()
	assert.False(t, board.HasFleet())
	assert.False(t, board.Fired(protocol.Coordinate{X: 0, Y: 0}))
}

func TestRandomFleet(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for _, cfg := range []protocol.GameConfig{smallConfig(), protocol.DefaultConfig()} {
		for i := 0; i < 50; i++ {
			fleet := RandomFleet(cfg, rng)
			require.NoError(t, ValidateFleet(cfg, fleet))
		}
	}
}
