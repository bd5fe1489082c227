package game

import (
	"math/rand"

	"battleship-server/internal/protocol"
)

// EnemyAI selects the computer opponent's shots. MEDIUM and HARD keep a
// pending-targets stack fed by hit feedback ("hunt mode"); EASY is pure
// random and ignores feedback entirely.
type EnemyAI struct {
	difficulty protocol.AIDifficulty
	boardSize  int
	pending    []protocol.Coordinate
	rng        *rand.Rand
}

func NewEnemyAI(difficulty protocol.AIDifficulty, boardSize int, rng *rand.Rand) *EnemyAI {
	return &EnemyAI{difficulty: difficulty, boardSize: boardSize, rng: rng}
}

func (ai *EnemyAI) Difficulty() protocol.AIDifficulty { return ai.difficulty }

// NextShot picks the next target given the coordinates already fired on the
// opposing board. It never returns an already-fired coordinate.
func (ai *EnemyAI) NextShot(fired map[protocol.Coordinate]bool) protocol.Coordinate {
	if ai.difficulty == protocol.DifficultyEasy {
		return ai.randomShot(fired)
	}

	for len(ai.pending) > 0 {
		last := len(ai.pending) - 1
		candidate := ai.pending[last]
		ai.pending = ai.pending[:last]
		if !fired[candidate] {
			return candidate
		}
	}
	return ai.searchShot(fired)
}

// NotifyResult feeds the outcome of the AI's own shot back into its state.
func (ai *EnemyAI) NotifyResult(result protocol.ShotResult, at protocol.Coordinate) {
	if ai.difficulty == protocol.DifficultyEasy {
		return
	}
	switch result {
	case protocol.ShotHit:
		ai.pushNeighbors(at)
	case protocol.ShotSunk:
		// The hunted ship is dead; stop probing around it.
		ai.pending = ai.pending[:0]
	}
}

func (ai *EnemyAI) pushNeighbors(center protocol.Coordinate) {
	neighbors := make([]protocol.Coordinate, 0, 4)
	if center.Y > 0 {
		neighbors = append(neighbors, protocol.Coordinate{X: center.X, Y: center.Y - 1})
	}
	if center.Y < ai.boardSize-1 {
		neighbors = append(neighbors, protocol.Coordinate{X: center.X, Y: center.Y + 1})
	}
	if center.X > 0 {
		neighbors = append(neighbors, protocol.Coordinate{X: center.X - 1, Y: center.Y})
	}
	if center.X < ai.boardSize-1 {
		neighbors = append(neighbors, protocol.Coordinate{X: center.X + 1, Y: center.Y})
	}
	ai.rng.Shuffle(len(neighbors), func(i, j int) {
		neighbors[i], neighbors[j] = neighbors[j], neighbors[i]
	})
	ai.pending = append(ai.pending, neighbors...)
}

// searchShot is the fallback when no pending targets remain. HARD restricts
// the search to one checkerboard parity class, which halves the space for any
// unseen ship of length >= 2.
func (ai *EnemyAI) searchShot(fired map[protocol.Coordinate]bool) protocol.Coordinate {
	if ai.difficulty == protocol.DifficultyHard {
		var parity []protocol.Coordinate
		for x := 0; x < ai.boardSize; x++ {
			for y := 0; y < ai.boardSize; y++ {
				c := protocol.Coordinate{X: x, Y: y}
				if (x+y)%2 == 0 && !fired[c] {
					parity = append(parity, c)
				}
			}
		}
		if len(parity) > 0 {
			return parity[ai.rng.Intn(len(parity))]
		}
	}
	return ai.randomShot(fired)
}

func (ai *EnemyAI) randomShot(fired map[protocol.Coordinate]bool) protocol.Coordinate {
	var available []protocol.Coordinate
	for x := 0; x < ai.boardSize; x++ {
		for y := 0; y < ai.boardSize; y++ {
			c := protocol.Coordinate{X: x, Y: y}
			if !fired[c] {
				available = append(available, c)
			}
		}
	}
	if len(available) == 0 {
		// Board exhausted; the match is decided before this can matter.
		return protocol.Coordinate{}
	}
	return available[ai.rng.Intn(len(available))]
}
