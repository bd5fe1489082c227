package game

import (
	"sync"
	"testing"
	"time"

	"battleship-server/internal/protocol"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeParticipant is a thread-safe message sink standing in for a session.
type fakeParticipant struct {
	id   string
	name string

	mu   sync.Mutex
	msgs []protocol.Message
}

func newFakeParticipant(id, name string) *fakeParticipant {
	return &fakeParticipant{id: id, name: name}
}

func (f *fakeParticipant) ID() string   { return f.id }
func (f *fakeParticipant) Name() string { return f.name }

func (f *fakeParticipant) Send(msg protocol.Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, msg)
}

func (f *fakeParticipant) ofType(t protocol.MessageType) []protocol.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []protocol.Message
	for _, m := range f.msgs {
		if m.MessageType() == t {
			out = append(out, m)
		}
	}
	return out
}

func (f *fakeParticipant) last(t protocol.MessageType) protocol.Message {
	msgs := f.ofType(t)
	if len(msgs) == 0 {
		return nil
	}
	return msgs[len(msgs)-1]
}

func (f *fakeParticipant) clear() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = nil
}

type recordedUpdate struct {
	Name  string
	Won   bool
	Shots int
	Hits  int
	IsPvP bool
	Turns int
}

type fakeRecorder struct {
	mu      sync.Mutex
	updates []recordedUpdate
}

func (r *fakeRecorder) Update(name string, won bool, shots, hits int, playTimeSeconds int64, isPvP bool, turns int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates = append(r.updates, recordedUpdate{
		Name: name, Won: won, Shots: shots, Hits: hits, IsPvP: isPvP, Turns: turns,
	})
	return nil
}

func (r *fakeRecorder) all() []recordedUpdate {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]recordedUpdate(nil), r.updates...)
}

type matchFixture struct {
	m        *Match
	p1, p2   *fakeParticipant
	records  *fakeRecorder
	finished chan string
}

func newPvPMatch(t *testing.T, cfg protocol.GameConfig) *matchFixture {
	t.Helper()
	f := &matchFixture{
		p1:       newFakeParticipant("s1", "alice"),
		p2:       newFakeParticipant("s2", "bob"),
		records:  &fakeRecorder{},
		finished: make(chan string, 1),
	}
	f.m = NewMatch("m1", f.p1, f.p2, "", cfg, f.records, nil, zerolog.Nop(), func(id string) {
		f.finished <- id
	})
	f.m.Start()
	return f
}

// deploy places both fleets and clears the message logs, leaving the match at
// the start of battle with p1 to move.
func (f *matchFixture) deploy(t *testing.T) {
	t.Helper()
	f.m.HandlePlaceShips("s1", smallFleet())
	f.m.HandlePlaceShips("s2", smallFleet())
	require.NotNil(t, f.p1.last(protocol.MsgGameStart))
	require.NotNil(t, f.p2.last(protocol.MsgGameStart))
	f.p1.clear()
	f.p2.clear()
}

func TestMatchPlacementPhase(t *testing.T) {
	cfg := smallConfig()
	f := newPvPMatch(t, cfg)

	t.Run("start pushes placement state", func(t *testing.T) {
		state, ok := f.p1.last(protocol.MsgGameState).(protocol.GameState)
		require.True(t, ok)
		assert.Equal(t, protocol.PhasePlacement, state.Phase)
	})

	t.Run("attack before battle rejected", func(t *testing.T) {
		f.m.HandleAttack("s1", protocol.Coordinate{X: 0, Y: 0})
		rejection := f.p1.last(protocol.MsgInvalidAction).(protocol.InvalidAction)
		assert.Equal(t, "no battle in progress", rejection.Message)
	})

	t.Run("invalid fleet rejected", func(t *testing.T) {
		f.m.HandlePlaceShips("s1", smallFleet()[:1])
		rejection := f.p1.last(protocol.MsgInvalidAction).(protocol.InvalidAction)
		assert.Equal(t, ErrFleetMismatch.Error(), rejection.Message)
		assert.Nil(t, f.p1.last(protocol.MsgPlacementConfirmed))
	})

	t.Run("valid fleet confirmed", func(t *testing.T) {
		f.m.HandlePlaceShips("s1", smallFleet())
		confirmed := f.p1.last(protocol.MsgPlacementConfirmed).(protocol.PlacementConfirmed)
		assert.Equal(t, 2, confirmed.ShipCount)
	})

	t.Run("second deployment rejected", func(t *testing.T) {
		f.m.HandlePlaceShips("s1", smallFleet())
		rejection := f.p1.last(protocol.MsgInvalidAction).(protocol.InvalidAction)
		assert.Equal(t, "fleet already deployed", rejection.Message)
	})

	t.Run("both fleets start the battle", func(t *testing.T) {
		assert.Nil(t, f.p1.last(protocol.MsgGameStart))
		f.m.HandlePlaceShips("s2", smallFleet())

		start := f.p1.last(protocol.MsgGameStart).(protocol.GameStart)
		assert.Equal(t, "bob", start.OpponentName)
		start2 := f.p2.last(protocol.MsgGameStart).(protocol.GameStart)
		assert.Equal(t, "alice", start2.OpponentName)

		state := f.p1.last(protocol.MsgGameState).(protocol.GameState)
		assert.Equal(t, protocol.PhaseBattle, state.Phase)
		assert.Equal(t, "s1", state.CurrentTurn)
	})
}

func TestMatchAttackValidation(t *testing.T) {
	cfg := smallConfig()
	f := newPvPMatch(t, cfg)
	f.deploy(t)

	t.Run("out of turn", func(t *testing.T) {
		f.m.HandleAttack("s2", protocol.Coordinate{X: 0, Y: 0})
		rejection := f.p2.last(protocol.MsgInvalidAction).(protocol.InvalidAction)
		assert.Equal(t, "not your turn", rejection.Message)
	})

	t.Run("out of bounds", func(t *testing.T) {
		f.m.HandleAttack("s1", protocol.Coordinate{X: 8, Y: 0})
		rejection := f.p1.last(protocol.MsgInvalidAction).(protocol.InvalidAction)
		assert.Equal(t, "coordinate outside the board", rejection.Message)
		// An illegal shot does not pass the turn.
		assert.Nil(t, f.p1.last(protocol.MsgAttackResult))
	})

	t.Run("legal miss passes the turn", func(t *testing.T) {
		f.m.HandleAttack("s1", protocol.Coordinate{X: 7, Y: 7})

		result := f.p1.last(protocol.MsgAttackResult).(protocol.AttackResult)
		assert.Equal(t, protocol.ShotMiss, result.Result)

		seen := f.p2.last(protocol.MsgOpponentAttack).(protocol.OpponentAttack)
		assert.Equal(t, protocol.Coordinate{X: 7, Y: 7}, seen.Pos)

		turn := f.p1.last(protocol.MsgTurnUpdate).(protocol.TurnUpdate)
		assert.Equal(t, "s2", turn.PlayerID)
	})

	t.Run("repeated coordinate rejected", func(t *testing.T) {
		f.m.HandleAttack("s2", protocol.Coordinate{X: 7, Y: 7}) // miss on alice's board, turn back to alice
		f.m.HandleAttack("s1", protocol.Coordinate{X: 7, Y: 7}) // same cell on bob's board again
		rejection := f.p1.last(protocol.MsgInvalidAction).(protocol.InvalidAction)
		assert.Equal(t, "cell already targeted", rejection.Message)
	})
}

// sinkFleet drives p1 through sinking p2's entire smallFleet, with p2
// deliberately missing in between.
func sinkFleet(f *matchFixture) {
	targets := []protocol.Coordinate{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 2, Y: 0}, {X: 0, Y: 2}, {X: 0, Y: 3}}
	misses := []protocol.Coordinate{{X: 7, Y: 7}, {X: 7, Y: 6}, {X: 7, Y: 5}, {X: 7, Y: 4}}
	for i, target := range targets {
		f.m.HandleAttack("s1", target)
		if i < len(misses) {
			f.m.HandleAttack("s2", misses[i])
		}
	}
}

func TestMatchSingleRoundVictory(t *testing.T) {
	cfg := smallConfig() // MaxRounds 1
	f := newPvPMatch(t, cfg)
	f.deploy(t)

	sinkFleet(f)

	t.Run("sunk ship reported", func(t *testing.T) {
		results := f.p1.ofType(protocol.MsgAttackResult)
		var sunkTypes []protocol.ShipType
		for _, m := range results {
			r := m.(protocol.AttackResult)
			if r.Sunk {
				sunkTypes = append(sunkTypes, r.ShipSunkType)
			}
		}
		assert.Equal(t, []protocol.ShipType{protocol.Cruiser, protocol.Destroyer}, sunkTypes)
	})

	t.Run("round result carries the match verdict", func(t *testing.T) {
		round := f.p1.last(protocol.MsgRoundResult).(protocol.RoundResult)
		assert.Equal(t, 1, round.RoundNumber)
		assert.Equal(t, "s1", round.WinnerID)
		assert.True(t, round.IsMatchOver)
		assert.Equal(t, 1, round.Player1Score)
		assert.Equal(t, 0, round.Player2Score)
	})

	t.Run("game over for both sides", func(t *testing.T) {
		over1 := f.p1.last(protocol.MsgGameOver).(protocol.GameOver)
		assert.Equal(t, "s1", over1.WinnerID)
		assert.Equal(t, 5, over1.Stats.TotalShots)
		assert.Equal(t, 5, over1.Stats.SuccessfulHits)
		assert.Equal(t, 2, over1.Stats.ShipsDestroyed)

		over2 := f.p2.last(protocol.MsgGameOver).(protocol.GameOver)
		assert.Equal(t, "s1", over2.WinnerID)
		assert.Equal(t, 4, over2.Stats.TotalShots)
		assert.Equal(t, 0, over2.Stats.SuccessfulHits)
	})

	t.Run("records persisted for both players", func(t *testing.T) {
		updates := f.records.all()
		require.Len(t, updates, 2)
		byName := map[string]recordedUpdate{updates[0].Name: updates[0], updates[1].Name: updates[1]}

		alice := byName["alice"]
		assert.True(t, alice.Won)
		assert.True(t, alice.IsPvP)
		assert.Equal(t, 5, alice.Shots)
		assert.Equal(t, 5, alice.Hits)
		assert.Equal(t, 5, alice.Turns)

		bob := byName["bob"]
		assert.False(t, bob.Won)
		assert.Equal(t, 4, bob.Shots)
		assert.Equal(t, 0, bob.Hits)
	})

	t.Run("match disposed", func(t *testing.T) {
		select {
		case id := <-f.finished:
			assert.Equal(t, "m1", id)
		case <-time.After(time.Second):
			t.Fatal("match was not disposed")
		}
	})

	t.Run("actions after disposal are no-ops", func(t *testing.T) {
		f.p1.clear()
		f.m.HandleAttack("s1", protocol.Coordinate{X: 6, Y: 6})
		assert.Empty(t, f.p1.ofType(protocol.MsgAttackResult))
		assert.Empty(t, f.p1.ofType(protocol.MsgInvalidAction))
	})
}

func TestMatchBestOfThreeSeries(t *testing.T) {
	cfg := smallConfig()
	cfg.MaxRounds = 3
	f := newPvPMatch(t, cfg)
	f.deploy(t)

	// Round 1: alice sweeps.
	sinkFleet(f)

	round := f.p1.last(protocol.MsgRoundResult).(protocol.RoundResult)
	require.False(t, round.IsMatchOver)
	require.Equal(t, 1, round.Player1Score)

	state := f.p1.last(protocol.MsgGameState).(protocol.GameState)
	require.Equal(t, protocol.PhasePlacement, state.Phase, "series should return to placement")

	// Round 2: fresh boards, same outcome, series decided 2-0.
	f.p1.clear()
	f.p2.clear()
	f.m.HandlePlaceShips("s1", smallFleet())
	f.m.HandlePlaceShips("s2", smallFleet())
	require.NotNil(t, f.p1.last(protocol.MsgGameStart), "round two should re-enter battle")
	sinkFleet(f)

	round = f.p1.last(protocol.MsgRoundResult).(protocol.RoundResult)
	assert.Equal(t, 2, round.RoundNumber)
	assert.True(t, round.IsMatchOver)
	assert.Equal(t, 2, round.Player1Score)

	over := f.p2.last(protocol.MsgGameOver).(protocol.GameOver)
	assert.Equal(t, "s1", over.WinnerID)
	// Cumulative across both rounds.
	assert.Equal(t, 8, over.Stats.TotalShots)

	updates := f.records.all()
	require.Len(t, updates, 2, "one record per player for the whole series")
}

func TestMatchSurrender(t *testing.T) {
	cfg := smallConfig()
	f := newPvPMatch(t, cfg)
	f.deploy(t)

	f.m.HandleSurrender("s2")

	over := f.p1.last(protocol.MsgGameOver).(protocol.GameOver)
	assert.Equal(t, "s1", over.WinnerID)
	over2 := f.p2.last(protocol.MsgGameOver).(protocol.GameOver)
	assert.Equal(t, "s1", over2.WinnerID)

	updates := f.records.all()
	require.Len(t, updates, 2)

	select {
	case <-f.finished:
	case <-time.After(time.Second):
		t.Fatal("surrendered match was not disposed")
	}
}

func TestMatchDisconnectDuringPlacement(t *testing.T) {
	cfg := smallConfig()
	f := newPvPMatch(t, cfg)

	f.m.HandleDisconnect("s1")

	over := f.p2.last(protocol.MsgGameOver).(protocol.GameOver)
	assert.Equal(t, "s2", over.WinnerID)

	select {
	case <-f.finished:
	case <-time.After(time.Second):
		t.Fatal("abandoned match was not disposed")
	}

	// A racing leave from the other player is a clean no-op.
	f.p2.clear()
	f.m.HandleLeave("s2")
	assert.Empty(t, f.p2.ofType(protocol.MsgGameOver))
}

func TestMatchPvE(t *testing.T) {
	cfg := smallConfig()
	p1 := newFakeParticipant("s1", "alice")
	records := &fakeRecorder{}
	finished := make(chan string, 1)
	m := NewMatch("m2", p1, nil, protocol.DifficultyEasy, cfg, records, nil, zerolog.Nop(), func(id string) {
		finished <- id
	})
	m.Start()

	t.Run("bot is ready before the player", func(t *testing.T) {
		m.HandlePlaceShips("s1", smallFleet())
		require.NotNil(t, p1.last(protocol.MsgGameStart), "battle should begin on the player's deployment alone")
		start := p1.last(protocol.MsgGameStart).(protocol.GameStart)
		assert.Contains(t, start.OpponentName, "Bot Hunter")
	})

	t.Run("bot fires back after its think delay", func(t *testing.T) {
		p1.clear()
		m.HandleAttack("s1", protocol.Coordinate{X: 7, Y: 7})
		require.NotNil(t, p1.last(protocol.MsgAttackResult))

		require.Eventually(t, func() bool {
			return p1.last(protocol.MsgOpponentAttack) != nil
		}, 3*time.Second, 50*time.Millisecond, "bot never attacked")

		// Turn comes back to the player.
		require.Eventually(t, func() bool {
			turn, ok := p1.last(protocol.MsgTurnUpdate).(protocol.TurnUpdate)
			return ok && turn.PlayerID == "s1"
		}, 3*time.Second, 50*time.Millisecond)
	})

	t.Run("only the human gets a record", func(t *testing.T) {
		m.HandleSurrender("s1")
		updates := records.all()
		require.Len(t, updates, 1)
		assert.Equal(t, "alice", updates[0].Name)
		assert.False(t, updates[0].Won)
		assert.False(t, updates[0].IsPvP)

		select {
		case <-finished:
		case <-time.After(time.Second):
			t.Fatal("pve match was not disposed")
		}
	})
}
