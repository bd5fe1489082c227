package game

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"battleship-server/internal/constants"
	"battleship-server/internal/protocol"

	"github.com/rs/zerolog"
)

// Participant is a live player endpoint. Sessions implement it; entities hold
// it only through the match that owns them, and sends to a closed session are
// no-ops, so a vanished connection cannot corrupt match state.
type Participant interface {
	ID() string
	Name() string
	Send(msg protocol.Message)
}

// Recorder persists career statistics. Implemented by the stats store.
type Recorder interface {
	Update(name string, won bool, shots, hits int, playTimeSeconds int64, isPvP bool, turns int) error
}

// MatchRecord is one participant's row in the match history archive.
type MatchRecord struct {
	MatchID         string
	PlayerName      string
	OpponentName    string
	Won             bool
	IsPvE           bool
	RoundsWon       int
	RoundsLost      int
	Shots           int
	Hits            int
	ShipsSunk       int
	DurationSeconds int64
	FinishedAt      time.Time
}

// Archiver stores concluded matches, best-effort. May be nil.
type Archiver interface {
	Record(ctx context.Context, rec MatchRecord) error
}

// BotID is the turn-holder id used for the computer opponent.
const BotID = "bot-hunter"

type sideStats struct {
	Shots int
	Hits  int
	Sunk  int
	Turns int
}

func (s *sideStats) add(other sideStats) {
	s.Shots += other.Shots
	s.Hits += other.Hits
	s.Sunk += other.Sunk
	s.Turns += other.Turns
}

func (s sideStats) gameStats(won bool, duration time.Duration) protocol.GameStats {
	accuracy := 0.0
	if s.Shots > 0 {
		accuracy = float64(s.Hits) / float64(s.Shots) * 100
	}
	streak := 0
	if won {
		streak = 1
	}
	return protocol.GameStats{
		TotalShots:          s.Shots,
		SuccessfulHits:      s.Hits,
		ShipsDestroyed:      s.Sunk,
		Accuracy:            accuracy,
		WinStreak:           streak,
		GameDurationSeconds: int64(duration.Seconds()),
	}
}

// Match is the authoritative state machine for one series. Every externally
// triggered mutation runs under one mutex, so phase logic is plain
// single-threaded code regardless of how actions race on the wire.
type Match struct {
	id         string
	cfg        protocol.GameConfig
	p1         Participant
	p2         Participant // nil when playing the computer
	pve        bool
	botName    string
	records    Recorder
	archive    Archiver
	onFinished func(matchID string)
	logger     zerolog.Logger

	mu         sync.Mutex
	rng        *rand.Rand
	ai         *EnemyAI
	phase      protocol.GamePhase
	round      int
	turnID     string
	boards     [2]*Board // boards[i] holds side i's ships and the shots received against them
	ready      [2]bool
	wins       [2]int
	roundStats [2]sideStats
	totals     [2]sideStats
	startedAt  time.Time
	timerGen   int
	timerStop  chan struct{}
	disposed   bool
}

// NewMatch builds a match. p2 == nil means the second side is the computer
// opponent at the given difficulty.
func NewMatch(
	id string,
	p1, p2 Participant,
	difficulty protocol.AIDifficulty,
	cfg protocol.GameConfig,
	records Recorder,
	archive Archiver,
	logger zerolog.Logger,
	onFinished func(matchID string),
) *Match {
	m := &Match{
		id:         id,
		cfg:        cfg,
		p1:         p1,
		p2:         p2,
		pve:        p2 == nil,
		records:    records,
		archive:    archive,
		onFinished: onFinished,
		logger:     logger.With().Str("match_id", id).Logger(),
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
		phase:      protocol.PhasePlacement,
		round:      1,
	}
	m.boards[0] = NewBoard(cfg.BoardSize)
	m.boards[1] = NewBoard(cfg.BoardSize)
	m.turnID = p1.ID()
	if m.pve {
		m.botName = fmt.Sprintf("Bot Hunter (%s)", difficulty)
		m.ai = NewEnemyAI(difficulty, cfg.BoardSize, m.rng)
		m.placeBotFleetLocked()
	}
	return m
}

func (m *Match) ID() string { return m.id }

// Has reports whether the session participates in this match.
func (m *Match) Has(sessionID string) bool {
	if m.p1.ID() == sessionID {
		return true
	}
	return m.p2 != nil && m.p2.ID() == sessionID
}

// Start pushes the initial PLACEMENT snapshot to both sides.
func (m *Match) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.startedAt = time.Now()
	m.logger.Info().
		Bool("pve", m.pve).
		Int("board_size", m.cfg.BoardSize).
		Int("max_rounds", m.cfg.MaxRounds).
		Msg("match starting, entering placement phase")
	m.broadcastStateLocked()
}

// HandlePlaceShips validates and installs one side's fleet. Both alias
// messages (place_ships and confirm_deployment) land here.
func (m *Match) HandlePlaceShips(sessionID string, ships []protocol.ShipPlacement) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.disposed {
		return
	}
	side := m.side(sessionID)
	if side < 0 {
		return
	}
	if m.phase != protocol.PhasePlacement {
		m.sendTo(side, protocol.InvalidAction{Message: "placement is closed in the current phase"})
		return
	}
	if m.ready[side] {
		m.sendTo(side, protocol.InvalidAction{Message: "fleet already deployed"})
		return
	}
	if err := m.boards[side].PlaceFleet(m.cfg, ships); err != nil {
		m.logger.Info().Str("player", m.nameOf(side)).Err(err).Msg("fleet rejected")
		m.sendTo(side, protocol.InvalidAction{Message: err.Error()})
		return
	}
	m.ready[side] = true
	m.sendTo(side, protocol.PlacementConfirmed{ShipCount: len(ships)})
	m.logger.Info().Str("player", m.nameOf(side)).Int("ships", len(ships)).Msg("fleet deployed")

	if m.ready[0] && m.ready[1] {
		m.beginBattleLocked()
	}
}

// HandleAttack resolves one shot from a human participant.
func (m *Match) HandleAttack(sessionID string, c protocol.Coordinate) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attackLocked(sessionID, c)
}

// HandleSurrender ends the entire series with the other side winning.
func (m *Match) HandleSurrender(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.abandonLocked(sessionID, "surrender")
}

// HandleLeave is identical to surrender: leaving forfeits the series.
func (m *Match) HandleLeave(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.abandonLocked(sessionID, "leave")
}

// HandleDisconnect treats a dropped connection like a voluntary leave, so the
// cleanup path is the same whether the network or the player gave up.
func (m *Match) HandleDisconnect(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.abandonLocked(sessionID, "disconnect")
}

func (m *Match) attackLocked(sessionID string, c protocol.Coordinate) {
	if m.disposed {
		return
	}
	side := m.side(sessionID)
	if side < 0 {
		return
	}
	if m.phase != protocol.PhaseBattle {
		m.sendTo(side, protocol.InvalidAction{Message: "no battle in progress"})
		return
	}
	if m.turnID != m.idOf(side) {
		m.sendTo(side, protocol.InvalidAction{Message: "not your turn"})
		return
	}
	defender := 1 - side
	board := m.boards[defender]
	if !board.InBounds(c) {
		m.sendTo(side, protocol.InvalidAction{Message: "coordinate outside the board"})
		return
	}
	if board.Fired(c) {
		m.sendTo(side, protocol.InvalidAction{Message: "cell already targeted"})
		return
	}

	result, sunkType := board.Shoot(c)
	m.roundStats[side].Shots++
	m.roundStats[side].Turns++
	if result != protocol.ShotMiss {
		m.roundStats[side].Hits++
	}
	if result == protocol.ShotSunk {
		m.roundStats[side].Sunk++
	}

	sunk := result == protocol.ShotSunk
	m.sendTo(side, protocol.AttackResult{Pos: c, Result: result, Sunk: sunk, ShipSunkType: sunkType})
	m.sendTo(defender, protocol.OpponentAttack{Pos: c, Result: result, Sunk: sunk, ShipSunkType: sunkType})
	if m.pve && sessionID == BotID {
		m.ai.NotifyResult(result, c)
	}

	m.logger.Debug().
		Str("shooter", m.nameOf(side)).
		Int("x", c.X).Int("y", c.Y).
		Str("result", string(result)).
		Msg("shot resolved")

	if board.AllSunk() {
		m.finishRoundLocked(side)
		return
	}
	m.switchTurnLocked()
}

func (m *Match) beginBattleLocked() {
	m.phase = protocol.PhaseBattle
	m.turnID = m.p1.ID() // each round's fixed starting side
	m.logger.Info().Int("round", m.round).Msg("both fleets deployed, entering battle phase")
	m.sendTo(0, protocol.GameStart{GameID: m.id, OpponentName: m.nameOf(1), TurnTimeSeconds: m.cfg.TurnTimeSeconds})
	m.sendTo(1, protocol.GameStart{GameID: m.id, OpponentName: m.nameOf(0), TurnTimeSeconds: m.cfg.TurnTimeSeconds})
	m.broadcastStateLocked()
	m.startTurnTimerLocked()
}

func (m *Match) switchTurnLocked() {
	m.stopTimerLocked()
	if m.turnID == m.p1.ID() {
		m.turnID = m.idOf(1)
	} else {
		m.turnID = m.p1.ID()
	}
	m.broadcastLocked(protocol.TurnUpdate{PlayerID: m.turnID, SecondsLeft: m.cfg.TurnTimeSeconds})
	m.broadcastStateLocked()

	if m.pve && m.turnID == BotID {
		// Model a short reaction delay before the bot fires.
		time.AfterFunc(constants.AIThinkDelay, m.aiTurn)
		return
	}
	m.startTurnTimerLocked()
}

func (m *Match) aiTurn() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.disposed || m.phase != protocol.PhaseBattle || m.turnID != BotID {
		return
	}
	shot := m.ai.NextShot(m.boards[0].FiredSet())
	m.attackLocked(BotID, shot)
}

func (m *Match) startTurnTimerLocked() {
	m.timerGen++
	stop := make(chan struct{})
	m.timerStop = stop
	go m.runTurnTimer(m.timerGen, stop, m.cfg.TurnTimeSeconds)
}

func (m *Match) stopTimerLocked() {
	if m.timerStop != nil {
		close(m.timerStop)
		m.timerStop = nil
	}
}

// runTurnTimer broadcasts the countdown once per second and forces a turn
// pass on expiry. The generation counter invalidates timers that lost a race
// with a shot or with disposal.
func (m *Match) runTurnTimer(gen int, stop chan struct{}, seconds int) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	left := seconds
	for {
		m.turnTick(gen, left)
		select {
		case <-stop:
			return
		case <-ticker.C:
			left--
			if left < 0 {
				m.turnExpired(gen)
				return
			}
		}
	}
}

func (m *Match) turnTick(gen int, secondsLeft int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if gen != m.timerGen || m.disposed || m.phase != protocol.PhaseBattle {
		return
	}
	m.broadcastLocked(protocol.TurnUpdate{PlayerID: m.turnID, SecondsLeft: secondsLeft})
}

func (m *Match) turnExpired(gen int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if gen != m.timerGen || m.disposed || m.phase != protocol.PhaseBattle {
		return
	}
	// No shot this turn: pass the turn, it is not a loss.
	m.logger.Info().Str("turn_holder", m.turnID).Msg("turn timer expired, passing turn")
	m.switchTurnLocked()
}

func (m *Match) finishRoundLocked(winner int) {
	m.phase = protocol.PhaseRoundOver
	m.stopTimerLocked()
	m.wins[winner]++
	m.totals[0].add(m.roundStats[0])
	m.totals[1].add(m.roundStats[1])

	matchOver := m.wins[winner] >= m.cfg.RoundsToWin()
	duration := time.Since(m.startedAt)
	m.logger.Info().
		Int("round", m.round).
		Str("winner", m.nameOf(winner)).
		Int("p1_wins", m.wins[0]).
		Int("p2_wins", m.wins[1]).
		Bool("match_over", matchOver).
		Msg("round finished")

	for side := 0; side < 2; side++ {
		m.sendTo(side, protocol.RoundResult{
			RoundNumber:  m.round,
			WinnerID:     m.idOf(winner),
			Player1Score: m.wins[0],
			Player2Score: m.wins[1],
			IsMatchOver:  matchOver,
			Stats:        m.roundStats[side].gameStats(side == winner, duration),
		})
	}

	if matchOver {
		m.matchOverLocked(winner)
		return
	}
	m.nextRoundLocked()
}

func (m *Match) nextRoundLocked() {
	m.round++
	m.boards[0].Reset()
	m.boards[1].Reset()
	m.roundStats[0] = sideStats{}
	m.roundStats[1] = sideStats{}
	m.ready[0] = false
	m.ready[1] = m.pve
	if m.pve {
		m.ai = NewEnemyAI(m.ai.Difficulty(), m.cfg.BoardSize, m.rng)
		m.placeBotFleetLocked()
	}
	m.phase = protocol.PhasePlacement
	m.turnID = m.p1.ID()
	m.logger.Info().Int("round", m.round).Msg("next round, re-entering placement phase")
	m.broadcastStateLocked()
}

func (m *Match) matchOverLocked(winner int) {
	m.phase = protocol.PhaseMatchOver
	duration := time.Since(m.startedAt)
	for side := 0; side < 2; side++ {
		m.sendTo(side, protocol.GameOver{
			WinnerID: m.idOf(winner),
			Stats:    m.totals[side].gameStats(side == winner, duration),
		})
	}
	m.persistLocked(winner, duration)
	m.archiveLocked(winner, duration)
	m.disposeLocked()
}

// abandonLocked ends the whole series in the opponent's favour. It is the
// shared path for surrender, leave and disconnect, and a no-op once disposed,
// so near-simultaneous disconnect plus leave resolves cleanly.
func (m *Match) abandonLocked(sessionID, cause string) {
	if m.disposed {
		return
	}
	loser := m.side(sessionID)
	if loser < 0 || sessionID == BotID {
		return
	}
	winner := 1 - loser
	m.phase = protocol.PhaseMatchOver
	m.stopTimerLocked()
	m.totals[0].add(m.roundStats[0])
	m.totals[1].add(m.roundStats[1])
	m.wins[winner] = m.cfg.RoundsToWin()
	duration := time.Since(m.startedAt)

	m.logger.Info().
		Str("player", m.nameOf(loser)).
		Str("cause", cause).
		Str("winner", m.nameOf(winner)).
		Msg("series abandoned")

	for side := 0; side < 2; side++ {
		m.sendTo(side, protocol.GameOver{
			WinnerID: m.idOf(winner),
			Stats:    m.totals[side].gameStats(side == winner, duration),
		})
	}
	m.persistLocked(winner, duration)
	m.archiveLocked(winner, duration)
	m.disposeLocked()
}

// persistLocked writes both human records exactly once per match. Failures
// are logged and swallowed: a broken save must not break match teardown.
func (m *Match) persistLocked(winner int, duration time.Duration) {
	for side := 0; side < 2; side++ {
		p := m.participant(side)
		if p == nil {
			continue
		}
		err := m.records.Update(
			p.Name(),
			side == winner,
			m.totals[side].Shots,
			m.totals[side].Hits,
			int64(duration.Seconds()),
			!m.pve,
			m.totals[side].Turns,
		)
		if err != nil {
			m.logger.Error().Err(err).Str("player", p.Name()).Msg("failed to persist player record")
		}
	}
}

func (m *Match) archiveLocked(winner int, duration time.Duration) {
	if m.archive == nil {
		return
	}
	finished := time.Now()
	for side := 0; side < 2; side++ {
		p := m.participant(side)
		if p == nil {
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), constants.DatabaseTimeout)
		err := m.archive.Record(ctx, MatchRecord{
			MatchID:         m.id,
			PlayerName:      p.Name(),
			OpponentName:    m.nameOf(1 - side),
			Won:             side == winner,
			IsPvE:           m.pve,
			RoundsWon:       m.wins[side],
			RoundsLost:      m.wins[1-side],
			Shots:           m.totals[side].Shots,
			Hits:            m.totals[side].Hits,
			ShipsSunk:       m.totals[side].Sunk,
			DurationSeconds: int64(duration.Seconds()),
			FinishedAt:      finished,
		})
		cancel()
		if err != nil {
			m.logger.Warn().Err(err).Str("player", p.Name()).Msg("failed to archive match result")
		}
	}
}

func (m *Match) disposeLocked() {
	if m.disposed {
		return
	}
	m.disposed = true
	m.stopTimerLocked()
	m.phase = protocol.PhaseMatchOver
	m.logger.Info().Msg("match disposed")
	if m.onFinished != nil {
		m.onFinished(m.id)
	}
}

func (m *Match) placeBotFleetLocked() {
	fleet := RandomFleet(m.cfg, m.rng)
	if err := m.boards[1].PlaceFleet(m.cfg, fleet); err != nil {
		// RandomFleet only produces valid fleets; this would be a bug.
		m.logger.Error().Err(err).Msg("bot fleet placement failed")
		return
	}
	m.ready[1] = true
}

func (m *Match) broadcastStateLocked() {
	for side := 0; side < 2; side++ {
		p := m.participant(side)
		if p == nil {
			continue
		}
		p.Send(protocol.GameState{
			Phase:           m.phase,
			CurrentTurn:     m.turnID,
			TurnTimeSeconds: m.cfg.TurnTimeSeconds,
			MyBoard:         m.boards[side].Snapshot(true),
			OpponentBoard:   m.boards[1-side].Snapshot(false),
			Status:          m.statusText(side),
		})
	}
}

func (m *Match) statusText(side int) string {
	switch m.phase {
	case protocol.PhasePlacement:
		return "Place your ships"
	case protocol.PhaseBattle:
		if m.turnID == m.idOf(side) {
			return "Your turn"
		}
		return "Opponent's turn"
	case protocol.PhaseRoundOver:
		return "Round over"
	default:
		return "Match over"
	}
}

func (m *Match) broadcastLocked(msg protocol.Message) {
	m.p1.Send(msg)
	if m.p2 != nil {
		m.p2.Send(msg)
	}
}

func (m *Match) sendTo(side int, msg protocol.Message) {
	if p := m.participant(side); p != nil {
		p.Send(msg)
	}
}

func (m *Match) side(sessionID string) int {
	switch {
	case m.p1.ID() == sessionID:
		return 0
	case m.p2 != nil && m.p2.ID() == sessionID:
		return 1
	case m.pve && sessionID == BotID:
		return 1
	}
	return -1
}

func (m *Match) participant(side int) Participant {
	if side == 0 {
		return m.p1
	}
	return m.p2
}

func (m *Match) idOf(side int) string {
	if side == 0 {
		return m.p1.ID()
	}
	if m.p2 != nil {
		return m.p2.ID()
	}
	return BotID
}

func (m *Match) nameOf(side int) string {
	if side == 0 {
		return m.p1.Name()
	}
	if m.p2 != nil {
		return m.p2.Name()
	}
	return m.botName
}
