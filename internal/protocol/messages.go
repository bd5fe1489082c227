// Package protocol defines the wire protocol of the battleship server: one
// newline-delimited JSON object per message, tagged by a "type" discriminator.
// Decoders ignore unknown fields so older servers tolerate newer clients.
package protocol

import (
	"encoding/json"
	"fmt"
)

type MessageType string

const (
	MsgHandshake  MessageType = "connection_handshake"
	MsgWelcome    MessageType = "connection_welcome"
	MsgDisconnect MessageType = "connection_disconnect"

	MsgPing MessageType = "system_ping"
	MsgPong MessageType = "system_pong"

	MsgFindPvP      MessageType = "matchmaking_find_pvp"
	MsgFindPvE      MessageType = "matchmaking_find_pve"
	MsgCancelSearch MessageType = "matchmaking_cancel"
	MsgMatchFound   MessageType = "matchmaking_found"
	MsgWaiting      MessageType = "matchmaking_waiting"
	MsgLobbyStatus  MessageType = "matchmaking_lobby_status"
	MsgCreateRoom   MessageType = "matchmaking_create_room"
	MsgJoinRoom     MessageType = "matchmaking_join_room"
	MsgRoomCreated  MessageType = "matchmaking_room_created"
	MsgRoomJoined   MessageType = "matchmaking_room_joined"
	MsgRoomError    MessageType = "matchmaking_room_error"

	MsgPlaceShips        MessageType = "action_place_ships"
	MsgConfirmDeployment MessageType = "action_confirm_deployment"
	MsgAttack            MessageType = "action_attack"
	MsgSurrender         MessageType = "action_surrender"
	MsgLeaveGame         MessageType = "action_leave_game"

	MsgGameState          MessageType = "response_game_state"
	MsgGameStart          MessageType = "response_game_start"
	MsgAttackResult       MessageType = "response_attack_result"
	MsgOpponentAttack     MessageType = "response_opponent_attack"
	MsgTurnUpdate         MessageType = "response_turn_update"
	MsgGameOver           MessageType = "response_game_over"
	MsgRoundResult        MessageType = "response_round_result"
	MsgPlacementConfirmed MessageType = "response_placement_confirmed"

	MsgStatsRequest  MessageType = "stats_request"
	MsgStatsResponse MessageType = "stats_response"
	MsgStatsUpdate   MessageType = "stats_update"

	MsgInvalidAction   MessageType = "error_invalid"
	MsgServerError     MessageType = "error_server"
	MsgConnectionError MessageType = "error_connection"
)

// Message is implemented by every protocol message.
type Message interface {
	MessageType() MessageType
}

type AIDifficulty string

const (
	DifficultyEasy   AIDifficulty = "EASY"
	DifficultyMedium AIDifficulty = "MEDIUM"
	DifficultyHard   AIDifficulty = "HARD"
)

type Orientation string

const (
	Horizontal Orientation = "HORIZONTAL"
	Vertical   Orientation = "VERTICAL"
)

type ShotResult string

const (
	ShotMiss ShotResult = "MISS"
	ShotHit  ShotResult = "HIT"
	ShotSunk ShotResult = "SUNK"
)

type GamePhase string

const (
	PhasePlacement GamePhase = "PLACEMENT"
	PhaseBattle    GamePhase = "BATTLE"
	PhaseRoundOver GamePhase = "ROUND_OVER"
	PhaseMatchOver GamePhase = "MATCH_OVER"
)

type CellState string

const (
	CellEmpty CellState = "EMPTY"
	CellShip  CellState = "SHIP"
	CellHit   CellState = "HIT"
	CellMiss  CellState = "MISS"
)

type ShipType string

const (
	Carrier    ShipType = "CARRIER"
	Battleship ShipType = "BATTLESHIP"
	Cruiser    ShipType = "CRUISER"
	Destroyer  ShipType = "DESTROYER"
	PatrolBoat ShipType = "PATROL_BOAT"
)

// Size returns the number of cells the ship occupies, or 0 for an unknown kind.
func (t ShipType) Size() int {
	switch t {
	case Carrier:
		return 5
	case Battleship:
		return 4
	case Cruiser:
		return 3
	case Destroyer:
		return 2
	case PatrolBoat:
		return 1
	}
	return 0
}

type Coordinate struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// ShipPlacement anchors a ship at a coordinate and extends it along one axis.
type ShipPlacement struct {
	Type        ShipType    `json:"type"`
	Coordinate  Coordinate  `json:"coordinate"`
	Orientation Orientation `json:"orientation"`
}

type ShipState struct {
	Type        ShipType     `json:"type"`
	Coordinates []Coordinate `json:"coordinates"`
	Sunk        bool         `json:"sunk"`
}

// BoardState is a snapshot sent to a client. Cells are always derived from the
// ship and fired sets server-side, never stored.
type BoardState struct {
	Size  int           `json:"size"`
	Cells [][]CellState `json:"cells"`
	Ships []ShipState   `json:"ships,omitempty"`
}

// GameStats summarizes one side's performance in a single round or match.
type GameStats struct {
	TotalShots          int     `json:"totalShots"`
	SuccessfulHits      int     `json:"successfulHits"`
	ShipsDestroyed      int     `json:"shipsDestroyed"`
	Accuracy            float64 `json:"accuracy"`
	WinStreak           int     `json:"winStreak"`
	GameDurationSeconds int64   `json:"gameDurationSeconds"`
}

// PlayerStats is the durable cross-session record of one player.
// FastestWinTurns is 0 until the player has won at least once.
type PlayerStats struct {
	PlayerName string `json:"playerName"`
	GamesPlayed int   `json:"gamesPlayed"`
	GamesWon    int   `json:"gamesWon"`
	GamesLost   int   `json:"gamesLost"`

	PvPWon  int `json:"pvpWon"`
	PvPLost int `json:"pvpLost"`
	PvEWon  int `json:"pveWon"`
	PvELost int `json:"pveLost"`

	TotalShots      int     `json:"totalShots"`
	TotalHits       int     `json:"totalHits"`
	WinStreak       int     `json:"winStreak"`
	BestWinStreak   int     `json:"bestWinStreak"`
	AverageAccuracy float64 `json:"averageAccuracy"`
	BestAccuracy    float64 `json:"bestAccuracy"`
	FastestWinTurns int     `json:"fastestWinTurns"`

	TotalPlayTimeSeconds int64 `json:"totalPlayTimeSeconds"`
}

type LeaderboardEntry struct {
	Rank       int     `json:"rank"`
	PlayerName string  `json:"playerName"`
	GamesWon   int     `json:"gamesWon"`
	WinRate    float64 `json:"winRate"`
	BestStreak int     `json:"bestStreak"`
}

// ==================== connection ====================

type Handshake struct {
	PlayerName    string `json:"playerName"`
	ClientVersion string `json:"clientVersion,omitempty"`
}

func (Handshake) MessageType() MessageType { return MsgHandshake }

type Welcome struct {
	PlayerID      string `json:"playerId"`
	ServerVersion string `json:"serverVersion"`
	Message       string `json:"message"`
}

func (Welcome) MessageType() MessageType { return MsgWelcome }

type Disconnect struct {
	Reason string `json:"reason,omitempty"`
}

func (Disconnect) MessageType() MessageType { return MsgDisconnect }

// ==================== system ====================

type Ping struct {
	Timestamp int64 `json:"timestamp"`
}

func (Ping) MessageType() MessageType { return MsgPing }

type Pong struct {
	Timestamp int64 `json:"timestamp"`
}

func (Pong) MessageType() MessageType { return MsgPong }

// ==================== matchmaking ====================

type FindPvP struct {
	GameConfig GameConfig `json:"gameConfig"`
}

func (FindPvP) MessageType() MessageType { return MsgFindPvP }

type FindPvE struct {
	GameConfig GameConfig   `json:"gameConfig"`
	Difficulty AIDifficulty `json:"difficulty,omitempty"`
}

func (FindPvE) MessageType() MessageType { return MsgFindPvE }

type CancelSearch struct{}

func (CancelSearch) MessageType() MessageType { return MsgCancelSearch }

type MatchFound struct {
	GameID       string     `json:"gameId"`
	OpponentName string     `json:"opponentName"`
	IsPvE        bool       `json:"isPvE"`
	Config       GameConfig `json:"config"`
}

func (MatchFound) MessageType() MessageType { return MsgMatchFound }

type Waiting struct {
	PlayersInQueue int `json:"playersInQueue"`
}

func (Waiting) MessageType() MessageType { return MsgWaiting }

type LobbyStatus struct {
	LobbyID    string     `json:"lobbyId"`
	Players    []string   `json:"players"`
	MaxPlayers int        `json:"maxPlayers"`
	Config     GameConfig `json:"config"`
	RoomCode   string     `json:"roomCode,omitempty"`
}

func (LobbyStatus) MessageType() MessageType { return MsgLobbyStatus }

type CreateRoom struct {
	Config GameConfig `json:"config"`
}

func (CreateRoom) MessageType() MessageType { return MsgCreateRoom }

type JoinRoom struct {
	RoomCode string `json:"roomCode"`
}

func (JoinRoom) MessageType() MessageType { return MsgJoinRoom }

type RoomCreated struct {
	RoomID   string     `json:"roomId"`
	RoomCode string     `json:"roomCode"`
	Config   GameConfig `json:"config"`
}

func (RoomCreated) MessageType() MessageType { return MsgRoomCreated }

type RoomJoined struct {
	RoomID   string     `json:"roomId"`
	RoomCode string     `json:"roomCode"`
	Config   GameConfig `json:"config"`
}

func (RoomJoined) MessageType() MessageType { return MsgRoomJoined }

type RoomError struct {
	Message string `json:"message"`
}

func (RoomError) MessageType() MessageType { return MsgRoomError }

// ==================== actions ====================

type PlaceShips struct {
	Ships []ShipPlacement `json:"ships"`
}

func (PlaceShips) MessageType() MessageType { return MsgPlaceShips }

// ConfirmDeployment is accepted as an alias for PlaceShips; some clients send
// it as the final placement step.
type ConfirmDeployment struct {
	Ships []ShipPlacement `json:"ships"`
}

func (ConfirmDeployment) MessageType() MessageType { return MsgConfirmDeployment }

type Attack struct {
	Coordinate Coordinate `json:"coordinate"`
}

func (Attack) MessageType() MessageType { return MsgAttack }

type Surrender struct{}

func (Surrender) MessageType() MessageType { return MsgSurrender }

type LeaveGame struct{}

func (LeaveGame) MessageType() MessageType { return MsgLeaveGame }

// ==================== responses ====================

type GameState struct {
	Phase           GamePhase  `json:"phase"`
	CurrentTurn     string     `json:"currentTurn"`
	TurnTimeSeconds int        `json:"turnTimeSeconds"`
	MyBoard         BoardState `json:"myBoard"`
	OpponentBoard   BoardState `json:"opponentBoard"`
	Status          string     `json:"status"`
}

func (GameState) MessageType() MessageType { return MsgGameState }

type GameStart struct {
	GameID          string `json:"gameId"`
	OpponentName    string `json:"opponentName"`
	TurnTimeSeconds int    `json:"turnTimeSeconds"`
}

func (GameStart) MessageType() MessageType { return MsgGameStart }

type AttackResult struct {
	Pos          Coordinate `json:"pos"`
	Result       ShotResult `json:"result"`
	Sunk         bool       `json:"sunk"`
	ShipSunkType ShipType   `json:"shipSunkType,omitempty"`
}

func (AttackResult) MessageType() MessageType { return MsgAttackResult }

type OpponentAttack struct {
	Pos          Coordinate `json:"pos"`
	Result       ShotResult `json:"result"`
	Sunk         bool       `json:"sunk"`
	ShipSunkType ShipType   `json:"shipSunkType,omitempty"`
}

func (OpponentAttack) MessageType() MessageType { return MsgOpponentAttack }

type TurnUpdate struct {
	PlayerID    string `json:"playerId"`
	SecondsLeft int    `json:"secondsLeft"`
}

func (TurnUpdate) MessageType() MessageType { return MsgTurnUpdate }

type GameOver struct {
	WinnerID string    `json:"winnerId"`
	Stats    GameStats `json:"stats"`
}

func (GameOver) MessageType() MessageType { return MsgGameOver }

type RoundResult struct {
	RoundNumber  int       `json:"roundNumber"`
	WinnerID     string    `json:"winnerId"`
	Player1Score int       `json:"player1Score"`
	Player2Score int       `json:"player2Score"`
	IsMatchOver  bool      `json:"isMatchOver"`
	Stats        GameStats `json:"stats"`
}

func (RoundResult) MessageType() MessageType { return MsgRoundResult }

type PlacementConfirmed struct {
	ShipCount int `json:"shipCount"`
}

func (PlacementConfirmed) MessageType() MessageType { return MsgPlacementConfirmed }

// ==================== stats ====================

type StatsRequest struct{}

func (StatsRequest) MessageType() MessageType { return MsgStatsRequest }

type StatsResponse struct {
	PlayerStats PlayerStats        `json:"playerStats"`
	Leaderboard []LeaderboardEntry `json:"leaderboard"`
}

func (StatsResponse) MessageType() MessageType { return MsgStatsResponse }

type StatsUpdate struct {
	PlayerStats PlayerStats `json:"playerStats"`
}

func (StatsUpdate) MessageType() MessageType { return MsgStatsUpdate }

// ==================== errors ====================

type InvalidAction struct {
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

func (InvalidAction) MessageType() MessageType { return MsgInvalidAction }

type ServerError struct {
	Message string `json:"message"`
	Code    int    `json:"code"`
}

func (ServerError) MessageType() MessageType { return MsgServerError }

type ConnectionError struct {
	Message string `json:"message"`
}

func (ConnectionError) MessageType() MessageType { return MsgConnectionError }

// Encode serializes a message as a single JSON object carrying the type
// discriminator alongside the payload fields. The result has no trailing
// newline; the transport appends it.
func Encode(msg Message) ([]byte, error) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", msg.MessageType(), err)
	}
	head := fmt.Sprintf(`{"type":%q`, msg.MessageType())
	if len(payload) <= 2 { // empty object
		return []byte(head + "}"), nil
	}
	out := make([]byte, 0, len(head)+len(payload))
	out = append(out, head...)
	out = append(out, ',')
	out = append(out, payload[1:]...)
	return out, nil
}

// Decode parses one line into its concrete message type. Unknown types and
// malformed JSON yield an error; the caller logs and drops the line.
func Decode(line []byte) (Message, error) {
	var head struct {
		Type MessageType `json:"type"`
	}
	if err := json.Unmarshal(line, &head); err != nil {
		return nil, fmt.Errorf("decode message head: %w", err)
	}
	msg := newMessage(head.Type)
	if msg == nil {
		return nil, fmt.Errorf("unknown message type %q", head.Type)
	}
	if err := json.Unmarshal(line, msg); err != nil {
		return nil, fmt.Errorf("decode %s: %w", head.Type, err)
	}
	return msg, nil
}

func newMessage(t MessageType) Message {
	switch t {
	case MsgHandshake:
		return &Handshake{}
	case MsgWelcome:
		return &Welcome{}
	case MsgDisconnect:
		return &Disconnect{}
	case MsgPing:
		return &Ping{}
	case MsgPong:
		return &Pong{}
	case MsgFindPvP:
		return &FindPvP{}
	case MsgFindPvE:
		return &FindPvE{}
	case MsgCancelSearch:
		return &CancelSearch{}
	case MsgMatchFound:
		return &MatchFound{}
	case MsgWaiting:
		return &Waiting{}
	case MsgLobbyStatus:
		return &LobbyStatus{}
	case MsgCreateRoom:
		return &CreateRoom{}
	case MsgJoinRoom:
		return &JoinRoom{}
	case MsgRoomCreated:
		return &RoomCreated{}
	case MsgRoomJoined:
		return &RoomJoined{}
	case MsgRoomError:
		return &RoomError{}
	case MsgPlaceShips:
		return &PlaceShips{}
	case MsgConfirmDeployment:
		return &ConfirmDeployment{}
	case MsgAttack:
		return &Attack{}
	case MsgSurrender:
		return &Surrender{}
	case MsgLeaveGame:
		return &LeaveGame{}
	case MsgGameState:
		return &GameState{}
	case MsgGameStart:
		return &GameStart{}
	case MsgAttackResult:
		return &AttackResult{}
	case MsgOpponentAttack:
		return &OpponentAttack{}
	case MsgTurnUpdate:
		return &TurnUpdate{}
	case MsgGameOver:
		return &GameOver{}
	case MsgRoundResult:
		return &RoundResult{}
	case MsgPlacementConfirmed:
		return &PlacementConfirmed{}
	case MsgStatsRequest:
		return &StatsRequest{}
	case MsgStatsResponse:
		return &StatsResponse{}
	case MsgStatsUpdate:
		return &StatsUpdate{}
	case MsgInvalidAction:
		return &InvalidAction{}
	case MsgServerError:
		return &ServerError{}
	case MsgConnectionError:
		return &ConnectionError{}
	}
	return nil
}
