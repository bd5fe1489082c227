package constants

import "time"

const (
	HeartbeatInterval = 30 * time.Second
	HeartbeatTimeout  = 60 * time.Second
	AIThinkDelay      = 1 * time.Second
)

const (
	DatabaseTimeout = 5 * time.Second
	ShutdownTimeout = 5 * time.Second
)

const (
	DBMaxOpenConns    = 100
	DBMaxIdleConns    = 10
	DBConnMaxLifetime = 1 * time.Hour
	DBMaxIdleTime     = 10 * time.Minute
)

const (
	RoomCodeLength   = 5
	RoomCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

const (
	LeaderboardLimit   = 10
	HistoryQueryLimit  = 20
	MaxInboundLineSize = 256 * 1024
)

const ServerVersion = "1.0.0"
