package events

import (
	"time"
)

// Event payload types shared between the room and the publishers

// Finish reasons carried by MatchFinishedPayload.
const (
	ReasonWin        = "win"
	ReasonDraw       = "draw"
	ReasonTimeout    = "timeout"
	ReasonDisconnect = "disconnect"
)

// PlayerRef identifies a seated player.
type PlayerRef struct {
	PlayerID     string `json:"player_id"`
	Username     string `json:"username"`
	PlayerNumber int    `json:"player_number"`
}

// MatchStartedPayload is the payload for a MatchStarted event
type MatchStartedPayload struct {
	Players     []PlayerRef `json:"players"`
	StartedAt   time.Time   `json:"started_at"`
	TurnSeconds int         `json:"turn_seconds"`
}

// MoveMadePayload is the payload for a MoveMade event
type MoveMadePayload struct {
	PlayerID     string    `json:"player_id"`
	PlayerNumber int       `json:"player_number"`
	Row          int       `json:"row"`
	Column       int       `json:"column"`
	MoveNumber   int       `json:"move_number"`
	MadeAt       time.Time `json:"made_at"`
}

// MatchFinishedPayload is the payload for a MatchFinished event. Winner is 0 for a draw.
type MatchFinishedPayload struct {
	Reason       string    `json:"reason"`
	Winner       int       `json:"winner"`
	WinningCells [][2]int  `json:"winning_cells,omitempty"`
	Moves        int       `json:"moves"`
	FinishedAt   time.Time `json:"finished_at"`
	Duration     string    `json:"duration"`
}

// MatchResetPayload is the payload for a MatchReset event
type MatchResetPayload struct {
	ResetAt time.Time `json:"reset_at"`
}

// RoomClosedPayload is the payload for a RoomClosed event
type RoomClosedPayload struct {
	ClosedAt time.Time `json:"closed_at"`
	Reason   string    `json:"reason"`
}
