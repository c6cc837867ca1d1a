package room

import (
	"errors"
	"fmt"
	"time"

	"github.com/mcdev12/connectfour/go/internal/connectfour/board"
	"github.com/mcdev12/connectfour/go/internal/connectfour/protocol"
)

// Status is the lifecycle state of a room's match.
type Status string

const (
	StatusWaiting    Status = "waiting_for_player"
	StatusInProgress Status = "in_progress"
	StatusGameOver   Status = "game_over"
)

const MaxPlayers = 2

var (
	ErrRoomNotFound       = errors.New("room not found")
	ErrRoomFull           = errors.New("room is full")
	ErrNotInRoom          = errors.New("not in a room")
	ErrCodeSpaceExhausted = errors.New("could not allocate a unique room code")

	// Every move or reset rejection wraps board.ErrInvalidMove.
	ErrInvalidMove    = board.ErrInvalidMove
	ErrNotYourTurn    = fmt.Errorf("%w: not your turn", board.ErrInvalidMove)
	ErrGameNotStarted = fmt.Errorf("%w: waiting for an opponent", board.ErrInvalidMove)
	ErrGameOver       = fmt.Errorf("%w: game is over", board.ErrInvalidMove)
	ErrGameInProgress = fmt.Errorf("%w: game is still in progress", board.ErrInvalidMove)
	ErrNoOpponent     = fmt.Errorf("%w: opponent has left the room", board.ErrInvalidMove)
)

// Player is a seated participant. Number is fixed for the room's lifetime.
type Player struct {
	ID       string
	Username string
	Number   board.Player
}

func (p *Player) Info() protocol.PlayerInfo {
	return protocol.PlayerInfo{ID: p.ID, Username: p.Username, PlayerNumber: int(p.Number)}
}

// Notifier delivers server messages to players by id. Implementations must not block
// and must not call back into the room.
type Notifier interface {
	Notify(playerIDs []string, msg protocol.ServerMessage)
}

type Config struct {
	TurnDuration time.Duration
	TickInterval time.Duration
	LingerTTL    time.Duration
	CodeLength   int
}

func DefaultConfig() Config {
	return Config{
		TurnDuration: 10 * time.Second,
		TickInterval: time.Second,
		LingerTTL:    5 * time.Minute,
		CodeLength:   6,
	}
}

// Snapshot is a read-only view of a room used by the HTTP state and stats endpoints.
type Snapshot struct {
	Code         string                `json:"code"`
	Status       Status                `json:"status"`
	Players      []protocol.PlayerInfo `json:"players"`
	GameState    protocol.GameState    `json:"gameState"`
	WinningCells [][2]int              `json:"winningCells"`
	Moves        int                   `json:"moves"`
	TimeLeft     int                   `json:"timeLeft"`
	Version      uint64                `json:"version"`
	CreatedAt    time.Time             `json:"createdAt"`
}
