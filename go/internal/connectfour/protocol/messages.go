package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/mcdev12/connectfour/go/internal/connectfour/board"
)

// MessageType is the "type" discriminator carried by every frame.
type MessageType string

// Client -> server
const (
	TypeCreateRoom MessageType = "create_room"
	TypeJoinRoom   MessageType = "join_room"
	TypeLeaveRoom  MessageType = "leave_room"
	TypeGameMove   MessageType = "game_move"
	TypeGameReset  MessageType = "game_reset"
)

// Server -> client. game_move and game_reset are shared with the client direction.
const (
	TypeRoomCreated        MessageType = "room_created"
	TypeRoomJoined         MessageType = "room_joined"
	TypePlayerJoined       MessageType = "player_joined"
	TypeGameStart          MessageType = "game_start"
	TypeTimerUpdate        MessageType = "timer_update"
	TypeGameOverTimeout    MessageType = "game_over_timeout"
	TypeGameOverDisconnect MessageType = "game_over_disconnect"
	TypePlayerLeft         MessageType = "player_left"
	TypeError              MessageType = "error"
)

const MaxUsernameLength = 32

// ErrMalformedMessage is returned for frames that cannot be turned into a ClientMessage.
var ErrMalformedMessage = errors.New("malformed message")

// ClientMessage is the union of every client -> server frame.
type ClientMessage struct {
	Type     MessageType `json:"type"`
	Username string      `json:"username,omitempty"`
	RoomID   string      `json:"roomId,omitempty"`
	Column   *int        `json:"column,omitempty"`
}

// ParseClientMessage decodes and validates one inbound frame.
func ParseClientMessage(data []byte) (ClientMessage, error) {
	var msg ClientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return ClientMessage{}, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}

	switch msg.Type {
	case TypeCreateRoom:
		name, err := normalizeUsername(msg.Username)
		if err != nil {
			return ClientMessage{}, err
		}
		msg.Username = name
	case TypeJoinRoom:
		name, err := normalizeUsername(msg.Username)
		if err != nil {
			return ClientMessage{}, err
		}
		msg.Username = name
		msg.RoomID = strings.TrimSpace(msg.RoomID)
		if msg.RoomID == "" {
			return ClientMessage{}, fmt.Errorf("%w: roomId is required", ErrMalformedMessage)
		}
	case TypeGameMove:
		if msg.Column == nil {
			return ClientMessage{}, fmt.Errorf("%w: column is required", ErrMalformedMessage)
		}
	case TypeLeaveRoom, TypeGameReset:
	case "":
		return ClientMessage{}, fmt.Errorf("%w: missing type", ErrMalformedMessage)
	default:
		return ClientMessage{}, fmt.Errorf("%w: unknown type %q", ErrMalformedMessage, msg.Type)
	}

	return msg, nil
}

func normalizeUsername(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("%w: username is required", ErrMalformedMessage)
	}
	if utf8.RuneCountInString(name) > MaxUsernameLength {
		return "", fmt.Errorf("%w: username must be at most %d characters", ErrMalformedMessage, MaxUsernameLength)
	}
	return name, nil
}

// PlayerInfo is one entry of players[].
type PlayerInfo struct {
	ID           string `json:"id"`
	Username     string `json:"username"`
	PlayerNumber int    `json:"playerNumber"`
}

// GameState is the authoritative board snapshot sent to clients.
type GameState struct {
	Board         [board.Rows][board.Cols]*int `json:"board"`
	CurrentPlayer int                          `json:"currentPlayer"`
	Winner        *int                         `json:"winner"`
	GameOver      bool                         `json:"gameOver"`
}

// NewGameState converts engine values to the wire shape; empty cells become null.
func NewGameState(b board.Board, current, winner board.Player, gameOver bool) GameState {
	gs := GameState{
		CurrentPlayer: int(current),
		Winner:        playerPtr(winner),
		GameOver:      gameOver,
	}
	for r := 0; r < board.Rows; r++ {
		for c := 0; c < board.Cols; c++ {
			gs.Board[r][c] = playerPtr(b[r][c])
		}
	}
	return gs
}

// MoveInfo describes the applied drop.
type MoveInfo struct {
	Row    int `json:"row"`
	Column int `json:"column"`
	Player int `json:"player"`
}

// CellsToPairs renders winning cells as [row, col] pairs, never null.
func CellsToPairs(cells []board.Cell) [][2]int {
	out := make([][2]int, 0, len(cells))
	for _, c := range cells {
		out = append(out, [2]int{c.Row, c.Col})
	}
	return out
}

func playerPtr(p board.Player) *int {
	if p == board.None {
		return nil
	}
	n := int(p)
	return &n
}

// ServerMessage is any frame the server sends.
type ServerMessage interface {
	MessageType() MessageType
}

type RoomCreated struct {
	Type         MessageType `json:"type"`
	RoomID       string      `json:"roomId"`
	PlayerID     string      `json:"playerId"`
	PlayerNumber int         `json:"playerNumber"`
}

type RoomJoined struct {
	Type         MessageType  `json:"type"`
	RoomID       string       `json:"roomId"`
	PlayerID     string       `json:"playerId"`
	PlayerNumber int          `json:"playerNumber"`
	Players      []PlayerInfo `json:"players"`
	GameState    GameState    `json:"gameState"`
}

type PlayerJoined struct {
	Type    MessageType  `json:"type"`
	Players []PlayerInfo `json:"players"`
}

type GameStart struct {
	Type MessageType `json:"type"`
}

type GameMove struct {
	Type         MessageType `json:"type"`
	GameState    GameState   `json:"gameState"`
	Move         MoveInfo    `json:"move"`
	PlayerName   string      `json:"playerName"`
	WinningCells [][2]int    `json:"winningCells"`
}

type GameReset struct {
	Type      MessageType `json:"type"`
	GameState GameState   `json:"gameState"`
}

type TimerUpdate struct {
	Type     MessageType `json:"type"`
	TimeLeft int         `json:"timeLeft"`
}

// GameOver is used for both game_over_timeout and game_over_disconnect.
type GameOver struct {
	Type      MessageType `json:"type"`
	GameState GameState   `json:"gameState"`
	Winner    int         `json:"winner"`
}

type PlayerLeft struct {
	Type       MessageType  `json:"type"`
	PlayerName string       `json:"playerName"`
	Players    []PlayerInfo `json:"players"`
}

type Error struct {
	Type    MessageType `json:"type"`
	Message string      `json:"message"`
}

func (m RoomCreated) MessageType() MessageType  { return TypeRoomCreated }
func (m RoomJoined) MessageType() MessageType   { return TypeRoomJoined }
func (m PlayerJoined) MessageType() MessageType { return TypePlayerJoined }
func (m GameStart) MessageType() MessageType    { return TypeGameStart }
func (m GameMove) MessageType() MessageType     { return TypeGameMove }
func (m GameReset) MessageType() MessageType    { return TypeGameReset }
func (m TimerUpdate) MessageType() MessageType  { return TypeTimerUpdate }
func (m GameOver) MessageType() MessageType     { return m.Type }
func (m PlayerLeft) MessageType() MessageType   { return TypePlayerLeft }
func (m Error) MessageType() MessageType        { return TypeError }

func NewRoomCreated(roomID, playerID string, number board.Player) RoomCreated {
	return RoomCreated{Type: TypeRoomCreated, RoomID: roomID, PlayerID: playerID, PlayerNumber: int(number)}
}

func NewRoomJoined(roomID, playerID string, number board.Player, players []PlayerInfo, state GameState) RoomJoined {
	return RoomJoined{
		Type:         TypeRoomJoined,
		RoomID:       roomID,
		PlayerID:     playerID,
		PlayerNumber: int(number),
		Players:      players,
		GameState:    state,
	}
}

func NewPlayerJoined(players []PlayerInfo) PlayerJoined {
	return PlayerJoined{Type: TypePlayerJoined, Players: players}
}

func NewGameStart() GameStart {
	return GameStart{Type: TypeGameStart}
}

func NewGameMove(state GameState, move board.Move, playerName string, winning []board.Cell) GameMove {
	return GameMove{
		Type:         TypeGameMove,
		GameState:    state,
		Move:         MoveInfo{Row: move.Row, Column: move.Col, Player: int(move.Player)},
		PlayerName:   playerName,
		WinningCells: CellsToPairs(winning),
	}
}

func NewGameReset(state GameState) GameReset {
	return GameReset{Type: TypeGameReset, GameState: state}
}

func NewTimerUpdate(secondsLeft int) TimerUpdate {
	return TimerUpdate{Type: TypeTimerUpdate, TimeLeft: secondsLeft}
}

func NewGameOverTimeout(state GameState, winner board.Player) GameOver {
	return GameOver{Type: TypeGameOverTimeout, GameState: state, Winner: int(winner)}
}

func NewGameOverDisconnect(state GameState, winner board.Player) GameOver {
	return GameOver{Type: TypeGameOverDisconnect, GameState: state, Winner: int(winner)}
}

func NewPlayerLeft(playerName string, players []PlayerInfo) PlayerLeft {
	return PlayerLeft{Type: TypePlayerLeft, PlayerName: playerName, Players: players}
}

func NewError(message string) Error {
	return Error{Type: TypeError, Message: message}
}
