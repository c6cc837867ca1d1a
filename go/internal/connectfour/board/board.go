package board

import (
	"errors"
	"fmt"
)

// Board dimensions and win length for standard Connect Four.
const (
	Rows      = 6
	Cols      = 7
	WinLength = 4
)

// Player identifies the owner of a cell. The zero value is an empty cell.
type Player int

const (
	None Player = 0
	One  Player = 1
	Two  Player = 2
)

// Other returns the opponent of p. None has no opponent.
func (p Player) Other() Player {
	switch p {
	case One:
		return Two
	case Two:
		return One
	default:
		return None
	}
}

// Valid reports whether p is one of the two playing sides.
func (p Player) Valid() bool {
	return p == One || p == Two
}

var (
	// ErrInvalidMove is the root of every rejected drop.
	ErrInvalidMove = errors.New("invalid move")

	ErrColumnOutOfRange = fmt.Errorf("%w: column out of range", ErrInvalidMove)
	ErrColumnFull       = fmt.Errorf("%w: column is full", ErrInvalidMove)
	ErrInvalidPlayer    = fmt.Errorf("%w: unknown player", ErrInvalidMove)
)

// Board is a 6x7 grid. Row 0 is the top row, row Rows-1 the bottom.
// Boards are values; Apply returns a modified copy.
type Board [Rows][Cols]Player

// Cell is a (row, column) coordinate.
type Cell struct {
	Row int
	Col int
}

// Move is a resolved drop.
type Move struct {
	Row    int
	Col    int
	Player Player
}

// Empty returns a board with no pieces.
func Empty() Board {
	return Board{}
}

// At returns the owner of (row, col), or None when out of bounds.
func (b Board) At(row, col int) Player {
	if !inBounds(row, col) {
		return None
	}
	return b[row][col]
}

// Apply drops a piece for player into column and returns the new board and the row it landed in.
func Apply(b Board, column int, player Player) (Board, int, error) {
	if !player.Valid() {
		return b, -1, ErrInvalidPlayer
	}
	if column < 0 || column >= Cols {
		return b, -1, ErrColumnOutOfRange
	}
	if b[0][column] != None {
		return b, -1, ErrColumnFull
	}

	for row := Rows - 1; row >= 0; row-- {
		if b[row][column] == None {
			b[row][column] = player
			return b, row, nil
		}
	}
	// unreachable: top cell was empty
	return b, -1, ErrColumnFull
}

// axes are the four line directions scanned from the last placed piece.
var axes = [4][2]int{
	{0, 1}, // horizontal
	{1, 0}, // vertical
	{1, 1}, // diagonal, top-left to bottom-right
	{1, -1},
}

// CheckWin looks at the four lines through (row, col) only. It returns the full
// contiguous run of the placed player's cells on the first axis that reaches
// WinLength, ordered along the axis, or nil when there is no win.
func CheckWin(b Board, row, col int) []Cell {
	mark := b.At(row, col)
	if mark == None {
		return nil
	}

	for _, d := range axes {
		// walk backward to the start of the run
		sr, sc := row, col
		for b.At(sr-d[0], sc-d[1]) == mark {
			sr -= d[0]
			sc -= d[1]
		}

		var run []Cell
		for r, c := sr, sc; b.At(r, c) == mark; r, c = r+d[0], c+d[1] {
			run = append(run, Cell{Row: r, Col: c})
		}

		if len(run) >= WinLength {
			return run
		}
	}
	return nil
}

// CheckDraw reports whether the top row is full. It is only meaningful after a
// move for which CheckWin returned nil.
func CheckDraw(b Board) bool {
	for col := 0; col < Cols; col++ {
		if b[0][col] == None {
			return false
		}
	}
	return true
}

// Height returns how many pieces are stacked in column.
func (b Board) Height(column int) int {
	n := 0
	for row := Rows - 1; row >= 0; row-- {
		if b[row][column] == None {
			break
		}
		n++
	}
	return n
}

func inBounds(row, col int) bool {
	return row >= 0 && row < Rows && col >= 0 && col < Cols
}
