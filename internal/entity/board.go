package entity

import (
	"fmt"

	"github.com/rocketscienceinc/tictactoe-lobby/internal/apperror"
)

const BoardSize = 3

// Mark is the content of a single cell.
type Mark uint8

const (
	Empty Mark = iota
	MarkX
	MarkO
)

func (m Mark) String() string {
	switch m {
	case MarkX:
		return "X"
	case MarkO:
		return "O"
	default:
		return "-"
	}
}

// Opponent returns the other player's mark. Empty has no opponent.
func (m Mark) Opponent() Mark {
	switch m {
	case MarkX:
		return MarkO
	case MarkO:
		return MarkX
	default:
		return Empty
	}
}

type OutcomeKind int

const (
	Ongoing OutcomeKind = iota
	Win
	Draw
)

type Outcome struct {
	Kind OutcomeKind
	Mark Mark // set only for Win
}

// WinLines lists the 3 rows, 3 columns and 2 diagonals as (row, col) pairs.
var WinLines = [8][3][2]int{
	{{0, 0}, {0, 1}, {0, 2}},
	{{1, 0}, {1, 1}, {1, 2}},
	{{2, 0}, {2, 1}, {2, 2}},
	{{0, 0}, {1, 0}, {2, 0}},
	{{0, 1}, {1, 1}, {2, 1}},
	{{0, 2}, {1, 2}, {2, 2}},
	{{0, 0}, {1, 1}, {2, 2}},
	{{0, 2}, {1, 1}, {2, 0}},
}

type Board [BoardSize][BoardSize]Mark

func inBounds(row, col int) bool {
	return row >= 0 && row < BoardSize && col >= 0 && col < BoardSize
}

// Place - writes mark into an empty cell.
func (that *Board) Place(row, col int, mark Mark) error {
	if !inBounds(row, col) {
		return fmt.Errorf("%w: row %d, col %d", apperror.ErrOutOfBounds, row, col)
	}

	if mark != MarkX && mark != MarkO {
		return fmt.Errorf("%w: %d", apperror.ErrInvalidMark, mark)
	}

	if that[row][col] != Empty {
		return apperror.ErrCellOccupied
	}

	that[row][col] = mark

	return nil
}

// CheckOutcome - a completed line wins even on a full board.
func (that *Board) CheckOutcome() Outcome {
	for _, line := range WinLines {
		a := that[line[0][0]][line[0][1]]
		b := that[line[1][0]][line[1][1]]
		c := that[line[2][0]][line[2][1]]

		if a != Empty && a == b && b == c {
			return Outcome{Kind: Win, Mark: a}
		}
	}

	for _, row := range that {
		for _, cell := range row {
			if cell == Empty {
				return Outcome{Kind: Ongoing}
			}
		}
	}

	return Outcome{Kind: Draw}
}

// Rows - renders the board as three strings of '-', 'X' and 'O'.
func (that *Board) Rows() [BoardSize]string {
	var rows [BoardSize]string

	for i, row := range that {
		buf := make([]byte, 0, BoardSize)
		for _, cell := range row {
			buf = append(buf, cell.String()...)
		}
		rows[i] = string(buf)
	}

	return rows
}

// ParseBoard - the inverse of Rows.
func ParseBoard(rows [BoardSize]string) (Board, error) {
	var board Board

	for i, row := range rows {
		if len(row) != BoardSize {
			return Board{}, fmt.Errorf("row %d has length %d", i, len(row))
		}

		for j := range BoardSize {
			switch row[j] {
			case 'X':
				board[i][j] = MarkX
			case 'O':
				board[i][j] = MarkO
			case '-':
				board[i][j] = Empty
			default:
				return Board{}, fmt.Errorf("%w: %q at row %d", apperror.ErrInvalidMark, row[j], i)
			}
		}
	}

	return board, nil
}
