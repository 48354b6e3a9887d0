package entity

import (
	"fmt"

	"github.com/rocketscienceinc/tictactoe-live/internal/apperror"
)

const (
	StatusWaiting  = "waiting"
	StatusOngoing  = "ongoing"
	StatusFinished = "finished"

	PlayerX   = "X"
	PlayerO   = "O"
	PlayerTie = "-"

	EmptyCell = ""
)

var WinCombos = [][3]int{
	{0, 1, 2},
	{3, 4, 5},
	{6, 7, 8},
	{0, 3, 6},
	{1, 4, 7},
	{2, 5, 8},
	{0, 4, 8},
	{2, 4, 6},
}

// Game is the pure board state machine. It knows nothing about
// connections, sessions or scores; callers serialize access to it.
type Game struct {
	Board  [9]string `json:"board"`
	Turn   string    `json:"player_turn"`
	Winner string    `json:"winner,omitempty"`
	Status string    `json:"status"`
}

func NewGame() *Game {
	return &Game{
		Board:  [9]string{EmptyCell, EmptyCell, EmptyCell, EmptyCell, EmptyCell, EmptyCell, EmptyCell, EmptyCell, EmptyCell},
		Turn:   PlayerX,
		Status: StatusWaiting,
	}
}

// MakeTurn - applies one move for the given mark. Checks run in a fixed
// order (status, turn, bounds, occupancy) so the same rejection is
// reported no matter how many of them hold. A rejected move leaves the
// game untouched.
func (that *Game) MakeTurn(playerMark string, cell int) error {
	if err := that.validateMove(playerMark, cell); err != nil {
		return err
	}

	that.Board[cell] = playerMark
	that.updateGameState(playerMark)

	return nil
}

func (that *Game) validateMove(playerMark string, cell int) error {
	switch {
	case that.IsFinished():
		return apperror.ErrGameFinished
	case that.IsWaiting():
		return apperror.ErrGameIsNotStarted
	}

	if that.Turn != playerMark {
		return apperror.ErrNotYourTurn
	}

	if cell < 0 || cell >= len(that.Board) {
		return fmt.Errorf("%w: cell %d", apperror.ErrInvalidCell, cell)
	}

	if that.Board[cell] != EmptyCell {
		return apperror.ErrCellOccupied
	}

	return nil
}

// updateGameState - checks the game result after a move and either
// finishes the game or passes the turn to the other mark.
func (that *Game) updateGameState(playerMark string) {
	switch winner := that.DetermineGameResult(); winner {
	// one player wins
	case PlayerX, PlayerO:
		that.Winner = winner
		that.Status = StatusFinished
	// tie
	case PlayerTie:
		that.Winner = PlayerTie
		that.Status = StatusFinished
	// game continue
	default:
		that.Turn = ToggleMark(playerMark)
	}
}

// DetermineGameResult - returns the winning mark, PlayerTie for a full
// board with no winner, or "" while the game can continue.
func (that *Game) DetermineGameResult() string {
	for _, combo := range WinCombos {
		a, b, c := that.Board[combo[0]], that.Board[combo[1]], that.Board[combo[2]]
		if a != EmptyCell && a == b && b == c {
			return a
		}
	}

	// the game will continue until all the squares are full
	for _, cell := range that.Board {
		if cell == EmptyCell {
			return ""
		}
	}

	return PlayerTie
}

// Reset - clears the board for a rematch. The next game always opens
// with X; the status depends on whether both seats are still taken.
func (that *Game) Reset(bothSeated bool) {
	for i := range that.Board {
		that.Board[i] = EmptyCell
	}

	that.Turn = PlayerX
	that.Winner = ""

	if bothSeated {
		that.Status = StatusOngoing
	} else {
		that.Status = StatusWaiting
	}
}

func (that *Game) IsFinished() bool {
	return that.Status == StatusFinished
}

func (that *Game) IsOngoing() bool {
	return that.Status == StatusOngoing
}

func (that *Game) IsWaiting() bool {
	return that.Status == StatusWaiting
}

func ToggleMark(currentMark string) string {
	if currentMark == PlayerX {
		return PlayerO
	}
	return PlayerX
}
