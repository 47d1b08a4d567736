package protocol

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	MaxRoomKeyLength = 64
	MaxNameLength    = 32
	BoardCells       = 9
)

var (
	ErrMissingField = errors.New("missing required field")
	ErrInvalidField = errors.New("invalid field")
)

type JoinRoom struct {
	RoomKey     string `json:"roomKey"`
	DisplayName string `json:"displayName,omitempty"`
}

func (that *JoinRoom) Validate() error {
	key, err := normalizeRoomKey(that.RoomKey)
	if err != nil {
		return err
	}
	that.RoomKey = key

	name, err := normalizeName(that.DisplayName)
	if err != nil {
		return err
	}
	that.DisplayName = name

	return nil
}

type SetName struct {
	RoomKey string `json:"roomKey"`
	Name    string `json:"name"`
}

func (that *SetName) Validate() error {
	key, err := normalizeRoomKey(that.RoomKey)
	if err != nil {
		return err
	}
	that.RoomKey = key

	name, err := normalizeName(that.Name)
	if err != nil {
		return err
	}
	if name == "" {
		return fmt.Errorf("%w: name", ErrMissingField)
	}
	that.Name = name

	return nil
}

type Move struct {
	RoomKey   string `json:"roomKey"`
	CellIndex *int   `json:"cellIndex"`
	Mark      string `json:"mark"`
}

func (that *Move) Validate() error {
	key, err := normalizeRoomKey(that.RoomKey)
	if err != nil {
		return err
	}
	that.RoomKey = key

	return validateCellAndMark(that.CellIndex, that.Mark)
}

// Cell is only meaningful after Validate.
func (that *Move) Cell() int {
	return *that.CellIndex
}

type Restart struct {
	RoomKey string `json:"roomKey"`
}

func (that *Restart) Validate() error {
	key, err := normalizeRoomKey(that.RoomKey)
	if err != nil {
		return err
	}
	that.RoomKey = key

	return nil
}

type LocalMove struct {
	CellIndex *int   `json:"cellIndex"`
	Mark      string `json:"mark"`
}

func (that *LocalMove) Validate() error {
	return validateCellAndMark(that.CellIndex, that.Mark)
}

func (that *LocalMove) Cell() int {
	return *that.CellIndex
}

type LocalRestart struct{}

func (that *LocalRestart) Validate() error {
	return nil
}

func normalizeRoomKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", fmt.Errorf("%w: roomKey", ErrMissingField)
	}

	if utf8.RuneCountInString(key) > MaxRoomKeyLength {
		return "", fmt.Errorf("%w: roomKey longer than %d", ErrInvalidField, MaxRoomKeyLength)
	}

	return key, nil
}

func normalizeName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if utf8.RuneCountInString(name) > MaxNameLength {
		return "", fmt.Errorf("%w: name longer than %d", ErrInvalidField, MaxNameLength)
	}

	return name, nil
}

func validateCellAndMark(cell *int, mark string) error {
	if cell == nil {
		return fmt.Errorf("%w: cellIndex", ErrMissingField)
	}

	if *cell < 0 || *cell >= BoardCells {
		return fmt.Errorf("%w: cellIndex %d", ErrInvalidField, *cell)
	}

	switch mark {
	case "":
		return fmt.Errorf("%w: mark", ErrMissingField)
	case "X", "O":
		return nil
	default:
		return fmt.Errorf("%w: mark %q", ErrInvalidField, mark)
	}
}
