package websocket

import (
	"encoding/json"
	"fmt"

	"github.com/rocketscienceinc/tictactoe-live/internal/entity"
	"github.com/rocketscienceinc/tictactoe-live/internal/session"
)

const (
	actionJoin  = "game:join"
	actionTurn  = "game:turn"
	actionReset = "game:reset"
	actionState = "game:state"
)

// Message represents a WebSocket message with an action type and a payload.
type Message struct {
	Action  string          `json:"action"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// JoinPayload carries the caller-supplied session id and player name.
// Both are opaque strings; the name doubles as the reconnection key.
type JoinPayload struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// TurnPayload carries the target cell, 0-8 row-major. A pointer
// distinguishes a missing cell from a legal move to cell 0.
type TurnPayload struct {
	Cell *int `json:"cell"`
}

type ResponsePayload struct {
	Player *entity.PlayerSlot `json:"player,omitempty"`
	Game   *session.Snapshot  `json:"game,omitempty"`
	Error  string             `json:"error,omitempty"`
}

func newMessage(action string, payload ResponsePayload) ([]byte, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	responseBytes, err := json.Marshal(Message{
		Action:  action,
		Payload: payloadBytes,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal response: %w", err)
	}

	return responseBytes, nil
}
