package websocket

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rocketscienceinc/tictactoe-live/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-live/internal/entity"
)

// rejections are caller-correctable and go back to the originating
// connection only; anything else tears the connection down.
var rejections = []error{
	apperror.ErrGameFinished,
	apperror.ErrGameIsNotStarted,
	apperror.ErrNotYourTurn,
	apperror.ErrInvalidCell,
	apperror.ErrCellOccupied,
	apperror.ErrSessionFull,
}

func isRejection(err error) bool {
	for _, rejection := range rejections {
		if errors.Is(err, rejection) {
			return true
		}
	}
	return false
}

func (that *Server) handleJoin(client *Client, msg *Message) error {
	log := that.logger.With("method", "handleJoin")

	var payloadReq JoinPayload
	if err := json.Unmarshal(msg.Payload, &payloadReq); err != nil {
		return fmt.Errorf("failed to unmarshal payload: %w", err)
	}

	if payloadReq.ID == "" || payloadReq.Name == "" {
		log.Error("session id or name is missing in payload")
		return client.sendError(msg.Action, "session id and name are required")
	}

	if client.sess != nil {
		return client.sendError(msg.Action, "already in a session")
	}

	sess := that.registry.GetOrCreate(payloadReq.ID)

	mark, err := sess.Bind(payloadReq.Name, client)
	if errors.Is(err, apperror.ErrSessionFull) {
		log.Info("join rejected, session is full", "sessionID", payloadReq.ID, "name", payloadReq.Name)
		return client.sendError(msg.Action, err.Error())
	}
	if err != nil {
		return fmt.Errorf("failed to bind player: %w", err)
	}

	client.sess = sess
	client.mark = mark

	payloadResp := ResponsePayload{
		Player: &entity.PlayerSlot{Name: payloadReq.Name, Mark: mark},
	}

	data, err := newMessage(msg.Action, payloadResp)
	if err != nil {
		return err
	}

	select {
	case client.send <- data:
	default:
		return errors.New("send buffer full during join")
	}

	log.Info("player bound to session", "sessionID", sess.ID, "name", payloadReq.Name, "mark", mark)

	return nil
}

func (that *Server) handleTurn(client *Client, msg *Message) error {
	log := that.logger.With("method", "handleTurn")

	var payloadReq TurnPayload
	if err := json.Unmarshal(msg.Payload, &payloadReq); err != nil {
		return fmt.Errorf("failed to unmarshal payload: %w", err)
	}

	if client.sess == nil {
		return client.sendError(msg.Action, "join a session first")
	}

	if payloadReq.Cell == nil {
		return client.sendError(msg.Action, "cell is required")
	}

	err := client.sess.MakeTurn(client.mark, *payloadReq.Cell)
	if isRejection(err) {
		log.Info("turn rejected", "sessionID", client.sess.ID, "cell", *payloadReq.Cell, "error", err)
		return client.sendError(msg.Action, err.Error())
	}
	if err != nil {
		return fmt.Errorf("failed to make turn: %w", err)
	}

	// the accepted move was already broadcast to both players

	return nil
}

func (that *Server) handleReset(client *Client, msg *Message) error {
	if client.sess == nil {
		return client.sendError(msg.Action, "join a session first")
	}

	client.sess.Reset()

	that.logger.Info("session reset", "method", "handleReset", "sessionID", client.sess.ID)

	return nil
}
