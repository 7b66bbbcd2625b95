package handler

import (
	"github.com/palemoky/crisis-arena/internal/protocol"
)

func (h *Handler) handleStartGame(c Client, msg *protocol.Message) {
	payload, err := protocol.ParsePayload[protocol.StartGamePayload](msg)
	if err != nil {
		c.SendMessage(protocol.NewErrorMessage(protocol.ErrCodeInvalidMsg))
		return
	}

	roomID := payload.RoomID
	if roomID == "" {
		roomID = c.GetRoom()
	}

	if err := h.sessions.StartGame(roomID, c.GetName()); err != nil {
		sendError(c, err)
	}
}

func (h *Handler) handleSubmitDecision(c Client, msg *protocol.Message) {
	payload, err := protocol.ParsePayload[protocol.SubmitDecisionPayload](msg)
	if err != nil {
		c.SendMessage(protocol.NewErrorMessage(protocol.ErrCodeInvalidMsg))
		return
	}

	roomID := payload.RoomID
	if roomID == "" {
		roomID = c.GetRoom()
	}

	if err := h.sessions.SubmitDecision(roomID, c.GetName(), payload.Decision); err != nil {
		sendError(c, err)
	}
}

func (h *Handler) handleGetGameState(c Client, msg *protocol.Message) {
	payload, err := protocol.ParsePayload[protocol.GetGameStatePayload](msg)
	if err != nil {
		c.SendMessage(protocol.NewErrorMessage(protocol.ErrCodeInvalidMsg))
		return
	}

	roomID := payload.RoomID
	if roomID == "" {
		roomID = c.GetRoom()
	}

	state, err := h.sessions.GetGameState(roomID, c.GetName())
	if err != nil {
		sendError(c, err)
		return
	}
	c.SendMessage(protocol.MustNewMessage(protocol.MsgGameState, state))
}

func (h *Handler) handleEndGame(c Client, msg *protocol.Message) {
	payload, err := protocol.ParsePayload[protocol.EndGamePayload](msg)
	if err != nil {
		c.SendMessage(protocol.NewErrorMessage(protocol.ErrCodeInvalidMsg))
		return
	}

	roomID := payload.RoomID
	if roomID == "" {
		roomID = c.GetRoom()
	}

	if err := h.sessions.EndGame(roomID, c.GetName()); err != nil {
		sendError(c, err)
	}
}
