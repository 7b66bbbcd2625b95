package handler

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/palemoky/crisis-arena/internal/ai"
	"github.com/palemoky/crisis-arena/internal/apperrors"
	"github.com/palemoky/crisis-arena/internal/game/room"
	"github.com/palemoky/crisis-arena/internal/protocol"
)

// newRoomID 生成短房间 ID，够短方便口头传播
func newRoomID() string {
	return uuid.New().String()[:8]
}

func (h *Handler) handleJoin(c Client, msg *protocol.Message) {
	payload, err := protocol.ParsePayload[protocol.JoinPayload](msg)
	if err != nil {
		c.SendMessage(protocol.NewErrorMessage(protocol.ErrCodeInvalidMsg))
		return
	}

	if payload.Username != "" {
		c.SetName(payload.Username)
	}
	name := c.GetName()
	if name == "" {
		c.SendMessage(protocol.NewErrorMessageWithText(protocol.ErrCodeValidation, "username is required"))
		return
	}
	if c.GetRoom() != "" {
		sendError(c, apperrors.ErrAlreadyInRoom)
		return
	}

	var r *room.Room
	switch payload.Option {
	case "create":
		roomName := payload.RoomName
		if roomName == "" {
			roomName = fmt.Sprintf("%s's room", name)
		}
		theme := payload.RoomTheme
		if _, known := ai.Themes[theme]; !known {
			theme = ai.DefaultTheme
		}
		r, err = h.rooms.Create(newRoomID(), name, roomName, theme, payload.MaxPlayers)
	case "join":
		r, err = h.rooms.Join(payload.Room, name)
	case "random":
		r, err = h.rooms.JoinRandom(name)
	default:
		c.SendMessage(protocol.NewErrorMessageWithText(protocol.ErrCodeValidation, "option must be create, join or random"))
		return
	}
	if err != nil {
		sendError(c, err)
		return
	}

	c.SetRoom(r.ID)
	c.SendMessage(protocol.MustNewMessage(protocol.MsgRoomJoined, protocol.RoomJoinedPayload{
		RoomID:     r.ID,
		RoomName:   r.Name,
		Theme:      r.Theme,
		MaxPlayers: r.Capacity,
		Host:       r.Host(),
		Members:    r.Members,
	}))

	// 通知房间里的其他人
	joined := protocol.MustNewMessage(protocol.MsgPlayerJoined, protocol.PlayerJoinedPayload{
		Username: name,
		Message:  fmt.Sprintf("%s joined the room", name),
	})
	for _, m := range r.Members {
		if m != name {
			h.dir.SendToUser(m, joined)
		}
	}
}

func (h *Handler) handleLeave(c Client, msg *protocol.Message) {
	payload, err := protocol.ParsePayload[protocol.LeavePayload](msg)
	if err != nil {
		c.SendMessage(protocol.NewErrorMessage(protocol.ErrCodeInvalidMsg))
		return
	}

	roomID := payload.Room
	if roomID == "" {
		roomID = c.GetRoom()
	}
	name := c.GetName()

	deleted, err := h.rooms.Leave(roomID, name)
	if err != nil {
		sendError(c, err)
		return
	}
	c.SetRoom("")

	if deleted {
		return
	}
	r, ok := h.rooms.Get(roomID)
	if !ok {
		return
	}
	left := protocol.MustNewMessage(protocol.MsgPlayerLeft, protocol.PlayerLeftPayload{
		Username: name,
		Message:  fmt.Sprintf("%s left the room", name),
	})
	for _, m := range r.Members {
		h.dir.SendToUser(m, left)
	}
}

func (h *Handler) handleDeleteRoom(c Client, msg *protocol.Message) {
	payload, err := protocol.ParsePayload[protocol.DeleteRoomPayload](msg)
	if err != nil {
		c.SendMessage(protocol.NewErrorMessage(protocol.ErrCodeInvalidMsg))
		return
	}

	roomID := payload.Room
	if roomID == "" {
		roomID = c.GetRoom()
	}

	r, err := h.rooms.Delete(roomID, c.GetName())
	if err != nil {
		sendError(c, err)
		return
	}

	deletedMsg := protocol.MustNewMessage(protocol.MsgRoomDeleted, protocol.RoomDeletedPayload{
		RoomID:  r.ID,
		Message: "The room was deleted by the host",
	})
	for _, m := range r.Members {
		h.dir.SendToUser(m, deletedMsg)
		if mc := h.dir.GetClientByName(m); mc != nil {
			mc.SetRoom("")
		}
	}
}

func (h *Handler) handleGetRooms(c Client) {
	open := h.rooms.ListOpen()
	items := make([]protocol.RoomListItem, 0, len(open))
	for _, r := range open {
		items = append(items, protocol.RoomListItem{
			RoomID:      r.ID,
			RoomName:    r.Name,
			Theme:       r.Theme,
			PlayerCount: len(r.Members),
			MaxPlayers:  r.Capacity,
		})
	}
	c.SendMessage(protocol.MustNewMessage(protocol.MsgAvailableRooms, protocol.AvailableRoomsPayload{
		Rooms: items,
	}))
}
