package gateway

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/connectfour/go/internal/connectfour/board"
	"github.com/mcdev12/connectfour/go/internal/connectfour/protocol"
	"github.com/mcdev12/connectfour/go/internal/connectfour/room"
)

type binding struct {
	room     *room.Room
	playerID string
}

// Handler dispatches client frames to the registry and the bound room.
type Handler struct {
	registry    *room.Registry
	connections *ConnectionManager
}

func NewHandler(registry *room.Registry, cm *ConnectionManager) *Handler {
	return &Handler{registry: registry, connections: cm}
}

// HandleMessage processes one frame. A panic is contained to this message.
func (h *Handler) HandleMessage(c *Connection, data []byte) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Error().
				Str("connection_id", c.ID).
				Str("panic", fmt.Sprint(rec)).
				Msg("recovered from panic while handling message")
			c.SendMessage(protocol.NewError("internal error"))
		}
	}()

	msg, err := protocol.ParseClientMessage(data)
	if err != nil {
		h.replyError(c, err)
		return
	}

	log.Debug().
		Str("connection_id", c.ID).
		Str("type", string(msg.Type)).
		Msg("received client message")

	switch msg.Type {
	case protocol.TypeCreateRoom:
		err = h.createRoom(c, msg)
	case protocol.TypeJoinRoom:
		err = h.joinRoom(c, msg)
	case protocol.TypeLeaveRoom:
		if c.binding == nil {
			err = room.ErrNotInRoom
		} else {
			h.leaveCurrent(c)
		}
	case protocol.TypeGameMove:
		column := *msg.Column
		err = h.withRoom(c, func(rm *room.Room, playerID string) error {
			return rm.Move(playerID, column)
		})
	case protocol.TypeGameReset:
		err = h.withRoom(c, func(rm *room.Room, playerID string) error {
			return rm.Reset(playerID)
		})
	}

	if err != nil {
		h.replyError(c, err)
	}
}

// HandleDisconnect resolves the connection's seat as if the player had left.
func (h *Handler) HandleDisconnect(c *Connection) {
	if c.binding != nil {
		log.Info().
			Str("connection_id", c.ID).
			Str("room_code", c.binding.room.Code()).
			Msg("player disconnected")
	}
	h.leaveCurrent(c)
}

func (h *Handler) createRoom(c *Connection, msg protocol.ClientMessage) error {
	h.leaveCurrent(c)

	playerID := uuid.NewString()
	h.connections.bindPlayer(playerID, c)

	rm, p, err := h.registry.Create(playerID, msg.Username)
	if err != nil {
		h.connections.unbindPlayer(playerID)
		return err
	}
	c.binding = &binding{room: rm, playerID: p.ID}
	return nil
}

func (h *Handler) joinRoom(c *Connection, msg protocol.ClientMessage) error {
	h.leaveCurrent(c)

	playerID := uuid.NewString()
	h.connections.bindPlayer(playerID, c)

	rm, p, err := h.registry.Join(msg.RoomID, playerID, msg.Username)
	if err != nil {
		h.connections.unbindPlayer(playerID)
		return err
	}
	c.binding = &binding{room: rm, playerID: p.ID}
	return nil
}

func (h *Handler) withRoom(c *Connection, fn func(rm *room.Room, playerID string) error) error {
	b := c.binding
	if b == nil {
		return room.ErrNotInRoom
	}
	err := fn(b.room, b.playerID)
	if errors.Is(err, room.ErrNotInRoom) {
		// the room was reclaimed underneath us
		c.binding = nil
		h.connections.unbindPlayer(b.playerID)
	}
	return err
}

func (h *Handler) leaveCurrent(c *Connection) {
	b := c.binding
	if b == nil {
		return
	}
	c.binding = nil
	h.connections.unbindPlayer(b.playerID)

	if err := b.room.Leave(b.playerID); err != nil && !errors.Is(err, room.ErrNotInRoom) {
		log.Warn().Err(err).Str("room_code", b.room.Code()).Msg("failed to leave room")
	}
}

func (h *Handler) replyError(c *Connection, err error) {
	log.Debug().Err(err).Str("connection_id", c.ID).Msg("rejecting client message")
	c.SendMessage(protocol.NewError(errorMessage(err)))
}

// errorMessage maps domain errors to client-facing text.
func errorMessage(err error) string {
	switch {
	case errors.Is(err, room.ErrRoomNotFound):
		return "Room not found"
	case errors.Is(err, room.ErrRoomFull):
		return "Room is full"
	case errors.Is(err, room.ErrNotInRoom):
		return "not in a room"
	case errors.Is(err, room.ErrCodeSpaceExhausted):
		return "could not create a room, please try again"
	case errors.Is(err, board.ErrInvalidMove), errors.Is(err, protocol.ErrMalformedMessage):
		return err.Error()
	default:
		return "internal error"
	}
}
