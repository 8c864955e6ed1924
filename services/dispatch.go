package services

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/go-playground/validator/v10"
)

type registerRequest struct {
	Name string `json:"name"`
}

type roomRequest struct {
	Room string `json:"room" validate:"required,max=100"`
}

type sendMessageRequest struct {
	Room string `json:"room" validate:"required,max=100"`
	Text string `json:"text"`
}

type channelRequest struct {
	Channel string `json:"channel" validate:"required,max=100"`
}

type reactionRequest struct {
	MessageID string `json:"messageId" validate:"required,max=64"`
	Emoji     string `json:"emoji" validate:"required,max=32"`
}

type markReadRequest struct {
	MessageID string `json:"messageId" validate:"required,max=64"`
}

type privateMessageRequest struct {
	RecipientID string `json:"recipientId" validate:"required,max=64"`
	Content     string `json:"content"`
	Media       string `json:"media" validate:"omitempty,url"`
}

// Dispatcher routes inbound socket messages to the presence, room, game and
// relay services and turns their errors into events for the sender.
type Dispatcher struct {
	presence *PresenceRegistry
	chat     *RoomFabric
	game     *GameService
	relay    *MessageRelay
	limiter  *RateLimiter
	validate *validator.Validate
	logger   *slog.Logger
}

func NewDispatcher(presence *PresenceRegistry, chat *RoomFabric, game *GameService, relay *MessageRelay, limiter *RateLimiter, logger *slog.Logger) *Dispatcher {
	presence.OnDetach(func(c *Client) {
		chat.LeaveAll(c)
		game.LeaveAll(c)
	})
	return &Dispatcher{
		presence: presence,
		chat:     chat,
		game:     game,
		relay:    relay,
		limiter:  limiter,
		validate: validator.New(),
		logger:   logger,
	}
}

func (d *Dispatcher) decode(raw json.RawMessage, v interface{}) error {
	if len(raw) == 0 {
		raw = json.RawMessage("{}")
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return errors.New("malformed payload")
	}
	return d.validate.Struct(v)
}

func (d *Dispatcher) Disconnect(c *Client) {
	d.presence.Unregister(c)
}

func (d *Dispatcher) HandleMessage(ctx context.Context, c *Client, msg InboundMessage) {
	if c.Closed() {
		return
	}

	switch msg.Type {
	case CmdPing:
		c.Emit(EventPong, "pong")
	case CmdRegister:
		d.handleRegister(ctx, c, msg.Payload)
	case CmdUpdateName:
		d.handleUpdateName(ctx, c, msg.Payload)
	case CmdJoinRoom:
		d.handleJoinRoom(ctx, c, msg.Payload)
	case CmdLeaveRoom:
		d.handleLeaveRoom(c, msg.Payload)
	case CmdSendMessage:
		var req sendMessageRequest
		if d.fail(c, d.decode(msg.Payload, &req)) {
			return
		}
		d.fail(c, d.relay.SendRoomMessage(ctx, c, req.Room, req.Text))
	case CmdSendPrivateMessage:
		var req privateMessageRequest
		if d.fail(c, d.decode(msg.Payload, &req)) {
			return
		}
		d.fail(c, d.relay.SendPrivateMessage(ctx, c, req.RecipientID, req.Content, req.Media))
	case CmdAddReaction:
		var req reactionRequest
		if d.fail(c, d.decode(msg.Payload, &req)) {
			return
		}
		_, err := d.relay.AddReaction(ctx, c, req.MessageID, req.Emoji)
		d.fail(c, err)
	case CmdMarkRead:
		var req markReadRequest
		if d.fail(c, d.decode(msg.Payload, &req)) {
			return
		}
		d.fail(c, d.relay.MarkRead(ctx, c, req.MessageID))
	case CmdJoinGameChannel, CmdLeaveGameChannel, CmdStartGame, CmdStopGame:
		d.handleGame(ctx, c, msg.Type, msg.Payload)
	default:
		c.Emit(EventError, ErrorPayload{Message: "unknown message type " + msg.Type})
	}
}

// fail reports err to the client and returns true if there was one.
func (d *Dispatcher) fail(c *Client, err error) bool {
	if err == nil {
		return false
	}
	var rej *Rejection
	if errors.As(err, &rej) {
		c.Emit(rej.Event(), RejectionPayload{Name: rej.Name, Reason: rej.Reason})
		return true
	}
	var verr validator.ValidationErrors
	if errors.As(err, &verr) {
		c.Emit(EventError, ErrorPayload{Message: "invalid payload: " + verr.Error()})
		return true
	}
	d.logger.Debug("request rejected", "client", c.ID(), "error", err)
	c.Emit(EventError, ErrorPayload{Message: err.Error()})
	return true
}

func (d *Dispatcher) handleRegister(ctx context.Context, c *Client, raw json.RawMessage) {
	var req registerRequest
	if d.fail(c, d.decode(raw, &req)) {
		return
	}
	if !d.limiter.Allow("conn:"+c.ID(), ActionPresence) {
		d.fail(c, ErrRateLimited)
		return
	}
	_, err := d.presence.Register(ctx, c, req.Name)
	d.fail(c, err)
}

func (d *Dispatcher) handleUpdateName(ctx context.Context, c *Client, raw json.RawMessage) {
	identity, ok := c.Identity()
	if !ok {
		d.fail(c, ErrNotRegistered)
		return
	}
	var req registerRequest
	if d.fail(c, d.decode(raw, &req)) {
		return
	}
	if !d.limiter.Allow(identity.ID, ActionPresence) {
		d.fail(c, ErrRateLimited)
		return
	}
	_, err := d.presence.UpdateDisplayName(ctx, identity.ID, req.Name)
	d.fail(c, err)
}

func (d *Dispatcher) handleJoinRoom(ctx context.Context, c *Client, raw json.RawMessage) {
	if _, ok := c.Identity(); !ok {
		d.fail(c, ErrNotRegistered)
		return
	}
	var req roomRequest
	if d.fail(c, d.decode(raw, &req)) {
		return
	}
	if !d.chat.Join(c, req.Room) {
		return
	}
	history, err := d.relay.History(ctx, req.Room)
	if err != nil {
		d.logger.Error("failed to load room history", "room", req.Room, "error", err)
		return
	}
	c.Emit(EventRoomHistory, RoomHistoryPayload{Room: req.Room, Messages: history})
}

func (d *Dispatcher) handleLeaveRoom(c *Client, raw json.RawMessage) {
	var req roomRequest
	if d.fail(c, d.decode(raw, &req)) {
		return
	}
	d.chat.Leave(c, req.Room)
}

func (d *Dispatcher) handleGame(ctx context.Context, c *Client, kind string, raw json.RawMessage) {
	identity, ok := c.Identity()
	if !ok {
		d.fail(c, ErrNotRegistered)
		return
	}
	var req channelRequest
	if err := d.decode(raw, &req); err != nil {
		c.Emit(EventGameError, GameErrorPayload{Message: "channel is required"})
		return
	}

	var err error
	switch kind {
	case CmdJoinGameChannel:
		err = d.game.Join(ctx, c, req.Channel)
	case CmdLeaveGameChannel:
		d.game.Leave(c, req.Channel)
	case CmdStartGame, CmdStopGame:
		if !identity.IsAdmin() {
			err = ErrForbidden
			break
		}
		if kind == CmdStartGame {
			err = d.game.Start(ctx, req.Channel)
		} else {
			err = d.game.Stop(ctx, req.Channel)
		}
	}
	if err != nil {
		d.logger.Warn("game request failed", "channel", req.Channel, "type", kind, "error", err)
		c.Emit(EventGameError, GameErrorPayload{Channel: req.Channel, Message: err.Error()})
	}
}
