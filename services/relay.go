package services

import (
	"context"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"quizchat/models"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

// MessageRelay validates, persists and fans out chat traffic.
type MessageRelay struct {
	chat      *RoomFabric
	presence  *PresenceRegistry
	game      *GameService
	store     MessageStore
	blocks    BlockList
	limiter   *RateLimiter
	logger    *slog.Logger
	maxLength int
	history   int
	now       func() time.Time

	reactionLocks *keyLocker
}

type MessageRelayConfig struct {
	Chat             *RoomFabric
	Presence         *PresenceRegistry
	Game             *GameService
	Store            MessageStore
	Blocks           BlockList
	Limiter          *RateLimiter
	Logger           *slog.Logger
	MaxMessageLength int
	HistoryLimit     int
}

func NewMessageRelay(cfg MessageRelayConfig) *MessageRelay {
	return &MessageRelay{
		chat:          cfg.Chat,
		presence:      cfg.Presence,
		game:          cfg.Game,
		store:         cfg.Store,
		blocks:        cfg.Blocks,
		limiter:       cfg.Limiter,
		logger:        cfg.Logger,
		maxLength:     cfg.MaxMessageLength,
		history:       cfg.HistoryLimit,
		now:           time.Now,
		reactionLocks: newKeyLocker(),
	}
}

func (r *MessageRelay) sender(c *Client) (models.Identity, error) {
	identity, ok := c.Identity()
	if !ok {
		return models.Identity{}, ErrNotRegistered
	}
	if identity.Blocked {
		return models.Identity{}, ErrBlocked
	}
	return identity, nil
}

func (r *MessageRelay) validate(text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyMessage
	}
	if utf8.RuneCountInString(text) > r.maxLength {
		return "", ErrMessageTooLong
	}
	return text, nil
}

// SendRoomMessage relays a message to a room the sender has joined. In a
// game room the message is offered to the game first and is not echoed when
// it was taken as an answer.
func (r *MessageRelay) SendRoomMessage(ctx context.Context, c *Client, room, text string) error {
	identity, err := r.sender(c)
	if err != nil {
		return err
	}
	if !r.chat.IsMember(c, room) {
		return ErrNotMember
	}
	text, err = r.validate(text)
	if err != nil {
		return err
	}

	if r.game != nil && r.game.IsGameRoom(room) {
		if r.game.OfferAnswer(ctx, identity, room, text) {
			return nil
		}
	}

	if !r.limiter.Allow(identity.ID, ActionChat) {
		return ErrRateLimited
	}

	msg := models.ChatMessage{
		ID:         uuid.NewString(),
		Room:       room,
		SenderID:   identity.ID,
		SenderName: identity.DisplayName,
		Content:    text,
		CreatedAt:  r.now(),
	}
	if err := r.store.Append(ctx, &msg); err != nil {
		r.logger.Error("failed to store room message", "room", room, "sender", identity.ID, "error", err)
	}

	r.chat.Broadcast(room, EventReceiveMessage, newMessageView(msg), nil)
	return nil
}

// SendPrivateMessage stores a direct message and delivers it if the
// recipient is online.
func (r *MessageRelay) SendPrivateMessage(ctx context.Context, c *Client, recipientID, content, mediaURL string) error {
	identity, err := r.sender(c)
	if err != nil {
		return err
	}
	content = strings.TrimSpace(content)
	if content == "" && mediaURL == "" {
		return ErrEmptyMessage
	}
	if utf8.RuneCountInString(content) > r.maxLength {
		return ErrMessageTooLong
	}
	if !r.limiter.Allow(identity.ID, ActionPrivate) {
		return ErrRateLimited
	}

	blocked, err := r.blocks.IsBlocked(ctx, recipientID, identity.ID)
	if err != nil {
		return err
	}
	if blocked {
		return ErrRecipientBlocked
	}

	msg := models.ChatMessage{
		ID:          uuid.NewString(),
		SenderID:    identity.ID,
		SenderName:  identity.DisplayName,
		RecipientID: recipientID,
		Content:     content,
		MediaURL:    mediaURL,
		CreatedAt:   r.now(),
	}
	if err := r.store.Append(ctx, &msg); err != nil {
		return err
	}

	payload := PrivateMessagePayload{Message: newMessageView(msg), RecipientID: recipientID}
	if to, ok := r.presence.Lookup(recipientID); ok {
		to.Emit(EventReceivePrivateMessage, payload)
		to.Emit(EventNotification, NotificationPayload{
			Kind:      "privateMessage",
			From:      identity.DisplayName,
			MessageID: msg.ID,
			Preview:   preview(content, 80),
		})
	}
	c.Emit(EventPrivateMessageSent, payload)
	return nil
}

func preview(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "…"
}

// AddReaction toggles the identity's emoji on a message and broadcasts the
// message's whole reaction set.
func (r *MessageRelay) AddReaction(ctx context.Context, c *Client, messageID, emoji string) (map[string]ReactionSummary, error) {
	identity, err := r.sender(c)
	if err != nil {
		return nil, err
	}
	if !r.limiter.Allow(identity.ID, ActionReaction) {
		return nil, ErrRateLimited
	}

	msg, err := r.store.Get(ctx, messageID)
	if err != nil {
		return nil, err
	}

	unlock := r.reactionLocks.Lock(messageID)
	reactions, err := r.store.ToggleReaction(ctx, messageID, identity.ID, emoji)
	if err == nil {
		payload := ReactionPayload{MessageID: messageID, Reactions: reactions}
		if msg.IsPrivate() {
			for _, id := range []string{msg.SenderID, msg.RecipientID} {
				if to, ok := r.presence.Lookup(id); ok {
					to.Emit(EventReactionUpdated, payload)
				}
			}
		} else {
			r.chat.Broadcast(msg.Room, EventReactionUpdated, payload, nil)
		}
	}
	unlock()
	if err != nil {
		return nil, err
	}
	return reactions, nil
}

// MarkRead records that the reader saw a message and tells the sender.
func (r *MessageRelay) MarkRead(ctx context.Context, c *Client, messageID string) error {
	identity, err := r.sender(c)
	if err != nil {
		return err
	}
	msg, err := r.store.Get(ctx, messageID)
	if err != nil {
		return err
	}
	if msg.SenderID == identity.ID {
		return nil
	}
	receipt, err := r.store.MarkRead(ctx, messageID, identity.ID, r.now())
	if err != nil {
		return err
	}
	if to, ok := r.presence.Lookup(msg.SenderID); ok {
		to.Emit(EventMessageRead, MessageReadPayload{
			MessageID: messageID,
			ReaderID:  identity.ID,
			ReadAt:    receipt.ReadAt,
		})
	}
	return nil
}

// History returns the last messages of a room, oldest first.
func (r *MessageRelay) History(ctx context.Context, room string) ([]MessageView, error) {
	msgs, err := r.store.Recent(ctx, room, r.history)
	if err != nil {
		return nil, err
	}
	return lo.Map(msgs, func(m models.ChatMessage, _ int) MessageView { return newMessageView(m) }), nil
}
