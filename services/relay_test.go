package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"quizchat/models"

	"github.com/stretchr/testify/require"
)

type relayHarness struct {
	relay    *MessageRelay
	presence *PresenceRegistry
	chat     *RoomFabric
	store    *GormMessageStore
	blocks   *GormBlockList
}

func newRelayHarness(t *testing.T, game *GameService, chat *RoomFabric) *relayHarness {
	t.Helper()
	db := newTestDB(t)
	if chat == nil {
		chat = NewRoomFabric("chat", testLogger())
	}
	h := &relayHarness{
		presence: newTestPresence(nil),
		chat:     chat,
		store:    NewMessageStore(db),
		blocks:   NewBlockList(db),
	}
	h.relay = NewMessageRelay(MessageRelayConfig{
		Chat:             chat,
		Presence:         h.presence,
		Game:             game,
		Store:            h.store,
		Blocks:           h.blocks,
		Limiter:          NewRateLimiter(testLogger(), nil),
		Logger:           testLogger(),
		MaxMessageLength: 20,
		HistoryLimit:     50,
	})
	return h
}

func (h *relayHarness) register(t *testing.T, name string) (*Client, models.Identity) {
	t.Helper()
	c := newTestClient()
	identity, err := h.presence.Register(context.Background(), c, name)
	require.NoError(t, err)
	drainEvents(t, c)
	return c, identity
}

func TestRelay_RoomMessageReachesMembersWithSenderSnapshot(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	h := newRelayHarness(t, nil, nil)
	ann, annID := h.register(t, "Ann")
	ben, _ := h.register(t, "Ben")
	h.chat.Join(ann, "lobby")
	h.chat.Join(ben, "lobby")
	drainEvents(t, ann)

	req.NoError(h.relay.SendRoomMessage(ctx, ann, "lobby", "  hello  "))

	for _, c := range []*Client{ann, ben} {
		view := decodePayload[MessageView](t, expectEvent(t, c, EventReceiveMessage))
		req.Equal("hello", view.Content)
		req.Equal("lobby", view.Room)
		req.Equal(SenderView{ID: annID.ID, DisplayName: "Ann"}, view.Sender)
		req.False(view.System)
	}

	history, err := h.relay.History(ctx, "lobby")
	req.NoError(err)
	req.Len(history, 1)
	req.Equal("hello", history[0].Content)
}

func TestRelay_RoomMessageValidation(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	h := newRelayHarness(t, nil, nil)
	ann, _ := h.register(t, "Ann")
	h.chat.Join(ann, "lobby")

	req.ErrorIs(h.relay.SendRoomMessage(ctx, newTestClient(), "lobby", "hi"), ErrNotRegistered)
	req.ErrorIs(h.relay.SendRoomMessage(ctx, ann, "elsewhere", "hi"), ErrNotMember)
	req.ErrorIs(h.relay.SendRoomMessage(ctx, ann, "lobby", "   "), ErrEmptyMessage)
	req.ErrorIs(h.relay.SendRoomMessage(ctx, ann, "lobby", strings.Repeat("x", 21)), ErrMessageTooLong)

	muted := newTestClient()
	muted.setIdentity(models.Identity{ID: "u-9", DisplayName: "Muted", Blocked: true})
	h.chat.Join(muted, "lobby")
	req.ErrorIs(h.relay.SendRoomMessage(ctx, muted, "lobby", "hi"), ErrBlocked)

	req.Empty(eventsOfType(drainEvents(t, ann), EventReceiveMessage))
}

func TestRelay_ChatIsRateLimited(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	h := newRelayHarness(t, nil, nil)
	ann, _ := h.register(t, "Ann")
	h.chat.Join(ann, "lobby")

	for i := 0; i < 10; i++ {
		req.NoError(h.relay.SendRoomMessage(ctx, ann, "lobby", "spam"))
	}
	req.ErrorIs(h.relay.SendRoomMessage(ctx, ann, "lobby", "spam"), ErrRateLimited)
}

func TestRelay_PrivateMessageDeliveryAndNotification(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	h := newRelayHarness(t, nil, nil)
	ann, _ := h.register(t, "Ann")
	ben, benID := h.register(t, "Ben")

	req.NoError(h.relay.SendPrivateMessage(ctx, ann, benID.ID, "psst", ""))

	got := decodePayload[PrivateMessagePayload](t, expectEvent(t, ben, EventReceivePrivateMessage))
	req.Equal("psst", got.Message.Content)
	note := decodePayload[NotificationPayload](t, expectEvent(t, ben, EventNotification))
	req.Equal("Ann", note.From)
	req.Equal(got.Message.ID, note.MessageID)

	ack := decodePayload[PrivateMessagePayload](t, expectEvent(t, ann, EventPrivateMessageSent))
	req.Equal(got.Message.ID, ack.Message.ID)

	stored, err := h.store.Get(ctx, got.Message.ID)
	req.NoError(err)
	req.Equal(benID.ID, stored.RecipientID)
}

func TestRelay_PrivateMessageToOfflineRecipientIsStored(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	h := newRelayHarness(t, nil, nil)
	ann, _ := h.register(t, "Ann")

	req.NoError(h.relay.SendPrivateMessage(ctx, ann, "u-offline", "see you", ""))

	ack := decodePayload[PrivateMessagePayload](t, expectEvent(t, ann, EventPrivateMessageSent))
	_, err := h.store.Get(ctx, ack.Message.ID)
	req.NoError(err)
}

func TestRelay_PrivateMessageRefusedWhenRecipientBlocksSender(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	h := newRelayHarness(t, nil, nil)
	ann, annID := h.register(t, "Ann")
	ben, benID := h.register(t, "Ben")
	req.NoError(h.blocks.Block(ctx, benID.ID, annID.ID))
	drainEvents(t, ann)

	err := h.relay.SendPrivateMessage(ctx, ann, benID.ID, "hello?", "")

	req.ErrorIs(err, ErrRecipientBlocked)
	req.Empty(drainEvents(t, ben))
	req.Empty(drainEvents(t, ann))
}

func TestRelay_ReactionsBroadcastFullSet(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	h := newRelayHarness(t, nil, nil)
	ann, _ := h.register(t, "Ann")
	ben, benID := h.register(t, "Ben")
	h.chat.Join(ann, "lobby")
	h.chat.Join(ben, "lobby")
	req.NoError(h.relay.SendRoomMessage(ctx, ann, "lobby", "hello"))
	msg := decodePayload[MessageView](t, expectEvent(t, ben, EventReceiveMessage))

	set, err := h.relay.AddReaction(ctx, ben, msg.ID, "🔥")
	req.NoError(err)
	req.Equal(1, set["🔥"].Count)

	update := decodePayload[ReactionPayload](t, expectEvent(t, ann, EventReactionUpdated))
	req.Equal(msg.ID, update.MessageID)
	req.Equal([]string{benID.ID}, update.Reactions["🔥"].Identities)

	// toggling again clears it and still sends the whole (now empty) set
	_, err = h.relay.AddReaction(ctx, ben, msg.ID, "🔥")
	req.NoError(err)
	update = decodePayload[ReactionPayload](t, expectEvent(t, ann, EventReactionUpdated))
	req.Empty(update.Reactions)

	_, err = h.relay.AddReaction(ctx, ben, "missing", "🔥")
	req.ErrorIs(err, ErrMessageNotFound)
}

func TestRelay_MarkReadNotifiesSender(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	h := newRelayHarness(t, nil, nil)
	ann, _ := h.register(t, "Ann")
	ben, benID := h.register(t, "Ben")
	h.chat.Join(ann, "lobby")
	h.chat.Join(ben, "lobby")
	req.NoError(h.relay.SendRoomMessage(ctx, ann, "lobby", "hello"))
	msg := decodePayload[MessageView](t, expectEvent(t, ben, EventReceiveMessage))
	drainEvents(t, ann)

	req.NoError(h.relay.MarkRead(ctx, ben, msg.ID))

	read := decodePayload[MessageReadPayload](t, expectEvent(t, ann, EventMessageRead))
	req.Equal(msg.ID, read.MessageID)
	req.Equal(benID.ID, read.ReaderID)
}

func TestRelay_GameRoomAnswersAreNotEchoed(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	timings := fastTimings()
	timings.RevealPause = 5 * time.Second
	g := newGameHarness(t, timings, nil)
	h := newRelayHarness(t, g.svc, g.chat)

	observer, _ := g.player(t, "anon-1", "Watcher", false)
	ann, annID := g.player(t, "u-1", "Ann", true)
	expectEvent(t, observer, EventNewQuestion)

	// When Ann answers in the game room
	req.NoError(h.relay.SendRoomMessage(ctx, ann, gameRoom, "Paris"))

	// Then only the system message appears in chat
	events := collectUntil(t, observer, EventQuestionEnded)
	req.Len(eventsOfType(events, EventWinnerAnnounced), 1)
	for _, m := range eventsOfType(events, EventReceiveMessage) {
		req.NotEqual(annID.ID, decodePayload[MessageView](t, m).Sender.ID)
	}

	// and between rounds her messages are ordinary chat
	drainEvents(t, ann)
	req.NoError(h.relay.SendRoomMessage(ctx, ann, gameRoom, "gg"))
	view := decodePayload[MessageView](t, expectEvent(t, observer, EventReceiveMessage))
	req.Equal("gg", view.Content)
	req.Equal(annID.ID, view.Sender.ID)
}
