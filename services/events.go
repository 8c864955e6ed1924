package services

import (
	"time"

	"quizchat/models"
)

// Inbound message types.
const (
	CmdRegister           = "register"
	CmdUpdateName         = "updateName"
	CmdJoinRoom           = "joinRoom"
	CmdLeaveRoom          = "leaveRoom"
	CmdSendMessage        = "sendMessage"
	CmdJoinGameChannel    = "joinGameChannel"
	CmdLeaveGameChannel   = "leaveGameChannel"
	CmdStartGame          = "startGame"
	CmdStopGame           = "stopGame"
	CmdAddReaction        = "addReaction"
	CmdMarkRead           = "markRead"
	CmdSendPrivateMessage = "sendPrivateMessage"
	CmdPing               = "ping"
)

// Outbound event types.
const (
	EventSessionReplaced       = "sessionReplaced"
	EventNameTaken             = "nameTaken"
	EventNameReserved          = "nameReserved"
	EventInvalidName           = "invalidName"
	EventRegistered            = "registered"
	EventPresenceUpdate        = "presenceUpdate"
	EventReceiveMessage        = "receiveMessage"
	EventRoomHistory           = "roomHistory"
	EventGameState             = "gameState"
	EventNewQuestion           = "newQuestion"
	EventWinnerAnnounced       = "winnerAnnounced"
	EventQuestionEnded         = "questionEnded"
	EventReactionUpdated       = "reactionUpdated"
	EventReceivePrivateMessage = "receivePrivateMessage"
	EventNotification          = "notification"
	EventPrivateMessageSent    = "privateMessageSent"
	EventMessageRead           = "messageRead"
	EventGameError             = "gameError"
	EventError                 = "error"
	EventPong                  = "pong"
)

type ErrorPayload struct {
	Message string `json:"message"`
}

type SessionReplacedPayload struct {
	Reason string `json:"reason"`
}

type RejectionPayload struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

type RegisteredPayload struct {
	Identity models.Identity `json:"identity"`
}

type PresenceEntry struct {
	ID            string `json:"id"`
	DisplayName   string `json:"displayName"`
	Authenticated bool   `json:"authenticated"`
}

type PresencePayload struct {
	Online []PresenceEntry `json:"online"`
}

type SenderView struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
}

type MessageView struct {
	ID        string     `json:"id"`
	Room      string     `json:"room,omitempty"`
	Sender    SenderView `json:"sender"`
	Content   string     `json:"content"`
	MediaURL  string     `json:"mediaUrl,omitempty"`
	System    bool       `json:"system"`
	CreatedAt time.Time  `json:"createdAt"`
}

func newMessageView(m models.ChatMessage) MessageView {
	return MessageView{
		ID:        m.ID,
		Room:      m.Room,
		Sender:    SenderView{ID: m.SenderID, DisplayName: m.SenderName},
		Content:   m.Content,
		MediaURL:  m.MediaURL,
		CreatedAt: m.CreatedAt,
	}
}

type RoomHistoryPayload struct {
	Room     string        `json:"room"`
	Messages []MessageView `json:"messages"`
}

type PrivateMessagePayload struct {
	Message     MessageView `json:"message"`
	RecipientID string      `json:"recipientId"`
}

type NotificationPayload struct {
	Kind      string `json:"kind"`
	From      string `json:"from"`
	MessageID string `json:"messageId"`
	Preview   string `json:"preview"`
}

type ReactionSummary struct {
	Count      int      `json:"count"`
	Identities []string `json:"identities"`
}

type ReactionPayload struct {
	MessageID string                     `json:"messageId"`
	Reactions map[string]ReactionSummary `json:"reactions"`
}

type MessageReadPayload struct {
	MessageID string    `json:"messageId"`
	ReaderID  string    `json:"readerId"`
	ReadAt    time.Time `json:"readAt"`
}

// QuestionView is a live question as players see it; it never carries the
// correct answer.
type QuestionView struct {
	Text       string    `json:"text"`
	Options    []string  `json:"options"`
	DurationMs int64     `json:"durationMs"`
	StartedAt  time.Time `json:"startedAt"`
}

type GameStatePayload struct {
	Channel         string                    `json:"channel"`
	IsActive        bool                      `json:"isActive"`
	CurrentQuestion *QuestionView             `json:"currentQuestion"`
	Leaderboard     []models.LeaderboardEntry `json:"leaderboard"`
}

type NewQuestionPayload struct {
	Channel string `json:"channel"`
	QuestionView
}

type WinnerPayload struct {
	Channel       string `json:"channel"`
	WinnerID      string `json:"winnerId"`
	WinnerName    string `json:"winnerName"`
	Points        int    `json:"points"`
	CorrectAnswer string `json:"correctAnswer"`
}

type QuestionEndedPayload struct {
	Channel       string                    `json:"channel"`
	CorrectAnswer string                    `json:"correctAnswer"`
	Explanation   string                    `json:"explanation"`
	Leaderboard   []models.LeaderboardEntry `json:"leaderboard"`
	Answers       []models.AnswerRecord     `json:"answers"`
}

type GameErrorPayload struct {
	Channel string `json:"channel,omitempty"`
	Message string `json:"message"`
}
