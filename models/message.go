package models

import "time"

// ChatMessage is a room message (Room set) or a private message
// (RecipientID set).
type ChatMessage struct {
	ID          string    `json:"id" gorm:"primaryKey;size:36"`
	Room        string    `json:"room,omitempty" gorm:"index:idx_room_created,priority:1"`
	SenderID    string    `json:"sender_id" gorm:"not null;index"`
	SenderName  string    `json:"sender_name" gorm:"not null"`
	RecipientID string    `json:"recipient_id,omitempty" gorm:"index"`
	Content     string    `json:"content" gorm:"not null"`
	MediaURL    string    `json:"media_url,omitempty"`
	CreatedAt   time.Time `json:"created_at" gorm:"index:idx_room_created,priority:2"`
}

func (m ChatMessage) IsPrivate() bool {
	return m.RecipientID != ""
}

type MessageReaction struct {
	ID         uint      `json:"id" gorm:"primaryKey"`
	MessageID  string    `json:"message_id" gorm:"size:36;not null;uniqueIndex:idx_reaction,priority:1"`
	IdentityID string    `json:"identity_id" gorm:"not null;uniqueIndex:idx_reaction,priority:2"`
	Emoji      string    `json:"emoji" gorm:"size:32;not null;uniqueIndex:idx_reaction,priority:3"`
	CreatedAt  time.Time `json:"created_at"`
}

type ReadReceipt struct {
	ID         uint      `json:"id" gorm:"primaryKey"`
	MessageID  string    `json:"message_id" gorm:"size:36;not null;uniqueIndex:idx_receipt,priority:1"`
	IdentityID string    `json:"identity_id" gorm:"not null;uniqueIndex:idx_receipt,priority:2"`
	ReadAt     time.Time `json:"read_at"`
}

// Block records that BlockerID does not accept private messages from BlockedID.
type Block struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	BlockerID string    `json:"blocker_id" gorm:"not null;uniqueIndex:idx_block,priority:1"`
	BlockedID string    `json:"blocked_id" gorm:"not null;uniqueIndex:idx_block,priority:2"`
	CreatedAt time.Time `json:"created_at"`
}
