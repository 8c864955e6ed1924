package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"time"

	"quizchat/models"

	"github.com/samber/lo"
	"gorm.io/gorm"
)

// MessageStore persists chat messages and their reactions and receipts.
type MessageStore interface {
	Append(ctx context.Context, msg *models.ChatMessage) error
	Get(ctx context.Context, id string) (*models.ChatMessage, error)
	Recent(ctx context.Context, room string, limit int) ([]models.ChatMessage, error)
	ToggleReaction(ctx context.Context, messageID, identityID, emoji string) (map[string]ReactionSummary, error)
	Reactions(ctx context.Context, messageID string) (map[string]ReactionSummary, error)
	MarkRead(ctx context.Context, messageID, readerID string, at time.Time) (*models.ReadReceipt, error)
}

type GormMessageStore struct {
	db *gorm.DB
}

func NewMessageStore(db *gorm.DB) *GormMessageStore {
	return &GormMessageStore{db: db}
}

func (s *GormMessageStore) Append(ctx context.Context, msg *models.ChatMessage) error {
	if err := s.db.WithContext(ctx).Create(msg).Error; err != nil {
		return fmt.Errorf("append message: %w", err)
	}
	return nil
}

func (s *GormMessageStore) Get(ctx context.Context, id string) (*models.ChatMessage, error) {
	var msg models.ChatMessage
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&msg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrMessageNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get message: %w", err)
	}
	return &msg, nil
}

// Recent returns up to limit room messages, oldest first.
func (s *GormMessageStore) Recent(ctx context.Context, room string, limit int) ([]models.ChatMessage, error) {
	var msgs []models.ChatMessage
	err := s.db.WithContext(ctx).
		Where("room = ?", room).
		Order("created_at DESC").
		Limit(limit).
		Find(&msgs).Error
	if err != nil {
		return nil, fmt.Errorf("recent messages: %w", err)
	}
	slices.Reverse(msgs)
	return msgs, nil
}

// ToggleReaction adds the reaction if absent and removes it otherwise, then
// returns the message's full reaction set.
func (s *GormMessageStore) ToggleReaction(ctx context.Context, messageID, identityID, emoji string) (map[string]ReactionSummary, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.MessageReaction
		err := tx.Where("message_id = ? AND identity_id = ? AND emoji = ?", messageID, identityID, emoji).
			First(&existing).Error
		switch {
		case err == nil:
			return tx.Delete(&existing).Error
		case errors.Is(err, gorm.ErrRecordNotFound):
			return tx.Create(&models.MessageReaction{
				MessageID:  messageID,
				IdentityID: identityID,
				Emoji:      emoji,
			}).Error
		default:
			return err
		}
	})
	if err != nil {
		return nil, fmt.Errorf("toggle reaction: %w", err)
	}
	return s.Reactions(ctx, messageID)
}

func (s *GormMessageStore) Reactions(ctx context.Context, messageID string) (map[string]ReactionSummary, error) {
	var rows []models.MessageReaction
	err := s.db.WithContext(ctx).
		Where("message_id = ?", messageID).
		Order("id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list reactions: %w", err)
	}
	return summarizeReactions(rows), nil
}

func summarizeReactions(rows []models.MessageReaction) map[string]ReactionSummary {
	out := make(map[string]ReactionSummary)
	for emoji, group := range lo.GroupBy(rows, func(r models.MessageReaction) string { return r.Emoji }) {
		ids := lo.Map(group, func(r models.MessageReaction, _ int) string { return r.IdentityID })
		sort.Strings(ids)
		out[emoji] = ReactionSummary{Count: len(ids), Identities: ids}
	}
	return out
}

// MarkRead stores a read receipt. Marking twice keeps the first receipt.
func (s *GormMessageStore) MarkRead(ctx context.Context, messageID, readerID string, at time.Time) (*models.ReadReceipt, error) {
	receipt := models.ReadReceipt{MessageID: messageID, IdentityID: readerID, ReadAt: at}
	err := s.db.WithContext(ctx).
		Where(models.ReadReceipt{MessageID: messageID, IdentityID: readerID}).
		FirstOrCreate(&receipt).Error
	if err != nil {
		return nil, fmt.Errorf("mark read: %w", err)
	}
	return &receipt, nil
}
