package services

import (
	"context"
	"errors"
	"fmt"

	"quizchat/models"

	"gorm.io/gorm"
)

// BlockList reports whether blocker refuses private messages from blocked.
type BlockList interface {
	IsBlocked(ctx context.Context, blockerID, blockedID string) (bool, error)
}

type GormBlockList struct {
	db *gorm.DB
}

func NewBlockList(db *gorm.DB) *GormBlockList {
	return &GormBlockList{db: db}
}

func (b *GormBlockList) IsBlocked(ctx context.Context, blockerID, blockedID string) (bool, error) {
	var block models.Block
	err := b.db.WithContext(ctx).
		Where("blocker_id = ? AND blocked_id = ?", blockerID, blockedID).
		First(&block).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("lookup block: %w", err)
	}
	return true, nil
}

// Block records a block. Blocking twice is a no-op.
func (b *GormBlockList) Block(ctx context.Context, blockerID, blockedID string) error {
	block := models.Block{BlockerID: blockerID, BlockedID: blockedID}
	return b.db.WithContext(ctx).
		Where(models.Block{BlockerID: blockerID, BlockedID: blockedID}).
		FirstOrCreate(&block).Error
}
