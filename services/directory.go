package services

import (
	"context"
	"fmt"
	"strings"

	"quizchat/models"

	"gorm.io/gorm"
)

// AccountDirectory answers whether a display name belongs to a registered
// account.
type AccountDirectory interface {
	IsRegisteredName(ctx context.Context, name string) (bool, error)
}

type GormAccountDirectory struct {
	db *gorm.DB
}

func NewAccountDirectory(db *gorm.DB) *GormAccountDirectory {
	return &GormAccountDirectory{db: db}
}

func (d *GormAccountDirectory) IsRegisteredName(ctx context.Context, name string) (bool, error) {
	var count int64
	err := d.db.WithContext(ctx).
		Model(&models.User{}).
		Where("LOWER(username) = ?", strings.ToLower(strings.TrimSpace(name))).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("lookup account name: %w", err)
	}
	return count > 0, nil
}
