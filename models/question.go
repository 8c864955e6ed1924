package models

import (
	"time"

	"gorm.io/gorm"
)

// Question is an entry of the question bank that game rounds draw from.
type Question struct {
	ID          uint           `json:"id" gorm:"primaryKey"`
	Text        string         `json:"text" gorm:"uniqueIndex;not null"`
	Explanation string         `json:"explanation"`
	Category    string         `json:"category" gorm:"index"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `json:"-" gorm:"index"`

	// Relationships
	Options []Option `json:"options,omitempty" gorm:"foreignKey:QuestionID"`
}

// ToRound converts a bank question into the shape used by a live round.
func (q Question) ToRound() RoundQuestion {
	round := RoundQuestion{
		Text:         q.Text,
		Explanation:  q.Explanation,
		CorrectIndex: -1,
		Options:      make([]string, 0, len(q.Options)),
	}
	for i, opt := range q.Options {
		round.Options = append(round.Options, opt.Text)
		if opt.IsCorrect {
			round.CorrectIndex = i
			round.CorrectText = opt.Text
		}
	}
	return round
}
