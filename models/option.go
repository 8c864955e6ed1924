package models

// Option is one choice of a bank question, ordered by Position within it.
// Which option is correct is never served to clients.
type Option struct {
	ID         uint   `json:"id" gorm:"primaryKey"`
	QuestionID uint   `json:"question_id" gorm:"not null;index"`
	Text       string `json:"text" gorm:"not null"`
	IsCorrect  bool   `json:"-" gorm:"not null;default:false"`
	Position   int    `json:"position" gorm:"not null"`
}
