package services

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"

	"quizchat/models"

	"github.com/samber/lo"
	"gorm.io/gorm"
)

// QuestionSource supplies the next round question for a channel, avoiding the
// texts in exclude where it can.
type QuestionSource interface {
	Next(ctx context.Context, channel string, exclude []string) (models.RoundQuestion, error)
}

type QuestionBankService struct {
	db       *gorm.DB
	fallback []models.Question
	pick     func(n int) int
}

func NewQuestionBankService(db *gorm.DB) *QuestionBankService {
	return &QuestionBankService{
		db:       db,
		fallback: defaultQuestions,
		pick:     rand.IntN,
	}
}

type CreateQuestionRequest struct {
	Text        string                `json:"text" binding:"required"`
	Explanation string                `json:"explanation"`
	Category    string                `json:"category"`
	Options     []CreateOptionRequest `json:"options" binding:"required,min=2,max=6,dive"`
}

type CreateOptionRequest struct {
	Text      string `json:"text" binding:"required"`
	IsCorrect bool   `json:"is_correct"`
	Position  int    `json:"position"`
}

func (s *QuestionBankService) CreateQuestion(ctx context.Context, req *CreateQuestionRequest) (*models.Question, error) {
	correct := lo.CountBy(req.Options, func(o CreateOptionRequest) bool { return o.IsCorrect })
	if correct != 1 {
		return nil, errors.New("each question must have exactly one correct answer")
	}

	question := models.Question{
		Text:        req.Text,
		Explanation: req.Explanation,
		Category:    req.Category,
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&question).Error; err != nil {
			return err
		}
		for i, optReq := range req.Options {
			position := optReq.Position
			if position == 0 {
				position = i + 1
			}
			option := models.Option{
				QuestionID: question.ID,
				Text:       optReq.Text,
				IsCorrect:  optReq.IsCorrect,
				Position:   position,
			}
			if err := tx.Create(&option).Error; err != nil {
				return err
			}
			question.Options = append(question.Options, option)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("create question: %w", err)
	}
	return &question, nil
}

func (s *QuestionBankService) ListQuestions(ctx context.Context, category string) ([]models.Question, error) {
	var questions []models.Question
	q := s.db.WithContext(ctx).Preload("Options", func(db *gorm.DB) *gorm.DB {
		return db.Order("position")
	})
	if category != "" {
		q = q.Where("category = ?", category)
	}
	if err := q.Order("id").Find(&questions).Error; err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	return questions, nil
}

// Next draws a random question whose text is not in exclude. When every
// question has been asked recently the exclusion is dropped. An empty bank
// falls back to the built-in set.
func (s *QuestionBankService) Next(ctx context.Context, channel string, exclude []string) (models.RoundQuestion, error) {
	q, err := s.draw(ctx, exclude)
	if errors.Is(err, gorm.ErrRecordNotFound) && len(exclude) > 0 {
		q, err = s.draw(ctx, nil)
	}
	switch {
	case err == nil:
		return q.ToRound(), nil
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return models.RoundQuestion{}, fmt.Errorf("draw question for %s: %w", channel, err)
	}

	if len(s.fallback) == 0 {
		return models.RoundQuestion{}, ErrNoQuestions
	}
	fresh := lo.Reject(s.fallback, func(q models.Question, _ int) bool {
		return lo.Contains(exclude, q.Text)
	})
	if len(fresh) == 0 {
		fresh = s.fallback
	}
	return fresh[s.pick(len(fresh))].ToRound(), nil
}

// draw picks one playable question in the database, skipping excluded texts.
func (s *QuestionBankService) draw(ctx context.Context, exclude []string) (models.Question, error) {
	var question models.Question
	q := s.db.WithContext(ctx).
		Preload("Options", func(db *gorm.DB) *gorm.DB {
			return db.Order("position")
		}).
		Where("EXISTS (SELECT 1 FROM options WHERE options.question_id = questions.id AND options.is_correct = ?)", true)
	if len(exclude) > 0 {
		q = q.Where("questions.text NOT IN ?", exclude)
	}
	err := q.Order("RANDOM()").Take(&question).Error
	return question, err
}

func fallbackQuestion(text, explanation string, correct int, options ...string) models.Question {
	q := models.Question{Text: text, Explanation: explanation, Category: "general"}
	for i, o := range options {
		q.Options = append(q.Options, models.Option{Text: o, IsCorrect: i == correct, Position: i + 1})
	}
	return q
}

var defaultQuestions = []models.Question{
	fallbackQuestion("What is the capital of France?", "Paris has been the capital since the 10th century.", 1,
		"Lyon", "Paris", "Marseille", "Nice"),
	fallbackQuestion("Which planet is known as the Red Planet?", "Iron oxide on its surface gives Mars its colour.", 2,
		"Venus", "Jupiter", "Mars", "Saturn"),
	fallbackQuestion("How many continents are there?", "Africa, Antarctica, Asia, Australia, Europe, North America and South America.", 0,
		"7", "5", "6", "8"),
	fallbackQuestion("What is the chemical symbol for gold?", "Au comes from the Latin aurum.", 3,
		"Ag", "Gd", "Go", "Au"),
	fallbackQuestion("Who wrote Romeo and Juliet?", "The play was written around 1595.", 0,
		"William Shakespeare", "Charles Dickens", "Jane Austen", "Mark Twain"),
	fallbackQuestion("What is the largest ocean on Earth?", "The Pacific covers about a third of the planet's surface.", 1,
		"Atlantic", "Pacific", "Indian", "Arctic"),
	fallbackQuestion("How many sides does a hexagon have?", "Hexa means six.", 2,
		"5", "8", "6", "7"),
	fallbackQuestion("What gas do plants absorb from the air?", "Plants take in carbon dioxide for photosynthesis.", 0,
		"Carbon dioxide", "Oxygen", "Nitrogen", "Helium"),
}
