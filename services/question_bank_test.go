package services

import (
	"context"
	"testing"

	"quizchat/models"

	"github.com/stretchr/testify/require"
)

func TestQuestionBank_FallsBackToBuiltInSet(t *testing.T) {
	req := require.New(t)
	bank := NewQuestionBankService(newTestDB(t))

	q, err := bank.Next(context.Background(), "Game", nil)
	req.NoError(err)
	req.NotEmpty(q.Text)
	req.GreaterOrEqual(q.CorrectIndex, 0)
	req.Equal(q.Options[q.CorrectIndex], q.CorrectText)
}

func TestQuestionBank_AvoidsRecentQuestions(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	bank := NewQuestionBankService(newTestDB(t))

	for _, text := range []string{"Q1", "Q2"} {
		_, err := bank.CreateQuestion(ctx, &CreateQuestionRequest{
			Text: text,
			Options: []CreateOptionRequest{
				{Text: "yes", IsCorrect: true},
				{Text: "no"},
			},
		})
		req.NoError(err)
	}

	for i := 0; i < 10; i++ {
		q, err := bank.Next(ctx, "Game", []string{"Q1"})
		req.NoError(err)
		req.Equal("Q2", q.Text)
		req.Equal("yes", q.CorrectText)
		req.Equal([]string{"yes", "no"}, q.Options)
	}

	// everything asked recently: repeat rather than fail
	q, err := bank.Next(ctx, "Game", []string{"Q1", "Q2"})
	req.NoError(err)
	req.Contains([]string{"Q1", "Q2"}, q.Text)
}

func TestQuestionBank_RequiresExactlyOneCorrectOption(t *testing.T) {
	bank := NewQuestionBankService(newTestDB(t))
	_, err := bank.CreateQuestion(context.Background(), &CreateQuestionRequest{
		Text: "Broken",
		Options: []CreateOptionRequest{
			{Text: "a", IsCorrect: true},
			{Text: "b", IsCorrect: true},
		},
	})
	require.Error(t, err)
}

func TestQuestionBank_DrawsOnlyPlayableQuestions(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	db := newTestDB(t)
	bank := NewQuestionBankService(db)

	// Given a question with no correct option and a deleted one
	req.NoError(db.Create(&models.Question{
		Text:    "Unanswerable",
		Options: []models.Option{{Text: "a"}, {Text: "b", Position: 1}},
	}).Error)
	deleted, err := bank.CreateQuestion(ctx, &CreateQuestionRequest{
		Text:    "Retired",
		Options: []CreateOptionRequest{{Text: "yes", IsCorrect: true}, {Text: "no"}},
	})
	req.NoError(err)
	req.NoError(db.Delete(deleted).Error)
	_, err = bank.CreateQuestion(ctx, &CreateQuestionRequest{
		Text:    "Playable",
		Options: []CreateOptionRequest{{Text: "yes", IsCorrect: true}, {Text: "no"}},
	})
	req.NoError(err)

	// Then only the playable one is ever drawn
	for i := 0; i < 10; i++ {
		q, err := bank.Next(ctx, "Game", nil)
		req.NoError(err)
		req.Equal("Playable", q.Text)
	}
}
