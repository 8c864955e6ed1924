package models

import (
	"sort"
	"time"
)

// GameChannel is the durable quiz state of one game room. Version is the
// optimistic concurrency token of the copy that was read and is not part of
// the stored document.
type GameChannel struct {
	Name            string             `json:"name"`
	IsActive        bool               `json:"is_active"`
	CurrentQuestion *RoundQuestion     `json:"current_question,omitempty"`
	Leaderboard     []LeaderboardEntry `json:"leaderboard"`
	QuestionHistory []QuestionRecord   `json:"question_history"`
	UpdatedAt       time.Time          `json:"updated_at"`

	Version int64 `json:"-"`
}

func NewGameChannel(name string) *GameChannel {
	return &GameChannel{
		Name:            name,
		Leaderboard:     []LeaderboardEntry{},
		QuestionHistory: []QuestionRecord{},
	}
}

// RoundQuestion is the question of the round in progress.
type RoundQuestion struct {
	Text         string         `json:"text"`
	Options      []string       `json:"options"`
	CorrectIndex int            `json:"correct_index"`
	CorrectText  string         `json:"correct_text"`
	Explanation  string         `json:"explanation"`
	StartedAt    time.Time      `json:"started_at"`
	Answers      []AnswerRecord `json:"answers"`
	WinnerID     string         `json:"winner_id,omitempty"`
}

func (q *RoundQuestion) HasAnswered(identityID string) bool {
	for _, a := range q.Answers {
		if a.IdentityID == identityID {
			return true
		}
	}
	return false
}

// QuestionRecord is what remains of a round once it has been revealed.
type QuestionRecord struct {
	Text        string    `json:"text"`
	CorrectText string    `json:"correct_text"`
	WinnerID    string    `json:"winner_id,omitempty"`
	WinnerName  string    `json:"winner_name,omitempty"`
	AskedAt     time.Time `json:"asked_at"`
}

// EnsureEntry adds a zero-score leaderboard entry for the identity if it has
// none. It reports whether the leaderboard changed.
func (g *GameChannel) EnsureEntry(identityID, displayName string) bool {
	if g.entry(identityID) != nil {
		return false
	}
	g.Leaderboard = append(g.Leaderboard, LeaderboardEntry{
		IdentityID:  identityID,
		DisplayName: displayName,
	})
	return true
}

// Award adds points to the identity's entry, creating it on first appearance.
func (g *GameChannel) Award(identityID, displayName string, points int) int {
	g.EnsureEntry(identityID, displayName)
	e := g.entry(identityID)
	e.DisplayName = displayName
	e.Score += points
	return e.Score
}

func (g *GameChannel) entry(identityID string) *LeaderboardEntry {
	for i := range g.Leaderboard {
		if g.Leaderboard[i].IdentityID == identityID {
			return &g.Leaderboard[i]
		}
	}
	return nil
}

// RecordHistory appends a finished round and keeps at most limit records.
func (g *GameChannel) RecordHistory(rec QuestionRecord, limit int) {
	g.QuestionHistory = append(g.QuestionHistory, rec)
	if limit > 0 && len(g.QuestionHistory) > limit {
		g.QuestionHistory = g.QuestionHistory[len(g.QuestionHistory)-limit:]
	}
}

// SortedLeaderboard returns a copy ordered by score, highest first.
func (g *GameChannel) SortedLeaderboard() []LeaderboardEntry {
	out := make([]LeaderboardEntry, len(g.Leaderboard))
	copy(out, g.Leaderboard)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].DisplayName < out[j].DisplayName
	})
	return out
}
