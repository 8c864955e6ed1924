package models

// LeaderboardEntry references its identity by id; DisplayName is refreshed
// from presence whenever the leaderboard is broadcast.
type LeaderboardEntry struct {
	IdentityID  string `json:"identity_id"`
	DisplayName string `json:"display_name"`
	Score       int    `json:"score"`
}
