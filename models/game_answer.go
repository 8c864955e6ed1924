package models

type AnswerRecord struct {
	IdentityID  string `json:"identity_id"`
	DisplayName string `json:"display_name"`
	AnswerText  string `json:"answer_text"`
	IsCorrect   bool   `json:"is_correct"`
	LatencyMs   int64  `json:"latency_ms"`
}
