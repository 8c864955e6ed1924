package services

import "errors"

var (
	ErrVersionConflict  = errors.New("version conflict")
	ErrChannelNotFound  = errors.New("channel not found")
	ErrMessageNotFound  = errors.New("message not found")
	ErrNotRegistered    = errors.New("connection has no registered identity")
	ErrNotMember        = errors.New("not a member of the room")
	ErrBlocked          = errors.New("sender is blocked")
	ErrRateLimited      = errors.New("rate limited")
	ErrEmptyMessage     = errors.New("message is empty")
	ErrMessageTooLong   = errors.New("message is too long")
	ErrEngineStopped    = errors.New("game engine stopped")
	ErrEnginePanic      = errors.New("game engine panicked")
	ErrForbidden        = errors.New("forbidden")
	ErrRecipientBlocked = errors.New("recipient does not accept messages from sender")
	ErrNoQuestions      = errors.New("no questions available")
	ErrNotGameChannel   = errors.New("not a game channel")
)
