package services

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"quizchat/models"

	"github.com/samber/lo"
)

// NameResolver returns the current display name of an online identity.
type NameResolver interface {
	DisplayName(identityID string) (string, bool)
}

// GameTimings configures round pacing and scoring.
type GameTimings struct {
	StartupDelay   time.Duration
	RoundDuration  time.Duration
	GracePeriod    time.Duration
	RevealPause    time.Duration
	PersistTimeout time.Duration
	WinnerPoints   int
	HistoryLimit   int
}

func DefaultGameTimings() GameTimings {
	return GameTimings{
		StartupDelay:   500 * time.Millisecond,
		RoundDuration:  15 * time.Second,
		GracePeriod:    5 * time.Second,
		RevealPause:    8 * time.Second,
		PersistTimeout: 3 * time.Second,
		WinnerPoints:   10,
		HistoryLimit:   50,
	}
}

// GameService owns one engine per game channel. Engines are started on first
// use and dropped if they crash; the next join starts a fresh one from the
// durable channel.
type GameService struct {
	store     ChannelStore
	questions QuestionSource
	games     *RoomFabric
	chat      *RoomFabric
	names     NameResolver
	limiter   *RateLimiter
	timings   GameTimings
	logger    *slog.Logger
	now       func() time.Time

	gameRooms map[string]struct{}

	mu      sync.Mutex
	engines map[string]*gameEngine
	closed  bool
}

type GameServiceConfig struct {
	Store     ChannelStore
	Questions QuestionSource
	Games     *RoomFabric
	Chat      *RoomFabric
	Names     NameResolver
	Limiter   *RateLimiter
	Timings   GameTimings
	GameRooms []string
	Logger    *slog.Logger
}

func NewGameService(cfg GameServiceConfig) *GameService {
	return &GameService{
		store:     cfg.Store,
		questions: cfg.Questions,
		games:     cfg.Games,
		chat:      cfg.Chat,
		names:     cfg.Names,
		limiter:   cfg.Limiter,
		timings:   cfg.Timings,
		logger:    cfg.Logger,
		now:       time.Now,
		gameRooms: lo.SliceToMap(cfg.GameRooms, func(name string) (string, struct{}) { return name, struct{}{} }),
		engines:   make(map[string]*gameEngine),
	}
}

// IsGameRoom reports whether chat messages in room are offered to its game.
// Names are case-sensitive.
func (s *GameService) IsGameRoom(room string) bool {
	_, ok := s.gameRooms[room]
	return ok
}

func (s *GameService) GameRooms() []string {
	return lo.Keys(s.gameRooms)
}

func (s *GameService) engine(name string) (*gameEngine, error) {
	if !s.IsGameRoom(name) {
		return nil, ErrNotGameChannel
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrEngineStopped
	}
	e, ok := s.engines[name]
	if !ok {
		e = newGameEngine(name, s)
		s.engines[name] = e
		go e.run()
	}
	return e, nil
}

func (s *GameService) existing(name string) (*gameEngine, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.engines[name]
	return e, ok
}

func (s *GameService) engineCrashed(e *gameEngine) {
	s.mu.Lock()
	if s.engines[e.name] == e {
		delete(s.engines, e.name)
	}
	s.mu.Unlock()
	s.games.Broadcast(e.name, EventGameError, GameErrorPayload{Channel: e.name, Message: "game interrupted, rejoin to continue"}, nil)
}

// Join adds the connection to the game channel and sends it the current
// state. The first join of an idle channel starts the round loop.
func (s *GameService) Join(ctx context.Context, c *Client, channel string) error {
	identity, registered := c.Identity()
	e, err := s.engine(channel)
	if err != nil {
		return err
	}
	var joinErr error
	if err := e.call(func() { joinErr = e.join(c, identity, registered) }); err != nil {
		return err
	}
	return joinErr
}

func (s *GameService) Leave(c *Client, channel string) bool {
	return s.games.Leave(c, channel)
}

// LeaveAll removes the connection from every game channel it joined.
func (s *GameService) LeaveAll(c *Client) {
	s.games.LeaveAll(c)
}

// OfferAnswer hands a game-room chat message to the channel's engine and
// reports whether it was consumed as an answer.
func (s *GameService) OfferAnswer(ctx context.Context, identity models.Identity, channel, text string) bool {
	if !s.IsGameRoom(channel) {
		return false
	}
	e, ok := s.existing(channel)
	if !ok {
		return false
	}
	consumed := false
	if err := e.call(func() { consumed = e.answer(identity, text) }); err != nil {
		s.logger.Warn("answer dropped", "channel", channel, "error", err)
		return false
	}
	return consumed
}

// Start activates the channel immediately. Starting a running channel is a
// no-op.
func (s *GameService) Start(ctx context.Context, channel string) error {
	e, err := s.engine(channel)
	if err != nil {
		return err
	}
	var startErr error
	if err := e.call(func() { startErr = e.start() }); err != nil {
		return err
	}
	return startErr
}

// Stop ends the current round and deactivates the channel.
func (s *GameService) Stop(ctx context.Context, channel string) error {
	if !s.IsGameRoom(channel) {
		return ErrNotGameChannel
	}
	e, ok := s.existing(channel)
	if !ok {
		return nil
	}
	return e.call(func() {
		if e.phase != phaseIdle || e.starting {
			e.deactivate()
		}
	})
}

// State returns the live state of the channel, or its durable state when no
// engine runs it.
func (s *GameService) State(ctx context.Context, channel string) (*GameStatePayload, error) {
	if !s.IsGameRoom(channel) {
		return nil, ErrNotGameChannel
	}
	if e, ok := s.existing(channel); ok {
		var state GameStatePayload
		err := e.call(func() { state = e.snapshot() })
		if err == nil {
			return &state, nil
		}
		if !errors.Is(err, ErrEngineStopped) && !errors.Is(err, ErrEnginePanic) {
			return nil, err
		}
	}

	doc, err := s.store.LoadChannel(ctx, channel)
	if err != nil {
		return nil, err
	}
	return &GameStatePayload{
		Channel:     channel,
		IsActive:    doc.IsActive,
		Leaderboard: doc.SortedLeaderboard(),
	}, nil
}

// Shutdown stops every engine and waits for them.
func (s *GameService) Shutdown() {
	s.mu.Lock()
	s.closed = true
	engines := lo.Values(s.engines)
	s.engines = make(map[string]*gameEngine)
	s.mu.Unlock()

	for _, e := range engines {
		e.stop()
	}
	s.logger.Info("game engines stopped", "count", len(engines))
}
