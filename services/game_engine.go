package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"quizchat/models"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

type gamePhase string

const (
	phaseIdle           gamePhase = "idle"
	phaseQuestionActive gamePhase = "question_active"
	phaseResolving      gamePhase = "resolving"
	phaseRevealed       gamePhase = "revealed"
)

// recentQuestionWindow is how many past questions a new round avoids.
const recentQuestionWindow = 20

const systemSenderID = "system"

// gameEngine runs one game channel. All channel state is owned by the run
// goroutine; everything else talks to it through cmds.
type gameEngine struct {
	name   string
	svc    *GameService
	logger *slog.Logger

	cmds chan func()
	quit chan struct{}
	done chan struct{}
	err  error

	doc      *models.GameChannel
	phase    gamePhase
	starting bool
	timer    *time.Timer
	gen      uint64
}

func newGameEngine(name string, svc *GameService) *gameEngine {
	return &gameEngine{
		name:   name,
		svc:    svc,
		logger: svc.logger.With("channel", name),
		cmds:   make(chan func()),
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
		phase:  phaseIdle,
	}
}

func (e *gameEngine) run() {
	defer close(e.done)
	defer func() {
		if r := recover(); r != nil {
			e.err = fmt.Errorf("%w: %v", ErrEnginePanic, r)
			e.disarm()
			e.logger.Error("game engine crashed", "panic", r, "stack", string(debug.Stack()))
			e.svc.engineCrashed(e)
		}
	}()

	for {
		select {
		case fn := <-e.cmds:
			fn()
		case <-e.quit:
			e.disarm()
			e.err = ErrEngineStopped
			return
		}
	}
}

// call runs fn on the engine goroutine and waits for it.
func (e *gameEngine) call(fn func()) error {
	reply := make(chan struct{})
	select {
	case e.cmds <- func() { fn(); close(reply) }:
	case <-e.done:
		return e.exitErr()
	}
	select {
	case <-reply:
		return nil
	case <-e.done:
		select {
		case <-reply:
			return nil
		default:
		}
		return e.exitErr()
	}
}

// post queues fn without waiting for it to run.
func (e *gameEngine) post(fn func()) {
	select {
	case e.cmds <- fn:
	case <-e.done:
	}
}

func (e *gameEngine) exitErr() error {
	if e.err != nil {
		return e.err
	}
	return ErrEngineStopped
}

func (e *gameEngine) stop() {
	select {
	case <-e.quit:
	default:
		close(e.quit)
	}
	<-e.done
}

// arm starts the channel timer. A channel never has two timers pending, so
// arming over a live timer is a bug.
func (e *gameEngine) arm(d time.Duration, step func()) {
	if e.timer != nil {
		panic(fmt.Sprintf("game %s: timer armed twice", e.name))
	}
	e.gen++
	gen := e.gen
	e.timer = time.AfterFunc(d, func() {
		e.post(func() {
			if gen != e.gen {
				return
			}
			e.timer = nil
			step()
		})
	})
}

func (e *gameEngine) disarm() {
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
	e.gen++
}

func (e *gameEngine) schedule(d time.Duration, step func()) {
	e.disarm()
	e.arm(d, step)
}

func (e *gameEngine) persistCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), e.svc.timings.PersistTimeout)
}

func (e *gameEngine) ensureLoaded() error {
	if e.doc != nil {
		return nil
	}
	ctx, cancel := e.persistCtx()
	defer cancel()

	doc, err := e.svc.store.LoadChannel(ctx, e.name)
	switch {
	case err == nil:
		// a round left over from a previous engine has no timer behind it
		doc.CurrentQuestion = nil
		e.doc = doc
		return nil
	case errors.Is(err, ErrChannelNotFound):
		doc = models.NewGameChannel(e.name)
		doc.UpdatedAt = e.svc.now()
		version, err := e.svc.store.SaveChannel(ctx, doc, 0)
		if errors.Is(err, ErrVersionConflict) {
			if doc, err = e.svc.store.LoadChannel(ctx, e.name); err != nil {
				return fmt.Errorf("load channel %s: %w", e.name, err)
			}
			doc.CurrentQuestion = nil
			e.doc = doc
			return nil
		}
		if err != nil {
			return fmt.Errorf("create channel %s: %w", e.name, err)
		}
		doc.Version = version
		e.doc = doc
		e.logger.Info("game channel created")
		return nil
	default:
		return fmt.Errorf("load channel %s: %w", e.name, err)
	}
}

// persist writes the channel with the version it was read at. A conflict
// means another writer got there first: the durable copy is adopted and this
// write is dropped, keeping only the live round from memory.
func (e *gameEngine) persist() {
	ctx, cancel := e.persistCtx()
	defer cancel()

	e.doc.UpdatedAt = e.svc.now()
	version, err := e.svc.store.SaveChannel(ctx, e.doc, e.doc.Version)
	if err == nil {
		e.doc.Version = version
		return
	}
	if !errors.Is(err, ErrVersionConflict) {
		e.logger.Error("failed to persist game channel", "error", err)
		return
	}

	e.logger.Warn("game channel version conflict, reloading", "version", e.doc.Version)
	fresh, err := e.svc.store.LoadChannel(ctx, e.name)
	if err != nil {
		e.logger.Error("failed to reload game channel", "error", err)
		return
	}
	fresh.IsActive = e.doc.IsActive
	fresh.CurrentQuestion = e.doc.CurrentQuestion
	e.doc = fresh
}

func (e *gameEngine) participants() int {
	return e.svc.games.MemberCount(e.name)
}

func (e *gameEngine) join(c *Client, identity models.Identity, registered bool) error {
	if err := e.ensureLoaded(); err != nil {
		return err
	}
	e.svc.games.Join(c, e.name)

	if registered && identity.Authenticated {
		if e.doc.EnsureEntry(identity.ID, identity.DisplayName) {
			e.persist()
		}
	}
	c.Emit(EventGameState, e.snapshot())

	if e.phase == phaseIdle && !e.starting {
		e.starting = true
		e.schedule(e.svc.timings.StartupDelay, e.activate)
	}
	return nil
}

func (e *gameEngine) leave(c *Client) {
	e.svc.games.Leave(c, e.name)
}

// start activates the channel now. It is a no-op while a round loop runs.
func (e *gameEngine) start() error {
	if e.phase != phaseIdle {
		return nil
	}
	if err := e.ensureLoaded(); err != nil {
		return err
	}
	e.disarm()
	e.activateNow()
	return nil
}

func (e *gameEngine) activate() {
	if e.participants() == 0 {
		e.starting = false
		e.logger.Info("game start skipped, nobody joined")
		return
	}
	e.activateNow()
}

func (e *gameEngine) activateNow() {
	e.starting = false
	e.doc.IsActive = true
	e.persist()
	e.logger.Info("game activated")
	e.startRound()
}

func (e *gameEngine) startRound() {
	ctx, cancel := e.persistCtx()
	recent := lo.Map(e.doc.QuestionHistory, func(r models.QuestionRecord, _ int) string { return r.Text })
	if len(recent) > recentQuestionWindow {
		recent = recent[len(recent)-recentQuestionWindow:]
	}
	q, err := e.svc.questions.Next(ctx, e.name, recent)
	cancel()
	if err != nil {
		e.logger.Error("failed to pick question", "error", err)
		e.svc.games.Broadcast(e.name, EventGameError, GameErrorPayload{Channel: e.name, Message: "could not load the next question"}, nil)
		e.phase = phaseRevealed
		e.schedule(e.svc.timings.RevealPause, e.next)
		return
	}

	q.StartedAt = e.svc.now()
	q.Answers = []models.AnswerRecord{}
	e.doc.CurrentQuestion = &q
	e.phase = phaseQuestionActive
	e.persist()

	e.svc.games.Broadcast(e.name, EventNewQuestion, NewQuestionPayload{
		Channel:      e.name,
		QuestionView: e.questionView(&q),
	}, nil)
	e.logger.Info("round started", "question", q.Text)
	e.schedule(e.svc.timings.RoundDuration, e.reveal)
}

// answer handles a chat message sent to the game room and reports whether it
// was consumed as an answer.
func (e *gameEngine) answer(identity models.Identity, text string) bool {
	q := e.doc.CurrentQuestion
	if e.phase != phaseQuestionActive || q == nil || !identity.Authenticated {
		return false
	}
	if q.HasAnswered(identity.ID) {
		return false
	}
	if !e.svc.limiter.Allow(identity.ID, ActionGame) {
		return true
	}

	now := e.svc.now()
	correct := MatchAnswer(text, q.CorrectText)
	q.Answers = append(q.Answers, models.AnswerRecord{
		IdentityID:  identity.ID,
		DisplayName: identity.DisplayName,
		AnswerText:  text,
		IsCorrect:   correct,
		LatencyMs:   now.Sub(q.StartedAt).Milliseconds(),
	})

	if correct && q.WinnerID == "" {
		q.WinnerID = identity.ID
		points := e.svc.timings.WinnerPoints
		e.doc.Award(identity.ID, identity.DisplayName, points)

		e.svc.games.Broadcast(e.name, EventWinnerAnnounced, WinnerPayload{
			Channel:       e.name,
			WinnerID:      identity.ID,
			WinnerName:    identity.DisplayName,
			Points:        points,
			CorrectAnswer: q.CorrectText,
		}, nil)
		e.svc.chat.Broadcast(e.name, EventReceiveMessage, MessageView{
			ID:        uuid.NewString(),
			Room:      e.name,
			Sender:    SenderView{ID: systemSenderID, DisplayName: "Quiz"},
			Content:   fmt.Sprintf("%s answered correctly: %s (+%d)", identity.DisplayName, q.CorrectText, points),
			System:    true,
			CreatedAt: now,
		}, nil)
		e.logger.Info("round won", "winner", identity.ID, "latency_ms", now.Sub(q.StartedAt).Milliseconds())

		e.phase = phaseResolving
		e.schedule(e.svc.timings.GracePeriod, e.reveal)
	}

	e.persist()
	return true
}

func (e *gameEngine) reveal() {
	if e.phase != phaseQuestionActive && e.phase != phaseResolving {
		panic(fmt.Sprintf("game %s: reveal in phase %s", e.name, e.phase))
	}
	q := e.doc.CurrentQuestion
	if q == nil {
		panic(fmt.Sprintf("game %s: reveal without a question", e.name))
	}

	winnerName := ""
	if q.WinnerID != "" {
		winnerName = e.displayName(q.WinnerID, "")
	}
	e.doc.RecordHistory(models.QuestionRecord{
		Text:        q.Text,
		CorrectText: q.CorrectText,
		WinnerID:    q.WinnerID,
		WinnerName:  winnerName,
		AskedAt:     q.StartedAt,
	}, e.svc.timings.HistoryLimit)

	e.svc.games.Broadcast(e.name, EventQuestionEnded, QuestionEndedPayload{
		Channel:       e.name,
		CorrectAnswer: q.CorrectText,
		Explanation:   q.Explanation,
		Leaderboard:   e.leaderboard(),
		Answers:       q.Answers,
	}, nil)

	e.doc.CurrentQuestion = nil
	e.phase = phaseRevealed
	e.persist()
	e.schedule(e.svc.timings.RevealPause, e.next)
}

func (e *gameEngine) next() {
	if !e.doc.IsActive || e.participants() == 0 {
		e.deactivate()
		return
	}
	e.startRound()
}

func (e *gameEngine) deactivate() {
	e.disarm()
	e.starting = false
	if e.doc == nil {
		return
	}
	e.doc.CurrentQuestion = nil
	e.doc.IsActive = false
	e.phase = phaseIdle
	e.persist()
	e.svc.games.Broadcast(e.name, EventGameState, e.snapshot(), nil)
	e.logger.Info("game deactivated")
}

func (e *gameEngine) displayName(identityID, fallback string) string {
	if name, ok := e.svc.names.DisplayName(identityID); ok {
		return name
	}
	return fallback
}

// leaderboard refreshes entry names from presence and returns the entries
// ordered by score.
func (e *gameEngine) leaderboard() []models.LeaderboardEntry {
	for i := range e.doc.Leaderboard {
		entry := &e.doc.Leaderboard[i]
		entry.DisplayName = e.displayName(entry.IdentityID, entry.DisplayName)
	}
	return e.doc.SortedLeaderboard()
}

func (e *gameEngine) questionView(q *models.RoundQuestion) QuestionView {
	return QuestionView{
		Text:       q.Text,
		Options:    q.Options,
		DurationMs: e.svc.timings.RoundDuration.Milliseconds(),
		StartedAt:  q.StartedAt,
	}
}

func (e *gameEngine) snapshot() GameStatePayload {
	state := GameStatePayload{
		Channel:     e.name,
		Leaderboard: []models.LeaderboardEntry{},
	}
	if e.doc == nil {
		return state
	}
	state.IsActive = e.doc.IsActive
	state.Leaderboard = e.leaderboard()
	if q := e.doc.CurrentQuestion; q != nil && (e.phase == phaseQuestionActive || e.phase == phaseResolving) {
		view := e.questionView(q)
		state.CurrentQuestion = &view
	}
	return state
}
