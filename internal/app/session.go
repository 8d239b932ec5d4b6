package app

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"music-trivia-service/internal/domain"
	"music-trivia-service/internal/game"
)

const collaboratorTimeout = 5 * time.Second

// Session is one running game: its state machine plus the clients watching it.
// A reset gives the session a new game id, so id and logger are read under mu.
type Session struct {
	userID    string
	selection domain.Selection

	machine  *game.Machine
	player   Player
	onFinish func(*Session, domain.GameResult)

	mu          sync.RWMutex
	id          string
	logger      log.FieldLogger
	subscribers map[chan Event]struct{}
}

// NewSession is exported for infrastructure layers that store sessions.
// The service attaches the state machine before the session is used.
func NewSession(id, userID string, sel domain.Selection) *Session {
	return &Session{
		id:          id,
		userID:      userID,
		selection:   sel,
		player:      NopPlayer{},
		onFinish:    func(*Session, domain.GameResult) {},
		logger:      log.StandardLogger(),
		subscribers: make(map[chan Event]struct{}),
	}
}

func (s *Session) ID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.id
}

func (s *Session) UserID() string { return s.userID }

func (s *Session) log() log.FieldLogger {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.logger
}

// rekey moves the session to a new game id and returns the previous one.
func (s *Session) rekey(id string, logger log.FieldLogger) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.id
	s.id, s.logger = id, logger
	return prev
}

// View returns the current state of the game.
func (s *Session) View() GameView {
	id := s.ID()
	snap := s.machine.Snapshot()
	view := GameView{GameID: id, Subject: s.machine.Mode(), State: snap}
	if res, ok := s.machine.Result(); ok {
		res.GameID = id
		view.Result = &res
		return view
	}
	if q, ok := s.machine.CurrentQuestion(); ok {
		qv := newQuestionView(id, s.machine.Mode(), q, snap.TotalRounds, snap.TimeRemaining)
		view.Question = &qv
	}
	return view
}

func (s *Session) subscribe() (<-chan Event, func()) {
	ch := make(chan Event, 16)

	view := s.View()
	var initial Event
	switch {
	case view.Result != nil:
		initial = Event{Type: EventGameResult, Payload: *view.Result}
	case view.Question != nil:
		initial = Event{Type: EventQuestion, Payload: *view.Question}
	}

	s.mu.Lock()
	s.subscribers[ch] = struct{}{}
	if initial.Type != "" {
		ch <- initial
	}
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		if _, ok := s.subscribers[ch]; ok {
			delete(s.subscribers, ch)
			close(ch)
		}
		s.mu.Unlock()
	}
	return ch, cancel
}

func (s *Session) broadcast(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for ch := range s.subscribers {
		select {
		case ch <- ev:
		default:
			// slow subscriber: drop its oldest update so the timer never blocks
			select {
			case <-ch:
			default:
			}
			ch <- ev
		}
	}
}

func (s *Session) closeSubscribers() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for ch := range s.subscribers {
		delete(s.subscribers, ch)
		close(ch)
	}
}

// sessionObserver adapts machine events to subscriber broadcasts and playback.
type sessionObserver struct {
	s *Session
}

func (o sessionObserver) RoundStarted(q domain.QuizQuestion) {
	s := o.s
	snap := s.machine.Snapshot()
	s.broadcast(Event{Type: EventQuestion, Payload: newQuestionView(s.ID(), s.machine.Mode(), q, snap.TotalRounds, snap.TimeRemaining)})
	s.withPlayer("play", func(ctx context.Context) error {
		return s.player.Play(ctx, q.Track.ID, q.Track.StartTime)
	})
}

func (o sessionObserver) Tick(round, remaining int) {
	o.s.broadcast(Event{Type: EventTick, Payload: TickView{Round: round, TimeRemaining: remaining}})
}

func (o sessionObserver) Paused(round int) {
	o.s.broadcast(Event{Type: EventPaused, Payload: TickView{Round: round, TimeRemaining: o.s.machine.Snapshot().TimeRemaining}})
	o.s.withPlayer("pause", o.s.player.Pause)
}

func (o sessionObserver) Resumed(round int) {
	o.s.broadcast(Event{Type: EventResumed, Payload: TickView{Round: round, TimeRemaining: o.s.machine.Snapshot().TimeRemaining}})
	o.s.withPlayer("resume", o.s.player.Resume)
}

func (o sessionObserver) RoundConcluded(res domain.RoundResult) {
	snap := o.s.machine.Snapshot()
	o.s.broadcast(Event{Type: EventRoundResult, Payload: RoundResultView{RoundResult: res, Score: snap.Score, Streak: snap.Streak}})
}

func (o sessionObserver) GameFinished(res domain.GameResult) {
	res.GameID = o.s.ID()
	o.s.onFinish(o.s, res)
	o.s.broadcast(Event{Type: EventGameResult, Payload: res})
}

// withPlayer runs a playback side effect. Scoring never depends on it, so
// failures are only logged.
func (s *Session) withPlayer(action string, fn func(ctx context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), collaboratorTimeout)
	defer cancel()
	if err := fn(ctx); err != nil {
		s.log().WithError(err).WithField("action", action).Warn("playback command failed")
	}
}
