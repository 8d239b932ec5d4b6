// Package game drives a quiz through its rounds: countdown, pause, answer
// scoring, streaks, the reveal pause between rounds and the final result.
package game

import (
	"math/rand/v2"
	"slices"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"music-trivia-service/internal/domain"
	"music-trivia-service/internal/matcher"
	"music-trivia-service/internal/quiz"
)

const (
	DefaultRoundDuration = 30 * time.Second
	DefaultRevealDelay   = 2 * time.Second
)

// Config holds per-game timing and matching settings.
type Config struct {
	RoundDuration           time.Duration
	RevealDelay             time.Duration
	// FuzzyThreshold is the tolerance for typed track names. Nil means
	// matcher.DefaultThreshold; zero accepts exact matches only.
	FuzzyThreshold          *float64
	// PhoneticThreshold and SpokenFallbackThreshold tune spoken answer
	// resolution. Zero keeps the resolver defaults.
	PhoneticThreshold       float64
	SpokenFallbackThreshold float64
}

// Threshold returns the fuzzy tolerance in effect.
func (c Config) Threshold() float64 {
	if c.FuzzyThreshold == nil {
		return matcher.DefaultThreshold
	}
	return *c.FuzzyThreshold
}

func (c Config) spokenResolver() *matcher.SpokenResolver {
	var opts []matcher.SpokenOption
	if c.PhoneticThreshold > 0 {
		opts = append(opts, matcher.WithPhoneticThreshold(c.PhoneticThreshold))
	}
	if c.SpokenFallbackThreshold > 0 {
		opts = append(opts, matcher.WithFallbackThreshold(c.SpokenFallbackThreshold))
	}
	return matcher.NewSpokenResolver(opts...)
}

func (c Config) withDefaults() Config {
	if c.RoundDuration < time.Second {
		c.RoundDuration = DefaultRoundDuration
	}
	if c.RevealDelay < 0 {
		c.RevealDelay = DefaultRevealDelay
	}
	return c
}

// Snapshot is a point-in-time view of the round state.
type Snapshot struct {
	Round         int  `json:"round"`
	TotalRounds   int  `json:"totalRounds"`
	TimeRemaining int  `json:"timeRemaining"`
	Score         int  `json:"score"`
	Streak        int  `json:"streak"`
	MaxStreak     int  `json:"maxStreak"`
	Playing       bool `json:"playing"`
	Paused        bool `json:"paused"`
	Finished      bool `json:"finished"`
}

// Option configures a Machine.
type Option func(*Machine)

// WithClock replaces the wall clock, mainly for tests.
func WithClock(c Clock) Option {
	return func(m *Machine) { m.clock = c }
}

// WithRand seeds question generation.
func WithRand(r *rand.Rand) Option {
	return func(m *Machine) { m.rng = r }
}

// WithObserver registers the receiver of round events.
func WithObserver(o Observer) Option {
	return func(m *Machine) { m.observer = o }
}

// WithLogger sets the logger used for ignored transitions and stale callbacks.
func WithLogger(l log.FieldLogger) Option {
	return func(m *Machine) { m.logger = l }
}

// Machine is the round state machine of one game session. All methods are
// safe to call from timer callbacks and request goroutines concurrently;
// observer callbacks are invoked after the internal lock is released.
type Machine struct {
	mu       sync.Mutex
	cfg      Config
	clock    Clock
	rng      *rand.Rand
	gen      *quiz.Generator
	spoken   *matcher.SpokenResolver
	observer Observer
	logger   log.FieldLogger

	tracks []domain.Track
	mode   domain.SubjectMode
	rounds int

	questions     []domain.QuizQuestion
	index         int
	totalTime     int
	timeRemaining int
	score         int
	streak        int
	maxStreak     int
	playing       bool
	paused        bool
	answered      bool
	finished      bool
	closed        bool
	results       []domain.RoundResult
	final         *domain.GameResult

	tick       Timer
	tickSeq    uint64
	advance    Timer
	advanceSeq uint64
}

// New builds a machine for tracks and generates its question list up front.
func New(tracks []domain.Track, mode domain.SubjectMode, rounds int, cfg Config, opts ...Option) *Machine {
	m := &Machine{
		cfg:      cfg.withDefaults(),
		clock:    realClock{},
		observer: NopObserver{},
		logger:   log.StandardLogger(),
		spoken:   cfg.spokenResolver(),
		tracks:   append([]domain.Track(nil), tracks...),
		mode:     mode,
		rounds:   rounds,
	}
	for _, o := range opts {
		o(m)
	}
	m.totalTime = int(m.cfg.RoundDuration / time.Second)
	m.timeRemaining = m.totalTime
	m.gen = quiz.NewGenerator(m.rng, m.logger)
	m.questions = m.gen.Generate(m.tracks, m.mode, m.rounds)
	return m
}

// Questions returns the generated question list.
func (m *Machine) Questions() []domain.QuizQuestion {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.questions)
}

// Mode returns the quizzed subject.
func (m *Machine) Mode() domain.SubjectMode {
	return m.mode
}

// CurrentQuestion returns the question of the current round.
func (m *Machine) CurrentQuestion() (domain.QuizQuestion, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.index >= len(m.questions) {
		return domain.QuizQuestion{}, false
	}
	return m.questions[m.index], true
}

// Snapshot returns the current round state.
func (m *Machine) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Snapshot{
		Round:         m.index + 1,
		TotalRounds:   len(m.questions),
		TimeRemaining: m.timeRemaining,
		Score:         m.score,
		Streak:        m.streak,
		MaxStreak:     m.maxStreak,
		Playing:       m.playing,
		Paused:        m.paused,
		Finished:      m.finished,
	}
}

// Results returns the rounds concluded so far.
func (m *Machine) Results() []domain.RoundResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.results)
}

// Result returns the final result once the last round has concluded and the
// reveal pause has elapsed.
func (m *Machine) Result() (domain.GameResult, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.final == nil {
		return domain.GameResult{}, false
	}
	return *m.final, true
}

// Start begins the current round. It is only valid while idle.
func (m *Machine) Start() error {
	var err error
	m.run(func(emit func(event)) {
		switch {
		case m.finished || m.closed:
			err = domain.ErrGameFinished
		case len(m.questions) == 0:
			err = domain.ErrNotEnoughTracks
		case m.playing || m.answered:
			err = domain.ErrRoundInProgress
		default:
			m.startLocked(emit)
		}
	})
	return err
}

// Pause freezes the countdown. It reports false when there was nothing to pause.
func (m *Machine) Pause() bool {
	ok := false
	m.run(func(emit func(event)) {
		if !m.playing || m.paused {
			return
		}
		m.paused = true
		m.stopTickLocked()
		ok = true
		round := m.index + 1
		emit(func(o Observer) { o.Paused(round) })
	})
	return ok
}

// Resume restarts a paused countdown. The partial second in progress when the
// game was paused is not credited.
func (m *Machine) Resume() bool {
	ok := false
	m.run(func(emit func(event)) {
		if !m.playing || !m.paused {
			return
		}
		m.paused = false
		m.scheduleTickLocked()
		ok = true
		round := m.index + 1
		emit(func(o Observer) { o.Resumed(round) })
	})
	return ok
}

// SubmitAnswer scores answer against the current round. Only the first
// submission of a round counts; later ones report false.
func (m *Machine) SubmitAnswer(answer string) (domain.RoundResult, bool) {
	var (
		res domain.RoundResult
		ok  bool
	)
	m.run(func(emit func(event)) {
		if !m.acceptingLocked() {
			return
		}
		res, ok = m.concludeLocked(answer, false, emit), true
	})
	return res, ok
}

// SubmitSpoken resolves speech-recognition alternatives to one of the current
// options and submits it. When nothing resolves, the first non-blank
// alternative is submitted as typed text.
func (m *Machine) SubmitSpoken(alternatives []string) (domain.RoundResult, bool) {
	var (
		res domain.RoundResult
		ok  bool
	)
	m.run(func(emit func(event)) {
		if !m.acceptingLocked() {
			return
		}
		answer := m.resolveSpokenLocked(alternatives)
		res, ok = m.concludeLocked(answer, false, emit), true
	})
	return res, ok
}

// Reset discards all progress and regenerates the questions from the same
// tracks with a fresh shuffle. The machine is left idle.
func (m *Machine) Reset() {
	m.run(func(emit func(event)) {
		m.stopTickLocked()
		m.stopAdvanceLocked()
		m.questions = m.gen.Generate(m.tracks, m.mode, m.rounds)
		m.index = 0
		m.timeRemaining = m.totalTime
		m.score, m.streak, m.maxStreak = 0, 0, 0
		m.playing, m.paused, m.answered, m.finished = false, false, false, false
		m.results = nil
		m.final = nil
	})
}

// Close cancels all pending callbacks. A closed machine ignores further input.
func (m *Machine) Close() {
	m.run(func(emit func(event)) {
		m.stopTickLocked()
		m.stopAdvanceLocked()
		m.playing, m.paused = false, false
		m.closed = true
	})
}

func (m *Machine) run(fn func(emit func(event))) {
	var events []event
	m.mu.Lock()
	fn(func(e event) { events = append(events, e) })
	observer := m.observer
	m.mu.Unlock()
	for _, e := range events {
		e(observer)
	}
}

func (m *Machine) acceptingLocked() bool {
	if m.playing && !m.answered && !m.closed {
		return true
	}
	m.logger.WithFields(log.Fields{
		"round":    m.index + 1,
		"playing":  m.playing,
		"answered": m.answered,
	}).Debug("ignoring submission outside an open round")
	return false
}

func (m *Machine) startLocked(emit func(event)) {
	m.timeRemaining = m.totalTime
	m.playing = true
	m.paused = false
	m.answered = false
	m.scheduleTickLocked()
	q := m.questions[m.index]
	emit(func(o Observer) { o.RoundStarted(q) })
}

func (m *Machine) scheduleTickLocked() {
	m.stopTickLocked()
	seq, index := m.tickSeq, m.index
	m.tick = m.clock.AfterFunc(time.Second, func() { m.onTick(seq, index) })
}

func (m *Machine) stopTickLocked() {
	if m.tick != nil {
		m.tick.Stop()
		m.tick = nil
	}
	m.tickSeq++
}

func (m *Machine) stopAdvanceLocked() {
	if m.advance != nil {
		m.advance.Stop()
		m.advance = nil
	}
	m.advanceSeq++
}

func (m *Machine) onTick(seq uint64, index int) {
	m.run(func(emit func(event)) {
		if seq != m.tickSeq || index != m.index || !m.playing || m.paused || m.answered {
			m.logger.WithField("round", index+1).Debug("dropping stale countdown tick")
			return
		}
		m.tick = nil
		m.timeRemaining--
		round, remaining := m.index+1, m.timeRemaining
		emit(func(o Observer) { o.Tick(round, remaining) })
		if m.timeRemaining <= 0 {
			m.timeRemaining = 0
			m.concludeLocked("", true, emit)
			return
		}
		m.scheduleTickLocked()
	})
}

func (m *Machine) concludeLocked(answer string, timedOut bool, emit func(event)) domain.RoundResult {
	m.answered = true
	m.stopTickLocked()

	q := m.questions[m.index]
	correct := !timedOut && m.isCorrect(q, answer)
	points := 0
	if correct {
		points = Points(m.timeRemaining, m.totalTime, m.streak)
		m.streak++
	} else {
		m.streak = 0
	}
	m.maxStreak = max(m.maxStreak, m.streak)
	m.score += points

	res := domain.RoundResult{
		RoundNumber:           m.index + 1,
		Track:                 q.Track,
		UserAnswer:            answer,
		CorrectAnswer:         q.CorrectAnswer,
		IsCorrect:             correct,
		TimedOut:              timedOut,
		TimeRemainingAtAnswer: m.timeRemaining,
		PointsAwarded:         points,
		StreakAfterThisRound:  m.streak,
	}
	m.results = append(m.results, res)
	m.playing = false
	m.paused = false

	m.stopAdvanceLocked()
	seq, index := m.advanceSeq, m.index
	m.advance = m.clock.AfterFunc(m.cfg.RevealDelay, func() { m.onAdvance(seq, index) })

	emit(func(o Observer) { o.RoundConcluded(res) })
	return res
}

func (m *Machine) onAdvance(seq uint64, index int) {
	m.run(func(emit func(event)) {
		if seq != m.advanceSeq || index != m.index || m.finished || m.closed {
			m.logger.WithField("round", index+1).Debug("dropping stale round transition")
			return
		}
		m.advance = nil
		if m.index+1 < len(m.questions) {
			m.index++
			m.startLocked(emit)
			return
		}
		m.finished = true
		final := domain.NewGameResult(m.mode, m.results, m.clock.Now())
		m.final = &final
		emit(func(o Observer) { o.GameFinished(final) })
	})
}

func (m *Machine) isCorrect(q domain.QuizQuestion, answer string) bool {
	if strings.TrimSpace(answer) == "" {
		return false
	}
	if slices.Contains(q.CorrectAnswers, answer) {
		return true
	}
	if m.mode != domain.SubjectTrack {
		return false
	}
	return matcher.MatchesAny(answer, q.CorrectAnswers, m.cfg.Threshold())
}

func (m *Machine) resolveSpokenLocked(alternatives []string) string {
	options := m.questions[m.index].Options
	if res, ok := matcher.FindBestMatchAny(alternatives, options, m.cfg.Threshold()); ok {
		return res.Match
	}
	if res, ok := m.spoken.Resolve(alternatives, options); ok {
		return res.Match
	}
	for _, alt := range alternatives {
		if strings.TrimSpace(alt) != "" {
			return alt
		}
	}
	return ""
}
