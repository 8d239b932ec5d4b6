package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"music-trivia-service/internal/domain"
	"music-trivia-service/internal/game"
	"music-trivia-service/internal/quiz"
	"music-trivia-service/internal/stats"
)

// SessionRepository abstracts where running games are kept.
type SessionRepository interface {
	Put(session *Session)
	Get(gameID string) (*Session, bool)
	Delete(gameID string)
}

// CatalogRepository loads the tracks a selection refers to (from cache/backing store).
type CatalogRepository interface {
	GetTracks(ctx context.Context, sel domain.Selection) ([]domain.Track, error)
}

// Player controls audio playback on the user's device.
type Player interface {
	Play(ctx context.Context, trackID string, startOffset time.Duration) error
	Pause(ctx context.Context) error
	Resume(ctx context.Context) error
}

// NopPlayer is used when no playback device is attached.
type NopPlayer struct{}

func (NopPlayer) Play(context.Context, string, time.Duration) error { return nil }
func (NopPlayer) Pause(context.Context) error                       { return nil }
func (NopPlayer) Resume(context.Context) error                      { return nil }

// ResultArchive keeps the full record of finished games.
type ResultArchive interface {
	Archive(ctx context.Context, userID string, res domain.GameResult) error
}

// SettingsKey is where the last selection of a user is remembered.
func SettingsKey(userID string) string {
	return "settings:" + userID
}

// Option configures a GameService.
type Option func(*GameService)

func WithPlayer(p Player) Option {
	return func(s *GameService) { s.player = p }
}

func WithArchive(a ResultArchive) Option {
	return func(s *GameService) { s.archive = a }
}

// WithClock drives every game's timers from c. Tests pass a game.ManualClock.
func WithClock(c game.Clock) Option {
	return func(s *GameService) { s.clock = c }
}

func WithLogger(l log.FieldLogger) Option {
	return func(s *GameService) { s.logger = l }
}

func WithGameConfig(cfg game.Config) Option {
	return func(s *GameService) { s.gameCfg = cfg }
}

// WithRand seeds question generation for every game.
func WithRand(r *rand.Rand) Option {
	return func(s *GameService) { s.rng = r }
}

// WithDefaultLength is used for selections that leave the length empty.
func WithDefaultLength(l domain.RoundLength) Option {
	return func(s *GameService) { s.defaultLength = l }
}

func WithIDGenerator(fn func() string) Option {
	return func(s *GameService) { s.newID = fn }
}

// GameService contains the core game use cases.
type GameService struct {
	sessions SessionRepository
	catalog  CatalogRepository
	store    stats.Store
	recorder *stats.Recorder

	player  Player
	archive ResultArchive
	clock   game.Clock
	rng     *rand.Rand
	gameCfg game.Config
	newID   func() string
	logger  log.FieldLogger

	defaultLength domain.RoundLength
}

func NewGameService(sessions SessionRepository, catalog CatalogRepository, store stats.Store, opts ...Option) *GameService {
	s := &GameService{
		sessions: sessions,
		catalog:  catalog,
		store:    store,
		recorder: stats.NewRecorder(store),
		player:   NopPlayer{},
		newID:    uuid.NewString,
		logger:   log.StandardLogger(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// StartGame loads the selected tracks, generates the quiz and starts the
// first round.
func (s *GameService) StartGame(ctx context.Context, userID string, sel domain.Selection) (GameView, error) {
	mode, err := domain.ParseSubjectMode(string(sel.Subject))
	if err != nil {
		return GameView{}, err
	}
	if sel.Length == "" {
		sel.Length = s.defaultLength
	}
	length, err := domain.ParseRoundLength(string(sel.Length))
	if err != nil {
		return GameView{}, err
	}
	sel.Subject, sel.Length = mode, length

	tracks, err := s.catalog.GetTracks(ctx, sel)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return GameView{}, err
		}
		return GameView{}, fmt.Errorf("%w: %w", domain.ErrCatalogUnavailable, err)
	}
	rounds := quiz.RoundCount(length, quiz.PoolSize(tracks, mode))
	if rounds == 0 {
		return GameView{}, domain.ErrNotEnoughTracks
	}

	session := NewSession(s.newID(), userID, sel)
	logger := s.sessionLogger(session.id, userID)
	session.player = s.player
	session.logger = logger
	session.onFinish = s.finish

	opts := []game.Option{
		game.WithObserver(sessionObserver{s: session}),
		game.WithLogger(logger),
	}
	if s.clock != nil {
		opts = append(opts, game.WithClock(s.clock))
	}
	if s.rng != nil {
		opts = append(opts, game.WithRand(s.rng))
	}
	session.machine = game.New(tracks, mode, rounds, s.gameCfg, opts...)
	if err := session.machine.Start(); err != nil {
		session.machine.Close()
		return GameView{}, err
	}
	s.sessions.Put(session)
	s.saveSettings(ctx, userID, sel)

	logger.WithFields(log.Fields{"rounds": rounds, "subject": mode, "source": sel.Source}).Info("game started")
	return session.View(), nil
}

// SubmitAnswer scores a typed or tapped answer for the current round. The
// boolean is false when the round was not accepting answers.
func (s *GameService) SubmitAnswer(_ context.Context, gameID, answer string) (domain.RoundResult, bool, error) {
	session, ok := s.sessions.Get(gameID)
	if !ok {
		return domain.RoundResult{}, false, domain.ErrGameNotFound
	}
	res, ok := session.machine.SubmitAnswer(answer)
	return res, ok, nil
}

// SubmitSpoken scores the recognizer alternatives of a spoken answer.
func (s *GameService) SubmitSpoken(_ context.Context, gameID string, alternatives []string) (domain.RoundResult, bool, error) {
	session, ok := s.sessions.Get(gameID)
	if !ok {
		return domain.RoundResult{}, false, domain.ErrGameNotFound
	}
	res, ok := session.machine.SubmitSpoken(alternatives)
	return res, ok, nil
}

func (s *GameService) Pause(_ context.Context, gameID string) (bool, error) {
	session, ok := s.sessions.Get(gameID)
	if !ok {
		return false, domain.ErrGameNotFound
	}
	return session.machine.Pause(), nil
}

func (s *GameService) Resume(_ context.Context, gameID string) (bool, error) {
	session, ok := s.sessions.Get(gameID)
	if !ok {
		return false, domain.ErrGameNotFound
	}
	return session.machine.Resume(), nil
}

// Reset regenerates the questions from the same tracks and starts over. The
// restarted game is a new game: it gets a fresh id, which the returned view
// carries, and the old id stops resolving.
func (s *GameService) Reset(_ context.Context, gameID string) (GameView, error) {
	session, ok := s.sessions.Get(gameID)
	if !ok {
		return GameView{}, domain.ErrGameNotFound
	}
	session.machine.Reset()

	id := s.newID()
	logger := s.sessionLogger(id, session.userID)
	prev := session.rekey(id, logger)
	s.sessions.Delete(prev)
	s.sessions.Put(session)

	if err := session.machine.Start(); err != nil {
		return GameView{}, err
	}
	logger.WithFields(log.Fields{"previous_game_id": prev, "source": session.selection.Source}).Info("game reset")
	return session.View(), nil
}

// View returns the current state of a game.
func (s *GameService) View(_ context.Context, gameID string) (GameView, error) {
	session, ok := s.sessions.Get(gameID)
	if !ok {
		return GameView{}, domain.ErrGameNotFound
	}
	return session.View(), nil
}

// Subscribe returns a channel that receives updates for a game. The first
// event describes the current question, or the result of a finished game.
// The caller must invoke the returned cancel function to avoid leaks.
func (s *GameService) Subscribe(_ context.Context, gameID string) (<-chan Event, func(), error) {
	session, ok := s.sessions.Get(gameID)
	if !ok {
		return nil, nil, domain.ErrGameNotFound
	}
	ch, cancel := session.subscribe()
	return ch, cancel, nil
}

// End stops a game's timers, disconnects its subscribers and forgets it.
func (s *GameService) End(_ context.Context, gameID string) {
	session, ok := s.sessions.Get(gameID)
	if !ok {
		return
	}
	session.machine.Close()
	session.closeSubscribers()
	s.sessions.Delete(gameID)
}

// Stats returns the aggregated history of a user.
func (s *GameService) Stats(ctx context.Context, userID string) (stats.Aggregate, error) {
	return s.recorder.Get(ctx, userID)
}

// LastSelection returns the selection a user last started a game with.
func (s *GameService) LastSelection(ctx context.Context, userID string) (domain.Selection, bool, error) {
	raw, ok, err := s.store.Load(ctx, SettingsKey(userID))
	if err != nil || !ok {
		return domain.Selection{}, false, err
	}
	var sel domain.Selection
	if err := json.Unmarshal(raw, &sel); err != nil {
		return domain.Selection{}, false, fmt.Errorf("decode settings: %w", err)
	}
	return sel, true, nil
}

func (s *GameService) sessionLogger(gameID, userID string) log.FieldLogger {
	return s.logger.WithFields(log.Fields{"game_id": gameID, "user_id": userID})
}

func (s *GameService) saveSettings(ctx context.Context, userID string, sel domain.Selection) {
	raw, err := json.Marshal(sel)
	if err == nil {
		err = s.store.Persist(ctx, SettingsKey(userID), raw)
	}
	if err != nil {
		s.logger.WithError(err).WithField("user_id", userID).Warn("failed to save settings")
	}
}

// finish runs on the timer goroutine once the final reveal has elapsed.
func (s *GameService) finish(session *Session, res domain.GameResult) {
	ctx, cancel := context.WithTimeout(context.Background(), collaboratorTimeout)
	defer cancel()

	logger := session.log().WithFields(log.Fields{"score": res.TotalScore, "accuracy": res.Accuracy})
	if _, err := s.recorder.Record(ctx, session.userID, res); err != nil {
		logger.WithError(err).Error("failed to record stats")
	}
	if s.archive != nil {
		if err := s.archive.Archive(ctx, session.userID, res); err != nil {
			logger.WithError(err).Error("failed to archive game result")
		}
	}
	logger.Info("game finished")
}
