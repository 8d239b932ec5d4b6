// Package stats folds finished games into per-user aggregates kept in a
// key-value store.
package stats

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"music-trivia-service/internal/domain"
)

// DefaultHistoryLimit is how many recent game summaries are kept per user.
const DefaultHistoryLimit = 20

// Store persists opaque blobs under string keys.
type Store interface {
	Persist(ctx context.Context, key string, value []byte) error
	// Load returns false when nothing is stored under key.
	Load(ctx context.Context, key string) ([]byte, bool, error)
}

// SubjectStats counts games played for one subject mode.
type SubjectStats struct {
	Games     int `json:"games"`
	Rounds    int `json:"rounds"`
	Correct   int `json:"correct"`
	BestScore int `json:"bestScore"`
}

// GameSummary is the compact history entry of one game.
type GameSummary struct {
	GameID     string             `json:"gameId,omitempty"`
	Subject    domain.SubjectMode `json:"subject"`
	Score      int                `json:"score"`
	Accuracy   float64            `json:"accuracy"`
	MaxStreak  int                `json:"maxStreak"`
	Rounds     int                `json:"rounds"`
	FinishedAt time.Time          `json:"finishedAt"`
}

// Aggregate is everything known about a user's past games.
type Aggregate struct {
	GamesPlayed   int                                 `json:"gamesPlayed"`
	TotalScore    int                                 `json:"totalScore"`
	BestScore     int                                 `json:"bestScore"`
	BestStreak    int                                 `json:"bestStreak"`
	RoundsPlayed  int                                 `json:"roundsPlayed"`
	RoundsCorrect int                                 `json:"roundsCorrect"`
	BySubject     map[domain.SubjectMode]SubjectStats `json:"bySubject"`
	History       []GameSummary                       `json:"history"`
	UpdatedAt     time.Time                           `json:"updatedAt"`
}

// Accuracy returns the share of correct rounds as a percentage.
func (a Aggregate) Accuracy() float64 {
	if a.RoundsPlayed == 0 {
		return 0
	}
	return float64(a.RoundsCorrect) / float64(a.RoundsPlayed) * 100
}

// Add folds res into the aggregate, keeping at most historyLimit summaries
// (newest first).
func (a *Aggregate) Add(res domain.GameResult, historyLimit int) {
	correct := res.CorrectCount()

	a.GamesPlayed++
	a.TotalScore += res.TotalScore
	a.BestScore = max(a.BestScore, res.TotalScore)
	a.BestStreak = max(a.BestStreak, res.MaxStreak)
	a.RoundsPlayed += len(res.Rounds)
	a.RoundsCorrect += correct

	if a.BySubject == nil {
		a.BySubject = make(map[domain.SubjectMode]SubjectStats)
	}
	s := a.BySubject[res.SubjectMode]
	s.Games++
	s.Rounds += len(res.Rounds)
	s.Correct += correct
	s.BestScore = max(s.BestScore, res.TotalScore)
	a.BySubject[res.SubjectMode] = s

	summary := GameSummary{
		GameID:     res.GameID,
		Subject:    res.SubjectMode,
		Score:      res.TotalScore,
		Accuracy:   res.Accuracy,
		MaxStreak:  res.MaxStreak,
		Rounds:     len(res.Rounds),
		FinishedAt: res.FinishedAt,
	}
	a.History = append([]GameSummary{summary}, a.History...)
	if historyLimit > 0 && len(a.History) > historyLimit {
		a.History = a.History[:historyLimit]
	}
	a.UpdatedAt = res.FinishedAt
}

// Recorder reads and updates aggregates in a Store.
type Recorder struct {
	store        Store
	historyLimit int
	mu           sync.Mutex
}

func NewRecorder(store Store) *Recorder {
	return &Recorder{store: store, historyLimit: DefaultHistoryLimit}
}

// Key is the store key of a user's aggregate.
func Key(userID string) string {
	return "stats:" + userID
}

// Get returns the user's aggregate, empty when nothing was recorded yet.
func (r *Recorder) Get(ctx context.Context, userID string) (Aggregate, error) {
	raw, ok, err := r.store.Load(ctx, Key(userID))
	if err != nil {
		return Aggregate{}, fmt.Errorf("load stats: %w", err)
	}
	if !ok {
		return Aggregate{}, nil
	}
	var agg Aggregate
	if err := json.Unmarshal(raw, &agg); err != nil {
		return Aggregate{}, fmt.Errorf("decode stats: %w", err)
	}
	return agg, nil
}

// Record folds res into the user's stored aggregate and returns the update.
func (r *Recorder) Record(ctx context.Context, userID string, res domain.GameResult) (Aggregate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	agg, err := r.Get(ctx, userID)
	if err != nil {
		return Aggregate{}, err
	}
	agg.Add(res, r.historyLimit)

	raw, err := json.Marshal(agg)
	if err != nil {
		return Aggregate{}, fmt.Errorf("encode stats: %w", err)
	}
	if err := r.store.Persist(ctx, Key(userID), raw); err != nil {
		return Aggregate{}, fmt.Errorf("persist stats: %w", err)
	}
	return agg, nil
}
