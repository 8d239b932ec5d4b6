package app

import (
	"time"

	"music-trivia-service/internal/domain"
	"music-trivia-service/internal/game"
)

// Event types pushed to subscribers.
const (
	EventQuestion    = "question"
	EventTick        = "tick"
	EventPaused      = "paused"
	EventResumed     = "resumed"
	EventRoundResult = "roundResult"
	EventGameResult  = "gameResult"
)

// Event is a single update about a game, tagged with its type.
type Event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// QuestionView is what a player sees of a round. It deliberately omits the
// correct answer and anything that would give it away.
type QuestionView struct {
	GameID        string        `json:"gameId"`
	Subject       string        `json:"subject"`
	Round         int           `json:"round"`
	TotalRounds   int           `json:"totalRounds"`
	Options       []string      `json:"options"`
	TrackID       string        `json:"trackId"`
	PreviewURL    string        `json:"previewUrl,omitempty"`
	StartTime     time.Duration `json:"startTime,omitempty"`
	TimeRemaining int           `json:"timeRemaining"`
}

// TickView reports the countdown.
type TickView struct {
	Round         int `json:"round"`
	TimeRemaining int `json:"timeRemaining"`
}

// RoundResultView is a concluded round plus the running totals after it.
type RoundResultView struct {
	domain.RoundResult
	Score  int `json:"score"`
	Streak int `json:"streak"`
}

// GameView describes a game to a client that just started or rejoined it.
type GameView struct {
	GameID   string             `json:"gameId"`
	Subject  domain.SubjectMode `json:"subject"`
	State    game.Snapshot      `json:"state"`
	Question *QuestionView      `json:"question,omitempty"`
	Result   *domain.GameResult `json:"result,omitempty"`
}

func newQuestionView(gameID string, mode domain.SubjectMode, q domain.QuizQuestion, total, remaining int) QuestionView {
	return QuestionView{
		GameID:        gameID,
		Subject:       string(mode),
		Round:         q.RoundNumber,
		TotalRounds:   total,
		Options:       append([]string(nil), q.Options...),
		TrackID:       q.Track.ID,
		PreviewURL:    q.Track.PreviewURL,
		StartTime:     q.Track.StartTime,
		TimeRemaining: remaining,
	}
}
