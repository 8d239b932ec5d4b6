package domain

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// SubjectMode selects which attribute of a track a quiz asks about.
type SubjectMode string

const (
	SubjectArtist SubjectMode = "artist"
	SubjectAlbum  SubjectMode = "album"
	SubjectTrack  SubjectMode = "track"
)

// ParseSubjectMode validates a subject name coming from config or a client.
func ParseSubjectMode(raw string) (SubjectMode, error) {
	switch SubjectMode(strings.ToLower(strings.TrimSpace(raw))) {
	case SubjectArtist:
		return SubjectArtist, nil
	case SubjectAlbum:
		return SubjectAlbum, nil
	case SubjectTrack, "name":
		return SubjectTrack, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidSubject, raw)
}

// RoundLength is the user-facing "how long should the game be" setting.
type RoundLength string

const (
	RoundLengthShort    RoundLength = "short"
	RoundLengthStandard RoundLength = "standard"
	RoundLengthLong     RoundLength = "long"
	RoundLengthMax      RoundLength = "max"
)

// ParseRoundLength validates a round length setting. Empty means standard.
func ParseRoundLength(raw string) (RoundLength, error) {
	switch RoundLength(strings.ToLower(strings.TrimSpace(raw))) {
	case "", RoundLengthStandard:
		return RoundLengthStandard, nil
	case RoundLengthShort:
		return RoundLengthShort, nil
	case RoundLengthLong:
		return RoundLengthLong, nil
	case RoundLengthMax:
		return RoundLengthMax, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidRoundLength, raw)
}

// Track is a single recording as returned by the catalog. Artists[0] is the primary artist.
type Track struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Artists     []string      `json:"artists"`
	Album       string        `json:"album"`
	AlbumArtURL string        `json:"albumArtUrl,omitempty"`
	PreviewURL  string        `json:"previewUrl,omitempty"`
	StartTime   time.Duration `json:"startTime,omitempty"`
}

// PrimaryArtist returns the first listed artist or "" when the track has none.
func (t Track) PrimaryArtist() string {
	if len(t.Artists) == 0 {
		return ""
	}
	return t.Artists[0]
}

// Subject extracts the quizzed value of the track for the given mode.
func (t Track) Subject(mode SubjectMode) string {
	switch mode {
	case SubjectArtist:
		return t.PrimaryArtist()
	case SubjectAlbum:
		return t.Album
	default:
		return t.Name
	}
}

// Selection describes which part of a user's library a game is built from.
type Selection struct {
	Subject SubjectMode `json:"subject"`
	// Source is one of "top-tracks", "recent", "playlist" or "artists".
	Source string      `json:"source"`
	IDs    []string    `json:"ids,omitempty"`
	Length RoundLength `json:"length"`
}

// CacheKey identifies the catalog fetch for a selection. Subject and length do not
// change which tracks are fetched, so they are not part of the key.
func (s Selection) CacheKey() string {
	ids := append([]string(nil), s.IDs...)
	sort.Strings(ids)
	return s.Source + ":" + strings.Join(ids, ",")
}

// QuizQuestion is one round of a generated quiz.
type QuizQuestion struct {
	Track          Track    `json:"track"`
	Options        []string `json:"options"`
	CorrectAnswer  string   `json:"correctAnswer"`
	CorrectAnswers []string `json:"correctAnswers"`
	RoundNumber    int      `json:"roundNumber"`
}

// RoundResult records how a single round concluded.
type RoundResult struct {
	RoundNumber           int    `json:"roundNumber"`
	Track                 Track  `json:"track"`
	UserAnswer            string `json:"userAnswer"`
	CorrectAnswer         string `json:"correctAnswer"`
	IsCorrect             bool   `json:"isCorrect"`
	TimedOut              bool   `json:"timedOut"`
	TimeRemainingAtAnswer int    `json:"timeRemainingAtAnswer"`
	PointsAwarded         int    `json:"pointsAwarded"`
	StreakAfterThisRound  int    `json:"streakAfterThisRound"`
}

// GameResult summarizes a finished game.
type GameResult struct {
	GameID      string        `json:"gameId,omitempty"`
	TotalScore  int           `json:"totalScore"`
	Accuracy    float64       `json:"accuracy"`
	MaxStreak   int           `json:"maxStreak"`
	Rounds      []RoundResult `json:"rounds"`
	SubjectMode SubjectMode   `json:"subjectMode"`
	FinishedAt  time.Time     `json:"finishedAt"`
}

// NewGameResult aggregates round results. Totals are recomputed from the rounds
// rather than taken from any live counter.
func NewGameResult(mode SubjectMode, rounds []RoundResult, finishedAt time.Time) GameResult {
	res := GameResult{
		Rounds:      append([]RoundResult(nil), rounds...),
		SubjectMode: mode,
		FinishedAt:  finishedAt,
	}
	correct := 0
	for _, r := range rounds {
		res.TotalScore += r.PointsAwarded
		if r.IsCorrect {
			correct++
		}
		if r.StreakAfterThisRound > res.MaxStreak {
			res.MaxStreak = r.StreakAfterThisRound
		}
	}
	if len(rounds) > 0 {
		res.Accuracy = float64(correct) / float64(len(rounds)) * 100
	}
	return res
}

// CorrectCount returns how many rounds were answered correctly.
func (g GameResult) CorrectCount() int {
	n := 0
	for _, r := range g.Rounds {
		if r.IsCorrect {
			n++
		}
	}
	return n
}
