package game

import "music-trivia-service/internal/domain"

// Observer receives round events. Calls happen outside the machine's lock, in
// the goroutine that caused the transition.
type Observer interface {
	RoundStarted(q domain.QuizQuestion)
	Tick(round, timeRemaining int)
	Paused(round int)
	Resumed(round int)
	RoundConcluded(res domain.RoundResult)
	GameFinished(res domain.GameResult)
}

type event func(Observer)

// NopObserver ignores every event.
type NopObserver struct{}

func (NopObserver) RoundStarted(domain.QuizQuestion)  {}
func (NopObserver) Tick(int, int)                     {}
func (NopObserver) Paused(int)                        {}
func (NopObserver) Resumed(int)                       {}
func (NopObserver) RoundConcluded(domain.RoundResult) {}
func (NopObserver) GameFinished(domain.GameResult)    {}
