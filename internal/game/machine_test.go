package game

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"music-trivia-service/internal/domain"
	"music-trivia-service/internal/quiz"
)

type recorder struct {
	mu       sync.Mutex
	started  []domain.QuizQuestion
	ticks    []int
	paused   int
	resumed  int
	results  []domain.RoundResult
	finished []domain.GameResult
}

func (r *recorder) RoundStarted(q domain.QuizQuestion) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.started = append(r.started, q)
}

func (r *recorder) Tick(_, remaining int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ticks = append(r.ticks, remaining)
}

func (r *recorder) Paused(int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paused++
}

func (r *recorder) Resumed(int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resumed++
}

func (r *recorder) RoundConcluded(res domain.RoundResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, res)
}

func (r *recorder) GameFinished(res domain.GameResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finished = append(r.finished, res)
}

var testConfig = Config{
	RoundDuration: 30 * time.Second,
	RevealDelay:   2 * time.Second,
}

func distinctTracks(n int) []domain.Track {
	tracks := make([]domain.Track, 0, n)
	for i := 0; i < n; i++ {
		tracks = append(tracks, domain.Track{
			ID:      fmt.Sprintf("t%d", i),
			Name:    fmt.Sprintf("Midnight Train %c", 'A'+i),
			Artists: []string{fmt.Sprintf("Performer %c", 'A'+i)},
			Album:   fmt.Sprintf("Record %c", 'A'+i),
		})
	}
	return tracks
}

func newTestMachine(t *testing.T, mode domain.SubjectMode, rounds int) (*Machine, *ManualClock, *recorder) {
	t.Helper()
	clock := NewManualClock(time.Unix(0, 0))
	rec := &recorder{}
	m := New(distinctTracks(5), mode, rounds, testConfig,
		WithClock(clock),
		WithRand(rand.New(rand.NewPCG(1, 2))),
		WithObserver(rec),
	)
	if err := m.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	return m, clock, rec
}

func currentAnswer(t *testing.T, m *Machine) string {
	t.Helper()
	q, ok := m.CurrentQuestion()
	if !ok {
		t.Fatalf("expected a current question")
	}
	return q.CorrectAnswer
}

func TestPoints(t *testing.T) {
	cases := []struct {
		remaining, total, streak, want int
	}{
		{30, 30, 0, 150},
		{0, 30, 0, 100},
		{15, 30, 0, 125},
		{30, 30, 2, 170},
		{10, 30, 1, 127},
		{5, 0, 0, 100},
	}
	for _, tc := range cases {
		if got := Points(tc.remaining, tc.total, tc.streak); got != tc.want {
			t.Fatalf("Points(%d, %d, %d) = %d, want %d", tc.remaining, tc.total, tc.streak, got, tc.want)
		}
	}
	if !(Points(30, 30, 0) > Points(20, 30, 0) && Points(20, 30, 0) > Points(10, 30, 0)) {
		t.Fatalf("expected score to fall as time runs out")
	}
}

func TestInstantCorrectAnswerScores150(t *testing.T) {
	m, _, _ := newTestMachine(t, domain.SubjectTrack, 5)

	res, ok := m.SubmitAnswer(currentAnswer(t, m))
	if !ok {
		t.Fatalf("expected submission to be accepted")
	}
	if !res.IsCorrect || res.PointsAwarded != 150 || res.StreakAfterThisRound != 1 {
		t.Fatalf("unexpected result %+v", res)
	}
	if snap := m.Snapshot(); snap.Playing || snap.Score != 150 {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
}

func TestStreakBonusUsesIncomingStreak(t *testing.T) {
	m, clock, _ := newTestMachine(t, domain.SubjectTrack, 5)

	var points []int
	for i := 0; i < 3; i++ {
		res, ok := m.SubmitAnswer(currentAnswer(t, m))
		if !ok {
			t.Fatalf("round %d: submission rejected", i+1)
		}
		points = append(points, res.PointsAwarded)
		clock.Advance(testConfig.RevealDelay)
	}
	want := []int{150, 160, 170}
	for i := range want {
		if points[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, points)
		}
	}
}

func TestIncorrectAnswerResetsStreak(t *testing.T) {
	m, clock, _ := newTestMachine(t, domain.SubjectTrack, 5)

	m.SubmitAnswer(currentAnswer(t, m))
	clock.Advance(testConfig.RevealDelay)

	res, _ := m.SubmitAnswer("definitely not it")
	if res.IsCorrect || res.PointsAwarded != 0 || res.StreakAfterThisRound != 0 {
		t.Fatalf("unexpected result %+v", res)
	}
	if snap := m.Snapshot(); snap.Streak != 0 || snap.MaxStreak != 1 {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
}

func TestTimeoutCountsAsIncorrect(t *testing.T) {
	m, clock, rec := newTestMachine(t, domain.SubjectTrack, 5)

	clock.Advance(29 * time.Second)
	if len(m.Results()) != 0 {
		t.Fatalf("round concluded early")
	}
	clock.Advance(time.Second)

	results := m.Results()
	if len(results) != 1 {
		t.Fatalf("expected timeout result, got %d", len(results))
	}
	res := results[0]
	if res.IsCorrect || !res.TimedOut || res.PointsAwarded != 0 || res.TimeRemainingAtAnswer != 0 {
		t.Fatalf("unexpected timeout result %+v", res)
	}
	if len(rec.ticks) != 30 || rec.ticks[29] != 0 {
		t.Fatalf("expected 30 ticks ending at 0, got %v", rec.ticks)
	}
	if _, ok := m.SubmitAnswer(currentAnswer(t, m)); ok {
		t.Fatalf("late answer after timeout must be ignored")
	}
}

func TestDuplicateSubmissionScoresOnce(t *testing.T) {
	m, _, rec := newTestMachine(t, domain.SubjectTrack, 5)
	answer := currentAnswer(t, m)

	var wg sync.WaitGroup
	accepted := make(chan bool, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, ok := m.SubmitAnswer(answer)
			accepted <- ok
		}()
	}
	wg.Wait()
	close(accepted)

	n := 0
	for ok := range accepted {
		if ok {
			n++
		}
	}
	if n != 1 || len(m.Results()) != 1 || len(rec.results) != 1 {
		t.Fatalf("expected exactly one scored outcome, accepted=%d results=%d", n, len(m.Results()))
	}
}

func TestPauseFreezesCountdown(t *testing.T) {
	m, clock, rec := newTestMachine(t, domain.SubjectTrack, 5)

	clock.Advance(5 * time.Second)
	if !m.Pause() {
		t.Fatalf("expected pause")
	}
	if m.Pause() {
		t.Fatalf("second pause must be a no-op")
	}
	clock.Advance(time.Minute)
	snap := m.Snapshot()
	if snap.TimeRemaining != 25 || !snap.Paused || !snap.Playing {
		t.Fatalf("unexpected snapshot while paused %+v", snap)
	}
	if len(m.Results()) != 0 {
		t.Fatalf("paused round must not time out")
	}

	if !m.Resume() || m.Resume() {
		t.Fatalf("expected exactly one resume")
	}
	clock.Advance(25 * time.Second)
	if len(m.Results()) != 1 || !m.Results()[0].TimedOut {
		t.Fatalf("expected timeout after resuming, got %+v", m.Results())
	}
	if rec.paused != 1 || rec.resumed != 1 {
		t.Fatalf("unexpected pause events %d/%d", rec.paused, rec.resumed)
	}
}

func TestPauseOutsideRoundIsNoop(t *testing.T) {
	m, _, _ := newTestMachine(t, domain.SubjectTrack, 5)
	if m.Resume() {
		t.Fatalf("resume without pause must be a no-op")
	}
	m.SubmitAnswer("x")
	if m.Pause() {
		t.Fatalf("pause after answering must be a no-op")
	}
}

func TestGameRunsToFinish(t *testing.T) {
	m, clock, rec := newTestMachine(t, domain.SubjectTrack, 5)

	total := len(m.Questions())
	if total != 5 {
		t.Fatalf("expected 5 questions, got %d", total)
	}
	for i := 0; i < total; i++ {
		if i == 2 {
			m.SubmitAnswer("wrong")
		} else {
			m.SubmitAnswer(currentAnswer(t, m))
		}
		clock.Advance(testConfig.RevealDelay)
	}

	res, ok := m.Result()
	if !ok {
		t.Fatalf("expected final result")
	}
	sum := 0
	for _, r := range res.Rounds {
		sum += r.PointsAwarded
	}
	if res.TotalScore != sum || res.TotalScore != m.Snapshot().Score {
		t.Fatalf("total %d does not match round sum %d", res.TotalScore, sum)
	}
	if res.MaxStreak != 2 || res.Accuracy != 80 || res.SubjectMode != domain.SubjectTrack {
		t.Fatalf("unexpected final result %+v", res)
	}
	if len(rec.finished) != 1 || len(rec.started) != 5 {
		t.Fatalf("expected 5 rounds and one finish, got %d/%d", len(rec.started), len(rec.finished))
	}
	if err := m.Start(); !errors.Is(err, domain.ErrGameFinished) {
		t.Fatalf("expected finished error, got %v", err)
	}
	if clock.Pending() != 0 {
		t.Fatalf("expected no pending timers, got %d", clock.Pending())
	}
}

func TestResetCancelsPendingTransition(t *testing.T) {
	m, clock, rec := newTestMachine(t, domain.SubjectTrack, 5)

	m.SubmitAnswer(currentAnswer(t, m))
	m.Reset()
	clock.Advance(time.Minute)

	snap := m.Snapshot()
	if snap.Playing || snap.Round != 1 || snap.Score != 0 || len(m.Results()) != 0 {
		t.Fatalf("expected idle machine after reset, got %+v", snap)
	}
	if len(rec.started) != 1 {
		t.Fatalf("stale transition started a round")
	}
	if err := m.Start(); err != nil {
		t.Fatalf("start after reset: %v", err)
	}
	if snap := m.Snapshot(); !snap.Playing || snap.TimeRemaining != 30 {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
}

func TestStartGuards(t *testing.T) {
	m, _, _ := newTestMachine(t, domain.SubjectTrack, 5)
	if err := m.Start(); !errors.Is(err, domain.ErrRoundInProgress) {
		t.Fatalf("expected round in progress, got %v", err)
	}
	m.SubmitAnswer("x")
	if err := m.Start(); !errors.Is(err, domain.ErrRoundInProgress) {
		t.Fatalf("expected reveal pause to block start, got %v", err)
	}

	empty := New(distinctTracks(3), domain.SubjectTrack, 5, testConfig, WithClock(NewManualClock(time.Unix(0, 0))))
	if err := empty.Start(); !errors.Is(err, domain.ErrNotEnoughTracks) {
		t.Fatalf("expected not enough tracks, got %v", err)
	}
}

func TestCloseStopsTimers(t *testing.T) {
	m, clock, rec := newTestMachine(t, domain.SubjectTrack, 5)
	m.Close()
	clock.Advance(time.Minute)
	if len(rec.ticks) != 0 || len(m.Results()) != 0 {
		t.Fatalf("closed machine kept running")
	}
	if _, ok := m.SubmitAnswer(currentAnswer(t, m)); ok {
		t.Fatalf("closed machine accepted an answer")
	}
}

func TestFuzzyAcceptanceDependsOnSubject(t *testing.T) {
	m, _, _ := newTestMachine(t, domain.SubjectTrack, 5)
	res, _ := m.SubmitAnswer(currentAnswer(t, m) + "x")
	if !res.IsCorrect {
		t.Fatalf("expected near-miss track name to be accepted")
	}

	a, _, _ := newTestMachine(t, domain.SubjectArtist, 5)
	res, _ = a.SubmitAnswer(currentAnswer(t, a) + "x")
	if res.IsCorrect {
		t.Fatalf("artist answers must match exactly")
	}
}

func TestZeroThresholdAcceptsExactTrackNamesOnly(t *testing.T) {
	exact := 0.0
	cfg := testConfig
	cfg.FuzzyThreshold = &exact
	m := New(distinctTracks(5), domain.SubjectTrack, 5, cfg,
		WithClock(NewManualClock(time.Unix(0, 0))),
		WithRand(rand.New(rand.NewPCG(1, 2))),
	)
	if err := m.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	res, _ := m.SubmitAnswer(currentAnswer(t, m) + "x")
	if res.IsCorrect {
		t.Fatalf("expected near miss to be rejected at zero threshold")
	}
}

func TestSpokenThresholdsAreConfigurable(t *testing.T) {
	exact := 0.0
	submit := func(cfg Config) domain.RoundResult {
		t.Helper()
		cfg.FuzzyThreshold = &exact
		m := New(distinctTracks(5), domain.SubjectArtist, 5, cfg,
			WithClock(NewManualClock(time.Unix(0, 0))),
			WithRand(rand.New(rand.NewPCG(1, 2))),
		)
		if err := m.Start(); err != nil {
			t.Fatalf("start: %v", err)
		}
		res, ok := m.SubmitSpoken([]string{currentAnswer(t, m) + "s"})
		if !ok {
			t.Fatalf("expected spoken submission to be accepted")
		}
		return res
	}

	if res := submit(testConfig); !res.IsCorrect {
		t.Fatalf("expected default resolver to accept a close transcript, got %+v", res)
	}

	strict := testConfig
	strict.PhoneticThreshold = 1
	strict.SpokenFallbackThreshold = 1
	if res := submit(strict); res.IsCorrect {
		t.Fatalf("expected strict resolver to reject a close transcript, got %+v", res)
	}
}

// playShortGame answers every round after the given delay, or wrongly when
// the delay is negative, and returns the round results.
func playShortGame(t *testing.T, delays []time.Duration) []domain.RoundResult {
	t.Helper()
	tracks := distinctTracks(5)
	rounds := quiz.RoundCount(domain.RoundLengthShort, quiz.PoolSize(tracks, domain.SubjectTrack))
	if rounds != len(delays) {
		t.Fatalf("expected %d rounds, got %d", len(delays), rounds)
	}

	clock := NewManualClock(time.Unix(0, 0))
	m := New(tracks, domain.SubjectTrack, rounds, testConfig,
		WithClock(clock),
		WithRand(rand.New(rand.NewPCG(5, 6))),
	)
	if got := len(m.Questions()); got != min(5, quiz.PoolSize(tracks, domain.SubjectTrack)) {
		t.Fatalf("expected %d questions, got %d", min(5, quiz.PoolSize(tracks, domain.SubjectTrack)), got)
	}
	if err := m.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}

	var results []domain.RoundResult
	for i, delay := range delays {
		answer := "nothing like it"
		if delay >= 0 {
			clock.Advance(delay)
			answer = currentAnswer(t, m)
		}
		res, ok := m.SubmitAnswer(answer)
		if !ok {
			t.Fatalf("round %d: submission rejected", i+1)
		}
		if delay >= 0 && res.TimeRemainingAtAnswer != 30-int(delay/time.Second) {
			t.Fatalf("round %d: expected %ds left, got %d", i+1, 30-int(delay/time.Second), res.TimeRemainingAtAnswer)
		}
		results = append(results, res)
		clock.Advance(testConfig.RevealDelay)
	}
	if _, ok := m.Result(); !ok {
		t.Fatalf("expected game to finish")
	}
	return results
}

func TestScoreFallsWithElapsedTimeWithoutStreak(t *testing.T) {
	// Wrong answers in between keep the incoming streak at zero.
	results := playShortGame(t, []time.Duration{3 * time.Second, -1, 9 * time.Second, -1, 15 * time.Second})

	var points []int
	for _, res := range results {
		if !res.IsCorrect {
			if res.PointsAwarded != 0 || res.StreakAfterThisRound != 0 {
				t.Fatalf("unexpected wrong-answer result %+v", res)
			}
			continue
		}
		if want := Points(res.TimeRemainingAtAnswer, 30, 0); res.PointsAwarded != want {
			t.Fatalf("round %d: expected %d points, got %d", res.RoundNumber, want, res.PointsAwarded)
		}
		points = append(points, res.PointsAwarded)
	}
	want := []int{145, 135, 125}
	if fmt.Sprint(points) != fmt.Sprint(want) {
		t.Fatalf("expected %v, got %v", want, points)
	}
}

func TestScoreRisesWithStreakDespiteElapsedTime(t *testing.T) {
	results := playShortGame(t, []time.Duration{
		1 * time.Second, 2 * time.Second, 3 * time.Second, 4 * time.Second, 5 * time.Second,
	})

	var points []int
	for i, res := range results {
		if !res.IsCorrect || res.StreakAfterThisRound != i+1 {
			t.Fatalf("round %d: unexpected result %+v", i+1, res)
		}
		points = append(points, res.PointsAwarded)
	}
	want := []int{148, 157, 165, 173, 182}
	if fmt.Sprint(points) != fmt.Sprint(want) {
		t.Fatalf("expected %v, got %v", want, points)
	}
	for i := 1; i < len(points); i++ {
		if points[i] <= points[i-1] {
			t.Fatalf("expected strictly increasing scores, got %v", points)
		}
	}
}

func TestSubmitSpokenResolvesToOption(t *testing.T) {
	m, _, _ := newTestMachine(t, domain.SubjectArtist, 5)
	answer := currentAnswer(t, m)

	res, ok := m.SubmitSpoken([]string{"", "something else entirely", answer + "s"})
	if !ok {
		t.Fatalf("expected spoken submission to be accepted")
	}
	if !res.IsCorrect || res.UserAnswer != answer {
		t.Fatalf("expected spoken answer to resolve to %q, got %+v", answer, res)
	}
}

func TestSubmitSpokenUnresolvedFallsBackToText(t *testing.T) {
	m, _, _ := newTestMachine(t, domain.SubjectArtist, 5)
	res, ok := m.SubmitSpoken([]string{"   ", "qqqq"})
	if !ok || res.IsCorrect || res.UserAnswer != "qqqq" {
		t.Fatalf("unexpected spoken result %+v ok=%v", res, ok)
	}
}
