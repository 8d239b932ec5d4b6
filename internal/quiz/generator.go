// Package quiz builds the ordered list of multiple-choice rounds for a game.
package quiz

import (
	"math/rand/v2"
	"slices"

	log "github.com/sirupsen/logrus"

	"music-trivia-service/internal/catalog"
	"music-trivia-service/internal/domain"
)

const (
	// MinPoolSize is the smallest deduplicated pool a quiz can be built from.
	MinPoolSize = 4
	// OptionCount is the number of choices offered per round when the pool allows it.
	OptionCount = 4
)

var roundTargets = map[domain.RoundLength]int{
	domain.RoundLengthShort:    5,
	domain.RoundLengthStandard: 10,
	domain.RoundLengthLong:     20,
}

// RoundCount maps a round length setting onto the available pool size.
// It returns 0 when the pool is too small to play at all.
func RoundCount(length domain.RoundLength, poolSize int) int {
	if poolSize < MinPoolSize {
		return 0
	}
	if length == domain.RoundLengthMax {
		return poolSize
	}
	target, ok := roundTargets[length]
	if !ok {
		target = roundTargets[domain.RoundLengthStandard]
	}
	return min(target, poolSize)
}

// PoolSize returns how many distinct songs tracks yields for mode.
func PoolSize(tracks []domain.Track, mode domain.SubjectMode) int {
	return len(catalog.Deduplicate(tracks, mode))
}

// Generator turns a catalog into quiz questions. It is not safe for
// concurrent use since it owns its random source.
type Generator struct {
	rng    *rand.Rand
	logger log.FieldLogger
}

// NewGenerator returns a Generator drawing from rng. A nil rng gets a randomly
// seeded source.
func NewGenerator(rng *rand.Rand, logger log.FieldLogger) *Generator {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Generator{rng: rng, logger: logger}
}

// Generate builds up to rounds questions about mode from tracks. The result is
// empty when the deduplicated pool has fewer than MinPoolSize songs.
func (g *Generator) Generate(tracks []domain.Track, mode domain.SubjectMode, rounds int) []domain.QuizQuestion {
	pool := catalog.Deduplicate(tracks, mode)
	if len(pool) < MinPoolSize || rounds <= 0 {
		return []domain.QuizQuestion{}
	}
	g.rng.Shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })

	n := min(rounds, len(pool))
	questions := make([]domain.QuizQuestion, 0, n)
	for i := 0; i < n; i++ {
		questions = append(questions, g.question(pool, i, mode))
	}
	return questions
}

func (g *Generator) question(pool []catalog.Group, selected int, mode domain.SubjectMode) domain.QuizQuestion {
	group := pool[selected]
	correct := group.Representative.Subject(mode)

	accepted := []string{correct}
	if mode == domain.SubjectTrack {
		accepted = group.Names()
		if !slices.Contains(accepted, correct) {
			accepted = append([]string{correct}, accepted...)
		}
	}

	options := make([]string, 0, OptionCount)
	options = append(options, correct)
	for i, other := range pool {
		if len(options) == OptionCount {
			break
		}
		if i == selected {
			continue
		}
		value := other.Representative.Subject(mode)
		if value == "" || slices.Contains(accepted, value) || slices.Contains(options, value) {
			continue
		}
		options = append(options, value)
	}
	g.rng.Shuffle(len(options), func(i, j int) { options[i], options[j] = options[j], options[i] })
	options = g.ensureCorrectOption(options, correct)

	return domain.QuizQuestion{
		Track:          group.Representative,
		Options:        options,
		CorrectAnswer:  correct,
		CorrectAnswers: accepted,
		RoundNumber:    selected + 1,
	}
}

// ensureCorrectOption overwrites a random slot with correct when it is missing.
func (g *Generator) ensureCorrectOption(options []string, correct string) []string {
	if slices.Contains(options, correct) {
		return options
	}
	if len(options) == 0 {
		g.logger.WithField("correct", correct).Warn("question had no options, adding correct answer")
		return []string{correct}
	}
	slot := g.rng.IntN(len(options))
	g.logger.WithFields(log.Fields{
		"correct":  correct,
		"replaced": options[slot],
	}).Warn("correct answer missing from options, repairing")
	options[slot] = correct
	return options
}
