package cli

import (
	"encoding/json"
	"fmt"
	"math/rand/v2"

	"github.com/spf13/cobra"

	"music-trivia-service/internal/domain"
	"music-trivia-service/internal/infra/memory"
	"music-trivia-service/internal/quiz"
)

// NewGenerateCmd prints a generated quiz for a catalog file, for inspecting
// deduplication and distractor choice offline.
func NewGenerateCmd() *cobra.Command {
	var (
		catalogFile string
		subject     string
		length      string
		seed        uint64
	)
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a quiz from a JSON track file and print it",
		RunE: func(cmd *cobra.Command, args []string) error {
			mode, err := domain.ParseSubjectMode(subject)
			if err != nil {
				return err
			}
			rl, err := domain.ParseRoundLength(length)
			if err != nil {
				return err
			}
			loader, err := memory.LoadCatalogFile(catalogFile)
			if err != nil {
				return err
			}
			tracks, err := loader.LoadTracks(cmd.Context(), domain.Selection{})
			if err != nil {
				return err
			}

			rounds := quiz.RoundCount(rl, quiz.PoolSize(tracks, mode))
			if rounds == 0 {
				return domain.ErrNotEnoughTracks
			}
			var rng *rand.Rand
			if seed != 0 {
				rng = rand.New(rand.NewPCG(seed, seed))
			}
			questions := quiz.NewGenerator(rng, nil).Generate(tracks, mode, rounds)

			out, err := json.MarshalIndent(questions, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}
	cmd.Flags().StringVar(&catalogFile, "catalog", "", "JSON file with a track array")
	cmd.Flags().StringVar(&subject, "subject", "track", "artist, album or track")
	cmd.Flags().StringVar(&length, "length", "standard", "short, standard, long or max")
	cmd.Flags().Uint64Var(&seed, "seed", 0, "random seed (0 picks one)")
	_ = cmd.MarkFlagRequired("catalog")
	return cmd
}
