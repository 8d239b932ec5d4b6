package cli

import (
	"errors"

	"github.com/jackc/pgx/v4/pgxpool"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"music-trivia-service/internal/config"
	"music-trivia-service/internal/domain"
	"music-trivia-service/internal/infra/memory"
	"music-trivia-service/internal/infra/postgres"
)

// NewImportCmd loads a JSON track file into the Postgres catalog.
func NewImportCmd(configPath *string) *cobra.Command {
	var (
		catalogFile string
		source      string
		sourceKey   string
	)
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import a JSON track file into the Postgres catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			defer setupLogging(cfg).Close()
			if cfg.Postgres.URL == "" {
				return errors.New("postgres url not configured")
			}
			loader, err := memory.LoadCatalogFile(catalogFile)
			if err != nil {
				return err
			}
			tracks, err := loader.LoadTracks(cmd.Context(), domain.Selection{})
			if err != nil {
				return err
			}

			pool, err := pgxpool.Connect(cmd.Context(), cfg.Postgres.URL)
			if err != nil {
				return err
			}
			defer pool.Close()

			if err := postgres.NewCatalogLoader(pool).ReplaceTracks(cmd.Context(), source, sourceKey, tracks); err != nil {
				return err
			}
			log.WithFields(log.Fields{"source": source, "key": sourceKey, "tracks": len(tracks)}).Info("catalog imported")
			return nil
		},
	}
	cmd.Flags().StringVar(&catalogFile, "catalog", "", "JSON file with a track array")
	cmd.Flags().StringVar(&source, "source", "top-tracks", "catalog source the tracks belong to")
	cmd.Flags().StringVar(&sourceKey, "key", "", "playlist or artist id for keyed sources")
	_ = cmd.MarkFlagRequired("catalog")
	return cmd
}
