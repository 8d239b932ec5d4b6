package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"music-trivia-service/internal/domain"
)

// GameResultModel is the archived row of one finished game.
type GameResultModel struct {
	bun.BaseModel `bun:"table:game_results,alias:gr"`

	ID         int64                `bun:"id,pk,autoincrement"`
	GameID     string               `bun:"game_id,notnull"`
	UserID     string               `bun:"user_id,notnull"`
	Subject    string               `bun:"subject,notnull"`
	TotalScore int                  `bun:"total_score,notnull"`
	Accuracy   float64              `bun:"accuracy,notnull"`
	MaxStreak  int                  `bun:"max_streak,notnull"`
	Rounds     []domain.RoundResult `bun:"rounds,type:jsonb"`
	FinishedAt time.Time            `bun:"finished_at,notnull"`
}

// ResultArchive stores full game results through bun.
type ResultArchive struct {
	db *bun.DB
}

func NewResultArchive(db *bun.DB) *ResultArchive {
	return &ResultArchive{db: db}
}

func (a *ResultArchive) Archive(ctx context.Context, userID string, res domain.GameResult) error {
	row := &GameResultModel{
		GameID:     res.GameID,
		UserID:     userID,
		Subject:    string(res.SubjectMode),
		TotalScore: res.TotalScore,
		Accuracy:   res.Accuracy,
		MaxStreak:  res.MaxStreak,
		Rounds:     res.Rounds,
		FinishedAt: res.FinishedAt,
	}
	if _, err := a.db.NewInsert().Model(row).Exec(ctx); err != nil {
		return fmt.Errorf("archive game %s: %w", res.GameID, err)
	}
	return nil
}

// Recent returns a user's latest archived games, newest first.
func (a *ResultArchive) Recent(ctx context.Context, userID string, limit int) ([]domain.GameResult, error) {
	var rows []GameResultModel
	err := a.db.NewSelect().
		Model(&rows).
		Where("user_id = ?", userID).
		Order("finished_at DESC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("load archived games: %w", err)
	}
	out := make([]domain.GameResult, 0, len(rows))
	for _, row := range rows {
		res := domain.NewGameResult(domain.SubjectMode(row.Subject), row.Rounds, row.FinishedAt)
		res.GameID = row.GameID
		out = append(out, res)
	}
	return out, nil
}
