package repository

import (
	"context"

	"chart-insights/internal/models"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// AnalysisStore keeps analysis history.
type AnalysisStore interface {
	Create(ctx context.Context, a *models.Analysis) error
	ListBySession(ctx context.Context, sessionID string, limit, offset int) ([]*models.Analysis, error)
}

const analysesSchema = `
CREATE TABLE IF NOT EXISTS analyses (
	id          UUID PRIMARY KEY,
	session_id  TEXT NOT NULL,
	kind        TEXT NOT NULL,
	file_name   TEXT NOT NULL,
	file_size   BIGINT NOT NULL,
	provider    TEXT NOT NULL,
	model       TEXT NOT NULL,
	insights    TEXT NOT NULL,
	object_key  TEXT NOT NULL DEFAULT '',
	created_at  TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS analyses_session_created_idx ON analyses (session_id, created_at DESC);
`

var analysisColumns = []string{"id", "session_id", "kind", "file_name", "file_size", "provider", "model", "insights", "object_key", "created_at"}

type AnalysisRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewAnalysisRepository(db *pgxpool.Pool, logger *zap.Logger) *AnalysisRepository {
	return &AnalysisRepository{
		db:     db,
		logger: logger,
	}
}

// EnsureSchema creates the analyses table when missing.
func (r *AnalysisRepository) EnsureSchema(ctx context.Context) error {
	_, err := r.db.Exec(ctx, analysesSchema)
	return err
}

func (r *AnalysisRepository) Create(ctx context.Context, a *models.Analysis) error {
	sql, args, err := insertAnalysisQuery(a).ToSql()
	if err != nil {
		return err
	}

	_, err = r.db.Exec(ctx, sql, args...)
	return err
}

func (r *AnalysisRepository) ListBySession(ctx context.Context, sessionID string, limit, offset int) ([]*models.Analysis, error) {
	sql, args, err := listAnalysesQuery(sessionID, limit, offset).ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var analyses []*models.Analysis
	for rows.Next() {
		var a models.Analysis
		if err := rows.Scan(
			&a.ID, &a.SessionID, &a.Kind, &a.FileName, &a.FileSize, &a.Provider, &a.Model, &a.Insights, &a.ObjectKey, &a.CreatedAt,
		); err != nil {
			return nil, err
		}
		analyses = append(analyses, &a)
	}

	return analyses, rows.Err()
}

func insertAnalysisQuery(a *models.Analysis) squirrel.InsertBuilder {
	return squirrel.Insert("analyses").
		Columns(analysisColumns...).
		Values(a.ID, a.SessionID, a.Kind, a.FileName, a.FileSize, a.Provider, a.Model, a.Insights, a.ObjectKey, a.CreatedAt).
		PlaceholderFormat(squirrel.Dollar)
}

func listAnalysesQuery(sessionID string, limit, offset int) squirrel.SelectBuilder {
	return squirrel.Select(analysisColumns...).
		From("analyses").
		Where(squirrel.Eq{"session_id": sessionID}).
		OrderBy("created_at DESC").
		Limit(uint64(limit)).
		Offset(uint64(offset)).
		PlaceholderFormat(squirrel.Dollar)
}
