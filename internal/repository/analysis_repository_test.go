package repository

import (
	"context"
	"testing"
	"time"

	"chart-insights/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	_ AnalysisStore = (*AnalysisRepository)(nil)
	_ AnalysisStore = (*MemoryAnalysisRepository)(nil)
)

func TestInsertAnalysisQuery(t *testing.T) {
	a := &models.Analysis{ID: uuid.New(), SessionID: "s1", Kind: models.InputKindImage, FileName: "chart.png"}

	sql, args, err := insertAnalysisQuery(a).ToSql()
	require.NoError(t, err)
	assert.Equal(t,
		"INSERT INTO analyses (id,session_id,kind,file_name,file_size,provider,model,insights,object_key,created_at) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)",
		sql)
	assert.Len(t, args, 10)
	assert.Equal(t, "s1", args[1])
}

func TestListAnalysesQuery(t *testing.T) {
	sql, args, err := listAnalysesQuery("s1", 20, 40).ToSql()
	require.NoError(t, err)
	assert.Equal(t,
		"SELECT id, session_id, kind, file_name, file_size, provider, model, insights, object_key, created_at FROM analyses WHERE session_id = $1 ORDER BY created_at DESC LIMIT 20 OFFSET 40",
		sql)
	assert.Equal(t, []interface{}{"s1"}, args)
}

func TestMemoryAnalysisRepository(t *testing.T) {
	repo := NewMemoryAnalysisRepository()
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	for i, session := range []string{"a", "b", "a", "a"} {
		require.NoError(t, repo.Create(ctx, &models.Analysis{
			ID:        uuid.New(),
			SessionID: session,
			FileName:  string(rune('w' + i)),
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	all, err := repo.ListBySession(ctx, "a", 10, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "z", all[0].FileName, "newest first")
	assert.Equal(t, "w", all[2].FileName)

	page, err := repo.ListBySession(ctx, "a", 1, 1)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "y", page[0].FileName)

	none, err := repo.ListBySession(ctx, "a", 10, 5)
	require.NoError(t, err)
	assert.Empty(t, none)
}
