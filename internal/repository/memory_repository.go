package repository

import (
	"context"
	"sort"
	"sync"

	"chart-insights/internal/models"
)

// MemoryAnalysisRepository keeps history in process memory. It is used when
// no database is configured.
type MemoryAnalysisRepository struct {
	mu       sync.RWMutex
	analyses []*models.Analysis
}

func NewMemoryAnalysisRepository() *MemoryAnalysisRepository {
	return &MemoryAnalysisRepository{}
}

func (r *MemoryAnalysisRepository) Create(_ context.Context, a *models.Analysis) error {
	stored := *a
	r.mu.Lock()
	r.analyses = append(r.analyses, &stored)
	r.mu.Unlock()
	return nil
}

func (r *MemoryAnalysisRepository) ListBySession(_ context.Context, sessionID string, limit, offset int) ([]*models.Analysis, error) {
	r.mu.RLock()
	var matched []*models.Analysis
	for _, a := range r.analyses {
		if a.SessionID == sessionID {
			c := *a
			matched = append(matched, &c)
		}
	}
	r.mu.RUnlock()

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	if offset >= len(matched) {
		return nil, nil
	}
	matched = matched[offset:]
	if limit > 0 && limit < len(matched) {
		matched = matched[:limit]
	}
	return matched, nil
}
