package jobs

import (
	"context"
	"slices"
	"sync"

	"ytdl-api/internal/apperr"
	"ytdl-api/internal/models"
)

// Store persists job snapshots. Implementations must be safe for concurrent
// use; Put replaces the whole record atomically.
type Store interface {
	Get(ctx context.Context, id string) (models.DownloadJob, error)
	Put(ctx context.Context, job models.DownloadJob) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]models.DownloadJob, error)
}

// MemoryStore keeps jobs in a map. Values are copied in and out so callers
// never share a record with the store.
type MemoryStore struct {
	mu   sync.RWMutex
	jobs map[string]models.DownloadJob
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{jobs: make(map[string]models.DownloadJob)}
}

func (s *MemoryStore) Get(_ context.Context, id string) (models.DownloadJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[id]
	if !ok {
		return models.DownloadJob{}, apperr.New(apperr.KindNotFound, "download not found")
	}
	return job, nil
}

func (s *MemoryStore) Put(_ context.Context, job models.DownloadJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.jobs[job.ID] = job
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.jobs, id)
	return nil
}

// List returns jobs oldest first.
func (s *MemoryStore) List(_ context.Context) ([]models.DownloadJob, error) {
	s.mu.RLock()
	out := make([]models.DownloadJob, 0, len(s.jobs))
	for _, job := range s.jobs {
		out = append(out, job)
	}
	s.mu.RUnlock()

	slices.SortFunc(out, func(a, b models.DownloadJob) int {
		return a.StartedAt.Compare(b.StartedAt)
	})
	return out, nil
}
