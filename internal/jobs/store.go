package jobs

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Store persists jobs. TransitionJob must check CanTransition and write the
// new status atomically. ClaimJob must apply Job.Claim as a compare and swap
// so that only one runner wins a job.
type Store interface {
	CreateJob(ctx context.Context, j Job) error
	GetJob(ctx context.Context, id string) (Job, error)
	// ListJobs returns newest first; limit <= 0 means no limit.
	ListJobs(ctx context.Context, limit int) ([]Job, error)
	TransitionJob(ctx context.Context, id string, to Status, u Update, at time.Time) (Job, error)
	ClaimJob(ctx context.Context, seen Job, at time.Time) (Job, error)
	GetJobByShareToken(ctx context.Context, token string) (Job, error)
	IncrementViews(ctx context.Context, id string, at time.Time) (Job, error)
}

// MemoryStore keeps jobs in process memory.
type MemoryStore struct {
	mu    sync.Mutex
	jobs  map[string]Job
	order []string
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{jobs: make(map[string]Job)}
}

func (s *MemoryStore) CreateJob(_ context.Context, j Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[j.ID]; ok {
		return fmt.Errorf("create job %s: already exists", j.ID)
	}
	s.jobs[j.ID] = j
	s.order = append(s.order, j.ID)
	return nil
}

func (s *MemoryStore) GetJob(_ context.Context, id string) (Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return Job{}, ErrNotFound
	}
	return j, nil
}

func (s *MemoryStore) ListJobs(_ context.Context, limit int) ([]Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Job, 0, len(s.order))
	for i := len(s.order) - 1; i >= 0; i-- {
		out = append(out, s.jobs[s.order[i]])
	}
	// insertion order already matches creation order unless clocks disagree
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) TransitionJob(_ context.Context, id string, to Status, u Update, at time.Time) (Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return Job{}, ErrNotFound
	}
	if err := j.Apply(to, u, at); err != nil {
		return Job{}, err
	}
	s.jobs[id] = j
	return j, nil
}

func (s *MemoryStore) ClaimJob(_ context.Context, seen Job, at time.Time) (Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[seen.ID]
	if !ok {
		return Job{}, ErrNotFound
	}
	if err := j.Claim(seen, at); err != nil {
		return Job{}, err
	}
	s.jobs[seen.ID] = j
	return j, nil
}

func (s *MemoryStore) GetJobByShareToken(_ context.Context, token string) (Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, j := range s.jobs {
		if token != "" && j.ShareToken == token {
			return j, nil
		}
	}
	return Job{}, ErrNotFound
}

func (s *MemoryStore) IncrementViews(_ context.Context, id string, at time.Time) (Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return Job{}, ErrNotFound
	}
	j.ViewCount++
	j.UpdatedAt = at
	s.jobs[id] = j
	return j, nil
}
