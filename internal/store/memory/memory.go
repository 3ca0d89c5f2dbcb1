// Package memory is a process-local task store, used when no database is
// configured and in handler tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/todoflow-labs/task-tracker/internal/task"
)

type Store struct {
	mu     sync.RWMutex
	tasks  map[int64]task.Task
	nextID int64
	now    func() time.Time
}

type Option func(*Store)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func New(opts ...Option) *Store {
	s := &Store{
		tasks: make(map[int64]task.Task),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// timestamps are kept at microsecond precision to match the postgres store.
func (s *Store) clock() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}

func (s *Store) Create(_ context.Context, d task.Draft) (task.Task, error) {
	if err := d.Validate(); err != nil {
		return task.Task{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	now := s.clock()
	t := task.Task{
		ID:          s.nextID,
		Title:       d.Title,
		Description: d.Description,
		CreatedAt:   now,
		UpdatedAt:   now,
		DueDate:     d.DueDate,
	}
	s.tasks[t.ID] = t
	return t, nil
}

func (s *Store) List(_ context.Context, q task.ListQuery) ([]task.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]task.Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		if q.Matches(t) {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return task.Newer(out[i], out[j]) })
	return out, nil
}

func (s *Store) Get(_ context.Context, id int64) (task.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tasks[id]
	if !ok {
		return task.Task{}, task.ErrNotFound
	}
	return t, nil
}

func (s *Store) Toggle(_ context.Context, id int64) (task.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[id]
	if !ok {
		return task.Task{}, task.ErrNotFound
	}

	t.IsCompleted = !t.IsCompleted
	now := s.clock()
	if !now.After(t.UpdatedAt) {
		now = t.UpdatedAt.Add(time.Microsecond)
	}
	t.UpdatedAt = now
	s.tasks[id] = t
	return t, nil
}

func (s *Store) Delete(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tasks[id]; !ok {
		return task.ErrNotFound
	}
	delete(s.tasks, id)
	return nil
}

func (s *Store) Ping(context.Context) error { return nil }
