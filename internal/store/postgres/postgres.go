package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/todoflow-labs/task-tracker/internal/task"
)

const createTable = `
CREATE TABLE IF NOT EXISTS tasks (
    id           BIGSERIAL PRIMARY KEY,
    title        VARCHAR(255) NOT NULL CHECK (title <> ''),
    description  TEXT NOT NULL DEFAULT '',
    is_completed BOOLEAN NOT NULL DEFAULT FALSE,
    created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
    due_date     DATE NULL
)`

const createIndex = `
CREATE INDEX IF NOT EXISTS tasks_created_at_idx ON tasks (created_at DESC, id DESC)`

const taskColumns = `id, title, description, is_completed, created_at, updated_at, due_date`

type Store struct {
	db     *pgxpool.Pool
	logger *zerolog.Logger
}

// Connect opens a pool with query tracing, pings it and makes sure the tasks
// table exists.
func Connect(ctx context.Context, dsn string, logger *zerolog.Logger) (*Store, error) {
	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse db config: %w", err)
	}
	poolCfg.MaxConns = 10
	poolCfg.MinConns = 1
	poolCfg.MaxConnIdleTime = time.Minute
	poolCfg.ConnConfig.Tracer = NewQueryTracer(logger, 0)

	connectCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(connectCtx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	if err := pool.Ping(connectCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	s := New(pool, logger)
	if err := s.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func New(db *pgxpool.Pool, logger *zerolog.Logger) *Store {
	return &Store{db: db, logger: logger}
}

func (s *Store) EnsureSchema(ctx context.Context) error {
	for _, stmt := range []string{createTable, createIndex} {
		if _, err := s.db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

func (s *Store) Create(ctx context.Context, d task.Draft) (task.Task, error) {
	if err := d.Validate(); err != nil {
		return task.Task{}, err
	}
	s.logger.Debug().Str("title", d.Title).Msg("inserting task")

	const q = `
INSERT INTO tasks (title, description, due_date)
VALUES ($1, $2, $3)
RETURNING ` + taskColumns

	t, err := scanTask(s.db.QueryRow(ctx, q, d.Title, d.Description, d.DueDate))
	if err != nil {
		return task.Task{}, fmt.Errorf("insert task: %w", err)
	}
	return t, nil
}

func (s *Store) List(ctx context.Context, lq task.ListQuery) ([]task.Task, error) {
	var completed *bool
	switch lq.Filter {
	case task.FilterActive:
		completed = new(bool)
	case task.FilterCompleted:
		completed = new(bool)
		*completed = true
	}

	const q = `
SELECT ` + taskColumns + `
FROM tasks
WHERE ($1::boolean IS NULL OR is_completed = $1)
  AND ($2 = '' OR strpos(lower(title), lower($2)) > 0 OR strpos(lower(description), lower($2)) > 0)
ORDER BY created_at DESC, id DESC`

	rows, err := s.db.Query(ctx, q, completed, lq.Search)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	tasks := []task.Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return tasks, nil
}

func (s *Store) Get(ctx context.Context, id int64) (task.Task, error) {
	const q = `SELECT ` + taskColumns + ` FROM tasks WHERE id = $1`

	t, err := scanTask(s.db.QueryRow(ctx, q, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return task.Task{}, task.ErrNotFound
		}
		return task.Task{}, fmt.Errorf("get task %d: %w", id, err)
	}
	return t, nil
}

// Toggle bumps updated_at by at least a microsecond so it always advances,
// even when now() has not moved since the previous write.
func (s *Store) Toggle(ctx context.Context, id int64) (task.Task, error) {
	const q = `
UPDATE tasks
SET is_completed = NOT is_completed,
    updated_at = GREATEST(now(), updated_at + interval '1 microsecond')
WHERE id = $1
RETURNING ` + taskColumns

	t, err := scanTask(s.db.QueryRow(ctx, q, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return task.Task{}, task.ErrNotFound
		}
		return task.Task{}, fmt.Errorf("toggle task %d: %w", id, err)
	}
	s.logger.Debug().Int64("task_id", id).Bool("is_completed", t.IsCompleted).Msg("task toggled")
	return t, nil
}

func (s *Store) Delete(ctx context.Context, id int64) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete task %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return task.ErrNotFound
	}
	s.logger.Debug().Int64("task_id", id).Msg("task deleted")
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	return s.db.Ping(ctx)
}

func (s *Store) Close() {
	s.db.Close()
}

func scanTask(row pgx.Row) (task.Task, error) {
	var (
		t   task.Task
		due *time.Time
	)
	if err := row.Scan(
		&t.ID,
		&t.Title,
		&t.Description,
		&t.IsCompleted,
		&t.CreatedAt,
		&t.UpdatedAt,
		&due,
	); err != nil {
		return task.Task{}, err
	}
	t.CreatedAt = t.CreatedAt.UTC()
	t.UpdatedAt = t.UpdatedAt.UTC()
	if due != nil {
		d := time.Date(due.Year(), due.Month(), due.Day(), 0, 0, 0, 0, time.UTC)
		t.DueDate = &d
	}
	return t, nil
}
