package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/todoflow-labs/task-tracker/internal/dto"
	"github.com/todoflow-labs/task-tracker/internal/logging"
	"github.com/todoflow-labs/task-tracker/internal/metrics"
	"github.com/todoflow-labs/task-tracker/internal/task"
)

// ListPath is where every mutation redirects.
const ListPath = "/"

type Store interface {
	Create(ctx context.Context, d task.Draft) (task.Task, error)
	List(ctx context.Context, q task.ListQuery) ([]task.Task, error)
	Get(ctx context.Context, id int64) (task.Task, error)
	Toggle(ctx context.Context, id int64) (task.Task, error)
	Delete(ctx context.Context, id int64) error
}

type Publisher interface {
	Publish(ctx context.Context, evt dto.TaskEvent) error
}

type Deps struct {
	Store  Store
	Events Publisher
	View   *View
	Logger *logging.Logger
}

func ListTasks(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := dto.ListTasksQueryFrom(r.URL.Query())
		logger := d.requestLogger(r)
		logger.Debug().Str("filter", string(q.Filter)).Str("q", q.Search).Msg("listing tasks")

		tasks, err := d.Store.List(r.Context(), q.ListQuery())
		if err != nil {
			logger.Error().Err(err).Msg("failed to list tasks")
			metrics.RecordTaskOperation("list", metrics.OutcomeError)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		metrics.RecordTaskOperation("list", metrics.OutcomeSuccess)

		if err := d.View.RenderList(w, http.StatusOK, dto.NewTaskListPage(tasks, q)); err != nil {
			if errors.Is(err, errResponseWrite) {
				logger.Warn().Err(err).Msg("failed to write task list")
				return
			}
			logger.Error().Err(err).Msg("failed to render task list")
			http.Error(w, "internal error", http.StatusInternalServerError)
		}
	}
}

// CreateTask never reports validation problems to the caller: a missing
// title creates nothing and a bad due date is dropped, and both redirect.
func CreateTask(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := d.requestLogger(r)
		logger.Debug().Msg("handling create task")

		if err := r.ParseForm(); err != nil {
			logger.Warn().Err(err).Msg("unreadable create form")
			metrics.RecordTaskOperation("create", metrics.OutcomeIgnored)
			http.Redirect(w, r, ListPath, http.StatusFound)
			return
		}
		form := dto.CreateTaskFormFrom(r.PostForm)

		draft, err := form.Draft()
		if err != nil {
			logger.Debug().Err(err).Msg("ignoring create")
			metrics.RecordTaskOperation("create", metrics.OutcomeIgnored)
			http.Redirect(w, r, ListPath, http.StatusFound)
			return
		}
		if form.DueDate != "" && draft.DueDate == nil {
			logger.Debug().Str("due_date", form.DueDate).Msg("dropping malformed due date")
		}

		created, err := d.Store.Create(r.Context(), draft)
		if err != nil {
			logger.Error().Err(err).Msg("failed to create task")
			metrics.RecordTaskOperation("create", metrics.OutcomeError)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		logger.Debug().Int64("task_id", created.ID).Msg("task created")
		metrics.RecordTaskOperation("create", metrics.OutcomeSuccess)
		d.publish(r, dto.TaskCreated, created)
		http.Redirect(w, r, ListPath, http.StatusFound)
	}
}

func ToggleTask(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := d.requestLogger(r)
		id, ok := taskID(r)
		if !ok {
			d.notFound(w, r, "toggle")
			return
		}

		toggled, err := d.Store.Toggle(r.Context(), id)
		if err != nil {
			if errors.Is(err, task.ErrNotFound) {
				d.notFound(w, r, "toggle")
				return
			}
			logger.Error().Err(err).Int64("task_id", id).Msg("failed to toggle task")
			metrics.RecordTaskOperation("toggle", metrics.OutcomeError)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		logger.Debug().Int64("task_id", id).Bool("is_completed", toggled.IsCompleted).Msg("task toggled")
		metrics.RecordTaskOperation("toggle", metrics.OutcomeSuccess)
		d.publish(r, dto.TaskToggled, toggled)
		http.Redirect(w, r, ListPath, http.StatusFound)
	}
}

func DeleteTask(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := d.requestLogger(r)
		id, ok := taskID(r)
		if !ok {
			d.notFound(w, r, "delete")
			return
		}

		if err := d.Store.Delete(r.Context(), id); err != nil {
			if errors.Is(err, task.ErrNotFound) {
				d.notFound(w, r, "delete")
				return
			}
			logger.Error().Err(err).Int64("task_id", id).Msg("failed to delete task")
			metrics.RecordTaskOperation("delete", metrics.OutcomeError)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		logger.Debug().Int64("task_id", id).Msg("task deleted")
		metrics.RecordTaskOperation("delete", metrics.OutcomeSuccess)
		d.publish(r, dto.TaskDeleted, task.Task{ID: id})
		http.Redirect(w, r, ListPath, http.StatusFound)
	}
}

// GetTask serves a single task as JSON.
func GetTask(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := taskID(r)
		if !ok {
			WriteError(w, http.StatusNotFound, task.ErrNotFound.Error())
			return
		}

		found, err := d.Store.Get(r.Context(), id)
		if err != nil {
			if errors.Is(err, task.ErrNotFound) {
				WriteError(w, http.StatusNotFound, task.ErrNotFound.Error())
				return
			}
			d.requestLogger(r).Error().Err(err).Int64("task_id", id).Msg("failed to get task")
			WriteError(w, http.StatusInternalServerError, "internal error")
			return
		}
		WriteJSON(w, http.StatusOK, found)
	}
}

// taskID rejects anything that is not a positive integer, which the caller
// reports as not found.
func taskID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func (d Deps) notFound(w http.ResponseWriter, r *http.Request, op string) {
	d.requestLogger(r).Warn().Str("id", chi.URLParam(r, "id")).Str("op", op).Msg("task not found")
	metrics.RecordTaskOperation(op, metrics.OutcomeNotFound)
	http.Error(w, task.ErrNotFound.Error(), http.StatusNotFound)
}

// publish runs after the mutation is committed, so a failure is only logged.
func (d Deps) publish(r *http.Request, typ dto.EventType, t task.Task) {
	if d.Events == nil {
		return
	}
	if err := d.Events.Publish(r.Context(), dto.NewTaskEvent(typ, t)); err != nil {
		d.requestLogger(r).Error().Err(err).Str("event", string(typ)).Int64("task_id", t.ID).Msg("failed to publish task event")
	}
}

func (d Deps) requestLogger(r *http.Request) *logging.Logger {
	reqID := middleware.GetReqID(r.Context())
	if reqID == "" {
		return d.Logger
	}
	logger := d.Logger.With().Str("request_id", reqID).Logger()
	return &logger
}

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError writes a structured JSON error.
func WriteError(w http.ResponseWriter, status int, msg string) {
	WriteJSON(w, status, dto.ErrorResponse{Error: msg})
}
