// internal/dto/todo.go
package dto

import (
	"net/url"
	"strings"
	"time"

	"github.com/todoflow-labs/task-tracker/internal/task"
)

// CreateTaskForm is the body of POST /.
type CreateTaskForm struct {
	Title       string
	Description string
	DueDate     string
}

func CreateTaskFormFrom(v url.Values) CreateTaskForm {
	return CreateTaskForm{
		Title:       v.Get("title"),
		Description: v.Get("description"),
		DueDate:     v.Get("due_date"),
	}
}

func (f CreateTaskForm) Draft() (task.Draft, error) {
	return task.NewDraft(f.Title, f.Description, f.DueDate)
}

// ListTasksQuery is the query string of GET /.
type ListTasksQuery struct {
	Filter task.Filter
	Search string
}

func ListTasksQueryFrom(v url.Values) ListTasksQuery {
	return ListTasksQuery{
		Filter: task.ParseFilter(v.Get("filter")),
		Search: strings.TrimSpace(v.Get("q")),
	}
}

func (q ListTasksQuery) ListQuery() task.ListQuery {
	return task.ListQuery{Filter: q.Filter, Search: q.Search}
}

type Tab struct {
	Filter task.Filter
	Label  string
	Active bool
}

type TaskItem struct {
	ID          int64
	Title       string
	Description string
	IsCompleted bool
	DueDate     string
	CreatedAt   time.Time
}

// TaskListPage is the view model of the list page.
type TaskListPage struct {
	Tasks         []TaskItem
	CurrentFilter task.Filter
	Search        string
	Tabs          []Tab
}

func NewTaskListPage(tasks []task.Task, q ListTasksQuery) TaskListPage {
	page := TaskListPage{
		Tasks:         make([]TaskItem, 0, len(tasks)),
		CurrentFilter: q.Filter,
		Search:        q.Search,
	}
	for _, t := range tasks {
		item := TaskItem{
			ID:          t.ID,
			Title:       t.Title,
			Description: t.Description,
			IsCompleted: t.IsCompleted,
			CreatedAt:   t.CreatedAt,
		}
		if t.DueDate != nil {
			item.DueDate = t.DueDate.Format(task.DateLayout)
		}
		page.Tasks = append(page.Tasks, item)
	}
	for _, f := range task.Filters {
		page.Tabs = append(page.Tabs, Tab{
			Filter: f,
			Label:  strings.ToUpper(string(f)),
			Active: f == q.Filter,
		})
	}
	return page
}

type EventType string

const (
	TaskCreated EventType = "task.created"
	TaskToggled EventType = "task.toggled"
	TaskDeleted EventType = "task.deleted"
)

// TaskEvent is published after every committed mutation. Task is absent on
// deletes.
type TaskEvent struct {
	Type       EventType  `json:"type"`
	TaskID     int64      `json:"task_id"`
	Task       *task.Task `json:"task,omitempty"`
	OccurredAt time.Time  `json:"occurred_at"`
}

func NewTaskEvent(typ EventType, t task.Task) TaskEvent {
	evt := TaskEvent{Type: typ, TaskID: t.ID, OccurredAt: time.Now().UTC()}
	if typ != TaskDeleted {
		evt.Task = &t
	}
	return evt
}

type ErrorResponse struct {
	Error string `json:"error"`
}
