// Package task holds the Task entity and the rules every store enforces on it.
package task

import (
	"errors"
	"strings"
	"time"
	"unicode/utf8"
)

// DateLayout is the display format of due dates.
const DateLayout = "2006-01-02"

// dueDateInput also accepts month and day without zero padding.
const dueDateInput = "2006-1-2"

// MaxTitleLength is measured in runes.
const MaxTitleLength = 255

var (
	ErrNotFound      = errors.New("task not found")
	ErrTitleRequired = errors.New("title is required")
	ErrTitleTooLong  = errors.New("title is too long")
)

type Task struct {
	ID          int64      `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	IsCompleted bool       `json:"is_completed"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	DueDate     *time.Time `json:"due_date,omitempty"`
}

// Draft is the validated input of a create.
type Draft struct {
	Title       string
	Description string
	DueDate     *time.Time
}

// NewDraft keeps the title verbatim and parses the due date. A malformed due
// date is dropped rather than reported.
func NewDraft(title, description, dueDate string) (Draft, error) {
	d := Draft{
		Title:       title,
		Description: description,
		DueDate:     ParseDueDate(dueDate),
	}
	if err := d.Validate(); err != nil {
		return Draft{}, err
	}
	return d, nil
}

func (d Draft) Validate() error {
	if d.Title == "" {
		return ErrTitleRequired
	}
	if utf8.RuneCountInString(d.Title) > MaxTitleLength {
		return ErrTitleTooLong
	}
	return nil
}

// ParseDueDate returns nil for empty or unparseable input. Surrounding
// whitespace makes the input unparseable.
func ParseDueDate(s string) *time.Time {
	if s == "" {
		return nil
	}
	d, err := time.Parse(dueDateInput, s)
	if err != nil {
		return nil
	}
	return &d
}

// Filter selects a view over the collection.
type Filter string

const (
	FilterAll       Filter = "all"
	FilterActive    Filter = "active"
	FilterCompleted Filter = "completed"
)

// Filters lists every filter in tab order.
var Filters = []Filter{FilterAll, FilterActive, FilterCompleted}

// ParseFilter matches selectors exactly; anything else, including a
// different case, is FilterAll.
func ParseFilter(s string) Filter {
	switch f := Filter(s); f {
	case FilterActive, FilterCompleted:
		return f
	default:
		return FilterAll
	}
}

func (f Filter) Matches(t Task) bool {
	switch f {
	case FilterActive:
		return !t.IsCompleted
	case FilterCompleted:
		return t.IsCompleted
	default:
		return true
	}
}

// ListQuery narrows a listing. The zero value lists everything.
type ListQuery struct {
	Filter Filter
	Search string
}

func (q ListQuery) Matches(t Task) bool {
	if !q.Filter.Matches(t) {
		return false
	}
	needle := strings.ToLower(strings.TrimSpace(q.Search))
	if needle == "" {
		return true
	}
	return strings.Contains(strings.ToLower(t.Title), needle) ||
		strings.Contains(strings.ToLower(t.Description), needle)
}

// Newer reports whether a sorts before b in a listing: newest created first,
// higher id first on equal timestamps.
func Newer(a, b Task) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.ID > b.ID
}
