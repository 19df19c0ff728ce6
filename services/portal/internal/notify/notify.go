package notify

import (
	"slices"
	"sync"
	"time"

	"qualityportal/internal/util"
)

type Type string

const (
	TypeSuccess Type = "success"
	TypeError   Type = "error"
	TypeWarning Type = "warning"
	TypeInfo    Type = "info"
)

// Title is the heading shown above the message.
func (t Type) Title() string {
	switch t {
	case TypeSuccess:
		return "Éxito"
	case TypeError:
		return "Error"
	case TypeWarning:
		return "Advertencia"
	default:
		return "Información"
	}
}

func (t Type) Icon() string {
	switch t {
	case TypeSuccess:
		return "fa-check-circle"
	case TypeError:
		return "fa-exclamation-circle"
	case TypeWarning:
		return "fa-exclamation-triangle"
	default:
		return "fa-info-circle"
	}
}

// DefaultDuration is how long a toast of type t stays visible.
func (t Type) DefaultDuration() time.Duration {
	switch t {
	case TypeError:
		return 7 * time.Second
	case TypeWarning:
		return 6 * time.Second
	default:
		return 5 * time.Second
	}
}

// Toast is a transient message. A zero ExpiresAt means it stays until dismissed.
type Toast struct {
	ID        string    `json:"id"`
	Type      Type      `json:"type"`
	Title     string    `json:"title"`
	Icon      string    `json:"icon"`
	Message   string    `json:"message"`
	Duration  int64     `json:"durationMs"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt,omitzero"`
}

// Permanent reports whether the toast needs manual dismissal.
func (t Toast) Permanent() bool { return t.ExpiresAt.IsZero() }

// Queue holds the toasts of one session.
type Queue struct {
	mu     sync.Mutex
	toasts []Toast
	now    func() time.Time
}

// Push adds a toast. duration 0 keeps it until dismissed; a negative duration
// uses the default for its type.
func (q *Queue) Push(typ Type, message string, duration time.Duration) Toast {
	if duration < 0 {
		duration = typ.DefaultDuration()
	}
	now := q.now()
	t := Toast{
		ID:        util.NewID(),
		Type:      typ,
		Title:     typ.Title(),
		Icon:      typ.Icon(),
		Message:   message,
		Duration:  duration.Milliseconds(),
		CreatedAt: now,
	}
	if duration > 0 {
		t.ExpiresAt = now.Add(duration)
	}
	q.mu.Lock()
	q.toasts = append(q.toasts, t)
	q.mu.Unlock()
	return t
}

func (q *Queue) Success(message string) Toast { return q.Push(TypeSuccess, message, -1) }
func (q *Queue) Error(message string) Toast   { return q.Push(TypeError, message, -1) }
func (q *Queue) Warning(message string) Toast { return q.Push(TypeWarning, message, -1) }
func (q *Queue) Info(message string) Toast    { return q.Push(TypeInfo, message, -1) }

// Active drops expired toasts and returns the rest, oldest first.
func (q *Queue) Active() []Toast {
	now := q.now()
	q.mu.Lock()
	defer q.mu.Unlock()
	q.toasts = slices.DeleteFunc(q.toasts, func(t Toast) bool {
		return !t.Permanent() && !now.Before(t.ExpiresAt)
	})
	return slices.Clone(q.toasts)
}

// Dismiss removes a toast; unknown ids are ignored.
func (q *Queue) Dismiss(id string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	before := len(q.toasts)
	q.toasts = slices.DeleteFunc(q.toasts, func(t Toast) bool { return t.ID == id })
	return len(q.toasts) != before
}

func (q *Queue) Clear() {
	q.mu.Lock()
	q.toasts = nil
	q.mu.Unlock()
}

func (q *Queue) empty() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.toasts) == 0
}

// Center keeps one queue per session.
type Center struct {
	mu     sync.Mutex
	queues map[string]*Queue
	now    func() time.Time
}

func NewCenter() *Center {
	return &Center{queues: make(map[string]*Queue), now: time.Now}
}

// For returns the queue of a session, creating it on first use.
func (c *Center) For(sessionID string) *Queue {
	c.mu.Lock()
	defer c.mu.Unlock()
	q, ok := c.queues[sessionID]
	if !ok {
		q = &Queue{now: c.now}
		c.queues[sessionID] = q
	}
	return q
}

// Drop forgets a session, e.g. on logout.
func (c *Center) Drop(sessionID string) {
	c.mu.Lock()
	delete(c.queues, sessionID)
	c.mu.Unlock()
}

// Prune removes queues that have nothing left to show.
func (c *Center) Prune() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for id, q := range c.queues {
		q.Active()
		if q.empty() {
			delete(c.queues, id)
			n++
		}
	}
	return n
}
