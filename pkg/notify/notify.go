// Package notify surfaces recoverable conditions to the user.
//
// Every notification is logged for diagnostics and queued as a transient,
// dismissible entry that the interactive surface can list and dismiss.
package notify

import (
	"log/slog"
	"sync"
	"time"

	"github.com/gm-agent-org/gm-settings/pkg/types"
)

// Level is the severity of a notification.
type Level string

const (
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Notification is a single user-visible message.
type Notification struct {
	ID        string    `json:"id"`
	Level     Level     `json:"level"`
	Condition string    `json:"condition,omitempty"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// Notifier accepts notifications.
type Notifier interface {
	Notify(level Level, condition, message string)
}

// Observer is called for every notification after it is queued.
type Observer func(n Notification)

// Center logs and queues notifications. The queue is bounded; the oldest
// entries are evicted first.
type Center struct {
	mu        sync.RWMutex
	items     []Notification
	max       int
	log       *slog.Logger
	observers map[int]Observer
	nextObs   int
}

const defaultMaxNotifications = 50

func NewCenter(log *slog.Logger) *Center {
	if log == nil {
		log = slog.Default()
	}
	return &Center{max: defaultMaxNotifications, log: log}
}

// Subscribe registers an observer for new notifications. The returned
// function removes it again.
func (c *Center) Subscribe(o Observer) (unsubscribe func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.observers == nil {
		c.observers = make(map[int]Observer)
	}
	id := c.nextObs
	c.nextObs++
	c.observers[id] = o
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.observers, id)
	}
}

func (c *Center) Notify(level Level, condition, message string) {
	n := Notification{
		ID:        types.GenerateNotificationID(),
		Level:     level,
		Condition: condition,
		Message:   message,
		CreatedAt: time.Now(),
	}

	switch level {
	case LevelError:
		c.log.Error(message, "condition", condition)
	case LevelWarning:
		c.log.Warn(message, "condition", condition)
	default:
		c.log.Info(message, "condition", condition)
	}

	c.mu.Lock()
	c.items = append(c.items, n)
	if len(c.items) > c.max {
		c.items = append([]Notification(nil), c.items[len(c.items)-c.max:]...)
	}
	observers := make([]Observer, 0, len(c.observers))
	for _, o := range c.observers {
		observers = append(observers, o)
	}
	c.mu.Unlock()

	for _, o := range observers {
		o(n)
	}
}

// List returns the queued notifications, oldest first.
func (c *Center) List() []Notification {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]Notification{}, c.items...)
}

// Dismiss removes a notification. It reports whether id was queued.
func (c *Center) Dismiss(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, n := range c.items {
		if n.ID == id {
			c.items = append(c.items[:i], c.items[i+1:]...)
			return true
		}
	}
	return false
}

// Discard is a Notifier that only logs.
type Discard struct {
	Log *slog.Logger
}

func (d Discard) Notify(level Level, condition, message string) {
	log := d.Log
	if log == nil {
		log = slog.Default()
	}
	log.Debug(message, "level", level, "condition", condition)
}
