// Package tasks implements the task-list tool server: per-agent todo
// items with the same isolated-storage contract as the directory.
package tasks

import (
	"log"
	"os"
	"time"

	"agentdir/internal/engine"
	"agentdir/internal/jsonrpc"
	"agentdir/internal/store"

	"github.com/google/uuid"
)

// Task is one todo item.
type Task struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Priority    string     `json:"priority"`
	Done        bool       `json:"done"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// List holds every agent's tasks, keyed by session name.
type List struct {
	tasks   map[string][]*Task
	gateway *store.Gateway
	logger  *log.Logger
	clock   func() time.Time
}

// NewList creates an empty task list backed by the gateway.
func NewList(gateway *store.Gateway, logger *log.Logger) *List {
	if logger == nil {
		logger = log.New(os.Stderr, "[tasks] ", log.LstdFlags)
	}
	return &List{
		tasks:   make(map[string][]*Task),
		gateway: gateway,
		logger:  logger,
		clock:   time.Now,
	}
}

func fileFor(agent string) string {
	return "tasks_" + agent + ".json"
}

type taskDocument struct {
	SavedAt time.Time `json:"saved_at"`
	Tasks   []*Task   `json:"tasks"`
}

func (l *List) load(agent string) []*Task {
	if tasks, ok := l.tasks[agent]; ok {
		return tasks
	}
	var doc taskDocument
	if err := l.gateway.Load(fileFor(agent), &doc); err != nil {
		if !os.IsNotExist(err) && err != store.ErrDisabled {
			l.logger.Printf("warning: failed to load tasks for %s: %v", agent, err)
		}
		l.tasks[agent] = []*Task{}
		return l.tasks[agent]
	}
	l.tasks[agent] = doc.Tasks
	return doc.Tasks
}

func (l *List) persist(agent string) {
	doc := taskDocument{SavedAt: l.clock(), Tasks: l.tasks[agent]}
	if err := l.gateway.Save(fileFor(agent), doc); err != nil {
		l.logger.Printf("warning: failed to persist tasks for %s: %v", agent, err)
	}
}

// Add creates a task.
func (l *List) Add(agent, title, description, priority string) (*Task, error) {
	if title == "" {
		return nil, jsonrpc.NewInvalidParams("title is required")
	}
	if priority == "" {
		priority = "normal"
	}

	task := &Task{
		ID:          "task_" + uuid.NewString(),
		Title:       title,
		Description: description,
		Priority:    priority,
		CreatedAt:   l.clock(),
	}
	l.tasks[agent] = append(l.load(agent), task)
	l.persist(agent)
	return task, nil
}

// Tasks returns the agent's tasks in creation order, optionally hiding
// completed ones.
func (l *List) Tasks(agent string, includeCompleted bool) []*Task {
	var out []*Task
	for _, t := range l.load(agent) {
		if !includeCompleted && t.Done {
			continue
		}
		out = append(out, t)
	}
	return out
}

// Complete marks a task done. Completing a done task again is a no-op.
func (l *List) Complete(agent, taskID string) (*Task, error) {
	for _, t := range l.load(agent) {
		if t.ID != taskID {
			continue
		}
		if !t.Done {
			now := l.clock()
			t.Done = true
			t.CompletedAt = &now
			l.persist(agent)
		}
		return t, nil
	}
	return nil, engine.Errorf("task not found: %s", taskID)
}

// Delete removes a task.
func (l *List) Delete(agent, taskID string) error {
	tasks := l.load(agent)
	for i, t := range tasks {
		if t.ID == taskID {
			l.tasks[agent] = append(tasks[:i], tasks[i+1:]...)
			l.persist(agent)
			return nil
		}
	}
	return engine.Errorf("task not found: %s", taskID)
}
