// Package scheduler runs the recurring evaluation jobs on cron schedules.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"qeval/internal/logging"
)

// TaskType represents the type of scheduled task
type TaskType string

const (
	TaskTypeBackfill  TaskType = "backfill"
	TaskTypeUpdate    TaskType = "update"
	TaskTypeBenchmark TaskType = "benchmark"
	TaskTypeReport    TaskType = "report"
)

// TaskStatus represents the status of a task
type TaskStatus string

const (
	TaskStatusPending   TaskStatus = "pending"
	TaskStatusRunning   TaskStatus = "running"
	TaskStatusCompleted TaskStatus = "completed"
	TaskStatusFailed    TaskStatus = "failed"
)

// Task represents a scheduled task
type Task struct {
	ID          string     `json:"id"`
	Type        TaskType   `json:"type"`
	Schedule    string     `json:"schedule"`
	LastRunTime time.Time  `json:"last_run_time"`
	Status      TaskStatus `json:"status"`
	Error       string     `json:"error,omitempty"`
}

// TaskHandler defines the interface for task handlers
type TaskHandler interface {
	Handle(ctx context.Context) error
}

// TaskHandlerFunc adapts a function to TaskHandler
type TaskHandlerFunc func(ctx context.Context) error

// Handle calls f(ctx)
func (f TaskHandlerFunc) Handle(ctx context.Context) error { return f(ctx) }

// Scheduler manages the recurring jobs
type Scheduler struct {
	cron     *cron.Cron
	tasks    map[string]*Task
	handlers map[TaskType]TaskHandler
	logger   *logging.Logger
	mu       sync.RWMutex
}

// NewScheduler creates a new scheduler
func NewScheduler(logger *logging.Logger) *Scheduler {
	return &Scheduler{
		cron:     cron.New(),
		tasks:    make(map[string]*Task),
		handlers: make(map[TaskType]TaskHandler),
		logger:   logger,
	}
}

// RegisterHandler registers a handler for a task type
func (s *Scheduler) RegisterHandler(taskType TaskType, handler TaskHandler) {
	s.handlers[taskType] = handler
}

// AddTask schedules a task type on a cron expression
func (s *Scheduler) AddTask(taskType TaskType, schedule string) error {
	handler, exists := s.handlers[taskType]
	if !exists {
		return fmt.Errorf("no handler registered for task type: %s", taskType)
	}

	task := &Task{
		ID:       uuid.New().String(),
		Type:     taskType,
		Schedule: schedule,
		Status:   TaskStatusPending,
	}

	if _, err := s.cron.AddFunc(schedule, func() {
		s.runTask(context.Background(), task, handler)
	}); err != nil {
		return fmt.Errorf("failed to add cron job: %w", err)
	}

	s.mu.Lock()
	s.tasks[task.ID] = task
	s.mu.Unlock()

	s.logger.Infof("scheduled %s task: %s", taskType, schedule)
	return nil
}

// Start starts the scheduler
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop stops the scheduler and waits for running jobs to finish
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

func (s *Scheduler) runTask(ctx context.Context, task *Task, handler TaskHandler) {
	s.mu.Lock()
	task.Status = TaskStatusRunning
	task.LastRunTime = time.Now()
	s.mu.Unlock()

	err := handler.Handle(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil {
		task.Status = TaskStatusFailed
		task.Error = err.Error()
		s.logger.Errorf("%s task failed: %v", task.Type, err)
	} else {
		task.Status = TaskStatusCompleted
		task.Error = ""
	}
}

// ListTasks lists all registered tasks
func (s *Scheduler) ListTasks() []*Task {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tasks := make([]*Task, 0, len(s.tasks))
	for _, task := range s.tasks {
		copied := *task
		tasks = append(tasks, &copied)
	}
	return tasks
}
