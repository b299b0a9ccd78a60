package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"task-planner/internal/events"
	"task-planner/internal/logger"
	"task-planner/internal/model"
	"task-planner/internal/repository"
)

// Overview holds the counters shown above the task list.
type Overview struct {
	All     int
	Today   int
	Overdue int
}

// DayMark summarises one calendar day.
type DayMark struct {
	Total int
	Open  int
}

// TaskService wraps task reads and the simple writes that do not go through the orchestrator.
type TaskService struct {
	repo      *repository.TaskRepository
	reminders *NotificationService
	geofences *GeofenceService
	hub       *events.Hub
	publisher events.Publisher
	loc       *time.Location
	now       func() time.Time
	log       *slog.Logger
}

func NewTaskService(
	repo *repository.TaskRepository,
	reminders *NotificationService,
	geofences *GeofenceService,
	hub *events.Hub,
	publisher events.Publisher,
	loc *time.Location,
) *TaskService {
	if publisher == nil {
		publisher = events.NewNoopPublisher()
	}
	return &TaskService{
		repo:      repo,
		reminders: reminders,
		geofences: geofences,
		hub:       hub,
		publisher: publisher,
		loc:       loc,
		now:       time.Now,
		log:       logger.With("tasks"),
	}
}

// Today returns the current date string in the planner's time zone.
func (s *TaskService) Today() string {
	return s.now().In(s.loc).Format("2006-01-02")
}

func (s *TaskService) Get(ctx context.Context, user *model.User, taskID string) (*model.Task, error) {
	if user == nil {
		return nil, ErrNotSignedIn
	}
	task, err := s.repo.FindByID(ctx, user.ID, taskID)
	if err != nil {
		return nil, mapNotFound(err)
	}
	return task, nil
}

// List returns tasks for a filter. date is YYYY-MM-DD for FilterDate and YYYY-MM for FilterMonth.
func (s *TaskService) List(ctx context.Context, user *model.User, filter repository.TaskFilter, date string) ([]model.Task, error) {
	if user == nil {
		return nil, ErrNotSignedIn
	}
	return s.repo.List(ctx, repository.TaskQuery{
		UserID: user.ID,
		Filter: filter,
		Date:   date,
		Today:  s.Today(),
	})
}

// ToggleComplete flips the completion flag and returns the updated task.
func (s *TaskService) ToggleComplete(ctx context.Context, user *model.User, taskID string) (*model.Task, error) {
	task, err := s.Get(ctx, user, taskID)
	if err != nil {
		return nil, err
	}
	task.IsCompleted = !task.IsCompleted
	if err := s.repo.SetCompleted(ctx, user.ID, taskID, task.IsCompleted); err != nil {
		return nil, mapNotFound(err)
	}
	s.publish(ctx, events.TaskCompleted, task)
	return task, nil
}

// Delete removes the task, then withdraws its reminders and region.
func (s *TaskService) Delete(ctx context.Context, user *model.User, taskID string) error {
	task, err := s.Get(ctx, user, taskID)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, user.ID, taskID); err != nil {
		return mapNotFound(err)
	}
	s.publish(ctx, events.TaskDeleted, task)

	if err := s.reminders.CancelAll(ctx, task.NotificationIDs); err != nil {
		s.log.Warn("failed to cancel reminders of deleted task", "task_id", taskID, "error", err)
	}
	if err := s.geofences.Unregister(ctx, taskID); err != nil {
		s.log.Warn("failed to remove geofence of deleted task", "task_id", taskID, "error", err)
	}
	return nil
}

// Overview counts all, today's and overdue tasks.
func (s *TaskService) Overview(ctx context.Context, user *model.User) (Overview, error) {
	tasks, err := s.List(ctx, user, repository.FilterAll, "")
	if err != nil {
		return Overview{}, err
	}
	return Summarize(tasks, s.Today()), nil
}

// Summarize counts tasks relative to today (YYYY-MM-DD).
func Summarize(tasks []model.Task, today string) Overview {
	ov := Overview{All: len(tasks)}
	for _, t := range tasks {
		switch {
		case t.DueDate == today:
			ov.Today++
		case t.DueDate != "" && t.DueDate < today && !t.IsCompleted:
			ov.Overdue++
		}
	}
	return ov
}

// CalendarMarks groups a month's tasks (month is YYYY-MM) by due date.
func (s *TaskService) CalendarMarks(ctx context.Context, user *model.User, month string) (map[string]DayMark, error) {
	tasks, err := s.List(ctx, user, repository.FilterMonth, month)
	if err != nil {
		return nil, err
	}
	marks := make(map[string]DayMark)
	for _, t := range tasks {
		m := marks[t.DueDate]
		m.Total++
		if !t.IsCompleted {
			m.Open++
		}
		marks[t.DueDate] = m
	}
	return marks, nil
}

// Watch streams fresh snapshots of a filtered list: one right away and one after every change.
// The channel is closed when ctx ends.
func (s *TaskService) Watch(ctx context.Context, user *model.User, filter repository.TaskFilter, date string) (<-chan []model.Task, error) {
	first, err := s.List(ctx, user, filter, date)
	if err != nil {
		return nil, err
	}
	changes := s.hub.Subscribe(ctx, user.ID)
	out := make(chan []model.Task, 1)
	out <- first

	go func() {
		defer close(out)
		for range changes {
			tasks, err := s.List(ctx, user, filter, date)
			if err != nil {
				if ctx.Err() == nil {
					s.log.Warn("live query failed", "user_id", user.ID, "error", err)
				}
				continue
			}
			select {
			case out <- tasks:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (s *TaskService) publish(ctx context.Context, kind events.Kind, task *model.Task) {
	err := s.publisher.TaskChanged(ctx, events.Event{
		Kind:      kind,
		UserID:    task.UserID,
		TaskID:    task.ID,
		Timestamp: s.now(),
	})
	if err != nil {
		s.log.Warn("failed to publish task event", "task_id", task.ID, "kind", kind, "error", err)
	}
}

func mapNotFound(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return ErrTaskNotFound
	}
	return err
}
