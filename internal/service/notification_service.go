package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"task-planner/internal/logger"
	"task-planner/internal/model"
	"task-planner/internal/repository"
)

// missedGrace is how late a restored notification may still be delivered.
const missedGrace = 15 * time.Minute

// Content is what a notification shows.
type Content struct {
	TaskID  string
	Label   string
	Title   string
	Body    string
	Channel string
}

// Trigger is either an absolute instant or a delay from now.
type Trigger struct {
	At    time.Time
	After time.Duration
}

func (t Trigger) resolve(now time.Time) time.Time {
	if !t.At.IsZero() {
		return t.At
	}
	return now.Add(t.After)
}

// Dispatcher delivers a notification to one device.
type Dispatcher interface {
	Deliver(ctx context.Context, chatID int64, n model.Notification) error
}

// NotificationService keeps durable one-shot notifications and hands them to the dispatcher when due.
type NotificationService struct {
	repo      *repository.NotificationRepository
	users     *repository.UserRepository
	scheduler *SchedulerService
	log       *slog.Logger
	now       func() time.Time

	mu         sync.Mutex
	entries    map[string]cron.EntryID
	dispatcher Dispatcher
}

func NewNotificationService(repo *repository.NotificationRepository, users *repository.UserRepository, scheduler *SchedulerService) *NotificationService {
	return &NotificationService{
		repo:      repo,
		users:     users,
		scheduler: scheduler,
		log:       logger.With("notifications"),
		now:       time.Now,
		entries:   make(map[string]cron.EntryID),
	}
}

// SetDispatcher installs the delivery channel; the bot is built after the services.
func (s *NotificationService) SetDispatcher(d Dispatcher) {
	s.mu.Lock()
	s.dispatcher = d
	s.mu.Unlock()
}

// Schedule stores a notification and arms it. The returned id can be passed to Cancel.
func (s *NotificationService) Schedule(ctx context.Context, userID string, content Content, trigger Trigger) (string, error) {
	now := s.now()
	fireAt := trigger.resolve(now)
	if !fireAt.After(now) {
		return "", ErrTriggerInPast
	}

	n := model.Notification{
		ID:      uuid.NewString(),
		UserID:  userID,
		TaskID:  content.TaskID,
		Label:   content.Label,
		Title:   content.Title,
		Body:    content.Body,
		Channel: channelOrDefault(content.Channel),
		FireAt:  fireAt,
		Status:  model.NotificationScheduled,
	}
	if err := s.repo.Create(ctx, &n); err != nil {
		return "", err
	}
	if err := s.arm(n); err != nil {
		if markErr := s.repo.MarkStatus(ctx, n.ID, model.NotificationCancelled); markErr != nil {
			s.log.Warn("failed to discard unarmed notification", "id", n.ID, "error", markErr)
		}
		return "", err
	}
	s.log.Debug("notification scheduled", "id", n.ID, "label", n.Label, "fire_at", n.FireAt)
	return n.ID, nil
}

// Cancel disarms a pending notification. Already delivered ones are left alone.
func (s *NotificationService) Cancel(ctx context.Context, id string) error {
	s.mu.Lock()
	entry, ok := s.entries[id]
	delete(s.entries, id)
	s.mu.Unlock()
	if ok {
		s.scheduler.Remove(entry)
	}

	n, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		return err
	}
	if n.Status != model.NotificationScheduled {
		return nil
	}
	return s.repo.MarkStatus(ctx, id, model.NotificationCancelled)
}

// CancelAll cancels every id in the map and reports all failures together.
func (s *NotificationService) CancelAll(ctx context.Context, ids map[string]string) error {
	var errs []error
	for label, id := range ids {
		if id == "" {
			continue
		}
		if err := s.Cancel(ctx, id); err != nil {
			errs = append(errs, fmt.Errorf("cancel %s: %w", label, err))
		}
	}
	return errors.Join(errs...)
}

// Notify delivers a notification right away and records it.
func (s *NotificationService) Notify(ctx context.Context, userID string, content Content) (string, error) {
	n := model.Notification{
		ID:      uuid.NewString(),
		UserID:  userID,
		TaskID:  content.TaskID,
		Label:   content.Label,
		Title:   content.Title,
		Body:    content.Body,
		Channel: channelOrDefault(content.Channel),
		FireAt:  s.now(),
		Status:  model.NotificationScheduled,
	}
	if err := s.repo.Create(ctx, &n); err != nil {
		return "", err
	}
	if err := s.deliver(ctx, n); err != nil {
		return n.ID, err
	}
	return n.ID, nil
}

// Restore re-arms notifications persisted by an earlier run.
// Ones that fell due while offline are delivered if still fresh and dropped otherwise.
func (s *NotificationService) Restore(ctx context.Context) (int, error) {
	pending, err := s.repo.ListScheduled(ctx)
	if err != nil {
		return 0, err
	}
	now := s.now()
	armed := 0
	for _, n := range pending {
		if n.FireAt.After(now) {
			if err := s.arm(n); err != nil {
				s.log.Warn("failed to restore notification", "id", n.ID, "error", err)
				continue
			}
			armed++
			continue
		}
		if now.Sub(n.FireAt) <= missedGrace {
			if err := s.deliver(ctx, n); err != nil {
				s.log.Warn("late delivery failed", "id", n.ID, "error", err)
			}
			continue
		}
		if err := s.repo.MarkStatus(ctx, n.ID, model.NotificationCancelled); err != nil {
			s.log.Warn("failed to drop missed notification", "id", n.ID, "error", err)
		}
	}
	return armed, nil
}

func (s *NotificationService) arm(n model.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, err := s.scheduler.ScheduleAt(n.FireAt, func() { s.fire(n.ID) })
	if err != nil {
		return err
	}
	s.entries[n.ID] = entry
	return nil
}

func (s *NotificationService) fire(id string) {
	s.mu.Lock()
	delete(s.entries, id)
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	n, err := s.repo.FindByID(ctx, id)
	if err != nil {
		s.log.Error("failed to load due notification", "id", id, "error", err)
		return
	}
	if n.Status != model.NotificationScheduled {
		return
	}
	if err := s.deliver(ctx, *n); err != nil {
		s.log.Error("failed to deliver notification", "id", id, "error", err)
	}
}

func (s *NotificationService) deliver(ctx context.Context, n model.Notification) error {
	s.mu.Lock()
	dispatcher := s.dispatcher
	s.mu.Unlock()
	if dispatcher == nil {
		return fmt.Errorf("no dispatcher configured")
	}

	devices, err := s.users.ListDevices(ctx, n.UserID)
	if err != nil {
		return err
	}
	var errs []error
	for _, d := range devices {
		if err := dispatcher.Deliver(ctx, d.ChatID, n); err != nil {
			errs = append(errs, fmt.Errorf("chat %d: %w", d.ChatID, err))
		}
	}
	if err := s.repo.MarkStatus(ctx, n.ID, model.NotificationDelivered); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func channelOrDefault(channel string) string {
	if channel == "" {
		return model.ChannelDefault
	}
	return channel
}
