package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"task-planner/internal/events"
	"task-planner/internal/logger"
	"task-planner/internal/model"
	"task-planner/internal/repository"
)

// umbrellaHour is the local hour the rain alert fires on the due date.
const umbrellaHour = 8

// umbrellaMinLead keeps an umbrella alert for today from landing in the past.
const umbrellaMinLead = 5 * time.Second

type reminderOffset struct {
	label    string
	before   time.Duration
	subtitle string
}

var reminderOffsets = []reminderOffset{
	{model.LabelMinus6, 6 * time.Hour, "6 hours to go"},
	{model.LabelMinus1, time.Hour, "1 hour to go"},
	{model.LabelMinus5Min, 5 * time.Minute, "5 minutes to go"},
}

// TaskDraft is what the user typed on the task form.
type TaskDraft struct {
	Title       string
	DueDate     string
	DueTime     string
	Priority    model.Priority `validate:"omitempty,oneof=high medium low"`
	HasLocation bool
	HasWeather  bool
	Location    *PickedLocation `validate:"omitempty"`
}

// PickedLocation is a place chosen through search, a shared pin or the current position.
type PickedLocation struct {
	Description string
	Latitude    float64 `validate:"gte=-90,lte=90"`
	Longitude   float64 `validate:"gte=-180,lte=180"`
	Radius      float64 `validate:"gte=0"`
}

// TaskStore is the authoritative task record store.
type TaskStore interface {
	Create(ctx context.Context, task *model.Task) error
	Overwrite(ctx context.Context, task *model.Task) error
	Patch(ctx context.Context, userID, taskID string, patch repository.TaskPatch) error
}

// Reminders schedules and cancels notifications.
type Reminders interface {
	Schedule(ctx context.Context, userID string, content Content, trigger Trigger) (string, error)
	Cancel(ctx context.Context, id string) error
}

// Geofencer registers entry regions for tasks.
type Geofencer interface {
	Register(ctx context.Context, r Region) (string, error)
	Unregister(ctx context.Context, taskID string) error
}

// RainForecaster answers whether rain is likely on a date (YYYY-MM-DD) at a place.
type RainForecaster interface {
	WillLikelyRainOnDate(ctx context.Context, lat, lng float64, date string) (bool, error)
}

// Orchestrator saves a task and then attaches reminders, a geofence and a rain alert.
// Only the task write can fail a save; everything after it is best-effort.
type Orchestrator struct {
	tasks     TaskStore
	reminders Reminders
	geofences Geofencer
	weather   RainForecaster
	publisher events.Publisher
	validate  *validator.Validate
	loc       *time.Location
	now       func() time.Time
	newID     func() string
	log       *slog.Logger

	mu     sync.Mutex
	saving map[string]struct{}
}

// OrchestratorOption tweaks an Orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) OrchestratorOption {
	return func(o *Orchestrator) { o.now = now }
}

// WithIDGenerator replaces the task id generator.
func WithIDGenerator(newID func() string) OrchestratorOption {
	return func(o *Orchestrator) { o.newID = newID }
}

// WithPublisher sets where task events go.
func WithPublisher(p events.Publisher) OrchestratorOption {
	return func(o *Orchestrator) { o.publisher = p }
}

func NewOrchestrator(tasks TaskStore, reminders Reminders, geofences Geofencer, weather RainForecaster, loc *time.Location, opts ...OrchestratorOption) *Orchestrator {
	if loc == nil {
		loc = time.Local
	}
	o := &Orchestrator{
		tasks:     tasks,
		reminders: reminders,
		geofences: geofences,
		weather:   weather,
		publisher: events.NewNoopPublisher(),
		validate:  validator.New(),
		loc:       loc,
		now:       time.Now,
		newID:     uuid.NewString,
		log:       logger.With("orchestrator"),
		saving:    make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Save creates the task, or overwrites prior when editing, and returns the stored record
// with whatever identifiers the follow-up steps produced.
func (o *Orchestrator) Save(ctx context.Context, user *model.User, draft TaskDraft, prior *model.Task) (*model.Task, error) {
	if user == nil || user.ID == "" {
		return nil, ErrNotSignedIn
	}
	draft.Title = strings.TrimSpace(draft.Title)
	if draft.Title == "" {
		return nil, ErrTitleRequired
	}
	if err := o.validate.Struct(draft); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDraft, err)
	}
	if prior != nil && prior.UserID != user.ID {
		return nil, ErrTaskNotFound
	}

	if !o.enter(user.ID) {
		return nil, ErrSaveInProgress
	}
	defer o.leave(user.ID)

	task := o.build(user, draft, prior)
	kind := events.TaskCreated
	var err error
	if prior != nil {
		kind = events.TaskUpdated
		err = o.tasks.Overwrite(ctx, task)
	} else {
		err = o.tasks.Create(ctx, task)
	}
	if err != nil {
		return nil, fmt.Errorf("save task: %w", mapNotFound(err))
	}
	o.publish(ctx, kind, task)

	patch := o.followUp(ctx, task, prior)
	if patch.Empty() {
		return task, nil
	}
	if err := o.tasks.Patch(ctx, task.UserID, task.ID, patch); err != nil {
		o.log.Warn("failed to attach identifiers", "task_id", task.ID, "error", err)
		return task, nil
	}
	if len(patch.NotificationIDs) > 0 {
		task.NotificationIDs = patch.NotificationIDs
	}
	if patch.GeofenceID != "" {
		task.GeofenceID = patch.GeofenceID
	}
	o.publish(ctx, events.TaskPatched, task)
	return task, nil
}

func (o *Orchestrator) build(user *model.User, draft TaskDraft, prior *model.Task) *model.Task {
	priority := draft.Priority
	if priority == "" {
		priority = model.PriorityMedium
	}
	task := &model.Task{
		UserID:      user.ID,
		Title:       draft.Title,
		DueDate:     strings.TrimSpace(draft.DueDate),
		DueTime:     strings.TrimSpace(draft.DueTime),
		Priority:    priority,
		HasLocation: draft.HasLocation,
		HasWeather:  draft.HasWeather,
	}
	if prior != nil {
		task.ID = prior.ID
		task.IsCompleted = prior.IsCompleted
		task.CreatedAt = prior.CreatedAt
	} else {
		task.ID = o.newID()
	}

	if draft.HasLocation {
		switch {
		case draft.Location != nil:
			radius := draft.Location.Radius
			if radius <= 0 {
				radius = DefaultRadius
			}
			task.Location = &model.TaskLocation{
				Description: draft.Location.Description,
				Latitude:    draft.Location.Latitude,
				Longitude:   draft.Location.Longitude,
				Radius:      radius,
			}
		case prior != nil && prior.Location != nil:
			// editing without re-picking keeps the place
			loc := *prior.Location
			task.Location = &loc
		}
	}
	return task
}

// followUp runs the reminder, geofence and weather steps side by side and merges their results.
func (o *Orchestrator) followUp(ctx context.Context, task *model.Task, prior *model.Task) repository.TaskPatch {
	var (
		reminderIDs map[string]string
		geofenceID  string
		umbrellaID  string
	)

	var g errgroup.Group
	g.Go(func() error {
		defer o.recoverStep(task.ID, "reminders")
		reminderIDs = o.scheduleReminders(ctx, task, prior)
		return nil
	})
	g.Go(func() error {
		defer o.recoverStep(task.ID, "geofence")
		geofenceID = o.registerGeofence(ctx, task, prior)
		return nil
	})
	g.Go(func() error {
		defer o.recoverStep(task.ID, "weather")
		umbrellaID = o.scheduleUmbrella(ctx, task)
		return nil
	})
	_ = g.Wait()

	patch := repository.TaskPatch{GeofenceID: geofenceID}
	if len(reminderIDs) > 0 || umbrellaID != "" {
		patch.NotificationIDs = make(map[string]string, len(reminderIDs)+1)
		for label, id := range reminderIDs {
			patch.NotificationIDs[label] = id
		}
		if umbrellaID != "" {
			patch.NotificationIDs[model.LabelUmbrella] = umbrellaID
		}
	}
	return patch
}

func (o *Orchestrator) scheduleReminders(ctx context.Context, task *model.Task, prior *model.Task) map[string]string {
	if prior != nil {
		for label, id := range prior.NotificationIDs {
			if id == "" {
				continue
			}
			if err := o.reminders.Cancel(ctx, id); err != nil {
				o.log.Warn("failed to cancel previous reminder", "task_id", task.ID, "label", label, "error", err)
			}
		}
	}

	due, ok := ParseDue(task.DueDate, task.DueTime, o.loc)
	if !ok {
		o.log.Debug("no valid due time, reminders skipped", "task_id", task.ID)
		return nil
	}

	ids := make(map[string]string, len(reminderOffsets))
	for _, r := range reminderOffsets {
		id, err := o.reminders.Schedule(ctx, task.UserID, Content{
			TaskID:  task.ID,
			Label:   r.label,
			Title:   "⏰ " + task.Title,
			Body:    r.subtitle,
			Channel: model.ChannelTasks,
		}, Trigger{At: due.Add(-r.before)})
		if err != nil {
			o.log.Warn("failed to schedule reminder", "task_id", task.ID, "label", r.label, "error", err)
			continue
		}
		if id != "" {
			ids[r.label] = id
		}
	}
	return ids
}

func (o *Orchestrator) registerGeofence(ctx context.Context, task *model.Task, prior *model.Task) string {
	if !task.HasLocation || task.Location == nil {
		if prior != nil && prior.GeofenceID != "" {
			if err := o.geofences.Unregister(ctx, task.ID); err != nil {
				o.log.Warn("failed to remove previous geofence", "task_id", task.ID, "error", err)
			}
		}
		return ""
	}

	id, err := o.geofences.Register(ctx, Region{
		TaskID:    task.ID,
		UserID:    task.UserID,
		Title:     task.Title,
		Latitude:  task.Location.Latitude,
		Longitude: task.Location.Longitude,
		Radius:    task.Location.Radius,
	})
	if err != nil {
		o.log.Warn("failed to register geofence", "task_id", task.ID, "error", err)
		return ""
	}
	return id
}

func (o *Orchestrator) scheduleUmbrella(ctx context.Context, task *model.Task) string {
	if !task.HasWeather || task.Location == nil || o.weather == nil {
		return ""
	}
	day, ok := ParseDueDate(task.DueDate, o.loc)
	if !ok {
		return ""
	}

	rainy, err := o.weather.WillLikelyRainOnDate(ctx, task.Location.Latitude, task.Location.Longitude, day.Format("2006-01-02"))
	if err != nil {
		o.log.Warn("rain check failed", "task_id", task.ID, "error", err)
		return ""
	}
	if !rainy {
		return ""
	}

	at := time.Date(day.Year(), day.Month(), day.Day(), umbrellaHour, 0, 0, 0, o.loc)
	if earliest := o.now().Add(umbrellaMinLead); at.Before(earliest) {
		at = earliest
	}
	id, err := o.reminders.Schedule(ctx, task.UserID, Content{
		TaskID:  task.ID,
		Label:   model.LabelUmbrella,
		Title:   "Weather Heads-Up",
		Body:    fmt.Sprintf("Looks rainy on %q. Bring an umbrella ☔️", task.Title),
		Channel: model.ChannelTasks,
	}, Trigger{At: at})
	if err != nil {
		o.log.Warn("failed to schedule umbrella alert", "task_id", task.ID, "error", err)
		return ""
	}
	return id
}

func (o *Orchestrator) publish(ctx context.Context, kind events.Kind, task *model.Task) {
	err := o.publisher.TaskChanged(ctx, events.Event{
		Kind:      kind,
		UserID:    task.UserID,
		TaskID:    task.ID,
		Timestamp: o.now(),
	})
	if err != nil {
		o.log.Warn("failed to publish task event", "task_id", task.ID, "kind", kind, "error", err)
	}
}

func (o *Orchestrator) recoverStep(taskID, step string) {
	if r := recover(); r != nil {
		o.log.Error("follow-up step panicked", "task_id", taskID, "step", step, "panic", r)
	}
}

func (o *Orchestrator) enter(userID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, busy := o.saving[userID]; busy {
		return false
	}
	o.saving[userID] = struct{}{}
	return true
}

func (o *Orchestrator) leave(userID string) {
	o.mu.Lock()
	delete(o.saving, userID)
	o.mu.Unlock()
}
