package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"task-planner/internal/model"
	"task-planner/internal/repository"
)

type recordingDispatcher struct {
	mu   sync.Mutex
	sent map[int64][]model.Notification
	err  error
}

func (d *recordingDispatcher) Deliver(_ context.Context, chatID int64, n model.Notification) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.sent == nil {
		d.sent = make(map[int64][]model.Notification)
	}
	d.sent[chatID] = append(d.sent[chatID], n)
	return d.err
}

func (d *recordingDispatcher) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, list := range d.sent {
		n += len(list)
	}
	return n
}

type notificationFixture struct {
	svc        *NotificationService
	repo       *repository.NotificationRepository
	users      *repository.UserRepository
	dispatcher *recordingDispatcher
	user       model.User
}

func newNotificationFixture(t *testing.T) *notificationFixture {
	t.Helper()
	db := newTestDB(t)
	f := &notificationFixture{
		repo:       repository.NewNotificationRepository(db),
		users:      repository.NewUserRepository(db),
		dispatcher: &recordingDispatcher{},
		user:       model.User{ID: "user-1", Email: "n@example.com", PasswordHash: "x"},
	}
	if err := f.users.Create(context.Background(), &f.user); err != nil {
		t.Fatalf("create user: %v", err)
	}
	for _, chat := range []int64{100, 200} {
		if err := f.users.AddDevice(context.Background(), f.user.ID, chat); err != nil {
			t.Fatalf("add device: %v", err)
		}
	}
	f.svc = NewNotificationService(f.repo, f.users, NewSchedulerService(time.UTC))
	f.svc.SetDispatcher(f.dispatcher)
	return f
}

func TestScheduleStoresAndArms(t *testing.T) {
	f := newNotificationFixture(t)
	ctx := context.Background()

	id, err := f.svc.Schedule(ctx, f.user.ID, Content{TaskID: "t1", Label: model.LabelMinus1, Title: "Hi"}, Trigger{After: time.Hour})
	if err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	n, err := f.repo.FindByID(ctx, id)
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if n.Status != model.NotificationScheduled || n.Channel != model.ChannelDefault {
		t.Fatalf("stored = %+v", n)
	}
	if _, ok := f.svc.entries[id]; !ok {
		t.Fatal("notification not armed")
	}
}

func TestScheduleRejectsPastTrigger(t *testing.T) {
	f := newNotificationFixture(t)
	_, err := f.svc.Schedule(context.Background(), f.user.ID, Content{Title: "late"}, Trigger{At: time.Now().Add(-time.Minute)})
	if !errors.Is(err, ErrTriggerInPast) {
		t.Fatalf("err = %v, want ErrTriggerInPast", err)
	}
}

func TestCancelAll(t *testing.T) {
	f := newNotificationFixture(t)
	ctx := context.Background()

	ids := map[string]string{}
	for _, label := range []string{model.LabelMinus6, model.LabelMinus1} {
		id, err := f.svc.Schedule(ctx, f.user.ID, Content{Label: label, Title: label}, Trigger{After: 2 * time.Hour})
		if err != nil {
			t.Fatalf("Schedule: %v", err)
		}
		ids[label] = id
	}
	ids["unknown"] = "does-not-exist"

	if err := f.svc.CancelAll(ctx, ids); err != nil {
		t.Fatalf("CancelAll: %v", err)
	}
	for label, id := range ids {
		if label == "unknown" {
			continue
		}
		n, err := f.repo.FindByID(ctx, id)
		if err != nil {
			t.Fatalf("FindByID: %v", err)
		}
		if n.Status != model.NotificationCancelled {
			t.Errorf("%s status = %s", label, n.Status)
		}
		if _, ok := f.svc.entries[id]; ok {
			t.Errorf("%s still armed", label)
		}
	}
}

func TestNotifyDeliversToEveryDevice(t *testing.T) {
	f := newNotificationFixture(t)
	ctx := context.Background()

	id, err := f.svc.Notify(ctx, f.user.ID, Content{Title: "You're nearby", Channel: model.ChannelTasks})
	if err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if got := f.dispatcher.count(); got != 2 {
		t.Fatalf("delivered %d, want 2", got)
	}
	if f.dispatcher.sent[100][0].Channel != model.ChannelTasks {
		t.Errorf("channel = %q", f.dispatcher.sent[100][0].Channel)
	}
	n, _ := f.repo.FindByID(ctx, id)
	if n.Status != model.NotificationDelivered {
		t.Errorf("status = %s", n.Status)
	}
}

func TestFireSkipsCancelled(t *testing.T) {
	f := newNotificationFixture(t)
	ctx := context.Background()

	id, err := f.svc.Schedule(ctx, f.user.ID, Content{Title: "x"}, Trigger{After: time.Hour})
	if err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	if err := f.svc.Cancel(ctx, id); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	f.svc.fire(id)
	if got := f.dispatcher.count(); got != 0 {
		t.Fatalf("cancelled notification delivered %d times", got)
	}
}

func TestRestore(t *testing.T) {
	f := newNotificationFixture(t)
	ctx := context.Background()
	now := time.Now()

	records := []model.Notification{
		{ID: "future", UserID: f.user.ID, Title: "later", FireAt: now.Add(time.Hour)},
		{ID: "fresh", UserID: f.user.ID, Title: "just missed", FireAt: now.Add(-5 * time.Minute)},
		{ID: "stale", UserID: f.user.ID, Title: "long gone", FireAt: now.Add(-3 * time.Hour)},
	}
	for i := range records {
		records[i].Status = model.NotificationScheduled
		if err := f.repo.Create(ctx, &records[i]); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	armed, err := f.svc.Restore(ctx)
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if armed != 1 {
		t.Errorf("armed = %d, want 1", armed)
	}
	if got := f.dispatcher.count(); got != 2 {
		t.Errorf("late deliveries = %d, want 2 (one per device)", got)
	}

	want := map[string]model.NotificationStatus{
		"future": model.NotificationScheduled,
		"fresh":  model.NotificationDelivered,
		"stale":  model.NotificationCancelled,
	}
	for id, status := range want {
		n, err := f.repo.FindByID(ctx, id)
		if err != nil {
			t.Fatalf("FindByID(%s): %v", id, err)
		}
		if n.Status != status {
			t.Errorf("%s status = %s, want %s", id, n.Status, status)
		}
	}
}
