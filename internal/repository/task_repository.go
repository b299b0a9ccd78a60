package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"task-planner/internal/model"
)

// TaskFilter selects which slice of a user's tasks a query returns.
type TaskFilter string

const (
	FilterAll     TaskFilter = "all"
	FilterToday   TaskFilter = "today"
	FilterOverdue TaskFilter = "overdue"
	FilterDate    TaskFilter = "date"
	FilterMonth   TaskFilter = "month"
)

// TaskQuery describes a list request. Today is the caller's current date (YYYY-MM-DD);
// Date is the selected day for FilterDate or the YYYY-MM prefix for FilterMonth.
type TaskQuery struct {
	UserID string
	Filter TaskFilter
	Date   string
	Today  string
}

// TaskPatch carries identifiers produced after the authoritative write.
// Empty values are never written.
type TaskPatch struct {
	NotificationIDs map[string]string
	GeofenceID      string
}

// Empty reports whether the patch would write nothing.
func (p TaskPatch) Empty() bool {
	if p.GeofenceID != "" {
		return false
	}
	for _, id := range p.NotificationIDs {
		if id != "" {
			return false
		}
	}
	return true
}

// overwriteFields is every user-controlled column plus the identifier columns,
// which belong to the previous save generation.
var overwriteFields = []string{
	"Title", "DueDate", "DueTime", "Priority", "IsCompleted",
	"HasLocation", "Location", "HasWeather", "NotificationIDs", "GeofenceID",
}

// TaskRepository handles CRUD for tasks.
type TaskRepository struct {
	db *gorm.DB
}

func NewTaskRepository(db *gorm.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

func (r *TaskRepository) Create(ctx context.Context, task *model.Task) error {
	if err := r.db.WithContext(ctx).Create(task).Error; err != nil {
		return fmt.Errorf("create task: %w", err)
	}
	return nil
}

// Overwrite replaces all fields of an existing task. CreatedAt is never touched.
func (r *TaskRepository) Overwrite(ctx context.Context, task *model.Task) error {
	res := r.db.WithContext(ctx).Model(task).
		Where("user_id = ?", task.UserID).
		Select(overwriteFields).
		Updates(task)
	if res.Error != nil {
		return fmt.Errorf("overwrite task: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Patch merges identifiers into the stored task without touching unrelated fields.
func (r *TaskRepository) Patch(ctx context.Context, userID, taskID string, patch TaskPatch) error {
	if patch.Empty() {
		return nil
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var task model.Task
		if err := tx.Where("user_id = ? AND id = ?", userID, taskID).First(&task).Error; err != nil {
			return notFound(err)
		}

		var fields []string
		for label, id := range patch.NotificationIDs {
			if id == "" {
				continue
			}
			if task.NotificationIDs == nil {
				task.NotificationIDs = make(map[string]string)
			}
			task.NotificationIDs[label] = id
			if len(fields) == 0 {
				fields = append(fields, "NotificationIDs")
			}
		}
		if patch.GeofenceID != "" {
			task.GeofenceID = patch.GeofenceID
			fields = append(fields, "GeofenceID")
		}

		if err := tx.Model(&task).Select(fields).Updates(&task).Error; err != nil {
			return fmt.Errorf("patch task: %w", err)
		}
		return nil
	})
}

func (r *TaskRepository) SetCompleted(ctx context.Context, userID, taskID string, completed bool) error {
	res := r.db.WithContext(ctx).Model(&model.Task{}).
		Where("user_id = ? AND id = ?", userID, taskID).
		Update("is_completed", completed)
	if res.Error != nil {
		return fmt.Errorf("complete task: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *TaskRepository) FindByID(ctx context.Context, userID, taskID string) (*model.Task, error) {
	var task model.Task
	if err := r.db.WithContext(ctx).Where("user_id = ? AND id = ?", userID, taskID).First(&task).Error; err != nil {
		return nil, notFound(err)
	}
	return &task, nil
}

// List returns the user's tasks for the given filter, newest first.
func (r *TaskRepository) List(ctx context.Context, q TaskQuery) ([]model.Task, error) {
	db := r.db.WithContext(ctx).Where("user_id = ?", q.UserID)

	switch q.Filter {
	case FilterDate:
		db = db.Where("due_date = ?", q.Date)
	case FilterToday:
		db = db.Where("due_date = ?", q.Today)
	case FilterMonth:
		db = db.Where("due_date LIKE ?", q.Date+"-%")
	case FilterOverdue:
		db = db.Where("due_date <> '' AND due_date < ? AND is_completed = ?", q.Today, false).
			Order("due_date ASC")
	}

	var tasks []model.Task
	if err := db.Order("created_at DESC").Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return tasks, nil
}

// Delete removes a task for the given user.
func (r *TaskRepository) Delete(ctx context.Context, userID, taskID string) error {
	res := r.db.WithContext(ctx).Where("user_id = ? AND id = ?", userID, taskID).Delete(&model.Task{})
	if res.Error != nil {
		return fmt.Errorf("delete task: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
