package service

import (
	"context"
	"fmt"
	"html"
	"sort"
	"strings"
	"time"

	"task-planner/internal/model"
	"task-planner/internal/repository"
)

// upcomingDays is how far ahead the agenda looks.
const upcomingDays = 7

// AgendaService builds the periodic agenda report sent to each user.
type AgendaService struct {
	taskRepo *repository.TaskRepository
}

func NewAgendaService(taskRepo *repository.TaskRepository) *AgendaService {
	return &AgendaService{taskRepo: taskRepo}
}

// DailySummary renders the user's open tasks as Telegram HTML.
func (s *AgendaService) DailySummary(ctx context.Context, user model.User, now time.Time) (string, error) {
	tasks, err := s.taskRepo.List(ctx, repository.TaskQuery{UserID: user.ID, Filter: repository.FilterAll})
	if err != nil {
		return "", err
	}

	today := now.Format("2006-01-02")
	horizon := now.AddDate(0, 0, upcomingDays).Format("2006-01-02")

	var overdue, dueToday, upcoming, undated []model.Task
	for _, task := range tasks {
		if task.IsCompleted {
			continue
		}
		switch {
		case task.DueDate == "":
			undated = append(undated, task)
		case task.DueDate < today:
			overdue = append(overdue, task)
		case task.DueDate == today:
			dueToday = append(dueToday, task)
		case task.DueDate <= horizon:
			upcoming = append(upcoming, task)
		}
	}
	for _, list := range [][]model.Task{overdue, dueToday, upcoming} {
		sortByDue(list)
	}

	var builder strings.Builder
	builder.WriteString("📋 <b>Your agenda</b>\n")
	builder.WriteString(fmt.Sprintf("🗓 %s\n", now.Format("Mon, 02 Jan 2006")))

	writeSection(&builder, "⚠️ <b>Overdue</b>", overdue, now)
	writeSection(&builder, "🔥 <b>Today</b>", dueToday, now)
	writeSection(&builder, "📆 <b>Next 7 days</b>", upcoming, now)
	if len(undated) > 0 {
		builder.WriteString(fmt.Sprintf("\n📝 %d task(s) without a date\n", len(undated)))
	}
	if len(overdue)+len(dueToday)+len(upcoming)+len(undated) == 0 {
		builder.WriteString("\n— nothing open, enjoy your day\n")
	}

	return strings.TrimSpace(builder.String()), nil
}

func writeSection(b *strings.Builder, header string, tasks []model.Task, now time.Time) {
	if len(tasks) == 0 {
		return
	}
	b.WriteString("\n" + header + "\n")
	for _, task := range tasks {
		b.WriteString(FormatTask(task, now))
	}
}

func sortByDue(tasks []model.Task) {
	sort.SliceStable(tasks, func(i, j int) bool {
		if tasks[i].DueDate != tasks[j].DueDate {
			return tasks[i].DueDate < tasks[j].DueDate
		}
		return tasks[i].DueTime < tasks[j].DueTime
	})
}

// FormatTask renders one task line with its due date and place, HTML-escaped.
func FormatTask(task model.Task, now time.Time) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("%s %s", PriorityIcon(task), html.EscapeString(strings.TrimSpace(task.Title))))

	if task.DueDate != "" {
		due := task.DueDate
		if task.DueTime != "" {
			due += " " + task.DueTime
		}
		if !task.IsCompleted && task.DueDate < now.Format("2006-01-02") {
			sb.WriteString(fmt.Sprintf("\n   ⏰ %s · <b>overdue</b>", html.EscapeString(due)))
		} else {
			sb.WriteString(fmt.Sprintf("\n   ⏰ %s", html.EscapeString(due)))
		}
	}

	if task.HasLocation && task.Location != nil && task.Location.Description != "" {
		sb.WriteString(fmt.Sprintf("\n   📍 %s", html.EscapeString(task.Location.Description)))
	}
	if task.HasWeather {
		sb.WriteString(" ☔️")
	}

	sb.WriteByte('\n')
	return sb.String()
}

// PriorityIcon marks completion or priority.
func PriorityIcon(task model.Task) string {
	if task.IsCompleted {
		return "✅"
	}
	switch task.Priority {
	case model.PriorityHigh:
		return "🔴"
	case model.PriorityLow:
		return "🟢"
	default:
		return "🟡"
	}
}
