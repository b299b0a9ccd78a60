package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"task-planner/internal/logger"
	"task-planner/internal/model"
	"task-planner/internal/repository"
	"task-planner/internal/service"
)

const (
	maxListed     = 30
	watchDuration = 15 * time.Minute
)

func (b *Bot) startTaskForm(ctx context.Context, chatID int64, prior *model.Task) error {
	user, err := b.requireUser(ctx, chatID)
	if err != nil || user == nil {
		return err
	}

	state := &conversationState{stage: stageTitle, prior: prior}
	if prior != nil {
		state.draft = service.TaskDraft{
			Title:       prior.Title,
			DueDate:     prior.DueDate,
			DueTime:     prior.DueTime,
			Priority:    prior.Priority,
			HasLocation: prior.HasLocation,
			HasWeather:  prior.HasWeather,
		}
	}
	b.setConversation(chatID, state)

	if prior != nil {
		text := fmt.Sprintf("✏️ Editing <b>%s</b>.\nSend a new title or keep the current one.", escape(prior.Title))
		return b.sendWithReplyMarkup(chatID, text, skipKeyboard(true))
	}
	return b.sendWithReplyMarkup(chatID, "🆕 New task.\n<b>Step 1:</b> what needs doing?", cancelKeyboard())
}

func (b *Bot) handleTaskStep(ctx context.Context, msg *tgbotapi.Message, state *conversationState) error {
	chatID := msg.Chat.ID
	text := strings.TrimSpace(msg.Text)
	editing := state.editing()
	skip := isSkipInput(text)

	switch state.stage {
	case stageTitle:
		if !(editing && skip) {
			if text == "" {
				return b.sendWithReplyMarkup(chatID, "✏️ "+escape(normalizeTitle(service.ErrTitleRequired.Error()))+".", cancelKeyboard())
			}
			state.draft.Title = text
		}
		state.stage = stageDueDate
		return b.sendWithReplyMarkup(chatID, "📅 Due date as <code>2025-08-28</code>?", dateKeyboard(editing))

	case stageDueDate:
		switch {
		case skip:
			if !editing {
				state.draft.DueDate = ""
			}
		case normalizedInput(text) == normalizedInput(btnToday):
			state.draft.DueDate = b.dayFromNow(0)
		case normalizedInput(text) == normalizedInput(btnTomorrow):
			state.draft.DueDate = b.dayFromNow(1)
		default:
			day, ok := service.NormalizeDueDate(text, b.config.Location)
			if !ok {
				return b.sendWithReplyMarkup(chatID, "I can't read that date. Use <code>2025-08-28</code>.", dateKeyboard(editing))
			}
			state.draft.DueDate = day
		}
		state.stage = stageDueTime
		return b.sendWithReplyMarkup(chatID, "⏰ Due time as <code>14:30</code>?", skipKeyboard(editing))

	case stageDueTime:
		switch {
		case skip:
			if !editing {
				state.draft.DueTime = ""
			}
		default:
			clock, ok := service.NormalizeDueTime(text)
			if !ok {
				return b.sendWithReplyMarkup(chatID, "I can't read that time. Use <code>14:30</code>.", skipKeyboard(editing))
			}
			state.draft.DueTime = clock
		}
		state.stage = stagePriority
		return b.sendWithReplyMarkup(chatID, "❗ Priority?", priorityKeyboard())

	case stagePriority:
		priority, ok := parsePriorityInput(text)
		if !ok {
			return b.sendWithReplyMarkup(chatID, "Pick one of the buttons.", priorityKeyboard())
		}
		state.draft.Priority = model.ParsePriority(priority)
		state.stage = stageHasLocation
		return b.sendWithReplyMarkup(chatID, "📍 Tie the task to a place? I'll ping you when you're nearby.", yesNoKeyboard())

	case stageHasLocation:
		yes, ok := parseYesNo(text)
		if !ok {
			return b.sendWithReplyMarkup(chatID, "Yes or no?", yesNoKeyboard())
		}
		state.draft.HasLocation = yes
		if !yes {
			state.draft.Location = nil
			state.draft.HasWeather = false
			return b.saveTask(ctx, chatID, state)
		}
		state.stage = stagePlace
		prompt := "🔎 Type a place to search for, or share a location."
		if editing && state.prior.Location != nil {
			prompt += fmt.Sprintf("\nCurrent: %s", escape(state.prior.Location.Description))
		}
		return b.sendWithReplyMarkup(chatID, prompt, placeKeyboard(editing && state.prior.Location != nil))

	case stagePlace:
		if skip && editing && state.prior.Location != nil {
			return b.askWeather(chatID, state)
		}
		return b.handlePlaceSearch(ctx, chatID, text)

	case stageHasWeather:
		yes, ok := parseYesNo(text)
		if !ok {
			return b.sendWithReplyMarkup(chatID, "Yes or no?", yesNoKeyboard())
		}
		state.draft.HasWeather = yes
		return b.saveTask(ctx, chatID, state)
	}
	return nil
}

func (b *Bot) askWeather(chatID int64, state *conversationState) error {
	state.stage = stageHasWeather
	return b.sendWithReplyMarkup(chatID, "☔️ Warn you in the morning if rain is likely that day?", yesNoKeyboard())
}

func (b *Bot) saveTask(ctx context.Context, chatID int64, state *conversationState) error {
	user, err := b.currentUser(ctx, chatID)
	if err != nil && !errors.Is(err, service.ErrNotSignedIn) {
		return err
	}

	task, err := b.svc.Orchestrator.Save(ctx, user, state.draft, state.prior)
	switch {
	case errors.Is(err, service.ErrSaveInProgress):
		return nil
	case errors.Is(err, service.ErrNotSignedIn):
		b.clearConversation(chatID)
		return b.sendText(chatID, "🔒 Please /login before saving tasks.")
	case errors.Is(err, service.ErrTitleRequired):
		state.stage = stageTitle
		return b.sendWithReplyMarkup(chatID, "✏️ "+escape(normalizeTitle(err.Error()))+".", cancelKeyboard())
	case err != nil:
		b.clearConversation(chatID)
		logger.ErrorContext(ctx, "Save task failed", "error", err)
		return b.sendText(chatID, "❌ Save failed: "+escape(err.Error()))
	}
	b.clearConversation(chatID)

	logger.InfoContext(ctx, "Task saved", "task_id", task.ID, "user_id", user.ID, "edited", state.prior != nil)

	var summary strings.Builder
	summary.WriteString("✅ <b>Task saved</b>\n")
	summary.WriteString(service.FormatTask(*task, time.Now().In(b.config.Location)))
	if n := len(task.NotificationIDs); n > 0 {
		summary.WriteString(fmt.Sprintf("🔔 %d reminder(s) set\n", n))
	}
	if task.GeofenceID != "" {
		summary.WriteString("📡 Nearby alert on\n")
	}
	if err := b.sendText(chatID, strings.TrimSpace(summary.String())); err != nil {
		return err
	}
	return b.sendTaskList(ctx, chatID, user, repository.FilterAll, "")
}

func (b *Bot) handleListTasks(ctx context.Context, chatID int64, args string) error {
	user, err := b.requireUser(ctx, chatID)
	if err != nil || user == nil {
		return err
	}
	filter, date, ok := b.parseFilter(args)
	if !ok {
		return b.sendText(chatID, "Use /tasks, /tasks today, /tasks overdue or /tasks 2025-08-28.")
	}
	return b.sendTaskList(ctx, chatID, user, filter, date)
}

func (b *Bot) sendTaskList(ctx context.Context, chatID int64, user *model.User, filter repository.TaskFilter, date string) error {
	tasks, err := b.svc.Tasks.List(ctx, user, filter, date)
	if err != nil {
		return b.sendText(chatID, fmt.Sprintf("Could not load tasks: %s", escape(err.Error())))
	}
	overview, err := b.svc.Tasks.Overview(ctx, user)
	if err != nil {
		logger.WarnContext(ctx, "Overview failed", "error", err)
	}

	text, ids, markup := renderTaskList(tasks, overview, filterTitle(filter, date), time.Now().In(b.config.Location))
	b.setListing(chatID, ids)

	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	if markup != nil {
		msg.ReplyMarkup = *markup
	} else {
		msg.ReplyMarkup = mainMenuKeyboard()
	}
	_, err = b.api.Send(msg)
	return err
}

// renderTaskList numbers the tasks and builds one button row per task.
func renderTaskList(tasks []model.Task, overview service.Overview, title string, now time.Time) (string, []string, *tgbotapi.InlineKeyboardMarkup) {
	var builder strings.Builder
	builder.WriteString(fmt.Sprintf("📋 <b>%s</b>\n", title))
	builder.WriteString(fmt.Sprintf("All %d · Today %d · Overdue %d\n\n", overview.All, overview.Today, overview.Overdue))

	if len(tasks) == 0 {
		builder.WriteString("Nothing here. Add a task with /newtask.")
		return builder.String(), nil, nil
	}

	shown := tasks
	if len(shown) > maxListed {
		shown = shown[:maxListed]
	}

	ids := make([]string, 0, len(shown))
	var rows [][]tgbotapi.InlineKeyboardButton
	for i, task := range shown {
		n := i + 1
		ids = append(ids, task.ID)
		builder.WriteString(fmt.Sprintf("<b>%d.</b> %s", n, service.FormatTask(task, now)))

		doneLabel := fmt.Sprintf("✅ %d · %s", n, shortTitle(task.Title, 18))
		if task.IsCompleted {
			doneLabel = fmt.Sprintf("↩️ %d · %s", n, shortTitle(task.Title, 18))
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(doneLabel, cbCompletePrefix+task.ID),
			tgbotapi.NewInlineKeyboardButtonData("✏️", cbEditPrefix+task.ID),
			tgbotapi.NewInlineKeyboardButtonData("🗑", cbDeletePrefix+task.ID),
		))
	}
	if len(tasks) > len(shown) {
		builder.WriteString(fmt.Sprintf("\n…and %d more", len(tasks)-len(shown)))
	}

	markup := tgbotapi.NewInlineKeyboardMarkup(rows...)
	return strings.TrimSpace(builder.String()), ids, &markup
}

func filterTitle(filter repository.TaskFilter, date string) string {
	switch filter {
	case repository.FilterToday:
		return "Today"
	case repository.FilterOverdue:
		return "Overdue"
	case repository.FilterDate:
		return "Tasks on " + date
	default:
		return "All tasks"
	}
}

func (b *Bot) parseFilter(args string) (repository.TaskFilter, string, bool) {
	arg := normalizedInput(args)
	switch arg {
	case "", "all":
		return repository.FilterAll, "", true
	case "today":
		return repository.FilterToday, "", true
	case "overdue":
		return repository.FilterOverdue, "", true
	}
	day, ok := service.ParseDueDate(arg, b.config.Location)
	if !ok {
		return "", "", false
	}
	return repository.FilterDate, day.Format("2006-01-02"), true
}

func (b *Bot) handleIndexedAction(ctx context.Context, chatID int64, args string, action taskAction) error {
	n, err := strconv.Atoi(strings.TrimSpace(args))
	if err != nil {
		return b.sendText(chatID, "Give the task number from the last /tasks list, e.g. <code>/complete 2</code>.")
	}
	taskID, ok := b.listedTaskID(chatID, n)
	if !ok {
		return b.sendText(chatID, "No such number in the last list. Run /tasks first.")
	}
	return b.runTaskAction(ctx, chatID, taskID, action)
}

func (b *Bot) runTaskAction(ctx context.Context, chatID int64, taskID string, action taskAction) error {
	switch action {
	case actionComplete:
		return b.toggleTaskAndRefresh(ctx, chatID, taskID)
	case actionDelete:
		return b.askDeleteConfirmation(ctx, chatID, taskID)
	case actionEdit:
		user, err := b.requireUser(ctx, chatID)
		if err != nil || user == nil {
			return err
		}
		task, err := b.svc.Tasks.Get(ctx, user, taskID)
		if err != nil {
			return b.taskError(chatID, err)
		}
		return b.startTaskForm(ctx, chatID, task)
	}
	return nil
}

func (b *Bot) askDeleteConfirmation(ctx context.Context, chatID int64, taskID string) error {
	user, err := b.requireUser(ctx, chatID)
	if err != nil || user == nil {
		return err
	}
	task, err := b.svc.Tasks.Get(ctx, user, taskID)
	if err != nil {
		return b.taskError(chatID, err)
	}
	b.setConfirmation(chatID, confirmationRequest{taskID: task.ID})
	text := fmt.Sprintf("Delete \"%s\"?", escape(normalizeTitle(task.Title)))
	return b.sendWithReplyMarkup(chatID, text, confirmKeyboard())
}

func (b *Bot) toggleTaskAndRefresh(ctx context.Context, chatID int64, taskID string) error {
	user, err := b.requireUser(ctx, chatID)
	if err != nil || user == nil {
		return err
	}
	task, err := b.svc.Tasks.ToggleComplete(ctx, user, taskID)
	if err != nil {
		return b.taskError(chatID, err)
	}

	info := fmt.Sprintf("✅ \"%s\" done.", escape(normalizeTitle(task.Title)))
	if !task.IsCompleted {
		info = fmt.Sprintf("↩️ \"%s\" is open again.", escape(normalizeTitle(task.Title)))
	}
	logger.InfoContext(ctx, "Task toggled", "task_id", task.ID, "completed", task.IsCompleted)
	if err := b.sendText(chatID, info); err != nil {
		return err
	}
	return b.sendTaskList(ctx, chatID, user, repository.FilterAll, "")
}

func (b *Bot) deleteTaskAndRefresh(ctx context.Context, chatID int64, taskID string) error {
	user, err := b.requireUser(ctx, chatID)
	if err != nil || user == nil {
		return err
	}
	task, err := b.svc.Tasks.Get(ctx, user, taskID)
	if err != nil {
		return b.taskError(chatID, err)
	}
	if err := b.svc.Tasks.Delete(ctx, user, taskID); err != nil {
		return b.taskError(chatID, err)
	}

	logger.InfoContext(ctx, "Task deleted", "task_id", task.ID)
	if err := b.sendText(chatID, fmt.Sprintf("🗑 \"%s\" deleted.", escape(normalizeTitle(task.Title)))); err != nil {
		return err
	}
	return b.sendTaskList(ctx, chatID, user, repository.FilterAll, "")
}

func (b *Bot) taskError(chatID int64, err error) error {
	if errors.Is(err, service.ErrTaskNotFound) {
		return b.sendText(chatID, "Task not found or already deleted.")
	}
	return b.sendText(chatID, fmt.Sprintf("Error: %s", escape(err.Error())))
}

// handleWatch keeps one message in sync with the task list for a while.
func (b *Bot) handleWatch(ctx context.Context, chatID int64, args string) error {
	user, err := b.requireUser(ctx, chatID)
	if err != nil || user == nil {
		return err
	}
	filter, date, ok := b.parseFilter(args)
	if !ok {
		return b.sendText(chatID, "Use /watch, /watch today or /watch overdue.")
	}

	b.stopWatch(chatID)
	wctx, cancel := context.WithTimeout(ctx, watchDuration)
	snapshots, err := b.svc.Tasks.Watch(wctx, user, filter, date)
	if err != nil {
		cancel()
		return b.sendText(chatID, fmt.Sprintf("Could not start the live view: %s", escape(err.Error())))
	}
	view := &liveView{cancel: cancel}
	b.mu.Lock()
	b.watches[chatID] = view
	b.mu.Unlock()

	title := "🔴 Live · " + filterTitle(filter, date)
	first := <-snapshots
	text := b.renderLive(first, title)
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	sent, err := b.api.Send(msg)
	if err != nil {
		b.endWatch(chatID, view)
		return err
	}

	go func() {
		defer b.endWatch(chatID, view)
		last := text
		for tasks := range snapshots {
			next := b.renderLive(tasks, title)
			if next == last {
				continue
			}
			last = next
			edit := tgbotapi.NewEditMessageText(chatID, sent.MessageID, next)
			edit.ParseMode = tgbotapi.ModeHTML
			if _, err := b.api.Send(edit); err != nil {
				logger.Debug("Live view edit failed", "chat_id", chatID, "error", err)
			}
		}
	}()
	return nil
}

type liveView struct {
	cancel context.CancelFunc
}

func (b *Bot) renderLive(tasks []model.Task, title string) string {
	now := time.Now().In(b.config.Location)
	text, _, _ := renderTaskList(tasks, service.Summarize(tasks, now.Format("2006-01-02")), title, now)
	return text
}

func (b *Bot) stopWatch(chatID int64) {
	b.mu.Lock()
	view, ok := b.watches[chatID]
	delete(b.watches, chatID)
	b.mu.Unlock()
	if ok {
		view.cancel()
	}
}

// endWatch releases view unless a newer live view already replaced it.
func (b *Bot) endWatch(chatID int64, view *liveView) {
	b.mu.Lock()
	if b.watches[chatID] == view {
		delete(b.watches, chatID)
	}
	b.mu.Unlock()
	view.cancel()
}

func (b *Bot) stopWatches() {
	b.mu.Lock()
	watches := b.watches
	b.watches = make(map[int64]*liveView)
	b.mu.Unlock()
	for _, view := range watches {
		view.cancel()
	}
}

func (b *Bot) dayFromNow(days int) string {
	return time.Now().In(b.config.Location).AddDate(0, 0, days).Format("2006-01-02")
}
