package bot

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"
	"sync"
	"time"
	"unicode"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"task-planner/internal/config"
	"task-planner/internal/logger"
	"task-planner/internal/model"
	"task-planner/internal/places"
	"task-planner/internal/repository"
	"task-planner/internal/service"
	"task-planner/internal/weather"
)

// Services bundles what the bot talks to.
type Services struct {
	Auth         *service.AuthService
	Tasks        *service.TaskService
	Orchestrator *service.Orchestrator
	Agenda       *service.AgendaService
	Locations    *service.LocationService
	Geofences    *service.GeofenceService
	Weather      *weather.Client
	Users        *repository.UserRepository
}

// Bot aggregates Telegram API with services.
type Bot struct {
	api    *tgbotapi.BotAPI
	svc    Services
	config *config.Config

	mu            sync.Mutex
	sessions      map[int64]string
	conversations map[int64]*conversationState
	confirmations map[int64]confirmationRequest
	listings      map[int64][]string
	positions     map[int64]service.PickedLocation
	searches      map[int64][]places.Suggestion
	watches       map[int64]*liveView

	queueMu sync.Mutex
	queues  map[int64]*chatQueue
	workers sync.WaitGroup
}

// chatQueue runs one chat's updates in arrival order.
type chatQueue struct {
	jobs []func()
}

func New(token string, svc Services, cfg *config.Config) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}

	logger.Info("Bot authorized", "account", api.Self.UserName)

	return &Bot{
		api:           api,
		svc:           svc,
		config:        cfg,
		sessions:      make(map[int64]string),
		conversations: make(map[int64]*conversationState),
		confirmations: make(map[int64]confirmationRequest),
		listings:      make(map[int64][]string),
		positions:     make(map[int64]service.PickedLocation),
		searches:      make(map[int64][]places.Suggestion),
		watches:       make(map[int64]*liveView),
	}, nil
}

// Start begins polling updates until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) error {
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60
	updates := b.api.GetUpdatesChan(updateConfig)

	logger.Info("Start polling updates")

	go func() {
		<-ctx.Done()
		b.api.StopReceivingUpdates()
	}()

	for update := range updates {
		switch {
		case update.CallbackQuery != nil:
			query := update.CallbackQuery
			if query.Message == nil || query.Message.Chat == nil {
				continue
			}
			chatID := query.Message.Chat.ID
			b.enqueue(chatID, func() {
				cctx := logger.ContextWithChatID(ctx, chatID)
				if err := b.handleCallback(cctx, query); err != nil {
					logger.ErrorContext(cctx, "Handle callback failed", "error", err)
				}
			})
		case update.Message != nil:
			msg := update.Message
			if msg.Chat == nil || !msg.Chat.IsPrivate() {
				continue
			}
			chatID := msg.Chat.ID
			b.enqueue(chatID, func() {
				mctx := logger.ContextWithChatID(ctx, chatID)
				if err := b.handleMessage(mctx, msg); err != nil {
					logger.ErrorContext(mctx, "Handle message failed", "error", err)
				}
			})
		case update.EditedMessage != nil && update.EditedMessage.Location != nil:
			// live location updates arrive as edits
			msg := update.EditedMessage
			if msg.Chat == nil {
				continue
			}
			chatID := msg.Chat.ID
			b.enqueue(chatID, func() {
				ectx := logger.ContextWithChatID(ctx, chatID)
				if err := b.handlePosition(ectx, chatID, msg.Location); err != nil {
					logger.ErrorContext(ectx, "Handle live location failed", "error", err)
				}
			})
		}
	}

	b.workers.Wait()
	b.stopWatches()
	return nil
}

// enqueue hands job to the chat's worker, starting one when the chat is idle.
// Jobs of one chat run in order; different chats run concurrently.
func (b *Bot) enqueue(chatID int64, job func()) {
	b.queueMu.Lock()
	defer b.queueMu.Unlock()
	if b.queues == nil {
		b.queues = make(map[int64]*chatQueue)
	}
	if q, ok := b.queues[chatID]; ok {
		q.jobs = append(q.jobs, job)
		return
	}
	q := &chatQueue{jobs: []func(){job}}
	b.queues[chatID] = q
	b.workers.Add(1)
	go b.drain(chatID, q)
}

func (b *Bot) drain(chatID int64, q *chatQueue) {
	defer b.workers.Done()
	for {
		b.queueMu.Lock()
		if len(q.jobs) == 0 {
			delete(b.queues, chatID)
			b.queueMu.Unlock()
			return
		}
		job := q.jobs[0]
		q.jobs = q.jobs[1:]
		b.queueMu.Unlock()
		b.runJob(chatID, job)
	}
}

func (b *Bot) runJob(chatID int64, job func()) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Update handler panicked", "chat_id", chatID, "panic", r)
		}
	}()
	job()
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) error {
	if msg.From == nil {
		return nil
	}
	chatID := msg.Chat.ID

	if msg.Location != nil {
		return b.handleLocationMessage(ctx, msg)
	}

	if !msg.IsCommand() && isCancelDialogInput(msg.Text) {
		b.clearConversation(chatID)
		b.clearConfirmation(chatID)
		return b.sendText(chatID, "⏪ Input cancelled. Start again whenever you like.")
	}

	if !msg.IsCommand() {
		if handled, err := b.handleMenuAlias(ctx, msg); handled {
			return err
		}
	}

	if msg.IsCommand() {
		logger.InfoContext(ctx, "Command received", "command", msg.Command(), "args", msg.CommandArguments())
		return b.handleCommand(ctx, msg)
	}

	if pending, ok := b.getConfirmation(chatID); ok {
		return b.handleConfirmationResponse(ctx, msg, pending)
	}

	if state := b.getConversation(chatID); state != nil {
		logger.Debug("Conversation step", "stage", state.stage, "chat_id", chatID)
		return b.handleConversation(ctx, msg, state)
	}

	return b.sendText(chatID, "I did not get that. Try /newtask to add a task or /help for the command list.")
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) error {
	chatID := msg.Chat.ID
	switch msg.Command() {
	case "start":
		return b.handleStart(ctx, msg)
	case "help":
		return b.handleHelp(chatID)
	case "signup":
		return b.startSignUp(chatID)
	case "login":
		return b.startSignIn(chatID)
	case "logout":
		return b.handleSignOut(ctx, chatID)
	case "profile":
		return b.handleProfile(ctx, chatID)
	case "newtask":
		return b.startTaskForm(ctx, chatID, nil)
	case "edit":
		return b.handleIndexedAction(ctx, chatID, msg.CommandArguments(), actionEdit)
	case "tasks":
		return b.handleListTasks(ctx, chatID, msg.CommandArguments())
	case "calendar":
		return b.handleCalendar(ctx, chatID, msg.CommandArguments(), 0)
	case "complete":
		return b.handleIndexedAction(ctx, chatID, msg.CommandArguments(), actionComplete)
	case "delete":
		return b.handleIndexedAction(ctx, chatID, msg.CommandArguments(), actionDelete)
	case "watch":
		return b.handleWatch(ctx, chatID, msg.CommandArguments())
	case "report":
		return b.handleReport(ctx, chatID)
	case "weather":
		return b.handleWeather(ctx, chatID)
	case "place":
		return b.handlePlaceSearch(ctx, chatID, msg.CommandArguments())
	case "places":
		return b.handleRecentPlaces(ctx, chatID)
	case "cancel":
		b.clearConversation(chatID)
		b.clearConfirmation(chatID)
		b.stopWatch(chatID)
		return b.sendText(chatID, "⏪ Cancelled.")
	default:
		return b.sendText(chatID, "Unknown command. Have a look at /help.")
	}
}

func (b *Bot) handleStart(ctx context.Context, msg *tgbotapi.Message) error {
	name := strings.TrimSpace(msg.From.FirstName)
	if user, err := b.currentUser(ctx, msg.Chat.ID); err == nil {
		name = user.DisplayName
	}
	if name == "" {
		name = "there"
	}

	text := fmt.Sprintf(
		"👋 Hi, %s!\n<b>I keep your tasks, remind you before they are due and nudge you when you are nearby.</b>\n\n"+
			"• /signup or /login to get started\n"+
			"• /newtask to add a task\n"+
			"• /tasks to see what is open\n"+
			"• /help for everything else",
		escape(name),
	)
	return b.sendText(msg.Chat.ID, text)
}

func (b *Bot) handleHelp(chatID int64) error {
	text := "ℹ️ <b>Commands</b>\n" +
		"• /signup, /login, /logout — account\n" +
		"• /profile — change your name or password\n" +
		"• /newtask — add a task step by step\n" +
		"• /edit &lt;n&gt; — edit task n from the last list\n" +
		"• /tasks [today|overdue|YYYY-MM-DD] — list tasks\n" +
		"• /calendar [YYYY-MM] — month view\n" +
		"• /complete &lt;n&gt;, /delete &lt;n&gt; — act on task n\n" +
		"• /watch [today|overdue] — keep a live list for a while\n" +
		"• /report — agenda right now\n" +
		"• /weather — weather at your last shared location\n" +
		"• /place &lt;query&gt;, /places — find and list places\n" +
		"• /cancel — stop the current input\n\n" +
		"Share your live location to get alerts when you are near a task's place."
	return b.sendText(chatID, text)
}

func (b *Bot) handleReport(ctx context.Context, chatID int64) error {
	user, err := b.requireUser(ctx, chatID)
	if err != nil || user == nil {
		return err
	}
	text, err := b.svc.Agenda.DailySummary(ctx, *user, time.Now().In(b.config.Location))
	if err != nil {
		return b.sendText(chatID, fmt.Sprintf("Could not build the agenda: %s", escape(err.Error())))
	}
	return b.sendText(chatID, text)
}

// SendDailyReports sends an agenda to every device of every user.
func (b *Bot) SendDailyReports(ctx context.Context) error {
	users, err := b.svc.Users.ListAll(ctx)
	if err != nil {
		return err
	}
	now := time.Now().In(b.config.Location)
	for _, user := range users {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		devices, err := b.svc.Users.ListDevices(ctx, user.ID)
		if err != nil || len(devices) == 0 {
			continue
		}
		text, err := b.svc.Agenda.DailySummary(ctx, user, now)
		if err != nil {
			logger.Warn("Build agenda failed", "user_id", user.ID, "error", err)
			continue
		}
		for _, d := range devices {
			if err := b.sendText(d.ChatID, text); err != nil {
				logger.Warn("Send agenda failed", "chat_id", d.ChatID, "error", err)
			}
		}
	}
	return nil
}

// Deliver implements service.Dispatcher. Default-channel notifications arrive silently.
func (b *Bot) Deliver(_ context.Context, chatID int64, n model.Notification) error {
	msg := tgbotapi.NewMessage(chatID, formatNotification(n))
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableNotification = n.Channel == model.ChannelDefault
	if n.TaskID != "" {
		msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ Done", cbCompletePrefix+n.TaskID),
		))
	}
	_, err := b.api.Send(msg)
	return err
}

var _ service.Dispatcher = (*Bot)(nil)

func formatNotification(n model.Notification) string {
	text := "<b>" + escape(n.Title) + "</b>"
	if n.Body != "" {
		text += "\n" + escape(n.Body)
	}
	return text
}

// currentUser resolves the chat's session. An expired or revoked session is forgotten.
func (b *Bot) currentUser(ctx context.Context, chatID int64) (*model.User, error) {
	b.mu.Lock()
	token := b.sessions[chatID]
	b.mu.Unlock()

	user, err := b.svc.Auth.CurrentUser(ctx, token)
	if errors.Is(err, service.ErrNotSignedIn) && token != "" {
		b.mu.Lock()
		delete(b.sessions, chatID)
		b.mu.Unlock()
	}
	return user, err
}

// requireUser returns nil, nil after telling the chat to sign in.
func (b *Bot) requireUser(ctx context.Context, chatID int64) (*model.User, error) {
	user, err := b.currentUser(ctx, chatID)
	if err == nil {
		return user, nil
	}
	if errors.Is(err, service.ErrNotSignedIn) {
		return nil, b.sendText(chatID, "🔒 Please /login or /signup first.")
	}
	return nil, err
}

func (b *Bot) sendText(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = mainMenuKeyboard()
	_, err := b.api.Send(msg)
	return err
}

func (b *Bot) sendWithReplyMarkup(chatID int64, text string, markup interface{}) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = markup
	_, err := b.api.Send(msg)
	return err
}

func (b *Bot) ackCallback(cb *tgbotapi.CallbackQuery, text string) {
	if _, err := b.api.Request(tgbotapi.NewCallback(cb.ID, text)); err != nil {
		logger.Warn("Callback ack failed", "error", err)
	}
}

func (b *Bot) getConfirmation(chatID int64) (confirmationRequest, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	req, ok := b.confirmations[chatID]
	return req, ok
}

func (b *Bot) setConfirmation(chatID int64, req confirmationRequest) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.confirmations[chatID] = req
}

func (b *Bot) clearConfirmation(chatID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.confirmations, chatID)
}

func (b *Bot) setConversation(chatID int64, state *conversationState) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.conversations[chatID] = state
}

func (b *Bot) getConversation(chatID int64) *conversationState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.conversations[chatID]
}

func (b *Bot) clearConversation(chatID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.conversations, chatID)
}

func (b *Bot) setListing(chatID int64, ids []string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listings[chatID] = ids
}

// listedTaskID maps a 1-based position in the chat's last list to a task id.
func (b *Bot) listedTaskID(chatID int64, n int) (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	ids := b.listings[chatID]
	if n < 1 || n > len(ids) {
		return "", false
	}
	return ids[n-1], true
}

func escape(s string) string {
	return html.EscapeString(s)
}

func shortTitle(title string, maxLen int) string {
	clean := strings.TrimSpace(strings.ReplaceAll(title, "\n", " "))
	clean = normalizeTitle(clean)
	runes := []rune(clean)
	if len(runes) <= maxLen {
		return clean
	}
	if maxLen <= 1 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-1]) + "…"
}

func normalizeTitle(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return value
	}
	runes := []rune(value)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
