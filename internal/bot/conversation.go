package bot

import (
	"context"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"task-planner/internal/model"
	"task-planner/internal/service"
)

type conversationStage int

const (
	stageNone conversationStage = iota
	stageSignUpEmail
	stageSignUpPassword
	stageSignUpName
	stageSignInEmail
	stageSignInPassword
	stageProfileName
	stageProfilePassword
	stageTitle
	stageDueDate
	stageDueTime
	stagePriority
	stageHasLocation
	stagePlace
	stageHasWeather
)

type conversationState struct {
	stage conversationStage

	email       string
	password    string
	displayName string

	draft service.TaskDraft
	prior *model.Task
}

func (s *conversationState) editing() bool {
	return s.prior != nil
}

type taskAction int

const (
	actionComplete taskAction = iota
	actionDelete
	actionEdit
)

// confirmationRequest is a pending deletion.
type confirmationRequest struct {
	taskID string
}

func (b *Bot) handleConversation(ctx context.Context, msg *tgbotapi.Message, state *conversationState) error {
	switch state.stage {
	case stageSignUpEmail, stageSignUpPassword, stageSignUpName,
		stageSignInEmail, stageSignInPassword,
		stageProfileName, stageProfilePassword:
		return b.handleAuthStep(ctx, msg, state)
	case stageTitle, stageDueDate, stageDueTime, stagePriority,
		stageHasLocation, stagePlace, stageHasWeather:
		return b.handleTaskStep(ctx, msg, state)
	default:
		b.clearConversation(msg.Chat.ID)
		return b.sendText(msg.Chat.ID, "The dialog was reset. Please start again.")
	}
}

func (b *Bot) handleMenuAlias(ctx context.Context, msg *tgbotapi.Message) (bool, error) {
	chatID := msg.Chat.ID
	switch normalizedInput(msg.Text) {
	case normalizedInput(menuLabelNewTask):
		return true, b.startTaskForm(ctx, chatID, nil)
	case normalizedInput(menuLabelTasks):
		return true, b.handleListTasks(ctx, chatID, "")
	case normalizedInput(menuLabelCal):
		return true, b.handleCalendar(ctx, chatID, "", 0)
	case normalizedInput(menuLabelWeather):
		return true, b.handleWeather(ctx, chatID)
	case normalizedInput(menuLabelHelp):
		return true, b.handleHelp(chatID)
	default:
		return false, nil
	}
}

func (b *Bot) handleConfirmationResponse(ctx context.Context, msg *tgbotapi.Message, req confirmationRequest) error {
	chatID := msg.Chat.ID
	text := strings.TrimSpace(msg.Text)
	switch {
	case isConfirmInput(text):
		b.clearConfirmation(chatID)
		return b.deleteTaskAndRefresh(ctx, chatID, req.taskID)
	case isCancelInput(text):
		b.clearConfirmation(chatID)
		return b.sendText(chatID, "🔹 Main menu")
	default:
		return b.sendWithReplyMarkup(chatID, "Confirm the deletion or go back.", confirmKeyboard())
	}
}
