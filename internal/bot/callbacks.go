package bot

import (
	"context"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"task-planner/internal/logger"
)

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) error {
	if cb == nil || cb.From == nil || cb.Message == nil {
		return nil
	}
	chatID := cb.Message.Chat.ID
	data := cb.Data
	logger.Debug("Callback received", "chat_id", chatID, "data", data)
	b.ackCallback(cb, "")

	switch {
	case strings.HasPrefix(data, cbCompletePrefix):
		return b.runTaskAction(ctx, chatID, strings.TrimPrefix(data, cbCompletePrefix), actionComplete)
	case strings.HasPrefix(data, cbDeletePrefix):
		return b.runTaskAction(ctx, chatID, strings.TrimPrefix(data, cbDeletePrefix), actionDelete)
	case strings.HasPrefix(data, cbEditPrefix):
		return b.runTaskAction(ctx, chatID, strings.TrimPrefix(data, cbEditPrefix), actionEdit)
	case strings.HasPrefix(data, cbPlacePrefix):
		i, err := strconv.Atoi(strings.TrimPrefix(data, cbPlacePrefix))
		if err != nil {
			return nil
		}
		return b.pickSuggestion(ctx, chatID, i)
	case strings.HasPrefix(data, cbDayPrefix):
		return b.handleListTasks(ctx, chatID, strings.TrimPrefix(data, cbDayPrefix))
	case strings.HasPrefix(data, cbMonthPrefix):
		return b.handleCalendar(ctx, chatID, strings.TrimPrefix(data, cbMonthPrefix), cb.Message.MessageID)
	default:
		return nil
	}
}
