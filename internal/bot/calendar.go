package bot

import (
	"context"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"task-planner/internal/service"
)

const daysPerButtonRow = 5

// handleCalendar shows a month grid. A non-zero messageID edits that message in place.
func (b *Bot) handleCalendar(ctx context.Context, chatID int64, args string, messageID int) error {
	user, err := b.requireUser(ctx, chatID)
	if err != nil || user == nil {
		return err
	}

	now := time.Now().In(b.config.Location)
	month, ok := parseMonth(strings.TrimSpace(args), now)
	if !ok {
		return b.sendText(chatID, "Use /calendar or /calendar 2025-08.")
	}

	marks, err := b.svc.Tasks.CalendarMarks(ctx, user, month.Format("2006-01"))
	if err != nil {
		return b.sendText(chatID, fmt.Sprintf("Could not load the calendar: %s", escape(err.Error())))
	}

	text := renderCalendar(month, marks, now.Format("2006-01-02"))
	markup := calendarKeyboard(month, marks)

	if messageID != 0 {
		edit := tgbotapi.NewEditMessageTextAndMarkup(chatID, messageID, text, markup)
		edit.ParseMode = tgbotapi.ModeHTML
		_, err := b.api.Send(edit)
		return err
	}
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = markup
	_, err = b.api.Send(msg)
	return err
}

func parseMonth(raw string, now time.Time) (time.Time, bool) {
	if raw == "" {
		return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location()), true
	}
	day, ok := service.ParseDueDate(raw+"-01", now.Location())
	if !ok {
		return time.Time{}, false
	}
	return day, true
}

// renderCalendar draws a Monday-first grid. Days with open tasks get a dot,
// days whose tasks are all done get a tick, today is bracketed.
func renderCalendar(month time.Time, marks map[string]service.DayMark, today string) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("🗓 <b>%s</b>\n<pre>", month.Format("January 2006")))
	sb.WriteString(" Mo  Tu  We  Th  Fr  Sa  Su\n")

	offset := (int(month.Weekday()) + 6) % 7
	sb.WriteString(strings.Repeat("    ", offset))

	last := month.AddDate(0, 1, -1).Day()
	for d := 1; d <= last; d++ {
		day := time.Date(month.Year(), month.Month(), d, 0, 0, 0, 0, month.Location())
		key := day.Format("2006-01-02")

		suffix := " "
		if m, ok := marks[key]; ok {
			if m.Open > 0 {
				suffix = "•"
			} else {
				suffix = "✓"
			}
		}
		cell := fmt.Sprintf("%2d%s", d, suffix)
		if key == today {
			cell = fmt.Sprintf("[%2d]", d)
		} else {
			cell = " " + cell
		}
		sb.WriteString(cell)

		if (offset+d)%7 == 0 {
			sb.WriteByte('\n')
		}
	}
	sb.WriteString("</pre>")

	total, open := 0, 0
	for _, m := range marks {
		total += m.Total
		open += m.Open
	}
	sb.WriteString(fmt.Sprintf("\n%d task(s) this month, %d open.", total, open))
	return sb.String()
}

func calendarKeyboard(month time.Time, marks map[string]service.DayMark) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	var row []tgbotapi.InlineKeyboardButton

	last := month.AddDate(0, 1, -1).Day()
	for d := 1; d <= last; d++ {
		key := time.Date(month.Year(), month.Month(), d, 0, 0, 0, 0, month.Location()).Format("2006-01-02")
		m, ok := marks[key]
		if !ok {
			continue
		}
		label := fmt.Sprintf("%d (%d)", d, m.Total)
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(label, cbDayPrefix+key))
		if len(row) == daysPerButtonRow {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}

	prev := month.AddDate(0, -1, 0).Format("2006-01")
	next := month.AddDate(0, 1, 0).Format("2006-01")
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("◀ "+prev, cbMonthPrefix+prev),
		tgbotapi.NewInlineKeyboardButtonData(next+" ▶", cbMonthPrefix+next),
	))
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}
