package bot

import (
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const (
	cbCompletePrefix = "complete:"
	cbDeletePrefix   = "delete:"
	cbEditPrefix     = "edit:"
	cbPlacePrefix    = "place:"
	cbDayPrefix      = "day:"
	cbMonthPrefix    = "month:"
)

const (
	btnSkip          = "⏭️ Skip"
	btnKeep          = "↪️ Keep current"
	btnYes           = "Yes"
	btnNo            = "No"
	btnToday         = "Today"
	btnTomorrow      = "Tomorrow"
	btnHigh          = "🔴 High"
	btnMedium        = "🟡 Medium"
	btnLow           = "🟢 Low"
	btnConfirm       = "✅ Confirm"
	btnCancel        = "↩️ Back"
	btnCancelDialog  = "⏪ Cancel input"
	btnShareLocation = "📍 Send my location"
	menuLabelNewTask = "➕ New task"
	menuLabelTasks   = "📋 Tasks"
	menuLabelCal     = "🗓 Calendar"
	menuLabelWeather = "🌦 Weather"
	menuLabelHelp    = "ℹ️ Help"
)

func keyboard(rows ...[]tgbotapi.KeyboardButton) tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(rows...)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = true
	return kb
}

func mainMenuKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := keyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(menuLabelNewTask),
			tgbotapi.NewKeyboardButton(menuLabelTasks),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(menuLabelCal),
			tgbotapi.NewKeyboardButton(menuLabelWeather),
			tgbotapi.NewKeyboardButton(menuLabelHelp),
		),
	)
	kb.OneTimeKeyboard = false
	return kb
}

func cancelKeyboard() tgbotapi.ReplyKeyboardMarkup {
	return keyboard(tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(btnCancelDialog)))
}

// skipKeyboard offers Skip for new tasks and Keep current while editing.
func skipKeyboard(editing bool) tgbotapi.ReplyKeyboardMarkup {
	label := btnSkip
	if editing {
		label = btnKeep
	}
	return keyboard(
		tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(label)),
		tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(btnCancelDialog)),
	)
}

func dateKeyboard(editing bool) tgbotapi.ReplyKeyboardMarkup {
	label := btnSkip
	if editing {
		label = btnKeep
	}
	return keyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnToday),
			tgbotapi.NewKeyboardButton(btnTomorrow),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(label),
			tgbotapi.NewKeyboardButton(btnCancelDialog),
		),
	)
}

func priorityKeyboard() tgbotapi.ReplyKeyboardMarkup {
	return keyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnHigh),
			tgbotapi.NewKeyboardButton(btnMedium),
			tgbotapi.NewKeyboardButton(btnLow),
		),
		tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(btnCancelDialog)),
	)
}

func yesNoKeyboard() tgbotapi.ReplyKeyboardMarkup {
	return keyboard(tgbotapi.NewKeyboardButtonRow(
		tgbotapi.NewKeyboardButton(btnYes),
		tgbotapi.NewKeyboardButton(btnNo),
		tgbotapi.NewKeyboardButton(btnCancelDialog),
	))
}

func placeKeyboard(editing bool) tgbotapi.ReplyKeyboardMarkup {
	row := tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButtonLocation(btnShareLocation))
	if editing {
		row = append(row, tgbotapi.NewKeyboardButton(btnKeep))
	}
	return keyboard(row, tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(btnCancelDialog)))
}

func locationRequestKeyboard() tgbotapi.ReplyKeyboardMarkup {
	return keyboard(tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButtonLocation(btnShareLocation)))
}

func confirmKeyboard() tgbotapi.ReplyKeyboardMarkup {
	return keyboard(tgbotapi.NewKeyboardButtonRow(
		tgbotapi.NewKeyboardButton(btnConfirm),
		tgbotapi.NewKeyboardButton(btnCancel),
	))
}

func normalizedInput(text string) string {
	return strings.TrimSpace(strings.ToLower(text))
}

func isSkipInput(text string) bool {
	value := normalizedInput(text)
	return value == "-" || value == "skip" || value == "keep" ||
		value == normalizedInput(btnSkip) || value == normalizedInput(btnKeep)
}

func isConfirmInput(text string) bool {
	value := normalizedInput(text)
	return value == normalizedInput(btnConfirm) || value == "confirm" || value == "yes"
}

func isCancelInput(text string) bool {
	value := normalizedInput(text)
	return value == normalizedInput(btnCancel) || value == "back" || value == "no"
}

func isCancelDialogInput(text string) bool {
	value := normalizedInput(text)
	return value == normalizedInput(btnCancelDialog) || value == "cancel"
}

// parseYesNo reports the answer and whether the text was one.
func parseYesNo(text string) (bool, bool) {
	switch normalizedInput(text) {
	case "yes", "y", normalizedInput(btnYes):
		return true, true
	case "no", "n", normalizedInput(btnNo):
		return false, true
	}
	return false, false
}

func parsePriorityInput(text string) (string, bool) {
	value := normalizedInput(text)
	for _, p := range []struct{ btn, name string }{
		{btnHigh, "high"}, {btnMedium, "medium"}, {btnLow, "low"},
	} {
		if value == normalizedInput(p.btn) || value == p.name {
			return p.name, true
		}
	}
	return "", false
}
