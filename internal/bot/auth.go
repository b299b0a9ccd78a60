package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"task-planner/internal/logger"
	"task-planner/internal/service"
)

func (b *Bot) startSignUp(chatID int64) error {
	b.setConversation(chatID, &conversationState{stage: stageSignUpEmail})
	return b.sendWithReplyMarkup(chatID, "📝 Let's create your account.\n<b>Step 1:</b> your email?", cancelKeyboard())
}

func (b *Bot) startSignIn(chatID int64) error {
	b.setConversation(chatID, &conversationState{stage: stageSignInEmail})
	return b.sendWithReplyMarkup(chatID, "🔑 Your email?", cancelKeyboard())
}

func (b *Bot) handleSignOut(ctx context.Context, chatID int64) error {
	b.mu.Lock()
	token := b.sessions[chatID]
	delete(b.sessions, chatID)
	b.mu.Unlock()
	b.stopWatch(chatID)

	if token == "" {
		return b.sendText(chatID, "You are not signed in.")
	}
	if err := b.svc.Auth.SignOut(ctx, token, chatID); err != nil && !errors.Is(err, service.ErrNotSignedIn) {
		logger.WarnContext(ctx, "Sign out failed", "error", err)
	}
	return b.sendText(chatID, "👋 Signed out. This chat will no longer receive reminders.")
}

func (b *Bot) handleProfile(ctx context.Context, chatID int64) error {
	user, err := b.requireUser(ctx, chatID)
	if err != nil || user == nil {
		return err
	}
	b.setConversation(chatID, &conversationState{stage: stageProfileName})
	text := fmt.Sprintf("👤 <b>%s</b>\n✉️ %s\n\nSend a new display name or skip.",
		escape(user.DisplayName), escape(user.Email))
	return b.sendWithReplyMarkup(chatID, text, skipKeyboard(false))
}

func (b *Bot) handleAuthStep(ctx context.Context, msg *tgbotapi.Message, state *conversationState) error {
	chatID := msg.Chat.ID
	text := strings.TrimSpace(msg.Text)

	switch state.stage {
	case stageSignUpEmail:
		state.email = text
		state.stage = stageSignUpPassword
		return b.sendWithReplyMarkup(chatID, "<b>Step 2:</b> choose a password (at least 6 characters).", cancelKeyboard())
	case stageSignUpPassword:
		state.password = msg.Text
		b.forgetSecret(msg)
		state.stage = stageSignUpName
		return b.sendWithReplyMarkup(chatID, "<b>Step 3:</b> how should I call you?", cancelKeyboard())
	case stageSignUpName:
		b.clearConversation(chatID)
		_, err := b.svc.Auth.SignUp(ctx, service.SignUpInput{
			Email:       state.email,
			Password:    state.password,
			DisplayName: text,
		})
		if err != nil {
			return b.sendText(chatID, "❌ "+escape(authMessage(err))+"\nTry /signup again.")
		}
		return b.completeSignIn(ctx, chatID, state.email, state.password)
	case stageSignInEmail:
		state.email = text
		state.stage = stageSignInPassword
		return b.sendWithReplyMarkup(chatID, "🔑 Your password?", cancelKeyboard())
	case stageSignInPassword:
		b.clearConversation(chatID)
		b.forgetSecret(msg)
		return b.completeSignIn(ctx, chatID, state.email, msg.Text)
	case stageProfileName:
		if !isSkipInput(text) {
			state.displayName = text
		}
		state.stage = stageProfilePassword
		return b.sendWithReplyMarkup(chatID, "Send a new password (6+ characters) or skip.", skipKeyboard(false))
	case stageProfilePassword:
		b.clearConversation(chatID)
		password := ""
		if !isSkipInput(text) {
			password = msg.Text
			b.forgetSecret(msg)
		}
		user, err := b.requireUser(ctx, chatID)
		if err != nil || user == nil {
			return err
		}
		if err := b.svc.Auth.UpdateProfile(ctx, user, state.displayName, password); err != nil {
			return b.sendText(chatID, "❌ Could not update the profile: "+escape(err.Error()))
		}
		return b.sendText(chatID, "✅ Profile updated.")
	}
	return nil
}

func (b *Bot) completeSignIn(ctx context.Context, chatID int64, email, password string) error {
	token, user, err := b.svc.Auth.SignIn(ctx, email, password)
	if err != nil {
		return b.sendText(chatID, "❌ "+escape(authMessage(err)))
	}
	if err := b.svc.Auth.RegisterDevice(ctx, user, chatID); err != nil {
		logger.WarnContext(ctx, "Register device failed", "user_id", user.ID, "error", err)
	}

	b.mu.Lock()
	b.sessions[chatID] = token
	b.mu.Unlock()

	logger.InfoContext(ctx, "User signed in", "user_id", user.ID)
	return b.sendText(chatID, fmt.Sprintf("✅ Welcome, %s! Add a task with /newtask.", escape(user.DisplayName)))
}

// forgetSecret removes a message carrying a password from the chat history.
func (b *Bot) forgetSecret(msg *tgbotapi.Message) {
	if _, err := b.api.Request(tgbotapi.NewDeleteMessage(msg.Chat.ID, msg.MessageID)); err != nil {
		logger.Debug("Delete password message failed", "error", err)
	}
}

func authMessage(err error) string {
	switch {
	case errors.Is(err, service.ErrInvalidCredentials),
		errors.Is(err, service.ErrEmailTaken),
		errors.Is(err, service.ErrPasswordTooShort),
		errors.Is(err, service.ErrMissingFields):
		return err.Error()
	}
	return "Something went wrong: " + err.Error()
}
