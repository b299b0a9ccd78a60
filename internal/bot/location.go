package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"task-planner/internal/logger"
	"task-planner/internal/places"
	"task-planner/internal/service"
	"task-planner/internal/weather"
)

const maxSuggestions = 5

func (b *Bot) handleLocationMessage(ctx context.Context, msg *tgbotapi.Message) error {
	chatID := msg.Chat.ID
	if state := b.getConversation(chatID); state != nil && state.stage == stagePlace {
		user, err := b.currentUser(ctx, chatID)
		if err != nil {
			return b.sendText(chatID, "🔒 Please /login first.")
		}
		state.draft.Location = b.svc.Locations.FromCoordinates(ctx, user, msg.Location.Latitude, msg.Location.Longitude)
		if err := b.sendWithReplyMarkup(chatID, "📍 "+escape(state.draft.Location.Description), cancelKeyboard()); err != nil {
			return err
		}
		return b.askWeather(chatID, state)
	}

	if err := b.handlePosition(ctx, chatID, msg.Location); err != nil {
		return err
	}
	if msg.Location.LivePeriod > 0 {
		return b.sendText(chatID, "📡 Following your live location. I'll tell you when you're near a task.")
	}
	return b.sendText(chatID, "📍 Got it. /weather now uses this spot.")
}

// handlePosition remembers the chat's position and runs region checks for its user.
func (b *Bot) handlePosition(ctx context.Context, chatID int64, loc *tgbotapi.Location) error {
	b.mu.Lock()
	b.positions[chatID] = service.PickedLocation{Latitude: loc.Latitude, Longitude: loc.Longitude}
	b.mu.Unlock()

	user, err := b.currentUser(ctx, chatID)
	if err != nil {
		if errors.Is(err, service.ErrNotSignedIn) {
			return nil
		}
		return err
	}
	entered, err := b.svc.Geofences.HandlePosition(ctx, user.ID, loc.Latitude, loc.Longitude)
	if err != nil {
		return err
	}
	if len(entered) > 0 {
		logger.InfoContext(ctx, "Entered task regions", "count", len(entered))
	}
	return nil
}

func (b *Bot) lastPosition(chatID int64) (service.PickedLocation, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	pos, ok := b.positions[chatID]
	return pos, ok
}

func (b *Bot) handlePlaceSearch(ctx context.Context, chatID int64, query string) error {
	query = strings.TrimSpace(query)
	if query == "" {
		return b.sendText(chatID, "What should I look for? e.g. <code>/place coffee near the station</code>")
	}

	var near *service.PickedLocation
	if pos, ok := b.lastPosition(chatID); ok {
		near = &pos
	}
	suggestions, err := b.svc.Locations.Search(ctx, query, near)
	if err != nil {
		if errors.Is(err, places.ErrMissingKey) {
			return b.sendText(chatID, "Place search is not configured. Share a location instead.")
		}
		return b.sendText(chatID, fmt.Sprintf("Search failed: %s", escape(err.Error())))
	}
	if len(suggestions) == 0 {
		return b.sendText(chatID, "Nothing found. Try other words or share a location.")
	}
	if len(suggestions) > maxSuggestions {
		suggestions = suggestions[:maxSuggestions]
	}

	b.mu.Lock()
	b.searches[chatID] = suggestions
	b.mu.Unlock()

	msg := tgbotapi.NewMessage(chatID, "🔎 Pick a place:")
	msg.ReplyMarkup = suggestionKeyboard(suggestions)
	_, err = b.api.Send(msg)
	return err
}

func suggestionKeyboard(suggestions []places.Suggestion) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(suggestions))
	for i, s := range suggestions {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(shortTitle(s.Description, 48), fmt.Sprintf("%s%d", cbPlacePrefix, i)),
		))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// pickSuggestion resolves the i-th suggestion of the chat's last search.
func (b *Bot) pickSuggestion(ctx context.Context, chatID int64, i int) error {
	b.mu.Lock()
	suggestions := b.searches[chatID]
	b.mu.Unlock()
	if i < 0 || i >= len(suggestions) {
		return b.sendText(chatID, "That search expired. Please search again.")
	}

	user, err := b.currentUser(ctx, chatID)
	if err != nil && !errors.Is(err, service.ErrNotSignedIn) {
		return err
	}
	picked, err := b.svc.Locations.Resolve(ctx, user, suggestions[i].PlaceID)
	if err != nil {
		return b.sendText(chatID, fmt.Sprintf("Could not resolve the place: %s", escape(err.Error())))
	}

	if state := b.getConversation(chatID); state != nil && state.stage == stagePlace {
		state.draft.Location = picked
		if err := b.sendWithReplyMarkup(chatID, "📍 "+escape(picked.Description), cancelKeyboard()); err != nil {
			return err
		}
		return b.askWeather(chatID, state)
	}

	text := fmt.Sprintf("📍 <b>%s</b>\n<code>%.5f, %.5f</code>", escape(picked.Description), picked.Latitude, picked.Longitude)
	if err := b.sendText(chatID, text); err != nil {
		return err
	}
	_, err = b.api.Send(tgbotapi.NewLocation(chatID, picked.Latitude, picked.Longitude))
	return err
}

func (b *Bot) handleRecentPlaces(ctx context.Context, chatID int64) error {
	user, err := b.requireUser(ctx, chatID)
	if err != nil || user == nil {
		return err
	}
	recent, err := b.svc.Locations.Recent(ctx, user)
	if err != nil {
		return b.sendText(chatID, fmt.Sprintf("Could not load places: %s", escape(err.Error())))
	}
	if len(recent) == 0 {
		return b.sendText(chatID, "No places yet. Find one with /place.")
	}
	var sb strings.Builder
	sb.WriteString("📌 <b>Recent places</b>\n")
	for _, p := range recent {
		sb.WriteString(fmt.Sprintf("• %s\n", escape(p.Description)))
	}
	return b.sendText(chatID, strings.TrimSpace(sb.String()))
}

func (b *Bot) handleWeather(ctx context.Context, chatID int64) error {
	pos, ok := b.lastPosition(chatID)
	if !ok {
		return b.sendWithReplyMarkup(chatID, "📍 Share your location first.", locationRequestKeyboard())
	}

	current, err := b.svc.Weather.Current(ctx, pos.Latitude, pos.Longitude)
	if err != nil {
		if errors.Is(err, weather.ErrMissingKey) {
			return b.sendText(chatID, "Weather is not configured.")
		}
		return b.sendText(chatID, fmt.Sprintf("Weather unavailable: %s", escape(err.Error())))
	}
	forecast, err := b.svc.Weather.Forecast(ctx, pos.Latitude, pos.Longitude)
	if err != nil {
		logger.WarnContext(ctx, "Forecast failed", "error", err)
		forecast = &weather.Forecast{}
	}
	return b.sendText(chatID, renderWeather(current, forecast, time.Now().In(b.config.Location)))
}

func renderWeather(current *weather.Current, forecast *weather.Forecast, now time.Time) string {
	var sb strings.Builder
	place := current.Name
	if place == "" {
		place = "Your location"
	}
	sb.WriteString(fmt.Sprintf("🌦 <b>%s</b>\n", escape(place)))
	sb.WriteString(fmt.Sprintf("%s · %.0f°C (feels %.0f°C)\n", escape(current.Condition), current.TemperatureC, current.FeelsLikeC))
	sb.WriteString(fmt.Sprintf("💧 %.0f%% · 💨 %.1f m/s\n", current.Humidity, current.WindSpeed))

	if weather.UmbrellaLikely(forecast.Hourly, now) {
		sb.WriteString("\n☔️ <b>Take an umbrella today.</b>\n")
	}

	if len(forecast.Hourly) > 0 {
		sb.WriteString("\n<b>Next hours</b>\n")
		for _, h := range forecast.Hourly {
			sb.WriteString(fmt.Sprintf("%s  %.0f°C  %.0f%%\n", escape(h.Label), h.TempC, h.Pop*100))
		}
	}
	if len(forecast.Daily) > 0 {
		sb.WriteString("\n<b>Next days</b>\n")
		for _, d := range forecast.Daily {
			sb.WriteString(fmt.Sprintf("%s  %.0f…%.0f°C  %.0f%%\n", escape(d.Label), d.MinC, d.MaxC, d.PopMax*100))
		}
	}
	return strings.TrimSpace(sb.String())
}
