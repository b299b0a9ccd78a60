package bot

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"task-planner/internal/config"
	"task-planner/internal/model"
	"task-planner/internal/places"
	"task-planner/internal/repository"
	"task-planner/internal/service"
	"task-planner/internal/weather"
)

func testBot() *Bot {
	return &Bot{
		config:   &config.Config{Location: time.UTC},
		listings: make(map[int64][]string),
	}
}

func TestRenderCalendar(t *testing.T) {
	month := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC) // a Saturday
	marks := map[string]service.DayMark{
		"2025-03-05": {Total: 2, Open: 1},
		"2025-03-07": {Total: 1, Open: 0},
	}
	got := renderCalendar(month, marks, "2025-03-10")

	for _, want := range []string{
		"<b>March 2025</b>",
		strings.Repeat(" ", 20) + "  1   2 \n",
		" 5•",
		" 7✓",
		"[10]",
		"3 task(s) this month, 1 open.",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("calendar missing %q:\n%s", want, got)
		}
	}
}

func TestCalendarKeyboard(t *testing.T) {
	month := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	marks := map[string]service.DayMark{}
	for d := 1; d <= 7; d++ {
		marks[fmt.Sprintf("2025-03-%02d", d)] = service.DayMark{Total: 1, Open: 1}
	}

	kb := calendarKeyboard(month, marks)
	if len(kb.InlineKeyboard) != 3 {
		t.Fatalf("rows = %d, want 2 day rows and a nav row", len(kb.InlineKeyboard))
	}
	if len(kb.InlineKeyboard[0]) != daysPerButtonRow || len(kb.InlineKeyboard[1]) != 2 {
		t.Errorf("day rows = %d and %d buttons", len(kb.InlineKeyboard[0]), len(kb.InlineKeyboard[1]))
	}
	if data := *kb.InlineKeyboard[0][0].CallbackData; data != "day:2025-03-01" {
		t.Errorf("first day callback = %q", data)
	}
	nav := kb.InlineKeyboard[2]
	if *nav[0].CallbackData != "month:2025-02" || *nav[1].CallbackData != "month:2025-04" {
		t.Errorf("nav = %q, %q", *nav[0].CallbackData, *nav[1].CallbackData)
	}
}

func TestParseMonth(t *testing.T) {
	now := time.Date(2025, 3, 17, 15, 0, 0, 0, time.UTC)
	tests := []struct {
		raw    string
		want   string
		wantOK bool
	}{
		{"", "2025-03-01", true},
		{"2024-12", "2024-12-01", true},
		{"2025-13", "", false},
		{"march", "", false},
	}
	for _, tt := range tests {
		got, ok := parseMonth(tt.raw, now)
		if ok != tt.wantOK {
			t.Errorf("parseMonth(%q) ok = %v", tt.raw, ok)
			continue
		}
		if ok && got.Format("2006-01-02") != tt.want {
			t.Errorf("parseMonth(%q) = %s, want %s", tt.raw, got.Format("2006-01-02"), tt.want)
		}
	}
}

func TestRenderTaskList(t *testing.T) {
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

	text, ids, markup := renderTaskList(nil, service.Overview{}, "Today", now)
	if ids != nil || markup != nil || !strings.Contains(text, "Nothing here") {
		t.Fatalf("empty list = %q, %v, %v", text, ids, markup)
	}

	var tasks []model.Task
	for i := 1; i <= maxListed+5; i++ {
		tasks = append(tasks, model.Task{ID: fmt.Sprintf("t%d", i), Title: fmt.Sprintf("task %d", i)})
	}
	tasks[0].IsCompleted = true

	text, ids, markup = renderTaskList(tasks, service.Overview{All: len(tasks), Today: 2, Overdue: 1}, "All tasks", now)
	if len(ids) != maxListed || ids[0] != "t1" {
		t.Fatalf("ids = %d, first %q", len(ids), ids[0])
	}
	if len(markup.InlineKeyboard) != maxListed {
		t.Errorf("rows = %d", len(markup.InlineKeyboard))
	}
	for _, want := range []string{"All 35 · Today 2 · Overdue 1", "<b>1.</b> ✅ task 1", "…and 5 more"} {
		if !strings.Contains(text, want) {
			t.Errorf("list missing %q", want)
		}
	}
	first := markup.InlineKeyboard[0]
	if first[0].Text != "↩️ 1 · Task 1" || *first[0].CallbackData != "complete:t1" {
		t.Errorf("first row = %q %q", first[0].Text, *first[0].CallbackData)
	}
	if *first[1].CallbackData != "edit:t1" || *first[2].CallbackData != "delete:t1" {
		t.Errorf("action callbacks = %q %q", *first[1].CallbackData, *first[2].CallbackData)
	}
}

func TestListedTaskID(t *testing.T) {
	b := testBot()
	b.setListing(1, []string{"a", "b"})

	tests := []struct {
		n      int
		want   string
		wantOK bool
	}{
		{1, "a", true},
		{2, "b", true},
		{0, "", false},
		{3, "", false},
	}
	for _, tt := range tests {
		got, ok := b.listedTaskID(1, tt.n)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("listedTaskID(%d) = %q, %v", tt.n, got, ok)
		}
	}
	if _, ok := b.listedTaskID(2, 1); ok {
		t.Error("listing leaked across chats")
	}
}

func TestParseFilter(t *testing.T) {
	b := testBot()
	tests := []struct {
		args       string
		wantFilter repository.TaskFilter
		wantDate   string
		wantOK     bool
	}{
		{"", repository.FilterAll, "", true},
		{"Today", repository.FilterToday, "", true},
		{"overdue", repository.FilterOverdue, "", true},
		{"2025-3-7", repository.FilterDate, "2025-03-07", true},
		{"2025-02-30", "", "", false},
		{"someday", "", "", false},
	}
	for _, tt := range tests {
		filter, date, ok := b.parseFilter(tt.args)
		if filter != tt.wantFilter || date != tt.wantDate || ok != tt.wantOK {
			t.Errorf("parseFilter(%q) = %q, %q, %v", tt.args, filter, date, ok)
		}
	}
}

func TestInputParsers(t *testing.T) {
	yesNo := []struct {
		in          string
		want, valid bool
	}{
		{"yes", true, true},
		{" Y ", true, true},
		{btnNo, false, true},
		{"maybe", false, false},
	}
	for _, tt := range yesNo {
		got, ok := parseYesNo(tt.in)
		if got != tt.want || ok != tt.valid {
			t.Errorf("parseYesNo(%q) = %v, %v", tt.in, got, ok)
		}
	}

	priorities := []struct {
		in, want string
		valid    bool
	}{
		{btnHigh, "high", true},
		{"LOW", "low", true},
		{"medium", "medium", true},
		{"urgent", "", false},
	}
	for _, tt := range priorities {
		got, ok := parsePriorityInput(tt.in)
		if got != tt.want || ok != tt.valid {
			t.Errorf("parsePriorityInput(%q) = %q, %v", tt.in, got, ok)
		}
	}

	if !isSkipInput("-") || !isSkipInput(btnKeep) || isSkipInput("tomorrow") {
		t.Error("isSkipInput misclassified input")
	}
	if !isCancelDialogInput("Cancel") || isCancelDialogInput("back") {
		t.Error("isCancelDialogInput misclassified input")
	}
}

func TestShortTitle(t *testing.T) {
	tests := []struct {
		in   string
		max  int
		want string
	}{
		{"buy milk", 20, "Buy milk"},
		{"buy milk and eggs", 8, "Buy mil…"},
		{"  two\nlines ", 20, "Two lines"},
		{"привет мир", 6, "Приве…"},
	}
	for _, tt := range tests {
		if got := shortTitle(tt.in, tt.max); got != tt.want {
			t.Errorf("shortTitle(%q, %d) = %q, want %q", tt.in, tt.max, got, tt.want)
		}
	}
}

func TestFormatNotification(t *testing.T) {
	got := formatNotification(model.Notification{Title: "⏰ <Call>", Body: "1 hour to go"})
	if got != "<b>⏰ &lt;Call&gt;</b>\n1 hour to go" {
		t.Errorf("formatNotification = %q", got)
	}
	if got := formatNotification(model.Notification{Title: "Only title"}); got != "<b>Only title</b>" {
		t.Errorf("formatNotification = %q", got)
	}
}

func TestRenderWeather(t *testing.T) {
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	current := &weather.Current{Condition: "Rain", TemperatureC: 7.4, FeelsLikeC: 5, Humidity: 80, WindSpeed: 3.25}
	forecast := &weather.Forecast{
		Hourly: []weather.HourSlot{{Time: now.Add(3 * time.Hour), Label: "12:00", TempC: 8, Pop: 0.5, Icon: "10d"}},
		Daily:  []weather.DaySlot{{Label: "Mon", MinC: 3, MaxC: 9, PopMax: 0.5}},
	}

	got := renderWeather(current, forecast, now)
	for _, want := range []string{"Your location", "Rain · 7°C (feels 5°C)", "Take an umbrella", "12:00  8°C  50%", "Mon  3…9°C  50%"} {
		if !strings.Contains(got, want) {
			t.Errorf("weather missing %q:\n%s", want, got)
		}
	}

	dry := renderWeather(&weather.Current{Name: "Berlin"}, &weather.Forecast{}, now)
	if strings.Contains(dry, "umbrella") || !strings.Contains(dry, "Berlin") {
		t.Errorf("dry weather = %q", dry)
	}
}

func TestSuggestionKeyboard(t *testing.T) {
	kb := suggestionKeyboard([]places.Suggestion{{Description: "Cafe"}, {Description: "Bar"}})
	if len(kb.InlineKeyboard) != 2 || *kb.InlineKeyboard[1][0].CallbackData != "place:1" {
		t.Fatalf("keyboard = %+v", kb.InlineKeyboard)
	}
}
