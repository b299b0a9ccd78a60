package weather

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"time"
)

// RainThreshold is the probability of precipitation that counts as "likely".
const RainThreshold = 0.4

var (
	rainyMain = regexp.MustCompile(`(?i)rain|drizzle|thunderstorm`)
	// drizzle, rain and thunderstorm icon groups
	rainyIcon = regexp.MustCompile(`09|10|11`)
)

type condition struct {
	Main string `json:"main"`
	Icon string `json:"icon"`
}

// Current is the present weather at a coordinate.
type Current struct {
	Name         string
	Condition    string
	TemperatureC float64
	FeelsLikeC   float64
	Humidity     float64
	WindSpeed    float64
	Icon         string
	Sunrise      time.Time
	Sunset       time.Time
}

// HourSlot is one 3-hour forecast step.
type HourSlot struct {
	Time  time.Time
	Label string
	TempC float64
	Pop   float64
	Icon  string
}

// DaySlot aggregates the forecast steps of one local day.
type DaySlot struct {
	Date   string
	Label  string
	MinC   float64
	MaxC   float64
	PopMax float64
	Icon   string
}

// Forecast holds the next ~24h and up to five days.
type Forecast struct {
	Hourly []HourSlot
	Daily  []DaySlot
}

type currentResponse struct {
	Name    string      `json:"name"`
	Weather []condition `json:"weather"`
	Main    struct {
		Temp      float64  `json:"temp"`
		FeelsLike *float64 `json:"feels_like"`
		Humidity  float64  `json:"humidity"`
	} `json:"main"`
	Wind struct {
		Speed float64 `json:"speed"`
	} `json:"wind"`
	Sys struct {
		Sunrise int64 `json:"sunrise"`
		Sunset  int64 `json:"sunset"`
	} `json:"sys"`
}

type forecastResponse struct {
	List []struct {
		Dt   int64 `json:"dt"`
		Main struct {
			Temp *float64 `json:"temp"`
		} `json:"main"`
		Pop     *float64    `json:"pop"`
		Weather []condition `json:"weather"`
	} `json:"list"`
}

type oneCallResponse struct {
	Daily []struct {
		Dt      int64       `json:"dt"`
		Pop     float64     `json:"pop"`
		Weather []condition `json:"weather"`
	} `json:"daily"`
}

// Current returns the present conditions at lat/lng.
func (c *Client) Current(ctx context.Context, lat, lng float64) (*Current, error) {
	var resp currentResponse
	if err := c.getJSON(ctx, cacheKey("current", lat, lng), "/data/2.5/weather", coordParams(lat, lng), &resp); err != nil {
		return nil, err
	}

	cur := &Current{
		Name:         resp.Name,
		Condition:    "—",
		TemperatureC: resp.Main.Temp,
		FeelsLikeC:   resp.Main.Temp,
		Humidity:     resp.Main.Humidity,
		WindSpeed:    resp.Wind.Speed,
		Icon:         "01d",
	}
	if resp.Main.FeelsLike != nil {
		cur.FeelsLikeC = *resp.Main.FeelsLike
	}
	if len(resp.Weather) > 0 {
		cur.Condition = resp.Weather[0].Main
		cur.Icon = resp.Weather[0].Icon
	}
	if resp.Sys.Sunrise > 0 {
		cur.Sunrise = time.Unix(resp.Sys.Sunrise, 0).In(c.loc)
	}
	if resp.Sys.Sunset > 0 {
		cur.Sunset = time.Unix(resp.Sys.Sunset, 0).In(c.loc)
	}
	return cur, nil
}

// Forecast returns the 5 day / 3 hour forecast, grouped per local day.
func (c *Client) Forecast(ctx context.Context, lat, lng float64) (*Forecast, error) {
	var resp forecastResponse
	if err := c.getJSON(ctx, cacheKey("forecast", lat, lng), "/data/2.5/forecast", coordParams(lat, lng), &resp); err != nil {
		return nil, err
	}

	out := &Forecast{}
	type agg struct {
		temps []float64
		pops  []float64
		icon  string
		date  time.Time
	}
	byDay := make(map[string]*agg)
	var order []string

	for i, s := range resp.List {
		at := time.Unix(s.Dt, 0).In(c.loc)
		icon := "01d"
		if len(s.Weather) > 0 && s.Weather[0].Icon != "" {
			icon = s.Weather[0].Icon
		}

		if i < 8 {
			slot := HourSlot{Time: at, Label: fmt.Sprintf("%02d:00", at.Hour()), Icon: icon}
			if s.Main.Temp != nil {
				slot.TempC = *s.Main.Temp
			}
			if s.Pop != nil {
				slot.Pop = *s.Pop
			}
			out.Hourly = append(out.Hourly, slot)
		}

		key := at.Format("2006-01-02")
		day, ok := byDay[key]
		if !ok {
			day = &agg{icon: icon, date: at}
			byDay[key] = day
			order = append(order, key)
		}
		if s.Main.Temp != nil {
			day.temps = append(day.temps, *s.Main.Temp)
		}
		if s.Pop != nil {
			day.pops = append(day.pops, *s.Pop)
		}
		if rainyIcon.MatchString(icon) {
			day.icon = icon
		}
	}

	for i, key := range order {
		if i == 5 {
			break
		}
		day := byDay[key]
		slot := DaySlot{Date: key, Label: day.date.Format("Mon"), Icon: day.icon}
		if len(day.temps) > 0 {
			slot.MinC, slot.MaxC = math.Inf(1), math.Inf(-1)
			for _, t := range day.temps {
				slot.MinC = math.Min(slot.MinC, t)
				slot.MaxC = math.Max(slot.MaxC, t)
			}
		}
		for _, p := range day.pops {
			slot.PopMax = math.Max(slot.PopMax, p)
		}
		out.Daily = append(out.Daily, slot)
	}
	return out, nil
}

// WillLikelyRainOnDate reports whether rain is likely at lat/lng on ymd (YYYY-MM-DD).
// A date outside the forecast window is reported as dry.
func (c *Client) WillLikelyRainOnDate(ctx context.Context, lat, lng float64, ymd string) (bool, error) {
	target, err := time.ParseInLocation("2006-01-02", ymd, c.loc)
	if err != nil {
		return false, fmt.Errorf("parse date %q: %w", ymd, err)
	}

	params := coordParams(lat, lng)
	params.Set("exclude", "minutely,hourly,alerts")

	var resp oneCallResponse
	if err := c.getJSON(ctx, cacheKey("onecall", lat, lng), "/data/3.0/onecall", params, &resp); err != nil {
		return false, err
	}

	for _, day := range resp.Daily {
		if !sameDay(time.Unix(day.Dt, 0).In(c.loc), target) {
			continue
		}
		if day.Pop >= RainThreshold {
			return true, nil
		}
		for _, w := range day.Weather {
			if rainyMain.MatchString(w.Main) {
				return true, nil
			}
		}
		return false, nil
	}
	return false, nil
}

// UmbrellaLikely reports whether any slot in the next 24h looks wet.
func UmbrellaLikely(hourly []HourSlot, now time.Time) bool {
	until := now.Add(24 * time.Hour)
	for _, h := range hourly {
		if h.Time.After(until) {
			continue
		}
		if h.Pop >= RainThreshold || rainyIcon.MatchString(h.Icon) {
			return true
		}
	}
	return false
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
