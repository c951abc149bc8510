package books

import (
	"math"
	"regexp"
	"strconv"
)

var hoursPattern = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*時間`)

// MonthlyGoal is the parsed form of a book's monthly goal cell. Only the
// "N時間" (hours per day) shape is recognized; anything else keeps the raw
// text with nil numbers.
type MonthlyGoal struct {
	PerDayMinutes   *int   `json:"per_day_minutes"`
	Days            *int   `json:"days"`
	TotalMinutesEst *int   `json:"total_minutes_est"`
	Text            string `json:"text"`
}

// ParseMonthlyGoal parses a goal cell like "1時間" or "2.5時間". Returns nil
// for an empty cell.
func ParseMonthlyGoal(text string) *MonthlyGoal {
	if text == "" {
		return nil
	}
	if m := hoursPattern.FindStringSubmatch(text); m != nil {
		hours, err := strconv.ParseFloat(m[1], 64)
		if err == nil {
			perDay := int(math.Round(hours * 60))
			return &MonthlyGoal{PerDayMinutes: &perDay, Text: text}
		}
	}
	return &MonthlyGoal{Text: text}
}
