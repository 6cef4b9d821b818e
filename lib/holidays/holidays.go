package holidays

import (
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"sphnotify/lib/timezone"
)

const dateLayout = "2006-01-02"

// Range is one configured holiday span, dates formatted as 2006-01-02.
type Range struct {
	Name string `json:"name"`
	From string `json:"from"`
	To   string `json:"to"`
}

type span struct {
	name string
	from time.Time
	to   time.Time
}

// Calendar answers whether a given day falls into a configured school
// holiday. The config maps a year to the holiday ranges of that year.
type Calendar struct {
	years map[int][]span
}

func New(config map[string][]Range) (*Calendar, error) {
	years := make(map[int][]span, len(config))

	for yearStr, ranges := range config {
		year, err := strconv.Atoi(yearStr)
		if err != nil {
			return nil, fmt.Errorf("invalid holiday year %q: %w", yearStr, err)
		}

		spans := make([]span, 0, len(ranges))
		for _, r := range ranges {
			if r.Name == "" || r.From == "" || r.To == "" {
				return nil, fmt.Errorf("invalid holiday configuration for %d: %+v", year, r)
			}
			from, err := time.ParseInLocation(dateLayout, r.From, timezone.Location)
			if err != nil {
				return nil, fmt.Errorf("invalid holiday start %q: %w", r.From, err)
			}
			to, err := time.ParseInLocation(dateLayout, r.To, timezone.Location)
			if err != nil {
				return nil, fmt.Errorf("invalid holiday end %q: %w", r.To, err)
			}
			if to.Before(from) {
				return nil, fmt.Errorf("holiday %q ends before it starts", r.Name)
			}
			spans = append(spans, span{name: r.Name, from: from, to: to})
		}
		years[year] = spans
	}

	return &Calendar{years: years}, nil
}

func (c *Calendar) IsHoliday(t time.Time) bool {
	t = t.In(timezone.Location)
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, timezone.Location)

	spans, ok := c.years[day.Year()]
	if !ok {
		slog.Debug("no school holidays configured", "year", day.Year())
		return false
	}

	for _, s := range spans {
		if !day.Before(s.from) && !day.After(s.to) {
			slog.Debug("today is a school holiday", "name", s.name)
			return true
		}
	}
	return false
}
