package commands

import (
	"context"
	"fmt"

	"sphnotify/lib/configuration"
	"sphnotify/lib/holidays"
	"sphnotify/lib/notify"
	"sphnotify/lib/scrapers/sph"
	"sphnotify/services/vertretung"
)

type SchoolConfig struct {
	// either the numeric portal id, or empty with City and Name set so
	// the id can be resolved from the public school list
	Id   string `json:"id"`
	City string `json:"city"`
	Name string `json:"name"`
}

type ScraperConfig struct {
	BaseUrl  string       `json:"base_url"`
	School   SchoolConfig `json:"school"`
	Username string       `json:"username"`
	Password string       `json:"password"`
	PlanPage string       `json:"plan_page"`
}

type FilterConfig struct {
	Class    string   `json:"class"`
	Subjects []string `json:"subjects"`
}

type ExecutionConfig struct {
	Cron                []string `json:"cron"`
	PollIntervalSeconds int      `json:"poll_interval_seconds"`
}

type StorageConfig struct {
	Ledger   string `json:"ledger"`
	History  string `json:"history"`
	Snapshot string `json:"snapshot"`
}

type NotifyConfig struct {
	Enabled    bool                `json:"enabled"`
	Recipients []notify.Recipient  `json:"recipients"`
	Smtp       *notify.SmtpOptions `json:"smtp"`
}

type Config struct {
	Scraper   ScraperConfig               `json:"scraper"`
	Filter    FilterConfig                `json:"filter"`
	Execution ExecutionConfig             `json:"execution"`
	Holidays  map[string][]holidays.Range `json:"holidays"`
	Notify    NotifyConfig                `json:"notify"`
	Storage   StorageConfig               `json:"storage"`
}

func readConfig() (Config, error) {
	cfg, err := configuration.ReadConfig[Config](configFile)
	if err != nil {
		return Config{}, err
	}
	if cfg.Storage.Ledger == "" {
		cfg.Storage.Ledger = "notified_events.txt"
	}
	return cfg, nil
}

func (c Config) schoolId(ctx context.Context) (string, error) {
	if c.Scraper.School.Id != "" {
		return c.Scraper.School.Id, nil
	}
	if c.Scraper.School.City == "" || c.Scraper.School.Name == "" {
		return "", fmt.Errorf("school id is not configured and city/name are missing")
	}
	directory := sph.NewSchoolDirectory("")
	return directory.ResolveId(ctx, c.Scraper.School.City, c.Scraper.School.Name)
}

func (c Config) filter() vertretung.PlanFilter {
	return vertretung.PlanFilter{
		Class:    c.Filter.Class,
		Subjects: c.Filter.Subjects,
	}
}

func (c Config) holidayCalendar() (*holidays.Calendar, error) {
	if len(c.Holidays) == 0 {
		return nil, nil
	}
	return holidays.New(c.Holidays)
}
