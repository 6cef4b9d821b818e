package vertretung

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"sphnotify/lib/scrapers/sph"
	"sphnotify/lib/timezone"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel/codes"
)

const DefaultPlanPage = "/vertretungsplan.php"

type SessionClient interface {
	Login(ctx context.Context) error
	Get(ctx context.Context, relUrl string) ([]byte, error)
	Logout(ctx context.Context) error
}

type Dispatcher interface {
	Dispatch(ctx context.Context, message string, isError bool)
}

type HolidayCalendar interface {
	IsHoliday(t time.Time) bool
}

type Options struct {
	Session  SessionClient
	Notifier Dispatcher
	Ledger   *Ledger

	// Optional collaborators.
	Holidays HolidayCalendar
	History  *History

	Filter       PlanFilter
	PlanPage     string
	SnapshotPath string
	Now          func() time.Time
}

// Service runs one full check cycle: log in, fetch the substitution plan,
// notify about rows not seen before. It owns the ordering guarantees of a
// cycle, every collaborator is injected.
type Service struct {
	session  SessionClient
	notifier Dispatcher
	ledger   *Ledger

	holidays HolidayCalendar
	history  *History

	filter       PlanFilter
	planPage     string
	snapshotPath string
	now          func() time.Time
}

func NewService(opts Options) *Service {
	if opts.PlanPage == "" {
		opts.PlanPage = DefaultPlanPage
	}
	if opts.Now == nil {
		opts.Now = timezone.Now
	}
	return &Service{
		session:      opts.Session,
		notifier:     opts.Notifier,
		ledger:       opts.Ledger,
		holidays:     opts.Holidays,
		history:      opts.History,
		filter:       opts.Filter,
		planPage:     opts.PlanPage,
		snapshotPath: opts.SnapshotPath,
		now:          opts.Now,
	}
}

// Check runs one cycle. On a detected mid-fetch logout it re-establishes
// the session and retries the fetch exactly once. The session is always
// logged out before returning, no matter the outcome.
func (s *Service) Check(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "service:Check")
	defer span.End()

	if s.holidays != nil && s.holidays.IsHoliday(s.now()) {
		slog.InfoContext(ctx, "school holidays, not checking the plan")
		s.logout(ctx)
		return nil
	}

	slog.InfoContext(ctx, "checking the substitution plan")

	err := s.session.Login(ctx)
	if err != nil {
		span.SetStatus(codes.Error, "login failed")
		span.RecordError(err)
		return fmt.Errorf("failed to login: %w", err)
	}
	defer s.logout(ctx)

	events, err := s.fetchPlan(ctx)
	if errors.Is(err, sph.ErrLoggedOut) {
		slog.WarnContext(ctx, "session expired while fetching the plan, retrying once")
		s.logout(ctx)
		err = s.session.Login(ctx)
		if err != nil {
			span.SetStatus(codes.Error, "login failed on retry")
			span.RecordError(err)
			return fmt.Errorf("failed to login again: %w", err)
		}
		events, err = s.fetchPlan(ctx)
	}
	if err != nil {
		span.SetStatus(codes.Error, "fetching the plan failed")
		span.RecordError(err)
		return fmt.Errorf("failed to get the substitution plan: %w", err)
	}

	newEvents := 0
	for _, event := range events {
		if s.processEvent(ctx, event) {
			newEvents++
		}
	}
	slog.InfoContext(ctx, "check finished", "events", len(events), "new", newEvents)
	return nil
}

// Shutdown logs the session out, it is safe to call on a never-used
// service.
func (s *Service) Shutdown(ctx context.Context) {
	s.logout(ctx)
}

func (s *Service) fetchPlan(ctx context.Context) ([]Event, error) {
	ctx, span := tracer.Start(ctx, "service:fetchPlan")
	defer span.End()

	body, err := s.session.Get(ctx, s.planPage)
	if err != nil {
		return nil, err
	}
	s.writeSnapshot(ctx, body)

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse the plan page: %w", err)
	}

	alerts := sph.CollectAlerts(doc)
	for _, warning := range alerts.Warnings {
		slog.WarnContext(ctx, "portal warning on the plan page", "message", warning)
	}
	if alerts.LoggedOut() {
		return nil, sph.ErrLoggedOut
	}

	return ParsePlan(doc, s.filter, s.now())
}

// processEvent reports whether the event was new. The ledger write comes
// strictly before the notification so a crash duplicates a missed message
// at most into silence, never into repeated pushes.
func (s *Service) processEvent(ctx context.Context, event Event) bool {
	fingerprint := event.Fingerprint()
	if s.ledger.Known(fingerprint) {
		return false
	}

	err := s.ledger.Add(fingerprint, event.String())
	if err != nil {
		slog.ErrorContext(ctx, "failed to record event, it will be reconsidered next cycle", "err", err)
		return false
	}

	message := renderMessage(event)
	slog.InfoContext(ctx, "new substitution", "fingerprint", fingerprint, "event", event.String())
	s.notifier.Dispatch(ctx, message, false)

	if s.history != nil {
		err := s.history.Record(ctx, fingerprint, message)
		if err != nil {
			slog.WarnContext(ctx, "failed to archive notification", "err", err)
		}
	}
	return true
}

func renderMessage(e Event) string {
	return fmt.Sprintf(
		"%s: %s im Fach %s in Stunde %s",
		e.Get("Datum"), e.Get("Hinweis"), e.Get("Fach"), e.Get("Stunde"),
	)
}

func (s *Service) writeSnapshot(ctx context.Context, body []byte) {
	if s.snapshotPath == "" {
		return
	}
	err := os.WriteFile(s.snapshotPath, body, 0644)
	if err != nil {
		slog.WarnContext(ctx, "failed to write plan snapshot", "path", s.snapshotPath, "err", err)
	}
}

func (s *Service) logout(ctx context.Context) {
	err := s.session.Logout(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to logout", "err", err)
	}
}
