package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"sphnotify/lib/timezone"

	"github.com/adhocore/gronx"
)

const DefaultPollInterval = time.Minute

type Options struct {
	// cron expressions deciding when a check is due, evaluated at minute
	// granularity. An empty list means "run once, immediately".
	Cron []string
	// defaults to DefaultPollInterval
	PollInterval time.Duration
	// receives callback failures and panics, may be nil
	OnError func(context.Context, error)
	// defaults to timezone.Now, overridable for tests
	Now func() time.Time
}

// Runner drives the check callback on a fixed poll cadence. The loop is
// strictly sequential, the executing flag exists for observability only.
type Runner struct {
	specs     []string
	gron      gronx.Gronx
	interval  time.Duration
	onError   func(context.Context, error)
	now       func() time.Time
	executing atomic.Bool
}

func New(opts Options) (*Runner, error) {
	gron := gronx.New()

	specs := make([]string, 0, len(opts.Cron))
	for _, spec := range opts.Cron {
		spec = strings.ToLower(strings.TrimSpace(spec))
		if !gron.IsValid(spec) {
			return nil, fmt.Errorf("invalid cron specification: %q", spec)
		}
		specs = append(specs, spec)
	}

	interval := opts.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	now := opts.Now
	if now == nil {
		now = timezone.Now
	}

	return &Runner{
		specs:    specs,
		gron:     gron,
		interval: interval,
		onError:  opts.OnError,
		now:      now,
	}, nil
}

func (r *Runner) Executing() bool {
	return r.executing.Load()
}

// Run invokes fn once when no schedule is configured, otherwise it loops
// until ctx is cancelled, invoking fn whenever any cron expression matches
// the current minute. Failures inside fn never stop the loop.
func (r *Runner) Run(ctx context.Context, fn func(context.Context) error) {
	if len(r.specs) == 0 {
		slog.WarnContext(ctx, "no schedule configured, executing once")
		r.invoke(ctx, fn)
		return
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		if r.due(r.now()) {
			r.invoke(ctx, fn)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (r *Runner) due(now time.Time) bool {
	for _, spec := range r.specs {
		due, err := r.gron.IsDue(spec, now)
		if err != nil {
			// validated at construction, should not happen
			slog.Error("cron evaluation failed", "spec", spec, "err", err)
			continue
		}
		if due {
			return true
		}
	}
	return false
}

func (r *Runner) invoke(ctx context.Context, fn func(context.Context) error) {
	r.executing.Store(true)
	defer r.executing.Store(false)

	defer func() {
		if rec := recover(); rec != nil {
			err := fmt.Errorf("check panicked: %v", rec)
			slog.ErrorContext(ctx, "scheduled check panicked", "err", rec)
			if r.onError != nil {
				r.onError(ctx, err)
			}
		}
	}()

	err := fn(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "scheduled check failed", "err", err)
		if r.onError != nil {
			r.onError(ctx, err)
		}
	}
}
