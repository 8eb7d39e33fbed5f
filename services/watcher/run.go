package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Scraper fetches one section's current rows from the portal. The
// watcher core never talks to the portal itself.
type Scraper interface {
	Scrape(ctx context.Context, cfg SectionConfig) (RawSnapshot, error)
}

// Notifier delivers a rendered digest. Implementations fan out to
// Telegram, Discord or email; the core only sees one Send.
type Notifier interface {
	Send(ctx context.Context, subject, text string) error
}

// SectionResult is the per-section outcome of one run.
type SectionResult struct {
	Section string
	Delta   SectionDelta
	// Unavailable marks a section whose scrape, normalization or diff
	// failed this run. Its baseline is untouched and it contributes
	// nothing to the digest.
	Unavailable bool
	Err         error
}

// Report summarizes one full run for the caller.
type Report struct {
	Profile    string
	Results    []SectionResult
	Digest     Digest
	Subject    string
	Notified   bool
	Suppressed bool
	NotifyErr  error
	CommitErrs []error
}

// Runner drives one watch cycle: scrape every configured section,
// diff against the stored baseline, send a digest, commit.
type Runner struct {
	Store    Store
	Scraper  Scraper
	Notifier Notifier

	Profile  string
	Sections []SectionConfig

	// DigestBudget bounds the rendered digest; zero means the default.
	DigestBudget int
	// Cooldown suppresses re-sending an identical digest within the
	// window. Zero disables deduping.
	Cooldown time.Duration

	// DryRun computes deltas and renders the digest without sending
	// anything or committing a baseline.
	DryRun bool

	// Now is overridable in tests; nil means time.Now.
	Now func() time.Time
}

func (r Runner) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

// checkSection runs one section's scrape, normalization and diff
// against the baseline, converting panics anywhere along the way into
// an error so a single bad page cannot take down the whole run.
func (r Runner) checkSection(ctx context.Context, cfg SectionConfig, baseline Baseline) (delta SectionDelta, snapshot SectionSnapshot, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = &ScrapeError{Section: cfg.Key, Err: fmt.Errorf("panic: %v", p)}
		}
	}()

	raw, err := r.Scraper.Scrape(ctx, cfg)
	if err != nil {
		return SectionDelta{}, nil, &ScrapeError{Section: cfg.Key, Err: err}
	}
	snapshot, err = Normalize(cfg, raw)
	if err != nil {
		return SectionDelta{}, nil, err
	}

	prev, ok := baseline.Section(cfg.Key)
	if ok {
		delta = Diff(cfg.Key, prev, snapshot)
	} else {
		delta = BootstrapDelta(cfg.Key, snapshot)
	}
	return delta, snapshot, nil
}

// Run executes one watch cycle. Section failures are isolated: each
// failed section is reported Unavailable while the rest proceed. The
// digest is sent at most once, before any baseline commit, so a crash
// between the two re-surfaces the delta next run rather than losing
// it.
func (r Runner) Run(ctx context.Context) (Report, error) {
	ctx, span := tracer.Start(ctx, "watcher:Run")
	defer span.End()
	span.SetAttributes(
		attribute.String("profile", r.Profile),
		attribute.Int("sections", len(r.Sections)),
	)

	report := Report{Profile: r.Profile}

	baseline, err := r.Store.Load(ctx, r.Profile)
	if err != nil && err != ErrNotFound {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return report, err
	}

	// scrape + diff
	deltas := map[string]SectionDelta{}
	snapshots := map[string]SectionSnapshot{}
	for _, cfg := range r.Sections {
		delta, current, err := r.checkSection(ctx, cfg, baseline)
		if err != nil {
			slog.Warn("section unavailable this run",
				"profile", r.Profile, "section", cfg.Key, "err", err)
			report.Results = append(report.Results, SectionResult{
				Section:     cfg.Key,
				Unavailable: true,
				Err:         err,
			})
			continue
		}

		deltas[cfg.Key] = delta
		snapshots[cfg.Key] = current
		report.Results = append(report.Results, SectionResult{
			Section: cfg.Key,
			Delta:   delta,
		})
	}

	at := r.now()
	report.Digest = BuildDigest(r.Sections, deltas, at, r.DigestBudget)
	report.Subject = Subject(r.Sections, deltas)

	if r.DryRun {
		return report, nil
	}

	// notify before commit: losing a notification repeats it next run,
	// losing a committed delta silences it forever
	if !report.Digest.Empty && r.Notifier != nil {
		hash := DigestHash(report.Digest.Text)
		lastHash, lastAt, err := r.Store.LastDigest(ctx, r.Profile)
		if err != nil {
			slog.Warn("digest log unavailable, sending anyway",
				"profile", r.Profile, "err", err)
		}
		if r.Cooldown > 0 && hash == lastHash && at.Sub(lastAt) < r.Cooldown {
			slog.Info("identical digest within cooldown, suppressed",
				"profile", r.Profile, "hash", hash)
			report.Suppressed = true
		} else {
			err := r.Notifier.Send(ctx, report.Subject, report.Digest.Text)
			if err != nil {
				report.NotifyErr = &NotifyError{Err: err}
				span.RecordError(report.NotifyErr)
				slog.Error("digest delivery failed",
					"profile", r.Profile, "err", err)
			} else {
				report.Notified = true
			}
			if err := r.Store.RecordDigest(ctx, r.Profile, hash, at); err != nil {
				slog.Warn("recording digest failed",
					"profile", r.Profile, "err", err)
			}
		}
	}

	// commit per section, scrape-failed sections keep their baseline
	for _, cfg := range r.Sections {
		snapshot, ok := snapshots[cfg.Key]
		if !ok {
			continue
		}
		if err := r.Store.Commit(ctx, r.Profile, cfg.Key, snapshot, at); err != nil {
			perr := &PersistenceError{Section: cfg.Key, Err: err}
			span.RecordError(perr)
			slog.Error("baseline commit failed",
				"profile", r.Profile, "section", cfg.Key, "err", err)
			report.CommitErrs = append(report.CommitErrs, perr)
		}
	}

	return report, nil
}
