package watcher_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"arborwatch/services/watcher"

	"github.com/stretchr/testify/require"
)

type fakeScraper struct {
	snapshots map[string]watcher.RawSnapshot
	errs      map[string]error
	panics    map[string]bool
}

func (f *fakeScraper) Scrape(ctx context.Context, cfg watcher.SectionConfig) (watcher.RawSnapshot, error) {
	if f.panics[cfg.Key] {
		panic("selector blew up")
	}
	if err, ok := f.errs[cfg.Key]; ok {
		return watcher.RawSnapshot{}, err
	}
	return f.snapshots[cfg.Key], nil
}

type fakeNotifier struct {
	sent []string
	err  error
}

func (f *fakeNotifier) Send(ctx context.Context, subject, text string) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, text)
	return nil
}

var runSections = []watcher.SectionConfig{
	{
		Key: "messages", Title: "Messages",
		IDField:        "href",
		IdentityFields: []string{"title"},
		CompareFields:  []string{"title", "meta"},
		LineTemplate:   "{title} — {meta}",
	},
	{
		Key: "payments", Title: "Payments",
		IdentityFields: []string{"title"},
		CompareFields:  []string{"title", "meta"},
		LineTemplate:   "{title} — {meta}",
	},
}

func rawSnap(section string, records ...watcher.RawRecord) watcher.RawSnapshot {
	return watcher.RawSnapshot{
		Section:   section,
		Records:   records,
		ScrapedAt: time.Now(),
		Complete:  true,
	}
}

func newRunner(t *testing.T, scraper watcher.Scraper, notifier watcher.Notifier) watcher.Runner {
	return watcher.Runner{
		Store:    setupStore(t),
		Scraper:  scraper,
		Notifier: notifier,
		Profile:  "everything",
		Sections: runSections,
	}
}

func TestRunBootstrapThenNoChanges(t *testing.T) {
	scraper := &fakeScraper{snapshots: map[string]watcher.RawSnapshot{
		"messages": rawSnap("messages", watcher.RawRecord{"title": "Hello", "href": "/m/1"}),
		"payments": rawSnap("payments", watcher.RawRecord{"title": "Dinner money"}),
	}}
	notifier := &fakeNotifier{}
	runner := newRunner(t, scraper, notifier)
	ctx := context.Background()

	report, err := runner.Run(ctx)
	require.NoError(t, err)
	require.True(t, report.Notified)
	require.Equal(t, "Arbor: baseline established", report.Subject)
	require.Contains(t, report.Digest.Text, "Messages: baseline established, 1 items")
	require.Empty(t, report.CommitErrs)

	// second run over identical content: nothing to say, nothing sent
	report, err = runner.Run(ctx)
	require.NoError(t, err)
	require.True(t, report.Digest.Empty)
	require.False(t, report.Notified)
	require.Len(t, notifier.sent, 1)
}

func TestRunDetectsChanges(t *testing.T) {
	scraper := &fakeScraper{snapshots: map[string]watcher.RawSnapshot{
		"messages": rawSnap("messages", watcher.RawRecord{"title": "Hello", "meta": "Office", "href": "/m/1"}),
		"payments": rawSnap("payments"),
	}}
	notifier := &fakeNotifier{}
	runner := newRunner(t, scraper, notifier)
	ctx := context.Background()

	_, err := runner.Run(ctx)
	require.NoError(t, err)

	scraper.snapshots["messages"] = rawSnap("messages",
		watcher.RawRecord{"title": "Hello", "meta": "Head teacher", "href": "/m/1"},
		watcher.RawRecord{"title": "Trip letter", "href": "/m/2"},
	)

	report, err := runner.Run(ctx)
	require.NoError(t, err)
	require.True(t, report.Notified)
	require.Contains(t, report.Digest.Text, "+ Trip letter")
	require.Contains(t, report.Digest.Text, "~ Hello — Head teacher")
	require.Equal(t, "Arbor: new updates in Messages", report.Subject)
}

func TestRunSectionFailureIsolated(t *testing.T) {
	scraper := &fakeScraper{
		snapshots: map[string]watcher.RawSnapshot{
			"payments": rawSnap("payments", watcher.RawRecord{"title": "Dinner money"}),
		},
		errs: map[string]error{"messages": errors.New("portal 503")},
	}
	notifier := &fakeNotifier{}
	runner := newRunner(t, scraper, notifier)
	ctx := context.Background()

	report, err := runner.Run(ctx)
	require.NoError(t, err)

	var messages, payments watcher.SectionResult
	for _, r := range report.Results {
		switch r.Section {
		case "messages":
			messages = r
		case "payments":
			payments = r
		}
	}
	require.True(t, messages.Unavailable)
	var serr *watcher.ScrapeError
	require.ErrorAs(t, messages.Err, &serr)
	require.False(t, payments.Unavailable)
	require.True(t, report.Notified)

	// the failed section committed nothing: once it recovers with the
	// same content as everyone already saw, it bootstraps
	scraper.errs = nil
	scraper.snapshots["messages"] = rawSnap("messages", watcher.RawRecord{"title": "Hello", "href": "/m/1"})
	report, err = runner.Run(ctx)
	require.NoError(t, err)
	require.Contains(t, report.Digest.Text, "Messages: baseline established")
}

func TestRunScraperPanicIsolated(t *testing.T) {
	scraper := &fakeScraper{
		snapshots: map[string]watcher.RawSnapshot{
			"payments": rawSnap("payments", watcher.RawRecord{"title": "Dinner money"}),
		},
		panics: map[string]bool{"messages": true},
	}
	runner := newRunner(t, scraper, &fakeNotifier{})

	report, err := runner.Run(context.Background())
	require.NoError(t, err)
	require.True(t, report.Results[0].Unavailable)
	require.ErrorContains(t, report.Results[0].Err, "panic")
	require.False(t, report.Results[1].Unavailable)
}

func TestRunIncompleteScrapeNotCommitted(t *testing.T) {
	full := rawSnap("messages",
		watcher.RawRecord{"title": "One", "href": "/m/1"},
		watcher.RawRecord{"title": "Two", "href": "/m/2"},
	)
	scraper := &fakeScraper{snapshots: map[string]watcher.RawSnapshot{
		"messages": full,
		"payments": rawSnap("payments"),
	}}
	runner := newRunner(t, scraper, &fakeNotifier{})
	ctx := context.Background()

	_, err := runner.Run(ctx)
	require.NoError(t, err)

	// a truncated page must not read as mass removals
	partial := rawSnap("messages", watcher.RawRecord{"title": "One", "href": "/m/1"})
	partial.Complete = false
	scraper.snapshots["messages"] = partial

	report, err := runner.Run(ctx)
	require.NoError(t, err)
	require.True(t, report.Results[0].Unavailable)
	require.True(t, report.Digest.Empty)

	// baseline still holds both records
	scraper.snapshots["messages"] = full
	report, err = runner.Run(ctx)
	require.NoError(t, err)
	require.True(t, report.Digest.Empty)
}

func TestRunNotifyFailureDoesNotBlockCommit(t *testing.T) {
	scraper := &fakeScraper{snapshots: map[string]watcher.RawSnapshot{
		"messages": rawSnap("messages", watcher.RawRecord{"title": "Hello", "href": "/m/1"}),
		"payments": rawSnap("payments"),
	}}
	notifier := &fakeNotifier{err: errors.New("telegram down")}
	runner := newRunner(t, scraper, notifier)
	ctx := context.Background()

	report, err := runner.Run(ctx)
	require.NoError(t, err)
	require.False(t, report.Notified)
	var nerr *watcher.NotifyError
	require.ErrorAs(t, report.NotifyErr, &nerr)
	require.Empty(t, report.CommitErrs)

	// the baseline committed regardless: next run is quiet
	notifier.err = nil
	report, err = runner.Run(ctx)
	require.NoError(t, err)
	require.True(t, report.Digest.Empty)
}

func TestRunDryRunTouchesNothing(t *testing.T) {
	scraper := &fakeScraper{snapshots: map[string]watcher.RawSnapshot{
		"messages": rawSnap("messages", watcher.RawRecord{"title": "Hello", "href": "/m/1"}),
		"payments": rawSnap("payments"),
	}}
	notifier := &fakeNotifier{}
	runner := newRunner(t, scraper, notifier)
	runner.DryRun = true
	ctx := context.Background()

	report, err := runner.Run(ctx)
	require.NoError(t, err)
	require.False(t, report.Digest.Empty)
	require.False(t, report.Notified)
	require.Empty(t, notifier.sent)

	_, err = runner.Store.Load(ctx, "everything")
	require.ErrorIs(t, err, watcher.ErrNotFound)
}

func TestRunCooldownSuppressesIdenticalDigest(t *testing.T) {
	scraper := &fakeScraper{snapshots: map[string]watcher.RawSnapshot{
		"messages": rawSnap("messages", watcher.RawRecord{"title": "Hello", "href": "/m/1"}),
		"payments": rawSnap("payments"),
	}}
	notifier := &fakeNotifier{}
	runner := newRunner(t, scraper, notifier)
	runner.Cooldown = time.Hour
	at := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	runner.Now = func() time.Time { return at }
	ctx := context.Background()

	_, err := runner.Run(ctx)
	require.NoError(t, err)

	// clearing the committed section makes the next run re-detect the
	// same addition, rendering a byte-identical digest
	require.NoError(t, runner.Store.Commit(ctx, "everything", "messages",
		watcher.SectionSnapshot{}, at))
	report, err := runner.Run(ctx)
	require.NoError(t, err)
	require.True(t, report.Notified)
	require.Contains(t, report.Digest.Text, "+ Hello")
	require.Len(t, notifier.sent, 2)

	// same digest again, still inside the window: suppressed
	require.NoError(t, runner.Store.Commit(ctx, "everything", "messages",
		watcher.SectionSnapshot{}, at))
	report, err = runner.Run(ctx)
	require.NoError(t, err)
	require.True(t, report.Suppressed)
	require.False(t, report.Notified)
	require.Len(t, notifier.sent, 2)

	// once the window passes the same digest goes out again
	require.NoError(t, runner.Store.Commit(ctx, "everything", "messages",
		watcher.SectionSnapshot{}, at))
	require.NoError(t, runner.Store.RecordDigest(ctx, "everything",
		watcher.DigestHash(report.Digest.Text), at.Add(-2*time.Hour)))
	report, err = runner.Run(ctx)
	require.NoError(t, err)
	require.True(t, report.Notified)
	require.Len(t, notifier.sent, 3)
}
