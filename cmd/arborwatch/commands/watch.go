package commands

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"time"

	"arborwatch/lib/scrapers/arbor"
	"arborwatch/lib/serviceutil"
	"arborwatch/services/watcher"

	"github.com/spf13/cobra"
)

var (
	watchProfile *string
	watchFast    *bool
	watchDryRun  *bool
)

func init() {
	watchProfile = watchCmd.Flags().String("profile", watcher.ProfileEverything,
		"The watch profile to run ('everything' or 'assignments').")
	watchFast = watchCmd.Flags().Bool("fast", false,
		"Only check the high-churn sections of the profile.")
	watchDryRun = watchCmd.Flags().Bool("dry-run", false,
		"Scrape and diff but send no notifications and commit no baseline.")
	rootCmd.AddCommand(watchCmd)
}

// portalScraper adapts the arbor client to the watcher core.
type portalScraper struct {
	client *arbor.Client
}

func (s portalScraper) Scrape(ctx context.Context, cfg watcher.SectionConfig) (watcher.RawSnapshot, error) {
	snap, err := s.client.ScrapeSection(ctx, cfg.Key, cfg.Limit)
	if err != nil {
		return watcher.RawSnapshot{}, err
	}
	records := make([]watcher.RawRecord, 0, len(snap.Rows))
	for _, row := range snap.Rows {
		records = append(records, watcher.RawRecord(row))
	}
	return watcher.RawSnapshot{
		Section:   snap.Section,
		Records:   records,
		ScrapedAt: snap.ScrapedAt,
		Complete:  snap.Complete,
	}, nil
}

func loginClient(ctx context.Context, config Config) *arbor.Client {
	client, err := arbor.NewClient(ctx, arbor.ClientOptions{
		BaseUrl: config.BaseUrl,
		Contact: config.Contact,
	})
	if err != nil {
		serviceutil.Fatal("failed to initialize portal client", err)
	}
	err = client.LoginGuardian(ctx, arbor.Credentials{
		Email:    config.Email,
		Password: config.Password,
		ChildDOB: config.ChildDob,
	})
	if errors.Is(err, arbor.ErrMaintenance) {
		// not a fault: the next scheduled run will pick the baseline
		// back up once the portal returns
		slog.Warn("portal is in maintenance mode, skipping this run")
		os.Exit(0)
	}
	if err != nil {
		serviceutil.Fatal("failed to login to the guardian portal", err)
	}
	return client
}

var watchCmd = &cobra.Command{
	Use:   "watch [--profile <name>] [--fast] [--dry-run]",
	Short: "Runs one watch cycle: scrape, diff against the baseline, notify, commit.",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()

		config, err := readConfig()
		if err != nil {
			serviceutil.Fatal("failed to read config", err)
		}
		sections, err := watcher.Profile(*watchProfile, *watchFast)
		if err != nil {
			serviceutil.Fatal("unknown watch profile", err)
		}
		for _, s := range sections {
			if !arbor.KnownSection(s.Key) {
				slog.Warn("section has no scraper route", "section", s.Key)
			}
		}

		database, err := openDatabase(config)
		if err != nil {
			serviceutil.Fatal("failed to open db", err)
		}
		defer database.Close()

		client := loginClient(ctx, config)

		runner := watcher.Runner{
			Store:        watcher.NewStore(database),
			Scraper:      portalScraper{client: client},
			Profile:      *watchProfile,
			Sections:     sections,
			DigestBudget: config.DigestBudget,
			Cooldown:     time.Duration(config.CooldownMinutes) * time.Minute,
			DryRun:       *watchDryRun,
		}
		if channels := buildNotifier(config); len(channels) > 0 && !*watchDryRun {
			runner.Notifier = channels
		}

		t1 := time.Now()
		report, err := runner.Run(ctx)
		if err != nil {
			serviceutil.Fatal("watch run failed", err)
		}

		for _, result := range report.Results {
			if result.Unavailable {
				slog.Warn("section unavailable", "section", result.Section, "err", result.Err)
				continue
			}
			delta := result.Delta
			slog.Info("section checked",
				"section", result.Section,
				"bootstrap", delta.Bootstrap,
				"added", len(delta.Added),
				"changed", len(delta.Changed),
				"removed", len(delta.Removed),
			)
		}
		for _, err := range report.CommitErrs {
			slog.Error("baseline commit failed", "err", err)
		}

		if report.Digest.Empty {
			slog.Info("no changes detected")
		} else if *watchDryRun {
			cmd.Println(report.Digest.Text)
		} else {
			slog.Info("digest built",
				"subject", report.Subject,
				"notified", report.Notified,
				"suppressed", report.Suppressed,
				"truncated", report.Digest.Truncated,
			)
		}
		slog.Info("watch time", "seconds", time.Since(t1).Seconds())
	},
}
