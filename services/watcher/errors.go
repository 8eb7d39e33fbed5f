package watcher

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by Store.Load when a profile has no
// committed baseline at all. It is not a failure: it signals that
// every section bootstraps this run.
var ErrNotFound = errors.New("no baseline for profile")

// ScrapeError marks a transient per-section scrape failure. It never
// aborts the run and never touches the section's baseline.
type ScrapeError struct {
	Section string
	Err     error
}

func (e *ScrapeError) Error() string {
	return fmt.Sprintf("scrape %s: %s", e.Section, e.Err)
}

func (e *ScrapeError) Unwrap() error { return e.Err }

// NormalizationError marks a raw snapshot that cannot be trusted:
// failed or partial scrapes, or rows missing every identity field.
// Control-flow-wise it is treated like a ScrapeError.
type NormalizationError struct {
	Section string
	Reason  string
}

func (e *NormalizationError) Error() string {
	return fmt.Sprintf("normalize %s: %s", e.Section, e.Reason)
}

// PersistenceError marks a failed baseline commit for one section.
// The run continues; the section keeps its previous baseline and the
// same delta will surface again next run.
type PersistenceError struct {
	Section string
	Err     error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("commit %s: %s", e.Section, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// NotifyError marks a failed digest delivery. Logged only: baseline
// commit never depends on the notification channel being up.
type NotifyError struct {
	Err error
}

func (e *NotifyError) Error() string {
	return fmt.Sprintf("notify: %s", e.Err)
}

func (e *NotifyError) Unwrap() error { return e.Err }
