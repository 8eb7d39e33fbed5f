package arbor

import (
	"context"
	"log/slog"
	"time"

	"github.com/mazen160/go-random"
)

// Inter-request delay bounds. Arbor is a small vendor; hammering the
// portal gets the school's tenant rate limited for everyone.
const (
	politeMinDelay = 1200 * time.Millisecond
	politeMaxDelay = 2600 * time.Millisecond
)

func politeSleep(ctx context.Context) {
	ms, err := random.IntRange(int(politeMinDelay.Milliseconds()), int(politeMaxDelay.Milliseconds()))
	if err != nil {
		ms = int(politeMinDelay.Milliseconds())
	}
	select {
	case <-time.After(time.Duration(ms) * time.Millisecond):
	case <-ctx.Done():
	}
}

// withBackoff runs fn with jittered exponential backoff. The final
// attempt's error is returned as-is.
func withBackoff(ctx context.Context, attempts int, fn func() error) error {
	baseDelay := 2 * time.Second
	maxDelay := 60 * time.Second

	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		err = fn()
		if err == nil {
			return nil
		}
		if err == ErrMaintenance || ctx.Err() != nil {
			return err
		}
		if attempt == attempts-1 {
			break
		}

		delay := baseDelay << attempt
		if delay > maxDelay {
			delay = maxDelay
		}
		jitter, randErr := random.IntRange(70, 130)
		if randErr != nil {
			jitter = 100
		}
		delay = delay * time.Duration(jitter) / 100

		slog.Warn("portal fetch failed, backing off",
			"attempt", attempt+1,
			"delay", delay,
			"err", err,
		)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}
