// Package notify delivers digests to the configured channels. Each
// channel failure is independent: a Multi notifier attempts every
// channel and joins the errors.
package notify

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("services/notify")

// Notifier is one delivery channel.
type Notifier interface {
	Send(ctx context.Context, subject, text string) error
}

// Multi fans a digest out to every configured channel. It always
// attempts all of them; the returned error joins the failures.
type Multi []Notifier

func (m Multi) Send(ctx context.Context, subject, text string) error {
	var errs []error
	for _, n := range m {
		if err := n.Send(ctx, subject, text); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// splitMessage cuts text into chunks of at most limit bytes,
// preferring newline boundaries so records are not cut mid-line.
func splitMessage(text string, limit int) []string {
	if len(text) <= limit {
		return []string{text}
	}

	var chunks []string
	for len(text) > limit {
		cut := strings.LastIndexByte(text[:limit], '\n')
		if cut <= 0 {
			// one line longer than the limit: cut it, but back off to a
			// rune boundary so no chunk carries a split rune
			cut = limit
			for cut > 0 && !utf8.RuneStart(text[cut]) {
				cut--
			}
			if cut == 0 {
				cut = limit
			}
		}
		chunks = append(chunks, strings.TrimRight(text[:cut], "\n"))
		text = strings.TrimLeft(text[cut:], "\n")
	}
	if text != "" {
		chunks = append(chunks, text)
	}
	return chunks
}
