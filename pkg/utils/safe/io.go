package safe

import (
	"context"
	"io"

	"github.com/secmon-lab/ragguard/pkg/utils/logging"
)

// Close closes closer and logs a failure instead of returning it. A nil
// closer is ignored.
func Close(ctx context.Context, closer io.Closer) {
	if closer == nil {
		return
	}
	if err := closer.Close(); err != nil {
		logging.From(ctx).Warn("failed to close resource", "error", err)
	}
}

// Closer returns a func that closes closer like Close, labelling the log
// entry with name. It suits deferred cleanup lists.
func Closer(ctx context.Context, name string, closer io.Closer) func() {
	return func() {
		if closer == nil {
			return
		}
		if err := closer.Close(); err != nil {
			logging.From(ctx).Warn("failed to close resource", "resource", name, "error", err)
		}
	}
}
