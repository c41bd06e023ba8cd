package application

import (
	"context"
	"time"

	domoutbox "github.com/Zhima-Mochi/library-circulation/internal/domain/outbox"
	"github.com/Zhima-Mochi/library-circulation/internal/observability"
)

const (
	publishPeer    = "outbox"
	publishTimeout = 300 * time.Millisecond
)

// Publish hands e to pub after a transition committed. Failures are logged and counted but
// never undo the transition. A nil publisher is a no-op.
func (in Instruments) Publish(ctx context.Context, pub domoutbox.Publisher, e domoutbox.Event, logger observability.Logger) {
	if pub == nil || e == nil {
		return
	}
	if logger == nil {
		logger = in.log
	}

	pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	start := time.Now()
	outcome := OutcomeSuccess
	err := pub.Publish(pubCtx, e)
	if err == nil && pubCtx.Err() != nil {
		err = pubCtx.Err()
	}
	if err != nil {
		outcome = OutcomeError
		logger.Warn("event_publish_failed",
			observability.F("event", e.EventName()),
			observability.F("error", err.Error()),
		)
	}
	in.External(publishPeer, e.EventName(), outcome, start)
}
