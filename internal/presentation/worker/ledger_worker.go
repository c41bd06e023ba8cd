package workerpresentation

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/Zhima-Mochi/library-circulation/internal/application/ledger"
	domoutbox "github.com/Zhima-Mochi/library-circulation/internal/domain/outbox"
	"github.com/Zhima-Mochi/library-circulation/internal/observability"
	"github.com/Zhima-Mochi/library-circulation/internal/observability/logctx"
)

const workerName = "ledger"

// Recorder is the ledger use case the worker drives.
type Recorder interface {
	Record(ctx context.Context, entry ledger.Entry) error
}

// LedgerWorker feeds fee-related events from the bus into the ledger.
type LedgerWorker struct {
	recorder Recorder
	tel      observability.Observability
}

func NewLedgerWorker(recorder Recorder, tel observability.Observability) *LedgerWorker {
	if tel == nil {
		tel = observability.Nop()
	}
	return &LedgerWorker{recorder: recorder, tel: tel}
}

// Register subscribes the worker to every event the ledger understands.
func (w *LedgerWorker) Register(sub domoutbox.Subscriber) {
	for _, name := range ledger.Events() {
		sub.Subscribe(name, w.Handle)
	}
}

// Handle records one event. Events the ledger does not map are ignored.
func (w *LedgerWorker) Handle(ctx context.Context, e domoutbox.Event) error {
	entry, ok := ledger.EntryFromEvent(e)
	if !ok {
		return nil
	}

	ctx, span := w.tel.Tracer().Start(ctx, "Worker."+e.EventName(),
		attribute.String("worker", workerName),
		attribute.String("event", e.EventName()),
	)
	defer span.End()

	ctx = WithEventContext(ctx, nil, w.tel, map[string]string{
		"worker": workerName,
		"event":  e.EventName(),
	})

	if err := w.recorder.Record(ctx, entry); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "record failed")
		logctx.FromOr(ctx, w.tel.Logger()).Warn("ledger_record_failed",
			observability.F("error", err.Error()),
		)
		return err
	}
	span.SetStatus(codes.Ok, "")
	return nil
}
