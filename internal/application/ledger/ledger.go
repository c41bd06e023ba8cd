// Package ledger keeps running totals of late-fee money assessed, paid and refunded.
package ledger

import (
	"context"
	"errors"
	"sync"

	"go.opentelemetry.io/otel/attribute"

	"github.com/Zhima-Mochi/library-circulation/internal/application"
	"github.com/Zhima-Mochi/library-circulation/internal/domain/library"
	"github.com/Zhima-Mochi/library-circulation/internal/domain/money"
	domoutbox "github.com/Zhima-Mochi/library-circulation/internal/domain/outbox"
	"github.com/Zhima-Mochi/library-circulation/internal/observability"
)

const (
	ledgerService = "ledger"
	useCaseRecord = "ledger.record"
)

type Kind string

const (
	KindAssessed Kind = "assessed"
	KindPaid     Kind = "paid"
	KindRefunded Kind = "refunded"
)

var ErrNegativeAmount = errors.New("ledger: amount must not be negative")

// Entry is one movement of late-fee money.
type Entry struct {
	Kind          Kind
	Amount        money.Amount
	PatronID      string
	BookID        int64
	TransactionID string
}

// EntryFromEvent maps the events the ledger cares about; ok is false for any other event.
func EntryFromEvent(e domoutbox.Event) (entry Entry, ok bool) {
	switch evt := e.(type) {
	case library.BookReturnedEvent:
		return Entry{Kind: KindAssessed, Amount: evt.Fee, PatronID: evt.PatronID, BookID: evt.BookID}, true
	case library.LateFeePaidEvent:
		return Entry{Kind: KindPaid, Amount: evt.Amount, PatronID: evt.PatronID, BookID: evt.BookID, TransactionID: evt.TransactionID}, true
	case library.LateFeeRefundedEvent:
		return Entry{Kind: KindRefunded, Amount: evt.Amount, TransactionID: evt.TransactionID}, true
	default:
		return Entry{}, false
	}
}

// Events lists the event names that produce entries.
func Events() []string {
	return []string{
		library.BookReturnedEvent{}.EventName(),
		library.LateFeePaidEvent{}.EventName(),
		library.LateFeeRefundedEvent{}.EventName(),
	}
}

type Ledger struct {
	mu     sync.Mutex
	totals map[Kind]money.Amount

	inst   application.Instruments
	amount observability.Counter // ledger_amount_cents_total{kind}
}

func New(tel observability.Observability) *Ledger {
	inst := application.NewInstruments(tel, ledgerService)
	if tel == nil {
		tel = observability.Nop()
	}
	return &Ledger{
		totals: make(map[Kind]money.Amount),
		inst:   inst,
		amount: tel.Metrics().Counter(observability.MLedgerAmount),
	}
}

// Record adds the entry to the running totals. Zero-fee returns are counted as zero.
func (l *Ledger) Record(ctx context.Context, entry Entry) (err error) {
	_, run := l.inst.Begin(ctx, useCaseRecord, "RecordLedgerEntry",
		attribute.String("ledger.kind", string(entry.Kind)),
		attribute.Int64("ledger.amount_cents", int64(entry.Amount)),
	)
	defer run.End(l.inst)

	if entry.Amount < 0 {
		run.Reject("NEGATIVE_AMOUNT")
		return ErrNegativeAmount
	}

	l.mu.Lock()
	l.totals[entry.Kind] += entry.Amount
	l.mu.Unlock()

	l.amount.Add(float64(entry.Amount), observability.L("kind", string(entry.Kind)))
	run.Annotate(
		observability.F("kind", string(entry.Kind)),
		observability.F("amount_cents", int64(entry.Amount)),
		observability.F("patron_id", entry.PatronID),
		observability.F("transaction_id", entry.TransactionID),
	)
	return nil
}

// Totals is a snapshot of the running sums per kind.
func (l *Ledger) Totals() map[Kind]money.Amount {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make(map[Kind]money.Amount, len(l.totals))
	for k, v := range l.totals {
		out[k] = v
	}
	return out
}
