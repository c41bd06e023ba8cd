// Package gateway holds a simulated payment gateway for demos and local runs.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Zhima-Mochi/library-circulation/internal/domain/money"
	dompay "github.com/Zhima-Mochi/library-circulation/internal/domain/payment"
	"github.com/Zhima-Mochi/library-circulation/internal/observability"
)

const defaultSuccessRate = 1.0

var (
	ErrPatronRequired      = errors.New("gateway: patron id is required")
	ErrInvalidAmount       = errors.New("gateway: amount must be greater than zero")
	ErrInvalidTransaction  = errors.New("gateway: invalid transaction id")
	ErrUnknownTransaction  = errors.New("gateway: unknown transaction")
	ErrRefundExceedsCharge = errors.New("gateway: refund exceeds charged amount")
)

// Simulated approves charges with a fixed probability and remembers what it charged so
// refunds can be checked against it.
type Simulated struct {
	mu          sync.Mutex
	random      *rand.Rand
	successRate float64
	latency     time.Duration
	charged     map[string]money.Amount
	log         observability.Logger
}

type Option func(*Simulated)

// WithSuccessRate sets the approval probability, clamped to [0, 1].
func WithSuccessRate(rate float64) Option {
	return func(s *Simulated) {
		switch {
		case rate < 0:
			s.successRate = 0
		case rate > 1:
			s.successRate = 1
		default:
			s.successRate = rate
		}
	}
}

// WithLatency delays every call, honouring ctx.
func WithLatency(d time.Duration) Option {
	return func(s *Simulated) { s.latency = d }
}

// WithSeed makes approvals reproducible.
func WithSeed(seed int64) Option {
	return func(s *Simulated) { s.random = rand.New(rand.NewSource(seed)) }
}

func NewSimulated(logger observability.Logger, opts ...Option) *Simulated {
	if logger == nil {
		logger = observability.NopLogger()
	}
	s := &Simulated{
		random:      rand.New(rand.NewSource(time.Now().UnixNano())),
		successRate: defaultSuccessRate,
		charged:     make(map[string]money.Amount),
		log:         logger.With(observability.F("component", "simulated_gateway")),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ dompay.Gateway = (*Simulated)(nil)

func (s *Simulated) SuccessRate() float64 { return s.successRate }

func (s *Simulated) wait(ctx context.Context) error {
	if s.latency <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(s.latency)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (s *Simulated) approve() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.random.Float64() < s.successRate
}

func (s *Simulated) ProcessPayment(ctx context.Context, patronID string, amount money.Amount, description string) (dompay.Charge, error) {
	if patronID == "" {
		return dompay.Charge{}, ErrPatronRequired
	}
	if amount <= 0 {
		return dompay.Charge{}, ErrInvalidAmount
	}
	if err := s.wait(ctx); err != nil {
		return dompay.Charge{}, err
	}

	if !s.approve() {
		s.log.Info("gateway_charge",
			observability.F("status", string(dompay.StatusDeclined)),
			observability.F("amount_cents", int64(amount)),
		)
		return dompay.Charge{Message: "Card declined"}, nil
	}

	txn := dompay.TransactionPrefix + uuid.NewString()
	s.mu.Lock()
	s.charged[txn] = amount
	s.mu.Unlock()

	s.log.Info("gateway_charge",
		observability.F("status", string(dompay.StatusApproved)),
		observability.F("amount_cents", int64(amount)),
		observability.F("transaction_id", txn),
		observability.F("description", description),
	)
	return dompay.Charge{
		Approved:      true,
		TransactionID: txn,
		Message:       fmt.Sprintf("Payment of %s processed", amount),
	}, nil
}

// RefundPayment returns money from an earlier charge. Several partial refunds may follow one
// charge until its amount is used up.
func (s *Simulated) RefundPayment(ctx context.Context, transactionID string, amount money.Amount) (dompay.Refund, error) {
	if !dompay.ValidTransactionID(transactionID) {
		return dompay.Refund{}, ErrInvalidTransaction
	}
	if amount <= 0 {
		return dompay.Refund{}, ErrInvalidAmount
	}
	if err := s.wait(ctx); err != nil {
		return dompay.Refund{}, err
	}

	s.mu.Lock()
	remaining, ok := s.charged[transactionID]
	switch {
	case !ok:
		s.mu.Unlock()
		return dompay.Refund{Message: ErrUnknownTransaction.Error()}, nil
	case amount > remaining:
		s.mu.Unlock()
		return dompay.Refund{Message: ErrRefundExceedsCharge.Error()}, nil
	}
	s.charged[transactionID] = remaining - amount
	s.mu.Unlock()

	s.log.Info("gateway_refund",
		observability.F("status", string(dompay.StatusApproved)),
		observability.F("amount_cents", int64(amount)),
		observability.F("transaction_id", transactionID),
	)
	return dompay.Refund{
		Approved: true,
		Message:  fmt.Sprintf("Refund of %s processed successfully", amount),
	}, nil
}
