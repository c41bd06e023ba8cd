// Package payment describes the external payment gateway the library charges late fees through.
package payment

import (
	"context"
	"strings"

	"github.com/Zhima-Mochi/library-circulation/internal/domain/money"
)

// TransactionPrefix starts every transaction id the gateway issues.
const TransactionPrefix = "txn_"

type Status string

const (
	StatusApproved Status = "approved"
	StatusDeclined Status = "declined"
)

// Charge is the gateway's answer to a payment request.
type Charge struct {
	Approved      bool
	TransactionID string
	Message       string
}

// Refund is the gateway's answer to a refund request.
type Refund struct {
	Approved bool
	Message  string
}

// Gateway moves money. A returned error is a transport fault, distinct from a decline.
type Gateway interface {
	ProcessPayment(ctx context.Context, patronID string, amount money.Amount, description string) (Charge, error)
	RefundPayment(ctx context.Context, transactionID string, amount money.Amount) (Refund, error)
}

// ValidTransactionID reports whether id has the gateway's identifier shape.
func ValidTransactionID(id string) bool {
	return strings.HasPrefix(id, TransactionPrefix) && len(id) > len(TransactionPrefix)
}
