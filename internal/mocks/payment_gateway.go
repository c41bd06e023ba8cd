// Package mocks holds testify doubles for the service's outbound ports.
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/Zhima-Mochi/library-circulation/internal/domain/money"
	dompay "github.com/Zhima-Mochi/library-circulation/internal/domain/payment"
)

// PaymentGateway is a mock of payment.Gateway.
type PaymentGateway struct {
	mock.Mock
}

var _ dompay.Gateway = (*PaymentGateway)(nil)

// NewPaymentGateway registers AssertExpectations as test cleanup.
func NewPaymentGateway(t interface {
	mock.TestingT
	Cleanup(func())
}) *PaymentGateway {
	m := &PaymentGateway{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *PaymentGateway) ProcessPayment(ctx context.Context, patronID string, amount money.Amount, description string) (dompay.Charge, error) {
	ret := m.Called(ctx, patronID, amount, description)

	var charge dompay.Charge
	if fn, ok := ret.Get(0).(func(context.Context, string, money.Amount, string) dompay.Charge); ok {
		charge = fn(ctx, patronID, amount, description)
	} else {
		charge = ret.Get(0).(dompay.Charge)
	}
	return charge, ret.Error(1)
}

func (m *PaymentGateway) RefundPayment(ctx context.Context, transactionID string, amount money.Amount) (dompay.Refund, error) {
	ret := m.Called(ctx, transactionID, amount)

	var refund dompay.Refund
	if fn, ok := ret.Get(0).(func(context.Context, string, money.Amount) dompay.Refund); ok {
		refund = fn(ctx, transactionID, amount)
	} else {
		refund = ret.Get(0).(dompay.Refund)
	}
	return refund, ret.Error(1)
}
