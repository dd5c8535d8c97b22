package booking

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrRefundRejected means the gateway refused the refund for good; retrying will not help.
var ErrRefundRejected = errors.New("refund rejected by gateway")

// ChargeRequest is the payment taken when a booking is requested.
type ChargeRequest struct {
	BookingID      string
	CustomerID     string
	AmountCents    int64
	Currency       string
	PaymentMethod  string
	IdempotencyKey string
}

// PaymentGateway takes and returns money. Both calls must be safe to repeat with the
// same idempotency key.
type PaymentGateway interface {
	Charge(ctx context.Context, req ChargeRequest) (string, error)
	Refund(ctx context.Context, paymentRef string, amountCents int64, idempotencyKey string) (string, error)
}

func chargeKey(bookingID string) string { return "booking-charge-" + bookingID }
func refundKey(bookingID string) string { return "booking-refund-" + bookingID }

// SimulatedGateway records payments in memory. It backs local runs without a
// Stripe key and the tests.
type SimulatedGateway struct {
	Logger *zap.Logger

	mu      sync.Mutex
	charges map[string]string
	refunds map[string]string
}

func NewSimulatedGateway(logger *zap.Logger) *SimulatedGateway {
	return &SimulatedGateway{
		Logger:  logger,
		charges: make(map[string]string),
		refunds: make(map[string]string),
	}
}

func (g *SimulatedGateway) Charge(_ context.Context, req ChargeRequest) (string, error) {
	if req.AmountCents <= 0 {
		return "", fmt.Errorf("invalid payment amount %d", req.AmountCents)
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	if ref, ok := g.charges[req.IdempotencyKey]; ok {
		return ref, nil
	}
	ref := "pi_" + uuid.NewString()
	g.charges[req.IdempotencyKey] = ref
	g.Logger.Info("simulated charge", zap.String("bookingID", req.BookingID), zap.Int64("amount", req.AmountCents))
	return ref, nil
}

func (g *SimulatedGateway) Refund(_ context.Context, paymentRef string, amountCents int64, idempotencyKey string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if ref, ok := g.refunds[idempotencyKey]; ok {
		return ref, nil
	}
	ref := "re_" + uuid.NewString()
	g.refunds[idempotencyKey] = ref
	g.Logger.Info("simulated refund", zap.String("paymentRef", paymentRef), zap.Int64("amount", amountCents))
	return ref, nil
}

// RefundCount reports how many distinct refunds were issued.
func (g *SimulatedGateway) RefundCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.refunds)
}
