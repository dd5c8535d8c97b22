package booking

import (
	"context"
	"errors"
	"fmt"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/paymentintent"
	"github.com/stripe/stripe-go/v76/refund"
	"go.uber.org/zap"
)

// StripeGateway charges through confirmed PaymentIntents. stripe.Key must be set.
type StripeGateway struct {
	Logger *zap.Logger
}

func (g *StripeGateway) Charge(ctx context.Context, req ChargeRequest) (string, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(req.AmountCents),
		Currency: stripe.String(req.Currency),
		Confirm:  stripe.Bool(true),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled:        stripe.Bool(true),
			AllowRedirects: stripe.String("never"),
		},
	}
	if req.PaymentMethod != "" {
		params.PaymentMethod = stripe.String(req.PaymentMethod)
	}
	params.Context = ctx
	params.SetIdempotencyKey(req.IdempotencyKey)
	params.AddMetadata("bookingId", req.BookingID)
	params.AddMetadata("customerId", req.CustomerID)

	pi, err := paymentintent.New(params)
	if err != nil {
		return "", fmt.Errorf("stripe charge for booking %s: %w", req.BookingID, err)
	}
	switch pi.Status {
	case stripe.PaymentIntentStatusSucceeded, stripe.PaymentIntentStatusRequiresCapture, stripe.PaymentIntentStatusProcessing:
	default:
		return "", fmt.Errorf("stripe charge for booking %s ended in status %s", req.BookingID, pi.Status)
	}

	g.Logger.Info("payment captured", zap.String("bookingID", req.BookingID), zap.String("paymentIntent", pi.ID))
	return pi.ID, nil
}

func (g *StripeGateway) Refund(ctx context.Context, paymentRef string, amountCents int64, idempotencyKey string) (string, error) {
	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(paymentRef),
		Amount:        stripe.Int64(amountCents),
	}
	params.Context = ctx
	params.SetIdempotencyKey(idempotencyKey)

	r, err := refund.New(params)
	if err == nil {
		return r.ID, nil
	}

	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		switch {
		case stripeErr.Code == stripe.ErrorCodeChargeAlreadyRefunded:
			g.Logger.Info("payment already refunded", zap.String("paymentIntent", paymentRef))
			return "", nil
		case stripeErr.Type == stripe.ErrorTypeInvalidRequest:
			return "", fmt.Errorf("stripe refund of %s: %v: %w", paymentRef, err, ErrRefundRejected)
		}
	}
	return "", fmt.Errorf("stripe refund of %s: %w", paymentRef, err)
}
