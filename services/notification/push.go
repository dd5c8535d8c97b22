package notification

import (
	"context"
	"errors"
	"fmt"

	notificationRepo "rivelya/database/repository/notification"
	"rivelya/models"

	"firebase.google.com/go/v4/messaging"
	"go.uber.org/zap"
)

// MessageSender is satisfied by *messaging.Client.
type MessageSender interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
}

// FCMSender delivers push payloads to every registered device of a user.
type FCMSender struct {
	Client  MessageSender
	Devices notificationRepo.DeviceRepository
	Logger  *zap.Logger
}

func (s *FCMSender) Send(ctx context.Context, p models.PushPayload) error {
	tokens, err := s.Devices.TokensForUser(ctx, p.UserID)
	if err != nil {
		return fmt.Errorf("push %s: load tokens: %w", p.UserID, err)
	}
	if len(tokens) == 0 {
		return nil
	}

	var errs []error
	for _, token := range tokens {
		_, err := s.Client.Send(ctx, buildMessage(token, p))
		switch {
		case err == nil:
		case messaging.IsUnregistered(err):
			if rmErr := s.Devices.RemoveToken(ctx, token); rmErr != nil {
				errs = append(errs, rmErr)
			}
			s.Logger.Info("dropped unregistered device token", zap.String("userID", p.UserID))
		default:
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("push %s: %w", p.UserID, errors.Join(errs...))
	}
	return nil
}

func buildMessage(token string, p models.PushPayload) *messaging.Message {
	return &messaging.Message{
		Token: token,
		Notification: &messaging.Notification{
			Title: p.Title,
			Body:  p.Body,
		},
		Data: p.Data,
		Android: &messaging.AndroidConfig{
			Priority: "high",
			Notification: &messaging.AndroidNotification{
				ChannelID: "sessions",
				Sound:     "default",
			},
		},
		APNS: &messaging.APNSConfig{
			Headers: map[string]string{
				"apns-priority":  "10",
				"apns-push-type": "alert",
			},
			Payload: &messaging.APNSPayload{
				Aps: &messaging.Aps{
					Sound: "default",
				},
			},
		},
	}
}

// LogSender stands in for FCM when no credentials are configured.
type LogSender struct {
	Logger *zap.Logger
}

func (s LogSender) Send(_ context.Context, p models.PushPayload) error {
	s.Logger.Debug("push skipped, fcm not configured", zap.String("userID", p.UserID), zap.String("event", p.Event))
	return nil
}
