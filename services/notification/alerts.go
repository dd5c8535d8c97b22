package notification

import (
	"context"
	"fmt"
	"time"

	notificationRepo "rivelya/database/repository/notification"
	"rivelya/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AlertService manages one-shot "expert available again" subscriptions.
type AlertService struct {
	Repo     notificationRepo.AlertRepository
	Notifier Notifier
	Logger   *zap.Logger
}

func (s *AlertService) Subscribe(ctx context.Context, expertID, subscriberID string) (*models.AvailabilityAlert, error) {
	a := &models.AvailabilityAlert{
		ID:           uuid.NewString(),
		ExpertID:     expertID,
		SubscriberID: subscriberID,
		Active:       true,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.Repo.Subscribe(ctx, a); err != nil {
		return nil, fmt.Errorf("subscribe alert: %w", err)
	}
	return a, nil
}

// Fire notifies every active subscriber of expertID exactly once. A subscription is
// switched off before delivery, so concurrent callers never both deliver it.
func (s *AlertService) Fire(ctx context.Context, expertID string, now time.Time) (int, error) {
	alerts, err := s.Repo.ListActive(ctx, expertID)
	if err != nil {
		return 0, fmt.Errorf("list alerts for %s: %w", expertID, err)
	}

	fired := 0
	for _, a := range alerts {
		won, err := s.Repo.Deactivate(ctx, a.ID, now)
		if err != nil {
			s.Logger.Warn("deactivate alert failed", zap.String("alertID", a.ID), zap.Error(err))
			continue
		}
		if !won {
			continue
		}
		fired++
		if err := s.Notifier.Notify(ctx, a.SubscriberID, EventExpertAvailable, map[string]any{"expertId": expertID}); err != nil {
			s.Logger.Warn("expert available alert not delivered",
				zap.String("alertID", a.ID), zap.String("subscriberID", a.SubscriberID), zap.Error(err))
		}
	}
	return fired, nil
}
