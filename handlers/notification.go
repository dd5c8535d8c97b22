package handlers

import (
	"context"
	"io"
	"net/http"
	"time"

	notificationRepo "rivelya/database/repository/notification"
	"rivelya/models"
	"rivelya/services/notification"
	"rivelya/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// EventSubscriber streams the realtime envelopes of one user.
type EventSubscriber interface {
	Subscribe(ctx context.Context, userID string) (<-chan notification.Envelope, error)
}

type NotificationHandler struct {
	Alerts  *notification.AlertService
	Inbox   notificationRepo.InboxRepository
	Devices notificationRepo.DeviceRepository
	Events  EventSubscriber
}

type deviceInput struct {
	FCMToken string `json:"fcmToken" binding:"required"`
	Platform string `json:"platform"`
}

// RegisterDeviceHandler stores the push token of the caller's device.
func (h *NotificationHandler) RegisterDeviceHandler(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var in deviceInput
	if !bindJSON(c, &in) {
		return
	}
	d := &models.Device{UserID: userID, FCMToken: in.FCMToken, Platform: in.Platform, UpdatedAt: time.Now().UTC()}
	if err := h.Devices.Upsert(c.Request.Context(), d); err != nil {
		utils.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

func (h *NotificationHandler) InboxHandler(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	limit := queryLimit(c)
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	items, err := h.Inbox.ListForUser(c.Request.Context(), userID, limit)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"notifications": items})
}

// SubscribeAlertHandler registers a one-shot "expert available again" alert.
func (h *NotificationHandler) SubscribeAlertHandler(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	alert, err := h.Alerts.Subscribe(c.Request.Context(), c.Param("expertId"), userID)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, alert)
}

// EventsHandler streams the caller's realtime events as server-sent events until the
// client disconnects.
func (h *NotificationHandler) EventsHandler(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	if h.Events == nil {
		utils.RespondError(c, utils.Unavailable("realtime_unavailable", "live events are not enabled", nil))
		return
	}
	ctx := c.Request.Context()
	events, err := h.Events.Subscribe(ctx, userID)
	if err != nil {
		utils.RespondError(c, utils.Unavailable("realtime_unavailable", "could not open the event stream", err))
		return
	}
	getLogger(c).Debug("event stream opened", zap.String("userID", userID))

	keepAlive := time.NewTicker(25 * time.Second)
	defer keepAlive.Stop()
	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case env, ok := <-events:
			if !ok {
				return false
			}
			c.SSEvent(env.Event, env)
			return true
		case <-keepAlive.C:
			c.SSEvent("ping", gin.H{"at": time.Now().UTC()})
			return true
		}
	})
}
