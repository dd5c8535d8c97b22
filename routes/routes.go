package routes

import (
	"net/http"
	"time"

	"rivelya/handlers"
	"rivelya/middleware"
	"rivelya/utils"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// RegisterAvailabilityRoutes registers the expert calendar endpoints.
func RegisterAvailabilityRoutes(api *gin.RouterGroup, hb *handlers.HandlerBundle) {
	experts := api.Group("/experts")
	{
		experts.GET("/:expertId", hb.Expert.GetProfileHandler)
		experts.GET("/:expertId/availability", hb.Availability.MonthHandler)
		experts.GET("/:expertId/availability/check", hb.Availability.CheckHandler)
		experts.POST("/:expertId/alerts", hb.Notification.SubscribeAlertHandler)

		me := experts.Group("/me", middleware.RequireExpert())
		me.PUT("/profile", hb.Expert.UpsertProfileHandler)
		me.PUT("/working-hours", hb.Availability.SaveWorkingHoursHandler)
		me.PUT("/blocks", hb.Availability.SaveBlocksHandler)
		me.GET("/earnings", hb.Session.EarningsHandler)
	}
}

// RegisterBookingRoutes sets up the endpoints for the booking lifecycle.
func RegisterBookingRoutes(api *gin.RouterGroup, hb *handlers.HandlerBundle) {
	bookings := api.Group("/bookings")
	{
		bookings.POST("", hb.Booking.CreateHandler)
		bookings.GET("", hb.Booking.ListHandler)
		bookings.GET("/:id", hb.Booking.GetHandler)
		bookings.POST("/:id/decision", hb.Booking.DecisionHandler)
		bookings.POST("/:id/reschedule", hb.Booking.RescheduleHandler)
		bookings.POST("/:id/reschedule/respond", hb.Booking.RespondRescheduleHandler)
		bookings.POST("/:id/start-now", hb.Booking.StartNowHandler)
		bookings.POST("/:id/start-now/respond", hb.Booking.RespondStartNowHandler)
		bookings.POST("/:id/start", hb.Booking.StartHandler)
		bookings.POST("/:id/cancel", hb.Booking.CancelHandler)
	}
}

// RegisterSessionRoutes registers live session, chat and call endpoints.
func RegisterSessionRoutes(api *gin.RouterGroup, hb *handlers.HandlerBundle) {
	sessions := api.Group("/sessions")
	{
		sessions.POST("", hb.Session.CreateInstantHandler)
		sessions.GET("/:id", hb.Session.GetHandler)
		sessions.POST("/:id/start", hb.Session.StartHandler)
		sessions.POST("/:id/end", hb.Session.EndHandler)
	}

	threads := api.Group("/threads")
	{
		threads.GET("/:id", hb.Chat.GetThreadHandler)
		threads.GET("/:id/messages", hb.Chat.ListMessagesHandler)
		threads.POST("/:id/messages", hb.Chat.PostMessageHandler)
		threads.POST("/:id/calls", hb.Chat.InitiateCallHandler)
	}

	calls := api.Group("/calls")
	{
		calls.GET("/:id", hb.Chat.GetCallHandler)
		calls.POST("/:id/accept", hb.Chat.AcceptCallHandler)
		calls.POST("/:id/reject", hb.Chat.RejectCallHandler)
		calls.POST("/:id/end", hb.Chat.EndCallHandler)
		calls.POST("/:id/signal", hb.Chat.SignalHandler)
	}
}

// RegisterNotificationRoutes registers device, inbox and live event endpoints.
func RegisterNotificationRoutes(api *gin.RouterGroup, hb *handlers.HandlerBundle) {
	api.PUT("/devices/token", hb.Notification.RegisterDeviceHandler)
	api.GET("/notifications", hb.Notification.InboxHandler)
	api.GET("/events", hb.Notification.EventsHandler)
}

// RegisterAdminRoutes sets up endpoints for admin operations.
func RegisterAdminRoutes(api *gin.RouterGroup, hb *handlers.HandlerBundle) {
	admin := api.Group("/admin", middleware.RequireRole("admin"))
	{
		admin.POST("/reconcile", hb.Admin.ReconcileHandler)
	}
}

// RegisterHealthRoute registers a health-check endpoint.
func RegisterHealthRoute(r *gin.Engine) {
	r.GET("/health", func(c *gin.Context) {
		status := utils.GetHealthStatus()
		code := http.StatusOK
		if !status.Healthy() {
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, gin.H{"status": http.StatusText(code), "dependencies": status})
	})
}

// RegisterRoutes centralizes registration of all endpoints and middleware.
func RegisterRoutes(r *gin.Engine, hb *handlers.HandlerBundle, requestsPerMin int) {
	r.Use(utils.ErrorHandler())
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Authorization", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	RegisterHealthRoute(r)

	api := r.Group("/api", middleware.RateLimitMiddleware(requestsPerMin), middleware.JWTAuthMiddleware())
	RegisterAvailabilityRoutes(api, hb)
	RegisterBookingRoutes(api, hb)
	RegisterSessionRoutes(api, hb)
	RegisterNotificationRoutes(api, hb)
	RegisterAdminRoutes(api, hb)
}
