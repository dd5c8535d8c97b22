package routes

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"rivelya/database/repository/memory"
	"rivelya/handlers"
	"rivelya/services/availability"
	"rivelya/services/booking"
	"rivelya/services/chat"
	"rivelya/services/notification"
	"rivelya/services/reconcile"
	"rivelya/services/session"
	"rivelya/utils"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type api struct {
	t      *testing.T
	router *gin.Engine
}

func newAPI(t *testing.T, requestsPerMin int) *api {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := zap.NewNop()
	store := memory.NewStore()
	hub := notification.NewLocalHub()
	dispatcher := &notification.Dispatcher{Inbox: store.Inbox, Realtime: hub, Logger: logger}

	availabilitySvc := &availability.Service{Repo: store.Availability, Bookings: store.Bookings, Logger: logger}
	alerts := &notification.AlertService{Repo: store.Alerts, Notifier: dispatcher, Logger: logger}
	bookings := &booking.Service{
		Bookings:        store.Bookings,
		Sessions:        store.Sessions,
		Threads:         store.Threads,
		Experts:         store.Experts,
		Availability:    availabilitySvc,
		Payments:        booking.NewSimulatedGateway(logger),
		Notifier:        dispatcher,
		Alerts:          alerts,
		Logger:          logger,
		UpcomingLead:    10 * time.Minute,
		DefaultCurrency: "eur",
	}
	sessions := &session.Service{
		Sessions: store.Sessions, Earnings: store.Earnings, Experts: store.Experts,
		Bookings: bookings, Notifier: dispatcher, Logger: logger, CommissionPercent: 20,
	}
	chats := &chat.Service{
		Threads: store.Threads, Messages: store.Messages, Calls: store.Calls,
		Bookings: bookings, Notifier: dispatcher, Logger: logger,
	}
	loop := &reconcile.Loop{
		Bookings: store.Bookings, Sessions: store.Sessions, Threads: store.Threads, Calls: store.Calls,
		BookingSvc: bookings, SessionSvc: sessions, ChatSvc: chats, Logger: logger,
	}

	r := gin.New()
	RegisterRoutes(r, handlers.NewHandlerBundle(handlers.Services{
		Availability:    availabilitySvc,
		Experts:         store.Experts,
		Bookings:        bookings,
		Sessions:        sessions,
		Chat:            chats,
		Alerts:          alerts,
		Inbox:           store.Inbox,
		Devices:         store.Devices,
		Events:          hub,
		Loop:            loop,
		DefaultCurrency: "eur",
	}), requestsPerMin)
	return &api{t: t, router: r}
}

func token(t *testing.T, userID, role, expertID string) string {
	t.Helper()
	tok, err := utils.GenerateToken(userID, role, expertID, time.Hour)
	require.NoError(t, err)
	return tok
}

func (a *api) do(method, path, tok string, body any) (*httptest.ResponseRecorder, map[string]any) {
	a.t.Helper()
	var reader *bytes.Reader
	switch v := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(v))
	default:
		raw, err := json.Marshal(v)
		require.NoError(a.t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)

	out := map[string]any{}
	if w.Body.Len() > 0 {
		_ = json.Unmarshal(w.Body.Bytes(), &out)
	}
	return w, out
}

func (a *api) createExpert(expertTok string) {
	a.t.Helper()
	w, _ := a.do(http.MethodPut, "/api/experts/me/profile", expertTok, map[string]any{
		"displayName": "Dr. Vale", "pricePerMinuteCents": 100, "timezone": "UTC",
	})
	require.Equal(a.t, http.StatusOK, w.Code, w.Body.String())
}

func TestRequestsWithoutTokenAreRejected(t *testing.T) {
	a := newAPI(t, 0)

	w, body := a.do(http.MethodGet, "/api/bookings", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "unauthenticated", body["code"])

	w, body = a.do(http.MethodGet, "/api/bookings", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "unauthenticated", body["code"])
}

func TestTokenInQueryIsAccepted(t *testing.T) {
	a := newAPI(t, 0)
	w, _ := a.do(http.MethodGet, "/api/notifications?access_token="+token(t, "u-client", "", ""), "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestExpertOnlyRoutes(t *testing.T) {
	a := newAPI(t, 0)

	w, body := a.do(http.MethodPut, "/api/experts/me/profile", token(t, "u-client", "", ""), map[string]any{
		"displayName": "Nobody",
	})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "not_an_expert", body["code"])

	expertTok := token(t, "u-expert", "", "e1")
	a.createExpert(expertTok)

	w, body = a.do(http.MethodGet, "/api/experts/e1", expertTok, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Dr. Vale", body["displayName"])
	assert.Equal(t, "eur", body["currency"])

	w, body = a.do(http.MethodPut, "/api/experts/me/profile", token(t, "u-intruder", "", "e1"), map[string]any{
		"displayName": "Impostor",
	})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "not_owner", body["code"])
}

func TestBookingFlowOverHTTP(t *testing.T) {
	a := newAPI(t, 0)
	expertTok := token(t, "u-expert", "", "e1")
	clientTok := token(t, "u-client", "", "")
	a.createExpert(expertTok)

	date := time.Now().UTC().AddDate(0, 0, 7).Format("2006-01-02")
	w, created := a.do(http.MethodPost, "/api/bookings", clientTok, map[string]any{
		"expertId": "e1", "channel": "voice", "date": date, "startTime": "10:00", "endTime": "10:30",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "awaiting_master", created["status"])
	assert.Equal(t, float64(3000), created["amountCents"])
	id := created["id"].(string)

	w, body := a.do(http.MethodGet, "/api/experts/e1/availability/check?date="+date+"&start=10:15&end=10:45", clientTok, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, body["available"])
	assert.Equal(t, availability.CodeSlotTaken, body["code"])

	w, body = a.do(http.MethodGet, "/api/experts/e1/availability/check?date="+date+"&start=11:00&end=11:30", clientTok, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, body["available"])

	w, body = a.do(http.MethodPost, "/api/bookings", token(t, "u-other", "", ""), map[string]any{
		"expertId": "e1", "channel": "chat", "date": date, "startTime": "10:15", "endTime": "10:45",
	})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, availability.CodeSlotTaken, body["code"])

	w, body = a.do(http.MethodGet, "/api/bookings/"+id, token(t, "u-other", "", ""), nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, booking.CodeNotParticipant, body["code"])

	w, body = a.do(http.MethodPost, "/api/bookings/"+id+"/decision", expertTok, map[string]any{"accept": true})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "confirmed", body["status"])

	w, body = a.do(http.MethodPost, "/api/bookings/"+id+"/decision", expertTok, map[string]any{"accept": true})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.NotEmpty(t, body["code"])

	w, body = a.do(http.MethodGet, "/api/notifications", clientTok, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, body["notifications"])
}

func TestMalformedBodiesAreRejected(t *testing.T) {
	a := newAPI(t, 0)
	tok := token(t, "u-client", "", "")

	w, body := a.do(http.MethodPost, "/api/bookings", tok, "{not json")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid_input", body["code"])

	w, body = a.do(http.MethodPost, "/api/bookings", tok, map[string]any{"expertId": "e1"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid_input", body["code"])

	w, body = a.do(http.MethodPost, "/api/bookings", tok, map[string]any{
		"expertId": "missing", "channel": "voice", "date": "2099-01-01", "startTime": "10:00", "endTime": "10:30",
	})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, booking.CodeExpertNotFound, body["code"])
}

func TestAdminReconcileRequiresAdminRole(t *testing.T) {
	a := newAPI(t, 0)

	w, body := a.do(http.MethodPost, "/api/admin/reconcile", token(t, "u-client", "", ""), nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "forbidden", body["code"])

	w, body = a.do(http.MethodPost, "/api/admin/reconcile", token(t, "u-admin", "admin", ""), nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, body["scans"])
}

func TestRateLimitApplies(t *testing.T) {
	a := newAPI(t, 2)
	tok := token(t, "u-client", "", "")

	for i := 0; i < 2; i++ {
		w, _ := a.do(http.MethodGet, "/api/notifications", tok, nil)
		require.Equal(t, http.StatusOK, w.Code)
	}
	w, body := a.do(http.MethodGet, "/api/notifications", tok, nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "rate_limited", body["code"])
}

func TestHealthRoute(t *testing.T) {
	a := newAPI(t, 0)
	w, body := a.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "OK", body["status"])
}
