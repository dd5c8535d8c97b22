package availability

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"rivelya/database/repository/memory"
	"rivelya/models"
	"rivelya/utils"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) (*Service, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	return &Service{
		Repo:     store.Availability,
		Bookings: store.Bookings,
		Now:      func() time.Time { return time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC) },
	}, store
}

func TestServiceCheckUsesStoredTemplateAndBookings(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t)

	_, err := svc.SaveWorkingHours(ctx, "e1", "Europe/Berlin", mondayMorning().Intervals)
	require.NoError(t, err)
	require.NoError(t, store.Bookings.Create(ctx, &models.Booking{
		ID: "b1", ExpertID: "e1", Date: "2025-03-10", StartTime: "10:00", EndTime: "10:30",
		Status: models.BookingConfirmed,
	}))

	assert.NoError(t, svc.Check(ctx, "e1", "2025-03-10", "09:00", "10:00", ""))
	assert.True(t, utils.HasCode(svc.Check(ctx, "e1", "2025-03-10", "10:15", "10:45", ""), CodeSlotTaken))
	assert.NoError(t, svc.Check(ctx, "e1", "2025-03-10", "10:15", "10:45", "b1"), "a booking never conflicts with itself")
	assert.True(t, utils.HasCode(svc.Check(ctx, "e1", "2025-03-10", "13:00", "13:30", ""), CodeOutsideHours))
}

func TestServiceCheckRejectsMalformedInput(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	err := svc.Check(ctx, "e1", "10/03/2025", "09:00", "10:00", "")
	assert.True(t, utils.HasCode(err, "invalid_date"))

	err = svc.Check(ctx, "e1", "2025-03-10", "nine", "10:00", "")
	assert.True(t, utils.HasCode(err, CodeInvalidRange))
}

func TestSaveWorkingHoursValidates(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.SaveWorkingHours(ctx, "e1", "Mars/Olympus", nil)
	assert.True(t, utils.HasCode(err, "invalid_timezone"))

	_, err = svc.SaveWorkingHours(ctx, "e1", "UTC", []models.WorkingInterval{{Weekday: time.Monday, Start: "12:00", End: "09:00"}})
	assert.True(t, utils.HasCode(err, CodeInvalidRange))

	_, err = svc.SaveWorkingHours(ctx, "e1", "UTC", []models.WorkingInterval{{Weekday: 9, Start: "09:00", End: "10:00"}})
	assert.True(t, utils.HasCode(err, "invalid_weekday"))
}

func TestSaveBlocksRejectsForeignDates(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.SaveBlocks(context.Background(), "e1", 2025, time.March, []models.BlockEntry{{Date: "2025-04-01", FullDay: true}})
	assert.True(t, utils.HasCode(err, "invalid_date"))
}

func TestServiceMonthReflectsBlocks(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	_, err := svc.SaveBlocks(ctx, "e1", 2025, time.March, []models.BlockEntry{{Date: "2025-03-10", FullDay: true}})
	require.NoError(t, err)

	days, err := svc.Month(ctx, "e1", 2025, time.March)
	require.NoError(t, err)
	require.Len(t, days, 31)
	assert.True(t, days[9].FullDayBlocked)
	assert.Len(t, days[10].AvailableRanges, 1, "no template means the whole day is open")

	_, err = svc.Month(ctx, "e1", 2025, 13)
	assert.True(t, utils.HasCode(err, "invalid_month"))
}

func TestRedisMonthCacheHit(t *testing.T) {
	db, mock := redismock.NewClientMock()
	cache := &RedisMonthCache{Client: db, TTL: time.Minute}

	cached := []models.DayAvailability{{Date: "2025-03-01", Weekday: "Saturday"}}
	payload, err := json.Marshal(cached)
	require.NoError(t, err)
	mock.ExpectGet(MonthCacheKey("e1", 2025, time.March)).SetVal(string(payload))

	svc, _ := newTestService(t)
	svc.Cache = cache

	days, err := svc.Month(context.Background(), "e1", 2025, time.March)
	require.NoError(t, err)
	assert.Equal(t, cached, days)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisMonthCacheMissStoresComputedMonth(t *testing.T) {
	db, mock := redismock.NewClientMock()
	cache := &RedisMonthCache{Client: db, TTL: time.Minute}
	key := MonthCacheKey("e1", 2025, time.February)

	expected := ComputeMonthAvailability(2025, time.February, nil, nil, nil)
	payload, err := json.Marshal(expected)
	require.NoError(t, err)

	mock.ExpectGet(key).RedisNil()
	mock.ExpectSet(key, string(payload), time.Minute).SetVal("OK")

	svc, _ := newTestService(t)
	svc.Cache = cache

	days, err := svc.Month(context.Background(), "e1", 2025, time.February)
	require.NoError(t, err)
	assert.Len(t, days, 28)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveBlocksInvalidatesCachedMonth(t *testing.T) {
	db, mock := redismock.NewClientMock()
	svc, _ := newTestService(t)
	svc.Cache = &RedisMonthCache{Client: db, TTL: time.Minute}

	mock.ExpectDel(MonthCacheKey("e1", 2025, time.March)).SetVal(1)

	_, err := svc.SaveBlocks(context.Background(), "e1", 2025, time.March, nil)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLocationFallsBack(t *testing.T) {
	assert.Equal(t, time.UTC, Location(nil, nil))
	assert.Equal(t, "Europe/Rome", Location(nil, &models.Expert{Timezone: "Europe/Rome"}).String())
	assert.Equal(t, "Asia/Tokyo", Location(&models.WorkingHours{Timezone: "Asia/Tokyo"}, &models.Expert{Timezone: "Europe/Rome"}).String())
	assert.Equal(t, "Europe/Rome", Location(&models.WorkingHours{Timezone: "bogus"}, &models.Expert{Timezone: "Europe/Rome"}).String())
}
