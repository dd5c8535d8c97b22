package bookingRepo

import (
	"regexp"
	"testing"
	"time"

	"rivelya/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

func TestAutoStartFilterGuardsStatusVersionAndFlag(t *testing.T) {
	f := autoStartFilter("b1", 7)

	assert.Equal(t, "b1", f["id"])
	assert.Equal(t, int64(7), f["version"])
	assert.Equal(t, models.BookingReadyToStart, f["status"])
	assert.Equal(t, bson.M{"$ne": true}, f["autoStarted"])
}

func TestExpertMonthFilterMatchesOnlyThatMonth(t *testing.T) {
	f := expertMonthFilter("e1", 2025, time.March)
	pattern := f["date"].(bson.M)["$regex"].(string)
	re := regexp.MustCompile(pattern)

	assert.True(t, re.MatchString("2025-03-10"))
	assert.False(t, re.MatchString("2025-13-10"))
	assert.False(t, re.MatchString("2024-03-10"))
}

func TestBlockingStatusesExcludeTerminalStates(t *testing.T) {
	statuses := blockingStatuses()
	require.Len(t, statuses, len(models.BlockingBookingStatuses))
	for _, s := range statuses {
		assert.False(t, s.(models.BookingStatus).Terminal())
	}
}

func TestDueForStartFilterSkipsAlreadyStarted(t *testing.T) {
	now := time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC)
	f := dueForStartFilter(now)

	assert.Equal(t, models.BookingReadyToStart, f["status"])
	assert.Equal(t, bson.M{"$ne": true}, f["autoStarted"])
	assert.Equal(t, bson.M{"$lte": now}, f["scheduledStartAt"])
}

func TestStaleRequestFilterCoversLapsedReschedules(t *testing.T) {
	now := time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC)
	f := staleRequestFilter(now)

	assert.Equal(t, bson.M{"$lte": now}, f["scheduledStartAt"])
	branches := f["$or"].(bson.A)
	require.Len(t, branches, 2)
	assert.Equal(t, bson.M{"status": models.BookingAwaitingMaster}, branches[0])

	reschedule := branches[1].(bson.M)
	assert.Equal(t, models.BookingRescheduleRequested, reschedule["status"])
	assert.Contains(t, reschedule["$or"], bson.M{"rescheduleRequest.startAt": bson.M{"$lte": now}})
}
