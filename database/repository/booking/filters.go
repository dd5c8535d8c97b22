package bookingRepo

import (
	"fmt"
	"time"

	"rivelya/models"

	"go.mongodb.org/mongo-driver/bson"
)

func blockingStatuses() bson.A {
	out := bson.A{}
	for _, s := range models.BlockingBookingStatuses {
		out = append(out, s)
	}
	return out
}

func swapFilter(id string, version int64, expected models.BookingStatus) bson.M {
	return bson.M{"id": id, "version": version, "status": expected}
}

func autoStartFilter(id string, version int64) bson.M {
	f := swapFilter(id, version, models.BookingReadyToStart)
	f["autoStarted"] = bson.M{"$ne": true}
	return f
}

func expertDateFilter(expertID, date string) bson.M {
	return bson.M{
		"expertId": expertID,
		"date":     date,
		"status":   bson.M{"$in": blockingStatuses()},
	}
}

// expertMonthFilter matches by "YYYY-MM-" prefix; dates are stored zero padded.
func expertMonthFilter(expertID string, year int, month time.Month) bson.M {
	return bson.M{
		"expertId": expertID,
		"date":     bson.M{"$regex": fmt.Sprintf("^%04d-%02d-", year, int(month))},
		"status":   bson.M{"$in": blockingStatuses()},
	}
}

func participantFilter(userID string) bson.M {
	return bson.M{"$or": bson.A{
		bson.M{"clientId": userID},
		bson.M{"expertUserId": userID},
	}}
}

func dueForPreparationFilter(horizon time.Time) bson.M {
	return bson.M{
		"status":           models.BookingConfirmed,
		"scheduledStartAt": bson.M{"$lte": horizon},
	}
}

func dueForStartFilter(now time.Time) bson.M {
	return bson.M{
		"status":           models.BookingReadyToStart,
		"autoStarted":      bson.M{"$ne": true},
		"scheduledStartAt": bson.M{"$lte": now},
	}
}

func unprovisionedFilter() bson.M {
	return bson.M{
		"status":      models.BookingActive,
		"provisioned": bson.M{"$ne": true},
	}
}

func staleRequestFilter(now time.Time) bson.M {
	return bson.M{
		"scheduledStartAt": bson.M{"$lte": now},
		"$or": bson.A{
			bson.M{"status": models.BookingAwaitingMaster},
			bson.M{
				"status": models.BookingRescheduleRequested,
				"$or": bson.A{
					bson.M{"rescheduleRequest": nil},
					bson.M{"rescheduleRequest.startAt": bson.M{"$lte": now}},
				},
			},
		},
	}
}

func pendingRefundFilter() bson.M {
	return bson.M{"refundStatus": models.RefundPending}
}
