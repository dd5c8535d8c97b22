package session

import "time"

// Bill is the outcome of ending a session.
type Bill struct {
	DurationSeconds int64
	BilledMinutes   int64
	CostCents       int64
}

// ComputeBill charges every started minute between start and endedAt. A session ended
// by the loop after its deadline is billed up to the moment it ended. Clock skew never
// produces a negative duration.
func ComputeBill(start, endedAt time.Time, pricePerMinuteCents int64) Bill {
	elapsed := int64(endedAt.Sub(start) / time.Second)
	if elapsed < 0 {
		elapsed = 0
	}
	minutes := (elapsed + 59) / 60
	return Bill{
		DurationSeconds: elapsed,
		BilledMinutes:   minutes,
		CostCents:       minutes * pricePerMinuteCents,
	}
}

// Split divides a gross amount between the platform and the expert.
func Split(grossCents, commissionPercent int64) (commission, net int64) {
	if commissionPercent < 0 {
		commissionPercent = 0
	}
	if commissionPercent > 100 {
		commissionPercent = 100
	}
	commission = grossCents * commissionPercent / 100
	return commission, grossCents - commission
}
