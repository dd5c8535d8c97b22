package reconcile

import (
	"context"
	"time"

	"rivelya/models"

	"go.uber.org/zap"
)

// ScanResult counts what one scan did. Skipped entities were listed but needed nothing,
// usually because another pass or a participant got there first.
type ScanResult struct {
	Name      string `json:"name"`
	Listed    int    `json:"listed"`
	Processed int    `json:"processed"`
	Skipped   int    `json:"skipped"`
	Failed    int    `json:"failed"`
	ListError string `json:"listError,omitempty"`
}

type Report struct {
	StartedAt time.Time     `json:"startedAt"`
	Duration  time.Duration `json:"duration"`
	Scans     []ScanResult  `json:"scans"`
}

func (r Report) Scan(name string) ScanResult {
	for _, s := range r.Scans {
		if s.Name == name {
			return s
		}
	}
	return ScanResult{Name: name}
}

func (r Report) Changed() int {
	n := 0
	for _, s := range r.Scans {
		n += s.Processed
	}
	return n
}

func (r Report) Failed() int {
	n := 0
	for _, s := range r.Scans {
		n += s.Failed
		if s.ListError != "" {
			n++
		}
	}
	return n
}

const (
	ScanSessions       = "sessions"
	ScanThreads        = "threads"
	ScanPrepare        = "bookings.prepare"
	ScanAutoStart      = "bookings.autostart"
	ScanProvision      = "bookings.provision"
	ScanCalls          = "calls"
	ScanStaleRequests  = "housekeeping.stale_requests"
	ScanPendingRefunds = "housekeeping.refunds"
)

type scanFunc func(ctx context.Context) ScanResult

func (l *Loop) batch() int64 {
	if l.BatchSize <= 0 {
		return DefaultBatchSize
	}
	return l.BatchSize
}

func (l *Loop) abandonAfter() time.Duration {
	if l.AbandonAfter <= 0 {
		return DefaultAbandonAfter
	}
	return l.AbandonAfter
}

func (l *Loop) groups(now time.Time) [][]scanFunc {
	limit := l.batch()
	var groups [][]scanFunc

	if l.SessionSvc != nil {
		groups = append(groups, []scanFunc{
			func(ctx context.Context) ScanResult {
				return run(ctx, l.Logger, ScanSessions,
					func(ctx context.Context) ([]models.Session, error) { return l.Sessions.ListDue(ctx, now, limit) },
					func(s models.Session) string { return s.ID },
					l.SessionSvc.ExpireOne)
			},
		})
	}
	if l.ChatSvc != nil {
		groups = append(groups, []scanFunc{
			func(ctx context.Context) ScanResult {
				return run(ctx, l.Logger, ScanThreads,
					func(ctx context.Context) ([]models.ChatThread, error) { return l.Threads.ListDue(ctx, now, limit) },
					func(t models.ChatThread) string { return t.ID },
					l.ChatSvc.ExpireOne)
			},
		}, []scanFunc{
			func(ctx context.Context) ScanResult {
				cutoff := now.Add(-l.abandonAfter())
				return run(ctx, l.Logger, ScanCalls,
					func(ctx context.Context) ([]models.ChatCall, error) { return l.Calls.ListRingingSince(ctx, cutoff, limit) },
					func(c models.ChatCall) string { return c.ID },
					l.ChatSvc.TimeoutOne)
			},
		})
	}
	if l.BookingSvc != nil {
		bookingID := func(b models.Booking) string { return b.ID }
		groups = append(groups, []scanFunc{
			func(ctx context.Context) ScanResult {
				horizon := l.BookingSvc.LeadWindow(now)
				return run(ctx, l.Logger, ScanPrepare,
					func(ctx context.Context) ([]models.Booking, error) {
						return l.Bookings.ListDueForPreparation(ctx, horizon, limit)
					},
					bookingID, l.BookingSvc.PrepareOne)
			},
			func(ctx context.Context) ScanResult {
				return run(ctx, l.Logger, ScanAutoStart,
					func(ctx context.Context) ([]models.Booking, error) { return l.Bookings.ListDueForStart(ctx, now, limit) },
					bookingID, l.BookingSvc.AutoStartOne)
			},
			func(ctx context.Context) ScanResult {
				return run(ctx, l.Logger, ScanProvision,
					func(ctx context.Context) ([]models.Booking, error) { return l.Bookings.ListUnprovisioned(ctx, limit) },
					bookingID, l.BookingSvc.ProvisionOne)
			},
		}, []scanFunc{
			func(ctx context.Context) ScanResult {
				return run(ctx, l.Logger, ScanStaleRequests,
					func(ctx context.Context) ([]models.Booking, error) { return l.Bookings.ListStaleRequests(ctx, now, limit) },
					bookingID, l.BookingSvc.ExpireStaleOne)
			},
			func(ctx context.Context) ScanResult {
				return run(ctx, l.Logger, ScanPendingRefunds,
					func(ctx context.Context) ([]models.Booking, error) { return l.Bookings.ListPendingRefunds(ctx, limit) },
					bookingID, l.BookingSvc.RefundOne)
			},
		})
	}
	return groups
}

// run lists one batch and processes it entity by entity. A failure is logged and counted;
// the entity stays due and is retried by the next pass.
func run[T any](
	ctx context.Context,
	logger *zap.Logger,
	name string,
	list func(context.Context) ([]T, error),
	id func(T) string,
	handle func(context.Context, T) (bool, error),
) ScanResult {
	res := ScanResult{Name: name}
	items, err := list(ctx)
	if err != nil {
		logger.Error("reconcile scan could not list due entities", zap.String("scan", name), zap.Error(err))
		res.ListError = err.Error()
		return res
	}
	res.Listed = len(items)
	for _, item := range items {
		if ctx.Err() != nil {
			break
		}
		changed, err := handle(ctx, item)
		switch {
		case err != nil:
			res.Failed++
			logger.Warn("reconcile step failed", zap.String("scan", name), zap.String("id", id(item)), zap.Error(err))
		case changed:
			res.Processed++
		default:
			res.Skipped++
			logger.Debug("reconcile step skipped", zap.String("scan", name), zap.String("id", id(item)))
		}
	}
	return res
}
