// Package reconcile drives every time-based lifecycle transition. A pass lists the
// entities whose deadline has come and hands each one to its owning service.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	bookingRepo "rivelya/database/repository/booking"
	chatRepo "rivelya/database/repository/chat"
	sessionRepo "rivelya/database/repository/session"
	"rivelya/models"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultInterval     = 30 * time.Second
	DefaultBatchSize    = 200
	DefaultAbandonAfter = 2 * time.Minute
)

var ErrAlreadyRunning = errors.New("reconcile loop already running")

// BookingWorker is the booking side of a pass.
type BookingWorker interface {
	LeadWindow(now time.Time) time.Time
	PrepareOne(ctx context.Context, b models.Booking) (bool, error)
	AutoStartOne(ctx context.Context, b models.Booking) (bool, error)
	ProvisionOne(ctx context.Context, b models.Booking) (bool, error)
	ExpireStaleOne(ctx context.Context, b models.Booking) (bool, error)
	RefundOne(ctx context.Context, b models.Booking) (bool, error)
}

type SessionWorker interface {
	ExpireOne(ctx context.Context, s models.Session) (bool, error)
}

type ChatWorker interface {
	ExpireOne(ctx context.Context, t models.ChatThread) (bool, error)
	TimeoutOne(ctx context.Context, c models.ChatCall) (bool, error)
}

// Loop owns the periodic pass. It is built once in main and stopped on shutdown.
type Loop struct {
	Bookings bookingRepo.BookingRepository
	Sessions sessionRepo.SessionRepository
	Threads  chatRepo.ThreadRepository
	Calls    chatRepo.CallRepository

	BookingSvc BookingWorker
	SessionSvc SessionWorker
	ChatSvc    ChatWorker

	Logger       *zap.Logger
	Interval     time.Duration
	BatchSize    int64
	AbandonAfter time.Duration
	Now          func() time.Time

	mu     sync.Mutex
	cron   *cron.Cron
	cancel context.CancelFunc
}

func (l *Loop) now() time.Time {
	if l.Now != nil {
		return l.Now().UTC()
	}
	return time.Now().UTC()
}

// Start schedules a pass every Interval. A pass still running when the next one is due
// is not overlapped.
func (l *Loop) Start(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cron != nil {
		return ErrAlreadyRunning
	}

	interval := l.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	runCtx, cancel := context.WithCancel(ctx)
	logger := cronLogger{l.Logger.Sugar()}
	c := cron.New(
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
	if _, err := c.AddFunc(fmt.Sprintf("@every %s", interval), func() { l.RunOnce(runCtx) }); err != nil {
		cancel()
		return fmt.Errorf("schedule reconcile pass: %w", err)
	}
	c.Start()
	l.cron, l.cancel = c, cancel
	l.Logger.Info("reconcile loop started", zap.Duration("interval", interval))
	return nil
}

// Stop cancels the running pass and waits for it to return.
func (l *Loop) Stop() {
	l.mu.Lock()
	c, cancel := l.cron, l.cancel
	l.cron, l.cancel = nil, nil
	l.mu.Unlock()
	if c == nil {
		return
	}
	cancel()
	<-c.Stop().Done()
	l.Logger.Info("reconcile loop stopped")
}

// Running reports whether Start has been called without a matching Stop.
func (l *Loop) Running() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cron != nil
}

// RunOnce executes a single pass. Scan groups run in parallel; scans inside a group run
// in order so that a booking prepared in this pass can also be started by it.
func (l *Loop) RunOnce(ctx context.Context) Report {
	started := l.now()
	groups := l.groups(started)
	results := make([][]ScanResult, len(groups))

	var g errgroup.Group
	for i, group := range groups {
		i, group := i, group
		g.Go(func() error {
			for _, sc := range group {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				results[i] = append(results[i], sc(ctx))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		l.Logger.Warn("reconcile pass interrupted", zap.Error(err))
	}

	report := Report{StartedAt: started, Duration: l.now().Sub(started)}
	for _, rs := range results {
		report.Scans = append(report.Scans, rs...)
	}
	if report.Changed() > 0 || report.Failed() > 0 {
		l.Logger.Info("reconcile pass finished",
			zap.Int("processed", report.Changed()),
			zap.Int("failed", report.Failed()),
			zap.Duration("took", report.Duration))
	} else {
		l.Logger.Debug("reconcile pass finished, nothing due")
	}
	return report
}

// cronLogger routes cron's own messages through zap.
type cronLogger struct {
	l *zap.SugaredLogger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debugw(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Errorw(msg, append(keysAndValues, "error", err)...)
}
