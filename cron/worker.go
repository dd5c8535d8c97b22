// Package cron runs the background push worker that drains the notification queue.
package cron

import (
	"context"
	"time"

	"rivelya/config"
	"rivelya/services/tasks"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// QueueRedisOpt is the asynq connection for the push queue.
func QueueRedisOpt() asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     config.AppConfig.RedisAddr,
		Password: config.AppConfig.RedisPassword,
		DB:       config.AppConfig.RedisQueueDB,
	}
}

// PushWorker owns the asynq server delivering queued pushes.
type PushWorker struct {
	srv    *asynq.Server
	mux    *asynq.ServeMux
	logger *zap.Logger
	cancel context.CancelFunc
}

// InitPushWorker runs the async worker in background.
func InitPushWorker(sender tasks.PushSender, logger *zap.Logger) *PushWorker {
	srv := asynq.NewServer(
		QueueRedisOpt(),
		asynq.Config{
			Concurrency: 10,
			Queues: map[string]int{
				"default": 1,
			},
			Logger:   logger.Sugar(),
			LogLevel: asynq.WarnLevel,
		},
	)

	mux := asynq.NewServeMux()
	mux.HandleFunc(tasks.TypePushSend, tasks.HandlePushTask(sender))

	ctx, cancel := context.WithCancel(context.Background())
	w := &PushWorker{srv: srv, mux: mux, logger: logger, cancel: cancel}

	go monitorRedisConnection(ctx, logger)
	go w.run(ctx)
	return w
}

// run starts the server, retrying with a growing delay while Redis is unreachable.
func (w *PushWorker) run(ctx context.Context) {
	w.logger.Info("starting push worker")
	const maxAttempts = 5

	for attempts := 1; attempts <= maxAttempts; attempts++ {
		err := w.srv.Start(w.mux)
		if err == nil {
			return
		}
		w.logger.Warn("push worker failed to start",
			zap.Int("attempt", attempts), zap.Int("maxAttempts", maxAttempts), zap.Error(err))
		if attempts == maxAttempts {
			w.logger.Error("push worker gave up; pushes stay queued until restart")
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Duration(attempts*2) * time.Second):
		}
	}
}

// Shutdown stops fetching new tasks and waits for in-flight deliveries.
func (w *PushWorker) Shutdown() {
	w.cancel()
	w.srv.Shutdown()
	w.logger.Info("push worker stopped")
}

// monitorRedisConnection pings Redis periodically to detect failures at runtime.
func monitorRedisConnection(ctx context.Context, logger *zap.Logger) {
	client := redis.NewClient(&redis.Options{
		Addr:     config.AppConfig.RedisAddr,
		Password: config.AppConfig.RedisPassword,
		DB:       config.AppConfig.RedisQueueDB,
	})
	defer client.Close()

	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := client.Ping(ctx).Err(); err != nil && ctx.Err() == nil {
				logger.Warn("push queue redis connection lost", zap.Error(err))
			}
		}
	}
}
