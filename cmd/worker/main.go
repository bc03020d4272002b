package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"crowdfund-server/internal/bootstrap"
	"crowdfund-server/internal/config"
	"crowdfund-server/internal/email"
	"crowdfund-server/internal/jobs"
	"crowdfund-server/internal/jobs/scheduler"
	schedulerjobs "crowdfund-server/internal/jobs/scheduler/jobs"
	jobworkers "crowdfund-server/internal/jobs/workers"
	"crowdfund-server/internal/observability"
	"crowdfund-server/internal/workers"

	"github.com/hibiken/asynq"
)

func main() {
	logger := observability.NewLogger()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger.Info(ctx, "Starting background worker server...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %s", err)
	}

	deps, err := bootstrap.Initialize(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("failed to initialize dependencies: %s", err)
	}
	defer deps.Cleanup()

	// Notification fan-out: consume activity events and send emails
	emailProcessor := email.NewEmailEventProcessor(deps.EmailService, &deps.Store, logger)
	consumerConfig := workers.DefaultConsumerConfig(
		strings.Split(cfg.Kafka.Brokers, ","),
		cfg.Kafka.ConsumerGroup,
		cfg.Kafka.Topic,
	)
	consumerConfig.NumWorkers = cfg.WorkerPool.NotificationWorkers
	consumer := workers.NewConsumer(consumerConfig, emailProcessor, logger)

	go func() {
		if err := consumer.Start(ctx); err != nil {
			logger.Error(ctx, "notification consumer stopped with error", err)
		}
	}()

	// Background jobs: compensating refunds
	refundWorker := jobworkers.NewRefundWorker(&deps.Store, deps.ContributionProcessor, logger)

	srv := asynq.NewServer(
		asynq.RedisClientOpt{Addr: cfg.Redis.Addr},
		asynq.Config{
			Concurrency: 10,
			Queues: map[string]int{
				jobs.QueueHigh: 8,
				jobs.QueueLow:  2,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				logger.Error(ctx, fmt.Sprintf("task %s failed", task.Type()), err)
			}),
		},
	)

	mux := asynq.NewServeMux()
	mux.HandleFunc(jobs.TypeCompensatingRefund, refundWorker.ProcessCompensatingRefundTask)

	if err := srv.Start(mux); err != nil {
		log.Fatalf("failed to start job server: %s", err)
	}

	// Scheduled work: close campaigns past their deadline
	sched := scheduler.New(logger)
	sched.Register(schedulerjobs.NewCampaignEndSweep(deps.CampaignProcessor, 0, logger))
	go func() {
		if err := sched.Start(ctx); err != nil && ctx.Err() == nil {
			logger.Error(ctx, "scheduler stopped with error", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info(ctx, "Shutting down worker server...")
	cancel()
	consumer.Stop()
	srv.Shutdown()
	logger.Info(ctx, "Worker server exited gracefully")
}
